package mailer

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/resend/resend-go/v2"
)

const resendDefaultEndpoint = "https://api.resend.com"

// resendEmails is the subset of the Resend client used for sending.
type resendEmails interface {
	SendWithContext(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

// Resend implements Sender using the Resend API client.
type Resend struct {
	emails   resendEmails
	apiKey   string
	endpoint string
	client   HTTPClient
}

// NewResend creates a Resend sender from the given configuration.
func NewResend(cfg Config) *Resend {
	c := resend.NewClient(cfg.APIKey)
	endpoint := resendDefaultEndpoint
	if cfg.Endpoint != "" {
		if u, err := url.Parse(cfg.Endpoint); err == nil {
			c.BaseURL = u
			endpoint = cfg.Endpoint
		}
	}
	return &Resend{
		emails:   c.Emails,
		apiKey:   cfg.APIKey,
		endpoint: endpoint,
		client:   NewHTTPClient(cfg.Timeout),
	}
}

func (r *Resend) GetName() string { return "resend" }

// Send delivers a message via the Resend emails endpoint.
func (r *Resend) Send(ctx context.Context, msg *Message) (*Result, error) {
	params := &resend.SendEmailRequest{
		From:    msg.From,
		To:      []string{msg.To},
		Cc:      msg.Cc,
		Bcc:     msg.Bcc,
		Subject: msg.Subject,
		Html:    msg.HTMLBody,
	}
	if msg.ReplyTo != "" {
		params.ReplyTo = msg.ReplyTo
	}
	if msg.ID != "" {
		params.Headers = map[string]string{"X-Scheduled-Email-ID": msg.ID}
	}

	sent, err := r.emails.SendWithContext(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("resend: send request: %w", err)
	}

	return &Result{
		MessageID: sent.Id,
		Timestamp: time.Now(),
	}, nil
}

// HealthCheck verifies Resend API connectivity by listing domains.
func (r *Resend) HealthCheck(ctx context.Context) error {
	resp, err := r.client.Do(ctx, &HTTPRequest{
		Method: "GET",
		URL:    r.endpoint + "/domains",
		Headers: map[string]string{
			"Authorization": "Bearer " + r.apiKey,
		},
	})
	if err != nil {
		return fmt.Errorf("resend: health check request: %w", err)
	}
	if resp.StatusCode != 200 {
		return fmt.Errorf("resend: health check returned status %d", resp.StatusCode)
	}
	return nil
}
