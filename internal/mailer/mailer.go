package mailer

import (
	"context"
	"time"
)

// Sender delivers a fully rendered email through a mail service.
type Sender interface {
	// Send delivers the message and returns the service's message ID.
	Send(ctx context.Context, msg *Message) (*Result, error)
	// GetName returns the sender's identifier (e.g., "sendgrid", "smtp").
	GetName() string
	// HealthCheck verifies the mail service is reachable.
	HealthCheck(ctx context.Context) error
}

// HTTPClient abstracts HTTP operations for testability.
type HTTPClient interface {
	Do(ctx context.Context, req *HTTPRequest) (*HTTPResponse, error)
}

// HTTPRequest represents an outgoing HTTP request.
type HTTPRequest struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte
}

// HTTPResponse represents an HTTP response from a mail API.
type HTTPResponse struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
}

// Message is a single HTML email.
type Message struct {
	// ID is the caller's record ID, used for logging and idempotency headers.
	ID       string
	From     string
	To       string
	Cc       []string
	Bcc      []string
	ReplyTo  string
	Subject  string
	HTMLBody string
}

// Recipients returns every envelope recipient: to, cc, then bcc.
func (m *Message) Recipients() []string {
	rcpts := make([]string, 0, 1+len(m.Cc)+len(m.Bcc))
	rcpts = append(rcpts, m.To)
	rcpts = append(rcpts, m.Cc...)
	rcpts = append(rcpts, m.Bcc...)
	return rcpts
}

// Result contains the outcome of a successful send.
type Result struct {
	MessageID string
	Timestamp time.Time
	Metadata  map[string]string
}

// WithDefaultFrom wraps a Sender so messages without a From address use
// from instead.
func WithDefaultFrom(s Sender, from string) Sender {
	if from == "" {
		return s
	}
	return &defaultFrom{Sender: s, from: from}
}

type defaultFrom struct {
	Sender
	from string
}

func (d *defaultFrom) Send(ctx context.Context, msg *Message) (*Result, error) {
	if msg.From == "" {
		cp := *msg
		cp.From = d.from
		msg = &cp
	}
	return d.Sender.Send(ctx, msg)
}
