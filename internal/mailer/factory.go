package mailer

import "fmt"

// New creates a Sender from the given config. HTTP-based senders use client;
// it may be nil for the others.
func New(cfg Config, client HTTPClient) (Sender, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid mailer config: %w", err)
	}

	var s Sender
	switch cfg.Type {
	case "sendgrid":
		s = NewSendGrid(cfg, client)
	case "mailgun":
		s = NewMailgun(cfg, client)
	case "resend":
		s = NewResend(cfg)
	case "smtp":
		s = NewSMTP(cfg)
	case "stdout":
		s = NewStdout(cfg)
	default:
		return nil, fmt.Errorf("unsupported mailer type: %s", cfg.Type)
	}

	return WithDefaultFrom(s, cfg.DefaultFrom), nil
}
