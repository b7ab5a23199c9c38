package mailer

import (
	"errors"
	"time"
)

// Config holds configuration for the outbound mail service.
type Config struct {
	// Type identifies the sender: "sendgrid", "mailgun", "resend", "smtp", "stdout".
	Type string `mapstructure:"type"`

	// APIKey is the authentication credential for HTTP mail APIs.
	APIKey string `mapstructure:"api_key"`

	// Endpoint overrides the default API URL (useful for testing).
	Endpoint string `mapstructure:"endpoint"`

	// Timeout is the maximum duration for API calls.
	Timeout time.Duration `mapstructure:"timeout"`

	// Domain is the Mailgun sending domain.
	Domain string `mapstructure:"domain"`

	// DefaultFrom is used when a scheduled email carries no From address.
	DefaultFrom string `mapstructure:"default_from"`

	// SMTP-specific fields.
	SMTPHost     string `mapstructure:"smtp_host"`
	SMTPPort     int    `mapstructure:"smtp_port"`
	SMTPUsername string `mapstructure:"smtp_username"`
	SMTPPassword string `mapstructure:"smtp_password"`
	SMTPTLS      string `mapstructure:"smtp_tls"` // starttls (default) or implicit
}

const defaultTimeout = 30 * time.Second

// Validate checks that required fields are set based on sender type.
func (c *Config) Validate() error {
	if c.Type == "" {
		return errors.New("mailer type is required")
	}

	if c.Timeout == 0 {
		c.Timeout = defaultTimeout
	}

	switch c.Type {
	case "sendgrid":
		if c.APIKey == "" {
			return errors.New("sendgrid: api_key is required")
		}
	case "mailgun":
		if c.APIKey == "" {
			return errors.New("mailgun: api_key is required")
		}
		if c.Domain == "" {
			return errors.New("mailgun: domain is required")
		}
	case "resend":
		if c.APIKey == "" {
			return errors.New("resend: api_key is required")
		}
	case "smtp":
		if c.SMTPHost == "" {
			return errors.New("smtp: smtp_host is required")
		}
		if c.SMTPPort == 0 {
			c.SMTPPort = 587
		}
		if c.SMTPTLS == "" {
			c.SMTPTLS = "starttls"
		}
		if c.SMTPTLS != "starttls" && c.SMTPTLS != "implicit" {
			return errors.New("smtp: smtp_tls must be starttls or implicit")
		}
	case "stdout":
		// No configuration required.
	default:
		return errors.New("unknown mailer type: " + c.Type)
	}

	return nil
}
