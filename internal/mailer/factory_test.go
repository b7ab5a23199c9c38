package mailer

import (
	"context"
	"testing"
	"time"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"missing type", Config{}, true},
		{"unknown type", Config{Type: "carrier-pigeon"}, true},
		{"sendgrid without key", Config{Type: "sendgrid"}, true},
		{"sendgrid ok", Config{Type: "sendgrid", APIKey: "k"}, false},
		{"mailgun without domain", Config{Type: "mailgun", APIKey: "k"}, true},
		{"mailgun ok", Config{Type: "mailgun", APIKey: "k", Domain: "d"}, false},
		{"resend without key", Config{Type: "resend"}, true},
		{"resend ok", Config{Type: "resend", APIKey: "re_123"}, false},
		{"smtp without host", Config{Type: "smtp"}, true},
		{"smtp bad tls", Config{Type: "smtp", SMTPHost: "h", SMTPTLS: "none"}, true},
		{"smtp ok", Config{Type: "smtp", SMTPHost: "h"}, false},
		{"stdout ok", Config{Type: "stdout"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_ValidateDefaults(t *testing.T) {
	cfg := Config{Type: "smtp", SMTPHost: "relay"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if cfg.Timeout != 30*time.Second {
		t.Errorf("expected default timeout 30s, got %v", cfg.Timeout)
	}
	if cfg.SMTPPort != 587 {
		t.Errorf("expected default port 587, got %d", cfg.SMTPPort)
	}
	if cfg.SMTPTLS != "starttls" {
		t.Errorf("expected default tls starttls, got %s", cfg.SMTPTLS)
	}
}

func TestNew_Types(t *testing.T) {
	client := &mockHTTPClient{}
	tests := []struct {
		cfg  Config
		name string
	}{
		{Config{Type: "sendgrid", APIKey: "k"}, "sendgrid"},
		{Config{Type: "mailgun", APIKey: "k", Domain: "d"}, "mailgun"},
		{Config{Type: "resend", APIKey: "re_k"}, "resend"},
		{Config{Type: "smtp", SMTPHost: "h"}, "smtp"},
		{Config{Type: "stdout"}, "stdout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(tt.cfg, client)
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}
			if s.GetName() != tt.name {
				t.Errorf("GetName() = %s, want %s", s.GetName(), tt.name)
			}
		})
	}

	if _, err := New(Config{Type: "bogus"}, client); err == nil {
		t.Error("expected error for unknown type")
	}
}

// recordingSender captures the last message it was asked to send.
type recordingSender struct {
	last *Message
}

func (r *recordingSender) Send(_ context.Context, msg *Message) (*Result, error) {
	r.last = msg
	return &Result{MessageID: "m1"}, nil
}
func (r *recordingSender) GetName() string                   { return "recording" }
func (r *recordingSender) HealthCheck(_ context.Context) error { return nil }

func TestWithDefaultFrom(t *testing.T) {
	inner := &recordingSender{}
	s := WithDefaultFrom(inner, "bookings@example.com")

	msg := &Message{To: "a@example.com"}
	if _, err := s.Send(context.Background(), msg); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if inner.last.From != "bookings@example.com" {
		t.Errorf("expected default from, got %q", inner.last.From)
	}
	if msg.From != "" {
		t.Error("caller's message must not be mutated")
	}

	if _, err := s.Send(context.Background(), &Message{From: "agent@example.com"}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if inner.last.From != "agent@example.com" {
		t.Errorf("explicit from must win, got %q", inner.last.From)
	}

	if WithDefaultFrom(inner, "") != Sender(inner) {
		t.Error("empty default must return the sender unchanged")
	}
}
