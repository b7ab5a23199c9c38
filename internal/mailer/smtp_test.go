package mailer

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
)

func TestBuildMIME(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	raw, err := buildMIME(&Message{
		ID:       "e1",
		From:     "s@example.com",
		To:       "a@example.com",
		Cc:       []string{"b@example.com"},
		Bcc:      []string{"secret@example.com"},
		ReplyTo:  "r@example.com",
		Subject:  "Réservation confirmée",
		HTMLBody: "<p>hi</p>",
	}, "<id@example.com>", now)
	if err != nil {
		t.Fatalf("buildMIME failed: %v", err)
	}
	out := string(raw)

	for _, want := range []string{
		"From: s@example.com\r\n",
		"To: a@example.com\r\n",
		"Cc: b@example.com\r\n",
		"Reply-To: r@example.com\r\n",
		"Message-ID: <id@example.com>\r\n",
		"X-Scheduled-Email-ID: e1\r\n",
		"Content-Type: text/html; charset=\"utf-8\"\r\n",
		"Subject: =?utf-8?q?",
		"\r\n\r\n<p>hi</p>",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected message to contain %q\n%s", want, out)
		}
	}
	if strings.Contains(out, "secret@example.com") {
		t.Error("bcc must not appear in headers")
	}
}

func TestBuildMIME_RejectsLineBreaksInHeaders(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
	}{
		{"reply-to", Message{From: "s@example.com", To: "a@example.com", ReplyTo: "c@x.com\r\nBcc: victim@evil.example"}},
		{"from", Message{From: "s@example.com\nX-Injected: 1", To: "a@example.com"}},
		{"to", Message{From: "s@example.com", To: "a@example.com\rCc: b@evil.example"}},
		{"cc", Message{From: "s@example.com", To: "a@example.com", Cc: []string{"b@example.com\r\nX: y"}}},
		{"record id", Message{ID: "e1\r\nX: y", From: "s@example.com", To: "a@example.com"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := buildMIME(&tt.msg, "<id@example.com>", time.Now())
			if err == nil {
				t.Fatalf("expected error, got message\n%s", raw)
			}
			if !IsPermanent(err) {
				t.Errorf("expected a permanent error, got %v", err)
			}
		})
	}
}

func TestSMTP_Send_RefusesHeaderInjection(t *testing.T) {
	s := NewSMTP(Config{SMTPHost: "relay", SMTPPort: 25})
	called := false
	s.sendMail = func(string, sasl.Client, string, []string, io.Reader) error {
		called = true
		return nil
	}

	_, err := s.Send(context.Background(), &Message{
		From: "s@example.com", To: "a@example.com",
		ReplyTo: "c@x.com\r\nBcc: victim@evil.example",
	})
	if err == nil || !IsPermanent(err) {
		t.Errorf("expected a permanent error, got %v", err)
	}
	if called {
		t.Error("a message with an injected header must not reach the relay")
	}
}

func TestNewMessageID(t *testing.T) {
	id := newMessageID("Bookings <bookings@travel.example>")
	if !strings.HasPrefix(id, "<") || !strings.HasSuffix(id, "@travel.example>") {
		t.Errorf("unexpected message id %q", id)
	}
	if !strings.HasSuffix(newMessageID(""), "@localhost>") {
		t.Error("expected localhost fallback")
	}
}

func TestSMTP_Send(t *testing.T) {
	var gotFrom string
	var gotTo []string
	var gotBody bytes.Buffer

	s := NewSMTP(Config{SMTPHost: "relay", SMTPPort: 25, SMTPUsername: "u", SMTPPassword: "p"})
	s.sendMail = func(addr string, a sasl.Client, from string, to []string, r io.Reader) error {
		if addr != "relay:25" {
			t.Errorf("unexpected addr %s", addr)
		}
		if a == nil {
			t.Error("expected SASL client when username is set")
		}
		gotFrom, gotTo = from, to
		_, _ = io.Copy(&gotBody, r)
		return nil
	}

	res, err := s.Send(context.Background(), &Message{
		From: "s@example.com", To: "a@example.com",
		Cc: []string{"b@example.com"}, Bcc: []string{"c@example.com"},
		Subject: "S", HTMLBody: "x",
	})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if gotFrom != "s@example.com" {
		t.Errorf("unexpected envelope from %s", gotFrom)
	}
	if len(gotTo) != 3 {
		t.Errorf("expected 3 envelope recipients, got %v", gotTo)
	}
	if !strings.Contains(gotBody.String(), "Message-ID: "+res.MessageID) {
		t.Error("returned message id must match the header")
	}
}

func TestSMTP_Send_ClassifiesReply(t *testing.T) {
	s := NewSMTP(Config{SMTPHost: "relay", SMTPPort: 25})
	s.sendMail = func(string, sasl.Client, string, []string, io.Reader) error {
		return &smtp.SMTPError{Code: 550, Message: "no such user"}
	}

	_, err := s.Send(context.Background(), &Message{From: "s@example.com", To: "a@example.com"})
	if !IsPermanent(err) {
		t.Errorf("expected permanent error for 550, got %v", err)
	}
}

func TestSMTP_Send_ContextTimeout(t *testing.T) {
	s := NewSMTP(Config{SMTPHost: "relay", SMTPPort: 25})
	release := make(chan struct{})
	defer close(release)
	s.sendMail = func(string, sasl.Client, string, []string, io.Reader) error {
		<-release
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := s.Send(ctx, &Message{From: "s@example.com", To: "a@example.com"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}
