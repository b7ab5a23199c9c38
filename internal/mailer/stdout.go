package mailer

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// Stdout implements Sender by writing messages to standard output.
// Intended for development; messages are never actually delivered.
type Stdout struct {
	writer io.Writer
}

// NewStdout creates a Stdout sender that prints messages to os.Stdout.
func NewStdout(_ Config) *Stdout {
	return &Stdout{writer: os.Stdout}
}

func (s *Stdout) GetName() string { return "stdout" }

// Send prints the message details and returns a successful result.
func (s *Stdout) Send(_ context.Context, msg *Message) (*Result, error) {
	var b strings.Builder
	b.WriteString("--- stdout mailer: message ---\n")
	fmt.Fprintf(&b, "ID:       %s\n", msg.ID)
	fmt.Fprintf(&b, "From:     %s\n", msg.From)
	fmt.Fprintf(&b, "To:       %s\n", msg.To)
	if len(msg.Cc) > 0 {
		fmt.Fprintf(&b, "Cc:       %s\n", strings.Join(msg.Cc, ", "))
	}
	if len(msg.Bcc) > 0 {
		fmt.Fprintf(&b, "Bcc:      %s\n", strings.Join(msg.Bcc, ", "))
	}
	if msg.ReplyTo != "" {
		fmt.Fprintf(&b, "Reply-To: %s\n", msg.ReplyTo)
	}
	fmt.Fprintf(&b, "Subject:  %s\n", msg.Subject)
	fmt.Fprintf(&b, "Body:     (%d bytes)\n", len(msg.HTMLBody))
	b.WriteString("--- end ---\n")

	if _, err := io.WriteString(s.writer, b.String()); err != nil {
		return nil, fmt.Errorf("stdout: write: %w", err)
	}

	return &Result{
		MessageID: "stdout-" + msg.ID,
		Timestamp: time.Now(),
	}, nil
}

// HealthCheck always returns nil since stdout is always available.
func (s *Stdout) HealthCheck(_ context.Context) error {
	return nil
}
