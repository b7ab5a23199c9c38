package mailer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/quotedprintable"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/google/uuid"
)

// sendMailFunc matches smtp.SendMail and smtp.SendMailTLS.
type sendMailFunc func(addr string, a sasl.Client, from string, to []string, r io.Reader) error

// SMTP implements Sender by submitting messages to an SMTP relay.
type SMTP struct {
	addr     string
	auth     sasl.Client
	sendMail sendMailFunc
	now      func() time.Time
}

// NewSMTP creates an SMTP sender. When a username is configured the relay
// is authenticated with SASL PLAIN.
func NewSMTP(cfg Config) *SMTP {
	s := &SMTP{
		addr:     net.JoinHostPort(cfg.SMTPHost, strconv.Itoa(cfg.SMTPPort)),
		sendMail: smtp.SendMail,
		now:      time.Now,
	}
	if cfg.SMTPTLS == "implicit" {
		s.sendMail = smtp.SendMailTLS
	}
	if cfg.SMTPUsername != "" {
		s.auth = sasl.NewPlainClient("", cfg.SMTPUsername, cfg.SMTPPassword)
	}
	return s
}

func (s *SMTP) GetName() string { return "smtp" }

// Send builds a MIME message and submits it. The returned message ID is the
// Message-ID header written into the message.
func (s *SMTP) Send(ctx context.Context, msg *Message) (*Result, error) {
	messageID := newMessageID(msg.From)
	raw, err := buildMIME(msg, messageID, s.now())
	if err != nil {
		return nil, fmt.Errorf("smtp: build message: %w", err)
	}

	// go-smtp's SendMail has no context parameter; the goroutine is left to
	// finish against the relay's own timeouts if ctx expires first.
	done := make(chan error, 1)
	go func() {
		done <- s.sendMail(s.addr, s.auth, msg.From, msg.Recipients(), bytes.NewReader(raw))
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("smtp: send: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			var smtpErr *smtp.SMTPError
			if errors.As(err, &smtpErr) {
				return nil, ClassifySMTPReply("smtp", smtpErr.Code, smtpErr.Message)
			}
			return nil, fmt.Errorf("smtp: send: %w", err)
		}
	}

	return &Result{
		MessageID: messageID,
		Timestamp: s.now(),
	}, nil
}

// HealthCheck dials the relay to verify it accepts TCP connections.
func (s *SMTP) HealthCheck(ctx context.Context) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("smtp: health check dial: %w", err)
	}
	return conn.Close()
}

func newMessageID(from string) string {
	domain := "localhost"
	if at := strings.LastIndex(from, "@"); at >= 0 && at < len(from)-1 {
		domain = strings.Trim(from[at+1:], "> ")
	}
	return "<" + uuid.New().String() + "@" + domain + ">"
}

// buildMIME renders a single-part text/html message. Bcc recipients are
// envelope-only and never written into the headers.
func buildMIME(msg *Message, messageID string, now time.Time) ([]byte, error) {
	var b bytes.Buffer
	var headerErr error
	writeHeader := func(k, v string) {
		if strings.ContainsAny(v, "\r\n") {
			if headerErr == nil {
				headerErr = &SendError{Sender: "smtp", Message: k + " header contains a line break", Permanent: true}
			}
			return
		}
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(v)
		b.WriteString("\r\n")
	}

	writeHeader("From", msg.From)
	writeHeader("To", msg.To)
	if len(msg.Cc) > 0 {
		writeHeader("Cc", strings.Join(msg.Cc, ", "))
	}
	if msg.ReplyTo != "" {
		writeHeader("Reply-To", msg.ReplyTo)
	}
	writeHeader("Subject", mime.QEncoding.Encode("utf-8", msg.Subject))
	writeHeader("Date", now.Format(time.RFC1123Z))
	writeHeader("Message-ID", messageID)
	if msg.ID != "" {
		writeHeader("X-Scheduled-Email-ID", msg.ID)
	}
	writeHeader("MIME-Version", "1.0")
	writeHeader("Content-Type", `text/html; charset="utf-8"`)
	writeHeader("Content-Transfer-Encoding", "quoted-printable")
	if headerErr != nil {
		return nil, headerErr
	}
	b.WriteString("\r\n")

	qp := quotedprintable.NewWriter(&b)
	if _, err := qp.Write([]byte(msg.HTMLBody)); err != nil {
		return nil, err
	}
	if err := qp.Close(); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}
