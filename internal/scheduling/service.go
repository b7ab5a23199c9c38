package scheduling

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/sungwon/scheduled-mailer/internal/metrics"
)

// casRetries bounds how often Cancel and Reschedule re-read a record after
// losing a conditional write to a concurrent dispatcher.
const casRetries = 3

// CreateRequest is the input to Service.Create. HTMLContent must already be
// rendered; the engine never looks inside it.
type CreateRequest struct {
	To           string         `json:"to"`
	Cc           []string       `json:"cc,omitempty"`
	Bcc          []string       `json:"bcc,omitempty"`
	From         string         `json:"from,omitempty"`
	ReplyTo      string         `json:"reply_to,omitempty"`
	Subject      string         `json:"subject"`
	HTMLContent  string         `json:"html_content"`
	ScheduledFor string         `json:"scheduled_for"`
	MaxAttempts  int            `json:"max_attempts,omitempty"`
	EmailType    string         `json:"email_type,omitempty"`
	BookingID    string         `json:"booking_id,omitempty"`
	TemplateID   string         `json:"template_id,omitempty"`
	Variables    map[string]any `json:"template_variables,omitempty"`
}

// CreateResult echoes the generated ID and the normalized delivery time.
type CreateResult struct {
	ID           string    `json:"id"`
	ScheduledFor time.Time `json:"scheduled_for"`
}

// Service implements the scheduler operations on top of a Store.
type Service struct {
	store Store
	now   func() time.Time
	log   zerolog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a scheduler Service backed by store.
func NewService(store Store, log zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		store: store,
		now:   time.Now,
		log:   log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the service clock's current time in UTC.
func (s *Service) Now() time.Time {
	return s.now().UTC()
}

// Create validates req and persists a new pending record.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	now := s.Now()

	if err := validateCreate(req); err != nil {
		return nil, err
	}
	if err := validateAddresses(req); err != nil {
		return nil, err
	}
	scheduledFor, err := parseFutureTime(req.ScheduledFor, now)
	if err != nil {
		return nil, err
	}

	maxAttempts := req.MaxAttempts
	switch {
	case maxAttempts < 0:
		return nil, fmt.Errorf("%w: max_attempts must be positive", ErrInvalidArgument)
	case maxAttempts == 0:
		maxAttempts = DefaultMaxAttempts
	}

	email := &ScheduledEmail{
		To:                strings.TrimSpace(req.To),
		Cc:                uniqueAddresses(req.Cc),
		Bcc:               uniqueAddresses(req.Bcc),
		From:              strings.TrimSpace(req.From),
		ReplyTo:           strings.TrimSpace(req.ReplyTo),
		Subject:           req.Subject,
		HTMLContent:       req.HTMLContent,
		ScheduledFor:      scheduledFor,
		Status:            StatusPending,
		Attempts:          0,
		MaxAttempts:       maxAttempts,
		CreatedAt:         now,
		UpdatedAt:         now,
		EmailType:         req.EmailType,
		BookingID:         req.BookingID,
		TemplateID:        req.TemplateID,
		TemplateVariables: req.Variables,
	}

	id, err := s.store.Create(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("create scheduled email: %w", err)
	}

	metrics.EmailsScheduledTotal.WithLabelValues(labelOrNone(req.EmailType)).Inc()
	s.log.Info().
		Str("email_id", id).
		Str("email_type", req.EmailType).
		Str("booking_id", req.BookingID).
		Time("scheduled_for", scheduledFor).
		Msg("email scheduled")

	return &CreateResult{ID: id, ScheduledFor: scheduledFor}, nil
}

// Get returns a single record.
func (s *Service) Get(ctx context.Context, id string) (*ScheduledEmail, error) {
	if strings.TrimSpace(id) == "" {
		// No record has an empty id.
		return nil, fmt.Errorf("empty id: %w", ErrNotFound)
	}
	email, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get scheduled email %s: %w", id, err)
	}
	return email, nil
}

// Cancel moves a pending or failed record to cancelled. Cancelling a sent
// or already cancelled record is a precondition failure.
func (s *Service) Cancel(ctx context.Context, id string) error {
	for range casRetries {
		email, err := s.Get(ctx, id)
		if err != nil {
			return err
		}

		switch email.Status {
		case StatusSent:
			return fmt.Errorf("%w: email %s has already been sent", ErrFailedPrecondition, id)
		case StatusCancelled:
			return fmt.Errorf("%w: email %s is already cancelled", ErrFailedPrecondition, id)
		}

		applied, err := s.store.UpdateIf(ctx, id,
			Condition{Status: email.Status, Attempts: email.Attempts},
			Patch{Status: Ptr(StatusCancelled), UpdatedAt: s.Now()},
		)
		if err != nil {
			return fmt.Errorf("cancel scheduled email %s: %w", id, err)
		}
		if applied {
			s.log.Info().Str("email_id", id).Str("previous_status", string(email.Status)).Msg("scheduled email cancelled")
			return nil
		}
		s.log.Debug().Str("email_id", id).Msg("cancel lost a concurrent update, re-reading")
	}
	return fmt.Errorf("%w: email %s changed concurrently", ErrFailedPrecondition, id)
}

// Reschedule moves the delivery time of a pending or failed record. A failed
// record is reopened as pending with a fresh retry budget.
func (s *Service) Reschedule(ctx context.Context, id string, newScheduledFor string) (*ScheduledEmail, error) {
	scheduledFor, err := parseFutureTime(newScheduledFor, s.Now())
	if err != nil {
		return nil, err
	}

	for range casRetries {
		email, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}

		patch := Patch{ScheduledFor: &scheduledFor, UpdatedAt: s.Now()}
		switch email.Status {
		case StatusSent:
			return nil, fmt.Errorf("%w: email %s has already been sent", ErrFailedPrecondition, id)
		case StatusCancelled:
			return nil, fmt.Errorf("%w: email %s is cancelled", ErrFailedPrecondition, id)
		case StatusFailed:
			patch.Status = Ptr(StatusPending)
			patch.Attempts = Ptr(0)
			patch.ErrorMessage = Ptr("")
		}

		applied, err := s.store.UpdateIf(ctx, id,
			Condition{Status: email.Status, Attempts: email.Attempts}, patch)
		if err != nil {
			return nil, fmt.Errorf("reschedule scheduled email %s: %w", id, err)
		}
		if applied {
			patch.Apply(email)
			s.log.Info().
				Str("email_id", id).
				Time("scheduled_for", scheduledFor).
				Bool("reopened", patch.Status != nil).
				Msg("scheduled email rescheduled")
			return email, nil
		}
		s.log.Debug().Str("email_id", id).Msg("reschedule lost a concurrent update, re-reading")
	}
	return nil, fmt.Errorf("%w: email %s changed concurrently", ErrFailedPrecondition, id)
}

// List returns records matching filter, newest delivery time first.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]*ScheduledEmail, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidArgument, filter.Status)
	}
	if filter.Limit < 0 || filter.Offset < 0 {
		return nil, fmt.Errorf("%w: limit and offset must not be negative", ErrInvalidArgument)
	}
	emails, err := s.store.Query(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list scheduled emails: %w", err)
	}
	return emails, nil
}

func validateCreate(req CreateRequest) error {
	var missing []string
	if strings.TrimSpace(req.To) == "" {
		missing = append(missing, "to")
	}
	if strings.TrimSpace(req.Subject) == "" {
		missing = append(missing, "subject")
	}
	if strings.TrimSpace(req.HTMLContent) == "" {
		missing = append(missing, "html_content")
	}
	if strings.TrimSpace(req.ScheduledFor) == "" {
		missing = append(missing, "scheduled_for")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing required fields: %s", ErrInvalidArgument, strings.Join(missing, ", "))
	}
	return nil
}

// validateAddresses rejects any address field that is not a single RFC 5322
// address. Values end up in message headers, so a line break must never get
// through.
func validateAddresses(req CreateRequest) error {
	check := func(field, addr string) error {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			return nil
		}
		if strings.ContainsAny(addr, "\r\n") {
			return fmt.Errorf("%w: %s contains a line break", ErrInvalidArgument, field)
		}
		if _, err := mail.ParseAddress(addr); err != nil {
			return fmt.Errorf("%w: invalid %s address %q", ErrInvalidArgument, field, addr)
		}
		return nil
	}

	for _, f := range []struct{ field, addr string }{
		{"to", req.To}, {"from", req.From}, {"reply_to", req.ReplyTo},
	} {
		if err := check(f.field, f.addr); err != nil {
			return err
		}
	}
	for _, a := range req.Cc {
		if err := check("cc", a); err != nil {
			return err
		}
	}
	for _, a := range req.Bcc {
		if err := check("bcc", a); err != nil {
			return err
		}
	}
	return nil
}

// ParseTime parses an RFC 3339 timestamp and normalizes it to UTC.
func ParseTime(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid timestamp %q", ErrInvalidArgument, value)
	}
	return t.UTC(), nil
}

func parseFutureTime(value string, now time.Time) (time.Time, error) {
	t, err := ParseTime(value)
	if err != nil {
		return time.Time{}, err
	}
	if !t.After(now) {
		return time.Time{}, fmt.Errorf("%w: scheduled time %s is not in the future", ErrInvalidArgument, t.Format(time.RFC3339))
	}
	return t, nil
}

// uniqueAddresses trims, drops empties and removes case-insensitive
// duplicates, keeping the first spelling.
func uniqueAddresses(addrs []string) []string {
	if len(addrs) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(addrs))
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		key := strings.ToLower(a)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, a)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func labelOrNone(v string) string {
	if v == "" {
		return "none"
	}
	return v
}

// IsNotFound reports whether err is a not-found failure.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
