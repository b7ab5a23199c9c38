package scheduling

import (
	"errors"
	"time"
)

// Status is the lifecycle state of a scheduled email.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSent      Status = "sent"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusSent, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// DefaultMaxAttempts is applied when a create request leaves MaxAttempts at zero.
const DefaultMaxAttempts = 3

// Predefined errors for scheduler operations. Callers classify failures
// with errors.Is; the wrapped message carries the detail.
var (
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrNotFound           = errors.New("scheduled email not found")
	ErrFailedPrecondition = errors.New("failed precondition")
)

// ScheduledEmail is a persisted intent to deliver one email at or after
// ScheduledFor.
type ScheduledEmail struct {
	ID      string   `json:"id"`
	To      string   `json:"to"`
	Cc      []string `json:"cc,omitempty"`
	Bcc     []string `json:"bcc,omitempty"`
	From    string   `json:"from,omitempty"`
	ReplyTo string   `json:"reply_to,omitempty"`

	Subject     string `json:"subject"`
	HTMLContent string `json:"html_content"`

	ScheduledFor time.Time `json:"scheduled_for"`
	Status       Status    `json:"status"`
	Attempts     int       `json:"attempts"`
	MaxAttempts  int       `json:"max_attempts"`
	ErrorMessage string    `json:"error_message,omitempty"`

	SentAt    *time.Time `json:"sent_at,omitempty"`
	MessageID string     `json:"message_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Correlation metadata, opaque to the engine.
	EmailType         string         `json:"email_type,omitempty"`
	BookingID         string         `json:"booking_id,omitempty"`
	TemplateID        string         `json:"template_id,omitempty"`
	TemplateVariables map[string]any `json:"template_variables,omitempty"`
}

// Terminal reports whether no further dispatch attempts will happen without
// an explicit reschedule.
func (e *ScheduledEmail) Terminal() bool {
	return e.Status != StatusPending
}

// Clone returns a deep copy so stores can hand out records without sharing
// slices or maps with their internal state.
func (e *ScheduledEmail) Clone() *ScheduledEmail {
	c := *e
	if e.Cc != nil {
		c.Cc = append([]string(nil), e.Cc...)
	}
	if e.Bcc != nil {
		c.Bcc = append([]string(nil), e.Bcc...)
	}
	if e.SentAt != nil {
		t := *e.SentAt
		c.SentAt = &t
	}
	if e.TemplateVariables != nil {
		c.TemplateVariables = make(map[string]any, len(e.TemplateVariables))
		for k, v := range e.TemplateVariables {
			c.TemplateVariables[k] = v
		}
	}
	return &c
}

// Patch is a partial update. Nil fields are left unchanged. UpdatedAt is
// always written.
type Patch struct {
	Status       *Status
	ScheduledFor *time.Time
	Attempts     *int
	ErrorMessage *string // empty string clears the field
	SentAt       *time.Time
	MessageID    *string
	UpdatedAt    time.Time
}

// Apply writes the patch onto e.
func (p Patch) Apply(e *ScheduledEmail) {
	if p.Status != nil {
		e.Status = *p.Status
	}
	if p.ScheduledFor != nil {
		e.ScheduledFor = *p.ScheduledFor
	}
	if p.Attempts != nil {
		e.Attempts = *p.Attempts
	}
	if p.ErrorMessage != nil {
		e.ErrorMessage = *p.ErrorMessage
	}
	if p.SentAt != nil {
		t := *p.SentAt
		e.SentAt = &t
	}
	if p.MessageID != nil {
		e.MessageID = *p.MessageID
	}
	e.UpdatedAt = p.UpdatedAt
}

// Condition guards a conditional update: the write only lands if the stored
// record still has this status and attempt count.
type Condition struct {
	Status   Status
	Attempts int
}

// Matches reports whether e satisfies the condition.
func (c Condition) Matches(e *ScheduledEmail) bool {
	return e.Status == c.Status && e.Attempts == c.Attempts
}

// ListFilter selects records for List. Zero values mean "any".
type ListFilter struct {
	Status    Status
	EmailType string
	BookingID string
	Limit     int
	Offset    int
}

// Matches reports whether e passes the exact-match filters (paging ignored).
func (f ListFilter) Matches(e *ScheduledEmail) bool {
	if f.Status != "" && e.Status != f.Status {
		return false
	}
	if f.EmailType != "" && e.EmailType != f.EmailType {
		return false
	}
	if f.BookingID != "" && e.BookingID != f.BookingID {
		return false
	}
	return true
}

// Ptr returns a pointer to v. Handy for building patches.
func Ptr[T any](v T) *T { return &v }
