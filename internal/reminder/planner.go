package reminder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/sungwon/scheduled-mailer/internal/metrics"
	"github.com/sungwon/scheduled-mailer/internal/scheduling"
)

// Config controls when reminders go out and what they look like.
type Config struct {
	// LeadDays is how many days before a term's due date the reminder is sent.
	LeadDays int `mapstructure:"lead_days"`
	// SendHour is the local hour of day reminders are scheduled for.
	SendHour int `mapstructure:"send_hour"`
	// Timezone is the IANA zone SendHour is interpreted in.
	Timezone     string `mapstructure:"timezone"`
	From         string `mapstructure:"from"`
	ReplyTo      string `mapstructure:"reply_to"`
	Subject      string `mapstructure:"subject"`
	TemplatePath string `mapstructure:"template_path"`
	MaxAttempts  int    `mapstructure:"max_attempts"`
}

// Default planner settings.
const (
	DefaultLeadDays = 7
	DefaultSendHour = 9
)

// scheduler is the part of scheduling.Service the planner drives.
type scheduler interface {
	Now() time.Time
	Create(ctx context.Context, req scheduling.CreateRequest) (*scheduling.CreateResult, error)
	List(ctx context.Context, filter scheduling.ListFilter) ([]*scheduling.ScheduledEmail, error)
	Cancel(ctx context.Context, id string) error
}

// Skip reasons reported in PlanResult.
const (
	SkipPaid      = "paid"
	SkipPast      = "send time not in the future"
	SkipScheduled = "already scheduled"
)

// PlannedReminder is one reminder created by Plan.
type PlannedReminder struct {
	Term         string    `json:"term"`
	ID           string    `json:"id"`
	ScheduledFor time.Time `json:"scheduled_for"`
}

// SkippedTerm is a term Plan did not schedule, with the reason.
type SkippedTerm struct {
	Term   string `json:"term"`
	Reason string `json:"reason"`
}

// PlanResult reports what Plan did for each term.
type PlanResult struct {
	BookingID string            `json:"booking_id"`
	Scheduled []PlannedReminder `json:"scheduled"`
	Skipped   []SkippedTerm     `json:"skipped"`
}

// Planner schedules payment reminders for bookings.
type Planner struct {
	scheduler scheduler
	renderer  *Renderer
	config    Config
	location  *time.Location
	log       zerolog.Logger
}

// NewPlanner validates cfg and loads the templates.
func NewPlanner(s scheduler, cfg Config, log zerolog.Logger) (*Planner, error) {
	if cfg.LeadDays < 0 {
		return nil, fmt.Errorf("reminder lead_days must not be negative, got %d", cfg.LeadDays)
	}
	if cfg.LeadDays == 0 {
		cfg.LeadDays = DefaultLeadDays
	}
	if cfg.SendHour < 0 || cfg.SendHour > 23 {
		return nil, fmt.Errorf("reminder send_hour must be 0-23, got %d", cfg.SendHour)
	}
	loc := time.UTC
	if cfg.Timezone != "" {
		l, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, fmt.Errorf("invalid reminder timezone %q: %w", cfg.Timezone, err)
		}
		loc = l
	}
	r, err := NewRenderer(cfg.Subject, cfg.TemplatePath)
	if err != nil {
		return nil, err
	}
	return &Planner{
		scheduler: s,
		renderer:  r,
		config:    cfg,
		location:  loc,
		log:       log,
	}, nil
}

// SendTime returns when the reminder for a term due on dueDate goes out:
// LeadDays earlier, at SendHour local time.
func (p *Planner) SendTime(dueDate time.Time) time.Time {
	d := dueDate.In(p.location).AddDate(0, 0, -p.config.LeadDays)
	return time.Date(d.Year(), d.Month(), d.Day(), p.config.SendHour, 0, 0, 0, p.location).UTC()
}

// Plan schedules one reminder per unpaid term. Terms that already have a
// pending or sent reminder are skipped, so Plan can be called again whenever
// the booking changes.
func (p *Planner) Plan(ctx context.Context, b Booking) (*PlanResult, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}

	existing, err := p.activeTerms(ctx, b.ID)
	if err != nil {
		return nil, err
	}

	now := p.scheduler.Now()
	result := &PlanResult{BookingID: b.ID}

	for _, term := range b.Terms {
		if term.Paid {
			result.Skipped = append(result.Skipped, SkippedTerm{Term: term.Name, Reason: SkipPaid})
			continue
		}
		if _, ok := existing[term.Name]; ok {
			result.Skipped = append(result.Skipped, SkippedTerm{Term: term.Name, Reason: SkipScheduled})
			continue
		}
		sendAt := p.SendTime(term.DueDate)
		if !sendAt.After(now) {
			result.Skipped = append(result.Skipped, SkippedTerm{Term: term.Name, Reason: SkipPast})
			continue
		}

		data := templateData{
			TravellerName: b.TravellerName,
			BookingID:     b.ID,
			Term:          term.Name,
			DueDate:       term.DueDate.In(p.location).Format("2 January 2006"),
			Amount:        term.Amount,
			Currency:      b.Currency,
		}
		subject, html, err := p.renderer.Render(data)
		if err != nil {
			return result, fmt.Errorf("render reminder for term %q: %w", term.Name, err)
		}

		res, err := p.scheduler.Create(ctx, scheduling.CreateRequest{
			To:           b.Email,
			Cc:           b.Cc,
			From:         p.config.From,
			ReplyTo:      p.config.ReplyTo,
			Subject:      subject,
			HTMLContent:  html,
			ScheduledFor: sendAt.Format(time.RFC3339),
			MaxAttempts:  p.config.MaxAttempts,
			EmailType:    EmailType,
			BookingID:    b.ID,
			TemplateID:   "payment_reminder",
			Variables: map[string]any{
				"term":     term.Name,
				"due_date": term.DueDate.UTC().Format(time.RFC3339),
				"amount":   term.Amount,
				"currency": b.Currency,
			},
		})
		if err != nil {
			return result, fmt.Errorf("schedule reminder for term %q: %w", term.Name, err)
		}
		result.Scheduled = append(result.Scheduled, PlannedReminder{Term: term.Name, ID: res.ID, ScheduledFor: res.ScheduledFor})
	}

	p.log.Info().
		Str("booking_id", b.ID).
		Int("scheduled", len(result.Scheduled)).
		Int("skipped", len(result.Skipped)).
		Msg("payment reminders planned")
	return result, nil
}

// MarkPaid cancels the pending reminder for a paid term and returns how
// many records were cancelled.
func (p *Planner) MarkPaid(ctx context.Context, bookingID, term string) (int, error) {
	if bookingID == "" || term == "" {
		return 0, fmt.Errorf("%w: booking id and term are required", scheduling.ErrInvalidArgument)
	}
	return p.cancelWhere(ctx, bookingID, "payment_completed", func(e *scheduling.ScheduledEmail) bool {
		return e.EmailType == EmailType && termOf(e) == term
	})
}

// CancelBooking cancels every pending email of the booking, whatever its type.
func (p *Planner) CancelBooking(ctx context.Context, bookingID string) (int, error) {
	if bookingID == "" {
		return 0, fmt.Errorf("%w: booking id is required", scheduling.ErrInvalidArgument)
	}
	return p.cancelWhere(ctx, bookingID, "booking_cancelled", func(*scheduling.ScheduledEmail) bool { return true })
}

func (p *Planner) cancelWhere(ctx context.Context, bookingID, reason string, match func(*scheduling.ScheduledEmail) bool) (int, error) {
	pending, err := p.scheduler.List(ctx, scheduling.ListFilter{BookingID: bookingID, Status: scheduling.StatusPending})
	if err != nil {
		return 0, err
	}

	cancelled := 0
	for _, e := range pending {
		if !match(e) {
			continue
		}
		if err := p.scheduler.Cancel(ctx, e.ID); err != nil {
			// Sent in the meantime; nothing left to retract.
			if errors.Is(err, scheduling.ErrFailedPrecondition) {
				p.log.Info().Str("email_id", e.ID).Err(err).Msg("reminder no longer cancellable")
				continue
			}
			return cancelled, err
		}
		cancelled++
		metrics.EmailsCancelledTotal.WithLabelValues(reason).Inc()
	}

	p.log.Info().
		Str("booking_id", bookingID).
		Str("reason", reason).
		Int("cancelled", cancelled).
		Msg("scheduled emails cancelled")
	return cancelled, nil
}

// activeTerms returns the terms that already have a pending or sent reminder.
func (p *Planner) activeTerms(ctx context.Context, bookingID string) (map[string]struct{}, error) {
	records, err := p.scheduler.List(ctx, scheduling.ListFilter{BookingID: bookingID, EmailType: EmailType})
	if err != nil {
		return nil, err
	}
	terms := make(map[string]struct{}, len(records))
	for _, e := range records {
		if e.Status == scheduling.StatusPending || e.Status == scheduling.StatusSent {
			terms[termOf(e)] = struct{}{}
		}
	}
	return terms, nil
}

func termOf(e *scheduling.ScheduledEmail) string {
	s, _ := e.TemplateVariables["term"].(string)
	return s
}
