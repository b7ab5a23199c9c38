package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/sungwon/scheduled-mailer/internal/metrics"
	"github.com/sungwon/scheduled-mailer/internal/scheduling"
)

// Store implements scheduling.Store on top of the generated queries.
type Store struct {
	q Querier
}

// NewStore wraps q. Pass New(db.Pool) in production.
func NewStore(q Querier) *Store {
	return &Store{q: q}
}

var _ scheduling.Store = (*Store)(nil)

// observe records query latency and counts failures other than no-rows.
func observe(query string, start time.Time, err error) {
	metrics.DBQueryDuration.WithLabelValues(query).Observe(time.Since(start).Seconds())
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		metrics.DBErrorsTotal.WithLabelValues(query).Inc()
	}
}

func (s *Store) Create(ctx context.Context, email *scheduling.ScheduledEmail) (string, error) {
	vars, err := marshalVariables(email.TemplateVariables)
	if err != nil {
		return "", err
	}

	start := time.Now()
	id, err := s.q.CreateScheduledEmail(ctx, CreateScheduledEmailParams{
		ToAddress:         email.To,
		Cc:                nonNil(email.Cc),
		Bcc:               nonNil(email.Bcc),
		FromAddress:       email.From,
		ReplyTo:           email.ReplyTo,
		Subject:           email.Subject,
		HtmlContent:       email.HTMLContent,
		ScheduledFor:      email.ScheduledFor,
		Status:            string(email.Status),
		Attempts:          int32(email.Attempts),
		MaxAttempts:       int32(email.MaxAttempts),
		EmailType:         email.EmailType,
		BookingID:         email.BookingID,
		TemplateID:        email.TemplateID,
		TemplateVariables: vars,
		CreatedAt:         email.CreatedAt,
		UpdatedAt:         email.UpdatedAt,
	})
	observe("create_scheduled_email", start, err)
	if err != nil {
		return "", fmt.Errorf("insert scheduled email: %w", err)
	}
	return id.String(), nil
}

func (s *Store) Get(ctx context.Context, id string) (*scheduling.ScheduledEmail, error) {
	uid, err := parseID(id)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	row, err := s.q.GetScheduledEmail(ctx, uid)
	observe("get_scheduled_email", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("id %s: %w", id, scheduling.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("select scheduled email: %w", err)
	}
	return toDomain(row)
}

func (s *Store) Update(ctx context.Context, id string, patch scheduling.Patch) error {
	uid, err := parseID(id)
	if err != nil {
		return err
	}

	p := patchParams(patch)
	start := time.Now()
	n, err := s.q.UpdateScheduledEmail(ctx, UpdateScheduledEmailParams{
		Status:       p.Status,
		ScheduledFor: p.ScheduledFor,
		Attempts:     p.Attempts,
		ErrorMessage: p.ErrorMessage,
		SentAt:       p.SentAt,
		MessageID:    p.MessageID,
		UpdatedAt:    patch.UpdatedAt,
		ID:           uid,
	})
	observe("update_scheduled_email", start, err)
	if err != nil {
		return fmt.Errorf("update scheduled email: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("id %s: %w", id, scheduling.ErrNotFound)
	}
	return nil
}

func (s *Store) UpdateIf(ctx context.Context, id string, cond scheduling.Condition, patch scheduling.Patch) (bool, error) {
	uid, err := parseID(id)
	if err != nil {
		return false, err
	}

	p := patchParams(patch)
	start := time.Now()
	n, err := s.q.UpdateScheduledEmailIf(ctx, UpdateScheduledEmailIfParams{
		Status:       p.Status,
		ScheduledFor: p.ScheduledFor,
		Attempts:     p.Attempts,
		ErrorMessage: p.ErrorMessage,
		SentAt:       p.SentAt,
		MessageID:    p.MessageID,
		UpdatedAt:    patch.UpdatedAt,
		ID:           uid,
		CondStatus:   string(cond.Status),
		CondAttempts: int32(cond.Attempts),
	})
	observe("update_scheduled_email_if", start, err)
	if err != nil {
		return false, fmt.Errorf("conditional update scheduled email: %w", err)
	}
	if n > 0 {
		return true, nil
	}

	// Zero rows is either a lost race or a missing record.
	exists, err := s.q.ScheduledEmailExists(ctx, uid)
	if err != nil {
		return false, fmt.Errorf("check scheduled email: %w", err)
	}
	if !exists {
		return false, fmt.Errorf("id %s: %w", id, scheduling.ErrNotFound)
	}
	return false, nil
}

func (s *Store) Query(ctx context.Context, filter scheduling.ListFilter) ([]*scheduling.ScheduledEmail, error) {
	params := ListScheduledEmailsParams{
		Status:    optionalText(string(filter.Status)),
		EmailType: optionalText(filter.EmailType),
		BookingID: optionalText(filter.BookingID),
		RowOffset: int64(filter.Offset),
	}
	if filter.Limit > 0 {
		params.RowLimit = pgtype.Int8{Int64: int64(filter.Limit), Valid: true}
	}

	start := time.Now()
	rows, err := s.q.ListScheduledEmails(ctx, params)
	observe("list_scheduled_emails", start, err)
	if err != nil {
		return nil, fmt.Errorf("list scheduled emails: %w", err)
	}
	return toDomainSlice(rows)
}

func (s *Store) ListDue(ctx context.Context, now time.Time, limit int) ([]*scheduling.ScheduledEmail, error) {
	start := time.Now()
	params := ListDueScheduledEmailsParams{ScheduledFor: now}
	// LIMIT NULL is unlimited, matching the other backends.
	if limit > 0 {
		params.RowLimit = pgtype.Int8{Int64: int64(limit), Valid: true}
	}
	rows, err := s.q.ListDueScheduledEmails(ctx, params)
	observe("list_due_scheduled_emails", start, err)
	if err != nil {
		return nil, fmt.Errorf("list due scheduled emails: %w", err)
	}
	return toDomainSlice(rows)
}

// parseID maps malformed IDs to not-found; no record can have one.
func parseID(id string) (uuid.UUID, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("id %s: %w", id, scheduling.ErrNotFound)
	}
	return uid, nil
}

type patchColumns struct {
	Status       pgtype.Text
	ScheduledFor pgtype.Timestamptz
	Attempts     pgtype.Int4
	ErrorMessage pgtype.Text
	SentAt       pgtype.Timestamptz
	MessageID    pgtype.Text
}

func patchParams(p scheduling.Patch) patchColumns {
	var c patchColumns
	if p.Status != nil {
		c.Status = pgtype.Text{String: string(*p.Status), Valid: true}
	}
	if p.ScheduledFor != nil {
		c.ScheduledFor = pgtype.Timestamptz{Time: *p.ScheduledFor, Valid: true}
	}
	if p.Attempts != nil {
		c.Attempts = pgtype.Int4{Int32: int32(*p.Attempts), Valid: true}
	}
	if p.ErrorMessage != nil {
		c.ErrorMessage = pgtype.Text{String: *p.ErrorMessage, Valid: true}
	}
	if p.SentAt != nil {
		c.SentAt = pgtype.Timestamptz{Time: *p.SentAt, Valid: true}
	}
	if p.MessageID != nil {
		c.MessageID = pgtype.Text{String: *p.MessageID, Valid: true}
	}
	return c
}

func optionalText(v string) pgtype.Text {
	if v == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: v, Valid: true}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func marshalVariables(vars map[string]any) ([]byte, error) {
	if len(vars) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(vars)
	if err != nil {
		return nil, fmt.Errorf("%w: template_variables: %v", scheduling.ErrInvalidArgument, err)
	}
	return b, nil
}

func toDomain(row ScheduledEmail) (*scheduling.ScheduledEmail, error) {
	e := &scheduling.ScheduledEmail{
		ID:           row.ID.String(),
		To:           row.ToAddress,
		From:         row.FromAddress,
		ReplyTo:      row.ReplyTo,
		Subject:      row.Subject,
		HTMLContent:  row.HtmlContent,
		ScheduledFor: row.ScheduledFor.UTC(),
		Status:       scheduling.Status(row.Status),
		Attempts:     int(row.Attempts),
		MaxAttempts:  int(row.MaxAttempts),
		ErrorMessage: row.ErrorMessage.String,
		MessageID:    row.MessageID.String,
		CreatedAt:    row.CreatedAt.UTC(),
		UpdatedAt:    row.UpdatedAt.UTC(),
		EmailType:    row.EmailType,
		BookingID:    row.BookingID,
		TemplateID:   row.TemplateID,
	}
	if len(row.Cc) > 0 {
		e.Cc = row.Cc
	}
	if len(row.Bcc) > 0 {
		e.Bcc = row.Bcc
	}
	if row.SentAt.Valid {
		t := row.SentAt.Time.UTC()
		e.SentAt = &t
	}
	if len(row.TemplateVariables) > 0 {
		if err := json.Unmarshal(row.TemplateVariables, &e.TemplateVariables); err != nil {
			return nil, fmt.Errorf("decode template_variables for %s: %w", e.ID, err)
		}
	}
	return e, nil
}

func toDomainSlice(rows []ScheduledEmail) ([]*scheduling.ScheduledEmail, error) {
	out := make([]*scheduling.ScheduledEmail, 0, len(rows))
	for _, row := range rows {
		e, err := toDomain(row)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}
