// Package sqlite is a single-file scheduling.Store for single-node
// deployments, built on the pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/sungwon/scheduled-mailer/internal/metrics"
	"github.com/sungwon/scheduled-mailer/internal/scheduling"
)

// timeLayout is fixed-width so text comparison matches time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const schema = `
CREATE TABLE IF NOT EXISTS scheduled_emails (
    id                 TEXT PRIMARY KEY,
    to_address         TEXT NOT NULL,
    cc                 TEXT NOT NULL DEFAULT '[]',
    bcc                TEXT NOT NULL DEFAULT '[]',
    from_address       TEXT NOT NULL DEFAULT '',
    reply_to           TEXT NOT NULL DEFAULT '',
    subject            TEXT NOT NULL,
    html_content       TEXT NOT NULL,
    scheduled_for      TEXT NOT NULL,
    status             TEXT NOT NULL DEFAULT 'pending'
                       CHECK (status IN ('pending', 'sent', 'failed', 'cancelled')),
    attempts           INTEGER NOT NULL DEFAULT 0,
    max_attempts       INTEGER NOT NULL DEFAULT 3,
    error_message      TEXT,
    sent_at            TEXT,
    message_id         TEXT,
    email_type         TEXT NOT NULL DEFAULT '',
    booking_id         TEXT NOT NULL DEFAULT '',
    template_id        TEXT NOT NULL DEFAULT '',
    template_variables TEXT,
    created_at         TEXT NOT NULL,
    updated_at         TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_scheduled_emails_due ON scheduled_emails (status, scheduled_for, created_at);
CREATE INDEX IF NOT EXISTS idx_scheduled_emails_booking ON scheduled_emails (booking_id);
`

const columns = `id, to_address, cc, bcc, from_address, reply_to, subject, html_content,
	scheduled_for, status, attempts, max_attempts, error_message, sent_at, message_id,
	email_type, booking_id, template_id, template_variables, created_at, updated_at`

// Store is a SQLite-backed scheduling.Store.
type Store struct {
	db *sql.DB
}

var _ scheduling.Store = (*Store)(nil)

// Open opens (or creates) the database at path and applies the schema. Use
// ":memory:" for a throwaway database.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if path == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func observe(query string, start time.Time, err error) {
	metrics.DBQueryDuration.WithLabelValues(query).Observe(time.Since(start).Seconds())
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		metrics.DBErrorsTotal.WithLabelValues(query).Inc()
	}
}

func (s *Store) Create(ctx context.Context, email *scheduling.ScheduledEmail) (string, error) {
	cc, err := json.Marshal(nonNil(email.Cc))
	if err != nil {
		return "", fmt.Errorf("encode cc: %w", err)
	}
	bcc, err := json.Marshal(nonNil(email.Bcc))
	if err != nil {
		return "", fmt.Errorf("encode bcc: %w", err)
	}
	var vars sql.NullString
	if len(email.TemplateVariables) > 0 {
		b, err := json.Marshal(email.TemplateVariables)
		if err != nil {
			return "", fmt.Errorf("%w: template_variables: %v", scheduling.ErrInvalidArgument, err)
		}
		vars = sql.NullString{String: string(b), Valid: true}
	}

	id := uuid.New().String()
	start := time.Now()
	_, err = s.db.ExecContext(ctx, `INSERT INTO scheduled_emails (`+columns+`)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		id,
		email.To,
		string(cc),
		string(bcc),
		email.From,
		email.ReplyTo,
		email.Subject,
		email.HTMLContent,
		formatTime(email.ScheduledFor),
		string(email.Status),
		email.Attempts,
		email.MaxAttempts,
		nullString(email.ErrorMessage),
		nullTime(email.SentAt),
		nullString(email.MessageID),
		email.EmailType,
		email.BookingID,
		email.TemplateID,
		vars,
		formatTime(email.CreatedAt),
		formatTime(email.UpdatedAt),
	)
	observe("create_scheduled_email", start, err)
	if err != nil {
		return "", fmt.Errorf("insert scheduled email: %w", err)
	}
	return id, nil
}

func (s *Store) Get(ctx context.Context, id string) (*scheduling.ScheduledEmail, error) {
	start := time.Now()
	row := s.db.QueryRowContext(ctx, `SELECT `+columns+` FROM scheduled_emails WHERE id = ?`, id)
	e, err := scanEmail(row)
	observe("get_scheduled_email", start, err)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("id %s: %w", id, scheduling.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("select scheduled email: %w", err)
	}
	return e, nil
}

func (s *Store) Update(ctx context.Context, id string, patch scheduling.Patch) error {
	query, args := updateStatement(id, patch, nil)
	start := time.Now()
	res, err := s.db.ExecContext(ctx, query, args...)
	observe("update_scheduled_email", start, err)
	if err != nil {
		return fmt.Errorf("update scheduled email: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update scheduled email: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("id %s: %w", id, scheduling.ErrNotFound)
	}
	return nil
}

func (s *Store) UpdateIf(ctx context.Context, id string, cond scheduling.Condition, patch scheduling.Patch) (bool, error) {
	query, args := updateStatement(id, patch, &cond)
	start := time.Now()
	res, err := s.db.ExecContext(ctx, query, args...)
	observe("update_scheduled_email_if", start, err)
	if err != nil {
		return false, fmt.Errorf("conditional update scheduled email: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("conditional update scheduled email: %w", err)
	}
	if n > 0 {
		return true, nil
	}

	var exists bool
	if err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM scheduled_emails WHERE id = ?)`, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("check scheduled email: %w", err)
	}
	if !exists {
		return false, fmt.Errorf("id %s: %w", id, scheduling.ErrNotFound)
	}
	return false, nil
}

// updateStatement builds the patch UPDATE, optionally guarded by cond. Nil
// patch fields bind NULL and keep the column.
func updateStatement(id string, p scheduling.Patch, cond *scheduling.Condition) (string, []any) {
	var (
		status, scheduledFor, errMsg, sentAt, messageID sql.NullString
		attempts                                        sql.NullInt64
	)
	if p.Status != nil {
		status = sql.NullString{String: string(*p.Status), Valid: true}
	}
	if p.ScheduledFor != nil {
		scheduledFor = sql.NullString{String: formatTime(*p.ScheduledFor), Valid: true}
	}
	if p.Attempts != nil {
		attempts = sql.NullInt64{Int64: int64(*p.Attempts), Valid: true}
	}
	if p.ErrorMessage != nil {
		errMsg = sql.NullString{String: *p.ErrorMessage, Valid: true}
	}
	if p.SentAt != nil {
		sentAt = sql.NullString{String: formatTime(*p.SentAt), Valid: true}
	}
	if p.MessageID != nil {
		messageID = sql.NullString{String: *p.MessageID, Valid: true}
	}

	var b strings.Builder
	b.WriteString(`UPDATE scheduled_emails SET
	status        = COALESCE(?, status),
	scheduled_for = COALESCE(?, scheduled_for),
	attempts      = COALESCE(?, attempts),
	error_message = CASE WHEN ? IS NULL THEN error_message ELSE NULLIF(?, '') END,
	sent_at       = COALESCE(?, sent_at),
	message_id    = COALESCE(?, message_id),
	updated_at    = ?
WHERE id = ?`)
	args := []any{status, scheduledFor, attempts, errMsg, errMsg, sentAt, messageID, formatTime(p.UpdatedAt), id}
	if cond != nil {
		b.WriteString(` AND status = ? AND attempts = ?`)
		args = append(args, string(cond.Status), cond.Attempts)
	}
	return b.String(), args
}

func (s *Store) Query(ctx context.Context, filter scheduling.ListFilter) ([]*scheduling.ScheduledEmail, error) {
	var (
		where []string
		args  []any
	)
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.EmailType != "" {
		where = append(where, "email_type = ?")
		args = append(args, filter.EmailType)
	}
	if filter.BookingID != "" {
		where = append(where, "booking_id = ?")
		args = append(args, filter.BookingID)
	}

	query := `SELECT ` + columns + ` FROM scheduled_emails`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY scheduled_for DESC, id DESC LIMIT ? OFFSET ?`
	limit := -1
	if filter.Limit > 0 {
		limit = filter.Limit
	}
	args = append(args, limit, filter.Offset)

	start := time.Now()
	rows, err := s.db.QueryContext(ctx, query, args...)
	observe("list_scheduled_emails", start, err)
	if err != nil {
		return nil, fmt.Errorf("list scheduled emails: %w", err)
	}
	return scanAll(rows)
}

func (s *Store) ListDue(ctx context.Context, now time.Time, limit int) ([]*scheduling.ScheduledEmail, error) {
	if limit <= 0 {
		limit = -1
	}
	start := time.Now()
	rows, err := s.db.QueryContext(ctx, `SELECT `+columns+` FROM scheduled_emails
		WHERE status = 'pending' AND scheduled_for <= ?
		ORDER BY scheduled_for ASC, created_at ASC
		LIMIT ?`, formatTime(now), limit)
	observe("list_due_scheduled_emails", start, err)
	if err != nil {
		return nil, fmt.Errorf("list due scheduled emails: %w", err)
	}
	return scanAll(rows)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEmail(row scanner) (*scheduling.ScheduledEmail, error) {
	var (
		e                         scheduling.ScheduledEmail
		cc, bcc                   string
		scheduledFor, createdAt   string
		updatedAt, status         string
		errMsg, sentAt, messageID sql.NullString
		varsJSON                  sql.NullString
	)
	if err := row.Scan(
		&e.ID,
		&e.To,
		&cc,
		&bcc,
		&e.From,
		&e.ReplyTo,
		&e.Subject,
		&e.HTMLContent,
		&scheduledFor,
		&status,
		&e.Attempts,
		&e.MaxAttempts,
		&errMsg,
		&sentAt,
		&messageID,
		&e.EmailType,
		&e.BookingID,
		&e.TemplateID,
		&varsJSON,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}

	e.Status = scheduling.Status(status)
	e.ErrorMessage = errMsg.String
	e.MessageID = messageID.String

	var err error
	if e.ScheduledFor, err = parseTime(scheduledFor); err != nil {
		return nil, err
	}
	if e.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if e.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	if sentAt.Valid {
		t, err := parseTime(sentAt.String)
		if err != nil {
			return nil, err
		}
		e.SentAt = &t
	}
	if err := json.Unmarshal([]byte(cc), &e.Cc); err != nil {
		return nil, fmt.Errorf("decode cc: %w", err)
	}
	if err := json.Unmarshal([]byte(bcc), &e.Bcc); err != nil {
		return nil, fmt.Errorf("decode bcc: %w", err)
	}
	if len(e.Cc) == 0 {
		e.Cc = nil
	}
	if len(e.Bcc) == 0 {
		e.Bcc = nil
	}
	if varsJSON.Valid {
		if err := json.Unmarshal([]byte(varsJSON.String), &e.TemplateVariables); err != nil {
			return nil, fmt.Errorf("decode template_variables: %w", err)
		}
	}
	return &e, nil
}

func scanAll(rows *sql.Rows) ([]*scheduling.ScheduledEmail, error) {
	defer rows.Close()
	out := make([]*scheduling.ScheduledEmail, 0)
	for rows.Next() {
		e, err := scanEmail(rows)
		if err != nil {
			return nil, fmt.Errorf("scan scheduled email: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scheduled emails: %w", err)
	}
	return out, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored time %q: %w", s, err)
	}
	return t, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
