// Package storetest holds behaviour tests shared by every scheduling.Store
// backend.
package storetest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sungwon/scheduled-mailer/internal/scheduling"
)

var base = time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

func email(at time.Time) *scheduling.ScheduledEmail {
	return &scheduling.ScheduledEmail{
		To:           "guest@example.com",
		Subject:      "Reminder",
		HTMLContent:  "<p>hi</p>",
		ScheduledFor: at,
		Status:       scheduling.StatusPending,
		MaxAttempts:  3,
		CreatedAt:    base.Add(-24 * time.Hour),
		UpdatedAt:    base.Add(-24 * time.Hour),
	}
}

// Run exercises a Store. newStore must return an empty store each call.
func Run(t *testing.T, newStore func(t *testing.T) scheduling.Store) {
	t.Run("RoundTrip", func(t *testing.T) { testRoundTrip(t, newStore(t)) })
	t.Run("NotFound", func(t *testing.T) { testNotFound(t, newStore(t)) })
	t.Run("Patch", func(t *testing.T) { testPatch(t, newStore(t)) })
	t.Run("ConditionalUpdate", func(t *testing.T) { testConditionalUpdate(t, newStore(t)) })
	t.Run("ConcurrentConditionalUpdate", func(t *testing.T) { testConcurrentConditionalUpdate(t, newStore(t)) })
	t.Run("ListDue", func(t *testing.T) { testListDue(t, newStore(t)) })
	t.Run("Query", func(t *testing.T) { testQuery(t, newStore(t)) })
}

func testRoundTrip(t *testing.T, s scheduling.Store) {
	ctx := context.Background()
	in := email(base)
	in.Cc = []string{"cc@example.com"}
	in.Bcc = []string{"bcc@example.com"}
	in.From = "from@example.com"
	in.ReplyTo = "reply@example.com"
	in.EmailType = "payment_reminder"
	in.BookingID = "B1"
	in.TemplateID = "tpl"
	in.TemplateVariables = map[string]any{"name": "Kim"}

	id, err := s.Create(ctx, in)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	got, err := s.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.ID != id || got.To != in.To || got.From != in.From || got.ReplyTo != in.ReplyTo {
		t.Errorf("addressing mismatch: %+v", got)
	}
	if len(got.Cc) != 1 || got.Cc[0] != "cc@example.com" || len(got.Bcc) != 1 {
		t.Errorf("cc/bcc mismatch: %v %v", got.Cc, got.Bcc)
	}
	if !got.ScheduledFor.Equal(base) || got.Status != scheduling.StatusPending || got.MaxAttempts != 3 {
		t.Errorf("state mismatch: %+v", got)
	}
	if got.EmailType != "payment_reminder" || got.BookingID != "B1" || got.TemplateID != "tpl" {
		t.Errorf("metadata mismatch: %+v", got)
	}
	if got.TemplateVariables["name"] != "Kim" {
		t.Errorf("template variables mismatch: %v", got.TemplateVariables)
	}
	if got.SentAt != nil || got.MessageID != "" || got.ErrorMessage != "" {
		t.Errorf("expected empty delivery fields: %+v", got)
	}
}

func testNotFound(t *testing.T, s scheduling.Store) {
	ctx := context.Background()
	const id = "00000000-0000-0000-0000-000000000000"
	if _, err := s.Get(ctx, id); !errors.Is(err, scheduling.ErrNotFound) {
		t.Errorf("Get: expected ErrNotFound, got %v", err)
	}
	if err := s.Update(ctx, id, scheduling.Patch{UpdatedAt: base}); !errors.Is(err, scheduling.ErrNotFound) {
		t.Errorf("Update: expected ErrNotFound, got %v", err)
	}
	if _, err := s.UpdateIf(ctx, id, scheduling.Condition{Status: scheduling.StatusPending}, scheduling.Patch{UpdatedAt: base}); !errors.Is(err, scheduling.ErrNotFound) {
		t.Errorf("UpdateIf: expected ErrNotFound, got %v", err)
	}
}

func testPatch(t *testing.T, s scheduling.Store) {
	ctx := context.Background()
	id, _ := s.Create(ctx, email(base))

	later := base.Add(time.Hour)
	if err := s.Update(ctx, id, scheduling.Patch{
		Attempts:     scheduling.Ptr(2),
		ErrorMessage: scheduling.Ptr("mailbox full"),
		UpdatedAt:    later,
	}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	got, _ := s.Get(ctx, id)
	if got.Attempts != 2 || got.ErrorMessage != "mailbox full" || !got.UpdatedAt.Equal(later) {
		t.Errorf("patch not applied: %+v", got)
	}
	if !got.ScheduledFor.Equal(base) || got.Status != scheduling.StatusPending {
		t.Errorf("unpatched fields changed: %+v", got)
	}

	// An empty error message clears the field.
	_ = s.Update(ctx, id, scheduling.Patch{ErrorMessage: scheduling.Ptr(""), UpdatedAt: later})
	got, _ = s.Get(ctx, id)
	if got.ErrorMessage != "" {
		t.Errorf("expected error message cleared, got %q", got.ErrorMessage)
	}
}

func testConditionalUpdate(t *testing.T, s scheduling.Store) {
	ctx := context.Background()
	id, _ := s.Create(ctx, email(base))

	sentAt := base.Add(time.Minute)
	sent := scheduling.Patch{
		Status:    scheduling.Ptr(scheduling.StatusSent),
		SentAt:    &sentAt,
		MessageID: scheduling.Ptr("m1"),
		UpdatedAt: sentAt,
	}

	applied, err := s.UpdateIf(ctx, id, scheduling.Condition{Status: scheduling.StatusPending, Attempts: 1}, sent)
	if err != nil || applied {
		t.Fatalf("expected attempt mismatch to reject: %v %v", applied, err)
	}
	applied, err = s.UpdateIf(ctx, id, scheduling.Condition{Status: scheduling.StatusPending, Attempts: 0}, sent)
	if err != nil || !applied {
		t.Fatalf("expected matching condition to apply: %v %v", applied, err)
	}
	applied, _ = s.UpdateIf(ctx, id, scheduling.Condition{Status: scheduling.StatusPending, Attempts: 0}, sent)
	if applied {
		t.Fatal("expected status mismatch to reject")
	}

	got, _ := s.Get(ctx, id)
	if got.Status != scheduling.StatusSent || got.SentAt == nil || !got.SentAt.Equal(sentAt) || got.MessageID != "m1" {
		t.Errorf("unexpected record: %+v", got)
	}
}

func testConcurrentConditionalUpdate(t *testing.T, s scheduling.Store) {
	ctx := context.Background()
	id, _ := s.Create(ctx, email(base))

	var wins atomic.Int32
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			applied, err := s.UpdateIf(ctx, id,
				scheduling.Condition{Status: scheduling.StatusPending, Attempts: 0},
				scheduling.Patch{Attempts: scheduling.Ptr(1), UpdatedAt: base})
			if err != nil {
				t.Errorf("UpdateIf failed: %v", err)
				return
			}
			if applied {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	if wins.Load() != 1 {
		t.Errorf("expected exactly one winner, got %d", wins.Load())
	}
}

func testListDue(t *testing.T, s scheduling.Store) {
	ctx := context.Background()
	now := base

	for _, offset := range []time.Duration{-3 * time.Hour, -time.Hour, 0, time.Second, time.Hour} {
		if _, err := s.Create(ctx, email(now.Add(offset))); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}
	for _, st := range []scheduling.Status{scheduling.StatusSent, scheduling.StatusFailed, scheduling.StatusCancelled} {
		e := email(now.Add(-5 * time.Hour))
		e.Status = st
		_, _ = s.Create(ctx, e)
	}

	due, err := s.ListDue(ctx, now, 10)
	if err != nil {
		t.Fatalf("ListDue failed: %v", err)
	}
	if len(due) != 3 {
		t.Fatalf("expected 3 due, got %d", len(due))
	}
	for i := 1; i < len(due); i++ {
		if due[i].ScheduledFor.Before(due[i-1].ScheduledFor) {
			t.Errorf("due records out of order at %d", i)
		}
	}
	for _, e := range due {
		if e.Status != scheduling.StatusPending || e.ScheduledFor.After(now) {
			t.Errorf("not due: %+v", e)
		}
	}

	capped, _ := s.ListDue(ctx, now, 2)
	if len(capped) != 2 || !capped[0].ScheduledFor.Equal(now.Add(-3*time.Hour)) {
		t.Errorf("expected the 2 oldest, got %d", len(capped))
	}

	// A non-positive limit means no limit in every backend.
	for _, limit := range []int{0, -1} {
		all, err := s.ListDue(ctx, now, limit)
		if err != nil {
			t.Fatalf("ListDue(limit=%d) failed: %v", limit, err)
		}
		if len(all) != 3 {
			t.Errorf("limit %d: expected all 3 due, got %d", limit, len(all))
		}
	}
}

func testQuery(t *testing.T, s scheduling.Store) {
	ctx := context.Background()
	for i := range 5 {
		e := email(base.Add(time.Duration(i) * time.Hour))
		e.BookingID = "B1"
		e.EmailType = "payment_reminder"
		if i == 4 {
			e.BookingID = "B2"
			e.EmailType = "welcome"
			e.Status = scheduling.StatusSent
		}
		_, _ = s.Create(ctx, e)
	}

	all, err := s.Query(ctx, scheduling.ListFilter{})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(all) != 5 || !all[0].ScheduledFor.Equal(base.Add(4*time.Hour)) {
		t.Errorf("expected 5 newest first, got %d", len(all))
	}

	page, _ := s.Query(ctx, scheduling.ListFilter{BookingID: "B1", Limit: 2, Offset: 1})
	if len(page) != 2 || !page[0].ScheduledFor.Equal(base.Add(2*time.Hour)) || !page[1].ScheduledFor.Equal(base.Add(time.Hour)) {
		t.Errorf("unexpected page: %v", page)
	}

	sent, _ := s.Query(ctx, scheduling.ListFilter{Status: scheduling.StatusSent})
	if len(sent) != 1 || sent[0].EmailType != "welcome" {
		t.Errorf("unexpected status filter: %v", sent)
	}

	typed, _ := s.Query(ctx, scheduling.ListFilter{EmailType: "payment_reminder", Status: scheduling.StatusPending})
	if len(typed) != 4 {
		t.Errorf("expected 4 pending reminders, got %d", len(typed))
	}

	none, _ := s.Query(ctx, scheduling.ListFilter{Offset: 50})
	if len(none) != 0 {
		t.Errorf("expected empty page, got %d", len(none))
	}
}
