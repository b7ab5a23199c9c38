//go:build integration

package storage_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/sungwon/scheduled-mailer/internal/scheduling"
	"github.com/sungwon/scheduled-mailer/internal/storage/storetest"
)

func newEmail(at time.Time, bookingID string) *scheduling.ScheduledEmail {
	return &scheduling.ScheduledEmail{
		To:           "guest@example.com",
		Cc:           []string{"cc@example.com"},
		Subject:      "Reminder",
		HTMLContent:  "<p>hi</p>",
		ScheduledFor: at,
		Status:       scheduling.StatusPending,
		MaxAttempts:  3,
		BookingID:    bookingID,
		CreatedAt:    at.Add(-time.Hour),
		UpdatedAt:    at.Add(-time.Hour),
	}
}

func TestStore_CreateGet(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	at := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	in := newEmail(at, "B1")
	in.TemplateVariables = map[string]any{"term": "first"}
	id, err := s.Create(ctx, in)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := s.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.To != "guest@example.com" || len(got.Cc) != 1 || got.Bcc != nil {
		t.Errorf("unexpected addressing %+v", got)
	}
	if !got.ScheduledFor.Equal(at) || got.Status != scheduling.StatusPending || got.Attempts != 0 {
		t.Errorf("unexpected state %+v", got)
	}
	if got.TemplateVariables["term"] != "first" {
		t.Errorf("unexpected template variables %v", got.TemplateVariables)
	}

	if _, err := s.Get(ctx, uuid.NewString()); !errors.Is(err, scheduling.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_ConditionalUpdate(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	at := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	id, _ := s.Create(ctx, newEmail(at, ""))

	fail := scheduling.Patch{
		Attempts:     scheduling.Ptr(1),
		ErrorMessage: scheduling.Ptr("timeout"),
		UpdatedAt:    at,
	}
	applied, err := s.UpdateIf(ctx, id, scheduling.Condition{Status: scheduling.StatusPending, Attempts: 0}, fail)
	if err != nil || !applied {
		t.Fatalf("expected first write to apply: %v %v", applied, err)
	}

	// Replaying the same condition must lose.
	applied, err = s.UpdateIf(ctx, id, scheduling.Condition{Status: scheduling.StatusPending, Attempts: 0}, fail)
	if err != nil || applied {
		t.Fatalf("expected stale write to be rejected: %v %v", applied, err)
	}

	sentAt := at.Add(time.Minute)
	applied, err = s.UpdateIf(ctx, id, scheduling.Condition{Status: scheduling.StatusPending, Attempts: 1}, scheduling.Patch{
		Status:       scheduling.Ptr(scheduling.StatusSent),
		SentAt:       &sentAt,
		MessageID:    scheduling.Ptr("m1"),
		ErrorMessage: scheduling.Ptr(""),
		UpdatedAt:    sentAt,
	})
	if err != nil || !applied {
		t.Fatalf("expected send write to apply: %v %v", applied, err)
	}

	got, _ := s.Get(ctx, id)
	if got.Status != scheduling.StatusSent || got.Attempts != 1 || got.MessageID != "m1" || got.ErrorMessage != "" {
		t.Errorf("unexpected record %+v", got)
	}
	if !got.ScheduledFor.Equal(at) {
		t.Error("scheduled_for must be kept when not patched")
	}

	if _, err := s.UpdateIf(ctx, uuid.NewString(), scheduling.Condition{}, fail); !errors.Is(err, scheduling.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_QueryAndListDue(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	now := time.Date(2026, 5, 2, 9, 0, 0, 0, time.UTC)

	for i := range 4 {
		_, _ = s.Create(ctx, newEmail(now.Add(time.Duration(i-2)*time.Hour), "B1"))
	}
	cancelled := newEmail(now.Add(-5*time.Hour), "B2")
	cancelled.Status = scheduling.StatusCancelled
	_, _ = s.Create(ctx, cancelled)

	due, err := s.ListDue(ctx, now, 10)
	if err != nil {
		t.Fatalf("ListDue failed: %v", err)
	}
	// Hours -2, -1 and 0 are due; the cancelled one is not.
	if len(due) != 3 {
		t.Fatalf("expected 3 due, got %d", len(due))
	}
	if !due[0].ScheduledFor.Equal(now.Add(-2 * time.Hour)) {
		t.Errorf("expected oldest first, got %v", due[0].ScheduledFor)
	}

	capped, _ := s.ListDue(ctx, now, 1)
	if len(capped) != 1 {
		t.Errorf("expected limit 1, got %d", len(capped))
	}

	page, err := s.Query(ctx, scheduling.ListFilter{BookingID: "B1", Limit: 2, Offset: 1})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(page) != 2 || !page[0].ScheduledFor.Equal(now) {
		t.Errorf("unexpected page %v", page)
	}

	all, _ := s.Query(ctx, scheduling.ListFilter{Status: scheduling.StatusCancelled})
	if len(all) != 1 || all[0].BookingID != "B2" {
		t.Errorf("unexpected status filter result %v", all)
	}
}

func TestStore_Conformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) scheduling.Store { return setupStore(t) })
}
