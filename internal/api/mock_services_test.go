package api

import (
	"context"

	"github.com/sungwon/scheduled-mailer/internal/dispatch"
	"github.com/sungwon/scheduled-mailer/internal/reminder"
	"github.com/sungwon/scheduled-mailer/internal/scheduling"
)

// mockEmails implements emailService with overridable functions.
type mockEmails struct {
	createFn     func(ctx context.Context, req scheduling.CreateRequest) (*scheduling.CreateResult, error)
	getFn        func(ctx context.Context, id string) (*scheduling.ScheduledEmail, error)
	cancelFn     func(ctx context.Context, id string) error
	rescheduleFn func(ctx context.Context, id string, at string) (*scheduling.ScheduledEmail, error)
	listFn       func(ctx context.Context, filter scheduling.ListFilter) ([]*scheduling.ScheduledEmail, error)
}

func (m *mockEmails) Create(ctx context.Context, req scheduling.CreateRequest) (*scheduling.CreateResult, error) {
	if m.createFn != nil {
		return m.createFn(ctx, req)
	}
	return nil, scheduling.ErrInvalidArgument
}

func (m *mockEmails) Get(ctx context.Context, id string) (*scheduling.ScheduledEmail, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, scheduling.ErrNotFound
}

func (m *mockEmails) Cancel(ctx context.Context, id string) error {
	if m.cancelFn != nil {
		return m.cancelFn(ctx, id)
	}
	return scheduling.ErrNotFound
}

func (m *mockEmails) Reschedule(ctx context.Context, id string, at string) (*scheduling.ScheduledEmail, error) {
	if m.rescheduleFn != nil {
		return m.rescheduleFn(ctx, id, at)
	}
	return nil, scheduling.ErrNotFound
}

func (m *mockEmails) List(ctx context.Context, filter scheduling.ListFilter) ([]*scheduling.ScheduledEmail, error) {
	if m.listFn != nil {
		return m.listFn(ctx, filter)
	}
	return nil, nil
}

type mockRunner struct {
	runFn func(ctx context.Context) (dispatch.Summary, error)
}

func (m *mockRunner) Run(ctx context.Context) (dispatch.Summary, error) {
	return m.runFn(ctx)
}

type mockPlanner struct {
	planFn          func(ctx context.Context, b reminder.Booking) (*reminder.PlanResult, error)
	markPaidFn      func(ctx context.Context, bookingID, term string) (int, error)
	cancelBookingFn func(ctx context.Context, bookingID string) (int, error)
}

func (m *mockPlanner) Plan(ctx context.Context, b reminder.Booking) (*reminder.PlanResult, error) {
	return m.planFn(ctx, b)
}

func (m *mockPlanner) MarkPaid(ctx context.Context, bookingID, term string) (int, error) {
	return m.markPaidFn(ctx, bookingID, term)
}

func (m *mockPlanner) CancelBooking(ctx context.Context, bookingID string) (int, error) {
	return m.cancelBookingFn(ctx, bookingID)
}
