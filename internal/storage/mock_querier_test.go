package storage

import (
	"context"

	"github.com/google/uuid"
)

// mockQuerier implements Querier for testing.
type mockQuerier struct {
	createFn   func(ctx context.Context, arg CreateScheduledEmailParams) (uuid.UUID, error)
	getFn      func(ctx context.Context, id uuid.UUID) (ScheduledEmail, error)
	listDueFn  func(ctx context.Context, arg ListDueScheduledEmailsParams) ([]ScheduledEmail, error)
	listFn     func(ctx context.Context, arg ListScheduledEmailsParams) ([]ScheduledEmail, error)
	existsFn   func(ctx context.Context, id uuid.UUID) (bool, error)
	updateFn   func(ctx context.Context, arg UpdateScheduledEmailParams) (int64, error)
	updateIfFn func(ctx context.Context, arg UpdateScheduledEmailIfParams) (int64, error)
}

func (m *mockQuerier) CreateScheduledEmail(ctx context.Context, arg CreateScheduledEmailParams) (uuid.UUID, error) {
	if m.createFn != nil {
		return m.createFn(ctx, arg)
	}
	return uuid.New(), nil
}

func (m *mockQuerier) GetScheduledEmail(ctx context.Context, id uuid.UUID) (ScheduledEmail, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return ScheduledEmail{}, nil
}

func (m *mockQuerier) ListDueScheduledEmails(ctx context.Context, arg ListDueScheduledEmailsParams) ([]ScheduledEmail, error) {
	if m.listDueFn != nil {
		return m.listDueFn(ctx, arg)
	}
	return nil, nil
}

func (m *mockQuerier) ListScheduledEmails(ctx context.Context, arg ListScheduledEmailsParams) ([]ScheduledEmail, error) {
	if m.listFn != nil {
		return m.listFn(ctx, arg)
	}
	return nil, nil
}

func (m *mockQuerier) ScheduledEmailExists(ctx context.Context, id uuid.UUID) (bool, error) {
	if m.existsFn != nil {
		return m.existsFn(ctx, id)
	}
	return true, nil
}

func (m *mockQuerier) UpdateScheduledEmail(ctx context.Context, arg UpdateScheduledEmailParams) (int64, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, arg)
	}
	return 1, nil
}

func (m *mockQuerier) UpdateScheduledEmailIf(ctx context.Context, arg UpdateScheduledEmailIfParams) (int64, error) {
	if m.updateIfFn != nil {
		return m.updateIfFn(ctx, arg)
	}
	return 1, nil
}
