package scheduling

import (
	"context"
	"time"
)

// Store persists scheduled email records.
//
// Implementations assign IDs on Create and must return ErrNotFound (wrapped
// or bare) from Get and Update when the id does not exist. Records handed
// out by a Store are copies; mutating them does not change stored state.
type Store interface {
	// Create inserts the record and returns its generated ID.
	Create(ctx context.Context, email *ScheduledEmail) (string, error)
	// Get returns the record with the given ID.
	Get(ctx context.Context, id string) (*ScheduledEmail, error)
	// Update applies the patch unconditionally.
	Update(ctx context.Context, id string, patch Patch) error
	// UpdateIf applies the patch only if the stored record matches cond.
	// It reports whether the write was applied. A missing id is ErrNotFound.
	UpdateIf(ctx context.Context, id string, cond Condition, patch Patch) (bool, error)
	// Query returns records matching the filter ordered by ScheduledFor
	// descending, honoring Limit and Offset.
	Query(ctx context.Context, filter ListFilter) ([]*ScheduledEmail, error)
	// ListDue returns pending records with ScheduledFor <= now, oldest
	// first, at most limit of them.
	ListDue(ctx context.Context, now time.Time, limit int) ([]*ScheduledEmail, error)
}
