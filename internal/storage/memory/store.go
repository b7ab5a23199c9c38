// Package memory provides an in-process scheduling.Store for development
// and tests. State is lost when the process exits.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sungwon/scheduled-mailer/internal/scheduling"
)

// Store is a mutex-guarded map of scheduled emails.
type Store struct {
	mu     sync.RWMutex
	emails map[string]*scheduling.ScheduledEmail
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{emails: make(map[string]*scheduling.ScheduledEmail)}
}

func (s *Store) Create(_ context.Context, email *scheduling.ScheduledEmail) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := email.Clone()
	rec.ID = uuid.New().String()
	s.emails[rec.ID] = rec
	return rec.ID, nil
}

func (s *Store) Get(_ context.Context, id string) (*scheduling.ScheduledEmail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.emails[id]
	if !ok {
		return nil, fmt.Errorf("id %s: %w", id, scheduling.ErrNotFound)
	}
	return rec.Clone(), nil
}

func (s *Store) Update(_ context.Context, id string, patch scheduling.Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.emails[id]
	if !ok {
		return fmt.Errorf("id %s: %w", id, scheduling.ErrNotFound)
	}
	patch.Apply(rec)
	return nil
}

func (s *Store) UpdateIf(_ context.Context, id string, cond scheduling.Condition, patch scheduling.Patch) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.emails[id]
	if !ok {
		return false, fmt.Errorf("id %s: %w", id, scheduling.ErrNotFound)
	}
	if !cond.Matches(rec) {
		return false, nil
	}
	patch.Apply(rec)
	return true, nil
}

func (s *Store) Query(_ context.Context, filter scheduling.ListFilter) ([]*scheduling.ScheduledEmail, error) {
	s.mu.RLock()
	matched := make([]*scheduling.ScheduledEmail, 0)
	for _, rec := range s.emails {
		if filter.Matches(rec) {
			matched = append(matched, rec.Clone())
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].ScheduledFor.Equal(matched[j].ScheduledFor) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].ScheduledFor.After(matched[j].ScheduledFor)
	})

	if filter.Offset >= len(matched) {
		return []*scheduling.ScheduledEmail{}, nil
	}
	matched = matched[filter.Offset:]
	if filter.Limit > 0 && filter.Limit < len(matched) {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

func (s *Store) ListDue(_ context.Context, now time.Time, limit int) ([]*scheduling.ScheduledEmail, error) {
	s.mu.RLock()
	due := make([]*scheduling.ScheduledEmail, 0)
	for _, rec := range s.emails {
		if rec.Status == scheduling.StatusPending && !rec.ScheduledFor.After(now) {
			due = append(due, rec.Clone())
		}
	}
	s.mu.RUnlock()

	sort.Slice(due, func(i, j int) bool {
		if due[i].ScheduledFor.Equal(due[j].ScheduledFor) {
			return due[i].CreatedAt.Before(due[j].CreatedAt)
		}
		return due[i].ScheduledFor.Before(due[j].ScheduledFor)
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.emails)
}
