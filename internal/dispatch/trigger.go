package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// runner is satisfied by *Dispatcher.
type runner interface {
	Run(ctx context.Context) (Summary, error)
}

// Trigger fires the dispatcher on a cron schedule and on demand. Both paths
// go through the same Run, so a manual run behaves exactly like a scheduled
// one.
type Trigger struct {
	runner   runner
	schedule string
	spec     cron.Schedule
	location *time.Location
	log      zerolog.Logger

	mu     sync.Mutex
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
}

// NewTrigger validates the schedule and timezone and returns an unstarted
// Trigger.
func NewTrigger(r runner, schedule, timezone string, log zerolog.Logger) (*Trigger, error) {
	spec, err := cron.ParseStandard(schedule)
	if err != nil {
		return nil, fmt.Errorf("invalid dispatch schedule %q: %w", schedule, err)
	}
	loc := time.UTC
	if timezone != "" {
		l, err := time.LoadLocation(timezone)
		if err != nil {
			return nil, fmt.Errorf("invalid dispatch timezone %q: %w", timezone, err)
		}
		loc = l
	}
	return &Trigger{
		runner:   r,
		schedule: schedule,
		spec:     spec,
		location: loc,
		log:      log,
	}, nil
}

// Start registers the scheduled job and starts the cron loop. Runs use a
// context derived from ctx, cancelled by Stop.
func (t *Trigger) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cron != nil {
		return errors.New("trigger already started")
	}

	t.ctx, t.cancel = context.WithCancel(ctx)
	c := cron.New(cron.WithLocation(t.location))
	if _, err := c.AddFunc(t.schedule, func() {
		if _, err := t.runner.Run(t.ctx); err != nil && !errors.Is(err, ErrRunInProgress) {
			t.log.Error().Err(err).Msg("scheduled dispatch run failed")
		}
	}); err != nil {
		t.cancel()
		return fmt.Errorf("register dispatch job: %w", err)
	}
	t.cron = c
	c.Start()

	t.log.Info().
		Str("schedule", t.schedule).
		Str("timezone", t.location.String()).
		Time("next_run", t.spec.Next(time.Now().In(t.location))).
		Msg("dispatch trigger started")
	return nil
}

// RunNow performs a synchronous run.
func (t *Trigger) RunNow(ctx context.Context) (Summary, error) {
	t.log.Info().Msg("manual dispatch run requested")
	return t.runner.Run(ctx)
}

// Next returns the first scheduled run strictly after from.
func (t *Trigger) Next(from time.Time) time.Time {
	return t.spec.Next(from.In(t.location))
}

// Stop halts the schedule and waits up to ctx for an in-flight run.
func (t *Trigger) Stop(ctx context.Context) {
	t.mu.Lock()
	c := t.cron
	t.cron = nil
	t.mu.Unlock()

	if c == nil {
		return
	}

	done := c.Stop()
	select {
	case <-done.Done():
		t.log.Info().Msg("dispatch trigger stopped gracefully")
	case <-ctx.Done():
		t.log.Warn().Msg("dispatch trigger shutdown timed out, cancelling run")
	}
	t.cancel()
}
