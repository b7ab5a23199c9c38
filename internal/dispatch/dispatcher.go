package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sungwon/scheduled-mailer/internal/mailer"
	"github.com/sungwon/scheduled-mailer/internal/metrics"
	"github.com/sungwon/scheduled-mailer/internal/scheduling"
)

// ErrRunInProgress is returned when another dispatcher run holds the lock.
var ErrRunInProgress = errors.New("dispatch run already in progress")

// sender delivers one rendered email.
type sender interface {
	Send(ctx context.Context, msg *mailer.Message) (*mailer.Result, error)
}

// Outcome is the result of one dispatch attempt.
type Outcome string

const (
	OutcomeSent     Outcome = "sent"
	OutcomeRetrying Outcome = "retrying"
	OutcomeFailed   Outcome = "failed"
	// OutcomeConflict means the record changed while it was being sent, so
	// the attempt's write-back was discarded.
	OutcomeConflict Outcome = "conflict"
	// OutcomeError means the write-back itself failed.
	OutcomeError Outcome = "error"
	// OutcomeSkipped means the run was cancelled before the attempt counted.
	OutcomeSkipped Outcome = "skipped"
)

// Summary reports what a run did.
type Summary struct {
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Selected  int           `json:"selected"`
	Sent      int           `json:"sent"`
	Retrying  int           `json:"retrying"`
	Failed    int           `json:"failed"`
	Conflicts int           `json:"conflicts"`
	Errors    int           `json:"errors"`
	Skipped   int           `json:"skipped"`
}

func (s *Summary) add(o Outcome) {
	switch o {
	case OutcomeSent:
		s.Sent++
	case OutcomeRetrying:
		s.Retrying++
	case OutcomeFailed:
		s.Failed++
	case OutcomeConflict:
		s.Conflicts++
	case OutcomeError:
		s.Errors++
	case OutcomeSkipped:
		s.Skipped++
	}
}

// Dispatcher selects due records and attempts delivery for each of them.
type Dispatcher struct {
	store  scheduling.Store
	sender sender
	lock   RunLock
	retry  RetryPolicy
	config Config
	now    func() time.Time
	log    zerolog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

// WithLock sets the run lock. The default is a LocalLock, which only keeps
// runs inside one process from overlapping.
func WithLock(lock RunLock) Option {
	return func(d *Dispatcher) { d.lock = lock }
}

// NewDispatcher creates a Dispatcher. Zero config values take defaults.
func NewDispatcher(store scheduling.Store, s sender, cfg Config, log zerolog.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		store:  store,
		sender: s,
		lock:   NewLocalLock(),
		config: cfg.withDefaults(),
		now:    time.Now,
		log:    log,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run performs one dispatch pass: it selects up to BatchSize due records and
// attempts each one independently. Per-record failures are recorded on the
// record and never abort the batch; only selection and locking errors are
// returned.
func (d *Dispatcher) Run(ctx context.Context) (Summary, error) {
	wallStart := time.Now()
	start := d.now().UTC()
	summary := Summary{StartedAt: start}

	release, err := d.lock.Acquire(ctx)
	if err != nil {
		if errors.Is(err, ErrRunInProgress) {
			metrics.DispatchRunsTotal.WithLabelValues("locked").Inc()
			d.log.Warn().Msg("dispatch run skipped, another run holds the lock")
		} else {
			metrics.DispatchRunsTotal.WithLabelValues("error").Inc()
		}
		return summary, err
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			d.log.Error().Err(err).Msg("failed to release dispatch lock")
		}
	}()

	due, err := d.store.ListDue(ctx, start, d.config.BatchSize)
	if err != nil {
		metrics.DispatchRunsTotal.WithLabelValues("error").Inc()
		return summary, fmt.Errorf("select due emails: %w", err)
	}
	summary.Selected = len(due)
	metrics.DispatchBatchSize.Set(float64(len(due)))

	d.log.Info().
		Int("selected", len(due)).
		Int("batch_size", d.config.BatchSize).
		Time("now", start).
		Msg("dispatch run started")

	outcomes := make(chan Outcome, len(due))
	sem := make(chan struct{}, d.config.Concurrency)
	var wg sync.WaitGroup

	for _, email := range due {
		if ctx.Err() != nil {
			outcomes <- OutcomeSkipped
			continue
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(email *scheduling.ScheduledEmail) {
			defer wg.Done()
			defer func() { <-sem }()
			outcomes <- d.dispatchOne(ctx, email)
		}(email)
	}
	wg.Wait()
	close(outcomes)

	for o := range outcomes {
		summary.add(o)
	}
	summary.Duration = time.Since(wallStart)

	metrics.DispatchRunsTotal.WithLabelValues("completed").Inc()
	metrics.DispatchRunDuration.Observe(summary.Duration.Seconds())

	d.log.Info().
		Int("selected", summary.Selected).
		Int("sent", summary.Sent).
		Int("retrying", summary.Retrying).
		Int("failed", summary.Failed).
		Int("conflicts", summary.Conflicts).
		Int("errors", summary.Errors).
		Dur("duration", summary.Duration).
		Msg("dispatch run completed")

	return summary, nil
}

// dispatchOne claims a record, makes one delivery attempt and writes the
// result back. Every write is a conditional update keyed on the status and
// attempt count the previous step left behind, so a record selected by two
// overlapping runs is sent by at most one of them.
func (d *Dispatcher) dispatchOne(ctx context.Context, email *scheduling.ScheduledEmail) (outcome Outcome) {
	log := d.log.With().Str("email_id", email.ID).Int("attempt", email.Attempts+1).Logger()

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("panic during dispatch")
			outcome = OutcomeError
		}
		metrics.DispatchAttemptsTotal.WithLabelValues(string(outcome)).Inc()
	}()

	// The claim counts the attempt up front. A second run holding the same
	// snapshot fails its claim and never reaches the mail service.
	claimed := d.retry.NextAttempt(email.Attempts, email.MaxAttempts)
	if claimed == email.Attempts {
		return d.failExhausted(ctx, email, log)
	}
	applied, err := d.store.UpdateIf(ctx, email.ID,
		scheduling.Condition{Status: scheduling.StatusPending, Attempts: email.Attempts},
		scheduling.Patch{Attempts: &claimed, UpdatedAt: d.now().UTC()})
	if err != nil {
		if ctx.Err() != nil {
			return OutcomeSkipped
		}
		log.Error().Err(err).Msg("failed to claim email for dispatch")
		return OutcomeError
	}
	if !applied {
		log.Warn().Msg("email claimed or changed by another run, skipping send")
		return OutcomeConflict
	}
	cond := scheduling.Condition{Status: scheduling.StatusPending, Attempts: claimed}

	sendCtx, cancel := context.WithTimeout(ctx, d.config.SendTimeout)
	defer cancel()

	sendStart := time.Now()
	result, sendErr := d.sender.Send(sendCtx, &mailer.Message{
		ID:       email.ID,
		From:     email.From,
		To:       email.To,
		Cc:       email.Cc,
		Bcc:      email.Bcc,
		ReplyTo:  email.ReplyTo,
		Subject:  email.Subject,
		HTMLBody: email.HTMLContent,
	})
	metrics.DispatchSendDuration.Observe(time.Since(sendStart).Seconds())

	// Write-backs must not inherit the send timeout or the run's
	// cancellation: a slow send should still get its result recorded.
	writeCtx := context.WithoutCancel(ctx)
	now := d.now().UTC()

	if sendErr != nil && ctx.Err() != nil {
		// The run itself was cancelled (shutdown); this attempt does not count.
		log.Warn().Err(sendErr).Msg("dispatch cancelled before the attempt completed")
		if _, err := d.store.UpdateIf(writeCtx, email.ID, cond,
			scheduling.Patch{Attempts: &email.Attempts, UpdatedAt: now}); err != nil {
			log.Error().Err(err).Msg("failed to release dispatch claim")
		}
		return OutcomeSkipped
	}
	if sendErr == nil && result == nil {
		result = &mailer.Result{}
	}

	var patch scheduling.Patch
	if sendErr == nil {
		messageID := result.MessageID
		if messageID == "" {
			// A sent record always carries a message ID; fall back to ours.
			messageID = email.ID
			log.Warn().Msg("mail service returned no message id, using record id")
		}
		// Only failures count against the retry budget.
		patch = scheduling.Patch{
			Status:       scheduling.Ptr(scheduling.StatusSent),
			Attempts:     &email.Attempts,
			SentAt:       &now,
			MessageID:    &messageID,
			ErrorMessage: scheduling.Ptr(""),
			UpdatedAt:    now,
		}
		outcome = OutcomeSent
	} else {
		metrics.DispatchSendErrorsTotal.WithLabelValues(mailer.Class(sendErr)).Inc()
		patch = scheduling.Patch{
			ErrorMessage: scheduling.Ptr(sendErr.Error()),
			UpdatedAt:    now,
		}
		outcome = OutcomeRetrying
		if d.retry.Exhausted(claimed, email.MaxAttempts) {
			patch.Status = scheduling.Ptr(scheduling.StatusFailed)
			outcome = OutcomeFailed
		}
	}

	applied, err = d.store.UpdateIf(writeCtx, email.ID, cond, patch)
	if err != nil {
		log.Error().Err(err).Str("outcome", string(outcome)).Msg("failed to record dispatch result")
		return OutcomeError
	}
	if !applied {
		log.Warn().Str("outcome", string(outcome)).Msg("email changed during dispatch, result discarded")
		return OutcomeConflict
	}

	switch outcome {
	case OutcomeSent:
		log.Info().Str("message_id", *patch.MessageID).Msg("scheduled email sent")
	case OutcomeRetrying:
		log.Warn().Err(sendErr).
			Str("error_class", mailer.Class(sendErr)).
			Int("max_attempts", email.MaxAttempts).
			Msg("scheduled email send failed, will retry on next run")
	case OutcomeFailed:
		log.Error().Err(sendErr).
			Str("error_class", mailer.Class(sendErr)).
			Int("max_attempts", email.MaxAttempts).
			Msg("scheduled email failed permanently")
	}
	return outcome
}

// failExhausted settles a pending record that already used its whole budget
// without sending it again.
func (d *Dispatcher) failExhausted(ctx context.Context, email *scheduling.ScheduledEmail, log zerolog.Logger) Outcome {
	applied, err := d.store.UpdateIf(ctx, email.ID,
		scheduling.Condition{Status: scheduling.StatusPending, Attempts: email.Attempts},
		scheduling.Patch{Status: scheduling.Ptr(scheduling.StatusFailed), UpdatedAt: d.now().UTC()})
	if err != nil {
		log.Error().Err(err).Msg("failed to mark exhausted email as failed")
		return OutcomeError
	}
	if !applied {
		return OutcomeConflict
	}
	log.Error().Int("max_attempts", email.MaxAttempts).Msg("pending email had no attempts left, marked failed")
	return OutcomeFailed
}
