package service

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/adilbekov/autoreel/internal/models"
)

const persistAttempts = 3

// RunLedger owns one automation run's lifecycle: creation, counter
// accumulation, best-effort persistence and the final verdict. Every ledger
// operation is fire-and-forget with respect to its caller: the audit trail is
// never allowed to abort the automation cycle, so persistence failures are
// retried a few times, logged and then discarded.
type RunLedger struct {
	store   RunStore
	logger  *zap.Logger
	now     func() time.Time
	backoff time.Duration

	mu       sync.Mutex
	run      models.AutomationRun
	finished bool
}

// OpenLedger creates and persists a new run with all counters zero and status
// running. The ledger is returned even when the initial write fails; the run
// then exists in memory only, which is logged.
func OpenLedger(store RunStore, logger *zap.Logger, timezone string, channelsPlanned int, schedulerInvocationAt *time.Time) *RunLedger {
	l := &RunLedger{
		store:   store,
		logger:  logger,
		now:     time.Now,
		backoff: 200 * time.Millisecond,
	}

	l.run = models.AutomationRun{
		ID:                    uuid.NewString(),
		StartedAt:             l.now(),
		Status:                models.StatusRunning,
		SchedulerInvocationAt: schedulerInvocationAt,
		ChannelsPlanned:       channelsPlanned,
		Timezone:              timezone,
	}

	run := l.run
	l.persist("create run", func() error {
		return l.store.CreateRun(&run)
	})

	return l
}

// RunID returns the id of the run this ledger is bound to.
func (l *RunLedger) RunID() string {
	return l.run.ID
}

// Run returns a snapshot of the run's current in-memory state.
func (l *RunLedger) Run() models.AutomationRun {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.run
}

// EventOption attaches optional context to a recorded event.
type EventOption func(*models.RunEvent)

// WithChannel tags the event with the channel it concerns.
func WithChannel(id uint, name string) EventOption {
	return func(e *models.RunEvent) {
		e.ChannelID = &id
		e.ChannelName = name
	}
}

// WithDetails attaches a free-form diagnostic payload to the event.
func WithDetails(details map[string]any) EventOption {
	return func(e *models.RunEvent) {
		if detailsBytes, err := json.Marshal(details); err == nil {
			e.Details = string(detailsBytes)
		}
	}
}

// RecordEvent appends an audit event stamped with the current time and the
// bound run id. An error-level event also bumps the in-memory error tally and
// captures the message as the run's last error. Never returns an error.
func (l *RunLedger) RecordEvent(level, step, message string, options ...EventOption) {
	event := &models.RunEvent{
		RunID:     l.run.ID,
		CreatedAt: l.now(),
		Level:     level,
		Step:      step,
		Message:   message,
	}
	for _, option := range options {
		option(event)
	}

	if level == models.LevelError {
		l.mu.Lock()
		l.run.ErrorsCount++
		l.run.LastErrorMessage = message
		l.mu.Unlock()
	}

	l.persist("append event", func() error {
		return l.store.AppendEvent(event)
	})
}

// IncrementJobsCreated bumps the in-memory job counter. Nothing is persisted
// until UpdateRun or Finish.
func (l *RunLedger) IncrementJobsCreated() {
	l.mu.Lock()
	l.run.JobsCreated++
	l.mu.Unlock()
}

// IncrementChannelsProcessed bumps the in-memory processed-channel counter.
func (l *RunLedger) IncrementChannelsProcessed() {
	l.mu.Lock()
	l.run.ChannelsProcessed++
	l.mu.Unlock()
}

// UpdateRun merge-patches the persisted run record, best effort.
func (l *RunLedger) UpdateRun(patch map[string]any) {
	l.persist("update run", func() error {
		return l.store.UpdateRun(l.run.ID, patch)
	})
}

// Finish computes the terminal verdict from the accumulated counters and
// persists it together with the finish time. Safe to call once; subsequent
// calls are no-ops. Events recorded after Finish still persist but the stored
// status is never touched again.
func (l *RunLedger) Finish() {
	l.mu.Lock()
	if l.finished {
		l.mu.Unlock()
		return
	}
	l.finished = true

	finishedAt := l.now()
	l.run.FinishedAt = &finishedAt
	l.run.Status = models.ComputeStatus(l.run.ErrorsCount, l.run.JobsCreated, l.run.ChannelsProcessed)
	run := l.run
	l.mu.Unlock()

	// The in-memory tally is authoritative for the verdict, but drift against
	// the persisted event log means an increment was skipped or a write lost.
	if persisted, err := l.store.CountEventsByLevel(run.ID, models.LevelError); err == nil && int(persisted) != run.ErrorsCount {
		l.logger.Warn("Error counter drifted from event log",
			zap.String("run_id", run.ID),
			zap.Int("counter", run.ErrorsCount),
			zap.Int64("event_log", persisted))
	}

	l.persist("finish run", func() error {
		return l.store.UpdateRun(run.ID, map[string]any{
			"finished_at":        run.FinishedAt,
			"status":             run.Status,
			"channels_processed": run.ChannelsProcessed,
			"jobs_created":       run.JobsCreated,
			"errors_count":       run.ErrorsCount,
			"last_error_message": run.LastErrorMessage,
		})
	})

	l.logger.Info("Run finished",
		zap.String("run_id", run.ID),
		zap.String("status", string(run.Status)),
		zap.Int("channels_processed", run.ChannelsProcessed),
		zap.Int("jobs_created", run.JobsCreated),
		zap.Int("errors", run.ErrorsCount))
}

// persist runs a store write with bounded retry and backoff. The final failure
// is logged and swallowed: the audit subsystem must never be the reason the
// automation cycle aborts.
func (l *RunLedger) persist(op string, fn func() error) {
	var err error
	backoff := l.backoff
	for attempt := 1; attempt <= persistAttempts; attempt++ {
		if err = fn(); err == nil {
			return
		}
		if attempt < persistAttempts {
			time.Sleep(backoff)
			backoff *= 2
		}
	}

	l.logger.Error("Ledger persistence failed",
		zap.String("op", op),
		zap.String("run_id", l.run.ID),
		zap.Int("attempts", persistAttempts),
		zap.Error(err))
}
