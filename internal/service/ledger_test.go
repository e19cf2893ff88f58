package service

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/adilbekov/autoreel/internal/models"
)

// fakeRunStore is an in-memory RunStore with switchable failure modes.
type fakeRunStore struct {
	mu          sync.Mutex
	runs        map[string]models.AutomationRun
	events      []models.RunEvent
	jobs        []models.GenerationJob
	failCreates bool
	failUpdates bool
	failAppends bool
	failJobs    bool
}

func newFakeRunStore() *fakeRunStore {
	return &fakeRunStore{runs: map[string]models.AutomationRun{}}
}

func (f *fakeRunStore) CreateRun(run *models.AutomationRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreates {
		return errors.New("store down")
	}
	f.runs[run.ID] = *run
	return nil
}

func (f *fakeRunStore) UpdateRun(id string, patch map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpdates {
		return errors.New("store down")
	}
	run, ok := f.runs[id]
	if !ok {
		return errors.New("run not found")
	}
	for key, value := range patch {
		switch key {
		case "status":
			run.Status = value.(models.RunStatus)
		case "finished_at":
			run.FinishedAt = value.(*time.Time)
		case "channels_processed":
			run.ChannelsProcessed = value.(int)
		case "jobs_created":
			run.JobsCreated = value.(int)
		case "errors_count":
			run.ErrorsCount = value.(int)
		case "last_error_message":
			run.LastErrorMessage = value.(string)
		}
	}
	f.runs[id] = run
	return nil
}

func (f *fakeRunStore) AppendEvent(event *models.RunEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAppends {
		return errors.New("store down")
	}
	event.ID = uint(len(f.events) + 1)
	f.events = append(f.events, *event)
	return nil
}

func (f *fakeRunStore) CreateJob(job *models.GenerationJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failJobs {
		return errors.New("store down")
	}
	job.ID = uint(len(f.jobs) + 1)
	f.jobs = append(f.jobs, *job)
	return nil
}

func (f *fakeRunStore) ListRecentRuns(limit int) ([]models.AutomationRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	runs := make([]models.AutomationRun, 0, len(f.runs))
	for _, run := range f.runs {
		runs = append(runs, run)
	}
	if len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

func (f *fakeRunStore) GetRun(id string) (*models.AutomationRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	run, ok := f.runs[id]
	if !ok {
		return nil, errors.New("run not found")
	}
	return &run, nil
}

func (f *fakeRunStore) ListEvents(runID string) ([]models.RunEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var events []models.RunEvent
	for _, event := range f.events {
		if event.RunID == runID {
			events = append(events, event)
		}
	}
	return events, nil
}

func (f *fakeRunStore) LastSuccessfulRunAt() (*models.AutomationRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var last *models.AutomationRun
	for _, run := range f.runs {
		if run.Status != models.StatusSuccess || run.FinishedAt == nil {
			continue
		}
		if last == nil || run.FinishedAt.After(*last.FinishedAt) {
			r := run
			last = &r
		}
	}
	return last, nil
}

func (f *fakeRunStore) CountEventsByLevel(runID, level string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for _, event := range f.events {
		if event.RunID == runID && event.Level == level {
			count++
		}
	}
	return count, nil
}

func (f *fakeRunStore) storedRun(t *testing.T, id string) models.AutomationRun {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	run, ok := f.runs[id]
	if !ok {
		t.Fatalf("run %s not in store", id)
	}
	return run
}

func openTestLedger(store RunStore, logger *zap.Logger, channelsPlanned int) *RunLedger {
	l := OpenLedger(store, logger, "UTC", channelsPlanned, nil)
	l.backoff = 0
	return l
}

func TestOpenLedgerPersistsRun(t *testing.T) {
	store := newFakeRunStore()
	invoked := time.Date(2025, 6, 1, 6, 0, 0, 0, time.UTC)

	l := OpenLedger(store, zap.NewNop(), "Asia/Almaty", 3, &invoked)

	run := store.storedRun(t, l.RunID())
	if run.Status != models.StatusRunning {
		t.Errorf("Status = %q, want running", run.Status)
	}
	if run.FinishedAt != nil {
		t.Error("FinishedAt should be nil while open")
	}
	if run.ChannelsPlanned != 3 {
		t.Errorf("ChannelsPlanned = %d, want 3", run.ChannelsPlanned)
	}
	if run.Timezone != "Asia/Almaty" {
		t.Errorf("Timezone = %q", run.Timezone)
	}
	if run.SchedulerInvocationAt == nil || !run.SchedulerInvocationAt.Equal(invoked) {
		t.Errorf("SchedulerInvocationAt = %v, want %v", run.SchedulerInvocationAt, invoked)
	}
	if run.ErrorsCount != 0 || run.JobsCreated != 0 || run.ChannelsProcessed != 0 {
		t.Error("counters should start at zero")
	}
}

func TestRecordEventAppendsAndCounts(t *testing.T) {
	store := newFakeRunStore()
	l := openTestLedger(store, zap.NewNop(), 1)

	l.RecordEvent(models.LevelInfo, models.StepSelectChannels, "selected 1 channel")
	l.RecordEvent(models.LevelError, models.StepGenerateIdea, "boom",
		WithChannel(7, "News"),
		WithDetails(map[string]any{"attempt": 1}))

	events, _ := store.ListEvents(l.RunID())
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	errEvent := events[1]
	if errEvent.ChannelID == nil || *errEvent.ChannelID != 7 || errEvent.ChannelName != "News" {
		t.Errorf("channel tag missing: %+v", errEvent)
	}
	if !strings.Contains(errEvent.Details, "attempt") {
		t.Errorf("details not marshalled: %q", errEvent.Details)
	}

	run := l.Run()
	if run.ErrorsCount != 1 {
		t.Errorf("ErrorsCount = %d, want 1", run.ErrorsCount)
	}
	if run.LastErrorMessage != "boom" {
		t.Errorf("LastErrorMessage = %q, want 'boom'", run.LastErrorMessage)
	}
}

func TestFinishVerdicts(t *testing.T) {
	tests := []struct {
		name     string
		errs     int
		jobs     int
		channels int
		want     models.RunStatus
	}{
		{"clean run", 0, 2, 2, models.StatusSuccess},
		{"total failure", 2, 0, 0, models.StatusError},
		{"mixed", 1, 1, 1, models.StatusPartial},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeRunStore()
			l := openTestLedger(store, zap.NewNop(), tt.channels)

			for i := 0; i < tt.errs; i++ {
				l.RecordEvent(models.LevelError, models.StepGenerateIdea, "failed")
			}
			for i := 0; i < tt.jobs; i++ {
				l.IncrementJobsCreated()
			}
			for i := 0; i < tt.channels; i++ {
				l.IncrementChannelsProcessed()
			}

			l.Finish()

			run := store.storedRun(t, l.RunID())
			if run.Status != tt.want {
				t.Errorf("Status = %q, want %q", run.Status, tt.want)
			}
			if run.FinishedAt == nil {
				t.Error("FinishedAt not set")
			}
			if run.JobsCreated != tt.jobs || run.ChannelsProcessed != tt.channels || run.ErrorsCount != tt.errs {
				t.Errorf("persisted counters = {%d %d %d}, want {%d %d %d}",
					run.JobsCreated, run.ChannelsProcessed, run.ErrorsCount,
					tt.jobs, tt.channels, tt.errs)
			}
		})
	}
}

func TestRecordEventAfterFinish(t *testing.T) {
	store := newFakeRunStore()
	l := openTestLedger(store, zap.NewNop(), 1)
	l.IncrementChannelsProcessed()
	l.Finish()

	l.RecordEvent(models.LevelError, models.StepOther, "late event")

	events, _ := store.ListEvents(l.RunID())
	if len(events) != 1 {
		t.Fatalf("late event not persisted, got %d events", len(events))
	}

	run := store.storedRun(t, l.RunID())
	if run.Status != models.StatusSuccess {
		t.Errorf("stored status mutated to %q after finish", run.Status)
	}
	if run.FinishedAt == nil {
		t.Error("run was reopened")
	}
}

func TestFinishIsIdempotent(t *testing.T) {
	store := newFakeRunStore()
	l := openTestLedger(store, zap.NewNop(), 1)
	l.IncrementChannelsProcessed()

	l.Finish()
	first := store.storedRun(t, l.RunID())

	l.RecordEvent(models.LevelError, models.StepOther, "late")
	l.Finish()

	second := store.storedRun(t, l.RunID())
	if second.Status != first.Status || second.ErrorsCount != first.ErrorsCount {
		t.Errorf("second Finish changed the stored run: %+v vs %+v", second, first)
	}
}

func TestLedgerNeverRaisesOnStoreFailure(t *testing.T) {
	store := newFakeRunStore()
	store.failCreates = true
	store.failUpdates = true
	store.failAppends = true

	core, logs := observer.New(zap.ErrorLevel)
	l := OpenLedger(store, zap.New(core), "UTC", 1, nil)
	l.backoff = 0

	// None of these may panic or surface an error to the caller.
	l.RecordEvent(models.LevelError, models.StepGenerateIdea, "boom")
	l.IncrementJobsCreated()
	l.UpdateRun(map[string]any{"channels_planned": 2})
	l.Finish()

	if logs.FilterMessage("Ledger persistence failed").Len() == 0 {
		t.Error("expected persistence failures to be logged")
	}

	run := l.Run()
	if run.Status != models.StatusPartial {
		t.Errorf("in-memory verdict = %q, want partial", run.Status)
	}
}

func TestFinishLogsCounterDrift(t *testing.T) {
	store := newFakeRunStore()
	core, logs := observer.New(zap.WarnLevel)
	l := OpenLedger(store, zap.New(core), "UTC", 1, nil)
	l.backoff = 0

	// An error event whose append was lost: counter says 1, event log says 0.
	store.failAppends = true
	l.RecordEvent(models.LevelError, models.StepGenerateIdea, "boom")
	store.failAppends = false

	l.IncrementChannelsProcessed()
	l.Finish()

	if logs.FilterMessage("Error counter drifted from event log").Len() == 0 {
		t.Error("expected a drift warning")
	}
}
