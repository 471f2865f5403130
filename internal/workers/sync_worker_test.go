package workers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/example/guildsync/internal/models"
	"github.com/example/guildsync/internal/testutil"
)

type processorStub struct {
	calls []struct {
		EventID uuid.UUID
		Reason  string
	}
	err error
}

func (p *processorStub) Process(ctx context.Context, eventID uuid.UUID, reason string) error {
	p.calls = append(p.calls, struct {
		EventID uuid.UUID
		Reason  string
	}{eventID, reason})
	return p.err
}

func TestProcessOnceRunsDueJobs(t *testing.T) {
	gdb := testutil.OpenDB(t)
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	stub := &processorStub{}
	w := &SyncWorker{DB: gdb, Processor: stub, Now: func() time.Time { return now }}

	due := models.SyncJob{EventID: uuid.New(), Reason: "signup", RunAt: now.Add(-time.Second)}
	future := models.SyncJob{EventID: uuid.New(), Reason: "signup", RunAt: now.Add(5 * time.Second)}
	if err := gdb.Create(&due).Error; err != nil {
		t.Fatalf("create due: %v", err)
	}
	if err := gdb.Create(&future).Error; err != nil {
		t.Fatalf("create future: %v", err)
	}

	if err := w.ProcessOnce(context.Background()); err != nil {
		t.Fatalf("process once: %v", err)
	}

	if len(stub.calls) != 1 || stub.calls[0].EventID != due.EventID {
		t.Fatalf("expected only the due job to run, got %v", stub.calls)
	}

	var remaining []models.SyncJob
	gdb.Find(&remaining)
	if len(remaining) != 1 || remaining[0].ID != future.ID {
		t.Fatalf("finished job must be deleted, future job kept: %v", remaining)
	}
}

func TestFailedJobIsRetriedWithBackoff(t *testing.T) {
	gdb := testutil.OpenDB(t)
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	stub := &processorStub{err: errors.New("rate limited")}
	w := &SyncWorker{DB: gdb, Processor: stub, Now: func() time.Time { return now }}

	job := models.SyncJob{EventID: uuid.New(), Reason: "signup", RunAt: now.Add(-time.Second)}
	if err := gdb.Create(&job).Error; err != nil {
		t.Fatalf("create job: %v", err)
	}

	if err := w.ProcessOnce(context.Background()); err != nil {
		t.Fatalf("process once: %v", err)
	}

	var retry models.SyncJob
	if err := gdb.First(&retry, "event_id = ?", job.EventID).Error; err != nil {
		t.Fatalf("retry row missing: %v", err)
	}
	if retry.Attempts != 1 {
		t.Fatalf("attempts = %d, want 1", retry.Attempts)
	}
	if !retry.RunAt.Equal(now.Add(5 * time.Second)) {
		t.Fatalf("first retry delay = %v, want base 5s", retry.RunAt.Sub(now))
	}
	if retry.Claimed {
		t.Fatal("retry must be claimable")
	}
}

func TestRetryDelayDoubles(t *testing.T) {
	gdb := testutil.OpenDB(t)
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	stub := &processorStub{err: errors.New("boom")}
	w := &SyncWorker{DB: gdb, Processor: stub, Now: func() time.Time { return now }}

	job := models.SyncJob{EventID: uuid.New(), Reason: "signup", RunAt: now.Add(-time.Second), Attempts: 2}
	if err := gdb.Create(&job).Error; err != nil {
		t.Fatalf("create job: %v", err)
	}

	if err := w.ProcessOnce(context.Background()); err != nil {
		t.Fatalf("process once: %v", err)
	}

	var retry models.SyncJob
	if err := gdb.First(&retry, "event_id = ?", job.EventID).Error; err != nil {
		t.Fatalf("retry row missing: %v", err)
	}
	if got := retry.RunAt.Sub(now); got != 20*time.Second {
		t.Fatalf("third retry delay = %v, want 20s", got)
	}
}

func TestExhaustedRetriesDeadLetter(t *testing.T) {
	gdb := testutil.OpenDB(t)
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	stub := &processorStub{err: errors.New("still broken")}
	w := &SyncWorker{DB: gdb, Processor: stub, Now: func() time.Time { return now }}

	job := models.SyncJob{EventID: uuid.New(), Reason: "signup", RunAt: now.Add(-time.Second), Attempts: MaxRetries}
	if err := gdb.Create(&job).Error; err != nil {
		t.Fatalf("create job: %v", err)
	}

	if err := w.ProcessOnce(context.Background()); err != nil {
		t.Fatalf("process once: %v", err)
	}

	var jobCount int64
	gdb.Model(&models.SyncJob{}).Count(&jobCount)
	if jobCount != 0 {
		t.Fatalf("exhausted chain must not re-enqueue, %d jobs left", jobCount)
	}

	var dl models.DeadLetter
	if err := gdb.First(&dl, "event_id = ?", job.EventID).Error; err != nil {
		t.Fatalf("dead letter missing: %v", err)
	}
	if dl.ErrorMsg != "still broken" || dl.Attempts != MaxRetries {
		t.Fatalf("dead letter = %+v", dl)
	}
}

func TestRetryDeadLettersOnceResolves(t *testing.T) {
	gdb := testutil.OpenDB(t)
	stub := &processorStub{}
	w := &SyncWorker{DB: gdb, Processor: stub}

	dl := models.DeadLetter{EventID: uuid.New(), Reason: "signup", ErrorMsg: "was down"}
	if err := gdb.Create(&dl).Error; err != nil {
		t.Fatalf("create dead letter: %v", err)
	}

	w.RetryDeadLettersOnce(context.Background())

	if len(stub.calls) != 1 {
		t.Fatalf("expected one retry, got %d", len(stub.calls))
	}
	var got models.DeadLetter
	gdb.First(&got, dl.ID)
	if !got.Resolved || got.RetriedAt == nil {
		t.Fatalf("dead letter not resolved: %+v", got)
	}
}
