package workers

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/guildsync/internal/metrics"
	"github.com/example/guildsync/internal/models"
)

const (
	// MaxRetries bounds how often one enqueue chain is re-attempted.
	MaxRetries = 3
	// RetryBase is the first retry delay; it doubles per attempt.
	RetryBase = 5 * time.Second

	claimBatchSize = 50
)

// Processor is the reconciliation entry point the worker drives.
type Processor interface {
	Process(ctx context.Context, eventID uuid.UUID, reason string) error
}

// SyncWorker polls the sync_jobs table and feeds due jobs to the reconciler.
// Multiple workers may run concurrently: each job is claimed with an
// optimistic flag flip before processing, so a job executes at most once per
// enqueue chain.
type SyncWorker struct {
	DB        *gorm.DB
	Processor Processor
	Poll      time.Duration
	Now       func() time.Time
	Log       *slog.Logger
}

func (w *SyncWorker) now() time.Time {
	if w.Now != nil {
		return w.Now()
	}
	return time.Now()
}

func (w *SyncWorker) log() *slog.Logger {
	if w.Log != nil {
		return w.Log
	}
	return slog.Default()
}

func (w *SyncWorker) Run(ctx context.Context) {
	poll := w.Poll
	if poll <= 0 {
		poll = time.Second
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.ProcessOnce(ctx); err != nil {
				w.log().Error("sync worker pass failed", "err", err)
			}
		}
	}
}

// ProcessOnce claims and executes every currently due job.
func (w *SyncWorker) ProcessOnce(ctx context.Context) error {
	var due []models.SyncJob
	err := w.DB.WithContext(ctx).
		Where("claimed = ? AND run_at <= ?", false, w.now()).
		Order("run_at asc").
		Limit(claimBatchSize).
		Find(&due).Error
	if err != nil {
		return err
	}

	for _, job := range due {
		if !w.claim(ctx, job.ID) {
			continue // another worker got it
		}
		w.execute(ctx, job)
	}
	return nil
}

// claim flips the job's claimed flag; losing the race means another worker
// owns the job. Once claimed the job runs to completion and is no longer
// cancelable by Enqueue.
func (w *SyncWorker) claim(ctx context.Context, jobID int64) bool {
	res := w.DB.WithContext(ctx).Model(&models.SyncJob{}).
		Where("id = ? AND claimed = ?", jobID, false).
		Update("claimed", true)
	if res.Error != nil {
		w.log().Error("claim job failed", "job_id", jobID, "err", res.Error)
		return false
	}
	return res.RowsAffected > 0
}

func (w *SyncWorker) execute(ctx context.Context, job models.SyncJob) {
	err := w.Processor.Process(ctx, job.EventID, job.Reason)

	if derr := w.DB.WithContext(ctx).Delete(&models.SyncJob{}, job.ID).Error; derr != nil {
		w.log().Error("delete finished job failed", "job_id", job.ID, "err", derr)
	}

	if err == nil {
		metrics.JobsProcessed.Inc()
		return
	}

	metrics.JobsFailed.Inc()
	if job.Attempts >= MaxRetries {
		w.deadLetter(ctx, job, err)
		return
	}

	retry := models.SyncJob{
		EventID:  job.EventID,
		Reason:   job.Reason,
		Attempts: job.Attempts + 1,
		RunAt:    w.now().Add(RetryBase << job.Attempts),
	}
	if cerr := w.DB.WithContext(ctx).Create(&retry).Error; cerr != nil {
		w.log().Error("schedule retry failed", "event_id", job.EventID, "err", cerr)
		return
	}
	w.log().Info("sync failed, retry scheduled",
		"event_id", job.EventID, "attempt", retry.Attempts, "run_at", retry.RunAt, "err", err)
}

func (w *SyncWorker) deadLetter(ctx context.Context, job models.SyncJob, cause error) {
	metrics.JobsDeadLettered.Inc()
	dl := models.DeadLetter{
		EventID:  job.EventID,
		Reason:   job.Reason,
		ErrorMsg: cause.Error(),
		Attempts: job.Attempts,
	}
	if err := w.DB.WithContext(ctx).Create(&dl).Error; err != nil {
		w.log().Error("insert dead letter failed", "event_id", job.EventID, "err", err)
		return
	}
	w.log().Error("sync retries exhausted, dead-lettered",
		"event_id", job.EventID, "reason", job.Reason, "err", cause)
}
