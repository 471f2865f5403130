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

// DefaultDebounce is the delay between the last trigger and job execution.
const DefaultDebounce = 10 * time.Second

// Queue is the debounced sync-job producer. Jobs live in the sync_jobs
// table so they survive restarts and so delete-then-insert coalescing rides
// on the database's own atomicity.
type Queue struct {
	DB       *gorm.DB
	Debounce time.Duration
	Now      func() time.Time
	Log      *slog.Logger
}

func (q *Queue) now() time.Time {
	if q.Now != nil {
		return q.Now()
	}
	return time.Now()
}

// Enqueue coalesces: any pending (unclaimed) job for the same event is
// replaced by a fresh one with a full debounce window, so a burst of rapid
// triggers yields a single remote write carrying the latest reason. A job a
// worker already claimed is left alone; its superseding trigger simply runs
// as a new job afterward.
func (q *Queue) Enqueue(ctx context.Context, eventID uuid.UUID, reason string) error {
	debounce := q.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return q.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("event_id = ? AND claimed = ?", eventID, false).Delete(&models.SyncJob{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			metrics.JobsCoalesced.Inc()
		}
		job := models.SyncJob{
			EventID: eventID,
			Reason:  reason,
			RunAt:   q.now().Add(debounce),
		}
		return tx.Create(&job).Error
	})
}
