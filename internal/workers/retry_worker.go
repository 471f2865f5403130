package workers

import (
	"context"
	"time"

	"github.com/example/guildsync/internal/models"
)

// RetryDeadLetters periodically re-attempts unresolved dead letters. The
// remote side may have recovered since the chain was dropped; a success
// marks the row resolved, a failure leaves it for the next pass.
func (w *SyncWorker) RetryDeadLetters(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.RetryDeadLettersOnce(ctx)
		}
	}
}

func (w *SyncWorker) RetryDeadLettersOnce(ctx context.Context) {
	var letters []models.DeadLetter
	if err := w.DB.WithContext(ctx).Where("resolved = ?", false).Limit(50).Find(&letters).Error; err != nil {
		w.log().Error("dead letter fetch failed", "err", err)
		return
	}
	for _, dl := range letters {
		if err := w.Processor.Process(ctx, dl.EventID, dl.Reason); err != nil {
			w.log().Info("dead letter retry failed", "dead_letter_id", dl.ID, "event_id", dl.EventID, "err", err)
			continue
		}
		now := time.Now()
		err := w.DB.WithContext(ctx).Model(&models.DeadLetter{}).
			Where("id = ?", dl.ID).
			Updates(map[string]any{"resolved": true, "retried_at": &now}).Error
		if err != nil {
			w.log().Error("mark dead letter resolved failed", "dead_letter_id", dl.ID, "err", err)
			continue
		}
		w.log().Info("dead letter resolved", "dead_letter_id", dl.ID, "event_id", dl.EventID)
	}
}
