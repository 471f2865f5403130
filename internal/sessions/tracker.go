// Package sessions does join/leave accounting for transient voice
// gatherings. It is invoked directly by voice-presence events, not through
// the sync queue.
package sessions

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/guildsync/internal/models"
)

type Tracker struct {
	DB  *gorm.DB
	Now func() time.Time
	Log *slog.Logger
}

func (t *Tracker) now() time.Time {
	if t.Now != nil {
		return t.Now()
	}
	return time.Now()
}

func (t *Tracker) log() *slog.Logger {
	if t.Log != nil {
		return t.Log
	}
	return slog.Default()
}

// AddParticipant opens a session. A first join creates the row; a rejoin
// reopens the existing row and bumps its session counter. Joining while
// already active is a no-op.
func (t *Tracker) AddParticipant(ctx context.Context, eventID uuid.UUID, discordUserID string) error {
	now := t.now()
	return t.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p models.AdHocParticipant
		err := tx.First(&p, "event_id = ? AND discord_user_id = ?", eventID, discordUserID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			p = models.AdHocParticipant{
				EventID:       eventID,
				DiscordUserID: discordUserID,
				JoinedAt:      now,
				SessionCount:  1,
			}
			if cerr := tx.Create(&p).Error; cerr != nil {
				return cerr
			}
			t.log().Debug("participant joined", "event_id", eventID, "user_id", discordUserID)
			return nil
		}
		if err != nil {
			return err
		}
		if p.LeftAt == nil {
			return nil // already active
		}
		err = tx.Model(&p).Updates(map[string]any{
			"joined_at":     now,
			"left_at":       nil,
			"session_count": p.SessionCount + 1,
		}).Error
		if err != nil {
			return err
		}
		t.log().Debug("participant rejoined", "event_id", eventID, "user_id", discordUserID, "sessions", p.SessionCount+1)
		return nil
	})
}

// MarkLeave closes an active session, folding the elapsed time into the
// accumulated duration. Absent or already-closed rows are a no-op, so a
// duplicate leave event never double-counts.
func (t *Tracker) MarkLeave(ctx context.Context, eventID uuid.UUID, discordUserID string) error {
	return t.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p models.AdHocParticipant
		err := tx.First(&p, "event_id = ? AND discord_user_id = ?", eventID, discordUserID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return t.closeSession(tx, &p)
	})
}

// FinalizeAll closes every still-open session for an event in one pass,
// applied once when the ad-hoc event ends. Zero active rows is fine.
func (t *Tracker) FinalizeAll(ctx context.Context, eventID uuid.UUID) error {
	return t.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var open []models.AdHocParticipant
		if err := tx.Where("event_id = ? AND left_at IS NULL", eventID).Find(&open).Error; err != nil {
			return err
		}
		for i := range open {
			if err := t.closeSession(tx, &open[i]); err != nil {
				return err
			}
		}
		if len(open) > 0 {
			t.log().Info("ad-hoc sessions finalized", "event_id", eventID, "closed", len(open))
		}
		return nil
	})
}

func (t *Tracker) closeSession(tx *gorm.DB, p *models.AdHocParticipant) error {
	if p.LeftAt != nil {
		return nil
	}
	now := t.now()
	elapsed := int64(now.Sub(p.JoinedAt).Seconds())
	if elapsed < 0 {
		elapsed = 0
	}
	return tx.Model(p).Updates(map[string]any{
		"left_at":          now,
		"duration_seconds": p.DurationSeconds + elapsed,
	}).Error
}
