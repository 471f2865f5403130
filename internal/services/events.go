// Package services holds the domain mutation entry points. Controllers and
// gateway handlers call these; each mutation enqueues a debounced sync so
// the presence message converges shortly after a burst of changes.
package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/guildsync/internal/models"
	"github.com/example/guildsync/internal/reconcile"
	"github.com/example/guildsync/internal/sessions"
	"github.com/example/guildsync/internal/workers"
)

var ErrEventNotFound = errors.New("event not found")

type Service struct {
	DB         *gorm.DB
	Queue      *workers.Queue
	Reconciler *reconcile.Reconciler
	Tracker    *sessions.Tracker
	Log        *slog.Logger
}

func (s *Service) log() *slog.Logger {
	if s.Log != nil {
		return s.Log
	}
	return slog.Default()
}

// Signup confirms a user for an event, reviving a withdrawn signup if one
// exists, and triggers a sync.
func (s *Service) Signup(ctx context.Context, eventID uuid.UUID, discordUserID, role string) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireEvent(tx, eventID); err != nil {
			return err
		}
		var signup models.EventSignup
		err := tx.First(&signup, "event_id = ? AND discord_user_id = ?", eventID, discordUserID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Create(&models.EventSignup{
				EventID:       eventID,
				DiscordUserID: discordUserID,
				Status:        models.SignupConfirmed,
				Role:          role,
			}).Error
		}
		if err != nil {
			return err
		}
		return tx.Model(&signup).Updates(map[string]any{
			"status": models.SignupConfirmed,
			"role":   role,
		}).Error
	})
	if err != nil {
		return err
	}
	return s.Queue.Enqueue(ctx, eventID, "signup")
}

// Withdraw marks a signup withdrawn and triggers a sync. Unknown signups are
// a no-op.
func (s *Service) Withdraw(ctx context.Context, eventID uuid.UUID, discordUserID string) error {
	res := s.DB.WithContext(ctx).Model(&models.EventSignup{}).
		Where("event_id = ? AND discord_user_id = ?", eventID, discordUserID).
		Update("status", models.SignupWithdrawn)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return nil
	}
	return s.Queue.Enqueue(ctx, eventID, "withdraw")
}

// AssignSlot pins a user into a roster slot and triggers a sync.
func (s *Service) AssignSlot(ctx context.Context, eventID uuid.UUID, discordUserID, slot string) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireEvent(tx, eventID); err != nil {
			return err
		}
		var existing models.RosterAssignment
		err := tx.First(&existing, "event_id = ? AND discord_user_id = ?", eventID, discordUserID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Create(&models.RosterAssignment{
				EventID:       eventID,
				DiscordUserID: discordUserID,
				Slot:          slot,
			}).Error
		}
		if err != nil {
			return err
		}
		return tx.Model(&existing).Update("slot", slot).Error
	})
	if err != nil {
		return err
	}
	return s.Queue.Enqueue(ctx, eventID, "roster")
}

// Cancel stamps the event cancelled and hands the presence teardown to the
// reconciler's cancellation path, bypassing the queue.
func (s *Service) Cancel(ctx context.Context, eventID uuid.UUID) error {
	now := time.Now()
	res := s.DB.WithContext(ctx).Model(&models.Event{}).
		Where("id = ? AND canceled_at IS NULL", eventID).
		Update("canceled_at", &now)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return nil // unknown or already cancelled
	}
	return s.Reconciler.Cancel(ctx, eventID)
}

// Reschedule moves an event's time range, triggers a message sync and
// pushes the new times to the scheduled event right away.
func (s *Service) Reschedule(ctx context.Context, eventID uuid.UUID, startAt, endAt time.Time) error {
	res := s.DB.WithContext(ctx).Model(&models.Event{}).
		Where("id = ? AND canceled_at IS NULL", eventID).
		Updates(map[string]any{"start_at": startAt, "end_at": endAt})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrEventNotFound
	}
	s.Reconciler.UpdateScheduledEvent(ctx, eventID)
	return s.Queue.Enqueue(ctx, eventID, "reschedule")
}

// HandleVoiceJoin and HandleVoiceLeave feed voice-presence events into the
// ad-hoc session tracker, bypassing the queue.
func (s *Service) HandleVoiceJoin(ctx context.Context, eventID uuid.UUID, discordUserID string) error {
	return s.Tracker.AddParticipant(ctx, eventID, discordUserID)
}

func (s *Service) HandleVoiceLeave(ctx context.Context, eventID uuid.UUID, discordUserID string) error {
	return s.Tracker.MarkLeave(ctx, eventID, discordUserID)
}

// EndAdHocEvent closes all open sessions when an ad-hoc gathering winds
// down and syncs the presence message a final time.
func (s *Service) EndAdHocEvent(ctx context.Context, eventID uuid.UUID) error {
	if err := s.Tracker.FinalizeAll(ctx, eventID); err != nil {
		return err
	}
	return s.Queue.Enqueue(ctx, eventID, "adhoc-ended")
}

func requireEvent(tx *gorm.DB, eventID uuid.UUID) error {
	var ev models.Event
	err := tx.Select("id").First(&ev, "id = ?", eventID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrEventNotFound
	}
	return err
}
