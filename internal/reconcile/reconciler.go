// Package reconcile converges an event's Discord representation (presence
// message + guild scheduled event) toward the state derived from the local
// database. It is invoked from the debounced job queue, from the deferred
// post sweep and from the cancellation handler, all through the same paths.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/guildsync/internal/channels"
	"github.com/example/guildsync/internal/config"
	"github.com/example/guildsync/internal/discord"
	"github.com/example/guildsync/internal/metrics"
	"github.com/example/guildsync/internal/models"
	"github.com/example/guildsync/internal/presence"
	"github.com/example/guildsync/internal/search"
)

type Reconciler struct {
	DB       *gorm.DB
	Discord  discord.Client
	Resolver *channels.Resolver
	Settings *config.Config
	// Search may be nil; the mirror is then skipped.
	Search *search.Indexer
	// Now is swappable for tests; defaults to time.Now.
	Now func() time.Time
	Log *slog.Logger
}

func (r *Reconciler) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *Reconciler) log() *slog.Logger {
	if r.Log != nil {
		return r.Log
	}
	return slog.Default()
}

func (r *Reconciler) buildOptions() presence.BuildOptions {
	return presence.BuildOptions{
		CommunityName: r.Settings.CommunityName,
		BaseURL:       r.Settings.PublicBaseURL,
		Location:      r.Settings.Location(),
	}
}

// rosterCounts re-reads the signup-derived numbers for an event. Jobs run
// seconds after their trigger, so counts captured at enqueue time are stale
// by design and never used.
func (r *Reconciler) rosterCounts(ctx context.Context, eventID uuid.UUID) (int, []models.RosterAssignment, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&models.EventSignup{}).
		Where("event_id = ? AND status = ?", eventID, models.SignupConfirmed).
		Count(&count).Error
	if err != nil {
		return 0, nil, err
	}
	var roster []models.RosterAssignment
	err = r.DB.WithContext(ctx).
		Where("event_id = ?", eventID).
		Order("slot asc").
		Find(&roster).Error
	if err != nil {
		return 0, nil, err
	}
	return int(count), roster, nil
}

// Process is the queue-driven message sync. It edits the existing presence
// message to reflect current state. Unlike the scheduled-event methods it
// propagates edit failures so the queue's retry policy applies.
func (r *Reconciler) Process(ctx context.Context, eventID uuid.UUID, reason string) error {
	if !r.Discord.IsConnected() {
		return fmt.Errorf("process event %s: %w", eventID, discord.ErrNotConnected)
	}
	if r.Discord.GuildID() == "" {
		// No guild configured; retrying cannot help.
		r.log().Debug("skipping sync, no guild configured", "event_id", eventID)
		return nil
	}

	var record models.PresenceRecord
	err := r.DB.WithContext(ctx).First(&record, "event_id = ?", eventID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		r.log().Debug("skipping sync, no presence record", "event_id", eventID, "reason", reason)
		return nil
	}
	if err != nil {
		return err
	}
	if record.State == models.StateCancelled {
		return nil
	}

	var ev models.Event
	err = r.DB.WithContext(ctx).First(&ev, "id = ?", eventID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		r.log().Debug("skipping sync, event gone", "event_id", eventID)
		return nil
	}
	if err != nil {
		return err
	}
	if ev.Canceled() {
		// The cancellation handler owns that transition.
		return nil
	}

	count, roster, err := r.rosterCounts(ctx, eventID)
	if err != nil {
		return err
	}

	state := presence.ComputeState(r.now(), ev.StartAt, ev.EndAt, ev.MaxAttendees, count, record.State)
	content := presence.BuildMessage(&ev, state, count, roster, r.buildOptions())

	if err := r.Discord.EditMessage(ctx, record.DiscordChannelID, record.DiscordMessageID, content); err != nil {
		r.log().Error("edit presence message failed", "event_id", eventID, "reason", reason, "err", err)
		return err
	}

	err = r.DB.WithContext(ctx).Model(&models.PresenceRecord{}).
		Where("id = ?", record.ID).
		Update("state", state).Error
	if err != nil {
		return err
	}

	r.log().Info("presence synced", "event_id", eventID, "state", state, "signups", count, "reason", reason)

	// Fire-and-forget from here: scheduled-event convergence and search
	// indexing never fail the queue-driven sync.
	if state == models.StateCompleted {
		r.CompleteScheduledEventNow(ctx, eventID)
	} else {
		r.UpdateScheduledEvent(ctx, eventID)
	}
	r.mirrorToSearch(ctx, &ev, state, count)
	return nil
}

// PostEmbed publishes the first presence message for an event and creates
// its presence record. Used by the deferred post sweep.
func (r *Reconciler) PostEmbed(ctx context.Context, ev *models.Event) error {
	if !r.Discord.IsConnected() {
		return fmt.Errorf("post event %s: %w", ev.ID, discord.ErrNotConnected)
	}
	guildID := r.Discord.GuildID()
	if guildID == "" {
		r.log().Debug("skipping post, no guild configured", "event_id", ev.ID)
		return nil
	}
	if ev.Canceled() {
		return nil
	}

	var existing models.PresenceRecord
	err := r.DB.WithContext(ctx).First(&existing, "event_id = ?", ev.ID).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	channelID, err := r.Resolver.ResolveChannel(ctx, ev.GameID, ev.SeriesID)
	if err != nil {
		return err
	}
	if channelID == "" {
		r.log().Debug("skipping post, no channel binding", "event_id", ev.ID)
		return nil
	}

	count, roster, err := r.rosterCounts(ctx, ev.ID)
	if err != nil {
		return err
	}

	state := presence.ComputeState(r.now(), ev.StartAt, ev.EndAt, ev.MaxAttendees, count, models.StatePosted)
	content := presence.BuildMessage(ev, state, count, roster, r.buildOptions())

	messageID, err := r.Discord.SendMessage(ctx, channelID, content)
	if err != nil {
		r.log().Error("post presence message failed", "event_id", ev.ID, "err", err)
		return err
	}

	record := models.PresenceRecord{
		EventID:          ev.ID,
		DiscordMessageID: messageID,
		DiscordChannelID: channelID,
		GuildID:          guildID,
		State:            state,
	}
	if err := r.DB.WithContext(ctx).Create(&record).Error; err != nil {
		return err
	}
	metrics.EmbedsPosted.Inc()
	r.log().Info("presence posted", "event_id", ev.ID, "channel_id", channelID, "state", state)

	r.EnsureScheduledEvent(ctx, ev.ID)
	r.mirrorToSearch(ctx, ev, state, count)
	return nil
}

// Cancel owns the transition into the terminal cancelled state: it updates
// the presence message one last time and tears down the scheduled event.
// Called directly by the cancellation handler, not through the queue.
func (r *Reconciler) Cancel(ctx context.Context, eventID uuid.UUID) error {
	var ev models.Event
	err := r.DB.WithContext(ctx).First(&ev, "id = ?", eventID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	var record models.PresenceRecord
	err = r.DB.WithContext(ctx).First(&record, "event_id = ?", eventID).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	if err == nil && record.State != models.StateCancelled {
		count, roster, cerr := r.rosterCounts(ctx, eventID)
		if cerr != nil {
			return cerr
		}
		content := presence.BuildMessage(&ev, models.StateCancelled, count, roster, r.buildOptions())
		if r.Discord.IsConnected() {
			if eerr := r.Discord.EditMessage(ctx, record.DiscordChannelID, record.DiscordMessageID, content); eerr != nil {
				// Best effort; the record still flips to cancelled so no
				// later sync resurrects the embed.
				r.log().Error("edit cancelled message failed", "event_id", eventID, "err", eerr)
			}
		}
		uerr := r.DB.WithContext(ctx).Model(&models.PresenceRecord{}).
			Where("id = ?", record.ID).
			Update("state", models.StateCancelled).Error
		if uerr != nil {
			return uerr
		}
	}

	r.DeleteScheduledEvent(ctx, eventID)
	r.log().Info("event cancelled", "event_id", eventID)
	return nil
}

func (r *Reconciler) mirrorToSearch(ctx context.Context, ev *models.Event, state models.EmbedState, count int) {
	if r.Search == nil {
		return
	}
	var game models.Game
	if err := r.DB.WithContext(ctx).First(&game, "id = ?", ev.GameID).Error; err != nil {
		r.log().Debug("search mirror game lookup failed", "event_id", ev.ID, "err", err)
	}
	if err := r.Search.IndexEvent(ctx, ev, game.Name, state, count); err != nil {
		r.log().Error("search mirror failed", "event_id", ev.ID, "err", err)
	}
}
