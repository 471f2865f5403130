package reconcile

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/guildsync/internal/discord"
	"github.com/example/guildsync/internal/metrics"
	"github.com/example/guildsync/internal/models"
)

// The scheduled-event methods are fire-and-forget safe: they never return an
// error to the caller. Precondition misses are debug-level skips, a missing
// remote object (code 10070) is repaired as drift, everything else is logged
// and swallowed.

// EnsureScheduledEvent creates the guild scheduled event for an event that
// has none, and stores the resulting id.
func (r *Reconciler) EnsureScheduledEvent(ctx context.Context, eventID uuid.UUID) {
	ev, ok := r.loadEvent(ctx, eventID)
	if !ok {
		return
	}
	if ev.IsAdHoc || ev.Canceled() || ev.DiscordScheduledEventID != "" {
		return
	}
	if !ev.StartAt.After(r.now()) {
		r.log().Debug("skipping scheduled event create, start time passed", "event_id", ev.ID)
		return
	}
	if !r.Discord.IsConnected() || r.Discord.GuildID() == "" {
		r.log().Debug("skipping scheduled event create, not connected", "event_id", ev.ID)
		return
	}

	voiceID, err := r.Resolver.ResolveVoiceChannel(ctx, ev.GameID)
	if err != nil {
		r.log().Error("resolve voice channel failed", "event_id", ev.ID, "err", err)
		return
	}
	if voiceID == "" {
		r.log().Debug("skipping scheduled event create, no voice channel", "event_id", ev.ID)
		return
	}

	remote, err := r.Discord.CreateScheduledEvent(ctx, discord.ScheduledEventParams{
		ChannelID:   voiceID,
		Name:        ev.Title,
		Description: ev.Description,
		StartTime:   ev.StartAt,
		EndTime:     ev.EndAt,
	})
	if err != nil {
		r.log().Error("create scheduled event failed", "event_id", ev.ID, "err", err)
		return
	}
	r.storeScheduledEventID(ctx, ev.ID, remote.ID)
	r.log().Info("scheduled event created", "event_id", ev.ID, "discord_event_id", remote.ID)
}

// UpdateScheduledEvent pushes name/time/description to the remote object,
// delegating to EnsureScheduledEvent when no id is stored and recreating the
// object when Discord reports it gone.
func (r *Reconciler) UpdateScheduledEvent(ctx context.Context, eventID uuid.UUID) {
	ev, ok := r.loadEvent(ctx, eventID)
	if !ok {
		return
	}
	if ev.DiscordScheduledEventID == "" {
		r.EnsureScheduledEvent(ctx, eventID)
		return
	}
	if !r.Discord.IsConnected() {
		return
	}

	start, end := ev.StartAt, ev.EndAt
	_, err := r.Discord.ModifyScheduledEvent(ctx, ev.DiscordScheduledEventID, discord.ScheduledEventPatch{
		Name:        &ev.Title,
		Description: &ev.Description,
		StartTime:   &start,
		EndTime:     &end,
	})
	if discord.IsUnknownScheduledEvent(err) {
		// Deleted on the Discord side; treat as drift and recreate.
		metrics.RemoteDriftRepaired.Inc()
		r.log().Info("scheduled event vanished remotely, recreating", "event_id", ev.ID)
		r.storeScheduledEventID(ctx, ev.ID, "")
		r.EnsureScheduledEvent(ctx, eventID)
		return
	}
	if err != nil {
		r.log().Error("update scheduled event failed", "event_id", ev.ID, "err", err)
	}
}

// DeleteScheduledEvent removes the remote object and clears the stored id.
// The stored id is the only handle to the remote object, so it is cleared
// only once the delete succeeded or Discord reported the object already
// gone. A disconnected client or a transient failure leaves the id in place
// for a later retry.
func (r *Reconciler) DeleteScheduledEvent(ctx context.Context, eventID uuid.UUID) {
	ev, ok := r.loadEvent(ctx, eventID)
	if !ok {
		return
	}
	if ev.DiscordScheduledEventID == "" {
		return
	}
	if !r.Discord.IsConnected() {
		r.log().Debug("skipping scheduled event delete, not connected", "event_id", ev.ID)
		return
	}
	err := r.Discord.DeleteScheduledEvent(ctx, ev.DiscordScheduledEventID)
	if err != nil && !discord.IsUnknownScheduledEvent(err) {
		r.log().Error("delete scheduled event failed", "event_id", ev.ID, "err", err)
		return
	}
	r.storeScheduledEventID(ctx, ev.ID, "")
}

// CompleteScheduledEventNow drives the remote object to completed. Discord
// disallows the direct scheduled→completed jump, so a still-scheduled object
// is first activated. The stored id is cleared afterward in every case.
func (r *Reconciler) CompleteScheduledEventNow(ctx context.Context, eventID uuid.UUID) {
	ev, ok := r.loadEvent(ctx, eventID)
	if !ok {
		return
	}
	if ev.DiscordScheduledEventID == "" {
		return
	}
	if !r.Discord.IsConnected() {
		return
	}
	defer r.storeScheduledEventID(ctx, ev.ID, "")

	remote, err := r.Discord.GetScheduledEvent(ctx, ev.DiscordScheduledEventID)
	if discord.IsUnknownScheduledEvent(err) {
		metrics.RemoteDriftRepaired.Inc()
		return
	}
	if err != nil {
		r.log().Error("fetch scheduled event failed", "event_id", ev.ID, "err", err)
		return
	}

	switch remote.Status {
	case discord.EventStatusCompleted, discord.EventStatusCanceled:
		return
	case discord.EventStatusScheduled:
		if err := r.ensureActive(ctx, ev.DiscordScheduledEventID, remote.Status); err != nil {
			r.log().Error("activate scheduled event failed", "event_id", ev.ID, "err", err)
			return
		}
	}

	status := discord.EventStatusCompleted
	if _, err := r.Discord.ModifyScheduledEvent(ctx, ev.DiscordScheduledEventID, discord.ScheduledEventPatch{Status: &status}); err != nil {
		if !discord.IsUnknownScheduledEvent(err) {
			r.log().Error("complete scheduled event failed", "event_id", ev.ID, "err", err)
		}
	}
}

// ensureActive performs the scheduled→active phase when needed. Shared by
// the direct-complete path and the time-based activation sweep so the
// phase-ordering rule lives in one place.
func (r *Reconciler) ensureActive(ctx context.Context, remoteID string, status int) error {
	if status != discord.EventStatusScheduled {
		return nil
	}
	active := discord.EventStatusActive
	_, err := r.Discord.ModifyScheduledEvent(ctx, remoteID, discord.ScheduledEventPatch{Status: &active})
	return err
}

// ActivateDueScheduledEvents promotes remote objects whose event has started
// but which are still in scheduled status. This covers events with no signup
// activity near start time, which would otherwise never transition. One
// failing event does not abort the sweep.
func (r *Reconciler) ActivateDueScheduledEvents(ctx context.Context) {
	if !r.Discord.IsConnected() {
		return
	}
	now := r.now()

	var events []models.Event
	err := r.DB.WithContext(ctx).
		Where("discord_scheduled_event_id <> '' AND canceled_at IS NULL AND start_at <= ? AND end_at > ?", now, now).
		Find(&events).Error
	if err != nil {
		r.log().Error("activation sweep query failed", "err", err)
		return
	}

	for i := range events {
		ev := &events[i]
		remote, err := r.Discord.GetScheduledEvent(ctx, ev.DiscordScheduledEventID)
		if discord.IsUnknownScheduledEvent(err) {
			metrics.RemoteDriftRepaired.Inc()
			r.storeScheduledEventID(ctx, ev.ID, "")
			continue
		}
		if err != nil {
			r.log().Error("activation sweep fetch failed", "event_id", ev.ID, "err", err)
			continue
		}
		if remote.Status != discord.EventStatusScheduled {
			continue
		}
		if err := r.ensureActive(ctx, ev.DiscordScheduledEventID, remote.Status); err != nil {
			r.log().Error("activation sweep promote failed", "event_id", ev.ID, "err", err)
			continue
		}
		r.log().Info("scheduled event activated", "event_id", ev.ID)
	}
}

func (r *Reconciler) loadEvent(ctx context.Context, eventID uuid.UUID) (*models.Event, bool) {
	var ev models.Event
	err := r.DB.WithContext(ctx).First(&ev, "id = ?", eventID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false
	}
	if err != nil {
		r.log().Error("load event failed", "event_id", eventID, "err", err)
		return nil, false
	}
	return &ev, true
}

func (r *Reconciler) storeScheduledEventID(ctx context.Context, eventID uuid.UUID, remoteID string) {
	err := r.DB.WithContext(ctx).Model(&models.Event{}).
		Where("id = ?", eventID).
		Updates(map[string]any{"discord_scheduled_event_id": remoteID, "updated_at": time.Now()}).Error
	if err != nil {
		r.log().Error("store scheduled event id failed", "event_id", eventID, "err", err)
	}
}
