// Package channels resolves which Discord channel an event's presence
// belongs in. Bindings are tiered: series overrides game overrides the
// community default, and an empty result means "nothing configured, skip".
package channels

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/guildsync/internal/models"
)

type Resolver struct {
	DB *gorm.DB

	// Community-wide fallbacks, "" = unset.
	DefaultChannelID      string
	DefaultVoiceChannelID string
}

// ResolveChannel returns the text channel for an event's presence message,
// or "" when no binding exists at any tier.
func (r *Resolver) ResolveChannel(ctx context.Context, gameID uuid.UUID, seriesID *uuid.UUID) (string, error) {
	if seriesID != nil {
		var series models.EventSeries
		err := r.DB.WithContext(ctx).First(&series, "id = ?", *seriesID).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return "", err
		}
		if err == nil && series.DiscordChannelID != "" {
			return series.DiscordChannelID, nil
		}
	}

	var game models.Game
	err := r.DB.WithContext(ctx).First(&game, "id = ?", gameID).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", err
	}
	if err == nil && game.DiscordChannelID != "" {
		return game.DiscordChannelID, nil
	}

	return r.DefaultChannelID, nil
}

// ResolveVoiceChannel returns the voice channel used for the guild scheduled
// event, or "" when none is bound.
func (r *Resolver) ResolveVoiceChannel(ctx context.Context, gameID uuid.UUID) (string, error) {
	var game models.Game
	err := r.DB.WithContext(ctx).First(&game, "id = ?", gameID).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", err
	}
	if err == nil && game.DiscordVoiceChannelID != "" {
		return game.DiscordVoiceChannelID, nil
	}
	return r.DefaultVoiceChannelID, nil
}
