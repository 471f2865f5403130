package db

import (
	"log/slog"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/example/guildsync/internal/models"
)

// Seed inserts a sample game, series and upcoming event so a fresh install
// has something to sync. Skipped when any game already exists.
func Seed(db *gorm.DB) error {
	var count int64
	if err := db.Model(&models.Game{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		slog.Debug("seed skipped, data already present")
		return nil
	}

	return db.Transaction(func(tx *gorm.DB) error {
		game := models.Game{
			Name:                  "Throne and Liberty",
			DiscordChannelID:      "",
			DiscordVoiceChannelID: "",
		}
		if err := tx.Create(&game).Error; err != nil {
			return err
		}

		series := models.EventSeries{
			GameID: game.ID,
			Name:   "Weekly Guild Raid",
			RRule:  "FREQ=WEEKLY;BYDAY=TH",
		}
		if err := tx.Create(&series).Error; err != nil {
			return err
		}

		start := time.Now().Add(72 * time.Hour).Truncate(time.Hour)
		capacity := 25
		event := models.Event{
			Title:        "Weekly Guild Raid",
			Description:  "Bring consumables. Invites go out 15 minutes before start.",
			StartAt:      start,
			EndAt:        start.Add(3 * time.Hour),
			MaxAttendees: &capacity,
			Roles:        datatypes.JSON([]byte(`{"tank":2,"healer":5,"dps":18}`)),
			GameID:       game.ID,
			SeriesID:     &series.ID,
		}
		if err := tx.Create(&event).Error; err != nil {
			return err
		}

		slog.Info("seed data inserted", "game", game.Name, "event", event.Title)
		return nil
	})
}
