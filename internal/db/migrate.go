package db

import (
	"gorm.io/gorm"

	"github.com/example/guildsync/internal/models"
)

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Game{},
		&models.EventSeries{},
		&models.Event{},
		&models.EventSignup{},
		&models.RosterAssignment{},
		&models.PresenceRecord{},
		&models.SyncJob{},
		&models.DeadLetter{},
		&models.AdHocParticipant{},
	)
}
