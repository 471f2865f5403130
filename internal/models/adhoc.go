package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AdHocParticipant accumulates voice presence for one user in one ad-hoc
// event. A row is active while LeftAt is nil; rejoining an inactive row
// bumps SessionCount instead of creating a second row, and DurationSeconds
// only ever grows.
type AdHocParticipant struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey"`
	EventID         uuid.UUID `gorm:"type:uuid;index:idx_adhoc_event_user,unique;not null"`
	DiscordUserID   string    `gorm:"index:idx_adhoc_event_user,unique;not null"`
	JoinedAt        time.Time `gorm:"not null"`
	LeftAt          *time.Time
	DurationSeconds int64 `gorm:"default:0"`
	SessionCount    int   `gorm:"default:1"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (a *AdHocParticipant) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
