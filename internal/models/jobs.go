package models

import (
	"time"

	"github.com/google/uuid"
)

// SyncJob is one pending presence reconciliation for an event. The queue keeps
// at most one unclaimed job per event: a new trigger deletes the pending row
// and inserts a fresh one with a new RunAt, which is what debounces bursts.
type SyncJob struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	EventID   uuid.UUID `gorm:"type:uuid;index;not null"`
	Reason    string    `gorm:"not null"`
	RunAt     time.Time `gorm:"index;not null"`
	Attempts  int       `gorm:"default:0"`
	Claimed   bool      `gorm:"default:false"`
	CreatedAt time.Time
}

// DeadLetter records a sync job whose retries were exhausted.
type DeadLetter struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	EventID   uuid.UUID `gorm:"type:uuid;index;not null"`
	Reason    string
	ErrorMsg  string
	Attempts  int
	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP"`
	RetriedAt *time.Time
	Resolved  bool `gorm:"default:false"`
}
