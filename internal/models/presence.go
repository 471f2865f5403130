package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EmbedState describes what an event's public message should currently say.
type EmbedState string

const (
	StatePosted    EmbedState = "posted"
	StateFilling   EmbedState = "filling"
	StateFull      EmbedState = "full"
	StateImminent  EmbedState = "imminent"
	StateLive      EmbedState = "live"
	StateCompleted EmbedState = "completed"
	StateCancelled EmbedState = "cancelled"
)

// PresenceRecord links an event to its rendered message in Discord.
// At most one active record exists per event; a record is never deleted once
// the message exists — cancellation transitions State instead.
type PresenceRecord struct {
	ID               uuid.UUID  `gorm:"type:uuid;primaryKey"`
	EventID          uuid.UUID  `gorm:"type:uuid;uniqueIndex;not null"`
	DiscordMessageID string     `gorm:"not null"`
	DiscordChannelID string     `gorm:"not null"`
	GuildID          string     `gorm:"not null"`
	State            EmbedState `gorm:"not null"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (p *PresenceRecord) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
