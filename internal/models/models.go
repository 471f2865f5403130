package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ---------------- GAMES ----------------
type Game struct {
	ID                    uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name                  string    `gorm:"uniqueIndex;not null"`
	DiscordChannelID      string    // per-game text channel binding, "" = unbound
	DiscordVoiceChannelID string    // per-game voice channel binding, "" = unbound
	CreatedAt             time.Time
	UpdatedAt             time.Time
	Events                []Event `gorm:"foreignKey:GameID"`
}

func (g *Game) BeforeCreate(tx *gorm.DB) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	return nil
}

// ---------------- EVENT SERIES ----------------

// EventSeries is a recurring template that spawns individual events.
// RRule holds an RFC 5545 RRULE string (e.g. "FREQ=WEEKLY;BYDAY=TH").
type EventSeries struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey"`
	GameID           uuid.UUID `gorm:"type:uuid;index;not null"`
	Name             string    `gorm:"not null"`
	RRule            string
	DiscordChannelID string // per-series text channel binding, "" = unbound
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (s *EventSeries) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// ---------------- EVENTS ----------------
type Event struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	Title       string    `gorm:"not null"`
	Description string
	StartAt     time.Time `gorm:"index;not null"`
	EndAt       time.Time `gorm:"not null"`
	// MaxAttendees is nil when the event has no capacity limit.
	MaxAttendees *int
	// Roles holds the slot configuration as JSON, e.g. {"tank":2,"healer":5}.
	Roles      datatypes.JSON
	CanceledAt *time.Time
	GameID     uuid.UUID  `gorm:"type:uuid;index;not null"`
	SeriesID   *uuid.UUID `gorm:"type:uuid;index"`
	IsAdHoc    bool       `gorm:"default:false"`
	// DiscordScheduledEventID links to the guild scheduled event, "" = none.
	DiscordScheduledEventID string
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

func (e *Event) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// Canceled reports whether the event was canceled in the domain.
func (e *Event) Canceled() bool { return e.CanceledAt != nil }

// ---------------- SIGNUPS ----------------

const (
	SignupConfirmed = "confirmed"
	SignupWithdrawn = "withdrawn"
)

type EventSignup struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	EventID       uuid.UUID `gorm:"type:uuid;index:idx_signup_event_user,unique;not null"`
	DiscordUserID string    `gorm:"index:idx_signup_event_user,unique;not null"`
	Status        string    `gorm:"not null;default:confirmed"`
	Role          string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (s *EventSignup) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// ---------------- ROSTER ----------------

// RosterAssignment pins a signed-up user into a named slot.
type RosterAssignment struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	EventID       uuid.UUID `gorm:"type:uuid;index;not null"`
	DiscordUserID string    `gorm:"not null"`
	Slot          string    `gorm:"not null"`
	CreatedAt     time.Time
}

func (r *RosterAssignment) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
