package discord

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotConnected is returned when the client has no live session.
var ErrNotConnected = errors.New("discord: not connected")

// CodeUnknownScheduledEvent is Discord's error code for a guild scheduled
// event that no longer exists. It is the only code the reconciler branches
// on: receiving it means the remote object was deleted out-of-band.
const CodeUnknownScheduledEvent = 10070

// Guild scheduled event status values as defined by the Discord API.
const (
	EventStatusScheduled = 1
	EventStatusActive    = 2
	EventStatusCompleted = 3
	EventStatusCanceled  = 4
)

// APIError is a structured error returned by the Discord REST API.
type APIError struct {
	HTTPStatus int
	Code       int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("discord api error %d (http %d): %s", e.Code, e.HTTPStatus, e.Message)
}

// IsUnknownScheduledEvent reports whether err is the benign "remote object
// no longer exists" condition.
func IsUnknownScheduledEvent(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == CodeUnknownScheduledEvent
}

// ScheduledEvent is a guild scheduled event as seen over the API.
type ScheduledEvent struct {
	ID          string     `json:"id"`
	GuildID     string     `json:"guild_id"`
	ChannelID   string     `json:"channel_id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Status      int        `json:"status"`
	StartTime   time.Time  `json:"scheduled_start_time"`
	EndTime     *time.Time `json:"scheduled_end_time,omitempty"`
}

// ScheduledEventParams creates a voice-channel scheduled event.
type ScheduledEventParams struct {
	ChannelID   string
	Name        string
	Description string
	StartTime   time.Time
	EndTime     time.Time
}

// ScheduledEventPatch carries only the fields to modify; nil means unchanged.
type ScheduledEventPatch struct {
	Name        *string
	Description *string
	StartTime   *time.Time
	EndTime     *time.Time
	Status      *int
}

// Client is the slice of the Discord API the sync engine needs. It is
// injected rather than used as a package singleton so the reconciler and
// sweeps can run against a fake in tests.
type Client interface {
	// IsConnected reports whether the client has a usable session.
	IsConnected() bool
	// GuildID returns the configured guild, "" when unknown.
	GuildID() string

	SendMessage(ctx context.Context, channelID, content string) (messageID string, err error)
	EditMessage(ctx context.Context, channelID, messageID, content string) error

	CreateScheduledEvent(ctx context.Context, params ScheduledEventParams) (*ScheduledEvent, error)
	ModifyScheduledEvent(ctx context.Context, id string, patch ScheduledEventPatch) (*ScheduledEvent, error)
	DeleteScheduledEvent(ctx context.Context, id string) error
	GetScheduledEvent(ctx context.Context, id string) (*ScheduledEvent, error)
}
