// Package presence holds the pure core of the sync engine: the embed
// lifecycle state machine and the message renderer. Nothing here does I/O.
package presence

import (
	"time"

	"github.com/example/guildsync/internal/models"
)

// ImminentThreshold is how close to start time an event switches from
// capacity-based states to "imminent".
const ImminentThreshold = 2 * time.Hour

// ComputeState recomputes an event's embed state from scratch. Time-based
// states win over capacity-based ones, checked in strict priority order.
// Cancellation is not computed here: it is set by the cancellation handler
// and is terminal, so a cancelled previous state is returned unchanged.
func ComputeState(now, startAt, endAt time.Time, maxAttendees *int, signupCount int, prev models.EmbedState) models.EmbedState {
	if prev == models.StateCancelled {
		return models.StateCancelled
	}
	switch {
	case !now.Before(endAt):
		return models.StateCompleted
	case !now.Before(startAt):
		return models.StateLive
	case startAt.Sub(now) <= ImminentThreshold:
		return models.StateImminent
	case maxAttendees != nil && signupCount >= *maxAttendees:
		return models.StateFull
	case signupCount > 0:
		return models.StateFilling
	default:
		return models.StatePosted
	}
}
