package sessions

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/example/guildsync/internal/models"
	"github.com/example/guildsync/internal/testutil"
)

func newTracker(t *testing.T) (*Tracker, *time.Time) {
	t.Helper()
	now := time.Date(2026, 8, 30, 21, 0, 0, 0, time.UTC)
	tr := &Tracker{
		DB:  testutil.OpenDB(t),
		Now: func() time.Time { return now },
	}
	return tr, &now
}

func TestJoinLeaveRejoin(t *testing.T) {
	tr, now := newTracker(t)
	ctx := context.Background()
	eventID := uuid.New()

	if err := tr.AddParticipant(ctx, eventID, "user-1"); err != nil {
		t.Fatalf("join: %v", err)
	}

	*now = now.Add(10 * time.Minute)
	if err := tr.MarkLeave(ctx, eventID, "user-1"); err != nil {
		t.Fatalf("leave: %v", err)
	}

	*now = now.Add(5 * time.Minute)
	if err := tr.AddParticipant(ctx, eventID, "user-1"); err != nil {
		t.Fatalf("rejoin: %v", err)
	}

	var rows []models.AdHocParticipant
	if err := tr.DB.Where("event_id = ?", eventID).Find(&rows).Error; err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rejoin must reuse the row, got %d rows", len(rows))
	}
	p := rows[0]
	if p.SessionCount != 2 {
		t.Fatalf("session count = %d, want 2", p.SessionCount)
	}
	if p.LeftAt != nil {
		t.Fatal("rejoined row must be active")
	}
	if p.DurationSeconds != 600 {
		t.Fatalf("accumulated = %d, want 600", p.DurationSeconds)
	}
}

func TestDoubleJoinIsNoOp(t *testing.T) {
	tr, _ := newTracker(t)
	ctx := context.Background()
	eventID := uuid.New()

	if err := tr.AddParticipant(ctx, eventID, "user-1"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := tr.AddParticipant(ctx, eventID, "user-1"); err != nil {
		t.Fatalf("second join: %v", err)
	}

	var p models.AdHocParticipant
	tr.DB.First(&p, "event_id = ?", eventID)
	if p.SessionCount != 1 {
		t.Fatalf("active join must not bump sessions, got %d", p.SessionCount)
	}
}

func TestDoubleLeaveAccumulatesOnce(t *testing.T) {
	tr, now := newTracker(t)
	ctx := context.Background()
	eventID := uuid.New()

	if err := tr.AddParticipant(ctx, eventID, "user-1"); err != nil {
		t.Fatalf("join: %v", err)
	}
	*now = now.Add(2 * time.Minute)
	if err := tr.MarkLeave(ctx, eventID, "user-1"); err != nil {
		t.Fatalf("leave: %v", err)
	}
	*now = now.Add(2 * time.Minute)
	if err := tr.MarkLeave(ctx, eventID, "user-1"); err != nil {
		t.Fatalf("second leave: %v", err)
	}

	var p models.AdHocParticipant
	tr.DB.First(&p, "event_id = ?", eventID)
	if p.DurationSeconds != 120 {
		t.Fatalf("accumulated = %d, want 120", p.DurationSeconds)
	}
}

func TestLeaveUnknownParticipantIsNoOp(t *testing.T) {
	tr, _ := newTracker(t)
	if err := tr.MarkLeave(context.Background(), uuid.New(), "ghost"); err != nil {
		t.Fatalf("unknown leave must be a no-op: %v", err)
	}
}

func TestFinalizeAllClosesOpenSessions(t *testing.T) {
	tr, now := newTracker(t)
	ctx := context.Background()
	eventID := uuid.New()

	for _, user := range []string{"a", "b", "c"} {
		if err := tr.AddParticipant(ctx, eventID, user); err != nil {
			t.Fatalf("join %s: %v", user, err)
		}
	}
	*now = now.Add(30 * time.Minute)
	if err := tr.MarkLeave(ctx, eventID, "b"); err != nil {
		t.Fatalf("leave b: %v", err)
	}

	*now = now.Add(30 * time.Minute)
	if err := tr.FinalizeAll(ctx, eventID); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	var open int64
	tr.DB.Model(&models.AdHocParticipant{}).Where("event_id = ? AND left_at IS NULL", eventID).Count(&open)
	if open != 0 {
		t.Fatalf("expected zero open sessions, got %d", open)
	}

	var b models.AdHocParticipant
	tr.DB.First(&b, "event_id = ? AND discord_user_id = ?", eventID, "b")
	if b.DurationSeconds != 1800 {
		t.Fatalf("b accumulated = %d, want 1800 (finalize must not re-close)", b.DurationSeconds)
	}

	var a models.AdHocParticipant
	tr.DB.First(&a, "event_id = ? AND discord_user_id = ?", eventID, "a")
	if a.DurationSeconds != 3600 {
		t.Fatalf("a accumulated = %d, want 3600", a.DurationSeconds)
	}

	// Finalizing again with nothing open is fine.
	if err := tr.FinalizeAll(ctx, eventID); err != nil {
		t.Fatalf("second finalize: %v", err)
	}
}
