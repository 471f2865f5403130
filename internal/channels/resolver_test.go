package channels

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/guildsync/internal/models"
	"github.com/example/guildsync/internal/testutil"
)

func seedBindings(t *testing.T, gdb *gorm.DB, gameChannel, gameVoice, seriesChannel string) (uuid.UUID, *uuid.UUID) {
	t.Helper()
	game := models.Game{Name: "Throne and Liberty", DiscordChannelID: gameChannel, DiscordVoiceChannelID: gameVoice}
	if err := gdb.Create(&game).Error; err != nil {
		t.Fatalf("create game: %v", err)
	}
	series := models.EventSeries{GameID: game.ID, Name: "Weekly Raid", DiscordChannelID: seriesChannel}
	if err := gdb.Create(&series).Error; err != nil {
		t.Fatalf("create series: %v", err)
	}
	return game.ID, &series.ID
}

func TestResolveChannelSeriesWins(t *testing.T) {
	gdb := testutil.OpenDB(t)
	gameID, seriesID := seedBindings(t, gdb, "game-chan", "", "series-chan")
	r := &Resolver{DB: gdb, DefaultChannelID: "default-chan"}

	got, err := r.ResolveChannel(context.Background(), gameID, seriesID)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != "series-chan" {
		t.Fatalf("got %q, want series binding", got)
	}
}

func TestResolveChannelFallsBackToGame(t *testing.T) {
	gdb := testutil.OpenDB(t)
	gameID, seriesID := seedBindings(t, gdb, "game-chan", "", "")
	r := &Resolver{DB: gdb, DefaultChannelID: "default-chan"}

	got, err := r.ResolveChannel(context.Background(), gameID, seriesID)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != "game-chan" {
		t.Fatalf("got %q, want game binding", got)
	}
}

func TestResolveChannelFallsBackToDefault(t *testing.T) {
	gdb := testutil.OpenDB(t)
	gameID, _ := seedBindings(t, gdb, "", "", "")
	r := &Resolver{DB: gdb, DefaultChannelID: "default-chan"}

	got, err := r.ResolveChannel(context.Background(), gameID, nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != "default-chan" {
		t.Fatalf("got %q, want default", got)
	}
}

func TestResolveChannelNothingConfigured(t *testing.T) {
	gdb := testutil.OpenDB(t)
	r := &Resolver{DB: gdb}

	// Unknown game, no series, no default: "" means skip, not an error.
	got, err := r.ResolveChannel(context.Background(), uuid.New(), nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != "" {
		t.Fatalf("got %q, want empty", got)
	}
}

func TestResolveVoiceChannel(t *testing.T) {
	gdb := testutil.OpenDB(t)
	gameID, _ := seedBindings(t, gdb, "", "game-voice", "")
	r := &Resolver{DB: gdb, DefaultVoiceChannelID: "default-voice"}

	got, err := r.ResolveVoiceChannel(context.Background(), gameID)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != "game-voice" {
		t.Fatalf("got %q, want game voice binding", got)
	}

	got, err = r.ResolveVoiceChannel(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != "default-voice" {
		t.Fatalf("got %q, want default voice", got)
	}
}
