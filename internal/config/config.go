package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the env-backed settings provider consumed by the sync engine.
// main loads .env via godotenv before calling Load.
type Config struct {
	PostgresDSN string
	ElasticURL  string

	DiscordToken   string
	DiscordGuildID string

	CommunityName string
	PublicBaseURL string
	Timezone      string

	DefaultChannelID      string
	DefaultVoiceChannelID string

	// DebounceWindow is the delay between the last sync trigger and the job
	// becoming runnable.
	DebounceWindow time.Duration
	// DefaultLeadTime is how far ahead a non-series event may be posted.
	DefaultLeadTime time.Duration

	ListenAddr string

	loc *time.Location
}

func Load() (*Config, error) {
	c := &Config{
		PostgresDSN:           os.Getenv("POSTGRES_DSN"),
		ElasticURL:            os.Getenv("ELASTIC_URL"),
		DiscordToken:          os.Getenv("DISCORD_TOKEN"),
		DiscordGuildID:        os.Getenv("DISCORD_GUILD_ID"),
		CommunityName:         envOr("COMMUNITY_NAME", "Guild"),
		PublicBaseURL:         os.Getenv("PUBLIC_BASE_URL"),
		Timezone:              envOr("DEFAULT_TIMEZONE", "UTC"),
		DefaultChannelID:      os.Getenv("DEFAULT_CHANNEL_ID"),
		DefaultVoiceChannelID: os.Getenv("DEFAULT_VOICE_CHANNEL_ID"),
		DebounceWindow:        envSeconds("SYNC_DEBOUNCE_SECONDS", 10*time.Second),
		DefaultLeadTime:       envSeconds("DEFAULT_LEAD_SECONDS", 6*24*time.Hour),
		ListenAddr:            envOr("LISTEN_ADDR", ":8080"),
	}

	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	c.loc = loc
	return c, nil
}

// Location returns the community's configured timezone.
func (c *Config) Location() *time.Location {
	if c.loc == nil {
		return time.UTC
	}
	return c.loc
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envSeconds(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return time.Duration(n) * time.Second
}
