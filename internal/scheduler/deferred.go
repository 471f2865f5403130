// Package scheduler runs the periodic sweeps: the deferred first-post sweep
// and the scheduled-event activation sweep.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/teambition/rrule-go"
	"gorm.io/gorm"

	"github.com/example/guildsync/internal/models"
)

// DefaultLeadTime is how far ahead a one-off event's first post may appear.
const DefaultLeadTime = 6 * 24 * time.Hour

// Poster is the first-post path shared with every other posting trigger.
type Poster interface {
	PostEmbed(ctx context.Context, ev *models.Event) error
}

// Activator promotes past-start scheduled events that are still in
// scheduled status remotely.
type Activator interface {
	ActivateDueScheduledEvents(ctx context.Context)
}

type DeferredPoster struct {
	DB     *gorm.DB
	Poster Poster
	// LeadTime is the flat default for non-series events.
	LeadTime time.Duration
	// Location is the community timezone the lead window is evaluated in.
	Location *time.Location
	Now      func() time.Time
	Log      *slog.Logger
}

func (d *DeferredPoster) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func (d *DeferredPoster) log() *slog.Logger {
	if d.Log != nil {
		return d.Log
	}
	return slog.Default()
}

// Start registers both sweeps on one cron runner. The returned cron is
// already running; callers stop it on shutdown.
func Start(ctx context.Context, d *DeferredPoster, act Activator) *cron.Cron {
	c := cron.New()
	c.AddFunc("@every 15m", func() { d.SweepOnce(ctx) })
	c.AddFunc("@every 5m", func() { act.ActivateDueScheduledEvents(ctx) })
	c.Start()
	return c
}

// SweepOnce posts every future event whose lead-time window has opened and
// which has no presence record yet. Events are independent: one failure is
// logged and the sweep moves on.
func (d *DeferredPoster) SweepOnce(ctx context.Context) {
	loc := d.Location
	if loc == nil {
		loc = time.UTC
	}
	now := d.now().In(loc)

	var events []models.Event
	err := d.DB.WithContext(ctx).
		Where("canceled_at IS NULL AND is_ad_hoc = ? AND start_at > ?", false, now).
		Where("id NOT IN (?)", d.DB.Model(&models.PresenceRecord{}).Select("event_id")).
		Order("start_at asc").
		Find(&events).Error
	if err != nil {
		d.log().Error("deferred post query failed", "err", err)
		return
	}

	for i := range events {
		ev := &events[i]
		lead, err := d.leadTimeFor(ctx, ev)
		if err != nil {
			d.log().Error("lead time lookup failed", "event_id", ev.ID, "err", err)
			continue
		}
		if ev.StartAt.Sub(now) > lead {
			continue
		}
		if err := d.Poster.PostEmbed(ctx, ev); err != nil {
			d.log().Error("deferred post failed", "event_id", ev.ID, "err", err)
			continue
		}
	}
}

// leadTimeFor derives the posting window. Series events use the gap between
// consecutive recurrences so the next occurrence appears roughly as the
// previous one happens; one-off events use the flat default.
func (d *DeferredPoster) leadTimeFor(ctx context.Context, ev *models.Event) (time.Duration, error) {
	fallback := d.LeadTime
	if fallback <= 0 {
		fallback = DefaultLeadTime
	}
	if ev.SeriesID == nil {
		return fallback, nil
	}

	var series models.EventSeries
	err := d.DB.WithContext(ctx).First(&series, "id = ?", *ev.SeriesID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fallback, nil
	}
	if err != nil {
		return 0, err
	}
	if gap, ok := recurrenceGap(series.RRule, d.now()); ok {
		return gap, nil
	}
	return fallback, nil
}

// recurrenceGap returns the interval between the next two occurrences of an
// RRULE, or false when the rule is absent, invalid or exhausted.
func recurrenceGap(rule string, now time.Time) (time.Duration, bool) {
	if rule == "" {
		return 0, false
	}
	r, err := rrule.StrToRRule(rule)
	if err != nil {
		return 0, false
	}
	first := r.After(now, true)
	if first.IsZero() {
		return 0, false
	}
	second := r.After(first, false)
	if second.IsZero() || !second.After(first) {
		return 0, false
	}
	return second.Sub(first), true
}
