package infra

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/journalgate/internal/domain"
)

const (
	// DefaultClockCheckInterval is how often ClockWatcher samples the clock.
	DefaultClockCheckInterval = 5 * time.Second

	// Wall-clock drift beyond this between samples counts as a manual change.
	clockJumpTolerance = 2 * time.Second
)

// SignalPublisher accepts in-process device signals.
type SignalPublisher interface {
	Publish(sig domain.DeviceSignal)
}

// ClockWatcher publishes SignalTimeChanged when the wall clock jumps relative
// to the monotonic clock, the zone or its UTC offset changes, or the calendar
// day rolls over.
type ClockWatcher struct {
	publisher SignalPublisher
	interval  time.Duration
	logger    *zap.Logger

	now   func() time.Time
	since func() time.Duration
}

// clockSample pairs a wall reading with monotonic time since the watcher started.
type clockSample struct {
	wall time.Time
	mono time.Duration
}

// NewClockWatcher creates a watcher sampling every interval (zero means the default).
func NewClockWatcher(publisher SignalPublisher, interval time.Duration, logger *zap.Logger) *ClockWatcher {
	if interval <= 0 {
		interval = DefaultClockCheckInterval
	}
	return &ClockWatcher{
		publisher: publisher,
		interval:  interval,
		logger:    logger,
		now:       time.Now,
		since:     monotonicSince(time.Now()),
	}
}

func monotonicSince(start time.Time) func() time.Duration {
	return func() time.Duration { return time.Since(start) }
}

// Run samples until ctx is done.
func (w *ClockWatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	prev := w.sample()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			cur := w.sample()
			if reason, changed := clockChanged(prev, cur); changed {
				w.logger.Info("clock change detected",
					zap.String("reason", reason),
					zap.Time("was", prev.wall),
					zap.Time("now", cur.wall))
				w.publisher.Publish(domain.DeviceSignal{Kind: domain.SignalTimeChanged, At: cur.wall})
			}
			prev = cur
		}
	}
}

func (w *ClockWatcher) sample() clockSample {
	return clockSample{wall: w.now().Round(0), mono: w.since()}
}

func clockChanged(prev, cur clockSample) (string, bool) {
	prevZone, prevOffset := prev.wall.Zone()
	curZone, curOffset := cur.wall.Zone()
	if prevOffset != curOffset {
		return "offset", true
	}
	if prevZone != curZone {
		return "zone", true
	}

	drift := cur.wall.Sub(prev.wall) - (cur.mono - prev.mono)
	if drift > clockJumpTolerance || drift < -clockJumpTolerance {
		return "jump", true
	}

	if domain.DayOf(prev.wall) != domain.DayOf(cur.wall) {
		return "date", true
	}
	return "", false
}
