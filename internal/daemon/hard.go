package daemon

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/journalgate/internal/clock"
	"github.com/eliteGoblin/focusd/journalgate/internal/domain"
	"github.com/eliteGoblin/focusd/journalgate/internal/policy"
	"github.com/eliteGoblin/focusd/journalgate/internal/usecase"
)

// HardInterceptor consumes system-wide foreground events and force-navigates
// away from blocked apps while the blocking timer runs.
//
// The per-event decision reads only cached values. Redirects are queued to a
// worker; when the queue is full the redirect is dropped and the next event for
// the same app retries after the cooldown.
type HardInterceptor struct {
	observer  domain.ForegroundObserver
	navigator domain.Navigator
	settings  *usecase.SettingsCache
	state     *usecase.BlockingState
	filter    *policy.Filter
	cooldown  *usecase.Cooldown
	config    GateConfig
	logger    *zap.Logger

	life lifecycle
}

var _ Backend = (*HardInterceptor)(nil)

// NewHardInterceptor creates a stopped interceptor.
func NewHardInterceptor(
	observer domain.ForegroundObserver,
	navigator domain.Navigator,
	settings *usecase.SettingsCache,
	state *usecase.BlockingState,
	filter *policy.Filter,
	config GateConfig,
	c clock.Clock,
	logger *zap.Logger,
) *HardInterceptor {
	return &HardInterceptor{
		observer:  observer,
		navigator: navigator,
		settings:  settings,
		state:     state,
		filter:    filter,
		cooldown:  usecase.NewCooldown(config.HardCooldown, c),
		config:    config,
		logger:    logger,
	}
}

// Mode returns ModeHard.
func (h *HardInterceptor) Mode() domain.EnforcementMode {
	return domain.ModeHard
}

// Start begins observing foreground changes.
func (h *HardInterceptor) Start(ctx context.Context) bool {
	return h.life.start(ctx, h.run)
}

// Stop ends observation. Idempotent.
func (h *HardInterceptor) Stop() bool {
	return h.life.stop()
}

// Running reports whether the interceptor is observing.
func (h *HardInterceptor) Running() bool {
	return h.life.running()
}

// Decide reports whether ev should be redirected, and records the cooldown
// when it should.
func (h *HardInterceptor) Decide(ev domain.ForegroundEvent) bool {
	s := h.settings.Snapshot()
	if !s.BlockingEnabled {
		return false
	}
	if !h.filter.Eligible(ev.Package, s.BlockedPackages) {
		return false
	}
	if !h.state.ShouldBlock() {
		return false
	}
	return h.cooldown.Allow(ev.Package)
}

func (h *HardInterceptor) run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)

	events, err := h.observer.Observe(ctx)
	if err != nil {
		cancel()
		h.logger.Error("foreground observation unavailable", zap.Error(err))
		return
	}

	redirects := make(chan domain.ForegroundEvent, h.config.RedirectQueue)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		h.redirectLoop(ctx, redirects)
	}()
	defer wg.Wait()
	defer cancel()

	housekeeping := time.NewTicker(h.config.HardHousekeeping)
	defer housekeeping.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-events:
			if !ok {
				h.logger.Warn("foreground event stream closed")
				return
			}
			if !h.Decide(ev) {
				continue
			}
			select {
			case redirects <- ev:
			default:
				h.logger.Warn("redirect queue full, dropping", zap.String("package", ev.Package))
			}

		case <-housekeeping.C:
			if !h.state.ShouldBlock() {
				h.logger.Info("blocking over, interceptor stopping")
				return
			}
		}
	}
}

func (h *HardInterceptor) redirectLoop(ctx context.Context, redirects <-chan domain.ForegroundEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-redirects:
			if err := h.navigator.Redirect(ctx, ev); err != nil {
				h.logger.Warn("redirect failed",
					zap.String("package", ev.Package),
					zap.Error(err))
				continue
			}
			h.logger.Info("redirected to journal",
				zap.String("package", ev.Package),
				zap.Int("pid", ev.PID),
				zap.Uint64("remaining_sec", h.state.RemainingSeconds()))
		}
	}
}
