// Package daemon implements the long-lived gate daemon and its background
// components: the morning scheduler, the unlock monitor and the enforcement
// backends.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/journalgate/internal/clock"
	"github.com/eliteGoblin/focusd/journalgate/internal/domain"
	"github.com/eliteGoblin/focusd/journalgate/internal/policy"
	"github.com/eliteGoblin/focusd/journalgate/internal/usecase"
)

// Host bundles the platform adapters the daemon drives.
type Host struct {
	Settings   domain.SettingsSource
	Entries    domain.EntrySource
	Completion domain.CompletionHook // optional
	Signals    domain.DeviceSignals
	Probe      domain.LockProbe
	Foreground domain.ForegroundObserver
	Usage      domain.UsageStats
	Navigator  domain.Navigator
	Reminder   domain.Reminder
}

// Watcher is the gate daemon. It keeps settings and today's entry mirrored,
// runs the morning scheduler, listens for unlocks while the monitor is idle,
// handles manual resets and publishes a status heartbeat.
type Watcher struct {
	config   GateConfig
	host     Host
	registry domain.DaemonRegistry
	daemon   domain.Daemon
	logger   *zap.Logger

	settings    *usecase.SettingsCache
	state       *usecase.BlockingState
	bridge      *usecase.JournalBridge
	gate        *usecase.Gate
	enforcement *Enforcement
	monitor     *UnlockMonitor
	scheduler   *MorningScheduler
	periodic    *Periodic
}

// NewWatcher wires every component of the daemon. c may be nil for the real
// clock.
func NewWatcher(
	config GateConfig,
	host Host,
	registry domain.DaemonRegistry,
	daemon domain.Daemon,
	c clock.Clock,
	logger *zap.Logger,
) *Watcher {
	if c == nil {
		c = clock.Real{}
	}

	settings := usecase.NewSettingsCache(host.Settings, logger.Named("settings"))
	state := usecase.NewBlockingState(c)
	bridge := usecase.NewJournalBridge(host.Entries, settings, state, host.Completion, c, logger.Named("journal"))
	gate := usecase.NewGate(settings, host.Entries, bridge, state, c)
	filter := policy.NewFilter()

	hard := NewHardInterceptor(host.Foreground, host.Navigator, settings, state, filter, config, c, logger.Named("hard"))
	gentle := NewGentlePoller(host.Usage, host.Reminder, gate, state, filter, config, c, logger.Named("gentle"))
	enforcement := NewEnforcement(logger.Named("enforcement"), hard, gentle)

	monitor := NewUnlockMonitor(host.Signals, host.Probe, gate, state, enforcement, config, logger.Named("monitor"))

	return &Watcher{
		config:      config,
		host:        host,
		registry:    registry,
		daemon:      daemon,
		logger:      logger,
		settings:    settings,
		state:       state,
		bridge:      bridge,
		gate:        gate,
		enforcement: enforcement,
		monitor:     monitor,
		scheduler:   NewMorningScheduler(gate, monitor, config.SchedulerInterval, logger.Named("scheduler")),
		periodic:    NewPeriodic(logger.Named("periodic")),
	}
}

// State exposes the shared blocking state.
func (w *Watcher) State() *usecase.BlockingState { return w.state }

// Monitor exposes the unlock monitor.
func (w *Watcher) Monitor() *UnlockMonitor { return w.monitor }

// Enforcement exposes the backend owner.
func (w *Watcher) Enforcement() *Enforcement { return w.enforcement }

// Settings exposes the settings cache.
func (w *Watcher) Settings() *usecase.SettingsCache { return w.settings }

// Run starts the daemon loop.
// This blocks until context is canceled.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.registry.Register(w.daemon); err != nil {
		w.logger.Error("failed to register daemon", zap.Error(err))
		return err
	}

	receiver, err := w.host.Signals.Subscribe(domain.SignalUnlock, domain.SignalManualReset)
	if err != nil {
		return fmt.Errorf("failed to subscribe to device signals: %w", err)
	}
	defer func() {
		if err := receiver.Unsubscribe(); err != nil && !errors.Is(err, domain.ErrAlreadyUnsubscribed) {
			w.logger.Warn("failed to release device signals", zap.Error(err))
		}
	}()

	w.logger.Info("gate daemon started",
		zap.Int("pid", w.daemon.PID),
		zap.String("version", w.daemon.AppVersion))

	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer wg.Wait()
	defer cancel()
	defer w.shutdown()

	if _, err := w.settings.Refresh(ctx); err != nil {
		w.logger.Warn("initial settings read failed, using defaults", zap.Error(err))
	}
	w.settings.OnChange(func(domain.EffectiveSettings) {
		w.bridge.Reevaluate(ctx)
		w.periodic.Kick(MorningCheckJob)
	})

	w.spawn(ctx, &wg, "settings", w.settings.Run)
	w.spawn(ctx, &wg, "journal", w.bridge.Run)

	w.scheduler.Register(ctx, w.periodic)

	heartbeat := time.NewTicker(w.config.HeartbeatInterval)
	defer heartbeat.Stop()
	w.heartbeat()

	signals := receiver.C()
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("gate daemon stopping")
			return ctx.Err()

		case sig, ok := <-signals:
			if !ok {
				w.logger.Warn("device signal stream closed")
				signals = nil
				continue
			}
			w.handleSignal(ctx, sig)

		case <-heartbeat.C:
			w.heartbeat()
		}
	}
}

// handleSignal serves the always-on receiver: manual resets, and unlocks that
// must reach the monitor even when it was not yet subscribed.
func (w *Watcher) handleSignal(ctx context.Context, sig domain.DeviceSignal) {
	switch sig.Kind {
	case domain.SignalManualReset:
		w.state.ForceReset()
		w.logger.Info("blocking state reset manually")
		w.heartbeat()

	case domain.SignalUnlock:
		// A run the scheduler just started may have subscribed after this
		// unlock was published. Arming never extends the timer.
		w.monitor.Start(ctx)
		w.monitor.Deliver()
	}
}

// Status returns the display snapshot published with each heartbeat.
func (w *Watcher) Status() domain.StatusSnapshot {
	rec := w.state.Snapshot()
	status := domain.StatusSnapshot{
		Armed:            rec.Armed(),
		Blocking:         rec.IsBlocking,
		JournalCompleted: rec.JournalCompleted,
		MonitorRunning:   w.monitor.Running(),
		Day:              rec.ResetDate,
	}
	if rec.BlockingEndAt != nil {
		status.BlockingEndsAt = rec.BlockingEndAt.Unix()
	}
	if mode, ok := w.enforcement.Active(); ok {
		status.Backend = string(mode)
	}
	return status
}

func (w *Watcher) heartbeat() {
	if err := w.registry.Heartbeat(w.Status()); err != nil {
		w.logger.Warn("failed to update heartbeat", zap.Error(err))
	}
}

// spawn runs fn until ctx is canceled, logging an unexpected exit.
func (w *Watcher) spawn(ctx context.Context, wg *sync.WaitGroup, name string, fn func(context.Context) error) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
			w.logger.Error("background stream ended", zap.String("stream", name), zap.Error(err))
		}
	}()
}

// shutdown stops the scheduler, the monitor and any active backend.
func (w *Watcher) shutdown() {
	w.periodic.CancelAll()
	w.monitor.Stop()
	w.enforcement.StopAll()
}
