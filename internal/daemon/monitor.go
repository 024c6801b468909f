package daemon

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/journalgate/internal/domain"
	"github.com/eliteGoblin/focusd/journalgate/internal/usecase"
)

// monitorSignals are the signals the unlock monitor listens to while running.
var monitorSignals = []domain.SignalKind{
	domain.SignalUnlock,
	domain.SignalScreenOn,
	domain.SignalTimeChanged,
}

// UnlockMonitor waits for the first qualifying unlock of the morning, arms the
// blocking timer and activates the configured backend.
//
// It exits on its own as soon as the gate closes (blocking disabled, outside the
// window, or journal satisfied), checked on start and after every qualifying
// signal.
type UnlockMonitor struct {
	signals     domain.DeviceSignals
	probe       domain.LockProbe
	gate        *usecase.Gate
	state       *usecase.BlockingState
	enforcement *Enforcement
	config      GateConfig
	logger      *zap.Logger

	life lifecycle

	mu      sync.Mutex
	deliver chan struct{} // forwarded unlocks for the active run, nil when stopped
}

var _ MonitorController = (*UnlockMonitor)(nil)

// NewUnlockMonitor creates a stopped monitor.
func NewUnlockMonitor(
	signals domain.DeviceSignals,
	probe domain.LockProbe,
	gate *usecase.Gate,
	state *usecase.BlockingState,
	enforcement *Enforcement,
	config GateConfig,
	logger *zap.Logger,
) *UnlockMonitor {
	return &UnlockMonitor{
		signals:     signals,
		probe:       probe,
		gate:        gate,
		state:       state,
		enforcement: enforcement,
		config:      config,
		logger:      logger,
	}
}

// Start subscribes to device signals and runs until Stop or until the gate
// closes. It does nothing when already running or when the gate is closed.
func (m *UnlockMonitor) Start(ctx context.Context) bool {
	if m.life.running() {
		return false
	}

	check, err := m.gate.Evaluate(ctx)
	if err != nil {
		m.logger.Warn("unlock monitor not started", zap.Error(err))
		return false
	}
	if !check.Open() {
		m.logger.Debug("unlock monitor not needed", zap.String("reason", string(check.Reason)))
		return false
	}

	sub, err := m.signals.Subscribe(monitorSignals...)
	if err != nil {
		m.logger.Error("failed to subscribe to device signals", zap.Error(err))
		return false
	}

	logger := m.logger.With(zap.String("run_id", uuid.NewString()))
	deliver := make(chan struct{}, 1)

	m.mu.Lock()
	started := m.life.start(ctx, func(ctx context.Context) {
		m.run(ctx, sub, deliver, logger)
	})
	if started {
		m.deliver = deliver
	}
	m.mu.Unlock()

	if !started {
		m.release(sub, logger)
		return false
	}

	logger.Info("unlock monitor started")
	return true
}

// Stop ends the current run. Idempotent.
func (m *UnlockMonitor) Stop() bool {
	return m.life.stop()
}

// Running reports whether a run is active.
func (m *UnlockMonitor) Running() bool {
	return m.life.running()
}

// Deliver hands an unlock observed elsewhere to the current run, for the case
// where the run subscribed after the unlock was published. It is dropped when
// no run is active. Returns true if a run received it.
func (m *UnlockMonitor) Deliver() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.deliver == nil {
		return false
	}
	select {
	case m.deliver <- struct{}{}:
	default:
	}
	return true
}

func (m *UnlockMonitor) run(ctx context.Context, sub domain.Subscription, deliver chan struct{}, logger *zap.Logger) {
	defer m.release(sub, logger)
	defer m.endRun(deliver)

	for {
		select {
		case <-ctx.Done():
			logger.Info("unlock monitor stopped")
			return

		case <-deliver:
			if !m.qualify(ctx, logger) {
				return
			}

		case sig, ok := <-sub.C():
			if !ok {
				logger.Warn("device signal stream closed")
				return
			}
			if !m.handle(ctx, sig, logger) {
				return
			}
		}
	}
}

// handle processes one signal and reports whether the monitor keeps running.
func (m *UnlockMonitor) handle(ctx context.Context, sig domain.DeviceSignal, logger *zap.Logger) bool {
	logger.Debug("device signal", zap.String("kind", string(sig.Kind)))

	switch sig.Kind {
	case domain.SignalUnlock:
		return m.qualify(ctx, logger)
	case domain.SignalScreenOn:
		return m.probeAndQualify(ctx, m.config.ScreenOnSettle, logger)
	case domain.SignalTimeChanged:
		m.state.ForceReset()
		logger.Info("clock changed, blocking state reset")
		return m.probeAndQualify(ctx, m.config.TimeChangeSettle, logger)
	}
	return true
}

// probeAndQualify waits for settle, then treats a positive lock probe as an
// unlock.
func (m *UnlockMonitor) probeAndQualify(ctx context.Context, settle time.Duration, logger *zap.Logger) bool {
	timer := time.NewTimer(settle)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return true
	case <-timer.C:
	}

	unlocked, err := m.probe.IsUnlocked(ctx)
	if err != nil {
		logger.Warn("lock probe failed", zap.Error(err))
		return true
	}
	if !unlocked {
		return true
	}
	return m.qualify(ctx, logger)
}

// qualify re-validates the gate against fresh reads, then arms and enforces.
// Returns false when the gate is closed and the monitor should exit.
func (m *UnlockMonitor) qualify(ctx context.Context, logger *zap.Logger) bool {
	check, err := m.gate.Evaluate(ctx)
	if err != nil {
		logger.Warn("unlock ignored", zap.Error(err))
		return true
	}
	if !check.Open() {
		logger.Info("unlock monitor exiting", zap.String("reason", string(check.Reason)))
		return false
	}

	s := check.Settings
	if m.state.Arm(s.Duration()) {
		logger.Info("blocking armed",
			zap.Uint32("duration_min", s.DurationMinutes),
			zap.Uint64("remaining_sec", m.state.RemainingSeconds()),
			zap.Uint32("words", check.Words))
	}
	if !m.state.ShouldBlock() {
		logger.Debug("blocking over for today, nothing to enforce")
		return true
	}
	m.enforcement.Activate(ctx, s.EnforcementMode)
	return true
}

// endRun drops the run's deliver channel so later tokens are not carried over.
func (m *UnlockMonitor) endRun(deliver chan struct{}) {
	m.mu.Lock()
	if m.deliver == deliver {
		m.deliver = nil
	}
	m.mu.Unlock()
}

// release unsubscribes exactly once per run. A repeated release is harmless.
func (m *UnlockMonitor) release(sub domain.Subscription, logger *zap.Logger) {
	if err := sub.Unsubscribe(); err != nil && !errors.Is(err, domain.ErrAlreadyUnsubscribed) {
		logger.Warn("failed to release device signals", zap.Error(err))
	}
}
