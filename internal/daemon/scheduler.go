package daemon

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/journalgate/internal/usecase"
)

// MorningCheckJob is the periodic job name of the morning-window check.
const MorningCheckJob = "morning-window-check"

// MonitorController is the part of the unlock monitor the scheduler drives.
type MonitorController interface {
	Start(ctx context.Context) bool
	Stop() bool
	Running() bool
}

// MorningScheduler re-evaluates the morning window on a fixed interval and
// keeps the unlock monitor running only while the gate is open.
type MorningScheduler struct {
	gate     *usecase.Gate
	monitor  MonitorController
	interval time.Duration
	logger   *zap.Logger
}

// NewMorningScheduler creates a scheduler. A zero interval uses the default.
func NewMorningScheduler(gate *usecase.Gate, monitor MonitorController, interval time.Duration, logger *zap.Logger) *MorningScheduler {
	if interval <= 0 {
		interval = DefaultSchedulerInterval
	}
	return &MorningScheduler{gate: gate, monitor: monitor, interval: interval, logger: logger}
}

// Register schedules the check under MorningCheckJob with an immediate first
// run. Registering twice is a no-op.
func (s *MorningScheduler) Register(ctx context.Context, p *Periodic) bool {
	return p.Schedule(ctx, MorningCheckJob, s.interval, s.Tick, true)
}

// Tick runs one check. Read failures are logged and the tick does nothing.
func (s *MorningScheduler) Tick(ctx context.Context) {
	check, err := s.gate.Evaluate(ctx)
	if err != nil {
		s.logger.Warn("morning check skipped", zap.Error(err))
		return
	}

	if !check.Open() {
		if s.monitor.Stop() {
			s.logger.Info("unlock monitor stopped by scheduler",
				zap.String("reason", string(check.Reason)))
		}
		return
	}

	if !s.monitor.Running() {
		s.monitor.Start(ctx)
	}
}
