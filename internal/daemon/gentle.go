package daemon

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/journalgate/internal/clock"
	"github.com/eliteGoblin/focusd/journalgate/internal/domain"
	"github.com/eliteGoblin/focusd/journalgate/internal/policy"
	"github.com/eliteGoblin/focusd/journalgate/internal/usecase"
)

// GentlePoller samples recent app usage and shows a dismissible reminder when a
// blocked app is in use. It needs no privileged foreground hook.
type GentlePoller struct {
	usage    domain.UsageStats
	reminder domain.Reminder
	gate     *usecase.Gate
	state    *usecase.BlockingState
	filter   *policy.Filter
	cooldown *usecase.Cooldown
	config   GateConfig
	logger   *zap.Logger

	life lifecycle
}

var _ Backend = (*GentlePoller)(nil)

// NewGentlePoller creates a stopped poller.
func NewGentlePoller(
	usage domain.UsageStats,
	reminder domain.Reminder,
	gate *usecase.Gate,
	state *usecase.BlockingState,
	filter *policy.Filter,
	config GateConfig,
	c clock.Clock,
	logger *zap.Logger,
) *GentlePoller {
	return &GentlePoller{
		usage:    usage,
		reminder: reminder,
		gate:     gate,
		state:    state,
		filter:   filter,
		cooldown: usecase.NewCooldown(config.GentleCooldown, c),
		config:   config,
		logger:   logger,
	}
}

// Mode returns ModeGentle.
func (p *GentlePoller) Mode() domain.EnforcementMode {
	return domain.ModeGentle
}

// Start begins polling.
func (p *GentlePoller) Start(ctx context.Context) bool {
	return p.life.start(ctx, p.run)
}

// Stop ends polling. Idempotent.
func (p *GentlePoller) Stop() bool {
	return p.life.stop()
}

// Running reports whether the poller is active.
func (p *GentlePoller) Running() bool {
	return p.life.running()
}

func (p *GentlePoller) run(ctx context.Context) {
	ticker := time.NewTicker(p.config.GentlePollInterval)
	defer ticker.Stop()

	for {
		if !p.Poll(ctx) {
			p.logger.Info("gentle poller stopping")
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Poll takes one usage sample and reminds if needed. Returns false when the
// gate has closed or the blocking timer is over, and polling should end.
func (p *GentlePoller) Poll(ctx context.Context) bool {
	check := p.gate.EvaluateCached()
	if !check.Open() {
		p.logger.Debug("gate closed", zap.String("reason", string(check.Reason)))
		return false
	}
	if !p.state.ShouldBlock() {
		p.logger.Debug("blocking over")
		return false
	}

	usage, ok, err := p.usage.MostRecent(ctx, p.config.UsageLookback)
	if err != nil {
		if errors.Is(err, domain.ErrPermissionDenied) {
			p.logger.Warn("usage statistics not permitted", zap.Error(err))
		} else {
			p.logger.Debug("usage sample failed", zap.Error(err))
		}
		return true
	}
	if !ok {
		return true
	}

	if !p.filter.Eligible(usage.Package, check.Settings.BlockedPackages) {
		return true
	}
	if !p.cooldown.Allow(usage.Package) {
		return true
	}

	if err := p.reminder.Remind(ctx, usage.Package); err != nil {
		p.logger.Warn("reminder failed", zap.String("package", usage.Package), zap.Error(err))
		return true
	}
	p.logger.Info("reminder shown", zap.String("package", usage.Package))
	return true
}
