package daemon

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/journalgate/internal/domain"
)

// Backend is one enforcement strategy.
type Backend interface {
	Mode() domain.EnforcementMode
	Start(ctx context.Context) bool
	Stop() bool
	Running() bool
}

// Enforcement owns the backends and keeps at most one of them active.
type Enforcement struct {
	logger *zap.Logger

	mu       sync.Mutex
	backends map[domain.EnforcementMode]Backend
}

// NewEnforcement registers the available backends by mode.
func NewEnforcement(logger *zap.Logger, backends ...Backend) *Enforcement {
	e := &Enforcement{logger: logger, backends: make(map[domain.EnforcementMode]Backend, len(backends))}
	for _, b := range backends {
		e.backends[b.Mode()] = b
	}
	return e
}

// Activate stops every other backend, then starts the one for mode. The backend
// outlives the caller's cancellation; it ends on its own or through StopAll.
// Returns true if this call started it.
func (e *Enforcement) Activate(ctx context.Context, mode domain.EnforcementMode) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	target, ok := e.backends[mode]
	if !ok {
		e.logger.Warn("no backend for enforcement mode", zap.String("mode", string(mode)))
		return false
	}

	for m, b := range e.backends {
		if m != mode && b.Stop() {
			e.logger.Info("enforcement backend stopped", zap.String("mode", string(m)))
		}
	}

	if !target.Start(context.WithoutCancel(ctx)) {
		return false
	}
	e.logger.Info("enforcement backend started", zap.String("mode", string(mode)))
	return true
}

// StopAll stops every backend.
func (e *Enforcement) StopAll() {
	e.mu.Lock()
	defer e.mu.Unlock()

	for m, b := range e.backends {
		if b.Stop() {
			e.logger.Info("enforcement backend stopped", zap.String("mode", string(m)))
		}
	}
}

// Active returns the mode of the running backend, if any.
func (e *Enforcement) Active() (domain.EnforcementMode, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for m, b := range e.backends {
		if b.Running() {
			return m, true
		}
	}
	return "", false
}
