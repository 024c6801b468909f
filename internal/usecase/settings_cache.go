package usecase

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/journalgate/internal/domain"
)

// SettingsCache mirrors the external settings into an atomically swapped cell.
// Snapshot never performs I/O, so it is safe on the foreground event path.
type SettingsCache struct {
	source  domain.SettingsSource
	current atomic.Pointer[domain.EffectiveSettings]
	loaded  atomic.Bool
	logger  *zap.Logger

	mu        sync.Mutex
	listeners []func(domain.EffectiveSettings)
}

// NewSettingsCache creates a cache seeded with DefaultSettings.
func NewSettingsCache(source domain.SettingsSource, logger *zap.Logger) *SettingsCache {
	c := &SettingsCache{source: source, logger: logger}
	defaults := domain.DefaultSettings()
	c.current.Store(&defaults)
	return c
}

// Snapshot returns the latest cached settings.
func (c *SettingsCache) Snapshot() domain.EffectiveSettings {
	return *c.current.Load()
}

// Loaded reports whether at least one real value has been received.
func (c *SettingsCache) Loaded() bool {
	return c.loaded.Load()
}

// OnChange registers fn to be called after each update that changes a value.
func (c *SettingsCache) OnChange(fn func(domain.EffectiveSettings)) {
	c.mu.Lock()
	c.listeners = append(c.listeners, fn)
	c.mu.Unlock()
}

// Refresh performs a one-shot read and updates the cache.
func (c *SettingsCache) Refresh(ctx context.Context) (domain.EffectiveSettings, error) {
	s, err := c.source.Load(ctx)
	if err != nil {
		return c.Snapshot(), err
	}
	c.store(s)
	return s, nil
}

// Run subscribes to the settings stream and keeps the cache current.
// It blocks until ctx is canceled or the stream closes.
func (c *SettingsCache) Run(ctx context.Context) error {
	updates, err := c.source.Subscribe(ctx)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case s, ok := <-updates:
			if !ok {
				return nil
			}
			c.store(s)
		}
	}
}

func (c *SettingsCache) store(s domain.EffectiveSettings) {
	if s.BlockedPackages == nil {
		s.BlockedPackages = domain.NewPackageSet()
	}
	prev := c.current.Swap(&s)
	first := !c.loaded.Swap(true)
	if !first && prev.Equal(s) {
		return
	}

	c.logger.Debug("settings updated",
		zap.Bool("enabled", s.BlockingEnabled),
		zap.Int("window_start", s.WindowStartHour),
		zap.Int("window_end", s.WindowEndHour),
		zap.Uint32("duration_min", s.DurationMinutes),
		zap.Uint32("required_words", s.RequiredWordCount),
		zap.Int("blocked", len(s.BlockedPackages)),
		zap.String("mode", string(s.EnforcementMode)))

	c.mu.Lock()
	listeners := append([]func(domain.EffectiveSettings){}, c.listeners...)
	c.mu.Unlock()
	for _, fn := range listeners {
		fn(s)
	}
}
