package usecase

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/journalgate/internal/domain"
)

func TestSettingsCache_DefaultsBeforeLoad(t *testing.T) {
	cache := NewSettingsCache(newMockSettingsSource(morningSettings()), zap.NewNop())

	assert.False(t, cache.Loaded())
	assert.Equal(t, domain.DefaultSettings().WindowStartHour, cache.Snapshot().WindowStartHour)
	assert.False(t, cache.Snapshot().BlockingEnabled)
}

func TestSettingsCache_Refresh(t *testing.T) {
	source := newMockSettingsSource(morningSettings())
	cache := NewSettingsCache(source, zap.NewNop())

	s, err := cache.Refresh(context.Background())

	require.NoError(t, err)
	assert.True(t, s.BlockingEnabled)
	assert.True(t, cache.Loaded())
	assert.True(t, cache.Snapshot().IsBlocked("Steam"))
}

func TestSettingsCache_RefreshFailureKeepsLastValue(t *testing.T) {
	source := newMockSettingsSource(morningSettings())
	cache := NewSettingsCache(source, zap.NewNop())
	_, err := cache.Refresh(context.Background())
	require.NoError(t, err)

	source.failWith(errUnavailable)
	s, err := cache.Refresh(context.Background())

	assert.ErrorIs(t, err, errUnavailable)
	assert.True(t, s.BlockingEnabled)
	assert.True(t, cache.Snapshot().BlockingEnabled)
}

func TestSettingsCache_RunAppliesUpdates(t *testing.T) {
	source := newMockSettingsSource(morningSettings())
	cache := NewSettingsCache(source, zap.NewNop())

	var notified atomic.Int32
	cache.OnChange(func(domain.EffectiveSettings) { notified.Add(1) })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = cache.Run(ctx) }()

	updated := morningSettings()
	updated.EnforcementMode = domain.ModeGentle
	updated.BlockedPackages = nil
	source.updates <- updated

	assert.Eventually(t, func() bool {
		return cache.Snapshot().EnforcementMode == domain.ModeGentle
	}, time.Second, 5*time.Millisecond)
	assert.NotNil(t, cache.Snapshot().BlockedPackages)
	assert.Eventually(t, func() bool { return notified.Load() == 1 }, time.Second, 5*time.Millisecond)
}

func TestSettingsCache_UnchangedRefreshDoesNotNotify(t *testing.T) {
	source := newMockSettingsSource(morningSettings())
	cache := NewSettingsCache(source, zap.NewNop())

	var notified atomic.Int32
	cache.OnChange(func(domain.EffectiveSettings) { notified.Add(1) })

	for i := 0; i < 3; i++ {
		_, err := cache.Refresh(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), notified.Load())

	changed := morningSettings()
	changed.RequiredWordCount = 300
	source.set(changed)
	_, err := cache.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), notified.Load())
}
