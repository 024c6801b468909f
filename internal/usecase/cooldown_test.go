package usecase

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/eliteGoblin/focusd/journalgate/internal/clock"
)

func TestCooldown(t *testing.T) {
	tests := []struct {
		name   string
		window time.Duration
	}{
		{"hard interceptor", time.Second},
		{"gentle poller", 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := clock.NewFake(sixAM())
			cd := NewCooldown(tt.window, c)

			assert.True(t, cd.Allow("steam"), "first action allowed")
			assert.False(t, cd.Allow("steam"), "immediate repeat suppressed")

			c.Advance(tt.window / 2)
			assert.False(t, cd.Allow("steam"), "still inside window")

			c.Advance(tt.window/2 + time.Millisecond)
			assert.True(t, cd.Allow("steam"), "allowed once the window elapsed")
			assert.False(t, cd.Allow("steam"))
		})
	}
}

func TestCooldown_PerPackage(t *testing.T) {
	cd := NewCooldown(time.Second, clock.NewFake(sixAM()))

	assert.True(t, cd.Allow("steam"))
	assert.True(t, cd.Allow("discord"))
	assert.False(t, cd.Allow("STEAM"), "package ids ignore case")
}

func TestCooldown_AtMostOnePerWindow(t *testing.T) {
	c := clock.NewFake(sixAM())
	cd := NewCooldown(time.Second, c)

	allowed := 0
	for i := 0; i < 100; i++ {
		if cd.Allow("steam") {
			allowed++
		}
		c.Advance(5 * time.Millisecond)
	}
	// 100 requests over 500ms
	assert.Equal(t, 1, allowed)
}

func TestCooldown_Reset(t *testing.T) {
	cd := NewCooldown(time.Minute, clock.NewFake(sixAM()))
	cd.Allow("steam")

	cd.Reset()
	assert.True(t, cd.Allow("steam"))
	assert.Equal(t, time.Minute, cd.Window())
}
