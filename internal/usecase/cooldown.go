package usecase

import (
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/eliteGoblin/focusd/journalgate/internal/clock"
)

// Cooldown spaces out enforcement actions per package: at most one action per
// window for a given package. Entries live in memory only.
type Cooldown struct {
	mu       sync.Mutex
	window   time.Duration
	clock    clock.Clock
	limiters map[string]*rate.Limiter
}

// NewCooldown creates a per-package cooldown of the given window.
func NewCooldown(window time.Duration, c clock.Clock) *Cooldown {
	if c == nil {
		c = clock.Real{}
	}
	return &Cooldown{
		window:   window,
		clock:    c,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Allow reports whether an action against pkg may happen now, and if so
// records it.
func (c *Cooldown) Allow(pkg string) bool {
	key := strings.ToLower(pkg)

	c.mu.Lock()
	defer c.mu.Unlock()

	l, ok := c.limiters[key]
	if !ok {
		l = rate.NewLimiter(rate.Every(c.window), 1)
		c.limiters[key] = l
	}
	return l.AllowN(c.clock.Now(), 1)
}

// Window returns the configured cooldown.
func (c *Cooldown) Window() time.Duration {
	return c.window
}

// Reset forgets every package.
func (c *Cooldown) Reset() {
	c.mu.Lock()
	c.limiters = make(map[string]*rate.Limiter)
	c.mu.Unlock()
}
