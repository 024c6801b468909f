package daemon

import "time"

// DefaultSchedulerInterval is the morning-window re-evaluation period.
const DefaultSchedulerInterval = 15 * time.Minute

// GateConfig holds the gate daemon's timing knobs.
type GateConfig struct {
	SchedulerInterval  time.Duration // How often to re-evaluate the morning window
	ScreenOnSettle     time.Duration // Delay before probing lock state after screen-on
	TimeChangeSettle   time.Duration // Delay before probing lock state after a time change
	HardCooldown       time.Duration // Per-package redirect cooldown
	HardHousekeeping   time.Duration // How often the interceptor checks whether it is still needed
	RedirectQueue      int           // Pending redirects before new ones are dropped
	GentlePollInterval time.Duration // Usage sampling period
	GentleCooldown     time.Duration // Per-package reminder cooldown
	UsageLookback      time.Duration // Usage stats query window
	HeartbeatInterval  time.Duration // How often to refresh the registry status
}

// DefaultGateConfig returns default gate configuration.
func DefaultGateConfig() GateConfig {
	return GateConfig{
		SchedulerInterval:  DefaultSchedulerInterval,
		ScreenOnSettle:     500 * time.Millisecond,
		TimeChangeSettle:   time.Second,
		HardCooldown:       time.Second,
		HardHousekeeping:   30 * time.Second,
		RedirectQueue:      16,
		GentlePollInterval: 2500 * time.Millisecond,
		GentleCooldown:     30 * time.Second,
		UsageLookback:      60 * time.Second,
		HeartbeatInterval:  10 * time.Second,
	}
}
