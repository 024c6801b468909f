package domain

import (
	"context"
	"time"
)

// ProcessManager handles OS process operations.
// Implementation: uses gopsutil for cross-platform support.
type ProcessManager interface {
	// Kill terminates a process by PID (SIGKILL).
	Kill(pid int) error

	// IsRunning checks if a PID exists and is running.
	IsRunning(pid int) bool

	// GetCurrentPID returns the current process PID.
	GetCurrentPID() int
}

// SettingsSource is the external settings collaborator.
type SettingsSource interface {
	// Load performs a one-shot read of the current settings.
	Load(ctx context.Context) (EffectiveSettings, error)

	// Subscribe streams settings on every change until ctx is done.
	// The current value is delivered first.
	Subscribe(ctx context.Context) (<-chan EffectiveSettings, error)
}

// EntrySource is the read side of the external entry store.
type EntrySource interface {
	// Today returns today's entry. A missing entry has WordCount 0.
	Today(ctx context.Context) (TodayEntry, error)

	// Subscribe streams today's entry on every change until ctx is done.
	// The current value is delivered first.
	Subscribe(ctx context.Context) (<-chan TodayEntry, error)
}

// EntryWriter is the write side used by the `write` command.
type EntryWriter interface {
	// SaveToday stores today's entry body and returns its word count.
	SaveToday(ctx context.Context, body string) (TodayEntry, error)
}

// CompletionHook receives the "journal completed" edge event.
type CompletionHook interface {
	JournalCompleted(ctx context.Context, day string, words uint32) error
}

// Subscription is a live registration for device signals.
type Subscription interface {
	// C delivers signals until Unsubscribe is called.
	C() <-chan DeviceSignal

	// Unsubscribe releases the registration. A second call returns
	// ErrAlreadyUnsubscribed.
	Unsubscribe() error
}

// DeviceSignals delivers unlock, screen-on and time-change notifications.
type DeviceSignals interface {
	Subscribe(kinds ...SignalKind) (Subscription, error)
}

// LockProbe answers "is the device actually unlocked right now".
type LockProbe interface {
	IsUnlocked(ctx context.Context) (bool, error)
}

// ForegroundObserver is the privileged system-wide foreground-app hook.
type ForegroundObserver interface {
	// Observe streams foreground changes until ctx is done.
	Observe(ctx context.Context) (<-chan ForegroundEvent, error)
}

// UsageStats is the coarse, less-privileged foreground sampling query.
type UsageStats interface {
	// MostRecent returns the most recently used app within lookback.
	MostRecent(ctx context.Context, lookback time.Duration) (AppUsage, bool, error)
}

// Navigator force-navigates the user to the reflection screen.
type Navigator interface {
	Redirect(ctx context.Context, trigger ForegroundEvent) error
}

// Reminder shows a dismissible reminder overlay.
type Reminder interface {
	Remind(ctx context.Context, pkg string) error
}

// DaemonRegistry lets CLI commands discover the long-lived daemon.
// Implementation: hidden JSON file in the data directory.
type DaemonRegistry interface {
	// Register saves the current daemon's PID.
	Register(daemon Daemon) error

	// Heartbeat refreshes the liveness timestamp and the status snapshot.
	Heartbeat(status StatusSnapshot) error

	// IsAlive checks if the registered daemon is running via PID.
	IsAlive() (bool, error)

	// Get returns the registry state (for status command).
	Get() (*RegistryEntry, error)

	// Clear removes the registry file.
	Clear() error

	// Path returns the registry file path (for tests).
	Path() string
}

// KeyProvider abstracts the source of the entry store encryption key.
type KeyProvider interface {
	// GetKey returns the encryption key bytes.
	GetKey() ([]byte, error)

	// StoreKey persists a new encryption key.
	StoreKey(key []byte) error

	// KeyExists checks if a key has been generated.
	KeyExists() bool
}
