// Package domain contains core business entities and interfaces.
// This is the innermost layer in Clean Architecture - no external dependencies.
package domain

import (
	"sort"
	"strings"
	"time"
)

// DayLayout is the calendar-day stamp format used for day-scoped state.
const DayLayout = "2006-01-02"

// DayOf returns the local calendar day of t.
func DayOf(t time.Time) string {
	return t.Format(DayLayout)
}

// EnforcementMode selects which enforcement backend acts on a blocking decision.
type EnforcementMode string

const (
	// ModeHard force-redirects the user away from a blocked app.
	ModeHard EnforcementMode = "hard"
	// ModeGentle shows a dismissible reminder.
	ModeGentle EnforcementMode = "gentle"
)

// ParseEnforcementMode maps a config string to a mode. Unknown values fall back to hard.
func ParseEnforcementMode(s string) (EnforcementMode, bool) {
	switch EnforcementMode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeHard:
		return ModeHard, true
	case ModeGentle:
		return ModeGentle, true
	default:
		return ModeHard, false
	}
}

// PackageSet is a case-insensitive set of package ids (process names on desktop hosts).
type PackageSet map[string]struct{}

// NewPackageSet builds a set from the given ids, skipping blanks.
func NewPackageSet(ids ...string) PackageSet {
	set := make(PackageSet, len(ids))
	for _, id := range ids {
		id = strings.ToLower(strings.TrimSpace(id))
		if id == "" {
			continue
		}
		set[id] = struct{}{}
	}
	return set
}

// Contains reports whether id is in the set, ignoring case.
func (s PackageSet) Contains(id string) bool {
	if len(s) == 0 {
		return false
	}
	_, ok := s[strings.ToLower(id)]
	return ok
}

// Equal reports whether both sets hold the same ids.
func (s PackageSet) Equal(o PackageSet) bool {
	if len(s) != len(o) {
		return false
	}
	for id := range s {
		if _, ok := o[id]; !ok {
			return false
		}
	}
	return true
}

// List returns the ids in sorted order.
func (s PackageSet) List() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// EffectiveSettings is the read-only snapshot of user configuration consumed by
// every component. WindowEndHour > WindowStartHour is guaranteed by the writer.
type EffectiveSettings struct {
	BlockingEnabled   bool
	WindowStartHour   int // 0..23
	WindowEndHour     int // 1..24
	DurationMinutes   uint32
	RequiredWordCount uint32
	BlockedPackages   PackageSet
	EnforcementMode   EnforcementMode
}

// Duration returns the grace timer length.
func (s EffectiveSettings) Duration() time.Duration {
	return time.Duration(s.DurationMinutes) * time.Minute
}

// IsBlocked reports whether pkg is on the blocked list.
func (s EffectiveSettings) IsBlocked(pkg string) bool {
	return s.BlockedPackages.Contains(pkg)
}

// Satisfied reports whether words meets the required word count.
func (s EffectiveSettings) Satisfied(words uint32) bool {
	return words >= s.RequiredWordCount
}

// Equal compares two snapshots field by field.
func (s EffectiveSettings) Equal(o EffectiveSettings) bool {
	return s.BlockingEnabled == o.BlockingEnabled &&
		s.WindowStartHour == o.WindowStartHour &&
		s.WindowEndHour == o.WindowEndHour &&
		s.DurationMinutes == o.DurationMinutes &&
		s.RequiredWordCount == o.RequiredWordCount &&
		s.EnforcementMode == o.EnforcementMode &&
		s.BlockedPackages.Equal(o.BlockedPackages)
}

// DefaultSettings mirrors the defaults a fresh install starts with.
func DefaultSettings() EffectiveSettings {
	return EffectiveSettings{
		BlockingEnabled:   false,
		WindowStartHour:   5,
		WindowEndHour:     10,
		DurationMinutes:   15,
		RequiredWordCount: 200,
		BlockedPackages:   NewPackageSet(),
		EnforcementMode:   ModeHard,
	}
}

// DayBlockingRecord is the day-scoped blocking state. It lives in memory only.
type DayBlockingRecord struct {
	ResetDate        string
	FirstUnlockAt    *time.Time
	BlockingEndAt    *time.Time
	IsBlocking       bool
	JournalCompleted bool
}

// Armed reports whether a blocking window was started today.
func (r DayBlockingRecord) Armed() bool {
	return r.FirstUnlockAt != nil
}

// TodayEntry is the slice of today's journal entry the control loop cares about.
type TodayEntry struct {
	Date      string
	WordCount uint32
}

// SignalKind identifies a device-level signal.
type SignalKind string

const (
	SignalUnlock      SignalKind = "unlock"
	SignalLock        SignalKind = "lock"
	SignalScreenOn    SignalKind = "screen-on"
	SignalTimeChanged SignalKind = "time-changed"
	SignalManualReset SignalKind = "reset"
)

// AllSignalKinds lists every signal the host can deliver.
var AllSignalKinds = []SignalKind{
	SignalUnlock,
	SignalLock,
	SignalScreenOn,
	SignalTimeChanged,
	SignalManualReset,
}

// ParseSignalKind validates a signal name.
func ParseSignalKind(s string) (SignalKind, bool) {
	for _, k := range AllSignalKinds {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}

// DeviceSignal is one delivered signal.
type DeviceSignal struct {
	Kind SignalKind
	At   time.Time
}

// ForegroundEvent reports an app coming to the foreground.
type ForegroundEvent struct {
	Package string
	PID     int
	At      time.Time
}

// AppUsage is one sample from the usage statistics query.
type AppUsage struct {
	Package  string
	PID      int
	LastUsed time.Time
}

// Daemon represents the running gate daemon.
type Daemon struct {
	PID        int
	StartedAt  time.Time
	AppVersion string
}

// StatusSnapshot is the display-only view of the blocking state published with
// each heartbeat. It is never read back into the state machine.
type StatusSnapshot struct {
	Armed            bool   `json:"armed"`
	Blocking         bool   `json:"blocking"`
	BlockingEndsAt   int64  `json:"blocking_ends_at,omitempty"`
	JournalCompleted bool   `json:"journal_completed"`
	MonitorRunning   bool   `json:"monitor_running"`
	Backend          string `json:"backend,omitempty"`
	Day              string `json:"day,omitempty"`
}

// RegistryEntry is persisted to a hidden file so CLI commands can find the daemon.
type RegistryEntry struct {
	Version       int            `json:"version"`
	PID           int            `json:"pid"`
	StartedAt     int64          `json:"started_at"`
	LastHeartbeat int64          `json:"last_heartbeat"`
	AppVersion    string         `json:"app_version,omitempty"`
	Status        StatusSnapshot `json:"status"`
}

// CountWords counts whitespace-separated words in a journal body.
func CountWords(body string) uint32 {
	return uint32(len(strings.Fields(body)))
}
