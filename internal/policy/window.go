package policy

import (
	"time"

	"github.com/eliteGoblin/focusd/journalgate/internal/domain"
)

// InWindow reports whether now falls in [startHour, endHour) local time.
func InWindow(now time.Time, startHour, endHour int) bool {
	h := now.Hour()
	return h >= startHour && h < endHour
}

// InMorningWindow evaluates the window configured in s.
func InMorningWindow(now time.Time, s domain.EffectiveSettings) bool {
	return InWindow(now, s.WindowStartHour, s.WindowEndHour)
}

// WindowEnd returns the instant the window closes on now's calendar day.
func WindowEnd(now time.Time, endHour int) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, now.Location()).Add(time.Duration(endHour) * time.Hour)
}
