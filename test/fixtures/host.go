// Package fixtures provides fake host collaborators for integration tests.
package fixtures

import (
	"context"
	"sync"
	"time"

	"github.com/eliteGoblin/focusd/journalgate/internal/domain"
)

// FakeForeground is a ForegroundObserver driven by Emit.
type FakeForeground struct {
	mu   sync.Mutex
	subs map[chan domain.ForegroundEvent]struct{}
}

// NewFakeForeground creates an observer with no watchers.
func NewFakeForeground() *FakeForeground {
	return &FakeForeground{subs: make(map[chan domain.ForegroundEvent]struct{})}
}

// Observe streams emitted events until ctx is done.
func (f *FakeForeground) Observe(ctx context.Context) (<-chan domain.ForegroundEvent, error) {
	ch := make(chan domain.ForegroundEvent, 16)
	f.mu.Lock()
	f.subs[ch] = struct{}{}
	f.mu.Unlock()

	go func() {
		<-ctx.Done()
		f.mu.Lock()
		delete(f.subs, ch)
		close(ch)
		f.mu.Unlock()
	}()
	return ch, nil
}

// Watching reports whether any observer is attached.
func (f *FakeForeground) Watching() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs) > 0
}

// Emit reports pkg coming to the foreground.
func (f *FakeForeground) Emit(pkg string, pid int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subs {
		select {
		case ch <- domain.ForegroundEvent{Package: pkg, PID: pid, At: time.Now()}:
		default:
		}
	}
}

// RecordingNavigator counts redirects.
type RecordingNavigator struct {
	mu        sync.Mutex
	redirects []domain.ForegroundEvent
}

// Redirect records the trigger.
func (n *RecordingNavigator) Redirect(ctx context.Context, trigger domain.ForegroundEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.redirects = append(n.redirects, trigger)
	return nil
}

// Count returns the number of redirects so far.
func (n *RecordingNavigator) Count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.redirects)
}

// StaticUsage always reports the same app as most recently used.
type StaticUsage struct {
	mu    sync.Mutex
	usage domain.AppUsage
	found bool
}

// Set makes pkg the most recently used app.
func (u *StaticUsage) Set(pkg string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.usage = domain.AppUsage{Package: pkg, LastUsed: time.Now()}
	u.found = pkg != ""
}

// MostRecent returns the configured app.
func (u *StaticUsage) MostRecent(ctx context.Context, lookback time.Duration) (domain.AppUsage, bool, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.usage, u.found, nil
}

// RecordingReminder counts reminders per package.
type RecordingReminder struct {
	mu    sync.Mutex
	shown map[string]int
}

// Remind records pkg.
func (r *RecordingReminder) Remind(ctx context.Context, pkg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.shown == nil {
		r.shown = make(map[string]int)
	}
	r.shown[pkg]++
	return nil
}

// Count returns how often pkg was reminded about.
func (r *RecordingReminder) Count(pkg string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.shown[pkg]
}

var (
	_ domain.ForegroundObserver = (*FakeForeground)(nil)
	_ domain.Navigator          = (*RecordingNavigator)(nil)
	_ domain.UsageStats         = (*StaticUsage)(nil)
	_ domain.Reminder           = (*RecordingReminder)(nil)
)
