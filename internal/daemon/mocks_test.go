package daemon

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/journalgate/internal/clock"
	"github.com/eliteGoblin/focusd/journalgate/internal/domain"
	"github.com/eliteGoblin/focusd/journalgate/internal/usecase"
)

var errUnavailable = errors.New("store unavailable")

// sixAM is inside the default 5..10 morning window.
func sixAM() time.Time {
	return time.Date(2025, 3, 14, 6, 0, 0, 0, time.Local)
}

func morningSettings() domain.EffectiveSettings {
	return domain.EffectiveSettings{
		BlockingEnabled:   true,
		WindowStartHour:   5,
		WindowEndHour:     10,
		DurationMinutes:   15,
		RequiredWordCount: 200,
		BlockedPackages:   domain.NewPackageSet("steam", "discord"),
		EnforcementMode:   domain.ModeHard,
	}
}

// testConfig shrinks every delay so tests run in milliseconds.
func testConfig() GateConfig {
	return GateConfig{
		SchedulerInterval:  time.Hour,
		ScreenOnSettle:     time.Millisecond,
		TimeChangeSettle:   time.Millisecond,
		HardCooldown:       time.Second,
		HardHousekeeping:   10 * time.Millisecond,
		RedirectQueue:      4,
		GentlePollInterval: 5 * time.Millisecond,
		GentleCooldown:     30 * time.Second,
		UsageLookback:      time.Minute,
		HeartbeatInterval:  10 * time.Millisecond,
	}
}

// mockSettingsSource implements domain.SettingsSource for testing
type mockSettingsSource struct {
	mu       sync.Mutex
	settings domain.EffectiveSettings
	loadErr  error
	updates  chan domain.EffectiveSettings
}

func newMockSettingsSource(s domain.EffectiveSettings) *mockSettingsSource {
	return &mockSettingsSource{settings: s, updates: make(chan domain.EffectiveSettings, 8)}
}

func (m *mockSettingsSource) Load(ctx context.Context) (domain.EffectiveSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return domain.EffectiveSettings{}, m.loadErr
	}
	return m.settings, nil
}

func (m *mockSettingsSource) Subscribe(ctx context.Context) (<-chan domain.EffectiveSettings, error) {
	return m.updates, nil
}

func (m *mockSettingsSource) set(s domain.EffectiveSettings) {
	m.mu.Lock()
	m.settings = s
	m.mu.Unlock()
}

func (m *mockSettingsSource) failWith(err error) {
	m.mu.Lock()
	m.loadErr = err
	m.mu.Unlock()
}

// mockEntrySource implements domain.EntrySource for testing
type mockEntrySource struct {
	mu      sync.Mutex
	entry   domain.TodayEntry
	updates chan domain.TodayEntry
}

func newMockEntrySource() *mockEntrySource {
	return &mockEntrySource{updates: make(chan domain.TodayEntry, 8)}
}

func (m *mockEntrySource) Today(ctx context.Context) (domain.TodayEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entry, nil
}

func (m *mockEntrySource) Subscribe(ctx context.Context) (<-chan domain.TodayEntry, error) {
	return m.updates, nil
}

func (m *mockEntrySource) setWords(day string, words uint32) {
	m.mu.Lock()
	m.entry = domain.TodayEntry{Date: day, WordCount: words}
	m.mu.Unlock()
}

// mockSubscription implements domain.Subscription for testing
type mockSubscription struct {
	ch    chan domain.DeviceSignal
	mu    sync.Mutex
	calls int
}

func (s *mockSubscription) C() <-chan domain.DeviceSignal { return s.ch }

func (s *mockSubscription) Unsubscribe() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls > 1 {
		return domain.ErrAlreadyUnsubscribed
	}
	return nil
}

func (s *mockSubscription) unsubscribeCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// mockSignals implements domain.DeviceSignals for testing
type mockSignals struct {
	mu   sync.Mutex
	subs []*mockSubscription
	err  error
}

func (m *mockSignals) Subscribe(kinds ...domain.SignalKind) (domain.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	sub := &mockSubscription{ch: make(chan domain.DeviceSignal, 8)}
	m.subs = append(m.subs, sub)
	return sub, nil
}

func (m *mockSignals) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}

func (m *mockSignals) last() *mockSubscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.subs) == 0 {
		return nil
	}
	return m.subs[len(m.subs)-1]
}

// mockProbe implements domain.LockProbe for testing
type mockProbe struct {
	mu       sync.Mutex
	unlocked bool
	err      error
}

func (m *mockProbe) IsUnlocked(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.unlocked, m.err
}

// mockObserver implements domain.ForegroundObserver for testing
type mockObserver struct {
	events chan domain.ForegroundEvent
	err    error
}

func newMockObserver() *mockObserver {
	return &mockObserver{events: make(chan domain.ForegroundEvent, 8)}
}

func (m *mockObserver) Observe(ctx context.Context) (<-chan domain.ForegroundEvent, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.events, nil
}

// mockNavigator implements domain.Navigator for testing
type mockNavigator struct {
	mu        sync.Mutex
	redirects []string
}

func (m *mockNavigator) Redirect(ctx context.Context, trigger domain.ForegroundEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.redirects = append(m.redirects, trigger.Package)
	return nil
}

func (m *mockNavigator) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.redirects)
}

// mockUsage implements domain.UsageStats for testing
type mockUsage struct {
	mu    sync.Mutex
	usage domain.AppUsage
	found bool
	err   error
}

func (m *mockUsage) MostRecent(ctx context.Context, lookback time.Duration) (domain.AppUsage, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.usage, m.found, m.err
}

func (m *mockUsage) set(pkg string) {
	m.mu.Lock()
	m.usage = domain.AppUsage{Package: pkg, PID: 4242}
	m.found = true
	m.mu.Unlock()
}

// mockReminder implements domain.Reminder for testing
type mockReminder struct {
	mu    sync.Mutex
	shown []string
}

func (m *mockReminder) Remind(ctx context.Context, pkg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shown = append(m.shown, pkg)
	return nil
}

func (m *mockReminder) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.shown)
}

// mockRegistry implements domain.DaemonRegistry for testing
type mockRegistry struct {
	mu         sync.Mutex
	registered *domain.Daemon
	status     domain.StatusSnapshot
	beats      int
	regErr     error
}

func (m *mockRegistry) Register(d domain.Daemon) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.regErr != nil {
		return m.regErr
	}
	m.registered = &d
	return nil
}

func (m *mockRegistry) Heartbeat(status domain.StatusSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = status
	m.beats++
	return nil
}

func (m *mockRegistry) IsAlive() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.registered != nil, nil
}

func (m *mockRegistry) Get() (*domain.RegistryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.registered == nil {
		return nil, domain.ErrNotRegistered
	}
	return &domain.RegistryEntry{PID: m.registered.PID, Status: m.status}, nil
}

func (m *mockRegistry) Clear() error { return nil }
func (m *mockRegistry) Path() string { return "/tmp/mock-registry" }

func (m *mockRegistry) lastStatus() (domain.StatusSnapshot, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status, m.beats
}

// mockBackend implements Backend for testing
type mockBackend struct {
	mode    domain.EnforcementMode
	mu      sync.Mutex
	running bool
	starts  int
	stops   int
}

func (m *mockBackend) Mode() domain.EnforcementMode { return m.mode }

func (m *mockBackend) Start(ctx context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return false
	}
	m.running = true
	m.starts++
	return true
}

func (m *mockBackend) Stop() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return false
	}
	m.running = false
	m.stops++
	return true
}

func (m *mockBackend) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// mockMonitor implements MonitorController for testing
type mockMonitor struct {
	mu      sync.Mutex
	running bool
	starts  int
	stops   int
}

func (m *mockMonitor) Start(ctx context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return false
	}
	m.running = true
	m.starts++
	return true
}

func (m *mockMonitor) Stop() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return false
	}
	m.running = false
	m.stops++
	return true
}

func (m *mockMonitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// fixture wires the usecase layer around mock sources.
type fixture struct {
	clock    *clock.Fake
	source   *mockSettingsSource
	entries  *mockEntrySource
	settings *usecase.SettingsCache
	state    *usecase.BlockingState
	bridge   *usecase.JournalBridge
	gate     *usecase.Gate
}

func newFixture(t *testing.T, now time.Time) *fixture {
	t.Helper()
	f := &fixture{
		clock:   clock.NewFake(now),
		source:  newMockSettingsSource(morningSettings()),
		entries: newMockEntrySource(),
	}
	f.settings = usecase.NewSettingsCache(f.source, zap.NewNop())
	f.state = usecase.NewBlockingState(f.clock)
	f.bridge = usecase.NewJournalBridge(f.entries, f.settings, f.state, nil, f.clock, zap.NewNop())
	f.gate = usecase.NewGate(f.settings, f.entries, f.bridge, f.state, f.clock)
	if _, err := f.settings.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh settings: %v", err)
	}
	return f
}

func (f *fixture) today() string {
	return domain.DayOf(f.clock.Now())
}
