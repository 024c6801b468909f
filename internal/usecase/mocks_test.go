package usecase

import (
	"context"
	"errors"
	"sync"

	"github.com/eliteGoblin/focusd/journalgate/internal/domain"
)

var errUnavailable = errors.New("store unavailable")

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
	mu       sync.Mutex
	entry    domain.TodayEntry
	todayErr error
	reads    int
	updates  chan domain.TodayEntry
}

func newMockEntrySource() *mockEntrySource {
	return &mockEntrySource{updates: make(chan domain.TodayEntry, 8)}
}

func (m *mockEntrySource) Today(ctx context.Context) (domain.TodayEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	if m.todayErr != nil {
		return domain.TodayEntry{}, m.todayErr
	}
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

// mockCompletionHook implements domain.CompletionHook for testing
type mockCompletionHook struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (m *mockCompletionHook) JournalCompleted(ctx context.Context, day string, words uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, day)
	return m.err
}

func (m *mockCompletionHook) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
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
