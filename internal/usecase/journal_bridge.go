package usecase

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/journalgate/internal/clock"
	"github.com/eliteGoblin/focusd/journalgate/internal/domain"
)

// JournalBridge feeds today's entry from the entry store into the state machine
// and caches the word count for hot-path readers.
type JournalBridge struct {
	entries  domain.EntrySource
	settings *SettingsCache
	state    *BlockingState
	hook     domain.CompletionHook
	clock    clock.Clock
	logger   *zap.Logger

	latest atomic.Pointer[domain.TodayEntry]

	mu       sync.Mutex
	firedDay string
}

// NewJournalBridge creates a bridge. hook may be nil.
func NewJournalBridge(
	entries domain.EntrySource,
	settings *SettingsCache,
	state *BlockingState,
	hook domain.CompletionHook,
	c clock.Clock,
	logger *zap.Logger,
) *JournalBridge {
	if c == nil {
		c = clock.Real{}
	}
	return &JournalBridge{
		entries:  entries,
		settings: settings,
		state:    state,
		hook:     hook,
		clock:    c,
		logger:   logger,
	}
}

// Run subscribes to today's entry and applies every update until ctx is done.
func (b *JournalBridge) Run(ctx context.Context) error {
	updates, err := b.entries.Subscribe(ctx)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e, ok := <-updates:
			if !ok {
				return nil
			}
			b.Apply(ctx, e)
		}
	}
}

// Apply processes one entry update.
func (b *JournalBridge) Apply(ctx context.Context, e domain.TodayEntry) {
	if e.Date == "" {
		e.Date = domain.DayOf(b.clock.Now())
	}
	b.latest.Store(&e)

	if e.Date != domain.DayOf(b.clock.Now()) {
		return
	}

	done := b.settings.Snapshot().Satisfied(e.WordCount)
	b.state.MarkCompletedExternally(done)
	if done {
		b.fireOnce(ctx, e)
	}
}

// Reevaluate re-applies the last entry, e.g. after the required count changed.
func (b *JournalBridge) Reevaluate(ctx context.Context) {
	if e := b.latest.Load(); e != nil {
		b.Apply(ctx, *e)
	}
}

// TodayWords returns the cached word count for today, 0 if none seen yet.
func (b *JournalBridge) TodayWords() uint32 {
	e := b.latest.Load()
	if e == nil || e.Date != domain.DayOf(b.clock.Now()) {
		return 0
	}
	return e.WordCount
}

// fireOnce drives the completion hook on the first satisfied update of a day.
func (b *JournalBridge) fireOnce(ctx context.Context, e domain.TodayEntry) {
	b.mu.Lock()
	if b.firedDay == e.Date {
		b.mu.Unlock()
		return
	}
	b.firedDay = e.Date
	b.mu.Unlock()

	b.state.Complete()
	b.logger.Info("journal completed",
		zap.String("day", e.Date),
		zap.Uint32("words", e.WordCount))

	if b.hook == nil {
		return
	}
	if err := b.hook.JournalCompleted(ctx, e.Date, e.WordCount); err != nil {
		b.logger.Warn("completion hook failed", zap.Error(err))
	}
}
