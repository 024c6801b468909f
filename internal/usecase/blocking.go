// Package usecase contains application business logic.
package usecase

import (
	"sync"
	"time"

	"github.com/eliteGoblin/focusd/journalgate/internal/clock"
	"github.com/eliteGoblin/focusd/journalgate/internal/domain"
)

// BlockingState is the single source of truth for "is blocking active right now".
// Every method takes the same mutex, so each call sees and leaves a consistent
// DayBlockingRecord no matter which goroutine calls it.
type BlockingState struct {
	mu     sync.Mutex
	clock  clock.Clock
	record domain.DayBlockingRecord
}

// NewBlockingState creates an idle state machine.
func NewBlockingState(c clock.Clock) *BlockingState {
	if c == nil {
		c = clock.Real{}
	}
	return &BlockingState{clock: c}
}

// rollover resets the record when it belongs to another day. Caller holds mu.
func (s *BlockingState) rollover(now time.Time) {
	today := domain.DayOf(now)
	if s.record.ResetDate != today {
		s.record = domain.DayBlockingRecord{ResetDate: today}
	}
}

// Arm starts today's blocking window. It is a no-op when already armed today or
// when the journal is already completed. Returns true if this call armed.
func (s *BlockingState) Arm(duration time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	s.rollover(now)

	if s.record.Armed() || s.record.JournalCompleted {
		return false
	}

	end := now.Add(duration)
	s.record.FirstUnlockAt = &now
	s.record.BlockingEndAt = &end
	s.record.IsBlocking = true
	return true
}

// Complete marks today's journal done. Idempotent.
func (s *BlockingState) Complete() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rollover(s.clock.Now())
	s.record.JournalCompleted = true
	s.record.IsBlocking = false
}

// ShouldBlock is the hot-path predicate for every foreground event.
func (s *BlockingState) ShouldBlock() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	s.rollover(now)

	if !s.record.Armed() {
		return false
	}
	if now.After(*s.record.BlockingEndAt) {
		s.record.IsBlocking = false
		return false
	}
	if s.record.JournalCompleted {
		return false
	}
	return true
}

// RemainingSeconds returns the seconds left on today's timer, 0 if unarmed.
func (s *BlockingState) RemainingSeconds() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	s.rollover(now)

	if !s.record.Armed() {
		return 0
	}
	left := s.record.BlockingEndAt.Sub(now)
	if left <= 0 {
		return 0
	}
	return uint64(left / time.Second)
}

// MarkCompletedExternally records a completion observed in the entry store.
// completed=false never reverts an earlier completion on the same day.
func (s *BlockingState) MarkCompletedExternally(completed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rollover(s.clock.Now())
	if !completed {
		return
	}
	s.record.JournalCompleted = true
	s.record.IsBlocking = false
}

// ForceReset clears every field including the day stamp.
func (s *BlockingState) ForceReset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.record = domain.DayBlockingRecord{}
}

// Snapshot returns a copy of today's record.
func (s *BlockingState) Snapshot() domain.DayBlockingRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	s.rollover(now)
	if s.record.Armed() && now.After(*s.record.BlockingEndAt) {
		s.record.IsBlocking = false
	}

	rec := s.record
	if rec.FirstUnlockAt != nil {
		t := *rec.FirstUnlockAt
		rec.FirstUnlockAt = &t
	}
	if rec.BlockingEndAt != nil {
		t := *rec.BlockingEndAt
		rec.BlockingEndAt = &t
	}
	return rec
}
