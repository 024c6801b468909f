package usecase

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eliteGoblin/focusd/journalgate/internal/clock"
)

func sixAM() time.Time {
	return time.Date(2026, time.March, 3, 6, 0, 0, 0, time.Local)
}

func TestBlockingState_IdleByDefault(t *testing.T) {
	s := NewBlockingState(clock.NewFake(sixAM()))

	assert.False(t, s.ShouldBlock())
	assert.Equal(t, uint64(0), s.RemainingSeconds())
	assert.False(t, s.Snapshot().Armed())
}

func TestBlockingState_Arm(t *testing.T) {
	c := clock.NewFake(sixAM())
	s := NewBlockingState(c)

	require.True(t, s.Arm(15*time.Minute))

	assert.True(t, s.ShouldBlock())
	assert.Equal(t, uint64(900), s.RemainingSeconds())

	rec := s.Snapshot()
	require.NotNil(t, rec.FirstUnlockAt)
	require.NotNil(t, rec.BlockingEndAt)
	assert.Equal(t, sixAM(), *rec.FirstUnlockAt)
	assert.Equal(t, sixAM().Add(15*time.Minute), *rec.BlockingEndAt)
	assert.True(t, rec.IsBlocking)
	assert.Equal(t, "2026-03-03", rec.ResetDate)
}

func TestBlockingState_ArmIsIdempotent(t *testing.T) {
	c := clock.NewFake(sixAM())
	s := NewBlockingState(c)

	require.True(t, s.Arm(15*time.Minute))
	end := *s.Snapshot().BlockingEndAt

	c.Advance(5 * time.Minute)
	assert.False(t, s.Arm(30*time.Minute))
	assert.Equal(t, end, *s.Snapshot().BlockingEndAt)
	assert.Equal(t, uint64(600), s.RemainingSeconds())
}

func TestBlockingState_ArmAfterCompleteIsNoop(t *testing.T) {
	s := NewBlockingState(clock.NewFake(sixAM()))

	s.Complete()
	assert.False(t, s.Arm(15*time.Minute))
	assert.False(t, s.Snapshot().Armed())
	assert.False(t, s.ShouldBlock())
}

func TestBlockingState_CompleteStopsBlocking(t *testing.T) {
	s := NewBlockingState(clock.NewFake(sixAM()))
	s.Arm(15 * time.Minute)

	s.Complete()
	s.Complete()

	assert.False(t, s.ShouldBlock())
	rec := s.Snapshot()
	assert.True(t, rec.JournalCompleted)
	assert.False(t, rec.IsBlocking)
}

func TestBlockingState_LazyExpiry(t *testing.T) {
	c := clock.NewFake(sixAM())
	s := NewBlockingState(c)
	s.Arm(15 * time.Minute)

	c.Advance(15 * time.Minute)
	assert.True(t, s.ShouldBlock(), "still blocking at exactly the end instant")

	c.Advance(time.Second)
	assert.False(t, s.ShouldBlock())
	assert.Equal(t, uint64(0), s.RemainingSeconds())
	assert.False(t, s.Snapshot().IsBlocking)
	assert.True(t, s.Snapshot().Armed(), "expiry keeps today's arm")
	assert.False(t, s.Arm(15*time.Minute), "one armed window per day")
}

func TestBlockingState_MarkCompletedExternally(t *testing.T) {
	s := NewBlockingState(clock.NewFake(sixAM()))
	s.Arm(15 * time.Minute)

	s.MarkCompletedExternally(false)
	assert.True(t, s.ShouldBlock())

	s.MarkCompletedExternally(true)
	assert.False(t, s.ShouldBlock())

	s.MarkCompletedExternally(false)
	assert.True(t, s.Snapshot().JournalCompleted, "completion is monotonic within a day")
}

func TestBlockingState_ForceReset(t *testing.T) {
	c := clock.NewFake(sixAM())
	s := NewBlockingState(c)
	s.Arm(15 * time.Minute)
	s.Complete()

	s.ForceReset()

	rec := s.Snapshot()
	assert.False(t, rec.Armed())
	assert.False(t, rec.JournalCompleted)

	c.Advance(time.Minute)
	require.True(t, s.Arm(15*time.Minute))
	assert.Equal(t, uint64(900), s.RemainingSeconds())
}

func TestBlockingState_DayRollover(t *testing.T) {
	c := clock.NewFake(time.Date(2026, time.March, 3, 23, 55, 0, 0, time.Local))
	s := NewBlockingState(c)
	s.Arm(30 * time.Minute)
	require.True(t, s.ShouldBlock())

	c.Set(time.Date(2026, time.March, 4, 6, 0, 0, 0, time.Local))

	assert.False(t, s.ShouldBlock())
	rec := s.Snapshot()
	assert.Equal(t, "2026-03-04", rec.ResetDate)
	assert.False(t, rec.Armed())

	require.True(t, s.Arm(15*time.Minute))
	assert.Equal(t, uint64(900), s.RemainingSeconds())
}

func TestBlockingState_CompletionDoesNotLeakAcrossDays(t *testing.T) {
	c := clock.NewFake(sixAM())
	s := NewBlockingState(c)
	s.Complete()

	c.Advance(24 * time.Hour)
	assert.True(t, s.Arm(15*time.Minute))
	assert.True(t, s.ShouldBlock())
}

func TestBlockingState_ConcurrentCallers(t *testing.T) {
	c := clock.NewFake(sixAM())
	s := NewBlockingState(c)

	var wg sync.WaitGroup
	armed := make(chan bool, 50)
	for i := 0; i < 50; i++ {
		wg.Add(3)
		go func() {
			defer wg.Done()
			armed <- s.Arm(15 * time.Minute)
		}()
		go func() {
			defer wg.Done()
			_ = s.ShouldBlock()
		}()
		go func() {
			defer wg.Done()
			_ = s.RemainingSeconds()
		}()
	}
	wg.Wait()
	close(armed)

	wins := 0
	for ok := range armed {
		if ok {
			wins++
		}
	}
	assert.Equal(t, 1, wins, "exactly one Arm call wins")

	rec := s.Snapshot()
	assert.Equal(t, rec.FirstUnlockAt != nil, rec.BlockingEndAt != nil)
}
