package usecase

import (
	"context"
	"fmt"

	"github.com/eliteGoblin/focusd/journalgate/internal/clock"
	"github.com/eliteGoblin/focusd/journalgate/internal/domain"
	"github.com/eliteGoblin/focusd/journalgate/internal/policy"
)

// GateReason explains why the gate is closed. The zero value means open.
type GateReason string

const (
	ReasonOpen          GateReason = ""
	ReasonDisabled      GateReason = "blocking_disabled"
	ReasonOutsideWindow GateReason = "outside_window"
	ReasonSatisfied     GateReason = "journal_satisfied"
)

// GateCheck is the outcome of one evaluation.
type GateCheck struct {
	Settings domain.EffectiveSettings
	Words    uint32
	Reason   GateReason
}

// Open reports whether blocking logic is eligible to run.
func (c GateCheck) Open() bool {
	return c.Reason == ReasonOpen
}

// Gate evaluates the three eligibility conditions shared by the scheduler, the
// unlock monitor and the gentle poller: enabled, inside the morning window, and
// journal not yet satisfied.
type Gate struct {
	settings *SettingsCache
	entries  domain.EntrySource
	bridge   *JournalBridge
	state    *BlockingState
	clock    clock.Clock
}

// NewGate wires the gate to its collaborators. bridge may be nil.
func NewGate(settings *SettingsCache, entries domain.EntrySource, bridge *JournalBridge, state *BlockingState, c clock.Clock) *Gate {
	if c == nil {
		c = clock.Real{}
	}
	return &Gate{settings: settings, entries: entries, bridge: bridge, state: state, clock: c}
}

// Evaluate re-reads settings and today's entry. A satisfied entry is recorded
// with MarkCompletedExternally. Read failures are returned untouched so the
// caller can treat the check as a no-op.
func (g *Gate) Evaluate(ctx context.Context) (GateCheck, error) {
	s, err := g.settings.Refresh(ctx)
	if err != nil {
		return GateCheck{}, fmt.Errorf("failed to read settings: %w", err)
	}
	check := GateCheck{Settings: s}

	if !s.BlockingEnabled {
		check.Reason = ReasonDisabled
		return check, nil
	}
	if !policy.InMorningWindow(g.clock.Now(), s) {
		check.Reason = ReasonOutsideWindow
		return check, nil
	}

	entry, err := g.entries.Today(ctx)
	if err != nil {
		return check, fmt.Errorf("failed to read today's entry: %w", err)
	}
	check.Words = entry.WordCount
	if s.Satisfied(entry.WordCount) {
		g.state.MarkCompletedExternally(true)
		check.Reason = ReasonSatisfied
	}
	return check, nil
}

// EvaluateCached answers the same question from cached values only.
func (g *Gate) EvaluateCached() GateCheck {
	s := g.settings.Snapshot()
	check := GateCheck{Settings: s}

	switch {
	case !s.BlockingEnabled:
		check.Reason = ReasonDisabled
	case !policy.InMorningWindow(g.clock.Now(), s):
		check.Reason = ReasonOutsideWindow
	default:
		if g.bridge != nil {
			check.Words = g.bridge.TodayWords()
		}
		if g.state.Snapshot().JournalCompleted || (g.bridge != nil && s.Satisfied(check.Words)) {
			check.Reason = ReasonSatisfied
		}
	}
	return check
}
