package infra

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/journalgate/internal/clock"
	"github.com/eliteGoblin/focusd/journalgate/internal/domain"
)

const (
	signalSuffix = ".signal"

	// Spooled signals older than this are discarded unread.
	spoolMaxAge = 2 * time.Minute

	subscriberBuffer = 16

	lockStateLocked   = "locked"
	lockStateUnlocked = "unlocked"
)

// SignalSpool delivers device signals to in-process subscribers. Signals come
// from other processes (session hooks running `journalgate notify <kind>`) as
// files dropped into the spool directory, or from in-process publishers such
// as the clock watcher.
type SignalSpool struct {
	dir    string
	clock  clock.Clock
	logger *zap.Logger

	mu   sync.Mutex
	subs map[*spoolSubscription]struct{}
}

// NewSignalSpool creates a hub reading from paths.SpoolDir.
func NewSignalSpool(paths Paths, c clock.Clock, logger *zap.Logger) *SignalSpool {
	return &SignalSpool{
		dir:    paths.SpoolDir,
		clock:  c,
		logger: logger,
		subs:   make(map[*spoolSubscription]struct{}),
	}
}

// Subscribe registers for the given kinds; none means all kinds.
func (s *SignalSpool) Subscribe(kinds ...domain.SignalKind) (domain.Subscription, error) {
	sub := &spoolSubscription{
		hub:   s,
		kinds: make(map[domain.SignalKind]struct{}, len(kinds)),
		ch:    make(chan domain.DeviceSignal, subscriberBuffer),
	}
	for _, k := range kinds {
		sub.kinds[k] = struct{}{}
	}

	s.mu.Lock()
	s.subs[sub] = struct{}{}
	s.mu.Unlock()
	return sub, nil
}

// Publish fans sig out to every interested subscriber. A subscriber whose
// buffer is full misses the signal.
func (s *SignalSpool) Publish(sig domain.DeviceSignal) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for sub := range s.subs {
		if !sub.wants(sig.Kind) {
			continue
		}
		select {
		case sub.ch <- sig:
		default:
			s.logger.Warn("signal dropped, subscriber busy", zap.String("kind", string(sig.Kind)))
		}
	}
}

// Subscribers returns the number of live subscriptions.
func (s *SignalSpool) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// Run drains the spool directory until ctx is done. Files already present are
// processed first.
func (s *SignalSpool) Run(ctx context.Context) error {
	changes, err := watchDir(ctx, s.dir, func(name string) bool {
		return strings.HasSuffix(name, signalSuffix)
	}, 20*time.Millisecond)
	if err != nil {
		return err
	}

	s.drain()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changes:
			s.drain()
		}
	}
}

// drain publishes and removes every spooled signal in name order.
func (s *SignalSpool) drain() {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		s.logger.Warn("failed to read spool", zap.Error(err))
		return
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), signalSuffix) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	now := s.clock.Now()
	for _, name := range names {
		path := filepath.Join(s.dir, name)
		if err := os.Remove(path); err != nil {
			if !os.IsNotExist(err) {
				s.logger.Warn("failed to remove spooled signal", zap.String("file", name), zap.Error(err))
			}
			continue
		}

		sig, err := parseSignalFile(name)
		if err != nil {
			s.logger.Warn("ignoring spooled signal", zap.String("file", name), zap.Error(err))
			continue
		}
		if now.Sub(sig.At) > spoolMaxAge {
			s.logger.Debug("discarding stale signal",
				zap.String("kind", string(sig.Kind)),
				zap.Time("at", sig.At))
			continue
		}
		s.Publish(sig)
	}
}

// WriteSignal spools one signal for the daemon. Unlock and lock also record
// the lock state read by LockStateProbe.
func WriteSignal(paths Paths, kind domain.SignalKind, at time.Time) error {
	if err := os.MkdirAll(paths.SpoolDir, 0700); err != nil {
		return fmt.Errorf("failed to create spool directory: %w", err)
	}

	switch kind {
	case domain.SignalUnlock:
		if err := atomicWrite(paths.LockState, []byte(lockStateUnlocked)); err != nil {
			return fmt.Errorf("failed to write lock state: %w", err)
		}
	case domain.SignalLock:
		if err := atomicWrite(paths.LockState, []byte(lockStateLocked)); err != nil {
			return fmt.Errorf("failed to write lock state: %w", err)
		}
	}

	name := signalFileName(kind, at)
	if err := atomicWrite(filepath.Join(paths.SpoolDir, name), []byte(kind)); err != nil {
		return fmt.Errorf("failed to spool signal: %w", err)
	}
	return nil
}

// signalFileName encodes the timestamp first so name order is delivery order.
func signalFileName(kind domain.SignalKind, at time.Time) string {
	return fmt.Sprintf("%019d-%d-%s%s", at.UnixNano(), os.Getpid(), kind, signalSuffix)
}

func parseSignalFile(name string) (domain.DeviceSignal, error) {
	parts := strings.SplitN(strings.TrimSuffix(name, signalSuffix), "-", 3)
	if len(parts) != 3 {
		return domain.DeviceSignal{}, fmt.Errorf("malformed signal file name")
	}
	nanos, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return domain.DeviceSignal{}, fmt.Errorf("malformed signal timestamp: %w", err)
	}
	kind, ok := domain.ParseSignalKind(parts[2])
	if !ok {
		return domain.DeviceSignal{}, fmt.Errorf("unknown signal kind %q", parts[2])
	}
	return domain.DeviceSignal{Kind: kind, At: time.Unix(0, nanos)}, nil
}

type spoolSubscription struct {
	hub   *SignalSpool
	kinds map[domain.SignalKind]struct{}
	ch    chan domain.DeviceSignal

	once sync.Once
}

func (s *spoolSubscription) C() <-chan domain.DeviceSignal {
	return s.ch
}

func (s *spoolSubscription) Unsubscribe() error {
	released := false
	s.once.Do(func() {
		s.hub.mu.Lock()
		delete(s.hub.subs, s)
		close(s.ch)
		s.hub.mu.Unlock()
		released = true
	})
	if !released {
		return domain.ErrAlreadyUnsubscribed
	}
	return nil
}

func (s *spoolSubscription) wants(kind domain.SignalKind) bool {
	if len(s.kinds) == 0 {
		return true
	}
	_, ok := s.kinds[kind]
	return ok
}

// LockStateProbe reads the lock state recorded by `notify lock|unlock`.
// Without any record the device is treated as locked.
type LockStateProbe struct {
	path string
}

// NewLockStateProbe creates a probe for paths.LockState.
func NewLockStateProbe(paths Paths) *LockStateProbe {
	return &LockStateProbe{path: paths.LockState}
}

// IsUnlocked implements domain.LockProbe.
func (p *LockStateProbe) IsUnlocked(ctx context.Context) (bool, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read lock state: %w", err)
	}
	return strings.TrimSpace(string(data)) == lockStateUnlocked, nil
}

var (
	_ domain.DeviceSignals = (*SignalSpool)(nil)
	_ domain.LockProbe     = (*LockStateProbe)(nil)
)
