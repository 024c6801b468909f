package infra

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/journalgate/internal/clock"
	"github.com/eliteGoblin/focusd/journalgate/internal/domain"
)

// DefaultObserveInterval is how often ProcessObserver scans the process table.
const DefaultObserveInterval = 500 * time.Millisecond

// ProcessManagerImpl implements domain.ProcessManager using gopsutil.
type ProcessManagerImpl struct{}

// NewProcessManager creates a new process manager.
func NewProcessManager() domain.ProcessManager {
	return &ProcessManagerImpl{}
}

// Kill terminates a process by PID using SIGKILL.
func (pm *ProcessManagerImpl) Kill(pid int) error {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return err
	}
	return p.Kill()
}

// IsRunning checks if a PID exists and is running.
func (pm *ProcessManagerImpl) IsRunning(pid int) bool {
	// On Unix, FindProcess always succeeds
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	// Send signal 0 to check if process exists
	err = proc.Signal(syscall.Signal(0))
	return err == nil
}

// GetCurrentPID returns the current process PID.
func (pm *ProcessManagerImpl) GetCurrentPID() int {
	return os.Getpid()
}

// ProcessInfo is one row of the process table.
type ProcessInfo struct {
	PID     int
	Name    string
	CPUTime time.Duration
}

// ProcessTable lists running processes.
type ProcessTable interface {
	List(ctx context.Context) ([]ProcessInfo, error)
}

// GopsutilTable reads the process table through gopsutil.
type GopsutilTable struct{}

// List returns every process whose name is readable. CPU time is zero when
// the process times are not readable.
func (GopsutilTable) List(ctx context.Context) ([]ProcessInfo, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		if errors.Is(err, os.ErrPermission) {
			return nil, fmt.Errorf("failed to list processes: %w", domain.ErrPermissionDenied)
		}
		return nil, fmt.Errorf("failed to list processes: %w", err)
	}

	out := make([]ProcessInfo, 0, len(procs))
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil || name == "" {
			continue
		}
		info := ProcessInfo{PID: int(p.Pid), Name: strings.ToLower(name)}
		if times, err := p.TimesWithContext(ctx); err == nil {
			info.CPUTime = time.Duration((times.User + times.System) * float64(time.Second))
		}
		out = append(out, info)
	}
	return out, nil
}

// ProcessObserver implements domain.ForegroundObserver by diffing the process
// table: every process that appears counts as coming to the foreground.
// Processes already running when observation starts are reported once.
type ProcessObserver struct {
	table    ProcessTable
	interval time.Duration
	clock    clock.Clock
	logger   *zap.Logger
}

// NewProcessObserver creates an observer scanning every interval (zero means the default).
func NewProcessObserver(table ProcessTable, interval time.Duration, c clock.Clock, logger *zap.Logger) *ProcessObserver {
	if interval <= 0 {
		interval = DefaultObserveInterval
	}
	return &ProcessObserver{table: table, interval: interval, clock: c, logger: logger}
}

// Observe streams foreground events until ctx is done. It fails up front when
// the process table is not readable.
func (o *ProcessObserver) Observe(ctx context.Context) (<-chan domain.ForegroundEvent, error) {
	initial, err := o.table.List(ctx)
	if err != nil {
		return nil, err
	}

	out := make(chan domain.ForegroundEvent, 64)
	go func() {
		defer close(out)

		seen := make(map[int]string)
		if !o.emitNew(ctx, initial, seen, out) {
			return
		}

		ticker := time.NewTicker(o.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				procs, err := o.table.List(ctx)
				if err != nil {
					o.logger.Debug("process scan failed", zap.Error(err))
					continue
				}
				if !o.emitNew(ctx, procs, seen, out) {
					return
				}
			}
		}
	}()
	return out, nil
}

// emitNew sends an event for each process not in seen and replaces seen with
// the current table. A PID reused by a different name counts as new.
func (o *ProcessObserver) emitNew(ctx context.Context, procs []ProcessInfo, seen map[int]string, out chan<- domain.ForegroundEvent) bool {
	now := o.clock.Now()
	current := make(map[int]string, len(procs))
	for _, p := range procs {
		current[p.PID] = p.Name
		if name, ok := seen[p.PID]; ok && name == p.Name {
			continue
		}
		select {
		case out <- domain.ForegroundEvent{Package: p.Name, PID: p.PID, At: now}:
		case <-ctx.Done():
			return false
		}
	}

	for pid := range seen {
		delete(seen, pid)
	}
	for pid, name := range current {
		seen[pid] = name
	}
	return true
}

// UsageSampler implements domain.UsageStats from CPU-time deltas: the process
// that burned the most CPU since the previous sample is the most recently
// used one. Ignored processes (the gate itself, system processes) never win.
// Processes matching the preference (the blocked packages) win over busier
// ones whenever they were active within the lookback.
type UsageSampler struct {
	table  ProcessTable
	clock  clock.Clock
	ignore func(name string) bool

	mu     sync.Mutex
	prefer func(name string) bool
	last   map[int]usageRecord
}

type usageRecord struct {
	name       string
	cpu        time.Duration
	lastActive time.Time
}

// NewUsageSampler creates a sampler. ignore may be nil.
func NewUsageSampler(table ProcessTable, c clock.Clock, ignore func(name string) bool) *UsageSampler {
	if ignore == nil {
		ignore = func(string) bool { return false }
	}
	return &UsageSampler{table: table, clock: c, ignore: ignore, last: make(map[int]usageRecord)}
}

// Prefer sets the predicate for processes that win over busier ones. nil
// clears it.
func (u *UsageSampler) Prefer(fn func(name string) bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.prefer = fn
}

// MostRecent returns the most recently active preferred process within
// lookback, else the busiest process since the previous call, else the last
// one seen active within lookback. The first call only records a baseline.
func (u *UsageSampler) MostRecent(ctx context.Context, lookback time.Duration) (domain.AppUsage, bool, error) {
	procs, err := u.table.List(ctx)
	if err != nil {
		return domain.AppUsage{}, false, err
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	now := u.clock.Now()
	next := make(map[int]usageRecord, len(procs))

	var (
		best      domain.AppUsage
		bestDelta time.Duration
		found     bool
	)
	for _, p := range procs {
		if u.ignore(p.Name) {
			continue
		}
		rec := usageRecord{name: p.Name, cpu: p.CPUTime}
		if prev, ok := u.last[p.PID]; ok && prev.name == p.Name {
			rec.lastActive = prev.lastActive
			if delta := p.CPUTime - prev.cpu; delta > 0 {
				rec.lastActive = now
				if delta > bestDelta {
					best = domain.AppUsage{Package: p.Name, PID: p.PID, LastUsed: now}
					bestDelta = delta
					found = true
				}
			}
		}
		next[p.PID] = rec
	}
	u.last = next

	if u.prefer != nil {
		if usage, ok := latestActive(next, now, lookback, u.prefer); ok {
			return usage, true, nil
		}
	}
	if found {
		return best, true, nil
	}

	// Nothing busy right now: fall back to the most recently active process.
	usage, ok := latestActive(next, now, lookback, nil)
	return usage, ok, nil
}

// latestActive picks the process active most recently within lookback,
// restricted to match when it is non-nil.
func latestActive(recs map[int]usageRecord, now time.Time, lookback time.Duration, match func(string) bool) (domain.AppUsage, bool) {
	var (
		best  domain.AppUsage
		found bool
	)
	for pid, rec := range recs {
		if rec.lastActive.IsZero() || now.Sub(rec.lastActive) > lookback {
			continue
		}
		if match != nil && !match(rec.name) {
			continue
		}
		if !found || rec.lastActive.After(best.LastUsed) || (rec.lastActive.Equal(best.LastUsed) && pid < best.PID) {
			best = domain.AppUsage{Package: rec.name, PID: pid, LastUsed: rec.lastActive}
			found = true
		}
	}
	return best, found
}

var (
	_ domain.ProcessManager     = (*ProcessManagerImpl)(nil)
	_ domain.ForegroundObserver = (*ProcessObserver)(nil)
	_ domain.UsageStats         = (*UsageSampler)(nil)
	_ ProcessTable              = GopsutilTable{}
)
