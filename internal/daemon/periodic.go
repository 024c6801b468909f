package daemon

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Periodic runs named jobs on fixed intervals. A name can be scheduled once;
// scheduling it again while it is active is a no-op. Each job runs serially and
// is never retried or backed off: a failing run simply waits for the next tick.
type Periodic struct {
	logger *zap.Logger

	mu   sync.Mutex
	jobs map[string]*periodicJob
}

type periodicJob struct {
	cancel context.CancelFunc
	kick   chan struct{}
	done   chan struct{}
}

// NewPeriodic creates an empty job registry.
func NewPeriodic(logger *zap.Logger) *Periodic {
	return &Periodic{logger: logger, jobs: make(map[string]*periodicJob)}
}

// Schedule registers fn under name. With runNow the first run happens
// immediately. Returns false if name is already scheduled.
func (p *Periodic) Schedule(ctx context.Context, name string, interval time.Duration, fn func(context.Context), runNow bool) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.jobs[name]; ok {
		p.logger.Debug("job already scheduled", zap.String("job", name))
		return false
	}

	jctx, cancel := context.WithCancel(ctx)
	job := &periodicJob{
		cancel: cancel,
		kick:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	p.jobs[name] = job

	go p.loop(jctx, name, job, interval, fn, runNow)

	p.logger.Info("job scheduled",
		zap.String("job", name),
		zap.Duration("interval", interval))
	return true
}

func (p *Periodic) loop(ctx context.Context, name string, job *periodicJob, interval time.Duration, fn func(context.Context), runNow bool) {
	defer close(job.done)
	defer p.forget(name, job)

	if runNow {
		fn(ctx)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		case <-job.kick:
			fn(ctx)
		}
	}
}

// Kick requests an extra run of name as soon as possible. Kicks arriving while
// one is pending are coalesced. Returns false if name is not scheduled.
func (p *Periodic) Kick(name string) bool {
	p.mu.Lock()
	job, ok := p.jobs[name]
	p.mu.Unlock()
	if !ok {
		return false
	}

	select {
	case job.kick <- struct{}{}:
	default:
	}
	return true
}

// Scheduled reports whether name is active.
func (p *Periodic) Scheduled(name string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.jobs[name]
	return ok
}

// Cancel stops name and waits for an in-flight run to finish.
func (p *Periodic) Cancel(name string) bool {
	p.mu.Lock()
	job, ok := p.jobs[name]
	delete(p.jobs, name)
	p.mu.Unlock()

	if !ok {
		return false
	}
	job.cancel()
	<-job.done
	return true
}

// CancelAll stops every job.
func (p *Periodic) CancelAll() {
	p.mu.Lock()
	names := make([]string, 0, len(p.jobs))
	for name := range p.jobs {
		names = append(names, name)
	}
	p.mu.Unlock()

	for _, name := range names {
		p.Cancel(name)
	}
}

func (p *Periodic) forget(name string, job *periodicJob) {
	p.mu.Lock()
	if p.jobs[name] == job {
		delete(p.jobs, name)
	}
	p.mu.Unlock()
}
