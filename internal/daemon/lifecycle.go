package daemon

import (
	"context"
	"sync"
)

// lifecycle runs at most one background goroutine and makes start/stop
// idempotent. A run that returns on its own clears itself, so the owner can be
// started again.
type lifecycle struct {
	mu  sync.Mutex
	run *runHandle
}

type runHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// start launches fn unless a run is already active. Returns true if launched.
func (l *lifecycle) start(parent context.Context, fn func(ctx context.Context)) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.run != nil {
		return false
	}

	ctx, cancel := context.WithCancel(parent)
	h := &runHandle{cancel: cancel, done: make(chan struct{})}
	l.run = h

	go func() {
		defer close(h.done)
		defer l.clear(h)
		fn(ctx)
	}()
	return true
}

// stop cancels the active run and waits for it to return. Must not be called
// from inside fn. Returns true if a run was stopped.
func (l *lifecycle) stop() bool {
	l.mu.Lock()
	h := l.run
	l.run = nil
	l.mu.Unlock()

	if h == nil {
		return false
	}
	h.cancel()
	<-h.done
	return true
}

func (l *lifecycle) running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.run != nil
}

// clear drops h if it is still the active run.
func (l *lifecycle) clear(h *runHandle) {
	l.mu.Lock()
	if l.run == h {
		l.run = nil
	}
	l.mu.Unlock()
	h.cancel()
}
