package infra

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDir emits a coalesced tick whenever a file in dir accepted by match
// changes. Bursts within delay collapse into one tick. The channel is never
// closed (a throttle timer may still fire after ctx is done); consumers stop on
// ctx.
func watchDir(ctx context.Context, dir string, match func(name string) bool, delay time.Duration) (<-chan struct{}, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create watched directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	ticks := make(chan struct{}, 1)
	send := func() {
		select {
		case ticks <- struct{}{}:
		default:
		}
	}

	go func() {
		defer watcher.Close()

		throttle := newChangeThrottle(delay)
		defer throttle.stop()

		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
				// Overflow or similar: the consumer re-reads everything anyway.
				throttle.enqueue(send)
			case evt, ok := <-watcher.Events:
				if !ok {
					return
				}
				if evt.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
					continue
				}
				if match != nil && !match(evt.Name) {
					continue
				}
				throttle.enqueue(send)
			}
		}
	}()

	return ticks, nil
}

// changeThrottle fires once per burst of changes.
type changeThrottle struct {
	mu    sync.Mutex
	timer *time.Timer
	delay time.Duration
}

func newChangeThrottle(delay time.Duration) *changeThrottle {
	return &changeThrottle{delay: delay}
}

func (t *changeThrottle) enqueue(fire func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		return
	}
	t.timer = time.AfterFunc(t.delay, func() {
		t.mu.Lock()
		t.timer = nil
		t.mu.Unlock()
		fire()
	})
}

func (t *changeThrottle) stop() {
	t.mu.Lock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.mu.Unlock()
}
