package store

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

const defaultWatchInterval = 5 * time.Second

// Watcher polls the jobs document for modifications made by other clients.
// The daemon uses it to reload and reschedule when the command-palette
// client edits jobs.json underneath it.
type Watcher struct {
	store    *Store
	interval time.Duration
	events   chan struct{}
	stop     chan struct{}
	stopped  chan struct{}

	started   atomic.Bool
	startOnce sync.Once
	stopOnce  sync.Once
}

// NewWatcher creates a watcher over the store's jobs document. A zero
// interval defaults to five seconds.
func NewWatcher(s *Store, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = defaultWatchInterval
	}
	return &Watcher{
		store:    s,
		interval: interval,
		events:   make(chan struct{}, 1),
		stop:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

// Start begins polling. Safe to call multiple times; only the first call
// starts the goroutine.
func (w *Watcher) Start(ctx context.Context) {
	w.startOnce.Do(func() {
		w.started.Store(true)
		go w.poll(ctx)
	})
}

// Events returns the change notification channel. Notifications are
// coalesced: while one is pending, further changes are folded into it.
func (w *Watcher) Events() <-chan struct{} {
	return w.events
}

// Stop stops the watcher. Safe to call multiple times and before Start.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stop)
	})
	if w.started.Load() {
		<-w.stopped
	}
}

func (w *Watcher) poll(ctx context.Context) {
	defer close(w.stopped)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	lastMod := w.store.JobsModTime()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		case <-ticker.C:
			current := w.store.JobsModTime()
			if current.IsZero() {
				continue
			}
			if current.After(lastMod) {
				lastMod = current
				select {
				case w.events <- struct{}{}:
				default:
					// A notification is already pending.
				}
			}
		}
	}
}
