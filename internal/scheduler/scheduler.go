// Package scheduler turns job schedules into fired triggers. It maintains
// one pending single-shot timer per enabled job and renews a job's timer
// after every fire, so a scheduled job keeps firing without external help
// until it is cancelled or rescheduled away.
package scheduler

import (
	"log/slog"
	"sync"
	"time"

	"github.com/flemzord/cronos/internal/job"
)

// TriggerFunc is invoked with the job identifier when its deadline elapses.
// It runs on the timer's goroutine and must hand off quickly; a slow trigger
// would delay that job's renewal but never other jobs' timers.
type TriggerFunc func(jobID string)

// NextRunFunc computes the next deadline for a job after a reference instant.
type NextRunFunc func(j job.Job, after time.Time) time.Time

type entry struct {
	timer *time.Timer
	next  time.Time
	gen   uint64
}

// Scheduler maps job identifiers to pending deadlines.
type Scheduler struct {
	mu      sync.Mutex
	entries map[string]*entry
	gen     uint64

	onTrigger TriggerFunc
	nextRun   NextRunFunc
	now       func() time.Time
	logger    *slog.Logger
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithNextRunFunc overrides deadline computation. Tests use this to install
// near-immediate deadlines; the default follows the job's schedule.
func WithNextRunFunc(fn NextRunFunc) Option {
	return func(s *Scheduler) { s.nextRun = fn }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// New creates a scheduler that calls onTrigger at each fire.
func New(logger *slog.Logger, onTrigger TriggerFunc, opts ...Option) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{
		entries:   make(map[string]*entry),
		onTrigger: onTrigger,
		nextRun:   func(j job.Job, after time.Time) time.Time { return j.Schedule.NextRun(after) },
		now:       time.Now,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Reschedule cancels every pending deadline and installs a fresh one per
// enabled job, computed from now. Call it after every external mutation of
// the job collection so the live schedule never reflects stale data.
func (s *Scheduler) Reschedule(jobs []job.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, e := range s.entries {
		e.timer.Stop()
		delete(s.entries, id)
	}

	for _, j := range jobs {
		if !j.Enabled {
			continue
		}
		s.installLocked(j)
	}
	s.logger.Debug("scheduler: rescheduled", "pending", len(s.entries))
}

// Cancel removes a single pending deadline without touching other jobs.
func (s *Scheduler) Cancel(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[jobID]; ok {
		e.timer.Stop()
		delete(s.entries, jobID)
	}
}

// Stop cancels every pending deadline.
func (s *Scheduler) Stop() {
	s.Reschedule(nil)
}

// NextFire returns the pending deadline for a job, if one is installed.
func (s *Scheduler) NextFire(jobID string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[jobID]
	if !ok {
		return time.Time{}, false
	}
	return e.next, true
}

// Pending returns the number of installed deadlines.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// installLocked computes the job's next deadline and arms its timer.
// A non-positive delay (clock skew, slow callback) re-derives from one
// second in the future instead of firing in a tight loop.
func (s *Scheduler) installLocked(j job.Job) {
	now := s.now()
	next := s.nextRun(j, now)
	delay := next.Sub(now)
	if delay <= 0 {
		next = s.nextRun(j, now.Add(time.Second))
		delay = next.Sub(now)
		if delay <= 0 {
			// Pathological schedule; treat as due in a second.
			delay = time.Second
			next = now.Add(delay)
		}
	}

	s.gen++
	gen := s.gen
	e := &entry{next: next, gen: gen}
	e.timer = time.AfterFunc(delay, func() { s.fire(j, gen) })
	s.entries[j.ID] = e

	s.logger.Debug("scheduler: deadline installed",
		"job", j.ID,
		"next", next,
	)
}

// fire delivers one trigger, then renews the job's deadline from "now".
// A fire whose generation no longer matches the installed entry lost a race
// with Cancel or Reschedule and is dropped. The entry stays installed while
// the trigger runs, so a concurrent Cancel or Reschedule can still claim
// the slot and suppress the renewal.
func (s *Scheduler) fire(j job.Job, gen uint64) {
	s.mu.Lock()
	e, ok := s.entries[j.ID]
	if !ok || e.gen != gen {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	s.logger.Info("scheduler: job due", "job", j.ID)
	s.onTrigger(j.ID)

	s.mu.Lock()
	defer s.mu.Unlock()
	// Renew only if this fire's entry still owns the slot. Cancel removes
	// it and Reschedule installs a fresher generation; in both cases the
	// slot belongs to them and this fire must not resurrect the job.
	if e, ok := s.entries[j.ID]; ok && e.gen == gen {
		s.installLocked(j)
	}
}
