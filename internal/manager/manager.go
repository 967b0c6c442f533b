// Package manager holds the canonical in-memory job collection behind the
// operation set every client surface consumes: list, create, update, delete,
// toggle, run-now, run history, and log retrieval. It owns the scheduler and
// the execution coordinator and keeps both consistent with every mutation.
package manager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/flemzord/cronos/internal/coordinator"
	"github.com/flemzord/cronos/internal/job"
	"github.com/flemzord/cronos/internal/metrics"
	"github.com/flemzord/cronos/internal/runner"
	"github.com/flemzord/cronos/internal/scheduler"
	"github.com/flemzord/cronos/internal/store"
)

// ErrJobNotFound is returned for operations on an unknown job identifier.
var ErrJobNotFound = errors.New("manager: job not found")

// Config assembles a Manager's collaborators.
type Config struct {
	Store   *store.Store
	Logger  *slog.Logger
	Metrics *metrics.Metrics

	// Shell overrides the runner's shell binary.
	Shell string

	// RunTimeout is an optional execution-time ceiling per run.
	RunTimeout time.Duration
}

// Manager is safe for concurrent use.
type Manager struct {
	store  *store.Store
	logger *slog.Logger
	sched  *scheduler.Scheduler
	coord  *coordinator.Coordinator

	mu   sync.Mutex
	jobs []job.Job
	subs []chan struct{}
}

// New wires a Manager with its scheduler and coordinator. Call Start to
// load the collection and arm the timers.
func New(cfg Config) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		store:  cfg.Store,
		logger: logger,
	}

	run := runner.New(logger, runner.WithShell(cfg.Shell))
	var opts []coordinator.Option
	if cfg.RunTimeout > 0 {
		opts = append(opts, coordinator.WithTimeout(cfg.RunTimeout))
	}
	m.coord = coordinator.New(cfg.Store, run, m, cfg.Metrics, logger, opts...)

	// Scheduler fires hand off to a fresh goroutine so a slow run never
	// blocks the timing subsystem.
	m.sched = scheduler.New(logger, func(jobID string) {
		go m.runScheduled(jobID)
	})
	return m
}

// Start loads the job collection from disk and installs all deadlines.
func (m *Manager) Start() error {
	jobs, err := m.store.LoadJobs()
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.jobs = jobs
	m.mu.Unlock()

	m.sched.Reschedule(jobs)
	m.logger.Info("manager: started", "jobs", len(jobs))
	return nil
}

// Stop cancels all pending deadlines. In-flight executions run to completion.
func (m *Manager) Stop() {
	m.sched.Stop()
}

// List returns a snapshot of the job collection.
func (m *Manager) List() []job.Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]job.Job, len(m.jobs))
	copy(out, m.jobs)
	return out
}

// Get returns one job by identifier.
func (m *Manager) Get(jobID string) (job.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, j := range m.jobs {
		if j.ID == jobID {
			return j, nil
		}
	}
	return job.Job{}, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
}

// Create validates and persists a new job. An empty identifier gets a fresh
// one assigned. The saved collection is reloaded from disk first so edits
// made by the other client are not silently dropped.
func (m *Manager) Create(j job.Job) (job.Job, error) {
	if j.ID == "" {
		j.ID = job.New(j.Name, j.Schedule).ID
	}
	if err := j.Validate(); err != nil {
		return job.Job{}, err
	}

	err := m.mutate(func(jobs []job.Job) ([]job.Job, error) {
		return append(jobs, j), nil
	})
	if err != nil {
		return job.Job{}, err
	}
	m.logger.Info("manager: job created", "job", j.ID, "name", j.Name)
	return j, nil
}

// Update replaces an existing job in place.
func (m *Manager) Update(j job.Job) error {
	if err := j.Validate(); err != nil {
		return err
	}

	err := m.mutate(func(jobs []job.Job) ([]job.Job, error) {
		for i := range jobs {
			if jobs[i].ID == j.ID {
				jobs[i] = j
				return jobs, nil
			}
		}
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, j.ID)
	})
	if err != nil {
		return err
	}
	m.logger.Info("manager: job updated", "job", j.ID)
	return nil
}

// Delete removes a job and cascades deletion of its run history and log
// files. Its pending deadline is cancelled; an in-flight execution is not
// interrupted.
func (m *Manager) Delete(jobID string) error {
	m.sched.Cancel(jobID)

	err := m.mutate(func(jobs []job.Job) ([]job.Job, error) {
		kept := jobs[:0]
		found := false
		for _, j := range jobs {
			if j.ID == jobID {
				found = true
				continue
			}
			kept = append(kept, j)
		}
		if !found {
			return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
		}
		return kept, nil
	})
	if err != nil {
		return err
	}

	if err := m.store.DeleteRunsForJob(jobID); err != nil {
		m.logger.Warn("manager: pruning run history failed", "job", jobID, "error", err)
	}
	m.logger.Info("manager: job deleted", "job", jobID)
	return nil
}

// Toggle flips a job's enabled flag and returns the updated job.
func (m *Manager) Toggle(jobID string) (job.Job, error) {
	var toggled job.Job
	err := m.mutate(func(jobs []job.Job) ([]job.Job, error) {
		for i := range jobs {
			if jobs[i].ID == jobID {
				jobs[i].Enabled = !jobs[i].Enabled
				toggled = jobs[i]
				return jobs, nil
			}
		}
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	})
	if err != nil {
		return job.Job{}, err
	}
	m.logger.Info("manager: job toggled", "job", jobID, "enabled", toggled.Enabled)
	return toggled, nil
}

// RunNow executes the job immediately, blocking until it finishes. A job
// already running yields coordinator.ErrAlreadyRunning; the request is
// reported, not queued.
func (m *Manager) RunNow(ctx context.Context, jobID string) (job.RunRecord, error) {
	j, err := m.Get(jobID)
	if err != nil {
		return job.RunRecord{}, err
	}
	return m.coord.Run(ctx, j)
}

// Running reports whether a job is currently executing.
func (m *Manager) Running(jobID string) bool {
	return m.coord.Running(jobID)
}

// NextFire returns a job's pending deadline, if any.
func (m *Manager) NextFire(jobID string) (time.Time, bool) {
	return m.sched.NextFire(jobID)
}

// ListRuns returns the job's run records, newest first.
func (m *Manager) ListRuns(jobID string) ([]job.RunRecord, error) {
	return m.store.RunsForJob(jobID)
}

// ReadRunLog returns the captured output of one run. Missing log files read
// as empty content.
func (m *Manager) ReadRunLog(runID string) (stdout, stderr string) {
	return m.store.ReadRunLog(runID)
}

// Reload re-reads the collection from disk and reschedules. The daemon calls
// it when the store watcher reports an edit by another client. A corrupt
// document aborts the reload and keeps the last known good collection.
func (m *Manager) Reload() error {
	jobs, err := m.store.LoadJobs()
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.jobs = jobs
	m.mu.Unlock()

	m.sched.Reschedule(jobs)
	m.notify()
	m.logger.Info("manager: reloaded from store", "jobs", len(jobs))
	return nil
}

// Subscribe returns a channel that receives a (coalesced) signal after every
// change to the collection.
func (m *Manager) Subscribe() <-chan struct{} {
	ch := make(chan struct{}, 1)
	m.mu.Lock()
	m.subs = append(m.subs, ch)
	m.mu.Unlock()
	return ch
}

// RecordLastRun implements coordinator.JobRecorder: it stamps the job's
// last-run summary in the canonical collection and persists it.
func (m *Manager) RecordLastRun(jobID string, at time.Time, success bool) {
	_, err := m.mutateNoReschedule(func(jobs []job.Job) ([]job.Job, error) {
		for i := range jobs {
			if jobs[i].ID == jobID {
				jobs[i].LastRun = &at
				jobs[i].LastRunSuccess = &success
				return jobs, nil
			}
		}
		// Deleted mid-run; nothing to stamp.
		return jobs, nil
	})
	if err != nil {
		m.logger.Warn("manager: saving last-run summary failed", "job", jobID, "error", err)
	}
}

// mutate reloads the collection from disk, applies fn, persists the result,
// adopts it in memory, reschedules, and notifies subscribers. On a save
// failure the mutated collection stays the presented in-memory truth; it
// diverges from disk until the next successful save. Timers are rescheduled
// from the adopted collection even then, so the live schedule always matches
// what the manager presents.
func (m *Manager) mutate(fn func([]job.Job) ([]job.Job, error)) error {
	adopted, err := m.mutateNoReschedule(fn)
	if adopted {
		m.sched.Reschedule(m.List())
	}
	return err
}

// mutateNoReschedule reports whether the mutated collection was adopted in
// memory; adoption happens before the save, so a save failure still adopts.
func (m *Manager) mutateNoReschedule(fn func([]job.Job) ([]job.Job, error)) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	loaded, err := m.store.LoadJobs()
	if err != nil {
		return false, err
	}
	mutated, err := fn(loaded)
	if err != nil {
		return false, err
	}
	m.jobs = mutated

	saveErr := m.store.SaveJobs(mutated)
	m.notifyLocked()
	return true, saveErr
}

func (m *Manager) notify() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifyLocked()
}

func (m *Manager) notifyLocked() {
	for _, ch := range m.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// runScheduled resolves a fired trigger against the current collection and
// hands it to the coordinator.
func (m *Manager) runScheduled(jobID string) {
	j, err := m.Get(jobID)
	if err != nil {
		m.logger.Warn("manager: trigger for unknown job", "job", jobID)
		return
	}
	if !j.Enabled {
		return
	}
	if _, err := m.coord.Run(context.Background(), j); err != nil && !errors.Is(err, coordinator.ErrAlreadyRunning) {
		m.logger.Error("manager: scheduled run failed", "job", jobID, "error", err)
	}
}
