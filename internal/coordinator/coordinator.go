// Package coordinator orchestrates one end-to-end job execution: run-record
// bookkeeping, log capture, process execution, and finalization of both the
// run and the job's last-run summary.
package coordinator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/flemzord/cronos/internal/job"
	"github.com/flemzord/cronos/internal/metrics"
	"github.com/flemzord/cronos/internal/runner"
	"github.com/flemzord/cronos/internal/store"
)

// ErrAlreadyRunning is returned when a trigger arrives for a job that is
// still executing. The trigger is reported and dropped, never queued.
var ErrAlreadyRunning = errors.New("coordinator: job already running")

// JobRecorder persists a job's last-run summary once an execution finishes.
// The daemon's manager implements it against the canonical in-memory
// collection; the standalone CLI uses the store-backed StoreRecorder.
type JobRecorder interface {
	RecordLastRun(jobID string, at time.Time, success bool)
}

// Coordinator guarantees at most one concurrent run per job. Distinct jobs
// run concurrently with each other.
type Coordinator struct {
	store    *store.Store
	runner   *runner.Runner
	recorder JobRecorder
	metrics  *metrics.Metrics
	logger   *slog.Logger
	timeout  time.Duration

	mu      sync.Mutex
	locks   map[string]*sync.Mutex
	running map[string]struct{}
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithTimeout imposes an execution-time ceiling. Zero means none. When the
// ceiling elapses the process is killed and the run finalized as failed.
func WithTimeout(d time.Duration) Option {
	return func(c *Coordinator) { c.timeout = d }
}

// New creates a Coordinator.
func New(st *store.Store, r *runner.Runner, rec JobRecorder, m *metrics.Metrics, logger *slog.Logger, opts ...Option) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = metrics.New()
	}
	c := &Coordinator{
		store:    st,
		runner:   r,
		recorder: rec,
		metrics:  m,
		logger:   logger,
		locks:    make(map[string]*sync.Mutex),
		running:  make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// lockFor returns the job's execution mutex, creating it on first use.
func (c *Coordinator) lockFor(jobID string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.locks[jobID]
	if !ok {
		l = &sync.Mutex{}
		c.locks[jobID] = l
	}
	return l
}

// Running reports whether the job is currently executing.
func (c *Coordinator) Running(jobID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.running[jobID]
	return ok
}

func (c *Coordinator) setRunning(jobID string, on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if on {
		c.running[jobID] = struct{}{}
	} else {
		delete(c.running, jobID)
	}
}

// Run executes the job once, blocking until the process finishes. The
// per-job TryLock is atomic, so two rapid triggers cannot both acquire it;
// the loser gets ErrAlreadyRunning and performs no spawn.
//
// The run is always finalized: a process that cannot even start still gets
// its record completed as failed, never left permanently in flight.
func (c *Coordinator) Run(ctx context.Context, j job.Job) (job.RunRecord, error) {
	lock := c.lockFor(j.ID)
	if !lock.TryLock() {
		c.metrics.RunsSkipped.Inc()
		c.logger.Warn("coordinator: job already running, skipping trigger", "job", j.ID, "name", j.Name)
		return job.RunRecord{}, ErrAlreadyRunning
	}
	defer lock.Unlock()

	c.setRunning(j.ID, true)
	defer c.setRunning(j.ID, false)

	rec := job.NewRunRecord(j.ID)
	if err := c.store.AppendRun(rec); err != nil {
		return job.RunRecord{}, err
	}

	c.metrics.RunsStarted.Inc()
	c.metrics.RunsInFlight.Inc()
	defer c.metrics.RunsInFlight.Dec()

	c.logger.Info("coordinator: run started",
		"job", j.ID,
		"name", j.Name,
		"run", rec.ID,
	)

	// Log capture is best-effort: if the files cannot be opened the run
	// proceeds with its output discarded.
	var stdout, stderr io.Writer = io.Discard, io.Discard
	outFile, errFile, logErr := c.store.CreateRunLogs(rec.ID)
	if logErr != nil {
		c.logger.Warn("coordinator: log capture unavailable", "run", rec.ID, "error", logErr)
	} else {
		stdout, stderr = outFile, errFile
		defer func() {
			_ = outFile.Close()
			_ = errFile.Close()
		}()
	}

	runCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	res, execErr := c.runner.Execute(runCtx, j.EffectiveCommand(), j.WorkingDirectory, stdout, stderr)
	success := execErr == nil && res.Success

	rec.Complete(res.ExitCode, success)
	if err := c.store.CompleteRun(rec.ID, res.ExitCode, success); err != nil {
		c.logger.Error("coordinator: finalizing run failed", "run", rec.ID, "error", err)
	}
	if c.recorder != nil {
		c.recorder.RecordLastRun(j.ID, *rec.EndedAt, success)
	}

	c.metrics.ObserveFinished(success, rec.Duration().Seconds())
	c.logger.Info("coordinator: run finished",
		"job", j.ID,
		"run", rec.ID,
		"success", success,
		"exit_code", res.ExitCode,
		"duration", rec.Duration(),
	)

	if execErr != nil {
		return rec, execErr
	}
	return rec, nil
}

// StoreRecorder finalizes the job's last-run summary straight against the
// shared store, reloading before mutating. Used by clients that do not hold
// a long-lived in-memory collection.
type StoreRecorder struct {
	Store  *store.Store
	Logger *slog.Logger
}

// RecordLastRun implements JobRecorder.
func (r *StoreRecorder) RecordLastRun(jobID string, at time.Time, success bool) {
	jobs, err := r.Store.LoadJobs()
	if err != nil {
		r.logWarn("reloading jobs for last-run summary", err)
		return
	}
	for i := range jobs {
		if jobs[i].ID == jobID {
			jobs[i].LastRun = &at
			jobs[i].LastRunSuccess = &success
			if err := r.Store.SaveJobs(jobs); err != nil {
				r.logWarn("saving last-run summary", err)
			}
			return
		}
	}
}

func (r *StoreRecorder) logWarn(what string, err error) {
	if r.Logger != nil {
		r.Logger.Warn("coordinator: "+what+" failed", "error", err)
	}
}
