// Package maintenance runs periodic housekeeping tasks for the daemon,
// such as pruning old run history. Housekeeping uses cron expressions and
// is independent of the per-job deadline scheduler that drives user jobs.
package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// Task defines a periodic housekeeping task.
type Task interface {
	// Name returns a unique identifier for this task (used for logging and dedup).
	Name() string

	// Schedule returns a 5-field cron expression (e.g., "0 * * * *").
	Schedule() string

	// Run executes the task. Implementations should check ctx.Done() for
	// graceful cancellation.
	Run(ctx context.Context) error
}

// Scheduler manages periodic task execution using cron expressions.
// Each task is protected by a per-task mutex so a tick that arrives while
// the previous one is still running is skipped, not queued.
type Scheduler struct {
	mu     sync.Mutex
	cron   *cron.Cron
	tasks  []Task
	locks  map[string]*sync.Mutex
	logger *slog.Logger
	cancel context.CancelFunc
}

// NewScheduler creates a scheduler. Tasks must be registered before Start().
func NewScheduler(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		locks:  make(map[string]*sync.Mutex),
		logger: logger,
	}
}

// Register adds a task to the scheduler. Must be called before Start().
// Returns an error if a task with the same name is already registered.
func (s *Scheduler) Register(t Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := t.Name()
	if _, exists := s.locks[name]; exists {
		return fmt.Errorf("maintenance: duplicate task name %q", name)
	}

	s.locks[name] = &sync.Mutex{}
	s.tasks = append(s.tasks, t)
	return nil
}

// Start begins executing registered tasks. Returns an error if any task has
// an invalid schedule expression.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	s.cron = cron.New(cron.WithParser(parser))

	for _, t := range s.tasks {
		task := t
		lock := s.locks[task.Name()]

		_, err := s.cron.AddFunc(task.Schedule(), func() {
			// TryLock is atomic; if the previous tick is still running,
			// skip this one.
			if !lock.TryLock() {
				s.logger.Warn("maintenance: task still running, skipping tick",
					"task", task.Name(),
				)
				return
			}
			defer lock.Unlock()

			if err := task.Run(ctx); err != nil {
				s.logger.Error("maintenance: task failed",
					"task", task.Name(),
					"error", err,
				)
			}
		})
		if err != nil {
			cancel()
			return fmt.Errorf("maintenance: invalid schedule for task %q: %w", task.Name(), err)
		}
	}

	s.cron.Start()
	s.logger.Info("maintenance: scheduler started", "tasks", len(s.tasks))
	return nil
}

// Stop gracefully shuts down the scheduler, waiting for in-flight tasks.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	if s.cron != nil {
		<-s.cron.Stop().Done()
		s.logger.Info("maintenance: scheduler stopped")
	}
}
