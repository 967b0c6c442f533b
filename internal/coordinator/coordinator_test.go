package coordinator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/flemzord/cronos/internal/job"
	"github.com/flemzord/cronos/internal/metrics"
	"github.com/flemzord/cronos/internal/runner"
	"github.com/flemzord/cronos/internal/schedule"
	"github.com/flemzord/cronos/internal/store"
)

// memRecorder captures last-run summaries for assertions.
type memRecorder struct {
	mu      sync.Mutex
	jobID   string
	success *bool
}

func (r *memRecorder) RecordLastRun(jobID string, _ time.Time, success bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobID = jobID
	r.success = &success
}

func (r *memRecorder) recorded() (string, *bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.jobID, r.success
}

func newTestCoordinator(t *testing.T, opts ...Option) (*Coordinator, *store.Store, *memRecorder) {
	t.Helper()
	st := store.New(t.TempDir())
	rec := &memRecorder{}
	c := New(st, runner.New(slog.Default()), rec, metrics.New(), slog.Default(), opts...)
	return c, st, rec
}

func commandJob(id, command string, dir string) job.Job {
	return job.Job{
		ID:               id,
		Name:             id,
		Command:          command,
		WorkingDirectory: dir,
		Schedule:         schedule.NewDaily(3, 0),
		Enabled:          true,
		Type:             job.TypeCustomCommand,
	}
}

func TestRun_SuccessCapturesOutput(t *testing.T) {
	t.Parallel()

	c, st, recorder := newTestCoordinator(t)
	j := commandJob("j1", "echo hello", t.TempDir())

	rec, err := c.Run(context.Background(), j)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if rec.InFlight() {
		t.Fatal("returned record still in flight")
	}
	if rec.Success == nil || !*rec.Success || *rec.ExitCode != 0 {
		t.Errorf("record = %+v, want success exit 0", rec)
	}

	stdout, stderr := st.ReadRunLog(rec.ID)
	if stdout != "hello\n" {
		t.Errorf("stdout log = %q, want %q", stdout, "hello\n")
	}
	if stderr != "" {
		t.Errorf("stderr log = %q, want empty", stderr)
	}

	// The persisted index agrees with the returned record.
	runs, err := st.RunsForJob("j1")
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].InFlight() {
		t.Errorf("persisted runs = %+v", runs)
	}

	id, success := recorder.recorded()
	if id != "j1" || success == nil || !*success {
		t.Errorf("last-run summary = %q %v", id, success)
	}
}

func TestRun_FailureExitCode(t *testing.T) {
	t.Parallel()

	c, _, recorder := newTestCoordinator(t)
	j := commandJob("j1", "exit 2", t.TempDir())

	rec, err := c.Run(context.Background(), j)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if *rec.Success || *rec.ExitCode != 2 {
		t.Errorf("record = %+v, want failure exit 2", rec)
	}

	_, success := recorder.recorded()
	if success == nil || *success {
		t.Error("last-run summary should reflect failure")
	}
}

func TestRun_StartFailureStillFinalized(t *testing.T) {
	t.Parallel()

	c, st, recorder := newTestCoordinator(t)
	j := commandJob("j1", "true", "/no/such/dir")

	rec, err := c.Run(context.Background(), j)
	if !errors.Is(err, runner.ErrStart) {
		t.Fatalf("Run = %v, want ErrStart", err)
	}
	if rec.InFlight() {
		t.Fatal("start failure left run in flight")
	}
	if *rec.Success {
		t.Error("start failure finalized as success")
	}

	runs, err := st.RunsForJob("j1")
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].InFlight() {
		t.Errorf("persisted run not finalized: %+v", runs)
	}

	_, success := recorder.recorded()
	if success == nil || *success {
		t.Error("last-run summary should reflect the failed start")
	}
}

func TestRun_AtMostOneConcurrentRunPerJob(t *testing.T) {
	t.Parallel()

	c, st, _ := newTestCoordinator(t)
	j := commandJob("j1", "sleep 2", t.TempDir())

	started := make(chan struct{})
	go func() {
		close(started)
		_, _ = c.Run(context.Background(), j)
	}()
	<-started
	// Let the first run take the lock.
	for i := 0; i < 100 && !c.Running("j1"); i++ {
		time.Sleep(10 * time.Millisecond)
	}
	if !c.Running("j1") {
		t.Fatal("first run never started")
	}

	_, err := c.Run(context.Background(), j)
	if !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("second Run = %v, want ErrAlreadyRunning", err)
	}

	// Only the first run ever reached the index.
	runs, err := st.RunsForJob("j1")
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 {
		t.Errorf("observed %d runs, want exactly 1", len(runs))
	}
}

func TestRun_DifferentJobsRunConcurrently(t *testing.T) {
	t.Parallel()

	c, _, _ := newTestCoordinator(t)
	dir := t.TempDir()

	var running atomic.Int32
	var peak atomic.Int32
	var wg sync.WaitGroup
	for _, id := range []string{"a", "b"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			running.Add(1)
			defer running.Add(-1)
			if n := running.Load(); n > peak.Load() {
				peak.Store(n)
			}
			_, _ = c.Run(context.Background(), commandJob(id, "sleep 0.3", dir))
		}(id)
	}
	wg.Wait()

	if peak.Load() < 2 {
		t.Skip("goroutines did not overlap; nothing to assert")
	}
}

func TestRun_TimeoutFinalizesAsFailed(t *testing.T) {
	t.Parallel()

	c, st, _ := newTestCoordinator(t, WithTimeout(200*time.Millisecond))
	j := commandJob("j1", "sleep 30", t.TempDir())

	start := time.Now()
	rec, _ := c.Run(context.Background(), j)
	if time.Since(start) > 10*time.Second {
		t.Fatal("timeout ceiling not enforced")
	}
	if rec.ID != "" && rec.Success != nil && *rec.Success {
		t.Error("timed-out run finalized as success")
	}

	runs, err := st.RunsForJob("j1")
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range runs {
		if r.InFlight() {
			t.Error("timed-out run left in flight")
		}
	}
}

func TestRun_ClaudeJobUsesRenderedCommand(t *testing.T) {
	t.Parallel()

	c, st, _ := newTestCoordinator(t)

	// No claude binary in the test environment: the rendered command fails
	// to resolve. The shell's stderr still proves the payload was rendered
	// rather than the empty raw command being run.
	j := job.Job{
		ID:               "j1",
		Name:             "assisted",
		WorkingDirectory: t.TempDir(),
		Schedule:         schedule.NewDaily(3, 0),
		Enabled:          true,
		Type:             job.TypeClaude,
		ClaudePrompt:     "hello",
	}

	rec, err := c.Run(context.Background(), j)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rec.Success != nil && *rec.Success {
		// A claude binary actually exists here; nothing more to check.
		return
	}
	_, stderr := st.ReadRunLog(rec.ID)
	if stderr == "" {
		t.Error("rendered claude command produced no shell diagnostics")
	}
}
