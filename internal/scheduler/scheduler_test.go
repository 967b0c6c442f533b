package scheduler

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/flemzord/cronos/internal/job"
	"github.com/flemzord/cronos/internal/schedule"
)

func enabledJob(id string) job.Job {
	return job.Job{
		ID:       id,
		Name:     id,
		Command:  "true",
		Schedule: schedule.NewDaily(12, 0),
		Enabled:  true,
		Type:     job.TypeCustomCommand,
	}
}

// soonAfter installs deadlines a fixed small delay past the reference.
func soonAfter(d time.Duration) NextRunFunc {
	return func(_ job.Job, after time.Time) time.Time { return after.Add(d) }
}

func TestReschedule_OnlyEnabledJobsGetDeadlines(t *testing.T) {
	t.Parallel()

	s := New(slog.Default(), func(string) {})
	defer s.Stop()

	disabled := enabledJob("b")
	disabled.Enabled = false
	s.Reschedule([]job.Job{enabledJob("a"), disabled})

	if s.Pending() != 1 {
		t.Fatalf("pending = %d, want 1", s.Pending())
	}
	if _, ok := s.NextFire("a"); !ok {
		t.Error("enabled job has no deadline")
	}
	if _, ok := s.NextFire("b"); ok {
		t.Error("disabled job has a deadline")
	}
}

func TestReschedule_ReplacesPreviousDeadlines(t *testing.T) {
	t.Parallel()

	s := New(slog.Default(), func(string) {})
	defer s.Stop()

	s.Reschedule([]job.Job{enabledJob("a"), enabledJob("b")})
	s.Reschedule([]job.Job{enabledJob("c")})

	if s.Pending() != 1 {
		t.Fatalf("pending = %d, want 1 after reschedule", s.Pending())
	}
	if _, ok := s.NextFire("a"); ok {
		t.Error("stale deadline survived reschedule")
	}
}

func TestCancel_RemovesSingleDeadline(t *testing.T) {
	t.Parallel()

	s := New(slog.Default(), func(string) {})
	defer s.Stop()

	s.Reschedule([]job.Job{enabledJob("a"), enabledJob("b")})
	s.Cancel("a")

	if _, ok := s.NextFire("a"); ok {
		t.Error("cancelled job still has a deadline")
	}
	if _, ok := s.NextFire("b"); !ok {
		t.Error("cancel touched an unrelated job")
	}
}

func TestFire_TriggersAndSelfRenews(t *testing.T) {
	t.Parallel()

	var fires atomic.Int32
	fired := make(chan string, 8)

	s := New(slog.Default(), func(id string) {
		fires.Add(1)
		fired <- id
	}, WithNextRunFunc(soonAfter(30*time.Millisecond)))
	defer s.Stop()

	s.Reschedule([]job.Job{enabledJob("a")})

	// The job should fire repeatedly without any external reschedule call.
	for i := 0; i < 2; i++ {
		select {
		case id := <-fired:
			if id != "a" {
				t.Fatalf("fired job = %q, want a", id)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("fire %d never arrived", i+1)
		}
	}

	if _, ok := s.NextFire("a"); !ok {
		t.Error("no renewed deadline after fire")
	}
}

func TestFire_PastDeadlineRederivesInsteadOfLooping(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	// Always returns a past instant; the scheduler must fall back to a
	// one-second re-derivation rather than fire in a tight loop.
	past := func(_ job.Job, after time.Time) time.Time {
		calls.Add(1)
		return after.Add(-time.Hour)
	}

	var fires atomic.Int32
	s := New(slog.Default(), func(string) { fires.Add(1) }, WithNextRunFunc(past))
	defer s.Stop()

	s.Reschedule([]job.Job{enabledJob("a")})

	time.Sleep(300 * time.Millisecond)
	if n := fires.Load(); n != 0 {
		t.Errorf("past deadline fired %d times within the fallback window", n)
	}
	if next, ok := s.NextFire("a"); !ok || !next.After(time.Now().Add(-time.Second)) {
		t.Error("no future fallback deadline installed")
	}
}

func TestCancelDuringTrigger_StopsRenewal(t *testing.T) {
	t.Parallel()

	s := New(slog.Default(), func(string) {}, WithNextRunFunc(soonAfter(20*time.Millisecond)))
	defer s.Stop()

	triggered := make(chan struct{}, 1)
	release := make(chan struct{})

	var once sync.Once
	s.onTrigger = func(string) {
		once.Do(func() { triggered <- struct{}{} })
		<-release
	}

	s.Reschedule([]job.Job{enabledJob("a")})
	<-triggered

	// Cancel while the trigger callback is still running, then install a
	// replacement schedule; the in-flight fire must not clobber it.
	s.Reschedule([]job.Job{enabledJob("b")})
	close(release)

	time.Sleep(100 * time.Millisecond)
	if _, ok := s.NextFire("b"); !ok {
		t.Error("replacement deadline lost")
	}
	if _, ok := s.NextFire("a"); ok {
		t.Error("rescheduled-away job got a deadline back from its in-flight fire")
	}
}

func TestCancelDuringTrigger_NoResurrection(t *testing.T) {
	t.Parallel()

	var fires atomic.Int32
	triggered := make(chan struct{}, 1)
	release := make(chan struct{})

	var once sync.Once
	s := New(slog.Default(), func(string) {
		fires.Add(1)
		once.Do(func() { triggered <- struct{}{} })
		<-release
	}, WithNextRunFunc(soonAfter(20*time.Millisecond)))
	defer s.Stop()

	s.Reschedule([]job.Job{enabledJob("a")})
	<-triggered

	// Cancel while the trigger callback is still running; releasing the
	// callback must not reinstall the deadline or keep the job firing.
	s.Cancel("a")
	close(release)

	time.Sleep(100 * time.Millisecond)
	if next, ok := s.NextFire("a"); ok {
		t.Errorf("cancelled job came back with deadline %v", next)
	}
	if n := fires.Load(); n != 1 {
		t.Errorf("cancelled job fired %d times, want 1", n)
	}
}

func TestSlowTriggerDoesNotDelayOtherJobs(t *testing.T) {
	t.Parallel()

	otherFired := make(chan struct{}, 1)
	block := make(chan struct{})
	defer close(block)

	s := New(slog.Default(), func(id string) {
		switch id {
		case "slow":
			<-block
		case "fast":
			select {
			case otherFired <- struct{}{}:
			default:
			}
		}
	}, WithNextRunFunc(soonAfter(20*time.Millisecond)))
	defer s.Stop()

	s.Reschedule([]job.Job{enabledJob("slow"), enabledJob("fast")})

	select {
	case <-otherFired:
	case <-time.After(2 * time.Second):
		t.Fatal("independent job delayed by a slow trigger")
	}
}
