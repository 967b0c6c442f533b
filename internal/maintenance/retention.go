package maintenance

import (
	"context"
	"log/slog"
	"time"

	"github.com/flemzord/cronos/internal/job"
	"github.com/flemzord/cronos/internal/store"
)

// RetentionTask prunes finished runs older than MaxAge from the run index,
// along with their log files. Runs still in flight are never pruned, and
// neither is anything when MaxAge is zero.
type RetentionTask struct {
	Store        *store.Store
	MaxAge       time.Duration
	Logger       *slog.Logger
	ScheduleExpr string // empty = default "0 * * * *"
}

// Compile-time interface check.
var _ Task = (*RetentionTask)(nil)

// Name implements Task.
func (t *RetentionTask) Name() string { return "run_retention" }

// Schedule implements Task.
func (t *RetentionTask) Schedule() string {
	if t.ScheduleExpr != "" {
		return t.ScheduleExpr
	}
	return "0 * * * *"
}

// Run prunes expired runs.
func (t *RetentionTask) Run(_ context.Context) error {
	if t.MaxAge <= 0 {
		return nil
	}

	runs, err := t.Store.LoadRuns()
	if err != nil {
		return err
	}

	cutoff := time.Now().Add(-t.MaxAge)
	kept := make([]job.RunRecord, 0, len(runs))
	pruned := 0
	for _, r := range runs {
		if r.InFlight() || r.EndedAt.After(cutoff) {
			kept = append(kept, r)
			continue
		}
		t.Store.DeleteRunLogs(r.ID)
		pruned++
	}
	if pruned == 0 {
		return nil
	}

	if err := t.Store.SaveRuns(kept); err != nil {
		return err
	}
	if t.Logger != nil {
		t.Logger.Info("maintenance: pruned old runs", "count", pruned, "cutoff", cutoff)
	}
	return nil
}
