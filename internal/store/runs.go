package store

import (
	"fmt"
	"sort"

	"github.com/flemzord/cronos/internal/job"
)

// LoadRuns reads the full run index. A missing index yields an empty slice.
func (s *Store) LoadRuns() ([]job.RunRecord, error) {
	var runs []job.RunRecord
	if err := loadDocument(s.indexPath(), &runs); err != nil {
		return nil, err
	}
	return runs, nil
}

// SaveRuns rewrites the full run index atomically.
func (s *Store) SaveRuns(runs []job.RunRecord) error {
	if err := s.EnsureDirs(); err != nil {
		return err
	}
	if runs == nil {
		runs = []job.RunRecord{}
	}
	return saveDocument(s.indexPath(), runs)
}

// AppendRun adds one record to the index.
func (s *Store) AppendRun(r job.RunRecord) error {
	runs, err := s.LoadRuns()
	if err != nil {
		return err
	}
	return s.SaveRuns(append(runs, r))
}

// CompleteRun writes the completion fields of the identified run. Completing
// a run that has vanished from the index (for example because the other
// client rewrote it) returns ErrRunNotFound.
func (s *Store) CompleteRun(runID string, exitCode int, success bool) error {
	runs, err := s.LoadRuns()
	if err != nil {
		return err
	}
	for i := range runs {
		if runs[i].ID == runID {
			runs[i].Complete(exitCode, success)
			return s.SaveRuns(runs)
		}
	}
	return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
}

// RunsForJob returns the job's run records sorted newest first. Records
// referencing deleted jobs are simply never selected; they are ignorable,
// not an error.
func (s *Store) RunsForJob(jobID string) ([]job.RunRecord, error) {
	runs, err := s.LoadRuns()
	if err != nil {
		return nil, err
	}
	matched := make([]job.RunRecord, 0, len(runs))
	for _, r := range runs {
		if r.JobID == jobID {
			matched = append(matched, r)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].StartedAt.After(matched[j].StartedAt)
	})
	return matched, nil
}

// DeleteRunsForJob removes the job's records from the index and deletes
// their log files. Log deletion is best-effort; a missing file is fine.
func (s *Store) DeleteRunsForJob(jobID string) error {
	runs, err := s.LoadRuns()
	if err != nil {
		return err
	}

	kept := runs[:0]
	for _, r := range runs {
		if r.JobID == jobID {
			s.DeleteRunLogs(r.ID)
			continue
		}
		kept = append(kept, r)
	}
	return s.SaveRuns(kept)
}
