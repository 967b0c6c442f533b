package job

import (
	"time"

	"github.com/google/uuid"
)

// RunRecord is one execution attempt of a job. Records are created when the
// run starts and completed exactly once when it finishes; a record with no
// end timestamp is in flight. The JSON field names are part of the on-disk
// contract.
type RunRecord struct {
	ID        string     `json:"id"`
	JobID     string     `json:"jobId"`
	StartedAt time.Time  `json:"startedAt"`
	EndedAt   *time.Time `json:"endedAt,omitempty"`
	ExitCode  *int       `json:"exitCode,omitempty"`
	Success   *bool      `json:"success,omitempty"`
}

// NewRunRecord creates an in-flight record for the given job, started now.
func NewRunRecord(jobID string) RunRecord {
	return RunRecord{
		ID:        uuid.New().String(),
		JobID:     jobID,
		StartedAt: time.Now(),
	}
}

// InFlight reports whether the run has not finished yet.
func (r RunRecord) InFlight() bool {
	return r.EndedAt == nil
}

// Complete fills in the completion fields. It does not persist anything.
func (r *RunRecord) Complete(exitCode int, success bool) {
	now := time.Now()
	r.EndedAt = &now
	r.ExitCode = &exitCode
	r.Success = &success
}

// Duration returns the elapsed run time, or the time since start for a run
// still in flight.
func (r RunRecord) Duration() time.Duration {
	if r.EndedAt == nil {
		return time.Since(r.StartedAt)
	}
	return r.EndedAt.Sub(r.StartedAt)
}
