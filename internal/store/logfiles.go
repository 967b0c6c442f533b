package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// RunLogPaths returns the stdout and stderr file paths for a run.
func (s *Store) RunLogPaths(runID string) (stdout, stderr string) {
	return filepath.Join(s.runsDir(), runID+".stdout"),
		filepath.Join(s.runsDir(), runID+".stderr")
}

// CreateRunLogs opens fresh stdout and stderr files for a run. Output is
// streamed into them incrementally while the process runs, so partial output
// of a long job is observable before it finishes. The caller owns both files.
func (s *Store) CreateRunLogs(runID string) (stdout, stderr *os.File, err error) {
	if err := s.EnsureDirs(); err != nil {
		return nil, nil, err
	}

	outPath, errPath := s.RunLogPaths(runID)
	stdout, err = os.Create(outPath)
	if err != nil {
		return nil, nil, fmt.Errorf("store: creating %s: %w", outPath, err)
	}
	stderr, err = os.Create(errPath)
	if err != nil {
		_ = stdout.Close()
		return nil, nil, fmt.Errorf("store: creating %s: %w", errPath, err)
	}
	return stdout, stderr, nil
}

// ReadRunLog returns the captured output of a run. Missing files read as
// empty content, never as an error.
func (s *Store) ReadRunLog(runID string) (stdout, stderr string) {
	outPath, errPath := s.RunLogPaths(runID)
	if raw, err := os.ReadFile(outPath); err == nil {
		stdout = string(raw)
	}
	if raw, err := os.ReadFile(errPath); err == nil {
		stderr = string(raw)
	}
	return stdout, stderr
}

// DeleteRunLogs removes a run's log files, best-effort.
func (s *Store) DeleteRunLogs(runID string) {
	outPath, errPath := s.RunLogPaths(runID)
	_ = os.Remove(outPath)
	_ = os.Remove(errPath)
}
