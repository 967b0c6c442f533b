// Package store is the durable, file-based representation of the job
// collection and run index shared by all clients.
//
// Layout under the root (default ~/.cronos):
//
//	jobs.json            ordered array of jobs
//	logs/index.json      ordered array of run records
//	logs/runs/<id>.stdout
//	logs/runs/<id>.stderr
//
// The structured documents are loaded fully, mutated in memory, and rewritten
// in full; saves go through a temp file + rename so a concurrent reader never
// observes a partial document. There is deliberately no cross-process lock
// protocol: two clients writing concurrently race with last-writer-wins on
// the whole document. Callers are expected to reload before mutating.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/flemzord/cronos/internal/job"
)

// Sentinel errors for store operations.
var (
	// ErrCorruptStore wraps a parse failure of a present-but-unreadable
	// document. In-memory state must be left at last known good.
	ErrCorruptStore = errors.New("store: corrupt document")

	// ErrRunNotFound is returned when completing a run that is not in
	// the index.
	ErrRunNotFound = errors.New("store: run not found")
)

// Store reads and writes the shared on-disk layout rooted at one directory.
type Store struct {
	root string
}

// DefaultRoot returns ~/.cronos, the conventional location shared with
// other clients.
func DefaultRoot() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".cronos"
	}
	return filepath.Join(home, ".cronos")
}

// New creates a store rooted at dir, or at DefaultRoot when dir is empty.
// Directories are created lazily on first write.
func New(dir string) *Store {
	if dir == "" {
		dir = DefaultRoot()
	}
	return &Store{root: dir}
}

// Root returns the store's root directory.
func (s *Store) Root() string { return s.root }

// JobsPath returns the path of the jobs document.
func (s *Store) JobsPath() string { return filepath.Join(s.root, "jobs.json") }

func (s *Store) logsDir() string  { return filepath.Join(s.root, "logs") }
func (s *Store) runsDir() string  { return filepath.Join(s.logsDir(), "runs") }
func (s *Store) indexPath() string { return filepath.Join(s.logsDir(), "index.json") }

// EnsureDirs creates the root, logs, and runs directories. Idempotent.
func (s *Store) EnsureDirs() error {
	for _, dir := range []string{s.root, s.logsDir(), s.runsDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("store: creating %s: %w", dir, err)
		}
	}
	return nil
}

// JobsModTime returns the jobs document's modification time, or the zero
// time when the file does not exist. Used to detect edits by other clients.
func (s *Store) JobsModTime() time.Time {
	info, err := os.Stat(s.JobsPath())
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}

// loadDocument decodes a whole JSON document into out. A missing file is not
// an error; the caller keeps its zero-value collection. A present but
// undecodable file is a hard ErrCorruptStore.
func loadDocument(path string, out any) error {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("store: reading %s: %w", path, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCorruptStore, path, err)
	}
	return nil
}

// saveDocument writes a whole JSON document atomically: encode to a temp
// file in the target directory, then rename over the destination.
func saveDocument(path string, v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("store: encoding %s: %w", path, err)
	}
	raw = append(raw, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("store: creating temp for %s: %w", path, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("store: writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("store: closing temp for %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("store: replacing %s: %w", path, err)
	}
	return nil
}

// LoadJobs reads the full job collection. A missing document yields an
// empty collection.
func (s *Store) LoadJobs() ([]job.Job, error) {
	var jobs []job.Job
	if err := loadDocument(s.JobsPath(), &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

// SaveJobs rewrites the full job collection atomically.
func (s *Store) SaveJobs(jobs []job.Job) error {
	if err := s.EnsureDirs(); err != nil {
		return err
	}
	if jobs == nil {
		jobs = []job.Job{}
	}
	return saveDocument(s.JobsPath(), jobs)
}
