// Package job defines the persisted job model shared by every client of the
// store: the daemon, the CLI, and anything else reading ~/.cronos.
package job

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/flemzord/cronos/internal/schedule"
)

// Type discriminates which execution payload is active.
type Type string

const (
	// TypeClaude renders a shell command from a prompt and optional
	// context directory at run time.
	TypeClaude Type = "claude"

	// TypeCustomCommand runs the raw command string as-is.
	TypeCustomCommand Type = "customCommand"
)

// Sentinel errors for job validation.
var (
	ErrEmptyID    = errors.New("job: empty id")
	ErrEmptyName  = errors.New("job: empty name")
	ErrBadType    = errors.New("job: unknown job type")
	ErrNoPayload  = errors.New("job: no execution payload for type")
)

// Job is a user-defined recurring task. The JSON field names are the on-disk
// contract with other store clients and must not change.
type Job struct {
	ID               string            `json:"id"`
	Name             string            `json:"name"`
	Command          string            `json:"command"`
	WorkingDirectory string            `json:"workingDirectory"`
	Schedule         schedule.Schedule `json:"schedule"`
	Enabled          bool              `json:"isEnabled"`
	LastRun          *time.Time        `json:"lastRun,omitempty"`
	LastRunSuccess   *bool             `json:"lastRunSuccessful,omitempty"`

	Type             Type   `json:"jobType"`
	ClaudePrompt     string `json:"claudePrompt,omitempty"`
	ContextDirectory string `json:"contextDirectory,omitempty"`
}

// New creates a job with a fresh identifier, enabled by default.
func New(name string, sched schedule.Schedule) Job {
	return Job{
		ID:       uuid.New().String(),
		Name:     name,
		Schedule: sched,
		Enabled:  true,
		Type:     TypeCustomCommand,
	}
}

// Validate checks identity, payload, and schedule consistency.
func (j Job) Validate() error {
	if j.ID == "" {
		return ErrEmptyID
	}
	if strings.TrimSpace(j.Name) == "" {
		return ErrEmptyName
	}
	switch j.Type {
	case TypeClaude:
		if strings.TrimSpace(j.ClaudePrompt) == "" {
			return fmt.Errorf("%w %q", ErrNoPayload, j.Type)
		}
	case TypeCustomCommand:
		if strings.TrimSpace(j.Command) == "" {
			return fmt.Errorf("%w %q", ErrNoPayload, j.Type)
		}
	default:
		return fmt.Errorf("%w: %q", ErrBadType, j.Type)
	}
	return j.Schedule.Validate()
}

// EffectiveCommand returns the concrete shell command to execute: the raw
// command for custom jobs, or a rendered `claude -p '<prompt>' ['<dir>']`
// invocation for assisted jobs. Single quotes in the prompt and directory
// are escaped so the rendered string survives the shell.
func (j Job) EffectiveCommand() string {
	if j.Type != TypeClaude {
		return j.Command
	}

	cmd := "claude -p '" + shellEscape(j.ClaudePrompt) + "'"
	if j.ContextDirectory != "" {
		// Expand the tilde before quoting; a quoted ~ would not expand.
		cmd += " '" + shellEscape(ExpandHome(j.ContextDirectory)) + "'"
	}
	return cmd
}

func shellEscape(s string) string {
	return strings.ReplaceAll(s, "'", `'\''`)
}

// ExpandHome replaces a leading ~ or ~/ with the current user's home
// directory. Paths without the shorthand are returned unchanged, as is
// everything when the home directory cannot be resolved.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if path == "~" {
		return home
	}
	return filepath.Join(home, path[2:])
}

// UnmarshalJSON decodes a job, defaulting the type discriminator for records
// written before assisted jobs existed. Those legacy records carry only a raw
// command, so they decode as custom-command jobs.
func (j *Job) UnmarshalJSON(data []byte) error {
	type alias Job
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	if a.Type == "" {
		a.Type = TypeCustomCommand
	}
	*j = Job(a)
	return nil
}
