package job

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/flemzord/cronos/internal/schedule"
)

func TestNew(t *testing.T) {
	t.Parallel()

	j := New("backup", schedule.NewDaily(3, 0))
	if j.ID == "" {
		t.Fatal("New should assign an id")
	}
	if !j.Enabled {
		t.Error("new jobs should start enabled")
	}
	if j.Type != TypeCustomCommand {
		t.Errorf("default type = %q, want %q", j.Type, TypeCustomCommand)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	base := New("backup", schedule.NewDaily(3, 0))
	base.Command = "echo hi"

	cases := []struct {
		name    string
		mutate  func(j *Job)
		wantErr error
	}{
		{"valid custom", func(*Job) {}, nil},
		{"valid claude", func(j *Job) {
			j.Type = TypeClaude
			j.ClaudePrompt = "summarize the day"
		}, nil},
		{"empty id", func(j *Job) { j.ID = "" }, ErrEmptyID},
		{"empty name", func(j *Job) { j.Name = "  " }, ErrEmptyName},
		{"unknown type", func(j *Job) { j.Type = "cron" }, ErrBadType},
		{"custom without command", func(j *Job) { j.Command = "" }, ErrNoPayload},
		{"claude without prompt", func(j *Job) { j.Type = TypeClaude }, ErrNoPayload},
		{"bad schedule", func(j *Job) { j.Schedule = schedule.NewDaily(25, 0) }, schedule.ErrOutOfRange},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			j := base
			tc.mutate(&j)
			if err := j.Validate(); !errors.Is(err, tc.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestEffectiveCommand_Custom(t *testing.T) {
	t.Parallel()

	j := New("n", schedule.NewDaily(1, 0))
	j.Command = "echo 'hello' | wc -l"

	if got := j.EffectiveCommand(); got != j.Command {
		t.Errorf("EffectiveCommand() = %q, want raw command", got)
	}
}

func TestEffectiveCommand_Claude(t *testing.T) {
	t.Parallel()

	j := New("n", schedule.NewDaily(1, 0))
	j.Type = TypeClaude
	j.ClaudePrompt = "summarize today's commits"

	got := j.EffectiveCommand()
	want := `claude -p 'summarize today'\''s commits'`
	if got != want {
		t.Errorf("EffectiveCommand() = %q, want %q", got, want)
	}
}

func TestEffectiveCommand_ClaudeWithContextDir(t *testing.T) {
	t.Parallel()

	j := New("n", schedule.NewDaily(1, 0))
	j.Type = TypeClaude
	j.ClaudePrompt = "review"
	j.ContextDirectory = "/tmp/repo"

	got := j.EffectiveCommand()
	want := `claude -p 'review' '/tmp/repo'`
	if got != want {
		t.Errorf("EffectiveCommand() = %q, want %q", got, want)
	}
}

func TestEffectiveCommand_ExpandsContextTilde(t *testing.T) {
	t.Parallel()

	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home dir: %v", err)
	}

	j := New("n", schedule.NewDaily(1, 0))
	j.Type = TypeClaude
	j.ClaudePrompt = "review"
	j.ContextDirectory = "~/repo"

	got := j.EffectiveCommand()
	if !strings.Contains(got, filepath.Join(home, "repo")) {
		t.Errorf("EffectiveCommand() = %q, context tilde not expanded", got)
	}
}

func TestExpandHome(t *testing.T) {
	t.Parallel()

	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home dir: %v", err)
	}

	cases := []struct{ in, want string }{
		{"~", home},
		{"~/work", filepath.Join(home, "work")},
		{"/abs/path", "/abs/path"},
		{"rel/path", "rel/path"},
		{"~user/x", "~user/x"},
	}
	for _, tc := range cases {
		if got := ExpandHome(tc.in); got != tc.want {
			t.Errorf("ExpandHome(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestUnmarshal_LegacyJobDefaultsToCustomCommand(t *testing.T) {
	t.Parallel()

	// A record written before the type discriminator existed.
	raw := []byte(`{
		"id": "4f6e3a2e-0000-0000-0000-000000000000",
		"name": "nightly",
		"command": "make backup",
		"workingDirectory": "~/work",
		"schedule": {"daily": {"hour": 2, "minute": 30}},
		"isEnabled": true
	}`)

	var j Job
	if err := json.Unmarshal(raw, &j); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if j.Type != TypeCustomCommand {
		t.Errorf("legacy job type = %q, want %q", j.Type, TypeCustomCommand)
	}
	if j.EffectiveCommand() != "make backup" {
		t.Errorf("EffectiveCommand() = %q", j.EffectiveCommand())
	}
}

func TestJobJSONRoundTrip(t *testing.T) {
	t.Parallel()

	j := New("report", schedule.NewWeekly(2, 9, 0))
	j.Type = TypeClaude
	j.ClaudePrompt = "weekly report"
	j.WorkingDirectory = "~/reports"
	ok := true
	j.LastRunSuccess = &ok

	raw, err := json.Marshal(j)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var back Job
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if back.ID != j.ID || back.Type != j.Type || back.ClaudePrompt != j.ClaudePrompt {
		t.Errorf("round trip changed job: %+v -> %+v", j, back)
	}
	if back.LastRunSuccess == nil || !*back.LastRunSuccess {
		t.Error("round trip dropped last-run summary")
	}
}

func TestRunRecordLifecycle(t *testing.T) {
	t.Parallel()

	r := NewRunRecord("job-1")
	if !r.InFlight() {
		t.Fatal("fresh record should be in flight")
	}

	r.Complete(2, false)
	if r.InFlight() {
		t.Fatal("completed record should not be in flight")
	}
	if *r.ExitCode != 2 || *r.Success {
		t.Errorf("completion fields = exit %d success %v", *r.ExitCode, *r.Success)
	}
	if r.Duration() < 0 {
		t.Errorf("negative duration %v", r.Duration())
	}
}
