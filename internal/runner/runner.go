// Package runner executes one external command to completion, streaming its
// output incrementally into caller-supplied sinks.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"

	"github.com/flemzord/cronos/internal/job"
)

// ErrStart is returned when the process could not be spawned at all (bad
// working directory, missing shell). Distinct from a non-zero exit code.
var ErrStart = errors.New("runner: process could not be started")

const defaultShell = "/bin/bash"

// Result is the outcome of one completed execution.
type Result struct {
	ExitCode int
	Success  bool
}

// Runner spawns commands through a shell so shell operators in the command
// string are honored. It holds no state beyond configuration.
type Runner struct {
	shell  string
	logger *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithShell overrides the shell binary (default /bin/bash).
func WithShell(shell string) Option {
	return func(r *Runner) {
		if shell != "" {
			r.shell = shell
		}
	}
}

// New creates a Runner.
func New(logger *slog.Logger, opts ...Option) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Runner{shell: defaultShell, logger: logger}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Execute runs `<shell> -c command` in workDir (a leading ~ is expanded) and
// copies stdout and stderr to their sinks as data arrives, so partial output
// of a long-running command is observable before it exits. Execute blocks
// until the process terminates; callers that must not block run it from
// their own goroutine.
//
// Success is exit code zero. Cancelling ctx kills the process, which then
// reports failure with whatever exit code the kill produced. Sink write
// errors are logged and the remaining output is drained so the child never
// blocks on a full pipe.
func (r *Runner) Execute(ctx context.Context, command, workDir string, stdout, stderr io.Writer) (Result, error) {
	cmd := exec.CommandContext(ctx, r.shell, "-c", command)
	cmd.Dir = job.ExpandHome(workDir)

	outPipe, err := cmd.StdoutPipe()
	if err != nil {
		return Result{ExitCode: -1}, fmt.Errorf("%w: stdout pipe: %v", ErrStart, err)
	}
	errPipe, err := cmd.StderrPipe()
	if err != nil {
		return Result{ExitCode: -1}, fmt.Errorf("%w: stderr pipe: %v", ErrStart, err)
	}

	if err := cmd.Start(); err != nil {
		return Result{ExitCode: -1}, fmt.Errorf("%w: %v", ErrStart, err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go r.sink("stdout", stdout, outPipe, &wg)
	go r.sink("stderr", stderr, errPipe, &wg)
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return Result{ExitCode: exitErr.ExitCode(), Success: false}, nil
		}
		return Result{ExitCode: -1}, fmt.Errorf("runner: wait: %w", err)
	}
	return Result{ExitCode: 0, Success: true}, nil
}

// sink copies pipe output into w until EOF. A write failure downgrades to
// draining the pipe: losing log bytes must not wedge the child process.
func (r *Runner) sink(name string, w io.Writer, pipe io.Reader, wg *sync.WaitGroup) {
	defer wg.Done()
	if _, err := io.Copy(w, pipe); err != nil {
		r.logger.Warn("runner: log sink failed, draining remaining output",
			"stream", name,
			"error", err,
		)
		_, _ = io.Copy(io.Discard, pipe)
	}
}
