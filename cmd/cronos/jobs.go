package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/flemzord/cronos/internal/coordinator"
	"github.com/flemzord/cronos/internal/job"
	"github.com/flemzord/cronos/internal/runner"
	"github.com/flemzord/cronos/internal/schedule"
	"github.com/flemzord/cronos/internal/store"
)

func jobsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Manage the job collection",
	}
	cmd.AddCommand(
		jobsListCmd(),
		jobsAddCmd(),
		jobsEditCmd(),
		jobsRemoveCmd(),
		jobsToggleCmd(),
		jobsRunCmd(),
		jobsLogsCmd(),
	)
	return cmd
}

// openCLIStore resolves the store from the --data-dir flag and makes sure
// the directory layout exists. The CLI is an independent store client; a
// running daemon picks up its edits through the file watcher.
func openCLIStore(cmd *cobra.Command) (*store.Store, error) {
	dir, _ := cmd.Flags().GetString("data-dir")
	if dir == "" {
		dir = store.DefaultRoot()
	}
	st := store.New(job.ExpandHome(dir))
	if err := st.EnsureDirs(); err != nil {
		return nil, err
	}
	return st, nil
}

// cliLogger keeps command output clean; only problems surface.
func cliLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
}

// findJob resolves a job by exact ID, unique ID prefix, or exact
// (case-insensitive) name.
func findJob(jobs []job.Job, key string) (job.Job, error) {
	var matches []job.Job
	for _, j := range jobs {
		if j.ID == key {
			return j, nil
		}
		if strings.HasPrefix(j.ID, key) || strings.EqualFold(j.Name, key) {
			matches = append(matches, j)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return job.Job{}, fmt.Errorf("no job matches %q", key)
	default:
		return job.Job{}, fmt.Errorf("%q is ambiguous (%d jobs match)", key, len(matches))
	}
}

func jobsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all jobs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := openCLIStore(cmd)
			if err != nil {
				return err
			}
			jobs, err := st.LoadJobs()
			if err != nil {
				return err
			}
			if len(jobs) == 0 {
				fmt.Println("No jobs. Add one with: cronos jobs add")
				return nil
			}

			sort.Slice(jobs, func(i, k int) bool { return jobs[i].Name < jobs[k].Name })
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tSCHEDULE\tENABLED\tLAST RUN\tID")
			for _, j := range jobs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					j.Name,
					j.Schedule.DisplayString(),
					enabledMark(j.Enabled),
					lastRunSummary(j),
					shortID(j.ID),
				)
			}
			return w.Flush()
		},
	}
}

func jobsAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a job (interactive without flags)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := openCLIStore(cmd)
			if err != nil {
				return err
			}

			name, _ := cmd.Flags().GetString("name")
			var j job.Job
			if name == "" {
				j, err = jobForm()
			} else {
				j, err = jobFromFlags(cmd, name)
			}
			if err != nil {
				return err
			}
			if err := j.Validate(); err != nil {
				return err
			}

			jobs, err := st.LoadJobs()
			if err != nil {
				return err
			}
			if err := st.SaveJobs(append(jobs, j)); err != nil {
				return err
			}
			fmt.Printf("Added %q (%s), %s\n", j.Name, shortID(j.ID), j.Schedule.DisplayString())
			return nil
		},
	}
	cmd.Flags().String("name", "", "Job name (omit for interactive mode)")
	cmd.Flags().String("command", "", "Shell command to run")
	cmd.Flags().String("prompt", "", "Claude prompt (makes this a claude job)")
	cmd.Flags().String("context-dir", "", "Context directory for a claude job")
	cmd.Flags().String("workdir", "", "Working directory for the command")
	cmd.Flags().String("daily", "", "Daily schedule as HH:MM")
	cmd.Flags().String("weekly", "", "Weekly schedule as DAY@HH:MM (e.g. mon@09:30)")
	cmd.Flags().Bool("disabled", false, "Create the job disabled")
	return cmd
}

// jobFromFlags builds a job from the non-interactive flag set.
func jobFromFlags(cmd *cobra.Command, name string) (job.Job, error) {
	daily, _ := cmd.Flags().GetString("daily")
	weekly, _ := cmd.Flags().GetString("weekly")

	var sched schedule.Schedule
	var err error
	switch {
	case daily != "" && weekly != "":
		return job.Job{}, errors.New("--daily and --weekly are mutually exclusive")
	case daily != "":
		sched, err = parseDaily(daily)
	case weekly != "":
		sched, err = parseWeekly(weekly)
	default:
		return job.Job{}, errors.New("one of --daily or --weekly is required")
	}
	if err != nil {
		return job.Job{}, err
	}

	j := job.New(name, sched)
	j.Command, _ = cmd.Flags().GetString("command")
	j.WorkingDirectory, _ = cmd.Flags().GetString("workdir")
	j.ClaudePrompt, _ = cmd.Flags().GetString("prompt")
	j.ContextDirectory, _ = cmd.Flags().GetString("context-dir")
	if j.ClaudePrompt != "" {
		j.Type = job.TypeClaude
	}
	if disabled, _ := cmd.Flags().GetBool("disabled"); disabled {
		j.Enabled = false
	}
	return j, nil
}

func jobsEditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit <job>",
		Short: "Change fields of an existing job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openCLIStore(cmd)
			if err != nil {
				return err
			}
			jobs, err := st.LoadJobs()
			if err != nil {
				return err
			}
			target, err := findJob(jobs, args[0])
			if err != nil {
				return err
			}

			updated, err := applyEditFlags(cmd, target)
			if err != nil {
				return err
			}
			if err := updated.Validate(); err != nil {
				return err
			}

			for i := range jobs {
				if jobs[i].ID == target.ID {
					jobs[i] = updated
				}
			}
			if err := st.SaveJobs(jobs); err != nil {
				return err
			}
			fmt.Printf("Updated %q, %s\n", updated.Name, updated.Schedule.DisplayString())
			return nil
		},
	}
	cmd.Flags().String("name", "", "New job name")
	cmd.Flags().String("command", "", "New shell command")
	cmd.Flags().String("prompt", "", "New Claude prompt")
	cmd.Flags().String("context-dir", "", "New context directory")
	cmd.Flags().String("workdir", "", "New working directory")
	cmd.Flags().String("daily", "", "New daily schedule as HH:MM")
	cmd.Flags().String("weekly", "", "New weekly schedule as DAY@HH:MM")
	return cmd
}

// applyEditFlags overlays the set flags onto an existing job. Unset flags
// leave the field alone.
func applyEditFlags(cmd *cobra.Command, j job.Job) (job.Job, error) {
	if cmd.Flags().Changed("name") {
		j.Name, _ = cmd.Flags().GetString("name")
	}
	if cmd.Flags().Changed("command") {
		j.Command, _ = cmd.Flags().GetString("command")
	}
	if cmd.Flags().Changed("prompt") {
		j.ClaudePrompt, _ = cmd.Flags().GetString("prompt")
		if j.ClaudePrompt != "" {
			j.Type = job.TypeClaude
		}
	}
	if cmd.Flags().Changed("context-dir") {
		j.ContextDirectory, _ = cmd.Flags().GetString("context-dir")
	}
	if cmd.Flags().Changed("workdir") {
		j.WorkingDirectory, _ = cmd.Flags().GetString("workdir")
	}

	daily := cmd.Flags().Changed("daily")
	weekly := cmd.Flags().Changed("weekly")
	switch {
	case daily && weekly:
		return job.Job{}, errors.New("--daily and --weekly are mutually exclusive")
	case daily:
		s, _ := cmd.Flags().GetString("daily")
		sched, err := parseDaily(s)
		if err != nil {
			return job.Job{}, err
		}
		j.Schedule = sched
	case weekly:
		s, _ := cmd.Flags().GetString("weekly")
		sched, err := parseWeekly(s)
		if err != nil {
			return job.Job{}, err
		}
		j.Schedule = sched
	}
	return j, nil
}

func jobsRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <job>",
		Aliases: []string{"remove", "delete"},
		Short:   "Delete a job and its run history",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openCLIStore(cmd)
			if err != nil {
				return err
			}
			jobs, err := st.LoadJobs()
			if err != nil {
				return err
			}
			target, err := findJob(jobs, args[0])
			if err != nil {
				return err
			}

			kept := jobs[:0]
			for _, j := range jobs {
				if j.ID != target.ID {
					kept = append(kept, j)
				}
			}
			if err := st.SaveJobs(kept); err != nil {
				return err
			}
			if err := st.DeleteRunsForJob(target.ID); err != nil {
				cliLogger().Warn("pruning run history failed", "job", target.ID, "error", err)
			}
			fmt.Printf("Deleted %q\n", target.Name)
			return nil
		},
	}
}

func jobsToggleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <job>",
		Short: "Enable or disable a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openCLIStore(cmd)
			if err != nil {
				return err
			}
			jobs, err := st.LoadJobs()
			if err != nil {
				return err
			}
			target, err := findJob(jobs, args[0])
			if err != nil {
				return err
			}

			for i := range jobs {
				if jobs[i].ID == target.ID {
					jobs[i].Enabled = !jobs[i].Enabled
					target = jobs[i]
				}
			}
			if err := st.SaveJobs(jobs); err != nil {
				return err
			}
			state := "disabled"
			if target.Enabled {
				state = "enabled"
			}
			fmt.Printf("Job %q is now %s\n", target.Name, state)
			return nil
		},
	}
}

func jobsRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <job>",
		Short: "Run a job immediately and print its output",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openCLIStore(cmd)
			if err != nil {
				return err
			}
			jobs, err := st.LoadJobs()
			if err != nil {
				return err
			}
			target, err := findJob(jobs, args[0])
			if err != nil {
				return err
			}

			logger := cliLogger()
			coord := coordinator.New(
				st,
				runner.New(logger),
				&coordinator.StoreRecorder{Store: st, Logger: logger},
				nil,
				logger,
			)

			fmt.Printf("Running %q ...\n", target.Name)
			rec, runErr := coord.Run(cmd.Context(), target)
			if rec.ID == "" {
				// Skipped or never started; nothing was captured.
				return runErr
			}

			stdout, stderr := st.ReadRunLog(rec.ID)
			if stdout != "" {
				fmt.Print(stdout)
			}
			if stderr != "" {
				fmt.Fprint(os.Stderr, stderr)
			}
			fmt.Println(runSummary(rec))
			return runErr
		},
	}
}

func jobsLogsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs <job>",
		Short: "Show a job's run history and captured output",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openCLIStore(cmd)
			if err != nil {
				return err
			}
			jobs, err := st.LoadJobs()
			if err != nil {
				return err
			}
			target, err := findJob(jobs, args[0])
			if err != nil {
				return err
			}
			runs, err := st.RunsForJob(target.ID)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Printf("No runs recorded for %q\n", target.Name)
				return nil
			}

			if all, _ := cmd.Flags().GetBool("all"); all {
				w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "STARTED\tRESULT\tDURATION\tRUN")
				for _, r := range runs {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
						r.StartedAt.Format(time.DateTime),
						runResult(r),
						formatDuration(r.Duration()),
						shortID(r.ID),
					)
				}
				return w.Flush()
			}

			latest := runs[0]
			stdout, stderr := st.ReadRunLog(latest.ID)
			fmt.Println(runSummary(latest))
			if stdout != "" {
				fmt.Print(stdout)
			}
			if stderr != "" {
				fmt.Fprint(os.Stderr, stderr)
			}
			return nil
		},
	}
	cmd.Flags().Bool("all", false, "List all runs instead of showing the latest output")
	return cmd
}

// --- schedule flag parsing ---

// weekdayAliases maps day names to the 1=Sunday..7=Saturday numbering used
// on disk.
var weekdayAliases = map[string]int{
	"sun": 1, "sunday": 1,
	"mon": 2, "monday": 2,
	"tue": 3, "tuesday": 3,
	"wed": 4, "wednesday": 4,
	"thu": 5, "thursday": 5,
	"fri": 6, "friday": 6,
	"sat": 7, "saturday": 7,
}

func parseDaily(s string) (schedule.Schedule, error) {
	hour, minute, err := parseClock(s)
	if err != nil {
		return schedule.Schedule{}, err
	}
	sched := schedule.NewDaily(hour, minute)
	return sched, sched.Validate()
}

func parseWeekly(s string) (schedule.Schedule, error) {
	day, clock, ok := strings.Cut(s, "@")
	if !ok {
		return schedule.Schedule{}, fmt.Errorf("weekly schedule %q must look like DAY@HH:MM", s)
	}
	weekday, ok := weekdayAliases[strings.ToLower(day)]
	if !ok {
		return schedule.Schedule{}, fmt.Errorf("unknown weekday %q", day)
	}
	hour, minute, err := parseClock(clock)
	if err != nil {
		return schedule.Schedule{}, err
	}
	sched := schedule.NewWeekly(weekday, hour, minute)
	return sched, sched.Validate()
}

func parseClock(s string) (hour, minute int, err error) {
	h, m, ok := strings.Cut(s, ":")
	if !ok {
		return 0, 0, fmt.Errorf("time %q must look like HH:MM", s)
	}
	hour, err = strconv.Atoi(h)
	if err != nil {
		return 0, 0, fmt.Errorf("time %q must look like HH:MM", s)
	}
	minute, err = strconv.Atoi(m)
	if err != nil {
		return 0, 0, fmt.Errorf("time %q must look like HH:MM", s)
	}
	return hour, minute, nil
}

// --- presentation helpers ---

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func enabledMark(on bool) string {
	if on {
		return "yes"
	}
	return "no"
}

func lastRunSummary(j job.Job) string {
	if j.LastRun == nil {
		return "never"
	}
	s := formatDuration(time.Since(*j.LastRun)) + " ago"
	if j.LastRunSuccess != nil && !*j.LastRunSuccess {
		s += " (failed)"
	}
	return s
}

func runResult(r job.RunRecord) string {
	if r.InFlight() {
		return "running"
	}
	if r.Success != nil && *r.Success {
		return "ok"
	}
	if r.ExitCode != nil {
		return fmt.Sprintf("exit %d", *r.ExitCode)
	}
	return "failed"
}

func runSummary(r job.RunRecord) string {
	return fmt.Sprintf("Run %s: %s in %s", shortID(r.ID), runResult(r), formatDuration(r.Duration()))
}

// formatDuration renders a duration at human precision: seconds under a
// minute, minutes under an hour, then hours and days.
func formatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return "<1s"
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
	default:
		return fmt.Sprintf("%dd%dh", int(d.Hours())/24, int(d.Hours())%24)
	}
}
