package main

import (
	"errors"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/flemzord/cronos/internal/job"
	"github.com/flemzord/cronos/internal/schedule"
)

// jobForm collects a new job interactively. Used by `jobs add` when no
// flags are given.
func jobForm() (job.Job, error) {
	var (
		name       string
		jobType    = job.TypeCustomCommand
		command    string
		workdir    string
		prompt     string
		contextDir string
		frequency  = "daily"
		weekday    = 2 // Monday
		clock      = "09:00"
		enabled    = true
	)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Name").
				Value(&name).
				Validate(notEmpty),
			huh.NewSelect[job.Type]().
				Title("Job type").
				Options(
					huh.NewOption("Shell command", job.TypeCustomCommand),
					huh.NewOption("Claude prompt", job.TypeClaude),
				).
				Value(&jobType),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Command").
				Placeholder("e.g. git -C ~/notes pull").
				Value(&command).
				Validate(notEmpty),
			huh.NewInput().
				Title("Working directory (optional)").
				Value(&workdir),
		).WithHideFunc(func() bool { return jobType != job.TypeCustomCommand }),
		huh.NewGroup(
			huh.NewText().
				Title("Prompt").
				Placeholder("e.g. summarize yesterday's commits").
				Value(&prompt).
				Validate(notEmpty),
			huh.NewInput().
				Title("Context directory (optional)").
				Value(&contextDir),
		).WithHideFunc(func() bool { return jobType != job.TypeClaude }),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Frequency").
				Options(
					huh.NewOption("Daily", "daily"),
					huh.NewOption("Weekly", "weekly"),
				).
				Value(&frequency),
		),
		huh.NewGroup(
			huh.NewSelect[int]().
				Title("Weekday").
				Options(
					huh.NewOption("Sunday", 1),
					huh.NewOption("Monday", 2),
					huh.NewOption("Tuesday", 3),
					huh.NewOption("Wednesday", 4),
					huh.NewOption("Thursday", 5),
					huh.NewOption("Friday", 6),
					huh.NewOption("Saturday", 7),
				).
				Value(&weekday),
		).WithHideFunc(func() bool { return frequency != "weekly" }),
		huh.NewGroup(
			huh.NewInput().
				Title("Time (HH:MM)").
				Value(&clock).
				Validate(validClock),
			huh.NewConfirm().
				Title("Enabled").
				Value(&enabled),
		),
	)
	if err := form.Run(); err != nil {
		return job.Job{}, err
	}

	hour, minute, err := parseClock(clock)
	if err != nil {
		return job.Job{}, err
	}
	var sched schedule.Schedule
	if frequency == "weekly" {
		sched = schedule.NewWeekly(weekday, hour, minute)
	} else {
		sched = schedule.NewDaily(hour, minute)
	}

	j := job.New(name, sched)
	j.Enabled = enabled
	if jobType == job.TypeClaude {
		j.Type = job.TypeClaude
		j.ClaudePrompt = prompt
		j.ContextDirectory = contextDir
	} else {
		j.Command = command
		j.WorkingDirectory = workdir
	}
	return j, nil
}

func notEmpty(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("cannot be empty")
	}
	return nil
}

func validClock(s string) error {
	hour, minute, err := parseClock(s)
	if err != nil {
		return err
	}
	return schedule.NewDaily(hour, minute).Validate()
}
