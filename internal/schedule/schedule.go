// Package schedule defines the recurrence rules jobs run on and the
// next-occurrence arithmetic the scheduler derives deadlines from.
package schedule

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for schedule validation.
var (
	// ErrNoVariant is returned when neither daily nor weekly is set.
	ErrNoVariant = errors.New("schedule: no variant set")

	// ErrBothVariants is returned when both daily and weekly are set.
	ErrBothVariants = errors.New("schedule: both daily and weekly set")

	// ErrOutOfRange is returned when hour, minute, or weekday is outside
	// its valid range.
	ErrOutOfRange = errors.New("schedule: field out of range")
)

// Daily fires once a day at the given wall-clock time.
type Daily struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

// Weekly fires once a week at the given wall-clock time.
// Weekday numbering is 1=Sunday .. 7=Saturday.
type Weekly struct {
	Weekday int `json:"weekday"`
	Hour    int `json:"hour"`
	Minute  int `json:"minute"`
}

// Schedule is a tagged union of exactly two recurrence variants. The JSON
// form is keyed by variant name ({"daily":{...}} or {"weekly":{...}}), which
// is the on-disk format shared with every other client of the store.
type Schedule struct {
	Daily  *Daily  `json:"daily,omitempty"`
	Weekly *Weekly `json:"weekly,omitempty"`
}

// NewDaily builds a daily schedule.
func NewDaily(hour, minute int) Schedule {
	return Schedule{Daily: &Daily{Hour: hour, Minute: minute}}
}

// NewWeekly builds a weekly schedule. Weekday is 1=Sunday .. 7=Saturday.
func NewWeekly(weekday, hour, minute int) Schedule {
	return Schedule{Weekly: &Weekly{Weekday: weekday, Hour: hour, Minute: minute}}
}

// Validate checks that exactly one variant is set and every field is in range.
func (s Schedule) Validate() error {
	switch {
	case s.Daily == nil && s.Weekly == nil:
		return ErrNoVariant
	case s.Daily != nil && s.Weekly != nil:
		return ErrBothVariants
	case s.Daily != nil:
		return validateTime(s.Daily.Hour, s.Daily.Minute)
	default:
		if s.Weekly.Weekday < 1 || s.Weekly.Weekday > 7 {
			return fmt.Errorf("%w: weekday %d", ErrOutOfRange, s.Weekly.Weekday)
		}
		return validateTime(s.Weekly.Hour, s.Weekly.Minute)
	}
}

func validateTime(hour, minute int) error {
	if hour < 0 || hour > 23 {
		return fmt.Errorf("%w: hour %d", ErrOutOfRange, hour)
	}
	if minute < 0 || minute > 59 {
		return fmt.Errorf("%w: minute %d", ErrOutOfRange, minute)
	}
	return nil
}

// NextRun returns the next instant strictly after `after` that matches the
// schedule, in after's location. An occurrence landing exactly on `after`
// counts as already passed and rolls forward a full cycle.
//
// NextRun never fails: a schedule with no variant set degrades to returning
// `after` unchanged, which callers treat as "already due".
func (s Schedule) NextRun(after time.Time) time.Time {
	switch {
	case s.Daily != nil:
		next := atWallClock(after, s.Daily.Hour, s.Daily.Minute)
		if !next.After(after) {
			next = atWallClock(after.AddDate(0, 0, 1), s.Daily.Hour, s.Daily.Minute)
		}
		return next

	case s.Weekly != nil:
		next := atWallClock(after, s.Weekly.Hour, s.Weekly.Minute)
		target := time.Weekday(s.Weekly.Weekday - 1)
		days := (int(target) - int(next.Weekday()) + 7) % 7
		next = atWallClock(next.AddDate(0, 0, days), s.Weekly.Hour, s.Weekly.Minute)
		if !next.After(after) {
			next = atWallClock(next.AddDate(0, 0, 7), s.Weekly.Hour, s.Weekly.Minute)
		}
		return next

	default:
		return after
	}
}

// atWallClock pins t's calendar date to the given hour:minute with zero
// seconds. time.Date normalizes across DST gaps, so a skipped wall-clock
// time maps to the adjusted instant rather than failing.
func atWallClock(t time.Time, hour, minute int) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), hour, minute, 0, 0, t.Location())
}

var weekdayNames = [...]string{"", "Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}

// DisplayString renders a human-readable label such as "Daily at 9:00"
// or "Monday at 9:00".
func (s Schedule) DisplayString() string {
	switch {
	case s.Daily != nil:
		return fmt.Sprintf("Daily at %d:%02d", s.Daily.Hour, s.Daily.Minute)
	case s.Weekly != nil:
		day := "Unknown"
		if s.Weekly.Weekday >= 1 && s.Weekly.Weekday <= 7 {
			day = weekdayNames[s.Weekly.Weekday]
		}
		return fmt.Sprintf("%s at %d:%02d", day, s.Weekly.Hour, s.Weekly.Minute)
	default:
		return "Unscheduled"
	}
}
