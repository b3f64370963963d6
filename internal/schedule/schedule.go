package schedule

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalidTime indicates a schedule entry whose times cannot form a valid
// event (end not after start, nonsense date, and so on). Invalid entries are
// reported and skipped; they never abort a run.
var ErrInvalidTime = errors.New("invalid event time")

// Entry is one row of the user's schedule: an event name plus a date and a
// start/end time of day. Entries are plain values and are never mutated.
type Entry struct {
	Name      string `json:"name" yaml:"name"`
	Year      int    `json:"year" yaml:"year"`
	Month     int    `json:"month" yaml:"month"`
	Day       int    `json:"day" yaml:"day"`
	StartHour int    `json:"start_hour" yaml:"start_hour"`
	StartMin  int    `json:"start_min" yaml:"start_min"`
	EndHour   int    `json:"end_hour" yaml:"end_hour"`
	EndMin    int    `json:"end_min" yaml:"end_min"`
}

// UnmarshalJSON accepts the object form and the compact tuple form
// ["Deep Work", 2025, 7, 7, 9, 0, 11, 0], matching the row layout of the
// schedule lists this tool was built around.
func (e *Entry) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimLeft(string(data), " \t\r\n")
	if !strings.HasPrefix(trimmed, "[") {
		type plain Entry
		var p plain
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
		*e = Entry(p)
		return nil
	}

	var tuple []json.RawMessage
	if err := json.Unmarshal(data, &tuple); err != nil {
		return err
	}
	if len(tuple) != 8 {
		return fmt.Errorf("schedule tuple must have 8 elements (name, year, month, day, start_hour, start_min, end_hour, end_min), got %d", len(tuple))
	}
	if err := json.Unmarshal(tuple[0], &e.Name); err != nil {
		return fmt.Errorf("schedule tuple name: %w", err)
	}
	fields := []*int{&e.Year, &e.Month, &e.Day, &e.StartHour, &e.StartMin, &e.EndHour, &e.EndMin}
	for i, dst := range fields {
		if err := json.Unmarshal(tuple[i+1], dst); err != nil {
			return fmt.Errorf("schedule tuple element %d: %w", i+1, err)
		}
	}
	return nil
}

// Validate checks that the entry can produce a real calendar event.
func (e Entry) Validate() error {
	if strings.TrimSpace(e.Name) == "" {
		return fmt.Errorf("%w: entry has no name", ErrInvalidTime)
	}
	if e.Month < 1 || e.Month > 12 {
		return fmt.Errorf("%w: %q: month %d out of range", ErrInvalidTime, e.Name, e.Month)
	}
	if e.Day < 1 || e.Day > 31 {
		return fmt.Errorf("%w: %q: day %d out of range", ErrInvalidTime, e.Name, e.Day)
	}
	// time.Date normalizes impossible dates (Feb 30 becomes Mar 2); round-trip
	// and reject rather than creating the event on a day the user never wrote.
	if d := time.Date(e.Year, time.Month(e.Month), e.Day, 0, 0, 0, 0, time.UTC); d.Year() != e.Year || d.Month() != time.Month(e.Month) || d.Day() != e.Day {
		return fmt.Errorf("%w: %q: %s is not a real date", ErrInvalidTime, e.Name, e.Date())
	}
	if e.StartHour < 0 || e.StartHour > 23 || e.EndHour < 0 || e.EndHour > 23 {
		return fmt.Errorf("%w: %q: hour out of range", ErrInvalidTime, e.Name)
	}
	if e.StartMin < 0 || e.StartMin > 59 || e.EndMin < 0 || e.EndMin > 59 {
		return fmt.Errorf("%w: %q: minute out of range", ErrInvalidTime, e.Name)
	}
	if e.EndMinuteOfDay() <= e.StartMinuteOfDay() {
		return fmt.Errorf("%w: %q on %s: end %02d:%02d is not after start %02d:%02d",
			ErrInvalidTime, e.Name, e.Date(), e.EndHour, e.EndMin, e.StartHour, e.StartMin)
	}
	return nil
}

// Date returns the entry's calendar date in ISO form (YYYY-MM-DD).
func (e Entry) Date() string {
	return fmt.Sprintf("%04d-%02d-%02d", e.Year, e.Month, e.Day)
}

// StartMinuteOfDay returns the start time as minutes since midnight.
func (e Entry) StartMinuteOfDay() int {
	return e.StartHour*60 + e.StartMin
}

// EndMinuteOfDay returns the end time as minutes since midnight.
func (e Entry) EndMinuteOfDay() int {
	return e.EndHour*60 + e.EndMin
}

// Start combines the entry's date and start time in the given location.
func (e Entry) Start(loc *time.Location) time.Time {
	return time.Date(e.Year, time.Month(e.Month), e.Day, e.StartHour, e.StartMin, 0, 0, loc)
}

// End combines the entry's date and end time in the given location.
func (e Entry) End(loc *time.Location) time.Time {
	return time.Date(e.Year, time.Month(e.Month), e.Day, e.EndHour, e.EndMin, 0, 0, loc)
}

// Load reads an ordered schedule from a JSON or YAML file, dispatching on the
// file extension. The order of the file is the order of the returned slice.
func Load(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schedule file: %w", err)
	}

	var entries []Entry
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &entries); err != nil {
			return nil, fmt.Errorf("failed to parse schedule file %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, fmt.Errorf("failed to parse schedule file %s: %w", path, err)
		}
	}
	return entries, nil
}

// Range returns the date window covered by the schedule: midnight on the
// earliest entry's day through the end of the latest entry's day, in loc.
// ok is false for an empty schedule.
func Range(entries []Entry, loc *time.Location) (timeMin, timeMax time.Time, ok bool) {
	for _, e := range entries {
		dayStart := time.Date(e.Year, time.Month(e.Month), e.Day, 0, 0, 0, 0, loc)
		dayEnd := time.Date(e.Year, time.Month(e.Month), e.Day, 23, 59, 59, 0, loc)
		if !ok || dayStart.Before(timeMin) {
			timeMin = dayStart
		}
		if !ok || dayEnd.After(timeMax) {
			timeMax = dayEnd
		}
		ok = true
	}
	return timeMin, timeMax, ok
}
