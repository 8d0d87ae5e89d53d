package timeline

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"dv8.transit.org/internal/utils"
)

// ErrConfiguration marks invalid report parameters. It is returned before any
// query runs.
var ErrConfiguration = errors.New("configuration error")

// ConfigurationError describes one rejected report parameter.
type ConfigurationError struct {
	Param string
	Value string
	Err   error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid %s %q: %v", e.Param, e.Value, e.Err)
	}
	return fmt.Sprintf("invalid %s %q", e.Param, e.Value)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

// MatchMode selects how a waypoint date is compared with the range bounds.
type MatchMode int

const (
	// MatchDayOfMonth compares only the day of the month of each bound, so a
	// range of 20240305..20240307 also matches the 5th to 7th of any other
	// month. This is how existing reports have always been produced.
	MatchDayOfMonth MatchMode = iota
	// MatchCalendar compares full calendar dates, with the end day inclusive.
	MatchCalendar
)

// ParseMatchMode accepts "day" (or "") and "calendar".
func ParseMatchMode(s string) (MatchMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "day":
		return MatchDayOfMonth, nil
	case "calendar":
		return MatchCalendar, nil
	}
	return 0, &ConfigurationError{Param: "date match", Value: s, Err: errors.New("want day or calendar")}
}

// DateRange is an optional window over waypoint dates. Either bound may be nil.
type DateRange struct {
	Start *time.Time
	End   *time.Time
	Match MatchMode
}

// ParseDateRange parses optional YYYYMMDD bounds. Empty strings leave the
// bound open. A nil location means time.Local.
func ParseDateRange(start, end string, mode MatchMode, loc *time.Location) (*DateRange, error) {
	r := &DateRange{Match: mode}
	var err error
	if r.Start, err = parseBound("start date", start, loc); err != nil {
		return nil, err
	}
	if r.End, err = parseBound("end date", end, loc); err != nil {
		return nil, err
	}
	if mode == MatchCalendar && r.Start != nil && r.End != nil && r.End.Before(*r.Start) {
		return nil, &ConfigurationError{Param: "end date", Value: end, Err: errors.New("before start date")}
	}
	return r, nil
}

func parseBound(param, s string, loc *time.Location) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, err := utils.ParseYYYYMMDD(s, loc)
	if err != nil {
		return nil, &ConfigurationError{Param: param, Value: s, Err: errors.New("format as YYYYMMDD, e.g. 20170523")}
	}
	return &t, nil
}

// Contains reports whether t falls inside the range. A nil range matches everything.
func (r *DateRange) Contains(t time.Time) bool {
	if r == nil {
		return true
	}
	switch r.Match {
	case MatchCalendar:
		day := civilDay(t)
		if r.Start != nil && day < civilDay(*r.Start) {
			return false
		}
		if r.End != nil && day > civilDay(*r.End) {
			return false
		}
		return true
	default:
		if r.Start != nil && t.Day() < r.Start.Day() {
			return false
		}
		if r.End != nil && t.Day() > r.End.Day() {
			return false
		}
		return true
	}
}

// civilDay orders dates by calendar day in t's own location.
func civilDay(t time.Time) int {
	y, m, d := t.Date()
	return y*10000 + int(m)*100 + d
}
