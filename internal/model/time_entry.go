package model

import (
	"fmt"
	"time"
)

// Layouts for the plain (zone-less) date-time strings kept in the store.
// Entries are converted to the tracker's fixed timezone before being
// serialized, and existing rows depend on this exact format.
const (
	DateTimeLayout = "2006-01-02 15:04:05"
	DateLayout     = "2006-01-02"
)

// TimeEntry is a reconciled time-tracking entry.
//
// End and Duration are nil while the timer is open. Once End is set,
// Duration holds the closed interval length in seconds.
type TimeEntry struct {
	ID             string  `json:"id"             db:"id"`
	UserID         string  `json:"userId"         db:"user_id"`
	UserClockifyID string  `json:"userClockifyId" db:"user_clockify_id"`
	ProjectID      string  `json:"projectId"      db:"project_id"`
	Start          string  `json:"start"          db:"start_time"`
	End            *string `json:"end"            db:"end_time"`
	Duration       *int64  `json:"duration"       db:"duration"`
}

// IsOpen reports whether the timer behind this entry is still running.
func (e *TimeEntry) IsOpen() bool {
	return e.End == nil
}

// Qualifies reports whether the entry counts towards played days:
// a positive duration, or an unknown one (open timer).
func (e *TimeEntry) Qualifies() bool {
	return e.Duration == nil || *e.Duration > 0
}

// StartDate returns the calendar date the entry started on.
func (e *TimeEntry) StartDate() (time.Time, error) {
	return ParseDate(e.Start)
}

// EndDate returns the calendar date the entry ended on; ok is false for
// open entries.
func (e *TimeEntry) EndDate() (time.Time, bool, error) {
	if e.End == nil {
		return time.Time{}, false, nil
	}
	d, err := ParseDate(*e.End)
	return d, err == nil, err
}

// ParseDate extracts the calendar date from a stored date or date-time
// string. The result is midnight UTC, which makes dates comparable with
// Equal/Before and safe to step with AddDate.
func ParseDate(s string) (time.Time, error) {
	if len(s) < len(DateLayout) {
		return time.Time{}, fmt.Errorf("model: invalid date %q", s)
	}
	return time.Parse(DateLayout, s[:len(DateLayout)])
}

// Day truncates t to its calendar date (in t's own location) as midnight UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// FormatPlayedTime renders seconds as "12h30m", the form every message uses.
func FormatPlayedTime(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%dh%dm", seconds/3600, seconds%3600/60)
}
