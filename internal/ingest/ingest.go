// Package ingest turns raw time entries from the time-tracking service into
// normalized, time-ordered entries ready for reconciliation.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strconv"
	"time"

	"github.com/coder/quartz"

	"github.com/sakif/playtracker/internal/clockify"
	"github.com/sakif/playtracker/internal/model"
)

// Source is the page-level view of the time-tracking API.
// *clockify.Client satisfies it.
type Source interface {
	TimeEntries(ctx context.Context, userID string, start time.Time, page, pageSize int) ([]clockify.TimeEntry, error)
}

var _ Source = (*clockify.Client)(nil)

// Entry is a normalized time entry.
//
// Start and End are plain "YYYY-MM-DD HH:MM:SS" strings in the tracker's
// timezone. End and Duration are nil for a running timer.
type Entry struct {
	ID        string
	ProjectID string
	TagIDs    []string
	Start     string
	End       *string
	Duration  *int64 // seconds
	StartUTC  time.Time
}

// Date returns the calendar date the entry started on ("YYYY-MM-DD").
func (e Entry) Date() string {
	if len(e.Start) < len(model.DateLayout) {
		return e.Start
	}
	return e.Start[:len(model.DateLayout)]
}

type Ingestor struct {
	source   Source
	clock    quartz.Clock
	loc      *time.Location
	pageSize int
	logger   *slog.Logger
}

func New(source Source, clock quartz.Clock, loc *time.Location, logger *slog.Logger) *Ingestor {
	if loc == nil {
		loc = time.UTC
	}
	return &Ingestor{
		source:   source,
		clock:    clock,
		loc:      loc,
		pageSize: clockify.PageSize,
		logger:   logger,
	}
}

// DefaultSince is the start of an incremental sync: yesterday at 00:00 in
// the tracker's timezone.
func (in *Ingestor) DefaultSince() time.Time {
	now := in.clock.Now().In(in.loc)
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, in.loc).AddDate(0, 0, -1)
}

// Fetch pulls every entry of accountID that started at or after since,
// page by page until an empty page, and returns them sorted by start.
// A zero since means DefaultSince.
//
// Entries with a malformed start are dropped with a warning; everything
// else is kept, including entries without a project (reconciliation
// rejects those individually).
func (in *Ingestor) Fetch(ctx context.Context, accountID string, since time.Time) ([]Entry, error) {
	if since.IsZero() {
		since = in.DefaultSince()
	}

	var out []Entry
	for page := 1; ; page++ {
		raw, err := in.source.TimeEntries(ctx, accountID, since, page, in.pageSize)
		if err != nil {
			return nil, fmt.Errorf("ingest: fetching page %d for %s: %w", page, accountID, err)
		}
		if len(raw) == 0 {
			break
		}
		for _, r := range raw {
			e, err := in.normalize(r)
			if err != nil {
				in.logger.Warn("skipping malformed time entry",
					"entry_id", r.ID,
					"account_id", accountID,
					"error", err,
				)
				continue
			}
			out = append(out, e)
		}
	}

	// the API pages newest first; reconciliation wants oldest first
	slices.SortStableFunc(out, func(a, b Entry) int {
		return a.StartUTC.Compare(b.StartUTC)
	})
	return out, nil
}

func (in *Ingestor) normalize(r clockify.TimeEntry) (Entry, error) {
	start, err := time.Parse(time.RFC3339, r.TimeInterval.Start)
	if err != nil {
		return Entry{}, fmt.Errorf("parsing start %q: %w", r.TimeInterval.Start, err)
	}

	e := Entry{
		ID:       r.ID,
		TagIDs:   r.TagIDs,
		Start:    start.In(in.loc).Format(model.DateTimeLayout),
		StartUTC: start.UTC(),
	}
	if r.ProjectID != nil {
		e.ProjectID = *r.ProjectID
	}

	if r.TimeInterval.End != nil && *r.TimeInterval.End != "" {
		end, err := time.Parse(time.RFC3339, *r.TimeInterval.End)
		if err != nil {
			return Entry{}, fmt.Errorf("parsing end %q: %w", *r.TimeInterval.End, err)
		}
		s := end.In(in.loc).Format(model.DateTimeLayout)
		e.End = &s

		var d int64
		if r.TimeInterval.Duration != nil {
			d = ParseDuration(*r.TimeInterval.Duration)
		}
		e.Duration = &d
	}
	return e, nil
}

var durationPattern = regexp.MustCompile(`^PT(?:(\d+)H)?(?:(\d+)M)?`)

// ParseDuration converts an ISO-8601 "PT<h>H<m>M" duration into seconds.
// Either component may be missing. Seconds are ignored, so "PT45S" is 0.
// Anything unparsable is 0.
func ParseDuration(s string) int64 {
	m := durationPattern.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	var total int64
	if m[1] != "" {
		h, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return 0
		}
		total += h * 3600
	}
	if m[2] != "" {
		mins, err := strconv.ParseInt(m[2], 10, 64)
		if err != nil {
			return 0
		}
		total += mins * 60
	}
	return total
}
