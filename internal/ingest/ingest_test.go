package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/playtracker/internal/clockify"
)

// fakeSource serves pre-baked pages and records the requested start.
type fakeSource struct {
	pages [][]clockify.TimeEntry
	start time.Time
	calls int
	err   error
}

func (f *fakeSource) TimeEntries(_ context.Context, _ string, start time.Time, page, _ int) ([]clockify.TimeEntry, error) {
	f.calls++
	f.start = start
	if f.err != nil {
		return nil, f.err
	}
	if page-1 < len(f.pages) {
		return f.pages[page-1], nil
	}
	return nil, nil
}

func raw(id, start string, end, dur *string) clockify.TimeEntry {
	p := "p1"
	return clockify.TimeEntry{
		ID:           id,
		ProjectID:    &p,
		TagIDs:       []string{"tag_steam"},
		TimeInterval: clockify.TimeInterval{Start: start, End: end, Duration: dur},
	}
}

func ptr[T any](v T) *T { return &v }

func madrid(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Madrid")
	require.NoError(t, err)
	return loc
}

func newTestIngestor(t *testing.T, src Source) (*Ingestor, *quartz.Mock) {
	t.Helper()
	clock := quartz.NewMock(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(src, clock, madrid(t), logger), clock
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"PT2H", 7200},
		{"PT1H30M", 5400},
		{"PT45M", 2700},
		{"PT1H30M15S", 5400},
		{"PT45S", 0},
		{"PT", 0},
		{"", 0},
		{"garbage", 0},
		{"P1D", 0},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseDuration(tt.in))
		})
	}
}

func TestFetch_PagesSortsAndConverts(t *testing.T) {
	src := &fakeSource{pages: [][]clockify.TimeEntry{
		{
			raw("e3", "2024-01-03T09:00:00Z", nil, nil),
			raw("e2", "2024-01-02T23:30:00Z", ptr("2024-01-03T00:30:00Z"), ptr("PT1H")),
		},
		{
			raw("e1", "2024-01-01T10:00:00Z", ptr("2024-01-01T12:00:00Z"), ptr("PT2H")),
		},
	}}
	in, _ := newTestIngestor(t, src)

	since := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	entries, err := in.Fetch(context.Background(), "acc", since)
	require.NoError(t, err)

	// two pages plus the terminating empty page
	assert.Equal(t, 3, src.calls)
	require.Len(t, entries, 3)
	assert.Equal(t, []string{"e1", "e2", "e3"}, []string{entries[0].ID, entries[1].ID, entries[2].ID})

	// UTC -> Europe/Madrid (UTC+1 in winter)
	assert.Equal(t, "2024-01-01 11:00:00", entries[0].Start)
	assert.Equal(t, "2024-01-01 13:00:00", *entries[0].End)
	assert.Equal(t, int64(7200), *entries[0].Duration)
	assert.Equal(t, "p1", entries[0].ProjectID)

	// crossing midnight locally lands on the next day
	assert.Equal(t, "2024-01-03 00:30:00", entries[1].Start)
	assert.Equal(t, "2024-01-03", entries[1].Date())

	// open timer
	assert.Nil(t, entries[2].End)
	assert.Nil(t, entries[2].Duration)
}

func TestFetch_StableForEqualStarts(t *testing.T) {
	src := &fakeSource{pages: [][]clockify.TimeEntry{{
		raw("b", "2024-01-01T10:00:00Z", nil, nil),
		raw("a", "2024-01-01T10:00:00Z", nil, nil),
	}}}
	in, _ := newTestIngestor(t, src)

	entries, err := in.Fetch(context.Background(), "acc", time.Now())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "b", entries[0].ID)
	assert.Equal(t, "a", entries[1].ID)
}

func TestFetch_SkipsMalformedStart(t *testing.T) {
	src := &fakeSource{pages: [][]clockify.TimeEntry{{
		raw("bad", "yesterday", nil, nil),
		raw("ok", "2024-01-01T10:00:00Z", nil, nil),
	}}}
	in, _ := newTestIngestor(t, src)

	entries, err := in.Fetch(context.Background(), "acc", time.Now())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "ok", entries[0].ID)
}

func TestFetch_DefaultSinceIsYesterdayMidnight(t *testing.T) {
	src := &fakeSource{}
	in, clock := newTestIngestor(t, src)
	clock.Set(time.Date(2024, 3, 15, 17, 45, 0, 0, time.UTC))

	_, err := in.Fetch(context.Background(), "acc", time.Time{})
	require.NoError(t, err)

	want := time.Date(2024, 3, 14, 0, 0, 0, 0, madrid(t))
	assert.True(t, src.start.Equal(want), "start = %v, want %v", src.start, want)
}

func TestFetch_PropagatesSourceError(t *testing.T) {
	boom := errors.New("boom")
	in, _ := newTestIngestor(t, &fakeSource{err: boom})

	_, err := in.Fetch(context.Background(), "acc", time.Now())
	assert.ErrorIs(t, err, boom)
}
