package progression

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/playtracker/internal/model"
	"github.com/sakif/playtracker/internal/repository/sqlstore"
)

func day(s string) time.Time {
	d, err := model.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func entry(id, start string, end *string, dur *int64) model.TimeEntry {
	return model.TimeEntry{ID: id, ProjectID: "p1", Start: start, End: end, Duration: dur}
}

func ptr[T any](v T) *T { return &v }

func dates(days []time.Time) []string {
	out := make([]string, len(days))
	for i, d := range days {
		out[i] = d.Format(model.DateLayout)
	}
	return out
}

func TestPlayedDaysFromEntries(t *testing.T) {
	entries := []model.TimeEntry{
		entry("a", "2024-01-01 10:00:00", ptr("2024-01-01 11:00:00"), ptr(int64(3600))),
		// crosses midnight: both days count
		entry("b", "2024-01-02 23:30:00", ptr("2024-01-03 00:30:00"), ptr(int64(3600))),
		// zero duration never counts
		entry("c", "2024-01-05 10:00:00", ptr("2024-01-05 10:00:00"), ptr(int64(0))),
		// open timer counts
		entry("d", "2024-01-07 10:00:00", nil, nil),
		// duplicate day
		entry("e", "2024-01-01 18:00:00", ptr("2024-01-01 19:00:00"), ptr(int64(3600))),
		// previous season
		entry("f", "2023-12-31 23:00:00", ptr("2024-01-01 00:10:00"), ptr(int64(600))),
	}

	got := PlayedDaysFromEntries(entries, 0)
	assert.Equal(t, []string{"2023-12-31", "2024-01-01", "2024-01-02", "2024-01-03", "2024-01-07"}, dates(got))

	got = PlayedDaysFromEntries(entries, 2024)
	assert.Equal(t, []string{"2024-01-01", "2024-01-02", "2024-01-03", "2024-01-07"}, dates(got))
}

func TestComputeStreak(t *testing.T) {
	// played D, D+1, D+2, D+4
	played := []time.Time{day("2024-03-01"), day("2024-03-02"), day("2024-03-03"), day("2024-03-05")}

	tests := []struct {
		name  string
		today string
		prior StreakState
		want  StreakState
	}{
		{
			name:  "gap resets, day after gap restarts",
			today: "2024-03-05",
			want:  StreakState{Current: 1, Best: 3, BestDate: "2024-03-03"},
		},
		{
			name:  "today unplayed keeps the streak",
			today: "2024-03-06",
			want:  StreakState{Current: 1, Best: 3, BestDate: "2024-03-03"},
		},
		{
			name:  "yesterday unplayed resets",
			today: "2024-03-07",
			want:  StreakState{Current: 0, Best: 3, BestDate: "2024-03-03"},
		},
		{
			name:  "as of the last day of the run",
			today: "2024-03-03",
			want:  StreakState{Current: 3, Best: 3, BestDate: "2024-03-03"},
		},
		{
			name:  "mid-run as of",
			today: "2024-03-02",
			want:  StreakState{Current: 2, Best: 2, BestDate: "2024-03-02"},
		},
		{
			name:  "tie with prior best keeps prior date",
			today: "2024-03-05",
			prior: StreakState{Best: 3, BestDate: "2023-07-10"},
			want:  StreakState{Current: 1, Best: 3, BestDate: "2023-07-10"},
		},
		{
			name:  "longer prior best wins",
			today: "2024-03-05",
			prior: StreakState{Best: 12, BestDate: "2023-07-10"},
			want:  StreakState{Current: 1, Best: 12, BestDate: "2023-07-10"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeStreak(played, day(tt.today), tt.prior)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestComputeStreak_NoDays(t *testing.T) {
	prior := StreakState{Best: 4, BestDate: "2023-01-04"}
	got := ComputeStreak(nil, day("2024-01-01"), prior)
	assert.Equal(t, StreakState{Current: 0, Best: 4, BestDate: "2023-01-04"}, got)
}

func TestSeasonPlayedTime(t *testing.T) {
	entries := []model.TimeEntry{
		entry("a", "2023-12-31 22:00:00", ptr("2023-12-31 23:00:00"), ptr(int64(3600))),
		entry("b", "2024-01-01 10:00:00", ptr("2024-01-01 10:30:00"), ptr(int64(1800))),
		entry("c", "2024-01-02 10:00:00", nil, nil),
	}
	assert.Equal(t, int64(1800), SeasonPlayedTime(entries, 2024))
	assert.Equal(t, int64(5400), SeasonPlayedTime(entries, 0))
}

func TestProgress_LostStreak(t *testing.T) {
	p := Progress{
		Previous: model.UserStatistics{CurrentStreak: 10},
		Current:  model.UserStatistics{CurrentStreak: 0},
	}
	assert.True(t, p.LostStreak())

	p.Previous.CurrentStreak = 9
	assert.False(t, p.LostStreak())
}

func TestEngine_Recompute(t *testing.T) {
	ctx := context.Background()
	store, err := sqlstore.New(sqlstore.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	user := &model.User{Name: "ana", ClockifyID: "c-ana", IsActive: true}
	_, err = store.CreateUser(ctx, user)
	require.NoError(t, err)

	for _, e := range []model.TimeEntry{
		entry("a", "2023-12-31 22:00:00", ptr("2023-12-31 23:00:00"), ptr(int64(3600))),
		entry("b", "2024-01-01 10:00:00", ptr("2024-01-01 11:00:00"), ptr(int64(3600))),
		entry("c", "2024-01-02 10:00:00", ptr("2024-01-02 10:30:00"), ptr(int64(1800))),
	} {
		e.UserID = user.ID
		_, err := store.UpsertTimeEntry(ctx, &e)
		require.NoError(t, err)
	}

	clock := quartz.NewMock(t)
	clock.Set(time.Date(2024, 1, 2, 20, 0, 0, 0, time.UTC))
	engine := NewEngine(store, clock, time.UTC, slog.New(slog.NewTextHandler(io.Discard, nil)))

	progress, err := engine.Recompute(ctx, user.ID, 2024, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, int64(5400), progress.Current.PlayedTime)
	assert.Equal(t, 2, progress.Current.PlayedDays)
	// the streak crosses the season boundary
	assert.Equal(t, 3, progress.Current.CurrentStreak)
	assert.Equal(t, 3, progress.Current.BestStreak)
	assert.Equal(t, "2024-01-02", progress.Current.BestStreakDate)
	assert.Equal(t, 0, progress.Previous.CurrentStreak)

	stored, err := store.GetUserStatistics(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, progress.Current, *stored)

	// two idle days later the streak is gone but the best stays
	clock.Set(time.Date(2024, 1, 4, 9, 0, 0, 0, time.UTC))
	streak, err := engine.Streak(ctx, user.ID, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, StreakState{Current: 0, Best: 3, BestDate: "2024-01-02"}, streak)

	days, err := engine.PlayedDays(ctx, user.ID, 2023)
	require.NoError(t, err)
	assert.Equal(t, []string{"2023-12-31"}, dates(days))
}
