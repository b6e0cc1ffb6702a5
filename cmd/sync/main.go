// Command sync runs one sync (or one ranking pass) and exits.
//
//	sync                          incremental sync of every active user
//	sync --all                    everything since INITIAL_DATE
//	sync --season --user a1b2c3   one user, since January 1st
//	sync --start-date 2024-03-01 --silent
//	sync --rankings
//	sync --leaderboard best_streak
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sakif/playtracker/internal/apperror"
	"github.com/sakif/playtracker/internal/config"
	"github.com/sakif/playtracker/internal/model"
	"github.com/sakif/playtracker/internal/ranking"
	"github.com/sakif/playtracker/internal/server"
	"github.com/sakif/playtracker/internal/syncer"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "sync:", err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	open := func(ctx context.Context) (*server.App, error) {
		return server.NewApp(ctx, cfg, logger)
	}

	if err := syncCmd(open, cfg.Location).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "sync:", err)
		stop()
		os.Exit(1)
	}
}

type syncFlags struct {
	startDate   string
	all         bool
	season      bool
	user        string
	silent      bool
	rankings    bool
	leaderboard string
	limit       int
}

// options turns the sync flags into run options. Dates are read in loc.
func (f syncFlags) options(loc *time.Location) (syncer.Options, error) {
	opts := syncer.Options{
		SyncAll:    f.all,
		SyncSeason: f.season,
		UserScope:  f.user,
		Silent:     f.silent,
	}
	if f.startDate != "" {
		start, err := time.ParseInLocation(model.DateLayout, f.startDate, loc)
		if err != nil {
			return syncer.Options{}, apperror.ValidationFailed("start-date", "--start-date must be YYYY-MM-DD")
		}
		opts.StartDate = start
	}
	return opts, nil
}

// syncCmd builds the command. open is called after flag validation, so a
// bad flag never touches the database.
func syncCmd(open func(context.Context) (*server.App, error), loc *time.Location) *cobra.Command {
	var f syncFlags
	cmd := &cobra.Command{
		Use:           "sync",
		Short:         "Run one sync, ranking pass or leaderboard query and exit",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := f.options(loc)
			if err != nil {
				return err
			}
			if f.limit <= 0 {
				return apperror.ValidationFailed("limit", "--limit must be positive")
			}

			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			app, err := open(ctx)
			if err != nil {
				return err
			}
			defer app.Close()

			switch {
			case f.leaderboard != "":
				return printLeaderboard(ctx, out, app.DB, model.LeaderboardMetric(f.leaderboard), f.limit)
			case f.rankings:
				results, err := app.Syncer.RunRankings(ctx, f.silent)
				for _, r := range results {
					fmt.Fprintf(out, "%s ranking (changed=%t, notified=%t)\n", r.Kind, r.Changed, r.Notified)
					fmt.Fprint(out, ranking.Format(r.Kind, r.Lines))
				}
				return err
			}

			report, err := app.Syncer.Run(ctx, opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "run %s: %d users, %d entries, %d skipped, %d failed (%d users), %d completed, %d achievements\n",
				report.RunID, report.Users, report.Entries, report.Skipped, report.Failed,
				report.FailedUsers, report.Completed, report.Achievements)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.startDate, "start-date", "", "Sync entries since this date (YYYY-MM-DD).")
	flags.BoolVar(&f.all, "all", false, "Sync everything since INITIAL_DATE.")
	flags.BoolVar(&f.season, "season", false, "Sync everything since January 1st of the season.")
	flags.StringVar(&f.user, "user", "", "Limit the run to one user (local or Clockify id).")
	flags.BoolVar(&f.silent, "silent", false, "Do not send notifications.")
	flags.BoolVar(&f.rankings, "rankings", false, "Run the ranking passes instead of a sync.")
	flags.StringVar(&f.leaderboard, "leaderboard", "",
		"Print a leaderboard: played_time, played_days, best_streak, current_streak, played_games, completed_games or achievements.")
	flags.IntVar(&f.limit, "limit", 10, "Leaderboard size.")
	cmd.MarkFlagsMutuallyExclusive("rankings", "leaderboard")
	return cmd
}

type leaderboardSource interface {
	Leaderboard(ctx context.Context, metric model.LeaderboardMetric, limit int) ([]model.Standing, error)
}

func printLeaderboard(ctx context.Context, w io.Writer, src leaderboardSource, metric model.LeaderboardMetric, limit int) error {
	standings, err := src.Leaderboard(ctx, metric, limit)
	if err != nil {
		return err
	}
	for i, st := range standings {
		value := strconv.FormatInt(st.Value, 10)
		if metric == model.MetricPlayedTime {
			value = model.FormatPlayedTime(st.Value)
		}
		fmt.Fprintf(w, "%d. %s: %s\n", i+1, st.Name, value)
	}
	return nil
}
