package sqlstore

import (
	"context"
	"errors"
	"testing"

	"github.com/sakif/playtracker/internal/apperror"
	"github.com/sakif/playtracker/internal/model"
)

// seedRankingFixture creates two users and two games with closed entries
// spread over 2023 and 2024.
func seedRankingFixture(t *testing.T, db *DB) (ana, bea *model.User, hades, celeste *model.Game) {
	t.Helper()
	ctx := context.Background()
	ana = createTestUser(t, db, "ana", "c-ana")
	bea = createTestUser(t, db, "bea", "c-bea")
	hades = createTestGame(t, db, "p1", "Hades")
	celeste = createTestGame(t, db, "p2", "Celeste")

	entries := []*model.TimeEntry{
		{ID: "1", UserID: ana.ID, ProjectID: "p1", Start: "2023-12-31 22:00:00", End: ptr("2023-12-31 23:00:00"), Duration: ptr(int64(3600))},
		{ID: "2", UserID: ana.ID, ProjectID: "p1", Start: "2024-01-02 10:00:00", End: ptr("2024-01-02 11:00:00"), Duration: ptr(int64(3600))},
		{ID: "3", UserID: bea.ID, ProjectID: "p2", Start: "2024-01-03 10:00:00", End: ptr("2024-01-03 12:00:00"), Duration: ptr(int64(7200))},
		{ID: "4", UserID: bea.ID, ProjectID: "p2", Start: "2024-01-04 10:00:00"}, // open
	}
	for _, e := range entries {
		if _, err := db.UpsertTimeEntry(ctx, e); err != nil {
			t.Fatalf("UpsertTimeEntry(%s) error = %v", e.ID, err)
		}
	}
	return ana, bea, hades, celeste
}

func TestRefreshPlayedTime_SeasonScoped(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	ana, bea, hades, _ := seedRankingFixture(t, db)

	if err := db.RefreshPlayedTime(ctx, model.RankingUsers, 2024); err != nil {
		t.Fatalf("RefreshPlayedTime(users) error = %v", err)
	}
	st, _ := db.GetUserStatistics(ctx, ana.ID)
	if st.PlayedTime != 3600 {
		t.Errorf("ana 2024 played time = %d, want 3600", st.PlayedTime)
	}
	st, _ = db.GetUserStatistics(ctx, bea.ID)
	if st.PlayedTime != 7200 {
		t.Errorf("bea 2024 played time = %d, want 7200", st.PlayedTime)
	}

	if err := db.RefreshPlayedTime(ctx, model.RankingGames, 2024); err != nil {
		t.Fatalf("RefreshPlayedTime(games) error = %v", err)
	}
	gs, _ := db.GetGameStatistics(ctx, hades.ID)
	if gs.PlayedTime != 3600 {
		t.Errorf("hades 2024 played time = %d, want 3600", gs.PlayedTime)
	}

	var historical int64
	if err := db.conn.QueryRow(
		`SELECT played_time FROM games_statistics_historical WHERE game_id = ?`, hades.ID,
	).Scan(&historical); err != nil {
		t.Fatalf("reading historical: %v", err)
	}
	if historical != 7200 {
		t.Errorf("hades historical played time = %d, want 7200", historical)
	}

	// season 0 covers everything
	if err := db.RefreshPlayedTime(ctx, model.RankingUsers, 0); err != nil {
		t.Fatalf("RefreshPlayedTime(users, 0) error = %v", err)
	}
	st, _ = db.GetUserStatistics(ctx, ana.ID)
	if st.PlayedTime != 7200 {
		t.Errorf("ana all-time played time = %d, want 7200", st.PlayedTime)
	}
}

func TestStandings_SetAndPromote(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedRankingFixture(t, db)
	if err := db.RefreshPlayedTime(ctx, model.RankingGames, 2024); err != nil {
		t.Fatalf("RefreshPlayedTime() error = %v", err)
	}

	standings, err := db.Standings(ctx, model.RankingGames)
	if err != nil {
		t.Fatalf("Standings() error = %v", err)
	}
	if len(standings) != 2 || standings[0].Name != "Celeste" || standings[1].Name != "Hades" {
		t.Fatalf("Standings() = %+v", standings)
	}
	if standings[0].LastRanking != model.UnrankedPosition {
		t.Errorf("LastRanking = %d, want unranked", standings[0].LastRanking)
	}

	for i, st := range standings {
		if err := db.SetCurrentRanking(ctx, model.RankingGames, st.ID, i+1); err != nil {
			t.Fatalf("SetCurrentRanking() error = %v", err)
		}
	}
	if err := db.PromoteRankings(ctx, model.RankingGames); err != nil {
		t.Fatalf("PromoteRankings() error = %v", err)
	}

	standings, err = db.Standings(ctx, model.RankingGames)
	if err != nil {
		t.Fatalf("Standings() error = %v", err)
	}
	if standings[0].LastRanking != 1 || standings[1].LastRanking != 2 {
		t.Errorf("promoted rankings = %d, %d, want 1, 2", standings[0].LastRanking, standings[1].LastRanking)
	}
}

func TestStandings_UnknownKind(t *testing.T) {
	db := newTestDB(t)

	_, err := db.Standings(context.Background(), model.RankingKind("pets"))
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("Standings() error = %v, want ErrValidation", err)
	}
}

func TestLeaderboard(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	ana, bea, hades, celeste := seedRankingFixture(t, db)
	for _, ug := range []*model.UserGame{
		{UserID: ana.ID, GameID: hades.ID, ProjectID: "p1"},
		{UserID: ana.ID, GameID: celeste.ID, ProjectID: "p2"},
		{UserID: bea.ID, GameID: celeste.ID, ProjectID: "p2"},
	} {
		if _, err := db.CreateUserGame(ctx, ug); err != nil {
			t.Fatalf("CreateUserGame() error = %v", err)
		}
	}

	board, err := db.Leaderboard(ctx, model.MetricPlayedGames, 10)
	if err != nil {
		t.Fatalf("Leaderboard() error = %v", err)
	}
	if len(board) != 2 || board[0].Name != "ana" || board[0].Value != 2 || board[1].Value != 1 {
		t.Errorf("Leaderboard(played_games) = %+v", board)
	}

	if _, err := db.Leaderboard(ctx, "'; DROP TABLE users; --", 10); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("Leaderboard(bogus) error = %v, want ErrValidation", err)
	}
}
