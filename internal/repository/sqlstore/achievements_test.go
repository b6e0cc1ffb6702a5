package sqlstore

import (
	"context"
	"sync/atomic"
	"testing"

	"golang.org/x/sync/errgroup"

	"github.com/sakif/playtracker/internal/model"
	"github.com/sakif/playtracker/internal/repository"
)

var testCatalog = []model.Achievement{
	{Key: "PLAYED_1000_HOURS", Title: "1000 hours", Category: "time"},
	{Key: "STREAK_7_DAYS", Title: "7 day streak", Category: "streak"},
}

func TestSeedAchievements_Idempotent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if err := db.SeedAchievements(ctx, testCatalog); err != nil {
		t.Fatalf("SeedAchievements() error = %v", err)
	}
	renamed := []model.Achievement{{Key: "STREAK_7_DAYS", Title: "A week in a row", Category: "streak"}}
	if err := db.SeedAchievements(ctx, renamed); err != nil {
		t.Fatalf("second SeedAchievements() error = %v", err)
	}

	var title string
	if err := db.conn.QueryRow(`SELECT title FROM achievements WHERE key = 'STREAK_7_DAYS'`).Scan(&title); err != nil {
		t.Fatalf("reading title: %v", err)
	}
	if title != "A week in a row" {
		t.Errorf("title = %q, want refreshed title", title)
	}
}

func TestInsertUserAchievement_Duplicate(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	if err := db.SeedAchievements(ctx, testCatalog); err != nil {
		t.Fatalf("SeedAchievements() error = %v", err)
	}
	u := createTestUser(t, db, "ana", "c-ana")

	ua := &model.UserAchievement{UserID: u.ID, AchievementKey: "STREAK_7_DAYS", Date: "2024-01-07"}
	res, err := db.InsertUserAchievement(ctx, ua)
	if err != nil || res != repository.Inserted {
		t.Fatalf("InsertUserAchievement() = %v, %v", res, err)
	}

	again := &model.UserAchievement{UserID: u.ID, AchievementKey: "STREAK_7_DAYS", Date: "2024-01-08"}
	res, err = db.InsertUserAchievement(ctx, again)
	if err != nil {
		t.Fatalf("InsertUserAchievement() error = %v", err)
	}
	if res != repository.AlreadyExists {
		t.Errorf("duplicate InsertUserAchievement() = %v, want already_exists", res)
	}

	list, err := db.ListUserAchievements(ctx, u.ID)
	if err != nil {
		t.Fatalf("ListUserAchievements() error = %v", err)
	}
	if len(list) != 1 || list[0].Date != "2024-01-07" {
		t.Errorf("ListUserAchievements() = %+v", list)
	}
}

func TestInsertUserAchievement_ConcurrentClaims(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	if err := db.SeedAchievements(ctx, testCatalog); err != nil {
		t.Fatalf("SeedAchievements() error = %v", err)
	}
	u := createTestUser(t, db, "ana", "c-ana")

	var inserted atomic.Int32
	var g errgroup.Group
	for i := 0; i < 10; i++ {
		g.Go(func() error {
			res, err := db.InsertUserAchievement(ctx, &model.UserAchievement{
				UserID: u.ID, AchievementKey: "PLAYED_1000_HOURS", Date: "2024-05-01",
			})
			if err != nil {
				return err
			}
			if res == repository.Inserted {
				inserted.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent claims error = %v", err)
	}
	if got := inserted.Load(); got != 1 {
		t.Errorf("inserted %d claims, want exactly 1", got)
	}
}
