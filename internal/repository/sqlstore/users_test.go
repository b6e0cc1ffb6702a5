package sqlstore

import (
	"context"
	"errors"
	"testing"

	"github.com/sakif/playtracker/internal/apperror"
	"github.com/sakif/playtracker/internal/model"
	"github.com/sakif/playtracker/internal/repository"
)

func TestCreateUser(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	u := createTestUser(t, db, "ana", "c-ana")
	if u.ID == "" {
		t.Error("CreateUser() did not set user.ID")
	}

	got, err := db.GetUserByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetUserByID() error = %v", err)
	}
	if got.Name != "ana" || got.ClockifyID != "c-ana" || !got.IsActive {
		t.Errorf("GetUserByID() = %+v", got)
	}

	// statistics row is created alongside, unranked
	st, err := db.GetUserStatistics(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetUserStatistics() error = %v", err)
	}
	if st.LastRankingHours != model.UnrankedPosition {
		t.Errorf("LastRankingHours = %d, want %d", st.LastRankingHours, model.UnrankedPosition)
	}
}

func TestCreateUser_DuplicateClockifyID(t *testing.T) {
	db := newTestDB(t)
	createTestUser(t, db, "ana", "c-ana")

	res, err := db.CreateUser(context.Background(), &model.User{Name: "ana2", ClockifyID: "c-ana"})
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	if res != repository.AlreadyExists {
		t.Errorf("CreateUser() = %v, want already_exists", res)
	}
}

func TestGetUserByClockifyID_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetUserByClockifyID(context.Background(), "nope")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetUserByClockifyID() error = %v, want ErrNotFound", err)
	}
}

func TestListActiveUsers_SkipsInactive(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	createTestUser(t, db, "bea", "c-bea")
	createTestUser(t, db, "ana", "c-ana")
	if _, err := db.CreateUser(ctx, &model.User{Name: "old", ClockifyID: "c-old"}); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}

	users, err := db.ListActiveUsers(ctx)
	if err != nil {
		t.Fatalf("ListActiveUsers() error = %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("ListActiveUsers() returned %d users, want 2", len(users))
	}
	if users[0].Name != "ana" || users[1].Name != "bea" {
		t.Errorf("ListActiveUsers() order = %s, %s", users[0].Name, users[1].Name)
	}
}

func TestUpdateUserProgress(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := createTestUser(t, db, "ana", "c-ana")

	want := model.UserStatistics{
		UserID:         u.ID,
		PlayedTime:     7200,
		PlayedDays:     3,
		CurrentStreak:  2,
		BestStreak:     5,
		BestStreakDate: "2024-03-10",
	}
	if err := db.UpdateUserProgress(ctx, want); err != nil {
		t.Fatalf("UpdateUserProgress() error = %v", err)
	}

	got, err := db.GetUserStatistics(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetUserStatistics() error = %v", err)
	}
	if got.PlayedTime != 7200 || got.PlayedDays != 3 || got.CurrentStreak != 2 ||
		got.BestStreak != 5 || got.BestStreakDate != "2024-03-10" {
		t.Errorf("GetUserStatistics() = %+v", got)
	}
	// ranking columns untouched
	if got.CurrentRankingHours != model.UnrankedPosition {
		t.Errorf("CurrentRankingHours = %d, want %d", got.CurrentRankingHours, model.UnrankedPosition)
	}
}

func TestUpdateUserProgress_NotFound(t *testing.T) {
	db := newTestDB(t)

	err := db.UpdateUserProgress(context.Background(), model.UserStatistics{UserID: "ghost"})
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("UpdateUserProgress() error = %v, want ErrNotFound", err)
	}
}
