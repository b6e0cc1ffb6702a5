package sqlstore

import (
	"context"
	"testing"

	"github.com/sakif/playtracker/internal/model"
	"github.com/sakif/playtracker/internal/repository"
)

func TestUpsertTimeEntry_InsertThenClose(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := createTestUser(t, db, "ana", "c-ana")

	open := &model.TimeEntry{ID: "te1", UserID: u.ID, ProjectID: "p1", Start: "2024-01-01 10:00:00"}
	res, err := db.UpsertTimeEntry(ctx, open)
	if err != nil {
		t.Fatalf("UpsertTimeEntry() error = %v", err)
	}
	if res != repository.Inserted {
		t.Errorf("first UpsertTimeEntry() = %v, want inserted", res)
	}

	closed := &model.TimeEntry{
		ID: "te1", UserID: u.ID, ProjectID: "p1", Start: "2024-01-01 10:00:00",
		End: ptr("2024-01-01 11:30:00"), Duration: ptr(int64(5400)),
	}
	res, err = db.UpsertTimeEntry(ctx, closed)
	if err != nil {
		t.Fatalf("UpsertTimeEntry() error = %v", err)
	}
	if res != repository.AlreadyExists {
		t.Errorf("second UpsertTimeEntry() = %v, want already_exists", res)
	}

	got, err := db.GetTimeEntry(ctx, "te1")
	if err != nil {
		t.Fatalf("GetTimeEntry() error = %v", err)
	}
	if got.End == nil || *got.End != "2024-01-01 11:30:00" || got.Duration == nil || *got.Duration != 5400 {
		t.Errorf("GetTimeEntry() = %+v", got)
	}

	n, err := db.CountTimeEntries(ctx)
	if err != nil {
		t.Fatalf("CountTimeEntries() error = %v", err)
	}
	if n != 1 {
		t.Errorf("CountTimeEntries() = %d, want 1", n)
	}
}

func TestUpsertTimeEntry_StaleOpenCopyDoesNotReopen(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := createTestUser(t, db, "ana", "c-ana")

	closed := &model.TimeEntry{
		ID: "te1", UserID: u.ID, ProjectID: "p1", Start: "2024-01-01 10:00:00",
		End: ptr("2024-01-01 11:00:00"), Duration: ptr(int64(3600)),
	}
	if _, err := db.UpsertTimeEntry(ctx, closed); err != nil {
		t.Fatalf("UpsertTimeEntry() error = %v", err)
	}

	stale := &model.TimeEntry{ID: "te1", UserID: u.ID, ProjectID: "p2", Start: "2024-01-01 10:00:00"}
	if _, err := db.UpsertTimeEntry(ctx, stale); err != nil {
		t.Fatalf("UpsertTimeEntry() error = %v", err)
	}

	got, err := db.GetTimeEntry(ctx, "te1")
	if err != nil {
		t.Fatalf("GetTimeEntry() error = %v", err)
	}
	if got.IsOpen() {
		t.Error("closed entry was reopened by a stale open copy")
	}
	if got.ProjectID != "p2" {
		t.Errorf("ProjectID = %q, want p2", got.ProjectID)
	}
}

func TestSumUserProjectDuration(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	ana := createTestUser(t, db, "ana", "c-ana")
	bea := createTestUser(t, db, "bea", "c-bea")

	entries := []*model.TimeEntry{
		{ID: "a", UserID: ana.ID, ProjectID: "p1", Start: "2024-01-01 10:00:00", End: ptr("2024-01-01 11:00:00"), Duration: ptr(int64(3600))},
		{ID: "b", UserID: ana.ID, ProjectID: "p1", Start: "2024-01-02 10:00:00", End: ptr("2024-01-02 10:30:00"), Duration: ptr(int64(1800))},
		{ID: "c", UserID: ana.ID, ProjectID: "p1", Start: "2024-01-03 10:00:00"}, // open, ignored
		{ID: "d", UserID: ana.ID, ProjectID: "p2", Start: "2024-01-03 10:00:00", End: ptr("2024-01-03 11:00:00"), Duration: ptr(int64(3600))},
		{ID: "e", UserID: bea.ID, ProjectID: "p1", Start: "2024-01-03 10:00:00", End: ptr("2024-01-03 11:00:00"), Duration: ptr(int64(3600))},
	}
	for _, e := range entries {
		if _, err := db.UpsertTimeEntry(ctx, e); err != nil {
			t.Fatalf("UpsertTimeEntry(%s) error = %v", e.ID, err)
		}
	}

	total, err := db.SumUserProjectDuration(ctx, ana.ID, "p1")
	if err != nil {
		t.Fatalf("SumUserProjectDuration() error = %v", err)
	}
	if total != 5400 {
		t.Errorf("SumUserProjectDuration() = %d, want 5400", total)
	}

	list, err := db.ListTimeEntriesByUser(ctx, ana.ID)
	if err != nil {
		t.Fatalf("ListTimeEntriesByUser() error = %v", err)
	}
	if len(list) != 4 || list[0].ID != "a" {
		t.Errorf("ListTimeEntriesByUser() = %+v", list)
	}
}
