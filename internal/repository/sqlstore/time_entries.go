package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sakif/playtracker/internal/apperror"
	"github.com/sakif/playtracker/internal/model"
	"github.com/sakif/playtracker/internal/repository"
)

var _ repository.TimeEntryRepository = (*DB)(nil)

const timeEntryColumns = `id, user_id, user_clockify_id, project_id, start_time, end_time, duration`

// UpsertTimeEntry inserts the entry, or updates the stored copy when the id
// is already known.
//
// An update carrying no end only touches project and start: a timer that
// was seen closed stays closed even if a stale open copy arrives later.
func (db *DB) UpsertTimeEntry(ctx context.Context, e *model.TimeEntry) (repository.InsertResult, error) {
	res, err := db.exec(ctx,
		`INSERT INTO time_entries (`+timeEntryColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT DO NOTHING`,
		e.ID,
		e.UserID,
		e.UserClockifyID,
		e.ProjectID,
		e.Start,
		e.End,
		e.Duration,
	)
	if err != nil {
		return 0, fmt.Errorf("sqlstore: inserting time entry %s: %w", e.ID, err)
	}
	result, err := insertResult(res)
	if err != nil {
		return 0, fmt.Errorf("sqlstore: checking rows affected: %w", err)
	}
	if result == repository.Inserted {
		return result, nil
	}

	if e.End == nil {
		_, err = db.exec(ctx,
			`UPDATE time_entries SET project_id = ?, start_time = ? WHERE id = ?`,
			e.ProjectID, e.Start, e.ID,
		)
	} else {
		_, err = db.exec(ctx,
			`UPDATE time_entries SET project_id = ?, start_time = ?, end_time = ?, duration = ?
			 WHERE id = ?`,
			e.ProjectID, e.Start, *e.End, e.Duration, e.ID,
		)
	}
	if err != nil {
		return 0, fmt.Errorf("sqlstore: updating time entry %s: %w", e.ID, err)
	}
	return repository.AlreadyExists, nil
}

func (db *DB) GetTimeEntry(ctx context.Context, id string) (*model.TimeEntry, error) {
	e, err := scanTimeEntry(db.queryRow(ctx,
		`SELECT `+timeEntryColumns+` FROM time_entries WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("time entry", id)
		}
		return nil, fmt.Errorf("sqlstore: getting time entry %s: %w", id, err)
	}
	return e, nil
}

// ListTimeEntriesByUser returns all of a user's entries, oldest first.
func (db *DB) ListTimeEntriesByUser(ctx context.Context, userID string) ([]model.TimeEntry, error) {
	rows, err := db.query(ctx,
		`SELECT `+timeEntryColumns+` FROM time_entries WHERE user_id = ? ORDER BY start_time, id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: listing time entries for user %s: %w", userID, err)
	}
	defer rows.Close()

	var entries []model.TimeEntry
	for rows.Next() {
		e, err := scanTimeEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlstore: scanning time entry: %w", err)
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

func (db *DB) CountTimeEntries(ctx context.Context) (int, error) {
	var n int
	if err := db.queryRow(ctx, `SELECT COUNT(*) FROM time_entries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlstore: counting time entries: %w", err)
	}
	return n, nil
}

// SumUserProjectDuration totals the closed durations a user has on a project.
func (db *DB) SumUserProjectDuration(ctx context.Context, userID, projectID string) (int64, error) {
	var total int64
	err := db.queryRow(ctx,
		`SELECT COALESCE(SUM(duration), 0) FROM time_entries
		 WHERE user_id = ? AND project_id = ? AND duration IS NOT NULL`,
		userID, projectID,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sqlstore: summing duration for user %s project %s: %w", userID, projectID, err)
	}
	return total, nil
}

func scanTimeEntry(row rowScanner) (*model.TimeEntry, error) {
	var (
		e        model.TimeEntry
		end      sql.NullString
		duration sql.NullInt64
	)
	if err := row.Scan(
		&e.ID,
		&e.UserID,
		&e.UserClockifyID,
		&e.ProjectID,
		&e.Start,
		&end,
		&duration,
	); err != nil {
		return nil, err
	}
	if end.Valid {
		e.End = &end.String
	}
	if duration.Valid {
		e.Duration = &duration.Int64
	}
	return &e, nil
}
