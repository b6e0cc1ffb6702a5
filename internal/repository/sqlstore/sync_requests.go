package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/sakif/playtracker/internal/model"
	"github.com/sakif/playtracker/internal/repository"
)

var _ repository.SyncRequestRepository = (*DB)(nil)

// EnqueueSyncRequest records a webhook delivery id. AlreadyExists means the
// same delivery is being (or was) handled by someone else.
func (db *DB) EnqueueSyncRequest(ctx context.Context, requestID string) (repository.InsertResult, error) {
	_, err := db.exec(ctx,
		`INSERT INTO request_sync (request_id, created_at) VALUES (?, ?)`,
		requestID, time.Now().UTC().Format(model.DateTimeLayout),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.AlreadyExists, nil
		}
		return 0, fmt.Errorf("sqlstore: enqueueing sync request %s: %w", requestID, err)
	}
	return repository.Inserted, nil
}

func (db *DB) DeleteSyncRequest(ctx context.Context, requestID string) error {
	if _, err := db.exec(ctx, `DELETE FROM request_sync WHERE request_id = ?`, requestID); err != nil {
		return fmt.Errorf("sqlstore: deleting sync request %s: %w", requestID, err)
	}
	return nil
}
