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

var _ repository.TagRepository = (*DB)(nil)

// UpsertTag stores a tag in the catalog matching its kind, refreshing the
// name if the id is already known. The id is removed from the other
// catalog in the same transaction, so the two stay disjoint.
func (db *DB) UpsertTag(ctx context.Context, tag model.Tag) error {
	var upsert, evict string
	args := []any{tag.ID, tag.Name}
	switch tag.Kind {
	case model.TagPlatform:
		upsert = `INSERT INTO platform_tags (id, name) VALUES (?, ?)
			ON CONFLICT (id) DO UPDATE SET name = excluded.name`
		evict = `DELETE FROM other_tags WHERE id = ?`
	case model.TagOther:
		upsert = `INSERT INTO other_tags (id, name, is_completion) VALUES (?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET name = excluded.name, is_completion = excluded.is_completion`
		evict = `DELETE FROM platform_tags WHERE id = ?`
		args = append(args, boolToInt(tag.Completion))
	default:
		return apperror.ValidationFailed("kind", fmt.Sprintf("unknown tag kind %q", tag.Kind))
	}

	// A renamed tag can change catalog; it must leave the old one.
	err := db.withTx(ctx, func(tx *DB) error {
		if _, err := tx.exec(ctx, evict, tag.ID); err != nil {
			return err
		}
		_, err := tx.exec(ctx, upsert, args...)
		return err
	})
	if err != nil {
		return fmt.Errorf("sqlstore: upserting %s tag %s: %w", tag.Kind, tag.ID, err)
	}
	return nil
}

func (db *DB) FindPlatformTag(ctx context.Context, id string) (*model.Tag, error) {
	t := model.Tag{Kind: model.TagPlatform}
	err := db.queryRow(ctx,
		`SELECT id, name FROM platform_tags WHERE id = ?`, id,
	).Scan(&t.ID, &t.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("platform tag", id)
		}
		return nil, fmt.Errorf("sqlstore: getting platform tag %s: %w", id, err)
	}
	return &t, nil
}

func (db *DB) FindOtherTag(ctx context.Context, id string) (*model.Tag, error) {
	var completion int
	t := model.Tag{Kind: model.TagOther}
	err := db.queryRow(ctx,
		`SELECT id, name, is_completion FROM other_tags WHERE id = ?`, id,
	).Scan(&t.ID, &t.Name, &completion)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("tag", id)
		}
		return nil, fmt.Errorf("sqlstore: getting tag %s: %w", id, err)
	}
	t.Completion = completion == 1
	return &t, nil
}
