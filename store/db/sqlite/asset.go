package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/tsudoi-io/tsudoi/store"
)

func (d *DB) CreateAsset(ctx context.Context, create *store.Asset) (*store.Asset, error) {
	if create.CreatedTs == 0 {
		create.CreatedTs = time.Now().Unix()
	}

	stmt := `INSERT INTO asset (id, owner_id, content_type, storage_key, created_ts)
		VALUES (` + placeholders(5) + `)`
	if _, err := d.db.ExecContext(ctx, stmt,
		create.ID,
		create.OwnerID,
		create.ContentType,
		create.StorageKey,
		create.CreatedTs,
	); err != nil {
		return nil, errors.Wrap(err, "failed to create asset")
	}

	return create, nil
}

func (d *DB) GetAsset(ctx context.Context, id string) (*store.Asset, error) {
	stmt := `SELECT id, owner_id, content_type, storage_key, created_ts FROM asset WHERE id = ?`

	var asset store.Asset
	err := d.db.QueryRowContext(ctx, stmt, id).Scan(
		&asset.ID,
		&asset.OwnerID,
		&asset.ContentType,
		&asset.StorageKey,
		&asset.CreatedTs,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to get asset")
	}
	return &asset, nil
}

func (d *DB) ListAssets(ctx context.Context, find *store.FindAsset) ([]*store.Asset, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.ID != nil {
		where, args = append(where, "id = ?"), append(args, *find.ID)
	}
	if find.OwnerID != nil {
		where, args = append(where, "owner_id = ?"), append(args, *find.OwnerID)
	}

	query := `SELECT id, owner_id, content_type, storage_key, created_ts
		FROM asset
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY created_ts DESC, id`
	if find.Limit != nil {
		query += " LIMIT ?"
		args = append(args, *find.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list assets")
	}
	defer rows.Close()

	list := []*store.Asset{}
	for rows.Next() {
		var asset store.Asset
		if err := rows.Scan(
			&asset.ID,
			&asset.OwnerID,
			&asset.ContentType,
			&asset.StorageKey,
			&asset.CreatedTs,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan asset")
		}
		list = append(list, &asset)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return list, nil
}

// DeleteAsset deletes an asset and cascades to its embeddings in one
// transaction.
func (d *DB) DeleteAsset(ctx context.Context, id string) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM face_embedding WHERE asset_id = ?`, id); err != nil {
		return errors.Wrap(err, "failed to delete face embeddings")
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM image_embedding WHERE asset_id = ?`, id); err != nil {
		return errors.Wrap(err, "failed to delete image embedding")
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM asset WHERE id = ?`, id); err != nil {
		return errors.Wrap(err, "failed to delete asset")
	}

	return tx.Commit()
}
