package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/pkg/errors"

	"github.com/tsudoi-io/tsudoi/internal/vector"
	"github.com/tsudoi-io/tsudoi/store"
)

func (d *DB) UpsertImageEmbedding(ctx context.Context, upsert *store.ImageEmbedding) (*store.ImageEmbedding, error) {
	now := time.Now().Unix()
	if upsert.CreatedTs == 0 {
		upsert.CreatedTs = now
	}
	upsert.UpdatedTs = now

	stmt := `
		INSERT INTO image_embedding (asset_id, model, embedding, created_ts, updated_ts)
		VALUES (` + placeholders(5) + `)
		ON CONFLICT (asset_id)
		DO UPDATE SET
			model = EXCLUDED.model,
			embedding = EXCLUDED.embedding,
			updated_ts = EXCLUDED.updated_ts
		RETURNING created_ts, updated_ts
	`

	err := d.db.QueryRowContext(ctx, stmt,
		upsert.AssetID,
		upsert.Model,
		pgvector.NewVector(upsert.Embedding),
		upsert.CreatedTs,
		upsert.UpdatedTs,
	).Scan(&upsert.CreatedTs, &upsert.UpdatedTs)
	if err != nil {
		return nil, errors.Wrap(err, "failed to upsert image embedding")
	}

	return upsert, nil
}

func (d *DB) GetImageEmbedding(ctx context.Context, assetID string) (*store.ImageEmbedding, error) {
	stmt := `SELECT asset_id, model, embedding, created_ts, updated_ts FROM image_embedding WHERE asset_id = ` + placeholder(1)

	var embedding store.ImageEmbedding
	var vec pgvector.Vector
	err := d.db.QueryRowContext(ctx, stmt, assetID).Scan(
		&embedding.AssetID,
		&embedding.Model,
		&vec,
		&embedding.CreatedTs,
		&embedding.UpdatedTs,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to get image embedding")
	}

	embedding.Embedding = vec.Slice()
	return &embedding, nil
}

// DeleteImageEmbedding is idempotent: deleting a missing row is a no-op.
func (d *DB) DeleteImageEmbedding(ctx context.Context, assetID string) error {
	if _, err := d.db.ExecContext(ctx, `DELETE FROM image_embedding WHERE asset_id = $1`, assetID); err != nil {
		return errors.Wrap(err, "failed to delete image embedding")
	}
	return nil
}

// ReplaceFaceEmbeddings deletes all prior face rows of the asset and inserts
// the given set inside one transaction, so readers never observe a partial
// face set.
func (d *DB) ReplaceFaceEmbeddings(ctx context.Context, assetID string, faces []*store.FaceEmbeddingUpsert) ([]*store.FaceEmbedding, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM face_embedding WHERE asset_id = $1`, assetID); err != nil {
		return nil, errors.Wrap(err, "failed to delete prior face embeddings")
	}

	now := time.Now().Unix()
	replacements := make([]*store.FaceEmbedding, 0, len(faces))
	for _, face := range faces {
		var bboxValue any
		if face.BBox != nil {
			raw, err := json.Marshal(face.BBox)
			if err != nil {
				return nil, errors.Wrap(err, "failed to marshal bbox")
			}
			bboxValue = raw
		}

		stmt := `INSERT INTO face_embedding (asset_id, embedding, bbox, created_ts)
			VALUES (` + placeholders(4) + `)
			RETURNING id`

		inserted := &store.FaceEmbedding{
			AssetID:   assetID,
			Embedding: face.Embedding,
			BBox:      face.BBox,
			CreatedTs: now,
		}
		if err := tx.QueryRowContext(ctx, stmt,
			assetID,
			pgvector.NewVector(face.Embedding),
			bboxValue,
			now,
		).Scan(&inserted.ID); err != nil {
			return nil, errors.Wrap(err, "failed to insert face embedding")
		}
		replacements = append(replacements, inserted)
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "failed to commit face embedding replacement")
	}
	return replacements, nil
}

func (d *DB) ListFaceEmbeddings(ctx context.Context, find *store.FindFaceEmbedding) ([]*store.FaceEmbedding, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.AssetID != nil {
		where, args = append(where, "asset_id = "+placeholder(len(args)+1)), append(args, *find.AssetID)
	}

	query := `SELECT id, asset_id, embedding, bbox, created_ts
		FROM face_embedding
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY id`

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list face embeddings")
	}
	defer rows.Close()

	list := []*store.FaceEmbedding{}
	for rows.Next() {
		var embedding store.FaceEmbedding
		var vec pgvector.Vector
		var bboxRaw []byte
		if err := rows.Scan(
			&embedding.ID,
			&embedding.AssetID,
			&vec,
			&bboxRaw,
			&embedding.CreatedTs,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan face embedding")
		}
		embedding.Embedding = vec.Slice()
		if len(bboxRaw) > 0 {
			var bbox store.BoundingBox
			if err := json.Unmarshal(bboxRaw, &bbox); err != nil {
				return nil, errors.Wrap(err, "failed to unmarshal bbox")
			}
			embedding.BBox = &bbox
		}
		list = append(list, &embedding)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return list, nil
}

// DeleteFaceEmbeddings is idempotent: unknown ids are ignored.
func (d *DB) DeleteFaceEmbeddings(ctx context.Context, faceIDs []int64) error {
	if len(faceIDs) == 0 {
		return nil
	}
	if _, err := d.db.ExecContext(ctx, `DELETE FROM face_embedding WHERE id = ANY($1)`, pq.Array(faceIDs)); err != nil {
		return errors.Wrap(err, "failed to delete face embeddings")
	}
	return nil
}

// SearchImageNeighbors is the accelerated path: pgvector's <-> operator
// ranks by Euclidean distance inside the database. The rows come back
// distance-ordered; they are still routed through the shared comparator so
// the final ordering is byte-identical with the brute-force backend.
func (d *DB) SearchImageNeighbors(ctx context.Context, find *store.FindImageNeighbors) ([]*store.ImageNeighbor, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.OwnerIDs != nil {
		where = append(where, "a.owner_id = ANY("+placeholder(len(args)+1)+")")
		args = append(args, pq.Array(find.OwnerIDs))
	}
	if len(find.ExcludeAssetIDs) > 0 {
		where = append(where, "NOT (ie.asset_id = ANY("+placeholder(len(args)+1)+"))")
		args = append(args, pq.Array(find.ExcludeAssetIDs))
	}
	if find.Model != nil {
		where, args = append(where, "ie.model = "+placeholder(len(args)+1)), append(args, *find.Model)
	}

	queryVec := pgvector.NewVector(find.Vector)
	distanceExpr := "ie.embedding <-> " + placeholder(len(args)+1)
	args = append(args, queryVec)

	query := `
		SELECT ie.asset_id, a.owner_id, ie.model, ie.created_ts, ` + distanceExpr + ` AS distance
		FROM image_embedding ie
		JOIN asset a ON a.id = ie.asset_id
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY distance, ie.created_ts DESC, ie.asset_id
		LIMIT ` + placeholder(len(args)+1)
	args = append(args, find.Limit)

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to search image neighbors")
	}
	defer rows.Close()

	results := []*store.ImageNeighbor{}
	for rows.Next() {
		var neighbor store.ImageNeighbor
		if err := rows.Scan(
			&neighbor.AssetID,
			&neighbor.OwnerID,
			&neighbor.Model,
			&neighbor.CreatedTs,
			&neighbor.Distance,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan image neighbor")
		}
		neighbor.Score = vector.L2Score(neighbor.Distance)
		results = append(results, &neighbor)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	store.SortImageNeighbors(results)
	return results, nil
}

// SearchFaceNeighbors is the accelerated path for face embeddings: pgvector's
// <#> operator ranks by negative inner product inside the database.
func (d *DB) SearchFaceNeighbors(ctx context.Context, find *store.FindFaceNeighbors) ([]*store.FaceNeighbor, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.OwnerIDs != nil {
		where = append(where, "a.owner_id = ANY("+placeholder(len(args)+1)+")")
		args = append(args, pq.Array(find.OwnerIDs))
	}
	if len(find.AssetIDs) > 0 {
		where = append(where, "fe.asset_id = ANY("+placeholder(len(args)+1)+")")
		args = append(args, pq.Array(find.AssetIDs))
	}
	if len(find.IncludeFaceIDs) > 0 {
		where = append(where, "fe.id = ANY("+placeholder(len(args)+1)+")")
		args = append(args, pq.Array(find.IncludeFaceIDs))
	}
	if len(find.ExcludeFaceIDs) > 0 {
		where = append(where, "NOT (fe.id = ANY("+placeholder(len(args)+1)+"))")
		args = append(args, pq.Array(find.ExcludeFaceIDs))
	}

	queryVec := pgvector.NewVector(find.Vector)
	distanceExpr := "fe.embedding <#> " + placeholder(len(args)+1)
	args = append(args, queryVec)

	query := `
		SELECT fe.id, fe.asset_id, a.owner_id, fe.bbox, fe.created_ts, ` + distanceExpr + ` AS distance
		FROM face_embedding fe
		JOIN asset a ON a.id = fe.asset_id
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY distance, fe.created_ts DESC, fe.id
		LIMIT ` + placeholder(len(args)+1)
	args = append(args, find.Limit)

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to search face neighbors")
	}
	defer rows.Close()

	results := []*store.FaceNeighbor{}
	for rows.Next() {
		var neighbor store.FaceNeighbor
		var bboxRaw []byte
		if err := rows.Scan(
			&neighbor.FaceID,
			&neighbor.AssetID,
			&neighbor.OwnerID,
			&bboxRaw,
			&neighbor.CreatedTs,
			&neighbor.Distance,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan face neighbor")
		}
		if len(bboxRaw) > 0 {
			var bbox store.BoundingBox
			if err := json.Unmarshal(bboxRaw, &bbox); err != nil {
				return nil, errors.Wrap(err, "failed to unmarshal bbox")
			}
			neighbor.BBox = &bbox
		}
		neighbor.Score = vector.InnerProductScore(neighbor.Distance)
		results = append(results, &neighbor)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	store.SortFaceNeighbors(results)
	return results, nil
}
