package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"math"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/tsudoi-io/tsudoi/internal/vector"
	"github.com/tsudoi-io/tsudoi/store"
)

// vectorToBLOB converts a []float32 to a little-endian BLOB.
func vectorToBLOB(vec []float32) []byte {
	buf := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:i*4+4], math.Float32bits(v))
	}
	return buf
}

// blobToVector converts a BLOB back to a float32 array.
// This is the inverse of vectorToBLOB.
func blobToVector(blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, errors.Errorf("invalid vector BLOB length: %d", len(blob))
	}
	vec := make([]float32, len(blob)/4)
	for i := range vec {
		bits := binary.LittleEndian.Uint32(blob[i*4 : i*4+4])
		vec[i] = math.Float32frombits(bits)
	}
	return vec, nil
}

func marshalBBox(bbox *store.BoundingBox) (any, error) {
	if bbox == nil {
		return nil, nil
	}
	raw, err := json.Marshal(bbox)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal bbox")
	}
	return string(raw), nil
}

func unmarshalBBox(raw sql.NullString) (*store.BoundingBox, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	var bbox store.BoundingBox
	if err := json.Unmarshal([]byte(raw.String), &bbox); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal bbox")
	}
	return &bbox, nil
}

func (d *DB) UpsertImageEmbedding(ctx context.Context, upsert *store.ImageEmbedding) (*store.ImageEmbedding, error) {
	now := time.Now().Unix()
	if upsert.CreatedTs == 0 {
		upsert.CreatedTs = now
	}
	upsert.UpdatedTs = now

	stmt := `INSERT INTO image_embedding (asset_id, model, embedding, created_ts, updated_ts)
		VALUES (` + placeholders(5) + `)
		ON CONFLICT (asset_id) DO UPDATE SET
			model = excluded.model,
			embedding = excluded.embedding,
			updated_ts = excluded.updated_ts
		RETURNING created_ts, updated_ts`

	err := d.db.QueryRowContext(ctx, stmt,
		upsert.AssetID,
		upsert.Model,
		vectorToBLOB(upsert.Embedding),
		upsert.CreatedTs,
		upsert.UpdatedTs,
	).Scan(&upsert.CreatedTs, &upsert.UpdatedTs)
	if err != nil {
		return nil, errors.Wrap(err, "failed to upsert image embedding")
	}

	return upsert, nil
}

func (d *DB) GetImageEmbedding(ctx context.Context, assetID string) (*store.ImageEmbedding, error) {
	stmt := `SELECT asset_id, model, embedding, created_ts, updated_ts FROM image_embedding WHERE asset_id = ?`

	var embedding store.ImageEmbedding
	var blob []byte
	err := d.db.QueryRowContext(ctx, stmt, assetID).Scan(
		&embedding.AssetID,
		&embedding.Model,
		&blob,
		&embedding.CreatedTs,
		&embedding.UpdatedTs,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to get image embedding")
	}

	if embedding.Embedding, err = blobToVector(blob); err != nil {
		return nil, err
	}
	return &embedding, nil
}

// DeleteImageEmbedding is idempotent: deleting a missing row is a no-op.
func (d *DB) DeleteImageEmbedding(ctx context.Context, assetID string) error {
	if _, err := d.db.ExecContext(ctx, `DELETE FROM image_embedding WHERE asset_id = ?`, assetID); err != nil {
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

	if _, err := tx.ExecContext(ctx, `DELETE FROM face_embedding WHERE asset_id = ?`, assetID); err != nil {
		return nil, errors.Wrap(err, "failed to delete prior face embeddings")
	}

	now := time.Now().Unix()
	replacements := make([]*store.FaceEmbedding, 0, len(faces))
	for _, face := range faces {
		bboxValue, err := marshalBBox(face.BBox)
		if err != nil {
			return nil, err
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
			vectorToBLOB(face.Embedding),
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
		where, args = append(where, "asset_id = ?"), append(args, *find.AssetID)
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
		var blob []byte
		var bboxRaw sql.NullString
		if err := rows.Scan(
			&embedding.ID,
			&embedding.AssetID,
			&blob,
			&bboxRaw,
			&embedding.CreatedTs,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan face embedding")
		}
		if embedding.Embedding, err = blobToVector(blob); err != nil {
			return nil, err
		}
		if embedding.BBox, err = unmarshalBBox(bboxRaw); err != nil {
			return nil, err
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
	args := make([]any, len(faceIDs))
	for i, id := range faceIDs {
		args[i] = id
	}
	stmt := `DELETE FROM face_embedding WHERE id IN (` + placeholders(len(faceIDs)) + `)`
	if _, err := d.db.ExecContext(ctx, stmt, args...); err != nil {
		return errors.Wrap(err, "failed to delete face embeddings")
	}
	return nil
}

// SearchImageNeighbors is the brute-force path: the filtered candidate rows
// are scanned, the Euclidean distance computed in Go per row, and the full
// set ranked by the shared comparator before truncation.
func (d *DB) SearchImageNeighbors(ctx context.Context, find *store.FindImageNeighbors) ([]*store.ImageNeighbor, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.OwnerIDs != nil {
		markers := placeholders(len(find.OwnerIDs))
		where = append(where, "a.owner_id IN ("+markers+")")
		for _, ownerID := range find.OwnerIDs {
			args = append(args, ownerID)
		}
	}
	if len(find.ExcludeAssetIDs) > 0 {
		markers := placeholders(len(find.ExcludeAssetIDs))
		where = append(where, "ie.asset_id NOT IN ("+markers+")")
		for _, assetID := range find.ExcludeAssetIDs {
			args = append(args, assetID)
		}
	}
	if find.Model != nil {
		where, args = append(where, "ie.model = ?"), append(args, *find.Model)
	}

	query := `SELECT ie.asset_id, a.owner_id, ie.model, ie.embedding, ie.created_ts
		FROM image_embedding ie
		JOIN asset a ON a.id = ie.asset_id
		WHERE ` + strings.Join(where, " AND ")

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to search image neighbors")
	}
	defer rows.Close()

	results := []*store.ImageNeighbor{}
	for rows.Next() {
		var neighbor store.ImageNeighbor
		var blob []byte
		if err := rows.Scan(
			&neighbor.AssetID,
			&neighbor.OwnerID,
			&neighbor.Model,
			&blob,
			&neighbor.CreatedTs,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan image neighbor")
		}
		stored, err := blobToVector(blob)
		if err != nil {
			return nil, err
		}
		neighbor.Distance = vector.L2Distance(find.Vector, stored)
		neighbor.Score = vector.L2Score(neighbor.Distance)
		results = append(results, &neighbor)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	store.SortImageNeighbors(results)
	if len(results) > find.Limit {
		results = results[:find.Limit]
	}
	return results, nil
}

// SearchFaceNeighbors is the brute-force path for face embeddings under
// negative inner product.
func (d *DB) SearchFaceNeighbors(ctx context.Context, find *store.FindFaceNeighbors) ([]*store.FaceNeighbor, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.OwnerIDs != nil {
		markers := placeholders(len(find.OwnerIDs))
		where = append(where, "a.owner_id IN ("+markers+")")
		for _, ownerID := range find.OwnerIDs {
			args = append(args, ownerID)
		}
	}
	if len(find.AssetIDs) > 0 {
		markers := placeholders(len(find.AssetIDs))
		where = append(where, "fe.asset_id IN ("+markers+")")
		for _, assetID := range find.AssetIDs {
			args = append(args, assetID)
		}
	}
	if len(find.IncludeFaceIDs) > 0 {
		markers := placeholders(len(find.IncludeFaceIDs))
		where = append(where, "fe.id IN ("+markers+")")
		for _, faceID := range find.IncludeFaceIDs {
			args = append(args, faceID)
		}
	}
	if len(find.ExcludeFaceIDs) > 0 {
		markers := placeholders(len(find.ExcludeFaceIDs))
		where = append(where, "fe.id NOT IN ("+markers+")")
		for _, faceID := range find.ExcludeFaceIDs {
			args = append(args, faceID)
		}
	}

	query := `SELECT fe.id, fe.asset_id, a.owner_id, fe.embedding, fe.bbox, fe.created_ts
		FROM face_embedding fe
		JOIN asset a ON a.id = fe.asset_id
		WHERE ` + strings.Join(where, " AND ")

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to search face neighbors")
	}
	defer rows.Close()

	results := []*store.FaceNeighbor{}
	for rows.Next() {
		var neighbor store.FaceNeighbor
		var blob []byte
		var bboxRaw sql.NullString
		if err := rows.Scan(
			&neighbor.FaceID,
			&neighbor.AssetID,
			&neighbor.OwnerID,
			&blob,
			&bboxRaw,
			&neighbor.CreatedTs,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan face neighbor")
		}
		stored, err := blobToVector(blob)
		if err != nil {
			return nil, err
		}
		if neighbor.BBox, err = unmarshalBBox(bboxRaw); err != nil {
			return nil, err
		}
		neighbor.Distance = vector.InnerProductDistance(find.Vector, stored)
		neighbor.Score = vector.InnerProductScore(neighbor.Distance)
		results = append(results, &neighbor)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	store.SortFaceNeighbors(results)
	if len(results) > find.Limit {
		results = results[:find.Limit]
	}
	return results, nil
}
