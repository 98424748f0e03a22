package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	// Import the Postgres driver.
	_ "github.com/lib/pq"

	"github.com/tsudoi-io/tsudoi/internal/profile"
	"github.com/tsudoi-io/tsudoi/store"
)

// DB is the postgres driver. Neighbor search rides on pgvector's native
// ranked lookup (<-> and <#>); everything else is plain SQL.
type DB struct {
	db      *sql.DB
	profile *profile.Profile
}

// NewDB opens a postgres connection with the DSN from the profile.
func NewDB(profile *profile.Profile) (store.Driver, error) {
	if profile.DSN == "" {
		return nil, errors.New("dsn required")
	}

	db, err := sql.Open("postgres", profile.DSN)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open db with dsn: %s", profile.DSN)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	driver := DB{db: db, profile: profile}

	return &driver, nil
}

func (d *DB) GetDB() *sql.DB {
	return d.db
}

func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) IsInitialized(ctx context.Context) (bool, error) {
	var exists bool
	err := d.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM information_schema.tables WHERE table_name = 'asset')",
	).Scan(&exists)
	if err != nil {
		return false, errors.Wrap(err, "failed to check if database is initialized")
	}
	return exists, nil
}

var migrationStmts = []string{
	`CREATE EXTENSION IF NOT EXISTS vector`,
	`CREATE TABLE IF NOT EXISTS asset (
		id TEXT PRIMARY KEY,
		owner_id INTEGER NOT NULL,
		content_type TEXT NOT NULL,
		storage_key TEXT NOT NULL,
		created_ts BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_asset_owner_id ON asset (owner_id)`,
	fmt.Sprintf(`CREATE TABLE IF NOT EXISTS image_embedding (
		asset_id TEXT PRIMARY KEY REFERENCES asset (id),
		model TEXT NOT NULL,
		embedding vector(%d) NOT NULL,
		created_ts BIGINT NOT NULL,
		updated_ts BIGINT NOT NULL
	)`, store.ImageEmbeddingDim),
	fmt.Sprintf(`CREATE TABLE IF NOT EXISTS face_embedding (
		id BIGSERIAL PRIMARY KEY,
		asset_id TEXT NOT NULL REFERENCES asset (id),
		embedding vector(%d) NOT NULL,
		bbox JSONB,
		created_ts BIGINT NOT NULL
	)`, store.FaceEmbeddingDim),
	`CREATE INDEX IF NOT EXISTS idx_face_embedding_asset_id ON face_embedding (asset_id)`,
	`CREATE TABLE IF NOT EXISTS theme_vocab (
		id SERIAL PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		created_ts BIGINT NOT NULL
	)`,
	fmt.Sprintf(`CREATE TABLE IF NOT EXISTS theme_embedding (
		id SERIAL PRIMARY KEY,
		theme_id INTEGER NOT NULL REFERENCES theme_vocab (id),
		model TEXT NOT NULL,
		embedding vector(%d) NOT NULL,
		current BOOLEAN NOT NULL DEFAULT TRUE,
		created_ts BIGINT NOT NULL,
		UNIQUE (theme_id, model)
	)`, store.ImageEmbeddingDim),
	`CREATE INDEX IF NOT EXISTS idx_image_embedding_l2 ON image_embedding USING hnsw (embedding vector_l2_ops)`,
	`CREATE INDEX IF NOT EXISTS idx_face_embedding_ip ON face_embedding USING hnsw (embedding vector_ip_ops)`,
}

func (d *DB) Migrate(ctx context.Context) error {
	for _, stmt := range migrationStmts {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "failed to apply migration")
		}
	}
	return nil
}

// placeholder returns the parameter marker for position n.
func placeholder(n int) string {
	return fmt.Sprintf("$%d", n)
}

// placeholders returns n comma-separated parameter markers starting at $1.
func placeholders(n int) string {
	list := make([]string, n)
	for i := range list {
		list[i] = placeholder(i + 1)
	}
	return strings.Join(list, ", ")
}
