package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"

	// Import the SQLite driver.
	_ "modernc.org/sqlite"

	"github.com/tsudoi-io/tsudoi/internal/profile"
	"github.com/tsudoi-io/tsudoi/store"
)

// ============================================================================
// SQLITE SUPPORT POLICY
// ============================================================================
// SQLite is the brute-force neighbor search backend: vectors are stored as
// little-endian float32 BLOBs and distances are computed in Go over the
// filtered candidate set. It exists for development, testing, and small
// single-node deployments, and doubles as the correctness oracle for the
// pgvector-accelerated postgres backend - for identical inputs both must
// return the same ordered id sequence.
// ============================================================================

type DB struct {
	db      *sql.DB
	profile *profile.Profile
}

// NewDB opens the sqlite database named by the profile DSN.
func NewDB(profile *profile.Profile) (store.Driver, error) {
	if profile.DSN == "" {
		return nil, errors.New("dsn required")
	}

	// WAL journal mode and a generous busy timeout keep the single-writer
	// model workable for request-per-call usage.
	sqliteDB, err := sql.Open("sqlite", profile.DSN+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open db with dsn: %s", profile.DSN)
	}

	// SQLite: a single connection is optimal with WAL.
	sqliteDB.SetMaxOpenConns(1)
	sqliteDB.SetMaxIdleConns(1)
	sqliteDB.SetConnMaxLifetime(0)
	sqliteDB.SetConnMaxIdleTime(0)

	driver := DB{db: sqliteDB, profile: profile}

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
	err := d.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM sqlite_master WHERE type='table' AND name='asset')").Scan(&exists)
	if err != nil {
		return false, errors.Wrap(err, "failed to check if database is initialized")
	}
	return exists, nil
}

var migrationStmts = []string{
	`CREATE TABLE IF NOT EXISTS asset (
		id TEXT PRIMARY KEY,
		owner_id INTEGER NOT NULL,
		content_type TEXT NOT NULL,
		storage_key TEXT NOT NULL,
		created_ts BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_asset_owner_id ON asset (owner_id)`,
	`CREATE TABLE IF NOT EXISTS image_embedding (
		asset_id TEXT PRIMARY KEY REFERENCES asset (id),
		model TEXT NOT NULL,
		embedding BLOB NOT NULL,
		created_ts BIGINT NOT NULL,
		updated_ts BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS face_embedding (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		asset_id TEXT NOT NULL REFERENCES asset (id),
		embedding BLOB NOT NULL,
		bbox TEXT,
		created_ts BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_face_embedding_asset_id ON face_embedding (asset_id)`,
	`CREATE TABLE IF NOT EXISTS theme_vocab (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		created_ts BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS theme_embedding (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		theme_id INTEGER NOT NULL REFERENCES theme_vocab (id),
		model TEXT NOT NULL,
		embedding BLOB NOT NULL,
		current INTEGER NOT NULL DEFAULT 1,
		created_ts BIGINT NOT NULL,
		UNIQUE (theme_id, model)
	)`,
}

func (d *DB) Migrate(ctx context.Context) error {
	for _, stmt := range migrationStmts {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "failed to apply migration")
		}
	}
	return nil
}

// placeholders returns n comma-separated "?" markers.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
