package store

import (
	"context"
	"database/sql"
)

// Driver is an interface for store driver.
// It contains all the methods that the store needs to implement.
//
// Two implementations exist: postgres (pgvector-accelerated neighbor search)
// and sqlite (brute-force scan). For identical inputs both must return the
// same ordered id sequence; the sqlite path doubles as the correctness
// oracle for the accelerated one.
type Driver interface {
	GetDB() *sql.DB
	Close() error
	IsInitialized(ctx context.Context) (bool, error)
	Migrate(ctx context.Context) error

	// Asset model related methods.
	CreateAsset(ctx context.Context, create *Asset) (*Asset, error)
	GetAsset(ctx context.Context, id string) (*Asset, error)
	ListAssets(ctx context.Context, find *FindAsset) ([]*Asset, error)
	DeleteAsset(ctx context.Context, id string) error

	// Embedding model related methods.
	UpsertImageEmbedding(ctx context.Context, upsert *ImageEmbedding) (*ImageEmbedding, error)
	GetImageEmbedding(ctx context.Context, assetID string) (*ImageEmbedding, error)
	DeleteImageEmbedding(ctx context.Context, assetID string) error
	ReplaceFaceEmbeddings(ctx context.Context, assetID string, faces []*FaceEmbeddingUpsert) ([]*FaceEmbedding, error)
	ListFaceEmbeddings(ctx context.Context, find *FindFaceEmbedding) ([]*FaceEmbedding, error)
	DeleteFaceEmbeddings(ctx context.Context, faceIDs []int64) error

	// Neighbor search methods. The facade has already applied the filter
	// algebra (limit, owner set, include/exclude subtraction) and dimension
	// checks before these are called.
	SearchImageNeighbors(ctx context.Context, find *FindImageNeighbors) ([]*ImageNeighbor, error)
	SearchFaceNeighbors(ctx context.Context, find *FindFaceNeighbors) ([]*FaceNeighbor, error)

	// Theme vocabulary related methods.
	UpsertThemeVocab(ctx context.Context, upsert *ThemeVocab) (*ThemeVocab, error)
	UpsertThemeEmbedding(ctx context.Context, upsert *ThemeEmbedding) (*ThemeEmbedding, error)
	ListThemeCandidates(ctx context.Context, find *FindThemeCandidates) ([]*ThemeCandidate, error)
}
