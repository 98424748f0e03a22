package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Asset represents an uploaded media object. The storage key points into the
// object store and is validated against the namespace policy by the asset
// resolver before any model call touches the object.
type Asset struct {
	ID          string
	OwnerID     int32
	ContentType string
	StorageKey  string
	CreatedTs   int64
}

// FindAsset is the find condition for assets.
type FindAsset struct {
	ID      *string
	OwnerID *int32
	Limit   *int
}

func (s *Store) CreateAsset(ctx context.Context, create *Asset) (*Asset, error) {
	if create.ID == "" {
		create.ID = uuid.NewString()
	}
	if create.OwnerID <= 0 {
		return nil, errors.Errorf("invalid owner id: %d", create.OwnerID)
	}
	if create.StorageKey == "" {
		return nil, errors.New("storage key is required")
	}
	return s.driver.CreateAsset(ctx, create)
}

// GetAsset returns the asset with the given id, or nil when it does not exist.
func (s *Store) GetAsset(ctx context.Context, id string) (*Asset, error) {
	if id == "" {
		return nil, errors.New("asset id is required")
	}
	return s.driver.GetAsset(ctx, id)
}

func (s *Store) ListAssets(ctx context.Context, find *FindAsset) ([]*Asset, error) {
	return s.driver.ListAssets(ctx, find)
}

// DeleteAsset deletes an asset and cascades to its image and face embeddings.
// Deleting an unknown asset is a no-op.
func (s *Store) DeleteAsset(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("asset id is required")
	}
	return s.driver.DeleteAsset(ctx, id)
}
