// Package store provides database access to assets, embeddings, and the
// theme vocabulary. It owns the neighbor search contract: scoping filter
// semantics, dimension validation, and result ordering are enforced here so
// that every Driver implementation inherits them unchanged.
package store

import (
	"context"

	"github.com/tsudoi-io/tsudoi/internal/profile"
)

// Store provides database access to all raw objects.
type Store struct {
	profile *profile.Profile
	driver  Driver
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile) *Store {
	return &Store{
		driver:  driver,
		profile: profile,
	}
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

func (s *Store) Migrate(ctx context.Context) error {
	return s.driver.Migrate(ctx)
}

func (s *Store) Close() error {
	return s.driver.Close()
}
