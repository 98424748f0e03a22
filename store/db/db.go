// Package db selects a concrete store driver from the profile.
package db

import (
	"github.com/pkg/errors"

	"github.com/tsudoi-io/tsudoi/internal/profile"
	"github.com/tsudoi-io/tsudoi/store"
	"github.com/tsudoi-io/tsudoi/store/db/postgres"
	"github.com/tsudoi-io/tsudoi/store/db/sqlite"
)

// NewDBDriver creates a new db driver based on the profile. Both drivers
// implement the same search contract; they differ only in how neighbor
// ranking is computed.
func NewDBDriver(profile *profile.Profile) (store.Driver, error) {
	var driver store.Driver
	var err error

	switch profile.Driver {
	case "sqlite":
		driver, err = sqlite.NewDB(profile)
	case "postgres":
		driver, err = postgres.NewDB(profile)
	default:
		return nil, errors.Errorf("unsupported driver: %s", profile.Driver)
	}

	return driver, err
}
