// Package db selects the store driver named by the profile.
package db

import (
	"github.com/pkg/errors"

	"github.com/hrygo/alsassist/internal/profile"
	"github.com/hrygo/alsassist/store"
	"github.com/hrygo/alsassist/store/db/postgres"
	"github.com/hrygo/alsassist/store/db/sqlite"
)

// NewDBDriver creates new db driver based on profile.
func NewDBDriver(profile *profile.Profile) (store.Driver, error) {
	var driver store.Driver
	var err error

	switch profile.Driver {
	case "postgres":
		driver, err = postgres.NewDB(profile)
	case "sqlite":
		driver, err = sqlite.NewDB(profile)
	default:
		return nil, errors.Errorf("unknown db driver: %s", profile.Driver)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to create db driver")
	}
	return driver, nil
}
