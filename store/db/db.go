// Package db provides the database driver factory.
package db

import (
	"github.com/pkg/errors"

	"github.com/inkstonehq/inkstone/internal/profile"
	"github.com/inkstonehq/inkstone/store"
	"github.com/inkstonehq/inkstone/store/db/mysql"
	"github.com/inkstonehq/inkstone/store/db/postgres"
	"github.com/inkstonehq/inkstone/store/db/sqlite"
)

// NewDBDriver creates the scalar store driver named by the profile.
func NewDBDriver(profile *profile.Profile) (store.Driver, error) {
	var driver store.Driver
	var err error

	switch profile.Driver {
	case "sqlite":
		driver, err = sqlite.NewDB(profile)
	case "postgres":
		driver, err = postgres.NewDB(profile)
	case "mysql":
		driver, err = mysql.NewDB(profile)
	default:
		return nil, errors.Errorf("unknown db driver: %s", profile.Driver)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to create db driver")
	}
	return driver, nil
}
