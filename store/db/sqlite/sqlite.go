package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/inkstonehq/inkstone/internal/profile"
	"github.com/inkstonehq/inkstone/store"
)

type DB struct {
	db      *sql.DB
	profile *profile.Profile
}

// NewDB opens a SQLite database specified by its DSN.
func NewDB(profile *profile.Profile) (store.Driver, error) {
	if profile == nil {
		return nil, errors.New("profile is nil")
	}

	// WAL mode improves concurrent read performance; the busy timeout smooths
	// over writer contention from background runners.
	sep := "?"
	if strings.Contains(profile.DSN, "?") {
		sep = "&"
	}
	dsn := profile.DSN + sep + "_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open db with dsn: %s", dsn)
	}

	// SQLite allows a single writer; more connections only add lock churn.
	db.SetMaxOpenConns(1)

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
		"SELECT EXISTS (SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = 'memo')",
	).Scan(&exists)
	if err != nil {
		return false, errors.Wrap(err, "failed to check if database is initialized")
	}
	return exists, nil
}
