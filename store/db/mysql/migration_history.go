package mysql

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/inkstonehq/inkstone/store"
)

func (d *DB) ListMigrationHistories(ctx context.Context, find *store.FindMigrationHistory) ([]*store.MigrationHistory, error) {
	where, args := []string{"1 = 1"}, []any{}
	if v := find.Version; v != nil {
		where, args = append(where, "version = ?"), append(args, *v)
	}

	query := `
		SELECT version, created_ts
		FROM migration_history
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY version ASC
	`
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list migration histories")
	}
	defer rows.Close()

	list := []*store.MigrationHistory{}
	for rows.Next() {
		var history store.MigrationHistory
		if err := rows.Scan(&history.Version, &history.CreatedTs); err != nil {
			return nil, errors.Wrap(err, "failed to scan migration history")
		}
		list = append(list, &history)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

func (d *DB) UpsertMigrationHistory(ctx context.Context, upsert *store.UpsertMigrationHistory) (*store.MigrationHistory, error) {
	stmt := `
		INSERT INTO migration_history (version, created_ts)
		VALUES (?, ?)
		ON DUPLICATE KEY UPDATE version = version
	`
	if _, err := d.db.ExecContext(ctx, stmt, upsert.Version, store.NowMilli()); err != nil {
		return nil, errors.Wrap(err, "failed to upsert migration history")
	}

	var history store.MigrationHistory
	if err := d.db.QueryRowContext(ctx,
		`SELECT version, created_ts FROM migration_history WHERE version = ?`,
		upsert.Version,
	).Scan(&history.Version, &history.CreatedTs); err != nil {
		return nil, errors.Wrap(err, "failed to read back migration history")
	}
	return &history, nil
}
