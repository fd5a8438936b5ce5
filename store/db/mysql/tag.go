package mysql

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"

	"github.com/inkstonehq/inkstone/store"
)

func (d *DB) CreateTag(ctx context.Context, create *store.Tag) (*store.Tag, error) {
	stmt := `
		INSERT INTO tag (id, uid, name, color, usage_count, created_ts, updated_ts)
		VALUES (` + placeholders(7) + `)
	`
	if _, err := d.db.ExecContext(ctx, stmt,
		create.ID,
		create.UID,
		create.Name,
		create.Color,
		create.UsageCount,
		create.CreatedTs,
		create.UpdatedTs,
	); err != nil {
		return nil, errors.Wrap(err, "failed to create tag")
	}
	return create, nil
}

func (d *DB) ListTags(ctx context.Context, find *store.FindTag) ([]*store.Tag, error) {
	where, args := []string{"1 = 1"}, []any{}
	if v := find.ID; v != nil {
		where, args = append(where, "id = ?"), append(args, *v)
	}
	if len(find.IDs) > 0 {
		where = append(where, "id IN ("+placeholders(len(find.IDs))+")")
		for _, id := range find.IDs {
			args = append(args, id)
		}
	}
	if v := find.UID; v != nil {
		where, args = append(where, "uid = ?"), append(args, *v)
	}
	if v := find.NameLower; v != nil {
		where, args = append(where, "LOWER(name) = ?"), append(args, strings.ToLower(*v))
	}

	query := `
		SELECT id, uid, name, color, usage_count, created_ts, updated_ts
		FROM tag
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY created_ts ASC, id ASC
	`
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list tags")
	}
	defer rows.Close()

	list := []*store.Tag{}
	for rows.Next() {
		var tag store.Tag
		var color sql.NullString
		if err := rows.Scan(
			&tag.ID,
			&tag.UID,
			&tag.Name,
			&color,
			&tag.UsageCount,
			&tag.CreatedTs,
			&tag.UpdatedTs,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan tag")
		}
		if color.Valid {
			tag.Color = &color.String
		}
		list = append(list, &tag)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

func (d *DB) UpdateTag(ctx context.Context, update *store.UpdateTag) error {
	if update.Color != nil && update.ClearColor {
		return errors.New("cannot set and clear color in the same update")
	}

	set, args := []string{}, []any{}
	if v := update.Name; v != nil {
		set, args = append(set, "name = ?"), append(args, *v)
	}
	if v := update.Color; v != nil {
		set, args = append(set, "color = ?"), append(args, *v)
	}
	if update.ClearColor {
		set = append(set, "color = NULL")
	}
	if v := update.UpdatedTs; v != nil {
		set, args = append(set, "updated_ts = ?"), append(args, *v)
	}
	if len(set) == 0 {
		return nil
	}

	stmt := `UPDATE tag SET ` + strings.Join(set, ", ") + ` WHERE id = ? AND uid = ?`
	args = append(args, update.ID, update.UID)
	if _, err := d.db.ExecContext(ctx, stmt, args...); err != nil {
		return errors.Wrap(err, "failed to update tag")
	}
	return nil
}

func (d *DB) DeleteTag(ctx context.Context, delete *store.DeleteTag) error {
	stmt := `DELETE FROM tag WHERE id = ? AND uid = ?`
	if _, err := d.db.ExecContext(ctx, stmt, delete.ID, delete.UID); err != nil {
		return errors.Wrap(err, "failed to delete tag")
	}
	return nil
}

// AdjustTagUsage applies delta to the usage counter, flooring at zero.
func (d *DB) AdjustTagUsage(ctx context.Context, id, uid string, delta int) error {
	stmt := `
		UPDATE tag
		SET usage_count = GREATEST(usage_count + ?, 0), updated_ts = ?
		WHERE id = ? AND uid = ?
	`
	if _, err := d.db.ExecContext(ctx, stmt, delta, store.NowMilli(), id, uid); err != nil {
		return errors.Wrap(err, "failed to adjust tag usage")
	}
	return nil
}
