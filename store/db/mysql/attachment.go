package mysql

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/inkstonehq/inkstone/store"
)

func (d *DB) CreateAttachment(ctx context.Context, create *store.Attachment) (*store.Attachment, error) {
	stmt := `
		INSERT INTO attachment (id, uid, filename, type, size, url, created_ts)
		VALUES (` + placeholders(7) + `)
	`
	if _, err := d.db.ExecContext(ctx, stmt,
		create.ID,
		create.UID,
		create.Filename,
		create.Type,
		create.Size,
		create.URL,
		create.CreatedTs,
	); err != nil {
		return nil, errors.Wrap(err, "failed to create attachment")
	}
	return create, nil
}

func (d *DB) ListAttachments(ctx context.Context, find *store.FindAttachment) ([]*store.Attachment, error) {
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

	query := `
		SELECT id, uid, filename, type, size, url, created_ts
		FROM attachment
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY created_ts ASC, id ASC
	`
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list attachments")
	}
	defer rows.Close()

	list := []*store.Attachment{}
	for rows.Next() {
		var attachment store.Attachment
		if err := rows.Scan(
			&attachment.ID,
			&attachment.UID,
			&attachment.Filename,
			&attachment.Type,
			&attachment.Size,
			&attachment.URL,
			&attachment.CreatedTs,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan attachment")
		}
		list = append(list, &attachment)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

func (d *DB) DeleteAttachment(ctx context.Context, delete *store.DeleteAttachment) error {
	stmt := `DELETE FROM attachment WHERE id = ? AND uid = ?`
	if _, err := d.db.ExecContext(ctx, stmt, delete.ID, delete.UID); err != nil {
		return errors.Wrap(err, "failed to delete attachment")
	}
	return nil
}
