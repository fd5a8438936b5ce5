package postgres

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/inkstonehq/inkstone/store"
)

func (d *DB) CreateMemoRelation(ctx context.Context, create *store.MemoRelation) (*store.MemoRelation, error) {
	stmt := `
		INSERT INTO memo_relation (id, uid, source_memo_id, target_memo_id, created_ts)
		VALUES (` + placeholders(5) + `)
	`
	if _, err := d.db.ExecContext(ctx, stmt,
		create.ID,
		create.UID,
		create.SourceMemoID,
		create.TargetMemoID,
		create.CreatedTs,
	); err != nil {
		return nil, errors.Wrap(err, "failed to create memo relation")
	}
	return create, nil
}

func (d *DB) ListMemoRelations(ctx context.Context, find *store.FindMemoRelation) ([]*store.MemoRelation, error) {
	where, args := []string{"1 = 1"}, []any{}
	if v := find.ID; v != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.UID; v != nil {
		where, args = append(where, "uid = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.SourceMemoID; v != nil {
		where, args = append(where, "source_memo_id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.TargetMemoID; v != nil {
		where, args = append(where, "target_memo_id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.MemoID; v != nil {
		clause := "(source_memo_id = " + placeholder(len(args)+1) + " OR target_memo_id = " + placeholder(len(args)+2) + ")"
		where, args = append(where, clause), append(args, *v, *v)
	}

	query := `
		SELECT id, uid, source_memo_id, target_memo_id, created_ts
		FROM memo_relation
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY created_ts ASC, id ASC
	`
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list memo relations")
	}
	defer rows.Close()

	list := []*store.MemoRelation{}
	for rows.Next() {
		var relation store.MemoRelation
		if err := rows.Scan(
			&relation.ID,
			&relation.UID,
			&relation.SourceMemoID,
			&relation.TargetMemoID,
			&relation.CreatedTs,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan memo relation")
		}
		list = append(list, &relation)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

func (d *DB) DeleteMemoRelation(ctx context.Context, delete *store.DeleteMemoRelation) error {
	where, args := []string{"1 = 1"}, []any{}
	if v := delete.ID; v != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := delete.UID; v != nil {
		where, args = append(where, "uid = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := delete.SourceMemoID; v != nil {
		where, args = append(where, "source_memo_id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := delete.TargetMemoID; v != nil {
		where, args = append(where, "target_memo_id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := delete.MemoID; v != nil {
		clause := "(source_memo_id = " + placeholder(len(args)+1) + " OR target_memo_id = " + placeholder(len(args)+2) + ")"
		where, args = append(where, clause), append(args, *v, *v)
	}

	stmt := `DELETE FROM memo_relation WHERE ` + strings.Join(where, " AND ")
	if _, err := d.db.ExecContext(ctx, stmt, args...); err != nil {
		return errors.Wrap(err, "failed to delete memo relation")
	}
	return nil
}
