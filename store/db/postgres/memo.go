package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/inkstonehq/inkstone/store"
)

func (d *DB) CreateMemo(ctx context.Context, create *store.Memo) (*store.Memo, error) {
	attachments, err := marshalAttachments(create.Attachments)
	if err != nil {
		return nil, err
	}
	tagIDs, err := marshalStringList(create.TagIDs)
	if err != nil {
		return nil, err
	}
	tags, err := marshalStringList(create.Tags)
	if err != nil {
		return nil, err
	}

	stmt := `
		INSERT INTO memo (
			id, uid, content, type, category_id, attachments, tag_ids, tags,
			is_public, share_token, created_ts, updated_ts
		)
		VALUES (` + placeholders(12) + `)
	`
	if _, err := d.db.ExecContext(ctx, stmt,
		create.ID,
		create.UID,
		create.Content,
		string(create.Type),
		create.CategoryID,
		attachments,
		tagIDs,
		tags,
		create.IsPublic,
		create.ShareToken,
		create.CreatedTs,
		create.UpdatedTs,
	); err != nil {
		return nil, errors.Wrap(err, "failed to create memo")
	}
	return create, nil
}

func (d *DB) ListMemos(ctx context.Context, find *store.FindMemo) ([]*store.Memo, error) {
	where, args := memoWhere(find)

	orderBy := "created_ts"
	if find.OrderBy == store.MemoOrderByUpdatedTs {
		orderBy = "updated_ts"
	}
	direction := "ASC"
	if find.OrderDesc {
		direction = "DESC"
	}

	query := `
		SELECT
			id, uid, content, type, category_id, attachments, tag_ids, tags,
			is_public, share_token, created_ts, updated_ts
		FROM memo
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY ` + orderBy + ` ` + direction + `, id ` + direction
	if find.Limit != nil {
		query += fmt.Sprintf(" LIMIT %d", *find.Limit)
		if find.Offset != nil {
			query += fmt.Sprintf(" OFFSET %d", *find.Offset)
		}
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list memos")
	}
	defer rows.Close()

	list := []*store.Memo{}
	for rows.Next() {
		memo, err := scanMemo(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, memo)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

func (d *DB) CountMemos(ctx context.Context, find *store.FindMemo) (int, error) {
	where, args := memoWhere(find)

	query := `SELECT COUNT(*) FROM memo WHERE ` + strings.Join(where, " AND ")
	var count int
	if err := d.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, errors.Wrap(err, "failed to count memos")
	}
	return count, nil
}

func (d *DB) UpdateMemo(ctx context.Context, update *store.UpdateMemo) error {
	if update.CategoryID != nil && update.ClearCategoryID {
		return errors.New("cannot set and clear category in the same update")
	}

	set, args := []string{}, []any{}
	if v := update.Content; v != nil {
		set, args = append(set, "content = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.Type; v != nil {
		set, args = append(set, "type = "+placeholder(len(args)+1)), append(args, string(*v))
	}
	if v := update.CategoryID; v != nil {
		set, args = append(set, "category_id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if update.ClearCategoryID {
		set = append(set, "category_id = NULL")
	}
	if v := update.Attachments; v != nil {
		attachments, err := marshalAttachments(*v)
		if err != nil {
			return err
		}
		set, args = append(set, "attachments = "+placeholder(len(args)+1)), append(args, attachments)
	}
	if v := update.TagIDs; v != nil {
		tagIDs, err := marshalStringList(*v)
		if err != nil {
			return err
		}
		set, args = append(set, "tag_ids = "+placeholder(len(args)+1)), append(args, tagIDs)
	}
	if v := update.Tags; v != nil {
		tags, err := marshalStringList(*v)
		if err != nil {
			return err
		}
		set, args = append(set, "tags = "+placeholder(len(args)+1)), append(args, tags)
	}
	if v := update.IsPublic; v != nil {
		set, args = append(set, "is_public = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.ShareToken; v != nil {
		set, args = append(set, "share_token = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.UpdatedTs; v != nil {
		set, args = append(set, "updated_ts = "+placeholder(len(args)+1)), append(args, *v)
	}
	if len(set) == 0 {
		return nil
	}

	stmt := `UPDATE memo SET ` + strings.Join(set, ", ") +
		` WHERE id = ` + placeholder(len(args)+1) + ` AND uid = ` + placeholder(len(args)+2)
	args = append(args, update.ID, update.UID)
	if _, err := d.db.ExecContext(ctx, stmt, args...); err != nil {
		return errors.Wrap(err, "failed to update memo")
	}
	return nil
}

func (d *DB) DeleteMemo(ctx context.Context, delete *store.DeleteMemo) error {
	stmt := `DELETE FROM memo WHERE id = $1 AND uid = $2`
	if _, err := d.db.ExecContext(ctx, stmt, delete.ID, delete.UID); err != nil {
		return errors.Wrap(err, "failed to delete memo")
	}
	return nil
}

// memoWhere builds the conjunctive predicate shared by ListMemos and
// CountMemos.
func memoWhere(find *store.FindMemo) ([]string, []any) {
	where, args := []string{"1 = 1"}, []any{}

	if v := find.ID; v != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if len(find.IDs) > 0 {
		list := []string{}
		for _, id := range find.IDs {
			args = append(args, id)
			list = append(list, placeholder(len(args)))
		}
		where = append(where, "id IN ("+strings.Join(list, ", ")+")")
	}
	if v := find.UID; v != nil {
		where, args = append(where, "uid = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.CategoryID; v != nil {
		where, args = append(where, "category_id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.ContentSearch; v != nil {
		where, args = append(where, "content LIKE "+placeholder(len(args)+1)), append(args, "%"+*v+"%")
	}
	if v := find.TagID; v != nil {
		where, args = append(where, "tag_ids LIKE "+placeholder(len(args)+1)), append(args, `%"`+*v+`"%`)
	}
	if v := find.CreatedTsAfter; v != nil {
		where, args = append(where, "created_ts >= "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.CreatedTsBefore; v != nil {
		where, args = append(where, "created_ts <= "+placeholder(len(args)+1)), append(args, *v)
	}
	return where, args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMemo(row rowScanner) (*store.Memo, error) {
	var memo store.Memo
	var memoType string
	var categoryID sql.NullString
	var attachments, tagIDs, tags sql.NullString
	if err := row.Scan(
		&memo.ID,
		&memo.UID,
		&memo.Content,
		&memoType,
		&categoryID,
		&attachments,
		&tagIDs,
		&tags,
		&memo.IsPublic,
		&memo.ShareToken,
		&memo.CreatedTs,
		&memo.UpdatedTs,
	); err != nil {
		return nil, errors.Wrap(err, "failed to scan memo")
	}

	memo.Type = store.MemoType(memoType)
	if categoryID.Valid {
		memo.CategoryID = &categoryID.String
	}

	var err error
	if memo.Attachments, err = unmarshalAttachments(attachments); err != nil {
		return nil, err
	}
	if memo.TagIDs, err = unmarshalStringList(tagIDs); err != nil {
		return nil, err
	}
	if memo.Tags, err = unmarshalStringList(tags); err != nil {
		return nil, err
	}
	return &memo, nil
}
