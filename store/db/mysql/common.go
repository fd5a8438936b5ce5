package mysql

import (
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"

	"github.com/inkstonehq/inkstone/store"
)

// placeholder returns a placeholder for MySQL (uses ?).
func placeholder(int) string {
	return "?"
}

// placeholders returns n placeholders for MySQL.
func placeholders(n int) string {
	list := []string{}
	for i := 0; i < n; i++ {
		list = append(list, placeholder(i+1))
	}
	return strings.Join(list, ", ")
}

// marshalStringList serializes a string list to its JSON column value.
// Empty lists are stored as explicit NULL; the typed list column is never
// left holding an empty array.
func marshalStringList(list []string) (any, error) {
	if len(list) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(list)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal string list")
	}
	return string(b), nil
}

func unmarshalStringList(raw sql.NullString) ([]string, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	var list []string
	if err := json.Unmarshal([]byte(raw.String), &list); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal string list")
	}
	return list, nil
}

// marshalAttachments serializes attachment snapshots. Unlike tag arrays,
// an empty snapshot list is stored as [] so reads round-trip to an empty
// slice rather than nil.
func marshalAttachments(list []store.AttachmentSnapshot) (string, error) {
	if list == nil {
		list = []store.AttachmentSnapshot{}
	}
	b, err := json.Marshal(list)
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal attachments")
	}
	return string(b), nil
}

func unmarshalAttachments(raw sql.NullString) ([]store.AttachmentSnapshot, error) {
	if !raw.Valid || raw.String == "" {
		return []store.AttachmentSnapshot{}, nil
	}
	var list []store.AttachmentSnapshot
	if err := json.Unmarshal([]byte(raw.String), &list); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal attachments")
	}
	if list == nil {
		list = []store.AttachmentSnapshot{}
	}
	return list, nil
}
