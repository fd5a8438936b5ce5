package store

import (
	"context"

	"github.com/inkstonehq/inkstone/internal/errors"
)

// MemoType is the content type of a memo.
type MemoType string

const (
	MemoTypeText  MemoType = "text"
	MemoTypeAudio MemoType = "audio"
	MemoTypeVideo MemoType = "video"
)

// Memo is a single user note record, the primary entity of the system.
// Scalar fields live in the relational store; the embedding vector for the
// same record lives in the embedded vector store keyed by the memo ID.
type Memo struct {
	// ID is the externally addressable memo identifier. Immutable.
	ID string
	// UID is the owner user identifier. Immutable.
	UID string

	Content    string
	Type       MemoType
	CategoryID *string

	// Attachments is a denormalized snapshot of attachment metadata captured
	// at write time. Later attachment edits do not retroactively change it.
	Attachments []AttachmentSnapshot

	// TagIDs and Tags are kept in sync; Tags is the legacy parallel name
	// array carried through the store migration.
	TagIDs []string
	Tags   []string

	IsPublic   bool
	ShareToken string

	// Millisecond epoch. CreatedTs is client-overridable at creation for
	// import scenarios.
	CreatedTs int64
	UpdatedTs int64
}

// AttachmentSnapshot is a point-in-time copy of attachment metadata stored
// inside a memo record.
type AttachmentSnapshot struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Type     string `json:"type"`
	Size     int64  `json:"size"`
	URL      string `json:"url"`
}

// MemoOrderBy selects the sort column for memo listing.
type MemoOrderBy string

const (
	MemoOrderByCreatedTs MemoOrderBy = "created_ts"
	MemoOrderByUpdatedTs MemoOrderBy = "updated_ts"
)

// FindMemo is the find condition for memos. Nil fields are not filtered on;
// all set fields combine conjunctively.
type FindMemo struct {
	ID  *string
	IDs []string
	UID *string

	CategoryID    *string
	ContentSearch *string
	TagID         *string

	// Inclusive millisecond bounds on created_ts.
	CreatedTsAfter  *int64
	CreatedTsBefore *int64

	OrderBy   MemoOrderBy
	OrderDesc bool

	Offset *int
	Limit  *int
}

// UpdateMemo carries a partial memo update. Nil fields are untouched.
type UpdateMemo struct {
	ID  string
	UID string

	Content *string
	Type    *MemoType

	// CategoryID sets a new category; ClearCategoryID nulls it out. Setting
	// both is rejected by the driver.
	CategoryID      *string
	ClearCategoryID bool

	Attachments *[]AttachmentSnapshot
	TagIDs      *[]string
	Tags        *[]string

	IsPublic   *bool
	ShareToken *string

	UpdatedTs *int64
}

// DeleteMemo is the delete condition for a memo.
type DeleteMemo struct {
	ID  string
	UID string
}

func (s *Store) CreateMemo(ctx context.Context, create *Memo) (*Memo, error) {
	return s.driver.CreateMemo(ctx, create)
}

func (s *Store) ListMemos(ctx context.Context, find *FindMemo) ([]*Memo, error) {
	return s.driver.ListMemos(ctx, find)
}

// CountMemos returns the total number of memos matching find, ignoring any
// offset/limit window.
func (s *Store) CountMemos(ctx context.Context, find *FindMemo) (int, error) {
	return s.driver.CountMemos(ctx, find)
}

// GetMemo returns the single memo matching find, or a NotFound error.
func (s *Store) GetMemo(ctx context.Context, find *FindMemo) (*Memo, error) {
	list, err := s.driver.ListMemos(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, errors.New(errors.CodeNotFound, "memo not found")
	}
	return list[0], nil
}

func (s *Store) UpdateMemo(ctx context.Context, update *UpdateMemo) error {
	return s.driver.UpdateMemo(ctx, update)
}

func (s *Store) DeleteMemo(ctx context.Context, delete *DeleteMemo) error {
	return s.driver.DeleteMemo(ctx, delete)
}
