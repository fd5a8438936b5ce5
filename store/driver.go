package store

import (
	"context"
	"database/sql"
)

// Driver is an interface for the scalar store driver.
// It contains all methods that a relational database driver should implement.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	IsInitialized(ctx context.Context) (bool, error)

	// Memo model related methods.
	CreateMemo(ctx context.Context, create *Memo) (*Memo, error)
	ListMemos(ctx context.Context, find *FindMemo) ([]*Memo, error)
	CountMemos(ctx context.Context, find *FindMemo) (int, error)
	UpdateMemo(ctx context.Context, update *UpdateMemo) error
	DeleteMemo(ctx context.Context, delete *DeleteMemo) error

	// Attachment model related methods.
	CreateAttachment(ctx context.Context, create *Attachment) (*Attachment, error)
	ListAttachments(ctx context.Context, find *FindAttachment) ([]*Attachment, error)
	DeleteAttachment(ctx context.Context, delete *DeleteAttachment) error

	// MemoRelation model related methods.
	CreateMemoRelation(ctx context.Context, create *MemoRelation) (*MemoRelation, error)
	ListMemoRelations(ctx context.Context, find *FindMemoRelation) ([]*MemoRelation, error)
	DeleteMemoRelation(ctx context.Context, delete *DeleteMemoRelation) error

	// Tag model related methods.
	CreateTag(ctx context.Context, create *Tag) (*Tag, error)
	ListTags(ctx context.Context, find *FindTag) ([]*Tag, error)
	UpdateTag(ctx context.Context, update *UpdateTag) error
	DeleteTag(ctx context.Context, delete *DeleteTag) error
	AdjustTagUsage(ctx context.Context, id, uid string, delta int) error

	// Migration ledger related methods.
	ListMigrationHistories(ctx context.Context, find *FindMigrationHistory) ([]*MigrationHistory, error)
	UpsertMigrationHistory(ctx context.Context, upsert *UpsertMigrationHistory) (*MigrationHistory, error)
}
