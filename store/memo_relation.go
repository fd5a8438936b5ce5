package store

import "context"

// MemoRelation is a directed edge from one memo to another. Edges are
// owner-scoped; the graph is not required to be acyclic.
type MemoRelation struct {
	ID           string
	UID          string
	SourceMemoID string
	TargetMemoID string
	CreatedTs    int64
}

// FindMemoRelation is the find condition for relations. MemoID matches edges
// where the memo is source or target.
type FindMemoRelation struct {
	ID           *string
	UID          *string
	SourceMemoID *string
	TargetMemoID *string
	MemoID       *string
}

// DeleteMemoRelation is the delete condition for relations. MemoID deletes
// every edge touching the memo as source or target.
type DeleteMemoRelation struct {
	ID           *string
	UID          *string
	SourceMemoID *string
	TargetMemoID *string
	MemoID       *string
}

func (s *Store) CreateMemoRelation(ctx context.Context, create *MemoRelation) (*MemoRelation, error) {
	return s.driver.CreateMemoRelation(ctx, create)
}

func (s *Store) ListMemoRelations(ctx context.Context, find *FindMemoRelation) ([]*MemoRelation, error) {
	return s.driver.ListMemoRelations(ctx, find)
}

func (s *Store) DeleteMemoRelation(ctx context.Context, delete *DeleteMemoRelation) error {
	return s.driver.DeleteMemoRelation(ctx, delete)
}
