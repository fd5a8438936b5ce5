// Package relation maintains the directed link graph between memos.
package relation

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	ierrors "github.com/inkstonehq/inkstone/internal/errors"
	"github.com/inkstonehq/inkstone/store"
)

// Service manages memo relations. All operations are owner-scoped: a caller
// only ever sees or mutates edges belonging to its uid.
type Service struct {
	store *store.Store
}

func NewService(store *store.Store) *Service {
	return &Service{store: store}
}

// CreateRelation links sourceMemoID to targetMemoID. Self-loops are rejected.
func (s *Service) CreateRelation(ctx context.Context, uid, sourceMemoID, targetMemoID string) (*store.MemoRelation, error) {
	if sourceMemoID == "" || targetMemoID == "" {
		return nil, ierrors.New(ierrors.CodeInvalidArgument, "source and target memo ids are required")
	}
	if sourceMemoID == targetMemoID {
		return nil, ierrors.New(ierrors.CodeInvalidArgument, "a memo cannot relate to itself")
	}

	relation, err := s.store.CreateMemoRelation(ctx, &store.MemoRelation{
		ID:           uuid.NewString(),
		UID:          uid,
		SourceMemoID: sourceMemoID,
		TargetMemoID: targetMemoID,
		CreatedTs:    store.NowMilli(),
	})
	if err != nil {
		return nil, ierrors.Wrap(err, ierrors.CodeStoreFailure, "failed to create relation")
	}
	return relation, nil
}

// GetRelatedMemos returns the target memos of outgoing edges from memoID.
func (s *Service) GetRelatedMemos(ctx context.Context, uid, memoID string) ([]*store.Memo, error) {
	relations, err := s.store.ListMemoRelations(ctx, &store.FindMemoRelation{
		UID:          &uid,
		SourceMemoID: &memoID,
	})
	if err != nil {
		return nil, ierrors.Wrap(err, ierrors.CodeStoreFailure, "failed to list relations")
	}

	ids := make([]string, 0, len(relations))
	for _, r := range relations {
		ids = append(ids, r.TargetMemoID)
	}
	return s.memosByIDs(ctx, uid, ids)
}

// GetBacklinks returns the source memos of incoming edges into memoID.
func (s *Service) GetBacklinks(ctx context.Context, uid, memoID string) ([]*store.Memo, error) {
	relations, err := s.store.ListMemoRelations(ctx, &store.FindMemoRelation{
		UID:          &uid,
		TargetMemoID: &memoID,
	})
	if err != nil {
		return nil, ierrors.Wrap(err, ierrors.CodeStoreFailure, "failed to list backlinks")
	}

	ids := make([]string, 0, len(relations))
	for _, r := range relations {
		ids = append(ids, r.SourceMemoID)
	}
	return s.memosByIDs(ctx, uid, ids)
}

// ListRelations returns all edges touching memoID, in either direction.
func (s *Service) ListRelations(ctx context.Context, uid, memoID string) ([]*store.MemoRelation, error) {
	relations, err := s.store.ListMemoRelations(ctx, &store.FindMemoRelation{
		UID:    &uid,
		MemoID: &memoID,
	})
	if err != nil {
		return nil, ierrors.Wrap(err, ierrors.CodeStoreFailure, "failed to list relations")
	}
	return relations, nil
}

// DeleteRelation removes a single edge by id.
func (s *Service) DeleteRelation(ctx context.Context, uid, relationID string) error {
	err := s.store.DeleteMemoRelation(ctx, &store.DeleteMemoRelation{
		ID:  &relationID,
		UID: &uid,
	})
	if err != nil {
		return ierrors.Wrap(err, ierrors.CodeStoreFailure, "failed to delete relation")
	}
	return nil
}

// DeleteRelationsBySource removes all outgoing edges from memoID.
func (s *Service) DeleteRelationsBySource(ctx context.Context, uid, memoID string) error {
	err := s.store.DeleteMemoRelation(ctx, &store.DeleteMemoRelation{
		UID:          &uid,
		SourceMemoID: &memoID,
	})
	if err != nil {
		return ierrors.Wrap(err, ierrors.CodeStoreFailure, "failed to delete relations by source")
	}
	return nil
}

// DeleteRelationsByTarget removes all incoming edges into memoID.
func (s *Service) DeleteRelationsByTarget(ctx context.Context, uid, memoID string) error {
	err := s.store.DeleteMemoRelation(ctx, &store.DeleteMemoRelation{
		UID:          &uid,
		TargetMemoID: &memoID,
	})
	if err != nil {
		return ierrors.Wrap(err, ierrors.CodeStoreFailure, "failed to delete relations by target")
	}
	return nil
}

// ReplaceRelations swaps the full outgoing edge set of sourceMemoID for
// targetMemoIDs. Duplicates and self-loops in the input are dropped.
func (s *Service) ReplaceRelations(ctx context.Context, uid, sourceMemoID string, targetMemoIDs []string) error {
	if err := s.DeleteRelationsBySource(ctx, uid, sourceMemoID); err != nil {
		return err
	}

	seen := make(map[string]struct{}, len(targetMemoIDs))
	for _, targetID := range targetMemoIDs {
		if targetID == "" || targetID == sourceMemoID {
			slog.Warn("skipping invalid relation target",
				slog.String("sourceMemoId", sourceMemoID),
				slog.String("targetMemoId", targetID))
			continue
		}
		if _, ok := seen[targetID]; ok {
			continue
		}
		seen[targetID] = struct{}{}

		if _, err := s.CreateRelation(ctx, uid, sourceMemoID, targetID); err != nil {
			return err
		}
	}
	return nil
}

// memosByIDs fetches memos preserving the order of ids.
func (s *Service) memosByIDs(ctx context.Context, uid string, ids []string) ([]*store.Memo, error) {
	if len(ids) == 0 {
		return []*store.Memo{}, nil
	}
	memos, err := s.store.ListMemos(ctx, &store.FindMemo{UID: &uid, IDs: ids})
	if err != nil {
		return nil, ierrors.Wrap(err, ierrors.CodeStoreFailure, "failed to list memos")
	}

	byID := make(map[string]*store.Memo, len(memos))
	for _, m := range memos {
		byID[m.ID] = m
	}
	ordered := make([]*store.Memo, 0, len(ids))
	for _, id := range ids {
		if m, ok := byID[id]; ok {
			ordered = append(ordered, m)
		}
	}
	return ordered, nil
}
