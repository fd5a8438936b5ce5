// Package tag manages the tag catalog and keeps memo tag denormalization
// consistent with it.
package tag

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"

	ierrors "github.com/inkstonehq/inkstone/internal/errors"
	"github.com/inkstonehq/inkstone/store"
)

// Service manages tags. Tag identity is case-insensitive on the name while
// the stored casing of the first writer is preserved.
type Service struct {
	store *store.Store
}

func NewService(store *store.Store) *Service {
	return &Service{store: store}
}

// FindOrCreateTag returns the owner's tag matching name case-insensitively,
// creating it when absent.
func (s *Service) FindOrCreateTag(ctx context.Context, uid, name string) (*store.Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ierrors.New(ierrors.CodeInvalidArgument, "tag name is required")
	}

	tags, err := s.store.ListTags(ctx, &store.FindTag{UID: &uid, NameLower: &name})
	if err != nil {
		return nil, ierrors.Wrap(err, ierrors.CodeStoreFailure, "failed to find tag")
	}
	if len(tags) > 0 {
		return tags[0], nil
	}
	return s.CreateTag(ctx, uid, name, nil)
}

// CreateTag creates a tag. A conflicting name (any casing) is rejected.
func (s *Service) CreateTag(ctx context.Context, uid, name string, color *string) (*store.Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ierrors.New(ierrors.CodeInvalidArgument, "tag name is required")
	}

	existing, err := s.store.ListTags(ctx, &store.FindTag{UID: &uid, NameLower: &name})
	if err != nil {
		return nil, ierrors.Wrap(err, ierrors.CodeStoreFailure, "failed to check tag name")
	}
	if len(existing) > 0 {
		return nil, ierrors.Newf(ierrors.CodeInvalidArgument, "tag %q already exists", existing[0].Name)
	}

	now := store.NowMilli()
	tag, err := s.store.CreateTag(ctx, &store.Tag{
		ID:        uuid.NewString(),
		UID:       uid,
		Name:      name,
		Color:     color,
		CreatedTs: now,
		UpdatedTs: now,
	})
	if err != nil {
		return nil, ierrors.Wrap(err, ierrors.CodeStoreFailure, "failed to create tag")
	}
	return tag, nil
}

// GetTag returns the tag by id.
func (s *Service) GetTag(ctx context.Context, uid, tagID string) (*store.Tag, error) {
	tags, err := s.store.ListTags(ctx, &store.FindTag{ID: &tagID, UID: &uid})
	if err != nil {
		return nil, ierrors.Wrap(err, ierrors.CodeStoreFailure, "failed to get tag")
	}
	if len(tags) == 0 {
		return nil, ierrors.Newf(ierrors.CodeNotFound, "tag %s not found", tagID)
	}
	return tags[0], nil
}

// ListTags returns all of the owner's tags.
func (s *Service) ListTags(ctx context.Context, uid string) ([]*store.Tag, error) {
	tags, err := s.store.ListTags(ctx, &store.FindTag{UID: &uid})
	if err != nil {
		return nil, ierrors.Wrap(err, ierrors.CodeStoreFailure, "failed to list tags")
	}
	return tags, nil
}

// UpdateTag renames or recolors a tag. A rename into an existing name (any
// casing, other than the tag's own) is rejected. Renames propagate to the
// denormalized tag names on the owner's memos.
func (s *Service) UpdateTag(ctx context.Context, uid, tagID string, name *string, color *string, clearColor bool) (*store.Tag, error) {
	tag, err := s.GetTag(ctx, uid, tagID)
	if err != nil {
		return nil, err
	}

	update := &store.UpdateTag{ID: tagID, UID: uid, Color: color, ClearColor: clearColor}
	if name != nil {
		trimmed := strings.TrimSpace(*name)
		if trimmed == "" {
			return nil, ierrors.New(ierrors.CodeInvalidArgument, "tag name is required")
		}
		if !strings.EqualFold(trimmed, tag.Name) {
			existing, err := s.store.ListTags(ctx, &store.FindTag{UID: &uid, NameLower: &trimmed})
			if err != nil {
				return nil, ierrors.Wrap(err, ierrors.CodeStoreFailure, "failed to check tag name")
			}
			if len(existing) > 0 {
				return nil, ierrors.Newf(ierrors.CodeInvalidArgument, "tag %q already exists", existing[0].Name)
			}
		}
		update.Name = &trimmed
	}

	now := store.NowMilli()
	update.UpdatedTs = &now
	if err := s.store.UpdateTag(ctx, update); err != nil {
		return nil, ierrors.Wrap(err, ierrors.CodeStoreFailure, "failed to update tag")
	}

	if update.Name != nil && *update.Name != tag.Name {
		if err := s.renameOnMemos(ctx, uid, tagID, *update.Name); err != nil {
			slog.Warn("failed to propagate tag rename to memos",
				slog.String("tagId", tagID),
				slog.String("error", err.Error()))
		}
	}
	return s.GetTag(ctx, uid, tagID)
}

// DeleteTag removes the tag and strips it from every memo that carries it.
// An emptied tag array is stored as explicit NULL, not [].
func (s *Service) DeleteTag(ctx context.Context, uid, tagID string) error {
	tag, err := s.GetTag(ctx, uid, tagID)
	if err != nil {
		return err
	}

	memos, err := s.store.ListMemos(ctx, &store.FindMemo{UID: &uid, TagID: &tagID})
	if err != nil {
		return ierrors.Wrap(err, ierrors.CodeStoreFailure, "failed to find memos carrying tag")
	}
	for _, memo := range memos {
		tagIDs := removeString(memo.TagIDs, tagID)
		tags := removeString(memo.Tags, tag.Name)
		now := store.NowMilli()
		err := s.store.UpdateMemo(ctx, &store.UpdateMemo{
			ID:        memo.ID,
			UID:       uid,
			TagIDs:    &tagIDs,
			Tags:      &tags,
			UpdatedTs: &now,
		})
		if err != nil {
			return ierrors.Wrap(err, ierrors.CodeStoreFailure, "failed to strip tag from memo")
		}
	}

	if err := s.store.DeleteTag(ctx, &store.DeleteTag{ID: tagID, UID: uid}); err != nil {
		return ierrors.Wrap(err, ierrors.CodeStoreFailure, "failed to delete tag")
	}
	return nil
}

// IncrementUsageCount bumps the tag's usage counter.
func (s *Service) IncrementUsageCount(ctx context.Context, uid, tagID string) error {
	if err := s.store.AdjustTagUsage(ctx, tagID, uid, 1); err != nil {
		return ierrors.Wrap(err, ierrors.CodeStoreFailure, "failed to increment tag usage")
	}
	return nil
}

// DecrementUsageCount lowers the tag's usage counter. The counter never goes
// below zero.
func (s *Service) DecrementUsageCount(ctx context.Context, uid, tagID string) error {
	if err := s.store.AdjustTagUsage(ctx, tagID, uid, -1); err != nil {
		return ierrors.Wrap(err, ierrors.CodeStoreFailure, "failed to decrement tag usage")
	}
	return nil
}

// ResolveTagNamesToIDs maps tag names to ids, creating missing tags. The
// output order follows the input order; duplicate names (case-insensitive)
// resolve to one id each.
func (s *Service) ResolveTagNamesToIDs(ctx context.Context, uid string, names []string) ([]string, error) {
	ids := make([]string, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		lower := strings.ToLower(strings.TrimSpace(name))
		if lower == "" {
			continue
		}
		if _, ok := seen[lower]; ok {
			continue
		}
		seen[lower] = struct{}{}

		tag, err := s.FindOrCreateTag(ctx, uid, name)
		if err != nil {
			return nil, err
		}
		ids = append(ids, tag.ID)
	}
	return ids, nil
}

// GetPopularTags returns the owner's tags with usage_count >= minUsage,
// most-used first. The filter runs in memory over the owner's full tag list;
// per-user tag counts stay small enough that this is not a concern.
func (s *Service) GetPopularTags(ctx context.Context, uid string, minUsage int) ([]*store.Tag, error) {
	tags, err := s.ListTags(ctx, uid)
	if err != nil {
		return nil, err
	}

	popular := make([]*store.Tag, 0, len(tags))
	for _, tag := range tags {
		if tag.UsageCount >= minUsage {
			popular = append(popular, tag)
		}
	}
	sort.SliceStable(popular, func(i, j int) bool {
		return popular[i].UsageCount > popular[j].UsageCount
	})
	return popular, nil
}

// renameOnMemos rewrites the denormalized tag name on memos carrying tagID.
func (s *Service) renameOnMemos(ctx context.Context, uid, tagID, newName string) error {
	memos, err := s.store.ListMemos(ctx, &store.FindMemo{UID: &uid, TagID: &tagID})
	if err != nil {
		return err
	}
	for _, memo := range memos {
		tags := make([]string, 0, len(memo.TagIDs))
		for i, id := range memo.TagIDs {
			if id == tagID {
				tags = append(tags, newName)
			} else if i < len(memo.Tags) {
				tags = append(tags, memo.Tags[i])
			}
		}
		now := store.NowMilli()
		err := s.store.UpdateMemo(ctx, &store.UpdateMemo{
			ID:        memo.ID,
			UID:       uid,
			Tags:      &tags,
			UpdatedTs: &now,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func removeString(list []string, value string) []string {
	out := make([]string, 0, len(list))
	for _, v := range list {
		if v != value {
			out = append(out, v)
		}
	}
	return out
}
