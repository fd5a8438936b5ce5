package tag

import (
	"context"
	"testing"

	"github.com/lithammer/shortuuid/v4"
	"github.com/stretchr/testify/require"

	ierrors "github.com/inkstonehq/inkstone/internal/errors"
	"github.com/inkstonehq/inkstone/store"
	storetest "github.com/inkstonehq/inkstone/store/test"
)

func newTestService(ctx context.Context, t *testing.T) (*Service, *store.Store) {
	ts := storetest.NewTestingStore(ctx, t)
	return NewService(ts), ts
}

func TestFindOrCreateTagCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(ctx, t)

	created, err := svc.FindOrCreateTag(ctx, "user-1", "Work")
	require.NoError(t, err)
	require.Equal(t, "Work", created.Name)

	// A different casing resolves to the same tag, stored casing preserved.
	found, err := svc.FindOrCreateTag(ctx, "user-1", "WORK")
	require.NoError(t, err)
	require.Equal(t, created.ID, found.ID)
	require.Equal(t, "Work", found.Name)

	// A different owner gets a fresh tag.
	other, err := svc.FindOrCreateTag(ctx, "user-2", "work")
	require.NoError(t, err)
	require.NotEqual(t, created.ID, other.ID)
}

func TestCreateTagRejectsDuplicate(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(ctx, t)

	_, err := svc.CreateTag(ctx, "user-1", "Ideas", nil)
	require.NoError(t, err)

	_, err = svc.CreateTag(ctx, "user-1", "ideas", nil)
	require.Error(t, err)
	require.True(t, ierrors.IsInvalidArgument(err))
}

func TestResolveTagNamesToIDs(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(ctx, t)

	existing, err := svc.CreateTag(ctx, "user-1", "Work", nil)
	require.NoError(t, err)

	ids, err := svc.ResolveTagNamesToIDs(ctx, "user-1", []string{"Reading", "work", "Reading", "Travel"})
	require.NoError(t, err)
	// Order-preserving, duplicates collapsed, existing tag reused.
	require.Len(t, ids, 3)
	require.Equal(t, existing.ID, ids[1])

	reading, err := svc.FindOrCreateTag(ctx, "user-1", "Reading")
	require.NoError(t, err)
	require.Equal(t, reading.ID, ids[0])
}

func TestUsageCounters(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(ctx, t)

	tag, err := svc.CreateTag(ctx, "user-1", "Work", nil)
	require.NoError(t, err)

	require.NoError(t, svc.IncrementUsageCount(ctx, "user-1", tag.ID))
	require.NoError(t, svc.IncrementUsageCount(ctx, "user-1", tag.ID))
	require.NoError(t, svc.DecrementUsageCount(ctx, "user-1", tag.ID))

	got, err := svc.GetTag(ctx, "user-1", tag.ID)
	require.NoError(t, err)
	require.Equal(t, 1, got.UsageCount)

	// The floor holds under excess decrements.
	require.NoError(t, svc.DecrementUsageCount(ctx, "user-1", tag.ID))
	require.NoError(t, svc.DecrementUsageCount(ctx, "user-1", tag.ID))
	got, err = svc.GetTag(ctx, "user-1", tag.ID)
	require.NoError(t, err)
	require.Equal(t, 0, got.UsageCount)
}

func TestDeleteTagCascades(t *testing.T) {
	ctx := context.Background()
	svc, ts := newTestService(ctx, t)

	uid := "user-1"
	work, err := svc.CreateTag(ctx, uid, "Work", nil)
	require.NoError(t, err)
	keep, err := svc.CreateTag(ctx, uid, "Keep", nil)
	require.NoError(t, err)

	now := store.NowMilli()
	both, err := ts.CreateMemo(ctx, &store.Memo{
		ID:        shortuuid.New(),
		UID:       uid,
		Content:   "memo with two tags",
		Type:      store.MemoTypeText,
		TagIDs:    []string{work.ID, keep.ID},
		Tags:      []string{work.Name, keep.Name},
		CreatedTs: now,
		UpdatedTs: now,
	})
	require.NoError(t, err)
	only, err := ts.CreateMemo(ctx, &store.Memo{
		ID:        shortuuid.New(),
		UID:       uid,
		Content:   "memo with the doomed tag only",
		Type:      store.MemoTypeText,
		TagIDs:    []string{work.ID},
		Tags:      []string{work.Name},
		CreatedTs: now,
		UpdatedTs: now,
	})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteTag(ctx, uid, work.ID))

	_, err = svc.GetTag(ctx, uid, work.ID)
	require.True(t, ierrors.IsNotFound(err))

	got, err := ts.GetMemo(ctx, &store.FindMemo{ID: &both.ID, UID: &uid})
	require.NoError(t, err)
	require.Equal(t, []string{keep.ID}, got.TagIDs)
	require.Equal(t, []string{keep.Name}, got.Tags)

	// The emptied array is NULL, not [].
	got, err = ts.GetMemo(ctx, &store.FindMemo{ID: &only.ID, UID: &uid})
	require.NoError(t, err)
	require.Nil(t, got.TagIDs)
	require.Nil(t, got.Tags)
}

func TestUpdateTagRenamePropagates(t *testing.T) {
	ctx := context.Background()
	svc, ts := newTestService(ctx, t)

	uid := "user-1"
	tag, err := svc.CreateTag(ctx, uid, "Wrok", nil)
	require.NoError(t, err)

	now := store.NowMilli()
	memo, err := ts.CreateMemo(ctx, &store.Memo{
		ID:        shortuuid.New(),
		UID:       uid,
		Content:   "tagged memo",
		Type:      store.MemoTypeText,
		TagIDs:    []string{tag.ID},
		Tags:      []string{tag.Name},
		CreatedTs: now,
		UpdatedTs: now,
	})
	require.NoError(t, err)

	newName := "Work"
	updated, err := svc.UpdateTag(ctx, uid, tag.ID, &newName, nil, false)
	require.NoError(t, err)
	require.Equal(t, "Work", updated.Name)

	got, err := ts.GetMemo(ctx, &store.FindMemo{ID: &memo.ID, UID: &uid})
	require.NoError(t, err)
	require.Equal(t, []string{"Work"}, got.Tags)
}

func TestGetPopularTags(t *testing.T) {
	ctx := context.Background()
	svc, ts := newTestService(ctx, t)

	uid := "user-1"
	hot, err := svc.CreateTag(ctx, uid, "Hot", nil)
	require.NoError(t, err)
	warm, err := svc.CreateTag(ctx, uid, "Warm", nil)
	require.NoError(t, err)
	_, err = svc.CreateTag(ctx, uid, "Cold", nil)
	require.NoError(t, err)

	require.NoError(t, ts.AdjustTagUsage(ctx, hot.ID, uid, 5))
	require.NoError(t, ts.AdjustTagUsage(ctx, warm.ID, uid, 2))

	popular, err := svc.GetPopularTags(ctx, uid, 2)
	require.NoError(t, err)
	require.Len(t, popular, 2)
	require.Equal(t, "Hot", popular[0].Name)
	require.Equal(t, "Warm", popular[1].Name)
}
