package relation

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

func createMemo(ctx context.Context, t *testing.T, ts *store.Store, uid, content string) *store.Memo {
	now := store.NowMilli()
	memo, err := ts.CreateMemo(ctx, &store.Memo{
		ID:        shortuuid.New(),
		UID:       uid,
		Content:   content,
		Type:      store.MemoTypeText,
		CreatedTs: now,
		UpdatedTs: now,
	})
	require.NoError(t, err)
	return memo
}

func TestCreateRelationRejectsSelfLoop(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(ctx, t)

	_, err := svc.CreateRelation(ctx, "user-1", "m1", "m1")
	require.Error(t, err)
	require.True(t, ierrors.IsInvalidArgument(err))
}

func TestRelatedMemosAndBacklinks(t *testing.T) {
	ctx := context.Background()
	svc, ts := newTestService(ctx, t)

	uid := "user-1"
	a := createMemo(ctx, t, ts, uid, "memo a")
	b := createMemo(ctx, t, ts, uid, "memo b")
	c := createMemo(ctx, t, ts, uid, "memo c")

	_, err := svc.CreateRelation(ctx, uid, a.ID, b.ID)
	require.NoError(t, err)
	_, err = svc.CreateRelation(ctx, uid, a.ID, c.ID)
	require.NoError(t, err)
	_, err = svc.CreateRelation(ctx, uid, c.ID, a.ID)
	require.NoError(t, err)

	related, err := svc.GetRelatedMemos(ctx, uid, a.ID)
	require.NoError(t, err)
	require.Len(t, related, 2)
	relatedIDs := []string{related[0].ID, related[1].ID}
	require.ElementsMatch(t, []string{b.ID, c.ID}, relatedIDs)

	backlinks, err := svc.GetBacklinks(ctx, uid, a.ID)
	require.NoError(t, err)
	require.Len(t, backlinks, 1)
	require.Equal(t, c.ID, backlinks[0].ID)

	// Another owner sees nothing.
	related, err = svc.GetRelatedMemos(ctx, "user-2", a.ID)
	require.NoError(t, err)
	require.Empty(t, related)
}

func TestReplaceRelationsDedupes(t *testing.T) {
	ctx := context.Background()
	svc, ts := newTestService(ctx, t)

	uid := "user-1"
	a := createMemo(ctx, t, ts, uid, "memo a")
	b := createMemo(ctx, t, ts, uid, "memo b")
	c := createMemo(ctx, t, ts, uid, "memo c")

	_, err := svc.CreateRelation(ctx, uid, a.ID, b.ID)
	require.NoError(t, err)

	// Replace drops the old edge set, dedupes, and skips self-loops.
	err = svc.ReplaceRelations(ctx, uid, a.ID, []string{c.ID, c.ID, a.ID, ""})
	require.NoError(t, err)

	related, err := svc.GetRelatedMemos(ctx, uid, a.ID)
	require.NoError(t, err)
	require.Len(t, related, 1)
	require.Equal(t, c.ID, related[0].ID)
}

func TestDeleteRelationsByDirection(t *testing.T) {
	ctx := context.Background()
	svc, ts := newTestService(ctx, t)

	uid := "user-1"
	a := createMemo(ctx, t, ts, uid, "memo a")
	b := createMemo(ctx, t, ts, uid, "memo b")

	_, err := svc.CreateRelation(ctx, uid, a.ID, b.ID)
	require.NoError(t, err)
	_, err = svc.CreateRelation(ctx, uid, b.ID, a.ID)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteRelationsBySource(ctx, uid, a.ID))
	related, err := svc.GetRelatedMemos(ctx, uid, a.ID)
	require.NoError(t, err)
	require.Empty(t, related)

	// The incoming edge is untouched until target cleanup runs.
	backlinks, err := svc.GetBacklinks(ctx, uid, a.ID)
	require.NoError(t, err)
	require.Len(t, backlinks, 1)

	require.NoError(t, svc.DeleteRelationsByTarget(ctx, uid, a.ID))
	backlinks, err = svc.GetBacklinks(ctx, uid, a.ID)
	require.NoError(t, err)
	require.Empty(t, backlinks)
}
