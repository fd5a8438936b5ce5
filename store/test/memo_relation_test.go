package test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/inkstonehq/inkstone/store"
)

func TestMemoRelationStore(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)

	uid := "user-1"
	relate := func(source, target string) *store.MemoRelation {
		relation, err := ts.CreateMemoRelation(ctx, &store.MemoRelation{
			ID:           uuid.NewString(),
			UID:          uid,
			SourceMemoID: source,
			TargetMemoID: target,
			CreatedTs:    store.NowMilli(),
		})
		require.NoError(t, err)
		return relation
	}

	relate("m1", "m2")
	relate("m1", "m3")
	relate("m3", "m1")

	// Outgoing edges.
	outgoing, err := ts.ListMemoRelations(ctx, &store.FindMemoRelation{
		UID:          &uid,
		SourceMemoID: stringPtr("m1"),
	})
	require.NoError(t, err)
	require.Len(t, outgoing, 2)

	// Incoming edges.
	incoming, err := ts.ListMemoRelations(ctx, &store.FindMemoRelation{
		UID:          &uid,
		TargetMemoID: stringPtr("m1"),
	})
	require.NoError(t, err)
	require.Len(t, incoming, 1)

	// Either-direction match.
	touching, err := ts.ListMemoRelations(ctx, &store.FindMemoRelation{
		UID:    &uid,
		MemoID: stringPtr("m1"),
	})
	require.NoError(t, err)
	require.Len(t, touching, 3)

	// Deleting by either side removes everything touching the memo.
	require.NoError(t, ts.DeleteMemoRelation(ctx, &store.DeleteMemoRelation{
		UID:    &uid,
		MemoID: stringPtr("m1"),
	}))
	remaining, err := ts.ListMemoRelations(ctx, &store.FindMemoRelation{UID: &uid})
	require.NoError(t, err)
	require.Empty(t, remaining)
}
