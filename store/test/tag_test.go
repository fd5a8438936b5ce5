package test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/inkstonehq/inkstone/store"
)

func createTestingTag(ctx context.Context, t *testing.T, ts *store.Store, uid, name string) *store.Tag {
	now := store.NowMilli()
	tag, err := ts.CreateTag(ctx, &store.Tag{
		ID:        uuid.NewString(),
		UID:       uid,
		Name:      name,
		CreatedTs: now,
		UpdatedTs: now,
	})
	require.NoError(t, err)
	return tag
}

func TestTagStore(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)

	tag := createTestingTag(ctx, t, ts, "user-1", "Work")

	// Case-insensitive lookup finds the stored casing.
	tags, err := ts.ListTags(ctx, &store.FindTag{UID: stringPtr("user-1"), NameLower: stringPtr("WORK")})
	require.NoError(t, err)
	require.Len(t, tags, 1)
	require.Equal(t, "Work", tags[0].Name)

	// The unique index rejects a different casing of the same name.
	now := store.NowMilli()
	_, err = ts.CreateTag(ctx, &store.Tag{
		ID:        uuid.NewString(),
		UID:       "user-1",
		Name:      "work",
		CreatedTs: now,
		UpdatedTs: now,
	})
	require.Error(t, err)

	// Another owner can reuse the name.
	createTestingTag(ctx, t, ts, "user-2", "work")

	color := "#ff0000"
	updatedTs := store.NowMilli()
	require.NoError(t, ts.UpdateTag(ctx, &store.UpdateTag{
		ID:        tag.ID,
		UID:       tag.UID,
		Color:     &color,
		UpdatedTs: &updatedTs,
	}))
	tags, err = ts.ListTags(ctx, &store.FindTag{ID: &tag.ID, UID: &tag.UID})
	require.NoError(t, err)
	require.Len(t, tags, 1)
	require.NotNil(t, tags[0].Color)
	require.Equal(t, color, *tags[0].Color)

	require.NoError(t, ts.DeleteTag(ctx, &store.DeleteTag{ID: tag.ID, UID: tag.UID}))
	tags, err = ts.ListTags(ctx, &store.FindTag{ID: &tag.ID, UID: &tag.UID})
	require.NoError(t, err)
	require.Empty(t, tags)
}

func TestTagUsageFloor(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)

	tag := createTestingTag(ctx, t, ts, "user-1", "Ideas")

	require.NoError(t, ts.AdjustTagUsage(ctx, tag.ID, tag.UID, 2))
	require.NoError(t, ts.AdjustTagUsage(ctx, tag.ID, tag.UID, -1))
	tags, err := ts.ListTags(ctx, &store.FindTag{ID: &tag.ID, UID: &tag.UID})
	require.NoError(t, err)
	require.Equal(t, 1, tags[0].UsageCount)

	// Decrements never push the counter below zero.
	require.NoError(t, ts.AdjustTagUsage(ctx, tag.ID, tag.UID, -5))
	tags, err = ts.ListTags(ctx, &store.FindTag{ID: &tag.ID, UID: &tag.UID})
	require.NoError(t, err)
	require.Equal(t, 0, tags[0].UsageCount)
}
