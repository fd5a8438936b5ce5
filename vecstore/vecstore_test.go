package vecstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	s, err := New("")
	require.NoError(t, err)
	return s
}

func unitVector(dim, hot int) []float32 {
	v := make([]float32, dim)
	v[hot] = 1
	return v
}

func TestUpsertGetDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	rec := Record{
		ID:      "m1",
		Vector:  unitVector(4, 0),
		Content: "hello",
		Fields:  map[string]string{"uid": "user-1"},
	}
	require.NoError(t, s.Upsert(ctx, "memo", rec))

	got, found, err := s.Get(ctx, "memo", "m1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, rec.Content, got.Content)
	require.Equal(t, "user-1", got.Fields["uid"])

	// Upsert replaces in place.
	rec.Content = "hello again"
	require.NoError(t, s.Upsert(ctx, "memo", rec))
	got, found, err = s.Get(ctx, "memo", "m1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "hello again", got.Content)

	count, err := s.Count("memo")
	require.NoError(t, err)
	require.Equal(t, 1, count)

	require.NoError(t, s.Delete(ctx, "memo", "m1"))
	_, found, err = s.Get(ctx, "memo", "m1")
	require.NoError(t, err)
	require.False(t, found)
}

func TestSearchOrderAndFilter(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Upsert(ctx, "memo", Record{
		ID: "near", Vector: []float32{1, 0, 0, 0},
		Fields: map[string]string{"uid": "user-1"},
	}))
	require.NoError(t, s.Upsert(ctx, "memo", Record{
		ID: "far", Vector: []float32{0, 1, 0, 0},
		Fields: map[string]string{"uid": "user-1"},
	}))
	require.NoError(t, s.Upsert(ctx, "memo", Record{
		ID: "other-owner", Vector: []float32{1, 0, 0, 0},
		Fields: map[string]string{"uid": "user-2"},
	}))

	results, err := s.Search(ctx, "memo", []float32{1, 0, 0, 0}, 10, map[string]string{"uid": "user-1"})
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "near", results[0].ID)
	require.Equal(t, "far", results[1].ID)
	require.LessOrEqual(t, results[0].Distance, results[1].Distance)

	// Distances stay within the raw cosine range.
	for _, r := range results {
		require.GreaterOrEqual(t, r.Distance, float32(0))
		require.LessOrEqual(t, r.Distance, float32(2))
	}

	// k larger than the collection is clamped, and an empty collection
	// yields no results.
	results, err = s.Search(ctx, "empty", []float32{1, 0, 0, 0}, 5, nil)
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestScalarIndexRegistry(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.CreateScalarIndex("memo", "uid", IndexBitmap))
	err := s.CreateScalarIndex("memo", "uid", IndexBitmap)
	require.ErrorIs(t, err, ErrIndexExists)

	require.NoError(t, s.CreateScalarIndex("memo", "created_ts", IndexSorted))
	indexes := s.ScalarIndexes("memo")
	require.Equal(t, IndexBitmap, indexes["uid"])
	require.Equal(t, IndexSorted, indexes["created_ts"])
}

func TestDeleteMissingIsNoError(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.EnsureCollection("memo"))
	require.NoError(t, s.Delete(ctx, "memo", "does-not-exist"))
}

func TestGetDistinguishesMissingFromFailure(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.EnsureCollection("memo"))

	// A missing record is not an error.
	_, found, err := s.Get(ctx, "memo", "absent")
	require.NoError(t, err)
	require.False(t, found)

	// Only chromem's missing-document error maps to found=false; other
	// read failures must propagate.
	require.True(t, isNotFoundError(errors.New("document with ID absent not found")))
	require.False(t, isNotFoundError(errors.New("read records: unexpected EOF")))
	require.False(t, isNotFoundError(nil))
}
