package reconcile

import (
	"context"
	"testing"

	"github.com/lithammer/shortuuid/v4"
	"github.com/stretchr/testify/require"

	"github.com/inkstonehq/inkstone/plugin/embedding"
	"github.com/inkstonehq/inkstone/service/memo"
	"github.com/inkstonehq/inkstone/store"
	storetest "github.com/inkstonehq/inkstone/store/test"
	"github.com/inkstonehq/inkstone/vecstore"
)

type mockEmbedder struct {
	provider *embedding.MockProvider
}

func (e *mockEmbedder) GetOrCreate(ctx context.Context, text string) ([]float32, error) {
	return e.provider.Embed(ctx, text)
}

func newFixture(ctx context.Context, t *testing.T) (*Runner, *store.Store, *vecstore.Store, *mockEmbedder) {
	ts, vec := storetest.NewTestingStores(ctx, t)
	embedder := &mockEmbedder{provider: embedding.NewMockProvider(16)}
	return NewRunner(ts, vec, embedder), ts, vec, embedder
}

func createScalarOnlyMemo(ctx context.Context, t *testing.T, ts *store.Store, content string) *store.Memo {
	now := store.NowMilli()
	m, err := ts.CreateMemo(ctx, &store.Memo{
		ID:        shortuuid.New(),
		UID:       "user-1",
		Content:   content,
		Type:      store.MemoTypeText,
		CreatedTs: now,
		UpdatedTs: now,
	})
	require.NoError(t, err)
	return m
}

func TestReconcileRepairsMissingVector(t *testing.T) {
	ctx := context.Background()
	runner, ts, vec, embedder := newFixture(ctx, t)

	m := createScalarOnlyMemo(ctx, t, ts, "memo without a vector")

	_, found, err := vec.Get(ctx, memo.Collection, m.ID)
	require.NoError(t, err)
	require.False(t, found)

	runner.RunOnce(ctx)

	rec, found, err := vec.Get(ctx, memo.Collection, m.ID)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, m.Content, rec.Content)
	require.Equal(t, "user-1", rec.Fields["uid"])

	expected, err := embedder.GetOrCreate(ctx, m.Content)
	require.NoError(t, err)
	require.Len(t, rec.Vector, len(expected))
}

func TestReconcileReplacesDriftedVector(t *testing.T) {
	ctx := context.Background()
	runner, ts, vec, _ := newFixture(ctx, t)

	m := createScalarOnlyMemo(ctx, t, ts, "memo with a stale vector")

	// Seed a vector computed from different content.
	stale := make([]float32, 16)
	stale[0] = 1
	require.NoError(t, vec.Upsert(ctx, memo.Collection, vecstore.Record{
		ID:      m.ID,
		Vector:  stale,
		Content: "old content",
		Fields:  map[string]string{"uid": m.UID},
	}))

	runner.RunOnce(ctx)

	rec, found, err := vec.Get(ctx, memo.Collection, m.ID)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, m.Content, rec.Content)
	require.NotEqual(t, stale, rec.Vector)
}

func TestReconcileLeavesHealthyVectorsAlone(t *testing.T) {
	ctx := context.Background()
	runner, ts, vec, embedder := newFixture(ctx, t)

	m := createScalarOnlyMemo(ctx, t, ts, "healthy memo")
	vector, err := embedder.GetOrCreate(ctx, m.Content)
	require.NoError(t, err)
	require.NoError(t, vec.Upsert(ctx, memo.Collection, vecstore.Record{
		ID:      m.ID,
		Vector:  vector,
		Content: m.Content,
		Fields:  map[string]string{"uid": m.UID},
	}))

	runner.RunOnce(ctx)

	rec, found, err := vec.Get(ctx, memo.Collection, m.ID)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, m.Content, rec.Content)
}
