package memo

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	ierrors "github.com/inkstonehq/inkstone/internal/errors"
	"github.com/inkstonehq/inkstone/plugin/embedding"
	"github.com/inkstonehq/inkstone/service/relation"
	"github.com/inkstonehq/inkstone/service/tag"
	"github.com/inkstonehq/inkstone/store"
	storetest "github.com/inkstonehq/inkstone/store/test"
	"github.com/inkstonehq/inkstone/vecstore"
)

// countingEmbedder wraps the deterministic mock provider and counts calls, so
// tests can assert when re-embedding actually happens.
type countingEmbedder struct {
	provider *embedding.MockProvider
	calls    int
	fail     bool
}

func (e *countingEmbedder) GetOrCreate(ctx context.Context, text string) ([]float32, error) {
	e.calls++
	if e.fail {
		return nil, ierrors.New(ierrors.CodeProviderFailure, "embedder down")
	}
	return e.provider.Embed(ctx, text)
}

type fixture struct {
	svc      *Service
	store    *store.Store
	vec      *vecstore.Store
	embedder *countingEmbedder
	tags     *tag.Service
}

func newFixture(ctx context.Context, t *testing.T) *fixture {
	ts, vec := storetest.NewTestingStores(ctx, t)
	embedder := &countingEmbedder{provider: embedding.NewMockProvider(32)}
	relations := relation.NewService(ts)
	tags := tag.NewService(ts)
	return &fixture{
		svc:      NewService(ts, vec, embedder, relations, tags),
		store:    ts,
		vec:      vec,
		embedder: embedder,
		tags:     tags,
	}
}

func stringPtr(s string) *string { return &s }
func intPtr(i int) *int          { return &i }

func TestCreateMemoWritesBothStores(t *testing.T) {
	ctx := context.Background()
	f := newFixture(ctx, t)

	result, err := f.svc.CreateMemo(ctx, &CreateMemoRequest{
		UID:      "user-1",
		Content:  "notes on hybrid storage",
		TagNames: []string{"Work"},
	})
	require.NoError(t, err)
	require.Empty(t, result.Warnings)
	memo := result.Memo
	require.NotEmpty(t, memo.ID)
	require.Equal(t, store.MemoTypeText, memo.Type)
	require.Equal(t, []string{"Work"}, memo.Tags)

	// Scalar row exists.
	got, err := f.store.GetMemo(ctx, &store.FindMemo{ID: &memo.ID, UID: &memo.UID})
	require.NoError(t, err)
	require.Equal(t, memo.Content, got.Content)

	// Vector record exists and carries the owner field.
	rec, found, err := f.vec.Get(ctx, Collection, memo.ID)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "user-1", rec.Fields["uid"])
	require.Len(t, rec.Vector, 32)

	// The tag counter was incremented.
	tags, err := f.tags.ListTags(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, tags, 1)
	require.Equal(t, 1, tags[0].UsageCount)
}

func TestCreateMemoValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(ctx, t)

	_, err := f.svc.CreateMemo(ctx, &CreateMemoRequest{UID: "user-1", Content: "   "})
	require.True(t, ierrors.IsInvalidArgument(err))

	_, err = f.svc.CreateMemo(ctx, &CreateMemoRequest{Content: "no owner"})
	require.True(t, ierrors.IsInvalidArgument(err))

	_, err = f.svc.CreateMemo(ctx, &CreateMemoRequest{UID: "user-1", Content: "x", Type: "gif"})
	require.True(t, ierrors.IsInvalidArgument(err))
}

func TestCreateMemoEmbeddingFailureAborts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(ctx, t)
	f.embedder.fail = true

	_, err := f.svc.CreateMemo(ctx, &CreateMemoRequest{UID: "user-1", Content: "doomed"})
	require.Error(t, err)
	require.True(t, ierrors.HasCode(err, ierrors.CodeProviderFailure))

	// No scalar row leaked.
	memos, err := f.store.ListMemos(ctx, &store.FindMemo{UID: stringPtr("user-1")})
	require.NoError(t, err)
	require.Empty(t, memos)
}

func TestUpdateMemoReembedsOnlyOnContentChange(t *testing.T) {
	ctx := context.Background()
	f := newFixture(ctx, t)

	result, err := f.svc.CreateMemo(ctx, &CreateMemoRequest{UID: "user-1", Content: "original"})
	require.NoError(t, err)
	memo := result.Memo
	callsAfterCreate := f.embedder.calls

	before, _, err := f.vec.Get(ctx, Collection, memo.ID)
	require.NoError(t, err)

	// Same content: no embedding call, vector untouched.
	_, err = f.svc.UpdateMemo(ctx, &UpdateMemoRequest{
		ID: memo.ID, UID: memo.UID, Content: stringPtr("original"),
	})
	require.NoError(t, err)
	require.Equal(t, callsAfterCreate, f.embedder.calls)

	// Changed content: one embedding call, vector replaced.
	_, err = f.svc.UpdateMemo(ctx, &UpdateMemoRequest{
		ID: memo.ID, UID: memo.UID, Content: stringPtr("rewritten"),
	})
	require.NoError(t, err)
	require.Equal(t, callsAfterCreate+1, f.embedder.calls)

	after, found, err := f.vec.Get(ctx, Collection, memo.ID)
	require.NoError(t, err)
	require.True(t, found)
	require.NotEqual(t, before.Vector, after.Vector)
	require.Equal(t, "rewritten", after.Content)
}

func TestUpdateMemoCategoryAndVectorFields(t *testing.T) {
	ctx := context.Background()
	f := newFixture(ctx, t)

	result, err := f.svc.CreateMemo(ctx, &CreateMemoRequest{
		UID: "user-1", Content: "categorized", CategoryID: stringPtr("cat-1"),
	})
	require.NoError(t, err)
	memo := result.Memo

	rec, _, err := f.vec.Get(ctx, Collection, memo.ID)
	require.NoError(t, err)
	require.Equal(t, "cat-1", rec.Fields["category_id"])

	// Metadata-only update refreshes the vector fields without re-embedding.
	callsBefore := f.embedder.calls
	updated, err := f.svc.UpdateMemo(ctx, &UpdateMemoRequest{
		ID: memo.ID, UID: memo.UID, ClearCategoryID: true,
	})
	require.NoError(t, err)
	require.Nil(t, updated.Memo.CategoryID)
	require.Equal(t, callsBefore, f.embedder.calls)

	rec, _, err = f.vec.Get(ctx, Collection, memo.ID)
	require.NoError(t, err)
	_, hasCategory := rec.Fields["category_id"]
	require.False(t, hasCategory)

	// Set and clear together is rejected.
	_, err = f.svc.UpdateMemo(ctx, &UpdateMemoRequest{
		ID: memo.ID, UID: memo.UID,
		CategoryID: stringPtr("cat-2"), ClearCategoryID: true,
	})
	require.True(t, ierrors.IsInvalidArgument(err))
}

func TestUpdateMemoTagDiffAdjustsCounters(t *testing.T) {
	ctx := context.Background()
	f := newFixture(ctx, t)

	result, err := f.svc.CreateMemo(ctx, &CreateMemoRequest{
		UID: "user-1", Content: "tagged", TagNames: []string{"Old", "Shared"},
	})
	require.NoError(t, err)
	memo := result.Memo

	newTags := []string{"Shared", "New"}
	_, err = f.svc.UpdateMemo(ctx, &UpdateMemoRequest{
		ID: memo.ID, UID: memo.UID, TagNames: &newTags,
	})
	require.NoError(t, err)

	byName := map[string]int{}
	tags, err := f.tags.ListTags(ctx, "user-1")
	require.NoError(t, err)
	for _, tg := range tags {
		byName[tg.Name] = tg.UsageCount
	}
	require.Equal(t, 0, byName["Old"])
	require.Equal(t, 1, byName["Shared"])
	require.Equal(t, 1, byName["New"])
}

func TestDeleteMemoCleansEverything(t *testing.T) {
	ctx := context.Background()
	f := newFixture(ctx, t)

	uid := "user-1"
	a, err := f.svc.CreateMemo(ctx, &CreateMemoRequest{UID: uid, Content: "memo a", TagNames: []string{"Work"}})
	require.NoError(t, err)
	b, err := f.svc.CreateMemo(ctx, &CreateMemoRequest{
		UID: uid, Content: "memo b", RelatedMemoIDs: []string{a.Memo.ID},
	})
	require.NoError(t, err)
	_, err = f.svc.CreateMemo(ctx, &CreateMemoRequest{
		UID: uid, Content: "memo c", RelatedMemoIDs: []string{a.Memo.ID},
	})
	require.NoError(t, err)

	warnings, err := f.svc.DeleteMemo(ctx, uid, a.Memo.ID)
	require.NoError(t, err)
	require.Empty(t, warnings)

	// Scalar row gone.
	_, err = f.store.GetMemo(ctx, &store.FindMemo{ID: &a.Memo.ID, UID: &uid})
	require.True(t, ierrors.IsNotFound(err))

	// Vector record gone.
	_, found, err := f.vec.Get(ctx, Collection, a.Memo.ID)
	require.NoError(t, err)
	require.False(t, found)

	// Edges in both directions gone.
	relations, err := f.store.ListMemoRelations(ctx, &store.FindMemoRelation{
		UID: &uid, MemoID: &a.Memo.ID,
	})
	require.NoError(t, err)
	require.Empty(t, relations)

	// The tag counter was released.
	tags, err := f.tags.ListTags(ctx, uid)
	require.NoError(t, err)
	require.Equal(t, 0, tags[0].UsageCount)

	// Unrelated memos survive.
	_, err = f.store.GetMemo(ctx, &store.FindMemo{ID: &b.Memo.ID, UID: &uid})
	require.NoError(t, err)

	// Deleting twice reports NotFound.
	_, err = f.svc.DeleteMemo(ctx, uid, a.Memo.ID)
	require.True(t, ierrors.IsNotFound(err))
}

func TestVectorSearch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(ctx, t)

	uid := "user-1"
	first, err := f.svc.CreateMemo(ctx, &CreateMemoRequest{UID: uid, Content: "golang concurrency patterns"})
	require.NoError(t, err)
	_, err = f.svc.CreateMemo(ctx, &CreateMemoRequest{UID: uid, Content: "weekend grocery list"})
	require.NoError(t, err)
	_, err = f.svc.CreateMemo(ctx, &CreateMemoRequest{UID: "user-2", Content: "golang concurrency patterns"})
	require.NoError(t, err)

	hits, err := f.svc.VectorSearch(ctx, &SearchRequest{
		UID:   uid,
		Query: "golang concurrency patterns",
	})
	require.NoError(t, err)
	require.NotEmpty(t, hits)

	// Identical text embeds identically under the mock, so the best hit is
	// exact and owner-scoped.
	require.Equal(t, first.Memo.ID, hits[0].Memo.ID)
	require.InDelta(t, 1.0, hits[0].Similarity, 1e-4)
	for _, hit := range hits {
		require.Equal(t, uid, hit.Memo.UID)
		require.GreaterOrEqual(t, hit.Similarity, 0.0)
		require.LessOrEqual(t, hit.Similarity, 1.0+1e-6)
	}
	for i := 1; i < len(hits); i++ {
		require.LessOrEqual(t, hits[i].Similarity, hits[i-1].Similarity)
	}

	// A strict threshold drops the weaker hits.
	strict, err := f.svc.VectorSearch(ctx, &SearchRequest{
		UID:       uid,
		Query:     "golang concurrency patterns",
		Threshold: 0.99,
	})
	require.NoError(t, err)
	require.Len(t, strict, 1)

	// An empty query is rejected.
	_, err = f.svc.VectorSearch(ctx, &SearchRequest{UID: uid, Query: " "})
	require.True(t, ierrors.IsInvalidArgument(err))
}

func TestVectorSearchSkipsOrphanVectors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(ctx, t)

	uid := "user-1"
	result, err := f.svc.CreateMemo(ctx, &CreateMemoRequest{UID: uid, Content: "soon to be orphaned"})
	require.NoError(t, err)

	// Remove the scalar row behind the coordinator's back.
	require.NoError(t, f.store.DeleteMemo(ctx, &store.DeleteMemo{ID: result.Memo.ID, UID: uid}))

	hits, err := f.svc.VectorSearch(ctx, &SearchRequest{UID: uid, Query: "soon to be orphaned"})
	require.NoError(t, err)
	require.Empty(t, hits)
}

func TestGetMemosPaginationAndEnrichment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(ctx, t)

	uid := "user-1"
	target, err := f.svc.CreateMemo(ctx, &CreateMemoRequest{UID: uid, Content: "link target"})
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		_, err := f.svc.CreateMemo(ctx, &CreateMemoRequest{
			UID: uid, Content: "page filler", RelatedMemoIDs: []string{target.Memo.ID},
		})
		require.NoError(t, err)
	}

	page, err := f.svc.GetMemos(ctx, &ListMemosRequest{
		UID:       uid,
		OrderBy:   store.MemoOrderByCreatedTs,
		OrderDesc: true,
		Offset:    intPtr(0),
		Limit:     intPtr(3),
	})
	require.NoError(t, err)
	require.Equal(t, 5, page.Total)
	require.Len(t, page.Memos, 3)

	for _, r := range page.Memos {
		if r.Memo.ID == target.Memo.ID {
			continue
		}
		require.Equal(t, []string{target.Memo.ID}, r.RelatedMemoIDs)
	}

	// Content filter narrows the total too.
	filtered, err := f.svc.GetMemos(ctx, &ListMemosRequest{
		UID:           uid,
		ContentSearch: stringPtr("target"),
	})
	require.NoError(t, err)
	require.Equal(t, 1, filtered.Total)
	require.Len(t, filtered.Memos, 1)
}

func TestGetMemosPageWalkIsExactAndDisjoint(t *testing.T) {
	ctx := context.Background()
	f := newFixture(ctx, t)

	uid := "user-1"
	created := map[string]struct{}{}
	for i := 0; i < 7; i++ {
		r, err := f.svc.CreateMemo(ctx, &CreateMemoRequest{UID: uid, Content: "walk filler"})
		require.NoError(t, err)
		created[r.Memo.ID] = struct{}{}
	}

	first, err := f.svc.GetMemos(ctx, &ListMemosRequest{
		UID: uid, OrderBy: store.MemoOrderByCreatedTs, OrderDesc: true,
		Offset: intPtr(0), Limit: intPtr(3),
	})
	require.NoError(t, err)
	require.Equal(t, 7, first.Total)

	// Walking every page of a fixed filter yields each memo exactly once
	// and the page sizes sum to the total.
	seen := map[string]struct{}{}
	fetched := 0
	pageSize := 3
	for offset := 0; offset < first.Total; offset += pageSize {
		page, err := f.svc.GetMemos(ctx, &ListMemosRequest{
			UID: uid, OrderBy: store.MemoOrderByCreatedTs, OrderDesc: true,
			Offset: intPtr(offset), Limit: intPtr(pageSize),
		})
		require.NoError(t, err)
		require.Equal(t, first.Total, page.Total)
		fetched += len(page.Memos)
		for _, r := range page.Memos {
			_, dup := seen[r.Memo.ID]
			require.False(t, dup, "memo %s appeared on two pages", r.Memo.ID)
			seen[r.Memo.ID] = struct{}{}
		}
	}
	require.Equal(t, first.Total, fetched)
	require.Equal(t, created, seen)
}

func TestGetMemosByIDsPreservesOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(ctx, t)

	uid := "user-1"
	a, err := f.svc.CreateMemo(ctx, &CreateMemoRequest{UID: uid, Content: "a"})
	require.NoError(t, err)
	b, err := f.svc.CreateMemo(ctx, &CreateMemoRequest{UID: uid, Content: "b"})
	require.NoError(t, err)
	c, err := f.svc.CreateMemo(ctx, &CreateMemoRequest{UID: uid, Content: "c"})
	require.NoError(t, err)

	memos, err := f.svc.GetMemosByIDs(ctx, uid, []string{c.Memo.ID, "missing", a.Memo.ID, b.Memo.ID})
	require.NoError(t, err)
	require.Len(t, memos, 3)
	require.Equal(t, c.Memo.ID, memos[0].ID)
	require.Equal(t, a.Memo.ID, memos[1].ID)
	require.Equal(t, b.Memo.ID, memos[2].ID)
}

func TestCreateMemoAttachmentResolution(t *testing.T) {
	ctx := context.Background()
	f := newFixture(ctx, t)

	uid := "user-1"
	attachment, err := f.store.CreateAttachment(ctx, &store.Attachment{
		ID:        uuid.NewString(),
		UID:       uid,
		Filename:  "photo.jpg",
		Type:      "image/jpeg",
		Size:      2048,
		URL:       "/blobs/photo.jpg",
		CreatedTs: store.NowMilli(),
	})
	require.NoError(t, err)

	result, err := f.svc.CreateMemo(ctx, &CreateMemoRequest{
		UID:           uid,
		Content:       "memo with attachments",
		AttachmentIDs: []string{attachment.ID, "ghost-attachment"},
	})
	require.NoError(t, err)

	// The resolvable snapshot is present; the missing one produced a warning.
	require.Len(t, result.Memo.Attachments, 1)
	require.Equal(t, "photo.jpg", result.Memo.Attachments[0].Filename)
	require.NotEmpty(t, result.Warnings)
}
