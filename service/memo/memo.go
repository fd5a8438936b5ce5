// Package memo coordinates the dual-store memo lifecycle: scalar fields in
// the relational store, embedding vectors in the vector store, plus the
// relation graph and tag bookkeeping around them.
package memo

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/lithammer/shortuuid/v4"

	ierrors "github.com/inkstonehq/inkstone/internal/errors"
	"github.com/inkstonehq/inkstone/service/relation"
	"github.com/inkstonehq/inkstone/service/tag"
	"github.com/inkstonehq/inkstone/store"
	"github.com/inkstonehq/inkstone/vecstore"
)

// Collection is the vector store collection holding memo embeddings.
const Collection = "memo"

// DefaultSearchLimit applies when a search request does not set a limit.
const DefaultSearchLimit = 10

// Embedder turns text into a vector. Satisfied by embedding.Cache.
type Embedder interface {
	GetOrCreate(ctx context.Context, text string) ([]float32, error)
}

// Service is the memo store coordinator.
type Service struct {
	store     *store.Store
	vec       *vecstore.Store
	embedder  Embedder
	relations *relation.Service
	tags      *tag.Service
}

func NewService(st *store.Store, vec *vecstore.Store, embedder Embedder, relations *relation.Service, tags *tag.Service) *Service {
	return &Service{
		store:     st,
		vec:       vec,
		embedder:  embedder,
		relations: relations,
		tags:      tags,
	}
}

// Result carries a memo plus any non-fatal warnings produced by best-effort
// side effects (relations, tag counters, attachment snapshot gaps).
type Result struct {
	Memo           *store.Memo
	RelatedMemoIDs []string
	Warnings       []string
}

// CreateMemoRequest is the input for CreateMemo.
type CreateMemoRequest struct {
	UID     string
	Content string
	Type    store.MemoType

	CategoryID     *string
	AttachmentIDs  []string
	TagNames       []string
	RelatedMemoIDs []string

	IsPublic   bool
	ShareToken string

	// CreatedTs overrides the creation timestamp for import scenarios.
	CreatedTs *int64
}

// CreateMemo embeds the content, writes the vector record, then the scalar
// row, then applies best-effort side effects. An embedding or vector write
// failure aborts the create so a scalar row never becomes visible without a
// matching vector.
func (s *Service) CreateMemo(ctx context.Context, req *CreateMemoRequest) (*Result, error) {
	if req.UID == "" {
		return nil, ierrors.New(ierrors.CodeInvalidArgument, "uid is required")
	}
	if strings.TrimSpace(req.Content) == "" {
		return nil, ierrors.New(ierrors.CodeInvalidArgument, "content is required")
	}
	memoType := req.Type
	if memoType == "" {
		memoType = store.MemoTypeText
	}
	if memoType != store.MemoTypeText && memoType != store.MemoTypeAudio && memoType != store.MemoTypeVideo {
		return nil, ierrors.Newf(ierrors.CodeInvalidArgument, "unknown memo type: %s", memoType)
	}

	warnings := []string{}
	now := store.NowMilli()
	createdTs := now
	if req.CreatedTs != nil {
		createdTs = *req.CreatedTs
	}

	tagIDs, tagNames, err := s.resolveTags(ctx, req.UID, req.TagNames)
	if err != nil {
		warnings = append(warnings, fmt.Sprintf("tags not applied: %v", err))
		tagIDs, tagNames = nil, nil
	}

	attachments, attachmentWarnings := s.resolveAttachments(ctx, req.UID, req.AttachmentIDs)
	warnings = append(warnings, attachmentWarnings...)

	memo := &store.Memo{
		ID:          shortuuid.New(),
		UID:         req.UID,
		Content:     req.Content,
		Type:        memoType,
		CategoryID:  req.CategoryID,
		Attachments: attachments,
		TagIDs:      tagIDs,
		Tags:        tagNames,
		IsPublic:    req.IsPublic,
		ShareToken:  req.ShareToken,
		CreatedTs:   createdTs,
		UpdatedTs:   now,
	}

	vector, err := s.embedder.GetOrCreate(ctx, memo.Content)
	if err != nil {
		return nil, ierrors.Wrap(err, ierrors.CodeProviderFailure, "failed to embed memo content")
	}
	if err := s.vec.Upsert(ctx, Collection, vecstore.Record{
		ID:      memo.ID,
		Vector:  vector,
		Content: memo.Content,
		Fields:  vectorFields(memo),
	}); err != nil {
		return nil, ierrors.Wrap(err, ierrors.CodeStoreFailure, "failed to write memo vector")
	}

	if _, err := s.store.CreateMemo(ctx, memo); err != nil {
		// Roll back the vector so the stores stay consistent.
		if derr := s.vec.Delete(ctx, Collection, memo.ID); derr != nil {
			slog.Warn("failed to roll back memo vector",
				slog.String("memoId", memo.ID),
				slog.String("error", derr.Error()))
		}
		return nil, ierrors.Wrap(err, ierrors.CodeStoreFailure, "failed to create memo")
	}

	if len(req.RelatedMemoIDs) > 0 {
		if err := s.relations.ReplaceRelations(ctx, req.UID, memo.ID, req.RelatedMemoIDs); err != nil {
			slog.Warn("failed to create memo relations",
				slog.String("memoId", memo.ID),
				slog.String("error", err.Error()))
			warnings = append(warnings, fmt.Sprintf("relations not applied: %v", err))
		}
	}
	warnings = append(warnings, s.adjustTagCounters(ctx, req.UID, nil, tagIDs)...)

	related, err := s.relatedMemoIDs(ctx, req.UID, memo.ID)
	if err != nil {
		warnings = append(warnings, fmt.Sprintf("relations not loaded: %v", err))
	}
	return &Result{Memo: memo, RelatedMemoIDs: related, Warnings: warnings}, nil
}

// UpdateMemoRequest is the partial-update input for UpdateMemo. Nil fields
// are untouched.
type UpdateMemoRequest struct {
	ID  string
	UID string

	Content *string
	Type    *store.MemoType

	CategoryID      *string
	ClearCategoryID bool

	AttachmentIDs  *[]string
	TagNames       *[]string
	RelatedMemoIDs *[]string

	IsPublic   *bool
	ShareToken *string
}

// UpdateMemo applies a partial update. The content is re-embedded only when
// it actually changed; a metadata-only update leaves the stored vector alone
// and refreshes the vector record's scalar fields.
func (s *Service) UpdateMemo(ctx context.Context, req *UpdateMemoRequest) (*Result, error) {
	if req.CategoryID != nil && req.ClearCategoryID {
		return nil, ierrors.New(ierrors.CodeInvalidArgument, "cannot set and clear category in the same update")
	}

	existing, err := s.store.GetMemo(ctx, &store.FindMemo{ID: &req.ID, UID: &req.UID})
	if err != nil {
		return nil, err
	}

	warnings := []string{}
	now := store.NowMilli()
	update := &store.UpdateMemo{
		ID:              req.ID,
		UID:             req.UID,
		Type:            req.Type,
		CategoryID:      req.CategoryID,
		ClearCategoryID: req.ClearCategoryID,
		IsPublic:        req.IsPublic,
		ShareToken:      req.ShareToken,
		UpdatedTs:       &now,
	}

	contentChanged := req.Content != nil && *req.Content != existing.Content
	if req.Content != nil {
		if strings.TrimSpace(*req.Content) == "" {
			return nil, ierrors.New(ierrors.CodeInvalidArgument, "content is required")
		}
		update.Content = req.Content
	}

	var newTagIDs []string
	if req.TagNames != nil {
		tagIDs, tagNames, err := s.resolveTags(ctx, req.UID, *req.TagNames)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("tags not applied: %v", err))
		} else {
			newTagIDs = tagIDs
			update.TagIDs = &tagIDs
			update.Tags = &tagNames
		}
	}

	if req.AttachmentIDs != nil {
		attachments, attachmentWarnings := s.resolveAttachments(ctx, req.UID, *req.AttachmentIDs)
		warnings = append(warnings, attachmentWarnings...)
		update.Attachments = &attachments
	}

	// Project the post-update memo for vector fields.
	projected := *existing
	if update.Content != nil {
		projected.Content = *update.Content
	}
	if update.Type != nil {
		projected.Type = *update.Type
	}
	if update.CategoryID != nil {
		projected.CategoryID = update.CategoryID
	}
	if update.ClearCategoryID {
		projected.CategoryID = nil
	}

	if contentChanged {
		vector, err := s.embedder.GetOrCreate(ctx, projected.Content)
		if err != nil {
			return nil, ierrors.Wrap(err, ierrors.CodeProviderFailure, "failed to re-embed memo content")
		}
		if err := s.vec.Upsert(ctx, Collection, vecstore.Record{
			ID:      req.ID,
			Vector:  vector,
			Content: projected.Content,
			Fields:  vectorFields(&projected),
		}); err != nil {
			return nil, ierrors.Wrap(err, ierrors.CodeStoreFailure, "failed to write memo vector")
		}
	} else if update.Type != nil || update.CategoryID != nil || update.ClearCategoryID {
		if err := s.refreshVectorFields(ctx, &projected); err != nil {
			slog.Warn("failed to refresh memo vector fields",
				slog.String("memoId", req.ID),
				slog.String("error", err.Error()))
			warnings = append(warnings, fmt.Sprintf("vector fields not refreshed: %v", err))
		}
	}

	if err := s.store.UpdateMemo(ctx, update); err != nil {
		return nil, ierrors.Wrap(err, ierrors.CodeStoreFailure, "failed to update memo")
	}

	if req.RelatedMemoIDs != nil {
		if err := s.relations.ReplaceRelations(ctx, req.UID, req.ID, *req.RelatedMemoIDs); err != nil {
			slog.Warn("failed to replace memo relations",
				slog.String("memoId", req.ID),
				slog.String("error", err.Error()))
			warnings = append(warnings, fmt.Sprintf("relations not applied: %v", err))
		}
	}
	if update.TagIDs != nil {
		warnings = append(warnings, s.adjustTagCounters(ctx, req.UID, existing.TagIDs, newTagIDs)...)
	}

	memo, err := s.store.GetMemo(ctx, &store.FindMemo{ID: &req.ID, UID: &req.UID})
	if err != nil {
		return nil, err
	}
	related, err := s.relatedMemoIDs(ctx, req.UID, req.ID)
	if err != nil {
		warnings = append(warnings, fmt.Sprintf("relations not loaded: %v", err))
	}
	return &Result{Memo: memo, RelatedMemoIDs: related, Warnings: warnings}, nil
}

// DeleteMemo removes the scalar row and the vector record, cleans up every
// edge touching the memo in either direction, and releases its tag counters.
func (s *Service) DeleteMemo(ctx context.Context, uid, memoID string) ([]string, error) {
	memo, err := s.store.GetMemo(ctx, &store.FindMemo{ID: &memoID, UID: &uid})
	if err != nil {
		return nil, err
	}

	if err := s.store.DeleteMemo(ctx, &store.DeleteMemo{ID: memoID, UID: uid}); err != nil {
		return nil, ierrors.Wrap(err, ierrors.CodeStoreFailure, "failed to delete memo")
	}

	warnings := []string{}
	if err := s.vec.Delete(ctx, Collection, memoID); err != nil {
		slog.Warn("failed to delete memo vector",
			slog.String("memoId", memoID),
			slog.String("error", err.Error()))
		warnings = append(warnings, fmt.Sprintf("vector not deleted: %v", err))
	}

	if err := s.relations.DeleteRelationsBySource(ctx, uid, memoID); err != nil {
		warnings = append(warnings, fmt.Sprintf("outgoing relations not deleted: %v", err))
	}
	if err := s.relations.DeleteRelationsByTarget(ctx, uid, memoID); err != nil {
		warnings = append(warnings, fmt.Sprintf("incoming relations not deleted: %v", err))
	}
	warnings = append(warnings, s.adjustTagCounters(ctx, uid, memo.TagIDs, nil)...)
	return warnings, nil
}

// GetMemo returns one memo with its outgoing relations.
func (s *Service) GetMemo(ctx context.Context, uid, memoID string) (*Result, error) {
	memo, err := s.store.GetMemo(ctx, &store.FindMemo{ID: &memoID, UID: &uid})
	if err != nil {
		return nil, err
	}
	related, err := s.relatedMemoIDs(ctx, uid, memoID)
	if err != nil {
		return nil, err
	}
	return &Result{Memo: memo, RelatedMemoIDs: related}, nil
}

// ListMemosRequest is the scalar filter input for GetMemos. All set fields
// combine conjunctively.
type ListMemosRequest struct {
	UID string

	CategoryID    *string
	ContentSearch *string
	TagID         *string

	// Inclusive millisecond bounds on created_ts.
	CreatedTsAfter  *int64
	CreatedTsBefore *int64

	OrderBy   store.MemoOrderBy
	OrderDesc bool

	Offset *int
	Limit  *int
}

// ListMemosResult is one page of memos plus the total match count across all
// pages.
type ListMemosResult struct {
	Memos []*Result
	Total int
}

// GetMemos returns one page of the owner's memos under the given filter,
// enriched with outgoing relation ids, plus the total count.
func (s *Service) GetMemos(ctx context.Context, req *ListMemosRequest) (*ListMemosResult, error) {
	if req.UID == "" {
		return nil, ierrors.New(ierrors.CodeInvalidArgument, "uid is required")
	}

	find := &store.FindMemo{
		UID:             &req.UID,
		CategoryID:      req.CategoryID,
		ContentSearch:   req.ContentSearch,
		TagID:           req.TagID,
		CreatedTsAfter:  req.CreatedTsAfter,
		CreatedTsBefore: req.CreatedTsBefore,
		OrderBy:         req.OrderBy,
		OrderDesc:       req.OrderDesc,
		Offset:          req.Offset,
		Limit:           req.Limit,
	}

	memos, err := s.store.ListMemos(ctx, find)
	if err != nil {
		return nil, ierrors.Wrap(err, ierrors.CodeStoreFailure, "failed to list memos")
	}
	total, err := s.store.CountMemos(ctx, find)
	if err != nil {
		return nil, ierrors.Wrap(err, ierrors.CodeStoreFailure, "failed to count memos")
	}

	outgoing, err := s.outgoingRelationMap(ctx, req.UID)
	if err != nil {
		return nil, err
	}

	results := make([]*Result, 0, len(memos))
	for _, memo := range memos {
		results = append(results, &Result{Memo: memo, RelatedMemoIDs: outgoing[memo.ID]})
	}
	return &ListMemosResult{Memos: results, Total: total}, nil
}

// GetMemosByIDs returns the owner's memos for ids, preserving input order.
// Unknown ids are skipped.
func (s *Service) GetMemosByIDs(ctx context.Context, uid string, ids []string) ([]*store.Memo, error) {
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

// SearchRequest is the input for VectorSearch.
type SearchRequest struct {
	UID   string
	Query string

	// Limit bounds the number of hits; defaults to DefaultSearchLimit.
	Limit int

	// Threshold is the minimum similarity in [0, 1]; hits below it are
	// dropped.
	Threshold float64
}

// SearchHit is one similarity search result. The embedding vector itself is
// never part of the payload.
type SearchHit struct {
	Memo       *store.Memo
	Similarity float64
}

// VectorSearch embeds the query and returns the owner's nearest memos with
// similarity at or above the threshold, most similar first.
func (s *Service) VectorSearch(ctx context.Context, req *SearchRequest) ([]*SearchHit, error) {
	if req.UID == "" {
		return nil, ierrors.New(ierrors.CodeInvalidArgument, "uid is required")
	}
	if strings.TrimSpace(req.Query) == "" {
		return nil, ierrors.New(ierrors.CodeInvalidArgument, "query is required")
	}
	limit := req.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	vector, err := s.embedder.GetOrCreate(ctx, req.Query)
	if err != nil {
		return nil, ierrors.Wrap(err, ierrors.CodeProviderFailure, "failed to embed search query")
	}

	results, err := s.vec.Search(ctx, Collection, vector, limit, map[string]string{"uid": req.UID})
	if err != nil {
		return nil, ierrors.Wrap(err, ierrors.CodeStoreFailure, "failed to search memo vectors")
	}

	ids := make([]string, 0, len(results))
	similarities := make(map[string]float64, len(results))
	for _, r := range results {
		// Raw cosine distance in [0, 2] maps to similarity in [0, 1].
		similarity := 1 - float64(r.Distance)/2
		if similarity < req.Threshold {
			continue
		}
		ids = append(ids, r.ID)
		similarities[r.ID] = similarity
	}
	if len(ids) == 0 {
		return []*SearchHit{}, nil
	}

	memos, err := s.store.ListMemos(ctx, &store.FindMemo{UID: &req.UID, IDs: ids})
	if err != nil {
		return nil, ierrors.Wrap(err, ierrors.CodeStoreFailure, "failed to load search hits")
	}
	byID := make(map[string]*store.Memo, len(memos))
	for _, m := range memos {
		byID[m.ID] = m
	}

	hits := make([]*SearchHit, 0, len(ids))
	for _, id := range ids {
		memo, ok := byID[id]
		if !ok {
			// Vector record without a scalar row; the reconcile pass cleans
			// these up.
			slog.Warn("search hit has no scalar row", slog.String("memoId", id))
			continue
		}
		hits = append(hits, &SearchHit{Memo: memo, Similarity: similarities[id]})
	}
	return hits, nil
}

// resolveTags maps tag names to ids plus canonical stored names, in order.
func (s *Service) resolveTags(ctx context.Context, uid string, names []string) ([]string, []string, error) {
	if len(names) == 0 {
		return nil, nil, nil
	}
	ids, err := s.tags.ResolveTagNamesToIDs(ctx, uid, names)
	if err != nil {
		return nil, nil, err
	}
	tags, err := s.store.ListTags(ctx, &store.FindTag{UID: &uid, IDs: ids})
	if err != nil {
		return nil, nil, err
	}
	nameByID := make(map[string]string, len(tags))
	for _, t := range tags {
		nameByID[t.ID] = t.Name
	}
	canonical := make([]string, 0, len(ids))
	for _, id := range ids {
		canonical = append(canonical, nameByID[id])
	}
	return ids, canonical, nil
}

// resolveAttachments loads registry rows for ids and snapshots them. Missing
// ids are logged and skipped; the snapshots are denormalized copies.
func (s *Service) resolveAttachments(ctx context.Context, uid string, ids []string) ([]store.AttachmentSnapshot, []string) {
	if len(ids) == 0 {
		return []store.AttachmentSnapshot{}, nil
	}
	attachments, err := s.store.ListAttachments(ctx, &store.FindAttachment{UID: &uid, IDs: ids})
	if err != nil {
		slog.Warn("failed to resolve attachments", slog.String("error", err.Error()))
		return []store.AttachmentSnapshot{}, []string{fmt.Sprintf("attachments not resolved: %v", err)}
	}

	byID := make(map[string]*store.Attachment, len(attachments))
	for _, a := range attachments {
		byID[a.ID] = a
	}

	warnings := []string{}
	snapshots := make([]store.AttachmentSnapshot, 0, len(ids))
	for _, id := range ids {
		a, ok := byID[id]
		if !ok {
			slog.Warn("attachment not found, skipping", slog.String("attachmentId", id))
			warnings = append(warnings, fmt.Sprintf("attachment %s not found", id))
			continue
		}
		snapshots = append(snapshots, a.Snapshot())
	}
	return snapshots, warnings
}

// adjustTagCounters increments counters for added tags and decrements for
// removed ones. Counter failures are warnings, never fatal.
func (s *Service) adjustTagCounters(ctx context.Context, uid string, before, after []string) []string {
	beforeSet := make(map[string]struct{}, len(before))
	for _, id := range before {
		beforeSet[id] = struct{}{}
	}
	afterSet := make(map[string]struct{}, len(after))
	for _, id := range after {
		afterSet[id] = struct{}{}
	}

	warnings := []string{}
	for _, id := range after {
		if _, ok := beforeSet[id]; ok {
			continue
		}
		if err := s.tags.IncrementUsageCount(ctx, uid, id); err != nil {
			slog.Warn("failed to increment tag usage",
				slog.String("tagId", id),
				slog.String("error", err.Error()))
			warnings = append(warnings, fmt.Sprintf("tag %s usage not incremented: %v", id, err))
		}
	}
	for _, id := range before {
		if _, ok := afterSet[id]; ok {
			continue
		}
		if err := s.tags.DecrementUsageCount(ctx, uid, id); err != nil {
			slog.Warn("failed to decrement tag usage",
				slog.String("tagId", id),
				slog.String("error", err.Error()))
			warnings = append(warnings, fmt.Sprintf("tag %s usage not decremented: %v", id, err))
		}
	}
	return warnings
}

// refreshVectorFields rewrites the vector record with its stored vector and
// updated scalar fields.
func (s *Service) refreshVectorFields(ctx context.Context, memo *store.Memo) error {
	rec, found, err := s.vec.Get(ctx, Collection, memo.ID)
	if err != nil {
		return err
	}
	if !found {
		// The reconcile pass will recompute the missing vector.
		return nil
	}
	rec.Fields = vectorFields(memo)
	return s.vec.Upsert(ctx, Collection, rec)
}

func (s *Service) relatedMemoIDs(ctx context.Context, uid, memoID string) ([]string, error) {
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
	return ids, nil
}

// outgoingRelationMap indexes all of the owner's edges by source memo.
func (s *Service) outgoingRelationMap(ctx context.Context, uid string) (map[string][]string, error) {
	relations, err := s.store.ListMemoRelations(ctx, &store.FindMemoRelation{UID: &uid})
	if err != nil {
		return nil, ierrors.Wrap(err, ierrors.CodeStoreFailure, "failed to list relations")
	}
	out := make(map[string][]string)
	for _, r := range relations {
		out[r.SourceMemoID] = append(out[r.SourceMemoID], r.TargetMemoID)
	}
	return out, nil
}

// vectorFields derives the scalar fields stored beside the memo vector.
func vectorFields(memo *store.Memo) map[string]string {
	fields := map[string]string{
		"uid":        memo.UID,
		"type":       string(memo.Type),
		"created_ts": strconv.FormatInt(memo.CreatedTs, 10),
	}
	if memo.CategoryID != nil {
		fields["category_id"] = *memo.CategoryID
	}
	return fields
}
