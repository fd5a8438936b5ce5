// Package vecstore wraps an embedded vector database (chromem-go) behind the
// adapter used by the memo coordinator and the migration manager. Vectors and
// a small set of scalar fields are stored per record; scalar fields back the
// predicate filters of similarity search.
package vecstore

import (
	"context"
	"strings"
	"sync"

	chromem "github.com/philippgille/chromem-go"
	"github.com/pkg/errors"
)

// Record is one row of a vector collection.
type Record struct {
	ID      string
	Vector  []float32
	Content string
	// Fields are scalar columns attached to the record, usable as equality
	// filters during search (e.g. uid, type).
	Fields map[string]string
}

// SearchResult is one KNN hit. Distance is the raw cosine distance in [0, 2];
// callers normalize it to a similarity score.
type SearchResult struct {
	ID       string
	Distance float32
	Content  string
	Fields   map[string]string
}

// Store is the embedded vector store adapter. Safe for concurrent use.
type Store struct {
	db   *chromem.DB
	path string

	mu          sync.RWMutex
	collections map[string]*chromem.Collection
	indexes     map[string]map[string]IndexKind
}

// New opens (or creates) a persistent vector store under dir. An empty dir
// opens an in-memory store, used by tests.
func New(dir string) (*Store, error) {
	var db *chromem.DB
	if dir == "" {
		db = chromem.NewDB()
	} else {
		var err error
		db, err = chromem.NewPersistentDB(dir, false)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to open vector store at %s", dir)
		}
	}
	return &Store{
		db:          db,
		path:        dir,
		collections: make(map[string]*chromem.Collection),
		indexes:     make(map[string]map[string]IndexKind),
	}, nil
}

// Path returns the on-disk directory, or "" for in-memory stores.
func (s *Store) Path() string {
	return s.path
}

// EnsureCollection creates the named collection if it does not exist.
func (s *Store) EnsureCollection(name string) error {
	_, err := s.collection(name)
	return err
}

func (s *Store) collection(name string) (*chromem.Collection, error) {
	s.mu.RLock()
	col, ok := s.collections[name]
	s.mu.RUnlock()
	if ok {
		return col, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if col, ok := s.collections[name]; ok {
		return col, nil
	}
	// Embeddings are always supplied by the caller, so no embedding function
	// is wired; the default is never invoked.
	col, err := s.db.GetOrCreateCollection(name, nil, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create collection %s", name)
	}
	s.collections[name] = col
	return col, nil
}

// Upsert writes a record, replacing any previous record with the same ID.
func (s *Store) Upsert(ctx context.Context, collection string, rec Record) error {
	col, err := s.collection(collection)
	if err != nil {
		return err
	}
	doc := chromem.Document{
		ID:        rec.ID,
		Content:   rec.Content,
		Embedding: rec.Vector,
		Metadata:  rec.Fields,
	}
	if err := col.AddDocument(ctx, doc); err != nil {
		return errors.Wrapf(err, "failed to upsert record %s", rec.ID)
	}
	return nil
}

// Get returns the record with the given ID, or found=false.
func (s *Store) Get(ctx context.Context, collection, id string) (Record, bool, error) {
	col, err := s.collection(collection)
	if err != nil {
		return Record{}, false, err
	}
	doc, err := col.GetByID(ctx, id)
	if err != nil {
		// chromem reports missing documents as an error rather than a
		// sentinel; anything else is a real store failure.
		if isNotFoundError(err) {
			return Record{}, false, nil
		}
		return Record{}, false, errors.Wrapf(err, "failed to read record %s", id)
	}
	return Record{
		ID:      doc.ID,
		Vector:  doc.Embedding,
		Content: doc.Content,
		Fields:  doc.Metadata,
	}, true, nil
}

// Delete removes records by ID. Missing IDs are not an error.
func (s *Store) Delete(ctx context.Context, collection string, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	col, err := s.collection(collection)
	if err != nil {
		return err
	}
	if err := col.Delete(ctx, nil, nil, ids...); err != nil {
		return errors.Wrap(err, "failed to delete records")
	}
	return nil
}

// Count returns the number of records in the collection.
func (s *Store) Count(collection string) (int, error) {
	col, err := s.collection(collection)
	if err != nil {
		return 0, err
	}
	return col.Count(), nil
}

// Search performs k-nearest-neighbor retrieval with equality filters on
// scalar fields. Results are ordered by ascending distance. k is clamped to
// the collection size; an empty collection yields no results.
func (s *Store) Search(ctx context.Context, collection string, vector []float32, k int, where map[string]string) ([]SearchResult, error) {
	col, err := s.collection(collection)
	if err != nil {
		return nil, err
	}
	count := col.Count()
	if count == 0 {
		return nil, nil
	}
	if k > count {
		k = count
	}
	if k <= 0 {
		return nil, nil
	}

	// chromem requires k <= the number of documents matching the filter,
	// which it does not expose up front. Shrink k until the query fits.
	var results []chromem.Result
	for ; k >= 1; k-- {
		results, err = col.QueryEmbedding(ctx, vector, k, where, nil)
		if err == nil {
			break
		}
		if isInsufficientDocsError(err) {
			if k == 1 {
				return nil, nil
			}
			continue
		}
		return nil, errors.Wrap(err, "failed to query collection")
	}

	out := make([]SearchResult, 0, len(results))
	for _, r := range results {
		out = append(out, SearchResult{
			ID: r.ID,
			// chromem reports cosine similarity in [-1, 1]; the raw cosine
			// distance is 1 - similarity, bounded at 2.
			Distance: 1 - r.Similarity,
			Content:  r.Content,
			Fields:   r.Metadata,
		})
	}
	return out, nil
}

// isInsufficientDocsError matches chromem's error for a k larger than the
// filtered document count.
func isInsufficientDocsError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "nResults must be") || strings.Contains(msg, "number of documents")
}

// isNotFoundError matches chromem's error for a GetByID on a missing
// document.
func isNotFoundError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "not found")
}
