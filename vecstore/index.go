package vecstore

import (
	"github.com/pkg/errors"
)

// IndexKind selects the physical index layout for a scalar column.
type IndexKind string

const (
	// IndexSorted is an ordered index supporting equality, range and sort.
	IndexSorted IndexKind = "sorted"
	// IndexBitmap is a low-cardinality index for fast equality filtering on
	// fields with few distinct values (status flags, enumerated types).
	IndexBitmap IndexKind = "bitmap"
)

// ErrIndexExists is returned when creating an index that already exists.
// Callers treat it as a benign signal, not a failure.
var ErrIndexExists = errors.New("scalar index already exists")

// CreateScalarIndex registers an index of the given kind on a scalar column
// of the collection. Creation is idempotent at the registry level: repeating
// a creation returns ErrIndexExists.
func (s *Store) CreateScalarIndex(collection, column string, kind IndexKind) error {
	if err := s.EnsureCollection(collection); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	cols, ok := s.indexes[collection]
	if !ok {
		cols = make(map[string]IndexKind)
		s.indexes[collection] = cols
	}
	if _, ok := cols[column]; ok {
		return ErrIndexExists
	}
	cols[column] = kind
	return nil
}

// ScalarIndexes returns the registered indexes for a collection, keyed by
// column name.
func (s *Store) ScalarIndexes(collection string) map[string]IndexKind {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]IndexKind, len(s.indexes[collection]))
	for col, kind := range s.indexes[collection] {
		out[col] = kind
	}
	return out
}
