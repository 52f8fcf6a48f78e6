// Package vectorstore implements the in-memory mapping from identifier to
// (vector, metadata) at the bottom of the stack: dimensional uniformity and
// identifier uniqueness, plus the exact brute-force cosine kNN used as a
// correctness fallback and for tests.
package vectorstore

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/torinriley/vecstream/distance"
	"github.com/torinriley/vecstream/metadata"
)

// ErrDuplicateID is returned by Add when id is already present.
type ErrDuplicateID struct {
	ID string
}

func (e *ErrDuplicateID) Error() string {
	return fmt.Sprintf("vectorstore: duplicate id %q", e.ID)
}

// ErrDimensionMismatch is returned when a vector's length does not match the
// store's established dimension.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("vectorstore: dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// ErrEmptyVector is returned by Add when the vector has length 0.
var ErrEmptyVector = errors.New("vectorstore: empty vector")

// ErrNotFound is returned by Get/Remove when id is absent.
var ErrNotFound = errors.New("vectorstore: not found")

// record is the internal per-id storage unit: the caller-supplied vector
// plus a memoized L2-normalized copy (invariant 5, §3) and its metadata.
type record struct {
	vec        []float32
	normalized []float32 // nil if vec has zero norm
	meta       metadata.Document
}

// Store is a concurrency-safe mapping from id to (vector, metadata). The
// dimension is fixed by the first successful Add and enforced thereafter.
type Store struct {
	mu        sync.RWMutex
	records   map[string]*record
	dimension int // 0 means not yet established
}

// New returns an empty Store.
func New() *Store {
	return &Store{records: make(map[string]*record)}
}

// Add inserts a new record. Fails with ErrDuplicateID if id exists,
// ErrDimensionMismatch if the store's dimension is already fixed and len(vec)
// differs, ErrEmptyVector if len(vec) == 0. The first successful Add fixes
// the store's dimension.
func (s *Store) Add(id string, vec []float32, meta metadata.Document) error {
	if len(vec) == 0 {
		return ErrEmptyVector
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[id]; exists {
		return &ErrDuplicateID{ID: id}
	}
	if s.dimension == 0 {
		s.dimension = len(vec)
	} else if len(vec) != s.dimension {
		return &ErrDimensionMismatch{Expected: s.dimension, Actual: len(vec)}
	}

	stored := make([]float32, len(vec))
	copy(stored, vec)
	normalized, ok := distance.NormalizeL2Copy(stored)
	if !ok {
		normalized = nil
	}

	if meta == nil {
		meta = metadata.Document{}
	}
	s.records[id] = &record{vec: stored, normalized: normalized, meta: meta}
	return nil
}

// Get returns the vector and metadata for id, or ErrNotFound.
func (s *Store) Get(id string) ([]float32, metadata.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[id]
	if !ok {
		return nil, nil, ErrNotFound
	}
	out := make([]float32, len(r.vec))
	copy(out, r.vec)
	return out, r.meta, nil
}

// Remove deletes id, or returns ErrNotFound if absent.
func (s *Store) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[id]; !ok {
		return ErrNotFound
	}
	delete(s.records, id)
	return nil
}

// Size returns the number of live records.
func (s *Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Dimension returns the established dimension, or 0 if no record has been
// added yet.
func (s *Store) Dimension() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dimension
}

// Ids returns every live id, in no particular order.
func (s *Store) Ids() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.records))
	for id := range s.records {
		out = append(out, id)
	}
	return out
}

// Result is a single (id, similarity) match.
type Result struct {
	ID         string
	Similarity float32
}

// SearchBrute performs an exact cosine kNN scan over every record,
// optionally restricted to documents matching filter (nil filter matches
// everything). Results are sorted by descending similarity, ties broken by
// ascending id, capped at k.
func (s *Store) SearchBrute(query []float32, k int, filter metadata.Filter) ([]Result, error) {
	return s.searchBrute(query, k, filter, nil)
}

// SearchBruteSubset is SearchBrute restricted to ids: filter is still
// applied to each candidate (ids is a pre-screen, not proof of the full
// match), but every record outside the set is skipped. Callers use this
// after a metadata.FieldIndex candidate restriction narrows the row set,
// turning the fallback scan sub-linear in store size.
func (s *Store) SearchBruteSubset(query []float32, k int, filter metadata.Filter, ids []string) ([]Result, error) {
	return s.searchBrute(query, k, filter, ids)
}

func (s *Store) searchBrute(query []float32, k int, filter metadata.Filter, ids []string) ([]Result, error) {
	if k <= 0 {
		return nil, nil
	}

	qNorm, ok := distance.NormalizeL2Copy(query)
	if !ok {
		qNorm = query
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.dimension != 0 && len(query) != s.dimension {
		return nil, &ErrDimensionMismatch{Expected: s.dimension, Actual: len(query)}
	}

	consider := func(results []Result, id string, r *record) []Result {
		if filter != nil && !filter.Matches(r.meta) {
			return results
		}
		var sim float32
		if r.normalized != nil && ok {
			sim = distance.Dot(qNorm, r.normalized)
		}
		return append(results, Result{ID: id, Similarity: sim})
	}

	var results []Result
	if ids != nil {
		results = make([]Result, 0, len(ids))
		for _, id := range ids {
			if r, found := s.records[id]; found {
				results = consider(results, id, r)
			}
		}
	} else {
		results = make([]Result, 0, len(s.records))
		for id, r := range s.records {
			results = consider(results, id, r)
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return results[i].ID < results[j].ID
	})

	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Normalized returns the memoized L2-normalized copy of id's vector, and
// whether one exists (false for a zero-norm vector). The hnsw package keeps
// its own normalized copies and does not call this.
func (s *Store) Normalized(id string) ([]float32, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[id]
	if !ok || r.normalized == nil {
		return nil, false
	}
	return r.normalized, true
}
