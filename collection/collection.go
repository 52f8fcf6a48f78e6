// Package collection binds one VectorStore + one HNSWIndex to an on-disk
// directory, exposing the end-user contract: add / get / remove / search /
// save / load. It is the single-writer/multi-reader unit of the system —
// independent Collections need no cross-coordination (§5).
package collection

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/torinriley/vecstream/hnsw"
	"github.com/torinriley/vecstream/logging"
	"github.com/torinriley/vecstream/metadata"
	"github.com/torinriley/vecstream/vectorstore"
)

// ErrInvalidParameter is returned for out-of-range arguments (k <= 0 in
// SearchSimilar; an ef <= 0 is not an error and selects the default).
var ErrInvalidParameter = errors.New("collection: invalid parameter")

// ErrCorruptStore is returned by Load when persisted files fail validation.
var ErrCorruptStore = errors.New("collection: corrupt store")

// ErrIOError wraps filesystem failures encountered during Save/Load.
var ErrIOError = errors.New("collection: io error")

// defaultRebuildThreshold is the deleted-fraction above which Collection
// MAY rebuild its HNSW index, per §4.2.
const defaultRebuildThreshold = 0.25

// Options configures a new or reopened Collection.
type Options struct {
	Logger           *logging.Logger
	RebuildThreshold float64
	M                int
	EfConstruction   int
	EfSearch         int
	Seed             int64
}

// Option mutates Options at construction time.
type Option func(*Options)

// WithLogger sets the structured logger used for add/remove/search/save/
// load/rebuild events.
func WithLogger(logger *logging.Logger) Option {
	return func(o *Options) { o.Logger = logger }
}

// WithRebuildThreshold overrides the default 0.25 deleted-fraction
// rebuild trigger.
func WithRebuildThreshold(fraction float64) Option {
	return func(o *Options) { o.RebuildThreshold = fraction }
}

// WithHNSWParams overrides the HNSW construction parameters used the first
// time a vector is added (the dimension-fixing insert).
func WithHNSWParams(m, efConstruction, efSearch int, seed int64) Option {
	return func(o *Options) {
		o.M, o.EfConstruction, o.EfSearch, o.Seed = m, efConstruction, efSearch, seed
	}
}

func applyOptions(optFns []Option) Options {
	o := Options{
		Logger:           logging.NoopLogger(),
		RebuildThreshold: defaultRebuildThreshold,
		M:                16,
		EfConstruction:   200,
		EfSearch:         50,
		Seed:             1,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}

// SearchResult is a single (id, similarity) match.
type SearchResult struct {
	ID         string
	Similarity float32
}

// Stats summarizes a Collection's current state, per §4.4.
type Stats struct {
	Size             int
	Dimension        int
	M                int
	EfConstruction   int
	EfSearch         int
	Dirty            bool
	DeletedFraction  float64
	RecallHint       string
}

// Collection encapsulates one (VectorStore, HNSWIndex) pair bound to a
// directory.
type Collection struct {
	mu  sync.RWMutex
	dir string

	store *vectorstore.Store
	index *hnsw.Index

	dimension int // 0 until the first successful add fixes it

	fieldIndex  *metadata.FieldIndex
	rowOf       map[string]uint32
	idOf        map[uint32]string // inverse of rowOf, used to map FieldIndex.Restrict's bitmap back to ids
	nextRow     uint32
	insertOrder []string // row order for persistence (ids.json), append-only; removed ids are filtered out on save

	dirty        bool
	insertCount  int
	removedCount int

	lastK int // most recently requested k, used by the RecallHint heuristic

	createdAt time.Time // fixed at first save and preserved across re-saves, so config.json stays idempotent

	lockOwner string // set while this Collection holds {dir}/.lock

	opts Options
}

// New creates an empty Collection bound to dir. dir is not created or
// touched until Save.
func New(dir string, optFns ...Option) *Collection {
	return &Collection{
		dir:        dir,
		store:      vectorstore.New(),
		fieldIndex: metadata.NewFieldIndex(),
		rowOf:      make(map[string]uint32),
		idOf:       make(map[uint32]string),
		opts:       applyOptions(optFns),
	}
}

// AddVector stores the (id, vec, meta) record and inserts it into the HNSW
// index. If the index insert fails, the store add is rolled back so no
// partial state survives (§4.4 atomicity).
func (c *Collection) AddVector(id string, vec []float32, meta metadata.Document) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.store.Add(id, vec, meta); err != nil {
		c.opts.Logger.LogAdd(id, len(vec), err)
		return err
	}

	if c.index == nil {
		c.dimension = len(vec)
		c.index = hnsw.New(c.dimension,
			hnsw.WithM(c.opts.M),
			hnsw.WithEfConstruction(c.opts.EfConstruction),
			hnsw.WithEfSearch(c.opts.EfSearch),
			hnsw.WithSeed(c.opts.Seed),
		)
	}

	if err := c.index.Insert(id, vec); err != nil {
		_ = c.store.Remove(id) // rollback
		c.opts.Logger.LogAdd(id, len(vec), err)
		return err
	}

	row := c.nextRow
	c.nextRow++
	c.rowOf[id] = row
	c.idOf[row] = id
	c.fieldIndex.Index(row, meta)
	c.insertOrder = append(c.insertOrder, id)

	c.dirty = true
	c.insertCount++
	c.opts.Logger.LogAdd(id, len(vec), nil)
	return nil
}

// SetDir repoints the collection at a new backing directory, after its
// caller has already moved the directory on disk (e.g. a manager rename).
func (c *Collection) SetDir(dir string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dir = dir
}

// GetVector returns id's vector, or vectorstore.ErrNotFound.
func (c *Collection) GetVector(id string) ([]float32, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	vec, _, err := c.store.Get(id)
	return vec, err
}

// GetVectorWithMetadata returns id's vector and metadata, or
// vectorstore.ErrNotFound.
func (c *Collection) GetVectorWithMetadata(id string) ([]float32, metadata.Document, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.store.Get(id)
}

// RemoveVector deletes id from both the store and the index (two-phase:
// the store delete is only committed after the index delete succeeds).
func (c *Collection) RemoveVector(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, meta, err := c.store.Get(id)
	if err != nil {
		c.opts.Logger.LogRemove(id, err)
		return err
	}

	if c.index != nil {
		if err := c.index.Remove(id); err != nil {
			c.opts.Logger.LogRemove(id, err)
			return err
		}
	}
	if err := c.store.Remove(id); err != nil {
		c.opts.Logger.LogRemove(id, err)
		return err
	}

	if row, ok := c.rowOf[id]; ok {
		c.fieldIndex.Unindex(row, meta)
		delete(c.rowOf, id)
		delete(c.idOf, row)
	}

	c.dirty = true
	c.removedCount++
	c.opts.Logger.LogRemove(id, nil)
	return nil
}

// SearchSimilar validates |query| = D, runs filtered or plain HNSW search,
// maps distances to similarities, optionally drops results below
// threshold, and returns up to k (id, similarity) tuples sorted by
// descending similarity. Returns an empty slice (not an error) if the
// index is empty or query has length 0.
func (c *Collection) SearchSimilar(query []float32, k int, ef int, filter metadata.Filter, threshold *float32) ([]SearchResult, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive", ErrInvalidParameter)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	c.lastK = k

	if c.index == nil || len(query) == 0 {
		return []SearchResult{}, nil
	}
	if len(query) != c.dimension {
		return nil, &DimensionMismatchError{Expected: c.dimension, Actual: len(query)}
	}

	if ef <= 0 {
		ef = c.opts.EfSearch
	}

	var results []SearchResult
	var searchErr error
	if filter == nil {
		hits, err := c.index.Search(query, k, ef)
		if err != nil {
			searchErr = err
		} else {
			results = toSearchResults(hits)
		}
	} else {
		predicate := func(id string) bool {
			_, meta, err := c.store.Get(id)
			if err != nil {
				return false
			}
			return filter.Matches(meta)
		}
		hits, found, err := c.index.SearchFiltered(query, k, ef, predicate)
		if err != nil {
			searchErr = err
		} else if !found {
			// Fall back to an exact scan to guarantee correctness over
			// soundness, per §4.2. fieldIndex.Restrict pre-screens the scan
			// down to candidate rows when filter's entries are indexable,
			// so this is sub-linear in store size rather than a full
			// doc-by-doc scan.
			var brute []vectorstore.Result
			if ids, restricted := c.candidateIDs(filter); restricted {
				brute, err = c.store.SearchBruteSubset(query, k, filter, ids)
			} else {
				brute, err = c.store.SearchBrute(query, k, filter)
			}
			if err != nil {
				searchErr = err
			} else {
				results = make([]SearchResult, len(brute))
				for i, r := range brute {
					results[i] = SearchResult{ID: r.ID, Similarity: r.Similarity}
				}
			}
		} else {
			results = toSearchResults(hits)
		}
	}

	c.opts.Logger.LogSearch(k, len(results), filter != nil, searchErr)
	if searchErr != nil {
		return nil, searchErr
	}

	if threshold != nil {
		filtered := results[:0]
		for _, r := range results {
			if r.Similarity >= *threshold {
				filtered = append(filtered, r)
			}
		}
		results = filtered
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return results[i].ID < results[j].ID
	})

	return results, nil
}

// candidateIDs narrows filter's brute-force fallback scan using
// fieldIndex's bitmap pre-screen, mapping the restricted row set back to
// ids via idOf. ok is false when no filter entry was indexable, in which
// case the caller must scan every row.
func (c *Collection) candidateIDs(filter metadata.Filter) (ids []string, ok bool) {
	rows, restricted := c.fieldIndex.Restrict(filter)
	if !restricted {
		return nil, false
	}
	ids = make([]string, 0, rows.GetCardinality())
	it := rows.Iterator()
	for it.HasNext() {
		if id, found := c.idOf[it.Next()]; found {
			ids = append(ids, id)
		}
	}
	return ids, true
}

func toSearchResults(hits []hnsw.Result) []SearchResult {
	out := make([]SearchResult, len(hits))
	for i, h := range hits {
		out[i] = SearchResult{ID: h.ID, Similarity: 1 - h.Distance}
	}
	return out
}

// DimensionMismatchError indicates a query vector's length didn't match the
// collection's established dimension.
type DimensionMismatchError struct {
	Expected int
	Actual   int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("collection: dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// Stats returns a snapshot of the collection's current state.
func (c *Collection) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	size := c.store.Size()
	var deletedFraction float64
	total := c.insertCount
	if total > 0 {
		deletedFraction = float64(c.removedCount) / float64(total)
	}

	recall := "ok"
	if c.lastK > 0 && c.opts.EfSearch < 2*c.lastK {
		recall = "efSearch may be under-provisioned for the requested k"
	}

	return Stats{
		Size:            size,
		Dimension:       c.dimension,
		M:               c.opts.M,
		EfConstruction:  c.opts.EfConstruction,
		EfSearch:        c.opts.EfSearch,
		Dirty:           c.dirty,
		DeletedFraction: deletedFraction,
		RecallHint:      recall,
	}
}

// ShouldRebuild reports whether the deleted-fraction exceeds the
// configured rebuild threshold.
func (c *Collection) ShouldRebuild() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.insertCount == 0 {
		return false
	}
	return float64(c.removedCount)/float64(c.insertCount) > c.opts.RebuildThreshold
}

// Rebuild performs a full reinsertion of every live vector into a fresh
// HNSW index under a new seed, per §4.2.
func (c *Collection) Rebuild(seed int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.index == nil {
		return nil
	}

	fresh := hnsw.New(c.dimension,
		hnsw.WithM(c.opts.M),
		hnsw.WithEfConstruction(c.opts.EfConstruction),
		hnsw.WithEfSearch(c.opts.EfSearch),
		hnsw.WithSeed(seed),
	)

	live := make([]string, 0, len(c.insertOrder))
	for _, id := range c.insertOrder {
		if _, _, err := c.store.Get(id); err == nil {
			live = append(live, id)
		}
	}

	for _, id := range live {
		vec, _, err := c.store.Get(id)
		if err != nil {
			continue
		}
		if err := fresh.Insert(id, vec); err != nil {
			c.opts.Logger.LogRebuild("deleted-fraction threshold exceeded", len(live), err)
			return err
		}
	}

	c.index = fresh
	c.opts.Seed = seed
	c.insertOrder = live
	c.insertCount = len(live)
	c.removedCount = 0
	c.dirty = true
	c.opts.Logger.LogRebuild("deleted-fraction threshold exceeded", len(live), nil)
	return nil
}
