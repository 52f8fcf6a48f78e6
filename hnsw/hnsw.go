// Package hnsw implements the Hierarchical Navigable Small World
// approximate-nearest-neighbor graph: insert, plain k-NN search, filtered
// search with an oversampling retry, and deletion with entry-point
// replacement.
package hnsw

import (
	"container/heap"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"

	"github.com/bits-and-blooms/bitset"

	"github.com/torinriley/vecstream/distance"
)

// ErrDimensionMismatch is returned by Insert/Search when the supplied
// vector's length does not match the index's established dimension.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("hnsw: dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// ErrDuplicateID is returned by Insert when id is already present.
type ErrDuplicateID struct {
	ID string
}

func (e *ErrDuplicateID) Error() string {
	return fmt.Sprintf("hnsw: duplicate id %q", e.ID)
}

// ErrNotFound is returned by Remove when id is absent.
var ErrNotFound = errors.New("hnsw: not found")

// ErrIndexInconsistency marks an internal invariant violation (e.g. a
// neighbor reference to an id no longer present in the graph). It is fatal
// for the affected index.
var ErrIndexInconsistency = errors.New("hnsw: index inconsistency")

// Options configures an Index. Zero-value fields are replaced by
// DefaultOptions at construction.
type Options struct {
	M              int   // target/"Mmax" neighbor count per layer > 0
	EfConstruction int   // candidate pool size used while inserting
	EfSearch       int   // default candidate pool size used while searching
	Seed           int64 // RNG seed for level assignment; fixed for reproducible tests
}

// DefaultOptions mirrors the defaults named in §4.2: M=16, efConstruction=200,
// efSearch=50.
var DefaultOptions = Options{
	M:              16,
	EfConstruction: 200,
	EfSearch:       50,
	Seed:           1,
}

// Option mutates an Options value at construction time.
type Option func(*Options)

// WithM overrides the neighbor-count target M.
func WithM(m int) Option { return func(o *Options) { o.M = m } }

// WithEfConstruction overrides the insertion candidate-pool size.
func WithEfConstruction(ef int) Option { return func(o *Options) { o.EfConstruction = ef } }

// WithEfSearch overrides the default search candidate-pool size.
func WithEfSearch(ef int) Option { return func(o *Options) { o.EfSearch = ef } }

// WithSeed overrides the level-assignment RNG seed.
func WithSeed(seed int64) Option { return func(o *Options) { o.Seed = seed } }

// node is one graph vertex: a normalized vector copy (used for distance
// computation, memoized per invariant 5), its assigned level, and its
// neighbor lists indexed by layer.
type node struct {
	id        string
	vector    []float32 // L2-normalized, or all-zero if the source had zero norm
	level     int
	neighbors [][]string // neighbors[l] for 0 <= l <= level
}

// Index is the HNSW graph. Safe for concurrent reads; writes (Insert,
// Remove) require exclusive access, enforced here with an internal mutex so
// the type is usable standalone, though Collection additionally serializes
// writers at a higher level per §5.
type Index struct {
	mu sync.RWMutex

	dimension int
	opts      Options
	mmax0     int
	ml        float64
	rng       *rand.Rand

	nodes      map[string]*node
	entryPoint string
	maxLevel   int
}

// New creates an empty Index for vectors of the given dimension.
func New(dimension int, optFns ...Option) *Index {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.M < 2 {
		opts.M = 2 // M=1 would divide by log(1)=0
	}

	return &Index{
		dimension: dimension,
		opts:      opts,
		mmax0:     2 * opts.M,
		ml:        1 / math.Log(float64(opts.M)),
		rng:       rand.New(rand.NewSource(opts.Seed)),
		nodes:     make(map[string]*node),
		maxLevel:  -1,
	}
}

// Len returns the number of nodes in the graph.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.nodes)
}

// EntryPoint returns the current entry point id, or "" if the graph is
// empty.
func (idx *Index) EntryPoint() string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.entryPoint
}

func (idx *Index) mmax(level int) int {
	if level == 0 {
		return idx.mmax0
	}
	return idx.opts.M
}

// normalizedCopy returns an L2-normalized copy of v, or an all-zero vector
// of the same length if v has zero norm (so its cosine distance to any
// other vector is the fixed 1 - 0 = 1, matching §4.1's "similarity is 0"
// rule for zero-norm vectors).
func normalizedCopy(v []float32) []float32 {
	out, ok := distance.NormalizeL2Copy(v)
	if !ok {
		for i := range out {
			out[i] = 0
		}
	}
	return out
}

// cosineDist returns the graph's distance metric: 1 - cosine similarity,
// evaluated directly on the pre-normalized vectors stored in each node.
func cosineDist(a, b []float32) float32 {
	return 1 - distance.Dot(a, b)
}

// Insert adds a new node. Fails with ErrDimensionMismatch or ErrDuplicateID;
// on any such failure no partial state (edges, node) is left behind.
func (idx *Index) Insert(id string, vec []float32) error {
	if len(vec) != idx.dimension {
		return &ErrDimensionMismatch{Expected: idx.dimension, Actual: len(vec)}
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, exists := idx.nodes[id]; exists {
		return &ErrDuplicateID{ID: id}
	}

	level := int(math.Floor(-math.Log(idx.rng.Float64()) * idx.ml))
	n := &node{
		id:        id,
		vector:    normalizedCopy(vec),
		level:     level,
		neighbors: make([][]string, level+1),
	}

	if len(idx.nodes) == 0 {
		idx.nodes[id] = n
		idx.entryPoint = id
		idx.maxLevel = level
		return nil
	}

	epID := idx.entryPoint
	epDist := cosineDist(n.vector, idx.nodes[epID].vector)

	// Greedy 1-best descent through layers strictly above the new node's level.
	for layer := idx.maxLevel; layer > level; layer-- {
		epID, epDist = idx.greedyDescend(n.vector, epID, epDist, layer)
	}

	for layer := min(level, idx.maxLevel); layer >= 0; layer-- {
		candidates := idx.searchLayer(n.vector, epID, epDist, idx.opts.EfConstruction, layer)
		selected := selectDiverse(candidates, idx.opts.M, idx.nodes)
		n.neighbors[layer] = make([]string, len(selected))
		for i, c := range selected {
			n.neighbors[layer][i] = c.id
		}
		if len(candidates) > 0 {
			epID, epDist = candidates[0].id, candidates[0].dist
		}
	}

	idx.nodes[id] = n

	for layer := min(level, idx.maxLevel); layer >= 0; layer-- {
		for _, neighborID := range n.neighbors[layer] {
			idx.link(neighborID, id, layer)
		}
	}

	if level > idx.maxLevel {
		idx.entryPoint = id
		idx.maxLevel = level
	}

	return nil
}

// link adds a bidirectional edge (ownerID <-> newID) at layer and trims
// ownerID's neighbor list down to Mmax(layer) by keeping the closest
// neighbors, per invariant 3 ("closest", not the diverse heuristic).
func (idx *Index) link(ownerID, newID string, layer int) {
	owner := idx.nodes[ownerID]
	if len(owner.neighbors) <= layer {
		grown := make([][]string, layer+1)
		copy(grown, owner.neighbors)
		owner.neighbors = grown
	}
	owner.neighbors[layer] = append(owner.neighbors[layer], newID)

	maxConns := idx.mmax(layer)
	if len(owner.neighbors[layer]) <= maxConns {
		return
	}

	type scored struct {
		id   string
		dist float32
	}
	scoredList := make([]scored, len(owner.neighbors[layer]))
	for i, nid := range owner.neighbors[layer] {
		scoredList[i] = scored{id: nid, dist: cosineDist(owner.vector, idx.nodes[nid].vector)}
	}
	sort.Slice(scoredList, func(i, j int) bool {
		if scoredList[i].dist != scoredList[j].dist {
			return scoredList[i].dist < scoredList[j].dist
		}
		return scoredList[i].id < scoredList[j].id
	})

	kept := make([]string, maxConns)
	dropped := scoredList[maxConns:]
	for i := 0; i < maxConns; i++ {
		kept[i] = scoredList[i].id
	}
	owner.neighbors[layer] = kept

	for _, d := range dropped {
		idx.removeEdge(d.id, ownerID, layer)
	}
}

// removeEdge removes one direction of an edge: nodeID's neighbor list at
// layer no longer contains targetID.
func (idx *Index) removeEdge(nodeID, targetID string, layer int) {
	n, ok := idx.nodes[nodeID]
	if !ok || len(n.neighbors) <= layer {
		return
	}
	list := n.neighbors[layer]
	for i, id := range list {
		if id == targetID {
			n.neighbors[layer] = append(list[:i], list[i+1:]...)
			return
		}
	}
}

// greedyDescend runs a 1-best search at layer, refining (currID, currDist)
// toward q.
func (idx *Index) greedyDescend(q []float32, currID string, currDist float32, layer int) (string, float32) {
	changed := true
	for changed {
		changed = false
		curr := idx.nodes[currID]
		if len(curr.neighbors) <= layer {
			continue
		}
		for _, candID := range curr.neighbors[layer] {
			d := cosineDist(q, idx.nodes[candID].vector)
			if d < currDist {
				currID, currDist = candID, d
				changed = true
			}
		}
	}
	return currID, currDist
}

// searchLayer runs the dynamic candidate-pool search described in §4.2 at a
// single layer, starting from (epID, epDist), and returns up to ef results
// sorted by ascending distance. Equal distances are not ordered by id here;
// Search and SearchFiltered apply the id tie-break to their final results.
func (idx *Index) searchLayer(q []float32, epID string, epDist float32, ef int, layer int) []queueItem {
	var visited bitset.BitSet
	slots := make(map[string]uint, 64) // bitset needs uint keys; assigns a stable slot per id on first sight
	epSlot := idx.visitedSlot(slots, epID)
	visited.Set(epSlot)

	candidates := &priorityQueue{order: false}
	heap.Init(candidates)
	heap.Push(candidates, &queueItem{id: epID, dist: epDist})

	results := &priorityQueue{order: true}
	heap.Init(results)
	heap.Push(results, &queueItem{id: epID, dist: epDist})

	for candidates.Len() > 0 {
		worst := results.top().dist
		cand := heap.Pop(candidates).(*queueItem)
		if cand.dist > worst {
			break
		}

		currNode := idx.nodes[cand.id]
		if len(currNode.neighbors) <= layer {
			continue
		}
		for _, nID := range currNode.neighbors[layer] {
			slot := idx.visitedSlot(slots, nID)
			if visited.Test(slot) {
				continue
			}
			visited.Set(slot)

			d := cosineDist(q, idx.nodes[nID].vector)
			item := &queueItem{id: nID, dist: d}

			if results.Len() < ef {
				heap.Push(results, item)
				heap.Push(candidates, &queueItem{id: nID, dist: d})
			} else if d < results.top().dist {
				heap.Pop(results)
				heap.Push(results, item)
				heap.Push(candidates, &queueItem{id: nID, dist: d})
			}
		}
	}

	out := make([]queueItem, results.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = *heap.Pop(results).(*queueItem)
	}
	return out
}

// visitedSlot assigns a stable per-call uint slot to each id the first time
// it's seen, so bitset.BitSet (which only indexes by uint) can track
// visited status without allocating a map[string]bool per search.
func (idx *Index) visitedSlot(seen map[string]uint, id string) uint {
	if slot, ok := seen[id]; ok {
		return slot
	}
	slot := uint(len(seen))
	seen[id] = slot
	return slot
}

// selectDiverse implements the diverse neighbor-selection heuristic of
// §4.2: candidates sorted ascending by distance to the owner; keep c only
// if, for every already-kept neighbor n, dist(c, owner) < dist(c, n). This
// prevents redundant near-collinear neighbors and preserves long-range
// connectivity.
func selectDiverse(candidates []queueItem, m int, nodes map[string]*node) []queueItem {
	selected := make([]queueItem, 0, m)
	for _, c := range candidates {
		if len(selected) >= m {
			break
		}
		keep := true
		for _, s := range selected {
			if cosineDist(nodes[c.id].vector, nodes[s.id].vector) <= c.dist {
				keep = false
				break
			}
		}
		if keep {
			selected = append(selected, c)
		}
	}
	return selected
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// Result is a single (id, distance) match, distance in [0, 2] (1 - cosine
// similarity).
type Result struct {
	ID       string
	Distance float32
}

// Search returns up to k approximate nearest neighbors of query, using a
// candidate pool of size max(ef, k). Results are sorted by ascending
// distance, ties broken by ascending id.
func (idx *Index) Search(query []float32, k int, ef int) ([]Result, error) {
	if len(query) != idx.dimension {
		return nil, &ErrDimensionMismatch{Expected: idx.dimension, Actual: len(query)}
	}
	if k <= 0 {
		return nil, nil
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if len(idx.nodes) == 0 {
		return nil, nil
	}

	q := normalizedCopy(query)
	if ef < k {
		ef = k
	}

	epID, epDist := idx.entryPoint, cosineDist(q, idx.nodes[idx.entryPoint].vector)
	for layer := idx.maxLevel; layer > 0; layer-- {
		epID, epDist = idx.greedyDescend(q, epID, epDist, layer)
	}

	candidates := idx.searchLayer(q, epID, epDist, ef, 0)
	return toResults(candidates, k), nil
}

// SearchFiltered runs the candidate-pool search with an inflated pool
// ef_eff = max(ef, k*oversample), doubling oversample (capped at 64) while
// fewer than k candidates satisfy predicate. It returns the filtered top-k
// and a bool reporting whether at least k matches were found within the
// pool; false means the caller should fall back to an exact scan to
// guarantee correctness over soundness, per §4.2.
func (idx *Index) SearchFiltered(query []float32, k int, ef int, predicate func(id string) bool) ([]Result, bool, error) {
	if len(query) != idx.dimension {
		return nil, false, &ErrDimensionMismatch{Expected: idx.dimension, Actual: len(query)}
	}
	if k <= 0 {
		return nil, true, nil
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if len(idx.nodes) == 0 {
		return nil, true, nil
	}

	q := normalizedCopy(query)

	oversample := 10
	var matched []Result
	for {
		efEff := ef
		if k*oversample > efEff {
			efEff = k * oversample
		}

		epID, epDist := idx.entryPoint, cosineDist(q, idx.nodes[idx.entryPoint].vector)
		for layer := idx.maxLevel; layer > 0; layer-- {
			epID, epDist = idx.greedyDescend(q, epID, epDist, layer)
		}

		pool := idx.searchLayer(q, epID, epDist, efEff, 0)
		matched = matched[:0]
		for _, c := range pool {
			if predicate == nil || predicate(c.id) {
				matched = append(matched, Result{ID: c.id, Distance: c.dist})
			}
		}

		if len(matched) >= k || oversample >= 64 || k*oversample >= len(idx.nodes) {
			break
		}
		oversample *= 2
		if oversample > 64 {
			oversample = 64
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Distance != matched[j].Distance {
			return matched[i].Distance < matched[j].Distance
		}
		return matched[i].ID < matched[j].ID
	})

	found := len(matched) >= k
	if len(matched) > k {
		matched = matched[:k]
	}
	out := make([]Result, len(matched))
	copy(out, matched)
	return out, found, nil
}

func toResults(items []queueItem, k int) []Result {
	sort.Slice(items, func(i, j int) bool {
		if items[i].dist != items[j].dist {
			return items[i].dist < items[j].dist
		}
		return items[i].id < items[j].id
	})
	if len(items) > k {
		items = items[:k]
	}
	out := make([]Result, len(items))
	for i, it := range items {
		out[i] = Result{ID: it.id, Distance: it.dist}
	}
	return out
}

// Remove erases id from every neighbor list at every layer it participated
// in and frees its node. If id was the entry point, a replacement is chosen
// as any remaining node of maximum level, ties broken by smallest id.
// Removal does not rebalance the graph (§4.2).
func (idx *Index) Remove(id string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	n, ok := idx.nodes[id]
	if !ok {
		return ErrNotFound
	}

	for layer := 0; layer <= n.level && layer < len(n.neighbors); layer++ {
		for _, neighborID := range n.neighbors[layer] {
			idx.removeEdge(neighborID, id, layer)
		}
	}
	delete(idx.nodes, id)

	if idx.entryPoint != id {
		return nil
	}

	replacement := ""
	maxLevel := -1
	for nid, nn := range idx.nodes {
		if nn.level > maxLevel || (nn.level == maxLevel && nid < replacement) {
			replacement = nid
			maxLevel = nn.level
		}
	}
	idx.entryPoint = replacement
	idx.maxLevel = maxLevel
	return nil
}

// Snapshot describes the full graph contents in the order required for
// persistence: one entry per id, in the caller-supplied row order.
type Snapshot struct {
	M              int
	Mmax0          int
	EfConstruction int
	Seed           int64
	EntryPoint     string
	// Levels[i] and Neighbors[i] describe ids[i] from the row order passed
	// to Export.
	Levels    []int
	Neighbors [][][]uint32 // Neighbors[i][layer] = row indices of neighbors
}

// Export serializes the graph against the given row order (ids[i] is row
// i), so the caller (collection/persistence) can write index.bin with
// neighbor references as row indices into ids.json, per §6.
func (idx *Index) Export(ids []string) Snapshot {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	rowOf := make(map[string]uint32, len(ids))
	for i, id := range ids {
		rowOf[id] = uint32(i)
	}

	snap := Snapshot{
		M:              idx.opts.M,
		Mmax0:          idx.mmax0,
		EfConstruction: idx.opts.EfConstruction,
		Seed:           idx.opts.Seed,
		EntryPoint:     idx.entryPoint,
		Levels:         make([]int, len(ids)),
		Neighbors:      make([][][]uint32, len(ids)),
	}

	for i, id := range ids {
		n, ok := idx.nodes[id]
		if !ok {
			continue
		}
		snap.Levels[i] = n.level
		layers := make([][]uint32, n.level+1)
		for l := 0; l <= n.level && l < len(n.neighbors); l++ {
			rows := make([]uint32, 0, len(n.neighbors[l]))
			for _, nid := range n.neighbors[l] {
				if row, ok := rowOf[nid]; ok {
					rows = append(rows, row)
				}
			}
			layers[l] = rows
		}
		snap.Neighbors[i] = layers
	}

	return snap
}

// Import rebuilds an Index from a Snapshot plus the vectors and row-aligned
// ids it was exported against. Vectors must already be the raw (non
// -normalized) per-id vectors from the VectorStore; Import normalizes them
// itself to repopulate the memoized per-node copies.
func Import(dimension int, ids []string, vectors [][]float32, snap Snapshot) (*Index, error) {
	if len(ids) != len(vectors) || len(ids) != len(snap.Levels) || len(ids) != len(snap.Neighbors) {
		return nil, fmt.Errorf("%w: row count mismatch", ErrIndexInconsistency)
	}

	idx := New(dimension, WithM(snap.M), WithEfConstruction(snap.EfConstruction), WithSeed(snap.Seed))
	idx.mmax0 = snap.Mmax0
	idx.maxLevel = -1

	for i, id := range ids {
		n := &node{
			id:        id,
			vector:    normalizedCopy(vectors[i]),
			level:     snap.Levels[i],
			neighbors: make([][]string, len(snap.Neighbors[i])),
		}
		for l, rows := range snap.Neighbors[i] {
			neighborIDs := make([]string, 0, len(rows))
			for _, row := range rows {
				if int(row) >= len(ids) {
					return nil, fmt.Errorf("%w: neighbor row %d out of range", ErrIndexInconsistency, row)
				}
				neighborIDs = append(neighborIDs, ids[row])
			}
			n.neighbors[l] = neighborIDs
		}
		idx.nodes[id] = n
		if n.level > idx.maxLevel {
			idx.maxLevel = n.level
		}
	}

	idx.entryPoint = snap.EntryPoint
	if idx.entryPoint == "" && len(ids) > 0 {
		return nil, fmt.Errorf("%w: missing entry point for non-empty graph", ErrIndexInconsistency)
	}
	if _, ok := idx.nodes[idx.entryPoint]; idx.entryPoint != "" && !ok {
		return nil, fmt.Errorf("%w: entry point %q not present", ErrIndexInconsistency, idx.entryPoint)
	}

	return idx, nil
}
