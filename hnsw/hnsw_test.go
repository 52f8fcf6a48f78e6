package hnsw_test

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/torinriley/vecstream/hnsw"
)

func TestInsertAndSearchBasicOrdering(t *testing.T) {
	idx := hnsw.New(3, hnsw.WithSeed(42))
	require.NoError(t, idx.Insert("a", []float32{1, 0, 0}))
	require.NoError(t, idx.Insert("b", []float32{0, 1, 0}))
	require.NoError(t, idx.Insert("c", []float32{0.9, 0.1, 0}))

	results, err := idx.Search([]float32{1, 0, 0}, 3, 50)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "a", results[0].ID)
	assert.Equal(t, "c", results[1].ID)
	assert.Equal(t, "b", results[2].ID)
}

func TestInsertDuplicateID(t *testing.T) {
	idx := hnsw.New(2, hnsw.WithSeed(1))
	require.NoError(t, idx.Insert("a", []float32{1, 0}))
	err := idx.Insert("a", []float32{0, 1})
	var dup *hnsw.ErrDuplicateID
	assert.ErrorAs(t, err, &dup)
}

func TestInsertDimensionMismatch(t *testing.T) {
	idx := hnsw.New(4, hnsw.WithSeed(1))
	require.NoError(t, idx.Insert("a", []float32{1, 2, 3, 4}))
	err := idx.Insert("b", []float32{1, 2, 3})
	var dimErr *hnsw.ErrDimensionMismatch
	assert.ErrorAs(t, err, &dimErr)
}

func TestSearchEmptyIndex(t *testing.T) {
	idx := hnsw.New(3, hnsw.WithSeed(1))
	results, err := idx.Search([]float32{1, 0, 0}, 5, 50)
	assert.NoError(t, err)
	assert.Empty(t, results)
}

func randomVector(rng *rand.Rand, d int) []float32 {
	v := make([]float32, d)
	for i := range v {
		v[i] = rng.Float32()*2 - 1
	}
	return v
}

func buildRandomIndex(t *testing.T, n, d int, seed int64) (*hnsw.Index, []string) {
	t.Helper()
	idx := hnsw.New(d, hnsw.WithSeed(seed))
	rng := rand.New(rand.NewSource(seed))
	ids := make([]string, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("id-%04d", i)
		ids[i] = id
		require.NoError(t, idx.Insert(id, randomVector(rng, d)))
	}
	return idx, ids
}

func TestSearchReturnsAtMostK(t *testing.T) {
	idx, _ := buildRandomIndex(t, 100, 8, 7)
	results, err := idx.Search([]float32{1, 1, 1, 1, 1, 1, 1, 1}, 10, 50)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(results), 10)
	for i := 1; i < len(results); i++ {
		assert.LessOrEqual(t, results[i-1].Distance, results[i].Distance)
	}
}

func TestRemoveAndEntryPointReplacement(t *testing.T) {
	idx, ids := buildRandomIndex(t, 100, 8, 11)
	ep := idx.EntryPoint()
	require.NotEmpty(t, ep)

	require.NoError(t, idx.Remove(ep))
	assert.Equal(t, 99, idx.Len())

	newEP := idx.EntryPoint()
	assert.NotEqual(t, ep, newEP)
	assert.NotEmpty(t, newEP)

	results, err := idx.Search([]float32{1, 1, 1, 1, 1, 1, 1, 1}, 10, 50)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(results), 10)
	assert.NotEmpty(t, results)
	_ = ids
}

func TestRemoveNotFound(t *testing.T) {
	idx := hnsw.New(2, hnsw.WithSeed(1))
	err := idx.Remove("missing")
	assert.ErrorIs(t, err, hnsw.ErrNotFound)
}

func TestSearchFilteredFallbackSignal(t *testing.T) {
	idx, ids := buildRandomIndex(t, 200, 6, 3)
	allowed := map[string]bool{ids[0]: true, ids[1]: true, ids[2]: true}
	predicate := func(id string) bool { return allowed[id] }

	results, found, err := idx.SearchFiltered([]float32{1, 0, 0, 0, 0, 0}, 5, 50, predicate)
	require.NoError(t, err)
	assert.False(t, found) // only 3 matches exist globally, fewer than k=5
	assert.LessOrEqual(t, len(results), 3)
	for _, r := range results {
		assert.True(t, allowed[r.ID])
	}
}

func TestSearchFilteredSufficientMatches(t *testing.T) {
	idx, ids := buildRandomIndex(t, 50, 4, 9)
	allowed := make(map[string]bool)
	for i := 0; i < 20; i++ {
		allowed[ids[i]] = true
	}
	predicate := func(id string) bool { return allowed[id] }

	results, found, err := idx.SearchFiltered([]float32{1, 0, 0, 0}, 5, 20, predicate)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Len(t, results, 5)
	for _, r := range results {
		assert.True(t, allowed[r.ID])
	}
}

func TestDeterminismSameSeedSameOrder(t *testing.T) {
	const n, d = 60, 5
	rng := rand.New(rand.NewSource(99))
	vectors := make([][]float32, n)
	for i := range vectors {
		vectors[i] = randomVector(rng, d)
	}

	build := func() *hnsw.Index {
		idx := hnsw.New(d, hnsw.WithSeed(123))
		for i, v := range vectors {
			require.NoError(t, idx.Insert(fmt.Sprintf("id-%d", i), v))
		}
		return idx
	}

	a := build()
	b := build()

	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("id-%d", i)
	}
	snapA := a.Export(ids)
	snapB := b.Export(ids)

	assert.Equal(t, snapA.EntryPoint, snapB.EntryPoint)
	assert.Equal(t, snapA.Levels, snapB.Levels)
	assert.Equal(t, snapA.Neighbors, snapB.Neighbors)
}

func TestExportImportRoundTrip(t *testing.T) {
	const n, d = 40, 6
	rng := rand.New(rand.NewSource(5))
	vectors := make([][]float32, n)
	ids := make([]string, n)
	idx := hnsw.New(d, hnsw.WithSeed(5))
	for i := 0; i < n; i++ {
		vectors[i] = randomVector(rng, d)
		ids[i] = fmt.Sprintf("id-%d", i)
		require.NoError(t, idx.Insert(ids[i], vectors[i]))
	}

	snap := idx.Export(ids)
	restored, err := hnsw.Import(d, ids, vectors, snap)
	require.NoError(t, err)
	assert.Equal(t, idx.Len(), restored.Len())
	assert.Equal(t, idx.EntryPoint(), restored.EntryPoint())

	q := randomVector(rng, d)
	want, err := idx.Search(q, 5, 50)
	require.NoError(t, err)
	got, err := restored.Search(q, 5, 50)
	require.NoError(t, err)
	require.Len(t, got, len(want))
	if len(want) > 0 {
		assert.Equal(t, want[0].ID, got[0].ID)
	}
}
