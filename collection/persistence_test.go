package collection

import (
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/torinriley/vecstream/metadata"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	c := New(dir)
	require.NoError(t, c.AddVector("a", []float32{1, 0, 0}, metadata.Document{"tag": "x"}))
	require.NoError(t, c.AddVector("b", []float32{0, 1, 0}, metadata.Document{"tag": "y"}))
	require.NoError(t, c.AddVector("c", []float32{0, 0, 1}, nil))

	require.NoError(t, c.Save())

	fresh := New(dir)
	require.NoError(t, fresh.Load())

	for _, id := range []string{"a", "b", "c"} {
		want, _, err := c.GetVectorWithMetadata(id)
		require.NoError(t, err)
		got, _, err := fresh.GetVectorWithMetadata(id)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	results, err := fresh.SearchSimilar([]float32{1, 0, 0}, 1, 50, nil, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].ID)
}

func TestSaveIdempotentByteIdentical(t *testing.T) {
	dir := t.TempDir()
	c := New(dir)
	require.NoError(t, c.AddVector("a", []float32{1, 0, 0}, metadata.Document{"tag": "x"}))
	require.NoError(t, c.AddVector("b", []float32{0, 1, 0}, nil))

	require.NoError(t, c.Save())

	before := readAll(t, dir)
	require.NoError(t, c.Save())
	after := readAll(t, dir)

	assert.Equal(t, before, after)
}

func readAll(t *testing.T, dir string) map[string][]byte {
	t.Helper()
	out := map[string][]byte{}
	for _, name := range []string{vectorsFile, idsFile, metadataFile, indexFile, configFile} {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		out[name] = data
	}
	return out
}

func TestLoadLeavesCollectionUntouchedOnCorruptStore(t *testing.T) {
	dir := t.TempDir()
	c := New(dir)
	require.NoError(t, c.AddVector("a", []float32{1, 0, 0}, nil))
	require.NoError(t, c.Save())

	// Corrupt ids.json so it no longer agrees with vectors.npy's row count.
	require.NoError(t, os.WriteFile(filepath.Join(dir, idsFile), []byte(`["a","b"]`), 0o644))

	err := c.Load()
	assert.ErrorIs(t, err, ErrCorruptStore)

	vec, getErr := c.GetVector("a")
	require.NoError(t, getErr)
	assert.Equal(t, []float32{1, 0, 0}, vec)
}

func TestRoundTripLargeRandomCollection(t *testing.T) {
	dir := t.TempDir()
	c := New(dir)

	rng := rand.New(rand.NewSource(7))
	const n, dim = 200, 16
	vectors := make(map[string][]float32, n)
	for i := 0; i < n; i++ {
		id := randomID(i)
		vec := make([]float32, dim)
		for j := range vec {
			vec[j] = rng.Float32()*2 - 1
		}
		vectors[id] = vec
		require.NoError(t, c.AddVector(id, vec, metadata.Document{"i": i}))
	}

	require.NoError(t, c.Save())

	fresh := New(dir)
	require.NoError(t, fresh.Load())

	for id, vec := range vectors {
		got, err := fresh.GetVector(id)
		require.NoError(t, err)
		assert.Equal(t, vec, got)
	}

	query := vectors[randomID(0)]
	before, err := c.SearchSimilar(query, 10, 50, nil, nil)
	require.NoError(t, err)
	after, err := fresh.SearchSimilar(query, 10, 50, nil, nil)
	require.NoError(t, err)
	require.NotEmpty(t, before)
	require.NotEmpty(t, after)
	assert.Equal(t, before[0].ID, after[0].ID)
}

func randomID(i int) string {
	return "id-" + strconv.Itoa(i)
}
