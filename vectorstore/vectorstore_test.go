package vectorstore_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/torinriley/vecstream/metadata"
	"github.com/torinriley/vecstream/vectorstore"
)

func TestAddAndGet(t *testing.T) {
	s := vectorstore.New()
	err := s.Add("a", []float32{1, 0, 0}, metadata.Document{"k": "v"})
	assert.NoError(t, err)

	vec, meta, err := s.Get("a")
	assert.NoError(t, err)
	assert.Equal(t, []float32{1, 0, 0}, vec)
	assert.Equal(t, metadata.Document{"k": "v"}, meta)
}

func TestAddDuplicateID(t *testing.T) {
	s := vectorstore.New()
	assert.NoError(t, s.Add("a", []float32{1, 0}, nil))
	err := s.Add("a", []float32{0, 1}, nil)
	assert.Error(t, err)
	var dup *vectorstore.ErrDuplicateID
	assert.ErrorAs(t, err, &dup)
}

func TestAddDimensionMismatch(t *testing.T) {
	s := vectorstore.New()
	assert.NoError(t, s.Add("x", []float32{1, 2, 3, 4}, nil))
	err := s.Add("y", []float32{1, 2, 3}, nil)
	var dimErr *vectorstore.ErrDimensionMismatch
	assert.ErrorAs(t, err, &dimErr)
	assert.Equal(t, 1, s.Size())
}

func TestAddEmptyVector(t *testing.T) {
	s := vectorstore.New()
	err := s.Add("a", []float32{}, nil)
	assert.ErrorIs(t, err, vectorstore.ErrEmptyVector)
}

func TestGetNotFound(t *testing.T) {
	s := vectorstore.New()
	_, _, err := s.Get("missing")
	assert.ErrorIs(t, err, vectorstore.ErrNotFound)
}

func TestRemove(t *testing.T) {
	s := vectorstore.New()
	assert.NoError(t, s.Add("a", []float32{1, 0}, nil))
	assert.NoError(t, s.Remove("a"))
	assert.Equal(t, 0, s.Size())

	err := s.Remove("a")
	assert.ErrorIs(t, err, vectorstore.ErrNotFound)
}

func TestSizeDimensionIds(t *testing.T) {
	s := vectorstore.New()
	assert.Equal(t, 0, s.Dimension())
	assert.NoError(t, s.Add("a", []float32{1, 0, 0}, nil))
	assert.NoError(t, s.Add("b", []float32{0, 1, 0}, nil))

	assert.Equal(t, 2, s.Size())
	assert.Equal(t, 3, s.Dimension())
	assert.ElementsMatch(t, []string{"a", "b"}, s.Ids())
}

func TestSearchBruteOrdering(t *testing.T) {
	s := vectorstore.New()
	assert.NoError(t, s.Add("a", []float32{1, 0, 0}, nil))
	assert.NoError(t, s.Add("b", []float32{0, 1, 0}, nil))
	assert.NoError(t, s.Add("c", []float32{0.9, 0.1, 0}, nil))

	results, err := s.SearchBrute([]float32{1, 0, 0}, 3, nil)
	assert.NoError(t, err)
	assert.Len(t, results, 3)
	assert.Equal(t, "a", results[0].ID)
	assert.InDelta(t, 1.0, results[0].Similarity, 1e-6)
	assert.Equal(t, "c", results[1].ID)
	assert.InDelta(t, 0.9939, results[1].Similarity, 1e-3)
	assert.Equal(t, "b", results[2].ID)
	assert.InDelta(t, 0.0, results[2].Similarity, 1e-6)
}

func TestSearchBruteWithFilter(t *testing.T) {
	s := vectorstore.New()
	assert.NoError(t, s.Add("a", []float32{1, 0}, metadata.Document{"cat": "ai", "year": float64(2023)}))
	assert.NoError(t, s.Add("b", []float32{1, 0}, metadata.Document{"cat": "ai", "year": float64(2022)}))
	assert.NoError(t, s.Add("c", []float32{1, 0}, metadata.Document{"cat": "bio", "year": float64(2023)}))

	f := metadata.Filter{"cat": "ai", "year": float64(2023)}
	results, err := s.SearchBrute([]float32{1, 0}, 5, f)
	assert.NoError(t, err)
	assert.Len(t, results, 1)
	assert.Equal(t, "a", results[0].ID)
}

func TestSearchBruteTieBreakByID(t *testing.T) {
	s := vectorstore.New()
	assert.NoError(t, s.Add("z", []float32{1, 0}, nil))
	assert.NoError(t, s.Add("a", []float32{1, 0}, nil))

	results, err := s.SearchBrute([]float32{1, 0}, 2, nil)
	assert.NoError(t, err)
	assert.Equal(t, "a", results[0].ID)
	assert.Equal(t, "z", results[1].ID)
}

func TestSearchBruteSubsetRestrictsScan(t *testing.T) {
	s := vectorstore.New()
	assert.NoError(t, s.Add("a", []float32{1, 0}, metadata.Document{"cat": "ai", "year": float64(2023)}))
	assert.NoError(t, s.Add("b", []float32{1, 0}, metadata.Document{"cat": "ai", "year": float64(2022)}))
	assert.NoError(t, s.Add("c", []float32{1, 0}, metadata.Document{"cat": "bio", "year": float64(2023)}))

	f := metadata.Filter{"cat": "ai", "year": float64(2023)}
	results, err := s.SearchBruteSubset([]float32{1, 0}, 5, f, []string{"a", "b"})
	assert.NoError(t, err)
	assert.Len(t, results, 1)
	assert.Equal(t, "a", results[0].ID)
}

func TestSearchBruteSubsetIgnoresIDsOutsideSet(t *testing.T) {
	s := vectorstore.New()
	assert.NoError(t, s.Add("a", []float32{1, 0}, nil))
	assert.NoError(t, s.Add("b", []float32{0, 1}, nil))

	results, err := s.SearchBruteSubset([]float32{1, 0}, 5, nil, []string{"a"})
	assert.NoError(t, err)
	assert.Len(t, results, 1)
	assert.Equal(t, "a", results[0].ID)
}
