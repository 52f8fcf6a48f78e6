package metadata_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/torinriley/vecstream/metadata"
)

func TestFieldIndexCandidates(t *testing.T) {
	fi := metadata.NewFieldIndex()
	fi.Index(0, metadata.Document{"cat": "ai", "year": float64(2023)})
	fi.Index(1, metadata.Document{"cat": "ai", "year": float64(2022)})
	fi.Index(2, metadata.Document{"cat": "bio", "year": float64(2023)})

	bm, ok := fi.Candidates("cat", "ai")
	assert.True(t, ok)
	assert.Equal(t, uint64(2), bm.GetCardinality())
	assert.True(t, bm.Contains(0))
	assert.True(t, bm.Contains(1))
}

func TestFieldIndexUnindex(t *testing.T) {
	fi := metadata.NewFieldIndex()
	doc := metadata.Document{"cat": "ai"}
	fi.Index(0, doc)
	fi.Unindex(0, doc)

	_, ok := fi.Candidates("cat", "ai")
	assert.False(t, ok)
}

func TestFieldIndexUnknownKey(t *testing.T) {
	fi := metadata.NewFieldIndex()
	_, ok := fi.Candidates("nope", "x")
	assert.False(t, ok)
}

func TestFieldIndexNestedField(t *testing.T) {
	fi := metadata.NewFieldIndex()
	fi.Index(0, metadata.Document{"owner": map[string]any{"name": "alice"}})

	bm, ok := fi.Candidates("owner.name", "alice")
	assert.True(t, ok)
	assert.True(t, bm.Contains(0))
}

func TestFieldIndexArrayMembership(t *testing.T) {
	fi := metadata.NewFieldIndex()
	fi.Index(0, metadata.Document{"tags": []any{"ai", "nlp"}})
	fi.Index(1, metadata.Document{"tags": []any{"bio"}})

	bm, ok := fi.Candidates("tags", "ai")
	assert.True(t, ok)
	assert.Equal(t, uint64(1), bm.GetCardinality())
	assert.True(t, bm.Contains(0))
}

func TestFieldIndexRestrictIntersectsScalarEntries(t *testing.T) {
	fi := metadata.NewFieldIndex()
	fi.Index(0, metadata.Document{"cat": "ai", "year": float64(2023)})
	fi.Index(1, metadata.Document{"cat": "ai", "year": float64(2022)})
	fi.Index(2, metadata.Document{"cat": "bio", "year": float64(2023)})

	rows, ok := fi.Restrict(metadata.Filter{"cat": "ai", "year": float64(2023)})
	assert.True(t, ok)
	assert.Equal(t, uint64(1), rows.GetCardinality())
	assert.True(t, rows.Contains(0))
}

func TestFieldIndexRestrictSkipsContainerValuedEntries(t *testing.T) {
	fi := metadata.NewFieldIndex()
	fi.Index(0, metadata.Document{"cat": "ai"})

	rows, ok := fi.Restrict(metadata.Filter{"tags": []any{"ai"}})
	assert.False(t, ok)
	assert.Nil(t, rows)
}

func TestFieldIndexRestrictNoMatchIsEmptyNotUnrestricted(t *testing.T) {
	fi := metadata.NewFieldIndex()
	fi.Index(0, metadata.Document{"cat": "ai"})

	rows, ok := fi.Restrict(metadata.Filter{"cat": "nope"})
	assert.True(t, ok)
	assert.Equal(t, uint64(0), rows.GetCardinality())
}
