package metadata_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/torinriley/vecstream/metadata"
)

func TestFilterNilMatchesEverything(t *testing.T) {
	var f metadata.Filter
	assert.True(t, f.Matches(metadata.Document{"a": 1}))
	assert.True(t, f.Matches(metadata.Document{}))
}

func TestFilterScalarEquality(t *testing.T) {
	f := metadata.Filter{"cat": "ai", "year": float64(2023)}
	match := metadata.Document{"cat": "ai", "year": float64(2023)}
	noMatch := metadata.Document{"cat": "ai", "year": float64(2022)}

	assert.True(t, f.Matches(match))
	assert.False(t, f.Matches(noMatch))
}

func TestFilterMissingPathIsNoMatch(t *testing.T) {
	f := metadata.Filter{"absent.field": "x"}
	assert.False(t, f.Matches(metadata.Document{"a": 1}))
}

func TestFilterArrayMembership(t *testing.T) {
	f := metadata.Filter{"tags": "ai"}
	doc := metadata.Document{"tags": []any{"ai", "bio"}}
	assert.True(t, f.Matches(doc))

	doc2 := metadata.Document{"tags": []any{"bio", "chem"}}
	assert.False(t, f.Matches(doc2))
}

func TestFilterArrayEquality(t *testing.T) {
	f := metadata.Filter{"tags": []any{"ai", "bio"}}
	doc := metadata.Document{"tags": []any{"ai", "bio"}}
	assert.True(t, f.Matches(doc))
}

func TestFilterNestedPath(t *testing.T) {
	f := metadata.Filter{"owner.name": "alice"}
	doc := metadata.Document{"owner": map[string]any{"name": "alice", "age": float64(30)}}
	assert.True(t, f.Matches(doc))
}

func TestFilterMultipleEntriesAND(t *testing.T) {
	f := metadata.Filter{"cat": "ai", "year": float64(2023)}
	docs := []metadata.Document{
		{"cat": "ai", "year": float64(2023)},
		{"cat": "ai", "year": float64(2022)},
		{"cat": "bio", "year": float64(2023)},
	}
	matches := 0
	for _, d := range docs {
		if f.Matches(d) {
			matches++
		}
	}
	assert.Equal(t, 1, matches)
}
