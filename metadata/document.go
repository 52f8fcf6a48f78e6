// Package metadata implements the metadata document tree and the predicate
// evaluator (MetadataFilter) that composes with HNSW search.
package metadata

import "strconv"

// Document is a metadata record: a tree of JSON-compatible scalars, arrays,
// and maps, exactly as produced by encoding/json when unmarshaled into
// map[string]any / []any / string / float64 / bool / nil.
type Document map[string]any

// Get resolves a dot-path ("a.b.c") against the document. Array segments are
// addressed by integer index ("a.0.b"). The second return value is false if
// any segment fails to resolve (missing key, index out of range, or an
// attempt to index a non-container).
func (d Document) Get(path string) (any, bool) {
	if path == "" {
		return d, true
	}
	segments := splitPath(path)
	var cur any = map[string]any(d)
	for _, seg := range segments {
		next, ok := step(cur, seg)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

// step resolves a single path segment against cur, which may be a
// map[string]any, a []any, or (for Document-typed sub-trees) a Document.
func step(cur any, seg string) (any, bool) {
	switch v := cur.(type) {
	case Document:
		val, ok := v[seg]
		return val, ok
	case map[string]any:
		val, ok := v[seg]
		return val, ok
	case []any:
		idx, err := strconv.Atoi(seg)
		if err != nil || idx < 0 || idx >= len(v) {
			return nil, false
		}
		return v[idx], true
	default:
		return nil, false
	}
}

// splitPath splits a dot-path into its segments without allocating a regexp.
func splitPath(path string) []string {
	segments := make([]string, 0, 4)
	start := 0
	for i := 0; i < len(path); i++ {
		if path[i] == '.' {
			segments = append(segments, path[start:i])
			start = i + 1
		}
	}
	segments = append(segments, path[start:])
	return segments
}
