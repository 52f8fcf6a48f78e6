package metadata

import (
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"
)

// FieldIndex is a roaring-bitmap inverted index over flattened "path=value"
// pairs, keyed by caller-assigned row ordinals (not ids directly; Collection
// assigns the uint32 rows and maps them back to ids). It accelerates the
// brute-force filter fallback path by letting Collection intersect
// candidate-pool rows against a Filter's scalar-valued entries before
// falling back to a doc-by-doc scan, without committing Filter's richer
// array-equality and map-recursive semantics to the index (those still
// require scanning the document).
type FieldIndex struct {
	bitmaps map[string]*roaring.Bitmap
}

// NewFieldIndex returns an empty index.
func NewFieldIndex() *FieldIndex {
	return &FieldIndex{bitmaps: make(map[string]*roaring.Bitmap)}
}

// Index adds row's indexable leaves of doc to the inverted index: scalar
// fields at any nesting depth under a dot-path, plus each scalar element of
// an array field (indexed under the array's own path, so a scalar filter
// value can still be pre-screened against array-membership matches).
// Containers nested inside arrays, and array-valued or map-valued filter
// values, fall outside what the index can represent and always require a
// document scan.
func (fi *FieldIndex) Index(row uint32, doc Document) {
	for _, pv := range flattenLeaves(doc, "") {
		fi.bitmapFor(pv.path, pv.value).Add(row)
	}
}

// Unindex removes row from every bitmap derived from doc.
func (fi *FieldIndex) Unindex(row uint32, doc Document) {
	for _, pv := range flattenLeaves(doc, "") {
		key := fieldKey(pv.path, pv.value)
		if bm, ok := fi.bitmaps[key]; ok {
			bm.Remove(row)
			if bm.IsEmpty() {
				delete(fi.bitmaps, key)
			}
		}
	}
}

func (fi *FieldIndex) bitmapFor(path string, value any) *roaring.Bitmap {
	key := fieldKey(path, value)
	bm, ok := fi.bitmaps[key]
	if !ok {
		bm = roaring.New()
		fi.bitmaps[key] = bm
	}
	return bm
}

// Candidates returns the set of rows indexed under path=value (as a scalar
// equality or as membership in an array at path), and whether that key was
// ever indexed (false means "no rows have this scalar value", which is
// distinct from "no rows exist"). Keys are built from the value's %v text,
// so values that print alike (the number 1 and the string "1") share a key
// and the returned rows can include such non-matches.
func (fi *FieldIndex) Candidates(path string, value any) (*roaring.Bitmap, bool) {
	bm, ok := fi.bitmaps[fieldKey(path, value)]
	if !ok {
		return nil, false
	}
	return bm.Clone(), true
}

// Restrict intersects Candidates across filter's scalar-valued entries,
// returning the rows that could possibly satisfy all of them. Entries whose
// expected value is an array or map aren't representable in the index and
// are skipped; the caller must still run the full Filter against whatever
// rows Restrict returns. ok reports whether at least one entry restricted
// the set; when false, every row is a candidate and the caller must scan
// them all.
func (fi *FieldIndex) Restrict(filter Filter) (rows *roaring.Bitmap, ok bool) {
	for path, expected := range filter {
		switch expected.(type) {
		case []any, map[string]any:
			continue
		}
		bm, found := fi.Candidates(path, expected)
		if !found {
			return roaring.New(), true
		}
		if rows == nil {
			rows = bm
		} else {
			rows.And(bm)
		}
	}
	return rows, rows != nil
}

func fieldKey(path string, val any) string {
	return fmt.Sprintf("%s=%v", path, val)
}

type pathValue struct {
	path  string
	value any
}

// flattenLeaves walks doc's nested maps and array elements, yielding one
// (path, value) pair per indexable scalar.
func flattenLeaves(doc Document, prefix string) []pathValue {
	var out []pathValue
	for k, v := range doc {
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		out = append(out, flattenValue(path, v)...)
	}
	return out
}

func flattenValue(path string, v any) []pathValue {
	switch vv := v.(type) {
	case map[string]any:
		return flattenLeaves(Document(vv), path)
	case []any:
		var out []pathValue
		for _, elem := range vv {
			switch elem.(type) {
			case map[string]any, []any:
				continue // nested containers inside arrays still require a document scan
			default:
				out = append(out, pathValue{path: path, value: elem})
			}
		}
		return out
	default:
		return []pathValue{{path: path, value: v}}
	}
}
