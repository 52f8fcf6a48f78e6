package metadata

import "reflect"

// Filter is a flat predicate: path -> expected value. A nil Filter (or one
// with no entries) matches every document.
type Filter map[string]any

// Matches reports whether doc satisfies f. Entries combine with logical AND;
// a missing path is a non-match rather than an error. A nil or empty filter
// is universally true.
func (f Filter) Matches(doc Document) bool {
	for path, expected := range f {
		actual, ok := doc.Get(path)
		if !ok {
			return false
		}
		if !valueMatches(expected, actual) {
			return false
		}
	}
	return true
}

// valueMatches implements the equality/membership semantics of §4.3:
// scalars compare by structural equality; if expected is an array, it
// matches either by equality to actual or, if actual is itself the
// container, membership; if actual is an array and expected is a scalar,
// membership is tested; maps compare recursively (key-for-key equality via
// valueMatches).
func valueMatches(expected, actual any) bool {
	if expectedArr, ok := expected.([]any); ok {
		if actualArr, ok := actual.([]any); ok {
			return equalValue(expectedArr, actualArr) || arrayContains(actualArr, expected)
		}
		return arrayContains(expectedArr, actual)
	}

	if actualArr, ok := actual.([]any); ok {
		return arrayContains(actualArr, expected)
	}

	if expectedMap, ok := expected.(map[string]any); ok {
		actualMap, ok := actual.(map[string]any)
		if !ok {
			return false
		}
		if len(expectedMap) != len(actualMap) {
			return false
		}
		for k, ev := range expectedMap {
			av, ok := actualMap[k]
			if !ok || !valueMatches(ev, av) {
				return false
			}
		}
		return true
	}

	return equalValue(expected, actual)
}

// arrayContains reports whether expected is present among arr's elements
// (scalar-in-array membership test).
func arrayContains(arr []any, expected any) bool {
	for _, v := range arr {
		if equalValue(expected, v) {
			return true
		}
	}
	return false
}

// equalValue is structural equality over JSON-decoded scalars/containers.
// Numbers decoded via encoding/json are always float64, so no numeric-kind
// coercion is needed beyond reflect.DeepEqual.
func equalValue(a, b any) bool {
	return reflect.DeepEqual(a, b)
}
