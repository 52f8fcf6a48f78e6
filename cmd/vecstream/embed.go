package main

import (
	"hash/fnv"
	"strings"
)

// embedDimension is the feature-hashed vector width produced by embedText.
// It is not a real embedding model; it exists so the CLI has something
// deterministic and dependency-free to turn text into a vector with.
const embedDimension = 64

// embedText hashes each whitespace-separated token of text into one of
// embedDimension buckets and accumulates a signed count per bucket
// (the hashing trick). Two calls with the same text always produce the
// same vector.
func embedText(text string) []float32 {
	vec := make([]float32, embedDimension)
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		bucket := h.Sum32() % uint32(embedDimension)

		sign := fnv.New32a()
		_, _ = sign.Write([]byte(tok + "#sign"))
		if sign.Sum32()%2 == 0 {
			vec[bucket]++
		} else {
			vec[bucket]--
		}
	}
	return vec
}
