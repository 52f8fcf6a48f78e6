package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmbedTextDeterministic(t *testing.T) {
	a := embedText("hello world")
	b := embedText("hello world")
	assert.Equal(t, a, b)
	assert.Len(t, a, embedDimension)
}

func TestEmbedTextDiffersByContent(t *testing.T) {
	a := embedText("hello world")
	b := embedText("goodbye moon")
	assert.NotEqual(t, a, b)
}

func TestExitCodeForClassification(t *testing.T) {
	assert.Equal(t, exitUserErr, exitCodeFor(userErrf("bad id")))
}
