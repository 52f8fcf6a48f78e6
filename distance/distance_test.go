package distance_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/torinriley/vecstream/distance"
)

func TestCosineIdentical(t *testing.T) {
	a := []float32{1, 0, 0}
	assert.InDelta(t, 1.0, distance.Cosine(a, a), 1e-6)
}

func TestCosineOrthogonal(t *testing.T) {
	a := []float32{1, 0, 0}
	b := []float32{0, 1, 0}
	assert.InDelta(t, 0.0, distance.Cosine(a, b), 1e-6)
}

func TestCosineZeroNorm(t *testing.T) {
	a := []float32{0, 0, 0}
	b := []float32{1, 2, 3}
	assert.Equal(t, float32(0), distance.Cosine(a, b))
}

func TestCosineDistanceRange(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{-1, 0}
	d := distance.CosineDistance(a, b)
	assert.InDelta(t, 2.0, d, 1e-6)
}

func TestNormalizeL2Copy(t *testing.T) {
	v := []float32{3, 4}
	out, ok := distance.NormalizeL2Copy(v)
	assert.True(t, ok)
	assert.InDelta(t, 1.0, distance.Norm(out), 1e-6)
	// Original untouched.
	assert.Equal(t, []float32{3, 4}, v)
}

func TestNormalizeL2CopyZero(t *testing.T) {
	v := []float32{0, 0}
	_, ok := distance.NormalizeL2Copy(v)
	assert.False(t, ok)
}

func TestSquaredL2(t *testing.T) {
	a := []float32{0, 0}
	b := []float32{3, 4}
	assert.InDelta(t, 25.0, distance.SquaredL2(a, b), 1e-6)
}

func TestCosineHighDimension(t *testing.T) {
	n := 2000
	a := make([]float32, n)
	b := make([]float32, n)
	for i := range a {
		a[i] = 1
		b[i] = 1
	}
	assert.InDelta(t, 1.0, distance.Cosine(a, b), 1e-4)
}
