package core

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeVector(t *testing.T) {
	t.Run("unit length", func(t *testing.T) {
		v, ok := NormalizeVector([]float32{3, 4})
		require.True(t, ok)
		assert.InDelta(t, 0.6, v[0], 1e-6)
		assert.InDelta(t, 0.8, v[1], 1e-6)
	})

	t.Run("zero vector", func(t *testing.T) {
		v, ok := NormalizeVector([]float32{0, 0, 0})
		assert.False(t, ok)
		assert.Equal(t, []float32{0, 0, 0}, v)
	})

	t.Run("empty vector", func(t *testing.T) {
		_, ok := NormalizeVector(nil)
		assert.False(t, ok)
	})

	t.Run("does not modify input", func(t *testing.T) {
		in := []float32{1, 1}
		_, _ = NormalizeVector(in)
		assert.Equal(t, []float32{1, 1}, in)
	})
}

func TestCosineSimilarity(t *testing.T) {
	s, ok := CosineSimilarity([]float32{1, 0}, []float32{2, 0})
	require.True(t, ok)
	assert.InDelta(t, 1.0, s, 1e-9)

	s, ok = CosineSimilarity([]float32{1, 0}, []float32{0, 5})
	require.True(t, ok)
	assert.InDelta(t, 0.0, s, 1e-9)

	_, ok = CosineSimilarity([]float32{0, 0}, []float32{1, 0})
	assert.False(t, ok)

	_, ok = CosineSimilarity([]float32{1}, []float32{1, 0})
	assert.False(t, ok)
}

func TestCosineDistance(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{float32(math.Sqrt(0.5)), float32(math.Sqrt(0.5))}
	assert.InDelta(t, 0.0, CosineDistance(a, a), 1e-7)
	assert.InDelta(t, 1-math.Sqrt(0.5), CosineDistance(a, b), 1e-6)
	assert.InDelta(t, 2.0, CosineDistance(a, []float32{-1, 0}), 1e-7)
}

func TestCentroid(t *testing.T) {
	c := Centroid([][]float32{{1, 0}, {0, 1}})
	assert.Equal(t, []float32{0.5, 0.5}, c)
	assert.Nil(t, Centroid(nil))
}
