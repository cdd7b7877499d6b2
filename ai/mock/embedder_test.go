package mock

import (
	"context"
	"testing"

	"github.com/poiesic/masterdb/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockEmbedder(t *testing.T) {
	ctx := context.Background()

	t.Run("deterministic unit vectors", func(t *testing.T) {
		m := NewMockEmbedder()
		a, err := m.EmbedText(ctx, "hello")
		require.NoError(t, err)
		b, err := m.EmbedText(ctx, "hello")
		require.NoError(t, err)

		assert.Equal(t, a, b)
		assert.Len(t, a, DefaultDimension)
		assert.InDelta(t, 1.0, core.Dot(a, a), 1e-5)
		assert.Equal(t, 2, m.CallCount())
	})

	t.Run("pinned vectors and dimension", func(t *testing.T) {
		m := NewMockEmbedder()
		m.Dimension = 8
		m.Vectors["x"] = []float32{1, 0}

		out, err := m.EmbedTexts(ctx, []string{"x", "y"})
		require.NoError(t, err)
		assert.Equal(t, []float32{1, 0}, out[0])
		assert.Len(t, out[1], 8)
	})

	t.Run("reset", func(t *testing.T) {
		m := NewMockEmbedder()
		m.Vectors["x"] = []float32{1}
		_, _ = m.EmbedText(ctx, "x")
		m.Reset()

		assert.Zero(t, m.CallCount())
		v, err := m.EmbedText(ctx, "x")
		require.NoError(t, err)
		assert.Len(t, v, DefaultDimension)
	})
}
