package embedding

import (
	"context"
	"errors"
	"testing"

	einoembedding "github.com/cloudwego/eino/components/embedding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEmbedder struct {
	vector []float64
	err    error
}

func (s *stubEmbedder) EmbedStrings(ctx context.Context, texts []string, opts ...einoembedding.Option) ([][]float64, error) {
	if s.err != nil {
		return nil, s.err
	}
	return [][]float64{s.vector}, nil
}

func TestEmbed(t *testing.T) {
	c := NewClient(&stubEmbedder{vector: []float64{0.1, 0.2, 0.3}}, 3)

	vec, err := c.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
}

func TestEmbedDimensionMismatch(t *testing.T) {
	t.Run("truncates oversized vectors", func(t *testing.T) {
		c := NewClient(&stubEmbedder{vector: []float64{0.1, 0.2, 0.3, 0.4}}, 2)
		vec, err := c.Embed(context.Background(), "hello")
		require.NoError(t, err)
		assert.Equal(t, []float32{0.1, 0.2}, vec)
	})

	t.Run("zero pads undersized vectors", func(t *testing.T) {
		c := NewClient(&stubEmbedder{vector: []float64{0.1, 0.2}}, 4)
		vec, err := c.Embed(context.Background(), "hello")
		require.NoError(t, err)
		assert.Equal(t, []float32{0.1, 0.2, 0, 0}, vec)
	})
}

func TestEmbedError(t *testing.T) {
	c := NewClient(&stubEmbedder{err: errors.New("service down")}, 3)
	_, err := c.Embed(context.Background(), "hello")
	assert.Error(t, err)
}

func TestEmbedEmptyVector(t *testing.T) {
	c := NewClient(&stubEmbedder{vector: []float64{}}, 3)
	_, err := c.Embed(context.Background(), "hello")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Run("matching dimension", func(t *testing.T) {
		c := NewClient(&stubEmbedder{vector: []float64{0.1, 0.2, 0.3}}, 3)
		assert.NoError(t, c.Validate(context.Background()))
	})

	t.Run("mismatched dimension", func(t *testing.T) {
		c := NewClient(&stubEmbedder{vector: []float64{0.1, 0.2}}, 3)
		assert.Error(t, c.Validate(context.Background()))
	})

	t.Run("probe failure", func(t *testing.T) {
		c := NewClient(&stubEmbedder{err: errors.New("down")}, 3)
		assert.Error(t, c.Validate(context.Background()))
	})
}
