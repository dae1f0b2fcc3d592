package embedding

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockEmbedderDeterministic(t *testing.T) {
	em := NewMockEmbedder(384)
	ctx := context.Background()

	first, err := em.EmbedStrings(ctx, []string{"Kubernetes 网络模型"})
	require.NoError(t, err)
	second, err := em.EmbedStrings(ctx, []string{"Kubernetes 网络模型"})
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestMockEmbedderDimension(t *testing.T) {
	em := NewMockEmbedder(128)
	vecs, err := em.EmbedStrings(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	for _, v := range vecs {
		assert.Len(t, v, 128)
	}
}

func TestMockEmbedderUnitNorm(t *testing.T) {
	em := NewMockEmbedder(384)
	vecs, err := em.EmbedStrings(context.Background(), []string{"normalize me"})
	require.NoError(t, err)

	var norm float64
	for _, v := range vecs[0] {
		norm += v * v
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-9)
}

func TestMockEmbedderDistinctTextsDiffer(t *testing.T) {
	em := NewMockEmbedder(384)
	vecs, err := em.EmbedStrings(context.Background(), []string{"apple", "orange"})
	require.NoError(t, err)
	assert.NotEqual(t, vecs[0], vecs[1])
}

func TestNewMockEmbedderDefaultDim(t *testing.T) {
	em := NewMockEmbedder(0)
	assert.Equal(t, 384, em.Dim)
}

func TestProbeDimension(t *testing.T) {
	dim, err := ProbeDimension(context.Background(), NewMockEmbedder(256))
	require.NoError(t, err)
	assert.Equal(t, 256, dim)
}
