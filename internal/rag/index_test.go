package rag

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlatIndex_SearchOrdersByScore(t *testing.T) {
	ix := NewFlatIndex(2)
	ix.Add([][]float32{
		{0, 1},
		{1, 0},
		{0.7071, 0.7071},
	})

	hits := ix.Search([]float32{1, 0}, 3)
	require.Len(t, hits, 3)
	assert.Equal(t, 1, hits[0].ID)
	assert.Equal(t, 2, hits[1].ID)
	assert.Equal(t, 0, hits[2].ID)
	assert.InDelta(t, 1.0, float64(hits[0].Score), 1e-6)
}

func TestFlatIndex_SearchClampsK(t *testing.T) {
	ix := NewFlatIndex(2)
	ix.Add([][]float32{{1, 0}, {0, 1}})

	hits := ix.Search([]float32{1, 0}, 10)
	assert.Len(t, hits, 2)
}

func TestFlatIndex_SearchRejectsBadInput(t *testing.T) {
	ix := NewFlatIndex(3)
	ix.Add([][]float32{{1, 0, 0}})

	assert.Nil(t, ix.Search([]float32{1, 0, 0}, 0))
	assert.Nil(t, ix.Search([]float32{1, 0}, 1))
	assert.Nil(t, NewFlatIndex(3).Search([]float32{1, 0, 0}, 1))
}

func TestNormalize(t *testing.T) {
	vec := []float32{3, 4}
	Normalize(vec)

	length := math.Sqrt(float64(vec[0]*vec[0] + vec[1]*vec[1]))
	assert.InDelta(t, 1.0, length, 1e-6)
	assert.InDelta(t, 0.6, float64(vec[0]), 1e-6)
	assert.InDelta(t, 0.8, float64(vec[1]), 1e-6)
}

func TestNormalize_ZeroVectorUntouched(t *testing.T) {
	vec := []float32{0, 0, 0}
	Normalize(vec)
	assert.Equal(t, []float32{0, 0, 0}, vec)
}
