package rag

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// vecWithScore builds a unit 3-d vector whose inner product with (1,0,0)
// equals score.
func vecWithScore(score float64) []float32 {
	return []float32{float32(score), float32(math.Sqrt(1 - score*score)), 0}
}

func newTestRetriever(t *testing.T, vectors map[string][]float32, maxContextChars int) (*Retriever, *Store) {
	t.Helper()
	embedder := &fakeEmbedder{vectors: vectors}
	store, _ := newTestStore(t, embedder, 10)
	retriever := NewRetriever(store, embedder, DefaultTopK, DefaultTopScoreGate, DefaultIncludeThreshold, maxContextChars)
	return retriever, store
}

func TestRetriever_EmptyStoreYieldsNoContext(t *testing.T) {
	retriever, _ := newTestRetriever(t, nil, 0)

	docContext, err := retriever.Retrieve(context.Background(), 1, "anything")
	require.NoError(t, err)
	assert.Empty(t, docContext)
}

func TestRetriever_IncludesHitsAboveThreshold(t *testing.T) {
	vectors := map[string][]float32{
		"the query":      vecWithScore(1.0),
		"exact match":    vecWithScore(1.0),
		"close match":    vecWithScore(0.79),
		"unrelated text": vecWithScore(0.50),
	}
	retriever, store := newTestRetriever(t, vectors, 0)
	ctx := context.Background()

	require.NoError(t, store.Rebuild(ctx, 1, []string{"exact match", "close match", "unrelated text"}))

	docContext, err := retriever.Retrieve(ctx, 1, "the query")
	require.NoError(t, err)
	assert.Equal(t, "exact match\n\nclose match", docContext)
}

func TestRetriever_TopGateRejectsWeakBestHit(t *testing.T) {
	// Every chunk clears the inclusion threshold, but none clears the top
	// gate, so the query is judged unrelated to the document set.
	vectors := map[string][]float32{
		"the query": vecWithScore(1.0),
		"chunk one": vecWithScore(0.79),
		"chunk two": vecWithScore(0.785),
	}
	retriever, store := newTestRetriever(t, vectors, 0)
	ctx := context.Background()

	require.NoError(t, store.Rebuild(ctx, 1, []string{"chunk one", "chunk two"}))

	docContext, err := retriever.Retrieve(ctx, 1, "the query")
	require.NoError(t, err)
	assert.Empty(t, docContext)
}

func TestRetriever_ExcludesHitsBelowInclusionThreshold(t *testing.T) {
	vectors := map[string][]float32{
		"the query":   vecWithScore(1.0),
		"exact match": vecWithScore(1.0),
		"near miss":   vecWithScore(0.77),
	}
	retriever, store := newTestRetriever(t, vectors, 0)
	ctx := context.Background()

	require.NoError(t, store.Rebuild(ctx, 1, []string{"exact match", "near miss"}))

	docContext, err := retriever.Retrieve(ctx, 1, "the query")
	require.NoError(t, err)
	assert.Equal(t, "exact match", docContext)
}

func TestRetriever_CapsContextLength(t *testing.T) {
	long := strings.Repeat("x", 300)
	vectors := map[string][]float32{
		"the query": vecWithScore(1.0),
		long:        vecWithScore(1.0),
	}
	retriever, store := newTestRetriever(t, vectors, 100)
	ctx := context.Background()

	require.NoError(t, store.Rebuild(ctx, 1, []string{long}))

	docContext, err := retriever.Retrieve(ctx, 1, "the query")
	require.NoError(t, err)
	assert.Len(t, docContext, 100)
}

func TestRetriever_SkipsRowsPastChunkList(t *testing.T) {
	// An artifact with more index rows than chunks: the extra row must be
	// skipped, not crash retrieval.
	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"the query": vecWithScore(1.0),
	}}
	store, _ := newTestStore(t, embedder, 10)
	art := artifact{
		Chunks: []string{"only chunk"},
		Dim:    3,
		Vectors: [][]float32{
			vecWithScore(0.9),
			vecWithScore(1.0),
		},
	}
	require.NoError(t, store.persist(2, art))

	retriever := NewRetriever(store, embedder, DefaultTopK, DefaultTopScoreGate, DefaultIncludeThreshold, 0)
	docContext, err := retriever.Retrieve(context.Background(), 2, "the query")
	require.NoError(t, err)
	assert.Equal(t, "only chunk", docContext)
}
