package rag

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"documind/internal/storage"
)

// fakeEmbedder maps each text to a fixed vector; unknown texts get a
// deterministic default so tests stay order-independent.
type fakeEmbedder struct {
	vectors map[string][]float32
	batches int
	err     error
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.batches++
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = f.vectorFor(text)
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.vectorFor(text), nil
}

func (f *fakeEmbedder) vectorFor(text string) []float32 {
	if vec, ok := f.vectors[text]; ok {
		out := make([]float32, len(vec))
		copy(out, vec)
		return out
	}
	return []float32{1, 0, 0}
}

func newTestStore(t *testing.T, embedder Embedder, batchSize int) (*Store, *storage.Layout) {
	t.Helper()
	layout := storage.NewLayout(t.TempDir())
	return NewStore(layout, embedder, batchSize), layout
}

func TestStore_LoadMissingArtifact(t *testing.T) {
	store, _ := newTestStore(t, &fakeEmbedder{}, 10)

	chunks, index, err := store.Load(1)
	require.NoError(t, err)
	assert.Nil(t, chunks)
	assert.Nil(t, index)
}

func TestStore_RebuildThenLoad(t *testing.T) {
	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"first chunk":  {2, 0, 0},
		"second chunk": {0, 2, 0},
	}}
	store, _ := newTestStore(t, embedder, 10)

	err := store.Rebuild(context.Background(), 7, []string{"first chunk", "second chunk"})
	require.NoError(t, err)

	chunks, index, err := store.Load(7)
	require.NoError(t, err)
	assert.Equal(t, []string{"first chunk", "second chunk"}, chunks)
	require.NotNil(t, index)
	assert.Equal(t, 3, index.Dim)
	assert.Equal(t, 2, index.Len())

	// Vectors come back unit length.
	assert.InDelta(t, 1.0, float64(index.Vectors[0][0]), 1e-6)
	assert.InDelta(t, 1.0, float64(index.Vectors[1][1]), 1e-6)
}

func TestStore_RebuildReplacesPreviousArtifact(t *testing.T) {
	embedder := &fakeEmbedder{}
	store, _ := newTestStore(t, embedder, 10)
	ctx := context.Background()

	require.NoError(t, store.Rebuild(ctx, 3, []string{"old chunk"}))
	require.NoError(t, store.Rebuild(ctx, 3, []string{"new chunk a", "new chunk b"}))

	chunks, index, err := store.Load(3)
	require.NoError(t, err)
	assert.Equal(t, []string{"new chunk a", "new chunk b"}, chunks)
	assert.Equal(t, 2, index.Len())
}

func TestStore_RebuildEmptyRemovesArtifact(t *testing.T) {
	embedder := &fakeEmbedder{}
	store, layout := newTestStore(t, embedder, 10)
	ctx := context.Background()

	require.NoError(t, store.Rebuild(ctx, 5, []string{"a chunk"}))
	artifactPath := filepath.Join(layout.IndexDir(5), ArtifactName)
	_, statErr := os.Stat(artifactPath)
	require.NoError(t, statErr)

	require.NoError(t, store.Rebuild(ctx, 5, nil))
	_, statErr = os.Stat(artifactPath)
	assert.True(t, os.IsNotExist(statErr))

	chunks, index, err := store.Load(5)
	require.NoError(t, err)
	assert.Nil(t, chunks)
	assert.Nil(t, index)
}

func TestStore_RebuildBatchesEmbeddings(t *testing.T) {
	embedder := &fakeEmbedder{}
	store, _ := newTestStore(t, embedder, 2)

	chunks := make([]string, 5)
	for i := range chunks {
		chunks[i] = fmt.Sprintf("chunk %d", i)
	}
	require.NoError(t, store.Rebuild(context.Background(), 2, chunks))
	assert.Equal(t, 3, embedder.batches)
}

func TestStore_RebuildPropagatesEmbedderError(t *testing.T) {
	embedder := &fakeEmbedder{err: fmt.Errorf("embedding api down")}
	store, _ := newTestStore(t, embedder, 10)

	err := store.Rebuild(context.Background(), 1, []string{"a chunk"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embedding api down")
}
