package rag

import (
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"documind/internal/storage"
)

// ArtifactName is the per-user on-disk blob holding the chunk list and the
// similarity index built over it.
const ArtifactName = "store.gob"

const defaultEmbedBatchSize = 10

// Embedder produces unit-length embedding vectors. Document and query
// embedding go through the same implementation so scores stay comparable.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// artifact is the gob-encoded composite persisted per user. Bundling the
// chunks and vectors in one file keeps "index row i is chunk i" true by
// construction: the two can never be written separately.
type artifact struct {
	Chunks  []string
	Dim     int
	Vectors [][]float32
}

// Store owns the persisted chunk list and similarity index for each user.
type Store struct {
	layout    *storage.Layout
	embedder  Embedder
	batchSize int
}

func NewStore(layout *storage.Layout, embedder Embedder, batchSize int) *Store {
	if batchSize <= 0 {
		batchSize = defaultEmbedBatchSize
	}
	return &Store{
		layout:    layout,
		embedder:  embedder,
		batchSize: batchSize,
	}
}

func (s *Store) artifactPath(userID uint) string {
	return filepath.Join(s.layout.IndexDir(userID), ArtifactName)
}

// Load reads the persisted chunk list and index for a user. A missing
// artifact is the normal "no documents yet" state and returns an empty
// chunk list with a nil index, not an error.
func (s *Store) Load(userID uint) ([]string, *FlatIndex, error) {
	f, err := os.Open(s.artifactPath(userID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("open store artifact failed: %w", err)
	}
	defer f.Close()

	var art artifact
	if err := gob.NewDecoder(f).Decode(&art); err != nil {
		return nil, nil, fmt.Errorf("decode store artifact failed: %w", err)
	}

	index := &FlatIndex{Dim: art.Dim, Vectors: art.Vectors}
	return art.Chunks, index, nil
}

// Rebuild embeds the complete desired chunk list, builds a fresh flat
// inner-product index over it, and atomically replaces the persisted
// artifact. An empty chunk list removes the artifact so subsequent loads
// see the empty state.
func (s *Store) Rebuild(ctx context.Context, userID uint, chunks []string) error {
	if len(chunks) == 0 {
		return storage.RemoveFile(s.artifactPath(userID))
	}

	vectors, err := s.embedAll(ctx, chunks)
	if err != nil {
		return err
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embedding count mismatch: %d vectors for %d chunks", len(vectors), len(chunks))
	}
	for _, vec := range vectors {
		Normalize(vec)
	}

	art := artifact{
		Chunks:  chunks,
		Dim:     len(vectors[0]),
		Vectors: vectors,
	}
	return s.persist(userID, art)
}

// embedAll calls the embedding API in batches to respect provider limits.
func (s *Store) embedAll(ctx context.Context, chunks []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(chunks))
	for i := 0; i < len(chunks); i += s.batchSize {
		end := i + s.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch, err := s.embedder.EmbedBatch(ctx, chunks[i:end])
		if err != nil {
			return nil, fmt.Errorf("embed chunk batch failed: %w", err)
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

// persist writes the artifact to a temp file in the same directory and
// renames it into place, so readers only ever observe a complete rebuild.
func (s *Store) persist(userID uint, art artifact) error {
	if err := s.layout.EnsureUserDirs(userID); err != nil {
		return err
	}

	dir := s.layout.IndexDir(userID)
	tmp, err := os.CreateTemp(dir, ArtifactName+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp artifact failed: %w", err)
	}
	tmpPath := tmp.Name()

	if err := gob.NewEncoder(tmp).Encode(art); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("encode store artifact failed: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp artifact failed: %w", err)
	}

	if err := os.Rename(tmpPath, s.artifactPath(userID)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("publish store artifact failed: %w", err)
	}
	return nil
}
