package rag

import (
	"math"
	"sort"
)

// FlatIndex is an exact inner-product similarity index over normalized
// vectors: a flat list scanned in full on every search. Row i of the index
// always corresponds to position i of the chunk list it was built from.
type FlatIndex struct {
	Dim     int
	Vectors [][]float32
}

// SearchHit is one nearest-neighbor candidate.
type SearchHit struct {
	ID    int
	Score float32
}

func NewFlatIndex(dim int) *FlatIndex {
	return &FlatIndex{Dim: dim}
}

// Add appends vectors to the index in order.
func (ix *FlatIndex) Add(vectors [][]float32) {
	ix.Vectors = append(ix.Vectors, vectors...)
}

// Len returns the number of indexed rows.
func (ix *FlatIndex) Len() int {
	return len(ix.Vectors)
}

// Search returns up to k hits ordered by descending inner product. With
// unit vectors on both sides the inner product is the cosine similarity.
func (ix *FlatIndex) Search(query []float32, k int) []SearchHit {
	if k <= 0 || len(ix.Vectors) == 0 || len(query) != ix.Dim {
		return nil
	}

	hits := make([]SearchHit, len(ix.Vectors))
	for i, vec := range ix.Vectors {
		hits[i] = SearchHit{ID: i, Score: dot(query, vec)}
	}
	sort.SliceStable(hits, func(a, b int) bool {
		return hits[a].Score > hits[b].Score
	})

	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k]
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// Normalize scales vec to unit L2 length in place, so inner product equals
// cosine similarity. Zero vectors are left untouched.
func Normalize(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range vec {
		vec[i] *= inv
	}
}
