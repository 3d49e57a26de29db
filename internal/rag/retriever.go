package rag

import (
	"context"
	"strings"
)

const (
	DefaultTopK             = 3
	DefaultTopScoreGate     = 0.80
	DefaultIncludeThreshold = 0.78
	DefaultMaxContextChars  = 4000
)

// Retriever answers "what do this user's documents say about this query"
// as a bounded context string. Two thresholds apply: if even the best hit
// scores below the top gate the query is judged unrelated to the document
// set and no context is used at all; otherwise every hit at or above the
// inclusion threshold is kept.
type Retriever struct {
	store            *Store
	embedder         Embedder
	topK             int
	topScoreGate     float32
	includeThreshold float32
	maxContextChars  int
}

func NewRetriever(store *Store, embedder Embedder, topK int, topGate, includeThreshold float64, maxContextChars int) *Retriever {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if maxContextChars <= 0 {
		maxContextChars = DefaultMaxContextChars
	}
	return &Retriever{
		store:            store,
		embedder:         embedder,
		topK:             topK,
		topScoreGate:     float32(topGate),
		includeThreshold: float32(includeThreshold),
		maxContextChars:  maxContextChars,
	}
}

// Retrieve embeds the query, searches the user's index, and assembles the
// context. An absent or empty store yields an empty context, never an
// error.
func (r *Retriever) Retrieve(ctx context.Context, userID uint, query string) (string, error) {
	chunks, index, err := r.store.Load(userID)
	if err != nil {
		return "", err
	}
	if index == nil || len(chunks) == 0 || index.Len() == 0 {
		return "", nil
	}

	queryVec, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return "", err
	}
	Normalize(queryVec)

	hits := index.Search(queryVec, r.topK)
	if len(hits) == 0 || hits[0].Score < r.topScoreGate {
		return "", nil
	}

	var parts []string
	for _, hit := range hits {
		if hit.Score < r.includeThreshold {
			continue
		}
		// Skip rows pointing past the chunk list rather than fail the
		// whole retrieval.
		if hit.ID < 0 || hit.ID >= len(chunks) {
			continue
		}
		parts = append(parts, chunks[hit.ID])
	}

	context := strings.Join(parts, "\n\n")
	if len(context) > r.maxContextChars {
		context = context[:r.maxContextChars]
	}
	return context, nil
}
