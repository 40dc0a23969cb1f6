package scorer

import (
	"context"
	"fmt"
	"strings"

	"github.com/kailas-cloud/fusedex/internal/db"
	"github.com/kailas-cloud/fusedex/internal/domain"
	"github.com/kailas-cloud/fusedex/internal/domain/search/hit"
)

// store is the consumer interface for scorer queries (ISP).
type store interface {
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchBM25(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error)
}

// Repo issues ranked candidate queries against the corpus FT index.
// Both scorers are read-only and independent of each other.
type Repo struct {
	store store
}

// New creates a scorer repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// SearchLexical returns up to limit hits ranked by BM25 relevance.
// No matching terms yields an empty slice, nil error. Transport failures
// surface as domain.ErrIndexUnavailable.
func (r *Repo) SearchLexical(ctx context.Context, query string, limit int) ([]hit.Hit, error) {
	q := &db.TextQuery{
		IndexName: domain.IndexName(),
		Query:     query,
		TopK:      limit,
	}

	sr, err := r.store.SearchBM25(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("search lexical: %v: %w", err, domain.ErrIndexUnavailable)
	}

	return toHits(sr), nil
}

// SearchVector returns up to limit hits ranked by ascending cosine distance.
// Dimensionality is validated by the caller before any I/O.
func (r *Repo) SearchVector(ctx context.Context, embedding []float32, limit int) ([]hit.Hit, error) {
	q := &db.KNNQuery{
		IndexName: domain.IndexName(),
		Vector:    embedding,
		K:         limit,
	}

	sr, err := r.store.SearchKNN(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("search vector: %v: %w", err, domain.ErrIndexUnavailable)
	}

	return toHits(sr), nil
}

// toHits converts search entries into ranked hits, stripping the key prefix.
// Ranks are 1-based in input order; ties in the raw score keep that order.
func toHits(sr *db.SearchResult) []hit.Hit {
	if sr == nil || len(sr.Entries) == 0 {
		return nil
	}

	prefix := domain.DocKeyPrefix()
	hits := make([]hit.Hit, 0, len(sr.Entries))
	for i, entry := range sr.Entries {
		id := strings.TrimPrefix(entry.Key, prefix)
		hits = append(hits, hit.New(id, i+1, entry.Score))
	}
	return hits
}
