package retrieval

import (
	"context"

	"github.com/kailas-cloud/fusedex/internal/domain"
	"github.com/kailas-cloud/fusedex/internal/domain/search/hit"
)

// Scorers is the storage contract for the two independent candidate rankers.
type Scorers interface {
	SearchLexical(ctx context.Context, query string, limit int) ([]hit.Hit, error)
	SearchVector(ctx context.Context, embedding []float32, limit int) ([]hit.Hit, error)
}

// ContentReader hydrates fused ids with stored content in one batched read.
type ContentReader interface {
	GetContents(ctx context.Context, ids []string) (map[string]string, error)
}

// Embedder vectorizes the query when the caller did not supply an embedding.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
