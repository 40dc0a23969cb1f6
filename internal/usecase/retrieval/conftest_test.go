package retrieval

import (
	"context"

	"github.com/kailas-cloud/fusedex/internal/domain"
	"github.com/kailas-cloud/fusedex/internal/domain/search/hit"
)

// mockScorers implements Scorers with overridable functions.
type mockScorers struct {
	lexicalFn func(ctx context.Context, query string, limit int) ([]hit.Hit, error)
	vectorFn  func(ctx context.Context, embedding []float32, limit int) ([]hit.Hit, error)
}

func (m *mockScorers) SearchLexical(ctx context.Context, query string, limit int) ([]hit.Hit, error) {
	return m.lexicalFn(ctx, query, limit)
}

func (m *mockScorers) SearchVector(ctx context.Context, embedding []float32, limit int) ([]hit.Hit, error) {
	return m.vectorFn(ctx, embedding, limit)
}

// mockContent implements ContentReader.
type mockContent struct {
	getContentsFn func(ctx context.Context, ids []string) (map[string]string, error)
}

func (m *mockContent) GetContents(ctx context.Context, ids []string) (map[string]string, error) {
	return m.getContentsFn(ctx, ids)
}

// echoContent hydrates every requested id with a predictable body.
func echoContent() *mockContent {
	return &mockContent{
		getContentsFn: func(_ context.Context, ids []string) (map[string]string, error) {
			out := make(map[string]string, len(ids))
			for _, id := range ids {
				out[id] = "content of " + id
			}
			return out, nil
		},
	}
}

// mockEmbedder implements Embedder.
type mockEmbedder struct {
	embedFn func(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	return m.embedFn(ctx, text)
}

// fixedEmbedder always returns a vector of the given dimension.
func fixedEmbedder(dim int) *mockEmbedder {
	return &mockEmbedder{
		embedFn: func(context.Context, string) (domain.EmbeddingResult, error) {
			return domain.EmbeddingResult{Embedding: make([]float32, dim), TotalTokens: 3}, nil
		},
	}
}
