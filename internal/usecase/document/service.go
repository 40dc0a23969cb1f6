package document

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/fusedex/internal/domain"
)

// Batch ingest tuning.
const (
	// DefaultEmbedBatchSize is how many texts go into one embedding call.
	DefaultEmbedBatchSize = 64
	// DefaultEmbedConcurrency caps parallel embedding calls during batch ingest.
	DefaultEmbedConcurrency = 4
	// MaxBatchSize bounds one batch ingest request.
	MaxBatchSize = 1000
)

// Service handles document ingest and lifecycle. Documents arriving
// without a vector are embedded server-side before storage.
type Service struct {
	content   ContentStore
	embedder  domain.Embedder
	vectorDim int

	embedBatchSize   int
	embedConcurrency int
}

// New creates a document service.
func New(content ContentStore, embedder domain.Embedder, vectorDim int) *Service {
	return &Service{
		content:          content,
		embedder:         embedder,
		vectorDim:        vectorDim,
		embedBatchSize:   DefaultEmbedBatchSize,
		embedConcurrency: DefaultEmbedConcurrency,
	}
}

// WithEmbedTuning overrides batch embedding chunk size and concurrency.
func (s *Service) WithEmbedTuning(batchSize, concurrency int) *Service {
	if batchSize > 0 {
		s.embedBatchSize = batchSize
	}
	if concurrency > 0 {
		s.embedConcurrency = concurrency
	}
	return s
}

// Upsert validates, embeds if needed and stores one document.
// Returns true if the document was created rather than replaced.
func (s *Service) Upsert(ctx context.Context, id, content string, vector []float32) (bool, error) {
	doc, err := domain.NewDocument(id, content, vector)
	if err != nil {
		return false, fmt.Errorf("%w: %v", domain.ErrInvalidOptions, err)
	}

	if doc.Vector() == nil {
		res, err := s.embedder.Embed(ctx, doc.Content())
		if err != nil {
			return false, fmt.Errorf("embed document %s: %w", id, err)
		}
		doc.SetVector(res.Embedding)
	}

	if len(doc.Vector()) != s.vectorDim {
		return false, domain.NewDimensionMismatch(len(doc.Vector()), s.vectorDim)
	}

	created, err := s.content.Upsert(ctx, &doc)
	if err != nil {
		return false, fmt.Errorf("store document %s: %w", id, err)
	}
	return created, nil
}

// Get returns a stored document.
func (s *Service) Get(ctx context.Context, id string) (domain.Document, error) {
	return s.content.Get(ctx, id)
}

// Delete removes a document. Its lexical and vector index entries vanish
// together with the backing key.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.content.Delete(ctx, id)
}

// BatchItem is one document in a batch ingest request.
type BatchItem struct {
	ID      string
	Content string
	Vector  []float32
}

// BatchItemResult reports the outcome for one batch item.
type BatchItemResult struct {
	ID  string
	Err error
}

// UpsertBatch ingests many documents at once. Items are validated
// individually; invalid ones are reported in the result without failing
// the rest. Missing vectors are embedded in chunks running concurrently,
// then everything lands in storage in one pipelined write.
func (s *Service) UpsertBatch(ctx context.Context, items []BatchItem) ([]BatchItemResult, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: empty batch", domain.ErrInvalidOptions)
	}
	if len(items) > MaxBatchSize {
		return nil, fmt.Errorf("%w: batch too large (max %d items)", domain.ErrInvalidOptions, MaxBatchSize)
	}

	results := make([]BatchItemResult, len(items))
	docs := make([]domain.Document, len(items))
	var toEmbed []int

	for i, item := range items {
		results[i].ID = item.ID

		doc, err := domain.NewDocument(item.ID, item.Content, item.Vector)
		if err != nil {
			results[i].Err = fmt.Errorf("%w: %v", domain.ErrInvalidOptions, err)
			continue
		}
		if doc.Vector() != nil && len(doc.Vector()) != s.vectorDim {
			results[i].Err = domain.NewDimensionMismatch(len(doc.Vector()), s.vectorDim)
			continue
		}

		docs[i] = doc
		if doc.Vector() == nil {
			toEmbed = append(toEmbed, i)
		}
	}

	if err := s.embedMissing(ctx, docs, results, toEmbed); err != nil {
		return nil, err
	}

	var store []domain.Document
	for i := range docs {
		if results[i].Err == nil && docs[i].ID() != "" {
			store = append(store, docs[i])
		}
	}
	if len(store) > 0 {
		if err := s.content.UpsertMulti(ctx, store); err != nil {
			return nil, fmt.Errorf("store batch: %w", err)
		}
	}

	return results, nil
}

// embedMissing fills in vectors for the given doc indexes, chunked into
// batch embedding calls with bounded concurrency.
func (s *Service) embedMissing(ctx context.Context, docs []domain.Document, results []BatchItemResult, toEmbed []int) error {
	if len(toEmbed) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.embedConcurrency)

	var mu sync.Mutex
	for start := 0; start < len(toEmbed); start += s.embedBatchSize {
		chunk := toEmbed[start:min(start+s.embedBatchSize, len(toEmbed))]

		g.Go(func() error {
			texts := make([]string, len(chunk))
			for j, i := range chunk {
				texts[j] = docs[i].Content()
			}

			res, err := s.batchEmbed(gctx, texts)
			if err != nil {
				return fmt.Errorf("embed batch chunk: %w", err)
			}

			mu.Lock()
			defer mu.Unlock()
			for j, i := range chunk {
				vec := res.Embeddings[j]
				if len(vec) != s.vectorDim {
					results[i].Err = domain.NewDimensionMismatch(len(vec), s.vectorDim)
					continue
				}
				docs[i].SetVector(vec)
			}
			return nil
		})
	}

	return g.Wait()
}

func (s *Service) batchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if be, ok := s.embedder.(domain.BatchEmbedder); ok {
		return be.BatchEmbed(ctx, texts)
	}
	return domain.BatchFallback(ctx, s.embedder, texts)
}
