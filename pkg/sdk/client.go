// Package fusedex is the embedded SDK: it wires the hybrid retrieval
// services directly over a Redis connection, without the HTTP layer.
package fusedex

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kailas-cloud/fusedex/internal/db"
	dbRedis "github.com/kailas-cloud/fusedex/internal/db/redis"
	"github.com/kailas-cloud/fusedex/internal/domain"
	"github.com/kailas-cloud/fusedex/internal/domain/search/request"
	contentrepo "github.com/kailas-cloud/fusedex/internal/repository/content"
	corpusrepo "github.com/kailas-cloud/fusedex/internal/repository/corpus"
	scorerrepo "github.com/kailas-cloud/fusedex/internal/repository/scorer"
	documentuc "github.com/kailas-cloud/fusedex/internal/usecase/document"
	retrievaluc "github.com/kailas-cloud/fusedex/internal/usecase/retrieval"
)

const (
	defaultReadinessTimeout = 10 * time.Second
	defaultVectorDim        = 1536
)

// Internal interfaces for test substitution.
type retrievalUseCase interface {
	Search(ctx context.Context, req *request.Request) (*retrievaluc.Response, error)
}

type documentUseCase interface {
	Upsert(ctx context.Context, id, content string, vector []float32) (bool, error)
	Get(ctx context.Context, id string) (domain.Document, error)
	Delete(ctx context.Context, id string) error
	UpsertBatch(ctx context.Context, items []documentuc.BatchItem) ([]documentuc.BatchItemResult, error)
}

// Client is the fusedex SDK entry point.
type Client struct {
	store        db.Store
	retrievalSvc retrievalUseCase
	documentSvc  documentUseCase
}

// New creates a fusedex Client, connects to the database and ensures the
// corpus index exists. The provided context bounds the initial readiness
// check and index creation.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		vectorDimensions: defaultVectorDim,
	}
	for _, o := range opts {
		o.apply(cfg)
	}

	if len(cfg.addrs) == 0 {
		return nil, errors.New("fusedex: database address required (use WithRedis)")
	}

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.addrs,
		Password: cfg.password,
	})
	if err != nil {
		return nil, fmt.Errorf("fusedex: create store: %w", err)
	}

	if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("fusedex: database not ready: %w", err)
	}

	return wireClient(ctx, store, cfg)
}

func wireClient(ctx context.Context, store db.Store, cfg *clientConfig) (*Client, error) {
	corpusRepo := corpusrepo.New(store, cfg.vectorDimensions, db.DistanceCosine)
	if cfg.hnswM > 0 || cfg.hnswEFConstruct > 0 {
		corpusRepo = corpusRepo.WithHNSW(corpusrepo.HNSWConfig{
			M:           cfg.hnswM,
			EFConstruct: cfg.hnswEFConstruct,
		})
	}
	if err := corpusRepo.EnsureIndex(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("fusedex: ensure index: %w", err)
	}

	contentRepo := contentrepo.New(store)
	scorerRepo := scorerrepo.New(store)

	var domEmb domain.Embedder = noopEmbedder{}
	if cfg.embedder != nil {
		domEmb = &embedderAdapter{inner: cfg.embedder}
	}

	retrievalSvc := retrievaluc.New(scorerRepo, contentRepo, domEmb, cfg.vectorDimensions)
	if cfg.sourceTimeout > 0 {
		retrievalSvc = retrievalSvc.WithSourceTimeout(cfg.sourceTimeout)
	}
	documentSvc := documentuc.New(contentRepo, domEmb, cfg.vectorDimensions)

	return &Client{
		store:        store,
		retrievalSvc: retrievalSvc,
		documentSvc:  documentSvc,
	}, nil
}

// Close releases all resources.
func (c *Client) Close() {
	if c.store != nil {
		c.store.Close()
	}
}

// Ping checks database connectivity.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Search runs one hybrid query: BM25 and KNN in parallel, fused with
// weighted reciprocal rank fusion.
func (c *Client) Search(ctx context.Context, query string, opts *SearchOptions) (SearchResponse, error) {
	if opts == nil {
		opts = &SearchOptions{}
	}

	req, err := request.New(request.Params{
		Query:          query,
		Embedding:      opts.Embedding,
		PerSourceLimit: opts.PerSourceLimit,
		Limit:          opts.Limit,
		LexicalWeight:  opts.LexicalWeight,
		VectorWeight:   opts.VectorWeight,
		RRFK:           opts.RRFK,
		OnPartialFail:  request.Policy(opts.OnPartialFailure),
	})
	if err != nil {
		return SearchResponse{}, fmt.Errorf("search: %w", err)
	}

	resp, err := c.retrievalSvc.Search(ctx, req)
	if err != nil {
		return SearchResponse{}, fmt.Errorf("search: %w", err)
	}

	results := make([]SearchResult, len(resp.Results))
	for i := range resp.Results {
		r := &resp.Results[i]
		sources := make([]string, len(r.Sources()))
		for j, src := range r.Sources() {
			sources[j] = string(src)
		}
		results[i] = SearchResult{
			ID:      r.ID(),
			Score:   r.Score(),
			Content: r.Content(),
			Sources: sources,
		}
	}

	return SearchResponse{
		Results:       results,
		Degraded:      resp.Degraded,
		MissingSource: string(resp.MissingSource),
	}, nil
}

// Upsert stores one document. Returns true if it was created rather than
// replaced. A document without a vector is embedded via the configured
// embedder.
func (c *Client) Upsert(ctx context.Context, doc Document) (bool, error) {
	created, err := c.documentSvc.Upsert(ctx, doc.ID, doc.Content, doc.Vector)
	if err != nil {
		return false, fmt.Errorf("upsert %s: %w", doc.ID, err)
	}
	return created, nil
}

// UpsertBatch ingests many documents at once, reporting per-item outcomes.
func (c *Client) UpsertBatch(ctx context.Context, docs []Document) ([]BatchResult, error) {
	items := make([]documentuc.BatchItem, len(docs))
	for i, d := range docs {
		items[i] = documentuc.BatchItem{ID: d.ID, Content: d.Content, Vector: d.Vector}
	}

	results, err := c.documentSvc.UpsertBatch(ctx, items)
	if err != nil {
		return nil, fmt.Errorf("upsert batch: %w", err)
	}

	out := make([]BatchResult, len(results))
	for i, r := range results {
		out[i] = BatchResult{ID: r.ID, Err: r.Err}
	}
	return out, nil
}

// Get returns a stored document with its vector.
func (c *Client) Get(ctx context.Context, id string) (Document, error) {
	doc, err := c.documentSvc.Get(ctx, id)
	if err != nil {
		return Document{}, fmt.Errorf("get %s: %w", id, err)
	}
	return Document{ID: doc.ID(), Content: doc.Content(), Vector: doc.Vector()}, nil
}

// Delete removes a document and its index entries.
func (c *Client) Delete(ctx context.Context, id string) error {
	if err := c.documentSvc.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	return nil
}

// embedderAdapter wraps the public Embedder to satisfy internal domain.Embedder.
type embedderAdapter struct {
	inner Embedder
}

func (a *embedderAdapter) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	r, err := a.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}
	return domain.EmbeddingResult{
		Embedding:    r.Embedding,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}

// BatchEmbed forwards to the public BatchEmbedder when available.
func (a *embedderAdapter) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	be, ok := a.inner.(BatchEmbedder)
	if !ok {
		return domain.BatchFallback(ctx, a, texts)
	}
	r, err := be.BatchEmbed(ctx, texts)
	if err != nil {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("batch embed: %w", err)
	}
	return domain.BatchEmbeddingResult{
		Embeddings:   r.Embeddings,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}

// noopEmbedder returns an error on Embed call (used when no embedder configured).
type noopEmbedder struct{}

func (noopEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	return domain.EmbeddingResult{}, errors.New(
		"fusedex: embedder not configured (use WithEmbedder or supply embeddings)",
	)
}
