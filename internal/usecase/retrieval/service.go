package retrieval

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/fusedex/internal/domain"
	"github.com/kailas-cloud/fusedex/internal/domain/search/hit"
	"github.com/kailas-cloud/fusedex/internal/domain/search/request"
	"github.com/kailas-cloud/fusedex/internal/domain/search/result"
	"github.com/kailas-cloud/fusedex/internal/domain/search/source"
	"github.com/kailas-cloud/fusedex/internal/logger"
	"github.com/kailas-cloud/fusedex/internal/metrics"
)

// DefaultSourceTimeout bounds each scorer call independently, so one slow
// source cannot drag the whole request past its budget.
const DefaultSourceTimeout = 2 * time.Second

// Response is the outcome of one fused search.
type Response struct {
	Results []result.Fused
	// Degraded is true when one source failed and the degrade policy
	// answered from the survivor alone.
	Degraded bool
	// MissingSource names the failed source on a degraded response.
	MissingSource source.Source
}

// Service orchestrates the two scorers, fuses their rank lists and
// hydrates the winners with content.
type Service struct {
	scorers       Scorers
	content       ContentReader
	embedder      Embedder
	vectorDim     int
	sourceTimeout time.Duration
}

// New creates a retrieval service. vectorDim is the dimension the index
// was created with; query embeddings are validated against it up front.
func New(scorers Scorers, content ContentReader, embedder Embedder, vectorDim int) *Service {
	return &Service{
		scorers:       scorers,
		content:       content,
		embedder:      embedder,
		vectorDim:     vectorDim,
		sourceTimeout: DefaultSourceTimeout,
	}
}

// WithSourceTimeout overrides the per-source timeout.
func (s *Service) WithSourceTimeout(d time.Duration) *Service {
	if d > 0 {
		s.sourceTimeout = d
	}
	return s
}

// sourceOutcome is what one scorer goroutine reports back.
type sourceOutcome struct {
	hits []hit.Hit
	err  error
}

// Search runs a hybrid query: both scorers in parallel, weighted RRF over
// their rank lists, then one batched content read for the fused ids.
//
// Exactly one source failing is resolved by the request policy: degrade
// answers from the survivor and flags the response, fail turns it into an
// error. Both sources failing is always an error.
func (s *Service) Search(ctx context.Context, req *request.Request) (*Response, error) {
	embedding, err := s.queryEmbedding(ctx, req)
	if err != nil {
		metrics.SearchRequestsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	lexical, vector := s.fanOut(ctx, req, embedding)

	resp, err := s.resolve(ctx, req, lexical, vector)
	if err != nil {
		metrics.SearchRequestsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	resp.Results, err = s.hydrate(ctx, resp.Results)
	if err != nil {
		metrics.SearchRequestsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	if resp.Degraded {
		metrics.SearchRequestsTotal.WithLabelValues("degraded").Inc()
	} else {
		metrics.SearchRequestsTotal.WithLabelValues("ok").Inc()
	}
	return resp, nil
}

// queryEmbedding returns the caller-supplied embedding or embeds the query
// text server-side. Either way the dimension must match the index.
func (s *Service) queryEmbedding(ctx context.Context, req *request.Request) ([]float32, error) {
	if emb := req.Embedding(); emb != nil {
		if len(emb) != s.vectorDim {
			return nil, domain.NewDimensionMismatch(len(emb), s.vectorDim)
		}
		return emb, nil
	}

	res, err := s.embedder.Embed(ctx, req.Query())
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(res.Embedding) != s.vectorDim {
		return nil, domain.NewDimensionMismatch(len(res.Embedding), s.vectorDim)
	}
	return res.Embedding, nil
}

// fanOut runs both scorers concurrently, each under its own timeout derived
// from the request context, so caller cancellation still reaches both.
func (s *Service) fanOut(ctx context.Context, req *request.Request, embedding []float32) (lexical, vector sourceOutcome) {
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		lexical = s.runSource(ctx, source.Lexical, func(sctx context.Context) ([]hit.Hit, error) {
			return s.scorers.SearchLexical(sctx, req.Query(), req.PerSourceLimit())
		})
	}()

	go func() {
		defer wg.Done()
		vector = s.runSource(ctx, source.Vector, func(sctx context.Context) ([]hit.Hit, error) {
			return s.scorers.SearchVector(sctx, embedding, req.PerSourceLimit())
		})
	}()

	wg.Wait()
	return lexical, vector
}

func (s *Service) runSource(ctx context.Context, src source.Source, search func(context.Context) ([]hit.Hit, error)) sourceOutcome {
	sctx, cancel := context.WithTimeout(ctx, s.sourceTimeout)
	defer cancel()

	start := time.Now()
	hits, err := search(sctx)
	metrics.SourceLatency.WithLabelValues(string(src)).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.SourceFailuresTotal.WithLabelValues(string(src), failureReason(err)).Inc()
		return sourceOutcome{err: err}
	}
	return sourceOutcome{hits: hits}
}

func failureReason(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	return "unavailable"
}

// resolve applies the partial failure policy and fuses the surviving lists.
func (s *Service) resolve(ctx context.Context, req *request.Request, lexical, vector sourceOutcome) (*Response, error) {
	opts := fusionOpts{
		k:             req.RRFK(),
		lexicalWeight: req.LexicalWeight(),
		vectorWeight:  req.VectorWeight(),
		limit:         req.Limit(),
	}

	switch {
	case lexical.err != nil && vector.err != nil:
		return nil, fmt.Errorf("lexical: %v; vector: %v: %w",
			lexical.err, vector.err, domain.ErrBothSourcesFailed)

	case lexical.err != nil:
		return s.degradeOrFail(ctx, req, source.Lexical, lexical.err,
			fuseRRF(nil, vector.hits, opts))

	case vector.err != nil:
		return s.degradeOrFail(ctx, req, source.Vector, vector.err,
			fuseRRF(lexical.hits, nil, opts))
	}

	return &Response{Results: fuseRRF(lexical.hits, vector.hits, opts)}, nil
}

func (s *Service) degradeOrFail(
	ctx context.Context,
	req *request.Request,
	failed source.Source,
	cause error,
	survivors []result.Fused,
) (*Response, error) {
	if req.Policy() == request.PolicyFail {
		return nil, domain.NewSourceFailure(string(failed), cause)
	}

	metrics.DegradedSearchesTotal.WithLabelValues(string(failed)).Inc()
	logger.FromContext(ctx).Warn("Search degraded to single source",
		zap.String("missing_source", string(failed)),
		zap.Error(cause),
	)

	return &Response{
		Results:       survivors,
		Degraded:      true,
		MissingSource: failed,
	}, nil
}

// hydrate attaches stored content to the fused results in one batched read.
// Ids deleted between scoring and hydration are dropped silently.
func (s *Service) hydrate(ctx context.Context, fused []result.Fused) ([]result.Fused, error) {
	if len(fused) == 0 {
		return fused, nil
	}

	ids := make([]string, len(fused))
	for i := range fused {
		ids[i] = fused[i].ID()
	}

	contents, err := s.content.GetContents(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("hydrate results: %w", err)
	}

	hydrated := fused[:0]
	for _, r := range fused {
		content, ok := contents[r.ID()]
		if !ok {
			continue
		}
		hydrated = append(hydrated, r.WithContent(content))
	}
	return hydrated, nil
}
