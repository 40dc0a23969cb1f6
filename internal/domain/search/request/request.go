package request

import (
	"fmt"

	"github.com/kailas-cloud/fusedex/internal/domain"
)

// Search parameter limits.
const (
	// MaxQueryLength is the maximum allowed search query length.
	MaxQueryLength = 4096

	DefaultPerSourceLimit = 20
	MaxPerSourceLimit     = 200
	DefaultLimit          = 10
	MaxLimit              = 100

	// DefaultRRFK is the standard smoothing constant (Cormack et al. 2009).
	DefaultRRFK = 60
	MinRRFK     = 1
	MaxRRFK     = 1000

	DefaultWeight = 1.0
)

// Policy decides what happens when exactly one scorer fails.
type Policy string

// Partial failure policies.
const (
	// PolicyDegrade fuses the surviving source and flags the response as degraded.
	PolicyDegrade Policy = "degrade"
	// PolicyFail turns a single-source failure into a request failure.
	PolicyFail Policy = "fail"
)

// IsValid checks if the policy is one of the supported values.
func (p Policy) IsValid() bool {
	return p == PolicyDegrade || p == PolicyFail
}

// Params are the raw, unvalidated search parameters as they arrive at the edge.
// Zero values mean "use the default".
type Params struct {
	Query          string
	Embedding      []float32
	PerSourceLimit int
	Limit          int
	LexicalWeight  *float64
	VectorWeight   *float64
	RRFK           int
	OnPartialFail  Policy
}

// Request is a validated search query.
type Request struct {
	query          string
	embedding      []float32
	perSourceLimit int
	limit          int
	lexicalWeight  float64
	vectorWeight   float64
	rrfK           int
	policy         Policy
}

// New validates and normalizes search parameters.
// Defaults: per-source limit 20, final limit 10, equal weights 1.0, k=60,
// policy=degrade. Out-of-domain values (k outside [1,1000], negative
// weights, both weights zero) are rejected with domain.ErrInvalidOptions
// before any I/O. Limits above the maximum are clamped, not rejected.
func New(p Params) (*Request, error) {
	if p.Query == "" {
		return nil, fmt.Errorf("%w: query is required", domain.ErrInvalidOptions)
	}
	if len(p.Query) > MaxQueryLength {
		return nil, fmt.Errorf("%w: query too long (max %d chars)", domain.ErrInvalidOptions, MaxQueryLength)
	}

	perSource := p.PerSourceLimit
	if perSource == 0 {
		perSource = DefaultPerSourceLimit
	}
	if perSource < 0 {
		return nil, fmt.Errorf("%w: per_source_limit must be positive", domain.ErrInvalidOptions)
	}
	if perSource > MaxPerSourceLimit {
		perSource = MaxPerSourceLimit
	}

	limit := p.Limit
	if limit == 0 {
		limit = DefaultLimit
	}
	if limit < 0 {
		return nil, fmt.Errorf("%w: limit must be positive", domain.ErrInvalidOptions)
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	k := p.RRFK
	if k == 0 {
		k = DefaultRRFK
	}
	if k < MinRRFK || k > MaxRRFK {
		return nil, fmt.Errorf("%w: rrf_k must be in [%d, %d], got %d",
			domain.ErrInvalidOptions, MinRRFK, MaxRRFK, k)
	}

	lexW := DefaultWeight
	if p.LexicalWeight != nil {
		lexW = *p.LexicalWeight
	}
	vecW := DefaultWeight
	if p.VectorWeight != nil {
		vecW = *p.VectorWeight
	}
	if lexW < 0 || vecW < 0 {
		return nil, fmt.Errorf("%w: weights must be non-negative", domain.ErrInvalidOptions)
	}
	if lexW == 0 && vecW == 0 {
		return nil, fmt.Errorf("%w: at least one source weight must be positive", domain.ErrInvalidOptions)
	}

	policy := p.OnPartialFail
	if policy == "" {
		policy = PolicyDegrade
	}
	if !policy.IsValid() {
		return nil, fmt.Errorf("%w: unknown partial failure policy %q", domain.ErrInvalidOptions, policy)
	}

	return &Request{
		query:          p.Query,
		embedding:      p.Embedding,
		perSourceLimit: perSource,
		limit:          limit,
		lexicalWeight:  lexW,
		vectorWeight:   vecW,
		rrfK:           k,
		policy:         policy,
	}, nil
}

// Query returns the search query text.
func (r *Request) Query() string { return r.query }

// Embedding returns the caller-supplied query embedding (nil if the
// service should embed the query itself).
func (r *Request) Embedding() []float32 { return r.embedding }

// SetEmbedding attaches the server-side query embedding.
func (r *Request) SetEmbedding(v []float32) { r.embedding = v }

// PerSourceLimit returns the candidate count requested from each scorer.
func (r *Request) PerSourceLimit() int { return r.perSourceLimit }

// Limit returns the maximum fused results to return.
func (r *Request) Limit() int { return r.limit }

// LexicalWeight returns the lexical source weight.
func (r *Request) LexicalWeight() float64 { return r.lexicalWeight }

// VectorWeight returns the vector source weight.
func (r *Request) VectorWeight() float64 { return r.vectorWeight }

// RRFK returns the RRF smoothing constant.
func (r *Request) RRFK() int { return r.rrfK }

// Policy returns the partial failure policy.
func (r *Request) Policy() Policy { return r.policy }
