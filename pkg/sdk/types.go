package fusedex

// Document is a corpus document.
type Document struct {
	ID      string
	Content string
	// Vector is optional; when absent the client embeds Content server-side.
	Vector []float32
}

// PartialFailurePolicy decides what happens when one retrieval source fails.
type PartialFailurePolicy string

// Partial failure policies.
const (
	// Degrade answers from the surviving source and flags the result set.
	Degrade PartialFailurePolicy = "degrade"
	// Fail turns a single-source failure into a request error.
	Fail PartialFailurePolicy = "fail"
)

// SearchOptions tune one hybrid query. Zero values mean defaults:
// per-source limit 20, final limit 10, equal weights, k=60, policy degrade.
type SearchOptions struct {
	// Embedding is the pre-computed query vector. When nil, the query text
	// is embedded via the configured embedder.
	Embedding []float32
	// PerSourceLimit is how many candidates each scorer contributes.
	PerSourceLimit int
	// Limit caps the fused result count.
	Limit int
	// LexicalWeight scales BM25 rank contributions (nil = 1.0, 0 disables).
	LexicalWeight *float64
	// VectorWeight scales KNN rank contributions (nil = 1.0, 0 disables).
	VectorWeight *float64
	// RRFK is the reciprocal rank fusion smoothing constant in [1, 1000].
	RRFK int
	// OnPartialFailure selects the single-source failure policy.
	OnPartialFailure PartialFailurePolicy
}

// SearchResult is one fused hit.
type SearchResult struct {
	ID      string
	Score   float64
	Content string
	// Sources lists which scorers ranked this document ("lexical", "vector").
	Sources []string
}

// SearchResponse is the outcome of one hybrid query.
type SearchResponse struct {
	Results []SearchResult
	// Degraded is true when one source failed and the degrade policy
	// answered from the survivor alone.
	Degraded bool
	// MissingSource names the failed source on a degraded response.
	MissingSource string
}

// BatchResult reports the outcome for one batch-ingested document.
type BatchResult struct {
	ID  string
	Err error
}
