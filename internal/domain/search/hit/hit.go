package hit

// Hit is a single scorer hit: a document id at its 1-based rank within
// one source's list. Produced transiently per query, never persisted.
type Hit struct {
	id    string
	rank  int
	score float64
}

// New creates a ranked hit. Rank is 1-based.
func New(id string, rank int, score float64) Hit {
	return Hit{id: id, rank: rank, score: score}
}

// ID returns the document identifier.
func (h *Hit) ID() string { return h.id }

// Rank returns the 1-based position within the source list.
func (h *Hit) Rank() int { return h.rank }

// Score returns the source-native score (BM25 score or vector similarity).
// Scores from different sources are not comparable; fusion uses ranks only.
func (h *Hit) Score() float64 { return h.score }
