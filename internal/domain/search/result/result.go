package result

import "github.com/kailas-cloud/fusedex/internal/domain/search/source"

// Fused is a single hit after rank fusion.
type Fused struct {
	id      string
	score   float64
	content string
	sources []source.Source
}

// New creates a fused result.
func New(id string, score float64, content string, sources []source.Source) Fused {
	return Fused{id: id, score: score, content: content, sources: sources}
}

// ID returns the document identifier.
func (f *Fused) ID() string { return f.id }

// Score returns the fused RRF score.
func (f *Fused) Score() float64 { return f.score }

// Content returns the hydrated document content (empty before hydration).
func (f *Fused) Content() string { return f.content }

// Sources returns the scorers that contributed to this result.
func (f *Fused) Sources() []source.Source { return f.sources }

// WithContent returns a copy with content attached.
func (f *Fused) WithContent(content string) Fused {
	return Fused{id: f.id, score: f.score, content: content, sources: f.sources}
}
