package retrieval

import (
	"math"
	"sort"

	"github.com/kailas-cloud/fusedex/internal/domain/search/hit"
	"github.com/kailas-cloud/fusedex/internal/domain/search/result"
	"github.com/kailas-cloud/fusedex/internal/domain/search/source"
)

// fusionOpts are the validated fusion parameters for one query.
type fusionOpts struct {
	k             int
	lexicalWeight float64
	vectorWeight  float64
	limit         int
}

// fuseRRF merges the lexical and vector rank lists via weighted Reciprocal
// Rank Fusion: score(d) = Σ weight_s / (k + rank_s(d)) over the sources
// listing d. Ranks are 1-based; a source not listing d contributes 0.
//
// RRF fuses ranks, not raw scores — BM25 scores and vector similarities
// are on incompatible scales, so they never mix here.
//
// Exact score ties are broken deterministically: more contributing sources
// first, then earlier lexical rank (ids absent from the lexical list order
// after all present ones), then id ascending.
func fuseRRF(lexical, vector []hit.Hit, opts fusionOpts) []result.Fused {
	type scored struct {
		id          string
		score       float64
		sources     []source.Source
		lexicalRank int // 0 = absent from the lexical list
	}

	merged := make(map[string]*scored, len(lexical)+len(vector))

	for i := range lexical {
		h := &lexical[i]
		merged[h.ID()] = &scored{
			id:          h.ID(),
			score:       opts.lexicalWeight / float64(opts.k+h.Rank()),
			sources:     []source.Source{source.Lexical},
			lexicalRank: h.Rank(),
		}
	}

	for i := range vector {
		h := &vector[i]
		contribution := opts.vectorWeight / float64(opts.k+h.Rank())
		if existing, ok := merged[h.ID()]; ok {
			existing.score += contribution
			existing.sources = append(existing.sources, source.Vector)
		} else {
			merged[h.ID()] = &scored{
				id:      h.ID(),
				score:   contribution,
				sources: []source.Source{source.Vector},
			}
		}
	}

	entries := make([]*scored, 0, len(merged))
	for _, s := range merged {
		entries = append(entries, s)
	}

	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if len(a.sources) != len(b.sources) {
			return len(a.sources) > len(b.sources)
		}
		ar, br := a.lexicalRank, b.lexicalRank
		if ar == 0 {
			ar = math.MaxInt
		}
		if br == 0 {
			br = math.MaxInt
		}
		if ar != br {
			return ar < br
		}
		return a.id < b.id
	})

	if len(entries) > opts.limit {
		entries = entries[:opts.limit]
	}

	results := make([]result.Fused, len(entries))
	for i, s := range entries {
		results[i] = result.New(s.id, s.score, "", s.sources)
	}
	return results
}
