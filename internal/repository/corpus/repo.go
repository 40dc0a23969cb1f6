package corpus

import (
	"context"
	"errors"
	"fmt"

	"github.com/kailas-cloud/fusedex/internal/db"
	"github.com/kailas-cloud/fusedex/internal/domain"
)

// store is the consumer interface for index lifecycle (ISP).
type store interface {
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// HNSWConfig carries HNSW build parameters from configuration.
type HNSWConfig struct {
	M           int
	EFConstruct int
}

// Repo manages the corpus FT index: one TEXT field for BM25 and one
// HNSW VECTOR field, both over the same hash prefix.
type Repo struct {
	store     store
	vectorDim int
	metric    db.DistanceMetric
	hnsw      HNSWConfig
}

// New creates a corpus repository for the given vector dimensionality.
func New(s store, vectorDim int, metric db.DistanceMetric) *Repo {
	if metric == "" {
		metric = db.DistanceCosine
	}
	return &Repo{store: s, vectorDim: vectorDim, metric: metric}
}

// WithHNSW sets HNSW build parameters.
func (r *Repo) WithHNSW(cfg HNSWConfig) *Repo {
	r.hnsw = cfg
	return r
}

// VectorDim returns the dimensionality the index was built for.
func (r *Repo) VectorDim() int { return r.vectorDim }

// EnsureIndex creates the corpus index if it does not exist yet.
func (r *Repo) EnsureIndex(ctx context.Context) error {
	name := domain.IndexName()

	exists, err := r.store.IndexExists(ctx, name)
	if err != nil {
		return fmt.Errorf("check index %s: %w", name, err)
	}
	if exists {
		return nil
	}

	def := &db.IndexDefinition{
		Name:     name,
		Prefixes: []string{domain.DocKeyPrefix()},
		Fields: []db.IndexField{
			{Name: "__content", Type: db.IndexFieldText},
			{
				Name:              "__vector",
				Type:              db.IndexFieldVector,
				VectorAlgo:        db.VectorHNSW,
				VectorDim:         r.vectorDim,
				VectorDistance:    r.metric,
				VectorM:           r.hnsw.M,
				VectorEFConstruct: r.hnsw.EFConstruct,
			},
		},
	}

	if err := r.store.CreateIndex(ctx, def); err != nil {
		// Lost the startup race against another replica; the index is there.
		if errors.Is(err, db.ErrIndexExists) {
			return nil
		}
		return fmt.Errorf("create index %s: %w", name, err)
	}
	return nil
}
