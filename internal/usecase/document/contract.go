package document

import (
	"context"

	"github.com/kailas-cloud/fusedex/internal/domain"
)

// ContentStore is the storage contract for corpus documents.
type ContentStore interface {
	Upsert(ctx context.Context, doc *domain.Document) (bool, error)
	UpsertMulti(ctx context.Context, docs []domain.Document) error
	Get(ctx context.Context, id string) (domain.Document, error)
	Delete(ctx context.Context, id string) error
}
