package course

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a course does not exist in the catalog.
var ErrNotFound = errors.New("course not found")

// Course is the read-only catalog projection this service needs: enough to
// price a cart item and to name a course in error messages. Catalog CRUD is
// owned by another service.
type Course struct {
	ID        string
	Title     string
	Price     decimal.Decimal
	Published bool
}

// Repository defines catalog lookups and the upsert used by ingest tooling.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Course, error)
	GetByIDs(ctx context.Context, ids []string) ([]Course, error)
	Upsert(ctx context.Context, c *Course) error
}
