package catalog

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Kind identifies which remote resource a lookup targets.
type Kind string

const (
	// KindProduct queries the product catalog.
	KindProduct Kind = "product"
	// KindCustomer queries the customer directory.
	KindCustomer Kind = "customer"
)

// ErrUnknownKind is returned when a lookup names a resource this client
// does not know how to query.
var ErrUnknownKind = errors.New("unknown lookup kind")

// Valid reports whether k names a queryable resource.
func (k Kind) Valid() bool {
	return k == KindProduct || k == KindCustomer
}

// Candidate is a single remote-lookup result offered for selection.
// Price is set only for product candidates; customer candidates carry
// a zero Price and HasPrice false.
type Candidate struct {
	ID       string
	Label    string
	Price    decimal.Decimal
	HasPrice bool
}

// Selected reports whether the candidate represents an actual picked
// record rather than the empty default selection.
func (c Candidate) Selected() bool {
	return c.ID != ""
}

// Query is a paged, filtered catalog query.
type Query struct {
	Kind    Kind
	Search  string
	Page    int
	PerPage int
}

// Searcher performs a remote candidate lookup. Implementations must not
// cache: each call is an independent request and the caller handles
// response ordering.
type Searcher interface {
	Search(ctx context.Context, q Query) ([]Candidate, error)
}
