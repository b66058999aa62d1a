package product

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrUnknownStatus is returned when a status filter is not one of the known
// product states.
var ErrUnknownStatus = errors.New("unknown product status")

// Status is the listing state of a product as reported by the marketplace.
type Status string

// Product states.
const (
	StatusOnSale   Status = "onsale"
	StatusSold     Status = "sold"
	StatusDelisted Status = "delisted"
)

// Label returns the human-readable name of the status.
func (s Status) Label() string {
	switch s {
	case StatusOnSale:
		return "on sale"
	case StatusSold:
		return "sold"
	case StatusDelisted:
		return "delisted"
	default:
		return string(s)
	}
}

// ParseStatus parses a status filter. The empty string and "all" mean no
// filter and yield the empty Status.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case "", "all":
		return "", nil
	case StatusOnSale, StatusSold, StatusDelisted:
		return st, nil
	default:
		return "", errors.Wrapf(ErrUnknownStatus, "%q", s)
	}
}

// Product represents a marketplace listing. The client never mutates products;
// their status changes server-side as a consequence of orders.
type Product struct {
	ID            int64
	SellerID      int64
	Title         string
	Description   string
	Price         decimal.Decimal
	Status        Status
	CoverImageURL string
	CreatedAt     time.Time
}

// Orderable reports whether an order can be placed for the product.
func (p Product) Orderable() bool {
	return p.Status == StatusOnSale
}

// Filter selects products in the product list view.
type Filter struct {
	// Query is free text matched by the server.
	Query string
	// Status limits results to one state. Empty means any.
	Status Status
}

// DefaultFilter shows products currently on sale.
func DefaultFilter() Filter {
	return Filter{Status: StatusOnSale}
}
