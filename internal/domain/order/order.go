package order

import (
	"time"

	"github.com/go-faster/errors"
)

// Sentinel errors for order list filters.
var (
	ErrNoViewer      = errors.New("viewer id required to list orders")
	ErrUnknownRole   = errors.New("unknown viewer role")
	ErrUnknownStatus = errors.New("unknown order status")
	ErrUnknownAction = errors.New("unknown order action")
)

// Status is the lifecycle state of an order. The server owns transitions; the
// client only mirrors the last value it saw.
type Status string

// Order states.
const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Label returns the human-readable name of the status.
func (s Status) Label() string {
	switch s {
	case StatusPending:
		return "awaiting seller"
	case StatusConfirmed:
		return "confirmed"
	case StatusCompleted:
		return "completed"
	case StatusCancelled:
		return "cancelled"
	default:
		return string(s)
	}
}

// ParseStatus parses a status filter. The empty string and "all" yield the
// empty Status.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case "", "all":
		return "", nil
	case StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled:
		return st, nil
	default:
		return "", errors.Wrapf(ErrUnknownStatus, "%q", s)
	}
}

// Order is the client-side mirror of a server order record.
type Order struct {
	ID        int64
	BuyerID   int64
	SellerID  int64
	ProductID int64
	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Role is the side from which the viewer browses orders.
type Role string

// Viewer roles.
const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
)

// ParseRole parses a viewer role; the empty string means buyer.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case "":
		return RoleBuyer, nil
	case RoleBuyer, RoleSeller:
		return r, nil
	default:
		return "", errors.Wrapf(ErrUnknownRole, "%q", s)
	}
}

// Filter selects orders in the order list view.
type Filter struct {
	Status   Status
	Role     Role
	ViewerID int64
}

// Validate reports ErrNoViewer when no viewer id is set. Listing orders
// without one is never sent to the server.
func (f Filter) Validate() error {
	if f.ViewerID <= 0 {
		return ErrNoViewer
	}
	switch f.Role {
	case "", RoleBuyer, RoleSeller:
		return nil
	default:
		return errors.Wrapf(ErrUnknownRole, "%q", f.Role)
	}
}

// ViewerParam returns the query parameter that scopes the list to the viewer.
func (f Filter) ViewerParam() string {
	if f.Role == RoleSeller {
		return "seller_id"
	}
	return "buyer_id"
}
