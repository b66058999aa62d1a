package order

import (
	"fmt"
	"strings"

	"github.com/go-faster/errors"
)

// Action is a lifecycle operation on an order.
type Action string

// Lifecycle actions.
const (
	ActionCreate  Action = "create"
	ActionConfirm Action = "confirm"
	ActionFinish  Action = "finish"
	ActionCancel  Action = "cancel"
)

// Actions lists every action in lifecycle order.
var Actions = []Action{ActionCreate, ActionConfirm, ActionFinish, ActionCancel}

// ParseAction parses an action name.
func ParseAction(s string) (Action, error) {
	for _, a := range Actions {
		if string(a) == s {
			return a, nil
		}
	}
	return "", errors.Wrapf(ErrUnknownAction, "%q", s)
}

// Params carries the identifiers an action needs. Which fields are required
// depends on the action; see Validate.
type Params struct {
	BuyerID   int64
	ProductID int64
	OrderID   int64
	SellerID  int64
	ByUserID  int64
}

// Actor returns the user performing the action.
func (p Params) Actor(a Action) int64 {
	switch a {
	case ActionCreate:
		return p.BuyerID
	case ActionConfirm:
		return p.SellerID
	default:
		return p.ByUserID
	}
}

// MissingFieldError indicates required identifiers were not provided. It is
// raised before any request is made.
type MissingFieldError struct {
	Action Action
	Fields []string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s: %s required", e.Action, strings.Join(e.Fields, " and "))
}

// Validate checks that every identifier required by the action is set.
func (p Params) Validate(a Action) error {
	type field struct {
		name  string
		value int64
	}
	var fields []field
	switch a {
	case ActionCreate:
		fields = []field{{"buyer_id", p.BuyerID}, {"product_id", p.ProductID}}
	case ActionConfirm:
		fields = []field{{"order_id", p.OrderID}, {"seller_id", p.SellerID}}
	case ActionFinish, ActionCancel:
		fields = []field{{"order_id", p.OrderID}, {"by_user_id", p.ByUserID}}
	default:
		return errors.Wrapf(ErrUnknownAction, "%q", a)
	}

	var missing []string
	for _, f := range fields {
		if f.value <= 0 {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return &MissingFieldError{Action: a, Fields: missing}
	}
	return nil
}

// NotPermittedError explains why an action looks unavailable given the last
// known state of an order. It is advisory: the server decides.
type NotPermittedError struct {
	Action Action
	Status Status
	Reason string
}

func (e *NotPermittedError) Error() string {
	return fmt.Sprintf("%s on %s order: %s", e.Action, e.Status, e.Reason)
}

// Permit checks whether actor may perform the action on o, judging only from
// the last status the client saw. A nil result does not guarantee the server
// will accept the request, and a non-nil one does not stop it from being sent.
func Permit(a Action, o Order, actor int64) error {
	deny := func(reason string) error {
		return &NotPermittedError{Action: a, Status: o.Status, Reason: reason}
	}
	party := actor == o.BuyerID || actor == o.SellerID

	switch a {
	case ActionConfirm:
		if o.Status != StatusPending {
			return deny("only pending orders can be confirmed")
		}
		if actor != o.SellerID {
			return deny("only the seller can confirm")
		}
	case ActionFinish:
		if o.Status != StatusConfirmed {
			return deny("only confirmed orders can be finished")
		}
		if !party {
			return deny("only the buyer or seller can finish")
		}
	case ActionCancel:
		if o.Status != StatusPending && o.Status != StatusConfirmed {
			return deny("only pending or confirmed orders can be cancelled")
		}
		if !party {
			return deny("only the buyer or seller can cancel")
		}
	case ActionCreate:
		return deny("order already exists")
	default:
		return errors.Wrapf(ErrUnknownAction, "%q", a)
	}
	return nil
}

// Allowed lists the actions Permit accepts for actor on o, in lifecycle order.
func Allowed(o Order, actor int64) []Action {
	var out []Action
	for _, a := range Actions {
		if Permit(a, o, actor) == nil {
			out = append(out, a)
		}
	}
	return out
}
