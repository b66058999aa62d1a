package session

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/thriftmarket/internal/api"
	"github.com/xenking/thriftmarket/internal/domain/order"
)

// Outcome reports what an order action did.
type Outcome struct {
	Action order.Action
	// Order is the server's view of the order after the action. Zero when the
	// action was rejected.
	Order order.Order
	// Rejection is the server's 4xx response to the action. A rejection is an
	// expected result, not a failure of the call.
	Rejection *api.StatusError
	// Hint is set when the last known state suggested the action would be
	// refused. The request is sent regardless.
	Hint string
	// RefreshErr is a failure to reload views after a successful action.
	RefreshErr error
}

// Rejected reports whether the server refused the action.
func (o Outcome) Rejected() bool {
	return o.Rejection != nil
}

// Act performs an order lifecycle action.
//
// When p.OrderID is zero for an action that needs one, the order created
// most recently in this session is used. Parameters are validated before
// anything is sent. A 4xx answer is returned as Outcome.Rejection with a nil
// error; transport and 5xx failures are returned as errors. After a success
// the order list is reloaded if a viewer is set, and the created order
// becomes the default for later actions.
func (s *Session) Act(ctx context.Context, a order.Action, p order.Params) (Outcome, error) {
	if a != order.ActionCreate && p.OrderID == 0 {
		p.OrderID = s.LastOrderID()
	}
	if err := p.Validate(a); err != nil {
		s.record(ctx, a, "invalid")
		return Outcome{}, err
	}

	out := Outcome{Action: a, Hint: s.hint(a, p)}
	lg := zctx.From(ctx).With(zap.String("action", string(a)))
	if out.Hint != "" {
		lg.Debug("Action may be refused", zap.String("hint", out.Hint))
	}

	ctx, span := s.tracer.Start(ctx, "session.Act", trace.WithAttributes(
		attribute.String("order.action", string(a)),
		attribute.Int64("order.id", p.OrderID),
		attribute.Int64("product.id", p.ProductID),
	))
	defer span.End()

	o, err := s.backend.Submit(ctx, a, p)
	if err != nil {
		var statusErr *api.StatusError
		if errors.As(err, &statusErr) && statusErr.Rejected() {
			s.record(ctx, a, "rejected")
			lg.Info("Action rejected", zap.Int("status", statusErr.StatusCode))
			out.Rejection = statusErr
			return out, nil
		}
		s.record(ctx, a, "error")
		span.RecordError(err)
		span.SetStatus(codes.Error, "action failed")
		return Outcome{}, errors.Wrap(err, string(a))
	}
	s.record(ctx, a, "ok")
	out.Order = o
	lg.Info("Action succeeded", zap.Int64("order_id", o.ID), zap.String("status", string(o.Status)))

	s.mu.Lock()
	if o.ID != 0 {
		s.lastOrderID = o.ID
	}
	if a == order.ActionCreate {
		s.sold[p.ProductID] = struct{}{}
	}
	s.mu.Unlock()

	var g errgroup.Group
	g.Go(func() error {
		return s.refreshOrdersIfViewing(ctx)
	})
	if a == order.ActionCreate && s.opts.RefreshProductsOnCreate {
		g.Go(func() error {
			return s.RefreshProducts(ctx)
		})
	}
	if err := g.Wait(); err != nil {
		lg.Warn("Refresh after action failed", zap.Error(err))
		out.RefreshErr = err
	}
	return out, nil
}

// hint checks the action against the last known state of its target.
func (s *Session) hint(a order.Action, p order.Params) string {
	if a == order.ActionCreate {
		for _, row := range s.ProductRows() {
			if row.ID == p.ProductID && !row.Orderable() {
				return "product is " + row.Status.Label()
			}
		}
		return ""
	}
	o, ok := s.KnownOrder(p.OrderID)
	if !ok {
		return ""
	}
	if err := order.Permit(a, o, p.Actor(a)); err != nil {
		return err.Error()
	}
	return ""
}

func (s *Session) record(ctx context.Context, a order.Action, result string) {
	s.actions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("action", string(a)),
		attribute.String("result", result),
	))
}
