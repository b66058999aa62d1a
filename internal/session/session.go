// Package session implements the client controller: it owns the endpoint
// configuration, the product and order list views and the order lifecycle
// actions, and keeps displayed state converging with the server after every
// mutation.
package session

import (
	"context"
	"sync"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/thriftmarket/internal/api"
	"github.com/xenking/thriftmarket/internal/domain/order"
	"github.com/xenking/thriftmarket/internal/domain/page"
	"github.com/xenking/thriftmarket/internal/domain/product"
	"github.com/xenking/thriftmarket/internal/listing"
)

// Backend is the remote marketplace API.
type Backend interface {
	ListProducts(ctx context.Context, f product.Filter, cur page.Cursor) (api.List[product.Product], error)
	ListOrders(ctx context.Context, f order.Filter, cur page.Cursor) (api.List[order.Order], error)
	Submit(ctx context.Context, a order.Action, p order.Params) (order.Order, error)
}

// Endpoints manages the persisted API base.
type Endpoints interface {
	Base(ctx context.Context) (string, error)
	Configure(ctx context.Context, candidate string) (string, error)
}

var _ Backend = (*api.Client)(nil)

// Views of the two list screens.
type (
	ProductView = listing.View[product.Filter, product.Product]
	OrderView   = listing.View[order.Filter, order.Order]
)

// Options configures a Session.
type Options struct {
	// PageSize is the limit of both list views.
	PageSize int
	// RefreshProductsOnCreate refreshes the product list after an order is
	// created, which immediately replaces the speculative sold marker with the
	// server's state.
	RefreshProductsOnCreate bool

	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

// Session is the client controller. Its methods are safe for concurrent use;
// for state touched by overlapping calls the last write wins.
type Session struct {
	backend   Backend
	endpoints Endpoints
	opts      Options

	tracer  trace.Tracer
	actions metric.Int64Counter

	mu       sync.Mutex
	products ProductView
	orders   OrderView
	// sold marks products an order was just created for. It is speculative
	// display state, discarded by the next product refresh.
	sold        map[int64]struct{}
	lastOrderID int64
}

// New creates a Session. The product view starts filtered to products on
// sale; the order view starts with the buyer role and no viewer.
func New(backend Backend, endpoints Endpoints, opts Options) (*Session, error) {
	if opts.TracerProvider == nil {
		opts.TracerProvider = tracenoop.NewTracerProvider()
	}
	if opts.MeterProvider == nil {
		opts.MeterProvider = noop.NewMeterProvider()
	}

	actions, err := opts.MeterProvider.Meter("thriftmarket/session").Int64Counter(
		"thriftmarket.order.actions",
		metric.WithDescription("Order lifecycle actions by outcome"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create actions counter")
	}

	return &Session{
		backend:   backend,
		endpoints: endpoints,
		opts:      opts,
		tracer:    opts.TracerProvider.Tracer("thriftmarket/session"),
		actions:   actions,
		products:  listing.NewView[product.Filter, product.Product](product.DefaultFilter(), opts.PageSize),
		orders:    listing.NewView[order.Filter, order.Order](order.Filter{Role: order.RoleBuyer}, opts.PageSize),
		sold:      map[int64]struct{}{},
	}, nil
}

// Base returns the configured API base, or "" if none.
func (s *Session) Base(ctx context.Context) (string, error) {
	return s.endpoints.Base(ctx)
}

// ConfigureBase validates candidate with a liveness probe, persists it, and
// reloads the first page of products from the new backend. On validation
// failure nothing changes. A refresh failure is returned wrapped, but the
// base stays saved.
func (s *Session) ConfigureBase(ctx context.Context, candidate string) (string, error) {
	base, err := s.endpoints.Configure(ctx, candidate)
	if err != nil {
		return "", err
	}
	zctx.From(ctx).Info("API base saved", zap.String("base", base))

	s.mu.Lock()
	v := s.products.Reset()
	s.mu.Unlock()

	if err := s.refreshProducts(ctx, v); err != nil {
		return base, errors.Wrap(err, "refresh products")
	}
	return base, nil
}

// LastOrderID returns the ID of the order created most recently in this
// session. Confirm, finish and cancel use it when no order ID is given.
func (s *Session) LastOrderID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastOrderID
}

// SelectOrder sets the order later actions default to.
func (s *Session) SelectOrder(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastOrderID = id
}
