package session

import (
	"context"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/xenking/thriftmarket/internal/domain/order"
	"github.com/xenking/thriftmarket/internal/domain/product"
	"github.com/xenking/thriftmarket/internal/listing"
)

// ProductRow is a product as displayed, with speculative state applied.
type ProductRow struct {
	product.Product
	// Speculative is set when Status was overridden locally after an order
	// was created and the server has not been asked since.
	Speculative bool
}

// Products returns the product view as last fetched from the server.
func (s *Session) Products() ProductView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.products
}

// ProductRows returns the current product page with the speculative sold
// overlay applied.
func (s *Session) ProductRows() []ProductRow {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := make([]ProductRow, len(s.products.Items))
	for i, p := range s.products.Items {
		rows[i] = ProductRow{Product: p}
		if _, ok := s.sold[p.ID]; ok && p.Status != product.StatusSold {
			rows[i].Status = product.StatusSold
			rows[i].Speculative = true
		}
	}
	return rows
}

// Orders returns the order view as last fetched from the server.
func (s *Session) Orders() OrderView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orders
}

// KnownOrder looks an order up in the current order page.
func (s *Session) KnownOrder(id int64) (order.Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders.Items {
		if o.ID == id {
			return o, true
		}
	}
	return order.Order{}, false
}

// RefreshProducts reloads the current product page.
func (s *Session) RefreshProducts(ctx context.Context) error {
	return s.refreshProducts(ctx, s.Products())
}

// SearchProducts applies a product filter and loads its first page when the
// filter changed, or reloads the current page otherwise.
func (s *Session) SearchProducts(ctx context.Context, f product.Filter) error {
	return s.refreshProducts(ctx, s.Products().WithFilter(f))
}

// NextProducts loads the next product page. It reports false without a
// request when already on the last page.
func (s *Session) NextProducts(ctx context.Context) (bool, error) {
	v, ok := s.Products().NextPage()
	if !ok {
		return false, nil
	}
	return true, s.refreshProducts(ctx, v)
}

// PrevProducts loads the previous product page. It reports false without a
// request when already on the first page.
func (s *Session) PrevProducts(ctx context.Context) (bool, error) {
	v, ok := s.Products().PrevPage()
	if !ok {
		return false, nil
	}
	return true, s.refreshProducts(ctx, v)
}

// SeekProducts loads the 1-based product page n.
func (s *Session) SeekProducts(ctx context.Context, n int) error {
	return s.refreshProducts(ctx, s.Products().SeekPage(n))
}

// RefreshOrders reloads the current order page. It returns order.ErrNoViewer
// without a request when no viewer is set.
func (s *Session) RefreshOrders(ctx context.Context) error {
	return s.refreshOrders(ctx, s.Orders())
}

// SearchOrders applies an order filter and loads the matching page.
func (s *Session) SearchOrders(ctx context.Context, f order.Filter) error {
	return s.refreshOrders(ctx, s.Orders().WithFilter(f))
}

// NextOrders loads the next order page.
func (s *Session) NextOrders(ctx context.Context) (bool, error) {
	v, ok := s.Orders().NextPage()
	if !ok {
		return false, nil
	}
	return true, s.refreshOrders(ctx, v)
}

// PrevOrders loads the previous order page.
func (s *Session) PrevOrders(ctx context.Context) (bool, error) {
	v, ok := s.Orders().PrevPage()
	if !ok {
		return false, nil
	}
	return true, s.refreshOrders(ctx, v)
}

// SeekOrders loads the 1-based order page n.
func (s *Session) SeekOrders(ctx context.Context, n int) error {
	return s.refreshOrders(ctx, s.Orders().SeekPage(n))
}

// refreshProducts fetches the page v points at and, on success, installs it
// as the product view and drops the speculative overlay. On failure the
// previous view stays in place.
func (s *Session) refreshProducts(ctx context.Context, v ProductView) error {
	ctx, span := s.tracer.Start(ctx, "session.RefreshProducts", trace.WithAttributes(
		attribute.String("filter.query", v.Filter.Query),
		attribute.String("filter.status", string(v.Filter.Status)),
		attribute.Int("cursor.offset", v.Cursor.Offset),
	))
	defer span.End()

	next, err := listing.Refresh(ctx, s.backend.ListProducts, v)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "refresh failed")
		return err
	}

	s.mu.Lock()
	s.products = next
	clear(s.sold)
	s.mu.Unlock()
	return nil
}

func (s *Session) refreshOrders(ctx context.Context, v OrderView) error {
	if err := v.Filter.Validate(); err != nil {
		// Keep the filter so the prompt can show which role is selected.
		s.mu.Lock()
		s.orders.Filter = v.Filter
		s.mu.Unlock()
		return err
	}

	ctx, span := s.tracer.Start(ctx, "session.RefreshOrders", trace.WithAttributes(
		attribute.String("filter.role", string(v.Filter.Role)),
		attribute.Int64("filter.viewer_id", v.Filter.ViewerID),
		attribute.Int("cursor.offset", v.Cursor.Offset),
	))
	defer span.End()

	next, err := listing.Refresh(ctx, s.backend.ListOrders, v)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "refresh failed")
		return err
	}

	s.mu.Lock()
	s.orders = next
	s.mu.Unlock()
	return nil
}

// refreshOrdersIfViewing reloads the order view after an action. A missing
// order viewer is not an error here: there is simply nothing to reload.
func (s *Session) refreshOrdersIfViewing(ctx context.Context) error {
	err := s.RefreshOrders(ctx)
	if errors.Is(err, order.ErrNoViewer) {
		return nil
	}
	return err
}
