package session

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xenking/thriftmarket/internal/api"
	"github.com/xenking/thriftmarket/internal/domain/order"
	"github.com/xenking/thriftmarket/internal/domain/page"
	"github.com/xenking/thriftmarket/internal/domain/product"
)

type fakeBackend struct {
	mu       sync.Mutex
	products []product.Product
	orders   []order.Order

	submitErr error
	submitted []order.Params

	productCalls int
	orderCalls   int
}

func (b *fakeBackend) ListProducts(_ context.Context, f product.Filter, cur page.Cursor) (api.List[product.Product], error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.productCalls++

	var all []product.Product
	for _, p := range b.products {
		if f.Status == "" || p.Status == f.Status {
			all = append(all, p)
		}
	}
	return api.List[product.Product]{Items: window(all, cur), Total: len(all)}, nil
}

func (b *fakeBackend) ListOrders(_ context.Context, f order.Filter, cur page.Cursor) (api.List[order.Order], error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.orderCalls++

	var all []order.Order
	for _, o := range b.orders {
		viewer := o.BuyerID
		if f.Role == order.RoleSeller {
			viewer = o.SellerID
		}
		if viewer == f.ViewerID {
			all = append(all, o)
		}
	}
	return api.List[order.Order]{Items: window(all, cur), Total: len(all)}, nil
}

func (b *fakeBackend) Submit(_ context.Context, a order.Action, p order.Params) (order.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.submitted = append(b.submitted, p)
	if b.submitErr != nil {
		return order.Order{}, b.submitErr
	}

	if a == order.ActionCreate {
		o := order.Order{
			ID:        101,
			BuyerID:   p.BuyerID,
			SellerID:  5,
			ProductID: p.ProductID,
			Status:    order.StatusPending,
		}
		b.orders = append(b.orders, o)
		return o, nil
	}
	for i, o := range b.orders {
		if o.ID != p.OrderID {
			continue
		}
		switch a {
		case order.ActionConfirm:
			o.Status = order.StatusConfirmed
		case order.ActionFinish:
			o.Status = order.StatusCompleted
		case order.ActionCancel:
			o.Status = order.StatusCancelled
		}
		b.orders[i] = o
		return o, nil
	}
	return order.Order{}, &api.StatusError{StatusCode: http.StatusNotFound, Body: "order not found"}
}

func (b *fakeBackend) calls() (products, orders, submits int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.productCalls, b.orderCalls, len(b.submitted)
}

func window[T any](all []T, cur page.Cursor) []T {
	lo := min(cur.Offset, len(all))
	hi := min(cur.Offset+cur.Limit, len(all))
	return all[lo:hi]
}

type fakeEndpoints struct {
	base string
	err  error
}

func (e *fakeEndpoints) Base(context.Context) (string, error) { return e.base, nil }

func (e *fakeEndpoints) Configure(_ context.Context, candidate string) (string, error) {
	if e.err != nil {
		return "", e.err
	}
	e.base = candidate
	return candidate, nil
}

func catalog(n int) []product.Product {
	out := make([]product.Product, n)
	for i := range out {
		out[i] = product.Product{
			ID:       int64(i + 1),
			SellerID: 5,
			Title:    "item",
			Status:   product.StatusOnSale,
		}
	}
	return out
}

func newSession(t *testing.T, b *fakeBackend, opts Options) *Session {
	t.Helper()
	s, err := New(b, &fakeEndpoints{base: "https://api.example.com"}, opts)
	require.NoError(t, err)
	return s
}

func TestSession_CreateCapturesOrder(t *testing.T) {
	ctx := context.Background()
	b := &fakeBackend{products: catalog(8)}
	s := newSession(t, b, Options{})
	require.NoError(t, s.RefreshProducts(ctx))

	out, err := s.Act(ctx, order.ActionCreate, order.Params{BuyerID: 2, ProductID: 7})
	require.NoError(t, err)
	assert.False(t, out.Rejected())
	assert.Equal(t, int64(101), out.Order.ID)
	assert.Equal(t, int64(101), s.LastOrderID())

	rows := s.ProductRows()
	require.Len(t, rows, 8)
	assert.Equal(t, product.StatusSold, rows[6].Status)
	assert.True(t, rows[6].Speculative)
	assert.Equal(t, product.StatusOnSale, s.Products().Items[6].Status, "fetched data is untouched")

	// The next refresh reflects the server, which still lists it on sale.
	require.NoError(t, s.RefreshProducts(ctx))
	rows = s.ProductRows()
	assert.Equal(t, product.StatusOnSale, rows[6].Status)
	assert.False(t, rows[6].Speculative)
}

func TestSession_CreateRefreshesProductsWhenEnabled(t *testing.T) {
	ctx := context.Background()
	b := &fakeBackend{products: catalog(3)}
	s := newSession(t, b, Options{RefreshProductsOnCreate: true})
	require.NoError(t, s.RefreshProducts(ctx))

	_, err := s.Act(ctx, order.ActionCreate, order.Params{BuyerID: 2, ProductID: 1})
	require.NoError(t, err)

	products, _, _ := b.calls()
	assert.Equal(t, 2, products)
	for _, row := range s.ProductRows() {
		assert.False(t, row.Speculative)
	}
}

func TestSession_ActDefaultsToLastOrder(t *testing.T) {
	ctx := context.Background()
	b := &fakeBackend{}
	s := newSession(t, b, Options{})

	_, err := s.Act(ctx, order.ActionCreate, order.Params{BuyerID: 2, ProductID: 7})
	require.NoError(t, err)

	out, err := s.Act(ctx, order.ActionConfirm, order.Params{SellerID: 5})
	require.NoError(t, err)
	assert.Equal(t, order.StatusConfirmed, out.Order.Status)
	require.Len(t, b.submitted, 2)
	assert.Equal(t, int64(101), b.submitted[1].OrderID)

	out, err = s.Act(ctx, order.ActionFinish, order.Params{OrderID: 101, ByUserID: 2})
	require.NoError(t, err)
	assert.Equal(t, order.StatusCompleted, out.Order.Status)
}

func TestSession_ActValidatesBeforeSending(t *testing.T) {
	ctx := context.Background()
	b := &fakeBackend{}
	s := newSession(t, b, Options{})

	_, err := s.Act(ctx, order.ActionConfirm, order.Params{SellerID: 5})
	var missing *order.MissingFieldError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, order.ActionConfirm, missing.Action)

	_, err = s.Act(ctx, order.ActionCreate, order.Params{BuyerID: 2})
	require.ErrorAs(t, err, &missing)

	_, _, submits := b.calls()
	assert.Zero(t, submits)
}

func TestSession_ActRejection(t *testing.T) {
	ctx := context.Background()
	b := &fakeBackend{submitErr: &api.StatusError{
		Method:     http.MethodPut,
		Path:       api.PathOrders + "/confirm",
		StatusCode: http.StatusConflict,
		Body:       `{"error":"order is not pending"}`,
	}}
	s := newSession(t, b, Options{})

	out, err := s.Act(ctx, order.ActionConfirm, order.Params{OrderID: 101, SellerID: 5})
	require.NoError(t, err)
	require.True(t, out.Rejected())
	assert.Equal(t, http.StatusConflict, out.Rejection.StatusCode)
	assert.Contains(t, out.Rejection.Error(), "order is not pending")
	assert.Zero(t, out.Order)
}

func TestSession_ActLogs(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	ctx := zctx.Base(context.Background(), zap.New(core))

	b := &fakeBackend{submitErr: &api.StatusError{StatusCode: http.StatusConflict}}
	s := newSession(t, b, Options{})

	_, err := s.Act(ctx, order.ActionCancel, order.Params{OrderID: 101, ByUserID: 2})
	require.NoError(t, err)

	entries := logs.FilterMessage("Action rejected").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "cancel", fields["action"])
	assert.EqualValues(t, http.StatusConflict, fields["status"])
}

func TestSession_ActServerError(t *testing.T) {
	ctx := context.Background()
	b := &fakeBackend{submitErr: &api.StatusError{StatusCode: http.StatusBadGateway}}
	s := newSession(t, b, Options{})

	_, err := s.Act(ctx, order.ActionCancel, order.Params{OrderID: 101, ByUserID: 2})
	require.Error(t, err)

	var statusErr *api.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadGateway, statusErr.StatusCode)
}

func TestSession_ActHintDoesNotBlock(t *testing.T) {
	ctx := context.Background()
	b := &fakeBackend{orders: []order.Order{
		{ID: 101, BuyerID: 2, SellerID: 5, ProductID: 7, Status: order.StatusCompleted},
	}}
	s := newSession(t, b, Options{})
	require.NoError(t, s.SearchOrders(ctx, order.Filter{Role: order.RoleBuyer, ViewerID: 2}))

	out, err := s.Act(ctx, order.ActionConfirm, order.Params{OrderID: 101, SellerID: 5})
	require.NoError(t, err)
	assert.Contains(t, out.Hint, "pending")

	_, _, submits := b.calls()
	assert.Equal(t, 1, submits)
}

func TestSession_CreateHintsUnorderableProduct(t *testing.T) {
	ctx := context.Background()
	b := &fakeBackend{products: catalog(3)}
	b.products[1].Status = product.StatusDelisted
	s := newSession(t, b, Options{})
	require.NoError(t, s.SearchProducts(ctx, product.Filter{}))

	out, err := s.Act(ctx, order.ActionCreate, order.Params{BuyerID: 2, ProductID: 2})
	require.NoError(t, err)
	assert.Equal(t, "product is delisted", out.Hint)

	out, err = s.Act(ctx, order.ActionCreate, order.Params{BuyerID: 2, ProductID: 3})
	require.NoError(t, err)
	assert.Empty(t, out.Hint)

	out, err = s.Act(ctx, order.ActionCreate, order.Params{BuyerID: 2, ProductID: 3})
	require.NoError(t, err)
	assert.Equal(t, "product is sold", out.Hint, "marked sold by the previous order")

	_, _, submits := b.calls()
	assert.Equal(t, 3, submits)
}

func TestSession_SelectOrder(t *testing.T) {
	ctx := context.Background()
	b := &fakeBackend{orders: []order.Order{
		{ID: 55, BuyerID: 2, SellerID: 5, ProductID: 7, Status: order.StatusPending},
	}}
	s := newSession(t, b, Options{})

	s.SelectOrder(55)
	assert.Equal(t, int64(55), s.LastOrderID())

	out, err := s.Act(ctx, order.ActionCancel, order.Params{ByUserID: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(55), out.Order.ID)
	assert.Equal(t, order.StatusCancelled, out.Order.Status)
	require.Len(t, b.submitted, 1)
	assert.Equal(t, int64(55), b.submitted[0].OrderID)
}

func TestSession_ActRefreshesOrders(t *testing.T) {
	ctx := context.Background()
	b := &fakeBackend{}
	s := newSession(t, b, Options{})
	require.NoError(t, s.SearchOrders(ctx, order.Filter{Role: order.RoleBuyer, ViewerID: 2}))
	assert.Empty(t, s.Orders().Items)

	_, err := s.Act(ctx, order.ActionCreate, order.Params{BuyerID: 2, ProductID: 7})
	require.NoError(t, err)

	v := s.Orders()
	require.Len(t, v.Items, 1)
	assert.Equal(t, int64(101), v.Items[0].ID)
	assert.Equal(t, order.StatusPending, v.Items[0].Status)
}

func TestSession_OrdersRequireViewer(t *testing.T) {
	ctx := context.Background()
	b := &fakeBackend{}
	s := newSession(t, b, Options{})

	err := s.SearchOrders(ctx, order.Filter{Role: order.RoleSeller})
	require.ErrorIs(t, err, order.ErrNoViewer)
	assert.Equal(t, order.RoleSeller, s.Orders().Filter.Role)

	require.ErrorIs(t, s.RefreshOrders(ctx), order.ErrNoViewer)

	// Actions still succeed; there is just no order list to reload.
	out, err := s.Act(ctx, order.ActionCreate, order.Params{BuyerID: 2, ProductID: 7})
	require.NoError(t, err)
	assert.NoError(t, out.RefreshErr)

	_, orders, _ := b.calls()
	assert.Zero(t, orders)
}

func TestSession_ProductPaging(t *testing.T) {
	ctx := context.Background()
	b := &fakeBackend{products: catalog(30)}
	s := newSession(t, b, Options{PageSize: 12})
	require.NoError(t, s.RefreshProducts(ctx))
	assert.Equal(t, "showing 1-12 of 30", s.Products().Cursor.String())

	moved, err := s.PrevProducts(ctx)
	require.NoError(t, err)
	assert.False(t, moved)

	for range 2 {
		moved, err = s.NextProducts(ctx)
		require.NoError(t, err)
		assert.True(t, moved)
	}
	assert.Equal(t, "showing 25-30 of 30", s.Products().Cursor.String())
	assert.Len(t, s.Products().Items, 6)

	moved, err = s.NextProducts(ctx)
	require.NoError(t, err)
	assert.False(t, moved)

	products, _, _ := b.calls()
	assert.Equal(t, 3, products)

	require.NoError(t, s.SearchProducts(ctx, product.Filter{Query: "item", Status: product.StatusOnSale}))
	assert.Zero(t, s.Products().Cursor.Offset)

	require.NoError(t, s.SeekProducts(ctx, 2))
	assert.Equal(t, 12, s.Products().Cursor.Offset)
}

func TestSession_ConfigureBase(t *testing.T) {
	ctx := context.Background()

	t.Run("ProbeFails", func(t *testing.T) {
		b := &fakeBackend{products: catalog(3)}
		endpoints := &fakeEndpoints{base: "https://old.example.com", err: errors.New("probe failed")}
		s, err := New(b, endpoints, Options{})
		require.NoError(t, err)

		_, err = s.ConfigureBase(ctx, "https://new.example.com")
		require.Error(t, err)

		base, err := s.Base(ctx)
		require.NoError(t, err)
		assert.Equal(t, "https://old.example.com", base)

		products, _, _ := b.calls()
		assert.Zero(t, products)
	})
	t.Run("Reloads", func(t *testing.T) {
		b := &fakeBackend{products: catalog(30)}
		s := newSession(t, b, Options{PageSize: 12})
		require.NoError(t, s.SeekProducts(ctx, 3))

		base, err := s.ConfigureBase(ctx, "https://new.example.com")
		require.NoError(t, err)
		assert.Equal(t, "https://new.example.com", base)
		assert.Zero(t, s.Products().Cursor.Offset)
		assert.Len(t, s.Products().Items, 12)
	})
}
