// Package apitest provides an in-memory marketplace API server for tests.
package apitest

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/jx"
)

// Product is a product record held by Market.
type Product struct {
	ID       int64
	SellerID int64
	Title    string
	Price    string
	Status   string
}

// Order is an order record held by Market.
type Order struct {
	ID        int64
	BuyerID   int64
	SellerID  int64
	ProductID int64
	Status    string
	UpdatedAt time.Time
}

// Market is a marketplace API backed by memory. It follows the lifecycle
// rules of the real service closely enough for client tests.
type Market struct {
	mu       sync.Mutex
	products []Product
	orders   []Order
	nextID   int64
	healthy  bool
	requests map[string]int
}

// NewMarket returns a healthy market with n products on sale, all sold by
// seller 5, and no orders. Order IDs start at 101.
func NewMarket(n int) *Market {
	m := &Market{nextID: 101, healthy: true, requests: map[string]int{}}
	for i := range n {
		m.products = append(m.products, Product{
			ID:       int64(i + 1),
			SellerID: 5,
			Title:    "Item " + strconv.Itoa(i+1),
			Price:    strconv.Itoa(10+i) + ".50",
			Status:   "onsale",
		})
	}
	return m
}

// Start serves m on a test server closed at the end of the test.
func (m *Market) Start(t testing.TB) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(m)
	t.Cleanup(srv.Close)
	return srv
}

// SetHealthy sets the ok flag reported by the health endpoint.
func (m *Market) SetHealthy(ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.healthy = ok
}

// Requests returns how many requests were made to path.
func (m *Market) Requests(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests[path]
}

// Product returns the product with the given ID.
func (m *Market) Product(id int64) (Product, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.products {
		if p.ID == id {
			return p, true
		}
	}
	return Product{}, false
}

// Order returns the order with the given ID.
func (m *Market) Order(id int64) (Order, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.ID == id {
			return o, true
		}
	}
	return Order{}, false
}

// SetProductStatus changes the status of a product.
func (m *Market) SetProductStatus(id int64, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.products {
		if m.products[i].ID == id {
			m.products[i].Status = status
		}
	}
}

// RemoveProducts drops all products with an ID greater than keep.
func (m *Market) RemoveProducts(keep int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products = slicesFilter(m.products, func(p Product) bool { return p.ID <= keep })
}

func (m *Market) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[r.URL.Path]++

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/api/health":
		writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("ok", func(e *jx.Encoder) { e.Bool(m.healthy) })
			})
		})
	case r.Method == http.MethodGet && r.URL.Path == "/api/products":
		m.listProducts(w, r)
	case r.Method == http.MethodGet && r.URL.Path == "/api/orders":
		m.listOrders(w, r)
	case r.Method == http.MethodPost && r.URL.Path == "/api/order/create":
		m.create(w, r)
	case r.Method == http.MethodPut && strings.HasPrefix(r.URL.Path, "/api/order/"):
		m.transition(w, r, strings.TrimPrefix(r.URL.Path, "/api/order/"))
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (m *Market) listProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status, query := q.Get("status"), strings.ToLower(q.Get("q"))

	items := slicesFilter(m.products, func(p Product) bool {
		return (status == "" || p.Status == status) &&
			(query == "" || strings.Contains(strings.ToLower(p.Title), query))
	})
	items, total := window(items, q)

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("items", func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					for _, p := range items {
						e.Obj(func(e *jx.Encoder) {
							e.Field("id", func(e *jx.Encoder) { e.Int64(p.ID) })
							e.Field("seller_id", func(e *jx.Encoder) { e.Int64(p.SellerID) })
							e.Field("title", func(e *jx.Encoder) { e.Str(p.Title) })
							e.Field("price", func(e *jx.Encoder) { e.Str(p.Price) })
							e.Field("status", func(e *jx.Encoder) { e.Str(p.Status) })
						})
					}
				})
			})
			e.Field("total", func(e *jx.Encoder) { e.Int(total) })
		})
	})
}

func (m *Market) listOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	buyer, _ := strconv.ParseInt(q.Get("buyer_id"), 10, 64)
	seller, _ := strconv.ParseInt(q.Get("seller_id"), 10, 64)
	if buyer == 0 && seller == 0 {
		writeError(w, http.StatusBadRequest, "buyer_id or seller_id required")
		return
	}
	status := q.Get("status")

	items := slicesFilter(m.orders, func(o Order) bool {
		return (buyer == 0 || o.BuyerID == buyer) &&
			(seller == 0 || o.SellerID == seller) &&
			(status == "" || o.Status == status)
	})
	items, total := window(items, q)

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("items", func(e *jx.Encoder) {
				e.Arr(func(e *jx.Encoder) {
					for _, o := range items {
						encodeOrder(e, o)
					}
				})
			})
			e.Field("total", func(e *jx.Encoder) { e.Int(total) })
		})
	})
}

func (m *Market) create(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	buyer, productID := body["buyer_id"], body["product_id"]

	idx := -1
	for i, p := range m.products {
		if p.ID == productID {
			idx = i
		}
	}
	switch {
	case idx < 0:
		writeError(w, http.StatusNotFound, "product not found")
		return
	case m.products[idx].Status != "onsale":
		writeError(w, http.StatusConflict, "product is not on sale")
		return
	case m.products[idx].SellerID == buyer:
		writeError(w, http.StatusBadRequest, "cannot buy your own product")
		return
	}

	m.products[idx].Status = "sold"
	o := Order{
		ID:        m.nextID,
		BuyerID:   buyer,
		SellerID:  m.products[idx].SellerID,
		ProductID: productID,
		Status:    "pending",
		UpdatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	m.nextID++
	m.orders = append(m.orders, o)
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeOrder(e, o) })
}

func (m *Market) transition(w http.ResponseWriter, r *http.Request, action string) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}

	idx := -1
	for i, o := range m.orders {
		if o.ID == body["order_id"] {
			idx = i
		}
	}
	if idx < 0 {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}
	o := &m.orders[idx]
	party := body["by_user_id"] == o.BuyerID || body["by_user_id"] == o.SellerID

	switch {
	case action == "confirm" && o.Status == "pending" && body["seller_id"] == o.SellerID:
		o.Status = "confirmed"
	case action == "finish" && o.Status == "confirmed" && party:
		o.Status = "completed"
	case action == "cancel" && (o.Status == "pending" || o.Status == "confirmed") && party:
		o.Status = "cancelled"
		for i := range m.products {
			if m.products[i].ID == o.ProductID {
				m.products[i].Status = "onsale"
			}
		}
	case action != "confirm" && action != "finish" && action != "cancel":
		writeError(w, http.StatusNotFound, "not found")
		return
	default:
		writeError(w, http.StatusConflict, "cannot "+action+" a "+o.Status+" order")
		return
	}
	o.UpdatedAt = o.UpdatedAt.Add(time.Hour)
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeOrder(e, *o) })
}

func encodeOrder(e *jx.Encoder, o Order) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Int64(o.ID) })
		e.Field("buyer_id", func(e *jx.Encoder) { e.Int64(o.BuyerID) })
		e.Field("seller_id", func(e *jx.Encoder) { e.Int64(o.SellerID) })
		e.Field("product_id", func(e *jx.Encoder) { e.Int64(o.ProductID) })
		e.Field("status", func(e *jx.Encoder) { e.Str(o.Status) })
		e.Field("updated_at", func(e *jx.Encoder) { e.Str(o.UpdatedAt.Format(time.RFC3339)) })
	})
}

// readBody decodes a flat object of integer fields.
func readBody(w http.ResponseWriter, r *http.Request) (map[string]int64, bool) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	out := map[string]int64{}
	if err := jx.DecodeBytes(data).ObjBytes(func(d *jx.Decoder, key []byte) error {
		v, err := d.Int64()
		if err != nil {
			return err
		}
		out[string(key)] = v
		return nil
	}); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	return out, true
}

func window[T any](items []T, q map[string][]string) ([]T, int) {
	get := func(k string) int {
		if v := q[k]; len(v) > 0 {
			n, _ := strconv.Atoi(v[0])
			return n
		}
		return 0
	}
	limit, offset := get("limit"), get("offset")
	if limit <= 0 {
		limit = 12
	}
	total := len(items)
	lo := min(max(offset, 0), total)
	hi := min(lo+limit, total)
	return items[lo:hi], total
}

func slicesFilter[T any](in []T, keep func(T) bool) []T {
	var out []T
	for _, v := range in {
		if keep(v) {
			out = append(out, v)
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, body func(e *jx.Encoder)) {
	var e jx.Encoder
	body(&e)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("error", func(e *jx.Encoder) { e.Str(msg) })
		})
	})
}
