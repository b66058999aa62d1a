// Package api is the HTTP client for the marketplace JSON API.
//
// Every response is classified by checkResponse before decoding: failed
// requests become a StatusError and non-JSON success bodies a
// ContentTypeError, so callers never see raw parse errors for HTML pages.
package api

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/xenking/thriftmarket/internal/domain/order"
	"github.com/xenking/thriftmarket/internal/domain/page"
	"github.com/xenking/thriftmarket/internal/domain/product"
	"github.com/xenking/thriftmarket/pkg/transport"
)

// maxBodySize bounds how much of a response body is read.
const maxBodySize = 8 << 20

// Endpoint paths, relative to the API base.
const (
	PathHealth   = "/api/health"
	PathProducts = "/api/products"
	PathOrders   = "/api/orders"
)

// BaseFunc returns the API base address for a request. It is consulted on
// every call so that a newly configured base takes effect immediately.
type BaseFunc func(ctx context.Context) (string, error)

// Options configures a Client.
type Options struct {
	// Transport is the underlying RoundTripper; nil means http.DefaultTransport.
	Transport http.RoundTripper
	// Timeout bounds each request. Zero means no timeout.
	Timeout time.Duration
	// UserAgent is sent with every request when set.
	UserAgent string
	// SkipBrowserWarning asks tunnelling proxies not to serve their HTML
	// interstitial page.
	SkipBrowserWarning bool

	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

// Client talks to the marketplace API.
type Client struct {
	base       BaseFunc
	httpClient *http.Client
}

// NewClient creates a Client resolving paths against base.
func NewClient(base BaseFunc, opts Options) *Client {
	middlewares := []transport.Middleware{transport.RequestID()}
	if opts.SkipBrowserWarning {
		middlewares = append(middlewares, transport.SkipBrowserWarning())
	}
	if opts.UserAgent != "" {
		middlewares = append(middlewares, transport.Header("User-Agent", opts.UserAgent))
	}
	middlewares = append(middlewares, transport.LogRequests())

	var otelOpts []otelhttp.Option
	if opts.TracerProvider != nil {
		otelOpts = append(otelOpts, otelhttp.WithTracerProvider(opts.TracerProvider))
	}
	if opts.MeterProvider != nil {
		otelOpts = append(otelOpts, otelhttp.WithMeterProvider(opts.MeterProvider))
	}
	rt := otelhttp.NewTransport(transport.Wrap(opts.Transport, middlewares...), otelOpts...)

	return &Client{
		base: base,
		httpClient: &http.Client{
			Transport: rt,
			Timeout:   opts.Timeout,
		},
	}
}

// Health probes base directly, bypassing the configured base, and returns the
// body-level acknowledgment flag.
func (c *Client) Health(ctx context.Context, base string) (bool, error) {
	body, err := c.do(ctx, http.MethodGet, base, PathHealth, nil, nil)
	if err != nil {
		return false, errors.Wrap(err, "health")
	}

	var resp healthResponse
	if err := resp.Decode(jx.DecodeBytes(body)); err != nil {
		return false, errors.Wrap(err, "decode health")
	}
	return resp.OK, nil
}

// ListProducts fetches one page of products.
func (c *Client) ListProducts(ctx context.Context, f product.Filter, cur page.Cursor) (List[product.Product], error) {
	q := pageQuery(cur)
	if f.Query != "" {
		q.Set("q", f.Query)
	}
	if f.Status != "" {
		q.Set("status", string(f.Status))
	}

	body, err := c.get(ctx, PathProducts, q)
	if err != nil {
		return List[product.Product]{}, errors.Wrap(err, "list products")
	}

	list, err := decodeList(jx.DecodeBytes(body), decodeProduct)
	if err != nil {
		return List[product.Product]{}, errors.Wrap(err, "decode products")
	}
	return list, nil
}

// ListOrders fetches one page of orders for the viewer in f. It returns
// order.ErrNoViewer without a request when no viewer is set.
func (c *Client) ListOrders(ctx context.Context, f order.Filter, cur page.Cursor) (List[order.Order], error) {
	if err := f.Validate(); err != nil {
		return List[order.Order]{}, err
	}

	q := pageQuery(cur)
	if f.Status != "" {
		q.Set("status", string(f.Status))
	}
	q.Set(f.ViewerParam(), strconv.FormatInt(f.ViewerID, 10))

	body, err := c.get(ctx, PathOrders, q)
	if err != nil {
		return List[order.Order]{}, errors.Wrap(err, "list orders")
	}

	list, err := decodeList(jx.DecodeBytes(body), decodeOrder)
	if err != nil {
		return List[order.Order]{}, errors.Wrap(err, "decode orders")
	}
	return list, nil
}

// Submit sends a lifecycle action and returns the order as the server sees it
// afterwards. Missing identifiers fail with *order.MissingFieldError before
// any request is made.
func (c *Client) Submit(ctx context.Context, a order.Action, p order.Params) (order.Order, error) {
	if err := p.Validate(a); err != nil {
		return order.Order{}, err
	}

	method, path, payload := actionRequest(a, p)
	base, err := c.base(ctx)
	if err != nil {
		return order.Order{}, errors.Wrap(err, "resolve base")
	}

	body, err := c.do(ctx, method, base, path, nil, payload)
	if err != nil {
		return order.Order{}, errors.Wrapf(err, "%s order", a)
	}

	o, err := decodeOrder(jx.DecodeBytes(body))
	if err != nil {
		return order.Order{}, errors.Wrapf(err, "decode %s response", a)
	}
	return o, nil
}

// actionRequest maps an action to its endpoint and JSON body. Params must
// already be validated for a.
func actionRequest(a order.Action, p order.Params) (method, path string, body []byte) {
	switch a {
	case order.ActionCreate:
		return http.MethodPost, "/api/order/create", encodeFields(
			int64Field{"buyer_id", p.BuyerID},
			int64Field{"product_id", p.ProductID},
		)
	case order.ActionConfirm:
		return http.MethodPut, "/api/order/confirm", encodeFields(
			int64Field{"order_id", p.OrderID},
			int64Field{"seller_id", p.SellerID},
		)
	case order.ActionFinish:
		return http.MethodPut, "/api/order/finish", encodeFields(
			int64Field{"order_id", p.OrderID},
			int64Field{"by_user_id", p.ByUserID},
		)
	default:
		return http.MethodPut, "/api/order/cancel", encodeFields(
			int64Field{"order_id", p.OrderID},
			int64Field{"by_user_id", p.ByUserID},
		)
	}
}

func pageQuery(cur page.Cursor) url.Values {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(cur.Limit))
	q.Set("offset", strconv.Itoa(cur.Offset))
	return q
}

func (c *Client) get(ctx context.Context, path string, q url.Values) ([]byte, error) {
	base, err := c.base(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "resolve base")
	}
	return c.do(ctx, http.MethodGet, base, path, q, nil)
}

// do sends one request and returns the body of a successful JSON response.
func (c *Client) do(ctx context.Context, method, base, path string, q url.Values, payload []byte) ([]byte, error) {
	if base == "" {
		return nil, ErrNoBase
	}

	target := base + path
	if len(q) > 0 {
		target += "?" + q.Encode()
	}

	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, bodyReader)
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "send request")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, errors.Wrap(err, "read response")
	}

	if err := checkResponse(method, path, resp.StatusCode, resp.Header.Get("Content-Type"), body); err != nil {
		return nil, err
	}
	return body, nil
}
