// Package transport provides composable client-side HTTP middleware.
//
// Middleware wraps an http.RoundTripper the same way server middleware wraps
// an http.Handler. Wrap applies them so that the first middleware in the list
// sees the request first.
package transport

import "net/http"

// Middleware decorates a RoundTripper.
type Middleware func(next http.RoundTripper) http.RoundTripper

// Func adapts a function to the http.RoundTripper interface.
type Func func(*http.Request) (*http.Response, error)

// RoundTrip calls f(req).
func (f Func) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// Wrap applies middlewares to rt. A nil rt means http.DefaultTransport.
func Wrap(rt http.RoundTripper, middlewares ...Middleware) http.RoundTripper {
	if rt == nil {
		rt = http.DefaultTransport
	}
	for i := len(middlewares) - 1; i >= 0; i-- {
		rt = middlewares[i](rt)
	}
	return rt
}

// Header returns a middleware that sets a fixed header on every request that
// does not already carry it.
func Header(key, value string) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return Func(func(req *http.Request) (*http.Response, error) {
			if req.Header.Get(key) != "" {
				return next.RoundTrip(req)
			}
			req = req.Clone(req.Context())
			req.Header.Set(key, value)
			return next.RoundTrip(req)
		})
	}
}
