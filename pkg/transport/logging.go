package transport

import (
	"net/http"
	"time"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// LogRequests returns a middleware that logs every round trip at debug level
// using the logger from the request context.
func LogRequests() Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return Func(func(req *http.Request) (*http.Response, error) {
			lg := zctx.From(req.Context()).With(
				zap.String("method", req.Method),
				zap.String("url", redactURL(req)),
				zap.String("request_id", RequestIDFromContext(req.Context())),
			)

			start := time.Now()
			resp, err := next.RoundTrip(req)
			if err != nil {
				lg.Debug("Request failed", zap.Duration("duration", time.Since(start)), zap.Error(err))
				return nil, err
			}

			lg.Debug("Request done",
				zap.Int("status", resp.StatusCode),
				zap.String("content_type", resp.Header.Get("Content-Type")),
				zap.Duration("duration", time.Since(start)),
			)
			return resp, nil
		})
	}
}

func redactURL(req *http.Request) string {
	u := *req.URL
	u.User = nil
	return u.String()
}
