package transport

import (
	"net/http"
	"regexp"
)

// SkipBrowserWarningKey is the header and query parameter that makes ngrok
// tunnels skip their HTML browser-warning interstitial.
const SkipBrowserWarningKey = "ngrok-skip-browser-warning"

var ngrokHost = regexp.MustCompile(`(?i)ngrok(-free)?\.app$`)

// IsTunnelHost reports whether host belongs to an ngrok tunnel.
func IsTunnelHost(host string) bool {
	return ngrokHost.MatchString(host)
}

// SkipBrowserWarning returns a middleware that asks tunnelling proxies not to
// inject their interstitial page. The header is sent on every request; for
// ngrok hosts the query parameter is set as well, since some proxies strip
// unknown headers.
func SkipBrowserWarning() Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return Func(func(req *http.Request) (*http.Response, error) {
			req = req.Clone(req.Context())
			req.Header.Set(SkipBrowserWarningKey, "true")
			if IsTunnelHost(req.URL.Hostname()) {
				q := req.URL.Query()
				q.Set(SkipBrowserWarningKey, "true")
				req.URL.RawQuery = q.Encode()
			}
			return next.RoundTrip(req)
		})
	}
}
