package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"hls-proxy/internal/headers"
)

// hopByHopHeaders are headers that should not be forwarded by proxies.
var hopByHopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"TE",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// CORS returns an Echo middleware that attaches the fixed CORS header set to
// every response, answers preflight requests with 204, and strips hop-by-hop
// headers from incoming requests.
//
// Headers are set before the handler runs so that they are already in place
// when a streamed response commits its header.
func CORS(policy *headers.Policy) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			for _, h := range hopByHopHeaders {
				c.Request().Header.Del(h)
			}

			policy.ApplyCORS(c.Response().Header())
			c.Response().Header().Set("X-Content-Type-Options", "nosniff")

			if c.Request().Method == http.MethodOptions {
				return c.NoContent(http.StatusNoContent)
			}
			return next(c)
		}
	}
}
