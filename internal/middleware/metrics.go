package middleware

import (
	"errors"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"hls-proxy/internal/metrics"
)

// MetricsMiddleware returns an Echo middleware that records request counts,
// latency and body bytes per content class. Latency includes the time spent
// streaming the body, so long segment downloads show up in the upper buckets.
func MetricsMiddleware(m *metrics.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			m.RequestsInFlight.Inc()
			defer m.RequestsInFlight.Dec()

			start := time.Now()
			err := next(c)
			elapsed := time.Since(start).Seconds()

			res := c.Response()
			code := res.Status
			// An *echo.HTTPError has not been written yet; the central
			// error handler writes it after the chain returns.
			var he *echo.HTTPError
			if err != nil && errors.As(err, &he) {
				code = he.Code
			}

			method := metrics.NormalizeMethod(c.Request().Method)
			path := metrics.NormalizePath(c.Request().URL.Path)
			status := strconv.Itoa(code)

			m.RequestsTotal.WithLabelValues(method, status, path).Inc()
			m.RequestDuration.WithLabelValues(method, status, path).Observe(elapsed)
			if res.Size > 0 {
				content := metrics.ContentClass(res.Header().Get(echo.HeaderContentType))
				m.ResponseBytes.WithLabelValues(content).Add(float64(res.Size))
			}

			return err
		}
	}
}
