package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"hls-proxy/internal/metrics"
)

func newMetricsEcho(m *metrics.Metrics) *echo.Echo {
	e := echo.New()
	e.Use(MetricsMiddleware(m))
	e.Any("/", func(c echo.Context) error {
		if c.QueryParam("url") == "missing" {
			return echo.NewHTTPError(http.StatusNotFound, "not found")
		}
		return c.Blob(http.StatusOK, "video/mp2t", make([]byte, 188))
	})
	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})
	return e
}

func TestMetricsMiddleware_RequestsTotal(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		labels []string
	}{
		{"proxy", http.MethodGet, "/?url=x", []string{"GET", "200", "/"}},
		{"health", http.MethodGet, "/health", []string{"GET", "200", "/health"}},
		{"http error", http.MethodGet, "/?url=missing", []string{"GET", "404", "/"}},
		{"router not found", http.MethodGet, "/nonexistent", []string{"GET", "404", "other"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := metrics.New()
			e := newMetricsEcho(m)

			req := httptest.NewRequest(tt.method, tt.path, http.NoBody)
			e.ServeHTTP(httptest.NewRecorder(), req)

			if v := testutil.ToFloat64(m.RequestsTotal.WithLabelValues(tt.labels...)); v != 1 {
				t.Errorf("requests_total%v = %v, want 1", tt.labels, v)
			}
			if v := testutil.ToFloat64(m.RequestsInFlight); v != 0 {
				t.Errorf("in flight = %v, want 0", v)
			}
		})
	}
}

func TestMetricsMiddleware_UnknownMethodNormalized(t *testing.T) {
	m := metrics.New()
	e := newMetricsEcho(m)

	req := httptest.NewRequest("XYZZY", "/", http.NoBody)
	e.ServeHTTP(httptest.NewRecorder(), req)

	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	for _, f := range families {
		if f.GetName() != "hls_proxy_http_requests_total" {
			continue
		}
		for _, metric := range f.GetMetric() {
			for _, lp := range metric.GetLabel() {
				if lp.GetName() == "method" && lp.GetValue() == "other" {
					return
				}
			}
		}
	}
	t.Error("expected hls_proxy_http_requests_total with method=other")
}

func TestMetricsMiddleware_RecordsDuration(t *testing.T) {
	m := metrics.New()
	e := newMetricsEcho(m)

	req := httptest.NewRequest(http.MethodGet, "/health", http.NoBody)
	e.ServeHTTP(httptest.NewRecorder(), req)

	if n := testutil.CollectAndCount(m.RequestDuration, "hls_proxy_http_request_duration_seconds"); n != 1 {
		t.Errorf("duration series = %d, want 1", n)
	}
}

func TestMetricsMiddleware_ResponseBytes(t *testing.T) {
	m := metrics.New()
	e := newMetricsEcho(m)

	for _, path := range []string{"/?url=a", "/?url=b", "/health"} {
		req := httptest.NewRequest(http.MethodGet, path, http.NoBody)
		e.ServeHTTP(httptest.NewRecorder(), req)
	}

	if v := testutil.ToFloat64(m.ResponseBytes.WithLabelValues("media")); v != 376 {
		t.Errorf("media bytes = %v, want 376", v)
	}
	if v := testutil.ToFloat64(m.ResponseBytes.WithLabelValues("other")); v != 2 {
		t.Errorf("other bytes = %v, want 2", v)
	}
}
