package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"hls-proxy/internal/config"
	"hls-proxy/internal/headers"
)

func newCORSEcho(handler echo.HandlerFunc) *echo.Echo {
	e := echo.New()
	e.Use(CORS(headers.NewPolicy(&config.Config{})))
	e.GET("/test", handler)
	return e
}

func TestCORS_AddsHeaders(t *testing.T) {
	e := newCORSEcho(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if v := rec.Header().Get("Access-Control-Allow-Origin"); v != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want %q", v, "*")
	}
	if v := rec.Header().Get("Access-Control-Allow-Methods"); v == "" {
		t.Error("Access-Control-Allow-Methods missing")
	}
	if v := rec.Header().Get("X-Content-Type-Options"); v != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want %q", v, "nosniff")
	}
}

func TestCORS_OnErrorResponses(t *testing.T) {
	e := newCORSEcho(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest(http.MethodGet, "/missing", http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
	if v := rec.Header().Get("Access-Control-Allow-Origin"); v != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want %q on 404", v, "*")
	}
}

func TestCORS_Preflight(t *testing.T) {
	called := false
	e := newCORSEcho(func(c echo.Context) error {
		called = true
		return c.String(http.StatusOK, "ok")
	})

	for _, path := range []string{"/test", "/anything/else", "/?url=https%3A%2F%2Fcdn.example.com%2Fa.m3u8"} {
		req := httptest.NewRequest(http.MethodOptions, path, http.NoBody)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		if rec.Code != http.StatusNoContent {
			t.Errorf("OPTIONS %s: status = %d, want %d", path, rec.Code, http.StatusNoContent)
		}
		if v := rec.Header().Get("Access-Control-Allow-Origin"); v != "*" {
			t.Errorf("OPTIONS %s: Access-Control-Allow-Origin = %q, want %q", path, v, "*")
		}
	}
	if called {
		t.Error("preflight should not reach the handler")
	}
}

func TestCORS_StripsHopByHop(t *testing.T) {
	var gotConnection string
	e := newCORSEcho(func(c echo.Context) error {
		gotConnection = c.Request().Header.Get("Connection")
		return c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	req.Header.Set("Connection", "keep-alive")
	req.Header.Set("Proxy-Authorization", "Basic abc")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if gotConnection != "" {
		t.Errorf("Connection header should be stripped, got %q", gotConnection)
	}
}
