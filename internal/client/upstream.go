// Package client provides the upstream HTTP client used to fetch proxy targets.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"hls-proxy/internal/config"
	"hls-proxy/internal/metrics"
	"hls-proxy/internal/model"
)

// ErrUpstreamTimeout is returned when the upstream did not answer within the
// configured timeout. The in-flight request is cancelled before it is returned.
var ErrUpstreamTimeout = errors.New("upstream request timed out")

// UpstreamClient sends requests to arbitrary origin servers.
type UpstreamClient struct {
	httpClient *http.Client
	timeout    time.Duration
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// NewUpstreamClient creates an UpstreamClient with connection pooling.
// The metrics parameter is optional; pass nil to disable upstream metrics recording.
//
// The http.Client carries no overall timeout: the fetch timeout only bounds
// the wait for response headers so that long media bodies can stream.
func NewUpstreamClient(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *UpstreamClient {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        cfg.Upstream.IdleConnections,
		MaxIdleConnsPerHost: cfg.Upstream.IdleConnections,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}

	timeout := cfg.Upstream.Timeout.Duration
	if timeout <= 0 {
		timeout = 20 * time.Second
	}

	return &UpstreamClient{
		httpClient: &http.Client{Transport: transport},
		timeout:    timeout,
		logger:     logger.With("component", "upstream_client"),
		metrics:    m,
	}
}

// Timeout returns the bound on waiting for upstream response headers.
func (c *UpstreamClient) Timeout() time.Duration {
	return c.timeout
}

// Do executes an HTTP request against the upstream and returns the raw response.
// The caller is responsible for closing the response body.
func (c *UpstreamClient) Do(req *http.Request) (*model.ProxyResponse, error) {
	c.logger.Debug("upstream request",
		"method", req.Method,
		"host", req.URL.Host,
		"path", req.URL.Path,
	)

	start := time.Now()
	resp, err := c.httpClient.Do(req) //nolint:bodyclose // body ownership transfers to caller via ProxyResponse
	duration := time.Since(start).Seconds()

	method := metrics.NormalizeMethod(req.Method)

	if err != nil {
		if c.metrics != nil {
			c.metrics.UpstreamDuration.WithLabelValues(method).Observe(duration)
		}
		return nil, fmt.Errorf("upstream request: %w", err)
	}

	if c.metrics != nil {
		status := strconv.Itoa(resp.StatusCode)
		c.metrics.UpstreamDuration.WithLabelValues(method).Observe(duration)
		c.metrics.UpstreamResponses.WithLabelValues(method, status).Inc()
	}

	return &model.ProxyResponse{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Header:     resp.Header,
		Body:       resp.Body,
	}, nil
}

// Fetch executes a request and returns the response body as a stream.
// The caller is responsible for closing the returned body.
//
// A timer bounds the wait for response headers. When it fires the request
// context is cancelled, which aborts the dial or read in progress, and
// ErrUpstreamTimeout is returned. Once headers have arrived the timer is
// stopped and the body stays readable until closed or ctx is done.
func (c *UpstreamClient) Fetch(ctx context.Context, method, url string, header http.Header, body io.Reader) (*model.ProxyResponse, error) {
	ctx, cancel := context.WithCancelCause(ctx)

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		cancel(nil)
		return nil, fmt.Errorf("build upstream request: %w", err)
	}
	req.Header = header

	timer := time.AfterFunc(c.timeout, func() { cancel(ErrUpstreamTimeout) })
	resp, err := c.Do(req)
	fired := !timer.Stop()

	if fired || (err != nil && errors.Is(context.Cause(ctx), ErrUpstreamTimeout)) {
		if resp != nil {
			_ = resp.Body.Close()
		}
		cancel(nil)
		if c.metrics != nil {
			c.metrics.UpstreamTimeouts.Inc()
		}
		c.logger.Warn("upstream timeout", "host", req.URL.Host, "timeout", c.timeout)
		return nil, fmt.Errorf("%w after %s", ErrUpstreamTimeout, c.timeout)
	}
	if err != nil {
		cancel(nil)
		return nil, err
	}

	if err := decodeBody(resp, method); err != nil {
		_ = resp.Body.Close()
		cancel(nil)
		return nil, err
	}

	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: func() { cancel(nil) }}
	return resp, nil
}

// cancelOnClose releases the request context once the body is done.
type cancelOnClose struct {
	io.ReadCloser
	cancel func()
}

func (b *cancelOnClose) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}
