// Package service implements the core proxy forwarding logic.
package service

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/valyala/bytebufferpool"

	"hls-proxy/internal/client"
	"hls-proxy/internal/config"
	"hls-proxy/internal/headers"
	"hls-proxy/internal/metrics"
	"hls-proxy/internal/model"
	"hls-proxy/internal/playlist"
	"hls-proxy/internal/target"
)

// ErrRewrite is returned when a playlist body could not be read or rewritten.
var ErrRewrite = errors.New("playlist rewrite failed")

// ProxyService validates targets, fetches them and rewrites playlists.
type ProxyService struct {
	client           *client.UpstreamClient
	guard            *target.Guard
	policy           *headers.Policy
	metrics          *metrics.Metrics
	logger           *slog.Logger
	maxPlaylistBytes int64
}

// NewProxyService creates a ProxyService. guard and m may be nil.
func NewProxyService(
	c *client.UpstreamClient,
	guard *target.Guard,
	policy *headers.Policy,
	cfg *config.Config,
	logger *slog.Logger,
	m *metrics.Metrics,
) *ProxyService {
	limit := cfg.Upstream.MaxPlaylistBytes
	if limit <= 0 {
		limit = 8 * 1024 * 1024
	}
	return &ProxyService{
		client:           c,
		guard:            guard,
		policy:           policy,
		metrics:          m,
		logger:           logger.With("component", "proxy_service"),
		maxPlaylistBytes: limit,
	}
}

// Timeout returns the upstream fetch timeout.
func (s *ProxyService) Timeout() time.Duration {
	return s.client.Timeout()
}

// Forward sends a ProxyRequest to its target and returns the response to send
// back. The caller is responsible for closing the response body.
//
// Successful playlist responses are buffered and rewritten; everything else,
// including non-2xx playlist responses, is streamed as received. Upstream
// status codes are never treated as errors.
func (s *ProxyService) Forward(pr *model.ProxyRequest) (*model.ProxyResponse, error) {
	u, err := target.Validate(pr.Target, pr.ProxyOrigin)
	if err != nil {
		return nil, err
	}
	if err := s.guard.Check(pr.Ctx, u); err != nil {
		return nil, err
	}

	header := s.policy.Upstream(pr.Header, u)

	var body io.Reader
	if pr.Method != http.MethodGet && pr.Method != http.MethodHead && pr.Body != nil {
		body = pr.Body
	}

	s.logger.Debug("forwarding request",
		"method", pr.Method,
		"host", u.Host,
		"path", u.Path,
	)

	resp, err := s.client.Fetch(pr.Ctx, pr.Method, pr.Target, header, body)
	if err != nil {
		return nil, fmt.Errorf("forward to upstream: %w", err)
	}

	resp.Kind = playlist.Classify(u, resp.Header)

	outKind := model.ContentOpaque
	if resp.Kind == model.ContentPlaylist && pr.Method != http.MethodHead && isSuccess(resp.StatusCode) {
		if err := s.rewrite(resp, u, pr.ProxyOrigin); err != nil {
			s.countRewrite("error")
			return nil, err
		}
		s.countRewrite("ok")
		outKind = model.ContentPlaylist
	}

	resp.Header = s.policy.Downstream(resp.Header, outKind)
	return resp, nil
}

// rewrite buffers the playlist body and replaces it with the rewritten text.
func (s *ProxyService) rewrite(resp *model.ProxyResponse, base *url.URL, proxyOrigin string) error {
	defer func() { _ = resp.Body.Close() }()

	if ce := resp.Header.Get("Content-Encoding"); ce != "" && !strings.EqualFold(ce, "identity") {
		return fmt.Errorf("%w: unsupported content encoding %q", ErrRewrite, ce)
	}

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	n, err := buf.ReadFrom(io.LimitReader(resp.Body, s.maxPlaylistBytes+1))
	if err != nil {
		return fmt.Errorf("%w: read body: %w", ErrRewrite, err)
	}
	if n > s.maxPlaylistBytes {
		return fmt.Errorf("%w: playlist exceeds %d bytes", ErrRewrite, s.maxPlaylistBytes)
	}

	out := playlist.Rewrite(buf.String(), base, proxyOrigin)
	resp.Body = io.NopCloser(strings.NewReader(out))

	s.logger.Debug("playlist rewritten",
		"host", base.Host,
		"bytes_in", n,
		"bytes_out", len(out),
	)
	return nil
}

func (s *ProxyService) countRewrite(result string) {
	if s.metrics != nil {
		s.metrics.PlaylistRewrites.WithLabelValues(result).Inc()
	}
}

func isSuccess(code int) bool {
	return code >= 200 && code < 300
}
