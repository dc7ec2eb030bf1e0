package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"regexp"

	"github.com/labstack/echo/v4"

	"hls-proxy/internal/client"
	"hls-proxy/internal/config"
	"hls-proxy/internal/model"
	"hls-proxy/internal/service"
	"hls-proxy/internal/target"
)

// secretParamPattern matches credential-like query parameter values in URLs
// embedded in error messages.
var secretParamPattern = regexp.MustCompile(`(?i)((?:token|key|sig|signature|auth|password)=)[^&\s"]+`)

// ProxyHandler forwards /?url= requests to their target and streams the
// response back.
type ProxyHandler struct {
	service   *service.ProxyService
	publicURL string
	logger    *slog.Logger
}

// NewProxyHandler creates a ProxyHandler.
func NewProxyHandler(svc *service.ProxyService, cfg *config.Config, logger *slog.Logger) *ProxyHandler {
	return &ProxyHandler{
		service:   svc,
		publicURL: cfg.Server.PublicURL,
		logger:    logger.With("component", "proxy_handler"),
	}
}

// Handle proxies the target named by the url query parameter. GET and HEAD
// without the parameter serve the info page instead.
func (h *ProxyHandler) Handle(c echo.Context) error {
	req := c.Request()
	origin := h.proxyOrigin(c)

	if _, ok := req.URL.Query()["url"]; !ok &&
		(req.Method == http.MethodGet || req.Method == http.MethodHead) {
		return renderIndex(c, origin)
	}

	pr := &model.ProxyRequest{
		Ctx:         req.Context(),
		Method:      req.Method,
		Target:      c.QueryParam("url"),
		ProxyOrigin: origin,
		Header:      req.Header,
		Body:        req.Body,
	}

	resp, err := h.service.Forward(pr)
	if err != nil {
		return h.mapError(c, err)
	}
	defer func() { _ = resp.Body.Close() }()

	// Response headers replace anything set earlier, CORS included; the
	// policy already re-applied the fixed CORS set.
	for key, vals := range resp.Header {
		c.Response().Header()[key] = vals
	}

	c.Response().WriteHeader(resp.StatusCode)

	// The status is already sent; a failed copy leaves a truncated body.
	if _, err := io.Copy(c.Response(), resp.Body); err != nil {
		h.logger.Warn("streaming response body",
			"err", sanitizeError(err),
			"kind", resp.Kind.String(),
		)
	}

	return nil
}

// proxyOrigin is scheme://host of this service as the client sees it.
func (h *ProxyHandler) proxyOrigin(c echo.Context) string {
	if h.publicURL != "" {
		return h.publicURL
	}
	return c.Scheme() + "://" + c.Request().Host
}

func (h *ProxyHandler) mapError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, target.ErrMissingParameter),
		errors.Is(err, target.ErrInvalidFormat),
		errors.Is(err, target.ErrLoopDetected):
		h.logger.Info("rejected target", "err", err)
		return jsonError(c, http.StatusBadRequest, err.Error())
	}

	h.logger.Error("proxy error", "err", sanitizeError(err))

	if errors.Is(err, client.ErrUpstreamTimeout) {
		return jsonError(c, http.StatusBadGateway,
			fmt.Sprintf("Request timeout (%s)", h.service.Timeout()))
	}

	if errors.Is(err, context.Canceled) {
		return jsonError(c, http.StatusBadGateway, "Proxy Error: client disconnected")
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return jsonError(c, http.StatusBadGateway, "Proxy Error: upstream host unreachable: "+dnsErr.Name)
	}

	return jsonError(c, http.StatusBadGateway, "Proxy Error: "+sanitizeError(err))
}

func jsonError(c echo.Context, status int, msg string) error {
	return c.JSON(status, map[string]string{"error": msg})
}

// sanitizeError redacts credential query values from error messages that
// may contain target URLs.
func sanitizeError(err error) string {
	return secretParamPattern.ReplaceAllString(err.Error(), "${1}[REDACTED]")
}
