package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"hls-proxy/internal/config"
	"hls-proxy/internal/service"
	"hls-proxy/internal/target"
)

// Version is a string type for dependency injection of the build version.
type Version string

// HealthHandler serves health and status endpoints.
type HealthHandler struct {
	cfg     *config.Config
	version Version
	service *service.ProxyService
	guard   *target.Guard
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(cfg *config.Config, v Version, svc *service.ProxyService, guard *target.Guard) *HealthHandler {
	return &HealthHandler{cfg: cfg, version: v, service: svc, guard: guard}
}

// Health returns a plain OK for liveness checks.
func (h *HealthHandler) Health(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

// Status returns proxy status information.
func (h *HealthHandler) Status(c echo.Context) error {
	loop := "prefix"
	if h.guard.Enabled() {
		loop = "prefix+resolve"
	}
	return c.JSON(http.StatusOK, map[string]any{
		"status":           "ok",
		"version":          string(h.version),
		"upstream_timeout": h.service.Timeout().String(),
		"auth_enabled":     h.cfg.Auth.Token != "",
		"public_url":       h.cfg.Server.PublicURL,
		"loop_check":       loop,
	})
}
