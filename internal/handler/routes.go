package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"syssetup-proxy/internal/config"
	"syssetup-proxy/internal/metrics"
	"syssetup-proxy/internal/model"
)

// servedMethods are accepted on table routes; other methods get 405.
var servedMethods = []string{http.MethodGet, http.MethodHead}

// RegisterRoutes wires one exact-match route per table entry onto the public
// Echo instance. Anything else falls through to echo's 404.
func RegisterRoutes(e *echo.Echo, table *model.RouteTable, files *FileHandler) {
	for _, r := range table.Routes() {
		e.Match(servedMethods, r.Path, files.Serve(r))
	}
}

// RegisterAdminRoutes wires health, status and (when enabled) metrics onto
// the admin Echo instance.
func RegisterAdminRoutes(e *echo.Echo, cfg *config.Config, health *HealthHandler, m *metrics.Metrics) {
	e.GET("/healthz", health.Healthz)
	e.GET("/proxy/status", health.Status)

	if cfg.Metrics.Enabled {
		e.GET(cfg.Metrics.Path, echo.WrapHandler(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))
	}
}
