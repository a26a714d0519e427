package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"syssetup-proxy/internal/config"
	"syssetup-proxy/internal/model"
)

// Version is a string type for dependency injection of the build version.
type Version string

// HealthHandler serves health and status endpoints on the admin listener.
type HealthHandler struct {
	cfg     *config.Config
	table   *model.RouteTable
	version Version
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(cfg *config.Config, table *model.RouteTable, v Version) *HealthHandler {
	return &HealthHandler{cfg: cfg, table: table, version: v}
}

// Healthz returns a simple OK response for liveness probes.
func (h *HealthHandler) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

type routeStatus struct {
	Path     string `json:"path"`
	File     string `json:"file"`
	Upstream string `json:"upstream"`
}

type statusResponse struct {
	Status   string        `json:"status"`
	Version  string        `json:"version"`
	Upstream string        `json:"upstream"`
	Branch   string        `json:"branch"`
	Routes   []routeStatus `json:"routes"`
}

// Status reports the build version, upstream source and route table.
func (h *HealthHandler) Status(c echo.Context) error {
	resp := statusResponse{
		Status:   "ok",
		Version:  string(h.version),
		Upstream: h.cfg.Upstream.Source(),
		Branch:   h.cfg.Upstream.Branch,
	}
	for _, r := range h.table.Routes() {
		resp.Routes = append(resp.Routes, routeStatus{Path: r.Path, File: r.File, Upstream: r.UpstreamURL})
	}
	return c.JSON(http.StatusOK, resp)
}
