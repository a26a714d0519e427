package handler

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"

	"github.com/labstack/echo/v4"

	"syssetup-proxy/internal/model"
	"syssetup-proxy/internal/service"
)

// FileHandler serves upstream files for the routes in the table.
type FileHandler struct {
	service *service.FetchService
	logger  *slog.Logger
}

// NewFileHandler creates a FileHandler.
func NewFileHandler(svc *service.FetchService, logger *slog.Logger) *FileHandler {
	return &FileHandler{
		service: svc,
		logger:  logger.With("component", "file_handler"),
	}
}

// Serve returns the handler for one route. The upstream file is fetched on
// every request and returned verbatim as text/plain with caching disabled.
func (h *FileHandler) Serve(route model.Route) echo.HandlerFunc {
	return func(c echo.Context) error {
		body, err := h.service.Fetch(c.Request().Context(), route)
		if err != nil {
			return h.mapError(c, route, err)
		}

		c.Response().Header().Set("Cache-Control", "no-store")
		return c.Blob(http.StatusOK, echo.MIMETextPlain, body)
	}
}

// mapError translates a fetch failure into a gateway status.
func (h *FileHandler) mapError(c echo.Context, route model.Route, err error) error {
	code := statusForError(err)
	h.logger.Error("upstream fetch failed",
		"err", err,
		"path", route.Path,
		"file", route.File,
		"status", code,
		"request_id", c.Response().Header().Get(echo.HeaderXRequestID),
	)
	return echo.NewHTTPError(code)
}

// statusForError maps upstream timeouts to 504 and every other fetch
// failure (transport error, non-2xx reply, oversize body) to 502.
func statusForError(err error) int {
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return http.StatusGatewayTimeout
	}
	return http.StatusBadGateway
}
