package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"syssetup-proxy/internal/metrics"
)

// MetricsMiddleware returns an Echo middleware that records Prometheus metrics
// for each inbound request. The path label is limited to paths; every other
// request path is recorded as "other".
func MetricsMiddleware(m *metrics.Metrics, paths []string) echo.MiddlewareFunc {
	labels := metrics.NewPathLabels(paths...)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			m.RequestsInFlight.Inc()
			defer m.RequestsInFlight.Dec()

			start := time.Now()
			err := next(c)

			req := c.Request()
			status := strconv.Itoa(responseStatus(c, err))
			method := metrics.NormalizeMethod(req.Method)
			path := labels.Normalize(req.URL.Path)

			m.RequestsTotal.WithLabelValues(method, status, path).Inc()
			m.RequestDuration.WithLabelValues(method, status, path).Observe(time.Since(start).Seconds())

			return err
		}
	}
}

// responseStatus is the status the client receives once err is rendered:
// the HTTPError code, 500 for any other error, or the written status when
// the response was already committed.
func responseStatus(c echo.Context, err error) int {
	res := c.Response()
	if err == nil || res.Committed {
		return res.Status
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	return http.StatusInternalServerError
}
