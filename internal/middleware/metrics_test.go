package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	dto "github.com/prometheus/client_model/go"

	"syssetup-proxy/internal/metrics"
)

// routedPaths mirrors the default route table.
var routedPaths = []string{"/", "/flatpaks", "/packages"}

// findRequestCounter returns the labels of the first requests_total series
// whose path label equals path.
func findRequestCounter(t *testing.T, m *metrics.Metrics, path string) (map[string]string, *dto.Metric) {
	t.Helper()
	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	for _, f := range families {
		if f.GetName() != "syssetup_proxy_http_requests_total" {
			continue
		}
		for _, metric := range f.GetMetric() {
			labels := make(map[string]string)
			for _, lp := range metric.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			if labels["path"] == path {
				return labels, metric
			}
		}
	}
	return nil, nil
}

func TestMetricsMiddleware_IncrementsCounter(t *testing.T) {
	m := metrics.New()

	e := echo.New()
	e.Use(MetricsMiddleware(m, routedPaths))
	e.GET("/packages", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest(http.MethodGet, "/packages?x=1", http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	labels, metric := findRequestCounter(t, m, "/packages")
	if metric == nil {
		t.Fatal("expected syssetup_proxy_http_requests_total with path=/packages")
	}
	if v := metric.GetCounter().GetValue(); v != 1 {
		t.Errorf("counter value = %v, want 1", v)
	}
	if labels["status_code"] != "200" {
		t.Errorf("status_code = %q, want %q", labels["status_code"], "200")
	}
}

func TestMetricsMiddleware_RecordsDuration(t *testing.T) {
	m := metrics.New()

	e := echo.New()
	e.Use(MetricsMiddleware(m, routedPaths))
	e.GET("/", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}

	found := false
	for _, f := range families {
		if f.GetName() == "syssetup_proxy_http_request_duration_seconds" {
			for _, metric := range f.GetMetric() {
				if metric.GetHistogram().GetSampleCount() > 0 {
					found = true
				}
			}
		}
	}
	if !found {
		t.Error("expected syssetup_proxy_http_request_duration_seconds with at least one sample")
	}
}

func TestMetricsMiddleware_HTTPErrorStatus(t *testing.T) {
	m := metrics.New()

	e := echo.New()
	e.Use(MetricsMiddleware(m, routedPaths))
	e.GET("/flatpaks", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusBadGateway)
	})

	req := httptest.NewRequest(http.MethodGet, "/flatpaks", http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	labels, metric := findRequestCounter(t, m, "/flatpaks")
	if metric == nil {
		t.Fatal("expected syssetup_proxy_http_requests_total with path=/flatpaks")
	}
	if labels["status_code"] != "502" {
		t.Errorf("status_code = %q, want %q", labels["status_code"], "502")
	}
}

func TestMetricsMiddleware_UnknownMethodNormalized(t *testing.T) {
	m := metrics.New()

	e := echo.New()
	e.Use(MetricsMiddleware(m, routedPaths))
	e.Any("/packages", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest("XYZZY", "/packages", http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	labels, metric := findRequestCounter(t, m, "/packages")
	if metric == nil {
		t.Fatal("expected syssetup_proxy_http_requests_total with path=/packages")
	}
	if labels["method"] != "other" {
		t.Errorf("method = %q, want %q", labels["method"], "other")
	}
}

func TestMetricsMiddleware_RouterNotFound(t *testing.T) {
	m := metrics.New()

	e := echo.New()
	e.Use(MetricsMiddleware(m, routedPaths))

	req := httptest.NewRequest(http.MethodGet, "/nonexistent", http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}

	labels, metric := findRequestCounter(t, m, "other")
	if metric == nil {
		t.Fatal("expected syssetup_proxy_http_requests_total with path=other")
	}
	if labels["status_code"] != "404" || labels["method"] != "GET" {
		t.Errorf("labels = %v, want method=GET status_code=404", labels)
	}
}

func TestMetricsMiddleware_PlainErrorRecordedAs500(t *testing.T) {
	m := metrics.New()

	e := echo.New()
	e.Use(MetricsMiddleware(m, routedPaths))
	e.GET("/packages", func(c echo.Context) error {
		return errors.New("boom")
	})

	req := httptest.NewRequest(http.MethodGet, "/packages", http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
	labels, metric := findRequestCounter(t, m, "/packages")
	if metric == nil {
		t.Fatal("expected syssetup_proxy_http_requests_total with path=/packages")
	}
	if labels["status_code"] != "500" {
		t.Errorf("status_code = %q, want %q", labels["status_code"], "500")
	}
}

func TestMetricsMiddleware_CommittedResponseKeepsStatus(t *testing.T) {
	m := metrics.New()

	e := echo.New()
	e.Use(MetricsMiddleware(m, routedPaths))
	e.GET("/flatpaks", func(c echo.Context) error {
		if err := c.String(http.StatusOK, "partial"); err != nil {
			return err
		}
		return errors.New("write failed after commit")
	})

	req := httptest.NewRequest(http.MethodGet, "/flatpaks", http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	labels, metric := findRequestCounter(t, m, "/flatpaks")
	if metric == nil {
		t.Fatal("expected syssetup_proxy_http_requests_total with path=/flatpaks")
	}
	if labels["status_code"] != "200" {
		t.Errorf("status_code = %q, want %q", labels["status_code"], "200")
	}
}

func TestMetricsMiddleware_UnroutedPathIsOther(t *testing.T) {
	m := metrics.New()

	e := echo.New()
	e.Use(MetricsMiddleware(m, routedPaths))
	e.GET("/healthz", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if _, metric := findRequestCounter(t, m, "/healthz"); metric != nil {
		t.Error("path label /healthz recorded, want it folded into other")
	}
	if _, metric := findRequestCounter(t, m, "other"); metric == nil {
		t.Error("expected syssetup_proxy_http_requests_total with path=other")
	}
}
