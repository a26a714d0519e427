package handler

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"

	"syssetup-proxy/internal/client"
	"syssetup-proxy/internal/config"
	"syssetup-proxy/internal/middleware"
	"syssetup-proxy/internal/model"
	"syssetup-proxy/internal/service"
)

// upstreamFiles is the content served by the fake file host.
var upstreamFiles = map[string]string{
	"/owner/repo/refs/heads/main/syssetup.sh":  "#!/bin/bash\necho main\n",
	"/owner/repo/refs/heads/main/flatpaks.txt": "org.mozilla.firefox\n",
	"/owner/repo/refs/heads/main/packages.txt": "base-devel\ngit\n",
}

// fakeUpstream serves upstreamFiles and records every requested path.
type fakeUpstream struct {
	*httptest.Server

	mu    sync.Mutex
	paths []string
}

func newFakeUpstream(t *testing.T) *fakeUpstream {
	t.Helper()
	f := &fakeUpstream{}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.paths = append(f.paths, r.URL.Path)
		f.mu.Unlock()

		body, ok := upstreamFiles[r.URL.Path]
		if !ok {
			http.Error(w, "404: Not Found", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Cache-Control", "max-age=300")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(f.Close)
	return f
}

func (f *fakeUpstream) requested() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.paths))
	copy(out, f.paths)
	return out
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(baseURL string) *config.Config {
	return &config.Config{
		Upstream: config.UpstreamConfig{
			BaseURL:         baseURL,
			Repository:      "owner/repo",
			Branch:          "main",
			TimeoutSeconds:  10,
			IdleConnections: 10,
			MaxBodyBytes:    1024,
		},
		Metrics: config.MetricsConfig{Path: "/metrics"},
	}
}

// newTestRouter builds the public Echo instance against baseURL.
func newTestRouter(t *testing.T, baseURL string) (*echo.Echo, *model.RouteTable) {
	t.Helper()
	cfg := testConfig(baseURL)
	table, err := service.NewRouteTable(cfg)
	if err != nil {
		t.Fatalf("NewRouteTable: %v", err)
	}
	uc := client.NewUpstreamClient(cfg, testLogger(), nil)
	svc := service.NewFetchServiceForTest(uc, cfg, testLogger())

	e := echo.New()
	e.HTTPErrorHandler = PlainTextErrorHandler(testLogger())
	e.Pre(middleware.StripFragment())
	RegisterRoutes(e, table, NewFileHandler(svc, testLogger()))
	return e, table
}
