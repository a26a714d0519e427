package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/fx"

	"syssetup-proxy/internal/client"
	"syssetup-proxy/internal/config"
	"syssetup-proxy/internal/handler"
	"syssetup-proxy/internal/metrics"
	"syssetup-proxy/internal/middleware"
	"syssetup-proxy/internal/model"
	"syssetup-proxy/internal/service"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// adminServer is the echo instance behind the admin listener.
type adminServer struct{ *echo.Echo }

func main() {
	var cli config.CLI
	kong.Parse(&cli,
		kong.Name("syssetup-proxy"),
		kong.Description("Serves the system setup script and package lists from a repository branch."),
		kong.Vars{"version": fmt.Sprintf("%s (%s, %s)", version, commit, date)},
	)

	fx.New(
		fx.Provide(
			func() *config.CLI { return &cli },
			func() handler.Version { return handler.Version(version) },
			config.Load,
			newLogger,
			metrics.New,
			newEcho,
			newAdminServer,
			client.NewUpstreamClient,
			service.NewRouteTable,
			service.NewFetchService,
			handler.NewFileHandler,
			handler.NewHealthHandler,
		),
		fx.Invoke(
			handler.RegisterRoutes,
			registerAdminRoutes,
			warnConfigPermissions,
			logRouteTable,
			startServer,
			startAdminServer,
		),
	).Run()
}

func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	switch strings.ToLower(cfg.Log.Format) {
	case "text":
		h = slog.NewTextHandler(os.Stdout, opts)
	default:
		h = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(h)
}

func newEcho(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics, table *model.RouteTable) *echo.Echo {
	e := newBaseEcho(logger)

	// Upstream fetches are bounded by upstream.timeout_seconds; the write
	// timeout leaves headroom on top of that.
	e.Server.WriteTimeout = time.Duration(cfg.Upstream.TimeoutSeconds)*time.Second + 10*time.Second

	e.Pre(middleware.StripFragment())
	e.Use(echomw.Recover())
	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(middleware.RequestLogger(logger))
	e.Use(middleware.MetricsMiddleware(m, table.Paths()))
	e.Use(middleware.SecurityHeaders())

	if cfg.Server.RateLimit.Enabled {
		e.Use(middleware.RateLimit(cfg.Server.RateLimit))
		logger.Info("rate limiter enabled", "rps", cfg.Server.RateLimit.RequestsPerSecond)
	}

	return e
}

func newAdminServer(logger *slog.Logger) adminServer {
	e := newBaseEcho(logger)
	e.Server.WriteTimeout = 30 * time.Second
	e.Use(echomw.Recover())
	return adminServer{e}
}

// newBaseEcho applies the settings shared by both listeners.
func newBaseEcho(logger *slog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handler.PlainTextErrorHandler(logger)

	// Inbound timeouts to mitigate slow-client attacks.
	e.Server.ReadTimeout = 30 * time.Second
	e.Server.IdleTimeout = 120 * time.Second
	e.Server.ReadHeaderTimeout = 10 * time.Second
	return e
}

func registerAdminRoutes(admin adminServer, cfg *config.Config, health *handler.HealthHandler, m *metrics.Metrics) {
	if cfg.Admin.Enabled {
		handler.RegisterAdminRoutes(admin.Echo, cfg, health, m)
	}
}

func warnConfigPermissions(cfg *config.Config, logger *slog.Logger) {
	cfg.WarnPermissions(logger)
}

func logRouteTable(table *model.RouteTable, cfg *config.Config, logger *slog.Logger) {
	for _, r := range table.Routes() {
		logger.Info("route",
			"path", r.Path,
			"file", r.File,
			"source", cfg.Upstream.Source(),
		)
	}
}

func startServer(lc fx.Lifecycle, e *echo.Echo, cfg *config.Config, logger *slog.Logger) {
	serve(lc, e, cfg.Server.Addr(), "server", logger)
}

func startAdminServer(lc fx.Lifecycle, admin adminServer, cfg *config.Config, logger *slog.Logger) {
	if !cfg.Admin.Enabled {
		return
	}
	serve(lc, admin.Echo, cfg.Admin.Addr(), "admin server", logger)
}

func serve(lc fx.Lifecycle, e *echo.Echo, addr, name string, logger *slog.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("bind %s: %w", addr, err)
			}
			logger.Info("starting "+name, "addr", addr)
			go func() {
				if err := e.Server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error(name+" error", "err", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("shutting down " + name)
			return e.Shutdown(ctx)
		},
	})
}
