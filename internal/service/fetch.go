// Package service implements the upstream fetch policy behind each route.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"

	"syssetup-proxy/internal/client"
	"syssetup-proxy/internal/config"
	"syssetup-proxy/internal/model"
)

// ErrBodyTooLarge is returned when an upstream file exceeds upstream.max_body_bytes.
var ErrBodyTooLarge = errors.New("upstream body exceeds size limit")

// allowedUpstreamHosts restricts which hosts the proxy will fetch from.
var allowedUpstreamHosts = map[string]bool{
	"raw.githubusercontent.com": true,
}

// UpstreamStatusError reports a non-2xx upstream reply.
type UpstreamStatusError struct {
	File       string
	StatusCode int
}

func (e *UpstreamStatusError) Error() string {
	return fmt.Sprintf("upstream returned %d for %s", e.StatusCode, e.File)
}

// Fetcher is the upstream capability FetchService depends on.
type Fetcher interface {
	Get(ctx context.Context, route model.Route) (*model.UpstreamResponse, error)
}

var _ Fetcher = (*client.UpstreamClient)(nil)

// NewRouteTable resolves model.DefaultRoutes against the configured
// repository and branch. The result is built once and shared read-only.
func NewRouteTable(cfg *config.Config) (*model.RouteTable, error) {
	routes := make([]model.Route, 0, len(model.DefaultRoutes))
	for _, r := range model.DefaultRoutes {
		u, err := cfg.Upstream.FileURL(r.File)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", r.File, err)
		}
		r.UpstreamURL = u
		routes = append(routes, r)
	}
	return model.NewRouteTable(routes...)
}

// FetchService reads a route's upstream file into memory.
type FetchService struct {
	fetcher      Fetcher
	logger       *slog.Logger
	maxBodyBytes int64
}

// NewFetchService creates a FetchService after checking the upstream host
// against the allowlist.
func NewFetchService(c *client.UpstreamClient, cfg *config.Config, logger *slog.Logger) (*FetchService, error) {
	u, err := url.Parse(cfg.Upstream.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse upstream base_url: %w", err)
	}
	if !allowedUpstreamHosts[u.Hostname()] {
		return nil, fmt.Errorf("upstream host %q is not in the allowlist", u.Hostname())
	}
	return newFetchService(c, cfg, logger), nil
}

// NewFetchServiceForTest creates a FetchService without host allowlist validation.
// This is intended only for tests that use httptest servers on localhost.
func NewFetchServiceForTest(f Fetcher, cfg *config.Config, logger *slog.Logger) *FetchService {
	return newFetchService(f, cfg, logger)
}

func newFetchService(f Fetcher, cfg *config.Config, logger *slog.Logger) *FetchService {
	return &FetchService{
		fetcher:      f,
		logger:       logger.With("component", "fetch_service"),
		maxBodyBytes: cfg.Upstream.MaxBodyBytes,
	}
}

// Fetch returns the exact bytes of the route's upstream file.
// Non-2xx replies yield *UpstreamStatusError; bodies over the size limit,
// declared or actual, yield ErrBodyTooLarge.
func (s *FetchService) Fetch(ctx context.Context, route model.Route) ([]byte, error) {
	resp, err := s.fetcher.Get(ctx, route)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", route.File, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &UpstreamStatusError{File: route.File, StatusCode: resp.StatusCode}
	}

	if s.maxBodyBytes > 0 && resp.ContentLength > s.maxBodyBytes {
		return nil, fmt.Errorf("%s declares %d bytes: %w", route.File, resp.ContentLength, ErrBodyTooLarge)
	}

	r := io.Reader(resp.Body)
	if s.maxBodyBytes > 0 {
		r = io.LimitReader(resp.Body, s.maxBodyBytes+1)
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", route.File, err)
	}
	if s.maxBodyBytes > 0 && int64(len(body)) > s.maxBodyBytes {
		return nil, fmt.Errorf("read %s: %w", route.File, ErrBodyTooLarge)
	}

	s.logger.Debug("fetched upstream file",
		"file", route.File,
		"bytes", len(body),
	)
	return body, nil
}
