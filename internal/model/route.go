// Package model defines shared types for the proxy.
package model

import (
	"fmt"
	"strings"
)

// Route maps one inbound path to one file in the upstream repository.
type Route struct {
	Path        string
	File        string
	UpstreamURL string
}

// DefaultRoutes lists the served paths and the repository files behind them.
// UpstreamURL is resolved at startup from the upstream configuration.
var DefaultRoutes = []Route{
	{Path: "/", File: "syssetup.sh"},
	{Path: "/flatpaks", File: "flatpaks.txt"},
	{Path: "/packages", File: "packages.txt"},
}

// RouteTable is an immutable path → upstream mapping.
type RouteTable struct {
	routes []Route
	byPath map[string]Route
}

// NewRouteTable validates the given routes and builds a table from them.
// Declaration order is preserved by Routes.
func NewRouteTable(routes ...Route) (*RouteTable, error) {
	t := &RouteTable{
		routes: make([]Route, 0, len(routes)),
		byPath: make(map[string]Route, len(routes)),
	}
	for _, r := range routes {
		if !strings.HasPrefix(r.Path, "/") {
			return nil, fmt.Errorf("route path must start with '/'; got %q", r.Path)
		}
		if r.UpstreamURL == "" {
			return nil, fmt.Errorf("route %q has no upstream URL", r.Path)
		}
		if _, dup := t.byPath[r.Path]; dup {
			return nil, fmt.Errorf("duplicate route path %q", r.Path)
		}
		t.routes = append(t.routes, r)
		t.byPath[r.Path] = r
	}
	return t, nil
}

// Lookup returns the route registered for exactly path.
func (t *RouteTable) Lookup(path string) (Route, bool) {
	r, ok := t.byPath[path]
	return r, ok
}

// Routes returns a copy of the table entries.
func (t *RouteTable) Routes() []Route {
	out := make([]Route, len(t.routes))
	copy(out, t.routes)
	return out
}

// Paths returns the registered paths in declaration order.
func (t *RouteTable) Paths() []string {
	out := make([]string, len(t.routes))
	for i, r := range t.routes {
		out[i] = r.Path
	}
	return out
}
