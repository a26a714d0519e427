package middleware

import (
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"
)

// StripFragment returns an Echo pre-router middleware that drops a "#..."
// fragment sent in the request target, so "/flatpaks#x" routes as "/flatpaks".
// An escaped "%23" in the path is left alone.
func StripFragment() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			// A literal '#' only survives in RawPath; an empty RawPath means
			// any '#' in Path was sent escaped.
			u := c.Request().URL
			if raw, _, found := strings.Cut(u.RawPath, "#"); found {
				if p, err := url.PathUnescape(raw); err == nil {
					u.Path = p
					u.RawPath = raw
				}
			}
			return next(c)
		}
	}
}
