package observability

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Route groups reported for status server requests.
const (
	RouteProbe   = "probe"
	RouteApps    = "apps"
	RouteValues  = "values"
	RouteControl = "control"
	RouteOther   = "other"
)

// RouteGroup maps a status server path onto its route group.
func RouteGroup(path string) string {
	switch {
	case path == "/health", path == "/ready", path == "/metrics":
		return RouteProbe
	case path == "/apps", strings.HasPrefix(path, "/apps/"):
		return RouteApps
	case path == "/values", strings.HasPrefix(path, "/values/"):
		return RouteValues
	case path == "/shutdown":
		return RouteControl
	default:
		return RouteOther
	}
}

// StatusRequests logs and counts each status request of run, tagged with
// its route group and the run state once the handler returns. Probe routes
// log at debug.
func StatusRequests(run string, state func() string, logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		elapsed := time.Since(start)

		status := c.Writer.Status()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		route := RouteGroup(path)
		RecordHTTPRequest(run, route, c.Request.Method, status, elapsed)

		var event *zerolog.Event
		switch {
		case status >= 500:
			event = logger.Error()
		case status >= 400:
			event = logger.Warn()
		case route == RouteProbe:
			event = logger.Debug()
		default:
			event = logger.Info()
		}
		event.
			Str("route", route).
			Str("run_state", state()).
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", status).
			Dur("duration", elapsed).
			Int("bytes", c.Writer.Size()).
			Msg("status.http_request")
	}
}
