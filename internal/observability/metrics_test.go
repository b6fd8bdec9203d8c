package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/danmuck/apptree/internal/testutil/testlog"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	testlog.Start(t)
	RegisterMetrics()
	RegisterMetrics()

	RecordHTTPRequest("run-a", RouteProbe, "GET", 200, 12*time.Millisecond)
	RecordUpdate("MAIN.App0")
	RecordFailure("MAIN.App1", "start")
}

func TestRecordLaunchTracksRunning(t *testing.T) {
	before := testutil.ToFloat64(appRunning.WithLabelValues("thread"))
	done := RecordLaunch("MAIN.App0", "thread")
	if got := testutil.ToFloat64(appRunning.WithLabelValues("thread")); got != before+1 {
		t.Fatalf("expected running %v, got %v", before+1, got)
	}
	done()
	if got := testutil.ToFloat64(appRunning.WithLabelValues("thread")); got != before {
		t.Fatalf("expected running %v, got %v", before, got)
	}
	if got := testutil.ToFloat64(appLaunches.WithLabelValues("MAIN.App0", "thread")); got < 1 {
		t.Fatalf("expected launch counted, got %v", got)
	}
}

func TestRouteGroup(t *testing.T) {
	cases := map[string]string{
		"/health":     RouteProbe,
		"/ready":      RouteProbe,
		"/metrics":    RouteProbe,
		"/apps":       RouteApps,
		"/apps/:name": RouteApps,
		"/values":     RouteValues,
		"/shutdown":   RouteControl,
		"/debug/vars": RouteOther,
	}
	for path, want := range cases {
		if got := RouteGroup(path); got != want {
			t.Fatalf("RouteGroup(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestStatusRequestsCountsByRouteGroup(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger := testlog.Start(t)
	state := "running"
	r := gin.New()
	r.Use(StatusRequests("run-b", func() string { return state }, logger))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/ready", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/shutdown", func(c *gin.Context) {
		state = "ended"
		c.Status(http.StatusConflict)
	})

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/health", nil),
		httptest.NewRequest(http.MethodGet, "/ready", nil),
		httptest.NewRequest(http.MethodPost, "/shutdown", nil),
	} {
		r.ServeHTTP(httptest.NewRecorder(), req)
	}

	if got := testutil.ToFloat64(httpRequests.WithLabelValues("run-b", RouteProbe, "GET", "200")); got != 2 {
		t.Fatalf("expected 2 probe requests recorded, got %v", got)
	}
	if got := testutil.ToFloat64(httpRequests.WithLabelValues("run-b", RouteControl, "POST", "409")); got != 1 {
		t.Fatalf("expected 1 control request recorded, got %v", got)
	}
}
