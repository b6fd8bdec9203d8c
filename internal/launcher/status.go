package launcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/danmuck/apptree/internal/app"
	"github.com/danmuck/apptree/internal/observability"
	"github.com/danmuck/apptree/internal/sharedvalue"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StatusServer exposes the run over HTTP: liveness, the app tree with
// phases, the process-scope values and a shutdown trigger.
type StatusServer struct {
	l       *Launcher
	router  *gin.Engine
	srv     *http.Server
	started time.Time
}

// ValueStatus is one process-scope entry as reported by /values.
type ValueStatus struct {
	Name  string `json:"name"`
	Owner string `json:"owner"`
	Value any    `json:"value,omitempty"`
}

func NewStatusServer(l *Launcher, corsOrigins []string) *StatusServer {
	observability.RegisterMetrics()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.StatusRequests(l.runID, l.State, l.logger))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(corsOrigins),
		AllowMethods: []string{"GET", "POST"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &StatusServer{l: l, router: r, started: time.Now()}
	s.registerRoutes()
	return s
}

func (s *StatusServer) Handler() http.Handler {
	return s.router
}

func (s *StatusServer) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"uptime": time.Since(s.started).String(),
			"run":    s.l.runID,
		})
	})

	s.router.GET("/ready", func(c *gin.Context) {
		ready := s.l.Running()
		code := http.StatusOK
		if !ready {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"ready":  ready,
			"uptime": time.Since(s.started).String(),
			"run":    s.l.runID,
		})
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.router.GET("/apps", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"root": app.Snapshot(s.l.root),
		})
	})

	s.router.GET("/values", func(c *gin.Context) {
		store := s.l.Store()
		if store == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": ErrNotPrepared.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"values": describeValues(store),
		})
	})

	s.router.POST("/shutdown", func(c *gin.Context) {
		if err := s.l.Shutdown(); err != nil {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"shutdown": true})
	})
}

// Start listens on addr and serves in the background.
func (s *StatusServer) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("launcher: status listen %s: %w", addr, err)
	}
	s.srv = &http.Server{Handler: s.router, ReadHeaderTimeout: 5 * time.Second}
	s.l.logger.Info().Str("addr", ln.Addr().String()).Msg("status server listening")
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.l.logger.Error().Err(err).Msg("status server stopped")
		}
	}()
	return nil
}

func (s *StatusServer) Close(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}

func describeValues(store *sharedvalue.LocalStore) []ValueStatus {
	names := store.Names()
	out := make([]ValueStatus, 0, len(names))
	for _, n := range names {
		owner, _ := store.Owner(n)
		vs := ValueStatus{Name: n, Owner: owner}
		if v, err := store.Get("", n); err == nil {
			vs.Value = plainValue(v)
		}
		out = append(out, vs)
	}
	return out
}

// plainValue reads cells and arrays so they can be rendered as JSON.
func plainValue(v any) any {
	switch x := v.(type) {
	case sharedvalue.ValueCell:
		got, err := x.Load()
		if err != nil {
			return nil
		}
		return got
	case sharedvalue.ArrayCell:
		n, err := x.Len()
		if err != nil {
			return nil
		}
		got, err := x.Slice(0, n)
		if err != nil {
			return nil
		}
		return got
	case nil, bool, string, int64, uint64, float64, []any, map[string]any:
		return x
	default:
		return fmt.Sprintf("%T", v)
	}
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
