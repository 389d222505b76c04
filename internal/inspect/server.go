// Package inspect serves a read-only HTTP view of a running client.
package inspect

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/amoylab/janus/internal/client"
	"github.com/amoylab/janus/internal/common/cnst"
	"github.com/amoylab/janus/internal/common/config"
	"github.com/amoylab/janus/internal/correlation"
	"github.com/amoylab/janus/internal/registry"
	"github.com/amoylab/janus/internal/tap"
	"github.com/amoylab/janus/pkg/metrics"
)

const defaultDiagnosticsLimit = 50

// Client is what the server reads from. *client.Client implements it.
type Client interface {
	State() client.State
	ConnectionID() string
	Sessions() []registry.Session
	Pending() []correlation.Pending
	Stats() client.Stats
}

// Server exposes health, sessions, pending calls, diagnostics and metrics.
type Server struct {
	logger  *zap.Logger
	cfg     config.InspectConfig
	client  Client
	memory  *tap.MemorySink
	metrics *metrics.Metrics
	engine  *gin.Engine
}

// New builds the server. memory and m may be nil, which disables
// /diagnostics and /metrics respectively.
func New(logger *zap.Logger, cfg config.InspectConfig, c Client, memory *tap.MemorySink, m *metrics.Metrics) *Server {
	s := &Server{
		logger:  logger.Named("inspect"),
		cfg:     cfg,
		client:  c,
		memory:  memory,
		metrics: m,
	}

	engine := gin.New()
	engine.Use(otelgin.Middleware(cnst.TraceInspect))
	engine.Use(s.loggerMiddleware())
	engine.Use(s.recoveryMiddleware())
	engine.Use(m.Middleware())

	engine.GET("/healthz", s.handleHealth)
	engine.GET("/metrics", gin.WrapH(m.Handler()))
	engine.GET("/sessions", s.handleSessions)
	engine.GET("/pending", s.handlePending)
	engine.GET("/diagnostics", s.handleDiagnostics)
	engine.GET("/stats", s.handleStats)
	s.engine = engine
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run listens on the configured address until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("inspect server listening", zap.String("addr", s.cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	<-errCh
	return nil
}

func (s *Server) handleHealth(c *gin.Context) {
	state := s.client.State()
	status := http.StatusOK
	if state != client.StateReady {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{
		"state":         state.String(),
		"connection_id": s.client.ConnectionID(),
	})
}

func (s *Server) handleSessions(c *gin.Context) {
	sessions := s.client.Sessions()
	if sessions == nil {
		sessions = []registry.Session{}
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

func (s *Server) handlePending(c *gin.Context) {
	pending := s.client.Pending()
	out := make([]gin.H, 0, len(pending))
	for _, p := range pending {
		out = append(out, gin.H{
			"id":         p.ID,
			"session_id": p.SessionID,
			"method":     p.Method,
			"age":        time.Since(p.IssuedAt).String(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"pending": out})
}

func (s *Server) handleDiagnostics(c *gin.Context) {
	if s.memory == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "memory diagnostic sink is not enabled"})
		return
	}
	limit := defaultDiagnosticsLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}
	c.JSON(http.StatusOK, gin.H{
		"total":       s.memory.Total(),
		"diagnostics": s.memory.Recent(limit),
	})
}

func (s *Server) handleStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.client.Stats())
}
