package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sanonone/causalkg/pkg/engine"
)

// Server holds the HTTP interface and the query engine.
type Server struct {
	Engine *engine.Engine

	router     *gin.Engine
	httpServer *http.Server
	authToken  string
}

// NewServer builds the router around an existing engine. An empty
// authToken disables authentication.
func NewServer(eng *engine.Engine, httpAddr string, authToken string) *Server {
	s := &Server{
		Engine:    eng,
		authToken: authToken,
	}

	// Chain: Recovery -> RequestID -> Logging -> (Auth) -> handlers.
	// Recovery must be outer-most to catch everything.
	r := gin.New()
	r.Use(s.RecoveryMiddleware(), s.RequestIDMiddleware(), s.LoggingMiddleware())

	r.GET("/healthz", s.handleHealthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/v1", s.authMiddleware())
	registerRoutes(v1, s)

	// Legacy alias of /v1/correlations/reset.
	r.POST("/restart", s.authMiddleware(), s.handleReset)

	s.router = r
	s.httpServer = &http.Server{
		Addr:              httpAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func registerRoutes(rg *gin.RouterGroup, s *Server) {
	rg.POST("/causal/path", s.handlePath)
	rg.POST("/causal/targets", s.handleTargets)
	rg.POST("/causal/sources", s.handleSources)
	rg.POST("/correlations/next", s.handleNextCorrelation)
	rg.POST("/correlations/reset", s.handleReset)
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until Shutdown is called.
func (s *Server) Run() error {
	slog.Info("HTTP server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server startup failed: %w", err)
	}
	return nil
}

// Shutdown stops the HTTP server. It does not close the store; the caller
// owns its lifecycle.
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("Starting graceful shutdown of HTTP Server...")

	// The caller's ctx is usually already cancelled; keep only its values.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("HTTP server shutdown error: %w", err)
	}
	return nil
}
