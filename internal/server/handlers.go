package server

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sanonone/causalkg/pkg/core"
	"github.com/sanonone/causalkg/pkg/core/types"
	"github.com/sanonone/causalkg/pkg/engine"
)

func (s *Server) logger(c *gin.Context, handler string) *slog.Logger {
	return slog.With("request_id", c.GetString(requestIDKey), "handler", handler)
}

func badRequest(c *gin.Context, code, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg, Code: code})
}

func noPath(c *gin.Context, msg string) {
	c.JSON(http.StatusNotFound, ErrorResponse{Error: msg, Code: CodeNoPathFound})
}

// writeEngineError maps engine failures onto failure codes.
func writeEngineError(c *gin.Context, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, engine.ErrMissingArgument), errors.Is(err, core.ErrUnknownRelationVerb):
		badRequest(c, CodeMissingMechanism, err.Error())
	case errors.Is(err, engine.ErrResetRequiresSource):
		badRequest(c, CodeInvalidRequest, err.Error())
	case errors.Is(err, core.ErrStoreUnavailable):
		logger.Error("Knowledge store unavailable", "error", err)
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "knowledge store unavailable", Code: CodeStoreUnavailable})
	default:
		logger.Error("Request failed", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error", Code: "INTERNAL"})
	}
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, StatusResponse{Status: "ok"})
}

// handlePath handles POST /v1/causal/path.
//
// 200: PathsResponse with one view; 400 MISSING_MECHANISM when source or
// target is missing; 404 NO_PATH_FOUND when no edge qualifies.
func (s *Server) handlePath(c *gin.Context) {
	logger := s.logger(c, "handlePath")

	var req PathRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		badRequest(c, CodeInvalidRequest, "invalid request body")
		return
	}
	if req.Source == "" || req.Target == "" {
		badRequest(c, CodeMissingMechanism, "source and target are required")
		return
	}
	dir, err := types.ParseDirection(req.Direction)
	if err != nil {
		badRequest(c, CodeInvalidRequest, err.Error())
		return
	}

	a, found, err := s.Engine.FindPath(c.Request.Context(), types.NewEntity(req.Source), types.NewEntity(req.Target), dir)
	if err != nil {
		writeEngineError(c, logger, err)
		return
	}
	if !found {
		noPath(c, "no causal path found")
		return
	}
	c.JSON(http.StatusOK, PathsResponse{Paths: []engine.View{engine.BuildView(a)}})
}

func (s *Server) discover(c *gin.Context, logger *slog.Logger, entity, verb string, role types.QueryRole) {
	if entity == "" {
		badRequest(c, CodeMissingMechanism, "entity is required")
		return
	}
	found, err := s.Engine.FindTargets(c.Request.Context(), types.NewEntity(entity), verb, role)
	if err != nil {
		writeEngineError(c, logger, err)
		return
	}
	if len(found) == 0 {
		noPath(c, "no causal relation found")
		return
	}
	c.JSON(http.StatusOK, PathsResponse{Paths: engine.Views(found)})
}

// handleTargets handles POST /v1/causal/targets: what does source affect
// through the given mechanism?
func (s *Server) handleTargets(c *gin.Context) {
	logger := s.logger(c, "handleTargets")

	var req TargetsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		badRequest(c, CodeInvalidRequest, "invalid request body")
		return
	}
	s.discover(c, logger, req.Source, req.Type, types.SourceGiven)
}

// handleSources handles POST /v1/causal/sources: what affects target
// through the given mechanism?
func (s *Server) handleSources(c *gin.Context) {
	logger := s.logger(c, "handleSources")

	var req SourcesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		badRequest(c, CodeInvalidRequest, "invalid request body")
		return
	}
	s.discover(c, logger, req.Target, req.Type, types.TargetGiven)
}

// handleNextCorrelation handles POST /v1/correlations/next.
// An exhausted table answers 404 NO_PATH_FOUND.
func (s *Server) handleNextCorrelation(c *gin.Context) {
	logger := s.logger(c, "handleNextCorrelation")

	var req CorrelationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		badRequest(c, CodeInvalidRequest, "invalid request body")
		return
	}

	rec, ok, err := s.Engine.NextCorrelation(c.Request.Context(), types.NewEntity(req.Source))
	if err != nil {
		writeEngineError(c, logger, err)
		return
	}
	if !ok {
		noPath(c, "no more correlated entities")
		return
	}

	status := StatusUnexplainable
	if rec.Explainable {
		status = StatusExplainable
	}
	c.JSON(http.StatusOK, CorrelationResponse{
		Source:      rec.Source.ID,
		Target:      rec.Target.ID,
		Correlation: rec.Correlation,
		Explainable: rec.Explainable,
		Status:      status,
	})
}

// handleReset handles POST /v1/correlations/reset and POST /restart.
// The body is optional.
func (s *Server) handleReset(c *gin.Context) {
	logger := s.logger(c, "handleReset")

	var req ResetRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		logger.Warn("Invalid request body", "error", err)
		badRequest(c, CodeInvalidRequest, "invalid request body")
		return
	}

	sources := req.Sources
	if req.Source != "" {
		sources = append(sources, req.Source)
	}
	if err := s.Engine.ResetCorrelations(sources...); err != nil {
		writeEngineError(c, logger, err)
		return
	}
	logger.Info("Correlation cursors reset", "sources", sources)
	c.JSON(http.StatusOK, StatusResponse{Status: "SUCCESS"})
}
