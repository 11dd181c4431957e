package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/sanonone/causalkg/pkg/core/types"
	"github.com/sanonone/causalkg/pkg/engine"
)

type Service struct {
	engine *engine.Engine
}

func NewService(eng *engine.Engine) *Service {
	return &Service{engine: eng}
}

// describe renders views as plain sentences, e.g.
// "MAPK1 phosphorylates CREB1 at S133."
func describe(views []engine.View) string {
	var sb strings.Builder
	for _, v := range views {
		sb.WriteString(v.Subject.Name)
		sb.WriteByte(' ')
		sb.WriteString(v.Relation.String())
		sb.WriteByte(' ')
		sb.WriteString(v.Object.Name)
		if v.Residue != "" {
			site := types.ModSite{Residue: v.Residue, Position: v.Position}
			fmt.Fprintf(&sb, " at %s", site)
		}
		sb.WriteString(".\n")
	}
	return sb.String()
}

func pathsResult(views []engine.View, miss string) PathsResult {
	if len(views) == 0 {
		return PathsResult{Status: StatusNoPathFound, Description: miss}
	}
	paths := make([]PathView, len(views))
	for i, v := range views {
		paths[i] = PathView{
			Type:     string(v.Type),
			Relation: v.Relation.String(),
			Subject:  v.Subject.Name,
			Object:   v.Object.Name,
			Residue:  v.Residue,
			Position: v.Position,
			URI:      v.URI,
		}
	}
	return PathsResult{Status: StatusFound, Paths: paths, Description: describe(views)}
}

// --- Tool Handlers ---

func (s *Service) FindCausalPath(ctx context.Context, req *mcp.CallToolRequest, args FindCausalPathArgs) (*mcp.CallToolResult, PathsResult, error) {
	dir, err := types.ParseDirection(args.Direction)
	if err != nil {
		return nil, PathsResult{}, err
	}

	a, found, err := s.engine.FindPath(ctx, types.NewEntity(args.Source), types.NewEntity(args.Target), dir)
	if err != nil {
		return nil, PathsResult{}, err
	}
	if !found {
		return nil, pathsResult(nil, fmt.Sprintf("No causal relation found between %s and %s.", args.Source, args.Target)), nil
	}
	return nil, pathsResult([]engine.View{engine.BuildView(a)}, ""), nil
}

func (s *Service) FindTarget(ctx context.Context, req *mcp.CallToolRequest, args FindTargetArgs) (*mcp.CallToolResult, PathsResult, error) {
	found, err := s.engine.FindTargets(ctx, types.NewEntity(args.Source), args.Type, types.SourceGiven)
	if err != nil {
		return nil, PathsResult{}, err
	}
	return nil, pathsResult(engine.Views(found), fmt.Sprintf("Nothing found that %s affects by %s.", args.Source, args.Type)), nil
}

func (s *Service) FindSource(ctx context.Context, req *mcp.CallToolRequest, args FindSourceArgs) (*mcp.CallToolResult, PathsResult, error) {
	found, err := s.engine.FindTargets(ctx, types.NewEntity(args.Target), args.Type, types.TargetGiven)
	if err != nil {
		return nil, PathsResult{}, err
	}
	return nil, pathsResult(engine.Views(found), fmt.Sprintf("Nothing found that affects %s by %s.", args.Target, args.Type)), nil
}

func (s *Service) NextCorrelated(ctx context.Context, req *mcp.CallToolRequest, args CorrelatedEntityArgs) (*mcp.CallToolResult, CorrelationResult, error) {
	rec, ok, err := s.engine.NextCorrelation(ctx, types.NewEntity(args.Source))
	if err != nil {
		return nil, CorrelationResult{}, err
	}
	if !ok {
		return nil, CorrelationResult{Status: StatusExhausted, Source: args.Source}, nil
	}

	status := StatusUnexplainable
	if rec.Explainable {
		status = StatusExplainable
	}
	return nil, CorrelationResult{
		Status:      status,
		Source:      rec.Source.ID,
		Target:      rec.Target.ID,
		Correlation: rec.Correlation,
		Explainable: rec.Explainable,
	}, nil
}

func (s *Service) Reset(ctx context.Context, req *mcp.CallToolRequest, args ResetArgs) (*mcp.CallToolResult, ResetResult, error) {
	if err := s.engine.ResetCorrelations(args.Sources...); err != nil {
		return nil, ResetResult{}, err
	}
	slog.Debug("MCP reset correlation cursors", "sources", args.Sources)
	return nil, ResetResult{Status: StatusSuccess}, nil
}
