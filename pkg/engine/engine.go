// Package engine provides the causal query surface of causalkg.
//
// It combines a Resolver (single-hop path finding and discovery over a
// core.KnowledgeStore) with a Cursor (a per-source iterator over the
// correlation tables that classifies each record as explainable or not).
// Cursor offsets live in the Engine and are never persisted.
//
// Basic usage:
//
//	db := core.NewDB()
//	eng := engine.New(db, engine.Options{})
//	a, found, err := eng.FindPath(ctx, types.NewEntity("MAPK1"), types.NewEntity("JUND"), types.Either)
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/sanonone/causalkg/pkg/core"
	"github.com/sanonone/causalkg/pkg/core/types"
	"github.com/sanonone/causalkg/pkg/metrics"
)

var (
	// ErrMissingArgument is returned when a required entity is empty.
	ErrMissingArgument = errors.New("missing argument")

	// ErrResetRequiresSource is returned by ResetCorrelations when called
	// without sources under ResetScopeExplicit.
	ErrResetRequiresSource = errors.New("reset requires at least one source")
)

// ResetScope decides what a reset without sources does.
type ResetScope uint8

const (
	// ResetScopeAll resets every tracked source.
	ResetScopeAll ResetScope = iota
	// ResetScopeExplicit rejects a reset without sources.
	ResetScopeExplicit
)

// ParseResetScope accepts "all" (or "") and "reject".
func ParseResetScope(s string) (ResetScope, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return ResetScopeAll, nil
	case "reject", "explicit":
		return ResetScopeExplicit, nil
	}
	return ResetScopeAll, fmt.Errorf("unknown reset scope %q", s)
}

func (s ResetScope) String() string {
	if s == ResetScopeExplicit {
		return "reject"
	}
	return "all"
}

// Options configures an Engine.
type Options struct {
	ResetScope ResetScope
}

// Engine is safe for concurrent use. Each Engine owns its cursor state, so
// two engines over the same store iterate independently.
type Engine struct {
	resolver *Resolver
	cursor   *Cursor
	opts     Options
}

// New builds an engine over store.
func New(store core.KnowledgeStore, opts Options) *Engine {
	resolver := NewResolver(store)
	return &Engine{
		resolver: resolver,
		cursor:   NewCursor(store, resolver, NewCursorState()),
		opts:     opts,
	}
}

// Cursor returns the engine's correlation cursor.
func (e *Engine) Cursor() *Cursor { return e.cursor }

func outcome(found bool, err error, miss string) string {
	switch {
	case err != nil:
		return "error"
	case found:
		return "found"
	default:
		return miss
	}
}

// FindPath resolves a single causal edge between source and target.
// The bool result is false when no edge qualifies in the allowed direction(s).
func (e *Engine) FindPath(ctx context.Context, source, target types.Entity, dir types.Direction) (types.CausalAssertion, bool, error) {
	if source.ID == "" || target.ID == "" {
		metrics.QueriesTotal.WithLabelValues("path", "invalid").Inc()
		return types.CausalAssertion{}, false, fmt.Errorf("%w: source and target are required", ErrMissingArgument)
	}

	a, found, err := e.resolver.Resolve(ctx, source, target, dir, types.AnyRelation)
	metrics.QueriesTotal.WithLabelValues("path", outcome(found, err, "not_found")).Inc()
	if err != nil {
		slog.Error("Path query failed", "source", source.ID, "target", target.ID, "error", err)
		return types.CausalAssertion{}, false, err
	}
	if !found {
		slog.Debug("No causal path", "source", source.ID, "target", target.ID, "direction", dir)
	}
	return a, found, nil
}

// FindTargets lists every edge of the mechanism named by verb that starts at
// entity (SourceGiven) or ends at it (TargetGiven). An empty result is a
// normal negative answer. Unknown verbs fail with core.ErrUnknownRelationVerb
// before the store is queried.
func (e *Engine) FindTargets(ctx context.Context, entity types.Entity, verb string, role types.QueryRole) ([]types.CausalAssertion, error) {
	op := "targets"
	if role == types.TargetGiven {
		op = "sources"
	}
	if entity.ID == "" {
		metrics.QueriesTotal.WithLabelValues(op, "invalid").Inc()
		return nil, fmt.Errorf("%w: entity is required", ErrMissingArgument)
	}

	filter, err := core.Normalize(verb, role)
	if err != nil {
		metrics.QueriesTotal.WithLabelValues(op, "invalid").Inc()
		return nil, err
	}

	found, err := e.resolver.Discover(ctx, entity, role, filter)
	metrics.QueriesTotal.WithLabelValues(op, outcome(len(found) > 0, err, "not_found")).Inc()
	if err != nil {
		slog.Error("Discovery query failed", "entity", entity.ID, "verb", verb, "role", role, "error", err)
		return nil, err
	}
	return found, nil
}

// NextCorrelation advances source's cursor. The bool result is false once
// the table is exhausted.
func (e *Engine) NextCorrelation(ctx context.Context, source types.Entity) (types.ExplainedCorrelation, bool, error) {
	if source.ID == "" {
		metrics.QueriesTotal.WithLabelValues("correlation", "invalid").Inc()
		return types.ExplainedCorrelation{}, false, fmt.Errorf("%w: source is required", ErrMissingArgument)
	}

	rec, ok, err := e.cursor.Advance(ctx, source)
	metrics.QueriesTotal.WithLabelValues("correlation", outcome(ok, err, "exhausted")).Inc()
	metrics.CursorSources.Set(float64(e.cursor.State().Len()))
	if err != nil {
		slog.Error("Correlation cursor failed", "source", source.ID, "error", err)
		return types.ExplainedCorrelation{}, false, err
	}
	if ok {
		metrics.CorrelationsServed.WithLabelValues(strconv.FormatBool(rec.Explainable)).Inc()
	}
	return rec, ok, nil
}

// ResetCorrelation restarts the cursor of one source.
func (e *Engine) ResetCorrelation(source types.Entity) {
	e.cursor.Reset(source)
	metrics.CursorResets.WithLabelValues("source").Inc()
	metrics.CursorSources.Set(float64(e.cursor.State().Len()))
	slog.Debug("Correlation cursor reset", "source", source.ID)
}

// ResetAllCorrelations restarts every cursor.
func (e *Engine) ResetAllCorrelations() {
	e.cursor.ResetAll()
	metrics.CursorResets.WithLabelValues("all").Inc()
	metrics.CursorSources.Set(float64(e.cursor.State().Len()))
	slog.Debug("All correlation cursors reset")
}

// ResetCorrelations resets the named sources. With no sources it resets
// everything under ResetScopeAll and fails under ResetScopeExplicit.
func (e *Engine) ResetCorrelations(sources ...string) error {
	if len(sources) == 0 {
		if e.opts.ResetScope == ResetScopeExplicit {
			return ErrResetRequiresSource
		}
		e.ResetAllCorrelations()
		return nil
	}
	for _, s := range sources {
		e.ResetCorrelation(types.NewEntity(s))
	}
	return nil
}
