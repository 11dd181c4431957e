package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/sanonone/causalkg/pkg/core"
	"github.com/sanonone/causalkg/pkg/core/types"
	"github.com/sanonone/causalkg/pkg/metrics"
)

// Resolver answers single-hop causal queries against a KnowledgeStore.
// It holds no state of its own and is safe for concurrent use.
type Resolver struct {
	store core.KnowledgeStore
}

// NewResolver returns a resolver reading from store.
func NewResolver(store core.KnowledgeStore) *Resolver {
	return &Resolver{store: store}
}

// storeErr tags a boundary failure so callers can tell it apart from a
// negative result. Errors already tagged by the backend pass through.
func storeErr(op string, err error) error {
	metrics.StoreErrors.WithLabelValues(op).Inc()
	if errors.Is(err, core.ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", core.ErrStoreUnavailable, op, err)
}

// Resolve looks for an edge linking source and target.
//
// Forward considers edges leaving source, Reverse edges entering it, and
// Either tries forward first and falls back to reverse. Entities match by ID.
// A filter other than AnyRelation restricts the edge's relation family.
// The bool result is false when no qualifying edge exists.
func (r *Resolver) Resolve(ctx context.Context, source, target types.Entity, dir types.Direction, filter types.RelationType) (types.CausalAssertion, bool, error) {
	if dir != types.Reverse {
		edges, err := r.store.EdgesFrom(ctx, source.ID)
		if err != nil {
			return types.CausalAssertion{}, false, storeErr("edges_from", err)
		}
		for _, e := range edges {
			if e.Object.Is(target) && filter.Matches(e.Relation) {
				return types.CausalAssertion{Edge: e, SourceEnd: types.SubjectEnd, Direction: types.Forward}, true, nil
			}
		}
		if dir == types.Forward {
			return types.CausalAssertion{}, false, nil
		}
	}

	edges, err := r.store.EdgesTo(ctx, source.ID)
	if err != nil {
		return types.CausalAssertion{}, false, storeErr("edges_to", err)
	}
	for _, e := range edges {
		if e.Subject.Is(target) && filter.Matches(e.Relation) {
			return types.CausalAssertion{Edge: e, SourceEnd: types.ObjectEnd, Direction: types.Reverse}, true, nil
		}
	}
	return types.CausalAssertion{}, false, nil
}

// Discover enumerates every edge incident to entity whose relation matches
// filter, in store order. With SourceGiven the entity is the causal source
// and outgoing edges are walked; with TargetGiven incoming ones. In both
// cases the returned assertions read subject→object.
func (r *Resolver) Discover(ctx context.Context, entity types.Entity, role types.QueryRole, filter types.RelationType) ([]types.CausalAssertion, error) {
	var (
		edges []types.Edge
		err   error
	)
	if role == types.TargetGiven {
		edges, err = r.store.EdgesTo(ctx, entity.ID)
		if err != nil {
			return nil, storeErr("edges_to", err)
		}
	} else {
		edges, err = r.store.EdgesFrom(ctx, entity.ID)
		if err != nil {
			return nil, storeErr("edges_from", err)
		}
	}

	var out []types.CausalAssertion
	for _, e := range edges {
		if !filter.Matches(e.Relation) {
			continue
		}
		out = append(out, types.CausalAssertion{Edge: e, SourceEnd: types.SubjectEnd, Direction: types.Forward})
	}
	return out, nil
}
