package core

import (
	"context"
	"errors"

	"github.com/sanonone/causalkg/pkg/core/types"
)

var (
	// ErrStoreUnavailable wraps any failure at the knowledge store boundary.
	// It is never used for "no such relation".
	ErrStoreUnavailable = errors.New("knowledge store unavailable")

	// ErrUnknownRelationVerb is returned when a causal verb has no vocabulary entry.
	ErrUnknownRelationVerb = errors.New("unknown relation verb")
)

// KnowledgeStore is the read boundary the engine queries. Implementations
// must present edges and correlation records in a stable order; the engine
// never re-sorts them.
type KnowledgeStore interface {
	// EdgesFrom returns the edges whose subject is id.
	EdgesFrom(ctx context.Context, id string) ([]types.Edge, error)
	// EdgesTo returns the edges whose object is id.
	EdgesTo(ctx context.Context, id string) ([]types.Edge, error)
	// Correlations returns the full correlation table of source, in rank order.
	// Unknown sources yield an empty table.
	Correlations(ctx context.Context, source string) ([]types.CorrelationRecord, error)
}

// CorrelationSeeker is implemented by stores that can read a single
// correlation record by rank without materializing the table.
type CorrelationSeeker interface {
	CorrelationAt(ctx context.Context, source string, offset int) (types.CorrelationRecord, bool, error)
}

// GraphWriter is the write side used by loaders. Edges are stored in
// active form.
type GraphWriter interface {
	AddEdge(ctx context.Context, e types.Edge) error
	AddCorrelation(ctx context.Context, r types.CorrelationRecord) error
}

// Store is a KnowledgeStore that can also be written to and closed.
type Store interface {
	KnowledgeStore
	GraphWriter
	Close() error
}
