package engine

import (
	"context"
	"sync"

	"github.com/sanonone/causalkg/pkg/core"
	"github.com/sanonone/causalkg/pkg/core/types"
)

// CursorState maps each source entity to the number of its correlation
// records already served. A source is tracked only while its offset is
// non-zero or an advance holds it; a reset drops the entry. Advances pin the
// entry they work on, so a reset racing an advance retires the pinned entry
// instead of zeroing it underneath the advance, and no record is served twice.
type CursorState struct {
	mu      sync.Mutex
	entries map[string]*cursorEntry
}

type cursorEntry struct {
	mu     sync.Mutex
	offset int
	// pins counts advances holding the entry. Guarded by CursorState.mu.
	pins int
}

// NewCursorState returns an empty state.
func NewCursorState() *CursorState {
	return &CursorState{entries: make(map[string]*cursorEntry)}
}

// acquire returns the entry of source, creating it, and pins it.
func (s *CursorState) acquire(source string) *cursorEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	ent, ok := s.entries[source]
	if !ok {
		ent = &cursorEntry{}
		s.entries[source] = ent
	}
	ent.pins++
	return ent
}

// release unpins ent. The last holder drops an entry still at offset 0:
// it carries no state, which covers unknown and empty sources.
func (s *CursorState) release(source string, ent *cursorEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ent.pins--
	if ent.pins == 0 && ent.offset == 0 && s.entries[source] == ent {
		delete(s.entries, source)
	}
}

// Offset returns the current offset of source (0 if never advanced).
func (s *CursorState) Offset(source string) int {
	s.mu.Lock()
	ent, ok := s.entries[source]
	s.mu.Unlock()
	if !ok {
		return 0
	}
	ent.mu.Lock()
	defer ent.mu.Unlock()
	return ent.offset
}

// Reset puts source back at the start of its table.
func (s *CursorState) Reset(source string) {
	s.mu.Lock()
	delete(s.entries, source)
	s.mu.Unlock()
}

// ResetAll puts every tracked source back at the start.
func (s *CursorState) ResetAll() {
	s.mu.Lock()
	clear(s.entries)
	s.mu.Unlock()
}

// Len returns the number of tracked sources.
func (s *CursorState) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Cursor walks each source's correlation table one record at a time and
// classifies every record against the causal graph.
type Cursor struct {
	store    core.KnowledgeStore
	seeker   core.CorrelationSeeker
	resolver *Resolver
	state    *CursorState
}

// NewCursor builds a cursor over store. A nil state starts empty.
func NewCursor(store core.KnowledgeStore, resolver *Resolver, state *CursorState) *Cursor {
	if state == nil {
		state = NewCursorState()
	}
	c := &Cursor{store: store, resolver: resolver, state: state}
	if s, ok := store.(core.CorrelationSeeker); ok {
		c.seeker = s
	}
	return c
}

// State exposes the offsets, mainly for inspection.
func (c *Cursor) State() *CursorState {
	return c.state
}

func (c *Cursor) recordAt(ctx context.Context, source string, offset int) (types.CorrelationRecord, bool, error) {
	if c.seeker != nil {
		rec, ok, err := c.seeker.CorrelationAt(ctx, source, offset)
		if err != nil {
			return rec, false, storeErr("correlation_at", err)
		}
		return rec, ok, nil
	}

	table, err := c.store.Correlations(ctx, source)
	if err != nil {
		return types.CorrelationRecord{}, false, storeErr("correlations", err)
	}
	if offset >= len(table) {
		return types.CorrelationRecord{}, false, nil
	}
	return table[offset], true, nil
}

// Advance returns the next unseen record of source's table, classified as
// explainable when any edge links source and the record's target in either
// direction. The bool result is false once the table is exhausted; the
// offset then stays put, so further calls keep reporting exhaustion.
//
// Read, classification and offset update form one unit per source. If the
// store fails at any step the offset is left unchanged.
func (c *Cursor) Advance(ctx context.Context, source types.Entity) (types.ExplainedCorrelation, bool, error) {
	ent := c.state.acquire(source.ID)
	defer c.state.release(source.ID, ent)
	ent.mu.Lock()
	defer ent.mu.Unlock()

	rec, ok, err := c.recordAt(ctx, source.ID, ent.offset)
	if err != nil || !ok {
		return types.ExplainedCorrelation{}, false, err
	}

	_, explainable, err := c.resolver.Resolve(ctx, source, rec.Target, types.Either, types.AnyRelation)
	if err != nil {
		return types.ExplainedCorrelation{}, false, err
	}

	ent.offset++
	return types.ExplainedCorrelation{CorrelationRecord: rec, Explainable: explainable}, true, nil
}

// Reset clears the offset of one source.
func (c *Cursor) Reset(source types.Entity) {
	c.state.Reset(source.ID)
}

// ResetAll clears every offset.
func (c *Cursor) ResetAll() {
	c.state.ResetAll()
}
