// This file implements DB, the in-memory knowledge store. Adjacency lists are
// kept in the KVStore as JSON edge lists, one for outgoing and one for
// incoming edges of each entity. Correlation tables are kept in one B-Tree
// per source entity so a single record can be read by rank.

package core

import (
	"context"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"slices"
	"sync"

	"github.com/tidwall/btree"

	"github.com/sanonone/causalkg/pkg/core/types"
)

// Key format in the KV store:
//
//	rel:<subject_id> -> JSON []types.Edge (outgoing)
//	rev:<object_id>  -> JSON []types.Edge (incoming)
const (
	prefixRel = "rel:"
	prefixRev = "rev:"
)

func relKey(id string) string { return prefixRel + id }
func revKey(id string) string { return prefixRev + id }

// corrItem is one correlation entry in a source's B-Tree.
// Seq is the global insertion order and breaks every tie.
type corrItem struct {
	Seq         uint64
	Target      types.Entity
	Correlation float64
}

func lessBySeq(a, b corrItem) bool { return a.Seq < b.Seq }

func lessByMagnitude(a, b corrItem) bool {
	ma, mb := math.Abs(a.Correlation), math.Abs(b.Correlation)
	if ma != mb {
		return ma > mb
	}
	return a.Seq < b.Seq
}

// DBOption configures a DB.
type DBOption func(*DB)

// WithRankedCorrelations orders every correlation table by descending
// absolute correlation, ties broken by insertion order. Without it the
// tables keep insertion order.
func WithRankedCorrelations() DBOption {
	return func(db *DB) { db.rankCorrelations = true }
}

// DB is the in-memory causal knowledge graph. It implements KnowledgeStore,
// CorrelationSeeker and GraphWriter and is safe for concurrent use.
type DB struct {
	mu               sync.RWMutex
	kv               *KVStore
	correlations     map[string]*btree.BTreeG[corrItem]
	sources          map[string]types.Entity
	pairs            map[string]struct{}
	seq              uint64
	edgeCount        int
	rankCorrelations bool
}

// NewDB creates an empty graph.
func NewDB(opts ...DBOption) *DB {
	db := &DB{
		kv:           NewKVStore(),
		correlations: make(map[string]*btree.BTreeG[corrItem]),
		sources:      make(map[string]types.Entity),
		pairs:        make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(db)
	}
	return db
}

func (db *DB) newTree() *btree.BTreeG[corrItem] {
	if db.rankCorrelations {
		return btree.NewBTreeG[corrItem](lessByMagnitude)
	}
	return btree.NewBTreeG[corrItem](lessBySeq)
}

// ValidateEdge rejects edges the engine could never match.
func ValidateEdge(e types.Edge) error {
	if e.Subject.ID == "" || e.Object.ID == "" {
		return fmt.Errorf("edge %q: subject and object are required", e.String())
	}
	if !e.Relation.Valid() {
		return fmt.Errorf("edge %s-%s: invalid relation", e.Subject.ID, e.Object.ID)
	}
	return nil
}

// ValidateCorrelation rejects records without endpoints or with a value
// outside [-1,1].
func ValidateCorrelation(r types.CorrelationRecord) error {
	if r.Source.ID == "" || r.Target.ID == "" {
		return fmt.Errorf("correlation: source and target are required")
	}
	if math.IsNaN(r.Correlation) || r.Correlation < -1 || r.Correlation > 1 {
		return fmt.Errorf("correlation %s-%s: value %v outside [-1,1]", r.Source.ID, r.Target.ID, r.Correlation)
	}
	return nil
}

type edgeIdentity struct {
	Subject     string          `json:"s"`
	Object      string          `json:"o"`
	Relation    string          `json:"r"`
	SubjectMods []types.ModSite `json:"sm,omitempty"`
	ObjectMods  []types.ModSite `json:"om,omitempty"`
}

// EdgeKey is the identity every store deduplicates edges by: endpoint IDs,
// active relation and mod sites. Provenance URI and entity sites are not
// part of it, so the same fact from two sources is stored once.
func EdgeKey(e types.Edge) string {
	e = e.Canonical()
	// Plain strings and ints cannot fail to marshal.
	b, _ := json.Marshal(edgeIdentity{
		Subject:     e.Subject.ID,
		Object:      e.Object.ID,
		Relation:    e.Relation.String(),
		SubjectMods: e.SubjectMods,
		ObjectMods:  e.ObjectMods,
	})
	return string(b)
}

// CorrelationKey is the identity of a correlation record. A source holds at
// most one record per target; the first one written wins.
func CorrelationKey(r types.CorrelationRecord) string {
	return pairKey(r.Source.ID, r.Target.ID)
}

func pairKey(source, target string) string { return source + "\x00" + target }

func appendEdge(key string, kv *KVStore, e types.Edge) (added bool, err error) {
	id := EdgeKey(e)
	err = kv.Update(key, func(old []byte, found bool) ([]byte, error) {
		var edges []types.Edge
		if found {
			if err := json.Unmarshal(old, &edges); err != nil {
				return nil, fmt.Errorf("corrupt adjacency list %q: %w", key, err)
			}
		}
		if slices.ContainsFunc(edges, func(x types.Edge) bool { return EdgeKey(x) == id }) {
			return old, nil
		}
		added = true
		return json.Marshal(append(edges, e))
	})
	return added, err
}

// InsertEdge stores e in active form under both of its endpoints and
// reports whether it was new. An edge with the same EdgeKey is a no-op.
func (db *DB) InsertEdge(_ context.Context, e types.Edge) (bool, error) {
	e = e.Canonical()
	if err := ValidateEdge(e); err != nil {
		return false, err
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	added, err := appendEdge(relKey(e.Subject.ID), db.kv, e)
	if err != nil || !added {
		return false, err
	}
	if _, err := appendEdge(revKey(e.Object.ID), db.kv, e); err != nil {
		return false, fmt.Errorf("failed to index incoming edge: %w", err)
	}
	db.edgeCount++
	return true, nil
}

// AddEdge implements GraphWriter.
func (db *DB) AddEdge(ctx context.Context, e types.Edge) error {
	_, err := db.InsertEdge(ctx, e)
	return err
}

// InsertCorrelation appends r to its source's correlation table and reports
// whether it was new. A second record for the same (source, target) pair is
// a no-op.
func (db *DB) InsertCorrelation(_ context.Context, r types.CorrelationRecord) (bool, error) {
	if err := ValidateCorrelation(r); err != nil {
		return false, err
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	key := CorrelationKey(r)
	if _, dup := db.pairs[key]; dup {
		return false, nil
	}
	tree, ok := db.correlations[r.Source.ID]
	if !ok {
		tree = db.newTree()
		db.correlations[r.Source.ID] = tree
		db.sources[r.Source.ID] = r.Source
	}
	db.seq++
	tree.Set(corrItem{Seq: db.seq, Target: r.Target, Correlation: r.Correlation})
	db.pairs[key] = struct{}{}
	return true, nil
}

// AddCorrelation implements GraphWriter.
func (db *DB) AddCorrelation(ctx context.Context, r types.CorrelationRecord) error {
	_, err := db.InsertCorrelation(ctx, r)
	return err
}

func (db *DB) edges(key string) ([]types.Edge, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	val, found := db.kv.Get(key)
	if !found {
		return nil, nil
	}
	var edges []types.Edge
	if err := json.Unmarshal(val, &edges); err != nil {
		return nil, fmt.Errorf("%w: corrupt adjacency list %q: %v", ErrStoreUnavailable, key, err)
	}
	return edges, nil
}

// EdgesFrom returns the outgoing edges of id in insertion order.
func (db *DB) EdgesFrom(_ context.Context, id string) ([]types.Edge, error) {
	return db.edges(relKey(id))
}

// EdgesTo returns the incoming edges of id in insertion order.
func (db *DB) EdgesTo(_ context.Context, id string) ([]types.Edge, error) {
	return db.edges(revKey(id))
}

func (db *DB) record(source string, it corrItem) types.CorrelationRecord {
	return types.CorrelationRecord{
		Source:      db.sources[source],
		Target:      it.Target,
		Correlation: it.Correlation,
	}
}

// Correlations returns the whole correlation table of source.
func (db *DB) Correlations(_ context.Context, source string) ([]types.CorrelationRecord, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	tree, ok := db.correlations[source]
	if !ok {
		return nil, nil
	}
	out := make([]types.CorrelationRecord, 0, tree.Len())
	tree.Scan(func(it corrItem) bool {
		out = append(out, db.record(source, it))
		return true
	})
	return out, nil
}

// CorrelationAt returns the record at rank offset of source's table.
func (db *DB) CorrelationAt(_ context.Context, source string, offset int) (types.CorrelationRecord, bool, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	tree, ok := db.correlations[source]
	if !ok || offset < 0 || offset >= tree.Len() {
		return types.CorrelationRecord{}, false, nil
	}
	it, ok := tree.GetAt(offset)
	if !ok {
		return types.CorrelationRecord{}, false, nil
	}
	return db.record(source, it), true, nil
}

// Stats is a point-in-time size summary.
type Stats struct {
	Edges        int `json:"edges"`
	Sources      int `json:"correlation_sources"`
	Correlations int `json:"correlations"`
}

// Stats returns the current sizes.
func (db *DB) Stats() Stats {
	db.mu.RLock()
	defer db.mu.RUnlock()

	st := Stats{Edges: db.edgeCount, Sources: len(db.correlations)}
	for _, tree := range db.correlations {
		st.Correlations += tree.Len()
	}
	return st
}

// Close is a no-op; it lets DB satisfy Store.
func (db *DB) Close() error { return nil }

// --- SNAPSHOTTING ---

// Snapshot is the complete serializable state of the graph.
type Snapshot struct {
	KVData       map[string][]byte
	Correlations map[string][]corrItem
	Sources      map[string]types.Entity
	Seq          uint64
	EdgeCount    int
}

// SaveSnapshot writes the current state to w using gob encoding.
func (db *DB) SaveSnapshot(w io.Writer) error {
	db.mu.RLock()
	snap := Snapshot{
		KVData:       db.kv.Snapshot(),
		Correlations: make(map[string][]corrItem, len(db.correlations)),
		Sources:      make(map[string]types.Entity, len(db.sources)),
		Seq:          db.seq,
		EdgeCount:    db.edgeCount,
	}
	for src, tree := range db.correlations {
		items := make([]corrItem, 0, tree.Len())
		tree.Scan(func(it corrItem) bool {
			items = append(items, it)
			return true
		})
		snap.Correlations[src] = items
	}
	for k, v := range db.sources {
		snap.Sources[k] = v
	}
	db.mu.RUnlock()

	if err := gob.NewEncoder(w).Encode(&snap); err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return nil
}

// LoadFromSnapshot replaces the current state with the snapshot read from r.
// Correlation tables are re-indexed with this DB's ordering.
func (db *DB) LoadFromSnapshot(r io.Reader) error {
	var snap Snapshot
	if err := gob.NewDecoder(r).Decode(&snap); err != nil {
		return fmt.Errorf("failed to decode snapshot: %w", err)
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	db.kv.Restore(snap.KVData)
	db.correlations = make(map[string]*btree.BTreeG[corrItem], len(snap.Correlations))
	db.pairs = make(map[string]struct{})
	for src, items := range snap.Correlations {
		tree := db.newTree()
		for _, it := range items {
			tree.Set(it)
			db.pairs[pairKey(src, it.Target.ID)] = struct{}{}
		}
		db.correlations[src] = tree
	}
	db.sources = snap.Sources
	if db.sources == nil {
		db.sources = make(map[string]types.Entity)
	}
	db.seq = snap.Seq
	db.edgeCount = snap.EdgeCount
	return nil
}
