// Package graphstore makes the in-memory knowledge graph durable.
//
// It pairs a core.DB with an append-only log and periodic gob snapshots:
// every write goes to memory and to the log, and on startup the latest
// snapshot is loaded and the log replayed on top of it.
//
// Basic usage:
//
//	st, err := graphstore.Open(graphstore.DefaultOptions("./data"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer st.Close()
package graphstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sanonone/causalkg/pkg/core"
	"github.com/sanonone/causalkg/pkg/core/types"
	"github.com/sanonone/causalkg/pkg/metrics"
	"github.com/sanonone/causalkg/pkg/persistence"
)

// Options configures the durable store.
type Options struct {
	// DataDir holds the log and the snapshot. Created if missing.
	DataDir string

	// LogFilename is the name of the append-only log (default "causalkg.aof").
	// The snapshot is stored next to it with a .snap extension.
	LogFilename string

	// RankCorrelations orders correlation tables by descending |correlation|
	// instead of insertion order.
	RankCorrelations bool

	// AutoSaveInterval and AutoSaveThreshold drive background snapshots:
	// a snapshot is taken when at least AutoSaveThreshold writes happened
	// and AutoSaveInterval elapsed since the last one. Zero disables either.
	AutoSaveInterval  time.Duration
	AutoSaveThreshold int64
}

// DefaultOptions returns the standard configuration for dataDir.
func DefaultOptions(dataDir string) Options {
	return Options{
		DataDir:           dataDir,
		LogFilename:       "causalkg.aof",
		AutoSaveInterval:  60 * time.Second,
		AutoSaveThreshold: 1000,
	}
}

// Store is a core.Store backed by a snapshot plus append-only log.
type Store struct {
	// DB is the in-memory graph. Writes made directly on it are not persisted.
	DB *core.DB

	log      *persistence.AOFWriter
	opts     Options
	logPath  string
	snapPath string

	dirtyCounter int64
	lastSaveTime time.Time

	// Serializes snapshot against writes so no record is lost between the
	// snapshot and the log truncation.
	adminMu sync.RWMutex

	closed    chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

var _ core.Store = (*Store)(nil)

// Open loads the snapshot (if any), replays the log and starts the
// background snapshot loop.
func Open(opts Options) (*Store, error) {
	if opts.DataDir == "" {
		return nil, fmt.Errorf("graphstore: data directory is required")
	}
	if opts.LogFilename == "" {
		opts.LogFilename = "causalkg.aof"
	}
	if err := os.MkdirAll(opts.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	logPath := filepath.Join(opts.DataDir, opts.LogFilename)
	snapPath := strings.TrimSuffix(logPath, filepath.Ext(logPath)) + ".snap"

	var dbOpts []core.DBOption
	if opts.RankCorrelations {
		dbOpts = append(dbOpts, core.WithRankedCorrelations())
	}

	s := &Store{
		DB:           core.NewDB(dbOpts...),
		opts:         opts,
		logPath:      logPath,
		snapPath:     snapPath,
		lastSaveTime: time.Now(),
		closed:       make(chan struct{}),
	}

	if err := s.loadSnapshot(); err != nil {
		return nil, err
	}

	n, err := s.replayLog()
	if err != nil {
		return nil, fmt.Errorf("failed to replay log: %w", err)
	}

	w, err := persistence.NewAOFWriter(logPath)
	if err != nil {
		return nil, err
	}
	s.log = w
	s.reportLogSize()

	st := s.DB.Stats()
	slog.Info("Graph store opened",
		"log", w.Path(),
		"replayed", n,
		"edges", st.Edges,
		"correlations", st.Correlations)

	if opts.AutoSaveInterval > 0 && opts.AutoSaveThreshold > 0 {
		s.wg.Add(1)
		go s.backgroundTasks()
	}
	return s, nil
}

func (s *Store) loadSnapshot() error {
	f, err := os.Open(s.snapPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer f.Close()

	if err := s.DB.LoadFromSnapshot(f); err != nil {
		return fmt.Errorf("failed to load snapshot: %w", err)
	}
	return nil
}

func (s *Store) replayLog() (int, error) {
	f, err := os.Open(s.logPath)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	defer f.Close()

	ctx := context.Background()
	return persistence.Replay(f, func(op persistence.OpCode, payload []byte) error {
		switch op {
		case persistence.OpEdge:
			var e types.Edge
			if err := json.Unmarshal(payload, &e); err != nil {
				return err
			}
			return s.DB.AddEdge(ctx, e)
		case persistence.OpCorrelation:
			var r types.CorrelationRecord
			if err := json.Unmarshal(payload, &r); err != nil {
				return err
			}
			return s.DB.AddCorrelation(ctx, r)
		default:
			return fmt.Errorf("unknown opcode 0x%02x", byte(op))
		}
	})
}

// append persists one record after it was applied in memory.
func (s *Store) append(op persistence.OpCode, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := s.log.Append(op, payload); err != nil {
		return fmt.Errorf("CRITICAL: persistence failed (data in RAM only): %w", err)
	}
	if err := s.log.Flush(); err != nil {
		return fmt.Errorf("CRITICAL: persistence flush failed: %w", err)
	}
	atomic.AddInt64(&s.dirtyCounter, 1)
	return nil
}

// AddEdge stores e and logs it. The edge is validated by the in-memory graph
// first so the log never holds a record replay would reject. Duplicates are
// not logged.
func (s *Store) AddEdge(ctx context.Context, e types.Edge) error {
	s.adminMu.RLock()
	defer s.adminMu.RUnlock()

	added, err := s.DB.InsertEdge(ctx, e)
	if err != nil || !added {
		return err
	}
	return s.append(persistence.OpEdge, e.Canonical())
}

// AddCorrelation stores r and logs it. Duplicates are not logged.
func (s *Store) AddCorrelation(ctx context.Context, r types.CorrelationRecord) error {
	s.adminMu.RLock()
	defer s.adminMu.RUnlock()

	added, err := s.DB.InsertCorrelation(ctx, r)
	if err != nil || !added {
		return err
	}
	return s.append(persistence.OpCorrelation, r)
}

// EdgesFrom implements core.KnowledgeStore.
func (s *Store) EdgesFrom(ctx context.Context, id string) ([]types.Edge, error) {
	return s.DB.EdgesFrom(ctx, id)
}

// EdgesTo implements core.KnowledgeStore.
func (s *Store) EdgesTo(ctx context.Context, id string) ([]types.Edge, error) {
	return s.DB.EdgesTo(ctx, id)
}

// Correlations implements core.KnowledgeStore.
func (s *Store) Correlations(ctx context.Context, source string) ([]types.CorrelationRecord, error) {
	return s.DB.Correlations(ctx, source)
}

// CorrelationAt implements core.CorrelationSeeker.
func (s *Store) CorrelationAt(ctx context.Context, source string, offset int) (types.CorrelationRecord, bool, error) {
	return s.DB.CorrelationAt(ctx, source, offset)
}

// Stats returns the sizes of the in-memory graph.
func (s *Store) Stats() core.Stats {
	return s.DB.Stats()
}

// LogSize returns the number of bytes flushed to the log since the last
// snapshot.
func (s *Store) LogSize() (int64, error) {
	return s.log.Size()
}

func (s *Store) reportLogSize() {
	n, err := s.LogSize()
	if err != nil {
		slog.Warn("Could not stat log", "log", s.log.Path(), "error", err)
		return
	}
	metrics.LogBytes.Set(float64(n))
}

// SaveSnapshot writes a snapshot and truncates the log.
func (s *Store) SaveSnapshot() error {
	s.adminMu.Lock()
	defer s.adminMu.Unlock()

	tempSnap := s.snapPath + ".tmp"
	f, err := os.Create(tempSnap)
	if err != nil {
		return err
	}
	if err := s.DB.SaveSnapshot(f); err != nil {
		f.Close()
		os.Remove(tempSnap)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	f.Close()

	if err := os.Rename(tempSnap, s.snapPath); err != nil {
		return err
	}
	if err := s.log.Truncate(); err != nil {
		return err
	}

	atomic.StoreInt64(&s.dirtyCounter, 0)
	s.lastSaveTime = time.Now()
	metrics.LogBytes.Set(0)
	return nil
}

// Close stops background tasks and closes the log. It does not force a
// snapshot; everything written is already in the log.
func (s *Store) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closed)
		s.wg.Wait()
		if s.log != nil {
			err = s.log.Close()
		}
	})
	return err
}

func (s *Store) backgroundTasks() {
	defer s.wg.Done()
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-s.closed:
			return
		case <-ticker.C:
			s.checkMaintenance()
		}
	}
}

func (s *Store) checkMaintenance() {
	s.reportLogSize()

	dirty := atomic.LoadInt64(&s.dirtyCounter)
	s.adminMu.RLock()
	last := s.lastSaveTime
	s.adminMu.RUnlock()

	if dirty >= s.opts.AutoSaveThreshold && time.Since(last) >= s.opts.AutoSaveInterval {
		if err := s.SaveSnapshot(); err != nil {
			slog.Error("Background snapshot failed", "snapshot", s.snapPath, "error", err)
		}
	}
}
