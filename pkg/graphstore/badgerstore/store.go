// Package badgerstore is a core.Store backed by BadgerDB.
//
// Key layout (sep is a 0x00 byte, seq an 8-byte big-endian counter):
//
//	out:<subject><sep><seq>          -> JSON types.Edge
//	in:<object><sep><seq>            -> JSON types.Edge
//	edge:<core.EdgeKey>              -> empty (dedup marker)
//	corr:<source><sep><rank><seq>    -> JSON types.CorrelationRecord
//	pair:<source><sep><target>       -> empty (dedup marker)
//
// rank is zero for insertion order, or the complemented float bits of
// |correlation| when ranking is enabled, so a plain prefix scan yields the
// table in rank order. The ordering mode is fixed at write time: reopen a
// directory with the same RankCorrelations setting it was written with.
package badgerstore

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"

	"github.com/dgraph-io/badger/v4"

	"github.com/sanonone/causalkg/pkg/core"
	"github.com/sanonone/causalkg/pkg/core/types"
)

const (
	prefixOut   = "out:"
	prefixIn    = "in:"
	prefixEdge  = "edge:"
	prefixCorr  = "corr:"
	prefixPair  = "pair:"
	sequenceKey = "meta:seq"

	maxConflictRetries = 3
)

// Config configures the store.
type Config struct {
	// Path is the database directory. Required unless InMemory.
	Path string

	// InMemory keeps everything in RAM; used by tests.
	InMemory bool

	// SyncWrites fsyncs every commit.
	SyncWrites bool

	// RankCorrelations orders correlation tables by descending |correlation|.
	RankCorrelations bool

	// Logger receives BadgerDB's internal logs. Nil silences them.
	Logger *slog.Logger
}

// badgerLogger adapts slog to badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Store implements core.Store and core.CorrelationSeeker on BadgerDB.
type Store struct {
	db     *badger.DB
	seq    *badger.Sequence
	ranked bool
}

var (
	_ core.Store             = (*Store)(nil)
	_ core.CorrelationSeeker = (*Store)(nil)
)

// Open opens or creates the database.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)

	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}

	seq, err := db.GetSequence([]byte(sequenceKey), 256)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("open sequence: %w", err)
	}

	return &Store{db: db, seq: seq, ranked: cfg.RankCorrelations}, nil
}

// Close releases the sequence lease and closes the database.
func (s *Store) Close() error {
	relErr := s.seq.Release()
	if err := s.db.Close(); err != nil {
		return err
	}
	return relErr
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", core.ErrStoreUnavailable, op, err)
}

func entityPrefix(prefix, id string) []byte {
	k := make([]byte, 0, len(prefix)+len(id)+1)
	k = append(k, prefix...)
	k = append(k, id...)
	return append(k, 0)
}

func seqKey(prefix, id string, seq uint64) []byte {
	return binary.BigEndian.AppendUint64(entityPrefix(prefix, id), seq)
}

// rankBits sorts ascending in descending |c|. For non-negative floats the
// IEEE bit pattern is order preserving, so its complement reverses it.
func rankBits(c float64) uint64 {
	return ^math.Float64bits(math.Abs(c))
}

func (s *Store) corrKey(source string, c float64, seq uint64) []byte {
	var rank uint64
	if s.ranked {
		rank = rankBits(c)
	}
	k := binary.BigEndian.AppendUint64(entityPrefix(prefixCorr, source), rank)
	return binary.BigEndian.AppendUint64(k, seq)
}

// exists reports whether key is present in txn's view.
func exists(txn *badger.Txn, key []byte) (bool, error) {
	_, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	return err == nil, err
}

// update runs fn in a read-write transaction, retrying on conflicts.
func (s *Store) update(fn func(txn *badger.Txn) error) error {
	var err error
	for range maxConflictRetries {
		err = s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}

// AddEdge stores e in active form under both endpoints. An edge with the
// same core.EdgeKey as a stored one is ignored.
func (s *Store) AddEdge(_ context.Context, e types.Edge) error {
	e = e.Canonical()
	if err := core.ValidateEdge(e); err != nil {
		return err
	}
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal edge: %w", err)
	}
	seq, err := s.seq.Next()
	if err != nil {
		return unavailable("next sequence", err)
	}

	dedup := []byte(prefixEdge + core.EdgeKey(e))
	err = s.update(func(txn *badger.Txn) error {
		if dup, err := exists(txn, dedup); err != nil || dup {
			return err
		}
		if err := txn.Set(dedup, nil); err != nil {
			return err
		}
		if err := txn.Set(seqKey(prefixOut, e.Subject.ID, seq), payload); err != nil {
			return err
		}
		return txn.Set(seqKey(prefixIn, e.Object.ID, seq), payload)
	})
	if err != nil {
		return unavailable("insert edge", err)
	}
	return nil
}

// AddCorrelation appends r to its source's table. A record for a target the
// source already holds is ignored.
func (s *Store) AddCorrelation(_ context.Context, r types.CorrelationRecord) error {
	if err := core.ValidateCorrelation(r); err != nil {
		return err
	}
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal correlation: %w", err)
	}
	seq, err := s.seq.Next()
	if err != nil {
		return unavailable("next sequence", err)
	}

	dedup := append(entityPrefix(prefixPair, r.Source.ID), r.Target.ID...)
	err = s.update(func(txn *badger.Txn) error {
		if dup, err := exists(txn, dedup); err != nil || dup {
			return err
		}
		if err := txn.Set(dedup, nil); err != nil {
			return err
		}
		return txn.Set(s.corrKey(r.Source.ID, r.Correlation, seq), payload)
	})
	if err != nil {
		return unavailable("insert correlation", err)
	}
	return nil
}

// scan decodes every value under prefix, in key order. visit returns false
// to stop early.
func (s *Store) scan(prefix []byte, visit func(val []byte) (bool, error)) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var cont bool
			err := it.Item().Value(func(val []byte) error {
				var err error
				cont, err = visit(val)
				return err
			})
			if err != nil {
				return err
			}
			if !cont {
				return nil
			}
		}
		return nil
	})
}

func (s *Store) edges(prefix, id string) ([]types.Edge, error) {
	var out []types.Edge
	err := s.scan(entityPrefix(prefix, id), func(val []byte) (bool, error) {
		var e types.Edge
		if err := json.Unmarshal(val, &e); err != nil {
			return false, err
		}
		out = append(out, e)
		return true, nil
	})
	if err != nil {
		return nil, unavailable("scan edges", err)
	}
	return out, nil
}

// EdgesFrom implements core.KnowledgeStore.
func (s *Store) EdgesFrom(_ context.Context, id string) ([]types.Edge, error) {
	return s.edges(prefixOut, id)
}

// EdgesTo implements core.KnowledgeStore.
func (s *Store) EdgesTo(_ context.Context, id string) ([]types.Edge, error) {
	return s.edges(prefixIn, id)
}

// Correlations implements core.KnowledgeStore.
func (s *Store) Correlations(_ context.Context, source string) ([]types.CorrelationRecord, error) {
	var out []types.CorrelationRecord
	err := s.scan(entityPrefix(prefixCorr, source), func(val []byte) (bool, error) {
		var r types.CorrelationRecord
		if err := json.Unmarshal(val, &r); err != nil {
			return false, err
		}
		out = append(out, r)
		return true, nil
	})
	if err != nil {
		return nil, unavailable("scan correlations", err)
	}
	return out, nil
}

// CorrelationAt implements core.CorrelationSeeker. Skipped keys are read
// without their values.
func (s *Store) CorrelationAt(_ context.Context, source string, offset int) (types.CorrelationRecord, bool, error) {
	var (
		rec   types.CorrelationRecord
		found bool
	)
	if offset < 0 {
		return rec, false, nil
	}

	prefix := entityPrefix(prefixCorr, source)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		i := 0
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if i < offset {
				i++
				continue
			}
			found = true
			return it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			})
		}
		return nil
	})
	if err != nil {
		return types.CorrelationRecord{}, false, unavailable("seek correlation", err)
	}
	return rec, found, nil
}

func (s *Store) count(prefix []byte, distinctSources bool) (int, error) {
	n := 0
	var last []byte
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if !distinctSources {
				n++
				continue
			}
			// corr:<source>\x00<16 bytes>
			key := it.Item().Key()
			src := key[:len(key)-16]
			if string(src) != string(last) {
				n++
				last = append(last[:0], src...)
			}
		}
		return nil
	})
	return n, err
}

// Stats returns key counts. It scans the whole keyspace.
func (s *Store) Stats() (core.Stats, error) {
	var (
		st  core.Stats
		err error
	)
	if st.Edges, err = s.count([]byte(prefixEdge), false); err != nil {
		return core.Stats{}, unavailable("stats", err)
	}
	if st.Correlations, err = s.count([]byte(prefixCorr), false); err != nil {
		return core.Stats{}, unavailable("stats", err)
	}
	if st.Sources, err = s.count([]byte(prefixCorr), true); err != nil {
		return core.Stats{}, unavailable("stats", err)
	}
	return st, nil
}
