// Package sqlitestore is a core.Store backed by a single SQLite file.
// It suits datasets too large to replay into memory on every start.
package sqlitestore

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/sanonone/causalkg/pkg/core"
	"github.com/sanonone/causalkg/pkg/core/types"
)

//go:embed schema.sql
var schemaSQL string

// Options configures the store.
type Options struct {
	// RankCorrelations orders correlation tables by descending |correlation|,
	// ties broken by insertion order. Without it, insertion order is used.
	RankCorrelations bool
}

// Store implements core.Store and core.CorrelationSeeker on SQLite.
type Store struct {
	db      *sql.DB
	orderBy string
}

var (
	_ core.Store             = (*Store)(nil)
	_ core.CorrelationSeeker = (*Store)(nil)
)

// Open creates or opens the database at path and applies the schema.
// Use ":memory:" for a throwaway store.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - 5-second busy timeout for lock contention
//   - a single connection, so ":memory:" databases are shared
func Open(path string, opts Options) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	orderBy := "seq ASC"
	if opts.RankCorrelations {
		orderBy = "ABS(correlation) DESC, seq ASC"
	}
	return &Store{db: db, orderBy: orderBy}, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", core.ErrStoreUnavailable, op, err)
}

// AddEdge stores e in active form. An edge with the same core.EdgeKey as a
// stored one is ignored.
func (s *Store) AddEdge(ctx context.Context, e types.Edge) error {
	e = e.Canonical()
	if err := core.ValidateEdge(e); err != nil {
		return err
	}
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal edge: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO edges (subject, object, relation, identity, payload) VALUES (?, ?, ?, ?, ?)`,
		e.Subject.ID, e.Object.ID, e.Relation.String(), core.EdgeKey(e), string(payload))
	if err != nil {
		return unavailable("insert edge", err)
	}
	return nil
}

// AddCorrelation appends r to its source's table. A record for a target the
// source already holds is ignored.
func (s *Store) AddCorrelation(ctx context.Context, r types.CorrelationRecord) error {
	if err := core.ValidateCorrelation(r); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO correlations
			(source, source_residue, source_position, target, target_residue, target_position, correlation)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.Source.ID, r.Source.Site.Residue, r.Source.Site.Position,
		r.Target.ID, r.Target.Site.Residue, r.Target.Site.Position,
		r.Correlation)
	if err != nil {
		return unavailable("insert correlation", err)
	}
	return nil
}

func (s *Store) edges(ctx context.Context, column, id string) ([]types.Edge, error) {
	// column is one of two constants, never user input.
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM edges WHERE `+column+` = ? ORDER BY seq ASC`, id)
	if err != nil {
		return nil, unavailable("query edges", err)
	}
	defer rows.Close()

	var out []types.Edge
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, unavailable("scan edge", err)
		}
		var e types.Edge
		if err := json.Unmarshal([]byte(payload), &e); err != nil {
			return nil, unavailable("decode edge", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate edges", err)
	}
	return out, nil
}

// EdgesFrom implements core.KnowledgeStore.
func (s *Store) EdgesFrom(ctx context.Context, id string) ([]types.Edge, error) {
	return s.edges(ctx, "subject", id)
}

// EdgesTo implements core.KnowledgeStore.
func (s *Store) EdgesTo(ctx context.Context, id string) ([]types.Edge, error) {
	return s.edges(ctx, "object", id)
}

const selectCorrelation = `SELECT source, source_residue, source_position,
	target, target_residue, target_position, correlation
	FROM correlations WHERE source = ?`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCorrelation(row rowScanner) (types.CorrelationRecord, error) {
	var r types.CorrelationRecord
	err := row.Scan(
		&r.Source.ID, &r.Source.Site.Residue, &r.Source.Site.Position,
		&r.Target.ID, &r.Target.Site.Residue, &r.Target.Site.Position,
		&r.Correlation)
	return r, err
}

// Correlations implements core.KnowledgeStore.
func (s *Store) Correlations(ctx context.Context, source string) ([]types.CorrelationRecord, error) {
	rows, err := s.db.QueryContext(ctx, selectCorrelation+` ORDER BY `+s.orderBy, source)
	if err != nil {
		return nil, unavailable("query correlations", err)
	}
	defer rows.Close()

	var out []types.CorrelationRecord
	for rows.Next() {
		r, err := scanCorrelation(rows)
		if err != nil {
			return nil, unavailable("scan correlation", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate correlations", err)
	}
	return out, nil
}

// CorrelationAt implements core.CorrelationSeeker.
func (s *Store) CorrelationAt(ctx context.Context, source string, offset int) (types.CorrelationRecord, bool, error) {
	if offset < 0 {
		return types.CorrelationRecord{}, false, nil
	}
	row := s.db.QueryRowContext(ctx,
		selectCorrelation+` ORDER BY `+s.orderBy+` LIMIT 1 OFFSET ?`, source, offset)
	r, err := scanCorrelation(row)
	if err == sql.ErrNoRows {
		return types.CorrelationRecord{}, false, nil
	}
	if err != nil {
		return types.CorrelationRecord{}, false, unavailable("query correlation", err)
	}
	return r, true, nil
}

// Stats returns table sizes.
func (s *Store) Stats(ctx context.Context) (core.Stats, error) {
	var st core.Stats
	err := s.db.QueryRowContext(ctx, `SELECT
		(SELECT COUNT(*) FROM edges),
		(SELECT COUNT(DISTINCT source) FROM correlations),
		(SELECT COUNT(*) FROM correlations)`).Scan(&st.Edges, &st.Sources, &st.Correlations)
	if err != nil {
		return core.Stats{}, unavailable("stats", err)
	}
	return st, nil
}
