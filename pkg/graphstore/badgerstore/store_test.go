package badgerstore

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanonone/causalkg/pkg/core"
	"github.com/sanonone/causalkg/pkg/core/types"
)

func openInMemory(t *testing.T, ranked bool) *Store {
	t.Helper()
	s, err := Open(Config{InMemory: true, RankCorrelations: ranked})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func addCorr(t *testing.T, s *Store, src, tgt string, v float64) {
	t.Helper()
	require.NoError(t, s.AddCorrelation(context.Background(), types.CorrelationRecord{
		Source: types.NewEntity(src), Target: types.NewEntity(tgt), Correlation: v,
	}))
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(Config{})
	assert.Error(t, err)
}

func TestEdgesAreIndexedBothWays(t *testing.T) {
	ctx := context.Background()
	s := openInMemory(t, false)

	require.NoError(t, s.AddEdge(ctx, types.Edge{
		Subject:    types.NewEntity("MAPK1"),
		Object:     types.NewEntity("JUND"),
		Relation:   types.Phosphorylates,
		ObjectMods: []types.ModSite{{Residue: "S", Position: 100}},
	}))
	require.NoError(t, s.AddEdge(ctx, types.Edge{
		Subject:  types.NewEntity("CREB1"),
		Object:   types.NewEntity("MAPK1"),
		Relation: types.IsPhosphorylatedBy,
	}))
	// Prefix collision guard: "MAPK" must not see MAPK1's edges.
	require.NoError(t, s.AddEdge(ctx, types.Edge{
		Subject:  types.NewEntity("MAPK"),
		Object:   types.NewEntity("X"),
		Relation: types.Modulates,
	}))

	out, err := s.EdgesFrom(ctx, "MAPK1")
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "JUND", out[0].Object.ID)
	assert.Equal(t, "CREB1", out[1].Object.ID)

	in, err := s.EdgesTo(ctx, "CREB1")
	require.NoError(t, err)
	require.Len(t, in, 1)
	assert.Equal(t, types.Phosphorylates, in[0].Relation)

	short, err := s.EdgesFrom(ctx, "MAPK")
	require.NoError(t, err)
	assert.Len(t, short, 1)
}

func TestDuplicateEdgesCollapse(t *testing.T) {
	ctx := context.Background()
	s := openInMemory(t, false)
	e := types.Edge{Subject: types.NewEntity("A"), Object: types.NewEntity("B"), Relation: types.DecreasesAmount}

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.AddEdge(ctx, e))
		}()
	}
	wg.Wait()

	e.URI = "https://example.org/other"
	require.NoError(t, s.AddEdge(ctx, e))

	out, err := s.EdgesFrom(ctx, "A")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Empty(t, out[0].URI)

	st, err := s.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, st.Edges)
}

func TestCorrelationTables(t *testing.T) {
	ctx := context.Background()

	t.Run("insertion order", func(t *testing.T) {
		s := openInMemory(t, false)
		addCorr(t, s, "AKT1", "BRAF", 0.761)
		addCorr(t, s, "AKT1", "PTPN1", 0.581)
		addCorr(t, s, "AKT1", "AGPS", 0.949)
		addCorr(t, s, "AKT", "OTHER", 0.1)

		table, err := s.Correlations(ctx, "AKT1")
		require.NoError(t, err)
		require.Len(t, table, 3)
		assert.Equal(t, "PTPN1", table[1].Target.ID)

		rec, ok, err := s.CorrelationAt(ctx, "AKT1", 2)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "AGPS", rec.Target.ID)

		_, ok, err = s.CorrelationAt(ctx, "AKT1", 3)
		require.NoError(t, err)
		assert.False(t, ok)

		st, err := s.Stats()
		require.NoError(t, err)
		assert.Equal(t, core.Stats{Sources: 2, Correlations: 4}, st)
	})

	t.Run("ranked", func(t *testing.T) {
		s := openInMemory(t, true)
		addCorr(t, s, "S", "A", 0.2)
		addCorr(t, s, "S", "B", -0.9)
		addCorr(t, s, "S", "C", 0.5)
		addCorr(t, s, "S", "D", -0.5)

		table, err := s.Correlations(ctx, "S")
		require.NoError(t, err)
		got := make([]string, len(table))
		for i, r := range table {
			got[i] = r.Target.ID
		}
		assert.Equal(t, []string{"B", "C", "D", "A"}, got)
	})
}

func TestPersistentReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := Open(Config{Path: dir})
	require.NoError(t, err)
	addCorr(t, s, "AKT1", "BRAF", 0.761)
	require.NoError(t, s.Close())

	s, err = Open(Config{Path: dir})
	require.NoError(t, err)
	defer s.Close()
	addCorr(t, s, "AKT1", "PTPN1", 0.581)

	table, err := s.Correlations(ctx, "AKT1")
	require.NoError(t, err)
	require.Len(t, table, 2)
	assert.Equal(t, "BRAF", table[0].Target.ID, "sequence survives reopen")
}

func TestReloadDoesNotDuplicateCorrelations(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	for range 2 {
		s, err := Open(Config{Path: dir})
		require.NoError(t, err)
		addCorr(t, s, "AKT1", "BRAF", 0.761)
		addCorr(t, s, "AKT1", "PTPN1", 0.581)
		require.NoError(t, s.Close())
	}

	s, err := Open(Config{Path: dir})
	require.NoError(t, err)
	defer s.Close()

	table, err := s.Correlations(ctx, "AKT1")
	require.NoError(t, err)
	require.Len(t, table, 2)
	assert.Equal(t, "BRAF", table[0].Target.ID)
	assert.Equal(t, "PTPN1", table[1].Target.ID)

	st, err := s.Stats()
	require.NoError(t, err)
	assert.Equal(t, core.Stats{Sources: 1, Correlations: 2}, st)
}

func TestRankBitsOrdering(t *testing.T) {
	assert.Less(t, rankBits(0.9), rankBits(0.5))
	assert.Equal(t, rankBits(-0.5), rankBits(0.5))
	assert.Less(t, rankBits(1), rankBits(0))
}
