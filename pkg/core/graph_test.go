package core

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanonone/causalkg/pkg/core/types"
)

func edge(subj, rel, obj string, objMods ...types.ModSite) types.Edge {
	r, err := types.ParseRelationType(rel)
	if err != nil {
		panic(err)
	}
	return types.Edge{
		Subject:    types.NewEntity(subj),
		Object:     types.NewEntity(obj),
		Relation:   r,
		ObjectMods: objMods,
	}
}

func corr(src, tgt string, v float64) types.CorrelationRecord {
	return types.CorrelationRecord{Source: types.NewEntity(src), Target: types.NewEntity(tgt), Correlation: v}
}

func TestBidirectionalAdjacency(t *testing.T) {
	ctx := context.Background()
	db := NewDB()

	require.NoError(t, db.AddEdge(ctx, edge("MAPK1", "phosphorylates", "JUND", types.ModSite{Residue: "S", Position: 100})))

	out, err := db.EdgesFrom(ctx, "MAPK1")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "JUND", out[0].Object.ID)
	assert.Equal(t, types.Phosphorylates, out[0].Relation)
	assert.Equal(t, []types.ModSite{{Residue: "S", Position: 100}}, out[0].ObjectMods)

	in, err := db.EdgesTo(ctx, "JUND")
	require.NoError(t, err)
	require.Len(t, in, 1)
	assert.Equal(t, "MAPK1", in[0].Subject.ID)

	none, err := db.EdgesFrom(ctx, "JUND")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestAddEdgeCanonicalizesInverseRelations(t *testing.T) {
	ctx := context.Background()
	db := NewDB()

	inv := types.Edge{
		Subject:     types.NewEntity("BRAF"),
		Object:      types.NewEntity("NRAS"),
		Relation:    types.IsPhosphorylatedBy,
		SubjectMods: []types.ModSite{{Residue: "S", Position: 601}},
	}
	require.NoError(t, db.AddEdge(ctx, inv))

	out, err := db.EdgesFrom(ctx, "NRAS")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, types.Phosphorylates, out[0].Relation)
	assert.Equal(t, "BRAF", out[0].Object.ID)
	assert.Equal(t, []types.ModSite{{Residue: "S", Position: 601}}, out[0].ObjectMods)
	assert.Empty(t, out[0].SubjectMods)
}

func TestAddEdgeDeduplicates(t *testing.T) {
	ctx := context.Background()
	db := NewDB()

	e := edge("A", "modulates", "B")
	require.NoError(t, db.AddEdge(ctx, e))
	require.NoError(t, db.AddEdge(ctx, e))

	out, _ := db.EdgesFrom(ctx, "A")
	in, _ := db.EdgesTo(ctx, "B")
	assert.Len(t, out, 1)
	assert.Len(t, in, 1)
	assert.Equal(t, 1, db.Stats().Edges)
}

func TestInsertEdgeIgnoresProvenance(t *testing.T) {
	ctx := context.Background()
	db := NewDB()

	e := edge("MAPK1", "phosphorylates", "JUND", types.ModSite{Residue: "S", Position: 100})
	e.URI = "https://example.org/a"
	added, err := db.InsertEdge(ctx, e)
	require.NoError(t, err)
	assert.True(t, added)

	again := e
	again.URI = "https://example.org/b"
	added, err = db.InsertEdge(ctx, again)
	require.NoError(t, err)
	assert.False(t, added)

	// The inverse phrasing of the same fact is the same edge.
	inv := edge("JUND", "is-phosphorylated-by", "MAPK1")
	inv.SubjectMods = []types.ModSite{{Residue: "S", Position: 100}}
	added, err = db.InsertEdge(ctx, inv)
	require.NoError(t, err)
	assert.False(t, added)

	out, _ := db.EdgesFrom(ctx, "MAPK1")
	require.Len(t, out, 1)
	assert.Equal(t, "https://example.org/a", out[0].URI)
	assert.Equal(t, 1, db.Stats().Edges)
}

func TestEdgeKey(t *testing.T) {
	a := edge("A", "modulates", "B")
	b := a
	b.URI = "x"
	b.Subject.Site = types.ModSite{Residue: "T", Position: 202}
	b.ObjectMods = []types.ModSite{}
	assert.Equal(t, EdgeKey(a), EdgeKey(b))

	c := edge("A", "modulates", "B", types.ModSite{Residue: "S"})
	assert.NotEqual(t, EdgeKey(a), EdgeKey(c))
	assert.NotEqual(t, EdgeKey(a), EdgeKey(edge("A", "inhibits", "B")))
}

func TestAddEdgeValidation(t *testing.T) {
	ctx := context.Background()
	db := NewDB()

	assert.Error(t, db.AddEdge(ctx, types.Edge{Subject: types.NewEntity("A"), Relation: types.Modulates}))
	assert.Error(t, db.AddEdge(ctx, types.Edge{Subject: types.NewEntity("A"), Object: types.NewEntity("B")}))
}

func TestCorrelationsKeepInsertionOrder(t *testing.T) {
	ctx := context.Background()
	db := NewDB()

	require.NoError(t, db.AddCorrelation(ctx, corr("AKT1", "BRAF", 0.761)))
	require.NoError(t, db.AddCorrelation(ctx, corr("AKT1", "PTPN1", 0.581)))
	require.NoError(t, db.AddCorrelation(ctx, corr("AKT1", "AGPS", 0.949)))

	table, err := db.Correlations(ctx, "AKT1")
	require.NoError(t, err)
	require.Len(t, table, 3)
	assert.Equal(t, []string{"BRAF", "PTPN1", "AGPS"}, targets(table))

	rec, ok, err := db.CorrelationAt(ctx, "AKT1", 2)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "AGPS", rec.Target.ID)
	assert.Equal(t, "AKT1", rec.Source.ID)

	_, ok, err = db.CorrelationAt(ctx, "AKT1", 3)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = db.CorrelationAt(ctx, "UNKNOWN", 0)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRankedCorrelations(t *testing.T) {
	ctx := context.Background()
	db := NewDB(WithRankedCorrelations())

	require.NoError(t, db.AddCorrelation(ctx, corr("S", "A", 0.2)))
	require.NoError(t, db.AddCorrelation(ctx, corr("S", "B", -0.9)))
	require.NoError(t, db.AddCorrelation(ctx, corr("S", "C", 0.5)))
	require.NoError(t, db.AddCorrelation(ctx, corr("S", "D", -0.5)))

	table, err := db.Correlations(ctx, "S")
	require.NoError(t, err)
	// C and D tie on magnitude; C was inserted first.
	assert.Equal(t, []string{"B", "C", "D", "A"}, targets(table))
}

func TestAddCorrelationIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db := NewDB()

	for range 2 {
		require.NoError(t, db.AddCorrelation(ctx, corr("AKT1", "BRAF", 0.761)))
		require.NoError(t, db.AddCorrelation(ctx, corr("AKT1", "PTPN1", 0.581)))
	}
	added, err := db.InsertCorrelation(ctx, corr("AKT1", "BRAF", 0.1))
	require.NoError(t, err)
	assert.False(t, added)

	table, err := db.Correlations(ctx, "AKT1")
	require.NoError(t, err)
	assert.Equal(t, []string{"BRAF", "PTPN1"}, targets(table))
	assert.InDelta(t, 0.761, table[0].Correlation, 1e-9)
	assert.Equal(t, Stats{Sources: 1, Correlations: 2}, db.Stats())

	// The same target under another source is a different record.
	added, err = db.InsertCorrelation(ctx, corr("MAPK1", "BRAF", 0.3))
	require.NoError(t, err)
	assert.True(t, added)
}

func TestAddCorrelationRejectsOutOfRange(t *testing.T) {
	db := NewDB()
	assert.Error(t, db.AddCorrelation(context.Background(), corr("S", "A", 1.5)))
	assert.Error(t, db.AddCorrelation(context.Background(), corr("", "A", 0.5)))
}

func TestSnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := NewDB()
	require.NoError(t, db.AddEdge(ctx, edge("MAPK1", "phosphorylates", "CREB1", types.ModSite{Residue: "S", Position: 133})))
	require.NoError(t, db.AddCorrelation(ctx, corr("AKT1", "BRAF", 0.761)))
	require.NoError(t, db.AddCorrelation(ctx, corr("AKT1", "PTPN1", 0.581)))

	var buf bytes.Buffer
	require.NoError(t, db.SaveSnapshot(&buf))

	restored := NewDB()
	require.NoError(t, restored.LoadFromSnapshot(&buf))

	assert.Equal(t, db.Stats(), restored.Stats())

	in, err := restored.EdgesTo(ctx, "CREB1")
	require.NoError(t, err)
	require.Len(t, in, 1)
	assert.Equal(t, 133, in[0].ObjectMods[0].Position)

	table, err := restored.Correlations(ctx, "AKT1")
	require.NoError(t, err)
	assert.Equal(t, []string{"BRAF", "PTPN1"}, targets(table))

	// New records continue the insertion sequence.
	require.NoError(t, restored.AddCorrelation(ctx, corr("AKT1", "AGPS", 0.949)))
	table, _ = restored.Correlations(ctx, "AKT1")
	assert.Equal(t, []string{"BRAF", "PTPN1", "AGPS"}, targets(table))

	// Replaying records already in the snapshot changes nothing.
	require.NoError(t, restored.AddCorrelation(ctx, corr("AKT1", "BRAF", 0.761)))
	require.NoError(t, restored.AddEdge(ctx, edge("MAPK1", "phosphorylates", "CREB1", types.ModSite{Residue: "S", Position: 133})))
	assert.Equal(t, Stats{Edges: 1, Sources: 1, Correlations: 3}, restored.Stats())
}

func targets(recs []types.CorrelationRecord) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Target.ID
	}
	return out
}
