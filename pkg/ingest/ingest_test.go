package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanonone/causalkg/pkg/core"
	"github.com/sanonone/causalkg/pkg/core/types"
)

const sample = `
edges:
  - subject: MAPK1
    relation: phosphorylates
    object: CREB1
    object_mods:
      - {residue: S, position: 133}
    uri: "uri=http://pathwaycommons.org/pc2/Catalysis_1&"
  - subject: JUND
    relation: is-phosphorylated-by
    object: MAPK1
    subject_mods:
      - {residue: S, position: 100}
correlations:
  - {source: AKT1, target: BRAF, correlation: 0.7610843243760473}
  - {source: AKT1, target: PTPN1, correlation: 0.5813014214767168}
  - {source: AKT1, target: AGPS, correlation: 0.9491655993258454}
`

func TestParseAndApply(t *testing.T) {
	ctx := context.Background()
	ds, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)
	require.Len(t, ds.Edges, 2)
	require.Len(t, ds.Correlations, 3)

	db := core.NewDB()
	res, err := ds.Apply(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, Result{Edges: 2, Correlations: 3}, res)

	out, err := db.EdgesFrom(ctx, "MAPK1")
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "CREB1", out[0].Object.ID)
	assert.Equal(t, "uri=http://pathwaycommons.org/pc2/Catalysis_1&", out[0].URI)
	assert.Equal(t, "JUND", out[1].Object.ID)
	assert.Equal(t, types.Phosphorylates, out[1].Relation)
	assert.Equal(t, []types.ModSite{{Residue: "S", Position: 100}}, out[1].ObjectMods)

	table, err := db.Correlations(ctx, "AKT1")
	require.NoError(t, err)
	require.Len(t, table, 3)
	assert.Equal(t, "AGPS", table[2].Target.ID)
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := Parse(strings.NewReader("edges:\n  - subject: A\n    verb: phosphorylates\n"))
	assert.Error(t, err)
}

func TestParseEmpty(t *testing.T) {
	ds, err := Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, ds.Edges)
}

func TestApplyReportsRow(t *testing.T) {
	ds := &Dataset{Edges: []EdgeRecord{
		{Subject: "A", Relation: "modulates", Object: "B"},
		{Subject: "A", Relation: "activates", Object: "C"},
	}}
	db := core.NewDB()
	res, err := ds.Apply(context.Background(), db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "edges[1]")
	assert.Equal(t, 1, res.Edges)
}

func TestApplyRejectsBadCorrelation(t *testing.T) {
	ds := &Dataset{Correlations: []CorrelationRow{{Source: "A", Target: "B", Correlation: 3}}}
	_, err := ds.Apply(context.Background(), core.NewDB())
	assert.ErrorContains(t, err, "correlations[0]")
}

func TestLoadFiles(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.yaml")
	b := filepath.Join(dir, "b.yaml")
	require.NoError(t, os.WriteFile(a, []byte(sample), 0644))
	require.NoError(t, os.WriteFile(b, []byte("correlations:\n  - {source: MAPK1, target: JUND, correlation: -0.2}\n"), 0644))

	db := core.NewDB()
	res, err := LoadFiles(context.Background(), db, a, b)
	require.NoError(t, err)
	assert.Equal(t, Result{Edges: 2, Correlations: 4}, res)
	assert.Equal(t, 2, db.Stats().Sources)

	_, err = LoadFiles(context.Background(), db, filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
