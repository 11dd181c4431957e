package mcp

import (
	"context"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanonone/causalkg/pkg/core"
	"github.com/sanonone/causalkg/pkg/core/types"
	"github.com/sanonone/causalkg/pkg/engine"
)

func newTestEngine(t *testing.T, opts engine.Options) *engine.Engine {
	t.Helper()
	ctx := context.Background()
	db := core.NewDB()
	require.NoError(t, db.AddEdge(ctx, types.Edge{
		Subject:    types.NewEntity("MAPK1"),
		Object:     types.NewEntity("CREB1"),
		Relation:   types.Phosphorylates,
		ObjectMods: []types.ModSite{{Residue: "S", Position: 133}},
	}))
	require.NoError(t, db.AddEdge(ctx, types.Edge{
		Subject:  types.NewEntity("AKT1"),
		Object:   types.NewEntity("BRAF"),
		Relation: types.Phosphorylates,
	}))
	require.NoError(t, db.AddCorrelation(ctx, types.CorrelationRecord{
		Source: types.NewEntity("AKT1"), Target: types.NewEntity("BRAF"), Correlation: 0.761,
	}))
	require.NoError(t, db.AddCorrelation(ctx, types.CorrelationRecord{
		Source: types.NewEntity("AKT1"), Target: types.NewEntity("PTPN1"), Correlation: -0.4,
	}))
	return engine.New(db, opts)
}

func TestFindCausalPath(t *testing.T) {
	svc := NewService(newTestEngine(t, engine.Options{}))
	ctx := context.Background()

	_, res, err := svc.FindCausalPath(ctx, nil, FindCausalPathArgs{Source: "CREB1", Target: "MAPK1"})
	require.NoError(t, err)
	assert.Equal(t, StatusFound, res.Status)
	require.Len(t, res.Paths, 1)
	assert.Equal(t, "MAPK1", res.Paths[0].Subject)
	assert.Equal(t, "MAPK1 phosphorylates CREB1 at S133.\n", res.Description)

	_, res, err = svc.FindCausalPath(ctx, nil, FindCausalPathArgs{Source: "CREB1", Target: "MAPK1", Direction: "forward"})
	require.NoError(t, err)
	assert.Equal(t, StatusNoPathFound, res.Status)
	assert.Empty(t, res.Paths)

	_, _, err = svc.FindCausalPath(ctx, nil, FindCausalPathArgs{Source: "MAPK1"})
	assert.ErrorIs(t, err, engine.ErrMissingArgument)

	_, _, err = svc.FindCausalPath(ctx, nil, FindCausalPathArgs{Source: "A", Target: "B", Direction: "up"})
	assert.Error(t, err)
}

func TestFindTargetAndSource(t *testing.T) {
	svc := NewService(newTestEngine(t, engine.Options{}))
	ctx := context.Background()

	_, res, err := svc.FindTarget(ctx, nil, FindTargetArgs{Source: "AKT1", Type: "phosphorylation"})
	require.NoError(t, err)
	require.Len(t, res.Paths, 1)
	assert.Equal(t, "BRAF", res.Paths[0].Object)

	_, res, err = svc.FindSource(ctx, nil, FindSourceArgs{Target: "CREB1", Type: "Phosphorylation"})
	require.NoError(t, err)
	require.Len(t, res.Paths, 1)
	assert.Equal(t, "MAPK1", res.Paths[0].Subject)

	_, res, err = svc.FindSource(ctx, nil, FindSourceArgs{Target: "CREB1", Type: "inhibit"})
	require.NoError(t, err)
	assert.Equal(t, StatusNoPathFound, res.Status)

	_, _, err = svc.FindTarget(ctx, nil, FindTargetArgs{Source: "AKT1", Type: "glow"})
	assert.ErrorIs(t, err, core.ErrUnknownRelationVerb)
}

func TestNextCorrelatedAndReset(t *testing.T) {
	svc := NewService(newTestEngine(t, engine.Options{ResetScope: engine.ResetScopeExplicit}))
	ctx := context.Background()

	_, res, err := svc.NextCorrelated(ctx, nil, CorrelatedEntityArgs{Source: "AKT1"})
	require.NoError(t, err)
	assert.Equal(t, CorrelationResult{Status: StatusExplainable, Source: "AKT1", Target: "BRAF", Correlation: 0.761, Explainable: true}, res)

	_, res, err = svc.NextCorrelated(ctx, nil, CorrelatedEntityArgs{Source: "AKT1"})
	require.NoError(t, err)
	assert.Equal(t, StatusUnexplainable, res.Status)
	assert.Equal(t, "PTPN1", res.Target)

	_, res, err = svc.NextCorrelated(ctx, nil, CorrelatedEntityArgs{Source: "AKT1"})
	require.NoError(t, err)
	assert.Equal(t, StatusExhausted, res.Status)

	_, _, err = svc.Reset(ctx, nil, ResetArgs{})
	assert.ErrorIs(t, err, engine.ErrResetRequiresSource)

	_, rr, err := svc.Reset(ctx, nil, ResetArgs{Sources: []string{"AKT1"}})
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, rr.Status)

	_, res, err = svc.NextCorrelated(ctx, nil, CorrelatedEntityArgs{Source: "AKT1"})
	require.NoError(t, err)
	assert.Equal(t, "BRAF", res.Target)
}

func TestToolsOverInMemoryTransport(t *testing.T) {
	ctx := context.Background()
	server := NewMCPServer(newTestEngine(t, engine.Options{}))

	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	ss, err := server.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	defer func() {
		_ = cs.Close()
		_ = ss.Wait()
	}()

	tools, err := cs.ListTools(ctx, nil)
	require.NoError(t, err)
	var names []string
	for _, tool := range tools.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{
		"find_causal_path",
		"find_causality_target",
		"find_causality_source",
		"dataset_correlated_entity",
		"reset_causality_indices",
	}, names)

	res, err := cs.CallTool(ctx, &mcp.CallToolParams{
		Name:      "find_causal_path",
		Arguments: map[string]any{"source": "AKT1", "target": "BRAF"},
	})
	require.NoError(t, err)
	assert.False(t, res.IsError)
	out, ok := res.StructuredContent.(map[string]any)
	require.True(t, ok, "structured content: %#v", res.StructuredContent)
	assert.Equal(t, StatusFound, out["status"])

	res, err = cs.CallTool(ctx, &mcp.CallToolParams{
		Name:      "find_causality_target",
		Arguments: map[string]any{"source": "AKT1", "type": "teleport"},
	})
	require.NoError(t, err)
	assert.True(t, res.IsError)
}
