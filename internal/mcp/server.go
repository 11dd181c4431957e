package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/sanonone/causalkg/pkg/engine"
)

// Version is reported to MCP clients.
const Version = "0.1.0"

func NewMCPServer(eng *engine.Engine) *mcp.Server {
	service := NewService(eng)

	s := mcp.NewServer(&mcp.Implementation{
		Name:    "causalkg",
		Version: Version,
	}, nil)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "find_causal_path",
		Description: "Find a direct causal relation (e.g. phosphorylation) between two entities.",
	}, service.FindCausalPath)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "find_causality_target",
		Description: "List the entities a source affects through a given mechanism.",
	}, service.FindTarget)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "find_causality_source",
		Description: "List the entities that affect a target through a given mechanism.",
	}, service.FindSource)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "dataset_correlated_entity",
		Description: "Return the next entity correlated with source in the dataset, and whether a causal relation explains the correlation. Repeated calls walk the table.",
	}, service.NextCorrelated)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "reset_causality_indices",
		Description: "Restart the correlation walk for the given sources, or for all of them.",
	}, service.Reset)

	return s
}

// ServeStdio runs the tool server over stdin/stdout until ctx is done or
// the client disconnects.
func ServeStdio(ctx context.Context, eng *engine.Engine) error {
	return NewMCPServer(eng).Run(ctx, &mcp.StdioTransport{})
}
