package mcp

// --- Tool Arguments ---

type FindCausalPathArgs struct {
	Source    string `json:"source" jsonschema:"The entity acting as the cause (e.g. 'MAPK1')"`
	Target    string `json:"target" jsonschema:"The entity being affected (e.g. 'JUND')"`
	Direction string `json:"direction,omitempty" jsonschema:"Which way to read the relation: 'forward' (source acts on target), 'reverse', or 'either'. Default 'either'"`
}

type FindTargetArgs struct {
	Source string `json:"source" jsonschema:"The causal source entity"`
	Type   string `json:"type" jsonschema:"The mechanism: phosphorylation, dephosphorylation, activate, increase, inhibit, decrease or modulate"`
}

type FindSourceArgs struct {
	Target string `json:"target" jsonschema:"The affected entity"`
	Type   string `json:"type" jsonschema:"The mechanism: phosphorylation, dephosphorylation, activate, increase, inhibit, decrease or modulate"`
}

type CorrelatedEntityArgs struct {
	Source string `json:"source" jsonschema:"The entity whose correlation table to walk"`
}

type ResetArgs struct {
	Sources []string `json:"sources,omitempty" jsonschema:"Entities whose correlation cursor should restart. Empty means every cursor (when allowed)"`
}

// --- Tool Results ---

// Result statuses.
const (
	StatusFound         = "FOUND"
	StatusNoPathFound   = "NO_PATH_FOUND"
	StatusExhausted     = "EXHAUSTED"
	StatusExplainable   = "EXPLAINABLE"
	StatusUnexplainable = "UNEXPLAINABLE"
	StatusSuccess       = "SUCCESS"
)

// PathView is a flattened engine.View with a schema-friendly shape.
type PathView struct {
	Type     string `json:"type"`
	Relation string `json:"relation"`
	Subject  string `json:"subject"`
	Object   string `json:"object"`
	Residue  string `json:"residue,omitempty"`
	Position int    `json:"position,omitempty"`
	URI      string `json:"uri,omitempty"`
}

type PathsResult struct {
	Status      string     `json:"status"`
	Paths       []PathView `json:"paths,omitempty"`
	Description string     `json:"description"` // One sentence per path, for the LLM
}

type CorrelationResult struct {
	Status      string  `json:"status"`
	Source      string  `json:"source,omitempty"`
	Target      string  `json:"target,omitempty"`
	Correlation float64 `json:"correlation,omitempty"`
	Explainable bool    `json:"explainable"`
}

type ResetResult struct {
	Status string `json:"status"`
}
