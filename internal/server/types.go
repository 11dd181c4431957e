package server

import "github.com/sanonone/causalkg/pkg/engine"

// Failure codes returned in ErrorResponse.Code.
const (
	CodeMissingMechanism = "MISSING_MECHANISM"
	CodeNoPathFound      = "NO_PATH_FOUND"
	CodeStoreUnavailable = "STORE_UNAVAILABLE"
	CodeInvalidRequest   = "INVALID_REQUEST"
)

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// PathRequest is the body of POST /v1/causal/path.
type PathRequest struct {
	Source    string `json:"source"`
	Target    string `json:"target"`
	Direction string `json:"direction,omitempty"`
}

// TargetsRequest is the body of POST /v1/causal/targets.
type TargetsRequest struct {
	Source string `json:"source"`
	Type   string `json:"type"`
}

// SourcesRequest is the body of POST /v1/causal/sources.
type SourcesRequest struct {
	Target string `json:"target"`
	Type   string `json:"type"`
}

// PathsResponse carries one or more statement views.
type PathsResponse struct {
	Paths []engine.View `json:"paths"`
}

// CorrelationRequest is the body of POST /v1/correlations/next.
type CorrelationRequest struct {
	Source string `json:"source"`
}

// Correlation statuses.
const (
	StatusExplainable   = "explainable"
	StatusUnexplainable = "unexplainable"
)

// CorrelationResponse is one classified correlation record.
type CorrelationResponse struct {
	Source      string  `json:"source"`
	Target      string  `json:"target"`
	Correlation float64 `json:"correlation"`
	Explainable bool    `json:"explainable"`
	Status      string  `json:"status"`
}

// ResetRequest is the body of POST /v1/correlations/reset. Both fields are
// optional; with neither, the configured reset scope applies.
type ResetRequest struct {
	Source  string   `json:"source,omitempty"`
	Sources []string `json:"sources,omitempty"`
}

// StatusResponse acknowledges a command.
type StatusResponse struct {
	Status string `json:"status"`
}
