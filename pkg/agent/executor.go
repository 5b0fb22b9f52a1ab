package agent

import (
	"context"

	"content-pipeline-be/pkg/store"
)

// Run statuses surfaced by executors. Anything other than completed is
// treated as a degraded run by the pipeline, never as a Go error.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Tool describes a capability attached to an agent run.
type Tool struct {
	Type         string `json:"type"`
	ConnectionID string `json:"connection_id,omitempty"`
}

// SearchTool builds the search-grounding tool from a provider connection id.
func SearchTool(connectionID string) Tool {
	return Tool{Type: "search_grounding", ConnectionID: connectionID}
}

// Config is the per-invocation agent definition.
type Config struct {
	Name         string
	Model        string
	Instructions string
	Tools        []Tool
}

// ToolInvocation records one tool call observed during a run.
type ToolInvocation struct {
	Name   string `json:"name"`
	Input  string `json:"input"`
	Output string `json:"output"`
}

// Result is the outcome of one agent run.
type Result struct {
	Text        string
	Status      string // StatusCompleted or the raw provider status
	ErrorDetail string // provider-supplied detail on non-completed runs
	AgentID     string
	Citations   []store.Citation
	Tools       []ToolInvocation
}

// Completed reports whether the run finished successfully.
func (r *Result) Completed() bool {
	return r.Status == StatusCompleted
}

// Executor runs one agent invocation against the remote agent service.
// Implementations block until the run reaches a terminal status; a non-nil
// error means the service itself was unreachable or returned garbage, not
// that the run failed.
type Executor interface {
	Invoke(ctx context.Context, cfg Config, userMessage string) (*Result, error)
}
