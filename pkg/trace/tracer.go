package trace

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	NodeKindAgent = "agent"
	NodeKindTool  = "tool"

	NodeStatusRunning   = "running"
	NodeStatusCompleted = "completed"
	NodeStatusFailed    = "failed"
)

// Node is one agent or tool execution in the visualization graph.
type Node struct {
	ID        string  `json:"id"`
	Kind      string  `json:"type"`
	Label     string  `json:"label"`
	Status    string  `json:"status"`
	Timestamp float64 `json:"timestamp"`
	Duration  float64 `json:"duration,omitempty"`
}

// Edge links two nodes: agent-to-agent transition or agent-to-tool usage.
type Edge struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Label string `json:"label"`
	Data  string `json:"data,omitempty"`
}

// Event is one timestamped entry in the raw trace log.
type Event struct {
	ID           string  `json:"id"`
	Type         string  `json:"type"` // agent_start | agent_complete | tool_execution
	AgentName    string  `json:"agent_name,omitempty"`
	AgentID      string  `json:"agent_id,omitempty"`
	ParentID     string  `json:"parent_id,omitempty"`
	ToolName     string  `json:"tool_name,omitempty"`
	Input        string  `json:"input,omitempty"`
	Output       string  `json:"output,omitempty"`
	Status       string  `json:"status,omitempty"`
	Timestamp    float64 `json:"timestamp"`
	RelativeTime float64 `json:"relative_time"`
}

// Visualization is the snapshot payload returned to clients.
type Visualization struct {
	Nodes           []Node  `json:"nodes"`
	Edges           []Edge  `json:"edges"`
	Traces          []Event `json:"traces"`
	SessionDuration float64 `json:"session_duration"`
	TotalAgents     int     `json:"total_agents"`
	TotalTools      int     `json:"total_tools"`
}

// Tracer records agent lifecycle and tool usage for one pipeline session.
// One tracer per session; StartSession resets it, continuation calls on the
// same session keep accumulating. All mutation is append-only apart from
// node status/duration updates.
type Tracer struct {
	mu        sync.Mutex
	startTime time.Time
	started   bool
	nodes     []Node
	edges     []Edge
	traces    []Event
	now       func() time.Time
}

func NewTracer() *Tracer {
	return &Tracer{now: time.Now}
}

// StartSession clears accumulated state and records the session start time.
func (t *Tracer) StartSession() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.startTime = t.now()
	t.started = true
	t.nodes = nil
	t.edges = nil
	t.traces = nil
}

// RecordAgentStart appends a running agent node and returns its trace id.
func (t *Tracer) RecordAgentStart(agentName, agentID, input string) string {
	t.mu.Lock()
	defer t.mu.Unlock()

	traceID := uuid.NewString()
	ts := t.now()

	t.traces = append(t.traces, Event{
		ID:           traceID,
		Type:         "agent_start",
		AgentName:    agentName,
		AgentID:      agentID,
		Input:        input,
		Timestamp:    unix(ts),
		RelativeTime: t.relative(ts),
	})
	t.nodes = append(t.nodes, Node{
		ID:        traceID,
		Kind:      NodeKindAgent,
		Label:     agentName,
		Status:    NodeStatusRunning,
		Timestamp: unix(ts),
	})
	return traceID
}

// RecordAgentComplete closes the matching node, computing its duration from
// the node's own start timestamp.
func (t *Tracer) RecordAgentComplete(traceID, output, status string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ts := t.now()
	t.traces = append(t.traces, Event{
		ID:           traceID,
		Type:         "agent_complete",
		Output:       output,
		Status:       status,
		Timestamp:    unix(ts),
		RelativeTime: t.relative(ts),
	})
	for i := range t.nodes {
		if t.nodes[i].ID == traceID {
			t.nodes[i].Status = status
			t.nodes[i].Duration = unix(ts) - t.nodes[i].Timestamp
			break
		}
	}
}

// RecordTransition appends an agent-to-agent edge.
func (t *Tracer) RecordTransition(fromTraceID, toTraceID, data string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.edges = append(t.edges, Edge{
		From:  fromTraceID,
		To:    toTraceID,
		Label: "transition",
		Data:  data,
	})
}

// RecordToolUsage appends a completed tool node linked to its parent agent.
// Tool execution is not separately timed.
func (t *Tracer) RecordToolUsage(parentTraceID, toolName, input, output string) string {
	t.mu.Lock()
	defer t.mu.Unlock()

	traceID := uuid.NewString()
	ts := t.now()

	t.traces = append(t.traces, Event{
		ID:           traceID,
		Type:         "tool_execution",
		ParentID:     parentTraceID,
		ToolName:     toolName,
		Input:        input,
		Output:       output,
		Timestamp:    unix(ts),
		RelativeTime: t.relative(ts),
	})
	t.nodes = append(t.nodes, Node{
		ID:        traceID,
		Kind:      NodeKindTool,
		Label:     toolName,
		Status:    NodeStatusCompleted,
		Timestamp: unix(ts),
	})
	t.edges = append(t.edges, Edge{
		From:  parentTraceID,
		To:    traceID,
		Label: "uses",
	})
	return traceID
}

// Snapshot returns the visualization payload computed from current state.
func (t *Tracer) Snapshot() Visualization {
	t.mu.Lock()
	defer t.mu.Unlock()

	nodes := make([]Node, len(t.nodes))
	copy(nodes, t.nodes)
	edges := make([]Edge, len(t.edges))
	copy(edges, t.edges)
	traces := make([]Event, len(t.traces))
	copy(traces, t.traces)

	agents, tools := 0, 0
	for _, n := range t.nodes {
		switch n.Kind {
		case NodeKindAgent:
			agents++
		case NodeKindTool:
			tools++
		}
	}

	var duration float64
	if t.started {
		duration = t.now().Sub(t.startTime).Seconds()
	}

	return Visualization{
		Nodes:           nodes,
		Edges:           edges,
		Traces:          traces,
		SessionDuration: duration,
		TotalAgents:     agents,
		TotalTools:      tools,
	}
}

func (t *Tracer) relative(ts time.Time) float64 {
	if !t.started {
		return 0
	}
	return ts.Sub(t.startTime).Seconds()
}

func unix(ts time.Time) float64 {
	return float64(ts.UnixNano()) / float64(time.Second)
}
