package model

import "time"

const (
	EventStageStarted   = "stage_started"
	EventStageCompleted = "stage_completed"
	EventStageDegraded  = "stage_degraded"
	EventSessionDone    = "session_completed"
)

// PipelineEvent is pushed over the event bus and broadcast to websocket
// clients watching pipeline progress.
type PipelineEvent struct {
	SessionID string    `json:"session_id"`
	Type      string    `json:"type"`
	Stage     string    `json:"stage"`
	Status    string    `json:"status"`
	Iteration int       `json:"iteration"`
	Timestamp time.Time `json:"timestamp"`
}
