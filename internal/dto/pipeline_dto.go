package dto

import (
	"content-pipeline-be/pkg/store"
	"content-pipeline-be/pkg/trace"
)

type ProcessTopicRequest struct {
	Topic string `json:"topic" validate:"required,min=1,max=500"`
	Taste string `json:"taste,omitempty"`
}

type FeedbackRequest struct {
	SessionID string `json:"session_id" validate:"required,uuid4"`
	Approved  *bool  `json:"approved" validate:"required"`
	Feedback  string `json:"feedback,omitempty" validate:"max=2000"`
}

// PipelineResultResponse is the superset payload both endpoints return.
// Iteration is reported 1-based to the caller.
type PipelineResultResponse struct {
	SessionID     string               `json:"session_id"`
	Status        string               `json:"status"`
	Stage         string               `json:"stage"`
	Iteration     int                  `json:"iteration"`
	MaxIterations int                  `json:"max_iterations"`
	Message       string               `json:"message,omitempty"`
	Topic         string               `json:"topic"`
	Taste         string               `json:"taste"`
	Research      string               `json:"research"`
	Citations     []store.Citation     `json:"research_citations"`
	Article       string               `json:"article"`
	Review        string               `json:"review"`
	Illustrations []store.Illustration `json:"illustrations"`
	Visualization *trace.Visualization `json:"visualization,omitempty"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}
