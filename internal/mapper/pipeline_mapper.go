package mapper

import (
	"content-pipeline-be/internal/constant"
	"content-pipeline-be/internal/dto"
	"content-pipeline-be/pkg/store"
	"content-pipeline-be/pkg/trace"
)

// ToPipelineResult maps a session snapshot plus the tracer graph into the
// response payload. Iteration is converted to the caller-facing 1-based form.
func ToPipelineResult(session *store.Session, viz *trace.Visualization, message string) *dto.PipelineResultResponse {
	citations := session.ResearchCitations
	if citations == nil {
		citations = []store.Citation{}
	}
	illustrations := session.Illustrations
	if illustrations == nil {
		illustrations = []store.Illustration{}
	}

	return &dto.PipelineResultResponse{
		SessionID:     session.ID,
		Status:        session.Status,
		Stage:         session.Stage,
		Iteration:     session.Iteration + 1,
		MaxIterations: constant.MaxIterations,
		Message:       message,
		Topic:         session.Topic,
		Taste:         session.Taste,
		Research:      session.ResearchResult,
		Citations:     citations,
		Article:       session.WriteResult,
		Review:        session.ReviewResult,
		Illustrations: illustrations,
		Visualization: viz,
	}
}
