package constant

const (
	// MaxIterations bounds the human-in-the-loop retry budget per session.
	// Once reached the session is terminal and no further stage work runs.
	MaxIterations = 10

	// ResearchCharLimit caps how much research text is embedded into the
	// writer prompt. Longer results are cut and annotated.
	ResearchCharLimit = 12000
)

const (
	// PipelineEventTopic is the in-process event bus topic for stage
	// progress events consumed by the websocket bridge.
	PipelineEventTopic = "PIPELINE_STAGE_EVENTS"
)
