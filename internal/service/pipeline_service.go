package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"content-pipeline-be/internal/constant"
	"content-pipeline-be/internal/dto"
	"content-pipeline-be/internal/mapper"
	"content-pipeline-be/internal/model"
	"content-pipeline-be/internal/pkg/logger"
	"content-pipeline-be/internal/repository/memory"
	"content-pipeline-be/pkg/agent"
	"content-pipeline-be/pkg/illustration"
	"content-pipeline-be/pkg/store"
	"content-pipeline-be/pkg/taste"
	"content-pipeline-be/pkg/trace"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

const (
	researchAgentName = "ResearchAgent"
	writerAgentName   = "WriterAgent"
	reviewerAgentName = "ReviewerAgent"

	researchInstructions = "You are an excellent researcher. Investigate the user's topic with the search tool, verify claims across sources, and summarize the key findings clearly with citations."
	reviewerInstructions = "You are an experienced editor. Review the article carefully for factual accuracy, readability and structural balance. Give concrete, actionable feedback including suggestions for improvement."
)

// AgentSettings carries the provider-level knobs every agent run shares.
type AgentSettings struct {
	Model              string
	SearchConnectionID string
}

// IPipelineService drives sessions through research -> write -> review with
// human approval gates between stages.
type IPipelineService interface {
	ProcessTopic(ctx context.Context, req *dto.ProcessTopicRequest) (*dto.PipelineResultResponse, error)
	HandleFeedback(ctx context.Context, req *dto.FeedbackRequest) (*dto.PipelineResultResponse, error)
}

type pipelineService struct {
	sessionRepo *memory.SessionRepository
	executor    agent.Executor
	settings    AgentSettings
	publisher   message.Publisher
	logger      logger.ILogger
	transcript  logger.ILogger

	// Per-session serialization and per-session tracer instances. Two
	// concurrent continuations on one session must not race on its
	// iteration counter or feedback lists.
	locks   sync.Map // session id -> *sync.Mutex
	tracers sync.Map // session id -> *trace.Tracer
}

func NewPipelineService(
	sessionRepo *memory.SessionRepository,
	executor agent.Executor,
	settings AgentSettings,
	publisher message.Publisher,
	sysLogger logger.ILogger,
	transcript logger.ILogger,
) IPipelineService {
	s := &pipelineService{
		sessionRepo: sessionRepo,
		executor:    executor,
		settings:    settings,
		publisher:   publisher,
		logger:      sysLogger,
		transcript:  transcript,
	}

	// Session locks and tracers live exactly as long as the session they
	// belong to. Without this hook the maps grow by one entry pair per
	// session forever.
	sessionRepo.OnEvicted(func(sessionID string) {
		s.locks.Delete(sessionID)
		s.tracers.Delete(sessionID)
	})

	return s
}

// ProcessTopic creates a fresh session and runs the research stage.
func (s *pipelineService) ProcessTopic(ctx context.Context, req *dto.ProcessTopicRequest) (*dto.PipelineResultResponse, error) {
	tasteKey := req.Taste
	if tasteKey == "" {
		tasteKey = taste.DefaultKey
	}
	if !taste.Known(tasteKey) {
		s.logger.Warn("Pipeline", "Unknown taste key, using default", map[string]interface{}{"taste": tasteKey})
		tasteKey = taste.DefaultKey
	}

	session := s.sessionRepo.Create(req.Topic, tasteKey)

	tracer := trace.NewTracer()
	tracer.StartSession()
	s.tracers.Store(session.ID, tracer)

	mu := s.sessionLock(session.ID)
	mu.Lock()
	defer mu.Unlock()

	s.logger.Info("Pipeline", "Session created", map[string]interface{}{
		"session_id": session.ID,
		"topic":      req.Topic,
		"taste":      tasteKey,
	})

	return s.runStage(ctx, session, tracer)
}

// HandleFeedback applies a human decision to the session, then runs whatever
// stage the decision leads to. The transition table is explicit here; stage
// execution never re-enters the public API.
func (s *pipelineService) HandleFeedback(ctx context.Context, req *dto.FeedbackRequest) (*dto.PipelineResultResponse, error) {
	mu := s.sessionLock(req.SessionID)
	mu.Lock()
	defer mu.Unlock()

	session, found := s.sessionRepo.Get(req.SessionID)
	if !found {
		return nil, ErrSessionNotFound
	}

	// Iteration budget is checked before the decision is applied so a
	// capped session keeps its last stage no matter what the caller sends.
	if session.Iteration >= constant.MaxIterations {
		return s.capSession(session), nil
	}

	tracer := s.tracerFor(session.ID)
	approved := req.Approved != nil && *req.Approved

	if approved {
		switch session.Stage {
		case store.StageResearch:
			// Research approval triggers one automatic write+review
			// cycle without an intermediate gate.
			session.Stage = store.StageWrite
			s.sessionRepo.Save(session)
			return s.continueSession(ctx, session, tracer)

		case store.StageReview:
			session.Status = store.StatusApproved
			session.Stage = store.StageCompleted
			s.sessionRepo.Save(session)
			s.publishEvent(session, model.EventSessionDone)
			s.logger.Info("Pipeline", "Session completed", map[string]interface{}{"session_id": session.ID})
			return mapper.ToPipelineResult(session, s.snapshot(tracer), "Content approved"), nil

		default:
			return nil, fmt.Errorf("%w: cannot approve at stage %q", ErrInvalidStage, session.Stage)
		}
	}

	switch session.Stage {
	case store.StageResearch:
		if req.Feedback != "" {
			session.ResearchFeedbacks = append(session.ResearchFeedbacks, req.Feedback)
		}
		s.sessionRepo.Save(session)
		return s.continueSession(ctx, session, tracer)

	case store.StageReview:
		if req.Feedback != "" {
			session.ReviewFeedbacks = append(session.ReviewFeedbacks, req.Feedback)
		}
		session.Stage = store.StageWrite
		s.sessionRepo.Save(session)
		return s.continueSession(ctx, session, tracer)

	default:
		return nil, fmt.Errorf("%w: cannot reject at stage %q", ErrInvalidStage, session.Stage)
	}
}

// continueSession consumes one iteration and runs the session's current
// stage, or reports the terminal cap when the budget is spent.
func (s *pipelineService) continueSession(ctx context.Context, session *store.Session, tracer *trace.Tracer) (*dto.PipelineResultResponse, error) {
	if session.Iteration >= constant.MaxIterations {
		return s.capSession(session), nil
	}
	session.Iteration++
	s.sessionRepo.Save(session)
	return s.runStage(ctx, session, tracer)
}

func (s *pipelineService) capSession(session *store.Session) *dto.PipelineResultResponse {
	session.Status = store.StatusMaxIterationsReached
	s.sessionRepo.Save(session)
	s.logger.Warn("Pipeline", "Iteration budget exhausted", map[string]interface{}{
		"session_id": session.ID,
		"stage":      session.Stage,
	})
	tracer := s.tracerFor(session.ID)
	return mapper.ToPipelineResult(session, s.snapshot(tracer), "Maximum iterations reached, no further processing")
}

func (s *pipelineService) runStage(ctx context.Context, session *store.Session, tracer *trace.Tracer) (*dto.PipelineResultResponse, error) {
	switch session.Stage {
	case store.StageResearch:
		return s.runResearchStage(ctx, session, tracer)
	case store.StageWrite, store.StageReview:
		return s.runWriteReviewStage(ctx, session, tracer)
	default:
		// Defensive: unknown stage returns without touching the session
		return nil, fmt.Errorf("unknown pipeline stage %q for session %s", session.Stage, session.ID)
	}
}

// --- Research stage ---

func (s *pipelineService) runResearchStage(ctx context.Context, session *store.Session, tracer *trace.Tracer) (*dto.PipelineResultResponse, error) {
	s.publishEvent(session, model.EventStageStarted)

	prompt := s.buildResearchPrompt(session)
	cfg := agent.Config{
		Name:         researchAgentName,
		Model:        s.settings.Model,
		Instructions: researchInstructions,
		Tools:        []agent.Tool{agent.SearchTool(s.settings.SearchConnectionID)},
	}

	text, citations, _, degraded, err := s.invokeAgent(ctx, tracer, cfg, prompt)
	if err != nil {
		return nil, err
	}

	session.ResearchResult = text
	session.ResearchCitations = citations
	session.Status = store.StatusPendingApproval
	s.sessionRepo.Save(session)

	if degraded {
		s.publishEvent(session, model.EventStageDegraded)
	} else {
		s.publishEvent(session, model.EventStageCompleted)
	}

	return mapper.ToPipelineResult(session, s.snapshot(tracer), "Research ready for review"), nil
}

func (s *pipelineService) buildResearchPrompt(session *store.Session) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Research the following topic: %s", session.Topic)
	appendFeedbackHistory(&b, session.ResearchFeedbacks)
	return b.String()
}

// --- Write + review stage ---

func (s *pipelineService) runWriteReviewStage(ctx context.Context, session *store.Session, tracer *trace.Tracer) (*dto.PipelineResultResponse, error) {
	session.Stage = store.StageWrite
	s.publishEvent(session, model.EventStageStarted)

	// 1. Writer
	profile := taste.Resolve(session.Taste)
	writerCfg := agent.Config{
		Name:         writerAgentName,
		Model:        s.settings.Model,
		Instructions: buildWriterInstructions(profile),
	}
	writerPrompt := buildWriterPrompt(session)

	article, _, writerTraceID, writerDegraded, err := s.invokeAgent(ctx, tracer, writerCfg, writerPrompt)
	if err != nil {
		return nil, err
	}
	session.WriteResult = article

	// 2. Illustrations. A failure here keeps the previous list rather than
	// aborting the stage.
	s.refreshIllustrations(session, article)

	// 3. Reviewer
	reviewerCfg := agent.Config{
		Name:         reviewerAgentName,
		Model:        s.settings.Model,
		Instructions: reviewerInstructions,
	}
	review, _, reviewerTraceID, reviewerDegraded, err := s.invokeAgent(ctx, tracer, reviewerCfg, "Review the following article:\n\n"+article)
	if err != nil {
		return nil, err
	}
	session.ReviewResult = review

	tracer.RecordTransition(writerTraceID, reviewerTraceID, "Writer -> Reviewer")

	session.Stage = store.StageReview
	session.Status = store.StatusPendingApproval
	s.sessionRepo.Save(session)

	if writerDegraded || reviewerDegraded {
		s.publishEvent(session, model.EventStageDegraded)
	} else {
		s.publishEvent(session, model.EventStageCompleted)
	}

	return mapper.ToPipelineResult(session, s.snapshot(tracer), "Draft and review ready for approval"), nil
}

func buildWriterPrompt(session *store.Session) string {
	research := session.ResearchResult
	truncated := false
	if utf8.RuneCountInString(research) > constant.ResearchCharLimit {
		research = string([]rune(research)[:constant.ResearchCharLimit])
		truncated = true
	}

	var b strings.Builder
	b.WriteString("Write an engaging article based on the following research:\n\n")
	b.WriteString(research)
	if truncated {
		fmt.Fprintf(&b, "\n\n[Note: research material was truncated to %d characters.]", constant.ResearchCharLimit)
	}
	appendFeedbackHistory(&b, session.ReviewFeedbacks)
	return b.String()
}

func buildWriterInstructions(profile taste.Profile) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are an excellent writer. Draft the article in the %q style: %s\n\n", profile.Name, profile.Description)
	b.WriteString("Structure the article with these sections:\n")
	for i, section := range profile.SectionOutline {
		fmt.Fprintf(&b, "%d. %s\n", i+1, section)
	}
	b.WriteString("\nUse markdown headings (##) for each section.")
	return b.String()
}

func appendFeedbackHistory(b *strings.Builder, feedbacks []string) {
	if len(feedbacks) == 0 {
		return
	}
	b.WriteString("\n\nPrevious rejection feedback:\n")
	for i, fb := range feedbacks {
		fmt.Fprintf(b, "%d. %s\n", i+1, fb)
	}
	b.WriteString("Address every point above in this revision.")
}

// refreshIllustrations replaces the session's illustration list from the new
// article text. Extraction is pure string work, but a panic must not sink
// the whole stage, so it degrades to the stale list.
func (s *pipelineService) refreshIllustrations(session *store.Session, article string) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Pipeline", "Illustration extraction failed, keeping previous list", map[string]interface{}{
				"session_id": session.ID,
				"error":      fmt.Sprint(r),
			})
		}
	}()
	session.Illustrations = illustration.Extract(article, session.Taste)
}

// --- Agent invocation with tracing ---

// invokeAgent runs one agent and records it on the session tracer. A
// transport-level failure is returned as an error; a non-completed run is
// absorbed into a degraded result text and the trace node is marked failed.
func (s *pipelineService) invokeAgent(ctx context.Context, tracer *trace.Tracer, cfg agent.Config, prompt string) (text string, citations []store.Citation, traceID string, degraded bool, err error) {
	traceID = tracer.RecordAgentStart(cfg.Name, "", prompt)
	started := time.Now()

	result, err := s.executor.Invoke(ctx, cfg, prompt)
	if err != nil {
		tracer.RecordAgentComplete(traceID, err.Error(), trace.NodeStatusFailed)
		s.logger.Error("Pipeline", "Agent invocation failed", map[string]interface{}{
			"agent": cfg.Name,
			"error": err.Error(),
		})
		return "", nil, traceID, false, fmt.Errorf("invoke %s: %w", cfg.Name, err)
	}

	if !result.Completed() {
		text = fmt.Sprintf("Agent execution error: %s", result.Status)
		if result.ErrorDetail != "" {
			text += fmt.Sprintf("\nDetails: %s", result.ErrorDetail)
		}
		tracer.RecordAgentComplete(traceID, text, trace.NodeStatusFailed)
		s.logger.Warn("Pipeline", "Agent run degraded", map[string]interface{}{
			"agent":  cfg.Name,
			"status": result.Status,
		})
		degraded = true
	} else {
		text = result.Text
		citations = result.Citations
		tracer.RecordAgentComplete(traceID, text, trace.NodeStatusCompleted)
	}

	for _, tool := range result.Tools {
		tracer.RecordToolUsage(traceID, tool.Name, tool.Input, tool.Output)
	}

	s.transcript.Info("Agent", "Run finished", map[string]interface{}{
		"agent":       cfg.Name,
		"status":      result.Status,
		"prompt_len":  len(prompt),
		"output_len":  len(text),
		"duration_ms": time.Since(started).Milliseconds(),
	})

	return text, citations, traceID, degraded, nil
}

// --- Shared helpers ---

func (s *pipelineService) sessionLock(sessionID string) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(sessionID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// tracerFor returns the session's tracer, creating (and starting) one for
// sessions recovered without it.
func (s *pipelineService) tracerFor(sessionID string) *trace.Tracer {
	if t, ok := s.tracers.Load(sessionID); ok {
		return t.(*trace.Tracer)
	}
	tracer := trace.NewTracer()
	tracer.StartSession()
	actual, _ := s.tracers.LoadOrStore(sessionID, tracer)
	return actual.(*trace.Tracer)
}

func (s *pipelineService) snapshot(tracer *trace.Tracer) *trace.Visualization {
	viz := tracer.Snapshot()
	return &viz
}

func (s *pipelineService) publishEvent(session *store.Session, eventType string) {
	if s.publisher == nil {
		return
	}
	payload, err := json.Marshal(model.PipelineEvent{
		SessionID: session.ID,
		Type:      eventType,
		Stage:     session.Stage,
		Status:    session.Status,
		Iteration: session.Iteration,
		Timestamp: time.Now(),
	})
	if err != nil {
		return
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := s.publisher.Publish(constant.PipelineEventTopic, msg); err != nil {
		s.logger.Warn("Pipeline", "Failed to publish pipeline event", map[string]interface{}{
			"session_id": session.ID,
			"error":      err.Error(),
		})
	}
}
