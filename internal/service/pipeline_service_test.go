package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"content-pipeline-be/internal/constant"
	"content-pipeline-be/internal/dto"
	"content-pipeline-be/internal/repository/memory"
	"content-pipeline-be/pkg/agent"
	"content-pipeline-be/pkg/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Test doubles ---

type stubInvocation struct {
	Config agent.Config
	Prompt string
}

type stubExecutor struct {
	mu          sync.Mutex
	invocations []stubInvocation
	respond     func(cfg agent.Config, prompt string) *agent.Result
}

func (e *stubExecutor) Invoke(_ context.Context, cfg agent.Config, prompt string) (*agent.Result, error) {
	e.mu.Lock()
	e.invocations = append(e.invocations, stubInvocation{Config: cfg, Prompt: prompt})
	e.mu.Unlock()
	return e.respond(cfg, prompt), nil
}

func (e *stubExecutor) promptsFor(agentName string) []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	var prompts []string
	for _, inv := range e.invocations {
		if inv.Config.Name == agentName {
			prompts = append(prompts, inv.Prompt)
		}
	}
	return prompts
}

type noopLogger struct{}

func (noopLogger) Debug(string, string, map[string]interface{}) {}
func (noopLogger) Info(string, string, map[string]interface{})  {}
func (noopLogger) Warn(string, string, map[string]interface{})  {}
func (noopLogger) Error(string, string, map[string]interface{}) {}
func (noopLogger) Sync() error                                  { return nil }

const cannedArticle = `## The Opening
Intro text.

## The Middle
More text.

## The Closing
Final text.
`

func cannedResponder(cfg agent.Config, _ string) *agent.Result {
	switch cfg.Name {
	case researchAgentName:
		return &agent.Result{
			Text:   "Key findings about the topic.",
			Status: agent.StatusCompleted,
			Citations: []store.Citation{
				{Kind: store.CitationKindURL, Text: "[1]", URL: "https://example.com", Title: "Example"},
			},
			Tools: []agent.ToolInvocation{
				{Name: "search_grounding", Input: "topic", Output: "results"},
			},
		}
	case writerAgentName:
		return &agent.Result{Text: cannedArticle, Status: agent.StatusCompleted}
	default:
		return &agent.Result{Text: "Review comments.", Status: agent.StatusCompleted}
	}
}

func newTestService(respond func(agent.Config, string) *agent.Result) (IPipelineService, *stubExecutor, *memory.SessionRepository) {
	if respond == nil {
		respond = cannedResponder
	}
	executor := &stubExecutor{respond: respond}
	repo := memory.NewSessionRepository()
	svc := NewPipelineService(
		repo,
		executor,
		AgentSettings{Model: "gpt-4o-mini", SearchConnectionID: "conn-1"},
		nil,
		noopLogger{},
		noopLogger{},
	)
	return svc, executor, repo
}

func approvedPtr(v bool) *bool { return &v }

// --- Tests ---

func TestProcessTopicNewSession(t *testing.T) {
	svc, _, _ := newTestService(nil)

	res, err := svc.ProcessTopic(context.Background(), &dto.ProcessTopicRequest{Topic: "topic A"})
	require.NoError(t, err)

	assert.Equal(t, store.StageResearch, res.Stage)
	assert.Equal(t, store.StatusPendingApproval, res.Status)
	assert.Equal(t, 1, res.Iteration)
	assert.Equal(t, constant.MaxIterations, res.MaxIterations)
	assert.Equal(t, "topic A", res.Topic)
	assert.Equal(t, "web-article", res.Taste)
	assert.NotEmpty(t, res.Research)
	assert.Len(t, res.Citations, 1)
	assert.Empty(t, res.Article)
	assert.Empty(t, res.Review)
	require.NotNil(t, res.Visualization)
	assert.Equal(t, 1, res.Visualization.TotalAgents)
	assert.Equal(t, 1, res.Visualization.TotalTools)
}

func TestUnknownTasteFallsBackToDefault(t *testing.T) {
	svc, _, _ := newTestService(nil)

	res, err := svc.ProcessTopic(context.Background(), &dto.ProcessTopicRequest{Topic: "topic", Taste: "haiku"})
	require.NoError(t, err)

	assert.Equal(t, "web-article", res.Taste)
}

func TestApproveAtResearchRunsWriteReview(t *testing.T) {
	svc, executor, _ := newTestService(nil)

	created, err := svc.ProcessTopic(context.Background(), &dto.ProcessTopicRequest{Topic: "topic", Taste: "academic"})
	require.NoError(t, err)

	res, err := svc.HandleFeedback(context.Background(), &dto.FeedbackRequest{
		SessionID: created.SessionID,
		Approved:  approvedPtr(true),
	})
	require.NoError(t, err)

	assert.Equal(t, store.StageReview, res.Stage)
	assert.Equal(t, store.StatusPendingApproval, res.Status)
	assert.Equal(t, 2, res.Iteration)
	assert.NotEmpty(t, res.Article)
	assert.NotEmpty(t, res.Review)
	assert.LessOrEqual(t, len(res.Illustrations), 3)
	assert.Equal(t, "The Opening", res.Illustrations[0].Heading)

	// Writer instructions carry the taste profile
	writerPrompts := executor.promptsFor(writerAgentName)
	require.Len(t, writerPrompts, 1)
	var writerCfg agent.Config
	for _, inv := range executor.invocations {
		if inv.Config.Name == writerAgentName {
			writerCfg = inv.Config
		}
	}
	assert.Contains(t, writerCfg.Instructions, "academic")
	assert.Contains(t, writerCfg.Instructions, "Abstract")

	// Writer -> Reviewer transition recorded
	var transition bool
	for _, edge := range res.Visualization.Edges {
		if edge.Label == "transition" {
			transition = true
		}
	}
	assert.True(t, transition)
}

func TestRejectAtResearchAccumulatesFeedback(t *testing.T) {
	svc, executor, repo := newTestService(nil)

	created, err := svc.ProcessTopic(context.Background(), &dto.ProcessTopicRequest{Topic: "topic"})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		res, err := svc.HandleFeedback(context.Background(), &dto.FeedbackRequest{
			SessionID: created.SessionID,
			Approved:  approvedPtr(false),
			Feedback:  "add sources",
		})
		require.NoError(t, err)
		assert.Equal(t, store.StageResearch, res.Stage)
		assert.Equal(t, i+2, res.Iteration)
	}

	session, found := repo.Get(created.SessionID)
	require.True(t, found)
	assert.Equal(t, []string{"add sources", "add sources"}, session.ResearchFeedbacks)

	// The re-run prompts enumerate the accumulated feedback
	prompts := executor.promptsFor(researchAgentName)
	require.Len(t, prompts, 3)
	assert.NotContains(t, prompts[0], "add sources")
	assert.Contains(t, prompts[1], "1. add sources")
	assert.Contains(t, prompts[2], "2. add sources")
}

func TestIterationCapIsTerminal(t *testing.T) {
	svc, executor, _ := newTestService(nil)

	created, err := svc.ProcessTopic(context.Background(), &dto.ProcessTopicRequest{Topic: "topic"})
	require.NoError(t, err)

	for i := 0; i < constant.MaxIterations; i++ {
		_, err := svc.HandleFeedback(context.Background(), &dto.FeedbackRequest{
			SessionID: created.SessionID,
			Approved:  approvedPtr(false),
			Feedback:  "again",
		})
		require.NoError(t, err)
	}

	executor.mu.Lock()
	invocationsBefore := len(executor.invocations)
	executor.mu.Unlock()

	// Both decisions are refused once the budget is spent
	for _, approved := range []bool{false, true} {
		res, err := svc.HandleFeedback(context.Background(), &dto.FeedbackRequest{
			SessionID: created.SessionID,
			Approved:  approvedPtr(approved),
		})
		require.NoError(t, err)
		assert.Equal(t, store.StatusMaxIterationsReached, res.Status)
		assert.Equal(t, store.StageResearch, res.Stage)
	}

	executor.mu.Lock()
	assert.Equal(t, invocationsBefore, len(executor.invocations), "no agent work after cap")
	executor.mu.Unlock()
}

func TestApproveAtReviewCompletes(t *testing.T) {
	svc, _, _ := newTestService(nil)

	created, err := svc.ProcessTopic(context.Background(), &dto.ProcessTopicRequest{Topic: "topic"})
	require.NoError(t, err)

	_, err = svc.HandleFeedback(context.Background(), &dto.FeedbackRequest{
		SessionID: created.SessionID,
		Approved:  approvedPtr(true),
	})
	require.NoError(t, err)

	res, err := svc.HandleFeedback(context.Background(), &dto.FeedbackRequest{
		SessionID: created.SessionID,
		Approved:  approvedPtr(true),
	})
	require.NoError(t, err)

	assert.Equal(t, store.StatusApproved, res.Status)
	assert.Equal(t, store.StageCompleted, res.Stage)
	assert.NotEmpty(t, res.Research)
	assert.NotEmpty(t, res.Article)
	assert.NotEmpty(t, res.Review)

	// A completed session rejects both decision paths
	for _, approved := range []bool{true, false} {
		_, err := svc.HandleFeedback(context.Background(), &dto.FeedbackRequest{
			SessionID: created.SessionID,
			Approved:  approvedPtr(approved),
		})
		assert.ErrorIs(t, err, ErrInvalidStage)
	}
}

func TestRejectAtReviewReRunsWriter(t *testing.T) {
	svc, executor, repo := newTestService(nil)

	created, err := svc.ProcessTopic(context.Background(), &dto.ProcessTopicRequest{Topic: "topic"})
	require.NoError(t, err)

	_, err = svc.HandleFeedback(context.Background(), &dto.FeedbackRequest{
		SessionID: created.SessionID,
		Approved:  approvedPtr(true),
	})
	require.NoError(t, err)

	res, err := svc.HandleFeedback(context.Background(), &dto.FeedbackRequest{
		SessionID: created.SessionID,
		Approved:  approvedPtr(false),
		Feedback:  "tighten the intro",
	})
	require.NoError(t, err)

	assert.Equal(t, store.StageReview, res.Stage)
	assert.Equal(t, store.StatusPendingApproval, res.Status)

	session, found := repo.Get(created.SessionID)
	require.True(t, found)
	assert.Equal(t, []string{"tighten the intro"}, session.ReviewFeedbacks)

	writerPrompts := executor.promptsFor(writerAgentName)
	require.Len(t, writerPrompts, 2)
	assert.Contains(t, writerPrompts[1], "1. tighten the intro")
}

func TestWriterPromptTruncatesLongResearch(t *testing.T) {
	longResearch := strings.Repeat("r", 15000)
	svc, executor, _ := newTestService(func(cfg agent.Config, prompt string) *agent.Result {
		if cfg.Name == researchAgentName {
			return &agent.Result{Text: longResearch, Status: agent.StatusCompleted}
		}
		return cannedResponder(cfg, prompt)
	})

	created, err := svc.ProcessTopic(context.Background(), &dto.ProcessTopicRequest{Topic: "topic"})
	require.NoError(t, err)

	_, err = svc.HandleFeedback(context.Background(), &dto.FeedbackRequest{
		SessionID: created.SessionID,
		Approved:  approvedPtr(true),
	})
	require.NoError(t, err)

	writerPrompts := executor.promptsFor(writerAgentName)
	require.Len(t, writerPrompts, 1)
	assert.Contains(t, writerPrompts[0], strings.Repeat("r", constant.ResearchCharLimit))
	assert.NotContains(t, writerPrompts[0], strings.Repeat("r", constant.ResearchCharLimit+1))
	assert.Contains(t, writerPrompts[0], "truncated to 12000 characters")
}

func TestWriterPromptTruncatesMultibyteResearchByCharacter(t *testing.T) {
	longResearch := strings.Repeat("研", 15000)
	svc, executor, _ := newTestService(func(cfg agent.Config, prompt string) *agent.Result {
		if cfg.Name == researchAgentName {
			return &agent.Result{Text: longResearch, Status: agent.StatusCompleted}
		}
		return cannedResponder(cfg, prompt)
	})

	created, err := svc.ProcessTopic(context.Background(), &dto.ProcessTopicRequest{Topic: "topic"})
	require.NoError(t, err)

	_, err = svc.HandleFeedback(context.Background(), &dto.FeedbackRequest{
		SessionID: created.SessionID,
		Approved:  approvedPtr(true),
	})
	require.NoError(t, err)

	writerPrompts := executor.promptsFor(writerAgentName)
	require.Len(t, writerPrompts, 1)
	assert.True(t, utf8.ValidString(writerPrompts[0]))
	assert.Contains(t, writerPrompts[0], strings.Repeat("研", constant.ResearchCharLimit))
	assert.NotContains(t, writerPrompts[0], strings.Repeat("研", constant.ResearchCharLimit+1))
	assert.Contains(t, writerPrompts[0], "truncated to 12000 characters")
}

func TestSessionEvictionReleasesLocksAndTracers(t *testing.T) {
	svc, _, repo := newTestService(nil)

	created, err := svc.ProcessTopic(context.Background(), &dto.ProcessTopicRequest{Topic: "topic"})
	require.NoError(t, err)

	impl := svc.(*pipelineService)
	_, hasLock := impl.locks.Load(created.SessionID)
	_, hasTracer := impl.tracers.Load(created.SessionID)
	require.True(t, hasLock)
	require.True(t, hasTracer)

	repo.Delete(created.SessionID)

	_, hasLock = impl.locks.Load(created.SessionID)
	_, hasTracer = impl.tracers.Load(created.SessionID)
	assert.False(t, hasLock)
	assert.False(t, hasTracer)
}

func TestDegradedResearchRunIsAbsorbed(t *testing.T) {
	svc, _, _ := newTestService(func(cfg agent.Config, prompt string) *agent.Result {
		if cfg.Name == researchAgentName {
			return &agent.Result{Status: "failed", ErrorDetail: "rate_limited: too many requests"}
		}
		return cannedResponder(cfg, prompt)
	})

	res, err := svc.ProcessTopic(context.Background(), &dto.ProcessTopicRequest{Topic: "topic"})
	require.NoError(t, err)

	assert.Equal(t, store.StatusPendingApproval, res.Status)
	assert.Contains(t, res.Research, "Agent execution error: failed")
	assert.Contains(t, res.Research, "rate_limited: too many requests")

	require.NotNil(t, res.Visualization)
	require.Len(t, res.Visualization.Nodes, 1)
	assert.Equal(t, "failed", res.Visualization.Nodes[0].Status)
}

func TestHandleFeedbackUnknownSession(t *testing.T) {
	svc, _, _ := newTestService(nil)

	_, err := svc.HandleFeedback(context.Background(), &dto.FeedbackRequest{
		SessionID: "2c9a9c3e-46a2-4b16-bd7b-000000000000",
		Approved:  approvedPtr(true),
	})
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestIllustrationsTakeFirstThreeHeadings(t *testing.T) {
	fiveHeadings := "## One\n## Two\n## Three\n## Four\n## Five\n"
	svc, _, _ := newTestService(func(cfg agent.Config, prompt string) *agent.Result {
		if cfg.Name == writerAgentName {
			return &agent.Result{Text: fiveHeadings, Status: agent.StatusCompleted}
		}
		return cannedResponder(cfg, prompt)
	})

	created, err := svc.ProcessTopic(context.Background(), &dto.ProcessTopicRequest{Topic: "topic"})
	require.NoError(t, err)

	res, err := svc.HandleFeedback(context.Background(), &dto.FeedbackRequest{
		SessionID: created.SessionID,
		Approved:  approvedPtr(true),
	})
	require.NoError(t, err)

	require.Len(t, res.Illustrations, 3)
	assert.Equal(t, "One", res.Illustrations[0].Heading)
	assert.Equal(t, "Two", res.Illustrations[1].Heading)
	assert.Equal(t, "Three", res.Illustrations[2].Heading)
}
