package foundry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"content-pipeline-be/pkg/agent"
	"content-pipeline-be/pkg/store"
)

// Executor talks to an Azure AI Foundry style agents REST API: create an
// agent definition, open a thread, post the user message, execute a run,
// poll it to a terminal status, then read the assistant reply back.
type Executor struct {
	Endpoint   string
	APIKey     string
	APIVersion string
	Client     *http.Client

	pollInterval time.Duration
}

// Ensure Executor implements the agent contract
var _ agent.Executor = &Executor{}

func NewExecutor(endpoint, apiKey string) *Executor {
	return &Executor{
		Endpoint:   endpoint,
		APIKey:     apiKey,
		APIVersion: "v1",
		Client: &http.Client{
			Timeout: 300 * time.Second,
		},
		pollInterval: 2 * time.Second,
	}
}

// --- Request/Response structs (internal to this package) ---

type createAgentRequest struct {
	Model        string       `json:"model"`
	Name         string       `json:"name"`
	Instructions string       `json:"instructions"`
	Tools        []agent.Tool `json:"tools,omitempty"`
}

type agentResource struct {
	ID string `json:"id"`
}

type threadResource struct {
	ID string `json:"id"`
}

type createMessageRequest struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type createRunRequest struct {
	AgentID string `json:"assistant_id"`
}

type runResource struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	LastError *runError `json:"last_error,omitempty"`
}

type runError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type messageList struct {
	Data []messageResource `json:"data"`
}

type messageResource struct {
	Role    string           `json:"role"`
	Content []messageContent `json:"content"`
}

type messageContent struct {
	Type string       `json:"type"`
	Text *messageText `json:"text,omitempty"`
}

type messageText struct {
	Value       string       `json:"value"`
	Annotations []annotation `json:"annotations"`
}

// annotation carries either a file citation or a url citation; the populated
// pointer decides which.
type annotation struct {
	Type         string        `json:"type"`
	Text         string        `json:"text"`
	FileCitation *fileCitation `json:"file_citation,omitempty"`
	URLCitation  *urlCitation  `json:"url_citation,omitempty"`
}

type fileCitation struct {
	FileID string `json:"file_id"`
}

type urlCitation struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

type runStepList struct {
	Data []runStep `json:"data"`
}

type runStep struct {
	Type        string       `json:"type"`
	StepDetails *stepDetails `json:"step_details,omitempty"`
}

type stepDetails struct {
	ToolCalls []toolCall `json:"tool_calls"`
}

type toolCall struct {
	Type   string          `json:"type"`
	Input  json.RawMessage `json:"input,omitempty"`
	Output string          `json:"output,omitempty"`
}

// --- Interface implementation ---

func (e *Executor) Invoke(ctx context.Context, cfg agent.Config, userMessage string) (*agent.Result, error) {
	// 1. Create agent definition
	var created agentResource
	err := e.post(ctx, "/assistants", createAgentRequest{
		Model:        cfg.Model,
		Name:         cfg.Name,
		Instructions: cfg.Instructions,
		Tools:        cfg.Tools,
	}, &created)
	if err != nil {
		return nil, fmt.Errorf("create agent: %w", err)
	}

	// 2. Create thread
	var thread threadResource
	if err := e.post(ctx, "/threads", struct{}{}, &thread); err != nil {
		return nil, fmt.Errorf("create thread: %w", err)
	}

	// 3. Post user message
	var posted messageResource
	err = e.post(ctx, "/threads/"+thread.ID+"/messages", createMessageRequest{
		Role:    "user",
		Content: userMessage,
	}, &posted)
	if err != nil {
		return nil, fmt.Errorf("post message: %w", err)
	}

	// 4. Execute run and wait for a terminal status
	var run runResource
	err = e.post(ctx, "/threads/"+thread.ID+"/runs", createRunRequest{AgentID: created.ID}, &run)
	if err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}
	run, err = e.waitForRun(ctx, thread.ID, run.ID)
	if err != nil {
		return nil, err
	}

	result := &agent.Result{
		Status:  run.Status,
		AgentID: created.ID,
	}

	// 5. Non-completed runs are degraded, not errors; keep the detail for
	// the pipeline to embed in its fallback text.
	if run.Status != agent.StatusCompleted {
		if run.LastError != nil {
			result.ErrorDetail = fmt.Sprintf("%s: %s", run.LastError.Code, run.LastError.Message)
		}
		return result, nil
	}

	// 6. Read the assistant reply and its citations
	var messages messageList
	if err := e.get(ctx, "/threads/"+thread.ID+"/messages", &messages); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	result.Text, result.Citations = extractReply(messages)

	// 7. Collect tool calls from run steps. Best effort: a failure here
	// loses tool telemetry, not the result.
	var steps runStepList
	if err := e.get(ctx, "/threads/"+thread.ID+"/runs/"+run.ID+"/steps", &steps); err == nil {
		result.Tools = extractToolCalls(steps)
	}

	return result, nil
}

func (e *Executor) waitForRun(ctx context.Context, threadID, runID string) (runResource, error) {
	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	for {
		var run runResource
		if err := e.get(ctx, "/threads/"+threadID+"/runs/"+runID, &run); err != nil {
			return runResource{}, fmt.Errorf("poll run: %w", err)
		}
		switch run.Status {
		case "queued", "in_progress", "requires_action":
			// still working
		default:
			return run, nil
		}

		select {
		case <-ctx.Done():
			return runResource{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

func extractReply(messages messageList) (string, []store.Citation) {
	for _, msg := range messages.Data {
		if msg.Role != "assistant" {
			continue
		}
		for _, content := range msg.Content {
			if content.Type != "text" || content.Text == nil {
				continue
			}
			return content.Text.Value, mapCitations(content.Text.Annotations)
		}
	}
	return "", nil
}

func mapCitations(annotations []annotation) []store.Citation {
	var citations []store.Citation
	for _, a := range annotations {
		switch {
		case a.FileCitation != nil:
			citations = append(citations, store.Citation{
				Kind:   store.CitationKindFile,
				Text:   a.Text,
				FileID: a.FileCitation.FileID,
			})
		case a.URLCitation != nil:
			citations = append(citations, store.Citation{
				Kind:  store.CitationKindURL,
				Text:  a.Text,
				URL:   a.URLCitation.URL,
				Title: a.URLCitation.Title,
			})
		}
	}
	return citations
}

func extractToolCalls(steps runStepList) []agent.ToolInvocation {
	var tools []agent.ToolInvocation
	for _, step := range steps.Data {
		if step.Type != "tool_calls" || step.StepDetails == nil {
			continue
		}
		for _, call := range step.StepDetails.ToolCalls {
			tools = append(tools, agent.ToolInvocation{
				Name:   call.Type,
				Input:  string(call.Input),
				Output: call.Output,
			})
		}
	}
	return tools
}

// --- HTTP plumbing ---

func (e *Executor) post(ctx context.Context, path string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, "POST", e.url(path), bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return e.do(req, out)
}

func (e *Executor) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, "GET", e.url(path), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return e.do(req, out)
}

func (e *Executor) do(req *http.Request, out interface{}) error {
	req.Header.Set("Content-Type", "application/json")
	if e.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.APIKey)
	}

	resp, err := e.Client.Do(req)
	if err != nil {
		return fmt.Errorf("agent service request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("agent service returned %d: %s", resp.StatusCode, string(respBody))
	}
	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

func (e *Executor) url(path string) string {
	return e.Endpoint + "/" + e.APIVersion + path
}
