// Package assistant drives conversations against the OpenAI Assistants
// API: one thread per end user, one run per inbound message, tool calls
// dispatched through the function registry.
package assistant

import (
	"context"
	"encoding/json"

	openai "github.com/sashabaranov/go-openai"

	"github.com/atendai/atendai/errors"
)

type (
	// Status mirrors the assistant-service run lifecycle.
	Status string

	Run struct {
		ID        string
		Status    Status
		ToolCalls []ToolCall
		LastError string
	}

	ToolCall struct {
		ID        string
		Name      string
		Arguments json.RawMessage
	}

	ToolOutput struct {
		CallID string
		Output string
	}

	// API is the narrow surface of the assistant service the orchestrator
	// needs. Tests substitute a scripted fake.
	API interface {
		CreateThread(ctx context.Context) (string, error)
		AddUserMessage(ctx context.Context, threadID, text string) error
		CreateRun(ctx context.Context, threadID string, metadata map[string]any) (*Run, error)
		RetrieveRun(ctx context.Context, threadID, runID string) (*Run, error)
		SubmitToolOutputs(ctx context.Context, threadID, runID string, outputs []ToolOutput) error
		LatestAssistantMessage(ctx context.Context, threadID string) (string, error)
	}
)

const (
	StatusQueued         Status = "queued"
	StatusInProgress     Status = "in_progress"
	StatusRequiresAction Status = "requires_action"
	StatusCancelling     Status = "cancelling"
	StatusCompleted      Status = "completed"
	StatusFailed         Status = "failed"
	StatusCancelled      Status = "cancelled"
	StatusExpired        Status = "expired"
)

// Terminal reports whether the run can make no further progress.
// requires_action is not terminal: it demands one round of tool outputs.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusExpired:
		return true
	}
	return false
}

type openAIAPI struct {
	client      *openai.Client
	assistantID string
}

var _ API = (*openAIAPI)(nil)

func NewOpenAIAPI(apiKey, assistantID string) API {
	return &openAIAPI{
		client:      openai.NewClient(apiKey),
		assistantID: assistantID,
	}
}

func (a *openAIAPI) CreateThread(ctx context.Context) (string, error) {
	thread, err := a.client.CreateThread(ctx, openai.ThreadRequest{})
	if err != nil {
		return "", errors.Wrapf(err, "failed to create thread")
	}
	return thread.ID, nil
}

func (a *openAIAPI) AddUserMessage(ctx context.Context, threadID, text string) error {
	_, err := a.client.CreateMessage(ctx, threadID, openai.MessageRequest{
		Role:    "user",
		Content: text,
	})
	if err != nil {
		return errors.Wrapf(err, "failed to add message to thread %s", threadID)
	}
	return nil
}

func (a *openAIAPI) CreateRun(ctx context.Context, threadID string, metadata map[string]any) (*Run, error) {
	run, err := a.client.CreateRun(ctx, threadID, openai.RunRequest{
		AssistantID: a.assistantID,
		Metadata:    metadata,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create run on thread %s", threadID)
	}
	return convertRun(&run), nil
}

func (a *openAIAPI) RetrieveRun(ctx context.Context, threadID, runID string) (*Run, error) {
	run, err := a.client.RetrieveRun(ctx, threadID, runID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to retrieve run %s", runID)
	}
	return convertRun(&run), nil
}

func (a *openAIAPI) SubmitToolOutputs(ctx context.Context, threadID, runID string, outputs []ToolOutput) error {
	toolOutputs := make([]openai.ToolOutput, 0, len(outputs))
	for _, out := range outputs {
		toolOutputs = append(toolOutputs, openai.ToolOutput{
			ToolCallID: out.CallID,
			Output:     out.Output,
		})
	}

	_, err := a.client.SubmitToolOutputs(ctx, threadID, runID, openai.SubmitToolOutputsRequest{
		ToolOutputs: toolOutputs,
	})
	if err != nil {
		return errors.Wrapf(err, "failed to submit tool outputs for run %s", runID)
	}
	return nil
}

func (a *openAIAPI) LatestAssistantMessage(ctx context.Context, threadID string) (string, error) {
	limit := 10
	order := "desc"
	msgs, err := a.client.ListMessage(ctx, threadID, &limit, &order, nil, nil, nil)
	if err != nil {
		return "", errors.Wrapf(err, "failed to list messages on thread %s", threadID)
	}

	for _, msg := range msgs.Messages {
		if msg.Role != "assistant" {
			continue
		}
		for _, content := range msg.Content {
			if content.Text != nil && content.Text.Value != "" {
				return content.Text.Value, nil
			}
		}
	}

	return "", errors.Wrapf(errors.ErrNotFound, "no assistant reply on thread %s", threadID)
}

func convertRun(run *openai.Run) *Run {
	out := &Run{
		ID:     run.ID,
		Status: Status(run.Status),
	}
	if run.LastError != nil {
		out.LastError = run.LastError.Message
	}
	if run.RequiredAction != nil && run.RequiredAction.SubmitToolOutputs != nil {
		for _, call := range run.RequiredAction.SubmitToolOutputs.ToolCalls {
			out.ToolCalls = append(out.ToolCalls, ToolCall{
				ID:        call.ID,
				Name:      call.Function.Name,
				Arguments: json.RawMessage(call.Function.Arguments),
			})
		}
	}
	return out
}
