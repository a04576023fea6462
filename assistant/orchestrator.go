package assistant

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/atendai/atendai/cache"
	"github.com/atendai/atendai/errors"
	"github.com/atendai/atendai/internal/mylog"
	"github.com/atendai/atendai/tool"
)

const (
	defaultPollInterval = time.Second
	defaultMaxAttempts  = 30

	threadKeyPrefix = "assistant:thread:"
)

type Orchestrator struct {
	api      API
	registry *tool.Registry
	store    cache.Store
	logger   *mylog.Logger

	pollInterval time.Duration
	maxAttempts  int

	// Serializes processing per user. Two concurrent webhook deliveries
	// for the same user would otherwise race on thread creation and
	// interleave replies.
	userLocks sync.Map // map[userID]*sync.Mutex
}

func NewOrchestrator(api API, registry *tool.Registry, store cache.Store, logger *mylog.Logger) *Orchestrator {
	return &Orchestrator{
		api:          api,
		registry:     registry,
		store:        store,
		logger:       logger,
		pollInterval: defaultPollInterval,
		maxAttempts:  defaultMaxAttempts,
	}
}

func (o *Orchestrator) lockFor(userID string) *sync.Mutex {
	v, _ := o.userLocks.LoadOrStore(userID, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// Ask posts the user's message on their conversation thread, drives the run
// to completion and returns the assistant's reply text. Failures are not
// retried at this layer.
func (o *Orchestrator) Ask(ctx context.Context, userID, message string, metadata map[string]string) (string, error) {
	mu := o.lockFor(userID)
	mu.Lock()
	defer mu.Unlock()

	threadID, err := o.threadFor(ctx, userID)
	if err != nil {
		return "", err
	}

	if err := o.api.AddUserMessage(ctx, threadID, message); err != nil {
		return "", err
	}

	runMetadata := map[string]any{
		"user_id":   userID,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range metadata {
		runMetadata[k] = v
	}

	run, err := o.api.CreateRun(ctx, threadID, runMetadata)
	if err != nil {
		return "", err
	}

	o.logger.Debug("run started", "user_id", userID, "thread_id", threadID, "run_id", run.ID)

	if err := o.drive(ctx, threadID, run, tool.CallContext{
		UserID:    userID,
		RequestID: metadata["request_id"],
		Metadata:  metadata,
	}); err != nil {
		return "", err
	}

	return o.api.LatestAssistantMessage(ctx, threadID)
}

// ResetThread drops the cached thread affinity so the next message starts a
// fresh conversation.
func (o *Orchestrator) ResetThread(ctx context.Context, userID string) error {
	return o.store.Delete(ctx, threadKeyPrefix+userID)
}

// threadFor resolves the user's thread cache-aside. The per-user lock held
// by Ask makes the check-then-create atomic.
func (o *Orchestrator) threadFor(ctx context.Context, userID string) (string, error) {
	key := threadKeyPrefix + userID

	if id, ok, err := o.store.Get(ctx, key); err == nil && ok {
		return id, nil
	} else if err != nil {
		o.logger.Warn("thread cache read failed", "user_id", userID, "error", err)
	}

	id, err := o.api.CreateThread(ctx)
	if err != nil {
		return "", err
	}

	if err := o.store.Set(ctx, key, id, cache.ThreadTTL); err != nil {
		o.logger.Warn("thread cache write failed", "user_id", userID, "error", err)
	}

	o.logger.Info("created new conversation thread", "user_id", userID, "thread_id", id)
	return id, nil
}

// drive is the run state machine: a bounded polling loop that services
// every requires_action round and stops on a terminal status or when the
// attempt budget runs out.
func (o *Orchestrator) drive(ctx context.Context, threadID string, run *Run, cc tool.CallContext) error {
	for attempt := 0; attempt < o.maxAttempts; attempt++ {
		switch run.Status {
		case StatusCompleted:
			return nil

		case StatusFailed, StatusCancelled, StatusExpired:
			return errors.Wrapf(errors.ErrUpstream, "run %s ended with status %s: %s", run.ID, run.Status, run.LastError)

		case StatusRequiresAction:
			if err := o.serviceToolCalls(ctx, threadID, run, cc); err != nil {
				return err
			}

		case StatusQueued, StatusInProgress, StatusCancelling:
			select {
			case <-ctx.Done():
				return errors.Wrapf(ctx.Err(), "run %s interrupted", run.ID)
			case <-time.After(o.pollInterval):
			}

		default:
			return errors.Wrapf(errors.ErrUpstream, "run %s in unknown status %q", run.ID, run.Status)
		}

		next, err := o.api.RetrieveRun(ctx, threadID, run.ID)
		if err != nil {
			return err
		}
		run = next
	}

	return errors.Wrapf(errors.ErrTimeout, "run %s did not finish within %d polls", run.ID, o.maxAttempts)
}

// serviceToolCalls answers every pending tool call in one batch, keyed by
// call id. A call whose result cannot be serialized still gets a
// synthesized failure output so the batch stays complete.
func (o *Orchestrator) serviceToolCalls(ctx context.Context, threadID string, run *Run, cc tool.CallContext) error {
	if len(run.ToolCalls) == 0 {
		return errors.Wrapf(errors.ErrUpstream, "run %s requires action but has no tool calls", run.ID)
	}

	outputs := make([]ToolOutput, 0, len(run.ToolCalls))
	for _, call := range run.ToolCalls {
		o.logger.Debug("dispatching tool call", "run_id", run.ID, "call_id", call.ID, "name", call.Name)

		result := o.registry.Execute(ctx, call.Name, call.Arguments, cc)

		raw, err := json.Marshal(result)
		if err != nil {
			o.logger.Error("failed to serialize tool result", "call_id", call.ID, "error", err)
			raw = []byte(`{"success":false,"message":"erro interno ao serializar o resultado"}`)
		}

		outputs = append(outputs, ToolOutput{CallID: call.ID, Output: string(raw)})
	}

	return o.api.SubmitToolOutputs(ctx, threadID, run.ID, outputs)
}
