// Package agent implements the conversational state machine that turns chat
// messages into inventory operations: extraction, slot filling, confirmation
// and execution, checkpointed per thread between turns.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/raphaelgruber/kitchenloop-go/internal/fefo"
	"github.com/raphaelgruber/kitchenloop-go/internal/llm"
	"github.com/raphaelgruber/kitchenloop-go/internal/models"
	"github.com/raphaelgruber/kitchenloop-go/internal/service"
)

// Extractor is the LLM surface the agent needs. *llm.Extractor satisfies it.
type Extractor interface {
	ExtractOperations(ctx context.Context, userInput string) ([]llm.RawOperation, string, error)
	ExtractFieldUpdates(ctx context.Context, pending []models.PendingOperation, userInput string) ([]llm.FieldUpdate, error)
	AskFollowUp(ctx context.Context, pending []models.PendingOperation) (string, error)
}

// InventoryOps is the inventory surface the agent executes against.
// *service.Inventory satisfies it.
type InventoryOps interface {
	Add(ctx context.Context, userID string, f *models.AddFields, trace service.Trace) (*models.Batch, error)
	Consume(ctx context.Context, userID string, f *models.ConsumeFields, trace service.Trace) (*models.ConsumeResult, error)
	Discard(ctx context.Context, userID string, f *models.DiscardFields, trace service.Trace) ([]models.Batch, error)
	Update(ctx context.Context, userID string, f *models.UpdateFields, trace service.Trace) (*models.Batch, error)
	QueryGrouped(ctx context.Context, userID string, itemName *string) ([]models.InventoryGroup, error)
	AvailableBatches(ctx context.Context, userID, itemName string) ([]models.Batch, error)
}

// Checkpointer persists conversation state between turns. *db.Client
// satisfies it.
type Checkpointer interface {
	GetCheckpoint(ctx context.Context, threadID string) (*models.ConversationState, error)
	PutCheckpoint(ctx context.Context, state *models.ConversationState) error
	CompleteCheckpoint(ctx context.Context, threadID, userID string, finalHistory []models.Message) error
}

// Agent drives one conversation turn at a time.
type Agent struct {
	extractor   Extractor
	inventory   InventoryOps
	checkpoints Checkpointer
	logger      *slog.Logger
	newThreadID func() string
}

// New creates an agent.
func New(extractor Extractor, inventory InventoryOps, checkpoints Checkpointer, logger *slog.Logger) *Agent {
	return &Agent{
		extractor:   extractor,
		inventory:   inventory,
		checkpoints: checkpoints,
		logger:      logger,
		newThreadID: func() string { return uuid.NewString() },
	}
}

// TurnInput is one user message addressed to a thread. An empty ThreadID
// starts a new conversation. A non-nil Confirm bypasses text classification
// and answers a pending confirmation directly.
type TurnInput struct {
	Text     string
	UserID   string
	ThreadID string
	Confirm  *bool
}

// TurnResult is what one turn produced: the assistant's reply, the thread to
// continue on, and where the dialogue stands.
type TurnResult struct {
	ThreadID  string                   `json:"thread_id"`
	Response  string                   `json:"response"`
	Status    models.Status            `json:"status"`
	Pending   *models.PendingActionSet `json:"pending_action,omitempty"`
	ToolCalls []models.ToolCall        `json:"tool_calls,omitempty"`
}

// RunTurn processes one user message. A thread in awaiting_confirm or
// awaiting_info resumes where it left off; anything else (including a
// completed thread id) starts fresh.
func (a *Agent) RunTurn(ctx context.Context, in TurnInput) (*TurnResult, error) {
	text := in.Text
	if in.Confirm != nil {
		// An explicit confirmation flag stands in for the strongest
		// keyword tier of the grammar.
		if *in.Confirm {
			text = "confirm"
		} else {
			text = "cancel"
		}
	}
	if text == "" {
		return nil, fmt.Errorf("empty message")
	}

	threadID := in.ThreadID
	if threadID == "" {
		threadID = a.newThreadID()
	}

	state, err := a.checkpoints.GetCheckpoint(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	if state == nil {
		state = &models.ConversationState{
			ThreadID: threadID,
			UserID:   in.UserID,
			Status:   models.StatusProcessing,
		}
	}
	state.Messages = append(state.Messages, models.Message{Role: "user", Content: text})

	a.logger.Info("turn started",
		"thread_id", threadID, "user_id", in.UserID, "status", state.Status)

	switch {
	case state.Status == models.StatusAwaitingConfirm && state.Pending != nil:
		return a.handleConfirmation(ctx, state, text)

	case state.Status == models.StatusAwaitingInfo && state.Pending != nil:
		if err := a.mergeFollowUp(ctx, state, text); err != nil {
			return nil, err
		}

	default:
		if err := a.extractFresh(ctx, state, text); err != nil {
			return nil, err
		}
	}

	return a.validate(ctx, state)
}

// extractFresh runs intent analysis on a new request and seeds the pending
// action set.
func (a *Agent) extractFresh(ctx context.Context, state *models.ConversationState, text string) error {
	rawOps, understanding, err := a.extractor.ExtractOperations(ctx, text)
	if err != nil {
		return err
	}
	if len(rawOps) > models.MaxPendingOperations {
		a.logger.Warn("extraction over operation cap, truncating",
			"thread_id", state.ThreadID, "extracted", len(rawOps))
		rawOps = rawOps[:models.MaxPendingOperations]
	}

	ops := make([]models.PendingOperation, 0, len(rawOps))
	for i, raw := range rawOps {
		fields, err := models.ParseFields(models.ParseIntent(raw.Intent), raw.ExtractedInfo)
		if err != nil {
			// A garbled payload degrades to a harmless inventory query.
			a.logger.Warn("unparseable extracted info", "thread_id", state.ThreadID, "error", err)
			fields = &models.QueryFields{}
		}
		op := models.PendingOperation{Index: i, Fields: fields}
		op.Revalidate()
		ops = append(ops, op)
	}

	state.Pending = &models.PendingActionSet{Operations: ops, Understanding: understanding}
	state.Status = models.StatusProcessing
	return nil
}

// mergeFollowUp folds a slot-filling reply into the pending operations.
func (a *Agent) mergeFollowUp(ctx context.Context, state *models.ConversationState, text string) error {
	updates, err := a.extractor.ExtractFieldUpdates(ctx, state.Pending.Operations, text)
	if err != nil {
		return err
	}

	for _, u := range updates {
		if u.Index < 0 || u.Index >= len(state.Pending.Operations) {
			a.logger.Warn("field update for unknown operation",
				"thread_id", state.ThreadID, "index", u.Index)
			continue
		}
		if err := state.Pending.Operations[u.Index].MergeUpdate(u.Payload); err != nil {
			a.logger.Warn("failed to merge field update",
				"thread_id", state.ThreadID, "index", u.Index, "error", err)
		}
	}

	state.Status = models.StatusProcessing
	return nil
}

// validate routes a processing state onward: ask for missing fields, ask
// for confirmation, or execute.
func (a *Agent) validate(ctx context.Context, state *models.ConversationState) (*TurnResult, error) {
	lang := detectLanguage(state.Messages)

	if state.Pending == nil || len(state.Pending.Operations) == 0 {
		return a.complete(ctx, state, noActionMessage(lang))
	}

	needsConfirmation := false
	for i := range state.Pending.Operations {
		state.Pending.Operations[i].Revalidate()
		if state.Pending.Operations[i].Intent().Destructive() {
			needsConfirmation = true
		}
	}

	if !state.Pending.AllComplete() {
		return a.askMore(ctx, state, lang)
	}
	if needsConfirmation {
		return a.requestConfirmation(ctx, state, lang)
	}
	return a.execute(ctx, state)
}

// askMore asks for the missing fields and parks the thread in awaiting_info.
// When the model cannot produce a question, a deterministic one listing the
// missing fields is used instead.
func (a *Agent) askMore(ctx context.Context, state *models.ConversationState, lang string) (*TurnResult, error) {
	question, err := a.extractor.AskFollowUp(ctx, state.Pending.Operations)
	if err != nil || question == "" {
		if err != nil {
			a.logger.Warn("follow-up generation failed, using fallback",
				"thread_id", state.ThreadID, "error", err)
		}
		question = fallbackFollowUp(state.Pending.Operations, lang)
	}

	state.Status = models.StatusAwaitingInfo
	return a.park(ctx, state, question)
}

// requestConfirmation computes the FEFO previews, renders the confirmation
// message and parks the thread in awaiting_confirm.
func (a *Agent) requestConfirmation(ctx context.Context, state *models.ConversationState, lang string) (*TurnResult, error) {
	for i := range state.Pending.Operations {
		op := &state.Pending.Operations[i]
		consume, ok := op.Fields.(*models.ConsumeFields)
		if !ok {
			continue
		}
		batches, err := a.inventory.AvailableBatches(ctx, state.UserID, *consume.ItemName)
		if err != nil {
			return nil, fmt.Errorf("plan preview: %w", err)
		}
		op.Plan = fefo.Plan(batches, *consume.ItemName, *consume.Amount, consume.Brand)
	}

	msg := confirmationMessage(state.Pending.Operations, lang)
	state.Pending.NeedsConfirmation = true
	state.Pending.ConfirmationMessage = msg
	state.Status = models.StatusAwaitingConfirm
	return a.park(ctx, state, msg)
}

// handleConfirmation resolves a reply to a pending confirmation.
func (a *Agent) handleConfirmation(ctx context.Context, state *models.ConversationState, text string) (*TurnResult, error) {
	lang := detectLanguage(state.Messages)

	switch classifyConfirmation(text) {
	case decisionConfirm:
		state.Status = models.StatusConfirmed
		return a.execute(ctx, state)

	case decisionCancel:
		state.Pending = nil
		return a.complete(ctx, state, cancelMessage(lang))

	case decisionCorrection:
		state.Pending = nil
		return a.complete(ctx, state, correctionMessage(lang))

	default:
		state.Status = models.StatusAwaitingConfirm
		return a.park(ctx, state, retryConfirmMessage(lang))
	}
}

// execute runs every pending operation in order. Per-operation domain
// failures are reported in the reply; an infrastructure error stops the
// remaining operations and marks the turn errored.
func (a *Agent) execute(ctx context.Context, state *models.ConversationState) (*TurnResult, error) {
	lang := detectLanguage(state.Messages)
	trace := a.buildTrace(state)

	var results []string
	failed := false
	for i := range state.Pending.Operations {
		op := &state.Pending.Operations[i]
		result, err := a.executeOne(ctx, state.UserID, op, trace, lang)
		if err != nil {
			a.logger.Error("operation failed",
				"thread_id", state.ThreadID, "intent", op.Intent(), "error", err)
			results = append(results, operationFailedMessage(lang, err))
			state.ToolCalls = append(state.ToolCalls, models.ToolCall{
				Tool:   toolName(op.Intent()),
				Args:   op.Fields,
				Result: fmt.Sprintf("error: %v", err),
			})
			failed = true
			break
		}
		results = append(results, result)
		state.ToolCalls = append(state.ToolCalls, models.ToolCall{
			Tool:   toolName(op.Intent()),
			Args:   op.Fields,
			Result: "success",
		})
	}

	state.Pending = nil
	response := joinResults(results)
	if failed {
		return a.completeWithStatus(ctx, state, response, models.StatusError)
	}
	return a.complete(ctx, state, response)
}

func (a *Agent) executeOne(ctx context.Context, userID string, op *models.PendingOperation, trace service.Trace, lang string) (string, error) {
	switch f := op.Fields.(type) {
	case *models.AddFields:
		batch, err := a.inventory.Add(ctx, userID, f, trace)
		if err != nil {
			return "", err
		}
		return addedMessage(batch, lang), nil

	case *models.ConsumeFields:
		result, err := a.inventory.Consume(ctx, userID, f, trace)
		if err != nil {
			return "", err
		}
		return consumeMessage(result, *f.ItemName, lang), nil

	case *models.DiscardFields:
		removed, err := a.inventory.Discard(ctx, userID, f, trace)
		if err != nil {
			return "", err
		}
		return discardedMessage(removed, lang), nil

	case *models.UpdateFields:
		batch, err := a.inventory.Update(ctx, userID, f, trace)
		if err != nil {
			return "", err
		}
		return updatedMessage(batch, lang), nil

	case *models.QueryFields:
		groups, err := a.inventory.QueryGrouped(ctx, userID, nil)
		if err != nil {
			return "", err
		}
		return inventoryMessage(groups, f.ItemName, lang), nil

	default:
		return "", fmt.Errorf("unknown operation intent: %s", op.Intent())
	}
}

// buildTrace recovers the original request text for the audit trail,
// skipping bare confirmation words.
func (a *Agent) buildTrace(state *models.ConversationState) service.Trace {
	trace := service.Trace{}
	for _, m := range state.Messages {
		if m.Role != "user" || isConfirmationToken(m.Content) {
			continue
		}
		content := m.Content
		trace.RawInput = &content
		break
	}
	if state.Pending != nil && state.Pending.Understanding != "" {
		understanding := state.Pending.Understanding
		trace.Reasoning = &understanding
	}
	return trace
}

// park checkpoints a thread that is waiting on the user and returns the
// turn result.
func (a *Agent) park(ctx context.Context, state *models.ConversationState, response string) (*TurnResult, error) {
	state.Messages = append(state.Messages, models.Message{Role: "assistant", Content: response})
	if err := a.checkpoints.PutCheckpoint(ctx, state); err != nil {
		return nil, fmt.Errorf("save checkpoint: %w", err)
	}
	return &TurnResult{
		ThreadID:  state.ThreadID,
		Response:  response,
		Status:    state.Status,
		Pending:   state.Pending,
		ToolCalls: state.ToolCalls,
	}, nil
}

// complete finishes a thread successfully.
func (a *Agent) complete(ctx context.Context, state *models.ConversationState, response string) (*TurnResult, error) {
	return a.completeWithStatus(ctx, state, response, models.StatusCompleted)
}

func (a *Agent) completeWithStatus(ctx context.Context, state *models.ConversationState, response string, status models.Status) (*TurnResult, error) {
	state.Messages = append(state.Messages, models.Message{Role: "assistant", Content: response})
	state.Status = status
	if err := a.checkpoints.CompleteCheckpoint(ctx, state.ThreadID, state.UserID, state.Messages); err != nil {
		return nil, fmt.Errorf("complete checkpoint: %w", err)
	}
	return &TurnResult{
		ThreadID:  state.ThreadID,
		Response:  response,
		Status:    status,
		ToolCalls: state.ToolCalls,
	}, nil
}

func toolName(intent models.Intent) string {
	return "execute_" + strings.ToLower(string(intent))
}

func joinResults(results []string) string {
	return strings.Join(results, "\n\n")
}
