package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/kitchenloop-go/internal/fefo"
	"github.com/raphaelgruber/kitchenloop-go/internal/llm"
	"github.com/raphaelgruber/kitchenloop-go/internal/models"
	"github.com/raphaelgruber/kitchenloop-go/internal/service"
)

type fakeExtractor struct {
	ops           []llm.RawOperation
	understanding string
	opsErr        error

	updates []llm.FieldUpdate

	question string
	askErr   error
}

func (f *fakeExtractor) ExtractOperations(context.Context, string) ([]llm.RawOperation, string, error) {
	return f.ops, f.understanding, f.opsErr
}

func (f *fakeExtractor) ExtractFieldUpdates(context.Context, []models.PendingOperation, string) ([]llm.FieldUpdate, error) {
	return f.updates, nil
}

func (f *fakeExtractor) AskFollowUp(context.Context, []models.PendingOperation) (string, error) {
	return f.question, f.askErr
}

// fakeInventory backs the agent with an in-memory batch list and records
// what got executed.
type fakeInventory struct {
	batches []models.Batch
	nextID  int64

	added     []models.AddFields
	consumed  []models.ConsumeFields
	discarded []models.DiscardFields
	updated   []models.UpdateFields
	traces    []service.Trace

	consumeResult *models.ConsumeResult
}

func (f *fakeInventory) Add(_ context.Context, _ string, fields *models.AddFields, trace service.Trace) (*models.Batch, error) {
	f.added = append(f.added, *fields)
	f.traces = append(f.traces, trace)
	f.nextID++
	return &models.Batch{
		ID:       f.nextID,
		ItemName: *fields.ItemName,
		Quantity: *fields.Quantity,
		Unit:     *fields.Unit,
		Location: service.DefaultLocation,
	}, nil
}

func (f *fakeInventory) Consume(_ context.Context, _ string, fields *models.ConsumeFields, trace service.Trace) (*models.ConsumeResult, error) {
	f.consumed = append(f.consumed, *fields)
	f.traces = append(f.traces, trace)
	if f.consumeResult != nil {
		return f.consumeResult, nil
	}
	return &models.ConsumeResult{
		Success:         true,
		ConsumedAmount:  *fields.Amount,
		AffectedBatches: []models.AffectedBatch{{BatchID: 1, Deducted: *fields.Amount, OldQuantity: 1, NewQuantity: 0.5}},
		Message:         "ok",
	}, nil
}

func (f *fakeInventory) Discard(_ context.Context, _ string, fields *models.DiscardFields, trace service.Trace) ([]models.Batch, error) {
	f.discarded = append(f.discarded, *fields)
	f.traces = append(f.traces, trace)
	return []models.Batch{{ID: 3, ItemName: "Bread", Quantity: 1, Unit: "pcs"}}, nil
}

func (f *fakeInventory) Update(_ context.Context, _ string, fields *models.UpdateFields, trace service.Trace) (*models.Batch, error) {
	f.updated = append(f.updated, *fields)
	f.traces = append(f.traces, trace)
	return &models.Batch{ID: *fields.BatchID, ItemName: "Milk", Quantity: 1, Unit: "L"}, nil
}

func (f *fakeInventory) QueryGrouped(context.Context, string, *string) ([]models.InventoryGroup, error) {
	var positive []models.Batch
	for _, b := range f.batches {
		if b.Quantity > 0 {
			positive = append(positive, b)
		}
	}
	return models.GroupBatches(positive), nil
}

func (f *fakeInventory) AvailableBatches(_ context.Context, _ string, itemName string) ([]models.Batch, error) {
	var out []models.Batch
	for _, b := range fefo.Filter(f.batches, itemName, nil) {
		if b.Quantity > 0 {
			out = append(out, b)
		}
	}
	return out, nil
}

// fakeCheckpoints holds active checkpoints in a map, like the real store
// it never returns completed threads.
type fakeCheckpoints struct {
	active    map[string]*models.ConversationState
	completed map[string][]models.Message
}

func newFakeCheckpoints() *fakeCheckpoints {
	return &fakeCheckpoints{
		active:    map[string]*models.ConversationState{},
		completed: map[string][]models.Message{},
	}
}

func (f *fakeCheckpoints) GetCheckpoint(_ context.Context, threadID string) (*models.ConversationState, error) {
	state, ok := f.active[threadID]
	if !ok {
		return nil, nil
	}
	// Round-trip through JSON like the real store, so the polymorphic
	// pending operations must survive serialization.
	data, err := json.Marshal(state)
	if err != nil {
		return nil, err
	}
	var restored models.ConversationState
	if err := json.Unmarshal(data, &restored); err != nil {
		return nil, err
	}
	return &restored, nil
}

func (f *fakeCheckpoints) PutCheckpoint(_ context.Context, state *models.ConversationState) error {
	f.active[state.ThreadID] = state
	return nil
}

func (f *fakeCheckpoints) CompleteCheckpoint(_ context.Context, threadID, _ string, finalHistory []models.Message) error {
	delete(f.active, threadID)
	f.completed[threadID] = finalHistory
	return nil
}

func rawOp(intent string, info string) llm.RawOperation {
	return llm.RawOperation{Intent: intent, ExtractedInfo: json.RawMessage(info)}
}

func newTestAgent(ext *fakeExtractor, inv *fakeInventory) (*Agent, *fakeCheckpoints) {
	cps := newFakeCheckpoints()
	a := New(ext, inv, cps, slog.New(slog.DiscardHandler))
	a.newThreadID = func() string { return "thread-1" }
	return a, cps
}

func expiry(s string) *time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return &t
}

func TestAddExecutesWithoutConfirmation(t *testing.T) {
	ext := &fakeExtractor{
		ops: []llm.RawOperation{
			rawOp("ADD", `{"item_name": "Milk", "quantity": 1, "unit": "L", "expiry_date": "2026-09-01"}`),
		},
		understanding: "user bought milk",
	}
	inv := &fakeInventory{}
	a, cps := newTestAgent(ext, inv)

	result, err := a.RunTurn(context.Background(), TurnInput{Text: "bought a liter of milk", UserID: "u1"})
	require.NoError(t, err)

	assert.Equal(t, models.StatusCompleted, result.Status)
	assert.Equal(t, "thread-1", result.ThreadID)
	assert.Contains(t, result.Response, "Added")
	require.Len(t, inv.added, 1)
	assert.Equal(t, "Milk", *inv.added[0].ItemName)

	require.Len(t, inv.traces, 1)
	require.NotNil(t, inv.traces[0].RawInput)
	assert.Equal(t, "bought a liter of milk", *inv.traces[0].RawInput)
	require.NotNil(t, inv.traces[0].Reasoning)
	assert.Equal(t, "user bought milk", *inv.traces[0].Reasoning)

	assert.Contains(t, cps.completed, "thread-1")
	assert.NotContains(t, cps.active, "thread-1")
}

func TestSlotFillingAcrossTurns(t *testing.T) {
	ext := &fakeExtractor{
		ops: []llm.RawOperation{
			rawOp("ADD", `{"item_name": "Chicken Wings"}`),
		},
		question: "How much is it, and when does it expire?",
	}
	inv := &fakeInventory{}
	a, cps := newTestAgent(ext, inv)
	ctx := context.Background()

	// Turn 1: quantity, unit and expiry missing.
	result, err := a.RunTurn(ctx, TurnInput{Text: "bought chicken wings", UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusAwaitingInfo, result.Status)
	assert.Equal(t, ext.question, result.Response)
	require.NotNil(t, result.Pending)
	assert.ElementsMatch(t, []string{"quantity", "unit", "expiry_date"},
		result.Pending.Operations[0].MissingFields)
	assert.Contains(t, cps.active, "thread-1")

	// Turn 2: the reply fills everything in.
	ext.updates = []llm.FieldUpdate{{
		Index:   0,
		Payload: json.RawMessage(`{"index": 0, "quantity": 0.5, "unit": "kg", "expiry_date": "2026-09-05"}`),
	}}
	result, err = a.RunTurn(ctx, TurnInput{Text: "half a kilo, expires sep 5", UserID: "u1", ThreadID: "thread-1"})
	require.NoError(t, err)

	assert.Equal(t, models.StatusCompleted, result.Status)
	require.Len(t, inv.added, 1)
	assert.Equal(t, 0.5, *inv.added[0].Quantity)
	assert.Equal(t, "kg", *inv.added[0].Unit)
	assert.Equal(t, "Chicken Wings", *inv.added[0].ItemName, "first turn's fields survive the merge")
}

func TestSlotFillingPartialKeepsAsking(t *testing.T) {
	ext := &fakeExtractor{
		ops:      []llm.RawOperation{rawOp("ADD", `{"item_name": "Milk", "quantity": 1, "unit": "L"}`)},
		question: "When does it expire?",
	}
	inv := &fakeInventory{}
	a, _ := newTestAgent(ext, inv)
	ctx := context.Background()

	result, err := a.RunTurn(ctx, TurnInput{Text: "bought milk", UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusAwaitingInfo, result.Status)

	// Reply provides nothing usable.
	ext.updates = nil
	result, err = a.RunTurn(ctx, TurnInput{Text: "hmm", UserID: "u1", ThreadID: "thread-1"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusAwaitingInfo, result.Status)
	assert.Empty(t, inv.added)
}

func TestConsumeRequiresConfirmationAndShowsPlan(t *testing.T) {
	ext := &fakeExtractor{
		ops: []llm.RawOperation{rawOp("CONSUME", `{"item_name": "Milk", "amount": 1}`)},
	}
	inv := &fakeInventory{
		batches: []models.Batch{
			{ID: 1, ItemName: "Milk", Quantity: 0.3, Unit: "L", IsOpen: true, ExpiryDate: expiry("2026-09-10")},
			{ID: 2, ItemName: "Milk", Quantity: 1.0, Unit: "L", ExpiryDate: expiry("2026-09-05")},
		},
	}
	a, cps := newTestAgent(ext, inv)
	ctx := context.Background()

	result, err := a.RunTurn(ctx, TurnInput{Text: "drank a liter of milk", UserID: "u1"})
	require.NoError(t, err)

	assert.Equal(t, models.StatusAwaitingConfirm, result.Status)
	assert.Contains(t, result.Response, "System will execute:")
	assert.Contains(t, result.Response, "Batch #1")
	assert.Contains(t, result.Response, "deduct 0.3")
	assert.Contains(t, result.Response, "Batch #2")
	assert.Contains(t, result.Response, "deduct 0.7")
	assert.Contains(t, result.Response, "[Yes/No]")
	assert.Empty(t, inv.consumed, "nothing executes before confirmation")

	// Confirm.
	result, err = a.RunTurn(ctx, TurnInput{Text: "yes", UserID: "u1", ThreadID: "thread-1"})
	require.NoError(t, err)

	assert.Equal(t, models.StatusCompleted, result.Status)
	assert.Contains(t, result.Response, "Consumed")
	require.Len(t, inv.consumed, 1)
	assert.Equal(t, 1.0, *inv.consumed[0].Amount)
	require.Len(t, result.ToolCalls, 1)
	assert.Equal(t, "execute_consume", result.ToolCalls[0].Tool)
	assert.Contains(t, cps.completed, "thread-1")
}

func TestConfirmationInChinese(t *testing.T) {
	ext := &fakeExtractor{
		ops: []llm.RawOperation{rawOp("CONSUME", `{"item_name": "Milk", "amount": 0.5, "unit": "L"}`)},
	}
	inv := &fakeInventory{
		batches: []models.Batch{{ID: 1, ItemName: "Milk", Quantity: 1, Unit: "L"}},
	}
	a, _ := newTestAgent(ext, inv)

	result, err := a.RunTurn(context.Background(), TurnInput{Text: "喝了500ml牛奶", UserID: "u1"})
	require.NoError(t, err)

	assert.Equal(t, models.StatusAwaitingConfirm, result.Status)
	assert.Contains(t, result.Response, "系统将执行以下操作")
	assert.Contains(t, result.Response, "[是/否]")
}

func TestCancelClearsPending(t *testing.T) {
	ext := &fakeExtractor{
		ops: []llm.RawOperation{rawOp("DISCARD", `{"batch_id": 3}`)},
	}
	inv := &fakeInventory{}
	a, cps := newTestAgent(ext, inv)
	ctx := context.Background()

	result, err := a.RunTurn(ctx, TurnInput{Text: "throw away batch 3", UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusAwaitingConfirm, result.Status)

	result, err = a.RunTurn(ctx, TurnInput{Text: "cancel", UserID: "u1", ThreadID: "thread-1"})
	require.NoError(t, err)

	assert.Equal(t, models.StatusCompleted, result.Status)
	assert.Contains(t, result.Response, "cancelled")
	assert.Empty(t, inv.discarded)
	assert.Contains(t, cps.completed, "thread-1")
}

func TestExplicitConfirmFlagBypassesText(t *testing.T) {
	ext := &fakeExtractor{
		ops: []llm.RawOperation{rawOp("CONSUME", `{"item_name": "Milk", "amount": 0.5, "unit": "L"}`)},
	}
	inv := &fakeInventory{
		batches: []models.Batch{{ID: 1, ItemName: "Milk", Quantity: 1, Unit: "L"}},
		consumeResult: &models.ConsumeResult{
			Success: true, ConsumedAmount: 0.5, Message: "Successfully consumed 0.5 Milk",
		},
	}
	a, _ := newTestAgent(ext, inv)
	ctx := context.Background()

	result, err := a.RunTurn(ctx, TurnInput{Text: "drank 500ml of milk", UserID: "u1"})
	require.NoError(t, err)
	require.Equal(t, models.StatusAwaitingConfirm, result.Status)

	// No message text at all, just the flag
	yes := true
	result, err = a.RunTurn(ctx, TurnInput{UserID: "u1", ThreadID: "thread-1", Confirm: &yes})
	require.NoError(t, err)

	assert.Equal(t, models.StatusCompleted, result.Status)
	require.Len(t, inv.consumed, 1)
}

func TestExplicitCancelFlag(t *testing.T) {
	ext := &fakeExtractor{
		ops: []llm.RawOperation{rawOp("DISCARD", `{"batch_id": 3}`)},
	}
	inv := &fakeInventory{}
	a, _ := newTestAgent(ext, inv)
	ctx := context.Background()

	_, err := a.RunTurn(ctx, TurnInput{Text: "throw away batch 3", UserID: "u1"})
	require.NoError(t, err)

	no := false
	result, err := a.RunTurn(ctx, TurnInput{UserID: "u1", ThreadID: "thread-1", Confirm: &no})
	require.NoError(t, err)

	assert.Equal(t, models.StatusCompleted, result.Status)
	assert.Contains(t, result.Response, "cancelled")
	assert.Empty(t, inv.discarded)
}

func TestNegationCancelsWithCorrectionMessage(t *testing.T) {
	ext := &fakeExtractor{
		ops: []llm.RawOperation{rawOp("CONSUME", `{"item_name": "Milk", "amount": 1}`)},
	}
	inv := &fakeInventory{batches: []models.Batch{{ID: 1, ItemName: "Milk", Quantity: 2, Unit: "L"}}}
	a, _ := newTestAgent(ext, inv)
	ctx := context.Background()

	_, err := a.RunTurn(ctx, TurnInput{Text: "喝了一升牛奶", UserID: "u1"})
	require.NoError(t, err)

	result, err := a.RunTurn(ctx, TurnInput{Text: "不对，是两升", UserID: "u1", ThreadID: "thread-1"})
	require.NoError(t, err)

	assert.Equal(t, models.StatusCompleted, result.Status)
	assert.Contains(t, result.Response, "请重新告诉我")
	assert.Empty(t, inv.consumed)
}

func TestUnclearReplyReasks(t *testing.T) {
	ext := &fakeExtractor{
		ops: []llm.RawOperation{rawOp("CONSUME", `{"item_name": "Milk", "amount": 1}`)},
	}
	inv := &fakeInventory{batches: []models.Batch{{ID: 1, ItemName: "Milk", Quantity: 2, Unit: "L"}}}
	a, cps := newTestAgent(ext, inv)
	ctx := context.Background()

	_, err := a.RunTurn(ctx, TurnInput{Text: "drank a liter of milk", UserID: "u1"})
	require.NoError(t, err)

	result, err := a.RunTurn(ctx, TurnInput{Text: "what will this do?", UserID: "u1", ThreadID: "thread-1"})
	require.NoError(t, err)

	assert.Equal(t, models.StatusAwaitingConfirm, result.Status)
	assert.Contains(t, result.Response, "'yes' or 'no'")
	assert.Contains(t, cps.active, "thread-1", "thread stays resumable")
	assert.Empty(t, inv.consumed)

	// Still confirmable afterwards.
	result, err = a.RunTurn(ctx, TurnInput{Text: "confirm", UserID: "u1", ThreadID: "thread-1"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, result.Status)
	assert.Len(t, inv.consumed, 1)
}

func TestOperationCapTruncatesToFive(t *testing.T) {
	var ops []llm.RawOperation
	for i := 0; i < 7; i++ {
		ops = append(ops, rawOp("ADD", fmt.Sprintf(
			`{"item_name": "Item %d", "quantity": 1, "unit": "pcs", "expiry_date": "2026-09-01"}`, i)))
	}
	ext := &fakeExtractor{ops: ops}
	inv := &fakeInventory{}
	a, _ := newTestAgent(ext, inv)

	result, err := a.RunTurn(context.Background(), TurnInput{Text: "big shopping trip", UserID: "u1"})
	require.NoError(t, err)

	assert.Equal(t, models.StatusCompleted, result.Status)
	assert.Len(t, inv.added, models.MaxPendingOperations)
}

func TestExtractionFallbackRunsQuery(t *testing.T) {
	ext := &fakeExtractor{
		ops: []llm.RawOperation{rawOp("QUERY", `{}`)},
	}
	inv := &fakeInventory{
		batches: []models.Batch{{ID: 1, ItemName: "Milk", Quantity: 1, Unit: "L"}},
	}
	a, _ := newTestAgent(ext, inv)

	result, err := a.RunTurn(context.Background(), TurnInput{Text: "asdfgh", UserID: "u1"})
	require.NoError(t, err)

	assert.Equal(t, models.StatusCompleted, result.Status)
	assert.Contains(t, result.Response, "Current Inventory:")
	assert.Contains(t, result.Response, "Milk")
}

func TestFailedConsumeReportsDomainError(t *testing.T) {
	ext := &fakeExtractor{
		ops: []llm.RawOperation{rawOp("CONSUME", `{"item_name": "Milk", "amount": 5}`)},
	}
	inv := &fakeInventory{
		batches: []models.Batch{{ID: 1, ItemName: "Milk", Quantity: 1, Unit: "L"}},
		consumeResult: &models.ConsumeResult{
			Success: false,
			Message: "Insufficient stock. Available: 1, Requested: 5",
		},
	}
	a, _ := newTestAgent(ext, inv)
	ctx := context.Background()

	_, err := a.RunTurn(ctx, TurnInput{Text: "drank 5 liters of milk", UserID: "u1"})
	require.NoError(t, err)

	result, err := a.RunTurn(ctx, TurnInput{Text: "yes", UserID: "u1", ThreadID: "thread-1"})
	require.NoError(t, err)

	// A domain failure is a normal reply, not an agent error.
	assert.Equal(t, models.StatusCompleted, result.Status)
	assert.Contains(t, result.Response, "❌")
	assert.Contains(t, result.Response, "Insufficient stock")
}

func TestAskMoreFallsBackWhenModelFails(t *testing.T) {
	ext := &fakeExtractor{
		ops:    []llm.RawOperation{rawOp("ADD", `{"item_name": "Milk"}`)},
		askErr: fmt.Errorf("model offline"),
	}
	inv := &fakeInventory{}
	a, _ := newTestAgent(ext, inv)

	result, err := a.RunTurn(context.Background(), TurnInput{Text: "bought milk", UserID: "u1"})
	require.NoError(t, err)

	assert.Equal(t, models.StatusAwaitingInfo, result.Status)
	assert.Contains(t, result.Response, "quantity")
	assert.Contains(t, result.Response, "Milk")
}

func TestFreshThreadAfterCompletion(t *testing.T) {
	ext := &fakeExtractor{
		ops: []llm.RawOperation{rawOp("QUERY", `{}`)},
	}
	inv := &fakeInventory{}
	a, _ := newTestAgent(ext, inv)
	ctx := context.Background()

	result, err := a.RunTurn(ctx, TurnInput{Text: "what do I have", UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, result.Status)

	// Reusing the same thread id starts a fresh conversation; the store
	// returns no active checkpoint for completed threads.
	result, err = a.RunTurn(ctx, TurnInput{Text: "what do I have now", UserID: "u1", ThreadID: "thread-1"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, result.Status)
}

func TestEmptyMessageRejected(t *testing.T) {
	a, _ := newTestAgent(&fakeExtractor{}, &fakeInventory{})
	_, err := a.RunTurn(context.Background(), TurnInput{UserID: "u1"})
	require.Error(t, err)
}
