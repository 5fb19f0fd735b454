// Package db provides integration tests for SurrealDB operations.
package db

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/raphaelgruber/kitchenloop-go/internal/models"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var testDB *Client
var testContainer testcontainers.Container

// TestMain sets up and tears down the SurrealDB container for all tests.
func TestMain(m *testing.M) {
	// Disable ryuk (cleanup container) as it can cause issues in some environments
	os.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")

	ctx := context.Background()

	// Start SurrealDB container
	var err error
	testContainer, err = testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "surrealdb/surrealdb:v3.0.0-beta.1",
			ExposedPorts: []string{"8000/tcp"},
			Cmd:          []string{"start", "--log", "info", "--user", "root", "--pass", "root"},
			WaitingFor:   wait.ForLog("Started web server").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		log.Fatalf("Failed to start SurrealDB container: %v", err)
	}

	// Get container host and port
	host, err := testContainer.Host(ctx)
	if err != nil {
		log.Fatalf("Failed to get container host: %v", err)
	}
	// Workaround: testcontainers may return "null" as host in some environments
	if host == "" || host == "null" {
		host = "localhost"
	}
	mappedPort, err := testContainer.MappedPort(ctx, "8000")
	if err != nil {
		log.Fatalf("Failed to get mapped port: %v", err)
	}

	// Connect to test database
	testDB, err = NewClient(ctx, Config{
		URL:       fmt.Sprintf("ws://%s:%s/rpc", host, mappedPort.Port()),
		Namespace: "test",
		Database:  "test",
		Username:  "root",
		Password:  "root",
		AuthLevel: "root",
	}, nil)
	if err != nil {
		log.Fatalf("Failed to connect to test database: %v", err)
	}

	// Initialize schema
	if err := testDB.InitSchema(ctx); err != nil {
		log.Fatalf("Failed to initialize schema: %v", err)
	}

	// Run tests
	code := m.Run()

	// Cleanup
	_ = testDB.Close(ctx)
	_ = testContainer.Terminate(ctx)

	os.Exit(code)
}

func mustInsertBatch(t *testing.T, userID string, create models.BatchCreate) *models.Batch {
	t.Helper()
	batch, err := testDB.InsertBatch(context.Background(), userID, create)
	if err != nil {
		t.Fatalf("InsertBatch failed: %v", err)
	}
	t.Cleanup(func() {
		_, _ = testDB.DeleteBatch(context.Background(), userID, batch.ID)
	})
	return batch
}

func datePtr(y int, m time.Month, d int) *time.Time {
	dt := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &dt
}

func strPtr(s string) *string { return &s }

// =============================================================================
// INVENTORY TESTS
// =============================================================================

func TestInsertAndGetBatch(t *testing.T) {
	ctx := context.Background()

	batch := mustInsertBatch(t, "user-insert", models.BatchCreate{
		ItemName:    "Milk",
		Brand:       strPtr("Anchor"),
		Quantity:    1,
		TotalVolume: 1,
		Unit:        "L",
		Category:    strPtr("Dairy"),
		ExpiryDate:  datePtr(2026, time.September, 5),
		Location:    "Fridge",
	})

	if batch.ID <= 0 {
		t.Errorf("Expected positive numeric id, got %d", batch.ID)
	}
	if batch.ItemName != "Milk" {
		t.Errorf("Expected item name 'Milk', got %q", batch.ItemName)
	}
	if batch.Brand == nil || *batch.Brand != "Anchor" {
		t.Errorf("Expected brand 'Anchor', got %v", batch.Brand)
	}
	if batch.IsOpen {
		t.Error("New batch should start sealed")
	}

	// Get by id
	fetched, err := testDB.GetBatch(ctx, "user-insert", batch.ID)
	if err != nil {
		t.Fatalf("GetBatch failed: %v", err)
	}
	if fetched.Quantity != 1 {
		t.Errorf("Expected quantity 1, got %v", fetched.Quantity)
	}
	if fetched.ExpiryDate == nil || !fetched.ExpiryDate.Equal(*batch.ExpiryDate) {
		t.Errorf("Expiry date mismatch: got %v", fetched.ExpiryDate)
	}

	// Other users must not see it
	_, err = testDB.GetBatch(ctx, "someone-else", batch.ID)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for foreign user, got %v", err)
	}
}

func TestInsertBatchSequentialIDs(t *testing.T) {
	first := mustInsertBatch(t, "user-seq", models.BatchCreate{
		ItemName: "Eggs", Quantity: 12, TotalVolume: 12, Unit: "pcs", Location: "Fridge",
	})
	second := mustInsertBatch(t, "user-seq", models.BatchCreate{
		ItemName: "Eggs", Quantity: 6, TotalVolume: 6, Unit: "pcs", Location: "Fridge",
	})

	if second.ID != first.ID+1 {
		t.Errorf("Expected sequential ids, got %d then %d", first.ID, second.ID)
	}
}

func TestListBatchesFilters(t *testing.T) {
	ctx := context.Background()
	user := "user-list"

	mustInsertBatch(t, user, models.BatchCreate{
		ItemName: "Milk", Brand: strPtr("Anchor"), Quantity: 1, TotalVolume: 1, Unit: "L", Location: "Fridge",
	})
	mustInsertBatch(t, user, models.BatchCreate{
		ItemName: "Milk", Brand: strPtr("Meadow"), Quantity: 0, TotalVolume: 1, Unit: "L", Location: "Fridge",
	})
	mustInsertBatch(t, user, models.BatchCreate{
		ItemName: "Butter", Quantity: 0.5, TotalVolume: 0.5, Unit: "kg", Location: "Fridge",
	})

	// All batches for user
	all, err := testDB.ListBatches(ctx, user, models.BatchFilter{})
	if err != nil {
		t.Fatalf("ListBatches failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("Expected 3 batches, got %d", len(all))
	}

	// Case-insensitive item name
	milk, err := testDB.ListBatches(ctx, user, models.BatchFilter{ItemName: strPtr("milk")})
	if err != nil {
		t.Fatalf("ListBatches by item failed: %v", err)
	}
	if len(milk) != 2 {
		t.Errorf("Expected 2 milk batches, got %d", len(milk))
	}

	// Brand filter, case-insensitive
	anchor, err := testDB.ListBatches(ctx, user, models.BatchFilter{ItemName: strPtr("Milk"), Brand: strPtr("anchor")})
	if err != nil {
		t.Fatalf("ListBatches by brand failed: %v", err)
	}
	if len(anchor) != 1 {
		t.Errorf("Expected 1 Anchor batch, got %d", len(anchor))
	}

	// Depleted batches drop out of positive-only views
	available, err := testDB.ListBatches(ctx, user, models.BatchFilter{ItemName: strPtr("Milk"), PositiveOnly: true})
	if err != nil {
		t.Fatalf("ListBatches positive-only failed: %v", err)
	}
	if len(available) != 1 {
		t.Errorf("Expected 1 available milk batch, got %d", len(available))
	}

	// Unknown user sees nothing
	none, err := testDB.ListBatches(ctx, "nobody", models.BatchFilter{})
	if err != nil {
		t.Fatalf("ListBatches for unknown user failed: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("Expected no batches for unknown user, got %d", len(none))
	}
}

func TestUpdateBatch(t *testing.T) {
	ctx := context.Background()
	user := "user-update"

	batch := mustInsertBatch(t, user, models.BatchCreate{
		ItemName: "Yogurt", Quantity: 4, TotalVolume: 4, Unit: "pcs", Location: "Fridge",
	})

	qty := 2.0
	open := true
	updated, err := testDB.UpdateBatch(ctx, user, batch.ID, models.BatchPatch{
		Quantity: &qty,
		IsOpen:   &open,
		Location: strPtr("Freezer"),
	})
	if err != nil {
		t.Fatalf("UpdateBatch failed: %v", err)
	}
	if updated.Quantity != 2 {
		t.Errorf("Expected quantity 2, got %v", updated.Quantity)
	}
	if !updated.IsOpen {
		t.Error("Expected batch to be open")
	}
	if updated.Location != "Freezer" {
		t.Errorf("Expected location 'Freezer', got %q", updated.Location)
	}
	// Untouched fields survive the merge
	if updated.ItemName != "Yogurt" || updated.Unit != "pcs" {
		t.Errorf("Patch clobbered unrelated fields: %+v", updated)
	}

	// Foreign user cannot update
	_, err = testDB.UpdateBatch(ctx, "someone-else", batch.ID, models.BatchPatch{Quantity: &qty})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for foreign user, got %v", err)
	}
}

func TestDeleteBatch(t *testing.T) {
	ctx := context.Background()
	user := "user-delete"

	batch, err := testDB.InsertBatch(ctx, user, models.BatchCreate{
		ItemName: "Bread", Quantity: 1, TotalVolume: 1, Unit: "pcs", Location: "Pantry",
	})
	if err != nil {
		t.Fatalf("InsertBatch failed: %v", err)
	}

	deleted, err := testDB.DeleteBatch(ctx, user, batch.ID)
	if err != nil {
		t.Fatalf("DeleteBatch failed: %v", err)
	}
	if deleted.ItemName != "Bread" {
		t.Errorf("Expected deleted row back, got %+v", deleted)
	}

	// Verify gone
	_, err = testDB.GetBatch(ctx, user, batch.ID)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}

	// Delete non-existent
	_, err = testDB.DeleteBatch(ctx, user, batch.ID)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for repeated delete, got %v", err)
	}
}

func TestApplyConsumePlan(t *testing.T) {
	ctx := context.Background()
	user := "user-plan"

	open := mustInsertBatch(t, user, models.BatchCreate{
		ItemName: "Milk", Quantity: 0.3, TotalVolume: 1, Unit: "L", IsOpen: true, Location: "Fridge",
	})
	sealed := mustInsertBatch(t, user, models.BatchCreate{
		ItemName: "Milk", Quantity: 1, TotalVolume: 1, Unit: "L", Location: "Fridge",
	})

	// Drain the open batch, break into the sealed one
	err := testDB.ApplyConsumePlan(ctx, user, []models.BatchStateUpdate{
		{BatchID: open.ID, Quantity: 0, IsOpen: false},
		{BatchID: sealed.ID, Quantity: 0.8, IsOpen: true},
	})
	if err != nil {
		t.Fatalf("ApplyConsumePlan failed: %v", err)
	}

	drained, err := testDB.GetBatch(ctx, user, open.ID)
	if err != nil {
		t.Fatalf("GetBatch after plan failed: %v", err)
	}
	if drained.Quantity != 0 || drained.IsOpen {
		t.Errorf("Drained batch should be empty and closed, got qty=%v open=%v", drained.Quantity, drained.IsOpen)
	}

	touched, err := testDB.GetBatch(ctx, user, sealed.ID)
	if err != nil {
		t.Fatalf("GetBatch after plan failed: %v", err)
	}
	if touched.Quantity != 0.8 || !touched.IsOpen {
		t.Errorf("Touched batch should be 0.8 and open, got qty=%v open=%v", touched.Quantity, touched.IsOpen)
	}

	// Empty plan is a no-op
	if err := testDB.ApplyConsumePlan(ctx, user, nil); err != nil {
		t.Errorf("Empty plan should not error: %v", err)
	}
}

// =============================================================================
// TRANSACTION LOG TESTS
// =============================================================================

func TestTransactionLogs(t *testing.T) {
	ctx := context.Background()
	user := "user-logs"

	raw := "喝了500ml牛奶"
	reasoning := "User consumed half a liter of milk"
	first, err := testDB.AppendTransactionLog(ctx, models.TransactionLogEntry{
		UserID:    user,
		Intent:    "CONSUME",
		RawInput:  &raw,
		Reasoning: &reasoning,
		OperationDetails: map[string]any{
			"item_name": "Milk",
			"amount":    0.5,
		},
	})
	if err != nil {
		t.Fatalf("AppendTransactionLog failed: %v", err)
	}
	if first.ID <= 0 {
		t.Errorf("Expected positive log id, got %d", first.ID)
	}
	if first.RawInput == nil || *first.RawInput != raw {
		t.Errorf("Raw input mismatch: %v", first.RawInput)
	}

	second, err := testDB.AppendTransactionLog(ctx, models.TransactionLogEntry{
		UserID: user,
		Intent: "INBOUND",
	})
	if err != nil {
		t.Fatalf("AppendTransactionLog failed: %v", err)
	}

	// Newest first
	entries, err := testDB.ListTransactionLogs(ctx, user, 10)
	if err != nil {
		t.Fatalf("ListTransactionLogs failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	if entries[0].ID != second.ID {
		t.Errorf("Expected newest entry first, got id %d", entries[0].ID)
	}
	if entries[1].Reasoning == nil || *entries[1].Reasoning != reasoning {
		t.Errorf("Reasoning not persisted: %v", entries[1].Reasoning)
	}

	// Limit applies
	limited, err := testDB.ListTransactionLogs(ctx, user, 1)
	if err != nil {
		t.Fatalf("ListTransactionLogs with limit failed: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("Expected 1 entry with limit, got %d", len(limited))
	}

	// Scoped to user
	other, err := testDB.ListTransactionLogs(ctx, "someone-else", 10)
	if err != nil {
		t.Fatalf("ListTransactionLogs for other user failed: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("Expected no entries for other user, got %d", len(other))
	}
}

// =============================================================================
// CHECKPOINT TESTS
// =============================================================================

func TestCheckpointRoundTrip(t *testing.T) {
	ctx := context.Background()

	// Unknown thread starts fresh
	state, err := testDB.GetCheckpoint(ctx, "unknown-thread")
	if err != nil {
		t.Fatalf("GetCheckpoint for unknown thread failed: %v", err)
	}
	if state != nil {
		t.Error("Unknown thread should return nil state")
	}

	// Store an awaiting-confirm checkpoint with a pending consume
	item := "Milk"
	amount := 0.5
	saved := &models.ConversationState{
		ThreadID: "thread-roundtrip",
		UserID:   "user-cp",
		Messages: []models.Message{
			{Role: "user", Content: "drank 500ml of milk"},
			{Role: "assistant", Content: "Confirm all operations? [Yes/No]"},
		},
		Status: models.StatusAwaitingConfirm,
		Pending: &models.PendingActionSet{
			Operations: []models.PendingOperation{
				{
					Index:  0,
					Fields: &models.ConsumeFields{ItemName: &item, Amount: &amount},
				},
			},
			NeedsConfirmation: true,
			Understanding:     "User drank half a liter of milk",
		},
	}
	if err := testDB.PutCheckpoint(ctx, saved); err != nil {
		t.Fatalf("PutCheckpoint failed: %v", err)
	}

	loaded, err := testDB.GetCheckpoint(ctx, "thread-roundtrip")
	if err != nil {
		t.Fatalf("GetCheckpoint failed: %v", err)
	}
	if loaded == nil {
		t.Fatal("GetCheckpoint returned nil for active thread")
	}
	if loaded.Status != models.StatusAwaitingConfirm {
		t.Errorf("Expected awaiting_confirm, got %s", loaded.Status)
	}
	if len(loaded.Messages) != 2 {
		t.Errorf("Expected 2 messages, got %d", len(loaded.Messages))
	}
	if loaded.Pending == nil || len(loaded.Pending.Operations) != 1 {
		t.Fatalf("Pending operations not restored: %+v", loaded.Pending)
	}
	op := loaded.Pending.Operations[0]
	if op.Fields.Intent() != models.IntentConsume {
		t.Errorf("Expected CONSUME fields, got %s", op.Fields.Intent())
	}
	consume, ok := op.Fields.(*models.ConsumeFields)
	if !ok {
		t.Fatalf("Expected *ConsumeFields, got %T", op.Fields)
	}
	if consume.ItemName == nil || *consume.ItemName != "Milk" {
		t.Errorf("Item name not restored: %v", consume.ItemName)
	}
	if consume.Amount == nil || *consume.Amount != 0.5 {
		t.Errorf("Amount not restored: %v", consume.Amount)
	}
}

func TestCompleteCheckpointEndsThread(t *testing.T) {
	ctx := context.Background()

	state := &models.ConversationState{
		ThreadID: "thread-complete",
		UserID:   "user-cp",
		Messages: []models.Message{{Role: "user", Content: "what's in my fridge?"}},
		Status:   models.StatusProcessing,
	}
	if err := testDB.PutCheckpoint(ctx, state); err != nil {
		t.Fatalf("PutCheckpoint failed: %v", err)
	}

	history := append(state.Messages, models.Message{Role: "assistant", Content: "Inventory is empty."})
	if err := testDB.CompleteCheckpoint(ctx, "thread-complete", "user-cp", history); err != nil {
		t.Fatalf("CompleteCheckpoint failed: %v", err)
	}

	// A completed thread cannot be resumed
	loaded, err := testDB.GetCheckpoint(ctx, "thread-complete")
	if err != nil {
		t.Fatalf("GetCheckpoint after completion failed: %v", err)
	}
	if loaded != nil {
		t.Error("Completed thread should return nil state")
	}
}
