// Package service provides the business logic for inventory operations.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/raphaelgruber/kitchenloop-go/internal/fefo"
	"github.com/raphaelgruber/kitchenloop-go/internal/models"
)

// Store is the persistence surface the inventory service needs.
// *db.Client satisfies it.
type Store interface {
	ListBatches(ctx context.Context, userID string, filter models.BatchFilter) ([]models.Batch, error)
	GetBatch(ctx context.Context, userID string, id int64) (*models.Batch, error)
	InsertBatch(ctx context.Context, userID string, create models.BatchCreate) (*models.Batch, error)
	UpdateBatch(ctx context.Context, userID string, id int64, patch models.BatchPatch) (*models.Batch, error)
	DeleteBatch(ctx context.Context, userID string, id int64) (*models.Batch, error)
	ApplyConsumePlan(ctx context.Context, userID string, updates []models.BatchStateUpdate) error
}

// AuditLog is the append-only transaction trail. *db.Client satisfies it.
type AuditLog interface {
	AppendTransactionLog(ctx context.Context, entry models.TransactionLogEntry) (*models.TransactionLogEntry, error)
	ListTransactionLogs(ctx context.Context, userID string, limit int) ([]models.TransactionLogEntry, error)
}

// Trace carries the conversational provenance of a mutation into the audit
// trail: what the user literally said and what the model made of it.
type Trace struct {
	RawInput  *string
	Reasoning *string
}

// Inventory implements the inventory operations behind the conversation
// agent, the MCP tools and the CLI.
type Inventory struct {
	store  Store
	audit  AuditLog
	logger *slog.Logger
}

// NewInventory creates a new inventory service.
func NewInventory(store Store, audit AuditLog, logger *slog.Logger) *Inventory {
	return &Inventory{store: store, audit: audit, logger: logger}
}

// DefaultLocation is where new batches land when the user names no location.
const DefaultLocation = "Fridge"

// Add inserts a new batch from extracted ADD fields. Location defaults to
// the fridge; total_volume records the package size, which for a fresh
// unopened batch equals its quantity.
func (s *Inventory) Add(ctx context.Context, userID string, f *models.AddFields, trace Trace) (*models.Batch, error) {
	if missing := f.Missing(); len(missing) > 0 {
		return nil, fmt.Errorf("add: missing required fields: %v", missing)
	}

	expiry, err := parseExpiry(f.ExpiryDate)
	if err != nil {
		return nil, fmt.Errorf("add: %w", err)
	}

	location := DefaultLocation
	if f.Location != nil && *f.Location != "" {
		location = *f.Location
	}

	quantity := models.Round3(*f.Quantity)
	batch, err := s.store.InsertBatch(ctx, userID, models.BatchCreate{
		ItemName:    *f.ItemName,
		Brand:       f.Brand,
		Quantity:    quantity,
		TotalVolume: quantity,
		Unit:        *f.Unit,
		Category:    f.Category,
		ExpiryDate:  expiry,
		IsOpen:      false,
		Location:    location,
	})
	if err != nil {
		return nil, err
	}

	s.logTransaction(ctx, userID, "INBOUND", trace, map[string]any{
		"action":    "add",
		"batch_id":  batch.ID,
		"item_name": batch.ItemName,
		"quantity":  batch.Quantity,
		"unit":      batch.Unit,
		"location":  batch.Location,
	})
	return batch, nil
}

// Consume runs the FEFO cascade for extracted CONSUME fields. Domain
// failures (no matching stock, not enough stock) return Success=false with
// a message; only infrastructure problems surface as errors.
//
// The plan is derived from a snapshot read inside this call, never from a
// preview computed earlier, and all batch updates are applied in a single
// transaction.
func (s *Inventory) Consume(ctx context.Context, userID string, f *models.ConsumeFields, trace Trace) (*models.ConsumeResult, error) {
	if missing := f.Missing(); len(missing) > 0 {
		return nil, fmt.Errorf("consume: missing required fields: %v", missing)
	}
	itemName, amount := *f.ItemName, models.Round3(*f.Amount)

	batches, err := s.store.ListBatches(ctx, userID, models.BatchFilter{
		ItemName:     &itemName,
		Brand:        f.Brand,
		PositiveOnly: true,
	})
	if err != nil {
		return nil, err
	}

	if len(batches) == 0 {
		msg := fmt.Sprintf("No available batches found for '%s'", itemName)
		if f.Brand != nil {
			// Distinguish "wrong brand" from "no such item" so the user
			// knows whether dropping the brand would help.
			unfiltered, err := s.store.ListBatches(ctx, userID, models.BatchFilter{
				ItemName:     &itemName,
				PositiveOnly: true,
			})
			if err != nil {
				return nil, err
			}
			if len(unfiltered) > 0 {
				msg = fmt.Sprintf("No available batches of brand '%s' for '%s'", *f.Brand, itemName)
			}
		}
		return &models.ConsumeResult{
			Success:            false,
			RemainingToConsume: amount,
			AffectedBatches:    []models.AffectedBatch{},
			Message:            msg,
		}, nil
	}

	total := fefo.TotalAvailable(batches)
	if total < amount {
		return &models.ConsumeResult{
			Success:            false,
			RemainingToConsume: amount,
			AffectedBatches:    []models.AffectedBatch{},
			Message:            fmt.Sprintf("Insufficient stock. Available: %v, Requested: %v", total, amount),
		}, nil
	}

	steps := fefo.Plan(batches, itemName, amount, f.Brand)
	updates := make([]models.BatchStateUpdate, 0, len(steps))
	affected := make([]models.AffectedBatch, 0, len(steps))
	for _, step := range steps {
		newQty, isOpen := step.NewQuantity, true
		if models.Depleted(newQty) {
			// A drained batch is closed, not deleted; it stays for history.
			newQty, isOpen = 0, false
		}
		updates = append(updates, models.BatchStateUpdate{
			BatchID:  step.BatchID,
			Quantity: newQty,
			IsOpen:   isOpen,
		})
		affected = append(affected, models.AffectedBatch{
			BatchID:     step.BatchID,
			Brand:       step.Brand,
			ExpiryDate:  step.ExpiryDate,
			Deducted:    step.DeductAmount,
			OldQuantity: step.CurrentQuantity,
			NewQuantity: newQty,
		})
	}

	if err := s.store.ApplyConsumePlan(ctx, userID, updates); err != nil {
		return nil, err
	}

	consumed := fefo.Planned(steps)
	s.logTransaction(ctx, userID, "CONSUME", trace, map[string]any{
		"item_name":        itemName,
		"brand_filter":     f.Brand,
		"requested_amount": amount,
		"consumed_amount":  consumed,
		"affected_batches": affected,
	})

	return &models.ConsumeResult{
		Success:            true,
		ConsumedAmount:     consumed,
		RemainingToConsume: models.Round3(amount - consumed),
		AffectedBatches:    affected,
		Message:            fmt.Sprintf("Successfully consumed %v %s", consumed, itemName),
	}, nil
}

// Discard removes batches for extracted DISCARD fields. A batch id removes
// that one batch; an item name without an id removes every remaining batch
// of the item. Returns the removed batches.
func (s *Inventory) Discard(ctx context.Context, userID string, f *models.DiscardFields, trace Trace) ([]models.Batch, error) {
	if missing := f.Missing(); len(missing) > 0 {
		return nil, fmt.Errorf("discard: missing required fields: %v", missing)
	}

	var targets []int64
	if f.BatchID != nil {
		targets = []int64{*f.BatchID}
	} else {
		batches, err := s.store.ListBatches(ctx, userID, models.BatchFilter{
			ItemName:     f.ItemName,
			PositiveOnly: true,
		})
		if err != nil {
			return nil, err
		}
		if len(batches) == 0 {
			return nil, fmt.Errorf("discard: no batches found for '%s'", *f.ItemName)
		}
		for _, b := range batches {
			targets = append(targets, b.ID)
		}
	}

	var removed []models.Batch
	for _, id := range targets {
		batch, err := s.store.DeleteBatch(ctx, userID, id)
		if err != nil {
			return removed, fmt.Errorf("discard batch %d: %w", id, err)
		}
		removed = append(removed, *batch)
		s.logTransaction(ctx, userID, "DISCARD", trace, map[string]any{
			"action":             "discard",
			"batch_id":           batch.ID,
			"item_name":          batch.ItemName,
			"remaining_quantity": batch.Quantity,
			"reason":             f.Reason,
		})
	}
	return removed, nil
}

// Update applies a correction to one batch from extracted UPDATE fields.
func (s *Inventory) Update(ctx context.Context, userID string, f *models.UpdateFields, trace Trace) (*models.Batch, error) {
	if missing := f.Missing(); len(missing) > 0 {
		return nil, fmt.Errorf("update: missing required fields: %v", missing)
	}

	expiry, err := parseExpiry(f.ExpiryDate)
	if err != nil {
		return nil, fmt.Errorf("update: %w", err)
	}

	patch := models.BatchPatch{
		Brand:      f.Brand,
		Category:   f.Category,
		ExpiryDate: expiry,
		IsOpen:     f.IsOpen,
		Location:   f.Location,
	}
	if f.Quantity != nil {
		q := models.Round3(*f.Quantity)
		patch.Quantity = &q
	}

	batch, err := s.store.UpdateBatch(ctx, userID, *f.BatchID, patch)
	if err != nil {
		return nil, err
	}

	s.logTransaction(ctx, userID, "UPDATE", trace, map[string]any{
		"action":    "update",
		"batch_id":  batch.ID,
		"item_name": batch.ItemName,
		"quantity":  batch.Quantity,
	})
	return batch, nil
}

// QueryGrouped returns the available inventory folded into per-item groups,
// optionally narrowed to one item. Depleted batches are excluded.
func (s *Inventory) QueryGrouped(ctx context.Context, userID string, itemName *string) ([]models.InventoryGroup, error) {
	batches, err := s.store.ListBatches(ctx, userID, models.BatchFilter{
		ItemName:     itemName,
		PositiveOnly: true,
	})
	if err != nil {
		return nil, err
	}
	return models.GroupBatches(batches), nil
}

// AvailableBatches returns the positive-quantity batches of one item, the
// snapshot a consumption preview plans against.
func (s *Inventory) AvailableBatches(ctx context.Context, userID, itemName string) ([]models.Batch, error) {
	return s.store.ListBatches(ctx, userID, models.BatchFilter{
		ItemName:     &itemName,
		PositiveOnly: true,
	})
}

// ListAll returns every batch including depleted ones, for history views.
func (s *Inventory) ListAll(ctx context.Context, userID string) ([]models.Batch, error) {
	return s.store.ListBatches(ctx, userID, models.BatchFilter{})
}

// GetBatch returns one batch by id.
func (s *Inventory) GetBatch(ctx context.Context, userID string, id int64) (*models.Batch, error) {
	return s.store.GetBatch(ctx, userID, id)
}

// Logs returns the user's most recent audit entries, newest first.
func (s *Inventory) Logs(ctx context.Context, userID string, limit int) ([]models.TransactionLogEntry, error) {
	return s.audit.ListTransactionLogs(ctx, userID, limit)
}

// logTransaction appends an audit entry. Audit failures are logged and
// swallowed; the operation they describe has already committed.
func (s *Inventory) logTransaction(ctx context.Context, userID, intent string, trace Trace, details map[string]any) {
	_, err := s.audit.AppendTransactionLog(ctx, models.TransactionLogEntry{
		UserID:           userID,
		Intent:           intent,
		RawInput:         trace.RawInput,
		Reasoning:        trace.Reasoning,
		OperationDetails: details,
	})
	if err != nil {
		s.logger.Error("failed to append transaction log", "intent", intent, "error", err)
	}
}

func parseExpiry(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", *s)
	if err != nil {
		return nil, fmt.Errorf("invalid expiry date %q (want YYYY-MM-DD)", *s)
	}
	return &t, nil
}
