package db

import (
	"context"
	"fmt"
	"time"

	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/raphaelgruber/kitchenloop-go/internal/models"
)

type transactionLogRow struct {
	ID               surrealmodels.RecordID `json:"id"`
	UserID           string                 `json:"user_id"`
	Intent           string                 `json:"intent"`
	RawInput         *string                `json:"raw_input,omitempty"`
	Reasoning        *string                `json:"ai_reasoning,omitempty"`
	OperationDetails map[string]any         `json:"operation_details,omitempty"`
	CreatedAt        time.Time              `json:"created_at"`
}

func (r transactionLogRow) toModel() (models.TransactionLogEntry, error) {
	id, err := recordIDInt64(r.ID)
	if err != nil {
		return models.TransactionLogEntry{}, err
	}
	return models.TransactionLogEntry{
		ID:               id,
		UserID:           r.UserID,
		Intent:           r.Intent,
		RawInput:         r.RawInput,
		Reasoning:        r.Reasoning,
		OperationDetails: r.OperationDetails,
		CreatedAt:        r.CreatedAt,
	}, nil
}

// AppendTransactionLog stores one immutable audit entry and returns it.
// The table is append-only; no update or delete is exposed.
func (c *Client) AppendTransactionLog(ctx context.Context, entry models.TransactionLogEntry) (*models.TransactionLogEntry, error) {
	sql := `
		BEGIN TRANSACTION;
		LET $next = (math::max(SELECT VALUE record::id(id) FROM transaction_logs) ?? 0) + 1;
		CREATE type::record("transaction_logs", $next) CONTENT {
			user_id: $user_id,
			intent: $intent,
			raw_input: $raw_input,
			ai_reasoning: $ai_reasoning,
			operation_details: $operation_details
		} RETURN AFTER;
		COMMIT TRANSACTION;
	`

	results, err := surrealdb.Query[[]transactionLogRow](ctx, c.db, sql, map[string]any{
		"user_id":           entry.UserID,
		"intent":            entry.Intent,
		"raw_input":         entry.RawInput,
		"ai_reasoning":      entry.Reasoning,
		"operation_details": entry.OperationDetails,
	})
	if err != nil {
		return nil, fmt.Errorf("append transaction log: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 {
		return nil, fmt.Errorf("append transaction log: no result returned")
	}
	last := (*results)[len(*results)-1]
	if len(last.Result) == 0 {
		return nil, fmt.Errorf("append transaction log: no row returned")
	}
	stored, err := last.Result[0].toModel()
	if err != nil {
		return nil, err
	}
	return &stored, nil
}

// ListTransactionLogs returns the user's most recent audit entries,
// newest first.
func (c *Client) ListTransactionLogs(ctx context.Context, userID string, limit int) ([]models.TransactionLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	results, err := surrealdb.Query[[]transactionLogRow](ctx, c.db, `
		SELECT * FROM transaction_logs WHERE user_id = $user_id
		ORDER BY created_at DESC LIMIT $limit
	`, map[string]any{"user_id": userID, "limit": limit})
	if err != nil {
		return nil, fmt.Errorf("list transaction logs: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 {
		return []models.TransactionLogEntry{}, nil
	}
	entries := make([]models.TransactionLogEntry, 0, len((*results)[0].Result))
	for _, row := range (*results)[0].Result {
		e, err := row.toModel()
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}
