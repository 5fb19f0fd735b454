package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/surrealdb/surrealdb.go"

	"github.com/raphaelgruber/kitchenloop-go/internal/models"
)

// Conversation checkpoint statuses as stored.
const (
	checkpointActive    = "active"
	checkpointCompleted = "completed"
)

type conversationRow struct {
	UserID         string `json:"user_id"`
	Status         string `json:"status"`
	CheckpointJSON string `json:"checkpoint_json"`
}

// GetCheckpoint loads the active checkpoint for a thread. Returns nil (no
// error) when the thread is unknown or already completed; in both cases the
// caller starts a fresh conversation.
func (c *Client) GetCheckpoint(ctx context.Context, threadID string) (*models.ConversationState, error) {
	results, err := surrealdb.Query[[]conversationRow](ctx, c.db, `
		SELECT user_id, status, checkpoint_json
		FROM type::record("conversation", $thread_id)
		WHERE status = $status
	`, map[string]any{"thread_id": threadID, "status": checkpointActive})
	if err != nil {
		return nil, fmt.Errorf("get checkpoint: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, nil
	}

	var state models.ConversationState
	if err := json.Unmarshal([]byte((*results)[0].Result[0].CheckpointJSON), &state); err != nil {
		return nil, fmt.Errorf("decode checkpoint: %w", err)
	}
	return &state, nil
}

// PutCheckpoint upserts the active checkpoint for a thread so the next turn
// can resume mid-conversation.
func (c *Client) PutCheckpoint(ctx context.Context, state *models.ConversationState) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}

	_, err = surrealdb.Query[any](ctx, c.db, `
		UPSERT type::record("conversation", $thread_id) SET
			user_id = $user_id,
			status = $status,
			checkpoint_json = $checkpoint,
			updated_at = time::now()
	`, map[string]any{
		"thread_id":  state.ThreadID,
		"user_id":    state.UserID,
		"status":     checkpointActive,
		"checkpoint": string(payload),
	})
	if err != nil {
		return fmt.Errorf("put checkpoint: %w", wrapQueryError(err))
	}
	return nil
}

// CompleteCheckpoint marks a thread finished, retaining the final message
// history for audit. A completed thread id cannot be resumed; a new request
// with the same id starts a fresh conversation.
func (c *Client) CompleteCheckpoint(ctx context.Context, threadID, userID string, finalHistory []models.Message) error {
	payload, err := json.Marshal(map[string]any{"messages": finalHistory})
	if err != nil {
		return fmt.Errorf("encode final history: %w", err)
	}

	_, err = surrealdb.Query[any](ctx, c.db, `
		UPSERT type::record("conversation", $thread_id) SET
			user_id = $user_id,
			status = $status,
			checkpoint_json = $checkpoint,
			updated_at = time::now()
	`, map[string]any{
		"thread_id":  threadID,
		"user_id":    userID,
		"status":     checkpointCompleted,
		"checkpoint": string(payload),
	})
	if err != nil {
		return fmt.Errorf("complete checkpoint: %w", wrapQueryError(err))
	}
	return nil
}
