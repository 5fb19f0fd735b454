package models

import "time"

// TransactionLogEntry is an immutable audit record of one inventory
// mutation. Append-only: the store exposes no update or delete for these.
type TransactionLogEntry struct {
	ID               int64          `json:"id"`
	UserID           string         `json:"user_id"`
	Intent           string         `json:"intent"`
	RawInput         *string        `json:"raw_input,omitempty"`
	Reasoning        *string        `json:"ai_reasoning,omitempty"`
	OperationDetails map[string]any `json:"operation_details,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
}
