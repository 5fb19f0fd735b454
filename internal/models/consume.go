package models

// AffectedBatch describes one batch touched by a consumption cascade.
type AffectedBatch struct {
	BatchID     int64   `json:"batch_id"`
	Brand       *string `json:"brand,omitempty"`
	ExpiryDate  *string `json:"expiry_date,omitempty"`
	Deducted    float64 `json:"deducted"`
	OldQuantity float64 `json:"old_quantity"`
	NewQuantity float64 `json:"new_quantity"`
}

// ConsumeResult is the structured outcome of a CONSUME. Domain failures
// (nothing matched, insufficient stock) come back as Success=false with a
// human-readable message rather than as errors.
type ConsumeResult struct {
	Success            bool            `json:"success"`
	ConsumedAmount     float64         `json:"consumed_amount"`
	RemainingToConsume float64         `json:"remaining_to_consume"`
	AffectedBatches    []AffectedBatch `json:"affected_batches"`
	Message            string          `json:"message"`
}
