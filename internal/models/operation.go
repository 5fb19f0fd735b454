package models

import (
	"encoding/json"
	"fmt"
)

// Intent classifies what a pending operation will do to the inventory.
type Intent string

const (
	IntentAdd     Intent = "ADD"
	IntentConsume Intent = "CONSUME"
	IntentDiscard Intent = "DISCARD"
	IntentQuery   Intent = "QUERY"
	IntentUpdate  Intent = "UPDATE"
)

// ParseIntent maps a raw intent string onto the closed intent set.
// Unknown values degrade to QUERY, the only side-effect-free intent.
func ParseIntent(s string) Intent {
	switch Intent(s) {
	case IntentAdd, IntentConsume, IntentDiscard, IntentQuery, IntentUpdate:
		return Intent(s)
	default:
		return IntentQuery
	}
}

// Destructive reports whether an intent mutates or removes stock and
// therefore requires explicit confirmation before execution.
func (i Intent) Destructive() bool {
	return i == IntentConsume || i == IntentDiscard
}

// Fields is the per-intent extracted-field bag. Each variant knows its own
// required-field schema, so missing-field checks can never drift from the
// shape of the data.
type Fields interface {
	Intent() Intent
	Missing() []string
}

// AddFields holds slots for an ADD operation. Location is optional and
// defaults to "Fridge" at execution time.
type AddFields struct {
	ItemName   *string  `json:"item_name,omitempty"`
	Quantity   *float64 `json:"quantity,omitempty"`
	Unit       *string  `json:"unit,omitempty"`
	Brand      *string  `json:"brand,omitempty"`
	Category   *string  `json:"category,omitempty"`
	ExpiryDate *string  `json:"expiry_date,omitempty"`
	Location   *string  `json:"location,omitempty"`
}

func (f *AddFields) Intent() Intent { return IntentAdd }

func (f *AddFields) Missing() []string {
	var missing []string
	if f.ItemName == nil || *f.ItemName == "" {
		missing = append(missing, "item_name")
	}
	if f.Quantity == nil {
		missing = append(missing, "quantity")
	}
	if f.Unit == nil || *f.Unit == "" {
		missing = append(missing, "unit")
	}
	if f.ExpiryDate == nil || *f.ExpiryDate == "" {
		missing = append(missing, "expiry_date")
	}
	return missing
}

// ConsumeFields holds slots for a CONSUME operation.
type ConsumeFields struct {
	ItemName *string  `json:"item_name,omitempty"`
	Amount   *float64 `json:"amount,omitempty"`
	Unit     *string  `json:"unit,omitempty"`
	Brand    *string  `json:"brand,omitempty"`
}

func (f *ConsumeFields) Intent() Intent { return IntentConsume }

func (f *ConsumeFields) Missing() []string {
	var missing []string
	if f.ItemName == nil || *f.ItemName == "" {
		missing = append(missing, "item_name")
	}
	if f.Amount == nil {
		missing = append(missing, "amount")
	}
	return missing
}

// DiscardFields holds slots for a DISCARD operation. A batch id is the
// primary identifier; item_name is accepted as a fallback that discards
// every positive-quantity batch of the item.
type DiscardFields struct {
	BatchID  *int64  `json:"batch_id,omitempty"`
	ItemName *string `json:"item_name,omitempty"`
	Reason   *string `json:"reason,omitempty"`
}

func (f *DiscardFields) Intent() Intent { return IntentDiscard }

func (f *DiscardFields) Missing() []string {
	if f.BatchID == nil && (f.ItemName == nil || *f.ItemName == "") {
		return []string{"batch_id"}
	}
	return nil
}

// QueryFields holds the optional item filter for a QUERY operation.
type QueryFields struct {
	ItemName *string `json:"item_name,omitempty"`
}

func (f *QueryFields) Intent() Intent { return IntentQuery }

func (f *QueryFields) Missing() []string { return nil }

// UpdateFields holds slots for an UPDATE correction on one batch.
type UpdateFields struct {
	BatchID    *int64   `json:"batch_id,omitempty"`
	Quantity   *float64 `json:"quantity,omitempty"`
	Brand      *string  `json:"brand,omitempty"`
	Category   *string  `json:"category,omitempty"`
	ExpiryDate *string  `json:"expiry_date,omitempty"`
	IsOpen     *bool    `json:"is_open,omitempty"`
	Location   *string  `json:"location,omitempty"`
}

func (f *UpdateFields) Intent() Intent { return IntentUpdate }

func (f *UpdateFields) Missing() []string {
	var missing []string
	if f.BatchID == nil {
		missing = append(missing, "batch_id")
	}
	if f.Quantity == nil && f.Brand == nil && f.Category == nil &&
		f.ExpiryDate == nil && f.IsOpen == nil && f.Location == nil {
		missing = append(missing, "updates")
	}
	return missing
}

// ParseFields decodes an extracted-info payload into the typed variant for
// the given intent. Extra keys from the extractor are ignored.
func ParseFields(intent Intent, raw json.RawMessage) (Fields, error) {
	var f Fields
	switch intent {
	case IntentAdd:
		f = &AddFields{}
	case IntentConsume:
		f = &ConsumeFields{}
	case IntentDiscard:
		f = &DiscardFields{}
	case IntentUpdate:
		f = &UpdateFields{}
	default:
		f = &QueryFields{}
	}
	if len(raw) == 0 {
		return f, nil
	}
	if err := json.Unmarshal(raw, f); err != nil {
		return nil, fmt.Errorf("parse %s fields: %w", intent, err)
	}
	return f, nil
}

// DeductionStep is one entry of a FEFO plan: how much to draw from which
// batch and what remains afterwards.
type DeductionStep struct {
	BatchID         int64   `json:"batch_id"`
	Brand           *string `json:"brand,omitempty"`
	ExpiryDate      *string `json:"expiry_date,omitempty"`
	CurrentQuantity float64 `json:"current_quantity"`
	DeductAmount    float64 `json:"deduct_amount"`
	NewQuantity     float64 `json:"new_quantity"`
}

// PendingOperation is one parsed-but-not-yet-executed user request.
// MissingFields is always recomputed from Fields, never hand-maintained.
type PendingOperation struct {
	Index         int             `json:"index"`
	Fields        Fields          `json:"-"`
	MissingFields []string        `json:"missing_fields"`
	Plan          []DeductionStep `json:"fefo_plan,omitempty"`
}

// Intent returns the operation's intent via its field bag.
func (op *PendingOperation) Intent() Intent {
	if op.Fields == nil {
		return IntentQuery
	}
	return op.Fields.Intent()
}

// Revalidate recomputes the missing-field list from the field bag.
func (op *PendingOperation) Revalidate() {
	op.MissingFields = nil
	if op.Fields != nil {
		op.MissingFields = op.Fields.Missing()
	}
}

// MergeUpdate overlays a partial field payload onto the operation's field
// bag; keys absent from the payload keep their current values.
func (op *PendingOperation) MergeUpdate(raw json.RawMessage) error {
	if op.Fields == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, op.Fields); err != nil {
		return fmt.Errorf("merge %s update: %w", op.Intent(), err)
	}
	op.Revalidate()
	return nil
}

type pendingOperationJSON struct {
	Index         int             `json:"index"`
	Intent        Intent          `json:"intent"`
	ExtractedInfo json.RawMessage `json:"extracted_info"`
	MissingFields []string        `json:"missing_fields"`
	Plan          []DeductionStep `json:"fefo_plan,omitempty"`
}

// MarshalJSON flattens the typed field bag back into the checkpoint wire
// shape (intent + extracted_info object).
func (op PendingOperation) MarshalJSON() ([]byte, error) {
	info, err := json.Marshal(op.Fields)
	if err != nil {
		return nil, fmt.Errorf("marshal %s fields: %w", op.Intent(), err)
	}
	return json.Marshal(pendingOperationJSON{
		Index:         op.Index,
		Intent:        op.Intent(),
		ExtractedInfo: info,
		MissingFields: op.MissingFields,
		Plan:          op.Plan,
	})
}

// UnmarshalJSON restores the typed field bag from the checkpoint wire shape.
func (op *PendingOperation) UnmarshalJSON(data []byte) error {
	var wire pendingOperationJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	fields, err := ParseFields(ParseIntent(string(wire.Intent)), wire.ExtractedInfo)
	if err != nil {
		return err
	}
	op.Index = wire.Index
	op.Fields = fields
	op.MissingFields = wire.MissingFields
	op.Plan = wire.Plan
	return nil
}

// MaxPendingOperations caps how many operations one turn may queue.
// Extractions beyond the cap are dropped, not deferred.
const MaxPendingOperations = 5

// PendingActionSet is the container for the operations of one conversational
// request, plus the rendered confirmation preview when one is required.
type PendingActionSet struct {
	Operations          []PendingOperation `json:"operations"`
	NeedsConfirmation   bool               `json:"needs_confirmation"`
	ConfirmationMessage string             `json:"confirmation_message,omitempty"`
	Understanding       string             `json:"understanding,omitempty"`
}

// AllComplete reports whether every operation has an empty missing-field
// list, i.e. the set is ready to confirm or execute.
func (s *PendingActionSet) AllComplete() bool {
	for i := range s.Operations {
		if len(s.Operations[i].MissingFields) > 0 {
			return false
		}
	}
	return true
}
