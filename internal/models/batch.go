// Package models defines data structures for the Kitchen Loop inventory assistant.
package models

import "time"

// Batch is one tracked package/lot of an item. Batches are created by ADD,
// drained by CONSUME (never deleted, even at zero quantity), corrected by
// UPDATE and removed only by an explicit DISCARD.
type Batch struct {
	ID          int64      `json:"id"`
	UserID      string     `json:"user_id"`
	ItemName    string     `json:"item_name"`
	Brand       *string    `json:"brand,omitempty"`
	Quantity    float64    `json:"quantity"`
	TotalVolume float64    `json:"total_volume"`
	Unit        string     `json:"unit"`
	Category    *string    `json:"category,omitempty"`
	ExpiryDate  *time.Time `json:"expiry_date,omitempty"`
	IsOpen      bool       `json:"is_open"`
	Location    string     `json:"location"`
	CreatedAt   time.Time  `json:"created_at"`
}

// BatchCreate carries the fields for inserting a new batch.
type BatchCreate struct {
	ItemName    string     `json:"item_name"`
	Brand       *string    `json:"brand,omitempty"`
	Quantity    float64    `json:"quantity"`
	TotalVolume float64    `json:"total_volume"`
	Unit        string     `json:"unit"`
	Category    *string    `json:"category,omitempty"`
	ExpiryDate  *time.Time `json:"expiry_date,omitempty"`
	IsOpen      bool       `json:"is_open"`
	Location    string     `json:"location"`
}

// BatchPatch is a partial update; nil fields are left untouched.
type BatchPatch struct {
	Quantity    *float64   `json:"quantity,omitempty"`
	TotalVolume *float64   `json:"total_volume,omitempty"`
	Brand       *string    `json:"brand,omitempty"`
	Category    *string    `json:"category,omitempty"`
	ExpiryDate  *time.Time `json:"expiry_date,omitempty"`
	IsOpen      *bool      `json:"is_open,omitempty"`
	Location    *string    `json:"location,omitempty"`
}

// BatchStateUpdate is one persisted outcome of a consumption cascade:
// the batch's post-deduction quantity and open flag.
type BatchStateUpdate struct {
	BatchID  int64
	Quantity float64
	IsOpen   bool
}

// BatchFilter narrows a batch listing. PositiveOnly restricts to quantity > 0,
// which is how depleted-but-kept batches drop out of "available" views.
type BatchFilter struct {
	ItemName     *string
	Brand        *string
	Location     *string
	PositiveOnly bool
}

// InventoryGroup aggregates the batches of one item for display.
type InventoryGroup struct {
	ItemName      string  `json:"item_name"`
	TotalQuantity float64 `json:"total_quantity"`
	Unit          string  `json:"unit"`
	Batches       []Batch `json:"batches"`
}

// GroupBatches folds a batch list into per-item groups, preserving the
// input order of first appearance.
func GroupBatches(batches []Batch) []InventoryGroup {
	index := map[string]int{}
	var groups []InventoryGroup
	for _, b := range batches {
		i, ok := index[b.ItemName]
		if !ok {
			i = len(groups)
			index[b.ItemName] = i
			groups = append(groups, InventoryGroup{ItemName: b.ItemName, Unit: b.Unit})
		}
		groups[i].Batches = append(groups[i].Batches, b)
		groups[i].TotalQuantity = Round3(groups[i].TotalQuantity + b.Quantity)
	}
	return groups
}
