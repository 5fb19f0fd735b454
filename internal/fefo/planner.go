// Package fefo implements the First-Expired-First-Out consumption planner.
//
// The planner is a pure function over an inventory snapshot: identical
// inputs always produce an identical plan, and it performs no I/O. It is
// called once to render a confirmation preview and again at execution time
// against a fresh snapshot, so a concurrent mutation between the two calls
// can never make the executed plan disagree with the data it runs on.
package fefo

import (
	"slices"
	"strings"
	"time"

	"github.com/raphaelgruber/kitchenloop-go/internal/models"
)

// Filter returns the batches matching the item name (case-insensitive) and,
// when brand is non-nil, the brand (case-insensitive exact match).
func Filter(batches []models.Batch, itemName string, brand *string) []models.Batch {
	var out []models.Batch
	for _, b := range batches {
		if !strings.EqualFold(b.ItemName, itemName) {
			continue
		}
		if brand != nil && (b.Brand == nil || !strings.EqualFold(*b.Brand, *brand)) {
			continue
		}
		out = append(out, b)
	}
	return out
}

// Sort orders batches by consumption priority: open batches first, then
// earliest expiry. A missing expiry sorts after every dated batch of the
// same open-status tier. Batch id breaks remaining ties so the order is
// deterministic. Sorts in place.
func Sort(batches []models.Batch) {
	slices.SortStableFunc(batches, func(a, b models.Batch) int {
		if a.IsOpen != b.IsOpen {
			if a.IsOpen {
				return -1
			}
			return 1
		}
		ae, be := expiryOrMax(a.ExpiryDate), expiryOrMax(b.ExpiryDate)
		if !ae.Equal(be) {
			if ae.Before(be) {
				return -1
			}
			return 1
		}
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
}

// maxExpiry stands in for "no known expiry" so undated batches deplete last.
var maxExpiry = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)

func expiryOrMax(t *time.Time) time.Time {
	if t == nil {
		return maxExpiry
	}
	return *t
}

// TotalAvailable sums the quantity across batches, rounded to the quantity
// scale.
func TotalAvailable(batches []models.Batch) float64 {
	var total float64
	for _, b := range batches {
		total = models.Round3(total + b.Quantity)
	}
	return total
}

// Plan computes the deduction sequence for consuming amount of itemName from
// the given snapshot. The plan is best-effort: when total stock is short the
// steps cover whatever is available and the caller decides whether to
// reject. No matching batches, or amount <= 0, yields an empty plan.
func Plan(batches []models.Batch, itemName string, amount float64, brand *string) []models.DeductionStep {
	if amount <= 0 {
		return nil
	}

	candidates := Filter(batches, itemName, brand)
	Sort(candidates)

	var steps []models.DeductionStep
	remaining := models.Round3(amount)
	for _, b := range candidates {
		if remaining <= 0 {
			break
		}
		deduct := models.Round3(min(b.Quantity, remaining))
		if deduct <= 0 {
			continue
		}
		steps = append(steps, models.DeductionStep{
			BatchID:         b.ID,
			Brand:           b.Brand,
			ExpiryDate:      formatExpiry(b.ExpiryDate),
			CurrentQuantity: b.Quantity,
			DeductAmount:    deduct,
			NewQuantity:     models.Round3(b.Quantity - deduct),
		})
		remaining = models.Round3(remaining - deduct)
	}
	return steps
}

// Planned sums the deductions of a plan, rounded to the quantity scale.
func Planned(steps []models.DeductionStep) float64 {
	var total float64
	for _, s := range steps {
		total = models.Round3(total + s.DeductAmount)
	}
	return total
}

func formatExpiry(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format("2006-01-02")
	return &s
}
