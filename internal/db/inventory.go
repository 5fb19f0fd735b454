package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/raphaelgruber/kitchenloop-go/internal/models"
)

// batchRow mirrors one inventory record on the wire. Record ids are numeric;
// toModel converts them to plain int64 so everything above the db layer works
// with ordinary integers.
type batchRow struct {
	ID          surrealmodels.RecordID `json:"id"`
	UserID      string                 `json:"user_id"`
	ItemName    string                 `json:"item_name"`
	Brand       *string                `json:"brand,omitempty"`
	Quantity    float64                `json:"quantity"`
	TotalVolume float64                `json:"total_volume"`
	Unit        string                 `json:"unit"`
	Category    *string                `json:"category,omitempty"`
	ExpiryDate  *time.Time             `json:"expiry_date,omitempty"`
	IsOpen      bool                   `json:"is_open"`
	Location    string                 `json:"location"`
	CreatedAt   time.Time              `json:"created_at"`
}

// recordIDInt64 extracts the numeric id from a SurrealDB RecordID.
func recordIDInt64(id surrealmodels.RecordID) (int64, error) {
	switch v := id.ID.(type) {
	case int64:
		return v, nil
	case uint64:
		return int64(v), nil
	case int:
		return int64(v), nil
	case float64:
		return int64(v), nil
	default:
		return 0, fmt.Errorf("unexpected record id type: %T (expected integer)", id.ID)
	}
}

func (r batchRow) toModel() (models.Batch, error) {
	id, err := recordIDInt64(r.ID)
	if err != nil {
		return models.Batch{}, err
	}
	return models.Batch{
		ID:          id,
		UserID:      r.UserID,
		ItemName:    r.ItemName,
		Brand:       r.Brand,
		Quantity:    r.Quantity,
		TotalVolume: r.TotalVolume,
		Unit:        r.Unit,
		Category:    r.Category,
		ExpiryDate:  r.ExpiryDate,
		IsOpen:      r.IsOpen,
		Location:    r.Location,
		CreatedAt:   r.CreatedAt,
	}, nil
}

func rowsToBatches(rows []batchRow) ([]models.Batch, error) {
	batches := make([]models.Batch, 0, len(rows))
	for _, r := range rows {
		b, err := r.toModel()
		if err != nil {
			return nil, err
		}
		batches = append(batches, b)
	}
	return batches, nil
}

// ListBatches returns the batches visible to a user, optionally narrowed by
// item name (case-insensitive), brand (case-insensitive), location, and to
// positive quantities only.
func (c *Client) ListBatches(ctx context.Context, userID string, filter models.BatchFilter) ([]models.Batch, error) {
	clauses := []string{"user_id = $user_id"}
	vars := map[string]any{"user_id": userID}

	if filter.ItemName != nil {
		clauses = append(clauses, "string::lowercase(item_name) = string::lowercase($item_name)")
		vars["item_name"] = *filter.ItemName
	}
	if filter.Brand != nil {
		clauses = append(clauses, "brand != NONE AND string::lowercase(brand) = string::lowercase($brand)")
		vars["brand"] = *filter.Brand
	}
	if filter.Location != nil {
		clauses = append(clauses, "location = $location")
		vars["location"] = *filter.Location
	}
	if filter.PositiveOnly {
		clauses = append(clauses, "quantity > 0")
	}

	sql := fmt.Sprintf(`
		SELECT * FROM inventory WHERE %s ORDER BY item_name, created_at
	`, strings.Join(clauses, " AND "))

	results, err := surrealdb.Query[[]batchRow](ctx, c.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", wrapQueryError(err))
	}
	if results == nil || len(*results) == 0 {
		return []models.Batch{}, nil
	}
	return rowsToBatches((*results)[0].Result)
}

// GetBatch retrieves one batch by id, scoped to the user.
// Returns ErrNotFound if the batch doesn't exist or belongs to someone else.
func (c *Client) GetBatch(ctx context.Context, userID string, id int64) (*models.Batch, error) {
	results, err := surrealdb.Query[[]batchRow](ctx, c.db, `
		SELECT * FROM type::record("inventory", $id) WHERE user_id = $user_id
	`, map[string]any{"id": id, "user_id": userID})
	if err != nil {
		return nil, fmt.Errorf("get batch: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, ErrNotFound
	}
	b, err := (*results)[0].Result[0].toModel()
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// InsertBatch creates a new batch with the next sequential numeric id and
// returns the stored row. Id assignment and creation run in one transaction
// so concurrent inserts cannot collide.
func (c *Client) InsertBatch(ctx context.Context, userID string, create models.BatchCreate) (*models.Batch, error) {
	sql := `
		BEGIN TRANSACTION;
		LET $next = (math::max(SELECT VALUE record::id(id) FROM inventory) ?? 0) + 1;
		CREATE type::record("inventory", $next) CONTENT {
			user_id: $user_id,
			item_name: $item_name,
			brand: $brand,
			quantity: $quantity,
			total_volume: $total_volume,
			unit: $unit,
			category: $category,
			expiry_date: $expiry_date,
			is_open: $is_open,
			location: $location
		} RETURN AFTER;
		COMMIT TRANSACTION;
	`

	vars := map[string]any{
		"user_id":      userID,
		"item_name":    create.ItemName,
		"brand":        create.Brand,
		"quantity":     create.Quantity,
		"total_volume": create.TotalVolume,
		"unit":         create.Unit,
		"category":     create.Category,
		"expiry_date":  create.ExpiryDate,
		"is_open":      create.IsOpen,
		"location":     create.Location,
	}

	results, err := surrealdb.Query[[]batchRow](ctx, c.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("insert batch: %w", wrapQueryError(err))
	}

	// The CREATE result is the last statement's output.
	if results == nil || len(*results) == 0 {
		return nil, fmt.Errorf("insert batch: no result returned")
	}
	last := (*results)[len(*results)-1]
	if len(last.Result) == 0 {
		return nil, fmt.Errorf("insert batch: no row returned")
	}
	b, err := last.Result[0].toModel()
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// UpdateBatch merges a partial patch into one batch, scoped to the user.
// Returns the updated row, or ErrNotFound.
func (c *Client) UpdateBatch(ctx context.Context, userID string, id int64, patch models.BatchPatch) (*models.Batch, error) {
	merge := map[string]any{}
	if patch.Quantity != nil {
		merge["quantity"] = *patch.Quantity
	}
	if patch.TotalVolume != nil {
		merge["total_volume"] = *patch.TotalVolume
	}
	if patch.Brand != nil {
		merge["brand"] = *patch.Brand
	}
	if patch.Category != nil {
		merge["category"] = *patch.Category
	}
	if patch.ExpiryDate != nil {
		merge["expiry_date"] = *patch.ExpiryDate
	}
	if patch.IsOpen != nil {
		merge["is_open"] = *patch.IsOpen
	}
	if patch.Location != nil {
		merge["location"] = *patch.Location
	}

	results, err := surrealdb.Query[[]batchRow](ctx, c.db, `
		UPDATE type::record("inventory", $id) MERGE $patch WHERE user_id = $user_id RETURN AFTER
	`, map[string]any{"id": id, "user_id": userID, "patch": merge})
	if err != nil {
		return nil, fmt.Errorf("update batch: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, ErrNotFound
	}
	b, err := (*results)[0].Result[0].toModel()
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// DeleteBatch hard-deletes one batch, scoped to the user. Returns the
// deleted row, or ErrNotFound.
func (c *Client) DeleteBatch(ctx context.Context, userID string, id int64) (*models.Batch, error) {
	results, err := surrealdb.Query[[]batchRow](ctx, c.db, `
		DELETE type::record("inventory", $id) WHERE user_id = $user_id RETURN BEFORE
	`, map[string]any{"id": id, "user_id": userID})
	if err != nil {
		return nil, fmt.Errorf("delete batch: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, ErrNotFound
	}
	b, err := (*results)[0].Result[0].toModel()
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// ApplyConsumePlan persists all quantity/open-flag updates of a consumption
// cascade inside one transaction, so a mid-cascade failure leaves the
// inventory untouched rather than half-applied.
func (c *Client) ApplyConsumePlan(ctx context.Context, userID string, updates []models.BatchStateUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	var sb strings.Builder
	vars := map[string]any{"user_id": userID}
	sb.WriteString("BEGIN TRANSACTION;\n")
	for i, u := range updates {
		sb.WriteString(fmt.Sprintf(
			"UPDATE type::record(\"inventory\", $id%d) SET quantity = $qty%d, is_open = $open%d WHERE user_id = $user_id;\n",
			i, i, i))
		vars[fmt.Sprintf("id%d", i)] = u.BatchID
		vars[fmt.Sprintf("qty%d", i)] = u.Quantity
		vars[fmt.Sprintf("open%d", i)] = u.IsOpen
	}
	sb.WriteString("COMMIT TRANSACTION;\n")

	if _, err := surrealdb.Query[any](ctx, c.db, sb.String(), vars); err != nil {
		return fmt.Errorf("apply consume plan: %w", wrapQueryError(err))
	}
	return nil
}
