package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/raphaelgruber/kitchenloop-go/internal/models"
	"github.com/raphaelgruber/kitchenloop-go/internal/service"
)

// ListInventoryInput defines the input schema for the list_inventory tool.
type ListInventoryInput struct {
	UserID   string `json:"user_id" jsonschema:"Identifier of the inventory owner"`
	ItemName string `json:"item_name,omitempty" jsonschema:"Optional item name to narrow the listing"`
}

// NewListInventoryHandler creates the list_inventory tool handler. Returns
// the available batches grouped per item; depleted batches are omitted.
func NewListInventoryHandler(deps *Dependencies) mcp.ToolHandlerFor[ListInventoryInput, []models.InventoryGroup] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input ListInventoryInput) (*mcp.CallToolResult, []models.InventoryGroup, error) {
		if input.UserID == "" {
			return ErrorResult("user_id is required", "Pass the inventory owner's id"), nil, nil
		}

		var itemName *string
		if input.ItemName != "" {
			itemName = &input.ItemName
		}

		groups, err := deps.Inventory.QueryGrouped(ctx, input.UserID, itemName)
		if err != nil {
			deps.Logger.Error("list inventory failed", "user_id", input.UserID, "error", err)
			return ErrorResult("list inventory failed: "+err.Error(), ""), nil, nil
		}

		if len(groups) == 0 {
			return TextResult("Inventory is empty"), groups, nil
		}
		return TextResult(renderGroups(groups)), groups, nil
	}
}

func renderGroups(groups []models.InventoryGroup) string {
	var sb strings.Builder
	for _, g := range groups {
		fmt.Fprintf(&sb, "%s: %v%s\n", g.ItemName, g.TotalQuantity, g.Unit)
		for _, b := range g.Batches {
			status := "sealed"
			if b.IsOpen {
				status = "open"
			}
			expiry := "no expiry"
			if b.ExpiryDate != nil {
				expiry = "expires " + b.ExpiryDate.Format("2006-01-02")
			}
			brand := ""
			if b.Brand != nil {
				brand = " (" + *b.Brand + ")"
			}
			fmt.Fprintf(&sb, "  #%d%s: %v%s, %s, %s, %s\n",
				b.ID, brand, b.Quantity, b.Unit, status, expiry, b.Location)
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

// ConsumeInput defines the input schema for the consume_item tool.
type ConsumeInput struct {
	UserID   string  `json:"user_id" jsonschema:"Identifier of the inventory owner"`
	ItemName string  `json:"item_name" jsonschema:"Item to consume, e.g. Milk"`
	Amount   float64 `json:"amount" jsonschema:"Quantity to consume in the item's unit"`
	Brand    string  `json:"brand,omitempty" jsonschema:"Optional brand filter"`
}

// NewConsumeHandler creates the consume_item tool handler. Deducts stock
// with expired-and-open-first priority, cascading across batches. Unlike
// the chat tool this executes immediately, without a confirmation step.
func NewConsumeHandler(deps *Dependencies) mcp.ToolHandlerFor[ConsumeInput, *models.ConsumeResult] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input ConsumeInput) (*mcp.CallToolResult, *models.ConsumeResult, error) {
		if input.UserID == "" {
			return ErrorResult("user_id is required", "Pass the inventory owner's id"), nil, nil
		}
		if input.ItemName == "" || input.Amount <= 0 {
			return ErrorResult("item_name and a positive amount are required", ""), nil, nil
		}

		fields := &models.ConsumeFields{ItemName: &input.ItemName, Amount: &input.Amount}
		if input.Brand != "" {
			fields.Brand = &input.Brand
		}

		result, err := deps.Inventory.Consume(ctx, input.UserID, fields, service.Trace{})
		if err != nil {
			deps.Logger.Error("consume failed", "user_id", input.UserID, "error", err)
			return ErrorResult("consume failed: "+err.Error(), ""), nil, nil
		}
		if !result.Success {
			return ErrorResult(result.Message, "Check the item name and brand, or lower the amount"), result, nil
		}

		return TextResult(result.Message), result, nil
	}
}

// TransactionLogInput defines the input schema for the transaction_log tool.
type TransactionLogInput struct {
	UserID string `json:"user_id" jsonschema:"Identifier of the inventory owner"`
	Limit  int    `json:"limit,omitempty" jsonschema:"Maximum entries to return, newest first (default 50)"`
}

// NewTransactionLogHandler creates the transaction_log tool handler.
func NewTransactionLogHandler(deps *Dependencies) mcp.ToolHandlerFor[TransactionLogInput, []models.TransactionLogEntry] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input TransactionLogInput) (*mcp.CallToolResult, []models.TransactionLogEntry, error) {
		if input.UserID == "" {
			return ErrorResult("user_id is required", "Pass the inventory owner's id"), nil, nil
		}

		entries, err := deps.Inventory.Logs(ctx, input.UserID, input.Limit)
		if err != nil {
			deps.Logger.Error("transaction log failed", "user_id", input.UserID, "error", err)
			return ErrorResult("transaction log failed: "+err.Error(), ""), nil, nil
		}

		if len(entries) == 0 {
			return TextResult("No transactions recorded"), entries, nil
		}

		var lines []string
		for _, e := range entries {
			line := fmt.Sprintf("#%d %s %s", e.ID, e.CreatedAt.Format("2006-01-02 15:04"), e.Intent)
			if e.RawInput != nil {
				line += fmt.Sprintf(" %q", *e.RawInput)
			}
			lines = append(lines, line)
		}
		return TextResult(strings.Join(lines, "\n")), entries, nil
	}
}
