package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/kitchenloop-go/internal/models"
)

var (
	inventoryItem string
	inventoryAll  bool
)

var inventoryCmd = &cobra.Command{
	Use:   "inventory",
	Short: "Show the inventory grouped by item",
	Long: `Show the available inventory grouped by item, with per-batch detail.

Depleted batches are hidden unless --all is given.

Examples:
  kitchenloop inventory
  kitchenloop inventory --item milk
  kitchenloop inventory --all`,
	RunE: runInventory,
}

func init() {
	inventoryCmd.Flags().StringVarP(&inventoryItem, "item", "i", "", "only show this item")
	inventoryCmd.Flags().BoolVarP(&inventoryAll, "all", "a", false, "include depleted batches")
}

func runInventory(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	inv := getInventory()
	theme := defaultTheme

	var groups []models.InventoryGroup
	var err error
	if inventoryAll {
		var batches []models.Batch
		batches, err = inv.ListAll(ctx, userID)
		groups = models.GroupBatches(batches)
	} else {
		var itemName *string
		if inventoryItem != "" {
			itemName = &inventoryItem
		}
		groups, err = inv.QueryGrouped(ctx, userID, itemName)
	}
	if err != nil {
		return fmt.Errorf("list inventory: %w", err)
	}

	if len(groups) == 0 {
		fmt.Println(theme.hintStyle().Render("Inventory is empty."))
		return nil
	}

	for _, g := range groups {
		fmt.Println(theme.accentStyle().Render(
			fmt.Sprintf("%s: %v%s", g.ItemName, g.TotalQuantity, g.Unit)))
		for _, b := range g.Batches {
			fmt.Println("  " + formatBatch(b, theme))
		}
	}
	return nil
}

func formatBatch(b models.Batch, theme Theme) string {
	status := "sealed"
	if b.IsOpen {
		status = "open"
	}

	line := fmt.Sprintf("#%d", b.ID)
	if b.Brand != nil {
		line += fmt.Sprintf(" (%s)", *b.Brand)
	}
	line += fmt.Sprintf(": %v%s, %s, %s", b.Quantity, b.Unit, status, b.Location)

	if b.ExpiryDate != nil {
		line += ", expires " + b.ExpiryDate.Format("2006-01-02")
	} else {
		line += ", " + theme.hintStyle().Render("no expiry")
	}
	if b.Quantity <= 0 {
		line += " " + theme.warningStyle().Render("[depleted]")
	}
	return line
}
