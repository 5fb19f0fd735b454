package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/kitchenloop-go/internal/models"
	"github.com/raphaelgruber/kitchenloop-go/internal/service"
)

var (
	updateQuantity float64
	updateBrand    string
	updateCategory string
	updateExpires  string
	updateLocation string
	updateOpen     bool
)

var updateCmd = &cobra.Command{
	Use:   "update <batch-id>",
	Short: "Correct a batch",
	Long: `Correct fields of an existing batch. Only the flags you pass change.

Examples:
  kitchenloop update 3 --quantity 0.75
  kitchenloop update 3 --expires 2026-09-12 --location Freezer
  kitchenloop update 3 --open`,
	Args: cobra.ExactArgs(1),
	RunE: runUpdate,
}

func init() {
	updateCmd.Flags().Float64VarP(&updateQuantity, "quantity", "q", 0, "new quantity")
	updateCmd.Flags().StringVar(&updateBrand, "brand", "", "new brand")
	updateCmd.Flags().StringVar(&updateCategory, "category", "", "new category")
	updateCmd.Flags().StringVar(&updateExpires, "expires", "", "new expiry date (YYYY-MM-DD)")
	updateCmd.Flags().StringVar(&updateLocation, "location", "", "new location")
	updateCmd.Flags().BoolVar(&updateOpen, "open", false, "mark the batch as opened")
}

func runUpdate(cmd *cobra.Command, args []string) error {
	batchID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid batch id %q", args[0])
	}

	fields := &models.UpdateFields{BatchID: &batchID}
	if cmd.Flags().Changed("quantity") {
		fields.Quantity = &updateQuantity
	}
	if updateBrand != "" {
		fields.Brand = &updateBrand
	}
	if updateCategory != "" {
		fields.Category = &updateCategory
	}
	if updateExpires != "" {
		fields.ExpiryDate = &updateExpires
	}
	if updateLocation != "" {
		fields.Location = &updateLocation
	}
	if cmd.Flags().Changed("open") {
		fields.IsOpen = &updateOpen
	}

	batch, err := getInventory().Update(context.Background(), userID, fields, service.Trace{})
	if err != nil {
		return err
	}

	fmt.Println(defaultTheme.successStyle().Render(
		fmt.Sprintf("Updated batch #%d: %v%s %s", batch.ID, batch.Quantity, batch.Unit, batch.ItemName)))
	return nil
}
