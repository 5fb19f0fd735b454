package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/kitchenloop-go/internal/models"
	"github.com/raphaelgruber/kitchenloop-go/internal/service"
)

var (
	addQuantity float64
	addUnit     string
	addBrand    string
	addCategory string
	addExpires  string
	addLocation string
)

var addCmd = &cobra.Command{
	Use:   "add <item>",
	Short: "Add a new batch to the inventory",
	Long: `Add a new batch to the inventory without going through the assistant.

Examples:
  kitchenloop add Milk -q 1 --unit L --expires 2026-09-05
  kitchenloop add "Chicken Wings" -q 0.5 --unit kg --brand Fresh --location Freezer`,
	Args: cobra.ExactArgs(1),
	RunE: runAdd,
}

func init() {
	addCmd.Flags().Float64VarP(&addQuantity, "quantity", "q", 0, "quantity (required)")
	addCmd.Flags().StringVar(&addUnit, "unit", "", "unit, e.g. L, kg, pcs (required)")
	addCmd.Flags().StringVar(&addBrand, "brand", "", "brand name")
	addCmd.Flags().StringVar(&addCategory, "category", "", "category, e.g. Dairy, Meat")
	addCmd.Flags().StringVar(&addExpires, "expires", "", "expiry date (YYYY-MM-DD, required)")
	addCmd.Flags().StringVar(&addLocation, "location", "", "storage location (default Fridge)")
	_ = addCmd.MarkFlagRequired("quantity")
	_ = addCmd.MarkFlagRequired("unit")
	_ = addCmd.MarkFlagRequired("expires")
}

func runAdd(cmd *cobra.Command, args []string) error {
	fields := &models.AddFields{
		ItemName:   &args[0],
		Quantity:   &addQuantity,
		Unit:       &addUnit,
		ExpiryDate: &addExpires,
	}
	if addBrand != "" {
		fields.Brand = &addBrand
	}
	if addCategory != "" {
		fields.Category = &addCategory
	}
	if addLocation != "" {
		fields.Location = &addLocation
	}

	batch, err := getInventory().Add(context.Background(), userID, fields, service.Trace{})
	if err != nil {
		return err
	}

	theme := defaultTheme
	fmt.Println(theme.successStyle().Render(
		fmt.Sprintf("Added batch #%d: %v%s %s (%s)",
			batch.ID, batch.Quantity, batch.Unit, batch.ItemName, batch.Location)))
	return nil
}
