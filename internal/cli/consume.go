package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/kitchenloop-go/internal/models"
	"github.com/raphaelgruber/kitchenloop-go/internal/service"
)

var consumeBrand string

var consumeCmd = &cobra.Command{
	Use:   "consume <item> <amount>",
	Short: "Consume an amount of an item",
	Long: `Consume an amount of an item. Open batches drain first, then the
batch expiring soonest, cascading across batches when one is not enough.

Examples:
  kitchenloop consume Milk 0.5
  kitchenloop consume Milk 0.5 --brand Anchor`,
	Args: cobra.ExactArgs(2),
	RunE: runConsume,
}

func init() {
	consumeCmd.Flags().StringVar(&consumeBrand, "brand", "", "only consume this brand")
}

func runConsume(cmd *cobra.Command, args []string) error {
	amount, err := strconv.ParseFloat(args[1], 64)
	if err != nil || amount <= 0 {
		return fmt.Errorf("invalid amount %q", args[1])
	}

	fields := &models.ConsumeFields{ItemName: &args[0], Amount: &amount}
	if consumeBrand != "" {
		fields.Brand = &consumeBrand
	}

	result, err := getInventory().Consume(context.Background(), userID, fields, service.Trace{})
	if err != nil {
		return err
	}

	theme := defaultTheme
	if !result.Success {
		fmt.Println(theme.errorStyle().Render(result.Message))
		return nil
	}

	fmt.Println(theme.successStyle().Render(result.Message))
	for _, b := range result.AffectedBatches {
		line := fmt.Sprintf("  batch #%d", b.BatchID)
		if b.Brand != nil {
			line += fmt.Sprintf(" (%s)", *b.Brand)
		}
		line += fmt.Sprintf(": %v → %v", b.OldQuantity, b.NewQuantity)
		fmt.Println(line)
	}
	return nil
}
