package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/kitchenloop-go/internal/models"
	"github.com/raphaelgruber/kitchenloop-go/internal/service"
)

var (
	discardBatchID int64
	discardItem    string
	discardReason  string
)

var discardCmd = &cobra.Command{
	Use:   "discard",
	Short: "Throw away a batch or a whole item",
	Long: `Throw away a single batch (--batch) or every remaining batch of an
item (--item). Discarded batches are deleted; the transaction log keeps
the record.

Examples:
  kitchenloop discard --batch 3 --reason "moldy"
  kitchenloop discard --item Milk`,
	RunE: runDiscard,
}

func init() {
	discardCmd.Flags().Int64Var(&discardBatchID, "batch", 0, "batch id to discard")
	discardCmd.Flags().StringVar(&discardItem, "item", "", "discard every batch of this item")
	discardCmd.Flags().StringVar(&discardReason, "reason", "", "why it is being thrown away")
	discardCmd.MarkFlagsOneRequired("batch", "item")
	discardCmd.MarkFlagsMutuallyExclusive("batch", "item")
}

func runDiscard(cmd *cobra.Command, args []string) error {
	fields := &models.DiscardFields{}
	if discardBatchID != 0 {
		fields.BatchID = &discardBatchID
	}
	if discardItem != "" {
		fields.ItemName = &discardItem
	}
	if discardReason != "" {
		fields.Reason = &discardReason
	}

	removed, err := getInventory().Discard(context.Background(), userID, fields, service.Trace{})
	if err != nil {
		return err
	}

	theme := defaultTheme
	for _, b := range removed {
		fmt.Println(theme.successStyle().Render(
			fmt.Sprintf("Discarded batch #%d: %s (%v%s)", b.ID, b.ItemName, b.Quantity, b.Unit)))
	}
	return nil
}
