package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var logsLimit int

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show recent inventory transactions",
	Long: `Show the most recent inventory transactions, newest first. Every
add, consume, discard and correction leaves an entry.`,
	RunE: runLogs,
}

func init() {
	logsCmd.Flags().IntVarP(&logsLimit, "limit", "n", 20, "max entries")
}

func runLogs(cmd *cobra.Command, args []string) error {
	entries, err := getInventory().Logs(context.Background(), userID, logsLimit)
	if err != nil {
		return fmt.Errorf("list logs: %w", err)
	}

	theme := defaultTheme
	if len(entries) == 0 {
		fmt.Println(theme.hintStyle().Render("No transactions recorded."))
		return nil
	}

	for _, e := range entries {
		line := fmt.Sprintf("#%-4d %s  %-8s",
			e.ID, e.CreatedAt.Format("2006-01-02 15:04"), e.Intent)
		fmt.Println(theme.accentStyle().Render(line))
		if e.RawInput != nil {
			fmt.Println("      " + theme.hintStyle().Render(fmt.Sprintf("%q", *e.RawInput)))
		}
	}
	return nil
}
