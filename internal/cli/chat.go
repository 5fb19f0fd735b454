package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/kitchenloop-go/internal/agent"
)

var chatCmd = &cobra.Command{
	Use:   "chat [message]",
	Short: "Talk to the inventory assistant",
	Long: `Talk to the inventory assistant in natural language, English or Chinese.

With a message argument, runs a single turn and exits (follow-up turns
reuse the printed thread id via --thread). Without arguments, starts an
interactive session.

Examples:
  kitchenloop chat "bought 2L of milk, expires next friday"
  kitchenloop chat "喝了500ml牛奶"
  kitchenloop chat`,
	Args: cobra.MaximumNArgs(1),
	RunE: runChat,
}

var chatThreadID string

func init() {
	chatCmd.Flags().StringVar(&chatThreadID, "thread", "", "thread id to continue")
}

func runChat(cmd *cobra.Command, args []string) error {
	a, err := getAgent()
	if err != nil {
		return err
	}
	ctx := context.Background()

	if len(args) == 1 {
		result, err := a.RunTurn(ctx, agent.TurnInput{
			Text:     args[0],
			UserID:   userID,
			ThreadID: chatThreadID,
		})
		if err != nil {
			return fmt.Errorf("chat: %w", err)
		}
		printTurn(result)
		return nil
	}

	return chatLoop(ctx, a)
}

// chatLoop runs an interactive session. The thread id carries over between
// inputs while the assistant is waiting on us and resets once a request
// completes, so every new request gets a fresh conversation.
func chatLoop(ctx context.Context, a *agent.Agent) error {
	theme := defaultTheme
	fmt.Println(theme.accentStyle().Render("Kitchen inventory assistant. Type 'quit' to leave."))

	scanner := bufio.NewScanner(os.Stdin)
	threadID := chatThreadID

	for {
		fmt.Print(theme.hintStyle().Render("you> "))
		if !scanner.Scan() {
			break
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if text == "quit" || text == "exit" {
			break
		}

		result, err := a.RunTurn(ctx, agent.TurnInput{
			Text:     text,
			UserID:   userID,
			ThreadID: threadID,
		})
		if err != nil {
			fmt.Println(theme.errorStyle().Render(fmt.Sprintf("error: %v", err)))
			continue
		}

		printTurn(result)

		if result.Status.Terminal() {
			threadID = ""
		} else {
			threadID = result.ThreadID
		}
	}

	return scanner.Err()
}

func printTurn(result *agent.TurnResult) {
	theme := defaultTheme
	fmt.Println(result.Response)
	if verbose {
		fmt.Println(theme.hintStyle().Render(
			fmt.Sprintf("[thread %s, status %s]", result.ThreadID, result.Status)))
	}
}
