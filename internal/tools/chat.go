package tools

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/raphaelgruber/kitchenloop-go/internal/agent"
)

// ChatInput defines the input schema for the chat tool.
type ChatInput struct {
	Message  string `json:"message,omitempty" jsonschema:"The user's message, e.g. 'bought 2L of milk expiring friday'"`
	UserID   string `json:"user_id" jsonschema:"Identifier of the inventory owner"`
	ThreadID string `json:"thread_id,omitempty" jsonschema:"Thread to continue; omit to start a new conversation"`
	Confirm  *bool  `json:"confirm,omitempty" jsonschema:"Answer a pending confirmation directly: true confirms, false cancels"`
}

// NewChatHandler creates the chat tool handler. One call is one dialogue
// turn; multi-turn flows (slot filling, confirmation) continue by passing
// the returned thread_id back in.
func NewChatHandler(deps *Dependencies) mcp.ToolHandlerFor[ChatInput, *agent.TurnResult] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input ChatInput) (*mcp.CallToolResult, *agent.TurnResult, error) {
		if input.Message == "" && input.Confirm == nil {
			return ErrorResult("message is required", "Pass the user's chat message, or the confirm flag"), nil, nil
		}
		if input.UserID == "" {
			return ErrorResult("user_id is required", "Pass the inventory owner's id"), nil, nil
		}

		result, err := deps.Agent.RunTurn(ctx, agent.TurnInput{
			Text:     input.Message,
			UserID:   input.UserID,
			ThreadID: input.ThreadID,
			Confirm:  input.Confirm,
		})
		if err != nil {
			deps.Logger.Error("chat turn failed", "user_id", input.UserID, "error", err)
			return ErrorResult("chat turn failed: "+err.Error(), ""), nil, nil
		}

		return TextResult(result.Response), result, nil
	}
}
