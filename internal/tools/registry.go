package tools

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// RegisterAll registers all tools with the MCP server.
// This is called from main after server creation but before Run().
func RegisterAll(server *mcp.Server, deps *Dependencies) {
	// Chat tool - one conversational turn through the dialogue agent
	mcp.AddTool(server, &mcp.Tool{
		Name:        "chat",
		Description: "Send one chat message to the kitchen inventory assistant; continues a thread when thread_id is given",
	}, NewChatHandler(deps))

	// Inventory listing - grouped per item, depleted batches omitted
	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_inventory",
		Description: "List available inventory grouped by item, optionally narrowed to one item",
	}, NewListInventoryHandler(deps))

	// Direct consumption - no confirmation dialogue
	mcp.AddTool(server, &mcp.Tool{
		Name:        "consume_item",
		Description: "Consume an amount of an item immediately, draining open and soonest-expiring batches first",
	}, NewConsumeHandler(deps))

	// Audit trail
	mcp.AddTool(server, &mcp.Tool{
		Name:        "transaction_log",
		Description: "List the most recent inventory transactions, newest first",
	}, NewTransactionLogHandler(deps))
}
