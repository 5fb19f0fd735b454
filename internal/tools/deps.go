// Package tools provides MCP tool handlers and registration.
package tools

import (
	"context"
	"log/slog"

	"github.com/raphaelgruber/kitchenloop-go/internal/agent"
	"github.com/raphaelgruber/kitchenloop-go/internal/models"
	"github.com/raphaelgruber/kitchenloop-go/internal/service"
)

// ConversationAgent runs one dialogue turn. *agent.Agent satisfies it.
type ConversationAgent interface {
	RunTurn(ctx context.Context, in agent.TurnInput) (*agent.TurnResult, error)
}

// InventoryService is the direct (non-conversational) inventory surface.
// *service.Inventory satisfies it.
type InventoryService interface {
	Consume(ctx context.Context, userID string, f *models.ConsumeFields, trace service.Trace) (*models.ConsumeResult, error)
	QueryGrouped(ctx context.Context, userID string, itemName *string) ([]models.InventoryGroup, error)
	Logs(ctx context.Context, userID string, limit int) ([]models.TransactionLogEntry, error)
}

// Dependencies holds shared services for tool handlers.
// Passed to handler factories via closure capture.
type Dependencies struct {
	Agent     ConversationAgent
	Inventory InventoryService
	Logger    *slog.Logger
}
