package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/raphaelgruber/kitchenloop-go/internal/models"
)

// RawOperation is one extracted operation before it is bound to a typed
// field bag. ExtractedInfo is kept raw so the caller decides the schema.
type RawOperation struct {
	Intent        string          `json:"intent"`
	ExtractedInfo json.RawMessage `json:"extracted_info"`
}

// FieldUpdate is one slot-filling payload targeted at a pending operation
// by index. Payload carries the user-supplied fields as a JSON object.
type FieldUpdate struct {
	Index   int
	Payload json.RawMessage
}

// Extractor turns free-form user messages into structured inventory
// operations via the underlying model.
type Extractor struct {
	model  *Model
	logger *slog.Logger
	now    func() time.Time
}

// NewExtractor creates an extractor on top of a model.
func NewExtractor(model *Model, logger *slog.Logger) *Extractor {
	return &Extractor{model: model, logger: logger, now: time.Now}
}

// ExtractOperations analyzes a fresh user message and returns the
// operations it asks for, plus the model's own summary of what it
// understood. A response the model garbles degrades to a single QUERY
// instead of failing the turn.
func (e *Extractor) ExtractOperations(ctx context.Context, userInput string) ([]RawOperation, string, error) {
	content, err := e.model.GenerateWithSystem(ctx,
		intentAnalystPrompt(e.now()),
		"Analyze this message: "+userInput,
	)
	if err != nil {
		return nil, "", fmt.Errorf("extract operations: %w", err)
	}

	ops, understanding, err := parseOperations(content)
	if err != nil {
		e.logger.Warn("failed to parse intent analysis", "error", err, "content", content)
		return []RawOperation{{Intent: string(models.IntentQuery), ExtractedInfo: json.RawMessage(`{}`)}},
			"Could not parse user input", nil
	}
	return ops, understanding, nil
}

// ExtractFieldUpdates maps a follow-up message onto the pending operations
// that still miss fields. Unparseable responses yield no updates; the
// caller re-asks.
func (e *Extractor) ExtractFieldUpdates(ctx context.Context, pending []models.PendingOperation, userInput string) ([]FieldUpdate, error) {
	itemsContext, err := incompleteItemsContext(pending)
	if err != nil {
		return nil, err
	}

	content, err := e.model.Generate(ctx, fieldUpdatePrompt(itemsContext, userInput, e.now()))
	if err != nil {
		return nil, fmt.Errorf("extract field updates: %w", err)
	}

	updates, err := parseFieldUpdates(content)
	if err != nil {
		e.logger.Warn("failed to parse field updates", "error", err, "content", content)
		return nil, nil
	}
	return updates, nil
}

// AskFollowUp generates a natural-language question for the fields the
// pending operations still miss.
func (e *Extractor) AskFollowUp(ctx context.Context, pending []models.PendingOperation) (string, error) {
	itemsContext, err := incompleteItemsContext(pending)
	if err != nil {
		return "", err
	}
	question, err := e.model.GenerateWithSystem(ctx, askMorePrompt(itemsContext), "Generate the follow-up question.")
	if err != nil {
		return "", fmt.Errorf("ask follow-up: %w", err)
	}
	return strings.TrimSpace(question), nil
}

// GenerateText exposes plain generation for callers that render their own
// prompts.
func (e *Extractor) GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return e.model.GenerateWithSystem(ctx, systemPrompt, userPrompt)
}

type analysisPayload struct {
	Operations       []RawOperation  `json:"operations"`
	Intent           string          `json:"intent"`
	ExtractedInfo    json.RawMessage `json:"extracted_info"`
	RawUnderstanding string          `json:"raw_understanding"`
}

func parseOperations(content string) ([]RawOperation, string, error) {
	var payload analysisPayload
	if err := json.Unmarshal([]byte(stripFences(content)), &payload); err != nil {
		return nil, "", err
	}

	ops := payload.Operations
	if len(ops) == 0 {
		// Single-operation format without the operations array.
		if payload.Intent == "" {
			return nil, "", fmt.Errorf("no operations in analysis")
		}
		ops = []RawOperation{{Intent: payload.Intent, ExtractedInfo: payload.ExtractedInfo}}
	}

	for i := range ops {
		if len(ops[i].ExtractedInfo) == 0 {
			ops[i].ExtractedInfo = json.RawMessage(`{}`)
		}
	}
	return ops, payload.RawUnderstanding, nil
}

func parseFieldUpdates(content string) ([]FieldUpdate, error) {
	var payload struct {
		Updates []json.RawMessage `json:"updates"`
	}
	if err := json.Unmarshal([]byte(stripFences(content)), &payload); err != nil {
		return nil, err
	}

	updates := make([]FieldUpdate, 0, len(payload.Updates))
	for _, raw := range payload.Updates {
		var idx struct {
			Index int `json:"index"`
		}
		if err := json.Unmarshal(raw, &idx); err != nil {
			continue
		}
		updates = append(updates, FieldUpdate{Index: idx.Index, Payload: raw})
	}
	return updates, nil
}

// incompleteItemsContext renders the still-incomplete operations as the
// compact JSON the prompts embed.
func incompleteItemsContext(pending []models.PendingOperation) (string, error) {
	type item struct {
		Index   int           `json:"index"`
		Intent  models.Intent `json:"intent"`
		Have    models.Fields `json:"have"`
		Missing []string      `json:"missing"`
	}

	var items []item
	for i := range pending {
		if len(pending[i].MissingFields) == 0 {
			continue
		}
		items = append(items, item{
			Index:   pending[i].Index,
			Intent:  pending[i].Intent(),
			Have:    pending[i].Fields,
			Missing: pending[i].MissingFields,
		})
	}

	data, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("encode items context: %w", err)
	}
	return string(data), nil
}

// stripFences unwraps a markdown code fence if the model added one.
func stripFences(s string) string {
	if i := strings.Index(s, "```json"); i >= 0 {
		s = s[i+len("```json"):]
		if j := strings.Index(s, "```"); j >= 0 {
			s = s[:j]
		}
	} else if i := strings.Index(s, "```"); i >= 0 {
		s = s[i+len("```"):]
		if j := strings.Index(s, "```"); j >= 0 {
			s = s[:j]
		}
	}
	return strings.TrimSpace(s)
}
