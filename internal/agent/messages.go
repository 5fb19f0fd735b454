package agent

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/raphaelgruber/kitchenloop-go/internal/models"
)

// The user-facing strings live here so the state machine stays readable.
// Everything is rendered in the conversation's detected language.

func noActionMessage(lang string) string {
	if lang == "zh" {
		return "没有待处理的操作。"
	}
	return "No action pending."
}

func cancelMessage(lang string) string {
	if lang == "zh" {
		return "好的，已取消操作。还有什么需要帮忙的吗？"
	}
	return "OK, operation cancelled. Anything else I can help with?"
}

func correctionMessage(lang string) string {
	if lang == "zh" {
		return "好的，已取消。请重新告诉我正确的操作。"
	}
	return "OK, cancelled. Please tell me the correct operation."
}

func retryConfirmMessage(lang string) string {
	if lang == "zh" {
		return "请确认是否执行？回复'确认'或'取消'"
	}
	return "Please confirm: reply 'yes' or 'no'"
}

func operationFailedMessage(lang string, err error) string {
	if lang == "zh" {
		return fmt.Sprintf("操作失败: %v", err)
	}
	return fmt.Sprintf("Operation failed: %v", err)
}

// fallbackFollowUp lists the missing fields verbatim when the model cannot
// phrase a question.
func fallbackFollowUp(ops []models.PendingOperation, lang string) string {
	var lines []string
	for i := range ops {
		if len(ops[i].MissingFields) == 0 {
			continue
		}
		name := "?"
		switch f := ops[i].Fields.(type) {
		case *models.AddFields:
			if f.ItemName != nil {
				name = *f.ItemName
			}
		case *models.ConsumeFields:
			if f.ItemName != nil {
				name = *f.ItemName
			}
		case *models.DiscardFields:
			if f.ItemName != nil {
				name = *f.ItemName
			}
		case *models.UpdateFields:
			if f.BatchID != nil {
				name = fmt.Sprintf("#%d", *f.BatchID)
			}
		}
		lines = append(lines, fmt.Sprintf("- %s (%s): %s",
			name, ops[i].Intent(), strings.Join(ops[i].MissingFields, ", ")))
	}

	if lang == "zh" {
		return "请补充以下信息：\n" + strings.Join(lines, "\n")
	}
	return "I still need some information:\n" + strings.Join(lines, "\n")
}

// confirmationMessage renders the numbered preview of every pending
// operation, including the FEFO deduction plan of each CONSUME.
func confirmationMessage(ops []models.PendingOperation, lang string) string {
	var sb strings.Builder
	if lang == "zh" {
		sb.WriteString("系统将执行以下操作：\n\n")
	} else {
		sb.WriteString("System will execute:\n\n")
	}

	for i := range ops {
		sb.WriteString(confirmationItem(i+1, &ops[i], lang))
	}

	if lang == "zh" {
		sb.WriteString("\n确认执行所有操作？[是/否]")
	} else {
		sb.WriteString("\nConfirm all operations? [Yes/No]")
	}
	return sb.String()
}

var intentEmoji = map[models.Intent]string{
	models.IntentAdd:     "📥",
	models.IntentConsume: "📦",
	models.IntentDiscard: "🗑️",
	models.IntentQuery:   "🔍",
	models.IntentUpdate:  "✏️",
}

var intentActionZH = map[models.Intent]string{
	models.IntentAdd:     "添加",
	models.IntentConsume: "消耗",
	models.IntentDiscard: "丢弃",
	models.IntentQuery:   "查询",
	models.IntentUpdate:  "更新",
}

func confirmationItem(num int, op *models.PendingOperation, lang string) string {
	intent := op.Intent()
	action := string(intent)
	if lang == "zh" {
		action = intentActionZH[intent]
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d️⃣ %s %s ", num, intentEmoji[intent], action)

	switch f := op.Fields.(type) {
	case *models.ConsumeFields:
		fmt.Fprintf(&sb, "%s%s %s\n", formatQty(deref(f.Amount)), derefStr(f.Unit), derefStr(f.ItemName))
		for _, step := range op.Plan {
			brand := ""
			if step.Brand != nil {
				brand = fmt.Sprintf(" (%s)", *step.Brand)
			}
			expiry := "N/A"
			if step.ExpiryDate != nil {
				expiry = *step.ExpiryDate
			}
			if lang == "zh" {
				fmt.Fprintf(&sb, "   → Batch #%d%s, 过期 %s, 扣除 %s\n",
					step.BatchID, brand, expiry, formatQty(step.DeductAmount))
			} else {
				fmt.Fprintf(&sb, "   → Batch #%d%s, expires %s, deduct %s\n",
					step.BatchID, brand, expiry, formatQty(step.DeductAmount))
			}
		}

	case *models.AddFields:
		fmt.Fprintf(&sb, "%s%s %s", formatQty(deref(f.Quantity)), derefStr(f.Unit), derefStr(f.ItemName))
		if f.ExpiryDate != nil {
			if lang == "zh" {
				fmt.Fprintf(&sb, ", 过期日 %s", *f.ExpiryDate)
			} else {
				fmt.Fprintf(&sb, ", expires %s", *f.ExpiryDate)
			}
		}
		if f.Location != nil {
			if lang == "zh" {
				fmt.Fprintf(&sb, ", 位置 %s", *f.Location)
			} else {
				fmt.Fprintf(&sb, ", location %s", *f.Location)
			}
		}
		sb.WriteString("\n")

	case *models.DiscardFields:
		switch {
		case f.BatchID != nil && lang == "zh":
			fmt.Fprintf(&sb, "批次 #%d\n", *f.BatchID)
		case f.BatchID != nil:
			fmt.Fprintf(&sb, "batch #%d\n", *f.BatchID)
		default:
			fmt.Fprintf(&sb, "%s\n", derefStr(f.ItemName))
		}

	case *models.UpdateFields:
		if lang == "zh" {
			fmt.Fprintf(&sb, "批次 #%d\n", deref(f.BatchID))
		} else {
			fmt.Fprintf(&sb, "batch #%d\n", deref(f.BatchID))
		}

	case *models.QueryFields:
		name := "all"
		if f.ItemName != nil {
			name = *f.ItemName
		}
		fmt.Fprintf(&sb, "%s\n", name)

	default:
		sb.WriteString("\n")
	}

	sb.WriteString("\n")
	return sb.String()
}

func addedMessage(b *models.Batch, lang string) string {
	brand := ""
	if b.Brand != nil {
		brand = fmt.Sprintf(" (%s)", *b.Brand)
	}
	expiry := ""
	if b.ExpiryDate != nil {
		if lang == "zh" {
			expiry = fmt.Sprintf(", 过期日: %s", b.ExpiryDate.Format("2006-01-02"))
		} else {
			expiry = fmt.Sprintf(", Expires: %s", b.ExpiryDate.Format("2006-01-02"))
		}
	}

	if lang == "zh" {
		return fmt.Sprintf("✅ 已添加: %s%s %s%s\n   批次ID: #%d, 位置: %s%s",
			formatQty(b.Quantity), b.Unit, b.ItemName, brand, b.ID, b.Location, expiry)
	}
	return fmt.Sprintf("✅ Added: %s%s %s%s\n   Batch ID: #%d, Location: %s%s",
		formatQty(b.Quantity), b.Unit, b.ItemName, brand, b.ID, b.Location, expiry)
}

func consumeMessage(result *models.ConsumeResult, itemName, lang string) string {
	if !result.Success {
		return "❌ " + result.Message
	}

	var sb strings.Builder
	if lang == "zh" {
		fmt.Fprintf(&sb, "✅ 已消耗 %s %s\n扣除明细:\n", formatQty(result.ConsumedAmount), itemName)
	} else {
		fmt.Fprintf(&sb, "✅ Consumed %s %s\nDeduction details:\n", formatQty(result.ConsumedAmount), itemName)
	}
	for _, b := range result.AffectedBatches {
		brand := ""
		if b.Brand != nil {
			brand = fmt.Sprintf(" (%s)", *b.Brand)
		}
		fmt.Fprintf(&sb, "   - Batch #%d%s: %s → %s\n",
			b.BatchID, brand, formatQty(b.OldQuantity), formatQty(b.NewQuantity))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func discardedMessage(removed []models.Batch, lang string) string {
	lines := make([]string, 0, len(removed))
	for _, b := range removed {
		if lang == "zh" {
			lines = append(lines, fmt.Sprintf("✅ 已丢弃批次 #%d: %s (%s%s)",
				b.ID, b.ItemName, formatQty(b.Quantity), b.Unit))
		} else {
			lines = append(lines, fmt.Sprintf("✅ Discarded batch #%d: %s (%s%s)",
				b.ID, b.ItemName, formatQty(b.Quantity), b.Unit))
		}
	}
	return strings.Join(lines, "\n")
}

func updatedMessage(b *models.Batch, lang string) string {
	if lang == "zh" {
		return fmt.Sprintf("✅ 已更新批次 #%d: %s (%s%s)", b.ID, b.ItemName, formatQty(b.Quantity), b.Unit)
	}
	return fmt.Sprintf("✅ Updated batch #%d: %s (%s%s)", b.ID, b.ItemName, formatQty(b.Quantity), b.Unit)
}

// inventoryMessage renders the grouped inventory, optionally narrowed by a
// case-insensitive substring filter on item names.
func inventoryMessage(groups []models.InventoryGroup, filter *string, lang string) string {
	if filter != nil && *filter != "" {
		needle := strings.ToLower(*filter)
		var kept []models.InventoryGroup
		for _, g := range groups {
			if strings.Contains(strings.ToLower(g.ItemName), needle) {
				kept = append(kept, g)
			}
		}
		groups = kept
	}

	if len(groups) == 0 {
		if lang == "zh" {
			return "库存为空"
		}
		return "Inventory is empty"
	}

	var lines []string
	if lang == "zh" {
		lines = append(lines, "当前库存:")
	} else {
		lines = append(lines, "Current Inventory:")
	}

	for _, g := range groups {
		lines = append(lines, fmt.Sprintf("\n📦 %s: %s%s", g.ItemName, formatQty(g.TotalQuantity), g.Unit))
		for _, b := range g.Batches {
			status := "🔒 sealed"
			expiry := "no expiry"
			if lang == "zh" {
				status = "🔒 未开封"
				expiry = "无过期日"
			}
			if b.IsOpen {
				if lang == "zh" {
					status = "🔓 已开封"
				} else {
					status = "🔓 OPEN"
				}
			}
			if b.ExpiryDate != nil {
				if lang == "zh" {
					expiry = "过期 " + b.ExpiryDate.Format("2006-01-02")
				} else {
					expiry = "expires " + b.ExpiryDate.Format("2006-01-02")
				}
			}
			brand := ""
			if b.Brand != nil {
				brand = fmt.Sprintf("(%s) ", *b.Brand)
			}
			lines = append(lines, fmt.Sprintf("   - #%d %s: %s%s, %s, %s, %s",
				b.ID, brand, formatQty(b.Quantity), b.Unit, status, expiry, b.Location))
		}
	}
	return strings.Join(lines, "\n")
}

// formatQty renders a quantity without trailing zeros (0.5, 1, 1.25).
func formatQty(q float64) string {
	return strconv.FormatFloat(q, 'f', -1, 64)
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

func derefStr(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
