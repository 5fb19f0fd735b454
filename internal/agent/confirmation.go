package agent

import (
	"strings"

	"github.com/raphaelgruber/kitchenloop-go/internal/models"
)

// decision is the outcome of classifying a confirmation reply.
type decision int

const (
	decisionUnclear decision = iota
	decisionConfirm
	decisionCancel
	decisionCorrection
)

// The tiers are checked in priority order: explicit keywords beat negation
// patterns, negation patterns beat bare yes/no. "不对" must cancel even
// though it starts with the simple-no token "不".
var (
	explicitConfirm = []string{"confirm", "确认", "确定", "执行"}
	explicitCancel  = []string{"cancel", "取消", "算了", "不要了", "不执行"}

	negationPatterns = []string{"不对", "不是", "不行", "错了", "wrong", "not right", "wait"}

	simpleYes = []string{"yes", "y", "ok", "是", "好", "可以", "行", "嗯", "对"}
	simpleNo  = []string{"no", "n", "否", "不"}
)

// classifyConfirmation maps a reply to a pending confirmation onto one of
// confirm, cancel, correction or unclear.
func classifyConfirmation(input string) decision {
	s := strings.ToLower(strings.TrimSpace(input))

	for _, p := range explicitConfirm {
		if s == p || strings.HasPrefix(s, p) {
			return decisionConfirm
		}
	}
	for _, p := range explicitCancel {
		if s == p || strings.HasPrefix(s, p) {
			return decisionCancel
		}
	}

	for _, p := range negationPatterns {
		if strings.Contains(s, p) {
			return decisionCorrection
		}
	}

	for _, p := range simpleYes {
		if s == p || strings.HasPrefix(s, p+" ") {
			return decisionConfirm
		}
	}
	for _, p := range simpleNo {
		if s == p || strings.HasPrefix(s, p+" ") {
			return decisionCancel
		}
	}

	return decisionUnclear
}

// confirmationTokens are replies that carry no language signal of their own.
var confirmationTokens = map[string]struct{}{
	"confirm": {}, "cancel": {}, "确认": {}, "取消": {},
	"是": {}, "否": {}, "yes": {}, "no": {}, "ok": {}, "好": {},
}

func isConfirmationToken(s string) bool {
	_, ok := confirmationTokens[strings.ToLower(strings.TrimSpace(s))]
	return ok
}

// detectLanguage picks zh or en from the latest user message that is more
// than a bare confirmation token, so replying "yes" to a Chinese preview
// does not flip the response language.
func detectLanguage(messages []models.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role != "user" || isConfirmationToken(messages[i].Content) {
			continue
		}
		if containsCJK(messages[i].Content) {
			return "zh"
		}
		return "en"
	}
	return "en"
}

func containsCJK(s string) bool {
	for _, r := range s {
		if r >= 0x4e00 && r <= 0x9fff {
			return true
		}
	}
	return false
}
