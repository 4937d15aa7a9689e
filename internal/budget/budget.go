// Package budget trims a conversation to fit a token budget.
//
// Token counts are estimates. The default Chars estimator charges one token
// per four bytes of text with a floor of one token per non-trivial string,
// so every message costs at least two tokens (role plus content).
package budget

import (
	"github.com/ziadkadry99/docqa/internal/llm"
)

// Estimator approximates the token cost of a string.
type Estimator interface {
	Estimate(text string) int
}

// Chars estimates tokens from the byte length of the text.
type Chars struct {
	PerToken int
}

// DefaultEstimator is Chars with four bytes per token.
var DefaultEstimator Estimator = Chars{PerToken: 4}

func (c Chars) Estimate(text string) int {
	per := c.PerToken
	if per <= 0 {
		per = 4
	}
	return max(1, len(text)/per)
}

// MessageTokens is the estimated cost of msgs, counting role and content.
func MessageTokens(est Estimator, msgs []llm.Message) int {
	total := 0
	for _, m := range msgs {
		total += est.Estimate(string(m.Role)) + est.Estimate(m.Content)
	}
	return total
}

// Fit returns the most recent messages whose estimated cost stays within
// maxTokens. A leading system message is always kept, even when it alone
// exceeds the budget, and its cost counts against the budget. Walking back
// from the newest message, Fit stops at the first message that would
// overflow; older messages are dropped whole. Kept messages stay in
// chronological order. The input is not modified.
func Fit(msgs []llm.Message, maxTokens int, est Estimator) []llm.Message {
	if len(msgs) == 0 {
		return nil
	}
	if est == nil {
		est = DefaultEstimator
	}

	var head []llm.Message
	rest := msgs
	if msgs[0].Role == llm.RoleSystem {
		head = msgs[:1]
		rest = msgs[1:]
	}

	used := MessageTokens(est, head)
	start := len(rest)
	for i := len(rest) - 1; i >= 0; i-- {
		cost := MessageTokens(est, rest[i:i+1])
		if used+cost > maxTokens {
			break
		}
		used += cost
		start = i
	}

	out := make([]llm.Message, 0, len(head)+len(rest)-start)
	out = append(out, head...)
	return append(out, rest[start:]...)
}
