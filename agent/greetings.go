package agent

import (
	"slices"
	"strings"
)

// DefaultGreetingReply is the canned response for conversational inputs.
const DefaultGreetingReply = "Hello! I am the document assistant. How can I help you?"

// defaultGreetings are the courtesy phrases answered without touching the
// cache or the index. The list is bilingual because deployments serve
// both French and English speakers.
var defaultGreetings = []string{
	"bonjour", "salut", "hello", "hi", "merci", "thanks", "ok", "super", "hey",
}

// isConversational reports whether the trimmed, lowercased question is
// exactly one of the greetings, optionally followed by a single '!', '.'
// or '?'. Anything longer than a bare greeting is a real question.
func isConversational(question string, greetings []string) bool {
	q := strings.ToLower(strings.TrimSpace(question))
	if n := len(q); n > 1 {
		switch q[n-1] {
		case '!', '.', '?':
			q = q[:n-1]
		}
	}
	return slices.Contains(greetings, q)
}
