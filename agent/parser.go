package agent

import (
	"fmt"
	"regexp"
	"strings"
)

// correctiveObservation is fed back to the model when its reply could
// not be parsed, so the loop recovers instead of aborting.
const correctiveObservation = "Invalid format. Reply with 'Action: <tool name>' and 'Action Input: <input>' lines, or conclude with 'Final Answer: <answer>'."

const finalAnswerMarker = "Final Answer:"

var (
	thoughtRe     = regexp.MustCompile(`(?m)^\s*Thought\s*:\s*(.+)$`)
	actionRe      = regexp.MustCompile(`(?m)^\s*Action\s*:\s*(.+)$`)
	actionInputRe = regexp.MustCompile(`(?m)^\s*Action\s+Input\s*:\s*(.*)$`)
)

// reply is the structured form of one model completion: either a final
// answer or a tool invocation, with the leading thought when present.
type reply struct {
	thought     string
	action      string
	actionInput string
	finalAnswer string
	isFinal     bool
}

// parseReply extracts a tool invocation or a final answer from raw model
// output. A "Final Answer:" marker wins over any action lines, matching
// how models signal they are done even after a stray action. Output with
// neither form is an errUnparseable, which the loop converts into a
// corrective observation.
func parseReply(output string) (*reply, error) {
	output = strings.TrimSpace(output)
	if output == "" {
		return nil, fmt.Errorf("%w: empty output", errUnparseable)
	}

	r := &reply{}
	if m := thoughtRe.FindStringSubmatch(output); m != nil {
		r.thought = strings.TrimSpace(m[1])
	}

	if idx := strings.Index(output, finalAnswerMarker); idx >= 0 {
		r.isFinal = true
		r.finalAnswer = strings.TrimSpace(output[idx+len(finalAnswerMarker):])
		return r, nil
	}

	actionMatch := actionRe.FindStringSubmatch(output)
	if actionMatch == nil {
		return nil, fmt.Errorf("%w: no Action line", errUnparseable)
	}
	inputMatch := actionInputRe.FindStringSubmatch(output)
	if inputMatch == nil {
		return nil, fmt.Errorf("%w: Action without Action Input", errUnparseable)
	}

	r.action = cleanToken(actionMatch[1])
	r.actionInput = cleanInput(inputMatch[1])
	if r.action == "" {
		return nil, fmt.Errorf("%w: blank Action", errUnparseable)
	}
	return r, nil
}

// cleanToken strips the brackets, quotes, and stray whitespace models
// wrap tool names in when echoing the format template.
func cleanToken(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "[]`\"'")
	return strings.TrimSpace(s)
}

// cleanInput strips surrounding quotes from a tool input, keeping inner
// punctuation intact.
func cleanInput(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if first == last && (first == '"' || first == '\'' || first == '`') {
			s = s[1 : len(s)-1]
		}
	}
	return strings.TrimSpace(s)
}
