package agent

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/tools"

	"github.com/solenne/docent/core"
)

// maxHistoryTurns bounds how much prior conversation reaches the prompt.
// Three exchanges is enough for follow-up questions without inflating
// the token count.
const maxHistoryTurns = 6

// buildSystemPrompt renders the persona, the tool inventory, the reply
// format the parser expects, and the tool-priority rules.
func buildSystemPrompt(toolset []tools.Tool) string {
	var inventory strings.Builder
	names := make([]string, 0, len(toolset))
	for _, tool := range toolset {
		fmt.Fprintf(&inventory, "- %s: %s\n", tool.Name(), tool.Description())
		names = append(names, tool.Name())
	}

	var b strings.Builder
	b.WriteString("You are a document corpus assistant. ")
	b.WriteString("Answer the question using the tools below.\n\n")
	b.WriteString("Tools:\n")
	b.WriteString(inventory.String())
	b.WriteString("\nUse this exact format:\n\n")
	b.WriteString("Question: the question to answer\n")
	b.WriteString("Thought: your reasoning about what to do next\n")
	fmt.Fprintf(&b, "Action: one of [%s]\n", strings.Join(names, ", "))
	b.WriteString("Action Input: the input for the tool\n")
	b.WriteString("Observation: the tool result\n")
	b.WriteString("... (Thought/Action/Action Input/Observation may repeat)\n")
	b.WriteString("Thought: I know the final answer\n")
	b.WriteString("Final Answer: the answer to the question\n")
	b.WriteString("\nRules:\n")
	b.WriteString("1. Search the documents first.\n")
	b.WriteString("2. If the documents answer the question, give the Final Answer.\n")
	b.WriteString("3. Use web search only when the documents have nothing or the question needs current information.\n")
	b.WriteString("4. Use at most 2 actions before answering.\n")
	return b.String()
}

// buildUserPrompt assembles the optional conversation transcript, the
// question, and the running scratchpad of completed steps. It ends with
// a bare "Thought:" cue so the model continues the loop format.
func buildUserPrompt(transcript, question string, steps []core.AgentStep) string {
	var b strings.Builder
	if transcript != "" {
		b.WriteString(transcript)
		b.WriteByte('\n')
	}
	b.WriteString("Question: ")
	b.WriteString(question)
	b.WriteByte('\n')
	for _, step := range steps {
		if step.Thought != "" {
			b.WriteString("Thought: ")
			b.WriteString(step.Thought)
			b.WriteByte('\n')
		}
		if step.Action != "" {
			b.WriteString("Action: ")
			b.WriteString(step.Action)
			b.WriteByte('\n')
			b.WriteString("Action Input: ")
			b.WriteString(step.ActionInput)
			b.WriteByte('\n')
		}
		if step.Observation != "" {
			b.WriteString("Observation: ")
			b.WriteString(step.Observation)
			b.WriteByte('\n')
		}
	}
	b.WriteString("Thought:")
	return b.String()
}

// formatHistory renders the most recent turns as a short transcript, one
// "Role: content" line per turn. Empty history renders as "".
func formatHistory(history []core.ConversationTurn) string {
	if len(history) == 0 {
		return ""
	}
	if len(history) > maxHistoryTurns {
		history = history[len(history)-maxHistoryTurns:]
	}

	var b strings.Builder
	b.WriteString("Previous conversation:\n")
	for _, turn := range history {
		b.WriteString(capitalize(turn.Role.String()))
		b.WriteString(": ")
		b.WriteString(turn.Content)
		b.WriteByte('\n')
	}
	return b.String()
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
