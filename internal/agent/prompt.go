package agent

import "strings"

// preConsolidationNotice is appended to the system prompt when the
// conversation is close to the consolidation threshold. It tells the agent to
// save anything critical before older turns are summarized away.
const preConsolidationNotice = "NOTE: Older conversation turns will be consolidated into the summary soon. " +
	"If anything discussed above must be kept verbatim, save it now with the save_memory tool."

// buildSystemPrompt composes the system prompt from the base identity prompt,
// the curated memory document, the rolling conversation summary, and an
// optional notice. Empty sections are omitted.
func buildSystemPrompt(base, memory, summary, notice string) string {
	parts := []string{base}
	if memory != "" {
		parts = append(parts, "## Your Memory\n\n"+memory)
	}
	if summary != "" {
		parts = append(parts, "## Conversation Summary\n\n"+summary)
	}
	if notice != "" {
		parts = append(parts, notice)
	}
	return strings.Join(parts, "\n\n---\n\n")
}
