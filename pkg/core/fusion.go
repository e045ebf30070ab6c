package core

import (
	"fmt"
	"strings"

	"github.com/toolmemory/sleepmem-go/pkg/storage"
)

// Prompt composition limits.
const (
	// maxPromptMemories is the number of memories included in a prompt.
	maxPromptMemories = 3

	// memorySnippetCap bounds each memory snippet in the prompt.
	memorySnippetCap = 200

	// webPromptCap bounds the web search payload in the prompt.
	webPromptCap = 800

	// webPersistCap bounds the web search payload persisted to the store.
	webPersistCap = 500
)

// closingInstruction ends every composed prompt.
const closingInstruction = "Please provide a comprehensive response using the available context."

// baseTriggerWords fire a web search regardless of memory state.
var baseTriggerWords = []string{
	"latest", "recent", "current", "today", "news", "2024", "2025",
}

// noMemoryTriggerWords additionally fire when no memories matched the query.
var noMemoryTriggerWords = []string{
	"what is", "how to", "when", "where", "who",
}

// needsWebSearch decides whether a query warrants a web search. The check is
// a deterministic case-insensitive substring match: recency words always
// trigger, and broad question words trigger only when memory came up empty.
func needsWebSearch(query string, hasMemories bool) bool {
	lowered := strings.ToLower(query)

	for _, word := range baseTriggerWords {
		if strings.Contains(lowered, word) {
			return true
		}
	}

	if !hasMemories {
		for _, word := range noMemoryTriggerWords {
			if strings.Contains(lowered, word) {
				return true
			}
		}
	}

	return false
}

// buildPrompt composes the bounded agent prompt: the user query, up to 3
// memory snippets, the web search payload when present, and the closing
// instruction.
func buildPrompt(query string, memories []*storage.SearchResult, webPayload string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "User query: %s\n", query)

	if len(memories) > 0 {
		b.WriteString("\nRelevant memories:\n")
		limit := len(memories)
		if limit > maxPromptMemories {
			limit = maxPromptMemories
		}
		for i := 0; i < limit; i++ {
			fmt.Fprintf(&b, "%d. %s\n", i+1, truncate(memories[i].Text, memorySnippetCap))
		}
	}

	if webPayload != "" {
		b.WriteString("\nWeb search context:\n")
		b.WriteString(truncate(webPayload, webPromptCap))
		b.WriteString("\n")
	}

	b.WriteString("\n" + closingInstruction)
	return b.String()
}

// truncate caps s at max characters, not bytes, so multi-byte runes are
// never split mid-sequence.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
