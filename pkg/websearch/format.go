package websearch

import (
	"fmt"
	"strings"
)

// NoResultsFound is emitted when a search returned no hits.
const NoResultsFound = "No specific results found."

// contentCap bounds per-result content in the agent-facing rendering.
const contentCap = 300

// FormatForAgent renders a search response as plain text for inclusion in an
// agent prompt. Result content is capped at 300 characters. The answer
// section appears only when the provider produced one.
func FormatForAgent(resp *Response) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Web search results for '%s':\n", resp.Query)

	if resp.Answer != nil && *resp.Answer != "" {
		fmt.Fprintf(&b, "\nAnswer: %s\n", *resp.Answer)
	}

	if len(resp.Results) == 0 {
		b.WriteString("\n" + NoResultsFound)
		return b.String()
	}

	for i, r := range resp.Results {
		content := r.Content
		// Cap counts characters, not bytes, so multi-byte runes survive intact.
		if runes := []rune(content); len(runes) > contentCap {
			content = string(runes[:contentCap]) + "..."
		}
		fmt.Fprintf(&b, "\n%d. %s\n   URL: %s\n   %s\n", i+1, r.Title, r.URL, content)
	}

	return b.String()
}
