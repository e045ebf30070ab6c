package memory

import (
	"fmt"
	"strings"

	"github.com/toolmemory/sleepmem-go/pkg/storage"
)

// NoMemoriesFound is returned by FormatForPrompt when there is nothing to
// render.
const NoMemoriesFound = "No relevant memories found."

// FormatForPrompt renders search results as a numbered list for inclusion in
// an agent prompt. Each line carries the relevance score and the source tag
// when one is present.
func FormatForPrompt(results []*storage.SearchResult) string {
	if len(results) == 0 {
		return NoMemoriesFound
	}

	var b strings.Builder
	for i, r := range results {
		source := ""
		if r.Metadata != nil {
			if s, ok := r.Metadata["source"].(string); ok && s != "" {
				source = s
			}
		}

		fmt.Fprintf(&b, "%d. [Score: %.3f]", i+1, r.Score)
		if source != "" {
			fmt.Fprintf(&b, " [Source: %s]", source)
		}
		fmt.Fprintf(&b, " %s", r.Text)
		if i < len(results)-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}
