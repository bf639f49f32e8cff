package search

import (
	"fmt"
	"strings"
)

// FormatContext renders results as the ephemeral system block attached to a
// single completion request. It returns "" when there is nothing to attach.
func FormatContext(query string, results []Result) string {
	if len(results) == 0 {
		return ""
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Live web search results for %q. Use them only if relevant, share the links, and mention that details may be out of date:\n", query)
	for i, r := range results {
		fmt.Fprintf(&sb, "%d. %s - %s\n", i+1, r.Title, r.URL)
	}
	return strings.TrimRight(sb.String(), "\n")
}
