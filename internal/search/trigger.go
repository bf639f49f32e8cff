// Package search decides when a message deserves live web context and
// fetches that context from a public HTML search endpoint.
package search

import "strings"

// triggerTerms are matched as plain substrings of the lowercased message.
// Over-triggering only costs one best-effort fetch.
var triggerTerms = []string{
	// generic lookup intent
	"search",
	"find",
	"look up",
	"where can i",
	"directory",
	"providers",
	"contact",
	"near me",
	// jobs and employment
	"job",
	"employment",
	"hiring",
	"career",
	"vacancy",
	"vacancies",
	"apprenticeship",
	// jobs and employment, Spanish
	"trabajo",
	"empleo",
	"vacante",
	"contratando",
	"busco chamba",
}

// ShouldSearch reports whether text should trigger a web lookup.
func ShouldSearch(text string) bool {
	lower := strings.ToLower(text)
	for _, term := range triggerTerms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}
