// Package responder holds what the grounded answer generators share.
package responder

import (
	"fmt"
	"strings"

	"docrag/internal/domain"
)

// Responder answers a query from retrieved grounding texts.
type Responder = domain.Responder

// GroundingPrompt renders grounding texts as a numbered document list for
// chat models that take a single system prompt.
func GroundingPrompt(grounding []string) string {
	var b strings.Builder
	b.WriteString("Answer the user's question using only the documents below. ")
	b.WriteString("If they do not contain the answer, say so.\n\n")
	if len(grounding) == 0 {
		b.WriteString("(no documents)\n")
	}
	for i, g := range grounding {
		fmt.Fprintf(&b, "Document %d:\n%s\n\n", i+1, strings.TrimSpace(g))
	}
	return strings.TrimRight(b.String(), "\n")
}

// Generation wraps a provider failure as ErrGeneration, marking deadline
// overruns as ErrUpstreamTimeout.
func Generation(provider string, err error) error {
	if err == nil {
		return nil
	}
	return domain.Upstream(domain.ErrGeneration, fmt.Errorf("%s chat: %w", provider, err))
}
