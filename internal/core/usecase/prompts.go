package usecase

import (
	"fmt"
	"strings"

	"github.com/kirillkom/prism-answer/internal/core/domain"
)

func buildDraftPrompt(query string, history []domain.ConversationTurn, evidence []domain.Evidence) string {
	var b strings.Builder
	b.WriteString(`You are a research assistant answering questions about academic papers.
Answer only from the passages below. Cite every factual claim inline with the
passage id in square brackets, for example [c1] or [c2, c3]. If the passages do
not contain the answer, say so and cite nothing.

Return strict JSON with keys:
answer (string, the full answer with inline citations), used_chunks (array of passage ids you relied on).
No markdown, no extra keys.
`)

	if len(history) > 0 {
		b.WriteString("\nConversation so far:\n")
		for _, turn := range history {
			role := strings.TrimSpace(turn.Role)
			if role == "" {
				role = "user"
			}
			fmt.Fprintf(&b, "%s: %s\n", role, strings.TrimSpace(turn.Content))
		}
	}

	b.WriteString("\nPassages:\n")
	for _, ev := range evidence {
		fmt.Fprintf(&b, "[%s] section=%s%s\n%s\n\n", ev.ID, sectionLabel(ev.SectionType), pageLabel(ev.Page), ev.Text)
	}

	fmt.Fprintf(&b, "Question:\n%s\n", query)
	return b.String()
}

func buildValidationPrompt(sentences []string, cited []domain.Evidence) string {
	var b strings.Builder
	b.WriteString(`You are a strict fact-checker. For each numbered sentence decide whether it
is fully supported by the source passages. A sentence that adds facts, numbers
or conclusions not stated in the passages is unsupported.

Return strict JSON:
{"verdicts":[{"sentence":1,"supported":true,"reason":"..."}]}
Include one verdict per sentence. No markdown, no extra keys.

Sentences:
`)
	for i, s := range sentences {
		fmt.Fprintf(&b, "%d. %s\n", i+1, s)
	}

	b.WriteString("\nSource passages:\n")
	for _, ev := range cited {
		fmt.Fprintf(&b, "[%s]\n%s\n\n", ev.ID, ev.Text)
	}
	return b.String()
}

func sectionLabel(section string) string {
	if strings.TrimSpace(section) == "" {
		return "unknown"
	}
	return section
}

func pageLabel(page *int) string {
	if page == nil {
		return ""
	}
	return fmt.Sprintf(" page=%d", *page)
}
