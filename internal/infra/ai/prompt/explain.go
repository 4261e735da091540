package prompt

import (
	"fmt"
	"strings"

	"github.com/bryanwahyu/cloudsec/internal/domain/ai"
)

// GetSystemPrompt frames the model as a cloud security reviewer.
func GetSystemPrompt() string {
	return `You are a senior cloud security engineer. Explain a single detected misconfiguration to an operator.

Requirements:
- Plain text, no markdown headings, no code fences.
- At most 3 short paragraphs.
- Paragraph 1: what the misconfiguration is and why it is dangerous.
- Paragraph 2: how an attacker could exploit it.
- Paragraph 3: the concrete fix, naming the cloud control to change.
- Do not invent resource names or account details that are not in the prompt.`
}

// GetUserPrompt describes the risk and, when known, its resource.
func GetUserPrompt(s ai.Subject) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Risk type: %s\n", s.Risk.Type)
	fmt.Fprintf(&b, "Severity: %s\n", s.Risk.Severity)
	fmt.Fprintf(&b, "Finding: %s\n", s.Risk.Description)
	if r := s.Resource; r != nil {
		fmt.Fprintf(&b, "Resource: %s %q in %s (public: %t)\n", r.Type, r.Name, stringOrDash(r.Location), r.Public)
	}
	b.WriteString("Explain this risk.")
	return b.String()
}

func stringOrDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
