package prompt

import (
	"strings"

	"sipnread/api/internal/llm/types"
)

// Extract renders the symbol-extraction prompt for a free-text narrative.
func Extract(in types.ExtractRequest) (Rendered, error) {
	var b strings.Builder
	b.WriteString(`List every tea-leaf symbol named in the text below.
Rules:
- symbolName: the symbol as written, capitalised (e.g. "Anchor").
- position: an integer 0-12, ONLY when the text gives an explicit clock number for that symbol ("at 3 o'clock", "near 9").
- Vague places such as "top", "left side" or "near the rim" give NO position field. Never use 0 as a placeholder.
- Do not invent symbols that are not in the text.
Answer strictly with JSON: {"symbols": [{"symbolName": "Anchor", "position": 3}, {"symbolName": "Mountain"}]}

Text:
"""
`)
	b.WriteString(strings.TrimSpace(in.Text))
	b.WriteString("\n\"\"\"\n")
	text, err := checkBudget(&b)
	if err != nil {
		return Rendered{}, err
	}
	return Rendered{Text: text}, nil
}
