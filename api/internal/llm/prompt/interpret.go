package prompt

import (
	"strings"

	"sipnread/api/internal/llm/types"
)

// Interpret renders the single-image narrative prompt.
func Interpret(in types.InterpretRequest) (Rendered, error) {
	var b strings.Builder
	b.WriteString("You are an experienced tassologist. Image 1 (attached) shows the tea leaves left in a cup.\n\n")
	writeQuestion(&b, in.Question)
	b.WriteString("\n")
	b.WriteString(referenceFrame)
	b.WriteString(`

Describe the main shapes you see and weave them into one symbolic interpretation of 2-4 paragraphs.
Answer strictly with JSON: {"interpretation": "..."}
`)
	text, err := checkBudget(&b)
	if err != nil {
		return Rendered{}, err
	}
	return Rendered{Text: text, Media: []string{in.ImageURL}}, nil
}
