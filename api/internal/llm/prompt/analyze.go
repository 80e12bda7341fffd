package prompt

import (
	"fmt"
	"strings"

	"sipnread/api/internal/apperr"
	"sipnread/api/internal/llm/types"
)

const NoImagesClause = "No images were provided. Say so in the interpretation and do not invent symbols."
const NoSymbolsClause = "No symbols were pre-identified by the querent; perform a full scan of the leaves."

// Analyze renders the analyzeTeaLeafPatterns prompt. Pure: same input, same text.
func Analyze(in types.InterpretationRequest) (Rendered, error) {
	if len(in.Images) > types.MaxImages {
		return Rendered{}, apperr.Invalid("images", "maxItems", fmt.Sprintf("%d > %d", len(in.Images), types.MaxImages))
	}
	if len(in.UserSymbolNames) > types.MaxUserSymbols {
		return Rendered{}, apperr.Invalid("userSymbolNames", "maxItems", fmt.Sprintf("%d > %d", len(in.UserSymbolNames), types.MaxUserSymbols))
	}

	var b strings.Builder
	b.WriteString("You are an experienced tassologist reading tea leaves left in a cup.\n\n")

	b.WriteString("Images:\n")
	if len(in.Images) == 0 {
		b.WriteString(NoImagesClause + "\n")
	} else {
		for i := range in.Images {
			fmt.Fprintf(&b, "Image %d: attached media part %d of %d.\n", i+1, i+1, len(in.Images))
		}
		b.WriteString("The images may show the same cup from different angles. Report each symbol once, with the image number that shows it best.\n")
	}
	b.WriteString("\n")

	writeQuestion(&b, in.Question)
	b.WriteString("\n")

	names := cleanNames(in.UserSymbolNames)
	if len(names) == 0 {
		b.WriteString(NoSymbolsClause + "\n")
	} else {
		b.WriteString("The querent believes they can see these symbols:\n")
		for _, n := range names {
			fmt.Fprintf(&b, "- %s\n", n)
		}
		b.WriteString(`Look for each of them first.
- If a symbol is reasonably confirmed visually, list it with origin "` + string(types.OriginUserConfirmed) + `".
- If you cannot confirm it, do NOT list it; instead mention it by name in the interpretation and explain gently what you see there instead.
`)
	}
	b.WriteString(`Every other distinct symbol you find must be listed with origin "` + string(types.OriginAIDiscovered) + `".` + "\n\n")

	b.WriteString(referenceFrame)
	b.WriteString("\n\n")

	b.WriteString(`Instructions:
1. Identify distinct shapes: animals, objects, letters, numbers, lines and dots.
2. For each symbol give its name, what it looks like, its clock position relative to the handle, the image number and its traditional meaning.
3. Combine the symbols and their placement into one warm, coherent narrative of 2-5 paragraphs.
4. Keep the tone reflective and symbolic; never give medical, legal or financial advice.

`)

	b.WriteString("Answer strictly with JSON of this shape and nothing else:\n")
	b.WriteString(`{
  "symbols": [
    {
      "name": "Anchor",
      "description": "A clear anchor shape with a curved base",
      "position": "near the rim at 12 o'clock",
      "imageIndex": 1,
      "notes": "partly faded",
      "meaning": "stability and a safe harbour",
      "origin": "` + string(types.OriginAIDiscovered) + `"
    }
  ],
  "interpretation": "..."
}
`)

	text, err := checkBudget(&b)
	if err != nil {
		return Rendered{}, err
	}
	return Rendered{Text: text, Media: append([]string(nil), in.Images...)}, nil
}

func cleanNames(in []string) []string {
	out := make([]string, 0, len(in))
	for _, n := range in {
		if s := strings.TrimSpace(n); s != "" {
			out = append(out, s)
		}
	}
	return out
}
