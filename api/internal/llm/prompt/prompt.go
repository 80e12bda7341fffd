package prompt

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"sipnread/api/internal/apperr"
)

// MaxPromptChars keeps rendered prompts well inside the model context window.
const MaxPromptChars = 24000

// Rendered holds prompt text plus the media it refers to, in label order.
type Rendered struct {
	Text  string
	Media []string
}

const referenceFrame = `Reference frame (always use it, never pixel coordinates):
- The cup handle is at the 3 o'clock position. Describe every location as a clock position relative to it.
- Rim (upper band of the cup): the near future, days to a couple of weeks.
- Sides (middle band): the coming weeks and months.
- Bottom: the distant future and deeper, slower influences.
- Close to the handle: home, family and the querent's own circle.
- Opposite the handle: strangers, travel and the outside world.`

func checkBudget(b *strings.Builder) (string, error) {
	s := b.String()
	if n := utf8.RuneCountInString(s); n > MaxPromptChars {
		return "", apperr.Invalid("prompt", "maxLength", fmt.Sprintf("%d > %d characters", n, MaxPromptChars))
	}
	return s, nil
}

func writeQuestion(b *strings.Builder, question string) {
	q := strings.TrimSpace(question)
	if q == "" {
		b.WriteString("The querent did not ask a specific question; give a general reading.\n")
		return
	}
	fmt.Fprintf(b, "The querent asks: %q\nAddress this question directly in the interpretation.\n", q)
}
