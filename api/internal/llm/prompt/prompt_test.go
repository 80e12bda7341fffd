package prompt

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sipnread/api/internal/apperr"
	"sipnread/api/internal/llm/types"
)

func urls(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("https://img.example/cup-%d.jpg", i)
	}
	return out
}

func names(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = strings.Repeat("S", types.MaxSymbolNameLen-1) + fmt.Sprint(i)
	}
	return out
}

func TestAnalyze_ClausesAndBudget(t *testing.T) {
	question := strings.Repeat("q", types.MaxQuestionLen)
	for imgs := 0; imgs <= types.MaxImages; imgs++ {
		for syms := 0; syms <= types.MaxUserSymbols; syms++ {
			r, err := Analyze(types.InterpretationRequest{Images: urls(imgs), Question: question, UserSymbolNames: names(syms)})
			require.NoError(t, err)
			assert.LessOrEqual(t, utf8.RuneCountInString(r.Text), MaxPromptChars)

			hasLoop := strings.Contains(r.Text, "Image 1:")
			hasNone := strings.Contains(r.Text, NoImagesClause)
			assert.True(t, hasLoop != hasNone, "imgs=%d: exactly one image clause expected", imgs)
			assert.Len(t, r.Media, imgs)

			hasNoSyms := strings.Contains(r.Text, NoSymbolsClause)
			assert.Equal(t, syms == 0, hasNoSyms)
		}
	}
}

func TestAnalyze_OneBasedLabels(t *testing.T) {
	r, err := Analyze(types.InterpretationRequest{Images: urls(3)})
	require.NoError(t, err)
	assert.Contains(t, r.Text, "Image 1:")
	assert.Contains(t, r.Text, "Image 3:")
	assert.NotContains(t, r.Text, "Image 0:")
	assert.NotContains(t, r.Text, "Image 4:")
	assert.Equal(t, urls(3), r.Media)
}

func TestAnalyze_UserSymbolsVerbatim(t *testing.T) {
	r, err := Analyze(types.InterpretationRequest{UserSymbolNames: []string{"Serpent", " Winged Horse "}})
	require.NoError(t, err)
	assert.Contains(t, r.Text, "- Serpent\n")
	assert.Contains(t, r.Text, "- Winged Horse\n")
	assert.Contains(t, r.Text, string(types.OriginUserConfirmed))
	assert.Contains(t, r.Text, "3 o'clock")
}

func TestAnalyze_Deterministic(t *testing.T) {
	in := types.InterpretationRequest{Images: urls(2), Question: "Love?", UserSymbolNames: []string{"Heart"}}
	a, err := Analyze(in)
	require.NoError(t, err)
	b, err := Analyze(in)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestAnalyze_RejectsOverLimit(t *testing.T) {
	_, err := Analyze(types.InterpretationRequest{Images: urls(5)})
	var ve *apperr.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "images", ve.Field)

	_, err = Analyze(types.InterpretationRequest{UserSymbolNames: names(5)})
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "userSymbolNames", ve.Field)
}

func TestExtract_BudgetAtMaxText(t *testing.T) {
	r, err := Extract(types.ExtractRequest{Text: strings.Repeat("a", types.MaxExtractTextLen)})
	require.NoError(t, err)
	assert.LessOrEqual(t, utf8.RuneCountInString(r.Text), MaxPromptChars)
	assert.Empty(t, r.Media)
}

func TestInterpret(t *testing.T) {
	r, err := Interpret(types.InterpretRequest{ImageURL: "https://img.example/a.jpg"})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://img.example/a.jpg"}, r.Media)
	assert.Contains(t, r.Text, "general reading")
}
