package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sipnread/api/internal/llm/types"
)

func TestRootCommandListsSubcommands(t *testing.T) {
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--help"})
	require.NoError(t, cmd.Execute())
	for _, name := range []string{"serve", "migrate", "read", "extract", "test-notify"} {
		assert.Contains(t, out.String(), name)
	}
}

func TestReadRequiresToken(t *testing.T) {
	t.Setenv("SIPNREAD_TOKEN", "")
	cmd := newRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"read", "--server", "http://localhost:1", "--image", "cup.jpg"})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ID token is required")
}

func TestPrintReading(t *testing.T) {
	var out bytes.Buffer
	printReading(&out, types.InterpretationResult{
		Symbols: []types.DetectedSymbol{
			{Name: "Anchor", Meaning: "stability", Position: "rim", Origin: types.OriginUserConfirmed},
			{Name: "Bird", Meaning: "news", Position: "base", Origin: types.OriginAIDiscovered},
		},
		Interpretation: "Steady times.",
	})
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.Equal(t, []string{
		"Symbols:",
		"  - Anchor (you saw this too): stability [rim]",
		"  - Bird: news [base]",
		"",
		"Steady times.",
	}, lines)
}

func TestPrintReading_ListsUnconfirmedSymbols(t *testing.T) {
	var out bytes.Buffer
	printReading(&out, types.InterpretationResult{
		Symbols:        []types.DetectedSymbol{},
		Interpretation: "No serpent, but a winding road.",
		Unconfirmed:    []string{"Serpent", "Key"},
	})
	assert.Equal(t, "Not found in your cup: Serpent, Key\n\nNo serpent, but a winding road.\n", out.String())
}
