package flow

import (
	"fmt"
	"strings"

	"sipnread/api/internal/apperr"
	"sipnread/api/internal/llm/types"
)

// ApplyConfirmationPolicy enforces the origin rules on a model answer:
//   - a listed symbol the user asserted is user-identified-and-confirmed;
//   - every other listed symbol is ai-discovered;
//   - an asserted symbol missing from the list must be named in the narrative.
//
// It also rejects imageIndex values that point past the submitted images,
// including any imageIndex on an analysis sent without images.
func ApplyConfirmationPolicy(in types.InterpretationRequest, res *types.InterpretationResult) error {
	asserted := make(map[string]string, len(in.UserSymbolNames))
	for _, n := range in.UserSymbolNames {
		if k := normName(n); k != "" {
			asserted[k] = strings.TrimSpace(n)
		}
	}

	listed := make(map[string]bool, len(res.Symbols))
	for i := range res.Symbols {
		sym := &res.Symbols[i]
		k := normName(sym.Name)
		if _, ok := asserted[k]; ok {
			sym.Origin = types.OriginUserConfirmed
			listed[k] = true
		} else {
			sym.Origin = types.OriginAIDiscovered
		}

		if sym.ImageIndex != nil && *sym.ImageIndex > len(in.Images) {
			return &apperr.SchemaValidationError{
				Field:      fmt.Sprintf("symbols[%d].imageIndex", i),
				Constraint: "maximum",
				Detail:     fmt.Sprintf("%d > %d images", *sym.ImageIndex, len(in.Images)),
			}
		}
	}

	narrative := strings.ToLower(res.Interpretation)
	for _, n := range in.UserSymbolNames {
		k := normName(n)
		if k == "" || listed[k] {
			continue
		}
		if !strings.Contains(narrative, k) {
			return &apperr.SchemaValidationError{
				Field:      "interpretation",
				Constraint: "acknowledgeUnconfirmed",
				Detail:     fmt.Sprintf("unconfirmed symbol %q is not addressed", asserted[k]),
			}
		}
	}
	return nil
}

// UnconfirmedSymbols lists asserted names the model did not list.
func UnconfirmedSymbols(in types.InterpretationRequest, res types.InterpretationResult) []string {
	listed := make(map[string]bool, len(res.Symbols))
	for _, s := range res.Symbols {
		listed[normName(s.Name)] = true
	}
	var out []string
	for _, n := range in.UserSymbolNames {
		if k := normName(n); k != "" && !listed[k] {
			out = append(out, strings.TrimSpace(n))
		}
	}
	return out
}

func normName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, "the ")
	s = strings.TrimPrefix(s, "a ")
	s = strings.TrimPrefix(s, "an ")
	return strings.Join(strings.Fields(s), " ")
}
