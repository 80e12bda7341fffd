package types

import (
	"encoding/json"

	"sipnread/api/internal/apperr"
	"sipnread/api/internal/schema"
)

// ExtractRequest is the input of symbol extraction from free text.
type ExtractRequest struct {
	Text string `json:"text"`
}

func (r ExtractRequest) Validate() error {
	return ExtractInputSchema.ValidateValue(schema.Input, r)
}

// ExtractedSymbol is a name plus an optional clock position (0–12).
// Position stays nil unless the text names an explicit clock number.
type ExtractedSymbol struct {
	SymbolName string `json:"symbolName"`
	Position   *int   `json:"position,omitempty"`
}

type ExtractResponse struct {
	Symbols []ExtractedSymbol `json:"symbols"`
}

var ExtractInputSchema = &schema.Schema{
	Type:     schema.TypeObject,
	Required: []string{"text"},
	Properties: map[string]*schema.Schema{
		"text": {Type: schema.TypeString, MinLength: schema.Int(1), MaxLength: schema.Int(MaxExtractTextLen)},
	},
}

var ExtractOutputSchema = &schema.Schema{
	Type: schema.TypeObject,
	Properties: map[string]*schema.Schema{
		"symbols": {
			Type:     schema.TypeArray,
			Nullable: true,
			Items: &schema.Schema{
				Type:     schema.TypeObject,
				Required: []string{"symbolName"},
				Properties: map[string]*schema.Schema{
					"symbolName": {Type: schema.TypeString, MinLength: schema.Int(1)},
					"position": {
						Type:        schema.TypeInteger,
						Nullable:    true,
						Minimum:     schema.Float(0),
						Maximum:     schema.Float(12),
						Description: "Clock position, only when the text states an explicit number.",
					},
				},
			},
		},
	},
}

// DecodeExtractResponse accepts either {"symbols": [...]} or a bare array;
// null and missing lists decode to an empty slice.
func DecodeExtractResponse(raw []byte) (ExtractResponse, error) {
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return ExtractResponse{}, &apperr.SchemaValidationError{Field: "$", Constraint: "json", Detail: err.Error()}
	}
	switch v := decoded.(type) {
	case nil:
		return ExtractResponse{Symbols: []ExtractedSymbol{}}, nil
	case []any:
		decoded = map[string]any{"symbols": v}
	}
	if err := ExtractOutputSchema.Validate(schema.Output, decoded); err != nil {
		return ExtractResponse{}, err
	}
	b, _ := json.Marshal(decoded)
	var out ExtractResponse
	if err := json.Unmarshal(b, &out); err != nil {
		return ExtractResponse{}, &apperr.SchemaValidationError{Field: "$", Constraint: "json", Detail: err.Error()}
	}
	if out.Symbols == nil {
		out.Symbols = []ExtractedSymbol{}
	}
	return out, nil
}
