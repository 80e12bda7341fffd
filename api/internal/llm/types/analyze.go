package types

import (
	"encoding/json"

	"sipnread/api/internal/apperr"
	"sipnread/api/internal/schema"
)

const (
	MaxImages         = 4
	MaxUserSymbols    = 4
	MaxQuestionLen    = 1000
	MaxSymbolNameLen  = 100
	MaxExtractTextLen = 20000
)

// Origin says where a detected symbol came from.
type Origin string

const (
	OriginUserConfirmed Origin = "user-identified-and-confirmed"
	OriginAIDiscovered  Origin = "ai-discovered"
)

func (o Origin) Valid() bool {
	return o == OriginUserConfirmed || o == OriginAIDiscovered
}

// InterpretationRequest is the input of a full cup analysis.
type InterpretationRequest struct {
	Images          []string `json:"images,omitempty"`          // public image URLs, ≤4
	Question        string   `json:"question,omitempty"`        // optional, ≤1000 chars
	UserSymbolNames []string `json:"userSymbolNames,omitempty"` // names the user believes they see, ≤4
}

func (r InterpretationRequest) Validate() error {
	return AnalyzeInputSchema.ValidateValue(schema.Input, r)
}

// DetectedSymbol is one entry of the structured model output.
type DetectedSymbol struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Position    string `json:"position"`             // relative to the handle at 3 o'clock
	ImageIndex  *int   `json:"imageIndex,omitempty"` // 1-based
	Notes       string `json:"notes,omitempty"`
	Meaning     string `json:"meaning"`
	Origin      Origin `json:"origin"`
}

// InterpretationResult is the output of a full cup analysis.
type InterpretationResult struct {
	Symbols        []DetectedSymbol `json:"symbols"`
	Interpretation string           `json:"interpretation"`
	// Unconfirmed names the user asserted that the model did not list.
	Unconfirmed []string `json:"unconfirmedSymbols,omitempty"`
}

var AnalyzeInputSchema = &schema.Schema{
	Type: schema.TypeObject,
	Properties: map[string]*schema.Schema{
		"images": {
			Type:     schema.TypeArray,
			MaxItems: schema.Int(MaxImages),
			Items:    &schema.Schema{Type: schema.TypeString, Format: schema.FormatURI},
		},
		"question": {Type: schema.TypeString, MaxLength: schema.Int(MaxQuestionLen)},
		"userSymbolNames": {
			Type:     schema.TypeArray,
			MaxItems: schema.Int(MaxUserSymbols),
			Items:    &schema.Schema{Type: schema.TypeString, MinLength: schema.Int(1), MaxLength: schema.Int(MaxSymbolNameLen)},
		},
	},
}

var detectedSymbolSchema = &schema.Schema{
	Type:     schema.TypeObject,
	Required: []string{"name", "description", "position", "meaning", "origin"},
	Properties: map[string]*schema.Schema{
		"name":        {Type: schema.TypeString, MinLength: schema.Int(1), Description: "Name of the symbol, e.g. Anchor, Bird, Ring."},
		"description": {Type: schema.TypeString, Description: "What the shape looks like in the leaves."},
		"position":    {Type: schema.TypeString, MinLength: schema.Int(1), Description: "Location relative to the handle at 3 o'clock, e.g. 'near the rim at 12 o'clock'."},
		"imageIndex": {
			Type:        schema.TypeInteger,
			Minimum:     schema.Float(1),
			Maximum:     schema.Float(MaxImages),
			Description: "1-based number of the image that shows the symbol best.",
		},
		"notes":   {Type: schema.TypeString},
		"meaning": {Type: schema.TypeString, Description: "Traditional meaning of the symbol in tasseography."},
		"origin": {
			Type: schema.TypeString,
			Enum: []string{string(OriginUserConfirmed), string(OriginAIDiscovered)},
		},
	},
}

var AnalyzeOutputSchema = &schema.Schema{
	Type:     schema.TypeObject,
	Required: []string{"symbols", "interpretation"},
	Properties: map[string]*schema.Schema{
		"symbols":        {Type: schema.TypeArray, Items: detectedSymbolSchema},
		"interpretation": {Type: schema.TypeString, MinLength: schema.Int(1)},
	},
}

// DecodeInterpretationResult validates raw model JSON against AnalyzeOutputSchema
// and only then decodes it.
func DecodeInterpretationResult(raw []byte) (InterpretationResult, error) {
	if _, err := AnalyzeOutputSchema.ValidateJSON(schema.Output, raw); err != nil {
		return InterpretationResult{}, err
	}
	var out InterpretationResult
	if err := json.Unmarshal(raw, &out); err != nil {
		return InterpretationResult{}, &apperr.SchemaValidationError{Field: "$", Constraint: "json", Detail: err.Error()}
	}
	if out.Symbols == nil {
		out.Symbols = []DetectedSymbol{}
	}
	return out, nil
}
