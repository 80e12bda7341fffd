package types

import (
	"encoding/json"

	"sipnread/api/internal/apperr"
	"sipnread/api/internal/schema"
)

// InterpretRequest carries exactly one image.
type InterpretRequest struct {
	ImageURL string `json:"imageUrl"`
	Question string `json:"question,omitempty"`
}

func (r InterpretRequest) Validate() error {
	return InterpretInputSchema.ValidateValue(schema.Input, r)
}

type InterpretResponse struct {
	Interpretation string `json:"interpretation"`
}

var InterpretInputSchema = &schema.Schema{
	Type:     schema.TypeObject,
	Required: []string{"imageUrl"},
	Properties: map[string]*schema.Schema{
		"imageUrl": {Type: schema.TypeString, Format: schema.FormatURI},
		"question": {Type: schema.TypeString, MaxLength: schema.Int(MaxQuestionLen)},
	},
}

var InterpretOutputSchema = &schema.Schema{
	Type:     schema.TypeObject,
	Required: []string{"interpretation"},
	Properties: map[string]*schema.Schema{
		"interpretation": {Type: schema.TypeString, MinLength: schema.Int(1)},
	},
}

func DecodeInterpretResponse(raw []byte) (InterpretResponse, error) {
	if _, err := InterpretOutputSchema.ValidateJSON(schema.Output, raw); err != nil {
		return InterpretResponse{}, err
	}
	var out InterpretResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return InterpretResponse{}, &apperr.SchemaValidationError{Field: "$", Constraint: "json", Detail: err.Error()}
	}
	return out, nil
}
