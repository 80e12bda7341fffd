package models

import (
	"time"

	"sipnread/api/internal/apperr"
	"sipnread/api/internal/llm/types"
	"sipnread/api/internal/schema"
)

// Reading is one saved AI interpretation plus the inputs that produced it.
// Manual fields start empty and are only ever added to by the tassologist workflow.
type Reading struct {
	ID                   string                     `json:"id"`
	UserID               string                     `json:"userId"`
	CreatedAt            time.Time                  `json:"createdAt"`
	UpdatedAt            time.Time                  `json:"updatedAt"`
	ImageURLs            []string                   `json:"imageUrls"`
	UserQuestion         string                     `json:"userQuestion,omitempty"`
	UserSymbolNames      []string                   `json:"userSymbolNames,omitempty"`
	AIResult             types.InterpretationResult `json:"aiResult"`
	ManualSymbols        []ManualSymbol             `json:"manualSymbols"`
	ManualInterpretation string                     `json:"manualInterpretation"`
}

// ManualSymbol is a symbol entered by the tassologist. Position is a clock hour.
type ManualSymbol struct {
	Symbol   string `json:"symbol"`
	Position *int   `json:"position,omitempty"`
}

// ReadingInput is what a client saves after a successful analysis.
type ReadingInput struct {
	ImageURLs       []string                   `json:"imageUrls"`
	UserQuestion    string                     `json:"userQuestion,omitempty"`
	UserSymbolNames []string                   `json:"userSymbolNames,omitempty"`
	AIResult        types.InterpretationResult `json:"aiResult"`
}

func (in ReadingInput) Validate() error {
	if len(in.ImageURLs) == 0 {
		return apperr.Invalid("imageUrls", "minItems", "at least one image is required")
	}
	req := types.InterpretationRequest{Images: in.ImageURLs, Question: in.UserQuestion, UserSymbolNames: in.UserSymbolNames}
	if err := req.Validate(); err != nil {
		return err
	}
	return types.AnalyzeOutputSchema.ValidateValue(schema.Input, in.AIResult)
}

func (in ReadingInput) Reading(uid string) *Reading {
	return &Reading{
		UserID:          uid,
		ImageURLs:       in.ImageURLs,
		UserQuestion:    in.UserQuestion,
		UserSymbolNames: in.UserSymbolNames,
		AIResult:        in.AIResult,
		ManualSymbols:   []ManualSymbol{},
	}
}
