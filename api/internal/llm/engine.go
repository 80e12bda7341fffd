package llm

import (
	"context"

	"sipnread/api/internal/schema"
)

// Model is the generative model boundary: one blocking call, raw text out.
type Model interface {
	Name() string
	GetModel() string
	Generate(ctx context.Context, req Request) (string, error)
}

// Request is a rendered prompt plus the contract the answer must satisfy.
type Request struct {
	Op          string   // flow name, used in errors and logs
	System      string   // optional system instruction
	Prompt      string   // rendered user prompt
	Media       []string // image URLs in the order the prompt labels them
	Schema      *schema.Schema
	Safety      []SafetySetting // per-call overrides, merged over DefaultSafety
	Temperature *float32
}

func Temperature(v float32) *float32 { return &v }
