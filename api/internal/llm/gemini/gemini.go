package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"sipnread/api/internal/llm"
)

type Engine struct {
	APIKey string
	Model  string
	media  *MediaFetcher
}

func New(apiKey, model string, media *MediaFetcher) *Engine {
	if media == nil {
		media = NewMediaFetcher(nil)
	}
	return &Engine{
		APIKey: strings.TrimSpace(apiKey),
		Model:  strings.TrimSpace(model),
		media:  media,
	}
}

func (e *Engine) Name() string     { return "gemini" }
func (e *Engine) GetModel() string { return e.Model }

// Generate sends prompt + images and returns the raw JSON text of the first candidate.
func (e *Engine) Generate(ctx context.Context, req llm.Request) (string, error) {
	if e.APIKey == "" {
		return "", errors.New("GEMINI_API_KEY is empty")
	}

	// images first: a bad URL should not cost a model call
	parts := []genai.Part{genai.Text(req.Prompt)}
	for i, u := range req.Media {
		data, mime, err := e.media.Fetch(ctx, u)
		if err != nil {
			return "", fmt.Errorf("gemini %s: image %d: %w", req.Op, i+1, err)
		}
		parts = append(parts,
			genai.Text(fmt.Sprintf("Image %d:", i+1)),
			genai.Blob{MIMEType: mime, Data: data},
		)
	}

	cl, err := genai.NewClient(ctx, option.WithAPIKey(e.APIKey))
	if err != nil {
		return "", err
	}
	defer cl.Close()

	m := cl.GenerativeModel(e.Model)
	if m == nil {
		return "", fmt.Errorf("gemini: model is nil")
	}
	m.GenerationConfig = genai.GenerationConfig{
		Temperature:      req.Temperature,
		ResponseMIMEType: "application/json",
		ResponseSchema:   req.Schema.Genai(),
	}
	m.SafetySettings = safetySettings(req.Safety)
	if s := strings.TrimSpace(req.System); s != "" {
		m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(s)}}
	}

	resp, err := m.GenerateContent(ctx, parts...)
	if err != nil {
		return "", err
	}
	return firstText(resp), nil
}

// --------------------------- helpers ---------------------------

func safetySettings(in []llm.SafetySetting) []*genai.SafetySetting {
	out := make([]*genai.SafetySetting, 0, len(in))
	for _, s := range in {
		cat, ok := harmCategories[s.Category]
		if !ok {
			continue
		}
		th, ok := harmThresholds[s.Threshold]
		if !ok {
			continue
		}
		out = append(out, &genai.SafetySetting{Category: cat, Threshold: th})
	}
	return out
}

var harmCategories = map[llm.HarmCategory]genai.HarmCategory{
	llm.HarmHarassment:       genai.HarmCategoryHarassment,
	llm.HarmHateSpeech:       genai.HarmCategoryHateSpeech,
	llm.HarmSexuallyExplicit: genai.HarmCategorySexuallyExplicit,
	llm.HarmDangerousContent: genai.HarmCategoryDangerousContent,
}

var harmThresholds = map[llm.HarmThreshold]genai.HarmBlockThreshold{
	llm.BlockNone:           genai.HarmBlockNone,
	llm.BlockOnlyHigh:       genai.HarmBlockOnlyHigh,
	llm.BlockMediumAndAbove: genai.HarmBlockMediumAndAbove,
	llm.BlockLowAndAbove:    genai.HarmBlockLowAndAbove,
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	for _, c := range resp.Candidates {
		if c.Content == nil {
			continue
		}
		var b strings.Builder
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				b.WriteString(string(t))
			}
		}
		if b.Len() > 0 {
			return b.String()
		}
	}
	return ""
}
