package flow

import (
	"context"
	"time"

	"go.uber.org/zap"

	"sipnread/api/internal/llm"
	"sipnread/api/internal/llm/prompt"
	"sipnread/api/internal/llm/types"
)

const (
	FlowAnalyze   = "analyzeTeaLeafPatterns"
	FlowInterpret = "generateInterpretation"
	FlowExtract   = "extractSymbolsFromText"
)

// Service hosts the three named flows. Each flow validates its input,
// renders a prompt, makes exactly one model call and checks the answer.
type Service struct {
	model       llm.Model
	log         *zap.Logger
	safety      []llm.SafetySetting
	temperature *float32
}

type Option func(*Service)

// WithSafety sets per-call safety overrides merged over llm.DefaultSafety.
func WithSafety(overrides []llm.SafetySetting) Option {
	return func(s *Service) { s.safety = overrides }
}

func WithTemperature(t float32) Option {
	return func(s *Service) { s.temperature = llm.Temperature(t) }
}

func New(model llm.Model, log *zap.Logger, opts ...Option) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Service{model: model, log: log}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) ModelName() string {
	return s.model.Name() + "/" + s.model.GetModel()
}

func (s *Service) request(op string, r prompt.Rendered) llm.Request {
	return llm.Request{
		Op:          op,
		Prompt:      r.Text,
		Media:       r.Media,
		Safety:      s.safety,
		Temperature: s.temperature,
	}
}

// AnalyzeTeaLeafPatterns reads up to 4 cup images, an optional question and
// the symbols the user believes they see, and returns detected symbols plus a narrative.
func (s *Service) AnalyzeTeaLeafPatterns(ctx context.Context, in types.InterpretationRequest) (types.InterpretationResult, error) {
	if err := in.Validate(); err != nil {
		return types.InterpretationResult{}, err
	}
	rendered, err := prompt.Analyze(in)
	if err != nil {
		return types.InterpretationResult{}, err
	}

	start := time.Now()
	req := s.request(FlowAnalyze, rendered)
	req.Schema = types.AnalyzeOutputSchema
	out, err := llm.Execute(ctx, s.model, req, types.DecodeInterpretationResult)
	if err == nil {
		err = ApplyConfirmationPolicy(in, &out)
	}
	if err == nil {
		out.Unconfirmed = UnconfirmedSymbols(in, out)
	}
	if err != nil {
		s.log.Warn("flow failed", zap.String("flow", FlowAnalyze), zap.Duration("took", time.Since(start)), zap.Error(err))
		return types.InterpretationResult{}, err
	}

	s.log.Info("flow completed",
		zap.String("flow", FlowAnalyze),
		zap.String("model", s.ModelName()),
		zap.Int("images", len(in.Images)),
		zap.Int("user_symbols", len(in.UserSymbolNames)),
		zap.Int("symbols", len(out.Symbols)),
		zap.Duration("took", time.Since(start)))
	return out, nil
}

// GenerateInterpretation is the single-image path. It returns a narrative only.
func (s *Service) GenerateInterpretation(ctx context.Context, in types.InterpretRequest) (types.InterpretResponse, error) {
	if err := in.Validate(); err != nil {
		return types.InterpretResponse{}, err
	}
	rendered, err := prompt.Interpret(in)
	if err != nil {
		return types.InterpretResponse{}, err
	}

	start := time.Now()
	req := s.request(FlowInterpret, rendered)
	req.Schema = types.InterpretOutputSchema
	out, err := llm.Execute(ctx, s.model, req, types.DecodeInterpretResponse)
	if err != nil {
		s.log.Warn("flow failed", zap.String("flow", FlowInterpret), zap.Error(err))
		return types.InterpretResponse{}, err
	}
	s.log.Info("flow completed", zap.String("flow", FlowInterpret), zap.Duration("took", time.Since(start)))
	return out, nil
}

// ExtractSymbolsFromText pulls symbol names (and explicit clock positions) out
// of a narrative. Empty model output yields an empty list.
func (s *Service) ExtractSymbolsFromText(ctx context.Context, in types.ExtractRequest) ([]types.ExtractedSymbol, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	rendered, err := prompt.Extract(in)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	req := s.request(FlowExtract, rendered)
	req.Schema = types.ExtractOutputSchema
	out, ok, err := llm.ExecuteOptional(ctx, s.model, req, types.DecodeExtractResponse)
	if err != nil {
		s.log.Warn("flow failed", zap.String("flow", FlowExtract), zap.Error(err))
		return nil, err
	}
	if !ok {
		return []types.ExtractedSymbol{}, nil
	}

	symbols := DropUnstatedPositions(in.Text, out.Symbols)
	s.log.Info("flow completed", zap.String("flow", FlowExtract), zap.Int("symbols", len(symbols)), zap.Duration("took", time.Since(start)))
	return symbols, nil
}
