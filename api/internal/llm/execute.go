package llm

import (
	"context"
	"errors"
	"fmt"

	"sipnread/api/internal/apperr"
	"sipnread/api/internal/util"
)

// Execute runs one model call and returns a schema-valid T or an error; never
// a partially populated T. No retries here: callers decide.
func Execute[T any](ctx context.Context, m Model, req Request, decode func([]byte) (T, error)) (T, error) {
	out, ok, err := ExecuteOptional(ctx, m, req, decode)
	if err != nil {
		var zero T
		return zero, err
	}
	if !ok {
		var zero T
		return zero, &apperr.EmptyOutputError{Op: req.Op}
	}
	return out, nil
}

// ExecuteOptional is Execute for contracts where no output is acceptable:
// empty or null answers return ok=false instead of EmptyOutputError.
func ExecuteOptional[T any](ctx context.Context, m Model, req Request, decode func([]byte) (T, error)) (T, bool, error) {
	var zero T
	if m == nil {
		return zero, false, errors.New("llm: model is nil")
	}
	if req.Schema == nil {
		return zero, false, fmt.Errorf("%s: output schema is required", req.Op)
	}
	req.Safety = MergeSafety(req.Safety)

	raw, err := m.Generate(ctx, req)
	if err != nil {
		return zero, false, apperr.Remote(m.Name(), fmt.Errorf("%s: %w", req.Op, err))
	}

	txt := util.StripCodeFences(raw)
	if txt == "" || txt == "null" {
		return zero, false, nil
	}

	out, err := decode([]byte(txt))
	if err != nil {
		var se *apperr.SchemaValidationError
		if errors.As(err, &se) {
			return zero, false, err
		}
		return zero, false, &apperr.SchemaValidationError{Field: "$", Constraint: "decode", Detail: err.Error()}
	}
	return out, true, nil
}
