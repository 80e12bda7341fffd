package llm_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sipnread/api/internal/apperr"
	"sipnread/api/internal/llm"
	"sipnread/api/internal/llm/llmtest"
	"sipnread/api/internal/llm/types"
)

func analyzeReq() llm.Request {
	return llm.Request{Op: "analyze", Prompt: "p", Schema: types.AnalyzeOutputSchema}
}

func TestExecute_Success(t *testing.T) {
	stub := &llmtest.Stub{Response: "```json\n{\"symbols\":[],\"interpretation\":\"calm waters\"}\n```"}
	out, err := llm.Execute(context.Background(), stub, analyzeReq(), types.DecodeInterpretationResult)
	require.NoError(t, err)
	assert.Equal(t, "calm waters", out.Interpretation)
	assert.Empty(t, out.Symbols)

	calls := stub.Calls()
	require.Len(t, calls, 1)
	assert.Len(t, calls[0].Safety, len(llm.DefaultSafety))
}

func TestExecute_InvalidOutputNeverPartial(t *testing.T) {
	bad := []string{
		`not json`,
		`{"symbols":[]}`,
		`{"symbols":[{"name":"Bird","description":"d","position":"rim","meaning":"m","origin":"maybe"}],"interpretation":"x"}`,
		`{"symbols":"Bird","interpretation":"x"}`,
		`[]`,
	}
	for _, raw := range bad {
		stub := &llmtest.Stub{Response: raw}
		out, err := llm.Execute(context.Background(), stub, analyzeReq(), types.DecodeInterpretationResult)
		var se *apperr.SchemaValidationError
		assert.True(t, errors.As(err, &se), raw)
		assert.Equal(t, types.InterpretationResult{}, out, raw)
	}
}

func TestExecute_Empty(t *testing.T) {
	for _, raw := range []string{"", "   ", "null", "```json\n```"} {
		stub := &llmtest.Stub{Response: raw}
		_, err := llm.Execute(context.Background(), stub, analyzeReq(), types.DecodeInterpretationResult)
		var ee *apperr.EmptyOutputError
		assert.True(t, errors.As(err, &ee), "%q", raw)
	}
}

func TestExecuteOptional_Empty(t *testing.T) {
	stub := &llmtest.Stub{Response: ""}
	_, ok, err := llm.ExecuteOptional(context.Background(), stub, llm.Request{Op: "extract", Schema: types.ExtractOutputSchema}, types.DecodeExtractResponse)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestExecute_RemoteError(t *testing.T) {
	stub := &llmtest.Stub{Err: errors.New("googleapi: Error 429: Resource has been exhausted")}
	_, err := llm.Execute(context.Background(), stub, analyzeReq(), types.DecodeInterpretationResult)
	var re *apperr.RemoteCallError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, "stub", re.Service)
	assert.Contains(t, err.Error(), "429")
	assert.Len(t, stub.Calls(), 1, "no retries inside the executor")
}

func TestExecute_RequiresSchema(t *testing.T) {
	stub := &llmtest.Stub{Response: `{}`}
	_, err := llm.Execute(context.Background(), stub, llm.Request{Op: "x"}, types.DecodeInterpretResponse)
	assert.Error(t, err)
	assert.Empty(t, stub.Calls())
}

func TestMergeSafety(t *testing.T) {
	got := llm.MergeSafety([]llm.SafetySetting{{Category: llm.HarmDangerousContent, Threshold: llm.BlockMediumAndAbove}})
	require.Len(t, got, 4)
	for _, s := range got {
		if s.Category == llm.HarmDangerousContent {
			assert.Equal(t, llm.BlockMediumAndAbove, s.Threshold)
		} else {
			assert.Equal(t, llm.BlockOnlyHigh, s.Threshold)
		}
	}
	assert.Equal(t, llm.BlockOnlyHigh, llm.DefaultSafety[3].Threshold, "defaults untouched")
}
