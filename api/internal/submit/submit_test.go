package submit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sipnread/api/internal/apperr"
	"sipnread/api/internal/llm/types"
	"sipnread/api/internal/models"
)

type fakeUploader struct {
	mu     sync.Mutex
	failAt int
	got    map[int]int
}

func (f *fakeUploader) Upload(_ context.Context, index int, jpeg []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAt == index {
		return "", errors.New("storage: 503")
	}
	if f.got == nil {
		f.got = map[int]int{}
	}
	f.got[index] = len(jpeg)
	return fmt.Sprintf("https://storage.googleapis.com/b/readings/u/1_%d.jpg", index), nil
}

type fakeAnalyzer struct {
	in  types.InterpretationRequest
	err error
}

func (f *fakeAnalyzer) Analyze(_ context.Context, in types.InterpretationRequest) (types.InterpretationResult, error) {
	f.in = in
	return types.InterpretationResult{Interpretation: "Calm seas."}, f.err
}

type fakeSaver struct {
	err error
	in  models.ReadingInput
}

func (f *fakeSaver) SaveReading(_ context.Context, in models.ReadingInput) (string, error) {
	f.in = in
	return "rd-1", f.err
}

func newPipeline(up Uploader, an Analyzer, sv Saver, opts ...Option) *Pipeline {
	p := New(up, an, sv, opts...)
	p.resize = func(b []byte) ([]byte, error) { return append([]byte("jpg:"), b...), nil }
	return p
}

func images(n int) [][]byte {
	out := make([][]byte, n)
	for i := range out {
		out[i] = []byte{byte(i)}
	}
	return out
}

func TestRun_Success(t *testing.T) {
	up, an, sv := &fakeUploader{failAt: -1}, &fakeAnalyzer{}, &fakeSaver{}
	var mu sync.Mutex
	stages := map[Stage]int{}
	p := newPipeline(up, an, sv, WithProgress(func(_ int, s Stage) {
		mu.Lock()
		stages[s]++
		mu.Unlock()
	}))

	out, err := p.Run(context.Background(), Input{Images: images(3), Question: " Love? ", Symbols: []string{"Heart"}})
	require.NoError(t, err)
	assert.True(t, out.Saved)
	assert.Equal(t, "rd-1", out.ReadingID)
	assert.Equal(t, "Calm seas.", out.Result.Interpretation)

	require.Len(t, an.in.Images, 3)
	assert.Equal(t, "https://storage.googleapis.com/b/readings/u/1_2.jpg", an.in.Images[2], "order kept")
	assert.Equal(t, "Love?", an.in.Question)
	assert.Equal(t, an.in.Images, sv.in.ImageURLs)
	assert.Equal(t, map[Stage]int{StageResized: 3, StageUploaded: 3, StageAnalyzed: 1, StageSaved: 1}, stages)
}

func TestRun_UploadFailureIsAllOrNothing(t *testing.T) {
	an := &fakeAnalyzer{}
	p := newPipeline(&fakeUploader{failAt: 1}, an, &fakeSaver{})
	_, err := p.Run(context.Background(), Input{Images: images(2)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upload image 2")
	assert.Empty(t, an.in.Images, "analysis never ran")
}

func TestRun_SaveFailureKeepsResult(t *testing.T) {
	p := newPipeline(&fakeUploader{failAt: -1}, &fakeAnalyzer{}, &fakeSaver{err: errors.New("db down")})
	out, err := p.Run(context.Background(), Input{Images: images(1)})
	require.NoError(t, err)
	assert.False(t, out.Saved)
	assert.EqualError(t, out.SaveError, "db down")
	assert.Equal(t, "Calm seas.", out.Result.Interpretation)
}

func TestRun_ImageCount(t *testing.T) {
	p := newPipeline(&fakeUploader{failAt: -1}, &fakeAnalyzer{}, &fakeSaver{})
	_, err := p.Run(context.Background(), Input{})
	var ve *apperr.ValidationError
	assert.True(t, errors.As(err, &ve))
	_, err = p.Run(context.Background(), Input{Images: images(5)})
	assert.True(t, errors.As(err, &ve))
	assert.Equal(t, "maxItems", ve.Constraint)
}

func TestClassifyError(t *testing.T) {
	cases := map[string]string{
		"gemini call failed: googleapi: Error 429: Resource exhausted": MsgQuota,
		"image 1: validation failed: image (format): unsupported":      MsgFormat,
		"schema validation failed: symbols[0].origin (enum)":          MsgModel,
		"dial tcp: connection refused":                                MsgGeneric,
	}
	for in, want := range cases {
		assert.Equal(t, want, ClassifyError(errors.New(in)), in)
	}
	assert.Equal(t, "", ClassifyError(nil))
	assert.Equal(t, "at most 4 photos", ClassifyError(apperr.Invalid("images", "maxItems", "at most 4 photos")))
}
