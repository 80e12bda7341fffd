package gemini

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sipnread/api/internal/apperr"
	"sipnread/api/internal/llm"
)

func TestSafetySettings(t *testing.T) {
	got := safetySettings(llm.MergeSafety(nil))
	require.Len(t, got, 4)
	for _, s := range got {
		assert.Equal(t, genai.HarmBlockOnlyHigh, s.Threshold)
	}
	assert.Empty(t, safetySettings([]llm.SafetySetting{{Category: "unknown", Threshold: llm.BlockNone}}))
}

func TestFirstText(t *testing.T) {
	assert.Equal(t, "", firstText(nil))
	resp := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{
		{Content: nil},
		{Content: &genai.Content{Parts: []genai.Part{genai.Text(`{"a":`), genai.Text(`1}`)}}},
	}}
	assert.Equal(t, `{"a":1}`, firstText(resp))
}

func TestGenerate_RequiresKey(t *testing.T) {
	_, err := New("", "gemini-2.5-flash", nil).Generate(context.Background(), llm.Request{Prompt: "x"})
	assert.ErrorContains(t, err, "GEMINI_API_KEY")
}

func TestMediaFetcher(t *testing.T) {
	png := []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0, 0}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "missing.png") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write(png)
	}))
	defer srv.Close()

	f := NewMediaFetcher(srv.Client())
	b, mime, err := f.Fetch(context.Background(), srv.URL+"/cup.png")
	require.NoError(t, err)
	assert.Equal(t, png, b)
	assert.Equal(t, "image/png", mime)

	_, _, err = f.Fetch(context.Background(), srv.URL+"/missing.png")
	assert.ErrorContains(t, err, "404")
	assert.NotContains(t, err.Error(), "not found")

	b, mime, err = f.Fetch(context.Background(), "data:image/jpeg;base64,/9j/")
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", mime)
	assert.Equal(t, []byte{0xFF, 0xD8, 0xFF}, b)
}

func TestMediaFetcher_DoesNotEchoErrorBodies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("INTERNAL-METADATA-TOKEN=abc123"))
	}))
	defer srv.Close()

	_, _, err := NewMediaFetcher(srv.Client()).Fetch(context.Background(), srv.URL+"/cup.jpg")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "abc123")
}

func TestMediaFetcher_OnlyBucketPrefix(t *testing.T) {
	f := NewMediaFetcher(nil, "https://storage.googleapis.com/cups/")
	for _, u := range []string{
		"http://169.254.169.254/computeMetadata/v1/",
		"https://storage.googleapis.com/other/a.jpg",
		"https://storage.googleapis.com/cups/../other/a.jpg",
	} {
		_, _, err := f.Fetch(context.Background(), u)
		var ve *apperr.ValidationError
		require.True(t, errors.As(err, &ve), u)
		assert.Equal(t, "images", ve.Field)
		assert.Equal(t, "host", ve.Constraint)
	}

	_, _, err := f.Fetch(context.Background(), "data:image/jpeg;base64,/9j/")
	assert.NoError(t, err)
}

func TestMediaFetcher_DefaultClientRefusesLoopback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte{0xFF, 0xD8, 0xFF})
	}))
	defer srv.Close()

	_, _, err := NewMediaFetcher(nil).Fetch(context.Background(), srv.URL+"/cup.jpg")
	var ve *apperr.ValidationError
	require.True(t, errors.As(err, &ve), "got %v", err)
	assert.Equal(t, "host", ve.Constraint)
}
