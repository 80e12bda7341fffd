package speech

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/api/option"
	speechapi "google.golang.org/api/speech/v1"

	"sipnread/api/internal/apperr"
)

// Operation is the state of a long-running transcription.
type Operation struct {
	Name       string
	Done       bool
	Transcript string
	Error      string
}

// Transcriber is the speech boundary: start returns an operation handle,
// poll reports whether it finished. There is no completion callback.
type Transcriber interface {
	Start(ctx context.Context, audio []byte, mime string) (string, error)
	Poll(ctx context.Context, name string) (Operation, error)
}

type GoogleTranscriber struct {
	svc          *speechapi.Service
	languageCode string
}

func NewGoogle(ctx context.Context, languageCode string, opts ...option.ClientOption) (*GoogleTranscriber, error) {
	svc, err := speechapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("speech: new service: %w", err)
	}
	if strings.TrimSpace(languageCode) == "" {
		languageCode = "en-US"
	}
	return &GoogleTranscriber{svc: svc, languageCode: languageCode}, nil
}

func (g *GoogleTranscriber) Start(ctx context.Context, audio []byte, mime string) (string, error) {
	enc, rate := EncodingFor(mime)
	req := &speechapi.LongRunningRecognizeRequest{
		Config: &speechapi.RecognitionConfig{
			Encoding:                   enc,
			SampleRateHertz:            rate,
			LanguageCode:               g.languageCode,
			EnableAutomaticPunctuation: true,
		},
		Audio: &speechapi.RecognitionAudio{Content: base64.StdEncoding.EncodeToString(audio)},
	}
	op, err := g.svc.Speech.Longrunningrecognize(req).Context(ctx).Do()
	if err != nil {
		return "", apperr.Remote("speech", err)
	}
	if op.Name == "" {
		return "", apperr.Remote("speech", errors.New("no operation name returned"))
	}
	return op.Name, nil
}

func (g *GoogleTranscriber) Poll(ctx context.Context, name string) (Operation, error) {
	op, err := g.svc.Operations.Get(name).Context(ctx).Do()
	if err != nil {
		return Operation{}, apperr.Remote("speech", err)
	}
	out := Operation{Name: op.Name, Done: op.Done}
	if !op.Done {
		return out, nil
	}
	if op.Error != nil {
		out.Error = op.Error.Message
		if out.Error == "" {
			out.Error = fmt.Sprintf("transcription failed with code %d", op.Error.Code)
		}
		return out, nil
	}
	text, err := TranscriptFromResponse(op.Response)
	if err != nil {
		out.Error = err.Error()
		return out, nil
	}
	out.Transcript = text
	return out, nil
}

// TranscriptFromResponse joins the top alternative of every result.
func TranscriptFromResponse(raw []byte) (string, error) {
	if len(raw) == 0 {
		return "", errors.New("empty transcription response")
	}
	var resp speechapi.LongRunningRecognizeResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("bad transcription response: %w", err)
	}
	parts := make([]string, 0, len(resp.Results))
	for _, r := range resp.Results {
		if r == nil || len(r.Alternatives) == 0 || r.Alternatives[0] == nil {
			continue
		}
		if t := strings.TrimSpace(r.Alternatives[0].Transcript); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " "), nil
}

// EncodingFor maps a recorder MIME type onto a Speech API encoding and sample rate.
// Zero rate lets the service read it from the file header.
func EncodingFor(mime string) (string, int64) {
	m := strings.ToLower(strings.TrimSpace(mime))
	if i := strings.IndexByte(m, ';'); i > 0 {
		m = m[:i]
	}
	switch m {
	case "audio/webm":
		return "WEBM_OPUS", 48000
	case "audio/ogg":
		return "OGG_OPUS", 48000
	case "audio/wav", "audio/x-wav", "audio/wave":
		return "LINEAR16", 0
	case "audio/flac", "audio/x-flac":
		return "FLAC", 0
	case "audio/mpeg", "audio/mp3":
		return "MP3", 0
	default:
		return "ENCODING_UNSPECIFIED", 0
	}
}
