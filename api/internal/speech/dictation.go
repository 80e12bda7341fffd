package speech

import (
	"context"
	"strings"

	"sipnread/api/internal/apperr"
)

type DictationInput struct {
	Text  string // already recognized on the device
	Audio []byte
	MIME  string
}

type DictationResult struct {
	Text          string // final text when Done
	Done          bool
	OperationName string // set while a remote transcription is running
}

// Dictation turns a tassologist's spoken narrative into text. One strategy is
// picked at startup; callers never branch on capability per call.
type Dictation interface {
	Name() string
	Dictate(ctx context.Context, in DictationInput) (DictationResult, error)
}

// LocalDictation accepts text recognized client-side.
type LocalDictation struct{}

func (LocalDictation) Name() string { return "local" }

func (LocalDictation) Dictate(_ context.Context, in DictationInput) (DictationResult, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" && len(in.Audio) > 0 {
		return DictationResult{}, apperr.Invalid("audio", "unsupported", "server-side transcription is disabled")
	}
	if text == "" {
		return DictationResult{}, apperr.Invalid("text", "required", "local dictation needs recognized text")
	}
	return DictationResult{Text: text, Done: true}, nil
}

// RemoteDictation uploads audio to the transcription service; the result is
// collected later by polling the returned operation.
type RemoteDictation struct {
	T Transcriber
}

func (RemoteDictation) Name() string { return "remote" }

func (r RemoteDictation) Dictate(ctx context.Context, in DictationInput) (DictationResult, error) {
	if len(in.Audio) == 0 {
		// a client that recognized locally can still send text
		if strings.TrimSpace(in.Text) != "" {
			return LocalDictation{}.Dictate(ctx, in)
		}
		return DictationResult{}, apperr.Invalid("audio", "required", "")
	}
	name, err := r.T.Start(ctx, in.Audio, in.MIME)
	if err != nil {
		return DictationResult{}, err
	}
	return DictationResult{OperationName: name}, nil
}

// SelectDictation chooses the strategy once: local recognition when the client
// side has it or no transcriber is configured, remote otherwise.
func SelectDictation(localAvailable bool, t Transcriber) Dictation {
	if localAvailable || t == nil {
		return LocalDictation{}
	}
	return RemoteDictation{T: t}
}
