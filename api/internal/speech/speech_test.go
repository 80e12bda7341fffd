package speech

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sipnread/api/internal/apperr"
)

type fakeTranscriber struct {
	started []string
}

func (f *fakeTranscriber) Start(_ context.Context, audio []byte, mime string) (string, error) {
	f.started = append(f.started, mime)
	return "operations/123", nil
}

func (f *fakeTranscriber) Poll(_ context.Context, name string) (Operation, error) {
	return Operation{Name: name}, nil
}

func TestSelectDictation(t *testing.T) {
	ft := &fakeTranscriber{}
	assert.Equal(t, "local", SelectDictation(true, ft).Name())
	assert.Equal(t, "local", SelectDictation(false, nil).Name())
	assert.Equal(t, "remote", SelectDictation(false, ft).Name())
}

func TestLocalDictation(t *testing.T) {
	res, err := LocalDictation{}.Dictate(context.Background(), DictationInput{Text: "  a bird at noon "})
	require.NoError(t, err)
	assert.True(t, res.Done)
	assert.Equal(t, "a bird at noon", res.Text)

	_, err = LocalDictation{}.Dictate(context.Background(), DictationInput{Audio: []byte{1}})
	var ve *apperr.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "unsupported", ve.Constraint)

	_, err = LocalDictation{}.Dictate(context.Background(), DictationInput{})
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "required", ve.Constraint)
}

func TestRemoteDictation(t *testing.T) {
	ft := &fakeTranscriber{}
	d := RemoteDictation{T: ft}

	res, err := d.Dictate(context.Background(), DictationInput{Audio: []byte{1, 2}, MIME: "audio/webm;codecs=opus"})
	require.NoError(t, err)
	assert.False(t, res.Done)
	assert.Equal(t, "operations/123", res.OperationName)
	assert.Equal(t, []string{"audio/webm;codecs=opus"}, ft.started)

	res, err = d.Dictate(context.Background(), DictationInput{Text: "typed"})
	require.NoError(t, err)
	assert.True(t, res.Done)

	_, err = d.Dictate(context.Background(), DictationInput{})
	assert.Error(t, err)
}

func TestTranscriptFromResponse(t *testing.T) {
	text, err := TranscriptFromResponse([]byte(`{"results":[
		{"alternatives":[{"transcript":"An anchor at three.","confidence":0.9},{"transcript":"alt"}]},
		{"alternatives":[]},
		{"alternatives":[{"transcript":" A bird near the rim. "}]}]}`))
	require.NoError(t, err)
	assert.Equal(t, "An anchor at three. A bird near the rim.", text)

	_, err = TranscriptFromResponse(nil)
	assert.Error(t, err)
}

func TestEncodingFor(t *testing.T) {
	enc, rate := EncodingFor("audio/webm;codecs=opus")
	assert.Equal(t, "WEBM_OPUS", enc)
	assert.Equal(t, int64(48000), rate)
	enc, rate = EncodingFor("audio/wav")
	assert.Equal(t, "LINEAR16", enc)
	assert.Zero(t, rate)
	enc, _ = EncodingFor("video/mp4")
	assert.Equal(t, "ENCODING_UNSPECIFIED", enc)
}
