package workflow

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sipnread/api/internal/apperr"
	"sipnread/api/internal/models"
	"sipnread/api/internal/speech"
	"sipnread/api/internal/store"
)

type fixture struct {
	svc      *Service
	readings *memReadings
	requests *memRequests
	notifier *recordingNotifier
	tr       *scriptedTranscriber
}

func newFixture(t *testing.T, dictation func(speech.Transcriber) speech.Dictation) *fixture {
	t.Helper()
	f := &fixture{
		readings: &memReadings{m: map[string]*models.Reading{
			"rd1": {ID: "rd1", UserID: "u1", ManualSymbols: []models.ManualSymbol{}},
		}},
		requests: &memRequests{m: map[string]*models.PersonalizationRequest{}},
		notifier: &recordingNotifier{},
		tr:       &scriptedTranscriber{},
	}
	profiles := memProfiles{
		"t1": {UID: "t1", Role: models.RoleTassologist},
		"u1": {UID: "u1", Role: models.RoleUser},
	}
	opts := []Option{
		WithNotifier(f.notifier),
		WithTranscriber(f.tr),
		WithPricing(Pricing{PriceCents: 1500, Currency: "USD"}),
		WithClock(func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }),
	}
	if dictation != nil {
		opts = append(opts, WithDictation(dictation(f.tr)))
	}
	f.svc = New(f.readings, f.requests, profiles, nil, opts...)
	return f
}

func (f *fixture) submit(t *testing.T) *models.PersonalizationRequest {
	t.Helper()
	pr, err := f.svc.SubmitRequest(context.Background(), "u1", "rd1", " Will I travel? ")
	require.NoError(t, err)
	return pr
}

func TestCanTransition(t *testing.T) {
	allowed := [][2]models.Status{
		{models.StatusNew, models.StatusInProgress},
		{models.StatusNew, models.StatusCancelled},
		{models.StatusInProgress, models.StatusCompleted},
		{models.StatusInProgress, models.StatusCancelled},
		{models.StatusCompleted, models.StatusRead},
	}
	for _, p := range allowed {
		assert.True(t, CanTransition(p[0], p[1]), "%s -> %s", p[0], p[1])
	}
	assert.False(t, CanTransition(models.StatusNew, models.StatusRead))
	assert.False(t, CanTransition(models.StatusNew, models.StatusCompleted))
	assert.False(t, CanTransition(models.StatusRead, models.StatusNew))
	assert.False(t, CanTransition(models.StatusCancelled, models.StatusInProgress))
	assert.False(t, CanTransition(models.StatusCompleted, models.StatusCancelled))
}

func TestSubmitRequest(t *testing.T) {
	f := newFixture(t, nil)
	pr := f.submit(t)
	assert.Equal(t, models.StatusNew, pr.Status)
	assert.Equal(t, int64(1500), pr.PriceCents)
	assert.Equal(t, models.PaymentPending, pr.PaymentStatus)
	assert.Equal(t, "Will I travel?", pr.UserQuestion)
	assert.Equal(t, []string{pr.ID}, f.notifier.submitted)

	_, err := f.svc.SubmitRequest(context.Background(), "someone-else", "rd1", "")
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = f.svc.SubmitRequest(context.Background(), "u1", "missing", "")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestMarkRead_RejectedFromNew(t *testing.T) {
	f := newFixture(t, nil)
	pr := f.submit(t)

	_, err := f.svc.MarkRead(context.Background(), "u1", pr.ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
	assert.Equal(t, 409, apperr.HTTPStatus(err))

	stored, _ := f.requests.Get(context.Background(), pr.ID)
	assert.Equal(t, models.StatusNew, stored.Status)
}

func TestFullLifecycle(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	pr := f.submit(t)

	pos := 3
	_, err := f.svc.SaveInterpretation(ctx, "t1", pr.ID, []models.ManualSymbol{{Symbol: " Anchor ", Position: &pos}}, "draft text", SaveDraft)
	require.NoError(t, err)
	stored, _ := f.requests.Get(ctx, pr.ID)
	assert.Equal(t, models.StatusNew, stored.Status, "draft keeps status")
	rd, _ := f.readings.Get(ctx, "rd1")
	assert.Equal(t, "Anchor", rd.ManualSymbols[0].Symbol)

	done, err := f.svc.SaveInterpretation(ctx, "t1", pr.ID, rd.ManualSymbols, "Final narrative.", SaveComplete)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, done.Status)
	assert.Equal(t, "t1", done.TassologistID)
	assert.NotNil(t, done.CompletedAt)
	assert.Equal(t, []string{pr.ID}, f.notifier.completed)

	_, err = f.svc.SaveInterpretation(ctx, "t1", pr.ID, nil, "again", SaveDraft)
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)

	_, err = f.svc.MarkRead(ctx, "t1", pr.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	read, err := f.svc.MarkRead(ctx, "u1", pr.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRead, read.Status)
	assert.NotNil(t, read.ReadAt)
}

func TestTassologistOnly(t *testing.T) {
	f := newFixture(t, nil)
	pr := f.submit(t)
	_, err := f.svc.StartWork(context.Background(), "u1", pr.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	_, err = f.svc.Queue(context.Background(), "nobody")
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	q, err := f.svc.Queue(context.Background(), "t1")
	require.NoError(t, err)
	assert.Len(t, q, 1)
}

func TestCancel(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	pr := f.submit(t)
	_, err := f.svc.StartWork(ctx, "t1", pr.ID)
	require.NoError(t, err)

	c, err := f.svc.Cancel(ctx, "u1", pr.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, c.Status)

	_, err = f.svc.Cancel(ctx, "u1", pr.ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
}

func TestSaveInterpretation_Validation(t *testing.T) {
	f := newFixture(t, nil)
	pr := f.submit(t)
	bad := 13
	var ve *apperr.ValidationError

	_, err := f.svc.SaveInterpretation(context.Background(), "t1", pr.ID, []models.ManualSymbol{{Symbol: "Cup", Position: &bad}}, "x", SaveDraft)
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "manualSymbols[0].position", ve.Field)

	_, err = f.svc.SaveInterpretation(context.Background(), "t1", pr.ID, nil, "  ", SaveComplete)
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "manualInterpretation", ve.Field)

	_, err = f.svc.SaveInterpretation(context.Background(), "t1", pr.ID, nil, "x", SaveMode("publish"))
	require.True(t, errors.As(err, &ve))
}

func remote(t speech.Transcriber) speech.Dictation { return speech.SelectDictation(false, t) }

func TestTranscription_PendingLeavesEverythingUntouched(t *testing.T) {
	f := newFixture(t, remote)
	ctx := context.Background()
	pr := f.submit(t)

	out, err := f.svc.ProcessAudio(ctx, "t1", pr.ID, base64.StdEncoding.EncodeToString([]byte("pcm")), "audio/webm")
	require.NoError(t, err)
	assert.Equal(t, models.TranscriptionPending, out.Transcription)
	assert.Equal(t, "operations/op-1", out.OperationName)

	before, _ := f.requests.Get(ctx, pr.ID)
	check, err := f.svc.CheckTranscription(ctx, "t1", pr.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TranscriptionPending, check.Status)
	assert.Equal(t, 1, f.tr.polls)

	after, _ := f.requests.Get(ctx, pr.ID)
	assert.Equal(t, before, after)
	rd, _ := f.readings.Get(ctx, "rd1")
	assert.Empty(t, rd.ManualInterpretation)
}

func TestTranscription_CompletedBackfillsOnlyEmptyNarrative(t *testing.T) {
	f := newFixture(t, remote)
	ctx := context.Background()
	pr := f.submit(t)
	_, err := f.svc.ProcessAudio(ctx, "t1", pr.ID, base64.StdEncoding.EncodeToString([]byte("pcm")), "audio/webm")
	require.NoError(t, err)

	f.tr.op = speech.Operation{Done: true, Transcript: "The anchor speaks of stability."}
	check, err := f.svc.CheckTranscription(ctx, "t1", pr.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TranscriptionCompleted, check.Status)
	assert.True(t, check.Applied)
	rd, _ := f.readings.Get(ctx, "rd1")
	assert.Equal(t, "The anchor speaks of stability.", rd.ManualInterpretation)

	// a second recording does not replace the narrative
	_, err = f.svc.ProcessAudio(ctx, "t1", pr.ID, base64.StdEncoding.EncodeToString([]byte("pcm")), "audio/webm")
	require.NoError(t, err)
	f.tr.op = speech.Operation{Done: true, Transcript: "Something else."}
	check, err = f.svc.CheckTranscription(ctx, "t1", pr.ID)
	require.NoError(t, err)
	assert.False(t, check.Applied)
	assert.Equal(t, "Something else.", check.Transcript)
	rd, _ = f.readings.Get(ctx, "rd1")
	assert.Equal(t, "The anchor speaks of stability.", rd.ManualInterpretation)
}

func TestTranscription_FailureKeepsNarrative(t *testing.T) {
	f := newFixture(t, remote)
	ctx := context.Background()
	pr := f.submit(t)
	require.NoError(t, f.readings.UpdateManual(ctx, "rd1", nil, "typed by hand"))
	_, err := f.svc.ProcessAudio(ctx, "t1", pr.ID, base64.StdEncoding.EncodeToString([]byte("pcm")), "audio/ogg")
	require.NoError(t, err)

	f.tr.op = speech.Operation{Done: true, Error: "audio too long"}
	check, err := f.svc.CheckTranscription(ctx, "t1", pr.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TranscriptionFailed, check.Status)
	assert.Equal(t, "audio too long", check.Error)

	stored, _ := f.requests.Get(ctx, pr.ID)
	assert.Equal(t, models.TranscriptionFailed, stored.Transcription.Status)
	rd, _ := f.readings.Get(ctx, "rd1")
	assert.Equal(t, "typed by hand", rd.ManualInterpretation)
}

func TestDictate_LocalAppends(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	pr := f.submit(t)
	require.NoError(t, f.readings.UpdateManual(ctx, "rd1", nil, "First part."))

	out, err := f.svc.Dictate(ctx, "t1", pr.ID, speech.DictationInput{Text: "Second part."})
	require.NoError(t, err)
	assert.True(t, out.Applied)
	rd, _ := f.readings.Get(ctx, "rd1")
	assert.Equal(t, "First part.\n\nSecond part.", rd.ManualInterpretation)

	_, err = f.svc.ProcessAudio(ctx, "t1", pr.ID, base64.StdEncoding.EncodeToString([]byte("pcm")), "audio/webm")
	var ve *apperr.ValidationError
	assert.True(t, errors.As(err, &ve))
	assert.Zero(t, f.tr.starts)
}

// racingRequests loses the compare-and-set when moving into `lose`.
type racingRequests struct {
	*memRequests
	lose models.Status
}

func (r *racingRequests) Transition(ctx context.Context, id string, from, to models.Status, actorID string, at time.Time) error {
	if to == r.lose {
		return store.ErrConflict
	}
	return r.memRequests.Transition(ctx, id, from, to, actorID, at)
}

func TestSaveInterpretation_LostRaceKeepsReading(t *testing.T) {
	for _, lose := range []models.Status{models.StatusInProgress, models.StatusCompleted} {
		t.Run(string(lose), func(t *testing.T) {
			f := newFixture(t, nil)
			ctx := context.Background()
			pr := f.submit(t)
			require.NoError(t, f.readings.UpdateManual(ctx, "rd1", nil, "draft text"))

			racing := &racingRequests{memRequests: f.requests, lose: lose}
			svc := New(f.readings, racing, memProfiles{"t1": {UID: "t1", Role: models.RoleTassologist}}, nil, WithNotifier(f.notifier))

			got, err := svc.SaveInterpretation(ctx, "t1", pr.ID, nil, "Final narrative.", SaveComplete)
			require.ErrorIs(t, err, store.ErrConflict)
			assert.Equal(t, 409, apperr.HTTPStatus(err))
			if got != nil {
				assert.NotEqual(t, models.StatusCompleted, got.Status)
			}

			rd, _ := f.readings.Get(ctx, "rd1")
			assert.Equal(t, "draft text", rd.ManualInterpretation)
			assert.Empty(t, f.notifier.completed)
		})
	}
}

func TestDictate_PendingTranscriptionBlocksNewAudio(t *testing.T) {
	f := newFixture(t, remote)
	ctx := context.Background()
	pr := f.submit(t)
	audio := base64.StdEncoding.EncodeToString([]byte("pcm"))

	_, err := f.svc.ProcessAudio(ctx, "t1", pr.ID, audio, "audio/webm")
	require.NoError(t, err)

	_, err = f.svc.ProcessAudio(ctx, "t1", pr.ID, audio, "audio/webm")
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
	assert.Equal(t, 1, f.tr.starts)

	stored, _ := f.requests.Get(ctx, pr.ID)
	assert.Equal(t, "operations/op-1", stored.Transcription.OperationName)

	out, err := f.svc.Dictate(ctx, "t1", pr.ID, speech.DictationInput{Text: "Typed meanwhile."})
	require.NoError(t, err)
	assert.True(t, out.Applied)
}
