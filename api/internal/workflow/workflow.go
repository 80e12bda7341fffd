package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"sipnread/api/internal/apperr"
	"sipnread/api/internal/llm/types"
	"sipnread/api/internal/models"
	"sipnread/api/internal/notify"
	"sipnread/api/internal/speech"
	"sipnread/api/internal/util"
)

type Readings interface {
	Get(ctx context.Context, id string) (*models.Reading, error)
	UpdateManual(ctx context.Context, id string, symbols []models.ManualSymbol, narrative string) error
	BackfillManualInterpretation(ctx context.Context, id, text string) (bool, error)
}

type Requests interface {
	Create(ctx context.Context, pr *models.PersonalizationRequest) error
	Get(ctx context.Context, id string) (*models.PersonalizationRequest, error)
	ListByStatus(ctx context.Context, statuses []models.Status, limit int) ([]models.PersonalizationRequest, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]models.PersonalizationRequest, error)
	Transition(ctx context.Context, id string, from, to models.Status, actorID string, at time.Time) error
	SetTranscription(ctx context.Context, id string, t models.Transcription) error
}

type Profiles interface {
	Get(ctx context.Context, uid string) (*models.UserProfile, error)
}

type Pricing struct {
	PriceCents int64
	Currency   string
}

type SaveMode string

const (
	SaveDraft    SaveMode = "draft"
	SaveComplete SaveMode = "complete"
)

const listLimit = 100

type Service struct {
	readings    Readings
	requests    Requests
	profiles    Profiles
	notifier    notify.Notifier
	dictation   speech.Dictation
	transcriber speech.Transcriber
	pricing     Pricing
	log         *zap.Logger
	now         func() time.Time
}

type Option func(*Service)

func WithNotifier(n notify.Notifier) Option { return func(s *Service) { s.notifier = n } }

func WithDictation(d speech.Dictation) Option { return func(s *Service) { s.dictation = d } }

func WithTranscriber(t speech.Transcriber) Option { return func(s *Service) { s.transcriber = t } }

func WithPricing(p Pricing) Option { return func(s *Service) { s.pricing = p } }

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func New(readings Readings, requests Requests, profiles Profiles, log *zap.Logger, opts ...Option) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Service{
		readings:  readings,
		requests:  requests,
		profiles:  profiles,
		notifier:  notify.Noop{},
		dictation: speech.LocalDictation{},
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// --- user side ---

func (s *Service) SubmitRequest(ctx context.Context, uid, readingID, question string) (*models.PersonalizationRequest, error) {
	question = strings.TrimSpace(question)
	if utf8.RuneCountInString(question) > types.MaxQuestionLen {
		return nil, apperr.Invalid("userQuestion", "maxLength", fmt.Sprintf("at most %d characters", types.MaxQuestionLen))
	}
	if strings.TrimSpace(readingID) == "" {
		return nil, apperr.Invalid("readingId", "required", "")
	}
	rd, err := s.readings.Get(ctx, readingID)
	if err != nil {
		return nil, err
	}
	if rd.UserID != uid {
		return nil, fmt.Errorf("reading %s: %w", readingID, apperr.ErrForbidden)
	}

	now := s.now()
	pr := &models.PersonalizationRequest{
		ReadingID:     rd.ID,
		UserID:        uid,
		UserQuestion:  question,
		Status:        models.StatusNew,
		PriceCents:    s.pricing.PriceCents,
		Currency:      s.pricing.Currency,
		PaymentStatus: models.PaymentPending,
		Transcription: models.Transcription{Status: models.TranscriptionNotRequested},
		RequestedAt:   now,
		UpdatedAt:     now,
	}
	if pr.PriceCents == 0 {
		pr.PaymentStatus = models.PaymentWaived
	}
	if err := s.requests.Create(ctx, pr); err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	s.log.Info("personalization requested", zap.String("request", pr.ID), zap.String("reading", rd.ID))
	if err := s.notifier.RequestSubmitted(ctx, pr); err != nil {
		s.log.Warn("notify submitted", zap.String("request", pr.ID), zap.Error(err))
	}
	return pr, nil
}

func (s *Service) UserRequests(ctx context.Context, uid string) ([]models.PersonalizationRequest, error) {
	return s.requests.ListByUser(ctx, uid, listLimit)
}

// MarkRead: only the owner, only completed → read.
func (s *Service) MarkRead(ctx context.Context, uid, requestID string) (*models.PersonalizationRequest, error) {
	pr, err := s.requests.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if pr.UserID != uid {
		return nil, fmt.Errorf("request %s: %w", requestID, apperr.ErrForbidden)
	}
	return pr, s.transition(ctx, pr, models.StatusRead, uid)
}

// Cancel is allowed to the owner and to tassologists.
func (s *Service) Cancel(ctx context.Context, uid, requestID string) (*models.PersonalizationRequest, error) {
	pr, err := s.requests.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if pr.UserID != uid {
		if err := s.requireTassologist(ctx, uid); err != nil {
			return nil, err
		}
	}
	return pr, s.transition(ctx, pr, models.StatusCancelled, "")
}

// --- tassologist side ---

func (s *Service) Queue(ctx context.Context, tassologistID string) ([]models.PersonalizationRequest, error) {
	if err := s.requireTassologist(ctx, tassologistID); err != nil {
		return nil, err
	}
	return s.requests.ListByStatus(ctx, []models.Status{models.StatusNew, models.StatusInProgress}, listLimit)
}

func (s *Service) StartWork(ctx context.Context, tassologistID, requestID string) (*models.PersonalizationRequest, error) {
	pr, err := s.actionable(ctx, tassologistID, requestID)
	if err != nil {
		return nil, err
	}
	return pr, s.transition(ctx, pr, models.StatusInProgress, tassologistID)
}

// SaveInterpretation writes the manual symbols and narrative. A draft leaves
// the status alone; completing walks new → in-progress → completed first and
// writes the reading only once the request is completed, so a lost
// compare-and-set leaves the reading untouched.
func (s *Service) SaveInterpretation(ctx context.Context, tassologistID, requestID string, symbols []models.ManualSymbol, narrative string, mode SaveMode) (*models.PersonalizationRequest, error) {
	if mode != SaveDraft && mode != SaveComplete {
		return nil, apperr.Invalid("mode", "enum", `expected "draft" or "complete"`)
	}
	symbols, err := cleanManualSymbols(symbols)
	if err != nil {
		return nil, err
	}
	narrative = strings.TrimSpace(narrative)
	if mode == SaveComplete && narrative == "" {
		return nil, apperr.Invalid("manualInterpretation", "required", "a completed reading needs a narrative")
	}

	pr, err := s.actionable(ctx, tassologistID, requestID)
	if err != nil {
		return nil, err
	}
	if mode == SaveDraft {
		if err := s.readings.UpdateManual(ctx, pr.ReadingID, symbols, narrative); err != nil {
			return nil, fmt.Errorf("save draft: %w", err)
		}
		return pr, nil
	}

	if pr.Status == models.StatusNew {
		if err := s.transition(ctx, pr, models.StatusInProgress, tassologistID); err != nil {
			return nil, err
		}
	}
	if err := s.transition(ctx, pr, models.StatusCompleted, tassologistID); err != nil {
		return pr, fmt.Errorf("request left %s: %w", pr.Status, err)
	}
	if err := s.readings.UpdateManual(ctx, pr.ReadingID, symbols, narrative); err != nil {
		return pr, fmt.Errorf("request %s completed but interpretation not saved: %w", pr.ID, err)
	}
	if err := s.notifier.InterpretationCompleted(ctx, pr); err != nil {
		s.log.Warn("notify completed", zap.String("request", pr.ID), zap.Error(err))
	}
	return pr, nil
}

type DictationOutcome struct {
	Applied       bool                       `json:"applied"`
	Text          string                     `json:"text,omitempty"`
	Transcription models.TranscriptionStatus `json:"transcription"`
	OperationName string                     `json:"operationName,omitempty"`
}

// Dictate runs the configured dictation strategy. Recognized text is appended
// to the manual narrative; remote audio leaves the transcription pending.
// New audio is refused while an earlier transcription is still pending.
func (s *Service) Dictate(ctx context.Context, tassologistID, requestID string, in speech.DictationInput) (DictationOutcome, error) {
	pr, err := s.actionable(ctx, tassologistID, requestID)
	if err != nil {
		return DictationOutcome{}, err
	}
	if len(in.Audio) > 0 && pr.Transcription.Status == models.TranscriptionPending {
		return DictationOutcome{}, fmt.Errorf("transcription %s still pending: %w", pr.Transcription.OperationName, apperr.ErrInvalidTransition)
	}
	res, err := s.dictation.Dictate(ctx, in)
	if err != nil {
		return DictationOutcome{}, err
	}

	if !res.Done {
		at := s.now()
		tr := models.Transcription{Status: models.TranscriptionPending, OperationName: res.OperationName, UpdatedAt: &at}
		if err := s.requests.SetTranscription(ctx, pr.ID, tr); err != nil {
			return DictationOutcome{}, fmt.Errorf("record transcription: %w", err)
		}
		s.log.Info("transcription started", zap.String("request", pr.ID), zap.String("operation", res.OperationName))
		return DictationOutcome{Transcription: tr.Status, OperationName: tr.OperationName}, nil
	}

	rd, err := s.readings.Get(ctx, pr.ReadingID)
	if err != nil {
		return DictationOutcome{}, err
	}
	text := appendNarrative(rd.ManualInterpretation, res.Text)
	if err := s.readings.UpdateManual(ctx, rd.ID, rd.ManualSymbols, text); err != nil {
		return DictationOutcome{}, fmt.Errorf("append dictation: %w", err)
	}
	return DictationOutcome{Applied: true, Text: res.Text, Transcription: pr.Transcription.Status}, nil
}

// ProcessAudio accepts base64 (or data: URL) audio and starts transcription.
func (s *Service) ProcessAudio(ctx context.Context, tassologistID, requestID, audioB64, mime string) (DictationOutcome, error) {
	if strings.TrimSpace(audioB64) == "" {
		return DictationOutcome{}, apperr.Invalid("audio", "required", "")
	}
	audio, dataMime, err := util.DecodeBase64MaybeDataURL(audioB64)
	if err != nil {
		return DictationOutcome{}, apperr.Invalid("audio", "format", err.Error())
	}
	if mime == "" {
		mime = dataMime
	}
	return s.Dictate(ctx, tassologistID, requestID, speech.DictationInput{Audio: audio, MIME: mime})
}

type TranscriptionCheck struct {
	Status     models.TranscriptionStatus `json:"status"`
	Transcript string                     `json:"transcript,omitempty"`
	Applied    bool                       `json:"applied"`
	Error      string                     `json:"error,omitempty"`
}

// CheckTranscription polls the pending operation. An unfinished operation
// changes nothing. A finished one fills the narrative only if it is still
// empty; a failure is recorded without touching the reading.
func (s *Service) CheckTranscription(ctx context.Context, tassologistID, requestID string) (TranscriptionCheck, error) {
	if err := s.requireTassologist(ctx, tassologistID); err != nil {
		return TranscriptionCheck{}, err
	}
	pr, err := s.requests.Get(ctx, requestID)
	if err != nil {
		return TranscriptionCheck{}, err
	}
	cur := pr.Transcription
	if cur.Status != models.TranscriptionPending {
		return TranscriptionCheck{Status: cur.Status, Error: cur.Error}, nil
	}
	if s.transcriber == nil {
		return TranscriptionCheck{}, apperr.Invalid("transcription", "unsupported", "server-side transcription is disabled")
	}

	op, err := s.transcriber.Poll(ctx, cur.OperationName)
	if err != nil {
		return TranscriptionCheck{}, err
	}
	if !op.Done {
		return TranscriptionCheck{Status: models.TranscriptionPending}, nil
	}

	at := s.now()
	next := models.Transcription{OperationName: cur.OperationName, UpdatedAt: &at}
	text := strings.TrimSpace(op.Transcript)
	if op.Error == "" && text == "" {
		op.Error = "no speech recognized"
	}
	if op.Error != "" {
		next.Status, next.Error = models.TranscriptionFailed, op.Error
		if err := s.requests.SetTranscription(ctx, pr.ID, next); err != nil {
			return TranscriptionCheck{}, err
		}
		s.log.Warn("transcription failed", zap.String("request", pr.ID), zap.String("error", op.Error))
		return TranscriptionCheck{Status: next.Status, Error: next.Error}, nil
	}

	applied, err := s.readings.BackfillManualInterpretation(ctx, pr.ReadingID, text)
	if err != nil {
		return TranscriptionCheck{}, fmt.Errorf("backfill narrative: %w", err)
	}
	next.Status = models.TranscriptionCompleted
	if err := s.requests.SetTranscription(ctx, pr.ID, next); err != nil {
		return TranscriptionCheck{}, err
	}
	return TranscriptionCheck{Status: next.Status, Transcript: text, Applied: applied}, nil
}

// --- helpers ---

func (s *Service) requireTassologist(ctx context.Context, uid string) error {
	p, err := s.profiles.Get(ctx, uid)
	if errors.Is(err, apperr.ErrNotFound) {
		return fmt.Errorf("no profile: %w", apperr.ErrForbidden)
	}
	if err != nil {
		return err
	}
	if !p.Role.CanInterpret() {
		return fmt.Errorf("role %s: %w", p.Role, apperr.ErrForbidden)
	}
	return nil
}

func (s *Service) actionable(ctx context.Context, tassologistID, requestID string) (*models.PersonalizationRequest, error) {
	if err := s.requireTassologist(ctx, tassologistID); err != nil {
		return nil, err
	}
	pr, err := s.requests.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !pr.Status.Actionable() {
		return nil, fmt.Errorf("request is %s: %w", pr.Status, apperr.ErrInvalidTransition)
	}
	return pr, nil
}

// transition validates against the table, applies the compare-and-set and
// mirrors the change on pr.
func (s *Service) transition(ctx context.Context, pr *models.PersonalizationRequest, to models.Status, actorID string) error {
	from := pr.Status
	if !CanTransition(from, to) {
		return transitionError(from, to)
	}
	at := s.now()
	if err := s.requests.Transition(ctx, pr.ID, from, to, actorID, at); err != nil {
		return err
	}
	pr.Status = to
	pr.UpdatedAt = at
	if actorID != "" && (to == models.StatusInProgress || to == models.StatusCompleted) {
		pr.TassologistID = actorID
	}
	switch to {
	case models.StatusCompleted:
		pr.CompletedAt = &at
	case models.StatusRead:
		pr.ReadAt = &at
	}
	s.log.Info("request status", zap.String("request", pr.ID), zap.String("from", string(from)), zap.String("to", string(to)))
	return nil
}

func cleanManualSymbols(in []models.ManualSymbol) ([]models.ManualSymbol, error) {
	out := make([]models.ManualSymbol, 0, len(in))
	for i, sym := range in {
		name := strings.TrimSpace(sym.Symbol)
		field := fmt.Sprintf("manualSymbols[%d]", i)
		if name == "" {
			return nil, apperr.Invalid(field+".symbol", "required", "")
		}
		if utf8.RuneCountInString(name) > types.MaxSymbolNameLen {
			return nil, apperr.Invalid(field+".symbol", "maxLength", "")
		}
		if p := sym.Position; p != nil && (*p < 0 || *p > 12) {
			return nil, apperr.Invalid(field+".position", "range", "expected 0-12")
		}
		out = append(out, models.ManualSymbol{Symbol: name, Position: sym.Position})
	}
	return out, nil
}

func appendNarrative(existing, text string) string {
	existing = strings.TrimSpace(existing)
	if existing == "" {
		return text
	}
	return existing + "\n\n" + text
}
