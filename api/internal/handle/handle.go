package handle

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/googleapi"

	"sipnread/api/internal/apperr"
	"sipnread/api/internal/llm/types"
	"sipnread/api/internal/models"
	"sipnread/api/internal/objectstore"
	"sipnread/api/internal/speech"
	"sipnread/api/internal/workflow"
)

type Flows interface {
	AnalyzeTeaLeafPatterns(ctx context.Context, in types.InterpretationRequest) (types.InterpretationResult, error)
	GenerateInterpretation(ctx context.Context, in types.InterpretRequest) (types.InterpretResponse, error)
	ExtractSymbolsFromText(ctx context.Context, in types.ExtractRequest) ([]types.ExtractedSymbol, error)
}

type Workflow interface {
	SubmitRequest(ctx context.Context, uid, readingID, question string) (*models.PersonalizationRequest, error)
	UserRequests(ctx context.Context, uid string) ([]models.PersonalizationRequest, error)
	MarkRead(ctx context.Context, uid, requestID string) (*models.PersonalizationRequest, error)
	Cancel(ctx context.Context, uid, requestID string) (*models.PersonalizationRequest, error)
	Queue(ctx context.Context, tassologistID string) ([]models.PersonalizationRequest, error)
	StartWork(ctx context.Context, tassologistID, requestID string) (*models.PersonalizationRequest, error)
	SaveInterpretation(ctx context.Context, tassologistID, requestID string, symbols []models.ManualSymbol, narrative string, mode workflow.SaveMode) (*models.PersonalizationRequest, error)
	Dictate(ctx context.Context, tassologistID, requestID string, in speech.DictationInput) (workflow.DictationOutcome, error)
	ProcessAudio(ctx context.Context, tassologistID, requestID, audioB64, mime string) (workflow.DictationOutcome, error)
	CheckTranscription(ctx context.Context, tassologistID, requestID string) (workflow.TranscriptionCheck, error)
}

type Readings interface {
	Create(ctx context.Context, rd *models.Reading) error
	Get(ctx context.Context, id string) (*models.Reading, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]models.Reading, error)
}

type Profiles interface {
	Get(ctx context.Context, uid string) (*models.UserProfile, error)
	Upsert(ctx context.Context, p *models.UserProfile) error
}

type Catalog interface {
	ActiveTiles(ctx context.Context) ([]models.Tile, error)
	ActiveAudioTracks(ctx context.Context) ([]models.AudioTrack, error)
}

type Deps struct {
	Flows       Flows
	Workflow    Workflow
	Readings    Readings
	Profiles    Profiles
	Catalog     Catalog
	Objects     objectstore.Store
	Log         *zap.Logger
	FlowTimeout time.Duration
}

type Handle struct {
	flows       Flows
	wf          Workflow
	readings    Readings
	profiles    Profiles
	catalog     Catalog
	objects     objectstore.Store
	log         *zap.Logger
	flowTimeout time.Duration
	now         func() time.Time
}

func New(d Deps) *Handle {
	h := &Handle{
		flows:       d.Flows,
		wf:          d.Workflow,
		readings:    d.Readings,
		profiles:    d.Profiles,
		catalog:     d.Catalog,
		objects:     d.Objects,
		log:         d.Log,
		flowTimeout: d.FlowTimeout,
		now:         time.Now,
	}
	if h.log == nil {
		h.log = zap.NewNop()
	}
	if h.flowTimeout <= 0 {
		h.flowTimeout = 180 * time.Second
	}
	return h
}

// Routes registers every endpoint on mux.
func (h *Handle) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("POST /v1/flows/analyze", h.Analyze)
	mux.HandleFunc("POST /v1/flows/interpret", h.Interpret)
	mux.HandleFunc("POST /v1/flows/extract-symbols", h.ExtractSymbols)

	mux.HandleFunc("POST /v1/uploads", h.Upload)

	mux.HandleFunc("POST /v1/readings", h.SaveReading)
	mux.HandleFunc("GET /v1/readings", h.ListReadings)
	mux.HandleFunc("GET /v1/readings/{id}", h.GetReading)

	mux.HandleFunc("POST /v1/personalization", h.SubmitPersonalization)
	mux.HandleFunc("GET /v1/personalization", h.ListPersonalization)
	mux.HandleFunc("GET /v1/personalization/queue", h.Queue)
	mux.HandleFunc("POST /v1/personalization/{id}/start", h.StartWork)
	mux.HandleFunc("POST /v1/personalization/{id}/interpretation", h.SaveInterpretation)
	mux.HandleFunc("POST /v1/personalization/{id}/read", h.MarkRead)
	mux.HandleFunc("POST /v1/personalization/{id}/cancel", h.Cancel)
	mux.HandleFunc("POST /v1/personalization/{id}/dictation", h.Dictate)
	mux.HandleFunc("POST /v1/personalization/{id}/audio", h.ProcessAudio)
	mux.HandleFunc("POST /v1/personalization/{id}/transcription", h.CheckTranscription)

	mux.HandleFunc("GET /v1/profile", h.GetProfile)
	mux.HandleFunc("POST /v1/profile", h.UpdateProfile)

	mux.HandleFunc("GET /v1/tiles", h.Tiles)
	mux.HandleFunc("GET /v1/audio-tracks", h.AudioTracks)
}

// --- responses ---

type errorBody struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	Field      string `json:"field,omitempty"`
	Constraint string `json:"constraint,omitempty"`
}

type okBody struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeOK(w http.ResponseWriter, message string, data any) {
	writeJSON(w, http.StatusOK, okBody{Success: true, Message: message, Data: data})
}

func (h *Handle) writeErr(w http.ResponseWriter, r *http.Request, err error) {
	code := apperr.HTTPStatus(err)
	body := errorBody{Message: err.Error()}

	var (
		ve *apperr.ValidationError
		se *apperr.SchemaValidationError
	)
	switch {
	case errors.As(err, &ve):
		body.Field, body.Constraint = ve.Field, ve.Constraint
	case errors.As(err, &se):
		body.Field, body.Constraint = se.Field, se.Constraint
	}
	if code >= http.StatusInternalServerError {
		h.log.Error("request failed", zap.String("path", r.URL.Path), zap.Int("status", code), zap.Error(err))
		body.Message = publicMessage(err)
	}
	writeJSON(w, code, body)
}

// publicMessage replaces upstream and internal error text with a fixed phrase.
func publicMessage(err error) string {
	var (
		se *apperr.SchemaValidationError
		ee *apperr.EmptyOutputError
		re *apperr.RemoteCallError
	)
	switch {
	case errors.As(err, &se):
		return "model answer failed schema validation"
	case errors.As(err, &ee):
		return "model returned no answer"
	case errors.As(err, &re) && quotaExceeded(err):
		return re.Service + " quota exceeded"
	case errors.As(err, &re):
		return re.Service + " is unavailable"
	default:
		return "internal error"
	}
}

func quotaExceeded(err error) bool {
	var ge *googleapi.Error
	if errors.As(err, &ge) && ge.Code == http.StatusTooManyRequests {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "quota") || strings.Contains(msg, "resource exhausted") ||
		strings.Contains(msg, "resource_exhausted")
}

// --- request helpers ---

const maxJSONBody = 4 << 20

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Invalid("body", "required", "empty request body")
		}
		return apperr.Invalid("body", "json", "bad json: "+err.Error())
	}
	return nil
}

// deadline honours X-Request-Timeout (seconds) or ?timeoutSec=, falling back to def.
func deadline(r *http.Request, def time.Duration) time.Duration {
	if ts := r.Header.Get("X-Request-Timeout"); ts != "" {
		if v, _ := strconv.Atoi(ts); v > 0 {
			return time.Duration(v) * time.Second
		}
	} else if ts := r.URL.Query().Get("timeoutSec"); ts != "" {
		if v, _ := strconv.Atoi(ts); v > 0 {
			return time.Duration(v) * time.Second
		}
	}
	return def
}
