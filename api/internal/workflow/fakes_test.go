package workflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"sipnread/api/internal/apperr"
	"sipnread/api/internal/models"
	"sipnread/api/internal/speech"
)

type memReadings struct {
	mu sync.Mutex
	m  map[string]*models.Reading
}

func (f *memReadings) Get(_ context.Context, id string) (*models.Reading, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rd, ok := f.m[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	cp := *rd
	return &cp, nil
}

func (f *memReadings) UpdateManual(_ context.Context, id string, symbols []models.ManualSymbol, narrative string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rd, ok := f.m[id]
	if !ok {
		return apperr.ErrNotFound
	}
	rd.ManualSymbols, rd.ManualInterpretation = symbols, narrative
	return nil
}

func (f *memReadings) BackfillManualInterpretation(_ context.Context, id, text string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rd, ok := f.m[id]
	if !ok || rd.ManualInterpretation != "" {
		return false, nil
	}
	rd.ManualInterpretation = text
	return true, nil
}

type memRequests struct {
	mu sync.Mutex
	m  map[string]*models.PersonalizationRequest
	n  int
}

func (f *memRequests) Create(_ context.Context, pr *models.PersonalizationRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.n++
	pr.ID = fmt.Sprintf("req-%d", f.n)
	cp := *pr
	f.m[pr.ID] = &cp
	return nil
}

func (f *memRequests) Get(_ context.Context, id string) (*models.PersonalizationRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pr, ok := f.m[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	cp := *pr
	return &cp, nil
}

func (f *memRequests) ListByStatus(_ context.Context, statuses []models.Status, _ int) ([]models.PersonalizationRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.PersonalizationRequest
	for _, pr := range f.m {
		for _, s := range statuses {
			if pr.Status == s {
				out = append(out, *pr)
			}
		}
	}
	return out, nil
}

func (f *memRequests) ListByUser(_ context.Context, uid string, _ int) ([]models.PersonalizationRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.PersonalizationRequest
	for _, pr := range f.m {
		if pr.UserID == uid {
			out = append(out, *pr)
		}
	}
	return out, nil
}

func (f *memRequests) Transition(_ context.Context, id string, from, to models.Status, actorID string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	pr, ok := f.m[id]
	if !ok {
		return apperr.ErrNotFound
	}
	if pr.Status != from {
		return fmt.Errorf("conflict: %w", apperr.ErrInvalidTransition)
	}
	pr.Status, pr.UpdatedAt = to, at
	if actorID != "" && (to == models.StatusInProgress || to == models.StatusCompleted) {
		pr.TassologistID = actorID
	}
	return nil
}

func (f *memRequests) SetTranscription(_ context.Context, id string, t models.Transcription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	pr, ok := f.m[id]
	if !ok {
		return apperr.ErrNotFound
	}
	pr.Transcription = t
	return nil
}

type memProfiles map[string]*models.UserProfile

func (f memProfiles) Get(_ context.Context, uid string) (*models.UserProfile, error) {
	p, ok := f[uid]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return p, nil
}

type recordingNotifier struct {
	submitted, completed []string
}

func (r *recordingNotifier) RequestSubmitted(_ context.Context, pr *models.PersonalizationRequest) error {
	r.submitted = append(r.submitted, pr.ID)
	return nil
}

func (r *recordingNotifier) InterpretationCompleted(_ context.Context, pr *models.PersonalizationRequest) error {
	r.completed = append(r.completed, pr.ID)
	return nil
}

type scriptedTranscriber struct {
	op     speech.Operation
	polls  int
	starts int
}

func (s *scriptedTranscriber) Start(context.Context, []byte, string) (string, error) {
	s.starts++
	return "operations/op-1", nil
}

func (s *scriptedTranscriber) Poll(_ context.Context, name string) (speech.Operation, error) {
	s.polls++
	op := s.op
	op.Name = name
	return op, nil
}
