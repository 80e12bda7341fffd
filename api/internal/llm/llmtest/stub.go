// Package llmtest provides a deterministic llm.Model for tests and local runs.
package llmtest

import (
	"context"
	"sync"

	"sipnread/api/internal/llm"
)

// Stub answers every call with Response (or Err) and records the requests.
type Stub struct {
	Response string
	Err      error
	// Respond, when set, overrides Response/Err.
	Respond func(req llm.Request) (string, error)

	mu    sync.Mutex
	calls []llm.Request
}

func (s *Stub) Name() string     { return "stub" }
func (s *Stub) GetModel() string { return "stub-model" }

func (s *Stub) Generate(_ context.Context, req llm.Request) (string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, req)
	s.mu.Unlock()
	if s.Respond != nil {
		return s.Respond(req)
	}
	return s.Response, s.Err
}

func (s *Stub) Calls() []llm.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]llm.Request(nil), s.calls...)
}
