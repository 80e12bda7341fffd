package handle

import (
	"context"
	"net/http"

	"sipnread/api/internal/auth"
	"sipnread/api/internal/llm/types"
)

// --- AI FLOWS ---------------------------------------------------------------

func (h *Handle) Analyze(w http.ResponseWriter, r *http.Request) {
	if _, err := auth.Require(r.Context()); err != nil {
		h.writeErr(w, r, err)
		return
	}
	var req types.InterpretationRequest
	if err := decode(w, r, &req); err != nil {
		h.writeErr(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), deadline(r, h.flowTimeout))
	defer cancel()

	out, err := h.flows.AnalyzeTeaLeafPatterns(ctx, req)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	writeOK(w, "", out)
}

func (h *Handle) Interpret(w http.ResponseWriter, r *http.Request) {
	if _, err := auth.Require(r.Context()); err != nil {
		h.writeErr(w, r, err)
		return
	}
	var req types.InterpretRequest
	if err := decode(w, r, &req); err != nil {
		h.writeErr(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), deadline(r, h.flowTimeout))
	defer cancel()

	out, err := h.flows.GenerateInterpretation(ctx, req)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	writeOK(w, "", out)
}

func (h *Handle) ExtractSymbols(w http.ResponseWriter, r *http.Request) {
	if _, err := auth.Require(r.Context()); err != nil {
		h.writeErr(w, r, err)
		return
	}
	var req types.ExtractRequest
	if err := decode(w, r, &req); err != nil {
		h.writeErr(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), deadline(r, h.flowTimeout))
	defer cancel()

	out, err := h.flows.ExtractSymbolsFromText(ctx, req)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	writeOK(w, "", types.ExtractResponse{Symbols: out})
}
