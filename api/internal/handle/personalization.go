package handle

import (
	"context"
	"net/http"

	"sipnread/api/internal/auth"
	"sipnread/api/internal/models"
	"sipnread/api/internal/speech"
	"sipnread/api/internal/workflow"
)

// --- PERSONALIZED READINGS --------------------------------------------------

type submitReq struct {
	ReadingID    string `json:"readingId"`
	UserQuestion string `json:"userQuestion"`
}

func (h *Handle) SubmitPersonalization(w http.ResponseWriter, r *http.Request) {
	id, err := auth.Require(r.Context())
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	var req submitReq
	if err := decode(w, r, &req); err != nil {
		h.writeErr(w, r, err)
		return
	}
	pr, err := h.wf.SubmitRequest(r.Context(), id.UID, req.ReadingID, req.UserQuestion)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	writeOK(w, "Request submitted", pr)
}

func (h *Handle) ListPersonalization(w http.ResponseWriter, r *http.Request) {
	id, err := auth.Require(r.Context())
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	list, err := h.wf.UserRequests(r.Context(), id.UID)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	if list == nil {
		list = []models.PersonalizationRequest{}
	}
	writeOK(w, "", list)
}

func (h *Handle) Queue(w http.ResponseWriter, r *http.Request) {
	id, err := auth.Require(r.Context())
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	list, err := h.wf.Queue(r.Context(), id.UID)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	if list == nil {
		list = []models.PersonalizationRequest{}
	}
	writeOK(w, "", list)
}

// statusAction wraps the body-less transitions (start, read, cancel).
func (h *Handle) statusAction(message string, act func(ctx context.Context, uid, requestID string) (*models.PersonalizationRequest, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := auth.Require(r.Context())
		if err != nil {
			h.writeErr(w, r, err)
			return
		}
		pr, err := act(r.Context(), id.UID, r.PathValue("id"))
		if err != nil {
			h.writeErr(w, r, err)
			return
		}
		writeOK(w, message, pr)
	}
}

func (h *Handle) StartWork(w http.ResponseWriter, r *http.Request) {
	h.statusAction("Work started", h.wf.StartWork)(w, r)
}

// MarkRead flags a completed personalization as read.
func (h *Handle) MarkRead(w http.ResponseWriter, r *http.Request) {
	h.statusAction("Marked as read", h.wf.MarkRead)(w, r)
}

func (h *Handle) Cancel(w http.ResponseWriter, r *http.Request) {
	h.statusAction("Request cancelled", h.wf.Cancel)(w, r)
}

type interpretationReq struct {
	ManualSymbols        []models.ManualSymbol `json:"manualSymbols"`
	ManualInterpretation string                `json:"manualInterpretation"`
	Mode                 workflow.SaveMode     `json:"mode"`
}

// SaveInterpretation stores the tassologist draft or final reading.
func (h *Handle) SaveInterpretation(w http.ResponseWriter, r *http.Request) {
	id, err := auth.Require(r.Context())
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	var req interpretationReq
	if err := decode(w, r, &req); err != nil {
		h.writeErr(w, r, err)
		return
	}
	if req.Mode == "" {
		req.Mode = workflow.SaveDraft
	}
	pr, err := h.wf.SaveInterpretation(r.Context(), id.UID, r.PathValue("id"), req.ManualSymbols, req.ManualInterpretation, req.Mode)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	msg := "Draft saved"
	if req.Mode == workflow.SaveComplete {
		msg = "Interpretation completed"
	}
	writeOK(w, msg, pr)
}

type dictationReq struct {
	Text string `json:"text"`
}

func (h *Handle) Dictate(w http.ResponseWriter, r *http.Request) {
	id, err := auth.Require(r.Context())
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	var req dictationReq
	if err := decode(w, r, &req); err != nil {
		h.writeErr(w, r, err)
		return
	}
	out, err := h.wf.Dictate(r.Context(), id.UID, r.PathValue("id"), speech.DictationInput{Text: req.Text})
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	writeOK(w, "", out)
}

type audioReq struct {
	Audio    string `json:"audio"` // base64 or data: URL
	MimeType string `json:"mimeType"`
}

// ProcessAudio starts server-side transcription of a recording.
func (h *Handle) ProcessAudio(w http.ResponseWriter, r *http.Request) {
	id, err := auth.Require(r.Context())
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	var req audioReq
	if err := decode(w, r, &req); err != nil {
		h.writeErr(w, r, err)
		return
	}
	out, err := h.wf.ProcessAudio(r.Context(), id.UID, r.PathValue("id"), req.Audio, req.MimeType)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	writeOK(w, "Transcription started", out)
}

func (h *Handle) CheckTranscription(w http.ResponseWriter, r *http.Request) {
	id, err := auth.Require(r.Context())
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	out, err := h.wf.CheckTranscription(r.Context(), id.UID, r.PathValue("id"))
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	writeOK(w, "", out)
}
