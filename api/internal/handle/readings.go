package handle

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"sipnread/api/internal/apperr"
	"sipnread/api/internal/auth"
	"sipnread/api/internal/imageproc"
	"sipnread/api/internal/llm/types"
	"sipnread/api/internal/models"
	"sipnread/api/internal/objectstore"
)

const maxUploadBytes = 15 << 20

// Upload takes one multipart image ("file"), downsizes it and stores it
// under the caller's readings prefix.
func (h *Handle) Upload(w http.ResponseWriter, r *http.Request) {
	id, err := auth.Require(r.Context())
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		h.writeErr(w, r, apperr.Invalid("file", "multipart", err.Error()))
		return
	}
	f, _, err := r.FormFile("file")
	if err != nil {
		h.writeErr(w, r, apperr.Invalid("file", "required", err.Error()))
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		h.writeErr(w, r, apperr.Invalid("file", "read", err.Error()))
		return
	}

	index, _ := strconv.Atoi(r.FormValue("index"))
	if index < 0 || index >= types.MaxImages {
		h.writeErr(w, r, apperr.Invalid("index", "range", fmt.Sprintf("expected 0-%d", types.MaxImages-1)))
		return
	}

	jpg, err := imageproc.Resize(data, imageproc.MaxDimension, imageproc.Quality)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	url, err := h.objects.Put(r.Context(), objectstore.ReadingImagePath(id.UID, h.now(), index), "image/jpeg", jpg)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	writeOK(w, "", map[string]string{"url": url})
}

// SaveReading stores a finished analysis for the caller.
func (h *Handle) SaveReading(w http.ResponseWriter, r *http.Request) {
	id, err := auth.Require(r.Context())
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	var in models.ReadingInput
	if err := decode(w, r, &in); err != nil {
		h.writeErr(w, r, err)
		return
	}
	if err := in.Validate(); err != nil {
		h.writeErr(w, r, err)
		return
	}
	rd := in.Reading(id.UID)
	if err := h.readings.Create(r.Context(), rd); err != nil {
		h.writeErr(w, r, fmt.Errorf("save reading: %w", err))
		return
	}
	writeOK(w, "Reading saved", map[string]string{"readingId": rd.ID})
}

func (h *Handle) ListReadings(w http.ResponseWriter, r *http.Request) {
	id, err := auth.Require(r.Context())
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	list, err := h.readings.ListByUser(r.Context(), id.UID, limit)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	if list == nil {
		list = []models.Reading{}
	}
	writeOK(w, "", list)
}

// GetReading: owners see their readings; tassologists see any.
func (h *Handle) GetReading(w http.ResponseWriter, r *http.Request) {
	id, err := auth.Require(r.Context())
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	rd, err := h.readings.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	if rd.UserID != id.UID {
		p, err := h.profiles.Get(r.Context(), id.UID)
		if err != nil && !errors.Is(err, apperr.ErrNotFound) {
			h.writeErr(w, r, err)
			return
		}
		if p == nil || !p.Role.CanInterpret() {
			h.writeErr(w, r, apperr.ErrForbidden)
			return
		}
	}
	writeOK(w, "", rd)
}
