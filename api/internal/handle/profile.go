package handle

import (
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"

	"sipnread/api/internal/apperr"
	"sipnread/api/internal/auth"
	"sipnread/api/internal/models"
)

const (
	maxNameLen = 100
	maxBioLen  = 2000
)

type profileReq struct {
	Name          string `json:"name"`
	Bio           string `json:"bio"`
	ProfilePicURL string `json:"profilePicUrl"`
}

func (h *Handle) GetProfile(w http.ResponseWriter, r *http.Request) {
	id, err := auth.Require(r.Context())
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	p, err := h.profiles.Get(r.Context(), id.UID)
	if errors.Is(err, apperr.ErrNotFound) {
		// first visit: what the identity provider knows
		p, err = &models.UserProfile{UID: id.UID, Email: id.Email, Name: id.Name, ProfilePicURL: id.Picture, Role: models.RoleUser}, nil
	}
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	writeOK(w, "", p)
}

// UpdateProfile edits the caller profile. Role is never taken from the request.
func (h *Handle) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	id, err := auth.Require(r.Context())
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	var req profileReq
	if err := decode(w, r, &req); err != nil {
		h.writeErr(w, r, err)
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = id.Name
	}
	if utf8.RuneCountInString(name) > maxNameLen {
		h.writeErr(w, r, apperr.Invalid("name", "maxLength", ""))
		return
	}
	if utf8.RuneCountInString(req.Bio) > maxBioLen {
		h.writeErr(w, r, apperr.Invalid("bio", "maxLength", ""))
		return
	}
	pic := strings.TrimSpace(req.ProfilePicURL)
	if pic != "" && !strings.HasPrefix(pic, "https://") {
		h.writeErr(w, r, apperr.Invalid("profilePicUrl", "format", "expected https url"))
		return
	}

	p := &models.UserProfile{
		UID:           id.UID,
		Email:         id.Email,
		Name:          name,
		Role:          models.RoleUser,
		Bio:           strings.TrimSpace(req.Bio),
		ProfilePicURL: pic,
		UpdatedAt:     h.now().UTC(),
	}
	if err := h.profiles.Upsert(r.Context(), p); err != nil {
		h.writeErr(w, r, err)
		return
	}
	saved, err := h.profiles.Get(r.Context(), id.UID)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	writeOK(w, "Profile updated", saved)
}
