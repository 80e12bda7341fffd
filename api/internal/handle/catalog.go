package handle

import (
	"net/http"

	"sipnread/api/internal/models"
)

func (h *Handle) Tiles(w http.ResponseWriter, r *http.Request) {
	tiles, err := h.catalog.ActiveTiles(r.Context())
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	if tiles == nil {
		tiles = []models.Tile{}
	}
	writeOK(w, "", tiles)
}

func (h *Handle) AudioTracks(w http.ResponseWriter, r *http.Request) {
	tracks, err := h.catalog.ActiveAudioTracks(r.Context())
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	if tracks == nil {
		tracks = []models.AudioTrack{}
	}
	writeOK(w, "", tracks)
}
