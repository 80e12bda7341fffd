package store

import (
	"context"
	"database/sql"

	"sipnread/api/internal/models"
)

// CatalogRepo serves the read-only UI configuration: dashboard tiles and audio tracks.
type CatalogRepo struct{ DB *sql.DB }

func NewCatalogRepo(db *sql.DB) *CatalogRepo { return &CatalogRepo{DB: db} }

func (r *CatalogRepo) ActiveTiles(ctx context.Context) ([]models.Tile, error) {
	const q = `select id, title, description, link_url, image_url, sort_order, active
	           from tiles where active order by sort_order, id`
	rows, err := r.DB.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Tile{}
	for rows.Next() {
		var t models.Tile
		if err := rows.Scan(&t.ID, &t.Title, &t.Description, &t.LinkURL, &t.ImageURL, &t.SortOrder, &t.Active); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *CatalogRepo) ActiveAudioTracks(ctx context.Context) ([]models.AudioTrack, error) {
	const q = `select id, title, url, sort_order, active from audio_tracks where active order by sort_order, id`
	rows, err := r.DB.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.AudioTrack{}
	for rows.Next() {
		var a models.AudioTrack
		if err := rows.Scan(&a.ID, &a.Title, &a.URL, &a.SortOrder, &a.Active); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
