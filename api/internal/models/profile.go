package models

import "time"

type Role string

const (
	RoleUser        Role = "user"
	RoleTassologist Role = "tassologist"
	RoleAdmin       Role = "admin"
)

func (r Role) CanInterpret() bool {
	return r == RoleTassologist || r == RoleAdmin
}

type UserProfile struct {
	UID           string    `json:"uid"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	Role          Role      `json:"role"`
	Bio           string    `json:"bio,omitempty"`
	ProfilePicURL string    `json:"profilePicUrl,omitempty"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Tile is a configurable dashboard card.
type Tile struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	LinkURL     string `json:"linkUrl,omitempty"`
	ImageURL    string `json:"imageUrl,omitempty"`
	SortOrder   int    `json:"order"`
	Active      bool   `json:"active"`
}

// AudioTrack is background music offered while a reading is prepared.
type AudioTrack struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	URL       string `json:"url"`
	SortOrder int    `json:"order"`
	Active    bool   `json:"active"`
}
