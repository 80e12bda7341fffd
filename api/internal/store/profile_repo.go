package store

import (
	"context"
	"database/sql"
	"time"

	"sipnread/api/internal/models"
)

type ProfileRepo struct{ DB *sql.DB }

func NewProfileRepo(db *sql.DB) *ProfileRepo { return &ProfileRepo{DB: db} }

func (r *ProfileRepo) Get(ctx context.Context, uid string) (*models.UserProfile, error) {
	const q = `select uid, email, name, role, bio, profile_pic_url, updated_at from user_profiles where uid = $1`
	var (
		p    models.UserProfile
		role string
	)
	err := r.DB.QueryRowContext(ctx, q, uid).Scan(&p.UID, &p.Email, &p.Name, &role, &p.Bio, &p.ProfilePicURL, &p.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	p.Role = models.Role(role)
	return &p, nil
}

// Upsert stores the editable profile fields. Role is written on insert only;
// an existing role is never changed through this path.
func (r *ProfileRepo) Upsert(ctx context.Context, p *models.UserProfile) error {
	if p.Role == "" {
		p.Role = models.RoleUser
	}
	p.UpdatedAt = time.Now().UTC()
	const q = `
insert into user_profiles(uid, email, name, role, bio, profile_pic_url, updated_at)
values ($1,$2,$3,$4,$5,$6,$7)
on conflict (uid)
do update set email=excluded.email, name=excluded.name, bio=excluded.bio,
              profile_pic_url=excluded.profile_pic_url, updated_at=excluded.updated_at`
	_, err := r.DB.ExecContext(ctx, q, p.UID, p.Email, p.Name, string(p.Role), p.Bio, p.ProfilePicURL, p.UpdatedAt)
	return err
}
