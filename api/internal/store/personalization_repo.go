package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"sipnread/api/internal/models"
)

type PersonalizationRepo struct{ DB *sql.DB }

func NewPersonalizationRepo(db *sql.DB) *PersonalizationRepo { return &PersonalizationRepo{DB: db} }

const requestCols = `id, reading_id, user_id, tassologist_id, user_question, status,
       price_cents, currency, payment_status,
       transcription_status, transcription_op, transcription_error, transcription_updated,
       requested_at, updated_at, completed_at, read_at`

func (r *PersonalizationRepo) Create(ctx context.Context, pr *models.PersonalizationRequest) error {
	if pr.ID == "" {
		pr.ID = uuid.NewString()
	}
	if pr.RequestedAt.IsZero() {
		pr.RequestedAt = time.Now().UTC()
	}
	pr.UpdatedAt = pr.RequestedAt
	if pr.Transcription.Status == "" {
		pr.Transcription.Status = models.TranscriptionNotRequested
	}

	const q = `
insert into personalized_requests(id, reading_id, user_id, tassologist_id, user_question, status,
       price_cents, currency, payment_status, transcription_status, requested_at, updated_at)
values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`
	_, err := r.DB.ExecContext(ctx, q, pr.ID, pr.ReadingID, pr.UserID, pr.TassologistID, pr.UserQuestion,
		string(pr.Status), pr.PriceCents, pr.Currency, string(pr.PaymentStatus),
		string(pr.Transcription.Status), pr.RequestedAt, pr.UpdatedAt)
	return err
}

func (r *PersonalizationRepo) Get(ctx context.Context, id string) (*models.PersonalizationRequest, error) {
	q := `select ` + requestCols + ` from personalized_requests where id = $1`
	pr, err := scanRequest(r.DB.QueryRowContext(ctx, q, id))
	if err != nil {
		return nil, notFound(err)
	}
	return pr, nil
}

// ListByStatus returns requests in any of the given statuses, oldest first (work queue order).
func (r *PersonalizationRepo) ListByStatus(ctx context.Context, statuses []models.Status, limit int) ([]models.PersonalizationRequest, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 100
	}
	args := make([]any, 0, len(statuses)+1)
	marks := make([]string, 0, len(statuses))
	for i, s := range statuses {
		args = append(args, string(s))
		marks = append(marks, fmt.Sprintf("$%d", i+1))
	}
	args = append(args, limit)
	q := `select ` + requestCols + ` from personalized_requests
	      where status in (` + strings.Join(marks, ",") + `)
	      order by requested_at asc limit $` + fmt.Sprint(len(args))
	return r.list(ctx, q, args...)
}

// ListByUser returns the user's requests, newest first.
func (r *PersonalizationRepo) ListByUser(ctx context.Context, userID string, limit int) ([]models.PersonalizationRequest, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `select ` + requestCols + ` from personalized_requests where user_id = $1 order by requested_at desc limit $2`
	return r.list(ctx, q, userID, limit)
}

func (r *PersonalizationRepo) list(ctx context.Context, q string, args ...any) ([]models.PersonalizationRequest, error) {
	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.PersonalizationRequest
	for rows.Next() {
		pr, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *pr)
	}
	return out, rows.Err()
}

// Transition moves a request from one status to another (compare-and-set).
// ErrConflict when the stored status is no longer `from`.
func (r *PersonalizationRepo) Transition(ctx context.Context, id string, from, to models.Status, actorID string, at time.Time) error {
	const q = `
update personalized_requests
set status = $3,
    updated_at = $4,
    tassologist_id = case when $5 <> '' and $3 in ('in-progress','completed') then $5 else tassologist_id end,
    completed_at = case when $3 = 'completed' then $4 else completed_at end,
    read_at = case when $3 = 'read' then $4 else read_at end
where id = $1 and status = $2`
	res, err := r.DB.ExecContext(ctx, q, id, string(from), string(to), at, actorID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	if _, err := r.Get(ctx, id); err != nil {
		return err
	}
	return ErrConflict
}

// SetTranscription stores the dictation sub-state.
func (r *PersonalizationRepo) SetTranscription(ctx context.Context, id string, t models.Transcription) error {
	at := time.Now().UTC()
	if t.UpdatedAt != nil {
		at = *t.UpdatedAt
	}
	const q = `
update personalized_requests
set transcription_status=$2, transcription_op=$3, transcription_error=$4, transcription_updated=$5, updated_at=now()
where id=$1`
	res, err := r.DB.ExecContext(ctx, q, id, string(t.Status), t.OperationName, t.Error, at)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanRequest(row rowScanner) (*models.PersonalizationRequest, error) {
	var (
		pr                           models.PersonalizationRequest
		status, payment, trStatus    string
		trUpdated, completed, readAt sql.NullTime
	)
	if err := row.Scan(&pr.ID, &pr.ReadingID, &pr.UserID, &pr.TassologistID, &pr.UserQuestion, &status,
		&pr.PriceCents, &pr.Currency, &payment,
		&trStatus, &pr.Transcription.OperationName, &pr.Transcription.Error, &trUpdated,
		&pr.RequestedAt, &pr.UpdatedAt, &completed, &readAt); err != nil {
		return nil, err
	}
	pr.Status = models.Status(status)
	pr.PaymentStatus = models.PaymentStatus(payment)
	pr.Transcription.Status = models.TranscriptionStatus(trStatus)
	pr.Transcription.UpdatedAt = nullTime(trUpdated)
	pr.CompletedAt = nullTime(completed)
	pr.ReadAt = nullTime(readAt)
	return &pr, nil
}
