package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"sipnread/api/internal/models"
)

type ReadingRepo struct{ DB *sql.DB }

func NewReadingRepo(db *sql.DB) *ReadingRepo { return &ReadingRepo{DB: db} }

const readingCols = `id, user_id, created_at, updated_at, image_urls, user_question,
       user_symbol_names, ai_result, manual_symbols, manual_interpretation`

// Create inserts a new reading; ID and timestamps are filled when empty.
func (r *ReadingRepo) Create(ctx context.Context, rd *models.Reading) error {
	if rd.ID == "" {
		rd.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if rd.CreatedAt.IsZero() {
		rd.CreatedAt = now
	}
	rd.UpdatedAt = rd.CreatedAt
	if rd.ManualSymbols == nil {
		rd.ManualSymbols = []models.ManualSymbol{}
	}

	images, _ := json.Marshal(nonNil(rd.ImageURLs))
	names, _ := json.Marshal(nonNil(rd.UserSymbolNames))
	ai, err := json.Marshal(rd.AIResult)
	if err != nil {
		return fmt.Errorf("marshal ai_result: %w", err)
	}
	manual, _ := json.Marshal(rd.ManualSymbols)

	const q = `
insert into readings(id, user_id, created_at, updated_at, image_urls, user_question,
                     user_symbol_names, ai_result, manual_symbols, manual_interpretation)
values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`
	_, err = r.DB.ExecContext(ctx, q, rd.ID, rd.UserID, rd.CreatedAt, rd.UpdatedAt, images,
		rd.UserQuestion, names, ai, manual, rd.ManualInterpretation)
	return err
}

func (r *ReadingRepo) Get(ctx context.Context, id string) (*models.Reading, error) {
	q := `select ` + readingCols + ` from readings where id = $1`
	rd, err := scanReading(r.DB.QueryRowContext(ctx, q, id))
	if err != nil {
		return nil, notFound(err)
	}
	return rd, nil
}

// ListByUser returns the user's readings, newest first.
func (r *ReadingRepo) ListByUser(ctx context.Context, userID string, limit int) ([]models.Reading, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `select ` + readingCols + ` from readings where user_id = $1 order by created_at desc limit $2`
	rows, err := r.DB.QueryContext(ctx, q, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Reading
	for rows.Next() {
		rd, err := scanReading(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rd)
	}
	return out, rows.Err()
}

// UpdateManual writes the tassologist's symbols and narrative.
func (r *ReadingRepo) UpdateManual(ctx context.Context, id string, symbols []models.ManualSymbol, narrative string) error {
	js, _ := json.Marshal(nonNilSymbols(symbols))
	const q = `update readings set manual_symbols=$2, manual_interpretation=$3, updated_at=now() where id=$1`
	res, err := r.DB.ExecContext(ctx, q, id, js, narrative)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// BackfillManualInterpretation sets the manual narrative only while it is
// still empty. Returns false when existing text was left in place.
func (r *ReadingRepo) BackfillManualInterpretation(ctx context.Context, id, text string) (bool, error) {
	const q = `update readings set manual_interpretation=$2, updated_at=now()
	           where id=$1 and manual_interpretation = ''`
	res, err := r.DB.ExecContext(ctx, q, id, text)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReading(row rowScanner) (*models.Reading, error) {
	var (
		rd                        models.Reading
		images, names, ai, manual []byte
	)
	if err := row.Scan(&rd.ID, &rd.UserID, &rd.CreatedAt, &rd.UpdatedAt, &images, &rd.UserQuestion,
		&names, &ai, &manual, &rd.ManualInterpretation); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(images, &rd.ImageURLs); err != nil {
		return nil, fmt.Errorf("reading %s image_urls: %w", rd.ID, err)
	}
	if err := json.Unmarshal(names, &rd.UserSymbolNames); err != nil {
		return nil, fmt.Errorf("reading %s user_symbol_names: %w", rd.ID, err)
	}
	if err := json.Unmarshal(ai, &rd.AIResult); err != nil {
		return nil, fmt.Errorf("reading %s ai_result: %w", rd.ID, err)
	}
	if err := json.Unmarshal(manual, &rd.ManualSymbols); err != nil {
		return nil, fmt.Errorf("reading %s manual_symbols: %w", rd.ID, err)
	}
	return &rd, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNilSymbols(s []models.ManualSymbol) []models.ManualSymbol {
	if s == nil {
		return []models.ManualSymbol{}
	}
	return s
}
