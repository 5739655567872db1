package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/manual-assistant/internal/core/domain"
)

type ManualRepository struct {
	db *sql.DB
}

func NewManualRepository(db *sql.DB) *ManualRepository {
	return &ManualRepository{db: db}
}

func (r *ManualRepository) Create(ctx context.Context, m *domain.Manual) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO manuals (
	id, filename, mime_type, storage_path, model, start_page, end_page, status, error_message, passage_count, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
`,
		m.ID, m.Filename, m.MimeType, m.StoragePath, m.Model, m.StartPage, m.EndPage,
		string(m.Status), m.Error, m.PassageCount, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert manual: %w", err)
	}
	return nil
}

func (r *ManualRepository) GetByID(ctx context.Context, id string) (*domain.Manual, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, filename, mime_type, storage_path, model, start_page, end_page, status, error_message, passage_count, created_at, updated_at
FROM manuals
WHERE id = $1
`, id)

	var m domain.Manual
	var status string
	err := row.Scan(
		&m.ID, &m.Filename, &m.MimeType, &m.StoragePath, &m.Model, &m.StartPage, &m.EndPage,
		&status, &m.Error, &m.PassageCount, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrManualNotFound, "get manual", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("scan manual: %w", err)
	}
	m.Status = domain.ManualStatus(status)
	return &m, nil
}

func (r *ManualRepository) UpdateStatus(ctx context.Context, id string, status domain.ManualStatus, errMessage string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE manuals
SET status = $2, error_message = $3, updated_at = $4
WHERE id = $1
`, id, string(status), errMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update manual status: %w", err)
	}
	return requireAffected(res, "update manual status", id)
}

func requireAffected(res sql.Result, op, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if n == 0 {
		return domain.WrapError(domain.ErrManualNotFound, op, fmt.Errorf("id=%s", id))
	}
	return nil
}
