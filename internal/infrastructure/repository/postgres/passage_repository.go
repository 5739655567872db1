package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/kirillkom/manual-assistant/internal/core/domain"
)

// PassageRepository stores passage text so the keyword retriever can scan
// the whole corpus without touching the vector index.
type PassageRepository struct {
	db        *sql.DB
	batchSize int
}

// passagesPerInsert keeps each INSERT far below Postgres's 65535 bind
// parameter limit (four parameters per row).
const passagesPerInsert = 1000

func NewPassageRepository(db *sql.DB) *PassageRepository {
	return &PassageRepository{db: db, batchSize: passagesPerInsert}
}

func (r *PassageRepository) ReplacePassages(ctx context.Context, manualID string, passages []domain.Passage) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin passages tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM passages WHERE manual_id = $1`, manualID); err != nil {
		return fmt.Errorf("delete passages: %w", err)
	}
	for start := 0; start < len(passages); start += r.batchSize {
		end := min(start+r.batchSize, len(passages))
		query, args := insertPassages(manualID, passages[start:end])
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert passages %d-%d: %w", start, end-1, err)
		}
	}

	res, err := tx.ExecContext(ctx, `
UPDATE manuals
SET passage_count = $2, updated_at = $3
WHERE id = $1
`, manualID, len(passages), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update passage count: %w", err)
	}
	if err := requireAffected(res, "replace passages", manualID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit passages tx: %w", err)
	}
	return nil
}

func insertPassages(manualID string, passages []domain.Passage) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO passages (manual_id, chunk_index, source_tag, content) VALUES ")
	args := make([]any, 0, len(passages)*4)
	for i, p := range passages {
		if i > 0 {
			b.WriteString(",")
		}
		n := i * 4
		fmt.Fprintf(&b, "($%d,$%d,$%d,$%d)", n+1, n+2, n+3, n+4)
		args = append(args, manualID, p.ChunkIndex, p.SourceTag, p.Content)
	}
	return b.String(), args
}

// ScanPassages returns passages of ready manuals in ingestion order.
func (r *PassageRepository) ScanPassages(ctx context.Context) ([]domain.Passage, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT p.manual_id, p.chunk_index, p.source_tag, p.content
FROM passages p
JOIN manuals m ON m.id = p.manual_id
WHERE m.status = $1
ORDER BY m.created_at, m.id, p.chunk_index
`, string(domain.StatusReady))
	if err != nil {
		return nil, fmt.Errorf("query passages: %w", err)
	}
	defer rows.Close()

	var out []domain.Passage
	for rows.Next() {
		var p domain.Passage
		if err := rows.Scan(&p.ManualID, &p.ChunkIndex, &p.SourceTag, &p.Content); err != nil {
			return nil, fmt.Errorf("scan passage: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate passages: %w", err)
	}
	return out, nil
}
