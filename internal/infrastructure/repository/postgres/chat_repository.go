package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/kirillkom/manual-assistant/internal/core/domain"
)

type ChatRepository struct {
	db *sql.DB
}

func NewChatRepository(db *sql.DB) *ChatRepository {
	return &ChatRepository{db: db}
}

func (r *ChatRepository) AppendExchange(ctx context.Context, ex domain.ChatExchange) error {
	if ex.CreatedAt.IsZero() {
		ex.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO chat_exchanges (id, session_id, question, answer, passages, created_at)
VALUES ($1,$2,$3,$4,$5,$6)
`, ex.ID, ex.SessionID, ex.Question, ex.Answer, ex.Passages, ex.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert chat exchange: %w", err)
	}
	return nil
}
