package repository

import (
	"context"

	"github.com/projecthubmthae/G8Livesystem2025/internal/models"
)

// MessageRepository logs broadcast messages to the durable store. The
// broadcast itself never reads them back; they exist for auditing.
type MessageRepository struct {
	db DBTX
}

func NewMessageRepository(db DBTX) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) Create(ctx context.Context, message models.Message) error {
	query := `
		INSERT INTO messages (session_id, sender_id, body, sent_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := r.db.Exec(ctx, query, message.SessionID, message.SenderID, message.Body, message.SentAt)
	return err
}
