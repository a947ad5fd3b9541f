package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/projecthubmthae/G8Livesystem2025/internal/models"
)

type ParticipantRepository struct {
	db DBTX
}

func NewParticipantRepository(db DBTX) *ParticipantRepository {
	return &ParticipantRepository{db: db}
}

func (r *ParticipantRepository) Create(ctx context.Context, participant models.Participant) error {
	query := `
		INSERT INTO participants (session_id, user_id, role, muted, joined_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.Exec(
		ctx,
		query,
		participant.SessionID,
		participant.UserID,
		participant.Role,
		participant.Muted,
		participant.JoinedAt,
	)
	return err
}

func (r *ParticipantRepository) Delete(ctx context.Context, sessionID string, userID int64) error {
	query := `
		DELETE FROM participants
		WHERE session_id = $1 AND user_id = $2
	`
	tag, err := r.db.Exec(ctx, query, sessionID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ParticipantRepository) SetMuted(ctx context.Context, sessionID string, userID int64, muted bool) error {
	query := `
		UPDATE participants
		SET muted = $3
		WHERE session_id = $1 AND user_id = $2
	`
	tag, err := r.db.Exec(ctx, query, sessionID, userID, muted)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// DeleteBySession removes every membership record for the session; the
// cascade when a session ends.
func (r *ParticipantRepository) DeleteBySession(ctx context.Context, sessionID string) error {
	query := `
		DELETE FROM participants
		WHERE session_id = $1
	`
	_, err := r.db.Exec(ctx, query, sessionID)
	return err
}

func (r *ParticipantRepository) ListBySessionID(ctx context.Context, sessionID string) ([]models.Participant, error) {
	query := `
		SELECT session_id, user_id, role, muted, joined_at
		FROM participants
		WHERE session_id = $1
		ORDER BY joined_at ASC, user_id ASC
	`
	rows, err := r.db.Query(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	participants := make([]models.Participant, 0)
	for rows.Next() {
		var participant models.Participant
		if err := rows.Scan(
			&participant.SessionID,
			&participant.UserID,
			&participant.Role,
			&participant.Muted,
			&participant.JoinedAt,
		); err != nil {
			return nil, err
		}
		participants = append(participants, participant)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return participants, nil
}
