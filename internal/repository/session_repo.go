package repository

import (
	"context"

	"github.com/projecthubmthae/G8Livesystem2025/internal/models"
)

type SessionRepository struct {
	db DBTX
}

func NewSessionRepository(db DBTX) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Create(ctx context.Context, session *models.Session) error {
	query := `
		INSERT INTO sessions (id, coach_id, title, status, capacity)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`
	return r.db.QueryRow(
		ctx,
		query,
		session.ID,
		session.CoachID,
		session.Title,
		session.Status,
		session.Capacity,
	).Scan(&session.CreatedAt, &session.UpdatedAt)
}

func (r *SessionRepository) GetByID(ctx context.Context, sessionID string) (*models.Session, error) {
	query := `
		SELECT id, coach_id, title, status, capacity, created_at, updated_at
		FROM sessions
		WHERE id = $1
	`
	var session models.Session
	err := r.db.QueryRow(ctx, query, sessionID).Scan(
		&session.ID,
		&session.CoachID,
		&session.Title,
		&session.Status,
		&session.Capacity,
		&session.CreatedAt,
		&session.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *SessionRepository) List(ctx context.Context, status string) ([]models.Session, error) {
	query := `
		SELECT id, coach_id, title, status, capacity, created_at, updated_at
		FROM sessions
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at ASC, id ASC
	`
	rows, err := r.db.Query(ctx, query, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := make([]models.Session, 0)
	for rows.Next() {
		var session models.Session
		if err := rows.Scan(
			&session.ID,
			&session.CoachID,
			&session.Title,
			&session.Status,
			&session.Capacity,
			&session.CreatedAt,
			&session.UpdatedAt,
		); err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}

// ListNotEnded returns every session still in a non-terminal state; used
// to warm the live registry at startup.
func (r *SessionRepository) ListNotEnded(ctx context.Context) ([]models.Session, error) {
	query := `
		SELECT id, coach_id, title, status, capacity, created_at, updated_at
		FROM sessions
		WHERE status <> $1
		ORDER BY created_at ASC, id ASC
	`
	rows, err := r.db.Query(ctx, query, models.SessionEnded)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := make([]models.Session, 0)
	for rows.Next() {
		var session models.Session
		if err := rows.Scan(
			&session.ID,
			&session.CoachID,
			&session.Title,
			&session.Status,
			&session.Capacity,
			&session.CreatedAt,
			&session.UpdatedAt,
		); err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}

// UpdateStatusIfCurrent is the durable mirror of the registry's
// compare-and-set: it only writes when the stored status still matches.
func (r *SessionRepository) UpdateStatusIfCurrent(
	ctx context.Context,
	sessionID string,
	currentStatus string,
	nextStatus string,
) (*models.Session, error) {
	query := `
		UPDATE sessions
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING id, coach_id, title, status, capacity, created_at, updated_at
	`
	var session models.Session
	err := r.db.QueryRow(ctx, query, sessionID, currentStatus, nextStatus).Scan(
		&session.ID,
		&session.CoachID,
		&session.Title,
		&session.Status,
		&session.Capacity,
		&session.CreatedAt,
		&session.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &session, nil
}
