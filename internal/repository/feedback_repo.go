package repository

import (
	"context"

	"github.com/projecthubmthae/G8Livesystem2025/internal/models"
)

type CreateFeedbackInput struct {
	SessionID string
	UserID    int64
	Rating    int
	Comment   *string
}

type FeedbackRepository struct {
	db DBTX
}

func NewFeedbackRepository(db DBTX) *FeedbackRepository {
	return &FeedbackRepository{db: db}
}

func (r *FeedbackRepository) Create(ctx context.Context, input CreateFeedbackInput) (*models.Feedback, error) {
	query := `
		INSERT INTO feedback (session_id, user_id, rating, comment)
		VALUES ($1, $2, $3, $4)
		RETURNING id, session_id, user_id, rating, comment, created_at
	`
	var feedback models.Feedback
	err := r.db.QueryRow(ctx, query, input.SessionID, input.UserID, input.Rating, input.Comment).Scan(
		&feedback.ID,
		&feedback.SessionID,
		&feedback.UserID,
		&feedback.Rating,
		&feedback.Comment,
		&feedback.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &feedback, nil
}

func (r *FeedbackRepository) ListBySessionID(
	ctx context.Context,
	sessionID string,
	page int,
	limit int,
) ([]models.Feedback, int, error) {
	countQuery := `
		SELECT COUNT(*)
		FROM feedback
		WHERE session_id = $1
	`
	var total int
	if err := r.db.QueryRow(ctx, countQuery, sessionID).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT id, session_id, user_id, rating, comment, created_at
		FROM feedback
		WHERE session_id = $1
		ORDER BY created_at ASC, id ASC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Query(ctx, query, sessionID, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	feedbacks := make([]models.Feedback, 0)
	for rows.Next() {
		var feedback models.Feedback
		if err := rows.Scan(
			&feedback.ID,
			&feedback.SessionID,
			&feedback.UserID,
			&feedback.Rating,
			&feedback.Comment,
			&feedback.CreatedAt,
		); err != nil {
			return nil, 0, err
		}
		feedbacks = append(feedbacks, feedback)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return feedbacks, total, nil
}
