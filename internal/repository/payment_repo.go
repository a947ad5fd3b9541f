package repository

import (
	"context"

	"github.com/projecthubmthae/G8Livesystem2025/internal/models"
)

type CreatePaymentInput struct {
	SessionID string
	UserID    int64
	Amount    float64
	Currency  string
	Status    string
	Reference string
}

type PaymentRepository struct {
	db DBTX
}

func NewPaymentRepository(db DBTX) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) Create(ctx context.Context, input CreatePaymentInput) (*models.Payment, error) {
	query := `
		INSERT INTO payments (session_id, user_id, amount, currency, status, reference)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, session_id, user_id, amount, currency, status, reference, created_at, updated_at
	`
	var payment models.Payment
	err := r.db.QueryRow(
		ctx,
		query,
		input.SessionID,
		input.UserID,
		input.Amount,
		input.Currency,
		input.Status,
		input.Reference,
	).Scan(
		&payment.ID,
		&payment.SessionID,
		&payment.UserID,
		&payment.Amount,
		&payment.Currency,
		&payment.Status,
		&payment.Reference,
		&payment.CreatedAt,
		&payment.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *PaymentRepository) GetByReference(ctx context.Context, reference string) (*models.Payment, error) {
	query := `
		SELECT id, session_id, user_id, amount, currency, status, reference, created_at, updated_at
		FROM payments
		WHERE reference = $1
	`
	var payment models.Payment
	err := r.db.QueryRow(ctx, query, reference).Scan(
		&payment.ID,
		&payment.SessionID,
		&payment.UserID,
		&payment.Amount,
		&payment.Currency,
		&payment.Status,
		&payment.Reference,
		&payment.CreatedAt,
		&payment.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// UpdateStatusByReference applies a provider callback to the payment
// record identified by the provider's reference.
func (r *PaymentRepository) UpdateStatusByReference(
	ctx context.Context,
	reference string,
	status string,
) (*models.Payment, error) {
	query := `
		UPDATE payments
		SET status = $2, updated_at = NOW()
		WHERE reference = $1
		RETURNING id, session_id, user_id, amount, currency, status, reference, created_at, updated_at
	`
	var payment models.Payment
	err := r.db.QueryRow(ctx, query, reference, status).Scan(
		&payment.ID,
		&payment.SessionID,
		&payment.UserID,
		&payment.Amount,
		&payment.Currency,
		&payment.Status,
		&payment.Reference,
		&payment.CreatedAt,
		&payment.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &payment, nil
}
