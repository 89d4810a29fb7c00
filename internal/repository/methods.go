package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/m41na/payment-agent-sub001/internal/domain"
)

func (r *Repository) ListPaymentMethods(ctx context.Context, userID string) ([]domain.PaymentMethod, error) {
	query := `SELECT id, user_id, processor_token, brand, last4, expiry_month, expiry_year, is_default, created_at
	          FROM payment_methods WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query payment methods: %w", err)
	}
	defer rows.Close()

	var methods []domain.PaymentMethod
	for rows.Next() {
		var m domain.PaymentMethod
		if err := rows.Scan(
			&m.ID,
			&m.UserID,
			&m.ProcessorToken,
			&m.Brand,
			&m.Last4,
			&m.ExpiryMonth,
			&m.ExpiryYear,
			&m.IsDefault,
			&m.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan payment method row: %w", err)
		}
		methods = append(methods, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return methods, nil
}

func (r *Repository) InsertPaymentMethod(ctx context.Context, method *domain.PaymentMethod) error {
	query := `INSERT INTO payment_methods (id, user_id, processor_token, brand, last4, expiry_month, expiry_year, is_default, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())`

	_, err := r.db.ExecContext(ctx, query,
		method.ID,
		method.UserID,
		method.ProcessorToken,
		method.Brand,
		method.Last4,
		method.ExpiryMonth,
		method.ExpiryYear,
		method.IsDefault)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateToken
		}
		return fmt.Errorf("insert payment method: %w", err)
	}
	return nil
}

func (r *Repository) DeletePaymentMethod(ctx context.Context, userID, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM payment_methods WHERE user_id = $1 AND id = $2`, userID, id)
	if err != nil {
		return fmt.Errorf("delete payment method: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete payment method rows affected: %w", err)
	}
	if affected == 0 {
		return ErrMethodNotFound
	}
	return nil
}

// SwapDefaultPaymentMethod flips the default flag in one transaction so there
// is never a moment with zero defaults visible to a concurrent reader.
func (r *Repository) SwapDefaultPaymentMethod(ctx context.Context, userID, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin default swap: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE payment_methods SET is_default = FALSE WHERE user_id = $1 AND id <> $2`, userID, id); err != nil {
		return fmt.Errorf("clear previous default: %w", err)
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE payment_methods SET is_default = TRUE WHERE user_id = $1 AND id = $2`, userID, id)
	if err != nil {
		return fmt.Errorf("set default payment method: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set default rows affected: %w", err)
	}
	if affected == 0 {
		return ErrMethodNotFound
	}

	return tx.Commit()
}
