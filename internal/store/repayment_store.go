package store

import (
	"context"
	"time"
)

type RepaymentStore struct {
	db DB
}

type Repayment struct {
	ID                   string    `db:"id"`
	CreditRequestID      string    `db:"credit_request_id"`
	UserID               string    `db:"user_id"`
	Amount               int64     `db:"amount"`
	TotalRepaidAfter     int64     `db:"total_repaid_after"`
	RemainingAfter       int64     `db:"remaining_after"`
	SavingsTransactionID string    `db:"savings_transaction_id"`
	Status               string    `db:"status"`
	Notes                *string   `db:"notes"`
	CreatedAt            time.Time `db:"created_at"`
}

type Punctuality struct {
	OnTime int `db:"on_time"`
	Total  int `db:"total"`
}

func NewRepaymentStore(db DB) *RepaymentStore {
	return &RepaymentStore{db: db}
}

func (s *RepaymentStore) Create(ctx context.Context, tx Execer, row Repayment) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO credit_repayments (id, credit_request_id, user_id, amount, total_repaid_after, remaining_after,
		                               savings_transaction_id, status, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, row.ID, row.CreditRequestID, row.UserID, row.Amount, row.TotalRepaidAfter, row.RemainingAfter,
		row.SavingsTransactionID, row.Status, row.Notes, row.CreatedAt)
	return err
}

func (s *RepaymentStore) ListByCreditRequest(ctx context.Context, creditRequestID string) ([]Repayment, error) {
	var rows []Repayment
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, credit_request_id, user_id, amount, total_repaid_after, remaining_after,
		       savings_transaction_id, status, notes, created_at
		FROM credit_repayments
		WHERE credit_request_id = $1
		ORDER BY created_at
	`, creditRequestID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// PunctualityByUser counts the user's repayments and those made on or before
// the credit's due date.
func (s *RepaymentStore) PunctualityByUser(ctx context.Context, userID string) (Punctuality, error) {
	var row Punctuality
	err := s.db.GetContext(ctx, &row, `
		SELECT COUNT(1) FILTER (WHERE c.due_date IS NULL OR r.created_at <= c.due_date) AS on_time,
		       COUNT(1) AS total
		FROM credit_repayments r
		JOIN credit_requests c ON c.id = r.credit_request_id
		WHERE r.user_id = $1 AND r.status = 'completed'
	`, userID)
	if err != nil {
		return Punctuality{}, err
	}
	return row, nil
}
