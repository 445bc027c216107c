package store

import (
	"context"
	"time"
)

type SavingsTransactionStore struct {
	db DB
}

type SavingsTransaction struct {
	ID               string    `db:"id"`
	SavingsAccountID string    `db:"savings_account_id"`
	Type             string    `db:"type"`
	Amount           int64     `db:"amount"`
	BalanceAfter     int64     `db:"balance_after"`
	Status           string    `db:"status"`
	Reference        string    `db:"reference"`
	Description      *string   `db:"description"`
	CreatedAt        time.Time `db:"created_at"`
}

func NewSavingsTransactionStore(db DB) *SavingsTransactionStore {
	return &SavingsTransactionStore{db: db}
}

func (s *SavingsTransactionStore) Create(ctx context.Context, tx Execer, row SavingsTransaction) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO savings_transactions (id, savings_account_id, type, amount, balance_after, status, reference, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, row.ID, row.SavingsAccountID, row.Type, row.Amount, row.BalanceAfter, row.Status, row.Reference, row.Description, row.CreatedAt)
	return err
}

func (s *SavingsTransactionStore) ListByAccount(ctx context.Context, accountID, txType string, limit, offset int) ([]SavingsTransaction, error) {
	var rows []SavingsTransaction
	query := `
		SELECT id, savings_account_id, type, amount, balance_after, status, reference, description, created_at
		FROM savings_transactions
		WHERE savings_account_id = $1
	`
	args := []any{accountID}
	if txType != "" {
		query += " AND type = $2 ORDER BY created_at DESC LIMIT $3 OFFSET $4"
		args = append(args, txType)
	} else {
		query += " ORDER BY created_at DESC LIMIT $2 OFFSET $3"
	}
	args = append(args, limit, offset)
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	return rows, nil
}
