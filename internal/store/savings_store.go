package store

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// SavingsUserConstraint is the unique constraint keeping one account per user.
const SavingsUserConstraint = "savings_accounts_user_id_key"

type SavingsStore struct {
	db DB
}

type SavingsAccount struct {
	ID            string          `db:"id"`
	UserID        string          `db:"user_id"`
	AccountNumber string          `db:"account_number"`
	Balance       int64           `db:"balance"`
	Currency      string          `db:"currency"`
	InterestRate  decimal.Decimal `db:"interest_rate"`
	Status        string          `db:"status"`
	CreatedAt     time.Time       `db:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at"`
}

// BalanceCheck compares the stored balance with the sum of its ledger entries.
type BalanceCheck struct {
	AccountID         string `db:"account_id"`
	Currency          string `db:"currency"`
	StoredBalance     int64  `db:"stored_balance"`
	CalculatedBalance int64  `db:"calculated_balance"`
	Difference        int64  `db:"difference"`
}

const savingsColumns = `id, user_id, account_number, balance, currency, interest_rate, status, created_at, updated_at`

func NewSavingsStore(db DB) *SavingsStore {
	return &SavingsStore{db: db}
}

func (s *SavingsStore) Create(ctx context.Context, tx Execer, row SavingsAccount) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO savings_accounts (id, user_id, account_number, balance, currency, interest_rate, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, row.ID, row.UserID, row.AccountNumber, row.Balance, row.Currency, row.InterestRate, row.Status, row.CreatedAt, row.UpdatedAt)
	return err
}

func (s *SavingsStore) GetByUser(ctx context.Context, userID string) (SavingsAccount, error) {
	var row SavingsAccount
	err := s.db.GetContext(ctx, &row, `
		SELECT `+savingsColumns+`
		FROM savings_accounts
		WHERE user_id = $1
	`, userID)
	if err != nil {
		return SavingsAccount{}, err
	}
	return row, nil
}

// GetByUserForUpdate locks the user's account row until tx ends.
func (s *SavingsStore) GetByUserForUpdate(ctx context.Context, tx Getter, userID string) (SavingsAccount, error) {
	var row SavingsAccount
	err := tx.GetContext(ctx, &row, `
		SELECT `+savingsColumns+`
		FROM savings_accounts
		WHERE user_id = $1
		FOR UPDATE
	`, userID)
	if err != nil {
		return SavingsAccount{}, err
	}
	return row, nil
}

// AdjustBalance adds delta to the stored balance in place and returns the new
// balance. The row must be active and the result non-negative, otherwise
// ErrConditionFailed is returned and nothing changes.
func (s *SavingsStore) AdjustBalance(ctx context.Context, tx Getter, accountID string, delta int64) (int64, error) {
	var balance int64
	err := tx.GetContext(ctx, &balance, `
		UPDATE savings_accounts
		SET balance = balance + $1, updated_at = NOW()
		WHERE id = $2 AND status = 'active' AND balance + $1 >= 0
		RETURNING balance
	`, delta, accountID)
	if err != nil {
		return 0, guarded(err)
	}
	return balance, nil
}

// UpdateStatus moves the account from one status to another. A closed account
// must hold a zero balance.
func (s *SavingsStore) UpdateStatus(ctx context.Context, tx Execer, accountID, from, to string) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE savings_accounts
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3 AND ($1 <> 'closed' OR balance = 0)
	`, to, accountID, from)
	if err != nil {
		return err
	}
	return requireOneRow(res)
}

func (s *SavingsStore) CheckBalance(ctx context.Context, userID string) (BalanceCheck, error) {
	var row BalanceCheck
	err := s.db.GetContext(ctx, &row, `
		SELECT s.id AS account_id,
		       s.currency,
		       s.balance AS stored_balance,
		       COALESCE(SUM(l.amount), 0) AS calculated_balance,
		       (s.balance - COALESCE(SUM(l.amount), 0)) AS difference
		FROM savings_accounts s
		LEFT JOIN ledger_entries l ON l.account_ref = 'savings:' || s.id
		WHERE s.user_id = $1
		GROUP BY s.id, s.currency, s.balance
	`, userID)
	if err != nil {
		return BalanceCheck{}, err
	}
	return row, nil
}
