package store

import (
	"context"
	"fmt"
)

type LedgerStore struct {
	db DB
}

func NewLedgerStore(db DB) *LedgerStore {
	return &LedgerStore{db: db}
}

// LedgerEntryInput is one signed leg of a movement. AccountRef names the ledger
// account, e.g. "savings:<id>", "credit:<id>" or "system:cash".
type LedgerEntryInput struct {
	ID            string
	TransactionID string
	AccountRef    string
	Amount        int64
	Currency      string
	Description   string
}

func SavingsRef(accountID string) string { return "savings:" + accountID }
func CreditRef(creditID string) string   { return "credit:" + creditID }

const (
	SystemCashRef     = "system:cash"
	SystemInterestRef = "system:interest_expense"
)

func (s *LedgerStore) InsertEntries(ctx context.Context, tx Execer, entries []LedgerEntryInput) error {
	query := `
		INSERT INTO ledger_entries (id, transaction_id, account_ref, amount, currency, description)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	for _, entry := range entries {
		if _, err := tx.ExecContext(ctx, query, entry.ID, entry.TransactionID, entry.AccountRef, entry.Amount, entry.Currency, entry.Description); err != nil {
			return fmt.Errorf("insert ledger entry %s: %w", entry.AccountRef, err)
		}
	}
	return nil
}

func (s *LedgerStore) SumByAccount(ctx context.Context, accountRef string) (int64, error) {
	var sum int64
	err := s.db.GetContext(ctx, &sum, `
		SELECT COALESCE(SUM(amount), 0)
		FROM ledger_entries
		WHERE account_ref = $1
	`, accountRef)
	return sum, err
}
