package store

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// OpenCreditConstraint is the partial unique index allowing one pending or
// active credit request per user.
const OpenCreditConstraint = "credit_requests_one_open_per_user"

type CreditRequestStore struct {
	db DB
}

type CreditRequest struct {
	ID              string          `db:"id"`
	UserID          string          `db:"user_id"`
	RequestedAmount int64           `db:"requested_amount"`
	ApprovedAmount  *int64          `db:"approved_amount"`
	TotalRepaid     int64           `db:"total_repaid"`
	Currency        string          `db:"currency"`
	InterestRate    decimal.Decimal `db:"interest_rate"`
	TermMonths      int             `db:"term_months"`
	Status          string          `db:"status"`
	Purpose         *string         `db:"purpose"`
	RejectionReason *string         `db:"rejection_reason"`
	ApprovedBy      *string         `db:"approved_by"`
	ApprovedAt      *time.Time      `db:"approved_at"`
	RejectedBy      *string         `db:"rejected_by"`
	RejectedAt      *time.Time      `db:"rejected_at"`
	DueDate         *time.Time      `db:"due_date"`
	CreatedAt       time.Time       `db:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at"`
}

const creditColumns = `id, user_id, requested_amount, approved_amount, total_repaid, currency, interest_rate,
		       term_months, status, purpose, rejection_reason, approved_by, approved_at,
		       rejected_by, rejected_at, due_date, created_at, updated_at`

func NewCreditRequestStore(db DB) *CreditRequestStore {
	return &CreditRequestStore{db: db}
}

func (s *CreditRequestStore) Create(ctx context.Context, tx Execer, row CreditRequest) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO credit_requests (id, user_id, requested_amount, approved_amount, total_repaid, currency, interest_rate,
		                             term_months, status, purpose, rejection_reason, approved_by, approved_at,
		                             rejected_by, rejected_at, due_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`, row.ID, row.UserID, row.RequestedAmount, row.ApprovedAmount, row.TotalRepaid, row.Currency, row.InterestRate,
		row.TermMonths, row.Status, row.Purpose, row.RejectionReason, row.ApprovedBy, row.ApprovedAt,
		row.RejectedBy, row.RejectedAt, row.DueDate, row.CreatedAt, row.UpdatedAt)
	return err
}

func (s *CreditRequestStore) GetByID(ctx context.Context, id string) (CreditRequest, error) {
	var row CreditRequest
	err := s.db.GetContext(ctx, &row, `SELECT `+creditColumns+` FROM credit_requests WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return CreditRequest{}, err
	}
	return row, nil
}

func (s *CreditRequestStore) GetForUpdate(ctx context.Context, tx Getter, id string) (CreditRequest, error) {
	var row CreditRequest
	err := tx.GetContext(ctx, &row, `SELECT `+creditColumns+` FROM credit_requests WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`, id)
	if err != nil {
		return CreditRequest{}, err
	}
	return row, nil
}

func (s *CreditRequestStore) ListByUser(ctx context.Context, userID string, limit, offset int) ([]CreditRequest, error) {
	var rows []CreditRequest
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+creditColumns+`
		FROM credit_requests
		WHERE user_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ListOverdue returns active requests whose due date passed before now.
func (s *CreditRequestStore) ListOverdue(ctx context.Context, now time.Time, limit int) ([]CreditRequest, error) {
	var rows []CreditRequest
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+creditColumns+`
		FROM credit_requests
		WHERE status = 'active' AND due_date < $1 AND deleted_at IS NULL
		ORDER BY due_date
		LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// HasOpenRequest reports whether the user holds a pending or active request.
func (s *CreditRequestStore) HasOpenRequest(ctx context.Context, tx Getter, userID string) (bool, error) {
	var count int
	err := tx.GetContext(ctx, &count, `
		SELECT COUNT(1)
		FROM credit_requests
		WHERE user_id = $1 AND status IN ('pending', 'active') AND deleted_at IS NULL
	`, userID)
	return count > 0, err
}

// UpdateLifecycle writes the status and decision columns of row, provided the
// stored status still equals from.
func (s *CreditRequestStore) UpdateLifecycle(ctx context.Context, tx Execer, row CreditRequest, from string) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE credit_requests
		SET status = $1, approved_amount = $2, rejection_reason = $3, approved_by = $4, approved_at = $5,
		    rejected_by = $6, rejected_at = $7, due_date = $8, updated_at = $9
		WHERE id = $10 AND status = $11
	`, row.Status, row.ApprovedAmount, row.RejectionReason, row.ApprovedBy, row.ApprovedAt,
		row.RejectedBy, row.RejectedAt, row.DueDate, row.UpdatedAt, row.ID, from)
	if err != nil {
		return err
	}
	return requireOneRow(res)
}

// AddRepaid increments total_repaid in place, refusing to pass ceiling, and
// returns the new total.
func (s *CreditRequestStore) AddRepaid(ctx context.Context, tx Getter, id string, delta, ceiling int64) (int64, error) {
	var total int64
	err := tx.GetContext(ctx, &total, `
		UPDATE credit_requests
		SET total_repaid = total_repaid + $1, updated_at = NOW()
		WHERE id = $2 AND status = 'active' AND total_repaid + $1 <= $3
		RETURNING total_repaid
	`, delta, id, ceiling)
	if err != nil {
		return 0, guarded(err)
	}
	return total, nil
}

// Delete hides a non-active request from every read. The row stays so the
// repayments and ledger entries that reference it remain intact.
func (s *CreditRequestStore) Delete(ctx context.Context, tx Execer, id string) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE credit_requests
		SET deleted_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status <> 'active' AND deleted_at IS NULL
	`, id)
	if err != nil {
		return err
	}
	return requireOneRow(res)
}
