package store

import (
	"context"
	"time"
)

type CreditProfileStore struct {
	db DB
}

type CreditProfile struct {
	UserID        string    `db:"user_id"`
	CreditScore   int       `db:"credit_score"`
	MonthlyIncome int64     `db:"monthly_income"`
	UpdatedAt     time.Time `db:"updated_at"`
}

func NewCreditProfileStore(db DB) *CreditProfileStore {
	return &CreditProfileStore{db: db}
}

func (s *CreditProfileStore) Get(ctx context.Context, userID string) (CreditProfile, error) {
	var row CreditProfile
	err := s.db.GetContext(ctx, &row, `
		SELECT user_id, credit_score, monthly_income, updated_at
		FROM credit_profiles
		WHERE user_id = $1
	`, userID)
	if err != nil {
		return CreditProfile{}, err
	}
	return row, nil
}
