package domain

import (
	"strings"
	"time"

	"lending/internal/money"

	"github.com/shopspring/decimal"
)

type SavingsStatus string

const (
	SavingsActive SavingsStatus = "active"
	SavingsFrozen SavingsStatus = "frozen"
	SavingsClosed SavingsStatus = "closed"
)

func (s SavingsStatus) Valid() bool {
	return s == SavingsActive || s == SavingsFrozen || s == SavingsClosed
}

var twelve = decimal.NewFromInt(12)

// SavingsAccount is a user's single cash balance.
type SavingsAccount struct {
	id            string
	userID        string
	accountNumber AccountNumber
	balance       money.Money
	interestRate  decimal.Decimal
	status        SavingsStatus
	createdAt     time.Time
	updatedAt     time.Time

	recorder
}

type NewSavingsAccountParams struct {
	ID            string
	UserID        string
	AccountNumber AccountNumber
	Currency      string
	InterestRate  decimal.Decimal
	Now           time.Time
}

// NewSavingsAccount opens an active account with a zero balance. Initial
// deposits go through Deposit so they are ledgered like any other.
func NewSavingsAccount(p NewSavingsAccountParams) (*SavingsAccount, error) {
	if strings.TrimSpace(p.ID) == "" || strings.TrimSpace(p.UserID) == "" {
		return nil, invalidInput("savings account id and user id are required")
	}
	if p.AccountNumber.Value() == "" {
		return nil, invalidInput("account number is required")
	}
	if strings.TrimSpace(p.Currency) == "" {
		return nil, invalidInput("currency is required")
	}
	if p.InterestRate.IsNegative() {
		return nil, invalidInput("interest rate cannot be negative")
	}
	now := p.Now.UTC()
	a := &SavingsAccount{
		id:            p.ID,
		userID:        p.UserID,
		accountNumber: p.AccountNumber,
		balance:       money.Zero(p.Currency),
		interestRate:  p.InterestRate,
		status:        SavingsActive,
		createdAt:     now,
		updatedAt:     now,
	}
	a.record(SavingsAccountCreated{
		Metadata:         newMetadata(now),
		SavingsAccountID: a.id,
		UserID:           a.userID,
		AccountNumber:    a.accountNumber.Value(),
	})
	return a, nil
}

type SavingsAccountState struct {
	ID            string
	UserID        string
	AccountNumber AccountNumber
	Balance       money.Money
	InterestRate  decimal.Decimal
	Status        SavingsStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func RestoreSavingsAccount(s SavingsAccountState) (*SavingsAccount, error) {
	if !s.Status.Valid() {
		return nil, invalidState("unknown savings status %q", s.Status)
	}
	if s.Status == SavingsClosed && !s.Balance.IsZero() {
		return nil, invalidState("savings account %s closed with balance %s", s.ID, s.Balance)
	}
	return &SavingsAccount{
		id:            s.ID,
		userID:        s.UserID,
		accountNumber: s.AccountNumber,
		balance:       s.Balance,
		interestRate:  s.InterestRate,
		status:        s.Status,
		createdAt:     s.CreatedAt,
		updatedAt:     s.UpdatedAt,
	}, nil
}

func (a *SavingsAccount) State() SavingsAccountState {
	return SavingsAccountState{
		ID:            a.id,
		UserID:        a.userID,
		AccountNumber: a.accountNumber,
		Balance:       a.balance,
		InterestRate:  a.interestRate,
		Status:        a.status,
		CreatedAt:     a.createdAt,
		UpdatedAt:     a.updatedAt,
	}
}

func (a *SavingsAccount) ID() string                    { return a.id }
func (a *SavingsAccount) UserID() string                { return a.userID }
func (a *SavingsAccount) AccountNumber() AccountNumber  { return a.accountNumber }
func (a *SavingsAccount) Balance() money.Money          { return a.balance }
func (a *SavingsAccount) InterestRate() decimal.Decimal { return a.interestRate }
func (a *SavingsAccount) Status() SavingsStatus         { return a.status }
func (a *SavingsAccount) CreatedAt() time.Time          { return a.createdAt }
func (a *SavingsAccount) UpdatedAt() time.Time          { return a.updatedAt }

func (a *SavingsAccount) Deposit(amount money.Money, now time.Time) error {
	if err := a.checkMovement(amount); err != nil {
		return err
	}
	balance, err := a.balance.Add(amount)
	if err != nil {
		return invalidInput("%v", err)
	}
	now = now.UTC()
	a.balance = balance
	a.updatedAt = now
	a.record(SavingsDeposited{
		Metadata:         newMetadata(now),
		SavingsAccountID: a.id,
		UserID:           a.userID,
		Amount:           amount,
		BalanceAfter:     balance,
	})
	return nil
}

func (a *SavingsAccount) Withdraw(amount money.Money, now time.Time) error {
	if err := a.checkMovement(amount); err != nil {
		return err
	}
	if amount.GreaterThan(a.balance) {
		return NewError(KindInsufficientFunds, "withdrawal %s exceeds balance %s", amount, a.balance)
	}
	balance, err := a.balance.Subtract(amount)
	if err != nil {
		return invalidInput("%v", err)
	}
	now = now.UTC()
	a.balance = balance
	a.updatedAt = now
	a.record(SavingsWithdrawn{
		Metadata:         newMetadata(now),
		SavingsAccountID: a.id,
		UserID:           a.userID,
		Amount:           amount,
		BalanceAfter:     balance,
	})
	return nil
}

func (a *SavingsAccount) checkMovement(amount money.Money) error {
	if a.status != SavingsActive {
		return invalidState("savings account is %s", a.status)
	}
	if amount.Currency() != a.balance.Currency() {
		return invalidInput("amount currency %s does not match account currency %s", amount.Currency(), a.balance.Currency())
	}
	if !amount.IsPositive() {
		return invalidInput("amount must be positive")
	}
	return nil
}

func (a *SavingsAccount) Freeze(now time.Time) error {
	if a.status != SavingsActive {
		return invalidState("cannot freeze savings account in status %s", a.status)
	}
	now = now.UTC()
	a.status = SavingsFrozen
	a.updatedAt = now
	a.record(SavingsAccountFrozen{Metadata: newMetadata(now), SavingsAccountID: a.id, UserID: a.userID})
	return nil
}

func (a *SavingsAccount) Unfreeze(now time.Time) error {
	if a.status != SavingsFrozen {
		return invalidState("cannot unfreeze savings account in status %s", a.status)
	}
	now = now.UTC()
	a.status = SavingsActive
	a.updatedAt = now
	a.record(SavingsAccountUnfrozen{Metadata: newMetadata(now), SavingsAccountID: a.id, UserID: a.userID})
	return nil
}

func (a *SavingsAccount) Close(now time.Time) error {
	if a.status == SavingsClosed {
		return invalidState("savings account already closed")
	}
	if !a.balance.IsZero() {
		return invalidState("cannot close savings account with balance %s", a.balance)
	}
	now = now.UTC()
	a.status = SavingsClosed
	a.updatedAt = now
	a.record(AccountClosed{Metadata: newMetadata(now), SavingsAccountID: a.id, UserID: a.userID})
	return nil
}

// CalculateInterest projects simple interest on the current balance over
// months. It never changes the balance.
func (a *SavingsAccount) CalculateInterest(months int) (money.Money, error) {
	if months <= 0 {
		return money.Money{}, invalidInput("months must be positive")
	}
	factor := a.interestRate.Div(hundred).Mul(decimal.NewFromInt(int64(months))).Div(twelve)
	return a.balance.Multiply(factor)
}
