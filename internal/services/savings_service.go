package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"lending/internal/db"
	"lending/internal/domain"
	"lending/internal/money"
	"lending/internal/store"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

const (
	TxTypeDeposit         = "deposit"
	TxTypeWithdrawal      = "withdrawal"
	TxTypeInterest        = "interest"
	TxTypeCreditRepayment = "credit_repayment"
)

type SavingsConfig struct {
	Currency      string
	InterestRate  decimal.Decimal
	AccountPrefix string
}

func DefaultSavingsConfig() SavingsConfig {
	return SavingsConfig{
		Currency:      "USD",
		InterestRate:  decimal.RequireFromString("2.5"),
		AccountPrefix: domain.DefaultAccountPrefix,
	}
}

// Transaction is one committed savings movement.
type Transaction struct {
	ID               string      `json:"id"`
	SavingsAccountID string      `json:"savings_account_id"`
	Type             string      `json:"type"`
	Amount           money.Money `json:"amount"`
	BalanceAfter     money.Money `json:"balance_after"`
	Status           string      `json:"status"`
	Reference        string      `json:"reference"`
	Description      string      `json:"description,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
}

type MovementRequest struct {
	UserID      string
	Amount      money.Money
	Description string
}

type SavingsService struct {
	txRunner  db.TxRunner
	savings   SavingsStore
	txns      SavingsTransactionStore
	ledger    LedgerStore
	audit     AuditStore
	publisher EventPublisher
	cfg       SavingsConfig
	log       logrus.FieldLogger
	now       func() time.Time
}

func NewSavingsService(txRunner db.TxRunner, savings SavingsStore, txns SavingsTransactionStore, ledger LedgerStore, audit AuditStore, publisher EventPublisher, cfg SavingsConfig, log logrus.FieldLogger) *SavingsService {
	return &SavingsService{
		txRunner:  txRunner,
		savings:   savings,
		txns:      txns,
		ledger:    ledger,
		audit:     audit,
		publisher: publisher,
		cfg:       cfg,
		log:       log,
		now:       time.Now,
	}
}

// CreateSavingsAccount opens the user's single account. A positive initial
// deposit is booked as an ordinary deposit inside the same unit of work.
func (s *SavingsService) CreateSavingsAccount(ctx context.Context, userID string, initial *money.Money) (account *domain.SavingsAccount, err error) {
	ctx, done := observe(ctx, "savings.create", attribute.String("user_id", userID))
	defer func() { done(err) }()

	if initial != nil && initial.Currency() != s.cfg.Currency {
		return nil, domain.NewError(domain.KindInvalidInput, "initial deposit currency %s does not match %s", initial.Currency(), s.cfg.Currency)
	}
	var pending []domain.Event
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		now := s.now()
		number, err := domain.GenerateAccountNumber(s.cfg.AccountPrefix, now)
		if err != nil {
			return err
		}
		account, err = domain.NewSavingsAccount(domain.NewSavingsAccountParams{
			ID:            uuid.NewString(),
			UserID:        userID,
			AccountNumber: number,
			Currency:      s.cfg.Currency,
			InterestRate:  s.cfg.InterestRate,
			Now:           now,
		})
		if err != nil {
			return err
		}
		if err := s.savings.Create(ctx, tx, savingsToRow(account)); err != nil {
			if db.IsUniqueViolation(err, store.SavingsUserConstraint) {
				return domain.NewError(domain.KindPolicyViolation, "user %s already has a savings account", userID)
			}
			return fmt.Errorf("create savings account: %w", err)
		}
		if initial != nil && initial.IsPositive() {
			if err := account.Deposit(*initial, now); err != nil {
				return err
			}
			if _, err := s.book(ctx, tx, account, movement{
				txType:      TxTypeDeposit,
				amount:      *initial,
				description: "Initial deposit",
				counterRef:  store.SystemCashRef,
			}, now); err != nil {
				return err
			}
		}
		data, _ := json.Marshal(map[string]string{
			"account_number": account.AccountNumber().Value(),
			"balance":        account.Balance().String(),
		})
		if err := s.audit.Log(ctx, tx, userID, "savings.create", "savings_account", account.ID(), string(data)); err != nil {
			return err
		}
		pending = account.PullEvents()
		return nil
	})
	if err != nil {
		return nil, err
	}
	publishEvents(ctx, s.publisher, s.log, pending)
	s.log.WithFields(logrus.Fields{"savings_account_id": account.ID(), "user_id": userID}).Info("savings account opened")
	return account, nil
}

func (s *SavingsService) Deposit(ctx context.Context, req MovementRequest) (txn Transaction, err error) {
	ctx, done := observe(ctx, "savings.deposit", attribute.String("user_id", req.UserID))
	defer func() { done(err) }()
	return s.move(ctx, req.UserID, req.UserID, "savings.deposit", func(account *domain.SavingsAccount, now time.Time) (movement, error) {
		if err := account.Deposit(req.Amount, now); err != nil {
			return movement{}, err
		}
		return movement{txType: TxTypeDeposit, amount: req.Amount, description: req.Description, counterRef: store.SystemCashRef}, nil
	})
}

func (s *SavingsService) Withdraw(ctx context.Context, req MovementRequest) (txn Transaction, err error) {
	ctx, done := observe(ctx, "savings.withdraw", attribute.String("user_id", req.UserID))
	defer func() { done(err) }()
	return s.move(ctx, req.UserID, req.UserID, "savings.withdraw", func(account *domain.SavingsAccount, now time.Time) (movement, error) {
		if err := account.Withdraw(req.Amount, now); err != nil {
			return movement{}, err
		}
		return movement{txType: TxTypeWithdrawal, amount: req.Amount, description: req.Description, counterRef: store.SystemCashRef}, nil
	})
}

// CreditInterest deposits the interest projected over months. It books an
// interest transaction against the interest expense account.
func (s *SavingsService) CreditInterest(ctx context.Context, actorID, userID string, months int) (txn Transaction, err error) {
	ctx, done := observe(ctx, "savings.credit_interest", attribute.String("user_id", userID))
	defer func() { done(err) }()
	return s.move(ctx, actorID, userID, "savings.credit_interest", func(account *domain.SavingsAccount, now time.Time) (movement, error) {
		interest, err := account.CalculateInterest(months)
		if err != nil {
			return movement{}, err
		}
		if !interest.IsPositive() {
			return movement{}, domain.NewError(domain.KindInvalidState, "no interest accrued on balance %s", account.Balance())
		}
		if err := account.Deposit(interest, now); err != nil {
			return movement{}, err
		}
		return movement{
			txType:      TxTypeInterest,
			amount:      interest,
			description: fmt.Sprintf("Interest for %d month(s)", months),
			counterRef:  store.SystemInterestRef,
		}, nil
	})
}

// ProjectInterest reports the interest the current balance would earn over
// months without booking it.
func (s *SavingsService) ProjectInterest(ctx context.Context, userID string, months int) (money.Money, error) {
	account, err := s.GetSavingsAccount(ctx, userID)
	if err != nil {
		return money.Money{}, err
	}
	return account.CalculateInterest(months)
}

func (s *SavingsService) Freeze(ctx context.Context, actorID, userID string) (*domain.SavingsAccount, error) {
	return s.transition(ctx, actorID, userID, "savings.freeze", func(a *domain.SavingsAccount, now time.Time) error {
		return a.Freeze(now)
	})
}

func (s *SavingsService) Unfreeze(ctx context.Context, actorID, userID string) (*domain.SavingsAccount, error) {
	return s.transition(ctx, actorID, userID, "savings.unfreeze", func(a *domain.SavingsAccount, now time.Time) error {
		return a.Unfreeze(now)
	})
}

func (s *SavingsService) Close(ctx context.Context, userID string) (*domain.SavingsAccount, error) {
	return s.transition(ctx, userID, userID, "savings.close", func(a *domain.SavingsAccount, now time.Time) error {
		return a.Close(now)
	})
}

func (s *SavingsService) GetSavingsAccount(ctx context.Context, userID string) (*domain.SavingsAccount, error) {
	row, err := s.savings.GetByUser(ctx, userID)
	if err != nil {
		return nil, notFound(err, "savings account for user %s not found", userID)
	}
	return savingsFromRow(row)
}

func (s *SavingsService) Transactions(ctx context.Context, userID, txType string, limit, offset int) ([]Transaction, error) {
	account, err := s.GetSavingsAccount(ctx, userID)
	if err != nil {
		return nil, err
	}
	limit, offset = pageBounds(limit, offset)
	rows, err := s.txns.ListByAccount(ctx, account.ID(), txType, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list savings transactions: %w", err)
	}
	out := make([]Transaction, 0, len(rows))
	for _, row := range rows {
		txn, err := transactionFromRow(row, account.Balance().Currency())
		if err != nil {
			return nil, err
		}
		out = append(out, txn)
	}
	return out, nil
}

// SelfCheck compares the stored balance with the ledger.
func (s *SavingsService) SelfCheck(ctx context.Context, userID string) (store.BalanceCheck, error) {
	check, err := s.savings.CheckBalance(ctx, userID)
	if err != nil {
		return store.BalanceCheck{}, notFound(err, "savings account for user %s not found", userID)
	}
	if check.Difference != 0 {
		s.log.WithFields(logrus.Fields{
			"savings_account_id": check.AccountID,
			"stored":             check.StoredBalance,
			"ledger":             check.CalculatedBalance,
		}).Warn("savings balance diverges from ledger")
	}
	return check, nil
}

// move locks the user's account, applies the movement built by apply and
// books it.
func (s *SavingsService) move(ctx context.Context, actorID, userID, action string, apply func(*domain.SavingsAccount, time.Time) (movement, error)) (Transaction, error) {
	var txn Transaction
	var pending []domain.Event
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		now := s.now()
		row, err := s.savings.GetByUserForUpdate(ctx, tx, userID)
		if err != nil {
			return notFound(err, "savings account for user %s not found", userID)
		}
		account, err := savingsFromRow(row)
		if err != nil {
			return err
		}
		m, err := apply(account, now)
		if err != nil {
			return err
		}
		txn, err = s.book(ctx, tx, account, m, now)
		if err != nil {
			return err
		}
		data, _ := json.Marshal(map[string]string{
			"transaction_id": txn.ID,
			"amount":         txn.Amount.String(),
			"balance_after":  txn.BalanceAfter.String(),
		})
		if err := s.audit.Log(ctx, tx, actorID, action, "savings_account", account.ID(), string(data)); err != nil {
			return err
		}
		pending = account.PullEvents()
		return nil
	})
	if err != nil {
		return Transaction{}, err
	}
	publishEvents(ctx, s.publisher, s.log, pending)
	s.log.WithFields(logrus.Fields{
		"savings_account_id": txn.SavingsAccountID,
		"user_id":            userID,
		"type":               txn.Type,
		"amount":             txn.Amount.String(),
	}).Info("savings movement booked")
	return txn, nil
}

func (s *SavingsService) transition(ctx context.Context, actorID, userID, action string, apply func(*domain.SavingsAccount, time.Time) error) (account *domain.SavingsAccount, err error) {
	ctx, done := observe(ctx, action, attribute.String("user_id", userID))
	defer func() { done(err) }()

	var pending []domain.Event
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		row, err := s.savings.GetByUserForUpdate(ctx, tx, userID)
		if err != nil {
			return notFound(err, "savings account for user %s not found", userID)
		}
		account, err = savingsFromRow(row)
		if err != nil {
			return err
		}
		from := account.Status()
		if err := apply(account, s.now()); err != nil {
			return err
		}
		if err := s.savings.UpdateStatus(ctx, tx, account.ID(), string(from), string(account.Status())); err != nil {
			if errors.Is(err, store.ErrConditionFailed) {
				return domain.NewError(domain.KindInvalidState, "savings account %s changed concurrently", account.ID())
			}
			return fmt.Errorf("update savings status: %w", err)
		}
		data, _ := json.Marshal(map[string]string{"from": string(from), "to": string(account.Status())})
		if err := s.audit.Log(ctx, tx, actorID, action, "savings_account", account.ID(), string(data)); err != nil {
			return err
		}
		pending = account.PullEvents()
		return nil
	})
	if err != nil {
		return nil, err
	}
	publishEvents(ctx, s.publisher, s.log, pending)
	s.log.WithFields(logrus.Fields{"savings_account_id": account.ID(), "status": account.Status()}).Info("savings status changed")
	return account, nil
}

func (s *SavingsService) book(ctx context.Context, tx *sqlx.Tx, account *domain.SavingsAccount, m movement, now time.Time) (Transaction, error) {
	return bookMovement(ctx, tx, movementStores{savings: s.savings, txns: s.txns, ledger: s.ledger}, account, m, now)
}

type movement struct {
	txType      string
	amount      money.Money
	reference   string
	description string
	counterRef  string
}

func (m movement) delta() int64 {
	switch m.txType {
	case TxTypeWithdrawal, TxTypeCreditRepayment:
		return -m.amount.Minor()
	}
	return m.amount.Minor()
}

type movementStores struct {
	savings SavingsStore
	txns    SavingsTransactionStore
	ledger  LedgerStore
}

// bookMovement persists a movement the aggregate has already applied. The
// stored balance moves by an in-place increment whose RETURNING value must
// equal the aggregate's balance; the transaction row and its balanced ledger
// legs carry that value.
func bookMovement(ctx context.Context, tx *sqlx.Tx, stores movementStores, account *domain.SavingsAccount, m movement, now time.Time) (Transaction, error) {
	delta := m.delta()
	balance, err := stores.savings.AdjustBalance(ctx, tx, account.ID(), delta)
	if err != nil {
		if errors.Is(err, store.ErrConditionFailed) {
			if delta < 0 {
				return Transaction{}, domain.NewError(domain.KindInsufficientFunds, "savings account %s cannot cover %s", account.ID(), m.amount)
			}
			return Transaction{}, domain.NewError(domain.KindInvalidState, "savings account %s is not active", account.ID())
		}
		return Transaction{}, fmt.Errorf("adjust savings balance: %w", err)
	}
	if balance != account.Balance().Minor() {
		return Transaction{}, fmt.Errorf("savings account %s: stored balance %d diverged from %d", account.ID(), balance, account.Balance().Minor())
	}

	currency := account.Balance().Currency()
	txnID := uuid.NewString()
	reference := m.reference
	if reference == "" {
		reference = txnID
	}
	row := store.SavingsTransaction{
		ID:               txnID,
		SavingsAccountID: account.ID(),
		Type:             m.txType,
		Amount:           m.amount.Minor(),
		BalanceAfter:     balance,
		Status:           "completed",
		Reference:        reference,
		Description:      stringPtr(m.description),
		CreatedAt:        now.UTC(),
	}
	if err := stores.txns.Create(ctx, tx, row); err != nil {
		return Transaction{}, fmt.Errorf("create savings transaction: %w", err)
	}
	entries := []store.LedgerEntryInput{
		{
			ID:            uuid.NewString(),
			TransactionID: txnID,
			AccountRef:    store.SavingsRef(account.ID()),
			Amount:        delta,
			Currency:      currency,
			Description:   m.txType,
		},
		{
			ID:            uuid.NewString(),
			TransactionID: txnID,
			AccountRef:    m.counterRef,
			Amount:        -delta,
			Currency:      currency,
			Description:   m.txType,
		},
	}
	if err := ensureBalanced(entries); err != nil {
		return Transaction{}, err
	}
	if err := stores.ledger.InsertEntries(ctx, tx, entries); err != nil {
		return Transaction{}, err
	}
	return transactionFromRow(row, currency)
}

func transactionFromRow(row store.SavingsTransaction, currency string) (Transaction, error) {
	amount, err := money.FromMinor(row.Amount, currency)
	if err != nil {
		return Transaction{}, err
	}
	balance, err := money.FromMinor(row.BalanceAfter, currency)
	if err != nil {
		return Transaction{}, err
	}
	return Transaction{
		ID:               row.ID,
		SavingsAccountID: row.SavingsAccountID,
		Type:             row.Type,
		Amount:           amount,
		BalanceAfter:     balance,
		Status:           row.Status,
		Reference:        row.Reference,
		Description:      derefString(row.Description),
		CreatedAt:        row.CreatedAt,
	}, nil
}
