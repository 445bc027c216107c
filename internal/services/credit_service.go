package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"lending/internal/calculator"
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

// CreditPolicy holds the score thresholds applied when a request is
// submitted.
type CreditPolicy struct {
	AutoApproveScore int
	MinimumScore     int
	Currency         string
}

func DefaultCreditPolicy() CreditPolicy {
	return CreditPolicy{AutoApproveScore: 750, MinimumScore: 600, Currency: "USD"}
}

type CreateCreditRequest struct {
	UserID     string
	Amount     money.Money
	TermMonths int
	Purpose    string
}

type ApproveCreditRequest struct {
	ID         string
	ApproverID string
	Amount     *money.Money
}

type RejectCreditRequest struct {
	ID         string
	RejectedBy string
	Reason     string
}

type RepayCreditRequest struct {
	UserID          string
	CreditRequestID string
	Amount          money.Money
	Notes           string
}

type PlanRequest struct {
	UserID       string
	Principal    money.Money
	InterestRate *decimal.Decimal
	TermMonths   int
}

// Repayment is one committed repayment and the credit state it left behind.
type Repayment struct {
	ID                   string              `json:"id"`
	CreditRequestID      string              `json:"credit_request_id"`
	UserID               string              `json:"user_id"`
	Amount               money.Money         `json:"amount"`
	TotalRepaidAfter     money.Money         `json:"total_repaid_after"`
	RemainingAfter       money.Money         `json:"remaining_after"`
	SavingsTransactionID string              `json:"savings_transaction_id"`
	Status               string              `json:"status"`
	CreditStatus         domain.CreditStatus `json:"credit_status,omitempty"`
	Notes                string              `json:"notes,omitempty"`
	CreatedAt            time.Time           `json:"created_at"`
}

type CreditService struct {
	txRunner   db.TxRunner
	credits    CreditRequestStore
	savings    SavingsStore
	savingsTx  SavingsTransactionStore
	repayments RepaymentStore
	ledger     LedgerStore
	profiles   CreditProfileStore
	audit      AuditStore
	publisher  EventPublisher
	calc       *calculator.Calculator
	policy     CreditPolicy
	log        logrus.FieldLogger
	now        func() time.Time
}

func NewCreditService(txRunner db.TxRunner, credits CreditRequestStore, savings SavingsStore, savingsTx SavingsTransactionStore, repayments RepaymentStore, ledger LedgerStore, profiles CreditProfileStore, audit AuditStore, publisher EventPublisher, calc *calculator.Calculator, policy CreditPolicy, log logrus.FieldLogger) *CreditService {
	return &CreditService{
		txRunner:   txRunner,
		credits:    credits,
		savings:    savings,
		savingsTx:  savingsTx,
		repayments: repayments,
		ledger:     ledger,
		profiles:   profiles,
		audit:      audit,
		publisher:  publisher,
		calc:       calc,
		policy:     policy,
		log:        log,
		now:        time.Now,
	}
}

// CreateCreditRequest submits a request priced from the user's credit score.
// Scores at or above the auto-approve threshold are approved for the full
// amount straight away and scores below the minimum are rejected; anything in
// between stays pending for review.
func (s *CreditService) CreateCreditRequest(ctx context.Context, req CreateCreditRequest) (credit *domain.CreditRequest, err error) {
	ctx, done := observe(ctx, "credit.create", attribute.String("user_id", req.UserID))
	defer func() { done(err) }()

	if req.Amount.Currency() != s.policy.Currency {
		return nil, domain.NewError(domain.KindInvalidInput, "credit currency %s is not offered, use %s", req.Amount.Currency(), s.policy.Currency)
	}
	profile, err := s.profiles.Get(ctx, req.UserID)
	if err != nil {
		return nil, notFound(err, "credit profile for user %s not found", req.UserID)
	}
	score, err := domain.NewCreditScore(profile.CreditScore)
	if err != nil {
		return nil, err
	}
	rate := s.calc.InterestRate(score)

	var pending []domain.Event
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		open, err := s.credits.HasOpenRequest(ctx, tx, req.UserID)
		if err != nil {
			return fmt.Errorf("check open credit requests: %w", err)
		}
		if open {
			return domain.NewError(domain.KindPolicyViolation, "user %s already has an open credit request", req.UserID)
		}
		now := s.now()
		credit, err = domain.NewCreditRequest(domain.NewCreditRequestParams{
			ID:              uuid.NewString(),
			UserID:          req.UserID,
			RequestedAmount: req.Amount,
			InterestRate:    rate,
			TermMonths:      req.TermMonths,
			Purpose:         req.Purpose,
			Now:             now,
		})
		if err != nil {
			return err
		}
		switch {
		case score.Value() >= s.policy.AutoApproveScore:
			if err := credit.Approve(SystemActor, nil, now); err != nil {
				return err
			}
		case score.Value() < s.policy.MinimumScore:
			reason := fmt.Sprintf("credit score %d is below the minimum of %d", score.Value(), s.policy.MinimumScore)
			if err := credit.Reject(SystemActor, reason, now); err != nil {
				return err
			}
		}
		if err := s.credits.Create(ctx, tx, creditToRow(credit)); err != nil {
			if db.IsUniqueViolation(err, store.OpenCreditConstraint) {
				return domain.NewError(domain.KindPolicyViolation, "user %s already has an open credit request", req.UserID)
			}
			return fmt.Errorf("create credit request: %w", err)
		}
		data, _ := json.Marshal(map[string]any{
			"status":        credit.Status(),
			"credit_score":  score.Value(),
			"interest_rate": rate.String(),
			"amount":        req.Amount.String(),
		})
		if err := s.audit.Log(ctx, tx, req.UserID, "credit.create", "credit_request", credit.ID(), string(data)); err != nil {
			return err
		}
		pending = credit.PullEvents()
		return nil
	})
	if err != nil {
		return nil, err
	}
	publishEvents(ctx, s.publisher, s.log, pending)
	s.log.WithFields(logrus.Fields{
		"credit_request_id": credit.ID(),
		"user_id":           req.UserID,
		"status":            credit.Status(),
	}).Info("credit request submitted")
	return credit, nil
}

// ApproveCreditRequest activates a pending request. The approved amount may
// not exceed what was requested.
func (s *CreditService) ApproveCreditRequest(ctx context.Context, req ApproveCreditRequest) (credit *domain.CreditRequest, err error) {
	ctx, done := observe(ctx, "credit.approve", attribute.String("credit_request_id", req.ID))
	defer func() { done(err) }()
	return s.decide(ctx, req.ID, req.ApproverID, "credit.approve", func(c *domain.CreditRequest, now time.Time) error {
		if req.Amount != nil && c.Status() == domain.CreditPending && req.Amount.GreaterThan(c.RequestedAmount()) {
			return domain.NewError(domain.KindPolicyViolation, "approved amount %s exceeds requested %s", req.Amount, c.RequestedAmount())
		}
		return c.Approve(req.ApproverID, req.Amount, now)
	})
}

func (s *CreditService) RejectCreditRequest(ctx context.Context, req RejectCreditRequest) (credit *domain.CreditRequest, err error) {
	ctx, done := observe(ctx, "credit.reject", attribute.String("credit_request_id", req.ID))
	defer func() { done(err) }()
	return s.decide(ctx, req.ID, req.RejectedBy, "credit.reject", func(c *domain.CreditRequest, now time.Time) error {
		return c.Reject(req.RejectedBy, req.Reason, now)
	})
}

// decide applies one lifecycle transition to a locked request and writes it
// back guarded on the status it was read in.
func (s *CreditService) decide(ctx context.Context, id, actorID, action string, apply func(*domain.CreditRequest, time.Time) error) (*domain.CreditRequest, error) {
	var credit *domain.CreditRequest
	var pending []domain.Event
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		row, err := s.credits.GetForUpdate(ctx, tx, id)
		if err != nil {
			return notFound(err, "credit request %s not found", id)
		}
		credit, err = creditFromRow(row)
		if err != nil {
			return err
		}
		from := credit.Status()
		if err := apply(credit, s.now()); err != nil {
			return err
		}
		if err := s.credits.UpdateLifecycle(ctx, tx, creditToRow(credit), string(from)); err != nil {
			if errors.Is(err, store.ErrConditionFailed) {
				return domain.NewError(domain.KindInvalidState, "credit request %s changed concurrently", id)
			}
			return fmt.Errorf("update credit request: %w", err)
		}
		data, _ := json.Marshal(map[string]string{"from": string(from), "to": string(credit.Status())})
		if err := s.audit.Log(ctx, tx, actorID, action, "credit_request", id, string(data)); err != nil {
			return err
		}
		pending = credit.PullEvents()
		return nil
	})
	if err != nil {
		return nil, err
	}
	publishEvents(ctx, s.publisher, s.log, pending)
	s.log.WithFields(logrus.Fields{
		"credit_request_id": id,
		"user_id":           credit.UserID(),
		"status":            credit.Status(),
	}).Info("credit request updated")
	return credit, nil
}

// RepayCredit pays amount off the user's active request from their savings
// account. The credit increment, the savings debit and their ledger rows
// commit together.
func (s *CreditService) RepayCredit(ctx context.Context, req RepayCreditRequest) (repayment Repayment, err error) {
	ctx, done := observe(ctx, "credit.repay",
		attribute.String("credit_request_id", req.CreditRequestID),
		attribute.String("user_id", req.UserID))
	defer func() { done(err) }()

	var pending []domain.Event
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		now := s.now()
		row, err := s.credits.GetForUpdate(ctx, tx, req.CreditRequestID)
		if err != nil {
			return notFound(err, "credit request %s not found", req.CreditRequestID)
		}
		if row.UserID != req.UserID {
			return domain.NewError(domain.KindNotFound, "credit request %s not found", req.CreditRequestID)
		}
		credit, err := creditFromRow(row)
		if err != nil {
			return err
		}
		accountRow, err := s.savings.GetByUserForUpdate(ctx, tx, req.UserID)
		if err != nil {
			return notFound(err, "savings account for user %s not found", req.UserID)
		}
		account, err := savingsFromRow(accountRow)
		if err != nil {
			return err
		}

		if err := credit.Repay(req.Amount, now); err != nil {
			return err
		}
		if err := account.Withdraw(req.Amount, now); err != nil {
			return err
		}

		total, err := s.credits.AddRepaid(ctx, tx, credit.ID(), req.Amount.Minor(), credit.TotalOwed().Minor())
		if err != nil {
			if errors.Is(err, store.ErrConditionFailed) {
				return domain.NewError(domain.KindInvalidState, "credit request %s changed concurrently", credit.ID())
			}
			return fmt.Errorf("add repaid amount: %w", err)
		}
		if total != credit.TotalRepaid().Minor() {
			return fmt.Errorf("credit request %s: stored total repaid %d diverged from %d", credit.ID(), total, credit.TotalRepaid().Minor())
		}
		if credit.IsCompleted() {
			if err := s.credits.UpdateLifecycle(ctx, tx, creditToRow(credit), string(domain.CreditActive)); err != nil {
				return fmt.Errorf("complete credit request: %w", err)
			}
		}

		description := req.Notes
		if description == "" {
			description = "Credit repayment"
		}
		txn, err := bookMovement(ctx, tx, movementStores{savings: s.savings, txns: s.savingsTx, ledger: s.ledger}, account, movement{
			txType:      TxTypeCreditRepayment,
			amount:      req.Amount,
			reference:   credit.ID(),
			description: description,
			counterRef:  store.CreditRef(credit.ID()),
		}, now)
		if err != nil {
			return err
		}

		repayment = Repayment{
			ID:                   uuid.NewString(),
			CreditRequestID:      credit.ID(),
			UserID:               req.UserID,
			Amount:               req.Amount,
			TotalRepaidAfter:     credit.TotalRepaid(),
			RemainingAfter:       credit.RemainingBalance(),
			SavingsTransactionID: txn.ID,
			Status:               "completed",
			CreditStatus:         credit.Status(),
			Notes:                req.Notes,
			CreatedAt:            now.UTC(),
		}
		if err := s.repayments.Create(ctx, tx, store.Repayment{
			ID:                   repayment.ID,
			CreditRequestID:      repayment.CreditRequestID,
			UserID:               repayment.UserID,
			Amount:               repayment.Amount.Minor(),
			TotalRepaidAfter:     total,
			RemainingAfter:       repayment.RemainingAfter.Minor(),
			SavingsTransactionID: repayment.SavingsTransactionID,
			Status:               repayment.Status,
			Notes:                stringPtr(req.Notes),
			CreatedAt:            repayment.CreatedAt,
		}); err != nil {
			return fmt.Errorf("create repayment: %w", err)
		}
		data, _ := json.Marshal(map[string]string{
			"repayment_id":   repayment.ID,
			"amount":         req.Amount.String(),
			"remaining":      repayment.RemainingAfter.String(),
			"transaction_id": txn.ID,
		})
		if err := s.audit.Log(ctx, tx, req.UserID, "credit.repay", "credit_request", credit.ID(), string(data)); err != nil {
			return err
		}
		pending = append(credit.PullEvents(), account.PullEvents()...)
		return nil
	})
	if err != nil {
		return Repayment{}, err
	}
	publishEvents(ctx, s.publisher, s.log, pending)
	s.log.WithFields(logrus.Fields{
		"credit_request_id": req.CreditRequestID,
		"user_id":           req.UserID,
		"status":            repayment.CreditStatus,
		"amount":            req.Amount.String(),
	}).Info("credit repayment booked")
	return repayment, nil
}

// DeleteCreditRequest removes a request the user owns unless it is active.
func (s *CreditService) DeleteCreditRequest(ctx context.Context, userID, id string) (err error) {
	ctx, done := observe(ctx, "credit.delete", attribute.String("credit_request_id", id))
	defer func() { done(err) }()

	return s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		row, err := s.credits.GetForUpdate(ctx, tx, id)
		if err != nil {
			return notFound(err, "credit request %s not found", id)
		}
		if row.UserID != userID {
			return domain.NewError(domain.KindNotFound, "credit request %s not found", id)
		}
		credit, err := creditFromRow(row)
		if err != nil {
			return err
		}
		if !credit.CanDelete() {
			return domain.NewError(domain.KindInvalidState, "cannot delete credit request in status %s", credit.Status())
		}
		if err := s.credits.Delete(ctx, tx, id); err != nil {
			if errors.Is(err, store.ErrConditionFailed) {
				return domain.NewError(domain.KindInvalidState, "credit request %s changed concurrently", id)
			}
			return fmt.Errorf("delete credit request: %w", err)
		}
		data, _ := json.Marshal(map[string]string{"status": string(credit.Status())})
		return s.audit.Log(ctx, tx, userID, "credit.delete", "credit_request", id, string(data))
	})
}

// GetCreditRequest loads a request. A non-empty userID restricts the lookup to
// that user's requests.
func (s *CreditService) GetCreditRequest(ctx context.Context, userID, id string) (*domain.CreditRequest, error) {
	row, err := s.credits.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "credit request %s not found", id)
	}
	if userID != "" && row.UserID != userID {
		return nil, domain.NewError(domain.KindNotFound, "credit request %s not found", id)
	}
	return creditFromRow(row)
}

func (s *CreditService) ListCreditRequests(ctx context.Context, userID string, limit, offset int) ([]*domain.CreditRequest, error) {
	limit, offset = pageBounds(limit, offset)
	rows, err := s.credits.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list credit requests: %w", err)
	}
	out := make([]*domain.CreditRequest, 0, len(rows))
	for _, row := range rows {
		credit, err := creditFromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, credit)
	}
	return out, nil
}

func (s *CreditService) Repayments(ctx context.Context, userID, creditRequestID string) ([]Repayment, error) {
	credit, err := s.GetCreditRequest(ctx, userID, creditRequestID)
	if err != nil {
		return nil, err
	}
	rows, err := s.repayments.ListByCreditRequest(ctx, credit.ID())
	if err != nil {
		return nil, fmt.Errorf("list repayments: %w", err)
	}
	currency := credit.RequestedAmount().Currency()
	out := make([]Repayment, 0, len(rows))
	for _, row := range rows {
		amount, err := money.FromMinor(row.Amount, currency)
		if err != nil {
			return nil, err
		}
		total, err := money.FromMinor(row.TotalRepaidAfter, currency)
		if err != nil {
			return nil, err
		}
		remaining, err := money.FromMinor(row.RemainingAfter, currency)
		if err != nil {
			return nil, err
		}
		out = append(out, Repayment{
			ID:                   row.ID,
			CreditRequestID:      row.CreditRequestID,
			UserID:               row.UserID,
			Amount:               amount,
			TotalRepaidAfter:     total,
			RemainingAfter:       remaining,
			SavingsTransactionID: row.SavingsTransactionID,
			Status:               row.Status,
			Notes:                derefString(row.Notes),
			CreatedAt:            row.CreatedAt,
		})
	}
	return out, nil
}

// RepaymentPlan quotes an amortized plan. Without an explicit rate the user's
// score decides it.
func (s *CreditService) RepaymentPlan(ctx context.Context, req PlanRequest) (calculator.Plan, error) {
	rate := decimal.Zero
	if req.InterestRate != nil {
		rate = *req.InterestRate
	} else {
		profile, err := s.profiles.Get(ctx, req.UserID)
		if err != nil {
			return calculator.Plan{}, notFound(err, "credit profile for user %s not found", req.UserID)
		}
		score, err := domain.NewCreditScore(profile.CreditScore)
		if err != nil {
			return calculator.Plan{}, err
		}
		rate = s.calc.InterestRate(score)
	}
	return s.calc.RepaymentPlan(req.Principal, rate, req.TermMonths)
}
