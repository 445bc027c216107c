package domain

import (
	"time"

	"lending/internal/money"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	EventCreditRequestCreated     = "credit_request.created"
	EventCreditRequestApproved    = "credit_request.approved"
	EventCreditRequestRejected    = "credit_request.rejected"
	EventCreditRepaymentProcessed = "credit_request.repayment_processed"
	EventCreditRequestCompleted   = "credit_request.completed"
	EventCreditRequestDefaulted   = "credit_request.defaulted"
	EventSavingsAccountCreated    = "savings_account.created"
	EventSavingsDeposited         = "savings_account.deposited"
	EventSavingsWithdrawn         = "savings_account.withdrawn"
	EventSavingsAccountFrozen     = "savings_account.frozen"
	EventSavingsAccountUnfrozen   = "savings_account.unfrozen"
	EventAccountClosed            = "savings_account.closed"
)

// Event is an immutable record of a state change on an aggregate.
type Event interface {
	EventType() string
	EventID() string
	OccurredOn() time.Time
}

type Metadata struct {
	ID       string    `json:"event_id"`
	Occurred time.Time `json:"occurred_on"`
}

func newMetadata(now time.Time) Metadata {
	return Metadata{ID: uuid.NewString(), Occurred: now.UTC()}
}

func (m Metadata) EventID() string       { return m.ID }
func (m Metadata) OccurredOn() time.Time { return m.Occurred }

type CreditRequestCreated struct {
	Metadata
	CreditRequestID string          `json:"credit_request_id"`
	UserID          string          `json:"user_id"`
	RequestedAmount money.Money     `json:"requested_amount"`
	InterestRate    decimal.Decimal `json:"interest_rate"`
	TermMonths      int             `json:"term_months"`
}

func (CreditRequestCreated) EventType() string { return EventCreditRequestCreated }

type CreditRequestApproved struct {
	Metadata
	CreditRequestID string      `json:"credit_request_id"`
	UserID          string      `json:"user_id"`
	ApprovedAmount  money.Money `json:"approved_amount"`
	ApprovedBy      string      `json:"approved_by"`
	DueDate         time.Time   `json:"due_date"`
}

func (CreditRequestApproved) EventType() string { return EventCreditRequestApproved }

type CreditRequestRejected struct {
	Metadata
	CreditRequestID string `json:"credit_request_id"`
	UserID          string `json:"user_id"`
	RejectedBy      string `json:"rejected_by"`
	Reason          string `json:"reason"`
}

func (CreditRequestRejected) EventType() string { return EventCreditRequestRejected }

type CreditRepaymentProcessed struct {
	Metadata
	CreditRequestID  string      `json:"credit_request_id"`
	UserID           string      `json:"user_id"`
	Amount           money.Money `json:"amount"`
	TotalRepaid      money.Money `json:"total_repaid"`
	RemainingBalance money.Money `json:"remaining_balance"`
}

func (CreditRepaymentProcessed) EventType() string { return EventCreditRepaymentProcessed }

type CreditRequestCompleted struct {
	Metadata
	CreditRequestID string      `json:"credit_request_id"`
	UserID          string      `json:"user_id"`
	FinalAmount     money.Money `json:"final_amount"`
	TotalRepaid     money.Money `json:"total_repaid"`
}

func (CreditRequestCompleted) EventType() string { return EventCreditRequestCompleted }

type CreditRequestDefaulted struct {
	Metadata
	CreditRequestID string      `json:"credit_request_id"`
	UserID          string      `json:"user_id"`
	Outstanding     money.Money `json:"outstanding"`
	DueDate         time.Time   `json:"due_date"`
}

func (CreditRequestDefaulted) EventType() string { return EventCreditRequestDefaulted }

type SavingsAccountCreated struct {
	Metadata
	SavingsAccountID string `json:"savings_account_id"`
	UserID           string `json:"user_id"`
	AccountNumber    string `json:"account_number"`
}

func (SavingsAccountCreated) EventType() string { return EventSavingsAccountCreated }

type SavingsDeposited struct {
	Metadata
	SavingsAccountID string      `json:"savings_account_id"`
	UserID           string      `json:"user_id"`
	Amount           money.Money `json:"amount"`
	BalanceAfter     money.Money `json:"balance_after"`
}

func (SavingsDeposited) EventType() string { return EventSavingsDeposited }

type SavingsWithdrawn struct {
	Metadata
	SavingsAccountID string      `json:"savings_account_id"`
	UserID           string      `json:"user_id"`
	Amount           money.Money `json:"amount"`
	BalanceAfter     money.Money `json:"balance_after"`
}

func (SavingsWithdrawn) EventType() string { return EventSavingsWithdrawn }

type SavingsAccountFrozen struct {
	Metadata
	SavingsAccountID string `json:"savings_account_id"`
	UserID           string `json:"user_id"`
}

func (SavingsAccountFrozen) EventType() string { return EventSavingsAccountFrozen }

type SavingsAccountUnfrozen struct {
	Metadata
	SavingsAccountID string `json:"savings_account_id"`
	UserID           string `json:"user_id"`
}

func (SavingsAccountUnfrozen) EventType() string { return EventSavingsAccountUnfrozen }

type AccountClosed struct {
	Metadata
	SavingsAccountID string `json:"savings_account_id"`
	UserID           string `json:"user_id"`
}

func (AccountClosed) EventType() string { return EventAccountClosed }

// recorder queues events on an aggregate until the caller drains them after
// its unit of work commits.
type recorder struct {
	pending []Event
}

func (r *recorder) record(event Event) {
	r.pending = append(r.pending, event)
}

// PullEvents returns the queued events and clears the queue.
func (r *recorder) PullEvents() []Event {
	events := r.pending
	r.pending = nil
	return events
}

// PendingEvents returns a copy of the queued events without draining them.
func (r *recorder) PendingEvents() []Event {
	return append([]Event(nil), r.pending...)
}
