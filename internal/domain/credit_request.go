package domain

import (
	"strings"
	"time"

	"lending/internal/money"

	"github.com/shopspring/decimal"
)

type CreditStatus string

const (
	CreditPending   CreditStatus = "pending"
	CreditActive    CreditStatus = "active"
	CreditCompleted CreditStatus = "completed"
	CreditRejected  CreditStatus = "rejected"
	CreditDefaulted CreditStatus = "defaulted"
)

var creditTransitions = map[CreditStatus][]CreditStatus{
	CreditPending: {CreditActive, CreditRejected},
	CreditActive:  {CreditCompleted, CreditDefaulted},
}

func (s CreditStatus) Valid() bool {
	switch s {
	case CreditPending, CreditActive, CreditCompleted, CreditRejected, CreditDefaulted:
		return true
	}
	return false
}

func (s CreditStatus) CanTransitionTo(next CreditStatus) bool {
	for _, allowed := range creditTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s CreditStatus) hasApprovedAmount() bool {
	return s == CreditActive || s == CreditCompleted || s == CreditDefaulted
}

var hundred = decimal.NewFromInt(100)

// CreditRequest is one customer's loan from submission to settlement.
type CreditRequest struct {
	id              string
	userID          string
	requestedAmount money.Money
	approvedAmount  *money.Money
	totalRepaid     money.Money
	interestRate    decimal.Decimal
	termMonths      int
	status          CreditStatus
	purpose         string
	rejectionReason string
	approvedBy      string
	approvedAt      *time.Time
	rejectedBy      string
	rejectedAt      *time.Time
	dueDate         *time.Time
	createdAt       time.Time
	updatedAt       time.Time

	recorder
}

type NewCreditRequestParams struct {
	ID              string
	UserID          string
	RequestedAmount money.Money
	InterestRate    decimal.Decimal
	TermMonths      int
	Purpose         string
	Now             time.Time
}

func NewCreditRequest(p NewCreditRequestParams) (*CreditRequest, error) {
	if strings.TrimSpace(p.ID) == "" || strings.TrimSpace(p.UserID) == "" {
		return nil, invalidInput("credit request id and user id are required")
	}
	if !p.RequestedAmount.IsPositive() {
		return nil, invalidInput("requested amount must be positive")
	}
	if p.TermMonths <= 0 {
		return nil, invalidInput("term must be at least one month")
	}
	if p.InterestRate.IsNegative() {
		return nil, invalidInput("interest rate cannot be negative")
	}
	now := p.Now.UTC()
	c := &CreditRequest{
		id:              p.ID,
		userID:          p.UserID,
		requestedAmount: p.RequestedAmount,
		totalRepaid:     money.Zero(p.RequestedAmount.Currency()),
		interestRate:    p.InterestRate,
		termMonths:      p.TermMonths,
		status:          CreditPending,
		purpose:         strings.TrimSpace(p.Purpose),
		createdAt:       now,
		updatedAt:       now,
	}
	c.record(CreditRequestCreated{
		Metadata:        newMetadata(now),
		CreditRequestID: c.id,
		UserID:          c.userID,
		RequestedAmount: c.requestedAmount,
		InterestRate:    c.interestRate,
		TermMonths:      c.termMonths,
	})
	return c, nil
}

// CreditRequestState is the persisted shape of a CreditRequest.
type CreditRequestState struct {
	ID              string
	UserID          string
	RequestedAmount money.Money
	ApprovedAmount  *money.Money
	TotalRepaid     money.Money
	InterestRate    decimal.Decimal
	TermMonths      int
	Status          CreditStatus
	Purpose         string
	RejectionReason string
	ApprovedBy      string
	ApprovedAt      *time.Time
	RejectedBy      string
	RejectedAt      *time.Time
	DueDate         *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// RestoreCreditRequest rebuilds an aggregate from storage, refusing states
// that break its invariants.
func RestoreCreditRequest(s CreditRequestState) (*CreditRequest, error) {
	if !s.Status.Valid() {
		return nil, invalidState("unknown credit status %q", s.Status)
	}
	if s.Status.hasApprovedAmount() != (s.ApprovedAmount != nil) {
		return nil, invalidState("credit request %s: approved amount inconsistent with status %s", s.ID, s.Status)
	}
	if s.Status == CreditRejected && strings.TrimSpace(s.RejectionReason) == "" {
		return nil, invalidState("credit request %s: rejection without reason", s.ID)
	}
	c := &CreditRequest{
		id:              s.ID,
		userID:          s.UserID,
		requestedAmount: s.RequestedAmount,
		approvedAmount:  s.ApprovedAmount,
		totalRepaid:     s.TotalRepaid,
		interestRate:    s.InterestRate,
		termMonths:      s.TermMonths,
		status:          s.Status,
		purpose:         s.Purpose,
		rejectionReason: s.RejectionReason,
		approvedBy:      s.ApprovedBy,
		approvedAt:      s.ApprovedAt,
		rejectedBy:      s.RejectedBy,
		rejectedAt:      s.RejectedAt,
		dueDate:         s.DueDate,
		createdAt:       s.CreatedAt,
		updatedAt:       s.UpdatedAt,
	}
	if c.totalRepaid.GreaterThan(c.TotalOwed()) {
		return nil, invalidState("credit request %s: repaid %s exceeds owed %s", s.ID, c.totalRepaid, c.TotalOwed())
	}
	return c, nil
}

func (c *CreditRequest) State() CreditRequestState {
	return CreditRequestState{
		ID:              c.id,
		UserID:          c.userID,
		RequestedAmount: c.requestedAmount,
		ApprovedAmount:  c.approvedAmount,
		TotalRepaid:     c.totalRepaid,
		InterestRate:    c.interestRate,
		TermMonths:      c.termMonths,
		Status:          c.status,
		Purpose:         c.purpose,
		RejectionReason: c.rejectionReason,
		ApprovedBy:      c.approvedBy,
		ApprovedAt:      c.approvedAt,
		RejectedBy:      c.rejectedBy,
		RejectedAt:      c.rejectedAt,
		DueDate:         c.dueDate,
		CreatedAt:       c.createdAt,
		UpdatedAt:       c.updatedAt,
	}
}

func (c *CreditRequest) ID() string                    { return c.id }
func (c *CreditRequest) UserID() string                { return c.userID }
func (c *CreditRequest) RequestedAmount() money.Money  { return c.requestedAmount }
func (c *CreditRequest) ApprovedAmount() *money.Money  { return c.approvedAmount }
func (c *CreditRequest) TotalRepaid() money.Money      { return c.totalRepaid }
func (c *CreditRequest) InterestRate() decimal.Decimal { return c.interestRate }
func (c *CreditRequest) TermMonths() int               { return c.termMonths }
func (c *CreditRequest) Status() CreditStatus          { return c.status }
func (c *CreditRequest) Purpose() string               { return c.purpose }
func (c *CreditRequest) RejectionReason() string       { return c.rejectionReason }
func (c *CreditRequest) ApprovedBy() string            { return c.approvedBy }
func (c *CreditRequest) ApprovedAt() *time.Time        { return c.approvedAt }
func (c *CreditRequest) DueDate() *time.Time           { return c.dueDate }
func (c *CreditRequest) CreatedAt() time.Time          { return c.createdAt }
func (c *CreditRequest) UpdatedAt() time.Time          { return c.updatedAt }

// Approve activates a pending request. A nil amount approves the requested
// amount. Limits relative to the requested amount are the caller's policy.
func (c *CreditRequest) Approve(approvedBy string, amount *money.Money, now time.Time) error {
	if !c.status.CanTransitionTo(CreditActive) {
		return invalidState("cannot approve credit request in status %s", c.status)
	}
	if strings.TrimSpace(approvedBy) == "" {
		return invalidInput("approver is required")
	}
	approved := c.requestedAmount
	if amount != nil {
		approved = *amount
	}
	if approved.Currency() != c.requestedAmount.Currency() {
		return invalidInput("approved amount currency %s does not match %s", approved.Currency(), c.requestedAmount.Currency())
	}
	if !approved.IsPositive() {
		return invalidInput("approved amount must be positive")
	}
	now = now.UTC()
	due := now.AddDate(0, c.termMonths, 0)
	c.approvedAmount = &approved
	c.approvedBy = approvedBy
	c.approvedAt = &now
	c.dueDate = &due
	c.status = CreditActive
	c.updatedAt = now
	c.record(CreditRequestApproved{
		Metadata:        newMetadata(now),
		CreditRequestID: c.id,
		UserID:          c.userID,
		ApprovedAmount:  approved,
		ApprovedBy:      approvedBy,
		DueDate:         due,
	})
	return nil
}

func (c *CreditRequest) Reject(rejectedBy, reason string, now time.Time) error {
	if !c.status.CanTransitionTo(CreditRejected) {
		return invalidState("cannot reject credit request in status %s", c.status)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return invalidInput("rejection reason is required")
	}
	now = now.UTC()
	c.status = CreditRejected
	c.rejectionReason = reason
	c.rejectedBy = rejectedBy
	c.rejectedAt = &now
	c.updatedAt = now
	c.record(CreditRequestRejected{
		Metadata:        newMetadata(now),
		CreditRequestID: c.id,
		UserID:          c.userID,
		RejectedBy:      rejectedBy,
		Reason:          reason,
	})
	return nil
}

// Repay applies amount to an active request and completes it once the total
// owed is covered.
func (c *CreditRequest) Repay(amount money.Money, now time.Time) error {
	if c.status != CreditActive {
		return invalidState("cannot repay credit request in status %s", c.status)
	}
	if !amount.IsPositive() {
		return invalidInput("repayment amount must be positive")
	}
	remaining := c.RemainingBalance()
	cmp, err := amount.Compare(remaining)
	if err != nil {
		return invalidInput("%v", err)
	}
	if cmp > 0 {
		return NewError(KindInsufficientFunds, "repayment %s exceeds remaining balance %s", amount, remaining)
	}
	repaid, err := c.totalRepaid.Add(amount)
	if err != nil {
		return invalidInput("%v", err)
	}
	now = now.UTC()
	c.totalRepaid = repaid
	c.updatedAt = now
	if !c.totalRepaid.LessThan(c.TotalOwed()) {
		c.status = CreditCompleted
		c.record(CreditRequestCompleted{
			Metadata:        newMetadata(now),
			CreditRequestID: c.id,
			UserID:          c.userID,
			FinalAmount:     amount,
			TotalRepaid:     c.totalRepaid,
		})
		return nil
	}
	c.record(CreditRepaymentProcessed{
		Metadata:         newMetadata(now),
		CreditRequestID:  c.id,
		UserID:           c.userID,
		Amount:           amount,
		TotalRepaid:      c.totalRepaid,
		RemainingBalance: c.RemainingBalance(),
	})
	return nil
}

// MarkDefaulted moves an overdue active request to defaulted.
func (c *CreditRequest) MarkDefaulted(now time.Time) error {
	if !c.status.CanTransitionTo(CreditDefaulted) {
		return invalidState("cannot default credit request in status %s", c.status)
	}
	if !c.IsOverdue(now) {
		return invalidState("credit request %s is not overdue", c.id)
	}
	now = now.UTC()
	c.status = CreditDefaulted
	c.updatedAt = now
	c.record(CreditRequestDefaulted{
		Metadata:        newMetadata(now),
		CreditRequestID: c.id,
		UserID:          c.userID,
		Outstanding:     c.RemainingBalance(),
		DueDate:         *c.dueDate,
	})
	return nil
}

// TotalOwed is approved principal plus simple interest over the full term.
func (c *CreditRequest) TotalOwed() money.Money {
	if c.approvedAmount == nil {
		return money.Zero(c.requestedAmount.Currency())
	}
	interest, err := c.approvedAmount.Multiply(c.interestRate.Div(hundred))
	if err != nil {
		return *c.approvedAmount
	}
	total, err := c.approvedAmount.Add(interest)
	if err != nil {
		return *c.approvedAmount
	}
	return total
}

func (c *CreditRequest) RemainingBalance() money.Money {
	remaining, err := c.TotalOwed().Subtract(c.totalRepaid)
	if err != nil {
		return money.Zero(c.requestedAmount.Currency())
	}
	return remaining
}

func (c *CreditRequest) IsOverdue(now time.Time) bool {
	return c.dueDate != nil && c.status == CreditActive && now.After(*c.dueDate)
}

func (c *CreditRequest) IsActive() bool    { return c.status == CreditActive }
func (c *CreditRequest) IsCompleted() bool { return c.status == CreditCompleted }

// CanDelete reports whether the request may be removed from storage.
func (c *CreditRequest) CanDelete() bool { return c.status != CreditActive }
