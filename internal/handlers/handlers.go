package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"lending/internal/domain"
	"lending/internal/money"
)

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, kind, reason string) {
	respondJSON(w, status, map[string]string{"error": kind, "reason": reason})
}

var kindStatus = map[domain.Kind]int{
	domain.KindInvalidInput:      http.StatusBadRequest,
	domain.KindNotFound:          http.StatusNotFound,
	domain.KindInvalidState:      http.StatusConflict,
	domain.KindInsufficientFunds: http.StatusUnprocessableEntity,
	domain.KindPolicyViolation:   http.StatusUnprocessableEntity,
}

// respondDomainError maps a service error onto its HTTP status. Errors
// without a domain kind are logged and hidden behind a 500.
func (h *Handler) respondDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var domainErr *domain.Error
	if errors.As(err, &domainErr) {
		status, ok := kindStatus[domainErr.Kind]
		if !ok {
			status = http.StatusBadRequest
		}
		respondError(w, status, string(domainErr.Kind), domainErr.Reason)
		return
	}
	h.log.WithError(err).WithField("path", r.URL.Path).Error("request failed")
	respondError(w, http.StatusInternalServerError, "Internal", "internal error")
}

type creditResponse struct {
	ID               string          `json:"id"`
	UserID           string          `json:"user_id"`
	RequestedAmount  money.Money     `json:"requested_amount"`
	ApprovedAmount   *money.Money    `json:"approved_amount,omitempty"`
	TotalRepaid      money.Money     `json:"total_repaid"`
	TotalOwed        money.Money     `json:"total_owed"`
	RemainingBalance money.Money     `json:"remaining_balance"`
	InterestRate     decimal.Decimal `json:"interest_rate"`
	TermMonths       int             `json:"term_months"`
	Status           string          `json:"status"`
	Purpose          string          `json:"purpose,omitempty"`
	RejectionReason  string          `json:"rejection_reason,omitempty"`
	ApprovedBy       string          `json:"approved_by,omitempty"`
	ApprovedAt       *time.Time      `json:"approved_at,omitempty"`
	DueDate          *time.Time      `json:"due_date,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

func creditView(c *domain.CreditRequest) creditResponse {
	return creditResponse{
		ID:               c.ID(),
		UserID:           c.UserID(),
		RequestedAmount:  c.RequestedAmount(),
		ApprovedAmount:   c.ApprovedAmount(),
		TotalRepaid:      c.TotalRepaid(),
		TotalOwed:        c.TotalOwed(),
		RemainingBalance: c.RemainingBalance(),
		InterestRate:     c.InterestRate(),
		TermMonths:       c.TermMonths(),
		Status:           string(c.Status()),
		Purpose:          c.Purpose(),
		RejectionReason:  c.RejectionReason(),
		ApprovedBy:       c.ApprovedBy(),
		ApprovedAt:       c.ApprovedAt(),
		DueDate:          c.DueDate(),
		CreatedAt:        c.CreatedAt(),
		UpdatedAt:        c.UpdatedAt(),
	}
}

type savingsResponse struct {
	ID            string          `json:"id"`
	UserID        string          `json:"user_id"`
	AccountNumber string          `json:"account_number"`
	Balance       money.Money     `json:"balance"`
	InterestRate  decimal.Decimal `json:"interest_rate"`
	Status        string          `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func savingsView(a *domain.SavingsAccount) savingsResponse {
	return savingsResponse{
		ID:            a.ID(),
		UserID:        a.UserID(),
		AccountNumber: a.AccountNumber().String(),
		Balance:       a.Balance(),
		InterestRate:  a.InterestRate(),
		Status:        string(a.Status()),
		CreatedAt:     a.CreatedAt(),
		UpdatedAt:     a.UpdatedAt(),
	}
}
