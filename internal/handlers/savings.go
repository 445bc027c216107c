package handlers

import (
	"context"
	"net/http"

	"lending/internal/domain"
	"lending/internal/money"
	"lending/internal/services"
)

type createSavingsRequest struct {
	InitialDeposit string `json:"initial_deposit"`
}

func (h *Handler) CreateSavings(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	var req createSavingsRequest
	if err := decodeOptionalJSON(w, r, &req); err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	initial, err := parseOptionalAmount(req.InitialDeposit, h.cfg.Currency)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	account, err := h.savings.CreateSavingsAccount(r.Context(), userID, initial)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, savingsView(account))
}

func (h *Handler) GetSavings(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	account, err := h.savings.GetSavingsAccount(r.Context(), userID)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, savingsView(account))
}

type movementRequest struct {
	Amount      string `json:"amount" validate:"required"`
	Description string `json:"description" validate:"max=255"`
}

func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	h.movement(w, r, h.savings.Deposit)
}

func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	h.movement(w, r, h.savings.Withdraw)
}

func (h *Handler) movement(w http.ResponseWriter, r *http.Request, apply func(context.Context, services.MovementRequest) (services.Transaction, error)) {
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	var req movementRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	amount, err := parseAmount(req.Amount, h.cfg.Currency)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	txn, err := apply(r.Context(), services.MovementRequest{UserID: userID, Amount: amount, Description: req.Description})
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, txn)
}

func (h *Handler) CloseSavings(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	account, err := h.savings.Close(r.Context(), userID)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, savingsView(account))
}

func (h *Handler) ListSavingsTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	limit, offset, err := pagination(r)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	txType := r.URL.Query().Get("type")
	switch txType {
	case "", services.TxTypeDeposit, services.TxTypeWithdrawal, services.TxTypeInterest, services.TxTypeCreditRepayment:
	default:
		h.respondDomainError(w, r, domain.NewError(domain.KindInvalidInput, "unknown transaction type %q", txType))
		return
	}
	txns, err := h.savings.Transactions(r.Context(), userID, txType, limit, offset)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"transactions": txns})
}

func (h *Handler) ProjectInterest(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	months, err := queryInt(r, "months", 12)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	interest, err := h.savings.ProjectInterest(r.Context(), userID, months)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"months": months, "interest": interest})
}

func (h *Handler) SelfCheck(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	check, err := h.savings.SelfCheck(r.Context(), userID)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"account_id":         check.AccountID,
		"currency":           check.Currency,
		"stored_balance":     money.FormatMinor(check.StoredBalance),
		"calculated_balance": money.FormatMinor(check.CalculatedBalance),
		"difference":         money.FormatMinor(check.Difference),
		"balanced":           check.Difference == 0,
	})
}
