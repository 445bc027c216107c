package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"lending/internal/services"
)

type createCreditRequest struct {
	Amount     string `json:"amount" validate:"required"`
	TermMonths int    `json:"term_months" validate:"required,min=1,max=360"`
	Purpose    string `json:"purpose" validate:"max=255"`
}

func (h *Handler) CreateCredit(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	var req createCreditRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	amount, err := parseAmount(req.Amount, h.cfg.Currency)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	credit, err := h.credits.CreateCreditRequest(r.Context(), services.CreateCreditRequest{
		UserID:     userID,
		Amount:     amount,
		TermMonths: req.TermMonths,
		Purpose:    req.Purpose,
	})
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, creditView(credit))
}

func (h *Handler) ListCredits(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	limit, offset, err := pagination(r)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	credits, err := h.credits.ListCreditRequests(r.Context(), userID, limit, offset)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	views := make([]creditResponse, 0, len(credits))
	for _, credit := range credits {
		views = append(views, creditView(credit))
	}
	respondJSON(w, http.StatusOK, map[string]any{"credits": views})
}

func (h *Handler) GetCredit(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	credit, err := h.credits.GetCreditRequest(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, creditView(credit))
}

func (h *Handler) DeleteCredit(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	if err := h.credits.DeleteCreditRequest(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type repayRequest struct {
	Amount string `json:"amount" validate:"required"`
	Notes  string `json:"notes" validate:"max=500"`
}

func (h *Handler) RepayCredit(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	var req repayRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	amount, err := parseAmount(req.Amount, h.cfg.Currency)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	repayment, err := h.credits.RepayCredit(r.Context(), services.RepayCreditRequest{
		UserID:          userID,
		CreditRequestID: chi.URLParam(r, "id"),
		Amount:          amount,
		Notes:           req.Notes,
	})
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, repayment)
}

func (h *Handler) ListRepayments(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	repayments, err := h.credits.Repayments(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"repayments": repayments})
}

type planRequest struct {
	Principal    string `json:"principal" validate:"required"`
	TermMonths   int    `json:"term_months" validate:"required,min=1,max=360"`
	InterestRate string `json:"interest_rate"`
}

func (h *Handler) RepaymentPlan(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	var req planRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	principal, err := parseAmount(req.Principal, h.cfg.Currency)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	rate, err := parseOptionalRate(req.InterestRate)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	plan, err := h.credits.RepaymentPlan(r.Context(), services.PlanRequest{
		UserID:       userID,
		Principal:    principal,
		InterestRate: rate,
		TermMonths:   req.TermMonths,
	})
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, plan)
}

func (h *Handler) FinancialHealth(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	health, err := h.health.FinancialHealth(r.Context(), userID)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, health)
}
