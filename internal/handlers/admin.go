package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"lending/internal/auth"
	"lending/internal/middleware"
	"lending/internal/services"
	"lending/internal/websocket"
)

type approveRequest struct {
	Amount string `json:"amount"`
}

func (h *Handler) ApproveCredit(w http.ResponseWriter, r *http.Request) {
	adminID, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	var req approveRequest
	if err := decodeOptionalJSON(w, r, &req); err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	amount, err := parseOptionalAmount(req.Amount, h.cfg.Currency)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	credit, err := h.credits.ApproveCreditRequest(r.Context(), services.ApproveCreditRequest{
		ID:         chi.URLParam(r, "id"),
		ApproverID: adminID,
		Amount:     amount,
	})
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, creditView(credit))
}

type rejectRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

func (h *Handler) RejectCredit(w http.ResponseWriter, r *http.Request) {
	adminID, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	var req rejectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	credit, err := h.credits.RejectCreditRequest(r.Context(), services.RejectCreditRequest{
		ID:         chi.URLParam(r, "id"),
		RejectedBy: adminID,
		Reason:     req.Reason,
	})
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, creditView(credit))
}

type bulkRequest struct {
	IDs    []string `json:"ids" validate:"required,min=1,max=100,dive,required"`
	Reason string   `json:"reason" validate:"max=500"`
}

func (h *Handler) BulkApprove(w http.ResponseWriter, r *http.Request) {
	adminID, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	var req bulkRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, h.credits.BulkApprove(r.Context(), req.IDs, adminID))
}

// BulkReject leaves reason validation to the aggregate so a blank reason
// fails per item.
func (h *Handler) BulkReject(w http.ResponseWriter, r *http.Request) {
	adminID, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	var req bulkRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, h.credits.BulkReject(r.Context(), req.IDs, adminID, req.Reason))
}

func (h *Handler) SweepOverdue(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 100)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	result, err := h.credits.SweepOverdue(r.Context(), limit)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (h *Handler) FreezeSavings(w http.ResponseWriter, r *http.Request) {
	adminID, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	account, err := h.savings.Freeze(r.Context(), adminID, chi.URLParam(r, "userID"))
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, savingsView(account))
}

func (h *Handler) UnfreezeSavings(w http.ResponseWriter, r *http.Request) {
	adminID, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	account, err := h.savings.Unfreeze(r.Context(), adminID, chi.URLParam(r, "userID"))
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, savingsView(account))
}

type interestRequest struct {
	Months int `json:"months" validate:"required,min=1,max=120"`
}

func (h *Handler) CreditInterest(w http.ResponseWriter, r *http.Request) {
	adminID, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	var req interestRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	txn, err := h.savings.CreditInterest(r.Context(), adminID, chi.URLParam(r, "userID"), req.Months)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, txn)
}

func (h *Handler) ListAuditLogs(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pagination(r)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	logs, err := h.audit.List(r.Context(), r.URL.Query().Get("entity_type"), limit, offset)
	if err != nil {
		h.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"audit_logs": logs})
}

// WSBalances authenticates from the token query parameter because browsers
// cannot set headers on a websocket handshake.
func (h *Handler) WSBalances(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token, _ = middleware.BearerToken(r)
	}
	if token == "" {
		respondError(w, http.StatusUnauthorized, "Unauthorized", "missing token")
		return
	}
	claims, err := auth.ParseToken(h.cfg.JWTSecret, token)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "Unauthorized", "invalid token")
		return
	}
	websocket.ServeWS(w, r, h.hub, claims.UserID)
}
