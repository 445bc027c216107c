package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"lending/internal/config"
	"lending/internal/middleware"
	"lending/internal/store"
	"lending/internal/websocket"
)

type Handler struct {
	cfg     config.Config
	credits CreditService
	savings SavingsService
	health  HealthService
	admin   AdminStore
	audit   AuditStore
	hub     *websocket.Hub
	log     logrus.FieldLogger
}

func New(cfg config.Config, credits CreditService, savings SavingsService, health HealthService, admin AdminStore, audit AuditStore, hub *websocket.Hub, log logrus.FieldLogger) *Handler {
	return &Handler{
		cfg:     cfg,
		credits: credits,
		savings: savings,
		health:  health,
		admin:   admin,
		audit:   audit,
		hub:     hub,
		log:     log,
	}
}

func (h *Handler) Routes() http.Handler {
	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.RequestLogger(h.log))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   strings.Split(h.cfg.AllowedOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	authn := middleware.Auth(h.cfg.JWTSecret)

	router.Route("/credits", func(r chi.Router) {
		r.Use(authn)
		r.Post("/", h.CreateCredit)
		r.Get("/", h.ListCredits)
		r.Post("/plan", h.RepaymentPlan)
		r.Get("/{id}", h.GetCredit)
		r.Delete("/{id}", h.DeleteCredit)
		r.Post("/{id}/repay", h.RepayCredit)
		r.Get("/{id}/repayments", h.ListRepayments)
	})
	router.Route("/savings", func(r chi.Router) {
		r.Use(authn)
		r.Post("/", h.CreateSavings)
		r.Get("/", h.GetSavings)
		r.Post("/deposit", h.Deposit)
		r.Post("/withdraw", h.Withdraw)
		r.Post("/close", h.CloseSavings)
		r.Get("/transactions", h.ListSavingsTransactions)
		r.Get("/interest", h.ProjectInterest)
		r.Get("/self-check", h.SelfCheck)
	})
	router.With(authn).Get("/financial-health", h.FinancialHealth)
	router.Get("/ws/balances", h.WSBalances)

	router.Route("/admin", func(r chi.Router) {
		r.Use(authn)
		credits := middleware.RequireAdmin(h.admin, store.RoleManageCredits, h.log)
		savings := middleware.RequireAdmin(h.admin, store.RoleManageSavings, h.log)
		r.With(credits).Post("/credits/{id}/approve", h.ApproveCredit)
		r.With(credits).Post("/credits/{id}/reject", h.RejectCredit)
		r.With(credits).Post("/credits/bulk-approve", h.BulkApprove)
		r.With(credits).Post("/credits/bulk-reject", h.BulkReject)
		r.With(credits).Post("/credits/sweep-overdue", h.SweepOverdue)
		r.With(savings).Post("/savings/{userID}/freeze", h.FreezeSavings)
		r.With(savings).Post("/savings/{userID}/unfreeze", h.UnfreezeSavings)
		r.With(savings).Post("/savings/{userID}/interest", h.CreditInterest)
		r.With(middleware.RequireAdmin(h.admin, store.RoleViewAudit, h.log)).Get("/audit", h.ListAuditLogs)
	})

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return router
}

func (h *Handler) currentUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized", "unauthorized")
	}
	return userID, ok
}
