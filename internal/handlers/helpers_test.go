package handlers

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"

	"lending/internal/auth"
	"lending/internal/calculator"
	"lending/internal/config"
	"lending/internal/domain"
	"lending/internal/money"
	"lending/internal/services"
	"lending/internal/store"
	"lending/internal/websocket"
)

const testSecret = "secret"

type stubCreditService struct {
	createFn     func(ctx context.Context, req services.CreateCreditRequest) (*domain.CreditRequest, error)
	approveFn    func(ctx context.Context, req services.ApproveCreditRequest) (*domain.CreditRequest, error)
	rejectFn     func(ctx context.Context, req services.RejectCreditRequest) (*domain.CreditRequest, error)
	repayFn      func(ctx context.Context, req services.RepayCreditRequest) (services.Repayment, error)
	deleteFn     func(ctx context.Context, userID, id string) error
	getFn        func(ctx context.Context, userID, id string) (*domain.CreditRequest, error)
	listFn       func(ctx context.Context, userID string, limit, offset int) ([]*domain.CreditRequest, error)
	repaymentsFn func(ctx context.Context, userID, creditRequestID string) ([]services.Repayment, error)
	planFn       func(ctx context.Context, req services.PlanRequest) (calculator.Plan, error)
	bulkApprove  func(ctx context.Context, ids []string, approverID string) services.BulkResult
	bulkReject   func(ctx context.Context, ids []string, rejectedBy, reason string) services.BulkResult
	sweepFn      func(ctx context.Context, limit int) (services.BulkResult, error)
}

func (s stubCreditService) CreateCreditRequest(ctx context.Context, req services.CreateCreditRequest) (*domain.CreditRequest, error) {
	return s.createFn(ctx, req)
}

func (s stubCreditService) ApproveCreditRequest(ctx context.Context, req services.ApproveCreditRequest) (*domain.CreditRequest, error) {
	return s.approveFn(ctx, req)
}

func (s stubCreditService) RejectCreditRequest(ctx context.Context, req services.RejectCreditRequest) (*domain.CreditRequest, error) {
	return s.rejectFn(ctx, req)
}

func (s stubCreditService) RepayCredit(ctx context.Context, req services.RepayCreditRequest) (services.Repayment, error) {
	return s.repayFn(ctx, req)
}

func (s stubCreditService) DeleteCreditRequest(ctx context.Context, userID, id string) error {
	return s.deleteFn(ctx, userID, id)
}

func (s stubCreditService) GetCreditRequest(ctx context.Context, userID, id string) (*domain.CreditRequest, error) {
	return s.getFn(ctx, userID, id)
}

func (s stubCreditService) ListCreditRequests(ctx context.Context, userID string, limit, offset int) ([]*domain.CreditRequest, error) {
	return s.listFn(ctx, userID, limit, offset)
}

func (s stubCreditService) Repayments(ctx context.Context, userID, creditRequestID string) ([]services.Repayment, error) {
	return s.repaymentsFn(ctx, userID, creditRequestID)
}

func (s stubCreditService) RepaymentPlan(ctx context.Context, req services.PlanRequest) (calculator.Plan, error) {
	return s.planFn(ctx, req)
}

func (s stubCreditService) BulkApprove(ctx context.Context, ids []string, approverID string) services.BulkResult {
	return s.bulkApprove(ctx, ids, approverID)
}

func (s stubCreditService) BulkReject(ctx context.Context, ids []string, rejectedBy, reason string) services.BulkResult {
	return s.bulkReject(ctx, ids, rejectedBy, reason)
}

func (s stubCreditService) SweepOverdue(ctx context.Context, limit int) (services.BulkResult, error) {
	return s.sweepFn(ctx, limit)
}

type stubSavingsService struct {
	createFn       func(ctx context.Context, userID string, initial *money.Money) (*domain.SavingsAccount, error)
	depositFn      func(ctx context.Context, req services.MovementRequest) (services.Transaction, error)
	withdrawFn     func(ctx context.Context, req services.MovementRequest) (services.Transaction, error)
	interestFn     func(ctx context.Context, actorID, userID string, months int) (services.Transaction, error)
	projectFn      func(ctx context.Context, userID string, months int) (money.Money, error)
	freezeFn       func(ctx context.Context, actorID, userID string) (*domain.SavingsAccount, error)
	unfreezeFn     func(ctx context.Context, actorID, userID string) (*domain.SavingsAccount, error)
	closeFn        func(ctx context.Context, userID string) (*domain.SavingsAccount, error)
	getFn          func(ctx context.Context, userID string) (*domain.SavingsAccount, error)
	transactionsFn func(ctx context.Context, userID, txType string, limit, offset int) ([]services.Transaction, error)
	selfCheckFn    func(ctx context.Context, userID string) (store.BalanceCheck, error)
}

func (s stubSavingsService) CreateSavingsAccount(ctx context.Context, userID string, initial *money.Money) (*domain.SavingsAccount, error) {
	return s.createFn(ctx, userID, initial)
}

func (s stubSavingsService) Deposit(ctx context.Context, req services.MovementRequest) (services.Transaction, error) {
	return s.depositFn(ctx, req)
}

func (s stubSavingsService) Withdraw(ctx context.Context, req services.MovementRequest) (services.Transaction, error) {
	return s.withdrawFn(ctx, req)
}

func (s stubSavingsService) CreditInterest(ctx context.Context, actorID, userID string, months int) (services.Transaction, error) {
	return s.interestFn(ctx, actorID, userID, months)
}

func (s stubSavingsService) ProjectInterest(ctx context.Context, userID string, months int) (money.Money, error) {
	return s.projectFn(ctx, userID, months)
}

func (s stubSavingsService) Freeze(ctx context.Context, actorID, userID string) (*domain.SavingsAccount, error) {
	return s.freezeFn(ctx, actorID, userID)
}

func (s stubSavingsService) Unfreeze(ctx context.Context, actorID, userID string) (*domain.SavingsAccount, error) {
	return s.unfreezeFn(ctx, actorID, userID)
}

func (s stubSavingsService) Close(ctx context.Context, userID string) (*domain.SavingsAccount, error) {
	return s.closeFn(ctx, userID)
}

func (s stubSavingsService) GetSavingsAccount(ctx context.Context, userID string) (*domain.SavingsAccount, error) {
	return s.getFn(ctx, userID)
}

func (s stubSavingsService) Transactions(ctx context.Context, userID, txType string, limit, offset int) ([]services.Transaction, error) {
	return s.transactionsFn(ctx, userID, txType, limit, offset)
}

func (s stubSavingsService) SelfCheck(ctx context.Context, userID string) (store.BalanceCheck, error) {
	return s.selfCheckFn(ctx, userID)
}

type stubHealthService struct {
	healthFn func(ctx context.Context, userID string) (services.FinancialHealth, error)
}

func (s stubHealthService) FinancialHealth(ctx context.Context, userID string) (services.FinancialHealth, error) {
	return s.healthFn(ctx, userID)
}

type stubAdminStore struct {
	isAdminFn func(ctx context.Context, userID string) (bool, bool, error)
	hasRoleFn func(ctx context.Context, userID, role string) (bool, error)
}

func (s stubAdminStore) IsAdmin(ctx context.Context, userID string) (bool, bool, error) {
	if s.isAdminFn == nil {
		return false, false, nil
	}
	return s.isAdminFn(ctx, userID)
}

func (s stubAdminStore) HasRole(ctx context.Context, userID, role string) (bool, error) {
	if s.hasRoleFn == nil {
		return false, nil
	}
	return s.hasRoleFn(ctx, userID, role)
}

type stubAuditStore struct {
	listFn func(ctx context.Context, entityType string, limit, offset int) ([]store.AuditLog, error)
}

func (s stubAuditStore) List(ctx context.Context, entityType string, limit, offset int) ([]store.AuditLog, error) {
	return s.listFn(ctx, entityType, limit, offset)
}

type testDeps struct {
	credits stubCreditService
	savings stubSavingsService
	health  stubHealthService
	admin   stubAdminStore
	audit   stubAuditStore
}

func newTestHandler(t *testing.T, deps testDeps) http.Handler {
	t.Helper()
	log, _ := test.NewNullLogger()
	cfg := config.Config{JWTSecret: testSecret, AllowedOrigins: "*", Currency: "USD"}
	return New(cfg, deps.credits, deps.savings, deps.health, deps.admin, deps.audit, websocket.NewHub(log), log).Routes()
}

// serve runs one request through the full router, authenticated as userID
// unless userID is empty.
func serve(t *testing.T, handler http.Handler, method, path, body, userID string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body == "" {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		token, err := auth.GenerateToken(testSecret, userID, time.Minute)
		if err != nil {
			t.Fatalf("generate token: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func usd(t *testing.T, raw string) money.Money {
	t.Helper()
	m, err := money.Parse(raw, "USD")
	if err != nil {
		t.Fatalf("parse %s: %v", raw, err)
	}
	return m
}

func pendingCredit(t *testing.T, userID string) *domain.CreditRequest {
	t.Helper()
	credit, err := domain.RestoreCreditRequest(domain.CreditRequestState{
		ID:              "cr-1",
		UserID:          userID,
		RequestedAmount: usd(t, "1000"),
		TotalRepaid:     money.Zero("USD"),
		InterestRate:    decimal.RequireFromString("7.5"),
		TermMonths:      12,
		Status:          domain.CreditPending,
		CreatedAt:       testNow,
		UpdatedAt:       testNow,
	})
	if err != nil {
		t.Fatalf("restore credit: %v", err)
	}
	return credit
}

func activeSavings(t *testing.T, userID, balance string) *domain.SavingsAccount {
	t.Helper()
	number, err := domain.NewAccountNumber("SAV0000000001", "SAV")
	if err != nil {
		t.Fatalf("account number: %v", err)
	}
	account, err := domain.RestoreSavingsAccount(domain.SavingsAccountState{
		ID:            "sav-1",
		UserID:        userID,
		AccountNumber: number,
		Balance:       usd(t, balance),
		InterestRate:  decimal.RequireFromString("2.5"),
		Status:        domain.SavingsActive,
		CreatedAt:     testNow,
		UpdatedAt:     testNow,
	})
	if err != nil {
		t.Fatalf("restore savings: %v", err)
	}
	return account
}
