package handlers

import (
	"context"

	"lending/internal/calculator"
	"lending/internal/domain"
	"lending/internal/money"
	"lending/internal/services"
	"lending/internal/store"
)

type CreditService interface {
	CreateCreditRequest(ctx context.Context, req services.CreateCreditRequest) (*domain.CreditRequest, error)
	ApproveCreditRequest(ctx context.Context, req services.ApproveCreditRequest) (*domain.CreditRequest, error)
	RejectCreditRequest(ctx context.Context, req services.RejectCreditRequest) (*domain.CreditRequest, error)
	RepayCredit(ctx context.Context, req services.RepayCreditRequest) (services.Repayment, error)
	DeleteCreditRequest(ctx context.Context, userID, id string) error
	GetCreditRequest(ctx context.Context, userID, id string) (*domain.CreditRequest, error)
	ListCreditRequests(ctx context.Context, userID string, limit, offset int) ([]*domain.CreditRequest, error)
	Repayments(ctx context.Context, userID, creditRequestID string) ([]services.Repayment, error)
	RepaymentPlan(ctx context.Context, req services.PlanRequest) (calculator.Plan, error)
	BulkApprove(ctx context.Context, ids []string, approverID string) services.BulkResult
	BulkReject(ctx context.Context, ids []string, rejectedBy, reason string) services.BulkResult
	SweepOverdue(ctx context.Context, limit int) (services.BulkResult, error)
}

type SavingsService interface {
	CreateSavingsAccount(ctx context.Context, userID string, initial *money.Money) (*domain.SavingsAccount, error)
	Deposit(ctx context.Context, req services.MovementRequest) (services.Transaction, error)
	Withdraw(ctx context.Context, req services.MovementRequest) (services.Transaction, error)
	CreditInterest(ctx context.Context, actorID, userID string, months int) (services.Transaction, error)
	ProjectInterest(ctx context.Context, userID string, months int) (money.Money, error)
	Freeze(ctx context.Context, actorID, userID string) (*domain.SavingsAccount, error)
	Unfreeze(ctx context.Context, actorID, userID string) (*domain.SavingsAccount, error)
	Close(ctx context.Context, userID string) (*domain.SavingsAccount, error)
	GetSavingsAccount(ctx context.Context, userID string) (*domain.SavingsAccount, error)
	Transactions(ctx context.Context, userID, txType string, limit, offset int) ([]services.Transaction, error)
	SelfCheck(ctx context.Context, userID string) (store.BalanceCheck, error)
}

type HealthService interface {
	FinancialHealth(ctx context.Context, userID string) (services.FinancialHealth, error)
}

type AdminStore interface {
	IsAdmin(ctx context.Context, userID string) (bool, bool, error)
	HasRole(ctx context.Context, userID, role string) (bool, error)
}

type AuditStore interface {
	List(ctx context.Context, entityType string, limit, offset int) ([]store.AuditLog, error)
}
