package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"lending/internal/domain"
	"lending/internal/store"

	"github.com/sirupsen/logrus"
)

// SystemActor approves or rejects requests decided by policy rather than by
// an administrator.
const SystemActor = "system"

type CreditRequestStore interface {
	Create(ctx context.Context, tx store.Execer, row store.CreditRequest) error
	GetByID(ctx context.Context, id string) (store.CreditRequest, error)
	GetForUpdate(ctx context.Context, tx store.Getter, id string) (store.CreditRequest, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]store.CreditRequest, error)
	ListOverdue(ctx context.Context, now time.Time, limit int) ([]store.CreditRequest, error)
	HasOpenRequest(ctx context.Context, tx store.Getter, userID string) (bool, error)
	UpdateLifecycle(ctx context.Context, tx store.Execer, row store.CreditRequest, from string) error
	AddRepaid(ctx context.Context, tx store.Getter, id string, delta, ceiling int64) (int64, error)
	Delete(ctx context.Context, tx store.Execer, id string) error
}

type SavingsStore interface {
	Create(ctx context.Context, tx store.Execer, row store.SavingsAccount) error
	GetByUser(ctx context.Context, userID string) (store.SavingsAccount, error)
	GetByUserForUpdate(ctx context.Context, tx store.Getter, userID string) (store.SavingsAccount, error)
	AdjustBalance(ctx context.Context, tx store.Getter, accountID string, delta int64) (int64, error)
	UpdateStatus(ctx context.Context, tx store.Execer, accountID, from, to string) error
	CheckBalance(ctx context.Context, userID string) (store.BalanceCheck, error)
}

type SavingsTransactionStore interface {
	Create(ctx context.Context, tx store.Execer, row store.SavingsTransaction) error
	ListByAccount(ctx context.Context, accountID, txType string, limit, offset int) ([]store.SavingsTransaction, error)
}

type RepaymentStore interface {
	Create(ctx context.Context, tx store.Execer, row store.Repayment) error
	ListByCreditRequest(ctx context.Context, creditRequestID string) ([]store.Repayment, error)
	PunctualityByUser(ctx context.Context, userID string) (store.Punctuality, error)
}

type LedgerStore interface {
	InsertEntries(ctx context.Context, tx store.Execer, entries []store.LedgerEntryInput) error
}

type CreditProfileStore interface {
	Get(ctx context.Context, userID string) (store.CreditProfile, error)
}

type AuditStore interface {
	Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error
}

// EventPublisher receives events after the unit of work that produced them
// has committed.
type EventPublisher interface {
	Publish(ctx context.Context, events ...domain.Event) error
}

func publishEvents(ctx context.Context, publisher EventPublisher, log logrus.FieldLogger, events []domain.Event) {
	if publisher == nil || len(events) == 0 {
		return
	}
	if err := publisher.Publish(ctx, events...); err != nil {
		log.WithError(err).WithField("events", len(events)).Warn("publish committed events")
	}
}

func notFound(err error, format string, args ...any) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NewError(domain.KindNotFound, format, args...)
	}
	return err
}

func ensureBalanced(entries []store.LedgerEntryInput) error {
	sums := make(map[string]int64)
	for _, entry := range entries {
		sums[entry.Currency] += entry.Amount
	}
	for currency, sum := range sums {
		if sum != 0 {
			return fmt.Errorf("ledger entries not balanced for %s: %d", currency, sum)
		}
	}
	return nil
}

func stringPtr(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func pageBounds(limit, offset int) (int, int) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
