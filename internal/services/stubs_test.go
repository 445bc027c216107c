package services

import (
	"context"
	"sync"
	"time"

	"lending/internal/domain"
	"lending/internal/store"

	"github.com/jmoiron/sqlx"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeTxRunner struct {
	err error
}

func (f fakeTxRunner) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	if f.err != nil {
		return f.err
	}
	return fn(nil)
}

// lockingTxRunner serializes units of work the way a row lock does.
type lockingTxRunner struct {
	mu *sync.Mutex
}

func (l lockingTxRunner) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return fn(nil)
}

type stubCreditStore struct {
	createFn          func(ctx context.Context, tx store.Execer, row store.CreditRequest) error
	getByIDFn         func(ctx context.Context, id string) (store.CreditRequest, error)
	getForUpdateFn    func(ctx context.Context, tx store.Getter, id string) (store.CreditRequest, error)
	listByUserFn      func(ctx context.Context, userID string, limit, offset int) ([]store.CreditRequest, error)
	listOverdueFn     func(ctx context.Context, now time.Time, limit int) ([]store.CreditRequest, error)
	hasOpenRequestFn  func(ctx context.Context, tx store.Getter, userID string) (bool, error)
	updateLifecycleFn func(ctx context.Context, tx store.Execer, row store.CreditRequest, from string) error
	addRepaidFn       func(ctx context.Context, tx store.Getter, id string, delta, ceiling int64) (int64, error)
	deleteFn          func(ctx context.Context, tx store.Execer, id string) error
}

func (s stubCreditStore) Create(ctx context.Context, tx store.Execer, row store.CreditRequest) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, tx, row)
}

func (s stubCreditStore) GetByID(ctx context.Context, id string) (store.CreditRequest, error) {
	return s.getByIDFn(ctx, id)
}

func (s stubCreditStore) GetForUpdate(ctx context.Context, tx store.Getter, id string) (store.CreditRequest, error) {
	return s.getForUpdateFn(ctx, tx, id)
}

func (s stubCreditStore) ListByUser(ctx context.Context, userID string, limit, offset int) ([]store.CreditRequest, error) {
	if s.listByUserFn == nil {
		return nil, nil
	}
	return s.listByUserFn(ctx, userID, limit, offset)
}

func (s stubCreditStore) ListOverdue(ctx context.Context, now time.Time, limit int) ([]store.CreditRequest, error) {
	return s.listOverdueFn(ctx, now, limit)
}

func (s stubCreditStore) HasOpenRequest(ctx context.Context, tx store.Getter, userID string) (bool, error) {
	if s.hasOpenRequestFn == nil {
		return false, nil
	}
	return s.hasOpenRequestFn(ctx, tx, userID)
}

func (s stubCreditStore) UpdateLifecycle(ctx context.Context, tx store.Execer, row store.CreditRequest, from string) error {
	if s.updateLifecycleFn == nil {
		return nil
	}
	return s.updateLifecycleFn(ctx, tx, row, from)
}

func (s stubCreditStore) AddRepaid(ctx context.Context, tx store.Getter, id string, delta, ceiling int64) (int64, error) {
	return s.addRepaidFn(ctx, tx, id, delta, ceiling)
}

func (s stubCreditStore) Delete(ctx context.Context, tx store.Execer, id string) error {
	if s.deleteFn == nil {
		return nil
	}
	return s.deleteFn(ctx, tx, id)
}

type stubSavingsStore struct {
	createFn        func(ctx context.Context, tx store.Execer, row store.SavingsAccount) error
	getByUserFn     func(ctx context.Context, userID string) (store.SavingsAccount, error)
	getForUpdateFn  func(ctx context.Context, tx store.Getter, userID string) (store.SavingsAccount, error)
	adjustBalanceFn func(ctx context.Context, tx store.Getter, accountID string, delta int64) (int64, error)
	updateStatusFn  func(ctx context.Context, tx store.Execer, accountID, from, to string) error
	checkBalanceFn  func(ctx context.Context, userID string) (store.BalanceCheck, error)
}

func (s stubSavingsStore) Create(ctx context.Context, tx store.Execer, row store.SavingsAccount) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, tx, row)
}

func (s stubSavingsStore) GetByUser(ctx context.Context, userID string) (store.SavingsAccount, error) {
	return s.getByUserFn(ctx, userID)
}

func (s stubSavingsStore) GetByUserForUpdate(ctx context.Context, tx store.Getter, userID string) (store.SavingsAccount, error) {
	return s.getForUpdateFn(ctx, tx, userID)
}

func (s stubSavingsStore) AdjustBalance(ctx context.Context, tx store.Getter, accountID string, delta int64) (int64, error) {
	return s.adjustBalanceFn(ctx, tx, accountID, delta)
}

func (s stubSavingsStore) UpdateStatus(ctx context.Context, tx store.Execer, accountID, from, to string) error {
	if s.updateStatusFn == nil {
		return nil
	}
	return s.updateStatusFn(ctx, tx, accountID, from, to)
}

func (s stubSavingsStore) CheckBalance(ctx context.Context, userID string) (store.BalanceCheck, error) {
	return s.checkBalanceFn(ctx, userID)
}

type stubSavingsTxStore struct {
	mu   sync.Mutex
	rows []store.SavingsTransaction
}

func (s *stubSavingsTxStore) Create(_ context.Context, _ store.Execer, row store.SavingsTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, row)
	return nil
}

func (s *stubSavingsTxStore) ListByAccount(_ context.Context, accountID, txType string, _, _ int) ([]store.SavingsTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []store.SavingsTransaction
	for _, row := range s.rows {
		if row.SavingsAccountID == accountID && (txType == "" || row.Type == txType) {
			out = append(out, row)
		}
	}
	return out, nil
}

type stubRepaymentStore struct {
	createFn      func(ctx context.Context, tx store.Execer, row store.Repayment) error
	listFn        func(ctx context.Context, creditRequestID string) ([]store.Repayment, error)
	punctualityFn func(ctx context.Context, userID string) (store.Punctuality, error)
}

func (s stubRepaymentStore) Create(ctx context.Context, tx store.Execer, row store.Repayment) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, tx, row)
}

func (s stubRepaymentStore) ListByCreditRequest(ctx context.Context, creditRequestID string) ([]store.Repayment, error) {
	return s.listFn(ctx, creditRequestID)
}

func (s stubRepaymentStore) PunctualityByUser(ctx context.Context, userID string) (store.Punctuality, error) {
	if s.punctualityFn == nil {
		return store.Punctuality{}, nil
	}
	return s.punctualityFn(ctx, userID)
}

type stubLedgerStore struct {
	mu      sync.Mutex
	entries []store.LedgerEntryInput
	err     error
}

func (s *stubLedgerStore) InsertEntries(_ context.Context, _ store.Execer, entries []store.LedgerEntryInput) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entries...)
	return nil
}

type stubProfileStore struct {
	getFn func(ctx context.Context, userID string) (store.CreditProfile, error)
}

func (s stubProfileStore) Get(ctx context.Context, userID string) (store.CreditProfile, error) {
	return s.getFn(ctx, userID)
}

func profileWithScore(score int, income int64) stubProfileStore {
	return stubProfileStore{getFn: func(_ context.Context, userID string) (store.CreditProfile, error) {
		return store.CreditProfile{UserID: userID, CreditScore: score, MonthlyIncome: income}, nil
	}}
}

type stubAuditStore struct {
	logFn func(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error
}

func (s stubAuditStore) Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error {
	if s.logFn == nil {
		return nil
	}
	return s.logFn(ctx, tx, actorID, action, entityType, entityID, data)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, events ...domain.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, event := range p.events {
		out = append(out, event.EventType())
	}
	return out
}

// memorySavings is an in-memory savings table whose AdjustBalance adds in
// place like the SQL statement does.
type memorySavings struct {
	mu  sync.Mutex
	row store.SavingsAccount
}

func (m *memorySavings) store() stubSavingsStore {
	return stubSavingsStore{
		getByUserFn: func(context.Context, string) (store.SavingsAccount, error) {
			m.mu.Lock()
			defer m.mu.Unlock()
			return m.row, nil
		},
		getForUpdateFn: func(context.Context, store.Getter, string) (store.SavingsAccount, error) {
			m.mu.Lock()
			defer m.mu.Unlock()
			return m.row, nil
		},
		adjustBalanceFn: func(_ context.Context, _ store.Getter, _ string, delta int64) (int64, error) {
			m.mu.Lock()
			defer m.mu.Unlock()
			if m.row.Status != "active" || m.row.Balance+delta < 0 {
				return 0, store.ErrConditionFailed
			}
			m.row.Balance += delta
			return m.row.Balance, nil
		},
		updateStatusFn: func(_ context.Context, _ store.Execer, _ string, from, to string) error {
			m.mu.Lock()
			defer m.mu.Unlock()
			if m.row.Status != from {
				return store.ErrConditionFailed
			}
			m.row.Status = to
			return nil
		},
	}
}

func (m *memorySavings) balance() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.row.Balance
}

func savingsRow(balance int64, status string) store.SavingsAccount {
	return store.SavingsAccount{
		ID:            "sav-1",
		UserID:        "user-1",
		AccountNumber: "SAV17000000000001234",
		Balance:       balance,
		Currency:      "USD",
		InterestRate:  DefaultSavingsConfig().InterestRate,
		Status:        status,
		CreatedAt:     testNow.AddDate(0, -1, 0),
		UpdatedAt:     testNow.AddDate(0, -1, 0),
	}
}
