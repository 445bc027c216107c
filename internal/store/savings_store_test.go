package store

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return sqlx.NewDb(sqlDB, "sqlmock"), mock
}

func TestSavingsStoreAdjustBalanceIsAdditive(t *testing.T) {
	xdb, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SET balance = balance + $1, updated_at = NOW()")).
		WithArgs(int64(-2500), "sav-1").
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow(int64(7500)))
	mock.ExpectCommit()

	tx, err := xdb.Beginx()
	require.NoError(t, err)
	balance, err := NewSavingsStore(xdb).AdjustBalance(context.Background(), tx, "sav-1", -2500)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	assert.Equal(t, int64(7500), balance)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSavingsStoreAdjustBalanceGuardFails(t *testing.T) {
	xdb, mock := newMockDB(t)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE id = $2 AND status = 'active' AND balance + $1 >= 0")).
		WithArgs(int64(-99999), "sav-1").
		WillReturnRows(sqlmock.NewRows([]string{"balance"}))

	_, err := NewSavingsStore(xdb).AdjustBalance(context.Background(), xdb, "sav-1", -99999)
	assert.ErrorIs(t, err, ErrConditionFailed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSavingsStoreGetByUserForUpdate(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tx := stubTx{
		getFn: func(_ context.Context, dest any, query string, args ...any) error {
			if !strings.Contains(query, "FOR UPDATE") || !strings.Contains(query, "WHERE user_id = $1") {
				t.Fatalf("unexpected query: %s", query)
			}
			if len(args) != 1 || args[0] != "user-1" {
				t.Fatalf("unexpected args: %#v", args)
			}
			*dest.(*SavingsAccount) = SavingsAccount{ID: "sav-1", Balance: 100, CreatedAt: now}
			return nil
		},
	}
	row, err := NewSavingsStore(stubDB{}).GetByUserForUpdate(context.Background(), tx, "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if row.ID != "sav-1" || row.Balance != 100 {
		t.Fatalf("unexpected row: %#v", row)
	}
}

func TestSavingsStoreGetByUserScansColumns(t *testing.T) {
	xdb, mock := newMockDB(t)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("FROM savings_accounts").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "account_number", "balance", "currency", "interest_rate", "status", "created_at", "updated_at"}).
			AddRow("sav-1", "user-1", "SAV17000000000001234", int64(1050), "USD", "2.50", "active", now, now))

	row, err := NewSavingsStore(xdb).GetByUser(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1050), row.Balance)
	assert.True(t, decimal.RequireFromString("2.5").Equal(row.InterestRate))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSavingsStoreGetByUserNotFound(t *testing.T) {
	store := NewSavingsStore(stubDB{
		getFn: func(context.Context, any, string, ...any) error { return sql.ErrNoRows },
	})
	if _, err := store.GetByUser(context.Background(), "user-1"); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestSavingsStoreCreate(t *testing.T) {
	execer := stubExecer{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			if !strings.Contains(query, "INSERT INTO savings_accounts") {
				t.Fatalf("unexpected query: %s", query)
			}
			if len(args) != 9 || args[0] != "sav-1" || args[3] != int64(0) || args[6] != "active" {
				t.Fatalf("unexpected args: %#v", args)
			}
			return stubResult{rows: 1}, nil
		},
	}
	err := NewSavingsStore(stubDB{}).Create(context.Background(), execer, SavingsAccount{ID: "sav-1", UserID: "user-1", Status: "active"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSavingsStoreUpdateStatus(t *testing.T) {
	execer := stubExecer{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			if !strings.Contains(query, "balance = 0") {
				t.Fatalf("expected close guard in query: %s", query)
			}
			if args[0] != "frozen" || args[1] != "sav-1" || args[2] != "active" {
				t.Fatalf("unexpected args: %#v", args)
			}
			return stubResult{rows: 0}, nil
		},
	}
	err := NewSavingsStore(stubDB{}).UpdateStatus(context.Background(), execer, "sav-1", "active", "frozen")
	if !errors.Is(err, ErrConditionFailed) {
		t.Fatalf("expected ErrConditionFailed, got %v", err)
	}
}

func TestSavingsStoreCheckBalance(t *testing.T) {
	store := NewSavingsStore(stubDB{
		getFn: func(_ context.Context, dest any, query string, args ...any) error {
			if !strings.Contains(query, "LEFT JOIN ledger_entries") || !strings.Contains(query, "'savings:' || s.id") {
				t.Fatalf("unexpected query: %s", query)
			}
			*dest.(*BalanceCheck) = BalanceCheck{AccountID: "sav-1", StoredBalance: 500, CalculatedBalance: 500}
			return nil
		},
	})
	check, err := store.CheckBalance(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if check.Difference != 0 || check.StoredBalance != 500 {
		t.Fatalf("unexpected check: %#v", check)
	}
}
