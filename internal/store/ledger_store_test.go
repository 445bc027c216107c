package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
)

func TestLedgerStoreInsertEntries(t *testing.T) {
	ctx := context.Background()
	var refs []string
	execer := stubExecer{
		execFn: func(_ context.Context, query string, args ...any) (sql.Result, error) {
			if !strings.Contains(query, "INSERT INTO ledger_entries") || !strings.Contains(query, "account_ref") {
				t.Fatalf("unexpected query: %s", query)
			}
			refs = append(refs, args[2].(string))
			return stubResult{rows: 1}, nil
		},
	}
	store := NewLedgerStore(stubDB{})
	entries := []LedgerEntryInput{
		{ID: "1", TransactionID: "tx", AccountRef: SavingsRef("sav-1"), Amount: -100, Currency: "USD", Description: "repayment"},
		{ID: "2", TransactionID: "tx", AccountRef: CreditRef("cr-1"), Amount: 100, Currency: "USD", Description: "repayment"},
	}
	if err := store.InsertEntries(ctx, execer, entries); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(refs) != 2 || refs[0] != "savings:sav-1" || refs[1] != "credit:cr-1" {
		t.Fatalf("unexpected refs: %v", refs)
	}
}

func TestLedgerStoreInsertEntriesStopsOnError(t *testing.T) {
	calls := 0
	execer := stubExecer{
		execFn: func(context.Context, string, ...any) (sql.Result, error) {
			calls++
			return nil, errors.New("constraint")
		},
	}
	err := NewLedgerStore(stubDB{}).InsertEntries(context.Background(), execer, []LedgerEntryInput{{AccountRef: "a"}, {AccountRef: "b"}})
	if err == nil || calls != 1 {
		t.Fatalf("expected failure after first insert, calls=%d err=%v", calls, err)
	}
}

func TestLedgerStoreSumByAccount(t *testing.T) {
	ctx := context.Background()
	store := NewLedgerStore(stubDB{
		getFn: func(_ context.Context, dest any, query string, args ...any) error {
			if !strings.Contains(query, "FROM ledger_entries") {
				t.Fatalf("unexpected query: %s", query)
			}
			if len(args) != 1 || args[0] != "savings:sav-1" {
				t.Fatalf("unexpected args: %#v", args)
			}
			*dest.(*int64) = 1000
			return nil
		},
	})
	sum, err := store.SumByAccount(ctx, SavingsRef("sav-1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sum != 1000 {
		t.Fatalf("unexpected sum: %d", sum)
	}
}
