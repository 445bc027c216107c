package domain

import (
	"testing"
	"time"

	"lending/internal/money"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func usd(t testing.TB, raw string) money.Money {
	t.Helper()
	m, err := money.Parse(raw, "USD")
	require.NoError(t, err)
	return m
}

func pendingCredit(t testing.TB, amount string, rate float64, term int) *CreditRequest {
	t.Helper()
	c, err := NewCreditRequest(NewCreditRequestParams{
		ID:              "cr-1",
		UserID:          "user-1",
		RequestedAmount: usd(t, amount),
		InterestRate:    decimal.NewFromFloat(rate),
		TermMonths:      term,
		Purpose:         " car ",
		Now:             testNow,
	})
	require.NoError(t, err)
	c.PullEvents()
	return c
}

func activeCredit(t testing.TB, amount string, rate float64, term int) *CreditRequest {
	t.Helper()
	c := pendingCredit(t, amount, rate, term)
	require.NoError(t, c.Approve("admin-1", nil, testNow))
	c.PullEvents()
	return c
}

func openSavings(t testing.TB, balance string) *SavingsAccount {
	t.Helper()
	number, err := NewAccountNumber("SAV17000000000001234", DefaultAccountPrefix)
	require.NoError(t, err)
	a, err := NewSavingsAccount(NewSavingsAccountParams{
		ID:            "sav-1",
		UserID:        "user-1",
		AccountNumber: number,
		Currency:      "USD",
		InterestRate:  decimal.NewFromFloat(2.5),
		Now:           testNow,
	})
	require.NoError(t, err)
	if balance != "0" {
		require.NoError(t, a.Deposit(usd(t, balance), testNow))
	}
	a.PullEvents()
	return a
}

func eventTypes(events []Event) []string {
	types := make([]string, 0, len(events))
	for _, e := range events {
		types = append(types, e.EventType())
	}
	return types
}
