package services

import (
	"strings"
	"unicode"

	"lending/internal/domain"
	"lending/internal/money"
	"lending/internal/store"
)

func creditFromRow(row store.CreditRequest) (*domain.CreditRequest, error) {
	requested, err := money.FromMinor(row.RequestedAmount, row.Currency)
	if err != nil {
		return nil, err
	}
	repaid, err := money.FromMinor(row.TotalRepaid, row.Currency)
	if err != nil {
		return nil, err
	}
	var approved *money.Money
	if row.ApprovedAmount != nil {
		amount, err := money.FromMinor(*row.ApprovedAmount, row.Currency)
		if err != nil {
			return nil, err
		}
		approved = &amount
	}
	return domain.RestoreCreditRequest(domain.CreditRequestState{
		ID:              row.ID,
		UserID:          row.UserID,
		RequestedAmount: requested,
		ApprovedAmount:  approved,
		TotalRepaid:     repaid,
		InterestRate:    row.InterestRate,
		TermMonths:      row.TermMonths,
		Status:          domain.CreditStatus(row.Status),
		Purpose:         derefString(row.Purpose),
		RejectionReason: derefString(row.RejectionReason),
		ApprovedBy:      derefString(row.ApprovedBy),
		ApprovedAt:      row.ApprovedAt,
		RejectedBy:      derefString(row.RejectedBy),
		RejectedAt:      row.RejectedAt,
		DueDate:         row.DueDate,
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
	})
}

func creditToRow(c *domain.CreditRequest) store.CreditRequest {
	state := c.State()
	row := store.CreditRequest{
		ID:              state.ID,
		UserID:          state.UserID,
		RequestedAmount: state.RequestedAmount.Minor(),
		TotalRepaid:     state.TotalRepaid.Minor(),
		Currency:        state.RequestedAmount.Currency(),
		InterestRate:    state.InterestRate,
		TermMonths:      state.TermMonths,
		Status:          string(state.Status),
		Purpose:         stringPtr(state.Purpose),
		RejectionReason: stringPtr(state.RejectionReason),
		ApprovedBy:      stringPtr(state.ApprovedBy),
		ApprovedAt:      state.ApprovedAt,
		RejectedBy:      stringPtr(state.RejectedBy),
		RejectedAt:      state.RejectedAt,
		DueDate:         state.DueDate,
		CreatedAt:       state.CreatedAt,
		UpdatedAt:       state.UpdatedAt,
	}
	if state.ApprovedAmount != nil {
		approved := state.ApprovedAmount.Minor()
		row.ApprovedAmount = &approved
	}
	return row
}

func savingsFromRow(row store.SavingsAccount) (*domain.SavingsAccount, error) {
	number, err := restoreAccountNumber(row.AccountNumber)
	if err != nil {
		return nil, err
	}
	balance, err := money.FromMinor(row.Balance, row.Currency)
	if err != nil {
		return nil, err
	}
	return domain.RestoreSavingsAccount(domain.SavingsAccountState{
		ID:            row.ID,
		UserID:        row.UserID,
		AccountNumber: number,
		Balance:       balance,
		InterestRate:  row.InterestRate,
		Status:        domain.SavingsStatus(row.Status),
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
	})
}

func savingsToRow(a *domain.SavingsAccount) store.SavingsAccount {
	state := a.State()
	return store.SavingsAccount{
		ID:            state.ID,
		UserID:        state.UserID,
		AccountNumber: state.AccountNumber.Value(),
		Balance:       state.Balance.Minor(),
		Currency:      state.Balance.Currency(),
		InterestRate:  state.InterestRate,
		Status:        string(state.Status),
		CreatedAt:     state.CreatedAt,
		UpdatedAt:     state.UpdatedAt,
	}
}

// restoreAccountNumber takes the prefix from the stored value so accounts
// opened under an earlier prefix still load.
func restoreAccountNumber(value string) (domain.AccountNumber, error) {
	end := strings.IndexFunc(value, unicode.IsDigit)
	if end <= 0 {
		return domain.NewAccountNumber(value, domain.DefaultAccountPrefix)
	}
	return domain.NewAccountNumber(value, value[:end])
}
