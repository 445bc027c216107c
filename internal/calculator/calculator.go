// Package calculator quotes amortized repayment plans. It is used for
// illustrative quotes; repayment accounting on a credit request uses the
// aggregate's simple-interest total.
package calculator

import (
	"lending/internal/domain"
	"lending/internal/money"

	"github.com/shopspring/decimal"
)

var (
	hundred             = decimal.NewFromInt(100)
	twelve              = decimal.NewFromInt(12)
	one                 = decimal.NewFromInt(1)
	minimumRepaymentPct = decimal.RequireFromString("0.01")
	minimumRepaymentAbs = decimal.NewFromInt(100)
)

type Installment struct {
	Month            int         `json:"month"`
	Payment          money.Money `json:"payment"`
	Principal        money.Money `json:"principal"`
	Interest         money.Money `json:"interest"`
	RemainingBalance money.Money `json:"remaining_balance"`
}

type Plan struct {
	MonthlyPayment money.Money   `json:"monthly_payment"`
	TotalAmount    money.Money   `json:"total_amount"`
	TotalInterest  money.Money   `json:"total_interest"`
	Schedule       []Installment `json:"schedule"`
}

type Calculator struct {
	policy domain.RatePolicy
}

func New(policy domain.RatePolicy) *Calculator {
	return &Calculator{policy: policy}
}

func (c *Calculator) InterestRate(score domain.CreditScore) decimal.Decimal {
	return c.policy.RateFor(score)
}

// MonthlyPayment is P*r*(1+r)^n / ((1+r)^n - 1) with r the monthly rate, or
// P/n when the rate is zero.
func (c *Calculator) MonthlyPayment(principal money.Money, annualRate decimal.Decimal, termMonths int) (money.Money, error) {
	if err := validate(principal, annualRate, termMonths); err != nil {
		return money.Money{}, err
	}
	n := decimal.NewFromInt(int64(termMonths))
	r := monthlyRate(annualRate)
	if r.IsZero() {
		return money.New(principal.Amount().Div(n), principal.Currency())
	}
	growth := one.Add(r).Pow(n)
	payment := principal.Amount().Mul(r).Mul(growth).Div(growth.Sub(one))
	return money.New(payment, principal.Currency())
}

func (c *Calculator) TotalInterest(principal money.Money, annualRate decimal.Decimal, termMonths int) (money.Money, error) {
	payment, err := c.MonthlyPayment(principal, annualRate, termMonths)
	if err != nil {
		return money.Money{}, err
	}
	total := payment.Amount().Mul(decimal.NewFromInt(int64(termMonths)))
	return money.New(decimal.Max(total.Sub(principal.Amount()), decimal.Zero), principal.Currency())
}

// PaymentSchedule amortizes month by month. Interest accrues on the remaining
// balance and the last row takes whatever principal rounding left over.
func (c *Calculator) PaymentSchedule(principal money.Money, annualRate decimal.Decimal, termMonths int) ([]Installment, error) {
	payment, err := c.MonthlyPayment(principal, annualRate, termMonths)
	if err != nil {
		return nil, err
	}
	r := monthlyRate(annualRate)
	currency := principal.Currency()
	remaining := principal.Amount()
	schedule := make([]Installment, 0, termMonths)
	for month := 1; month <= termMonths; month++ {
		interest := remaining.Mul(r).Round(2)
		principalPart := payment.Amount().Sub(interest)
		if month == termMonths || principalPart.GreaterThan(remaining) {
			principalPart = remaining
		}
		principalPart = decimal.Max(principalPart, decimal.Zero)
		remaining = decimal.Max(remaining.Sub(principalPart), decimal.Zero)

		row, err := installment(month, principalPart.Add(interest), principalPart, interest, remaining, currency)
		if err != nil {
			return nil, err
		}
		schedule = append(schedule, row)
	}
	return schedule, nil
}

// MinimumRepayment is the larger of 1% of principal and 100.
func (c *Calculator) MinimumRepayment(principal money.Money) (money.Money, error) {
	if !principal.IsPositive() {
		return money.Money{}, domain.NewError(domain.KindInvalidInput, "principal must be positive")
	}
	return money.New(decimal.Max(principal.Amount().Mul(minimumRepaymentPct), minimumRepaymentAbs), principal.Currency())
}

func (c *Calculator) RepaymentPlan(principal money.Money, annualRate decimal.Decimal, termMonths int) (Plan, error) {
	payment, err := c.MonthlyPayment(principal, annualRate, termMonths)
	if err != nil {
		return Plan{}, err
	}
	interest, err := c.TotalInterest(principal, annualRate, termMonths)
	if err != nil {
		return Plan{}, err
	}
	total, err := principal.Add(interest)
	if err != nil {
		return Plan{}, err
	}
	schedule, err := c.PaymentSchedule(principal, annualRate, termMonths)
	if err != nil {
		return Plan{}, err
	}
	return Plan{MonthlyPayment: payment, TotalAmount: total, TotalInterest: interest, Schedule: schedule}, nil
}

func monthlyRate(annualRate decimal.Decimal) decimal.Decimal {
	return annualRate.Div(hundred).Div(twelve)
}

func validate(principal money.Money, annualRate decimal.Decimal, termMonths int) error {
	switch {
	case !principal.IsPositive():
		return domain.NewError(domain.KindInvalidInput, "principal must be positive")
	case annualRate.IsNegative():
		return domain.NewError(domain.KindInvalidInput, "interest rate cannot be negative")
	case termMonths <= 0:
		return domain.NewError(domain.KindInvalidInput, "term must be at least one month")
	}
	return nil
}

func installment(month int, payment, principal, interest, remaining decimal.Decimal, currency string) (Installment, error) {
	values := make([]money.Money, 4)
	for i, amount := range []decimal.Decimal{payment, principal, interest, remaining} {
		m, err := money.New(amount, currency)
		if err != nil {
			return Installment{}, err
		}
		values[i] = m
	}
	return Installment{Month: month, Payment: values[0], Principal: values[1], Interest: values[2], RemainingBalance: values[3]}, nil
}
