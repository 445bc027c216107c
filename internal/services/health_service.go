package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"lending/internal/domain"
	"lending/internal/money"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

var (
	hundred           = decimal.NewFromInt(100)
	weightCredit      = decimal.RequireFromString("0.35")
	weightSavings     = decimal.RequireFromString("0.25")
	weightDebtIncome  = decimal.RequireFromString("0.25")
	weightPunctuality = decimal.RequireFromString("0.15")
	scoreRange        = decimal.NewFromInt(domain.MaxCreditScore - domain.MinCreditScore)
)

type HealthRating string

const (
	HealthExcellent HealthRating = "excellent"
	HealthGood      HealthRating = "good"
	HealthFair      HealthRating = "fair"
	HealthPoor      HealthRating = "poor"
	HealthCritical  HealthRating = "critical"
)

// HealthComponents are the 0-100 partial scores behind a FinancialHealth.
type HealthComponents struct {
	CreditScore    int `json:"credit_score"`
	SavingsToDebt  int `json:"savings_to_debt"`
	DebtToIncome   int `json:"debt_to_income"`
	PaymentHistory int `json:"payment_history"`
}

type FinancialHealth struct {
	UserID          string           `json:"user_id"`
	Score           int              `json:"score"`
	Rating          HealthRating     `json:"rating"`
	Components      HealthComponents `json:"components"`
	CreditScore     int              `json:"credit_score"`
	Savings         money.Money      `json:"savings"`
	OutstandingDebt money.Money      `json:"outstanding_debt"`
	Recommendations []string         `json:"recommendations"`
}

type HealthService struct {
	profiles   CreditProfileStore
	credits    CreditRequestStore
	savings    SavingsStore
	repayments RepaymentStore
	currency   string
	log        logrus.FieldLogger
}

func NewHealthService(profiles CreditProfileStore, credits CreditRequestStore, savings SavingsStore, repayments RepaymentStore, currency string, log logrus.FieldLogger) *HealthService {
	return &HealthService{
		profiles:   profiles,
		credits:    credits,
		savings:    savings,
		repayments: repayments,
		currency:   currency,
		log:        log,
	}
}

// FinancialHealth scores the user from 0 to 100: credit score 35%, savings to
// debt 25%, debt to annual income 25% and on-time repayments 15%.
func (s *HealthService) FinancialHealth(ctx context.Context, userID string) (health FinancialHealth, err error) {
	ctx, done := observe(ctx, "health.evaluate", attribute.String("user_id", userID))
	defer func() { done(err) }()

	profile, err := s.profiles.Get(ctx, userID)
	if err != nil {
		return FinancialHealth{}, notFound(err, "credit profile for user %s not found", userID)
	}
	score, err := domain.NewCreditScore(profile.CreditScore)
	if err != nil {
		return FinancialHealth{}, err
	}

	savings := money.Zero(s.currency)
	account, err := s.savings.GetByUser(ctx, userID)
	switch {
	case err == nil:
		if savings, err = money.FromMinor(account.Balance, account.Currency); err != nil {
			return FinancialHealth{}, err
		}
	case !errors.Is(err, sql.ErrNoRows):
		return FinancialHealth{}, fmt.Errorf("load savings account: %w", err)
	}

	debt, err := s.outstandingDebt(ctx, userID)
	if err != nil {
		return FinancialHealth{}, err
	}
	punctuality, err := s.repayments.PunctualityByUser(ctx, userID)
	if err != nil {
		return FinancialHealth{}, fmt.Errorf("load repayment history: %w", err)
	}
	income, err := money.FromMinor(profile.MonthlyIncome, s.currency)
	if err != nil {
		return FinancialHealth{}, err
	}

	components := HealthComponents{
		CreditScore:    percent(creditComponent(score)),
		SavingsToDebt:  percent(savingsToDebtComponent(savings.Amount(), debt.Amount())),
		DebtToIncome:   percent(debtToIncomeComponent(debt.Amount(), income.Amount())),
		PaymentHistory: percent(punctualityComponent(punctuality.OnTime, punctuality.Total)),
	}
	total := creditComponent(score).Mul(weightCredit).
		Add(savingsToDebtComponent(savings.Amount(), debt.Amount()).Mul(weightSavings)).
		Add(debtToIncomeComponent(debt.Amount(), income.Amount()).Mul(weightDebtIncome)).
		Add(punctualityComponent(punctuality.OnTime, punctuality.Total).Mul(weightPunctuality))

	health = FinancialHealth{
		UserID:          userID,
		Score:           percent(total),
		Components:      components,
		CreditScore:     score.Value(),
		Savings:         savings,
		OutstandingDebt: debt,
	}
	health.Rating = ratingFor(health.Score)
	health.Recommendations = recommendations(components)
	s.log.WithFields(logrus.Fields{"user_id": userID, "score": health.Score, "rating": health.Rating}).Debug("financial health evaluated")
	return health, nil
}

func (s *HealthService) outstandingDebt(ctx context.Context, userID string) (money.Money, error) {
	debt := money.Zero(s.currency)
	offset := 0
	for {
		rows, err := s.credits.ListByUser(ctx, userID, 100, offset)
		if err != nil {
			return money.Money{}, fmt.Errorf("list credit requests: %w", err)
		}
		for _, row := range rows {
			if row.Status != string(domain.CreditActive) && row.Status != string(domain.CreditDefaulted) {
				continue
			}
			credit, err := creditFromRow(row)
			if err != nil {
				return money.Money{}, err
			}
			if debt, err = debt.Add(credit.RemainingBalance()); err != nil {
				return money.Money{}, err
			}
		}
		if len(rows) < 100 {
			return debt, nil
		}
		offset += len(rows)
	}
}

func creditComponent(score domain.CreditScore) decimal.Decimal {
	return decimal.NewFromInt(int64(score.Value() - domain.MinCreditScore)).Div(scoreRange).Mul(hundred)
}

func savingsToDebtComponent(savings, debt decimal.Decimal) decimal.Decimal {
	if debt.IsZero() {
		return hundred
	}
	return decimal.Min(savings.Div(debt), decimal.NewFromInt(1)).Mul(hundred)
}

func debtToIncomeComponent(debt, monthlyIncome decimal.Decimal) decimal.Decimal {
	if monthlyIncome.IsZero() {
		if debt.IsZero() {
			return hundred
		}
		return decimal.Zero
	}
	ratio := debt.Div(monthlyIncome.Mul(decimal.NewFromInt(12)))
	return decimal.Max(decimal.Zero, decimal.NewFromInt(1).Sub(ratio)).Mul(hundred)
}

func punctualityComponent(onTime, total int) decimal.Decimal {
	if total == 0 {
		return hundred
	}
	return decimal.NewFromInt(int64(onTime)).Div(decimal.NewFromInt(int64(total))).Mul(hundred)
}

func percent(value decimal.Decimal) int {
	return int(value.Round(0).IntPart())
}

func ratingFor(score int) HealthRating {
	switch {
	case score >= 80:
		return HealthExcellent
	case score >= 65:
		return HealthGood
	case score >= 50:
		return HealthFair
	case score >= 35:
		return HealthPoor
	default:
		return HealthCritical
	}
}

func recommendations(c HealthComponents) []string {
	var out []string
	if c.CreditScore < 50 {
		out = append(out, "Pay bills on time and keep credit utilization low to raise your credit score.")
	}
	if c.SavingsToDebt < 50 {
		out = append(out, "Build savings until they cover at least half of your outstanding debt.")
	}
	if c.DebtToIncome < 60 {
		out = append(out, "Reduce outstanding debt relative to your annual income before taking new credit.")
	}
	if c.PaymentHistory < 90 {
		out = append(out, "Make repayments on or before their due date.")
	}
	if len(out) == 0 {
		out = append(out, "Keep up your current saving and repayment habits.")
	}
	return out
}
