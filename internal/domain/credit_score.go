package domain

import (
	"sort"

	"github.com/shopspring/decimal"
)

const (
	MinCreditScore = 300
	MaxCreditScore = 850
)

type ScoreCategory string

const (
	CategoryExcellent ScoreCategory = "excellent"
	CategoryGood      ScoreCategory = "good"
	CategoryFair      ScoreCategory = "fair"
	CategoryPoor      ScoreCategory = "poor"
	CategoryVeryPoor  ScoreCategory = "very_poor"
)

// CreditScore is a bureau score bounded to [300, 850].
type CreditScore struct {
	value int
}

func NewCreditScore(value int) (CreditScore, error) {
	if value < MinCreditScore || value > MaxCreditScore {
		return CreditScore{}, invalidInput("credit score %d outside [%d, %d]", value, MinCreditScore, MaxCreditScore)
	}
	return CreditScore{value: value}, nil
}

func (s CreditScore) Value() int { return s.value }

func (s CreditScore) Category() ScoreCategory {
	switch {
	case s.value >= 750:
		return CategoryExcellent
	case s.value >= 700:
		return CategoryGood
	case s.value >= 650:
		return CategoryFair
	case s.value >= 600:
		return CategoryPoor
	default:
		return CategoryVeryPoor
	}
}

// InterestRate is the annual percentage the default policy assigns.
func (s CreditScore) InterestRate() decimal.Decimal {
	return DefaultRatePolicy().RateFor(s)
}

// RateTier assigns Rate to every score at or above MinScore.
type RateTier struct {
	MinScore int
	Rate     decimal.Decimal
}

// RatePolicy maps scores to annual interest rates. It is the only place the
// tier table lives; every caller goes through RateFor.
type RatePolicy struct {
	tiers    []RateTier
	fallback decimal.Decimal
}

func DefaultRatePolicy() RatePolicy {
	return RatePolicy{
		tiers: []RateTier{
			{MinScore: 750, Rate: decimal.NewFromFloat(5.0)},
			{MinScore: 700, Rate: decimal.NewFromFloat(7.5)},
			{MinScore: 650, Rate: decimal.NewFromFloat(10.0)},
			{MinScore: 600, Rate: decimal.NewFromFloat(15.0)},
		},
		fallback: decimal.NewFromFloat(20.0),
	}
}

// NewRatePolicy validates and orders a custom tier table. fallback applies to
// scores below the lowest tier.
func NewRatePolicy(tiers []RateTier, fallback decimal.Decimal) (RatePolicy, error) {
	if fallback.IsNegative() {
		return RatePolicy{}, invalidInput("fallback rate cannot be negative")
	}
	ordered := append([]RateTier(nil), tiers...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].MinScore > ordered[j].MinScore })
	for i, tier := range ordered {
		if tier.Rate.IsNegative() {
			return RatePolicy{}, invalidInput("rate for score %d cannot be negative", tier.MinScore)
		}
		if tier.MinScore < MinCreditScore || tier.MinScore > MaxCreditScore {
			return RatePolicy{}, invalidInput("tier score %d outside [%d, %d]", tier.MinScore, MinCreditScore, MaxCreditScore)
		}
		if i > 0 && ordered[i-1].MinScore == tier.MinScore {
			return RatePolicy{}, invalidInput("duplicate tier for score %d", tier.MinScore)
		}
	}
	return RatePolicy{tiers: ordered, fallback: fallback}, nil
}

func (p RatePolicy) RateFor(score CreditScore) decimal.Decimal {
	for _, tier := range p.tiers {
		if score.value >= tier.MinScore {
			return tier.Rate
		}
	}
	return p.fallback
}

func (p RatePolicy) Tiers() []RateTier {
	return append([]RateTier(nil), p.tiers...)
}
