package money

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const scale = 2

var (
	ErrNegativeAmount   = errors.New("money amount cannot be negative")
	ErrCurrencyMismatch = errors.New("money currency mismatch")
	ErrMissingCurrency  = errors.New("money currency is required")
)

var hundred = decimal.NewFromInt(100)

// Money is an immutable non-negative amount rounded to two places and tagged
// with an ISO currency code. The zero value is not usable; build values with
// New, FromMinor, Parse or Zero.
type Money struct {
	amount   decimal.Decimal
	currency string
}

func New(amount decimal.Decimal, currency string) (Money, error) {
	code := strings.ToUpper(strings.TrimSpace(currency))
	if code == "" {
		return Money{}, ErrMissingCurrency
	}
	rounded := amount.Round(scale)
	if rounded.IsNegative() {
		return Money{}, ErrNegativeAmount
	}
	return Money{amount: rounded, currency: code}, nil
}

func Zero(currency string) Money {
	return Money{amount: decimal.Zero, currency: strings.ToUpper(strings.TrimSpace(currency))}
}

// FromMinor builds a value from storage minor units.
func FromMinor(minor int64, currency string) (Money, error) {
	return New(decimal.New(minor, -scale), currency)
}

// Parse reads a decimal string with at most two fractional digits.
func Parse(input, currency string) (Money, error) {
	minor, err := ParseMinor(input)
	if err != nil {
		return Money{}, err
	}
	return FromMinor(minor, currency)
}

func (m Money) Amount() decimal.Decimal { return m.amount }
func (m Money) Currency() string        { return m.currency }

// Minor returns the amount in minor units, the representation used by storage.
func (m Money) Minor() int64 {
	return m.amount.Mul(hundred).IntPart()
}

func (m Money) IsZero() bool     { return m.amount.IsZero() }
func (m Money) IsPositive() bool { return m.amount.IsPositive() }

func (m Money) Add(other Money) (Money, error) {
	if err := m.sameCurrency(other); err != nil {
		return Money{}, err
	}
	return Money{amount: m.amount.Add(other.amount), currency: m.currency}, nil
}

func (m Money) Subtract(other Money) (Money, error) {
	if err := m.sameCurrency(other); err != nil {
		return Money{}, err
	}
	result := m.amount.Sub(other.amount)
	if result.IsNegative() {
		return Money{}, ErrNegativeAmount
	}
	return Money{amount: result, currency: m.currency}, nil
}

// Multiply scales the amount by factor and rounds the product to two places.
func (m Money) Multiply(factor decimal.Decimal) (Money, error) {
	return New(m.amount.Mul(factor), m.currency)
}

// Compare returns -1, 0 or 1 like decimal.Cmp.
func (m Money) Compare(other Money) (int, error) {
	if err := m.sameCurrency(other); err != nil {
		return 0, err
	}
	return m.amount.Cmp(other.amount), nil
}

func (m Money) GreaterThan(other Money) bool {
	cmp, err := m.Compare(other)
	return err == nil && cmp > 0
}

func (m Money) LessThan(other Money) bool {
	cmp, err := m.Compare(other)
	return err == nil && cmp < 0
}

func (m Money) Equal(other Money) bool {
	cmp, err := m.Compare(other)
	return err == nil && cmp == 0
}

func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.amount.StringFixed(scale), m.currency)
}

func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Amount   string `json:"amount"`
		Currency string `json:"currency"`
	}{Amount: m.amount.StringFixed(scale), Currency: m.currency})
}

func (m Money) sameCurrency(other Money) error {
	if m.currency != other.currency {
		return fmt.Errorf("%w: %s vs %s", ErrCurrencyMismatch, m.currency, other.currency)
	}
	return nil
}
