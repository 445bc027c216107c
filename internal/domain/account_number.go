package domain

import (
	"fmt"
	"math/rand"
	"strings"
	"time"
)

const (
	DefaultAccountPrefix   = "SAV"
	MinAccountNumberLength = 10
)

type AccountNumber struct {
	value  string
	prefix string
}

func NewAccountNumber(value, prefix string) (AccountNumber, error) {
	value = strings.TrimSpace(value)
	if prefix == "" {
		return AccountNumber{}, invalidInput("account number prefix is required")
	}
	if !strings.HasPrefix(value, prefix) {
		return AccountNumber{}, invalidInput("account number %q must start with %q", value, prefix)
	}
	if len(value) < MinAccountNumberLength {
		return AccountNumber{}, invalidInput("account number %q shorter than %d characters", value, MinAccountNumberLength)
	}
	return AccountNumber{value: value, prefix: prefix}, nil
}

// ValidAccountPrefix reports whether prefix is one or more ASCII capital
// letters. Stored numbers are split back into prefix and digits on load.
func ValidAccountPrefix(prefix string) bool {
	if prefix == "" {
		return false
	}
	for _, r := range prefix {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

// GenerateAccountNumber builds prefix + unix millis + a 4 digit random suffix.
func GenerateAccountNumber(prefix string, now time.Time) (AccountNumber, error) {
	if !ValidAccountPrefix(prefix) {
		return AccountNumber{}, invalidInput("account number prefix %q must be capital letters only", prefix)
	}
	value := fmt.Sprintf("%s%d%04d", prefix, now.UnixMilli(), rand.Intn(10000))
	return NewAccountNumber(value, prefix)
}

func (a AccountNumber) Value() string  { return a.value }
func (a AccountNumber) Prefix() string { return a.prefix }
func (a AccountNumber) String() string { return a.value }
