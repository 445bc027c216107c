package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"lending/internal/domain"
	"lending/internal/money"
)

var validate = validator.New()

const maxBodyBytes = 1 << 20

// decodeJSON reads and validates a request body into dst. Failures come
// back as InvalidInput errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	return decode(w, r, dst, false)
}

// decodeOptionalJSON is decodeJSON for endpoints whose body may be empty.
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	return decode(w, r, dst, true)
}

func decode(w http.ResponseWriter, r *http.Request, dst any, optional bool) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			if optional {
				return nil
			}
			return domain.NewError(domain.KindInvalidInput, "request body is required")
		}
		return domain.NewError(domain.KindInvalidInput, "invalid payload: %v", err)
	}
	if err := validate.Struct(dst); err != nil {
		return validationError(err)
	}
	return nil
}

func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return domain.NewError(domain.KindInvalidInput, "%v", err)
	}
	problems := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		if fe.Param() != "" {
			problems = append(problems, fmt.Sprintf("%s must satisfy %s=%s", strings.ToLower(fe.Field()), fe.Tag(), fe.Param()))
			continue
		}
		problems = append(problems, fmt.Sprintf("%s is %s", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return domain.NewError(domain.KindInvalidInput, "%s", strings.Join(problems, "; "))
}

func parseAmount(raw, currency string) (money.Money, error) {
	amount, err := money.Parse(raw, currency)
	if err != nil {
		return money.Money{}, domain.NewError(domain.KindInvalidInput, "invalid amount %q: %v", raw, err)
	}
	if !amount.IsPositive() {
		return money.Money{}, domain.NewError(domain.KindInvalidInput, "amount must be positive")
	}
	return amount, nil
}

func parseOptionalAmount(raw, currency string) (*money.Money, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	amount, err := parseAmount(raw, currency)
	if err != nil {
		return nil, err
	}
	return &amount, nil
}

func parseOptionalRate(raw string) (*decimal.Decimal, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	rate, err := decimal.NewFromString(raw)
	if err != nil || rate.IsNegative() {
		return nil, domain.NewError(domain.KindInvalidInput, "invalid interest rate %q", raw)
	}
	return &rate, nil
}

func queryInt(r *http.Request, key string, fallback int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, domain.NewError(domain.KindInvalidInput, "%s must be a non-negative integer", key)
	}
	return value, nil
}

func pagination(r *http.Request) (int, int, error) {
	limit, err := queryInt(r, "limit", 20)
	if err != nil {
		return 0, 0, err
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		return 0, 0, err
	}
	return limit, offset, nil
}
