package valueobjects

import (
	"math/big"
	"regexp"
	"strings"

	apperrors "depositgate/internal/shared_kernel/errors"
)

var amountMinorPattern = regexp.MustCompile(`^[0-9]{1,78}$`)

func NormalizeAmountMinor(raw string) (string, *apperrors.AppError) {
	value := strings.TrimSpace(raw)
	if !amountMinorPattern.MatchString(value) {
		return "", apperrors.NewValidation(
			"invalid_request",
			"amount_minor must be an integer string with 1 to 78 digits",
			map[string]any{"field": "amount_minor"},
		)
	}

	return value, nil
}

// CompareAmountMinor returns -1, 0 or 1 for a < b, a == b, a > b. Both inputs
// must already be normalized integer strings.
func CompareAmountMinor(a, b string) (int, *apperrors.AppError) {
	left, ok := new(big.Int).SetString(strings.TrimSpace(a), 10)
	if !ok {
		return 0, apperrors.NewInternal(
			"amount_minor_invalid",
			"amount_minor is not a base-10 integer",
			map[string]any{"value": a},
		)
	}
	right, ok := new(big.Int).SetString(strings.TrimSpace(b), 10)
	if !ok {
		return 0, apperrors.NewInternal(
			"amount_minor_invalid",
			"amount_minor is not a base-10 integer",
			map[string]any{"value": b},
		)
	}

	return left.Cmp(right), nil
}
