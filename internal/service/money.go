package service

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var errInvalidPrice = errors.New("invalid price")

// priceToCents converts a major-unit price as stored in pedidos.preco into
// minor units. "12,50" and "12.50" are both accepted.
func priceToCents(raw *string) (int64, error) {
	if raw == nil {
		return 0, errInvalidPrice
	}
	s := strings.TrimSpace(*raw)
	s = strings.TrimPrefix(s, "R$")
	s = strings.TrimSpace(s)
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, errInvalidPrice
	}
	cents := d.Shift(2).Round(0).IntPart()
	if cents <= 0 {
		return 0, errInvalidPrice
	}
	return cents, nil
}

// parseQuantity never fails: anything that is not a positive integer that
// fits the INTEGER column is 1
func parseQuantity(raw *string) int {
	if raw == nil {
		return 1
	}
	s := strings.TrimSpace(*raw)
	if n, err := strconv.Atoi(s); err == nil {
		if n <= 0 || n > math.MaxInt32 {
			return 1
		}
		return n
	}
	d, err := decimal.NewFromString(s)
	if err != nil || !d.IsPositive() || d.GreaterThan(decimal.NewFromInt(math.MaxInt32)) {
		return 1
	}
	if n := int(d.IntPart()); n > 0 {
		return n
	}
	return 1
}

// centsToMajor converts minor units to a two-place decimal
func centsToMajor(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}
