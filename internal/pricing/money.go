package pricing

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// ErrMoneyOutOfRange: сумма в центах не помещается в int64.
var ErrMoneyOutOfRange = errors.New("money amount out of range")

var (
	minMinor = decimal.NewFromInt(math.MinInt64)
	maxMinor = decimal.NewFromInt(math.MaxInt64)
)

// Money: сумма в центах, которая в JSON выглядит как число с двумя знаками (117.99).
type Money int64

// Decimal переводит сумму в десятичное представление.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(int64(m), -2)
}

func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// MarshalJSON пишет сумму числом, а не строкой.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON принимает число или строку ("19.99"), лишние знаки округляются до цента.
func (m *Money) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("parse money: %w", err)
	}
	v, err := FromDecimal(d)
	if err != nil {
		return fmt.Errorf("parse money: %w", err)
	}
	*m = v
	return nil
}

// FromDecimal переводит десятичную сумму в центы с округлением half-up.
func FromDecimal(d decimal.Decimal) (Money, error) {
	minor := d.Shift(2).Round(0)
	if minor.LessThan(minMinor) || minor.GreaterThan(maxMinor) {
		return 0, fmt.Errorf("%w: %s", ErrMoneyOutOfRange, d.String())
	}
	return Money(minor.IntPart()), nil
}

// ParseMoney разбирает строку вида "299.99".
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse money %q: %w", s, err)
	}
	m, err := FromDecimal(d)
	if err != nil {
		return 0, fmt.Errorf("parse money %q: %w", s, err)
	}
	return m, nil
}
