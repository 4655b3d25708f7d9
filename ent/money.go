package ent

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// Money is a fixed-point amount stored as NUMERIC(10,2). It is rendered in
// JSON as a string with exactly two decimals and accepts both strings and
// numbers on input.
type Money struct {
	decimal.Decimal
}

var ZeroMoney = Money{}

func NewMoney(d decimal.Decimal) Money {
	return Money{Decimal: d}
}

func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return ZeroMoney, fmt.Errorf("parse money %q: %w", s, err)
	}

	return Money{Decimal: d}, nil
}

// MustMoney is ParseMoney for literals.
func MustMoney(s string) Money {
	m, err := ParseMoney(s)
	if err != nil {
		panic(err)
	}

	return m
}

func (m Money) String() string {
	return m.StringFixed(2)
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(m.StringFixed(2))), nil
}

func (m Money) Equal(o Money) bool {
	return m.Decimal.Equal(o.Decimal)
}
