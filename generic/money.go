/*
Package generic provides the domain-agnostic building blocks of the caja engine.

PURPOSE:
  The caja ledger and the migration engine both work on whole collections of
  JSON records kept in a key/value store, on monetary amounts that must never
  go through binary floating point, and on short human-readable codes that
  must be unique inside a collection. Those three concerns live here so the
  domain packages only carry domain rules.

KEY CONCEPTS:
  - Money: exact decimal amount, always rendered with 2 decimals
  - Store: key/value persistence of JSON collections (store.go)
  - CodeGenerator: collision-avoiding random codes (code.go)
  - FormatCurrency: display rendering of amounts (format.go)

DESIGN PRINCIPLES:
  1. Precision: Money wraps decimal.Decimal and is rounded to cents on entry
  2. Whole-collection writes: a collection is always written in one Set call
  3. Injectable randomness: generators take their random source and clock

SEE ALSO:
  - caja/ledger.go: the cash register engine built on these types
  - migration/migration.go: schema upgrades built on the same store helpers
*/
package generic

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Exact decimal amount with two-decimal boundary representation
// =============================================================================

// Money is a monetary amount. Values are kept rounded to cents so that
// every arithmetic result already has the persisted precision.
type Money struct {
	Value decimal.Decimal
}

// Cents is the number of decimal places every amount carries.
const Cents = 2

// ZeroMoney is "0.00".
var ZeroMoney = Money{Value: decimal.Zero}

func NewMoney(d decimal.Decimal) Money { return Money{Value: d.Round(Cents)} }

func NewMoneyFromInt(units int64) Money { return Money{Value: decimal.NewFromInt(units)} }

// ParseMoney parses user or persisted input ("150", "150.5", " 150.50 ").
// The result is rounded to cents.
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, fmt.Errorf("empty amount")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return NewMoney(d), nil
}

// MustParseMoney is ParseMoney for literals; invalid input yields zero.
func MustParseMoney(s string) Money {
	m, err := ParseMoney(s)
	if err != nil {
		return ZeroMoney
	}
	return m
}

func (m Money) Add(o Money) Money            { return Money{Value: m.Value.Add(o.Value)} }
func (m Money) Sub(o Money) Money            { return Money{Value: m.Value.Sub(o.Value)} }
func (m Money) Neg() Money                   { return Money{Value: m.Value.Neg()} }
func (m Money) Abs() Money                   { return Money{Value: m.Value.Abs()} }
func (m Money) IsZero() bool                 { return m.Value.IsZero() }
func (m Money) IsPositive() bool             { return m.Value.IsPositive() }
func (m Money) IsNegative() bool             { return m.Value.IsNegative() }
func (m Money) Equal(o Money) bool           { return m.Value.Equal(o.Value) }
func (m Money) GreaterThan(o Money) bool     { return m.Value.GreaterThan(o.Value) }
func (m Money) LessThan(o Money) bool        { return m.Value.LessThan(o.Value) }
func (m Money) LessThanOrEqual(o Money) bool { return m.Value.LessThanOrEqual(o.Value) }

// Percent returns m as a percentage of base, rounded to 2 decimals.
// A zero base yields zero.
func (m Money) Percent(base Money) decimal.Decimal {
	if base.IsZero() {
		return decimal.Zero
	}
	return m.Value.Div(base.Value).Mul(decimal.NewFromInt(100)).Round(Cents)
}

// String renders the persisted form: always exactly two decimals.
func (m Money) String() string { return m.Value.StringFixed(Cents) }

// MarshalJSON writes the amount as a two-decimal JSON string.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON accepts both strings ("80.00") and bare numbers (80), since
// older records were written either way.
func (m *Money) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" || raw == `""` {
		*m = ZeroMoney
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		raw = s
	}
	parsed, err := ParseMoney(raw)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
