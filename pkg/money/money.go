// Package money formats bulletin prices as currency amounts. Amounts are held
// in minor units (centavos) so rounding happens once, on the way in.
package money

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// PHP is the currency of DA price bulletins.
const PHP = "PHP"

// Money represents a monetary value with currency.
type Money struct {
	m *money.Money
}

// New creates a new Money value from minor units and currency code.
func New(amountCents int64, currencyCode string) *Money {
	return &Money{
		m: money.New(amountCents, currencyCode),
	}
}

// NewFromFloat creates Money from a floating-point value, rounding half away
// from zero to the currency's minor unit.
func NewFromFloat(amount float64, currencyCode string) *Money {
	return NewFromDecimal(decimal.NewFromFloat(amount), currencyCode)
}

// NewFromDecimal creates Money from a decimal.Decimal value.
func NewFromDecimal(amount decimal.Decimal, currencyCode string) *Money {
	currency := money.GetCurrency(currencyCode)
	if currency == nil {
		currency = money.GetCurrency(PHP)
		currencyCode = PHP
	}

	multiplier := decimal.New(1, int32(currency.Fraction))
	cents := amount.Mul(multiplier).Round(0).IntPart()

	return New(cents, currencyCode)
}

// NewFromString parses an amount such as "1,234.56" or "₱ 45.50".
func NewFromString(amount string, currencyCode string) (*Money, error) {
	amount = strings.TrimSpace(amount)
	for _, s := range []string{" ", ",", "₱", "PHP", "Php", "P"} {
		amount = strings.ReplaceAll(amount, s, "")
	}

	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount: %w", err)
	}

	return NewFromDecimal(d, currencyCode), nil
}

// Amount returns the amount in minor units
func (m *Money) Amount() int64 {
	if m == nil || m.m == nil {
		return 0
	}
	return m.m.Amount()
}

// Currency returns the ISO-4217 currency code
func (m *Money) Currency() string {
	if m == nil || m.m == nil {
		return ""
	}
	return m.m.Currency().Code
}

// Compare returns -1 if m < other, 0 if equal, 1 if m > other.
// Amounts in different currencies compare as equal.
func (m *Money) Compare(other *Money) int {
	if m == nil || m.m == nil || other == nil || other.m == nil {
		return 0
	}
	cmp, err := m.m.Compare(other.m)
	if err != nil {
		return 0
	}
	return cmp
}

// Display returns a formatted string with the currency symbol.
func (m *Money) Display() string {
	if m == nil || m.m == nil {
		return ""
	}
	return m.m.Display()
}

// String returns the amount as a decimal string (e.g., "1234.56")
func (m *Money) String() string {
	if m == nil || m.m == nil {
		return "0.00"
	}
	return m.ToDecimal().StringFixed(int32(m.m.Currency().Fraction))
}

// ToDecimal converts to decimal.Decimal for precise calculations
func (m *Money) ToDecimal() decimal.Decimal {
	if m == nil || m.m == nil {
		return decimal.Zero
	}
	currency := m.m.Currency()
	d := decimal.NewFromInt(m.m.Amount())
	divisor := decimal.New(1, int32(currency.Fraction))
	return d.Div(divisor)
}

// MarshalJSON encodes amount, currency and display form.
func (m *Money) MarshalJSON() ([]byte, error) {
	if m == nil || m.m == nil {
		return json.Marshal(nil)
	}
	return json.Marshal(map[string]interface{}{
		"amount":   m.Amount(),
		"currency": m.Currency(),
		"display":  m.Display(),
	})
}

// Price converts an optional bulletin value into Money. A nil value stays nil.
func Price(v *float64) *Money {
	if v == nil {
		return nil
	}
	return NewFromFloat(*v, PHP)
}

// DisplayPrice formats an optional value; nil renders as an empty string.
func DisplayPrice(v *float64) string {
	return Price(v).Display()
}

// DisplayRange formats a low/high pair. Equal bounds render as one amount.
func DisplayRange(low, high *float64) string {
	lo, hi := Price(low), Price(high)
	switch {
	case lo == nil && hi == nil:
		return ""
	case lo == nil:
		return hi.Display()
	case hi == nil || lo.Compare(hi) == 0:
		return lo.Display()
	}
	return lo.Display() + " - " + hi.Display()
}
