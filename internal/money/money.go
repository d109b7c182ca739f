package money

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

type Currency string

const USD Currency = "USD"

// Scale is the number of fractional digits the ledger columns keep.
const Scale int32 = 6

// ErrCurrencyMismatch is the panic value for arithmetic across currencies.
var ErrCurrencyMismatch = errors.New("money: currency mismatch")

// Money is a fixed-point amount tagged with its currency. The zero value is
// an untagged zero and adopts the currency of the first operand it meets.
type Money struct {
	Amount   decimal.Decimal
	Currency Currency
}

func New(amount decimal.Decimal, cur Currency) Money {
	return Money{Amount: amount, Currency: cur}
}

func Zero(cur Currency) Money {
	return Money{Amount: decimal.Zero, Currency: cur}
}

// Parse reads a decimal string such as "12.50".
func Parse(s string, cur Currency) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Money{}, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return Money{Amount: d, Currency: cur}, nil
}

func MustParse(s string, cur Currency) Money {
	m, err := Parse(s, cur)
	if err != nil {
		panic(err)
	}
	return m
}

func (m Money) currencyWith(o Money) Currency {
	switch {
	case m.Currency == "":
		return o.Currency
	case o.Currency == "" || o.Currency == m.Currency:
		return m.Currency
	default:
		panic(fmt.Errorf("%w: %s vs %s", ErrCurrencyMismatch, m.Currency, o.Currency))
	}
}

func (m Money) Add(o Money) Money {
	return Money{Amount: m.Amount.Add(o.Amount), Currency: m.currencyWith(o)}
}

func (m Money) Sub(o Money) Money {
	return Money{Amount: m.Amount.Sub(o.Amount), Currency: m.currencyWith(o)}
}

// Mul scales the amount by a dimensionless factor.
func (m Money) Mul(f decimal.Decimal) Money {
	return Money{Amount: m.Amount.Mul(f), Currency: m.Currency}
}

// Round rounds half away from zero to Scale digits, matching NUMERIC(20, 6).
func (m Money) Round() Money {
	return Money{Amount: m.Amount.Round(Scale), Currency: m.Currency}
}

// FitsScale reports whether the amount is representable without rounding.
func (m Money) FitsScale() bool {
	return m.Amount.Equal(m.Amount.Round(Scale))
}

func (m Money) Neg() Money {
	return Money{Amount: m.Amount.Neg(), Currency: m.Currency}
}

func (m Money) Cmp(o Money) int {
	m.currencyWith(o)
	return m.Amount.Cmp(o.Amount)
}

func (m Money) Equal(o Money) bool              { return m.Cmp(o) == 0 }
func (m Money) LessThan(o Money) bool           { return m.Cmp(o) < 0 }
func (m Money) GreaterThan(o Money) bool        { return m.Cmp(o) > 0 }
func (m Money) GreaterThanOrEqual(o Money) bool { return m.Cmp(o) >= 0 }
func (m Money) IsZero() bool                    { return m.Amount.IsZero() }
func (m Money) IsNegative() bool                { return m.Amount.IsNegative() }
func (m Money) IsPositive() bool                { return m.Amount.IsPositive() }

// String renders the amount without a currency suffix, as stored in NUMERIC columns.
func (m Money) String() string {
	return m.Amount.String()
}

func Sum(cur Currency, items ...Money) Money {
	total := Zero(cur)
	for _, it := range items {
		total = total.Add(it)
	}
	return total
}

type moneyJSON struct {
	Amount   string   `json:"amount"`
	Currency Currency `json:"currency"`
}

func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(moneyJSON{Amount: m.Amount.String(), Currency: m.Currency})
}

func (m *Money) UnmarshalJSON(b []byte) error {
	var raw moneyJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	d, err := decimal.NewFromString(raw.Amount)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", raw.Amount, err)
	}
	m.Amount = d
	m.Currency = raw.Currency
	return nil
}
