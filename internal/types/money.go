// README: Common money value object used across modules. Amounts are minor units.
package types

const DefaultCurrency = "INR"

type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// FromMajor converts whole currency units (rupees) into a Money value.
func FromMajor(units int64, currency string) Money {
	return Money{Amount: units * 100, Currency: currency}
}

func (m Money) Major() float64 {
	return float64(m.Amount) / 100
}

func (m Money) Add(o Money) Money {
	return Money{Amount: m.Amount + o.Amount, Currency: m.currencyOr(o)}
}

func (m Money) currencyOr(o Money) string {
	if m.Currency != "" {
		return m.Currency
	}
	return o.Currency
}
