package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// LedgerScale is the number of decimal places the ledger stores for prices
// and totals.
const LedgerScale int32 = 2

// ComputeTotal fills in each item's line total and returns the invoice total.
// Prices finer than LedgerScale are rejected so the stored total always equals
// the sum of quantity x price. The input slice is not modified.
func ComputeTotal(items []InvoiceItem) ([]InvoiceItem, decimal.Decimal, error) {
	out := make([]InvoiceItem, len(items))
	total := decimal.Zero
	for i, item := range items {
		if item.Quantity <= 0 {
			return nil, decimal.Zero, fmt.Errorf("%w: item %d quantity must be positive", ErrInvalidAmount, i)
		}
		if item.Price.IsNegative() {
			return nil, decimal.Zero, fmt.Errorf("%w: item %d price must not be negative", ErrInvalidAmount, i)
		}
		if err := CheckScale(item.Price, LedgerScale); err != nil {
			return nil, decimal.Zero, fmt.Errorf("item %d price: %w", i, err)
		}
		item.Total = item.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		total = total.Add(item.Total)
		out[i] = item
	}
	return out, total, nil
}

var zeroDecimalCurrencies = map[string]struct{}{
	"bif": {}, "clp": {}, "djf": {}, "gnf": {}, "jpy": {}, "kmf": {}, "krw": {}, "mga": {},
	"pyg": {}, "rwf": {}, "ugx": {}, "vnd": {}, "vuv": {}, "xaf": {}, "xof": {}, "xpf": {},
}

// NormalizeCurrency lowercases a currency code and falls back to def when empty.
func NormalizeCurrency(currency, def string) string {
	c := strings.ToLower(strings.TrimSpace(currency))
	if c == "" {
		c = strings.ToLower(strings.TrimSpace(def))
	}
	return c
}

// MinorUnitExponent is the number of decimal places in the currency's minor unit.
func MinorUnitExponent(currency string) int32 {
	if _, ok := zeroDecimalCurrencies[strings.ToLower(strings.TrimSpace(currency))]; ok {
		return 0
	}
	return 2
}

// CheckScale fails with ErrInvalidAmount when amount carries more than places
// significant decimal places. Trailing zeros are allowed.
func CheckScale(amount decimal.Decimal, places int32) error {
	if !amount.Equal(amount.Truncate(places)) {
		return fmt.Errorf("%w: %s has more than %d decimal places", ErrInvalidAmount, amount, places)
	}
	return nil
}

// ToMinorUnits converts a major-unit amount into the gateway's integer minor
// units. Amounts finer than the currency's minor unit are rejected, never rounded.
func ToMinorUnits(amount decimal.Decimal, currency string) (int64, error) {
	if !amount.IsPositive() {
		return 0, fmt.Errorf("%w: amount must be positive", ErrInvalidAmount)
	}
	exp := MinorUnitExponent(currency)
	if err := CheckScale(amount, exp); err != nil {
		return 0, fmt.Errorf("%s amount: %w", strings.ToLower(currency), err)
	}
	return amount.Shift(exp).IntPart(), nil
}
