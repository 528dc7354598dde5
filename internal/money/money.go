// Package money formats rupee amounts and runs the gold price calculator.
// Cart and sale arithmetic stays in float64; decimal is used where values
// are presented or combined for display.
package money

import (
	"github.com/shopspring/decimal"
)

const currencyPrefix = "Rs "

// Format renders an amount as "Rs 1234.50".
func Format(amount float64) string {
	return currencyPrefix + Fixed(amount)
}

// Fixed renders an amount with exactly two decimals.
func Fixed(amount float64) string {
	return decimal.NewFromFloat(amount).StringFixed(2)
}

type GoldQuote struct {
	MarketValue decimal.Decimal
	Profit      decimal.Decimal
}

// QuoteGold computes market = rate x weight and profit = market - cost.
func QuoteGold(ratePerGram float64, weightGrams float64, cost float64) GoldQuote {
	market := decimal.NewFromFloat(ratePerGram).Mul(decimal.NewFromFloat(weightGrams))
	return GoldQuote{
		MarketValue: market,
		Profit:      market.Sub(decimal.NewFromFloat(cost)),
	}
}
