// =============================
// File: internal/dex/amm/calculations.go
// =============================
package amm

import (
	"fmt"

	"github.com/rovshanmuradov/launchpad-ledger/internal/checked"
)

// PricingModel selects the swap output formula.
type PricingModel string

const (
	// PricingLiteral quotes out = (k / (x + a)) * a. It is the formula the
	// pools have always been priced with and stays the default. The product
	// grows with a, so on realistic reserves only single-unit swaps fit in
	// the quote reserve; larger ones fail with ledger.ErrInsufficientBalance.
	PricingLiteral PricingModel = "literal"

	// PricingExact solves the constant-product equation: out = y * a / (x + a).
	PricingExact PricingModel = "exact"
)

// ParsePricingModel validates a configured model name. Empty means literal.
func ParsePricingModel(s string) (PricingModel, error) {
	switch PricingModel(s) {
	case "", PricingLiteral:
		return PricingLiteral, nil
	case PricingExact:
		return PricingExact, nil
	default:
		return "", fmt.Errorf("unknown pricing model %q", s)
	}
}

// SwapQuote описывает результат свапа до его исполнения.
type SwapQuote struct {
	K         uint64 // x * y before the trade; zero under PricingExact
	AmountOut uint64 // gross quote units leaving the reserve
	Fee       uint64 // part of AmountOut kept by the pool
	Net       uint64 // AmountOut - Fee, delivered to the trader
}

// QuoteSwap вычисляет выход свапа токенов на quote.
//
// x - резерв токенов, y - резерв quote, a - входное количество токенов.
// Все деления округляются вниз, переполнение возвращает ошибку.
func QuoteSwap(tokenReserve, quoteReserve, amountIn, feeBps uint64, model PricingModel) (SwapQuote, error) {
	var q SwapQuote

	denom, err := checked.Add(tokenReserve, amountIn)
	if err != nil {
		return SwapQuote{}, fmt.Errorf("reserve after swap: %w", err)
	}

	switch model {
	case PricingExact:
		if q.AmountOut, err = checked.MulDiv(quoteReserve, amountIn, denom); err != nil {
			return SwapQuote{}, fmt.Errorf("amount out: %w", err)
		}
	case PricingLiteral, "":
		if q.K, err = checked.Mul(tokenReserve, quoteReserve); err != nil {
			return SwapQuote{}, fmt.Errorf("k: %w", err)
		}
		perUnit, err := checked.Div(q.K, denom)
		if err != nil {
			return SwapQuote{}, fmt.Errorf("k per unit: %w", err)
		}
		if q.AmountOut, err = checked.Mul(perUnit, amountIn); err != nil {
			return SwapQuote{}, fmt.Errorf("amount out: %w", err)
		}
	default:
		return SwapQuote{}, fmt.Errorf("unknown pricing model %q", model)
	}

	if q.Fee, err = checked.Bps(q.AmountOut, feeBps); err != nil {
		return SwapQuote{}, fmt.Errorf("fee: %w", err)
	}
	q.Net = q.AmountOut - q.Fee
	return q, nil
}
