// =============================
// File: internal/dex/launchpad/curve.go
// =============================
package launchpad

import (
	"fmt"

	"github.com/rovshanmuradov/launchpad-ledger/internal/account"
	"github.com/rovshanmuradov/launchpad-ledger/internal/checked"
)

const (
	// GraduationThreshold is the market cap, in quote units, at which a
	// listing leaves the curve.
	GraduationThreshold uint64 = 100_000_000_000

	// MaxFeeBps caps platform and pool fee rates.
	MaxFeeBps uint64 = checked.BasisPoints

	// MintDecimals is the decimals value of every mint created here.
	MintDecimals uint8 = 9
)

// State is the position of a listing in its lifecycle.
type State int

const (
	StateCreated State = iota
	StateTrading
	StateGraduated
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateTrading:
		return "trading"
	case StateGraduated:
		return "graduated"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ListingState derives the lifecycle state from the listing fields.
func ListingState(l *account.TokenListing) State {
	switch {
	case l.Graduated:
		return StateGraduated
	case l.BondingCurve > 0:
		return StateTrading
	default:
		return StateCreated
	}
}

// BuyQuote is the outcome of buying amount units from a listing.
type BuyQuote struct {
	Price     uint64 // per-unit price
	TotalCost uint64 // quote units charged to the buyer
	Curve     uint64 // bonding curve position after the buy
	Supply    uint64 // listing supply after the buy
	MarketCap uint64 // price * supply after the buy
	Graduates bool   // market cap reaches GraduationThreshold
}

// Quote prices a buy without mutating anything. The curve is linear in
// cumulative volume: price = bonding_curve + amount.
func Quote(l *account.TokenListing, amount uint64) (BuyQuote, error) {
	var q BuyQuote
	var err error

	if q.Price, err = checked.Add(l.BondingCurve, amount); err != nil {
		return BuyQuote{}, fmt.Errorf("price: %w", err)
	}
	if q.TotalCost, err = checked.Mul(q.Price, amount); err != nil {
		return BuyQuote{}, fmt.Errorf("total cost: %w", err)
	}
	if q.Curve, err = checked.Add(l.BondingCurve, amount); err != nil {
		return BuyQuote{}, fmt.Errorf("bonding curve: %w", err)
	}
	if q.Supply, err = checked.Add(l.Supply, amount); err != nil {
		return BuyQuote{}, fmt.Errorf("supply: %w", err)
	}
	if q.MarketCap, err = checked.Mul(q.Price, q.Supply); err != nil {
		return BuyQuote{}, fmt.Errorf("market cap: %w", err)
	}
	q.Graduates = q.MarketCap >= GraduationThreshold
	return q, nil
}
