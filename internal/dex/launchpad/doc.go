// Package launchpad implements the bonding-curve sale engine: platform setup,
// token creation, curve-priced buys and platform fee reinvestment.
//
// Every operation is a ledger.Instruction. It declares its accounts up front
// through Access and mutates them only through the *ledger.Tx it is given, so
// the executor can schedule it next to unrelated instructions.
//
// Listing lifecycle:
//
//	Created (bonding_curve == 0) -> Trading -> Graduated (terminal)
//
// A buy prices amount units at bonding_curve + amount each. When the listing's
// market cap reaches GraduationThreshold the same buy marks it graduated and
// emits events.TokenGraduationEvent; graduated listings reject further buys
// and can be migrated into an AMM pool (see package amm).
//
// Files:
//   - curve.go: constants, listing state and the Quote helper.
//   - instructions.go: Initialize, CreateToken, BuyTokens, ReinvestFees.
//
// Usage example:
//
//	buy := &launchpad.BuyTokens{
//	    Listing:      listingKey,
//	    Platform:     platformKey,
//	    Mint:         mintKey,
//	    BuyerBalance: balanceKey,
//	    Buyer:        buyerKey,
//	    Amount:       1000,
//	}
//	result, err := executor.Execute(ctx, []ledger.Instruction{buy})
package launchpad
