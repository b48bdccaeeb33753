// =============================
// File: internal/dex/launchpad/instructions.go
// =============================
package launchpad

import (
	"errors"
	"fmt"

	"github.com/rovshanmuradov/launchpad-ledger/internal/account"
	"github.com/rovshanmuradov/launchpad-ledger/internal/checked"
	"github.com/rovshanmuradov/launchpad-ledger/internal/events"
	"github.com/rovshanmuradov/launchpad-ledger/internal/ledger"
	"github.com/rovshanmuradov/launchpad-ledger/internal/sched"
)

// debit subtracts amount from a balance, reporting a shortfall as
// ledger.ErrInsufficientBalance.
func debit(have, amount uint64, what string) (uint64, error) {
	left, err := checked.Sub(have, amount)
	if errors.Is(err, checked.ErrOverflow) {
		return 0, fmt.Errorf("%w: %s has %d, needs %d", ledger.ErrInsufficientBalance, what, have, amount)
	}
	return left, err
}

// Initialize creates the platform configuration.
type Initialize struct {
	Platform  account.Key
	Authority account.Key
	FeeBps    uint64
}

func (ix *Initialize) Opcode() ledger.Opcode { return ledger.OpInitialize }

func (ix *Initialize) Access() sched.Access {
	return sched.NewAccess().Write(ix.Platform, ix.Authority)
}

func (ix *Initialize) Apply(tx *ledger.Tx) error {
	if err := ledger.RequireDistinct(ix.Platform, ix.Authority); err != nil {
		return err
	}
	if ix.FeeBps > MaxFeeBps {
		return fmt.Errorf("%w: fee %d bps exceeds %d", ledger.ErrInvalidArgument, ix.FeeBps, MaxFeeBps)
	}
	return tx.Create(ix.Platform, &account.Platform{
		Authority: ix.Authority,
		FeeBps:    ix.FeeBps,
	})
}

// CreateToken lists a new token. The authority pays the creation fee to the
// platform and receives the initial supply.
type CreateToken struct {
	Platform       account.Key
	Listing        account.Key
	Mint           account.Key
	CreatorBalance account.Key
	Authority      account.Key

	Name          string
	Symbol        string
	URI           string
	InitialSupply uint64
	CreationFee   uint64
}

func (ix *CreateToken) Opcode() ledger.Opcode { return ledger.OpCreateToken }

func (ix *CreateToken) Access() sched.Access {
	return sched.NewAccess().Write(ix.Platform, ix.Listing, ix.Mint, ix.CreatorBalance, ix.Authority)
}

func (ix *CreateToken) Apply(tx *ledger.Tx) error {
	if err := ledger.RequireDistinct(ix.Platform, ix.Listing, ix.Mint, ix.CreatorBalance, ix.Authority); err != nil {
		return err
	}
	if ix.Name == "" || ix.Symbol == "" || ix.URI == "" {
		return fmt.Errorf("%w: name, symbol and uri are required", ledger.ErrInvalidArgument)
	}

	platform, err := tx.Platform(ix.Platform)
	if err != nil {
		return err
	}

	if ix.CreationFee > 0 {
		payer, err := tx.Wallet(ix.Authority)
		if err != nil {
			return err
		}
		if payer.Lamports, err = debit(payer.Lamports, ix.CreationFee, "authority"); err != nil {
			return err
		}
		if platform.TotalFees, err = checked.Add(platform.TotalFees, ix.CreationFee); err != nil {
			return fmt.Errorf("platform fees: %w", err)
		}
		if platform.Lamports, err = checked.Add(platform.Lamports, ix.CreationFee); err != nil {
			return fmt.Errorf("platform lamports: %w", err)
		}
		if err := tx.Put(ix.Authority, payer); err != nil {
			return err
		}
	}

	if err := tx.Create(ix.Mint, &account.Mint{
		Authority: ix.Authority,
		Decimals:  MintDecimals,
		Supply:    ix.InitialSupply,
	}); err != nil {
		return err
	}
	if err := tx.Create(ix.Listing, &account.TokenListing{
		Mint:    ix.Mint,
		Creator: ix.Authority,
		Name:    ix.Name,
		Symbol:  ix.Symbol,
		URI:     ix.URI,
		Supply:  ix.InitialSupply,
	}); err != nil {
		return err
	}
	if err := tx.Create(ix.CreatorBalance, &account.TokenBalance{
		Owner:  ix.Authority,
		Mint:   ix.Mint,
		Amount: ix.InitialSupply,
	}); err != nil {
		return err
	}
	return tx.Put(ix.Platform, platform)
}

// BuyTokens buys amount units from a listing's bonding curve.
type BuyTokens struct {
	Listing      account.Key
	Platform     account.Key
	Mint         account.Key
	BuyerBalance account.Key
	Buyer        account.Key
	Amount       uint64
}

func (ix *BuyTokens) Opcode() ledger.Opcode { return ledger.OpBuyTokens }

func (ix *BuyTokens) Access() sched.Access {
	return sched.NewAccess().Write(ix.Listing, ix.Platform, ix.Mint, ix.BuyerBalance, ix.Buyer)
}

func (ix *BuyTokens) Apply(tx *ledger.Tx) error {
	if err := ledger.RequireDistinct(ix.Listing, ix.Platform, ix.Mint, ix.BuyerBalance, ix.Buyer); err != nil {
		return err
	}
	if ix.Amount == 0 {
		return fmt.Errorf("%w: zero amount", ledger.ErrInvalidArgument)
	}

	listing, err := tx.Listing(ix.Listing)
	if err != nil {
		return err
	}
	if listing.Graduated {
		return fmt.Errorf("%w: listing %s has graduated", ledger.ErrInvalidState, ix.Listing)
	}
	if listing.Mint != ix.Mint {
		return fmt.Errorf("%w: listing is for mint %s, not %s", ledger.ErrInvalidArgument, listing.Mint, ix.Mint)
	}

	q, err := Quote(listing, ix.Amount)
	if err != nil {
		return err
	}

	platform, err := tx.Platform(ix.Platform)
	if err != nil {
		return err
	}
	mint, err := tx.Mint(ix.Mint)
	if err != nil {
		return err
	}
	buyer, err := tx.Wallet(ix.Buyer)
	if err != nil {
		return err
	}
	balance, err := tx.BalanceOrNew(ix.BuyerBalance, ix.Buyer, ix.Mint)
	if err != nil {
		return err
	}
	if balance.Mint != ix.Mint {
		return fmt.Errorf("%w: balance holds mint %s", ledger.ErrInvalidArgument, balance.Mint)
	}

	if buyer.Lamports, err = debit(buyer.Lamports, q.TotalCost, "buyer"); err != nil {
		return err
	}
	if platform.Lamports, err = checked.Add(platform.Lamports, q.TotalCost); err != nil {
		return fmt.Errorf("platform lamports: %w", err)
	}
	if mint.Supply, err = checked.Add(mint.Supply, ix.Amount); err != nil {
		return fmt.Errorf("mint supply: %w", err)
	}
	if balance.Amount, err = checked.Add(balance.Amount, ix.Amount); err != nil {
		return fmt.Errorf("buyer balance: %w", err)
	}

	listing.BondingCurve = q.Curve
	listing.Supply = q.Supply
	listing.MarketCap = q.MarketCap
	if q.Graduates {
		listing.Graduated = true
		tx.Emit(events.TokenGraduationEvent{Mint: listing.Mint, MarketCap: listing.MarketCap})
	}

	writes := []struct {
		key account.Key
		rec account.Record
	}{
		{ix.Listing, listing},
		{ix.Platform, platform},
		{ix.Mint, mint},
		{ix.BuyerBalance, balance},
		{ix.Buyer, buyer},
	}
	for _, w := range writes {
		if err := tx.Put(w.key, w.rec); err != nil {
			return err
		}
	}
	return nil
}

// ReinvestFees moves accumulated creation fees from the platform to a treasury wallet.
type ReinvestFees struct {
	Platform account.Key
	Treasury account.Key
	Amount   uint64
}

func (ix *ReinvestFees) Opcode() ledger.Opcode { return ledger.OpReinvestFees }

func (ix *ReinvestFees) Access() sched.Access {
	return sched.NewAccess().Write(ix.Platform, ix.Treasury)
}

func (ix *ReinvestFees) Apply(tx *ledger.Tx) error {
	if err := ledger.RequireDistinct(ix.Platform, ix.Treasury); err != nil {
		return err
	}
	if ix.Amount == 0 {
		return fmt.Errorf("%w: zero amount", ledger.ErrInvalidArgument)
	}

	platform, err := tx.Platform(ix.Platform)
	if err != nil {
		return err
	}
	if platform.TotalFees < ix.Amount {
		return fmt.Errorf("%w: platform holds %d, requested %d", ledger.ErrInsufficientFees, platform.TotalFees, ix.Amount)
	}
	platform.TotalFees -= ix.Amount
	if platform.Lamports, err = debit(platform.Lamports, ix.Amount, "platform"); err != nil {
		return err
	}

	treasury, err := tx.WalletOrNew(ix.Treasury, ix.Treasury)
	if err != nil {
		return err
	}
	if treasury.Lamports, err = checked.Add(treasury.Lamports, ix.Amount); err != nil {
		return fmt.Errorf("treasury: %w", err)
	}

	if err := tx.Put(ix.Platform, platform); err != nil {
		return err
	}
	return tx.Put(ix.Treasury, treasury)
}

var (
	_ ledger.Instruction = (*Initialize)(nil)
	_ ledger.Instruction = (*CreateToken)(nil)
	_ ledger.Instruction = (*BuyTokens)(nil)
	_ ledger.Instruction = (*ReinvestFees)(nil)
)
