// internal/batch/build.go
package batch

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/launchpad-ledger/internal/account"
	"github.com/rovshanmuradov/launchpad-ledger/internal/dex/amm"
	"github.com/rovshanmuradov/launchpad-ledger/internal/dex/launchpad"
	"github.com/rovshanmuradov/launchpad-ledger/internal/ledger"
)

// resolve maps an alias or base58 address to a key.
func resolve(value, field string) (account.Key, error) {
	if value == "" {
		return account.Key{}, fmt.Errorf("missing %s", field)
	}
	if key, err := solana.PublicKeyFromBase58(value); err == nil {
		return key, nil
	}
	key, err := account.NamedKey(value)
	if err != nil {
		return account.Key{}, fmt.Errorf("%s: %w", field, err)
	}
	return key, nil
}

// resolver collects the first error so builders can read straight through.
type resolver struct {
	err error
}

func (r *resolver) key(value, field string) account.Key {
	if r.err != nil {
		return account.Key{}
	}
	key, err := resolve(value, field)
	if err != nil {
		r.err = err
	}
	return key
}

func (r *resolver) derived(f func() (account.Key, error)) account.Key {
	if r.err != nil {
		return account.Key{}
	}
	key, err := f()
	if err != nil {
		r.err = err
	}
	return key
}

func (l *Loader) build(s Step) (ledger.Instruction, error) {
	var (
		r   resolver
		ins ledger.Instruction
	)

	switch ledger.Opcode(s.Op) {
	case ledger.OpInitialize:
		ins = &launchpad.Initialize{
			Platform:  r.derived(account.PlatformKey),
			Authority: r.key(s.Authority, "authority"),
			FeeBps:    s.FeeBps,
		}

	case ledger.OpCreateToken:
		mint := r.key(s.Mint, "mint")
		creator := r.key(s.Creator, "creator")
		ins = &launchpad.CreateToken{
			Platform:       r.derived(account.PlatformKey),
			Listing:        r.derived(func() (account.Key, error) { return account.ListingKey(mint) }),
			Mint:           mint,
			CreatorBalance: r.derived(func() (account.Key, error) { return account.BalanceKey(creator, mint) }),
			Authority:      creator,
			Name:           s.TokenName,
			Symbol:         s.Symbol,
			URI:            s.URI,
			InitialSupply:  s.InitialSupply,
			CreationFee:    s.CreationFee,
		}

	case ledger.OpBuyTokens:
		mint := r.key(s.Mint, "mint")
		buyer := r.key(s.Buyer, "buyer")
		ins = &launchpad.BuyTokens{
			Listing:      r.derived(func() (account.Key, error) { return account.ListingKey(mint) }),
			Platform:     r.derived(account.PlatformKey),
			Mint:         mint,
			BuyerBalance: r.derived(func() (account.Key, error) { return account.BalanceKey(buyer, mint) }),
			Buyer:        buyer,
			Amount:       s.Amount,
		}

	case ledger.OpReinvestFees:
		ins = &launchpad.ReinvestFees{
			Platform: r.derived(account.PlatformKey),
			Treasury: r.key(s.Treasury, "treasury"),
			Amount:   s.Amount,
		}

	case ledger.OpInitializeDex:
		mint := r.key(s.Mint, "mint")
		ins = &amm.InitializeDex{
			Pool:       r.derived(func() (account.Key, error) { return account.PoolKey(mint) }),
			Authority:  r.key(s.Authority, "authority"),
			Mint:       mint,
			SwapFeeBps: s.SwapFeeBps,
		}

	case ledger.OpMigrateToken:
		mint := r.key(s.Mint, "mint")
		creator := r.key(s.Creator, "creator")
		pool := r.derived(func() (account.Key, error) { return account.PoolKey(mint) })
		ins = &amm.MigrateToken{
			Pool:            pool,
			Listing:         r.derived(func() (account.Key, error) { return account.ListingKey(mint) }),
			CreatorBalance:  r.derived(func() (account.Key, error) { return account.BalanceKey(creator, mint) }),
			PoolReserve:     r.derived(func() (account.Key, error) { return account.PoolReserveKey(pool) }),
			Creator:         creator,
			LiquidityAmount: s.LiquidityAmount,
		}

	case ledger.OpSwapTokens:
		mint := r.key(s.Mint, "mint")
		trader := r.key(s.Trader, "trader")
		pool := r.derived(func() (account.Key, error) { return account.PoolKey(mint) })
		ins = &amm.SwapTokens{
			Pool:          pool,
			PoolReserve:   r.derived(func() (account.Key, error) { return account.PoolReserveKey(pool) }),
			TraderBalance: r.derived(func() (account.Key, error) { return account.BalanceKey(trader, mint) }),
			Trader:        trader,
			AmountIn:      s.AmountIn,
			Model:         l.model,
		}

	case ledger.OpDistributeRevenue:
		mint := r.key(s.Mint, "mint")
		ins = &amm.DistributeRevenue{
			Pool:    r.derived(func() (account.Key, error) { return account.PoolKey(mint) }),
			Creator: r.key(s.Recipient, "recipient"),
			Amount:  s.Amount,
		}

	default:
		return nil, fmt.Errorf("unsupported operation: %q", s.Op)
	}

	if r.err != nil {
		return nil, r.err
	}
	return ins, nil
}
