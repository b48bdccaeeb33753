// =============================
// File: internal/dex/amm/pool.go
// =============================
package amm

import (
	"errors"
	"fmt"

	"github.com/rovshanmuradov/launchpad-ledger/internal/account"
	"github.com/rovshanmuradov/launchpad-ledger/internal/checked"
	"github.com/rovshanmuradov/launchpad-ledger/internal/dex/launchpad"
	"github.com/rovshanmuradov/launchpad-ledger/internal/events"
	"github.com/rovshanmuradov/launchpad-ledger/internal/ledger"
	"github.com/rovshanmuradov/launchpad-ledger/internal/sched"
)

// PoolState is the lifecycle position of a pool.
type PoolState int

const (
	PoolUninitialized PoolState = iota
	PoolInitialized
	PoolActive
)

func (s PoolState) String() string {
	switch s {
	case PoolUninitialized:
		return "uninitialized"
	case PoolInitialized:
		return "initialized"
	case PoolActive:
		return "active"
	default:
		return fmt.Sprintf("pool_state(%d)", int(s))
	}
}

// State derives the pool state. Either argument may be nil.
func State(pool *account.Pool, reserve *account.PoolReserve) PoolState {
	switch {
	case pool == nil:
		return PoolUninitialized
	case reserve != nil && reserve.Active():
		return PoolActive
	default:
		return PoolInitialized
	}
}

func debit(have, amount uint64, what string) (uint64, error) {
	left, err := checked.Sub(have, amount)
	if errors.Is(err, checked.ErrOverflow) {
		return 0, fmt.Errorf("%w: %s has %d, needs %d", ledger.ErrInsufficientBalance, what, have, amount)
	}
	return left, err
}

// InitializeDex creates an empty pool for a mint.
type InitializeDex struct {
	Pool       account.Key
	Authority  account.Key
	Mint       account.Key
	SwapFeeBps uint64
}

func (ix *InitializeDex) Opcode() ledger.Opcode { return ledger.OpInitializeDex }

func (ix *InitializeDex) Access() sched.Access {
	return sched.NewAccess().Write(ix.Pool, ix.Authority)
}

func (ix *InitializeDex) Apply(tx *ledger.Tx) error {
	if err := ledger.RequireDistinct(ix.Pool, ix.Authority); err != nil {
		return err
	}
	if ix.SwapFeeBps > launchpad.MaxFeeBps {
		return fmt.Errorf("%w: swap fee %d bps exceeds %d", ledger.ErrInvalidArgument, ix.SwapFeeBps, launchpad.MaxFeeBps)
	}
	return tx.Create(ix.Pool, &account.Pool{
		Authority:  ix.Authority,
		Mint:       ix.Mint,
		SwapFeeBps: ix.SwapFeeBps,
	})
}

// MigrateToken seeds a pool from a graduated listing. The creator moves
// LiquidityAmount tokens and the same nominal amount of quote into the
// reserve. A pool can be migrated once; repeats are rejected.
type MigrateToken struct {
	Pool            account.Key
	Listing         account.Key
	CreatorBalance  account.Key
	PoolReserve     account.Key
	Creator         account.Key
	LiquidityAmount uint64
}

func (ix *MigrateToken) Opcode() ledger.Opcode { return ledger.OpMigrateToken }

func (ix *MigrateToken) Access() sched.Access {
	return sched.NewAccess().Write(ix.Pool, ix.Listing, ix.CreatorBalance, ix.PoolReserve, ix.Creator)
}

func (ix *MigrateToken) Apply(tx *ledger.Tx) error {
	if err := ledger.RequireDistinct(ix.Pool, ix.Listing, ix.CreatorBalance, ix.PoolReserve, ix.Creator); err != nil {
		return err
	}
	if ix.LiquidityAmount == 0 {
		return fmt.Errorf("%w: zero liquidity", ledger.ErrInvalidArgument)
	}

	pool, err := tx.Pool(ix.Pool)
	if err != nil {
		return err
	}
	if pool.Migrated {
		return fmt.Errorf("%w: pool %s already migrated", ledger.ErrInvalidState, ix.Pool)
	}
	listing, err := tx.Listing(ix.Listing)
	if err != nil {
		return err
	}
	if !listing.Graduated {
		return fmt.Errorf("%w: listing %s has not graduated", ledger.ErrInvalidState, ix.Listing)
	}
	if pool.Mint != listing.Mint {
		return fmt.Errorf("%w: pool mint %s does not match listing mint %s", ledger.ErrInvalidArgument, pool.Mint, listing.Mint)
	}
	if listing.Creator != ix.Creator {
		return fmt.Errorf("%w: %s is not the listing creator", ledger.ErrInvalidArgument, ix.Creator)
	}

	balance, err := tx.Balance(ix.CreatorBalance)
	if err != nil {
		return err
	}
	if balance.Mint != listing.Mint || balance.Owner != ix.Creator {
		return fmt.Errorf("%w: balance does not belong to the creator for this mint", ledger.ErrInvalidArgument)
	}
	creator, err := tx.Wallet(ix.Creator)
	if err != nil {
		return err
	}

	if balance.Amount, err = debit(balance.Amount, ix.LiquidityAmount, "creator balance"); err != nil {
		return err
	}
	if creator.Lamports, err = debit(creator.Lamports, ix.LiquidityAmount, "creator wallet"); err != nil {
		return err
	}
	if listing.Supply, err = checked.Sub(listing.Supply, ix.LiquidityAmount); err != nil {
		return fmt.Errorf("listing supply: %w", err)
	}
	pool.Migrated = true

	if err := tx.Create(ix.PoolReserve, &account.PoolReserve{
		Pool:         ix.Pool,
		Mint:         listing.Mint,
		TokenReserve: ix.LiquidityAmount,
		QuoteReserve: ix.LiquidityAmount,
	}); err != nil {
		return err
	}
	if err := tx.Put(ix.Pool, pool); err != nil {
		return err
	}
	if err := tx.Put(ix.Listing, listing); err != nil {
		return err
	}
	if err := tx.Put(ix.CreatorBalance, balance); err != nil {
		return err
	}
	if err := tx.Put(ix.Creator, creator); err != nil {
		return err
	}

	tx.Emit(events.TokenMigrationEvent{Mint: listing.Mint, LiquidityAmount: ix.LiquidityAmount})
	return nil
}

// SwapTokens sells AmountIn tokens into the pool for quote.
type SwapTokens struct {
	Pool          account.Key
	PoolReserve   account.Key
	TraderBalance account.Key
	Trader        account.Key
	AmountIn      uint64
	Model         PricingModel
}

func (ix *SwapTokens) Opcode() ledger.Opcode { return ledger.OpSwapTokens }

func (ix *SwapTokens) Access() sched.Access {
	return sched.NewAccess().Write(ix.Pool, ix.PoolReserve, ix.TraderBalance, ix.Trader)
}

func (ix *SwapTokens) Apply(tx *ledger.Tx) error {
	if err := ledger.RequireDistinct(ix.Pool, ix.PoolReserve, ix.TraderBalance, ix.Trader); err != nil {
		return err
	}
	if ix.AmountIn == 0 {
		return fmt.Errorf("%w: zero amount", ledger.ErrInvalidArgument)
	}

	pool, err := tx.Pool(ix.Pool)
	if err != nil {
		return err
	}
	reserve, err := tx.Reserve(ix.PoolReserve)
	if err != nil {
		return err
	}
	if reserve.Pool != ix.Pool {
		return fmt.Errorf("%w: reserve belongs to pool %s", ledger.ErrInvalidArgument, reserve.Pool)
	}
	if State(pool, reserve) != PoolActive {
		return fmt.Errorf("%w: pool %s is not active", ledger.ErrInvalidState, ix.Pool)
	}

	balance, err := tx.Balance(ix.TraderBalance)
	if err != nil {
		return err
	}
	if balance.Mint != pool.Mint {
		return fmt.Errorf("%w: balance holds mint %s, pool trades %s", ledger.ErrInvalidArgument, balance.Mint, pool.Mint)
	}
	trader, err := tx.WalletOrNew(ix.Trader, ix.Trader)
	if err != nil {
		return err
	}

	q, err := QuoteSwap(reserve.TokenReserve, reserve.QuoteReserve, ix.AmountIn, pool.SwapFeeBps, ix.Model)
	if err != nil {
		if errors.Is(err, checked.ErrOverflow) {
			return err
		}
		return fmt.Errorf("%w: %v", ledger.ErrInvalidArgument, err)
	}

	if balance.Amount, err = debit(balance.Amount, ix.AmountIn, "trader balance"); err != nil {
		return err
	}
	if reserve.QuoteReserve, err = debit(reserve.QuoteReserve, q.AmountOut, "pool quote reserve"); err != nil {
		return err
	}
	if reserve.TokenReserve, err = checked.Add(reserve.TokenReserve, ix.AmountIn); err != nil {
		return fmt.Errorf("token reserve: %w", err)
	}
	if trader.Lamports, err = checked.Add(trader.Lamports, q.Net); err != nil {
		return fmt.Errorf("trader wallet: %w", err)
	}
	if pool.Lamports, err = checked.Add(pool.Lamports, q.Fee); err != nil {
		return fmt.Errorf("pool lamports: %w", err)
	}
	if pool.TotalFees, err = checked.Add(pool.TotalFees, q.Fee); err != nil {
		return fmt.Errorf("pool fees: %w", err)
	}

	if err := tx.Put(ix.Pool, pool); err != nil {
		return err
	}
	if err := tx.Put(ix.PoolReserve, reserve); err != nil {
		return err
	}
	if err := tx.Put(ix.TraderBalance, balance); err != nil {
		return err
	}
	return tx.Put(ix.Trader, trader)
}

// DistributeRevenue pays accumulated swap fees out to a recipient wallet.
type DistributeRevenue struct {
	Pool    account.Key
	Creator account.Key
	Amount  uint64
}

func (ix *DistributeRevenue) Opcode() ledger.Opcode { return ledger.OpDistributeRevenue }

func (ix *DistributeRevenue) Access() sched.Access {
	return sched.NewAccess().Write(ix.Pool, ix.Creator)
}

func (ix *DistributeRevenue) Apply(tx *ledger.Tx) error {
	if err := ledger.RequireDistinct(ix.Pool, ix.Creator); err != nil {
		return err
	}
	if ix.Amount == 0 {
		return fmt.Errorf("%w: zero amount", ledger.ErrInvalidArgument)
	}

	pool, err := tx.Pool(ix.Pool)
	if err != nil {
		return err
	}
	if pool.TotalFees < ix.Amount {
		return fmt.Errorf("%w: pool holds %d, requested %d", ledger.ErrInsufficientFees, pool.TotalFees, ix.Amount)
	}
	pool.TotalFees -= ix.Amount
	if pool.Lamports, err = debit(pool.Lamports, ix.Amount, "pool"); err != nil {
		return err
	}

	creator, err := tx.WalletOrNew(ix.Creator, ix.Creator)
	if err != nil {
		return err
	}
	if creator.Lamports, err = checked.Add(creator.Lamports, ix.Amount); err != nil {
		return fmt.Errorf("creator wallet: %w", err)
	}

	if err := tx.Put(ix.Pool, pool); err != nil {
		return err
	}
	return tx.Put(ix.Creator, creator)
}

var (
	_ ledger.Instruction = (*InitializeDex)(nil)
	_ ledger.Instruction = (*MigrateToken)(nil)
	_ ledger.Instruction = (*SwapTokens)(nil)
	_ ledger.Instruction = (*DistributeRevenue)(nil)
)
