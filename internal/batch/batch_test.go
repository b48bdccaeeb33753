package batch

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/launchpad-ledger/internal/account"
	"github.com/rovshanmuradov/launchpad-ledger/internal/dex/amm"
	"github.com/rovshanmuradov/launchpad-ledger/internal/dex/launchpad"
	"github.com/rovshanmuradov/launchpad-ledger/internal/events"
	"github.com/rovshanmuradov/launchpad-ledger/internal/ledger"
)

const lifecycleYAML = `
genesis:
  - wallet: admin
    lamports: 1000000000
  - wallet: trader
    lamports: 100000000000
batch:
  - op: initialize
    authority: admin
    fee_bps: 100
  - op: create_token
    creator: admin
    mint: gamma
    token_name: Gamma
    symbol: GAM
    uri: ipfs://gamma
    initial_supply: 1000000
  - op: buy_tokens
    buyer: trader
    mint: gamma
    amount: 200000
  - op: initialize_dex
    authority: admin
    mint: gamma
    swap_fee_bps: 25
  - op: migrate_token
    creator: admin
    mint: gamma
    liquidity_amount: 100000
  - op: swap_tokens
    trader: trader
    mint: gamma
    amount_in: 10000
  - op: distribute_revenue
    mint: gamma
    recipient: admin
    amount: 22
  - op: buy_tokens
    buyer: trader
    mint: gamma
    amount: 0
`

func key(t *testing.T, name string) account.Key {
	t.Helper()
	k, err := account.NamedKey(name)
	require.NoError(t, err)
	return k
}

func TestParse_Lifecycle(t *testing.T) {
	ctx := context.Background()
	loader := NewLoader(zaptest.NewLogger(t), amm.PricingExact)

	b, err := loader.Parse([]byte(lifecycleYAML))
	require.NoError(t, err)
	require.Len(t, b.Genesis, 2)
	require.Len(t, b.Instructions, 8)

	wantOps := []ledger.Opcode{
		ledger.OpInitialize, ledger.OpCreateToken, ledger.OpBuyTokens, ledger.OpInitializeDex,
		ledger.OpMigrateToken, ledger.OpSwapTokens, ledger.OpDistributeRevenue, ledger.OpBuyTokens,
	}
	for i, ins := range b.Instructions {
		assert.Equal(t, wantOps[i], ins.Opcode(), "instruction %d", i)
	}

	swap, ok := b.Instructions[5].(*amm.SwapTokens)
	require.True(t, ok)
	assert.Equal(t, amm.PricingExact, swap.Model)

	store := account.NewMemoryStore()
	created, err := loader.Seed(ctx, store, b.Genesis)
	require.NoError(t, err)
	assert.Equal(t, 2, created)

	ex := ledger.NewExecutor(store, zaptest.NewLogger(t), ledger.Options{Workers: 4})
	res, err := ex.Execute(ctx, b.Instructions)
	require.NoError(t, err)

	for i, rc := range res.Receipts[:7] {
		require.NoError(t, rc.Err, "instruction %d", i)
	}
	assert.ErrorIs(t, res.Receipts[7].Err, ledger.ErrInvalidArgument)
	assert.Equal(t, 7, res.Committed())

	require.Len(t, res.Events, 2)
	assert.Equal(t, events.TokenGraduated, res.Events[0].Type())
	assert.Equal(t, 2, res.Events[0].Index)
	assert.Equal(t, events.TokenMigrated, res.Events[1].Type())
	assert.Equal(t, uint64(100_000), res.Events[1].Amount())

	mint := key(t, "gamma")
	pool, err := account.PoolKey(mint)
	require.NoError(t, err)
	e, err := store.Get(ctx, pool)
	require.NoError(t, err)
	p := e.Record.(*account.Pool)
	assert.True(t, p.Migrated)
	assert.Zero(t, p.TotalFees, "fees were distributed")

	reserveKey, err := account.PoolReserveKey(pool)
	require.NoError(t, err)
	e, err = store.Get(ctx, reserveKey)
	require.NoError(t, err)
	reserve := e.Record.(*account.PoolReserve)
	assert.Equal(t, uint64(110_000), reserve.TokenReserve)
	assert.Equal(t, uint64(100_000-9_090), reserve.QuoteReserve)
}

func TestParse_ResolvesAddresses(t *testing.T) {
	loader := NewLoader(zaptest.NewLogger(t), amm.PricingLiteral)
	treasury := solana.NewWallet().PublicKey()

	b, err := loader.Parse([]byte(`
batch:
  - op: reinvest_fees
    treasury: ` + treasury.String() + `
    amount: 5
`))
	require.NoError(t, err)

	ix, ok := b.Instructions[0].(*launchpad.ReinvestFees)
	require.True(t, ok)
	assert.Equal(t, treasury, ix.Treasury)

	platform, err := account.PlatformKey()
	require.NoError(t, err)
	assert.Equal(t, platform, ix.Platform)
}

func TestParse_DerivesAccounts(t *testing.T) {
	loader := NewLoader(zaptest.NewLogger(t), amm.PricingLiteral)
	b, err := loader.Parse([]byte(`
batch:
  - op: migrate_token
    creator: alice
    mint: delta
    liquidity_amount: 10
`))
	require.NoError(t, err)

	ix := b.Instructions[0].(*amm.MigrateToken)
	alice, mint := key(t, "alice"), key(t, "delta")

	pool, err := account.PoolKey(mint)
	require.NoError(t, err)
	listing, err := account.ListingKey(mint)
	require.NoError(t, err)
	balance, err := account.BalanceKey(alice, mint)
	require.NoError(t, err)
	reserve, err := account.PoolReserveKey(pool)
	require.NoError(t, err)

	assert.Equal(t, &amm.MigrateToken{
		Pool:            pool,
		Listing:         listing,
		CreatorBalance:  balance,
		PoolReserve:     reserve,
		Creator:         alice,
		LiquidityAmount: 10,
	}, ix)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"invalid yaml", "batch: [", "failed to parse YAML"},
		{"empty batch", "genesis: []\n", "no instructions"},
		{"unknown op", "batch:\n  - op: burn\n", `unsupported operation: "burn"`},
		{"missing buyer", "batch:\n  - op: buy_tokens\n    mint: m\n    amount: 1\n", "batch[0] (buy_tokens): missing buyer"},
		{"missing mint", "batch:\n  - op: initialize\n    authority: a\n  - op: swap_tokens\n    trader: t\n", "batch[1] (swap_tokens): missing mint"},
		{"genesis without wallet", "genesis:\n  - lamports: 5\nbatch:\n  - op: initialize\n    authority: a\n", "genesis[0]: missing wallet"},
		{"genesis twice", "genesis:\n  - wallet: a\n  - wallet: a\nbatch:\n  - op: initialize\n    authority: a\n", "funded twice"},
	}

	loader := NewLoader(zaptest.NewLogger(t), amm.PricingLiteral)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loader.Parse([]byte(tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "batch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(lifecycleYAML), 0o600))

	b, err := NewLoader(zaptest.NewLogger(t), amm.PricingLiteral).Load(path)
	require.NoError(t, err)
	assert.Len(t, b.Instructions, 8)

	_, err = NewLoader(zaptest.NewLogger(t), amm.PricingLiteral).Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestSeed_SkipsExistingWallets(t *testing.T) {
	ctx := context.Background()
	store := account.NewMemoryStore()
	admin := key(t, "admin")

	_, err := store.Put(ctx, admin, &account.Wallet{Owner: admin, Lamports: 7})
	require.NoError(t, err)

	loader := NewLoader(zaptest.NewLogger(t), amm.PricingLiteral)
	created, err := loader.Seed(ctx, store, []Genesis{
		{Wallet: admin, Lamports: 1_000},
		{Wallet: key(t, "bob"), Lamports: 50},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, created)

	e, err := store.Get(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), e.Record.(*account.Wallet).Lamports)
}

func TestExampleBatch_PricingModels(t *testing.T) {
	path := filepath.Join("..", "..", "batches", "launch.yaml")

	tests := []struct {
		name    string
		model   amm.PricingModel
		swapErr error
	}{
		{"literal rejects multi-unit swap", amm.PricingLiteral, ledger.ErrInsufficientBalance},
		{"exact fills swap", amm.PricingExact, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			loader := NewLoader(zaptest.NewLogger(t), tt.model)
			b, err := loader.Load(path)
			require.NoError(t, err)
			require.Len(t, b.Instructions, 6)

			store := account.NewMemoryStore()
			_, err = loader.Seed(ctx, store, b.Genesis)
			require.NoError(t, err)

			res, err := ledger.NewExecutor(store, zaptest.NewLogger(t), ledger.Options{Workers: 2}).Execute(ctx, b.Instructions)
			require.NoError(t, err)

			for i, rc := range res.Receipts[:5] {
				require.NoError(t, rc.Err, "instruction %d", i)
			}
			swap := res.Receipts[5]
			assert.Equal(t, ledger.OpSwapTokens, swap.Opcode)
			if tt.swapErr == nil {
				assert.NoError(t, swap.Err)
			} else {
				assert.ErrorIs(t, swap.Err, tt.swapErr)
			}
		})
	}
}
