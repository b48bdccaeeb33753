package amm

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/launchpad-ledger/internal/account"
	"github.com/rovshanmuradov/launchpad-ledger/internal/dex/launchpad"
	"github.com/rovshanmuradov/launchpad-ledger/internal/events"
	"github.com/rovshanmuradov/launchpad-ledger/internal/ledger"
)

func TestQuoteSwap(t *testing.T) {
	tests := []struct {
		name    string
		x, y, a uint64
		fee     uint64
		model   PricingModel
		want    SwapQuote
		wantErr bool
	}{
		{
			name: "literal reference values",
			x:    10_000, y: 1_000_000, a: 100, fee: 25,
			model: PricingLiteral,
			want:  SwapQuote{K: 10_000_000_000, AmountOut: 99_009_900, Fee: 247_524, Net: 98_762_376},
		},
		{
			name: "literal is the default",
			x:    10_000, y: 10_000, a: 1, fee: 25,
			want: SwapQuote{K: 100_000_000, AmountOut: 9_999, Fee: 24, Net: 9_975},
		},
		{
			name: "exact",
			x:    10_000, y: 1_000_000, a: 100, fee: 25,
			model: PricingExact,
			want:  SwapQuote{AmountOut: 9_900, Fee: 24, Net: 9_876},
		},
		{
			name: "no fee",
			x:    1_000, y: 1_000, a: 1_000,
			model: PricingExact,
			want:  SwapQuote{AmountOut: 500, Net: 500},
		},
		{
			name: "literal k overflow",
			x:    1 << 33, y: 1 << 33, a: 1,
			model:   PricingLiteral,
			wantErr: true,
		},
		{
			name: "unknown model",
			x:    1, y: 1, a: 1,
			model:   PricingModel("curved"),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := QuoteSwap(tt.x, tt.y, tt.a, tt.fee, tt.model)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got.AmountOut, got.Fee+got.Net)
		})
	}
}

func TestQuoteSwap_ExactNeverShrinksProduct(t *testing.T) {
	reserves := []uint64{1, 7, 1_000, 99_991, 1_000_000_007}
	amounts := []uint64{1, 3, 500, 1_000_000}

	for _, x := range reserves {
		for _, y := range reserves {
			for _, a := range amounts {
				q, err := QuoteSwap(x, y, a, 30, PricingExact)
				require.NoError(t, err)
				require.LessOrEqual(t, q.AmountOut, y)

				// (x + a) * (y - out) >= x * y
				before := new(big.Int).Mul(new(big.Int).SetUint64(x), new(big.Int).SetUint64(y))
				after := new(big.Int).Mul(new(big.Int).SetUint64(x+a), new(big.Int).SetUint64(y-q.AmountOut))
				assert.True(t, after.Cmp(before) >= 0, "x=%d y=%d a=%d", x, y, a)
			}
		}
	}
}

func TestParsePricingModel(t *testing.T) {
	m, err := ParsePricingModel("")
	require.NoError(t, err)
	assert.Equal(t, PricingLiteral, m)

	m, err = ParsePricingModel("exact")
	require.NoError(t, err)
	assert.Equal(t, PricingExact, m)

	_, err = ParsePricingModel("linear")
	assert.Error(t, err)
}

type market struct {
	t     *testing.T
	store *account.MemoryStore
	ex    *ledger.Executor

	platform, admin, mint, listing, creatorBalance account.Key
	pool, reserve                                  account.Key
	trader, traderBalance                          account.Key
}

func named(t *testing.T, name string) account.Key {
	t.Helper()
	k, err := account.NamedKey(name)
	require.NoError(t, err)
	return k
}

// newMarket lists a token, graduates it through one large buy and creates
// its pool. The pool is not migrated yet.
func newMarket(t *testing.T) *market {
	t.Helper()
	m := &market{
		t:      t,
		store:  account.NewMemoryStore(),
		admin:  named(t, "admin"),
		mint:   named(t, "mint-G"),
		trader: named(t, "trader"),
	}
	m.ex = ledger.NewExecutor(m.store, zap.NewNop(), ledger.Options{Workers: 4})

	var err error
	m.platform, err = account.PlatformKey()
	require.NoError(t, err)
	m.listing, err = account.ListingKey(m.mint)
	require.NoError(t, err)
	m.creatorBalance, err = account.BalanceKey(m.admin, m.mint)
	require.NoError(t, err)
	m.pool, err = account.PoolKey(m.mint)
	require.NoError(t, err)
	m.reserve, err = account.PoolReserveKey(m.pool)
	require.NoError(t, err)
	m.traderBalance, err = account.BalanceKey(m.trader, m.mint)
	require.NoError(t, err)

	m.fund(m.admin, 1_000_000_000)
	m.fund(m.trader, 100_000_000_000)

	res := m.run(
		&launchpad.Initialize{Platform: m.platform, Authority: m.admin, FeeBps: 100},
		&launchpad.CreateToken{
			Platform:       m.platform,
			Listing:        m.listing,
			Mint:           m.mint,
			CreatorBalance: m.creatorBalance,
			Authority:      m.admin,
			Name:           "Gamma",
			Symbol:         "GAM",
			URI:            "ipfs://gamma",
			InitialSupply:  1_000_000,
		},
		&launchpad.BuyTokens{
			Listing:      m.listing,
			Platform:     m.platform,
			Mint:         m.mint,
			BuyerBalance: m.traderBalance,
			Buyer:        m.trader,
			Amount:       200_000,
		},
		&InitializeDex{Pool: m.pool, Authority: m.admin, Mint: m.mint, SwapFeeBps: 25},
	)
	for _, rc := range res.Receipts {
		require.NoError(t, rc.Err)
	}
	require.Len(t, res.Events, 1, "the buy must graduate the listing")
	return m
}

func (m *market) fund(key account.Key, lamports uint64) {
	m.t.Helper()
	_, err := m.store.Put(context.Background(), key, &account.Wallet{Owner: key, Lamports: lamports})
	require.NoError(m.t, err)
}

func (m *market) run(batch ...ledger.Instruction) *ledger.Result {
	m.t.Helper()
	res, err := m.ex.Execute(context.Background(), batch)
	require.NoError(m.t, err)
	return res
}

func (m *market) record(key account.Key) account.Record {
	m.t.Helper()
	entry, err := m.store.Get(context.Background(), key)
	require.NoError(m.t, err)
	return entry.Record
}

func (m *market) digest() string {
	m.t.Helper()
	d, err := account.StateDigest(context.Background(), m.store)
	require.NoError(m.t, err)
	return d
}

func (m *market) migrate(amount uint64) *MigrateToken {
	return &MigrateToken{
		Pool:            m.pool,
		Listing:         m.listing,
		CreatorBalance:  m.creatorBalance,
		PoolReserve:     m.reserve,
		Creator:         m.admin,
		LiquidityAmount: amount,
	}
}

func (m *market) swap(amount uint64, model PricingModel) *SwapTokens {
	return &SwapTokens{
		Pool:          m.pool,
		PoolReserve:   m.reserve,
		TraderBalance: m.traderBalance,
		Trader:        m.trader,
		AmountIn:      amount,
		Model:         model,
	}
}

func TestMigrateToken(t *testing.T) {
	m := newMarket(t)
	supplyBefore := m.record(m.listing).(*account.TokenListing).Supply

	res := m.run(m.migrate(10_000))
	require.NoError(t, res.Receipts[0].Err)
	require.Len(t, res.Events, 1)
	assert.Equal(t, events.TokenMigrationEvent{Mint: m.mint, LiquidityAmount: 10_000}, res.Events[0].Event)

	reserve := m.record(m.reserve).(*account.PoolReserve)
	assert.Equal(t, uint64(10_000), reserve.TokenReserve)
	assert.Equal(t, uint64(10_000), reserve.QuoteReserve)
	assert.Equal(t, m.pool, reserve.Pool)

	pool := m.record(m.pool).(*account.Pool)
	assert.True(t, pool.Migrated)
	assert.Equal(t, PoolActive, State(pool, reserve))

	assert.Equal(t, supplyBefore-10_000, m.record(m.listing).(*account.TokenListing).Supply)
	assert.Equal(t, uint64(990_000), m.record(m.creatorBalance).(*account.TokenBalance).Amount)
	assert.Equal(t, uint64(1_000_000_000-10_000), m.record(m.admin).(*account.Wallet).Lamports)

	// Reject on repeat
	before := m.digest()
	res = m.run(m.migrate(1))
	assert.ErrorIs(t, res.Receipts[0].Err, ledger.ErrInvalidState)
	assert.Empty(t, res.Events)
	assert.Equal(t, before, m.digest())
}

func TestMigrateToken_Rejections(t *testing.T) {
	m := newMarket(t)

	notCreator := m.migrate(10)
	notCreator.Creator = m.trader

	tooMuch := m.migrate(2_000_000)

	tests := []struct {
		name string
		ix   *MigrateToken
		want error
	}{
		{"zero liquidity", m.migrate(0), ledger.ErrInvalidArgument},
		{"not the creator", notCreator, ledger.ErrInvalidArgument},
		{"more than the creator holds", tooMuch, ledger.ErrInsufficientBalance},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := m.digest()
			res := m.run(tt.ix)
			assert.ErrorIs(t, res.Receipts[0].Err, tt.want)
			assert.Equal(t, before, m.digest())
		})
	}
}

func TestMigrateToken_RequiresGraduation(t *testing.T) {
	m := newMarket(t)

	listing := m.record(m.listing).(*account.TokenListing)
	listing.Graduated = false
	_, err := m.store.Put(context.Background(), m.listing, listing)
	require.NoError(t, err)

	res := m.run(m.migrate(10))
	assert.ErrorIs(t, res.Receipts[0].Err, ledger.ErrInvalidState)
}

func TestSwapTokens_Exact(t *testing.T) {
	m := newMarket(t)
	require.NoError(t, m.run(m.migrate(10_000)).Receipts[0].Err)

	// Deepen the quote side to the reference reserves
	reserve := m.record(m.reserve).(*account.PoolReserve)
	reserve.QuoteReserve = 1_000_000
	_, err := m.store.Put(context.Background(), m.reserve, reserve)
	require.NoError(t, err)

	walletBefore := m.record(m.trader).(*account.Wallet).Lamports
	tokensBefore := m.record(m.traderBalance).(*account.TokenBalance).Amount

	res := m.run(m.swap(100, PricingExact))
	require.NoError(t, res.Receipts[0].Err)

	reserve = m.record(m.reserve).(*account.PoolReserve)
	assert.Equal(t, uint64(10_100), reserve.TokenReserve)
	assert.Equal(t, uint64(990_100), reserve.QuoteReserve)
	assert.GreaterOrEqual(t, reserve.TokenReserve*reserve.QuoteReserve, uint64(10_000*1_000_000))

	pool := m.record(m.pool).(*account.Pool)
	assert.Equal(t, uint64(24), pool.TotalFees)
	assert.Equal(t, uint64(24), pool.Lamports)

	assert.Equal(t, walletBefore+9_876, m.record(m.trader).(*account.Wallet).Lamports)
	assert.Equal(t, tokensBefore-100, m.record(m.traderBalance).(*account.TokenBalance).Amount)
}

func TestSwapTokens_Literal(t *testing.T) {
	m := newMarket(t)
	require.NoError(t, m.run(m.migrate(10_000)).Receipts[0].Err)

	// (k / (x + 2)) * 2 exceeds the quote reserve
	before := m.digest()
	res := m.run(m.swap(2, PricingLiteral))
	assert.ErrorIs(t, res.Receipts[0].Err, ledger.ErrInsufficientBalance)
	assert.Equal(t, before, m.digest())

	res = m.run(m.swap(1, PricingLiteral))
	require.NoError(t, res.Receipts[0].Err)

	reserve := m.record(m.reserve).(*account.PoolReserve)
	assert.Equal(t, uint64(10_001), reserve.TokenReserve)
	assert.Equal(t, uint64(1), reserve.QuoteReserve)
	assert.Equal(t, uint64(24), m.record(m.pool).(*account.Pool).TotalFees)
}

func TestSwapTokens_Rejections(t *testing.T) {
	m := newMarket(t)

	res := m.run(m.swap(10, PricingExact))
	assert.ErrorIs(t, res.Receipts[0].Err, ledger.ErrInvalidState, "pool without reserves")

	require.NoError(t, m.run(m.migrate(10_000)).Receipts[0].Err)

	res = m.run(m.swap(0, PricingExact))
	assert.ErrorIs(t, res.Receipts[0].Err, ledger.ErrInvalidArgument)

	res = m.run(m.swap(10_000_000, PricingExact))
	assert.ErrorIs(t, res.Receipts[0].Err, ledger.ErrInsufficientBalance)
}

func TestDistributeRevenue(t *testing.T) {
	m := newMarket(t)
	require.NoError(t, m.run(m.migrate(10_000)).Receipts[0].Err)
	require.NoError(t, m.run(m.swap(1, PricingLiteral)).Receipts[0].Err)

	recipient := named(t, "creator-payout")

	res := m.run(&DistributeRevenue{Pool: m.pool, Creator: recipient, Amount: 25})
	assert.ErrorIs(t, res.Receipts[0].Err, ledger.ErrInsufficientFees)

	res = m.run(&DistributeRevenue{Pool: m.pool, Creator: recipient, Amount: 24})
	require.NoError(t, res.Receipts[0].Err)

	pool := m.record(m.pool).(*account.Pool)
	assert.Zero(t, pool.TotalFees)
	assert.Zero(t, pool.Lamports)
	assert.Equal(t, uint64(24), m.record(recipient).(*account.Wallet).Lamports)
}

func TestInitializeDex_Rejections(t *testing.T) {
	m := newMarket(t)

	res := m.run(&InitializeDex{Pool: m.pool, Authority: m.admin, Mint: m.mint, SwapFeeBps: 30})
	assert.ErrorIs(t, res.Receipts[0].Err, ledger.ErrInvalidState)

	other, err := account.PoolKey(named(t, "mint-H"))
	require.NoError(t, err)
	res = m.run(&InitializeDex{Pool: other, Authority: m.admin, SwapFeeBps: 10_001})
	assert.ErrorIs(t, res.Receipts[0].Err, ledger.ErrInvalidArgument)

	assert.Equal(t, PoolUninitialized, State(nil, nil))
	assert.Equal(t, PoolInitialized, State(&account.Pool{}, nil))
}
