//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/launchpad-ledger/internal/account"
	"github.com/rovshanmuradov/launchpad-ledger/internal/events"
)

// setupTestDB starts a PostgreSQL container and applies migrations.
func setupTestDB(t *testing.T) *Pool {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:15-alpine",
		tcpostgres.WithDatabase("ledger"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start postgres container")
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := NewPool(ctx, dsn, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, RunMigrations(ctx, pool))
	// second run must be a no-op
	require.NoError(t, RunMigrations(ctx, pool))
	return pool
}

func TestAccountStore(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()

	pg := NewAccountStore(pool)
	mem := account.NewMemoryStore()
	mint := solana.NewWallet().PublicKey()
	wallet := solana.NewWallet().PublicKey()
	balance := solana.NewWallet().PublicKey()

	t.Run("get missing", func(t *testing.T) {
		_, err := pg.Get(ctx, wallet)
		assert.ErrorIs(t, err, account.ErrNotFound)
	})

	t.Run("put bumps version", func(t *testing.T) {
		v, err := pg.Put(ctx, wallet, &account.Wallet{Owner: wallet, Lamports: 10})
		require.NoError(t, err)
		assert.Equal(t, uint64(1), v)

		v, err = pg.Put(ctx, wallet, &account.Wallet{Owner: wallet, Lamports: 20})
		require.NoError(t, err)
		assert.Equal(t, uint64(2), v)

		e, err := pg.Get(ctx, wallet)
		require.NoError(t, err)
		assert.Equal(t, uint64(2), e.Version)
		assert.Equal(t, &account.Wallet{Owner: wallet, Lamports: 20}, e.Record)
	})

	t.Run("commit is all or nothing", func(t *testing.T) {
		writes := []account.Write{
			{Key: balance, Version: 0, Record: &account.TokenBalance{Owner: wallet, Mint: mint, Amount: 5}},
			{Key: wallet, Version: 1, Record: &account.Wallet{Owner: wallet, Lamports: 0}},
		}
		assert.ErrorIs(t, pg.Commit(ctx, writes), account.ErrVersionConflict)

		_, err := pg.Get(ctx, balance)
		assert.ErrorIs(t, err, account.ErrNotFound, "insert must roll back")

		writes[1].Version = 2
		require.NoError(t, pg.Commit(ctx, writes))

		e, err := pg.Get(ctx, wallet)
		require.NoError(t, err)
		assert.Equal(t, uint64(3), e.Version)
	})

	t.Run("create races conflict", func(t *testing.T) {
		err := pg.Commit(ctx, []account.Write{
			{Key: balance, Version: 0, Record: &account.TokenBalance{Owner: wallet, Mint: mint}},
		})
		assert.ErrorIs(t, err, account.ErrVersionConflict)
	})

	t.Run("rejects duplicate keys", func(t *testing.T) {
		rec := &account.Wallet{Owner: wallet}
		err := pg.Commit(ctx, []account.Write{
			{Key: wallet, Version: 3, Record: rec},
			{Key: wallet, Version: 3, Record: rec},
		})
		assert.ErrorIs(t, err, account.ErrInvalidInput)
	})

	t.Run("digest matches memory store", func(t *testing.T) {
		require.NoError(t, pg.Truncate(ctx))
		for i := 0; i < 16; i++ {
			key := solana.NewWallet().PublicKey()
			rec := &account.Wallet{Owner: key, Lamports: uint64(i) * 1_000}
			_, err := pg.Put(ctx, key, rec)
			require.NoError(t, err)
			_, err = mem.Put(ctx, key, rec)
			require.NoError(t, err)
		}

		want, err := account.StateDigest(ctx, mem)
		require.NoError(t, err)
		got, err := account.StateDigest(ctx, pg)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})
}

func TestEventStore(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	store := NewEventStore(pool)

	seq, batch, err := store.Cursor(ctx)
	require.NoError(t, err)
	assert.Zero(t, seq)
	assert.Zero(t, batch)

	mintA := solana.NewWallet().PublicKey()
	mintB := solana.NewWallet().PublicKey()
	log := events.NewLog()
	envs := log.Append(
		events.Envelope{Batch: 1, Index: 2, Event: events.TokenGraduationEvent{Mint: mintA, MarketCap: 18_000_000_000_000_000_000}},
		events.Envelope{Batch: 1, Index: 4, Event: events.TokenGraduationEvent{Mint: mintB, MarketCap: 100_000_000_000}},
		events.Envelope{Batch: 2, Index: 0, Event: events.TokenMigrationEvent{Mint: mintA, LiquidityAmount: 50_000}},
	)

	require.NoError(t, store.Write(ctx, envs))
	// re-sending is idempotent
	require.NoError(t, store.Write(ctx, envs[1:]))

	all, err := store.Since(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, envs, all)

	tail, err := store.Since(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, envs[2:], tail)

	byMint, err := store.ByMint(ctx, mintA)
	require.NoError(t, err)
	assert.Equal(t, []events.Envelope{envs[0], envs[2]}, byMint)

	seq, batch, err = store.Cursor(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), seq)
	assert.Equal(t, uint64(2), batch)
}
