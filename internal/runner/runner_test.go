package runner

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/rovshanmuradov/launchpad-ledger/internal/config"
	"github.com/rovshanmuradov/launchpad-ledger/internal/events"
)

const graduationBatch = `
genesis:
  - wallet: admin
    lamports: 1000000000
  - wallet: whale
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
    creation_fee: 5000
  - op: buy_tokens
    buyer: whale
    mint: gamma
    amount: 200000
  - op: buy_tokens
    buyer: whale
    mint: gamma
    amount: 1
  - op: reinvest_fees
    treasury: treasury
    amount: 5000
`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func memoryConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.LoadConfig("")
	require.NoError(t, err)
	return cfg
}

func TestRunner_RunMemory(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zapcore.InfoLevel)

	cfg := memoryConfig(t)
	cfg.Events.JournalFile = filepath.Join(t.TempDir(), "events.csv")

	r, err := NewRunner(cfg, zap.New(core))
	require.NoError(t, err)
	require.NoError(t, r.Initialize(ctx))

	report, err := r.Run(ctx, writeFile(t, "batch.yaml", graduationBatch))
	require.NoError(t, err)

	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 2, report.Seeded)
	assert.Equal(t, uint64(1), report.Result.Seq)
	require.Len(t, report.Result.Receipts, 5)
	assert.NoError(t, report.Result.Receipts[2].Err)
	assert.Error(t, report.Result.Receipts[3].Err, "buying after graduation must be rejected")
	assert.NoError(t, report.Result.Receipts[4].Err)
	assert.Equal(t, 4, report.Result.Committed())

	digest, err := r.Digest(ctx)
	require.NoError(t, err)
	assert.Equal(t, report.Digest, digest)

	evs, err := r.Events(ctx, 0)
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.Equal(t, events.TokenGraduated, evs[0].Type())

	series, err := testutil.GatherAndCount(r.Metrics().Registry(), "launchpad_ledger_instructions_total")
	require.NoError(t, err)
	assert.Equal(t, 5, series, "one series per opcode and status")

	r.Shutdown(ctx)

	assert.Equal(t, 1, logs.FilterMessage("Ledger event").Len())
	data, err := os.ReadFile(cfg.Events.JournalFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "token.graduated")
}

func TestRunner_SecondRunContinuesNumbering(t *testing.T) {
	ctx := context.Background()
	r, err := NewRunner(memoryConfig(t), zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, r.Initialize(ctx))
	defer r.Shutdown(ctx)

	path := writeFile(t, "batch.yaml", graduationBatch)
	first, err := r.Run(ctx, path)
	require.NoError(t, err)

	// genesis wallets exist, so nothing is re-funded and the listing already exists
	second, err := r.Run(ctx, path)
	require.NoError(t, err)
	assert.Zero(t, second.Seeded)
	assert.Equal(t, uint64(2), second.Result.Seq)
	assert.Zero(t, second.Result.Committed())
	assert.Equal(t, first.Digest, second.Digest, "a fully rejected batch leaves state untouched")
}

func TestRunner_Errors(t *testing.T) {
	ctx := context.Background()

	cfg := memoryConfig(t)
	cfg.AMM.Pricing = "curved"
	_, err := NewRunner(cfg, zap.NewNop())
	assert.Error(t, err)

	r, err := NewRunner(memoryConfig(t), zap.NewNop())
	require.NoError(t, err)
	_, err = r.Run(ctx, "batch.yaml")
	assert.Error(t, err, "run before initialize")
	_, err = r.Digest(ctx)
	assert.Error(t, err)

	require.NoError(t, r.Initialize(ctx))
	defer r.Shutdown(ctx)
	_, err = r.Run(ctx, writeFile(t, "bad.yaml", "batch:\n  - op: burn\n"))
	assert.Error(t, err)
}

func TestWithSignals_CancelReleases(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	ctx, cancel := WithSignals(context.Background(), zap.New(core))
	cancel()
	<-ctx.Done()
	assert.ErrorIs(t, ctx.Err(), context.Canceled)

	time.Sleep(10 * time.Millisecond)
	assert.Zero(t, logs.FilterMessage("Signal received, cancelling run").Len())
}

func TestWithSignals_InterruptCancels(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	ctx, stop := WithSignals(context.Background(), zap.New(core))
	defer stop()

	self, err := os.FindProcess(os.Getpid())
	require.NoError(t, err)
	if err := self.Signal(os.Interrupt); err != nil {
		t.Skipf("cannot signal own process: %v", err)
	}

	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("context not cancelled by SIGINT")
	}
	require.Eventually(t, func() bool {
		return logs.FilterMessage("Signal received, cancelling run").Len() == 1
	}, time.Second, 10*time.Millisecond)
}
