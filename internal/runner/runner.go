// internal/runner/runner.go
package runner

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/launchpad-ledger/internal/account"
	"github.com/rovshanmuradov/launchpad-ledger/internal/batch"
	"github.com/rovshanmuradov/launchpad-ledger/internal/config"
	"github.com/rovshanmuradov/launchpad-ledger/internal/dex/amm"
	"github.com/rovshanmuradov/launchpad-ledger/internal/events"
	"github.com/rovshanmuradov/launchpad-ledger/internal/export"
	"github.com/rovshanmuradov/launchpad-ledger/internal/ledger"
	"github.com/rovshanmuradov/launchpad-ledger/internal/metrics"
	"github.com/rovshanmuradov/launchpad-ledger/internal/storage/clickhouse"
	"github.com/rovshanmuradov/launchpad-ledger/internal/storage/postgres"
)

// JournalFlushInterval is how often the CSV event journal is synced.
const JournalFlushInterval = time.Second

// Report summarizes one batch run.
type Report struct {
	RunID   string
	Seeded  int // genesis wallets created
	Result  *ledger.Result
	Digest  string
	Elapsed time.Duration
}

// Runner owns the backends for one process and runs batch files through the
// executor.
type Runner struct {
	logger  *zap.Logger
	config  *config.Config
	model   amm.PricingModel
	metrics *metrics.Collector

	store    account.Store
	pool     *postgres.Pool
	eventDB  *postgres.EventStore
	chConn   *clickhouse.Conn
	journal  *export.Journal
	bus      *events.Bus
	sub      events.Subscription
	loader   *batch.Loader
	executor *ledger.Executor
}

// NewRunner validates the pricing model and prepares an uninitialized runner.
func NewRunner(cfg *config.Config, logger *zap.Logger) (*Runner, error) {
	model, err := amm.ParsePricingModel(cfg.AMM.Pricing)
	if err != nil {
		return nil, err
	}
	return &Runner{
		logger:  logger,
		config:  cfg,
		model:   model,
		metrics: metrics.NewCollector(),
	}, nil
}

// Initialize opens the account store and every configured event sink.
// Resources opened before a failure are released by Shutdown.
func (r *Runner) Initialize(ctx context.Context) error {
	var sinks []events.Sink
	var lastSeq, lastBatch uint64

	switch r.config.Storage.Driver {
	case config.DriverPostgres:
		pool, err := postgres.NewPool(ctx, r.config.Storage.PostgresURL, r.logger)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		r.pool = pool
		if err := postgres.RunMigrations(ctx, pool); err != nil {
			return fmt.Errorf("migrate postgres: %w", err)
		}
		r.store = postgres.NewAccountStore(pool)
		r.eventDB = postgres.NewEventStore(pool)
		sinks = append(sinks, r.eventDB)

		if lastSeq, lastBatch, err = r.eventDB.Cursor(ctx); err != nil {
			return err
		}
		r.logger.Info("Using postgres storage",
			zap.Uint64("last_seq", lastSeq),
			zap.Uint64("last_batch", lastBatch))
	default:
		r.store = account.NewMemoryStore()
		r.logger.Info("Using in-memory storage")
	}

	if dsn := r.config.Events.ClickHouseURL; dsn != "" {
		conn, err := clickhouse.NewConn(ctx, dsn, r.logger)
		if err != nil {
			return fmt.Errorf("connect clickhouse: %w", err)
		}
		r.chConn = conn
		sink := clickhouse.NewEventSink(conn)
		if err := sink.EnsureSchema(ctx); err != nil {
			return err
		}
		sinks = append(sinks, sink)
	}

	if path := r.config.Events.JournalFile; path != "" {
		journal, err := export.NewJournal(path, JournalFlushInterval, r.logger.Named("journal"))
		if err != nil {
			return fmt.Errorf("open event journal: %w", err)
		}
		r.journal = journal
		sinks = append(sinks, journal)
	}

	r.bus = events.NewBus(r.logger, r.config.Events.BufferSize)
	r.sub = r.bus.Subscribe(events.AllEvents, events.HandlerFunc(r.onEvent))

	r.loader = batch.NewLoader(r.logger, r.model)
	r.executor = ledger.NewExecutor(r.store, r.logger, ledger.Options{
		Workers:   r.config.Workers,
		LastBatch: lastBatch,
		Metrics:   r.metrics,
		Log:       events.NewLogAt(lastSeq),
		Bus:       r.bus,
		Sinks:     sinks,
	})

	r.logger.Info("Runner initialized",
		zap.Int("workers", r.config.Workers),
		zap.String("pricing", string(r.model)),
		zap.Int("sinks", len(sinks)))
	return nil
}

func (r *Runner) onEvent(_ context.Context, env events.Envelope) error {
	r.logger.Info("Ledger event",
		zap.Uint64("seq", env.Seq),
		zap.Uint64("batch", env.Batch),
		zap.Int("index", env.Index),
		zap.String("type", string(env.Type())),
		zap.Stringer("mint", env.Mint()),
		zap.Uint64("amount", env.Amount()))
	return nil
}

// Run loads a batch file, funds its genesis wallets and executes it.
func (r *Runner) Run(ctx context.Context, batchPath string) (*Report, error) {
	if r.executor == nil {
		return nil, errors.New("runner is not initialized")
	}
	start := time.Now()
	report := &Report{RunID: uuid.NewString()}
	log := r.logger.With(zap.String("run_id", report.RunID))

	b, err := r.loader.Load(batchPath)
	if err != nil {
		return nil, fmt.Errorf("load batch: %w", err)
	}
	if report.Seeded, err = r.loader.Seed(ctx, r.store, b.Genesis); err != nil {
		return nil, fmt.Errorf("seed genesis: %w", err)
	}

	log.Info("Executing batch",
		zap.String("file", batchPath),
		zap.Int("instructions", len(b.Instructions)),
		zap.Int("seeded", report.Seeded))

	if report.Result, err = r.executor.Execute(ctx, b.Instructions); err != nil {
		return nil, err
	}
	if report.Digest, err = r.Digest(ctx); err != nil {
		return nil, err
	}
	report.Elapsed = time.Since(start)

	log.Info("Batch complete",
		zap.Uint64("batch", report.Result.Seq),
		zap.Int("committed", report.Result.Committed()),
		zap.Int("rejected", len(report.Result.Receipts)-report.Result.Committed()),
		zap.String("digest", report.Digest),
		zap.Duration("elapsed", report.Elapsed))
	return report, nil
}

// Digest returns the state digest of the account store.
func (r *Runner) Digest(ctx context.Context) (string, error) {
	if r.store == nil {
		return "", errors.New("runner is not initialized")
	}
	return account.StateDigest(ctx, r.store)
}

// Events returns logged events after seq. With postgres storage the durable
// log is read; otherwise the in-process log.
func (r *Runner) Events(ctx context.Context, since uint64) ([]events.Envelope, error) {
	if r.eventDB != nil {
		return r.eventDB.Since(ctx, since)
	}
	if r.executor == nil {
		return nil, errors.New("runner is not initialized")
	}
	return r.executor.Log().Since(since), nil
}

// Metrics returns the runner's collector.
func (r *Runner) Metrics() *metrics.Collector {
	return r.metrics
}

// Shutdown drains the bus and closes every backend. Safe after a failed
// Initialize.
func (r *Runner) Shutdown(ctx context.Context) {
	r.logger.Info("Runner shutting down")

	if r.bus != nil {
		if err := r.bus.Shutdown(ctx); err != nil {
			r.logger.Warn("Event bus shutdown incomplete", zap.Error(err))
		}
		r.sub.Unsubscribe()
	}
	if r.journal != nil {
		if err := r.journal.Close(); err != nil {
			r.logger.Error("Failed to close event journal", zap.Error(err))
		}
	}
	if r.chConn != nil {
		if err := r.chConn.Close(); err != nil {
			r.logger.Error("Failed to close clickhouse connection", zap.Error(err))
		}
	}
	if r.pool != nil {
		r.pool.Close()
	}
}

// WithSignals returns a context cancelled on SIGINT or SIGTERM. A signal is
// logged; calling the returned stop function is not.
func WithSignals(ctx context.Context, logger *zap.Logger) (context.Context, context.CancelFunc) {
	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)

	var stopped atomic.Bool
	context.AfterFunc(sigCtx, func() {
		if !stopped.Load() && ctx.Err() == nil {
			logger.Info("Signal received, cancelling run")
		}
	})
	return sigCtx, func() {
		stopped.Store(true)
		stop()
	}
}
