// internal/ledger/executor.go
package ledger

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rovshanmuradov/launchpad-ledger/internal/account"
	"github.com/rovshanmuradov/launchpad-ledger/internal/events"
	"github.com/rovshanmuradov/launchpad-ledger/internal/metrics"
	"github.com/rovshanmuradov/launchpad-ledger/internal/sched"
)

// Receipt is the outcome of one instruction.
type Receipt struct {
	Index  int
	Opcode Opcode
	Err    error // nil when committed; otherwise an *InstructionError
	Events []events.Event
}

// OK reports whether the instruction committed.
func (r Receipt) OK() bool { return r.Err == nil }

// Result is the outcome of one batch.
type Result struct {
	Seq      uint64
	Receipts []Receipt         // submission order
	Events   []events.Envelope // submission order, sequenced by the log
	Plan     *sched.Plan
	Duration time.Duration
}

// Committed returns the number of instructions that committed.
func (r *Result) Committed() int {
	n := 0
	for _, rc := range r.Receipts {
		if rc.OK() {
			n++
		}
	}
	return n
}

// Options configure an Executor. Zero values are usable.
type Options struct {
	Workers   int    // max lanes running at once; defaults to GOMAXPROCS
	LastBatch uint64 // batches are numbered from LastBatch+1
	Metrics   *metrics.Collector
	Log       *events.Log
	Bus       *events.Bus
	Sinks     []events.Sink
}

// Executor runs instruction batches against a store. Instructions whose
// declared accounts are disjoint run concurrently; conflicting ones run in
// submission order. The committed state equals serial execution.
type Executor struct {
	store   account.Store
	locks   *sched.LockManager
	logger  *zap.Logger
	workers int
	metrics *metrics.Collector
	log     *events.Log
	bus     *events.Bus
	sinks   []events.Sink
	seq     atomic.Uint64
}

// NewExecutor creates an executor over store.
func NewExecutor(store account.Store, logger *zap.Logger, opts Options) *Executor {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	log := opts.Log
	if log == nil {
		log = events.NewLog()
	}
	e := &Executor{
		store:   store,
		locks:   sched.NewLockManager(),
		logger:  logger.Named("executor"),
		workers: workers,
		metrics: opts.Metrics,
		log:     log,
		bus:     opts.Bus,
		sinks:   opts.Sinks,
	}
	e.seq.Store(opts.LastBatch)
	return e
}

// Log returns the executor's event log.
func (e *Executor) Log() *events.Log {
	return e.log
}

// Execute runs a batch. Rejected instructions are reported in their receipts
// and do not stop the batch. An error is returned only for infrastructure
// failures (store errors, cancellation); instructions that committed before
// such a failure stay committed.
func (e *Executor) Execute(ctx context.Context, batch []Instruction) (*Result, error) {
	start := time.Now()
	seq := e.seq.Add(1)

	accesses := make([]sched.Access, len(batch))
	for i, ins := range batch {
		accesses[i] = ins.Access()
	}
	plan := sched.PlanBatch(accesses)

	e.logger.Debug("Executing batch",
		zap.Uint64("batch", seq),
		zap.Int("instructions", len(batch)),
		zap.Int("lanes", len(plan.Lanes)),
		zap.Int("conflicts", plan.Conflicts))

	receipts := make([]Receipt, len(batch))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for _, lane := range plan.Lanes {
		g.Go(func() error {
			for _, idx := range lane {
				rc, err := e.executeOne(gctx, seq, idx, batch[idx], accesses[idx])
				if err != nil {
					return err
				}
				receipts[idx] = rc
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		e.logger.Error("Batch aborted", zap.Uint64("batch", seq), zap.Error(err))
		return nil, fmt.Errorf("batch %d aborted: %w", seq, err)
	}

	var envs []events.Envelope
	for _, rc := range receipts {
		for _, ev := range rc.Events {
			envs = append(envs, events.Envelope{Batch: seq, Index: rc.Index, Event: ev})
		}
	}
	envs = e.log.Append(envs...)
	e.dispatch(ctx, envs)

	result := &Result{
		Seq:      seq,
		Receipts: receipts,
		Events:   envs,
		Plan:     plan,
		Duration: time.Since(start),
	}
	if e.metrics != nil {
		e.metrics.RecordBatch(result.Duration, len(plan.Lanes), plan.Conflicts)
	}

	e.logger.Info("Batch executed",
		zap.Uint64("batch", seq),
		zap.Int("instructions", len(batch)),
		zap.Int("committed", result.Committed()),
		zap.Int("events", len(envs)),
		zap.Duration("duration", result.Duration))

	return result, nil
}

func (e *Executor) executeOne(ctx context.Context, seq uint64, idx int, ins Instruction, access sched.Access) (Receipt, error) {
	rc := Receipt{Index: idx, Opcode: ins.Opcode()}

	release, err := e.locks.Acquire(ctx, access)
	if err != nil {
		return rc, fmt.Errorf("failed to lock accounts for instruction %d: %w", idx, err)
	}
	defer release()

	tx, err := NewTx(ctx, e.store, access)
	if err != nil {
		return rc, err
	}

	if err := ins.Apply(tx); err != nil {
		rc.Err = &InstructionError{Index: idx, Opcode: rc.Opcode, Err: err}
		e.logger.Warn("Instruction rejected",
			zap.Uint64("batch", seq),
			zap.Int("index", idx),
			zap.String("opcode", string(rc.Opcode)),
			zap.Error(err))
		e.record(rc)
		return rc, nil
	}

	if writes := tx.Writes(); len(writes) > 0 {
		if err := e.store.Commit(ctx, writes); err != nil {
			return rc, fmt.Errorf("failed to commit instruction %d: %w", idx, err)
		}
	}
	rc.Events = tx.Events()

	e.logger.Debug("Instruction committed",
		zap.Uint64("batch", seq),
		zap.Int("index", idx),
		zap.String("opcode", string(rc.Opcode)),
		zap.Int("writes", len(tx.Writes())),
		zap.Int("events", len(rc.Events)))
	e.record(rc)
	return rc, nil
}

func (e *Executor) record(rc Receipt) {
	if e.metrics != nil {
		e.metrics.RecordInstruction(string(rc.Opcode), rc.OK())
	}
}

// dispatch forwards committed events to the bus and the sinks. Failures here
// are logged only; the in-memory log already holds the events.
func (e *Executor) dispatch(ctx context.Context, envs []events.Envelope) {
	if len(envs) == 0 {
		return
	}
	for _, env := range envs {
		if e.metrics != nil {
			e.metrics.RecordEvent(string(env.Type()))
		}
		if e.bus != nil {
			if err := e.bus.Publish(env); err != nil {
				e.logger.Warn("Failed to publish event",
					zap.Uint64("seq", env.Seq),
					zap.Error(err))
			}
		}
	}
	for _, sink := range e.sinks {
		if err := sink.Write(ctx, envs); err != nil {
			e.logger.Error("Event sink write failed",
				zap.Int("events", len(envs)),
				zap.Error(err))
		}
	}
}
