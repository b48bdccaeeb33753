// internal/storage/postgres/event_store.go
package postgres

import (
	"context"
	"fmt"
	"math/big"
	"strconv"

	"github.com/gagliardetto/solana-go"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/rovshanmuradov/launchpad-ledger/internal/account"
	"github.com/rovshanmuradov/launchpad-ledger/internal/events"
)

// EventStore persists the event log. It implements events.Sink.
type EventStore struct {
	pool *Pool
}

// NewEventStore creates a new EventStore.
func NewEventStore(pool *Pool) *EventStore {
	return &EventStore{pool: pool}
}

var _ events.Sink = (*EventStore)(nil)

func numeric(v uint64) pgtype.Numeric {
	return pgtype.Numeric{Int: new(big.Int).SetUint64(v), Valid: true}
}

// Write stores envelopes atomically. Sequence numbers already present are
// skipped, so a batch may be re-sent after a partial failure.
func (s *EventStore) Write(ctx context.Context, envs []events.Envelope) error {
	if len(envs) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	query := `
		INSERT INTO ledger_events (seq, batch, idx, event_type, mint, amount)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (seq) DO NOTHING
	`

	batch := &pgx.Batch{}
	for _, env := range envs {
		seq, err := signed(env.Seq)
		if err != nil {
			return err
		}
		batchSeq, err := signed(env.Batch)
		if err != nil {
			return err
		}
		batch.Queue(query,
			seq,
			batchSeq,
			env.Index,
			string(env.Type()),
			env.Mint().String(),
			numeric(env.Amount()),
		)
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert ledger events: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Since returns events with seq greater than after, in log order.
func (s *EventStore) Since(ctx context.Context, after uint64) ([]events.Envelope, error) {
	from, err := signed(after)
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, `
		SELECT seq, batch, idx, event_type, mint, amount::text
		FROM ledger_events
		WHERE seq > $1
		ORDER BY seq ASC
	`, from)
	if err != nil {
		return nil, fmt.Errorf("get ledger events: %w", err)
	}
	defer rows.Close()

	return scanEnvelopes(rows)
}

// ByMint returns every event for a mint, in log order.
func (s *EventStore) ByMint(ctx context.Context, mint account.Key) ([]events.Envelope, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT seq, batch, idx, event_type, mint, amount::text
		FROM ledger_events
		WHERE mint = $1
		ORDER BY seq ASC
	`, mint.String())
	if err != nil {
		return nil, fmt.Errorf("get ledger events by mint: %w", err)
	}
	defer rows.Close()

	return scanEnvelopes(rows)
}

// Cursor returns the highest persisted seq and batch numbers, zero when the
// table is empty. Used to resume numbering after a restart.
func (s *EventStore) Cursor(ctx context.Context) (lastSeq, lastBatch uint64, err error) {
	var seq, batch int64
	err = s.pool.QueryRow(ctx,
		`SELECT COALESCE(MAX(seq), 0), COALESCE(MAX(batch), 0) FROM ledger_events`,
	).Scan(&seq, &batch)
	if err != nil {
		return 0, 0, fmt.Errorf("get ledger event cursor: %w", err)
	}
	return unsigned(seq), unsigned(batch), nil
}

func scanEnvelopes(rows pgx.Rows) ([]events.Envelope, error) {
	var result []events.Envelope
	for rows.Next() {
		var (
			seq, batch int64
			idx        int
			eventType  string
			mint       string
			amount     string
		)
		if err := rows.Scan(&seq, &batch, &idx, &eventType, &mint, &amount); err != nil {
			return nil, fmt.Errorf("scan ledger event: %w", err)
		}

		key, err := solana.PublicKeyFromBase58(mint)
		if err != nil {
			return nil, fmt.Errorf("ledger event %d: bad mint: %w", seq, err)
		}
		value, err := strconv.ParseUint(amount, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("ledger event %d: bad amount: %w", seq, err)
		}
		ev, err := events.NewEvent(events.EventType(eventType), key, value)
		if err != nil {
			return nil, fmt.Errorf("ledger event %d: %w", seq, err)
		}

		result = append(result, events.Envelope{
			Seq:   unsigned(seq),
			Batch: unsigned(batch),
			Index: idx,
			Event: ev,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger events: %w", err)
	}
	return result, nil
}
