// internal/storage/clickhouse/event_sink.go
package clickhouse

import (
	"context"
	"fmt"

	"github.com/rovshanmuradov/launchpad-ledger/internal/events"
)

const createEventsTable = `
	CREATE TABLE IF NOT EXISTS ledger_events (
		seq        UInt64,
		batch      UInt64,
		idx        UInt32,
		event_type LowCardinality(String),
		mint       String,
		amount     UInt64,
		inserted   DateTime DEFAULT now()
	)
	ENGINE = ReplacingMergeTree
	ORDER BY seq
`

// EventSink copies committed events into ClickHouse for analytics. Rows are
// keyed by seq in a ReplacingMergeTree, so re-sent batches collapse on merge.
type EventSink struct {
	conn *Conn
}

// NewEventSink creates a new EventSink.
func NewEventSink(conn *Conn) *EventSink {
	return &EventSink{conn: conn}
}

var _ events.Sink = (*EventSink)(nil)

// EnsureSchema creates the events table if it does not exist.
func (s *EventSink) EnsureSchema(ctx context.Context) error {
	if err := s.conn.Exec(ctx, createEventsTable); err != nil {
		return fmt.Errorf("create ledger_events: %w", err)
	}
	return nil
}

// Write appends envelopes in one native batch.
func (s *EventSink) Write(ctx context.Context, envs []events.Envelope) error {
	if len(envs) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO ledger_events (seq, batch, idx, event_type, mint, amount)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, env := range envs {
		err = batch.Append(
			env.Seq, env.Batch, uint32(env.Index),
			string(env.Type()), env.Mint().String(), env.Amount(),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// TypeCount is the number of events of one type.
type TypeCount struct {
	Type  events.EventType
	Count uint64
}

// CountByType returns event counts per type, deduplicated by seq.
func (s *EventSink) CountByType(ctx context.Context) ([]TypeCount, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT event_type, uniqExact(seq) AS n
		FROM ledger_events
		GROUP BY event_type
		ORDER BY event_type
	`)
	if err != nil {
		return nil, fmt.Errorf("count events: %w", err)
	}
	defer rows.Close()

	var result []TypeCount
	for rows.Next() {
		var (
			eventType string
			n         uint64
		)
		if err := rows.Scan(&eventType, &n); err != nil {
			return nil, fmt.Errorf("scan event count: %w", err)
		}
		result = append(result, TypeCount{Type: events.EventType(eventType), Count: n})
	}
	return result, rows.Err()
}
