// internal/events/types.go
package events

import (
	"fmt"

	"github.com/rovshanmuradov/launchpad-ledger/internal/account"
)

// EventType represents the type of event.
type EventType string

const (
	// TokenGraduated is emitted once when a listing's market cap reaches the
	// graduation threshold.
	TokenGraduated EventType = "token.graduated"

	// TokenMigrated is emitted when graduated liquidity is seeded into a pool.
	TokenMigrated EventType = "token.migrated"

	// AllEvents subscribes a handler to every event type.
	AllEvents EventType = "*"
)

// Event is the base interface for ledger events.
type Event interface {
	Type() EventType
}

// TokenGraduationEvent records a listing crossing the graduation threshold.
type TokenGraduationEvent struct {
	Mint      account.Key `json:"mint"`
	MarketCap uint64      `json:"market_cap"`
}

// Type returns TokenGraduated.
func (TokenGraduationEvent) Type() EventType { return TokenGraduated }

// TokenMigrationEvent records liquidity moving from the curve into a pool.
type TokenMigrationEvent struct {
	Mint            account.Key `json:"mint"`
	LiquidityAmount uint64      `json:"liquidity_amount"`
}

// Type returns TokenMigrated.
func (TokenMigrationEvent) Type() EventType { return TokenMigrated }

// NewEvent rebuilds an event from its stored columns.
func NewEvent(t EventType, mint account.Key, amount uint64) (Event, error) {
	switch t {
	case TokenGraduated:
		return TokenGraduationEvent{Mint: mint, MarketCap: amount}, nil
	case TokenMigrated:
		return TokenMigrationEvent{Mint: mint, LiquidityAmount: amount}, nil
	default:
		return nil, fmt.Errorf("unknown event type %q", t)
	}
}

// Envelope positions an event in the append-only log.
type Envelope struct {
	Seq   uint64 `json:"seq"`   // position in the log, starting at 1
	Batch uint64 `json:"batch"` // batch sequence number
	Index int    `json:"index"` // instruction index inside the batch
	Event Event  `json:"event"`
}

// Type returns the wrapped event type.
func (e Envelope) Type() EventType {
	if e.Event == nil {
		return ""
	}
	return e.Event.Type()
}

// Mint returns the mint the wrapped event refers to.
func (e Envelope) Mint() account.Key {
	switch ev := e.Event.(type) {
	case TokenGraduationEvent:
		return ev.Mint
	case TokenMigrationEvent:
		return ev.Mint
	default:
		return account.Key{}
	}
}

// Amount returns the event's value: market cap or liquidity amount.
func (e Envelope) Amount() uint64 {
	switch ev := e.Event.(type) {
	case TokenGraduationEvent:
		return ev.MarketCap
	case TokenMigrationEvent:
		return ev.LiquidityAmount
	default:
		return 0
	}
}
