// internal/ledger/tx.go
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/rovshanmuradov/launchpad-ledger/internal/account"
	"github.com/rovshanmuradov/launchpad-ledger/internal/events"
	"github.com/rovshanmuradov/launchpad-ledger/internal/sched"
)

type slot struct {
	version uint64 // 0 when the account does not exist yet
	record  account.Record
}

// Tx is the view of the store an instruction runs against. It exposes only
// the declared accounts, hands out working copies and stages every write so
// the executor can commit them together or drop them.
type Tx struct {
	access sched.Access
	loaded map[account.Key]slot
	staged map[account.Key]account.Record
	events []events.Event
}

// NewTx loads every declared account from store. Absent accounts are
// recorded as such; any other store error is returned.
func NewTx(ctx context.Context, store account.Store, access sched.Access) (*Tx, error) {
	tx := &Tx{
		access: access,
		loaded: make(map[account.Key]slot, access.Len()),
		staged: make(map[account.Key]account.Record),
	}

	for _, key := range access.Keys() {
		entry, err := store.Get(ctx, key)
		switch {
		case errors.Is(err, account.ErrNotFound):
			tx.loaded[key] = slot{}
		case err != nil:
			return nil, fmt.Errorf("failed to load account %s: %w", key, err)
		default:
			tx.loaded[key] = slot{version: entry.Version, record: entry.Record}
		}
	}
	return tx, nil
}

func (tx *Tx) current(key account.Key) (account.Record, error) {
	if !tx.access.CanRead(key) {
		return nil, fmt.Errorf("%w: %s was not declared", ErrAccountConflict, key)
	}
	if rec, ok := tx.staged[key]; ok {
		return rec, nil
	}
	return tx.loaded[key].record, nil
}

// Exists reports whether a record is present under key, staged writes included.
func (tx *Tx) Exists(key account.Key) (bool, error) {
	rec, err := tx.current(key)
	if err != nil {
		return false, err
	}
	return rec != nil, nil
}

// Put stages a write of record under key.
func (tx *Tx) Put(key account.Key, record account.Record) error {
	if record == nil {
		return fmt.Errorf("%w: nil record for %s", ErrInvalidArgument, key)
	}
	if !tx.access.CanWrite(key) {
		if tx.access.CanRead(key) {
			return fmt.Errorf("%w: %s is read-only", ErrAccountConflict, key)
		}
		return fmt.Errorf("%w: %s was not declared", ErrAccountConflict, key)
	}
	tx.staged[key] = record.Clone()
	return nil
}

// Create stages a new record. It fails when the account already exists.
func (tx *Tx) Create(key account.Key, record account.Record) error {
	exists, err := tx.Exists(key)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s %s already exists", ErrInvalidState, record.Kind(), key)
	}
	return tx.Put(key, record)
}

// Emit stages an event. It is appended to the log only if the instruction commits.
func (tx *Tx) Emit(event events.Event) {
	tx.events = append(tx.events, event)
}

// Events returns the staged events in emission order.
func (tx *Tx) Events() []events.Event {
	return tx.events
}

// Writes returns the staged writes in key order, each stamped with the
// version that was read so the store can detect lost updates.
func (tx *Tx) Writes() []account.Write {
	writes := make([]account.Write, 0, len(tx.staged))
	for _, key := range tx.access.Writes() {
		rec, ok := tx.staged[key]
		if !ok {
			continue
		}
		writes = append(writes, account.Write{
			Key:     key,
			Version: tx.loaded[key].version,
			Record:  rec,
		})
	}
	return writes
}

func get[T account.Record](tx *Tx, key account.Key, kind account.Kind) (T, error) {
	var zero T
	rec, err := tx.current(key)
	if err != nil {
		return zero, err
	}
	if rec == nil {
		return zero, fmt.Errorf("%w: %s %s: %w", ErrInvalidState, kind, key, account.ErrNotFound)
	}
	typed, ok := rec.Clone().(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s holds %s, want %s", ErrInvalidState, key, rec.Kind(), kind)
	}
	return typed, nil
}

// Platform returns a working copy of the platform record under key.
func (tx *Tx) Platform(key account.Key) (*account.Platform, error) {
	return get[*account.Platform](tx, key, account.KindPlatform)
}

// Listing returns a working copy of a token listing.
func (tx *Tx) Listing(key account.Key) (*account.TokenListing, error) {
	return get[*account.TokenListing](tx, key, account.KindListing)
}

// Mint returns a working copy of a mint.
func (tx *Tx) Mint(key account.Key) (*account.Mint, error) {
	return get[*account.Mint](tx, key, account.KindMint)
}

// Balance returns a working copy of a token balance.
func (tx *Tx) Balance(key account.Key) (*account.TokenBalance, error) {
	return get[*account.TokenBalance](tx, key, account.KindBalance)
}

// Wallet returns a working copy of a quote wallet.
func (tx *Tx) Wallet(key account.Key) (*account.Wallet, error) {
	return get[*account.Wallet](tx, key, account.KindWallet)
}

// Pool returns a working copy of an AMM pool.
func (tx *Tx) Pool(key account.Key) (*account.Pool, error) {
	return get[*account.Pool](tx, key, account.KindPool)
}

// Reserve returns a working copy of a pool reserve.
func (tx *Tx) Reserve(key account.Key) (*account.PoolReserve, error) {
	return get[*account.PoolReserve](tx, key, account.KindPoolReserve)
}

// WalletOrNew returns the wallet under key, or a fresh empty wallet owned by
// owner when none exists yet.
func (tx *Tx) WalletOrNew(key, owner account.Key) (*account.Wallet, error) {
	exists, err := tx.Exists(key)
	if err != nil {
		return nil, err
	}
	if !exists {
		return &account.Wallet{Owner: owner}, nil
	}
	return tx.Wallet(key)
}

// BalanceOrNew returns the token balance under key, or a fresh zero balance.
func (tx *Tx) BalanceOrNew(key, owner, mint account.Key) (*account.TokenBalance, error) {
	exists, err := tx.Exists(key)
	if err != nil {
		return nil, err
	}
	if !exists {
		return &account.TokenBalance{Owner: owner, Mint: mint}, nil
	}
	return tx.Balance(key)
}
