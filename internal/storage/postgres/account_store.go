// internal/storage/postgres/account_store.go
package postgres

import (
	"context"
	"fmt"
	"math"

	"github.com/rovshanmuradov/launchpad-ledger/internal/account"
)

// AccountStore implements account.Store over the accounts table. Records are
// stored in their borsh encoding; bytea keys sort the same way as the
// in-memory store, so snapshots and digests match across backends.
type AccountStore struct {
	pool *Pool
}

// NewAccountStore creates a new AccountStore.
func NewAccountStore(pool *Pool) *AccountStore {
	return &AccountStore{pool: pool}
}

func unsigned(v int64) uint64 { return uint64(v) }

func signed(v uint64) (int64, error) {
	if v > math.MaxInt64 {
		return 0, fmt.Errorf("%w: %d exceeds bigint range", account.ErrInvalidInput, v)
	}
	return int64(v), nil
}

func scanKey(raw []byte) (account.Key, error) {
	var key account.Key
	if len(raw) != len(key) {
		return key, fmt.Errorf("stored key has %d bytes", len(raw))
	}
	copy(key[:], raw)
	return key, nil
}

// Get returns the current entry. Returns account.ErrNotFound if absent.
func (s *AccountStore) Get(ctx context.Context, key account.Key) (*account.Entry, error) {
	var (
		version int64
		data    []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT version, data FROM accounts WHERE key = $1`, key[:],
	).Scan(&version, &data)
	if err != nil {
		if isNotFoundError(err) {
			return nil, account.ErrNotFound
		}
		return nil, fmt.Errorf("get account %s: %w", key, err)
	}

	record, err := account.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode account %s: %w", key, err)
	}
	return &account.Entry{Key: key, Version: unsigned(version), Record: record}, nil
}

// Put stores a record unconditionally and returns its new version.
func (s *AccountStore) Put(ctx context.Context, key account.Key, record account.Record) (uint64, error) {
	if record == nil {
		return 0, account.ErrInvalidInput
	}
	data, err := account.Encode(record)
	if err != nil {
		return 0, err
	}

	var version int64
	err = s.pool.QueryRow(ctx, `
		INSERT INTO accounts (key, kind, version, data)
		VALUES ($1, $2, 1, $3)
		ON CONFLICT (key) DO UPDATE
		SET kind = EXCLUDED.kind,
		    data = EXCLUDED.data,
		    version = accounts.version + 1,
		    updated_at = now()
		RETURNING version`,
		key[:], int16(record.Kind()), data,
	).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("put account %s: %w", key, err)
	}
	return unsigned(version), nil
}

// Commit applies all writes in one transaction. A write staged at version
// zero inserts; any other write updates only if the stored version still
// matches. A mismatch rolls everything back with account.ErrVersionConflict.
func (s *AccountStore) Commit(ctx context.Context, writes []account.Write) error {
	if len(writes) == 0 {
		return nil
	}

	type row struct {
		key     account.Key
		kind    int16
		version int64
		data    []byte
	}
	rows := make([]row, 0, len(writes))
	seen := make(map[account.Key]struct{}, len(writes))
	for _, w := range writes {
		if w.Record == nil {
			return account.ErrInvalidInput
		}
		if _, dup := seen[w.Key]; dup {
			return account.ErrInvalidInput
		}
		seen[w.Key] = struct{}{}

		data, err := account.Encode(w.Record)
		if err != nil {
			return err
		}
		version, err := signed(w.Version)
		if err != nil {
			return err
		}
		rows = append(rows, row{key: w.Key, kind: int16(w.Record.Kind()), version: version, data: data})
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for _, r := range rows {
		if r.version == 0 {
			_, err := tx.Exec(ctx,
				`INSERT INTO accounts (key, kind, version, data) VALUES ($1, $2, 1, $3)`,
				r.key[:], r.kind, r.data)
			if err != nil {
				if isDuplicateKeyError(err) {
					return account.ErrVersionConflict
				}
				return fmt.Errorf("insert account %s: %w", r.key, err)
			}
			continue
		}

		tag, err := tx.Exec(ctx, `
			UPDATE accounts
			SET kind = $2, data = $3, version = version + 1, updated_at = now()
			WHERE key = $1 AND version = $4`,
			r.key[:], r.kind, r.data, r.version)
		if err != nil {
			return fmt.Errorf("update account %s: %w", r.key, err)
		}
		if tag.RowsAffected() == 0 {
			return account.ErrVersionConflict
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Snapshot returns every entry ordered by key.
func (s *AccountStore) Snapshot(ctx context.Context) ([]*account.Entry, error) {
	rows, err := s.pool.Query(ctx, `SELECT key, version, data FROM accounts ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	var result []*account.Entry
	for rows.Next() {
		var (
			rawKey  []byte
			version int64
			data    []byte
		)
		if err := rows.Scan(&rawKey, &version, &data); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		key, err := scanKey(rawKey)
		if err != nil {
			return nil, err
		}
		record, err := account.Decode(data)
		if err != nil {
			return nil, fmt.Errorf("decode account %s: %w", key, err)
		}
		result = append(result, &account.Entry{Key: key, Version: unsigned(version), Record: record})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}
	return result, nil
}

// Truncate removes every account.
func (s *AccountStore) Truncate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `TRUNCATE accounts`)
	return err
}

var _ account.Store = (*AccountStore)(nil)
