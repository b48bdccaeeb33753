// internal/batch/genesis.go
package batch

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/launchpad-ledger/internal/account"
)

// Seed opens the genesis wallets. Wallets that already exist are left alone,
// so replaying a file against a persistent store does not mint quote twice.
func (l *Loader) Seed(ctx context.Context, store account.Store, genesis []Genesis) (int, error) {
	created := 0
	for _, g := range genesis {
		_, err := store.Get(ctx, g.Wallet)
		switch {
		case err == nil:
			l.logger.Debug("Genesis wallet exists, skipping", zap.Stringer("wallet", g.Wallet))
			continue
		case !errors.Is(err, account.ErrNotFound):
			return created, fmt.Errorf("genesis wallet %s: %w", g.Wallet, err)
		}

		if _, err := store.Put(ctx, g.Wallet, &account.Wallet{Owner: g.Wallet, Lamports: g.Lamports}); err != nil {
			return created, fmt.Errorf("genesis wallet %s: %w", g.Wallet, err)
		}
		created++
	}
	return created, nil
}
