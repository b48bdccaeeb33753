// =============================
// File: internal/account/key.go
// =============================
package account

import (
	"crypto/sha256"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Key identifies an account. It is a plain ed25519-sized public key.
type Key = solana.PublicKey

// PDA seeds.
const (
	SeedPlatform    = "launchpad"
	SeedListing     = "token-listing"
	SeedPool        = "pool"
	SeedPoolReserve = "pool-reserve"
	SeedBalance     = "balance"
)

// ProgramID is the owner used when deriving program addresses.
var ProgramID = func() solana.PublicKey {
	sum := sha256.Sum256([]byte("launchpad-ledger"))
	return solana.PublicKeyFromBytes(sum[:])
}()

// NamedKey returns a deterministic key for a symbolic name such as a wallet
// alias used in batch files.
func NamedKey(name string) (Key, error) {
	if name == "" {
		return Key{}, fmt.Errorf("empty account name")
	}
	key, err := solana.CreateWithSeed(ProgramID, name, ProgramID)
	if err != nil {
		return Key{}, fmt.Errorf("failed to derive key for %q: %w", name, err)
	}
	return key, nil
}

func derive(seeds ...[]byte) (Key, error) {
	addr, _, err := solana.FindProgramAddress(seeds, ProgramID)
	if err != nil {
		return Key{}, fmt.Errorf("failed to derive program address: %w", err)
	}
	return addr, nil
}

// PlatformKey derives the platform singleton address.
func PlatformKey() (Key, error) {
	return derive([]byte(SeedPlatform))
}

// ListingKey derives the listing address for a mint.
func ListingKey(mint Key) (Key, error) {
	return derive([]byte(SeedListing), mint.Bytes())
}

// PoolKey derives the pool address for a mint.
func PoolKey(mint Key) (Key, error) {
	return derive([]byte(SeedPool), mint.Bytes())
}

// PoolReserveKey derives the reserve vault address for a pool.
func PoolReserveKey(pool Key) (Key, error) {
	return derive([]byte(SeedPoolReserve), pool.Bytes())
}

// BalanceKey derives the token balance address of owner for mint.
func BalanceKey(owner, mint Key) (Key, error) {
	return derive([]byte(SeedBalance), owner.Bytes(), mint.Bytes())
}
