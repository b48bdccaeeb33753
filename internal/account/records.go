// =============================
// File: internal/account/records.go
// =============================
package account

import "fmt"

// Kind discriminates the typed record stored under a key.
type Kind uint8

const (
	KindPlatform Kind = iota + 1
	KindListing
	KindMint
	KindBalance
	KindWallet
	KindPool
	KindPoolReserve
)

func (k Kind) String() string {
	switch k {
	case KindPlatform:
		return "platform"
	case KindListing:
		return "token_listing"
	case KindMint:
		return "mint"
	case KindBalance:
		return "token_balance"
	case KindWallet:
		return "wallet"
	case KindPool:
		return "pool"
	case KindPoolReserve:
		return "pool_reserve"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Record is a typed account payload.
type Record interface {
	Kind() Kind
	Clone() Record
}

// Platform is the launchpad configuration singleton.
type Platform struct {
	Authority Key
	FeeBps    uint64
	TotalFees uint64
	Lamports  uint64 // quote value held by the platform
}

func (p *Platform) Kind() Kind    { return KindPlatform }
func (p *Platform) Clone() Record { c := *p; return &c }

// TokenListing tracks a token sold on the bonding curve.
type TokenListing struct {
	Mint         Key
	Creator      Key
	Name         string
	Symbol       string
	URI          string
	Supply       uint64
	BondingCurve uint64 // cumulative units sold, the curve position
	MarketCap    uint64
	Graduated    bool
}

func (l *TokenListing) Kind() Kind    { return KindListing }
func (l *TokenListing) Clone() Record { c := *l; return &c }

// Mint is the token definition.
type Mint struct {
	Authority Key
	Decimals  uint8
	Supply    uint64
}

func (m *Mint) Kind() Kind    { return KindMint }
func (m *Mint) Clone() Record { c := *m; return &c }

// TokenBalance holds tokens of one mint for one owner.
type TokenBalance struct {
	Owner  Key
	Mint   Key
	Amount uint64
}

func (b *TokenBalance) Kind() Kind    { return KindBalance }
func (b *TokenBalance) Clone() Record { c := *b; return &c }

// Wallet holds quote value (lamports).
type Wallet struct {
	Owner    Key
	Lamports uint64
}

func (w *Wallet) Kind() Kind    { return KindWallet }
func (w *Wallet) Clone() Record { c := *w; return &c }

// Pool is the AMM configuration and fee vault for one graduated token.
type Pool struct {
	Authority  Key
	Mint       Key
	SwapFeeBps uint64
	TotalFees  uint64
	Lamports   uint64 // collected fee value
	Migrated   bool
}

func (p *Pool) Kind() Kind    { return KindPool }
func (p *Pool) Clone() Record { c := *p; return &c }

// PoolReserve holds the physical reserves behind a pool.
type PoolReserve struct {
	Pool         Key
	Mint         Key
	TokenReserve uint64
	QuoteReserve uint64
}

func (r *PoolReserve) Kind() Kind    { return KindPoolReserve }
func (r *PoolReserve) Clone() Record { c := *r; return &c }

// Active reports whether both sides of the reserve are funded.
func (r *PoolReserve) Active() bool {
	return r.TokenReserve > 0 && r.QuoteReserve > 0
}
