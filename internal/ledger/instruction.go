// internal/ledger/instruction.go
package ledger

import "github.com/rovshanmuradov/launchpad-ledger/internal/sched"

// Opcode names an instruction kind.
type Opcode string

const (
	OpInitialize        Opcode = "initialize"
	OpCreateToken       Opcode = "create_token"
	OpBuyTokens         Opcode = "buy_tokens"
	OpReinvestFees      Opcode = "reinvest_fees"
	OpInitializeDex     Opcode = "initialize_dex"
	OpMigrateToken      Opcode = "migrate_token"
	OpSwapTokens        Opcode = "swap_tokens"
	OpDistributeRevenue Opcode = "distribute_revenue"
)

// Instruction is one state transition. Access must name every account Apply
// touches; Apply sees nothing else. Apply must be deterministic and must not
// block: all account data is loaded before it runs.
type Instruction interface {
	Opcode() Opcode
	Access() sched.Access
	Apply(tx *Tx) error
}
