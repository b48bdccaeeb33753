// internal/ledger/errors.go
package ledger

import (
	"errors"
	"fmt"

	"github.com/rovshanmuradov/launchpad-ledger/internal/account"
	"github.com/rovshanmuradov/launchpad-ledger/internal/checked"
)

// Rejection reasons. An instruction failing with any of these leaves no trace
// in the store or the event log.
var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInsufficientFees    = errors.New("insufficient fees")
	ErrArithmeticOverflow  = checked.ErrOverflow
	ErrInvalidState        = errors.New("invalid state")
	ErrAccountConflict     = errors.New("account conflict")
	ErrInvalidArgument     = errors.New("invalid argument")
)

// InstructionError reports a rejected instruction by its position in the batch.
type InstructionError struct {
	Index  int
	Opcode Opcode
	Err    error
}

func (e *InstructionError) Error() string {
	return fmt.Sprintf("instruction %d (%s): %v", e.Index, e.Opcode, e.Err)
}

func (e *InstructionError) Unwrap() error {
	return e.Err
}

// RequireDistinct rejects instructions that pass one account for two roles.
func RequireDistinct(keys ...account.Key) error {
	seen := make(map[account.Key]struct{}, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			return fmt.Errorf("%w: account %s passed twice", ErrInvalidArgument, k)
		}
		seen[k] = struct{}{}
	}
	return nil
}
