// internal/checked/checked.go
package checked

import (
	"errors"
	"math/bits"
)

// BasisPoints is the denominator for fee rates expressed in basis points.
const BasisPoints uint64 = 10_000

// ErrOverflow is returned when an operation would overflow or underflow uint64.
var ErrOverflow = errors.New("arithmetic overflow")

// Add returns a + b.
func Add(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, ErrOverflow
	}
	return sum, nil
}

// Sub returns a - b. Underflow is reported as ErrOverflow.
func Sub(a, b uint64) (uint64, error) {
	diff, borrow := bits.Sub64(a, b, 0)
	if borrow != 0 {
		return 0, ErrOverflow
	}
	return diff, nil
}

// Mul returns a * b.
func Mul(a, b uint64) (uint64, error) {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return 0, ErrOverflow
	}
	return lo, nil
}

// Div returns floor(a / b). Division by zero is reported as ErrOverflow.
func Div(a, b uint64) (uint64, error) {
	if b == 0 {
		return 0, ErrOverflow
	}
	return a / b, nil
}

// MulDiv returns floor(a * b / d) using a 128-bit intermediate product.
func MulDiv(a, b, d uint64) (uint64, error) {
	if d == 0 {
		return 0, ErrOverflow
	}
	hi, lo := bits.Mul64(a, b)
	if hi >= d {
		return 0, ErrOverflow
	}
	q, _ := bits.Div64(hi, lo, d)
	return q, nil
}

// Bps returns floor(amount * bps / 10000).
func Bps(amount, bps uint64) (uint64, error) {
	return MulDiv(amount, bps, BasisPoints)
}
