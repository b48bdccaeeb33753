// =============================
// File: internal/account/codec.go
// =============================
package account

import (
	"bytes"
	"fmt"

	bin "github.com/gagliardetto/binary"
)

// Encode serializes a record as a kind byte followed by its borsh layout.
func Encode(r Record) ([]byte, error) {
	if r == nil {
		return nil, fmt.Errorf("nil record")
	}
	buf := new(bytes.Buffer)
	buf.WriteByte(byte(r.Kind()))
	if err := bin.NewBorshEncoder(buf).Encode(r); err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", r.Kind(), err)
	}
	return buf.Bytes(), nil
}

// Decode parses data produced by Encode.
func Decode(data []byte) (Record, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty account data")
	}

	var r Record
	switch Kind(data[0]) {
	case KindPlatform:
		r = &Platform{}
	case KindListing:
		r = &TokenListing{}
	case KindMint:
		r = &Mint{}
	case KindBalance:
		r = &TokenBalance{}
	case KindWallet:
		r = &Wallet{}
	case KindPool:
		r = &Pool{}
	case KindPoolReserve:
		r = &PoolReserve{}
	default:
		return nil, fmt.Errorf("unknown account kind %d", data[0])
	}

	if err := bin.NewBorshDecoder(data[1:]).Decode(r); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", r.Kind(), err)
	}
	return r, nil
}
