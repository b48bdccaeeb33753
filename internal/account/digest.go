// internal/account/digest.go
package account

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/mr-tron/base58"
)

// Digest hashes entries in the given order into a base58 string.
// Two stores with equal snapshots produce equal digests.
func Digest(entries []*Entry) (string, error) {
	h := sha256.New()
	var version [8]byte
	for _, e := range entries {
		data, err := Encode(e.Record)
		if err != nil {
			return "", fmt.Errorf("digest %s: %w", e.Key, err)
		}
		binary.LittleEndian.PutUint64(version[:], e.Version)
		h.Write(e.Key[:])
		h.Write(version[:])
		h.Write(data)
	}
	return base58.Encode(h.Sum(nil)), nil
}

// StateDigest snapshots a store and digests it.
func StateDigest(ctx context.Context, s Store) (string, error) {
	entries, err := s.Snapshot(ctx)
	if err != nil {
		return "", fmt.Errorf("snapshot: %w", err)
	}
	return Digest(entries)
}
