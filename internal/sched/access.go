// Package sched turns declared account access sets into a parallel execution
// plan and arbitrates account locks while the plan runs.
package sched

import (
	"bytes"
	"sort"

	"github.com/rovshanmuradov/launchpad-ledger/internal/account"
)

// Access is the read/write manifest an instruction commits to before it runs.
type Access struct {
	reads  map[account.Key]struct{}
	writes map[account.Key]struct{}
}

// NewAccess returns an empty manifest.
func NewAccess() Access {
	return Access{
		reads:  make(map[account.Key]struct{}),
		writes: make(map[account.Key]struct{}),
	}
}

// Read declares read-only keys. A key already declared writable stays writable.
func (a Access) Read(keys ...account.Key) Access {
	for _, k := range keys {
		if _, ok := a.writes[k]; ok {
			continue
		}
		a.reads[k] = struct{}{}
	}
	return a
}

// Write declares mutable keys.
func (a Access) Write(keys ...account.Key) Access {
	for _, k := range keys {
		delete(a.reads, k)
		a.writes[k] = struct{}{}
	}
	return a
}

// CanRead reports whether key is declared at all.
func (a Access) CanRead(key account.Key) bool {
	if _, ok := a.writes[key]; ok {
		return true
	}
	_, ok := a.reads[key]
	return ok
}

// CanWrite reports whether key is declared mutable.
func (a Access) CanWrite(key account.Key) bool {
	_, ok := a.writes[key]
	return ok
}

// Reads returns the read-only keys in byte order.
func (a Access) Reads() []account.Key { return sortedKeys(a.reads) }

// Writes returns the mutable keys in byte order.
func (a Access) Writes() []account.Key { return sortedKeys(a.writes) }

// Keys returns every declared key in byte order.
func (a Access) Keys() []account.Key {
	all := make(map[account.Key]struct{}, len(a.reads)+len(a.writes))
	for k := range a.reads {
		all[k] = struct{}{}
	}
	for k := range a.writes {
		all[k] = struct{}{}
	}
	return sortedKeys(all)
}

// Len returns the number of declared keys.
func (a Access) Len() int { return len(a.reads) + len(a.writes) }

// Conflicts reports whether a and b cannot run concurrently: their write sets
// intersect, or one writes what the other reads.
func (a Access) Conflicts(b Access) bool {
	for k := range a.writes {
		if _, ok := b.writes[k]; ok {
			return true
		}
		if _, ok := b.reads[k]; ok {
			return true
		}
	}
	for k := range a.reads {
		if _, ok := b.writes[k]; ok {
			return true
		}
	}
	return false
}

func sortedKeys(set map[account.Key]struct{}) []account.Key {
	keys := make([]account.Key, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return bytes.Compare(keys[i][:], keys[j][:]) < 0
	})
	return keys
}
