package sched

import (
	"context"
	"sync"

	"github.com/rovshanmuradov/launchpad-ledger/internal/account"
)

// LockManager hands out account locks for whole access manifests. Reads are
// shared, writes exclusive. A manifest is granted all at once or not at all,
// so two waiters can never hold half of each other's keys.
type LockManager struct {
	mu      sync.Mutex
	readers map[account.Key]int
	writers map[account.Key]struct{}
	changed chan struct{} // closed and replaced on every release
}

// NewLockManager creates an idle lock manager.
func NewLockManager() *LockManager {
	return &LockManager{
		readers: make(map[account.Key]int),
		writers: make(map[account.Key]struct{}),
		changed: make(chan struct{}),
	}
}

// Acquire blocks until every key in access can be locked, then locks them.
// The returned release func must be called exactly once.
func (m *LockManager) Acquire(ctx context.Context, access Access) (func(), error) {
	for {
		m.mu.Lock()
		if m.available(access) {
			m.take(access)
			m.mu.Unlock()

			var once sync.Once
			return func() { once.Do(func() { m.release(access) }) }, nil
		}
		wait := m.changed
		m.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-wait:
		}
	}
}

// TryAcquire locks access if it is free right now.
func (m *LockManager) TryAcquire(access Access) (func(), bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.available(access) {
		return nil, false
	}
	m.take(access)

	var once sync.Once
	return func() { once.Do(func() { m.release(access) }) }, true
}

// Held returns the number of keys currently locked.
func (m *LockManager) Held() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.readers) + len(m.writers)
}

func (m *LockManager) available(access Access) bool {
	for k := range access.writes {
		if _, ok := m.writers[k]; ok {
			return false
		}
		if m.readers[k] > 0 {
			return false
		}
	}
	for k := range access.reads {
		if _, ok := m.writers[k]; ok {
			return false
		}
	}
	return true
}

func (m *LockManager) take(access Access) {
	for k := range access.writes {
		m.writers[k] = struct{}{}
	}
	for k := range access.reads {
		m.readers[k]++
	}
}

func (m *LockManager) release(access Access) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for k := range access.writes {
		delete(m.writers, k)
	}
	for k := range access.reads {
		if m.readers[k] <= 1 {
			delete(m.readers, k)
		} else {
			m.readers[k]--
		}
	}

	close(m.changed)
	m.changed = make(chan struct{})
}
