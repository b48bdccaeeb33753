// internal/events/log.go
package events

import (
	"context"
	"sync"
)

// Sink receives committed events, already sequenced, in log order.
type Sink interface {
	Write(ctx context.Context, envs []Envelope) error
}

// Log is the append-only in-memory event log. It assigns sequence numbers.
type Log struct {
	mu      sync.RWMutex
	base    uint64
	entries []Envelope
}

// NewLog creates an empty log.
func NewLog() *Log {
	return &Log{}
}

// NewLogAt creates an empty log whose first entry gets sequence lastSeq+1.
// Used to continue numbering after events persisted by an earlier run.
func NewLogAt(lastSeq uint64) *Log {
	return &Log{base: lastSeq}
}

// Append sequences and stores events, returning them with Seq set.
func (l *Log) Append(envs ...Envelope) []Envelope {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Envelope, len(envs))
	for i, env := range envs {
		env.Seq = l.base + uint64(len(l.entries)) + 1
		l.entries = append(l.entries, env)
		out[i] = env
	}
	return out
}

// All returns a copy of every entry in order.
func (l *Log) All() []Envelope {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Envelope(nil), l.entries...)
}

// Since returns entries with Seq > seq.
func (l *Log) Since(seq uint64) []Envelope {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if seq < l.base {
		seq = l.base
	}
	offset := seq - l.base
	if offset >= uint64(len(l.entries)) {
		return nil
	}
	return append([]Envelope(nil), l.entries[offset:]...)
}

// Last returns the sequence number of the newest entry.
func (l *Log) Last() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.base + uint64(len(l.entries))
}

// Len returns the number of entries held in memory.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}
