// Package store tracks which intent identifiers the oracle has already
// handled, so an intent is never re-audited or re-signed.
package store

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// ProcessedSet records intent identifiers that have reached a terminal
// decision. Implementations are single-writer; the oracle has one
// processing path.
type ProcessedSet interface {
	Contains(intentHash common.Hash) (bool, error)
	Add(intentHash common.Hash) error
	Close() error
}

// Memory is a process-lifetime ProcessedSet. All history is lost on
// restart; use the pebble-backed store when that matters.
type Memory struct {
	mu   sync.Mutex
	seen map[common.Hash]struct{}
}

// NewMemory creates an empty in-memory set.
func NewMemory() *Memory {
	return &Memory{seen: make(map[common.Hash]struct{})}
}

// Contains reports whether the identifier has been recorded.
func (m *Memory) Contains(intentHash common.Hash) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.seen[intentHash]
	return ok, nil
}

// Add records the identifier.
func (m *Memory) Add(intentHash common.Hash) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seen[intentHash] = struct{}{}
	return nil
}

// Close is a no-op for the in-memory set.
func (m *Memory) Close() error {
	return nil
}
