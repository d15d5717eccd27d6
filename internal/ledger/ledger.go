package ledger

import (
	"context"
	"sync"
)

// Ledger records which listings have already been processed. Entries are never removed.
type Ledger interface {
	// AddIfAbsent records id and reports whether it was not present before.
	AddIfAbsent(ctx context.Context, id string) (bool, error)
	Contains(ctx context.Context, id string) (bool, error)
	Len(ctx context.Context) (int64, error)
}

// Memory is a process-lifetime ledger.
type Memory struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewMemory() *Memory {
	return &Memory{seen: make(map[string]struct{})}
}

func (m *Memory) AddIfAbsent(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.seen[id]; ok {
		return false, nil
	}
	m.seen[id] = struct{}{}
	return true, nil
}

func (m *Memory) Contains(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.seen[id]
	return ok, nil
}

func (m *Memory) Len(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return int64(len(m.seen)), nil
}
