package history

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process history store. It is the default backend: good
// enough for one-shot sessions, gone on restart.
type Memory struct {
	mu        sync.RWMutex
	processed map[string]time.Time
	filtered  map[string]string

	now func() time.Time // test seam
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		processed: make(map[string]time.Time),
		filtered:  make(map[string]string),
		now:       time.Now,
	}
}

func key(account, username string) string {
	return account + ":" + username
}

func (m *Memory) ProcessedWithin(_ context.Context, account, username string, window time.Duration) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	at, ok := m.processed[key(account, username)]
	if !ok {
		return false, nil
	}
	if window <= 0 {
		return true, nil
	}
	return m.now().Sub(at) <= window, nil
}

func (m *Memory) Filtered(_ context.Context, account, username string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.filtered[key(account, username)]
	return ok, nil
}

func (m *Memory) MarkProcessed(_ context.Context, account, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.processed[key(account, username)] = m.now()
	return nil
}

func (m *Memory) MarkFiltered(_ context.Context, account, username, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.filtered[key(account, username)] = reason
	return nil
}

func (m *Memory) Close() error { return nil }
