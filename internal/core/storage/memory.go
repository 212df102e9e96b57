package storage

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/paulrobello/par-shape-2d/internal/core/slots"
)

type counters struct {
	writes       atomic.Uint64
	reads        atomic.Uint64
	deletes      atomic.Uint64
	bytesWritten atomic.Uint64
	corrupted    atomic.Uint64
}

func (c *counters) snapshot() Statistics {
	return Statistics{
		Writes:       c.writes.Load(),
		Reads:        c.reads.Load(),
		Deletes:      c.deletes.Load(),
		BytesWritten: c.bytesWritten.Load(),
		Corrupted:    c.corrupted.Load(),
	}
}

var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps encoded snapshots in memory. It is safe for concurrent use.
type MemoryStore struct {
	mu    sync.RWMutex
	data  map[string][]byte
	stats counters
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (m *MemoryStore) Write(_ context.Context, key string, snap slots.Snapshot) error {
	if err := ValidKey(key); err != nil {
		return err
	}
	raw, err := Encode(snap)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.data[key] = raw
	m.mu.Unlock()
	m.stats.writes.Add(1)
	m.stats.bytesWritten.Add(uint64(len(raw)))
	return nil
}

func (m *MemoryStore) Read(_ context.Context, key string) (slots.Snapshot, error) {
	m.mu.RLock()
	raw, ok := m.data[key]
	m.mu.RUnlock()
	if !ok {
		return slots.Snapshot{}, fmt.Errorf("%w: %q", ErrNotFound, key)
	}
	m.stats.reads.Add(1)
	snap, err := Decode(raw)
	if err != nil {
		m.stats.corrupted.Add(1)
		return slots.Snapshot{}, fmt.Errorf("read %q: %w", key, err)
	}
	return snap, nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, key)
	}
	delete(m.data, key)
	m.stats.deletes.Add(1)
	return nil
}

func (m *MemoryStore) Keys(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys, nil
}

func (m *MemoryStore) Statistics() Statistics { return m.stats.snapshot() }

// put stores raw bytes as-is; tests use it to plant corrupted entries.
func (m *MemoryStore) put(key string, raw []byte) {
	m.mu.Lock()
	m.data[key] = raw
	m.mu.Unlock()
}
