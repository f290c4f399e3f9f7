package overlay

import (
	"context"
	"sync"

	"harvestcraft.ai/internal/sim/terrain/chunk"
)

// Backend keeps encoded records of chunks that are not resident.
type Backend interface {
	Load(ctx context.Context, k chunk.Key) ([]byte, bool, error)
	Save(ctx context.Context, k chunk.Key, data []byte) error
	Delete(ctx context.Context, k chunk.Key) error
	Keys(ctx context.Context) ([]chunk.Key, error)
}

type MemoryBackend struct {
	mu   sync.Mutex
	data map[chunk.Key][]byte
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{data: map[chunk.Key][]byte{}}
}

func (m *MemoryBackend) Load(_ context.Context, k chunk.Key) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.data[k]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), b...), true, nil
}

func (m *MemoryBackend) Save(_ context.Context, k chunk.Key, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[k] = append([]byte(nil), data...)
	return nil
}

func (m *MemoryBackend) Delete(_ context.Context, k chunk.Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, k)
	return nil
}

func (m *MemoryBackend) Keys(_ context.Context) ([]chunk.Key, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]chunk.Key, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	chunk.SortKeys(keys)
	return keys, nil
}

func (m *MemoryBackend) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}
