package sink

import (
	"context"
	"sync"
)

// Memory keeps every write in order. It backs previews and tests.
type Memory struct {
	mu     sync.Mutex
	writes []WriteRequest
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Target() string { return "memory" }

func (m *Memory) Write(ctx context.Context, req WriteRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data := make([]byte, len(req.Data))
	copy(data, req.Data)
	req.Data = data

	m.mu.Lock()
	m.writes = append(m.writes, req)
	m.mu.Unlock()
	return nil
}

// Writes returns a copy of the writes received so far.
func (m *Memory) Writes() []WriteRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]WriteRequest, len(m.writes))
	copy(out, m.writes)
	return out
}

// Keys returns the key of every write in order.
func (m *Memory) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, len(m.writes))
	for i, w := range m.writes {
		keys[i] = w.Key
	}
	return keys
}
