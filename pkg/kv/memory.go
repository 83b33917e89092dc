package kv

import (
	"context"
	"sync"

	"github.com/myoungjelee/AI-Lookbook-Studio-sub001/internal/util"
)

// Memory is an in-process medium shared by every client opened from it.
// Two clients over one Memory behave like two execution contexts over one
// shared storage area, which is what makes cross-context sync testable.
type Memory struct {
	mu       sync.RWMutex
	data     map[string]string
	watchers map[int]*memoryWatcher
	nextID   int
}

type memoryWatcher struct {
	origin string
	keys   map[string]bool
	ch     chan Change
}

// NewMemory creates an empty medium.
func NewMemory() *Memory {
	return &Memory{
		data:     make(map[string]string),
		watchers: make(map[int]*memoryWatcher),
	}
}

// Open returns a client handle with its own origin identity.
func (m *Memory) Open() *MemoryClient {
	return &MemoryClient{medium: m, origin: util.NewID()}
}

func (m *Memory) get(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok
}

func (m *Memory) set(key, value, origin string) {
	m.mu.Lock()
	m.data[key] = value
	notify := make([]*memoryWatcher, 0, len(m.watchers))
	for _, w := range m.watchers {
		if w.origin == origin || !w.keys[key] {
			continue
		}
		notify = append(notify, w)
	}
	m.mu.Unlock()
	for _, w := range notify {
		select {
		case w.ch <- Change{Key: key, Origin: origin}:
		default:
			// Watcher is behind; it will re-read on its next delivery.
		}
	}
}

func (m *Memory) watch(ctx context.Context, origin string, keys []string) <-chan Change {
	w := &memoryWatcher{
		origin: origin,
		keys:   make(map[string]bool, len(keys)),
		ch:     make(chan Change, 16),
	}
	for _, k := range keys {
		w.keys[k] = true
	}
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.watchers[id] = w
	m.mu.Unlock()
	go func() {
		<-ctx.Done()
		m.mu.Lock()
		delete(m.watchers, id)
		m.mu.Unlock()
	}()
	return w.ch
}

// MemoryClient is one context's handle on a Memory medium.
type MemoryClient struct {
	medium *Memory
	origin string
}

func (c *MemoryClient) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := c.medium.get(key)
	return v, ok, nil
}

func (c *MemoryClient) Set(_ context.Context, key, value string) error {
	c.medium.set(key, value, c.origin)
	return nil
}

// Watch delivers writes made by other clients of the same medium.
func (c *MemoryClient) Watch(ctx context.Context, keys ...string) (<-chan Change, error) {
	return c.medium.watch(ctx, c.origin, keys), nil
}
