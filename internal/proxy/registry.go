package proxy

import (
	"sync"

	"github.com/google/uuid"
)

// registry tracks live connections so Stop can tear them down.
type registry struct {
	mu    sync.Mutex
	conns map[uuid.UUID]*connection
}

func newRegistry() *registry {
	return &registry{conns: make(map[uuid.UUID]*connection)}
}

func (r *registry) add(c *connection) {
	r.mu.Lock()
	r.conns[c.id] = c
	r.mu.Unlock()
}

func (r *registry) remove(c *connection) {
	r.mu.Lock()
	delete(r.conns, c.id)
	r.mu.Unlock()
}

func (r *registry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

// cancelAll closes every registered connection and empties the registry.
func (r *registry) cancelAll() int {
	r.mu.Lock()
	conns := r.conns
	r.conns = make(map[uuid.UUID]*connection)
	r.mu.Unlock()

	for _, c := range conns {
		c.close()
	}
	return len(conns)
}
