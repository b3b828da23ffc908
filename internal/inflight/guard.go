// Package inflight rejects a second concurrent run of the same keyed action.
package inflight

import (
	"context"
	"errors"
	"sync"
)

var ErrInFlight = errors.New("operation already in progress")

// Guard leases a key for the duration of one operation. Acquire fails with
// ErrInFlight while another holder has the key. The returned release func is
// safe to call more than once.
type Guard interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// Local guards keys within one process.
type Local struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewLocal() *Local {
	return &Local{held: make(map[string]struct{})}
}

func (g *Local) Acquire(ctx context.Context, key string) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.held[key]; ok {
		return nil, ErrInFlight
	}
	g.held[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.held, key)
			g.mu.Unlock()
		})
	}, nil
}
