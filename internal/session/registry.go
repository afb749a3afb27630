package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

type entry struct {
	state    State
	lastSeen time.Time
}

// Registry keeps one State per browser session id on the server.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry
	now     func() time.Time
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]*entry),
		now:     time.Now,
	}
}

// Backend returns a Backend bound to the session id.
func (r *Registry) Backend(id string) Backend {
	return &registryBackend{r: r, id: id}
}

// Delete drops the record for id.
func (r *Registry) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, id)
}

// Len returns the number of stored sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Sweep removes records not touched within idleTTL and returns how many were removed.
func (r *Registry) Sweep(idleTTL time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-idleTTL)
	removed := 0
	for id, e := range r.entries {
		if e.lastSeen.Before(cutoff) {
			delete(r.entries, id)
			removed++
		}
	}
	return removed
}

// StartSweeper runs Sweep every interval until ctx is done.
func (r *Registry) StartSweeper(ctx context.Context, interval, idleTTL time.Duration, log *zap.Logger) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := r.Sweep(idleTTL); n > 0 {
					log.Info("swept idle sessions", zap.Int("removed", n))
				}
			}
		}
	}()
}

type registryBackend struct {
	r  *Registry
	id string
}

func (b *registryBackend) Load(_ context.Context) (State, error) {
	b.r.mu.Lock()
	defer b.r.mu.Unlock()

	e, ok := b.r.entries[b.id]
	if !ok {
		return State{}, nil
	}
	e.lastSeen = b.r.now()
	return e.state, nil
}

func (b *registryBackend) Save(_ context.Context, st State) error {
	b.r.mu.Lock()
	defer b.r.mu.Unlock()

	b.r.entries[b.id] = &entry{state: st, lastSeen: b.r.now()}
	return nil
}

func (b *registryBackend) Delete(_ context.Context) error {
	b.r.Delete(b.id)
	return nil
}
