package session

import (
	"context"
	"fmt"
	"sync"
)

// MemoryBackend keeps the state of a single session in process memory.
// It lives exactly as long as the process, which is the scope the terminal
// client gives to a "tab".
type MemoryBackend struct {
	mu    sync.RWMutex
	state State
}

// NewMemoryBackend returns an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{}
}

// Load returns the current state.
func (b *MemoryBackend) Load(_ context.Context) (State, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state, nil
}

// Save replaces the current state.
func (b *MemoryBackend) Save(_ context.Context, st State) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = st
	return nil
}

// Delete resets the state.
func (b *MemoryBackend) Delete(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = State{}
	return nil
}

// UnavailableBackend fails every operation. It stands in for a context where
// session storage is disabled.
type UnavailableBackend struct {
	Reason string
}

func (b UnavailableBackend) err() error {
	if b.Reason == "" {
		return ErrStorageUnavailable
	}
	return fmt.Errorf("%w: %s", ErrStorageUnavailable, b.Reason)
}

// Load always fails.
func (b UnavailableBackend) Load(context.Context) (State, error) { return State{}, b.err() }

// Save always fails.
func (b UnavailableBackend) Save(context.Context, State) error { return b.err() }

// Delete always fails.
func (b UnavailableBackend) Delete(context.Context) error { return b.err() }
