// Package session holds the authentication flag and the derived key material
// for one browser session.
//
// The flag and the key are persisted as a single State record so that a
// backend never exposes one without the other. Backends report failures as
// errors; Store converts read failures into "not authenticated" / "no key".
package session

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// ErrStorageUnavailable is wrapped by backends that cannot read or write state.
var ErrStorageUnavailable = errors.New("session: storage unavailable")

// State is the persisted session record.
type State struct {
	Authenticated bool   `json:"authenticated"`
	Key           string `json:"key,omitempty"`
}

// Backend persists one State record.
type Backend interface {
	// Load returns the stored state, or the zero State if nothing is stored.
	Load(ctx context.Context) (State, error)
	// Save replaces the stored state.
	Save(ctx context.Context, st State) error
	// Delete removes the stored state. Deleting an absent record is not an error.
	Delete(ctx context.Context) error
}

// Store is the session key store used by the authenticator and the loader.
type Store struct {
	mu      sync.Mutex
	backend Backend
	log     *zap.Logger
}

// NewStore returns a Store over backend. A nil logger disables logging.
func NewStore(backend Backend, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{backend: backend, log: log}
}

// SetAuthenticated marks the session as authenticated.
func (s *Store) SetAuthenticated(ctx context.Context) error {
	return s.update(ctx, func(st *State) { st.Authenticated = true })
}

// StoreKey records key material next to the authentication flag.
func (s *Store) StoreKey(ctx context.Context, keyHex string) error {
	return s.update(ctx, func(st *State) { st.Key = keyHex })
}

// Establish sets the flag and the key in one write.
func (s *Store) Establish(ctx context.Context, keyHex string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.backend.Save(ctx, State{Authenticated: true, Key: keyHex}); err != nil {
		s.log.Warn("session establish failed", zap.Error(err))
		return err
	}
	return nil
}

// IsAuthenticated reports whether the flag is set. Storage failures read as false.
func (s *Store) IsAuthenticated(ctx context.Context) bool {
	st, ok := s.load(ctx)
	return ok && st.Authenticated
}

// Key returns the stored key material. It reports false when no key is stored,
// when the session is not authenticated, or when storage is unavailable.
func (s *Store) Key(ctx context.Context) (string, bool) {
	st, ok := s.load(ctx)
	if !ok || !st.Authenticated || st.Key == "" {
		return "", false
	}
	return st.Key, true
}

// Clear removes both the flag and the key.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.backend.Delete(ctx); err != nil {
		s.log.Warn("session clear failed", zap.Error(err))
		return err
	}
	return nil
}

func (s *Store) load(ctx context.Context) (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.backend.Load(ctx)
	if err != nil {
		s.log.Debug("session read failed", zap.Error(err))
		return State{}, false
	}
	return st, true
}

func (s *Store) update(ctx context.Context, fn func(*State)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.backend.Load(ctx)
	if err != nil {
		s.log.Warn("session read failed", zap.Error(err))
		return err
	}
	fn(&st)
	if err := s.backend.Save(ctx, st); err != nil {
		s.log.Warn("session write failed", zap.Error(err))
		return err
	}
	return nil
}
