// Package auth validates the dashboard password against the configured digest
// and establishes or clears the session key material.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/nordcup/ridevault/internal/digest"
)

// ErrNotConfigured means the expected password digest is missing or malformed.
var ErrNotConfigured = errors.New("auth: expected password digest is not configured")

// Store is the part of the session key store the authenticator writes to.
type Store interface {
	// Establish sets the authentication flag and the key in one write.
	Establish(ctx context.Context, keyHex string) error
	// Clear removes both the flag and the key.
	Clear(ctx context.Context) error
	// IsAuthenticated reports whether the flag is set.
	IsAuthenticated(ctx context.Context) bool
}

// Authenticator checks passwords against a deployment-configured digest.
// It holds no mutable state and may be called concurrently.
type Authenticator struct {
	expected string
	store    Store
	hash     digest.Func
	log      *zap.Logger
}

// Option configures an Authenticator.
type Option func(*Authenticator)

// WithHash replaces the digest function.
func WithHash(fn digest.Func) Option {
	return func(a *Authenticator) { a.hash = fn }
}

// WithLogger sets the logger used for diagnostics.
func WithLogger(log *zap.Logger) Option {
	return func(a *Authenticator) { a.log = log }
}

// New returns an Authenticator for expectedDigest backed by store.
func New(expectedDigest string, store Store, opts ...Option) *Authenticator {
	a := &Authenticator{
		expected: digest.Normalize(expectedDigest),
		store:    store,
		hash:     digest.Password,
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.log == nil {
		a.log = zap.NewNop()
	}
	return a
}

// Login reports whether password matches the configured digest. On success the
// digest is stored as the session key. Every failure mode yields false.
func (a *Authenticator) Login(ctx context.Context, password string) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			a.log.Error("login aborted", zap.Any("panic", r))
			ok = false
		}
	}()

	if !digest.Valid(a.expected) {
		a.log.Error("login rejected", zap.Error(ErrNotConfigured))
		return false
	}

	got, err := a.hash(password)
	if err != nil {
		a.log.Error("login rejected", zap.Error(fmt.Errorf("hash password: %w", err)))
		return false
	}

	if subtle.ConstantTimeCompare([]byte(got), []byte(a.expected)) != 1 {
		return false
	}

	if err := a.store.Establish(ctx, got); err != nil {
		a.log.Error("login rejected: session not stored", zap.Error(err))
		_ = a.store.Clear(ctx)
		return false
	}
	return true
}

// Logout clears the session. It is safe to call when not logged in.
func (a *Authenticator) Logout(ctx context.Context) {
	if err := a.store.Clear(ctx); err != nil {
		a.log.Warn("logout: session not cleared", zap.Error(err))
	}
}

// IsAuthenticated delegates to the session store.
func (a *Authenticator) IsAuthenticated(ctx context.Context) bool {
	return a.store.IsAuthenticated(ctx)
}
