// Package service provides the login throttle, delegating persistence to an
// AttemptRepository.
package service

import (
	"context"
	"sync"
	"time"

	"github.com/nordcup/ridevault/internal/models"
)

const (
	// DefaultBaseDelay is Backoff(0). Allow waits Backoff(n) after n failures, so
	// the first failure costs 2*DefaultBaseDelay.
	DefaultBaseDelay = 400 * time.Millisecond
	// DefaultMaxDelay caps the exponential wait.
	DefaultMaxDelay = 30 * time.Second
	// DefaultMaxFailures is the number of consecutive failures that triggers a lockout.
	DefaultMaxFailures = 5
	// DefaultLockout is how long a subject stays locked.
	DefaultLockout = 60 * time.Second
)

// AttemptRepository defines the persistence operations required by the throttle.
type AttemptRepository interface {
	// Get returns the record for subject, or an empty record if there is none.
	Get(ctx context.Context, subject string) (models.LoginAttempt, error)
	// Save inserts or replaces a record.
	Save(ctx context.Context, a models.LoginAttempt) error
	// Delete removes the record for subject.
	Delete(ctx context.Context, subject string) error
}

// Throttle slows down repeated failed logins: every failure doubles the wait
// before the next attempt, and a run of failures locks the subject out.
type Throttle struct {
	mu   sync.Mutex
	repo AttemptRepository
	now  func() time.Time

	baseDelay   time.Duration
	maxDelay    time.Duration
	maxFailures int
	lockout     time.Duration
}

// Option configures a Throttle.
type Option func(*Throttle)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(t *Throttle) { t.now = now }
}

// WithLockout sets the failure count that triggers a lockout and its duration.
func WithLockout(maxFailures int, d time.Duration) Option {
	return func(t *Throttle) {
		t.maxFailures = maxFailures
		t.lockout = d
	}
}

// NewThrottle constructs a Throttle over repo.
func NewThrottle(repo AttemptRepository, opts ...Option) *Throttle {
	t := &Throttle{
		repo:        repo,
		now:         time.Now,
		baseDelay:   DefaultBaseDelay,
		maxDelay:    DefaultMaxDelay,
		maxFailures: DefaultMaxFailures,
		lockout:     DefaultLockout,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Backoff returns the delay before an attempt that follows failures
// consecutive failures: 400ms, 800ms, 1.6s, ... capped at 30s.
func (t *Throttle) Backoff(failures int) time.Duration {
	d := t.baseDelay
	for i := 0; i < failures; i++ {
		d *= 2
		if d >= t.maxDelay {
			return t.maxDelay
		}
	}
	return min(d, t.maxDelay)
}

// Allow returns how long subject must wait before the next attempt. Zero means
// the attempt may proceed. A subject with recorded failures waits Backoff of
// its failure count, measured from the last failure.
func (t *Throttle) Allow(ctx context.Context, subject string) (time.Duration, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	a, err := t.repo.Get(ctx, subject)
	if err != nil {
		return 0, err
	}
	now := t.now()
	if a.Locked(now) {
		return a.LockedUntil.Sub(now), nil
	}
	if a.Failures == 0 {
		return 0, nil
	}
	if next := a.LastFailure.Add(t.Backoff(a.Failures)); now.Before(next) {
		return next.Sub(now), nil
	}
	return 0, nil
}

// RecordFailure counts a failed attempt for subject and returns the updated
// record. Reaching the failure limit locks the subject and resets the count.
func (t *Throttle) RecordFailure(ctx context.Context, subject string) (models.LoginAttempt, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	a, err := t.repo.Get(ctx, subject)
	if err != nil {
		return models.LoginAttempt{}, err
	}
	now := t.now()
	a.Subject = subject
	a.Failures++
	a.LastFailure = now
	if a.Failures >= t.maxFailures {
		a.Failures = 0
		a.LockedUntil = now.Add(t.lockout)
	}
	if err := t.repo.Save(ctx, a); err != nil {
		return models.LoginAttempt{}, err
	}
	return a, nil
}

// Reset forgets the failures of subject, typically after a successful login.
func (t *Throttle) Reset(ctx context.Context, subject string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.repo.Delete(ctx, subject)
}
