package repository

import (
	"context"
	"sync"
	"time"

	"github.com/nordcup/ridevault/internal/models"
)

// MemoryAttemptRepository keeps login attempts in process memory. It is used
// when no database is configured and by the terminal client.
type MemoryAttemptRepository struct {
	mu       sync.Mutex
	attempts map[string]models.LoginAttempt
}

// NewMemoryAttemptRepository returns an empty repository.
func NewMemoryAttemptRepository() *MemoryAttemptRepository {
	return &MemoryAttemptRepository{attempts: make(map[string]models.LoginAttempt)}
}

func (r *MemoryAttemptRepository) Get(_ context.Context, subject string) (models.LoginAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.attempts[subject]; ok {
		return a, nil
	}
	return models.LoginAttempt{Subject: subject}, nil
}

func (r *MemoryAttemptRepository) Save(_ context.Context, a models.LoginAttempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts[a.Subject] = a
	return nil
}

func (r *MemoryAttemptRepository) Delete(_ context.Context, subject string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.attempts, subject)
	return nil
}

func (r *MemoryAttemptRepository) PurgeBefore(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for subject, a := range r.attempts {
		if a.LastFailure.Before(cutoff) && a.LockedUntil.Before(cutoff) {
			delete(r.attempts, subject)
			n++
		}
	}
	return n, nil
}
