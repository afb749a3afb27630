package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nordcup/ridevault/internal/models"
)

func TestMemoryAttemptRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryAttemptRepository()

	a, err := repo.Get(ctx, "local")
	require.NoError(t, err)
	assert.Equal(t, models.LoginAttempt{Subject: "local"}, a)

	now := time.Now()
	require.NoError(t, repo.Save(ctx, models.LoginAttempt{Subject: "local", Failures: 2, LastFailure: now}))
	a, err = repo.Get(ctx, "local")
	require.NoError(t, err)
	assert.Equal(t, 2, a.Failures)

	require.NoError(t, repo.Delete(ctx, "local"))
	require.NoError(t, repo.Delete(ctx, "local"))
	a, err = repo.Get(ctx, "local")
	require.NoError(t, err)
	assert.Zero(t, a.Failures)
}

func TestMemoryAttemptRepository_PurgeBefore(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryAttemptRepository()
	now := time.Now()

	require.NoError(t, repo.Save(ctx, models.LoginAttempt{Subject: "stale", Failures: 1, LastFailure: now.Add(-2 * time.Hour)}))
	require.NoError(t, repo.Save(ctx, models.LoginAttempt{Subject: "fresh", Failures: 1, LastFailure: now}))
	require.NoError(t, repo.Save(ctx, models.LoginAttempt{
		Subject:     "locked",
		LastFailure: now.Add(-2 * time.Hour),
		LockedUntil: now.Add(time.Minute),
	}))

	n, err := repo.PurgeBefore(ctx, now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	a, _ := repo.Get(ctx, "locked")
	assert.False(t, a.LockedUntil.IsZero())
	a, _ = repo.Get(ctx, "stale")
	assert.Zero(t, a.Failures)
}
