package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nordcup/ridevault/internal/models"
)

type mockAttemptRepo struct {
	GetFunc    func(ctx context.Context, subject string) (models.LoginAttempt, error)
	SaveFunc   func(ctx context.Context, a models.LoginAttempt) error
	DeleteFunc func(ctx context.Context, subject string) error
}

func (m *mockAttemptRepo) Get(ctx context.Context, subject string) (models.LoginAttempt, error) {
	return m.GetFunc(ctx, subject)
}
func (m *mockAttemptRepo) Save(ctx context.Context, a models.LoginAttempt) error {
	return m.SaveFunc(ctx, a)
}
func (m *mockAttemptRepo) Delete(ctx context.Context, subject string) error {
	return m.DeleteFunc(ctx, subject)
}

// mapRepo is a minimal in-memory repository for policy tests.
func mapRepo() *mockAttemptRepo {
	data := map[string]models.LoginAttempt{}
	return &mockAttemptRepo{
		GetFunc: func(_ context.Context, subject string) (models.LoginAttempt, error) {
			if a, ok := data[subject]; ok {
				return a, nil
			}
			return models.LoginAttempt{Subject: subject}, nil
		},
		SaveFunc: func(_ context.Context, a models.LoginAttempt) error {
			data[a.Subject] = a
			return nil
		},
		DeleteFunc: func(_ context.Context, subject string) error {
			delete(data, subject)
			return nil
		},
	}
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func TestBackoff_Sequence(t *testing.T) {
	th := NewThrottle(mapRepo())
	want := []time.Duration{
		400 * time.Millisecond,
		800 * time.Millisecond,
		1600 * time.Millisecond,
		3200 * time.Millisecond,
		6400 * time.Millisecond,
		12800 * time.Millisecond,
		25600 * time.Millisecond,
		30 * time.Second,
		30 * time.Second,
	}
	for n, w := range want {
		if got := th.Backoff(n); got != w {
			t.Errorf("Backoff(%d) = %v; want %v", n, got, w)
		}
	}
	if got := th.Backoff(1000); got != 30*time.Second {
		t.Errorf("Backoff(1000) = %v; want cap", got)
	}
}

func TestAllow_FreshSubject(t *testing.T) {
	th := NewThrottle(mapRepo())
	wait, err := th.Allow(context.Background(), "10.0.0.1")
	if err != nil {
		t.Fatalf("Allow returned error: %v", err)
	}
	if wait != 0 {
		t.Errorf("Allow = %v; want 0", wait)
	}
}

func TestAllow_BackoffAfterFailure(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)}
	th := NewThrottle(mapRepo(), WithClock(clock.Now))

	if _, err := th.RecordFailure(ctx, "ip"); err != nil {
		t.Fatalf("RecordFailure returned error: %v", err)
	}
	wait, _ := th.Allow(ctx, "ip")
	if wait != 800*time.Millisecond {
		t.Errorf("Allow after one failure = %v; want 800ms", wait)
	}

	clock.Advance(800 * time.Millisecond)
	if wait, _ := th.Allow(ctx, "ip"); wait != 0 {
		t.Errorf("Allow after waiting = %v; want 0", wait)
	}

	if wait, _ := th.Allow(ctx, "other"); wait != 0 {
		t.Errorf("Allow for another subject = %v; want 0", wait)
	}
}

func TestRecordFailure_LocksAfterFive(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)}
	th := NewThrottle(mapRepo(), WithClock(clock.Now))

	var a models.LoginAttempt
	for i := 1; i <= 4; i++ {
		var err error
		a, err = th.RecordFailure(ctx, "ip")
		if err != nil {
			t.Fatalf("RecordFailure returned error: %v", err)
		}
		if a.Failures != i {
			t.Fatalf("Failures = %d; want %d", a.Failures, i)
		}
		clock.Advance(time.Minute)
	}

	a, _ = th.RecordFailure(ctx, "ip")
	if a.Failures != 0 {
		t.Errorf("Failures after lockout = %d; want 0", a.Failures)
	}
	if !a.Locked(clock.Now()) {
		t.Fatal("expected subject to be locked")
	}

	wait, _ := th.Allow(ctx, "ip")
	if wait != DefaultLockout {
		t.Errorf("Allow while locked = %v; want %v", wait, DefaultLockout)
	}

	clock.Advance(DefaultLockout)
	if wait, _ := th.Allow(ctx, "ip"); wait != 0 {
		t.Errorf("Allow after lockout = %v; want 0", wait)
	}
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	th := NewThrottle(mapRepo())

	_, _ = th.RecordFailure(ctx, "ip")
	if err := th.Reset(ctx, "ip"); err != nil {
		t.Fatalf("Reset returned error: %v", err)
	}
	if wait, _ := th.Allow(ctx, "ip"); wait != 0 {
		t.Errorf("Allow after reset = %v; want 0", wait)
	}
}

func TestRepositoryErrors(t *testing.T) {
	wantErr := errors.New("db error")
	repo := &mockAttemptRepo{
		GetFunc: func(context.Context, string) (models.LoginAttempt, error) {
			return models.LoginAttempt{}, wantErr
		},
		DeleteFunc: func(context.Context, string) error { return wantErr },
	}
	th := NewThrottle(repo)

	if _, err := th.Allow(context.Background(), "ip"); !errors.Is(err, wantErr) {
		t.Errorf("Allow error = %v; want %v", err, wantErr)
	}
	if _, err := th.RecordFailure(context.Background(), "ip"); !errors.Is(err, wantErr) {
		t.Errorf("RecordFailure error = %v; want %v", err, wantErr)
	}
	if err := th.Reset(context.Background(), "ip"); !errors.Is(err, wantErr) {
		t.Errorf("Reset error = %v; want %v", err, wantErr)
	}
}

func TestRecordFailure_SaveError(t *testing.T) {
	wantErr := errors.New("insert failed")
	repo := mapRepo()
	repo.SaveFunc = func(context.Context, models.LoginAttempt) error { return wantErr }
	th := NewThrottle(repo)

	if _, err := th.RecordFailure(context.Background(), "ip"); !errors.Is(err, wantErr) {
		t.Errorf("RecordFailure error = %v; want %v", err, wantErr)
	}
}

func TestWithLockout(t *testing.T) {
	ctx := context.Background()
	th := NewThrottle(mapRepo(), WithLockout(2, time.Hour))

	_, _ = th.RecordFailure(ctx, "ip")
	a, _ := th.RecordFailure(ctx, "ip")
	if a.LockedUntil.IsZero() {
		t.Fatal("expected lock after 2 failures")
	}
	if wait, _ := th.Allow(ctx, "ip"); wait <= 59*time.Minute {
		t.Errorf("Allow = %v; want about an hour", wait)
	}
}
