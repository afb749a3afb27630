// Package viewer is the terminal counterpart of the dashboard page: it logs in,
// loads the protected statistics and optionally refreshes them periodically.
package viewer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/nordcup/ridevault/internal/loader"
	"github.com/nordcup/ridevault/internal/models"
)

// Subject is the throttle subject of the local user.
const Subject = "local"

// DefaultInterval is the refresh period of Watch.
const DefaultInterval = 60 * time.Second

// Authenticator logs the local user in and out.
type Authenticator interface {
	Login(ctx context.Context, password string) bool
	Logout(ctx context.Context)
	IsAuthenticated(ctx context.Context) bool
}

// Loader loads a protected resource.
type Loader interface {
	Load(ctx context.Context, url string) (json.RawMessage, error)
}

// Throttle slows down repeated failed logins.
type Throttle interface {
	Allow(ctx context.Context, subject string) (time.Duration, error)
	RecordFailure(ctx context.Context, subject string) (models.LoginAttempt, error)
	Reset(ctx context.Context, subject string) error
}

// Viewer drives login and loading for one terminal session.
type Viewer struct {
	Auth     Authenticator
	Loader   Loader
	Throttle Throttle
	// Password asks the user for the password.
	Password func() (string, error)
	DataURL  string
	Out      io.Writer
	Log      *zap.Logger

	// Sleep waits for d or until ctx is done. Defaults to a timer.
	Sleep func(ctx context.Context, d time.Duration) error
	// NewBackOff returns the retry policy for network errors. Nil disables retries.
	NewBackOff func() backoff.BackOff
}

// Login asks for the password until it is accepted. Failed attempts are
// throttled; the wait is announced before it starts.
func (v *Viewer) Login(ctx context.Context) error {
	for {
		wait, err := v.Throttle.Allow(ctx, Subject)
		if err != nil {
			return fmt.Errorf("login throttle: %w", err)
		}
		if wait > 0 {
			fmt.Fprintf(v.Out, "Waiting %s before the next attempt ...\n", wait.Round(100*time.Millisecond))
			if err := v.sleep(ctx, wait); err != nil {
				return err
			}
		}

		password, err := v.Password()
		if err != nil {
			return err
		}
		if v.Auth.Login(ctx, password) {
			if err := v.Throttle.Reset(ctx, Subject); err != nil {
				v.logger().Warn("failed to reset login throttle", zap.Error(err))
			}
			return nil
		}

		attempt, err := v.Throttle.RecordFailure(ctx, Subject)
		if err != nil {
			return fmt.Errorf("login throttle: %w", err)
		}
		fmt.Fprintln(v.Out, "Wrong password. Please try again.")
		if !attempt.LockedUntil.IsZero() {
			fmt.Fprintln(v.Out, "Too many attempts. Please wait 60 seconds.")
		}
	}
}

// Show loads the statistics once and prints them. When the session has no
// usable key the user is logged out and asked to log in again, once.
func (v *Viewer) Show(ctx context.Context) error {
	for relogin := 0; ; relogin++ {
		if !v.Auth.IsAuthenticated(ctx) {
			if err := v.Login(ctx); err != nil {
				return err
			}
		}

		payload, err := v.load(ctx)
		if err == nil {
			return v.print(payload)
		}
		if !errors.Is(err, loader.ErrMissingKey) && !errors.Is(err, loader.ErrDecryptionFailed) {
			return err
		}

		v.Auth.Logout(ctx)
		if relogin > 0 {
			return err
		}
		fmt.Fprintln(v.Out, "Session expired. Please log in again.")
	}
}

// Watch shows the statistics now and then every interval until ctx is done.
// A refresh that fails on the network is reported and retried at the next tick.
func (v *Viewer) Watch(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		err := v.Show(ctx)
		var netErr *loader.NetworkError
		switch {
		case err == nil:
		case errors.As(err, &netErr), errors.Is(err, loader.ErrMalformedResponse):
			v.logger().Warn("refresh failed", zap.Error(err))
			fmt.Fprintln(v.Out, "Data unavailable, retrying at the next refresh.")
		default:
			return err
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (v *Viewer) load(ctx context.Context) (json.RawMessage, error) {
	var payload json.RawMessage
	op := func() error {
		p, err := v.Loader.Load(ctx, v.DataURL)
		var netErr *loader.NetworkError
		if errors.As(err, &netErr) {
			return err
		}
		if err != nil {
			return backoff.Permanent(err)
		}
		payload = p
		return nil
	}

	var b backoff.BackOff = &backoff.StopBackOff{}
	if v.NewBackOff != nil {
		b = v.NewBackOff()
	}
	notify := func(err error, d time.Duration) {
		v.logger().Info("retrying load", zap.Error(err), zap.Duration("in", d))
	}
	if err := backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify); err != nil {
		return nil, err
	}
	return payload, nil
}

func (v *Viewer) print(payload json.RawMessage) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, payload, "", "  "); err != nil {
		return err
	}
	buf.WriteByte('\n')
	_, err := v.Out.Write(buf.Bytes())
	return err
}

func (v *Viewer) sleep(ctx context.Context, d time.Duration) error {
	if v.Sleep != nil {
		return v.Sleep(ctx, d)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (v *Viewer) logger() *zap.Logger {
	if v.Log == nil {
		return zap.NewNop()
	}
	return v.Log
}

// RefreshBackOff returns the retry policy used between two refreshes: it gives
// up well before the next tick.
func RefreshBackOff(interval time.Duration) func() backoff.BackOff {
	return func() backoff.BackOff {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = time.Second
		b.MaxElapsedTime = interval / 2
		return b
	}
}
