// Package http provides the JSON API of the dashboard server: login, logout,
// session state and the decrypted dashboard payload.
package http

import (
	"context"
	"encoding/json"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nordcup/ridevault/internal/auth"
	"github.com/nordcup/ridevault/internal/middleware"
	"github.com/nordcup/ridevault/internal/models"
	"github.com/nordcup/ridevault/internal/session"
)

// SessionRegistry maps browser-session ids to session storage.
type SessionRegistry interface {
	// Backend returns the storage of one browser session.
	Backend(id string) session.Backend
	// Delete drops a browser session.
	Delete(id string)
}

// Throttle defines the login throttle operations required by AuthHandler.
type Throttle interface {
	// Allow returns how long subject must wait before trying again.
	Allow(ctx context.Context, subject string) (time.Duration, error)
	// RecordFailure counts a failed login.
	RecordFailure(ctx context.Context, subject string) (models.LoginAttempt, error)
	// Reset forgets the failures of subject.
	Reset(ctx context.Context, subject string) error
}

// AuthHandler handles login, logout and session state requests.
type AuthHandler struct {
	// Sessions holds per-browser session state.
	Sessions SessionRegistry
	// PasswordHash is the expected digest of the dashboard password.
	PasswordHash string
	// Throttle slows down repeated failures. Nil disables throttling.
	Throttle Throttle
	// Secure marks issued cookies Secure.
	Secure bool
	// TrustProxy keys throttling and rate limits on X-Forwarded-For / X-Real-IP
	// instead of the connection's peer address.
	TrustProxy bool
	Log        *zap.Logger
}

// LoginRequest represents the JSON payload of a login.
type LoginRequest struct {
	Password string `json:"password"`
}

type sessionResponse struct {
	Authenticated bool `json:"authenticated"`
}

// Login handles POST /api/login. On success the browser session is replaced by
// a fresh one holding the key, so an id known before login is worthless after.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := h.logger()

	var req LoginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<10)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	subject := clientIP(r)
	if h.Throttle != nil {
		wait, err := h.Throttle.Allow(ctx, subject)
		if err != nil {
			log.Error("login throttle unavailable", zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, "login unavailable")
			return
		}
		if wait > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(wait)))
			writeError(w, http.StatusTooManyRequests, "too many attempts")
			return
		}
	}

	newID := uuid.NewString()
	store := session.NewStore(h.Sessions.Backend(newID), log)
	if !auth.New(h.PasswordHash, store, auth.WithLogger(log)).Login(ctx, req.Password) {
		if h.Throttle != nil {
			attempt, err := h.Throttle.RecordFailure(ctx, subject)
			if err != nil {
				log.Error("failed to record login failure", zap.Error(err))
				writeError(w, http.StatusServiceUnavailable, "login unavailable")
				return
			}
			if !attempt.LockedUntil.IsZero() {
				log.Warn("login locked", zap.String("subject", subject), zap.Time("until", attempt.LockedUntil))
			}
		}
		writeError(w, http.StatusUnauthorized, "invalid password")
		return
	}

	if h.Throttle != nil {
		if err := h.Throttle.Reset(ctx, subject); err != nil {
			log.Warn("failed to reset login throttle", zap.Error(err))
		}
	}
	if oldID := middleware.SessionIDFromContext(ctx); oldID != "" {
		h.Sessions.Delete(oldID)
	}
	middleware.SetSessionCookie(w, newID, h.Secure)
	writeJSON(w, http.StatusOK, sessionResponse{Authenticated: true})
}

// Logout handles POST /api/logout. It always succeeds.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	store := h.store(ctx)
	auth.New(h.PasswordHash, store, auth.WithLogger(h.logger())).Logout(ctx)
	w.WriteHeader(http.StatusNoContent)
}

// Session handles GET /api/session.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	writeJSON(w, http.StatusOK, sessionResponse{Authenticated: h.store(ctx).IsAuthenticated(ctx)})
}

func (h *AuthHandler) store(ctx context.Context) *session.Store {
	return storeFor(ctx, h.Sessions, h.logger())
}

func (h *AuthHandler) logger() *zap.Logger {
	if h.Log == nil {
		return zap.NewNop()
	}
	return h.Log
}

// storeFor returns the session store of the request's browser session. A
// request outside the session middleware gets unavailable storage.
func storeFor(ctx context.Context, sessions SessionRegistry, log *zap.Logger) *session.Store {
	id := middleware.SessionIDFromContext(ctx)
	if id == "" {
		return session.NewStore(session.UnavailableBackend{Reason: "no browser session"}, log)
	}
	return session.NewStore(sessions.Backend(id), log)
}

func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func retryAfterSeconds(d time.Duration) int {
	return max(1, int(math.Ceil(d.Seconds())))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
