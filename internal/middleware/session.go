// Package middleware provides HTTP middlewares for browser sessions, logging
// and response headers.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// SessionCookie names the cookie carrying the browser-session id.
const SessionCookie = "nordcup_session"

type ctxKey string

const sessionKey ctxKey = "session"

// Session binds every request to a browser session. A request without a valid
// session cookie gets a fresh id and a new cookie. The cookie has no expiry, so
// the browser drops it when the session ends.
//
// secure marks the cookie Secure and should be set when serving over TLS.
func Session(secure bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := sessionIDFromCookie(r)
			if id == "" {
				id = uuid.NewString()
				SetSessionCookie(w, id, secure)
			}
			next.ServeHTTP(w, WithSessionID(r, id))
		})
	}
}

// SetSessionCookie writes the session cookie for id, replacing a session
// cookie already set on w so the response carries exactly one.
func SetSessionCookie(w http.ResponseWriter, id string, secure bool) {
	dropSessionCookie(w.Header())
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// WithSessionID returns a shallow copy of r whose context carries id.
func WithSessionID(r *http.Request, id string) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), sessionKey, id))
}

// SessionIDFromContext extracts the browser-session id from the request
// context. Returns an empty string if not found.
func SessionIDFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(sessionKey).(string); ok {
		return s
	}
	return ""
}

func dropSessionCookie(h http.Header) {
	prefix := SessionCookie + "="
	cookies := h["Set-Cookie"]
	kept := make([]string, 0, len(cookies))
	for _, c := range cookies {
		if !strings.HasPrefix(c, prefix) {
			kept = append(kept, c)
		}
	}
	if len(kept) == 0 {
		h.Del("Set-Cookie")
		return
	}
	h["Set-Cookie"] = kept
}

func sessionIDFromCookie(r *http.Request) string {
	c, err := r.Cookie(SessionCookie)
	if err != nil {
		return ""
	}
	id, err := uuid.Parse(c.Value)
	if err != nil {
		return ""
	}
	return id.String()
}
