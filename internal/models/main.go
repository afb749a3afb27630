// Package models defines the records shared by the throttle and its repositories.
package models

import "time"

// LoginAttempt tracks consecutive login failures for one subject.
// It never holds credential material.
type LoginAttempt struct {
	// Subject is the client the failures are counted for: a client IP on the
	// server, "local" in the terminal client.
	Subject string `json:"subject"`
	// Failures counts failures since the last success or lockout.
	Failures int `json:"failures"`
	// LastFailure is the time of the most recent failure.
	LastFailure time.Time `json:"last_failure"`
	// LockedUntil is zero unless the subject is locked out.
	LockedUntil time.Time `json:"locked_until"`
}

// Locked reports whether the subject is locked out at now.
func (a LoginAttempt) Locked(now time.Time) bool {
	return now.Before(a.LockedUntil)
}
