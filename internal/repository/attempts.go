// Package repository provides persistence for login throttle state.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/nordcup/ridevault/internal/models"
)

// PostgresAttemptRepository stores login attempts in PostgreSQL.
type PostgresAttemptRepository struct {
	// DB is the database handle for executing queries.
	DB *sql.DB
}

// NewPostgresAttemptRepository creates a repository over db.
// db must be connected to a PostgreSQL instance with the login_attempts table.
func NewPostgresAttemptRepository(db *sql.DB) *PostgresAttemptRepository {
	return &PostgresAttemptRepository{DB: db}
}

// Get returns the attempt record for subject. A subject without a record has
// zero failures and no lock.
func (r *PostgresAttemptRepository) Get(ctx context.Context, subject string) (models.LoginAttempt, error) {
	a := models.LoginAttempt{Subject: subject}
	var lockedUntil pq.NullTime
	err := r.DB.QueryRowContext(ctx, `
		SELECT failures, last_failure, locked_until FROM login_attempts WHERE subject = $1
	`, subject).Scan(&a.Failures, &a.LastFailure, &lockedUntil)
	if errors.Is(err, sql.ErrNoRows) {
		return a, nil
	}
	if err != nil {
		return models.LoginAttempt{}, fmt.Errorf("get login attempt: %w", err)
	}
	if lockedUntil.Valid {
		a.LockedUntil = lockedUntil.Time
	}
	return a, nil
}

// Save inserts or replaces the record for a.Subject.
func (r *PostgresAttemptRepository) Save(ctx context.Context, a models.LoginAttempt) error {
	lockedUntil := pq.NullTime{Time: a.LockedUntil, Valid: !a.LockedUntil.IsZero()}
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO login_attempts (subject, failures, last_failure, locked_until)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (subject) DO UPDATE
		   SET failures = EXCLUDED.failures,
		       last_failure = EXCLUDED.last_failure,
		       locked_until = EXCLUDED.locked_until
	`, a.Subject, a.Failures, a.LastFailure, lockedUntil)
	if err != nil {
		return fmt.Errorf("save login attempt: %w", err)
	}
	return nil
}

// Delete removes the record for subject. Deleting a missing record is not an error.
func (r *PostgresAttemptRepository) Delete(ctx context.Context, subject string) error {
	if _, err := r.DB.ExecContext(ctx, `DELETE FROM login_attempts WHERE subject = $1`, subject); err != nil {
		return fmt.Errorf("delete login attempt: %w", err)
	}
	return nil
}

// PurgeBefore removes records whose last failure and lock both lie before cutoff.
// It returns the number of removed rows.
func (r *PostgresAttemptRepository) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `
		DELETE FROM login_attempts
		 WHERE last_failure < $1
		   AND (locked_until IS NULL OR locked_until < $1)
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge login attempts: %w", err)
	}
	rows, _ := res.RowsAffected()
	return rows, nil
}
