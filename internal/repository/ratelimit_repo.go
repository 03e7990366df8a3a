package repository

import (
	"database/sql"
	"fmt"
	"time"

	"aether/internal/database"
)

// RateLimitRepository stores rate limit attempts durably so limits
// survive restarts. Implements security.AttemptStore.
type RateLimitRepository struct {
	db *database.DB
}

// NewRateLimitRepository creates a new rate limit repository
func NewRateLimitRepository(db *database.DB) *RateLimitRepository {
	return &RateLimitRepository{db: db}
}

// AttemptsSince returns the attempt count for (userID, action) at or
// after since, and the time of the most recent attempt
func (r *RateLimitRepository) AttemptsSince(userID int64, action string, since time.Time) (int, *time.Time, error) {
	query := `
		SELECT COUNT(*), MAX(created_at)
		FROM rate_limit_attempts
		WHERE user_id = ? AND action = ? AND created_at >= ?
	`
	var count int
	var latest sql.NullTime
	if err := r.db.QueryRow(query, userID, action, since).Scan(&count, &latest); err != nil {
		return 0, nil, fmt.Errorf("failed to count attempts: %w", err)
	}
	if !latest.Valid {
		return count, nil, nil
	}
	return count, &latest.Time, nil
}

// RecordAttempt stores one attempt
func (r *RateLimitRepository) RecordAttempt(userID int64, action string, at time.Time) error {
	query := "INSERT INTO rate_limit_attempts (user_id, action, created_at) VALUES (?, ?, ?)"
	if _, err := r.db.Exec(query, userID, action, at); err != nil {
		return fmt.Errorf("failed to record attempt: %w", err)
	}
	return nil
}

// ResetAttempts removes every attempt for (userID, action)
func (r *RateLimitRepository) ResetAttempts(userID int64, action string) error {
	query := "DELETE FROM rate_limit_attempts WHERE user_id = ? AND action = ?"
	if _, err := r.db.Exec(query, userID, action); err != nil {
		return fmt.Errorf("failed to reset attempts: %w", err)
	}
	return nil
}

// DeleteBefore removes attempts older than cutoff
func (r *RateLimitRepository) DeleteBefore(cutoff time.Time) (int64, error) {
	query := "DELETE FROM rate_limit_attempts WHERE created_at < ?"
	result, err := r.db.Exec(query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete attempts: %w", err)
	}
	return result.RowsAffected()
}
