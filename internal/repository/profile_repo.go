package repository

import (
	"database/sql"
	"fmt"
	"time"

	"aether/internal/database"
	"aether/internal/models"
)

// ProfileRepository handles database operations for profiles and sessions
type ProfileRepository struct {
	db *database.DB
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(db *database.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// CreateProfile inserts a new profile
func (r *ProfileRepository) CreateProfile(username, email, passwordHash, role string) (*models.Profile, error) {
	query := `
		INSERT INTO profiles (username, email, password_hash, role)
		VALUES (?, ?, ?, ?)
	`
	id, err := r.db.ExecReturningID(query, username, email, passwordHash, role)
	if err != nil {
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}

	return &models.Profile{
		ID:           id,
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         role,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}, nil
}

const profileColumns = `id, username, email, password_hash, role, balance,
	current_streak, longest_streak, last_quest_date, created_at, updated_at`

func scanProfile(row *sql.Row) (*models.Profile, error) {
	p := &models.Profile{}
	err := row.Scan(
		&p.ID,
		&p.Username,
		&p.Email,
		&p.PasswordHash,
		&p.Role,
		&p.Balance,
		&p.CurrentStreak,
		&p.LongestStreak,
		&p.LastQuestDate,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan profile: %w", err)
	}
	return p, nil
}

// GetProfileByID retrieves a profile by ID
func (r *ProfileRepository) GetProfileByID(id int64) (*models.Profile, error) {
	query := "SELECT " + profileColumns + " FROM profiles WHERE id = ?"
	return scanProfile(r.db.QueryRow(query, id))
}

// GetProfileByEmail retrieves a profile by email address
func (r *ProfileRepository) GetProfileByEmail(email string) (*models.Profile, error) {
	query := "SELECT " + profileColumns + " FROM profiles WHERE email = ?"
	return scanProfile(r.db.QueryRow(query, email))
}

// ListProfiles returns every profile, ordered by ID
func (r *ProfileRepository) ListProfiles() ([]models.Profile, error) {
	query := "SELECT " + profileColumns + " FROM profiles ORDER BY id"
	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	defer rows.Close()

	var profiles []models.Profile
	for rows.Next() {
		p := models.Profile{}
		if err := rows.Scan(
			&p.ID,
			&p.Username,
			&p.Email,
			&p.PasswordHash,
			&p.Role,
			&p.Balance,
			&p.CurrentStreak,
			&p.LongestStreak,
			&p.LastQuestDate,
			&p.CreatedAt,
			&p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

// CreateSession stores a new session
func (r *ProfileRepository) CreateSession(session *models.Session) error {
	query := "INSERT INTO sessions (id, user_id, expires_at) VALUES (?, ?, ?)"
	_, err := r.db.Exec(query, session.ID, session.UserID, session.ExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// GetSessionByID retrieves a session by ID
func (r *ProfileRepository) GetSessionByID(id string) (*models.Session, error) {
	query := "SELECT id, user_id, expires_at, created_at FROM sessions WHERE id = ?"
	session := &models.Session{}
	err := r.db.QueryRow(query, id).Scan(
		&session.ID,
		&session.UserID,
		&session.ExpiresAt,
		&session.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return session, nil
}

// DeleteSession removes a session
func (r *ProfileRepository) DeleteSession(id string) error {
	query := "DELETE FROM sessions WHERE id = ?"
	_, err := r.db.Exec(query, id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteExpiredSessions removes all sessions past their expiry.
// Returns the number of sessions removed.
func (r *ProfileRepository) DeleteExpiredSessions() (int64, error) {
	query := "DELETE FROM sessions WHERE expires_at < ?"
	result, err := r.db.Exec(query, time.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	return result.RowsAffected()
}
