package service

import (
	"errors"
	"fmt"
	"time"

	"aether/internal/models"
	"aether/internal/repository"
	"aether/internal/security"
	"aether/internal/validation"
)

var (
	ErrEmailTaken         = errors.New("email already taken")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrSessionNotFound    = errors.New("session not found")
	ErrSessionExpired     = errors.New("session expired")
)

// AuthService handles registration, login and session lookup
type AuthService struct {
	profileRepo     *repository.ProfileRepository
	sessionDuration time.Duration
}

// NewAuthService creates a new auth service
func NewAuthService(profileRepo *repository.ProfileRepository, sessionDuration time.Duration) *AuthService {
	return &AuthService{
		profileRepo:     profileRepo,
		sessionDuration: sessionDuration,
	}
}

// Register creates a new profile with the given role
func (s *AuthService) Register(username, email, password, role string) (*models.Profile, error) {
	if err := validation.ValidateUsername(username); err != nil {
		return nil, err
	}
	if err := validation.ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := validation.ValidatePassword(password); err != nil {
		return nil, err
	}
	if role != models.RoleChild && role != models.RoleParent {
		return nil, fmt.Errorf("invalid role: %s", role)
	}

	existing, err := s.profileRepo.GetProfileByEmail(email)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing profile: %w", err)
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	passwordHash, err := security.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	profile, err := s.profileRepo.CreateProfile(username, email, passwordHash, role)
	if err != nil {
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}
	return profile, nil
}

// Login authenticates a profile and creates a session
func (s *AuthService) Login(email, password string) (*models.Session, *models.Profile, error) {
	profile, err := s.profileRepo.GetProfileByEmail(email)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to look up profile: %w", err)
	}
	if profile == nil || !security.CheckPassword(profile.PasswordHash, password) {
		return nil, nil, ErrInvalidCredentials
	}

	session := &models.Session{
		ID:        security.GenerateSessionID(),
		UserID:    profile.ID,
		ExpiresAt: time.Now().Add(s.sessionDuration),
		CreatedAt: time.Now(),
	}
	if err := s.profileRepo.CreateSession(session); err != nil {
		return nil, nil, fmt.Errorf("failed to create session: %w", err)
	}
	return session, profile, nil
}

// GetSessionProfile resolves a session ID to its profile
func (s *AuthService) GetSessionProfile(sessionID string) (*models.Profile, error) {
	session, err := s.profileRepo.GetSessionByID(sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up session: %w", err)
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	if session.IsExpired() {
		// Clean up eagerly; the background sweep would get it eventually
		_ = s.profileRepo.DeleteSession(session.ID)
		return nil, ErrSessionExpired
	}

	profile, err := s.profileRepo.GetProfileByID(session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up profile: %w", err)
	}
	if profile == nil {
		return nil, ErrSessionNotFound
	}
	return profile, nil
}

// Logout destroys a session
func (s *AuthService) Logout(sessionID string) error {
	return s.profileRepo.DeleteSession(sessionID)
}
