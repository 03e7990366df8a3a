package validation

import (
	"fmt"
	"regexp"
	"strings"

	"aether/internal/models"
)

var (
	emailRegex      = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	inviteCodeRegex = regexp.MustCompile(`^[A-Z0-9]{8}$`)
)

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateEmail checks if an email address is valid
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return ValidationError{Field: "email", Message: "email is required"}
	}
	if !emailRegex.MatchString(email) {
		return ValidationError{Field: "email", Message: "invalid email format"}
	}
	return nil
}

// ValidatePassword checks if a password meets requirements
func ValidatePassword(password string) error {
	if password == "" {
		return ValidationError{Field: "password", Message: "password is required"}
	}
	if len(password) < 8 {
		return ValidationError{Field: "password", Message: "password must be at least 8 characters"}
	}
	return nil
}

// ValidateUsername checks if a username is valid
func ValidateUsername(username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return ValidationError{Field: "username", Message: "username is required"}
	}
	if len(username) < 2 {
		return ValidationError{Field: "username", Message: "username must be at least 2 characters"}
	}
	if len(username) > 50 {
		return ValidationError{Field: "username", Message: "username must be at most 50 characters"}
	}
	return nil
}

// ValidateQuestName checks if a quest name is valid
func ValidateQuestName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ValidationError{Field: "name", Message: "quest name is required"}
	}
	if len(name) > 200 {
		return ValidationError{Field: "name", Message: "quest name must be at most 200 characters"}
	}
	return nil
}

// ValidateQuestType checks if a quest type is one of the known types
func ValidateQuestType(questType string) error {
	if !models.ValidQuestType(questType) {
		return ValidationError{Field: "quest_type", Message: fmt.Sprintf("unknown quest type: %s", questType)}
	}
	return nil
}

// ValidateTokens checks if a token reward amount is valid
func ValidateTokens(tokens int) error {
	if tokens <= 0 {
		return ValidationError{Field: "tokens", Message: "tokens must be positive"}
	}
	if tokens > 10000 {
		return ValidationError{Field: "tokens", Message: "tokens must be at most 10000"}
	}
	return nil
}

// ValidateInviteCode checks invite code format: 8 uppercase letters or digits
func ValidateInviteCode(code string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return ValidationError{Field: "invite_code", Message: "invite code is required"}
	}
	if !inviteCodeRegex.MatchString(code) {
		return ValidationError{Field: "invite_code", Message: "invite code must be 8 uppercase letters or digits"}
	}
	return nil
}

// ValidateAmount checks a coin amount for grants and purchases
func ValidateAmount(amount int) error {
	if amount <= 0 {
		return ValidationError{Field: "amount", Message: "amount must be positive"}
	}
	return nil
}
