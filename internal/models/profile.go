package models

import "time"

// Profile roles
const (
	RoleChild  = "child"
	RoleParent = "parent"
)

// Profile represents a user account (child or parent)
type Profile struct {
	ID            int64      `json:"id"`
	Username      string     `json:"username"`
	Email         string     `json:"email"`
	PasswordHash  string     `json:"-"`
	Role          string     `json:"role"`
	Balance       int        `json:"balance"`
	CurrentStreak int        `json:"current_streak"`
	LongestStreak int        `json:"longest_streak"`
	LastQuestDate *time.Time `json:"last_quest_date,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// IsChild reports whether the profile belongs to a child account
func (p *Profile) IsChild() bool {
	return p.Role == RoleChild
}

// IsParent reports whether the profile belongs to a parent account
func (p *Profile) IsParent() bool {
	return p.Role == RoleParent
}
