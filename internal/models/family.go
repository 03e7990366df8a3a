package models

import "time"

// Family link statuses
const (
	LinkPending = "pending"
	LinkActive  = "active"
)

// FamilyLink is the parent-child relationship record. While status is
// pending the link carries a single-use invite code; claiming the code sets
// the child, activates the link and clears the code.
type FamilyLink struct {
	ID                        int64      `json:"id"`
	ParentID                  int64      `json:"parent_id"`
	ChildID                   *int64     `json:"child_id,omitempty"`
	InviteCode                string     `json:"invite_code,omitempty"`
	Status                    string     `json:"status"`
	LinkedAt                  *time.Time `json:"linked_at,omitempty"`
	SpendingLimit             *int       `json:"spending_limit,omitempty"`
	ParentEmail               string     `json:"parent_email,omitempty"`
	EmailNotificationsEnabled bool       `json:"email_notifications_enabled"`
	CreatedAt                 time.Time  `json:"created_at"`
}

// IsClaimable reports whether a child can still claim this link's code
func (l *FamilyLink) IsClaimable() bool {
	return l.Status == LinkPending && l.InviteCode != ""
}
