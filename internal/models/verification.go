package models

import "time"

// Pending verification statuses. The only transitions are
// pending -> approved and pending -> rejected; both are terminal.
const (
	VerificationPending  = "pending"
	VerificationApproved = "approved"
	VerificationRejected = "rejected"
)

// PendingVerification is one child-submitted proof awaiting (or past)
// parent adjudication. Tokens is a snapshot captured at submission time,
// not a live reference to the originating quest. ParentID is nil on
// rows an AI pass settled while the child had no active family link.
type PendingVerification struct {
	ID         string     `json:"id"`
	ChildID    int64      `json:"child_id"`
	ParentID   *int64     `json:"parent_id,omitempty"`
	QuestID    *int64     `json:"quest_id,omitempty"`
	QuestName  string     `json:"quest_name"`
	QuestType  string     `json:"quest_type"`
	Tokens     int        `json:"tokens"`
	ImagePath  string     `json:"image_path"`
	AIReason   string     `json:"ai_reason,omitempty"`
	Status     string     `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	ReviewedAt *time.Time `json:"reviewed_at,omitempty"`
}

// IsReviewed reports whether the verification has reached a terminal status
func (v *PendingVerification) IsReviewed() bool {
	return v.Status != VerificationPending
}
