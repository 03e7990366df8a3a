package models

import "time"

// Quest types
const (
	QuestTypeReading  = "reading"
	QuestTypeDrawing  = "drawing"
	QuestTypeHomework = "homework"
	QuestTypeChores   = "chores"
	QuestTypeExercise = "exercise"
	QuestTypeMusic    = "music"
	QuestTypeCustom   = "custom"
)

// Verification methods
const (
	VerifyByAI     = "ai"
	VerifyByParent = "parent"
)

// Quest statuses
const (
	QuestActive    = "active"
	QuestCompleted = "completed"
	QuestCancelled = "cancelled"
)

// ValidQuestType reports whether t is one of the supported quest types
func ValidQuestType(t string) bool {
	switch t {
	case QuestTypeReading, QuestTypeDrawing, QuestTypeHomework, QuestTypeChores,
		QuestTypeExercise, QuestTypeMusic, QuestTypeCustom:
		return true
	}
	return false
}

// Quest represents a parent-assigned quest definition
type Quest struct {
	ID                 int64      `json:"id"`
	ParentID           int64      `json:"parent_id"`
	ChildID            int64      `json:"child_id"`
	Name               string     `json:"name"`
	Description        string     `json:"description,omitempty"`
	Tokens             int        `json:"tokens"`
	QuestType          string     `json:"quest_type"`
	VerificationMethod string     `json:"verification_method"`
	Status             string     `json:"status"`
	CreatedAt          time.Time  `json:"created_at"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
}

// IsTerminal reports whether the quest has reached a final status
func (q *Quest) IsTerminal() bool {
	return q.Status == QuestCompleted || q.Status == QuestCancelled
}

// QuestDescriptor identifies the quest a proof submission claims. QuestID is
// nil for the built-in quests that are not parent-assigned.
type QuestDescriptor struct {
	QuestID            *int64 `json:"quest_id"`
	Name               string `json:"name"`
	Tokens             int    `json:"tokens"`
	QuestType          string `json:"quest_type"`
	VerificationMethod string `json:"verification_method"`
}
