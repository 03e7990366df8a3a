package repository

import (
	"database/sql"
	"fmt"
	"time"

	"aether/internal/database"
	"aether/internal/models"
)

// QuestRepository handles database operations for quests
type QuestRepository struct {
	db *database.DB
}

// NewQuestRepository creates a new quest repository
func NewQuestRepository(db *database.DB) *QuestRepository {
	return &QuestRepository{db: db}
}

// CreateQuest inserts a new quest assigned to a child
func (r *QuestRepository) CreateQuest(q *models.Quest) (*models.Quest, error) {
	query := `
		INSERT INTO quests (parent_id, child_id, name, description, tokens, quest_type, verification_method, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	id, err := r.db.ExecReturningID(query,
		q.ParentID, q.ChildID, q.Name, q.Description, q.Tokens, q.QuestType, q.VerificationMethod, models.QuestActive)
	if err != nil {
		return nil, fmt.Errorf("failed to create quest: %w", err)
	}

	q.ID = id
	q.Status = models.QuestActive
	q.CreatedAt = time.Now()
	return q, nil
}

const questColumns = `id, parent_id, child_id, name, description, tokens,
	quest_type, verification_method, status, created_at, completed_at`

// GetQuestByID retrieves a quest by ID
func (r *QuestRepository) GetQuestByID(id int64) (*models.Quest, error) {
	query := "SELECT " + questColumns + " FROM quests WHERE id = ?"
	q := &models.Quest{}
	err := r.db.QueryRow(query, id).Scan(
		&q.ID, &q.ParentID, &q.ChildID, &q.Name, &q.Description, &q.Tokens,
		&q.QuestType, &q.VerificationMethod, &q.Status, &q.CreatedAt, &q.CompletedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get quest: %w", err)
	}
	return q, nil
}

// ListQuestsForChild retrieves a child's quests, optionally filtered by status
func (r *QuestRepository) ListQuestsForChild(childID int64, status string) ([]models.Quest, error) {
	query := "SELECT " + questColumns + " FROM quests WHERE child_id = ?"
	args := []interface{}{childID}
	if status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}
	query += " ORDER BY created_at DESC"
	return r.listQuests(query, args...)
}

// ListQuestsForParent retrieves all quests a parent has created
func (r *QuestRepository) ListQuestsForParent(parentID int64) ([]models.Quest, error) {
	query := "SELECT " + questColumns + " FROM quests WHERE parent_id = ? ORDER BY created_at DESC"
	return r.listQuests(query, parentID)
}

func (r *QuestRepository) listQuests(query string, args ...interface{}) ([]models.Quest, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query quests: %w", err)
	}
	defer rows.Close()

	var quests []models.Quest
	for rows.Next() {
		var q models.Quest
		if err := rows.Scan(
			&q.ID, &q.ParentID, &q.ChildID, &q.Name, &q.Description, &q.Tokens,
			&q.QuestType, &q.VerificationMethod, &q.Status, &q.CreatedAt, &q.CompletedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan quest: %w", err)
		}
		quests = append(quests, q)
	}
	return quests, rows.Err()
}

// CancelQuest moves an active quest to cancelled. Returns false when the
// quest was not active (already completed or cancelled).
func (r *QuestRepository) CancelQuest(questID, parentID int64) (bool, error) {
	query := `
		UPDATE quests SET status = ?
		WHERE id = ? AND parent_id = ? AND status = ?
	`
	result, err := r.db.Exec(query, models.QuestCancelled, questID, parentID, models.QuestActive)
	if err != nil {
		return false, fmt.Errorf("failed to cancel quest: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check cancel: %w", err)
	}
	return affected > 0, nil
}
