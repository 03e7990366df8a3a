package repository

import (
	"database/sql"
	"fmt"
	"time"

	"aether/internal/database"
	"aether/internal/models"
)

// VerificationRepository handles database operations for pending
// verifications and the settlement that pays out an approved one.
type VerificationRepository struct {
	db *database.DB
}

// NewVerificationRepository creates a new verification repository
func NewVerificationRepository(db *database.DB) *VerificationRepository {
	return &VerificationRepository{db: db}
}

// CreatePending inserts a new pending verification. The quest reward is
// snapshotted onto the row so later quest edits cannot change the payout.
func (r *VerificationRepository) CreatePending(v *models.PendingVerification) error {
	query := `
		INSERT INTO pending_verifications
			(id, child_id, parent_id, quest_id, quest_name, quest_type, tokens, image_path, ai_reason, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.Exec(query,
		v.ID, v.ChildID, v.ParentID, v.QuestID, v.QuestName, v.QuestType,
		v.Tokens, v.ImagePath, v.AIReason, models.VerificationPending)
	if err != nil {
		return fmt.Errorf("failed to create pending verification: %w", err)
	}
	return nil
}

const verificationColumns = `id, child_id, parent_id, quest_id, quest_name, quest_type,
	tokens, image_path, ai_reason, status, created_at, reviewed_at`

// GetByID retrieves a pending verification by ID
func (r *VerificationRepository) GetByID(id string) (*models.PendingVerification, error) {
	query := "SELECT " + verificationColumns + " FROM pending_verifications WHERE id = ?"
	v := &models.PendingVerification{}
	err := r.db.QueryRow(query, id).Scan(
		&v.ID, &v.ChildID, &v.ParentID, &v.QuestID, &v.QuestName, &v.QuestType,
		&v.Tokens, &v.ImagePath, &v.AIReason, &v.Status, &v.CreatedAt, &v.ReviewedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get verification: %w", err)
	}
	return v, nil
}

// ListForParent retrieves verifications awaiting a parent's review,
// oldest first, optionally filtered by status
func (r *VerificationRepository) ListForParent(parentID int64, status string) ([]models.PendingVerification, error) {
	query := "SELECT " + verificationColumns + " FROM pending_verifications WHERE parent_id = ?"
	args := []interface{}{parentID}
	if status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}
	query += " ORDER BY created_at ASC"
	return r.list(query, args...)
}

// ListForChild retrieves a child's verifications, newest first
func (r *VerificationRepository) ListForChild(childID int64) ([]models.PendingVerification, error) {
	query := "SELECT " + verificationColumns + " FROM pending_verifications WHERE child_id = ? ORDER BY created_at DESC"
	return r.list(query, childID)
}

func (r *VerificationRepository) list(query string, args ...interface{}) ([]models.PendingVerification, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query verifications: %w", err)
	}
	defer rows.Close()

	var verifications []models.PendingVerification
	for rows.Next() {
		var v models.PendingVerification
		if err := rows.Scan(
			&v.ID, &v.ChildID, &v.ParentID, &v.QuestID, &v.QuestName, &v.QuestType,
			&v.Tokens, &v.ImagePath, &v.AIReason, &v.Status, &v.CreatedAt, &v.ReviewedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan verification: %w", err)
		}
		verifications = append(verifications, v)
	}
	return verifications, rows.Err()
}

// SettlementResult describes the outcome of an approved settlement
type SettlementResult struct {
	ChildID       int64
	QuestName     string
	Tokens        int
	NewBalance    int
	CurrentStreak int
	LongestStreak int
	StreakBonus   int
}

// SettleApproved approves a pending verification and pays it out in one
// database transaction: the status flip, the earn transaction, the
// balance credit, the streak update and the quest completion all commit
// together or not at all. The status flip is guarded on the pending
// state, so two concurrent settlements of the same verification can
// never both mint coins.
func (r *VerificationRepository) SettleApproved(id, description string, now time.Time) (*SettlementResult, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		UPDATE pending_verifications SET status = ?, reviewed_at = ?
		WHERE id = ? AND status = ?
	`
	result, err := tx.Exec(query, models.VerificationApproved, now, id, models.VerificationPending)
	if err != nil {
		return nil, fmt.Errorf("failed to approve verification: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check approval: %w", err)
	}
	if affected == 0 {
		return nil, ErrVerificationNotPending
	}

	var (
		childID   int64
		questID   sql.NullInt64
		questName string
		tokens    int
	)
	query = "SELECT child_id, quest_id, quest_name, tokens FROM pending_verifications WHERE id = ?"
	if err := tx.QueryRow(query, id).Scan(&childID, &questID, &questName, &tokens); err != nil {
		return nil, fmt.Errorf("failed to load verification: %w", err)
	}

	var (
		balance       int
		currentStreak int
		longestStreak int
		lastQuestDate *time.Time
	)
	query = "SELECT balance, current_streak, longest_streak, last_quest_date FROM profiles WHERE id = ?"
	if err := tx.QueryRow(query, childID).Scan(&balance, &currentStreak, &longestStreak, &lastQuestDate); err != nil {
		return nil, fmt.Errorf("failed to load child profile: %w", err)
	}

	newStreak, newLongest := models.AdvanceStreak(currentStreak, longestStreak, lastQuestDate, now)

	query = `
		UPDATE profiles
		SET balance = balance + ?, current_streak = ?, longest_streak = ?,
		    last_quest_date = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`
	if _, err := tx.Exec(query, tokens, newStreak, newLongest, now, childID); err != nil {
		return nil, fmt.Errorf("failed to credit child: %w", err)
	}

	query = "INSERT INTO transactions (user_id, type, amount, description) VALUES (?, ?, ?, ?)"
	if _, err := tx.Exec(query, childID, models.TransactionEarn, tokens, description); err != nil {
		return nil, fmt.Errorf("failed to record transaction: %w", err)
	}

	if questID.Valid {
		// Guarded on active so a cancelled quest stays cancelled
		query = "UPDATE quests SET status = ?, completed_at = ? WHERE id = ? AND status = ?"
		if _, err := tx.Exec(query, models.QuestCompleted, now, questID.Int64, models.QuestActive); err != nil {
			return nil, fmt.Errorf("failed to complete quest: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit settlement: %w", err)
	}

	return &SettlementResult{
		ChildID:       childID,
		QuestName:     questName,
		Tokens:        tokens,
		NewBalance:    balance + tokens,
		CurrentStreak: newStreak,
		LongestStreak: newLongest,
		StreakBonus:   models.StreakBonus(newStreak),
	}, nil
}

// MarkRejected rejects a pending verification. No coins move. The same
// pending-state guard applies, so a rejection can never undo a payout.
func (r *VerificationRepository) MarkRejected(id string, now time.Time) error {
	query := `
		UPDATE pending_verifications SET status = ?, reviewed_at = ?
		WHERE id = ? AND status = ?
	`
	result, err := r.db.Exec(query, models.VerificationRejected, now, id, models.VerificationPending)
	if err != nil {
		return fmt.Errorf("failed to reject verification: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rejection: %w", err)
	}
	if affected == 0 {
		return ErrVerificationNotPending
	}
	return nil
}
