package repository

import (
	"database/sql"
	"fmt"
	"time"

	"aether/internal/database"
	"aether/internal/models"
)

// FamilyRepository handles database operations for parent-child links
// and invite codes
type FamilyRepository struct {
	db *database.DB
}

// NewFamilyRepository creates a new family repository
func NewFamilyRepository(db *database.DB) *FamilyRepository {
	return &FamilyRepository{db: db}
}

// CreateInvite stores a new invite code for a parent
func (r *FamilyRepository) CreateInvite(parentID int64, code, parentEmail string) (*models.FamilyLink, error) {
	query := `
		INSERT INTO family_links (parent_id, invite_code, status, parent_email)
		VALUES (?, ?, ?, ?)
	`
	id, err := r.db.ExecReturningID(query, parentID, code, models.LinkPending, parentEmail)
	if err != nil {
		return nil, fmt.Errorf("failed to create invite: %w", err)
	}

	return &models.FamilyLink{
		ID:          id,
		ParentID:    parentID,
		InviteCode:  code,
		Status:      models.LinkPending,
		ParentEmail: parentEmail,
		CreatedAt:   time.Now(),
	}, nil
}

// ClaimInvite links a child to the parent behind an invite code. The
// update is guarded on the pending, unclaimed state so a code can only
// ever be used once, and the code itself is cleared so it never matches
// again.
func (r *FamilyRepository) ClaimInvite(code string, childID int64, now time.Time) (*models.FamilyLink, error) {
	query := `
		UPDATE family_links SET child_id = ?, status = ?, linked_at = ?, invite_code = NULL
		WHERE invite_code = ? AND status = ? AND child_id IS NULL
	`
	result, err := r.db.Exec(query, childID, models.LinkActive, now, code, models.LinkPending)
	if err != nil {
		return nil, fmt.Errorf("failed to claim invite: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check claim: %w", err)
	}
	if affected == 0 {
		return nil, ErrInviteNotClaimable
	}

	// The code is gone, so the fresh link is found through the child
	link, err := r.GetActiveLinkForChild(childID)
	if err != nil {
		return nil, err
	}
	if link == nil {
		return nil, fmt.Errorf("failed to load claimed link for child %d", childID)
	}
	return link, nil
}

const familyLinkColumns = `id, parent_id, child_id, invite_code, status, linked_at,
	spending_limit, parent_email, email_notifications_enabled, created_at`

func scanFamilyLink(row *sql.Row) (*models.FamilyLink, error) {
	link := &models.FamilyLink{}
	var inviteCode sql.NullString
	var parentEmail sql.NullString
	err := row.Scan(
		&link.ID, &link.ParentID, &link.ChildID, &inviteCode, &link.Status, &link.LinkedAt,
		&link.SpendingLimit, &parentEmail, &link.EmailNotificationsEnabled, &link.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan family link: %w", err)
	}
	link.InviteCode = inviteCode.String
	link.ParentEmail = parentEmail.String
	return link, nil
}

// GetActiveLinkForChild retrieves the active link a child belongs to
func (r *FamilyRepository) GetActiveLinkForChild(childID int64) (*models.FamilyLink, error) {
	query := "SELECT " + familyLinkColumns + " FROM family_links WHERE child_id = ? AND status = ?"
	return scanFamilyLink(r.db.QueryRow(query, childID, models.LinkActive))
}

// GetLinkByParentAndChild retrieves the active link between a specific
// parent and child
func (r *FamilyRepository) GetLinkByParentAndChild(parentID, childID int64) (*models.FamilyLink, error) {
	query := "SELECT " + familyLinkColumns + " FROM family_links WHERE parent_id = ? AND child_id = ? AND status = ?"
	return scanFamilyLink(r.db.QueryRow(query, parentID, childID, models.LinkActive))
}

// ListLinksForParent retrieves all of a parent's links: active children
// and open invites
func (r *FamilyRepository) ListLinksForParent(parentID int64) ([]models.FamilyLink, error) {
	query := "SELECT " + familyLinkColumns + " FROM family_links WHERE parent_id = ? ORDER BY created_at DESC"
	rows, err := r.db.Query(query, parentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query family links: %w", err)
	}
	defer rows.Close()

	var links []models.FamilyLink
	for rows.Next() {
		link := models.FamilyLink{}
		var inviteCode sql.NullString
		var parentEmail sql.NullString
		if err := rows.Scan(
			&link.ID, &link.ParentID, &link.ChildID, &inviteCode, &link.Status, &link.LinkedAt,
			&link.SpendingLimit, &parentEmail, &link.EmailNotificationsEnabled, &link.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan family link: %w", err)
		}
		link.InviteCode = inviteCode.String
		link.ParentEmail = parentEmail.String
		links = append(links, link)
	}
	return links, rows.Err()
}

// UpdateSettings updates the spending limit and email notification
// preference on a parent's link to a child. Returns false when no
// active link exists between the two.
func (r *FamilyRepository) UpdateSettings(parentID, childID int64, spendingLimit *int, emailNotifications bool) (bool, error) {
	query := `
		UPDATE family_links SET spending_limit = ?, email_notifications_enabled = ?
		WHERE parent_id = ? AND child_id = ? AND status = ?
	`
	result, err := r.db.Exec(query, spendingLimit, emailNotifications, parentID, childID, models.LinkActive)
	if err != nil {
		return false, fmt.Errorf("failed to update link settings: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check settings update: %w", err)
	}
	return affected > 0, nil
}
