package service

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"aether/internal/models"
	"aether/internal/repository"
	"aether/internal/security"
	"aether/internal/validation"
)

var (
	ErrAlreadyLinked = errors.New("child is already linked to a parent")
	ErrNoSuchLink    = errors.New("no active link between parent and child")
)

// Invite codes are 8 characters from A-Z0-9. Claims uppercase their
// input before matching.
const (
	inviteCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	inviteCodeLength   = 8
)

// FamilyService handles invite codes and parent-child links
type FamilyService struct {
	familyRepo  *repository.FamilyRepository
	profileRepo *repository.ProfileRepository
	limiter     *security.Limiter
	notifier    *Notifier
}

// NewFamilyService creates a new family service
func NewFamilyService(familyRepo *repository.FamilyRepository, profileRepo *repository.ProfileRepository, limiter *security.Limiter, notifier *Notifier) *FamilyService {
	return &FamilyService{
		familyRepo:  familyRepo,
		profileRepo: profileRepo,
		limiter:     limiter,
		notifier:    notifier,
	}
}

// CreateInvite generates a fresh single-use invite code for a parent.
// Creation shares the invite-code rate limit with claims, so a parent
// cannot churn out codes faster than the policy allows.
func (s *FamilyService) CreateInvite(parentID int64) (*models.FamilyLink, error) {
	result, err := s.limiter.Check(parentID, security.ActionInviteCode)
	if err != nil {
		return nil, fmt.Errorf("failed to check rate limit: %w", err)
	}
	if !result.Allowed {
		return nil, &RateLimitError{RetryAfter: result.RetryAfter}
	}

	parent, err := s.profileRepo.GetProfileByID(parentID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up parent: %w", err)
	}
	if parent == nil || !parent.IsParent() {
		return nil, errors.New("only parents can create invites")
	}

	// Retry on the unlikely unique-constraint collision
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		code, err := generateInviteCode()
		if err != nil {
			return nil, err
		}
		link, err := s.familyRepo.CreateInvite(parentID, code, parent.Email)
		if err == nil {
			return link, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("failed to create invite: %w", lastErr)
}

// ClaimInvite links a child to the parent behind the code. Attempts are
// rate limited so codes cannot be brute-forced.
func (s *FamilyService) ClaimInvite(childID int64, code string) (*models.FamilyLink, error) {
	result, err := s.limiter.Check(childID, security.ActionInviteCode)
	if err != nil {
		return nil, fmt.Errorf("failed to check rate limit: %w", err)
	}
	if !result.Allowed {
		return nil, &RateLimitError{RetryAfter: result.RetryAfter}
	}

	code = strings.ToUpper(strings.TrimSpace(code))
	if err := validation.ValidateInviteCode(code); err != nil {
		return nil, err
	}

	child, err := s.profileRepo.GetProfileByID(childID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up child: %w", err)
	}
	if child == nil || !child.IsChild() {
		return nil, errors.New("only children can claim invites")
	}

	existing, err := s.familyRepo.GetActiveLinkForChild(childID)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing link: %w", err)
	}
	if existing != nil {
		return nil, ErrAlreadyLinked
	}

	link, err := s.familyRepo.ClaimInvite(code, childID, time.Now())
	if err != nil {
		return nil, err
	}

	s.notifier.ChildLinked(link.ParentID, link.ParentEmail, child.Username, link.EmailNotificationsEnabled)
	return link, nil
}

// FamilyChild is one linked child on a parent's dashboard
type FamilyChild struct {
	Profile       *models.Profile `json:"profile"`
	SpendingLimit *int            `json:"spending_limit,omitempty"`
	LinkedAt      *time.Time      `json:"linked_at,omitempty"`
}

// ListChildren returns a parent's linked children with their profiles
func (s *FamilyService) ListChildren(parentID int64) ([]FamilyChild, error) {
	links, err := s.familyRepo.ListLinksForParent(parentID)
	if err != nil {
		return nil, err
	}

	var children []FamilyChild
	for _, link := range links {
		if link.Status != models.LinkActive || link.ChildID == nil {
			continue
		}
		profile, err := s.profileRepo.GetProfileByID(*link.ChildID)
		if err != nil {
			return nil, fmt.Errorf("failed to look up child: %w", err)
		}
		if profile == nil {
			continue
		}
		children = append(children, FamilyChild{
			Profile:       profile,
			SpendingLimit: link.SpendingLimit,
			LinkedAt:      link.LinkedAt,
		})
	}
	return children, nil
}

// ListInvites returns a parent's unclaimed invite codes
func (s *FamilyService) ListInvites(parentID int64) ([]models.FamilyLink, error) {
	links, err := s.familyRepo.ListLinksForParent(parentID)
	if err != nil {
		return nil, err
	}

	var invites []models.FamilyLink
	for _, link := range links {
		if link.IsClaimable() {
			invites = append(invites, link)
		}
	}
	return invites, nil
}

// UpdateSettings changes the spending limit and email preference on a
// parent's link to a child
func (s *FamilyService) UpdateSettings(parentID, childID int64, spendingLimit *int, emailNotifications bool) error {
	if spendingLimit != nil && *spendingLimit < 0 {
		return validation.ValidationError{Field: "spending_limit", Message: "spending limit cannot be negative"}
	}

	updated, err := s.familyRepo.UpdateSettings(parentID, childID, spendingLimit, emailNotifications)
	if err != nil {
		return err
	}
	if !updated {
		return ErrNoSuchLink
	}
	return nil
}

// generateInviteCode returns 8 crypto-random characters from the code alphabet
func generateInviteCode() (string, error) {
	buf := make([]byte, inviteCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate invite code: %w", err)
	}
	code := make([]byte, inviteCodeLength)
	for i, b := range buf {
		code[i] = inviteCodeAlphabet[int(b)%len(inviteCodeAlphabet)]
	}
	return string(code), nil
}
