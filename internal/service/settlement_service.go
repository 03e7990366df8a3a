package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"aether/internal/models"
	"aether/internal/repository"
	"aether/internal/security"
	"aether/internal/storage"
	"aether/internal/validation"
	"aether/internal/verify"
)

var (
	ErrNotLinked            = errors.New("child is not linked to a parent")
	ErrQuestNotFound        = errors.New("quest not found")
	ErrQuestNotActive       = errors.New("quest is not active")
	ErrNotYourQuest         = errors.New("quest belongs to another child")
	ErrVerificationNotFound = errors.New("verification not found")
	ErrNotYourReview        = errors.New("verification belongs to another parent")
	ErrImageTooLarge        = errors.New("proof image is too large")
	ErrImageMissing         = errors.New("proof image is required")
)

// RateLimitError carries how long the caller must wait before retrying
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry after %s", e.RetryAfter)
}

// Submission statuses
const (
	SubmissionSettled       = "settled"
	SubmissionPendingReview = "pending_review"
)

// SubmissionOutcome is the result of a proof submission
type SubmissionOutcome struct {
	Status         string                       `json:"status"`
	VerificationID string                       `json:"verification_id"`
	Verdict        *verify.Verdict              `json:"verdict,omitempty"`
	Settlement     *repository.SettlementResult `json:"settlement,omitempty"`
}

// Verifier adjudicates a proof image for a quest
type Verifier interface {
	VerifyImage(ctx context.Context, questType, questName string, image []byte, mimeType string) (verify.Verdict, error)
}

// SettlementService runs the verification pipeline: proof intake, AI or
// parent adjudication, and the exactly-once payout of approved quests.
type SettlementService struct {
	verificationRepo *repository.VerificationRepository
	questRepo        *repository.QuestRepository
	profileRepo      *repository.ProfileRepository
	familyRepo       *repository.FamilyRepository
	proofs           storage.ProofStore
	verifier         Verifier
	limiter          *security.Limiter
	notifier         *Notifier
	maxImageSize     int64
}

// NewSettlementService creates a settlement service
func NewSettlementService(
	verificationRepo *repository.VerificationRepository,
	questRepo *repository.QuestRepository,
	profileRepo *repository.ProfileRepository,
	familyRepo *repository.FamilyRepository,
	proofs storage.ProofStore,
	verifier Verifier,
	limiter *security.Limiter,
	notifier *Notifier,
	maxImageSize int64,
) *SettlementService {
	return &SettlementService{
		verificationRepo: verificationRepo,
		questRepo:        questRepo,
		profileRepo:      profileRepo,
		familyRepo:       familyRepo,
		proofs:           proofs,
		verifier:         verifier,
		limiter:          limiter,
		notifier:         notifier,
		maxImageSize:     maxImageSize,
	}
}

// SubmitProof takes a child's proof image for a quest and either settles
// it immediately (AI pass) or queues it for parent review (AI fail or
// parent-verified quest). The quest's name, type and reward are
// snapshotted onto the verification so later quest edits cannot change
// the payout.
func (s *SettlementService) SubmitProof(ctx context.Context, childID int64, desc models.QuestDescriptor, image []byte, mimeType string) (*SubmissionOutcome, error) {
	if len(image) == 0 {
		return nil, ErrImageMissing
	}
	if int64(len(image)) > s.maxImageSize {
		return nil, ErrImageTooLarge
	}

	result, err := s.limiter.Check(childID, security.ActionQuestVerification)
	if err != nil {
		return nil, fmt.Errorf("failed to check rate limit: %w", err)
	}
	if !result.Allowed {
		return nil, &RateLimitError{RetryAfter: result.RetryAfter}
	}

	desc, err = s.resolveQuest(childID, desc)
	if err != nil {
		return nil, err
	}

	// The proof is made durable before any adjudication or link check,
	// so a failure further down never loses the image
	key := proofKey(childID, mimeType)
	if err := s.proofs.Save(ctx, key, image, mimeType); err != nil {
		return nil, fmt.Errorf("failed to store proof image: %w", err)
	}

	child, err := s.profileRepo.GetProfileByID(childID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up child: %w", err)
	}
	if child == nil {
		return nil, ErrNotLinked
	}

	verification := &models.PendingVerification{
		ID:        uuid.New().String(),
		ChildID:   childID,
		QuestID:   desc.QuestID,
		QuestName: desc.Name,
		QuestType: desc.QuestType,
		Tokens:    desc.Tokens,
		ImagePath: key,
	}

	if desc.VerificationMethod == models.VerifyByAI {
		verdict, err := s.verifier.VerifyImage(ctx, desc.QuestType, desc.Name, image, mimeType)
		if err != nil {
			// No guessing on gateway failures: surface the error so the
			// child can retry, instead of silently filling the parent's
			// review queue
			return nil, err
		}
		verification.AIReason = verdict.Reason

		if verdict.Valid {
			// An AI pass settles on its own. A family link is not
			// required to mint; when one exists the parent is recorded
			// on the row and notified.
			link, err := s.familyRepo.GetActiveLinkForChild(childID)
			if err != nil {
				return nil, fmt.Errorf("failed to look up family link: %w", err)
			}
			if link != nil {
				verification.ParentID = &link.ParentID
			}
			if err := s.verificationRepo.CreatePending(verification); err != nil {
				return nil, err
			}
			description := fmt.Sprintf("%s Quest Complete! (%d%% match)", desc.Name, verdict.Confidence)
			settlement, err := s.verificationRepo.SettleApproved(verification.ID, description, time.Now())
			if err != nil {
				return nil, err
			}
			s.notifier.Settled(verification.ParentID, link, child.Username, settlement)
			return &SubmissionOutcome{
				Status:         SubmissionSettled,
				VerificationID: verification.ID,
				Verdict:        &verdict,
				Settlement:     settlement,
			}, nil
		}

		// Explicit AI rejection falls through to the parent queue, which
		// only exists once a parent is linked
		link, err := s.requireLink(childID)
		if err != nil {
			return nil, err
		}
		verification.ParentID = &link.ParentID
		if err := s.verificationRepo.CreatePending(verification); err != nil {
			return nil, err
		}
		s.notifier.VerificationPending(link, child.Username, verification)
		return &SubmissionOutcome{
			Status:         SubmissionPendingReview,
			VerificationID: verification.ID,
			Verdict:        &verdict,
		}, nil
	}

	link, err := s.requireLink(childID)
	if err != nil {
		return nil, err
	}
	verification.ParentID = &link.ParentID
	verification.AIReason = "Parent verification requested"
	if err := s.verificationRepo.CreatePending(verification); err != nil {
		return nil, err
	}
	s.notifier.VerificationPending(link, child.Username, verification)
	return &SubmissionOutcome{
		Status:         SubmissionPendingReview,
		VerificationID: verification.ID,
	}, nil
}

// requireLink resolves the child's active family link, which every
// review-queue path needs for a reviewer
func (s *SettlementService) requireLink(childID int64) (*models.FamilyLink, error) {
	link, err := s.familyRepo.GetActiveLinkForChild(childID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up family link: %w", err)
	}
	if link == nil {
		return nil, ErrNotLinked
	}
	return link, nil
}

// Review settles a pending verification from the parent queue. Approval
// pays out exactly once; a second review of the same verification fails
// with ErrVerificationNotPending no matter how the first one went.
func (s *SettlementService) Review(ctx context.Context, parentID int64, verificationID string, approve bool) (*repository.SettlementResult, error) {
	verification, err := s.verificationRepo.GetByID(verificationID)
	if err != nil {
		return nil, err
	}
	if verification == nil {
		return nil, ErrVerificationNotFound
	}
	if verification.ParentID == nil || *verification.ParentID != parentID {
		return nil, ErrNotYourReview
	}

	if !approve {
		if err := s.verificationRepo.MarkRejected(verificationID, time.Now()); err != nil {
			return nil, err
		}
		s.notifier.Rejected(verification.ChildID, verification.QuestName)
		return nil, nil
	}

	description := fmt.Sprintf("%s (Parent Approved)", verification.QuestName)
	settlement, err := s.verificationRepo.SettleApproved(verificationID, description, time.Now())
	if err != nil {
		return nil, err
	}

	child, err := s.profileRepo.GetProfileByID(verification.ChildID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up child: %w", err)
	}
	childName := ""
	if child != nil {
		childName = child.Username
	}
	// The reviewing parent is already looking at the app, skip the email
	s.notifier.Settled(&parentID, nil, childName, settlement)
	return settlement, nil
}

// ListPendingForParent returns a parent's open review queue, oldest first
func (s *SettlementService) ListPendingForParent(parentID int64) ([]models.PendingVerification, error) {
	return s.verificationRepo.ListForParent(parentID, models.VerificationPending)
}

// ListForChild returns a child's submission history
func (s *SettlementService) ListForChild(childID int64) ([]models.PendingVerification, error) {
	return s.verificationRepo.ListForChild(childID)
}

// ProofURL returns a short-lived download URL for a verification's proof
// image. Only the child who submitted it or the reviewing parent may ask.
func (s *SettlementService) ProofURL(ctx context.Context, requesterID int64, verificationID string, ttl time.Duration) (string, error) {
	verification, err := s.verificationRepo.GetByID(verificationID)
	if err != nil {
		return "", err
	}
	if verification == nil {
		return "", ErrVerificationNotFound
	}
	if requesterID != verification.ChildID &&
		(verification.ParentID == nil || *verification.ParentID != requesterID) {
		return "", ErrNotYourReview
	}
	return s.proofs.SignedURL(ctx, verification.ImagePath, ttl)
}

// resolveQuest validates the descriptor and, for parent-assigned quests,
// snapshots the stored quest onto it
func (s *SettlementService) resolveQuest(childID int64, desc models.QuestDescriptor) (models.QuestDescriptor, error) {
	if desc.QuestID != nil {
		quest, err := s.questRepo.GetQuestByID(*desc.QuestID)
		if err != nil {
			return desc, err
		}
		if quest == nil {
			return desc, ErrQuestNotFound
		}
		if quest.ChildID != childID {
			return desc, ErrNotYourQuest
		}
		if quest.Status != models.QuestActive {
			return desc, ErrQuestNotActive
		}
		desc.Name = quest.Name
		desc.Tokens = quest.Tokens
		desc.QuestType = quest.QuestType
		desc.VerificationMethod = quest.VerificationMethod
		return desc, nil
	}

	if err := validation.ValidateQuestName(desc.Name); err != nil {
		return desc, err
	}
	if err := validation.ValidateQuestType(desc.QuestType); err != nil {
		return desc, err
	}
	if err := validation.ValidateTokens(desc.Tokens); err != nil {
		return desc, err
	}
	if desc.VerificationMethod != models.VerifyByAI && desc.VerificationMethod != models.VerifyByParent {
		return desc, fmt.Errorf("invalid verification method: %s", desc.VerificationMethod)
	}
	return desc, nil
}

// proofKey builds a unique storage key for a proof image
func proofKey(childID int64, mimeType string) string {
	ext := ".jpg"
	switch mimeType {
	case "image/png":
		ext = ".png"
	case "image/webp":
		ext = ".webp"
	case "image/gif":
		ext = ".gif"
	}
	return fmt.Sprintf("proofs/%d/%s%s", childID, uuid.New().String(), ext)
}
