package service

import (
	"errors"
	"fmt"

	"aether/internal/models"
	"aether/internal/repository"
	"aether/internal/validation"
)

// QuestService handles parent-assigned quest definitions
type QuestService struct {
	questRepo  *repository.QuestRepository
	familyRepo *repository.FamilyRepository
}

// NewQuestService creates a new quest service
func NewQuestService(questRepo *repository.QuestRepository, familyRepo *repository.FamilyRepository) *QuestService {
	return &QuestService{
		questRepo:  questRepo,
		familyRepo: familyRepo,
	}
}

// CreateQuest lets a parent assign a quest to one of their linked children
func (s *QuestService) CreateQuest(parentID, childID int64, name, description string, tokens int, questType, verificationMethod string) (*models.Quest, error) {
	if err := validation.ValidateQuestName(name); err != nil {
		return nil, err
	}
	if err := validation.ValidateQuestType(questType); err != nil {
		return nil, err
	}
	if err := validation.ValidateTokens(tokens); err != nil {
		return nil, err
	}
	if verificationMethod != models.VerifyByAI && verificationMethod != models.VerifyByParent {
		return nil, fmt.Errorf("invalid verification method: %s", verificationMethod)
	}

	link, err := s.familyRepo.GetLinkByParentAndChild(parentID, childID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up family link: %w", err)
	}
	if link == nil {
		return nil, ErrNoSuchLink
	}

	return s.questRepo.CreateQuest(&models.Quest{
		ParentID:           parentID,
		ChildID:            childID,
		Name:               name,
		Description:        description,
		Tokens:             tokens,
		QuestType:          questType,
		VerificationMethod: verificationMethod,
	})
}

// ListForChild returns a child's quests, optionally filtered by status
func (s *QuestService) ListForChild(childID int64, status string) ([]models.Quest, error) {
	if status != "" && status != models.QuestActive && status != models.QuestCompleted && status != models.QuestCancelled {
		return nil, fmt.Errorf("invalid quest status: %s", status)
	}
	return s.questRepo.ListQuestsForChild(childID, status)
}

// ListForParent returns all quests a parent has created
func (s *QuestService) ListForParent(parentID int64) ([]models.Quest, error) {
	return s.questRepo.ListQuestsForParent(parentID)
}

// CancelQuest withdraws an active quest. Completed quests stay completed.
func (s *QuestService) CancelQuest(parentID, questID int64) error {
	cancelled, err := s.questRepo.CancelQuest(questID, parentID)
	if err != nil {
		return err
	}
	if !cancelled {
		return errors.New("quest is not active or not yours")
	}
	return nil
}
