package service

import (
	"errors"
	"fmt"

	"aether/internal/models"
	"aether/internal/repository"
	"aether/internal/security"
	"aether/internal/validation"
)

var (
	// ErrSpendingLimitExceeded means the purchase is above the cap the
	// parent set for this child
	ErrSpendingLimitExceeded = errors.New("purchase exceeds spending limit")
)

// InsufficientCoinsError reports how far short the child's balance is
type InsufficientCoinsError struct {
	ItemName  string
	Shortfall int
}

func (e *InsufficientCoinsError) Error() string {
	return fmt.Sprintf("You need %d more coins for %s.", e.Shortfall, e.ItemName)
}

func (e *InsufficientCoinsError) Unwrap() error {
	return repository.ErrInsufficientBalance
}

// SpendingLimitError reports the cost against the parent's per-purchase cap
type SpendingLimitError struct {
	Cost  int
	Limit int
}

func (e *SpendingLimitError) Error() string {
	return fmt.Sprintf("This costs %d coins but your limit is %d coins per purchase.", e.Cost, e.Limit)
}

func (e *SpendingLimitError) Unwrap() error {
	return ErrSpendingLimitExceeded
}


// PurchaseResult is the outcome of a successful purchase
type PurchaseResult struct {
	ItemName   string `json:"item_name"`
	Cost       int    `json:"cost"`
	NewBalance int    `json:"new_balance"`
}

// MarketService handles coin spending and parent bonus grants
type MarketService struct {
	ledgerRepo  *repository.LedgerRepository
	familyRepo  *repository.FamilyRepository
	profileRepo *repository.ProfileRepository
	limiter     *security.Limiter
	notifier    *Notifier
}

// NewMarketService creates a new market service
func NewMarketService(ledgerRepo *repository.LedgerRepository, familyRepo *repository.FamilyRepository, profileRepo *repository.ProfileRepository, limiter *security.Limiter, notifier *Notifier) *MarketService {
	return &MarketService{
		ledgerRepo:  ledgerRepo,
		familyRepo:  familyRepo,
		profileRepo: profileRepo,
		limiter:     limiter,
		notifier:    notifier,
	}
}

// Purchase spends a child's coins on an item. The balance check happens
// inside the ledger so concurrent purchases cannot overdraw, and the
// parent's spending limit caps any single purchase.
func (s *MarketService) Purchase(childID int64, itemName string, cost int) (*PurchaseResult, error) {
	if err := validation.ValidateAmount(cost); err != nil {
		return nil, err
	}
	if itemName == "" {
		return nil, validation.ValidationError{Field: "item_name", Message: "item name is required"}
	}

	link, err := s.familyRepo.GetActiveLinkForChild(childID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up family link: %w", err)
	}
	if link != nil && link.SpendingLimit != nil && cost > *link.SpendingLimit {
		return nil, &SpendingLimitError{Cost: cost, Limit: *link.SpendingLimit}
	}

	newBalance, err := s.ledgerRepo.Spend(childID, cost, fmt.Sprintf("Opened %s", itemName))
	if err != nil {
		if errors.Is(err, repository.ErrInsufficientBalance) {
			if profile, perr := s.profileRepo.GetProfileByID(childID); perr == nil && profile != nil {
				return nil, &InsufficientCoinsError{ItemName: itemName, Shortfall: cost - profile.Balance}
			}
		}
		return nil, err
	}

	s.notifier.BalanceUpdated(childID, newBalance)
	return &PurchaseResult{
		ItemName:   itemName,
		Cost:       cost,
		NewBalance: newBalance,
	}, nil
}

// GrantBonus credits coins to a linked child at a parent's request
func (s *MarketService) GrantBonus(parentID, childID int64, amount int) (int, error) {
	result, err := s.limiter.Check(parentID, security.ActionBonusGrant)
	if err != nil {
		return 0, fmt.Errorf("failed to check rate limit: %w", err)
	}
	if !result.Allowed {
		return 0, &RateLimitError{RetryAfter: result.RetryAfter}
	}

	if err := validation.ValidateAmount(amount); err != nil {
		return 0, err
	}
	if err := validation.ValidateTokens(amount); err != nil {
		return 0, err
	}

	link, err := s.familyRepo.GetLinkByParentAndChild(parentID, childID)
	if err != nil {
		return 0, fmt.Errorf("failed to look up family link: %w", err)
	}
	if link == nil {
		return 0, ErrNoSuchLink
	}

	newBalance, err := s.ledgerRepo.Grant(childID, amount, "Bonus from Parent")
	if err != nil {
		return 0, err
	}

	s.notifier.BonusGranted(childID, amount, newBalance)
	return newBalance, nil
}

// Balance returns a child's current coin balance and streak bonus
func (s *MarketService) Balance(childID int64) (balance, streakBonus int, err error) {
	profile, err := s.profileRepo.GetProfileByID(childID)
	if err != nil {
		return 0, 0, err
	}
	if profile == nil {
		return 0, 0, errors.New("profile not found")
	}
	return profile.Balance, models.StreakBonus(profile.CurrentStreak), nil
}

// History returns a user's recent transactions
func (s *MarketService) History(userID int64, limit int) ([]models.Transaction, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.ledgerRepo.ListTransactionsForUser(userID, limit)
}
