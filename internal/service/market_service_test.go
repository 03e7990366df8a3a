package service

import (
	"errors"
	"testing"

	"aether/internal/models"
	"aether/internal/repository"
)

func TestPurchaseDebitsBalance(t *testing.T) {
	env := newTestEnv(t)
	_, childID := env.seedFamily(t)

	if _, err := env.ledgerRepo.Grant(childID, 100, "Bonus from Parent"); err != nil {
		t.Fatalf("Failed to seed balance: %v", err)
	}

	result, err := env.market.Purchase(childID, "Mystery Chest", 30)
	if err != nil {
		t.Fatalf("Purchase() error = %v", err)
	}
	if result.NewBalance != 70 {
		t.Errorf("expected balance 70, got %d", result.NewBalance)
	}

	transactions, err := env.ledgerRepo.ListTransactionsForUser(childID, 10)
	if err != nil {
		t.Fatalf("Failed to list transactions: %v", err)
	}
	if len(transactions) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(transactions))
	}
	spend := transactions[0]
	if spend.Type != models.TransactionSpend || spend.Amount != 30 {
		t.Errorf("unexpected spend transaction: %+v", spend)
	}
	if spend.Description != "Opened Mystery Chest" {
		t.Errorf("unexpected description: %q", spend.Description)
	}
}

func TestPurchaseInsufficientBalance(t *testing.T) {
	env := newTestEnv(t)
	_, childID := env.seedFamily(t)

	if _, err := env.ledgerRepo.Grant(childID, 10, "Bonus from Parent"); err != nil {
		t.Fatalf("Failed to seed balance: %v", err)
	}

	_, err := env.market.Purchase(childID, "Mystery Chest", 30)
	if !errors.Is(err, repository.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}

	// The failed purchase must leave no trace in the ledger
	transactions, _ := env.ledgerRepo.ListTransactionsForUser(childID, 10)
	if len(transactions) != 1 {
		t.Errorf("expected only the seed grant, got %d transactions", len(transactions))
	}
	child, _ := env.profileRepo.GetProfileByID(childID)
	if child.Balance != 10 {
		t.Errorf("expected balance unchanged at 10, got %d", child.Balance)
	}
}

func TestPurchaseSpendingLimit(t *testing.T) {
	env := newTestEnv(t)
	parentID, childID := env.seedFamily(t)

	if _, err := env.ledgerRepo.Grant(childID, 100, "Bonus from Parent"); err != nil {
		t.Fatalf("Failed to seed balance: %v", err)
	}
	limit := 20
	if err := env.family.UpdateSettings(parentID, childID, &limit, true); err != nil {
		t.Fatalf("Failed to set limit: %v", err)
	}

	if _, err := env.market.Purchase(childID, "Mystery Chest", 30); !errors.Is(err, ErrSpendingLimitExceeded) {
		t.Fatalf("expected ErrSpendingLimitExceeded, got %v", err)
	}

	// At the limit is still allowed
	if _, err := env.market.Purchase(childID, "Small Chest", 20); err != nil {
		t.Fatalf("purchase at limit error = %v", err)
	}
}

func TestGrantBonus(t *testing.T) {
	env := newTestEnv(t)
	parentID, childID := env.seedFamily(t)

	newBalance, err := env.market.GrantBonus(parentID, childID, 15)
	if err != nil {
		t.Fatalf("GrantBonus() error = %v", err)
	}
	if newBalance != 15 {
		t.Errorf("expected balance 15, got %d", newBalance)
	}

	transactions, _ := env.ledgerRepo.ListTransactionsForUser(childID, 10)
	if len(transactions) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(transactions))
	}
	if transactions[0].Description != "Bonus from Parent" {
		t.Errorf("unexpected description: %q", transactions[0].Description)
	}
}

func TestGrantBonusRequiresLink(t *testing.T) {
	env := newTestEnv(t)
	_, childID := env.seedFamily(t)

	stranger, _ := env.profileRepo.CreateProfile("stranger", "x@example.com", "hash", models.RoleParent)
	if _, err := env.market.GrantBonus(stranger.ID, childID, 15); !errors.Is(err, ErrNoSuchLink) {
		t.Fatalf("expected ErrNoSuchLink, got %v", err)
	}
}

func TestGrantBonusRateLimited(t *testing.T) {
	env := newTestEnv(t)
	parentID, childID := env.seedFamily(t)

	for i := 0; i < 5; i++ {
		if _, err := env.market.GrantBonus(parentID, childID, 5); err != nil {
			t.Fatalf("grant %d failed: %v", i+1, err)
		}
	}

	_, err := env.market.GrantBonus(parentID, childID, 5)
	var rateErr *RateLimitError
	if !errors.As(err, &rateErr) {
		t.Fatalf("expected RateLimitError on sixth grant, got %v", err)
	}
}

func TestPurchaseShortfallMessage(t *testing.T) {
	env := newTestEnv(t)
	_, childID := env.seedFamily(t)

	if _, err := env.ledgerRepo.Grant(childID, 40, "Bonus from Parent"); err != nil {
		t.Fatalf("Failed to seed balance: %v", err)
	}

	_, err := env.market.Purchase(childID, "Minecraft", 100)
	var coinsErr *InsufficientCoinsError
	if !errors.As(err, &coinsErr) {
		t.Fatalf("expected InsufficientCoinsError, got %v", err)
	}
	if coinsErr.Shortfall != 60 {
		t.Errorf("expected shortfall 60, got %d", coinsErr.Shortfall)
	}
	if coinsErr.Error() != "You need 60 more coins for Minecraft." {
		t.Errorf("unexpected message: %q", coinsErr.Error())
	}
}

func TestBalanceMatchesLedger(t *testing.T) {
	env := newTestEnv(t)
	parentID, childID := env.seedFamily(t)

	if _, err := env.market.GrantBonus(parentID, childID, 80); err != nil {
		t.Fatalf("GrantBonus() error = %v", err)
	}
	if _, err := env.market.Purchase(childID, "Twitch", 45); err != nil {
		t.Fatalf("Purchase() error = %v", err)
	}

	ledgerBalance, err := env.ledgerRepo.LedgerSum(childID)
	if err != nil {
		t.Fatalf("LedgerSum() error = %v", err)
	}
	child, _ := env.profileRepo.GetProfileByID(childID)
	if ledgerBalance != child.Balance {
		t.Errorf("ledger sum %d does not match stored balance %d", ledgerBalance, child.Balance)
	}
	if child.Balance != 35 {
		t.Errorf("expected balance 35, got %d", child.Balance)
	}
}

func TestBalanceReportsStreakBonus(t *testing.T) {
	env := newTestEnv(t)
	_, childID := env.seedFamily(t)

	balance, bonus, err := env.market.Balance(childID)
	if err != nil {
		t.Fatalf("Balance() error = %v", err)
	}
	if balance != 0 || bonus != 0 {
		t.Errorf("expected zero balance and bonus, got %d/%d", balance, bonus)
	}
}
