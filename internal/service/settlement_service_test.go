package service

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"aether/internal/database"
	"aether/internal/models"
	"aether/internal/realtime"
	"aether/internal/repository"
	"aether/internal/security"
	"aether/internal/storage"
	"aether/internal/verify"
)

// fakeVerifier returns a canned verdict or error
type fakeVerifier struct {
	verdict verify.Verdict
	err     error
	calls   int
}

func (f *fakeVerifier) VerifyImage(ctx context.Context, questType, questName string, image []byte, mimeType string) (verify.Verdict, error) {
	f.calls++
	return f.verdict, f.err
}

type testEnv struct {
	db          *database.DB
	profileRepo *repository.ProfileRepository
	ledgerRepo  *repository.LedgerRepository
	questRepo   *repository.QuestRepository
	familyRepo  *repository.FamilyRepository
	verifRepo   *repository.VerificationRepository
	verifier    *fakeVerifier
	settlement  *SettlementService
	family      *FamilyService
	market      *MarketService
	notifier    *Notifier
	hub         *realtime.Hub
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping database-backed test in short mode")
	}

	db, err := database.Initialize(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.RunMigrations(); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	profileRepo := repository.NewProfileRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	questRepo := repository.NewQuestRepository(db)
	familyRepo := repository.NewFamilyRepository(db)
	verifRepo := repository.NewVerificationRepository(db)
	limiter := security.NewLimiter(repository.NewRateLimitRepository(db))

	hub := realtime.NewHub()
	emails, err := NewEmailService("", "", "")
	if err != nil {
		t.Fatalf("Failed to create email service: %v", err)
	}
	notifier := NewNotifier(hub, emails)

	proofs, err := storage.NewLocalStore(t.TempDir(), "http://localhost:8080", "test-secret")
	if err != nil {
		t.Fatalf("Failed to create proof store: %v", err)
	}

	verifier := &fakeVerifier{}
	settlement := NewSettlementService(verifRepo, questRepo, profileRepo, familyRepo, proofs, verifier, limiter, notifier, 10*1024*1024)
	family := NewFamilyService(familyRepo, profileRepo, limiter, notifier)
	market := NewMarketService(ledgerRepo, familyRepo, profileRepo, limiter, notifier)

	return &testEnv{
		db:          db,
		profileRepo: profileRepo,
		ledgerRepo:  ledgerRepo,
		questRepo:   questRepo,
		familyRepo:  familyRepo,
		verifRepo:   verifRepo,
		verifier:    verifier,
		settlement:  settlement,
		family:      family,
		market:      market,
		notifier:    notifier,
		hub:         hub,
	}
}

// seedFamily creates a linked parent and child and returns their IDs
func (env *testEnv) seedFamily(t *testing.T) (parentID, childID int64) {
	t.Helper()

	parent, err := env.profileRepo.CreateProfile("dad", "dad@example.com", "hash", models.RoleParent)
	if err != nil {
		t.Fatalf("Failed to create parent: %v", err)
	}
	child, err := env.profileRepo.CreateProfile("emma", "emma@example.com", "hash", models.RoleChild)
	if err != nil {
		t.Fatalf("Failed to create child: %v", err)
	}

	invite, err := env.family.CreateInvite(parent.ID)
	if err != nil {
		t.Fatalf("Failed to create invite: %v", err)
	}
	if _, err := env.family.ClaimInvite(child.ID, invite.InviteCode); err != nil {
		t.Fatalf("Failed to claim invite: %v", err)
	}
	return parent.ID, child.ID
}

func choresDescriptor() models.QuestDescriptor {
	return models.QuestDescriptor{
		Name:               "Clean your room",
		Tokens:             25,
		QuestType:          models.QuestTypeChores,
		VerificationMethod: models.VerifyByAI,
	}
}

func TestSubmitProofAIApprovedSettlesImmediately(t *testing.T) {
	env := newTestEnv(t)
	_, childID := env.seedFamily(t)
	env.verifier.verdict = verify.Verdict{Valid: true, Confidence: 85, Reason: "Room looks tidy"}

	outcome, err := env.settlement.SubmitProof(context.Background(), childID, choresDescriptor(), []byte("photo"), "image/jpeg")
	if err != nil {
		t.Fatalf("SubmitProof() error = %v", err)
	}
	if outcome.Status != SubmissionSettled {
		t.Fatalf("expected settled, got %s", outcome.Status)
	}
	if outcome.Settlement == nil {
		t.Fatal("expected settlement result")
	}
	if outcome.Settlement.NewBalance != 25 {
		t.Errorf("expected balance 25, got %d", outcome.Settlement.NewBalance)
	}
	if outcome.Settlement.CurrentStreak != 1 {
		t.Errorf("expected streak 1, got %d", outcome.Settlement.CurrentStreak)
	}
	if outcome.Settlement.StreakBonus != 5 {
		t.Errorf("expected streak bonus 5, got %d", outcome.Settlement.StreakBonus)
	}

	child, err := env.profileRepo.GetProfileByID(childID)
	if err != nil {
		t.Fatalf("Failed to load child: %v", err)
	}
	if child.Balance != 25 {
		t.Errorf("expected stored balance 25, got %d", child.Balance)
	}

	transactions, err := env.ledgerRepo.ListTransactionsForUser(childID, 10)
	if err != nil {
		t.Fatalf("Failed to list transactions: %v", err)
	}
	if len(transactions) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(transactions))
	}
	if transactions[0].Description != "Clean your room Quest Complete! (85% match)" {
		t.Errorf("unexpected description: %q", transactions[0].Description)
	}
	if transactions[0].Type != models.TransactionEarn || transactions[0].Amount != 25 {
		t.Errorf("unexpected transaction: %+v", transactions[0])
	}
}

func TestSubmitProofAIRejectedQueuesForParent(t *testing.T) {
	env := newTestEnv(t)
	parentID, childID := env.seedFamily(t)
	env.verifier.verdict = verify.Verdict{Valid: false, Confidence: 30, Reason: "No tidy room visible"}

	outcome, err := env.settlement.SubmitProof(context.Background(), childID, choresDescriptor(), []byte("photo"), "image/jpeg")
	if err != nil {
		t.Fatalf("SubmitProof() error = %v", err)
	}
	if outcome.Status != SubmissionPendingReview {
		t.Fatalf("expected pending_review, got %s", outcome.Status)
	}

	child, _ := env.profileRepo.GetProfileByID(childID)
	if child.Balance != 0 {
		t.Errorf("expected no payout before review, balance = %d", child.Balance)
	}

	queue, err := env.settlement.ListPendingForParent(parentID)
	if err != nil {
		t.Fatalf("Failed to list queue: %v", err)
	}
	if len(queue) != 1 {
		t.Fatalf("expected 1 queued verification, got %d", len(queue))
	}
	if queue[0].AIReason != "No tidy room visible" {
		t.Errorf("expected AI reason on queued row, got %q", queue[0].AIReason)
	}
}

func TestSubmitProofParentVerifiedSkipsAI(t *testing.T) {
	env := newTestEnv(t)
	parentID, childID := env.seedFamily(t)

	desc := choresDescriptor()
	desc.VerificationMethod = models.VerifyByParent

	outcome, err := env.settlement.SubmitProof(context.Background(), childID, desc, []byte("photo"), "image/png")
	if err != nil {
		t.Fatalf("SubmitProof() error = %v", err)
	}
	if outcome.Status != SubmissionPendingReview {
		t.Fatalf("expected pending_review, got %s", outcome.Status)
	}
	if env.verifier.calls != 0 {
		t.Errorf("expected no verifier calls, got %d", env.verifier.calls)
	}

	queue, _ := env.settlement.ListPendingForParent(parentID)
	if len(queue) != 1 {
		t.Fatalf("expected 1 queued verification, got %d", len(queue))
	}
}

func TestReviewApprovePaysOutExactlyOnce(t *testing.T) {
	env := newTestEnv(t)
	parentID, childID := env.seedFamily(t)

	desc := choresDescriptor()
	desc.VerificationMethod = models.VerifyByParent
	outcome, err := env.settlement.SubmitProof(context.Background(), childID, desc, []byte("photo"), "image/jpeg")
	if err != nil {
		t.Fatalf("SubmitProof() error = %v", err)
	}

	settlement, err := env.settlement.Review(context.Background(), parentID, outcome.VerificationID, true)
	if err != nil {
		t.Fatalf("Review() error = %v", err)
	}
	if settlement.NewBalance != 25 {
		t.Errorf("expected balance 25, got %d", settlement.NewBalance)
	}

	// Second approval must not double-mint
	if _, err := env.settlement.Review(context.Background(), parentID, outcome.VerificationID, true); !errors.Is(err, repository.ErrVerificationNotPending) {
		t.Fatalf("expected ErrVerificationNotPending on second review, got %v", err)
	}

	child, _ := env.profileRepo.GetProfileByID(childID)
	if child.Balance != 25 {
		t.Errorf("expected balance still 25 after duplicate review, got %d", child.Balance)
	}
	transactions, _ := env.ledgerRepo.ListTransactionsForUser(childID, 10)
	if len(transactions) != 1 {
		t.Errorf("expected exactly 1 transaction, got %d", len(transactions))
	}

	queue, _ := env.settlement.ListPendingForParent(parentID)
	if len(queue) != 0 {
		t.Errorf("expected empty queue after review, got %d", len(queue))
	}

	if transactions[0].Description != "Clean your room (Parent Approved)" {
		t.Errorf("unexpected description: %q", transactions[0].Description)
	}
}

func TestReviewRejectMintsNothing(t *testing.T) {
	env := newTestEnv(t)
	parentID, childID := env.seedFamily(t)

	desc := choresDescriptor()
	desc.VerificationMethod = models.VerifyByParent
	outcome, err := env.settlement.SubmitProof(context.Background(), childID, desc, []byte("photo"), "image/jpeg")
	if err != nil {
		t.Fatalf("SubmitProof() error = %v", err)
	}

	if _, err := env.settlement.Review(context.Background(), parentID, outcome.VerificationID, false); err != nil {
		t.Fatalf("Review() error = %v", err)
	}

	child, _ := env.profileRepo.GetProfileByID(childID)
	if child.Balance != 0 {
		t.Errorf("expected balance 0 after rejection, got %d", child.Balance)
	}

	// A rejection cannot be flipped into a payout later
	if _, err := env.settlement.Review(context.Background(), parentID, outcome.VerificationID, true); !errors.Is(err, repository.ErrVerificationNotPending) {
		t.Fatalf("expected ErrVerificationNotPending, got %v", err)
	}
}

func TestReviewWrongParentDenied(t *testing.T) {
	env := newTestEnv(t)
	_, childID := env.seedFamily(t)

	desc := choresDescriptor()
	desc.VerificationMethod = models.VerifyByParent
	outcome, err := env.settlement.SubmitProof(context.Background(), childID, desc, []byte("photo"), "image/jpeg")
	if err != nil {
		t.Fatalf("SubmitProof() error = %v", err)
	}

	stranger, err := env.profileRepo.CreateProfile("stranger", "other@example.com", "hash", models.RoleParent)
	if err != nil {
		t.Fatalf("Failed to create profile: %v", err)
	}

	if _, err := env.settlement.Review(context.Background(), stranger.ID, outcome.VerificationID, true); !errors.Is(err, ErrNotYourReview) {
		t.Fatalf("expected ErrNotYourReview, got %v", err)
	}
}

func TestSubmitProofVerifierDownFailsSubmission(t *testing.T) {
	env := newTestEnv(t)
	parentID, childID := env.seedFamily(t)
	env.verifier.err = verify.ErrUnavailable

	_, err := env.settlement.SubmitProof(context.Background(), childID, choresDescriptor(), []byte("photo"), "image/jpeg")
	if !errors.Is(err, verify.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}

	// An outage must not leak half-finished rows into the review queue
	queue, _ := env.settlement.ListPendingForParent(parentID)
	if len(queue) != 0 {
		t.Errorf("expected empty queue after gateway failure, got %d", len(queue))
	}
}

func TestSubmitProofUnlinkedChildNeedsReviewer(t *testing.T) {
	env := newTestEnv(t)

	child, err := env.profileRepo.CreateProfile("solo", "solo@example.com", "hash", models.RoleChild)
	if err != nil {
		t.Fatalf("Failed to create child: %v", err)
	}

	// An AI fail needs a parent queue, which an unlinked child lacks
	env.verifier.verdict = verify.Verdict{Valid: false, Confidence: 20, Reason: "nope"}
	_, err = env.settlement.SubmitProof(context.Background(), child.ID, choresDescriptor(), []byte("photo"), "image/jpeg")
	if !errors.Is(err, ErrNotLinked) {
		t.Fatalf("expected ErrNotLinked on AI fail, got %v", err)
	}

	// Same for a quest the parent must verify by hand
	desc := choresDescriptor()
	desc.VerificationMethod = models.VerifyByParent
	_, err = env.settlement.SubmitProof(context.Background(), child.ID, desc, []byte("photo"), "image/jpeg")
	if !errors.Is(err, ErrNotLinked) {
		t.Fatalf("expected ErrNotLinked on parent-verified quest, got %v", err)
	}
}

func TestSubmitProofUnlinkedChildAIPassSettles(t *testing.T) {
	env := newTestEnv(t)

	child, err := env.profileRepo.CreateProfile("solo", "solo@example.com", "hash", models.RoleChild)
	if err != nil {
		t.Fatalf("Failed to create child: %v", err)
	}
	env.verifier.verdict = verify.Verdict{Valid: true, Confidence: 80, Reason: "Room looks tidy"}

	outcome, err := env.settlement.SubmitProof(context.Background(), child.ID, choresDescriptor(), []byte("photo"), "image/jpeg")
	if err != nil {
		t.Fatalf("SubmitProof() error = %v", err)
	}
	if outcome.Status != SubmissionSettled {
		t.Fatalf("expected settled, got %s", outcome.Status)
	}
	if outcome.Settlement.NewBalance != 25 {
		t.Errorf("expected balance 25, got %d", outcome.Settlement.NewBalance)
	}

	stored, err := env.verifRepo.GetByID(outcome.VerificationID)
	if err != nil {
		t.Fatalf("Failed to load verification: %v", err)
	}
	if stored.ParentID != nil {
		t.Errorf("expected no parent on the settled row, got %d", *stored.ParentID)
	}
	if stored.Status != models.VerificationApproved {
		t.Errorf("expected approved status, got %s", stored.Status)
	}

	// The child can still fetch their own proof
	if _, err := env.settlement.ProofURL(context.Background(), child.ID, outcome.VerificationID, time.Minute); err != nil {
		t.Errorf("ProofURL() error = %v", err)
	}
}

func TestSubmitProofRateLimited(t *testing.T) {
	env := newTestEnv(t)
	_, childID := env.seedFamily(t)
	env.verifier.verdict = verify.Verdict{Valid: true, Confidence: 90, Reason: "ok"}

	for i := 0; i < 5; i++ {
		if _, err := env.settlement.SubmitProof(context.Background(), childID, choresDescriptor(), []byte("photo"), "image/jpeg"); err != nil {
			t.Fatalf("submission %d failed: %v", i+1, err)
		}
	}

	_, err := env.settlement.SubmitProof(context.Background(), childID, choresDescriptor(), []byte("photo"), "image/jpeg")
	var rateErr *RateLimitError
	if !errors.As(err, &rateErr) {
		t.Fatalf("expected RateLimitError, got %v", err)
	}
	if rateErr.RetryAfter <= 0 {
		t.Errorf("expected positive RetryAfter, got %v", rateErr.RetryAfter)
	}
}

func TestSubmitProofQuestSnapshot(t *testing.T) {
	env := newTestEnv(t)
	parentID, childID := env.seedFamily(t)
	env.verifier.verdict = verify.Verdict{Valid: true, Confidence: 95, Reason: "ok"}

	quest, err := env.questRepo.CreateQuest(&models.Quest{
		ParentID:           parentID,
		ChildID:            childID,
		Name:               "Practice piano",
		Tokens:             40,
		QuestType:          models.QuestTypeMusic,
		VerificationMethod: models.VerifyByAI,
	})
	if err != nil {
		t.Fatalf("Failed to create quest: %v", err)
	}

	// The descriptor lies about the reward; the stored quest must win
	desc := models.QuestDescriptor{
		QuestID: &quest.ID,
		Name:    "Fake name",
		Tokens:  9999,
	}
	outcome, err := env.settlement.SubmitProof(context.Background(), childID, desc, []byte("photo"), "image/jpeg")
	if err != nil {
		t.Fatalf("SubmitProof() error = %v", err)
	}
	if outcome.Settlement.Tokens != 40 {
		t.Errorf("expected snapshot reward 40, got %d", outcome.Settlement.Tokens)
	}
	if outcome.Settlement.QuestName != "Practice piano" {
		t.Errorf("expected stored quest name, got %q", outcome.Settlement.QuestName)
	}

	stored, _ := env.questRepo.GetQuestByID(quest.ID)
	if stored.Status != models.QuestCompleted {
		t.Errorf("expected quest completed, got %s", stored.Status)
	}

	// A settled quest cannot be submitted again
	if _, err := env.settlement.SubmitProof(context.Background(), childID, desc, []byte("photo"), "image/jpeg"); !errors.Is(err, ErrQuestNotActive) {
		t.Fatalf("expected ErrQuestNotActive, got %v", err)
	}
}

func TestSubmitProofImageLimits(t *testing.T) {
	env := newTestEnv(t)
	_, childID := env.seedFamily(t)

	if _, err := env.settlement.SubmitProof(context.Background(), childID, choresDescriptor(), nil, "image/jpeg"); !errors.Is(err, ErrImageMissing) {
		t.Errorf("expected ErrImageMissing, got %v", err)
	}

	huge := make([]byte, 10*1024*1024+1)
	if _, err := env.settlement.SubmitProof(context.Background(), childID, choresDescriptor(), huge, "image/jpeg"); !errors.Is(err, ErrImageTooLarge) {
		t.Errorf("expected ErrImageTooLarge, got %v", err)
	}
}

func TestProofURLAuthorization(t *testing.T) {
	env := newTestEnv(t)
	parentID, childID := env.seedFamily(t)

	desc := choresDescriptor()
	desc.VerificationMethod = models.VerifyByParent
	outcome, err := env.settlement.SubmitProof(context.Background(), childID, desc, []byte("photo"), "image/jpeg")
	if err != nil {
		t.Fatalf("SubmitProof() error = %v", err)
	}

	for _, id := range []int64{childID, parentID} {
		url, err := env.settlement.ProofURL(context.Background(), id, outcome.VerificationID, time.Minute)
		if err != nil {
			t.Errorf("ProofURL() for user %d error = %v", id, err)
		}
		if url == "" {
			t.Errorf("expected URL for user %d", id)
		}
	}

	stranger, _ := env.profileRepo.CreateProfile("stranger", "x@example.com", "hash", models.RoleParent)
	if _, err := env.settlement.ProofURL(context.Background(), stranger.ID, outcome.VerificationID, time.Minute); !errors.Is(err, ErrNotYourReview) {
		t.Errorf("expected ErrNotYourReview for stranger, got %v", err)
	}
}
