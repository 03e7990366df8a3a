package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"aether/internal/config"
	"aether/internal/database"
	"aether/internal/handlers"
	"aether/internal/realtime"
	"aether/internal/repository"
	"aether/internal/security"
	"aether/internal/service"
	"aether/internal/storage"
	"aether/internal/verify"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize database with config (supports sqlite, postgres, mysql)
	db, err := database.InitializeWithConfig(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	log.Printf("Database connection established (type: %s)", cfg.DatabaseType)

	// Run migrations
	if err := db.RunMigrations(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	log.Println("Migrations completed successfully")

	// Proof image storage
	proofStore, err := storage.NewFromConfig(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Failed to initialize proof storage: %v", err)
	}

	// AI verification gateway
	verifier, err := verify.NewClient(verify.Config{
		BaseURL: cfg.VerifierURL,
		APIKey:  cfg.VerifierAPIKey,
		Model:   cfg.VerifierModel,
		Timeout: cfg.VerifierTimeout,
	})
	if err != nil {
		log.Fatalf("Failed to initialize verification client: %v", err)
	}

	// Email notifications, disabled when SES_FROM_EMAIL is unset
	emailService, err := service.NewEmailService(cfg.AWSRegion, cfg.SESFromEmail, cfg.AppBaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize email service: %v", err)
	}
	if emailService.IsEnabled() {
		log.Printf("Email notifications enabled (from: %s)", cfg.SESFromEmail)
	} else {
		log.Println("Email notifications disabled (SES_FROM_EMAIL not set)")
	}

	// Initialize repositories
	profileRepo := repository.NewProfileRepository(db)
	questRepo := repository.NewQuestRepository(db)
	verificationRepo := repository.NewVerificationRepository(db)
	familyRepo := repository.NewFamilyRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	rateLimitRepo := repository.NewRateLimitRepository(db)

	// Initialize services
	hub := realtime.NewHub()
	notifier := service.NewNotifier(hub, emailService)
	limiter := security.NewLimiter(rateLimitRepo)
	ipLimiter := security.NewIPLimiter(20, time.Minute)

	authService := service.NewAuthService(profileRepo, cfg.SessionDuration)
	questService := service.NewQuestService(questRepo, familyRepo)
	familyService := service.NewFamilyService(familyRepo, profileRepo, limiter, notifier)
	marketService := service.NewMarketService(ledgerRepo, familyRepo, profileRepo, limiter, notifier)
	settlementService := service.NewSettlementService(
		verificationRepo, questRepo, profileRepo, familyRepo,
		proofStore, verifier, limiter, notifier, cfg.UploadMaxSize,
	)

	// Initialize handlers
	middleware := handlers.NewMiddleware(authService, ipLimiter)
	authHandler := handlers.NewAuthHandler(authService)
	childHandler := handlers.NewChildHandler(settlementService, questService, familyService, marketService, cfg.UploadMaxSize, cfg.ProofURLTTL)
	parentHandler := handlers.NewParentHandler(settlementService, questService, familyService, marketService)
	eventsHandler := handlers.NewEventsHandler(hub)

	// Setup routes
	mux := http.NewServeMux()

	// Public routes
	mux.HandleFunc("POST /api/auth/register", middleware.LimitByIP(authHandler.Register))
	mux.HandleFunc("POST /api/auth/login", middleware.LimitByIP(authHandler.Login))
	mux.HandleFunc("POST /api/auth/logout", authHandler.Logout)
	mux.HandleFunc("GET /api/auth/me", middleware.RequireAuth(authHandler.Me))

	// Child routes
	mux.HandleFunc("POST /api/quests/submit", middleware.RequireChild(childHandler.SubmitProof))
	mux.HandleFunc("GET /api/quests", middleware.RequireChild(childHandler.ListQuests))
	mux.HandleFunc("GET /api/verifications/mine", middleware.RequireChild(childHandler.ListSubmissions))
	mux.HandleFunc("POST /api/family/claim", middleware.RequireChild(childHandler.ClaimInvite))
	mux.HandleFunc("POST /api/market/purchase", middleware.RequireChild(childHandler.Purchase))
	mux.HandleFunc("GET /api/balance", middleware.RequireChild(childHandler.Balance))
	mux.HandleFunc("GET /api/transactions", middleware.RequireAuth(childHandler.History))

	// Shared routes
	mux.HandleFunc("GET /api/verifications/{id}/proof", middleware.RequireAuth(childHandler.ProofURL))
	mux.HandleFunc("GET /api/events", middleware.RequireAuth(eventsHandler.Stream))

	// Parent routes
	mux.HandleFunc("POST /api/quests", middleware.RequireParent(parentHandler.CreateQuest))
	mux.HandleFunc("GET /api/parent/quests", middleware.RequireParent(parentHandler.ListQuests))
	mux.HandleFunc("DELETE /api/quests/{id}", middleware.RequireParent(parentHandler.CancelQuest))
	mux.HandleFunc("GET /api/verifications/pending", middleware.RequireParent(parentHandler.ListPending))
	mux.HandleFunc("POST /api/verifications/{id}/review", middleware.RequireParent(parentHandler.Review))
	mux.HandleFunc("POST /api/family/invites", middleware.RequireParent(parentHandler.CreateInvite))
	mux.HandleFunc("GET /api/family/invites", middleware.RequireParent(parentHandler.ListInvites))
	mux.HandleFunc("GET /api/family/children", middleware.RequireParent(parentHandler.ListChildren))
	mux.HandleFunc("PUT /api/family/children/{childID}/settings", middleware.RequireParent(parentHandler.UpdateSettings))
	mux.HandleFunc("POST /api/family/children/{childID}/bonus", middleware.RequireParent(parentHandler.GrantBonus))

	// Signed proof downloads, local storage backend only
	if localStore, ok := proofStore.(*storage.LocalStore); ok {
		proofsHandler := handlers.NewProofsHandler(localStore)
		mux.HandleFunc("GET /proofs/{token}", proofsHandler.Serve)
	}

	// Wrap with logging middleware
	handler := handlers.Logging(mux)

	// Start server
	addr := ":" + cfg.ServerPort
	server := &http.Server{
		Addr:        addr,
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: the event stream stays open indefinitely
		IdleTimeout: 60 * time.Second,
	}

	// Background cleanup of expired sessions and stale rate limit rows
	stopCleanup := make(chan struct{})
	go runCleanup(profileRepo, limiter, ipLimiter, stopCleanup)

	// Graceful shutdown
	go func() {
		log.Printf("Server starting on http://localhost%s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")
	close(stopCleanup)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}

// runCleanup sweeps expired sessions and old rate limit attempts until
// stop is closed
func runCleanup(profileRepo *repository.ProfileRepository, limiter *security.Limiter, ipLimiter *security.IPLimiter, stop <-chan struct{}) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if deleted, err := profileRepo.DeleteExpiredSessions(); err != nil {
				log.Printf("Session cleanup failed: %v", err)
			} else if deleted > 0 {
				log.Printf("Cleaned up %d expired sessions", deleted)
			}
			if deleted, err := limiter.Cleanup(); err != nil {
				log.Printf("Rate limit cleanup failed: %v", err)
			} else if deleted > 0 {
				log.Printf("Cleaned up %d old rate limit attempts", deleted)
			}
			ipLimiter.Sweep()
		}
	}
}
