package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"aether/internal/repository"
	"aether/internal/service"
	"aether/internal/validation"
	"aether/internal/verify"
)

// respondWithJSON writes a JSON response with the given status
func respondWithJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			log.Printf("Failed to encode response: %v", err)
		}
	}
}

// respondWithError writes a JSON error response and logs the cause
func respondWithError(w http.ResponseWriter, status int, userMsg, logMsg string, err error) {
	if err != nil {
		if logMsg == "" {
			logMsg = userMsg
		}
		log.Printf("%s: %v", logMsg, err)
	}
	respondWithJSON(w, status, map[string]string{"error": userMsg})
}

// respondServiceError translates service-layer errors into HTTP responses
func respondServiceError(w http.ResponseWriter, err error) {
	var rateErr *service.RateLimitError
	var validationErr validation.ValidationError
	var coinsErr *service.InsufficientCoinsError
	var limitErr *service.SpendingLimitError

	switch {
	case errors.As(err, &rateErr):
		w.Header().Set("Retry-After", strconv.Itoa(int(rateErr.RetryAfter.Seconds())))
		respondWithError(w, http.StatusTooManyRequests,
			fmt.Sprintf("Too many attempts. Try again in %d seconds.", int(rateErr.RetryAfter.Seconds())), "", nil)
	case errors.As(err, &validationErr):
		respondWithError(w, http.StatusBadRequest, validationErr.Error(), "", nil)
	case errors.Is(err, verify.ErrCreditsExhausted):
		respondWithError(w, http.StatusPaymentRequired, "AI verification credits are exhausted", "verification credits exhausted", err)
	case errors.Is(err, verify.ErrBusy):
		respondWithError(w, http.StatusTooManyRequests, "AI verification is busy, try again shortly", "verification gateway busy", err)
	case errors.Is(err, verify.ErrUnavailable):
		respondWithError(w, http.StatusBadGateway, "AI verification is temporarily unavailable", "verification gateway unavailable", err)
	case errors.Is(err, service.ErrNotLinked):
		respondWithError(w, http.StatusConflict, "You need to join a family first", "", nil)
	case errors.Is(err, service.ErrAlreadyLinked):
		respondWithError(w, http.StatusConflict, "You are already part of a family", "", nil)
	case errors.Is(err, repository.ErrInviteNotClaimable):
		respondWithError(w, http.StatusNotFound, "That invite code is invalid or already used", "", nil)
	case errors.Is(err, service.ErrQuestNotFound), errors.Is(err, service.ErrVerificationNotFound):
		respondWithError(w, http.StatusNotFound, "Not found", "", nil)
	case errors.Is(err, service.ErrQuestNotActive):
		respondWithError(w, http.StatusConflict, "That quest is no longer active", "", nil)
	case errors.Is(err, service.ErrNotYourQuest), errors.Is(err, service.ErrNotYourReview):
		respondWithError(w, http.StatusForbidden, "Forbidden", "", nil)
	case errors.Is(err, repository.ErrVerificationNotPending):
		respondWithError(w, http.StatusConflict, "This submission was already reviewed", "", nil)
	case errors.As(err, &coinsErr):
		respondWithError(w, http.StatusConflict, coinsErr.Error(), "", nil)
	case errors.Is(err, repository.ErrInsufficientBalance):
		respondWithError(w, http.StatusConflict, "Not enough coins", "", nil)
	case errors.As(err, &limitErr):
		respondWithError(w, http.StatusConflict, limitErr.Error(), "", nil)
	case errors.Is(err, service.ErrSpendingLimitExceeded):
		respondWithError(w, http.StatusConflict, "That purchase is over your spending limit", "", nil)
	case errors.Is(err, service.ErrNoSuchLink):
		respondWithError(w, http.StatusNotFound, "No such child in your family", "", nil)
	case errors.Is(err, service.ErrImageTooLarge):
		respondWithError(w, http.StatusRequestEntityTooLarge, "Image is too large (10MB max)", "", nil)
	case errors.Is(err, service.ErrImageMissing):
		respondWithError(w, http.StatusBadRequest, "A proof image is required", "", nil)
	case errors.Is(err, service.ErrEmailTaken):
		respondWithError(w, http.StatusConflict, "That email is already registered", "", nil)
	case errors.Is(err, service.ErrInvalidCredentials):
		respondWithError(w, http.StatusUnauthorized, "Invalid email or password", "", nil)
	default:
		respondWithError(w, http.StatusInternalServerError, "Something went wrong", "unhandled service error", err)
	}
}
