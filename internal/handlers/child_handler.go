package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"aether/internal/models"
	"aether/internal/service"
)

// ChildHandler handles the child-facing API: proof submission, quests,
// invite claims and the market.
type ChildHandler struct {
	settlementService *service.SettlementService
	questService      *service.QuestService
	familyService     *service.FamilyService
	marketService     *service.MarketService
	maxUploadSize     int64
	proofURLTTL       time.Duration
}

// NewChildHandler creates a new child handler
func NewChildHandler(
	settlementService *service.SettlementService,
	questService *service.QuestService,
	familyService *service.FamilyService,
	marketService *service.MarketService,
	maxUploadSize int64,
	proofURLTTL time.Duration,
) *ChildHandler {
	return &ChildHandler{
		settlementService: settlementService,
		questService:      questService,
		familyService:     familyService,
		marketService:     marketService,
		maxUploadSize:     maxUploadSize,
		proofURLTTL:       proofURLTTL,
	}
}

// SubmitProof handles POST /api/quests/submit. The request is multipart:
// an "image" file plus either a quest_id field or the name/tokens/
// quest_type/verification_method of a built-in quest.
func (h *ChildHandler) SubmitProof(w http.ResponseWriter, r *http.Request) {
	profile := ProfileFromContext(r.Context())

	// Leave headroom for the form fields around the image
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize+512*1024)
	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		respondWithError(w, http.StatusRequestEntityTooLarge, "Image is too large (10MB max)", "", nil)
		return
	}

	var desc models.QuestDescriptor
	if raw := r.FormValue("quest_id"); raw != "" {
		questID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid quest_id", "", nil)
			return
		}
		desc.QuestID = &questID
	} else {
		tokens, _ := strconv.Atoi(r.FormValue("tokens"))
		desc.Name = r.FormValue("name")
		desc.Tokens = tokens
		desc.QuestType = r.FormValue("quest_type")
		desc.VerificationMethod = r.FormValue("verification_method")
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "A proof image is required", "", nil)
		return
	}
	defer file.Close()

	image, err := io.ReadAll(file)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Failed to read image", "failed to read upload", err)
		return
	}
	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	outcome, err := h.settlementService.SubmitProof(r.Context(), profile.ID, desc, image, mimeType)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, outcome)
}

// ListQuests handles GET /api/quests with an optional ?status= filter
func (h *ChildHandler) ListQuests(w http.ResponseWriter, r *http.Request) {
	profile := ProfileFromContext(r.Context())

	quests, err := h.questService.ListForChild(profile.ID, r.URL.Query().Get("status"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid status filter", "", nil)
		return
	}
	if quests == nil {
		quests = []models.Quest{}
	}
	respondWithJSON(w, http.StatusOK, quests)
}

// ListSubmissions handles GET /api/verifications/mine
func (h *ChildHandler) ListSubmissions(w http.ResponseWriter, r *http.Request) {
	profile := ProfileFromContext(r.Context())

	submissions, err := h.settlementService.ListForChild(profile.ID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to load submissions", "failed to list verifications", err)
		return
	}
	if submissions == nil {
		submissions = []models.PendingVerification{}
	}
	respondWithJSON(w, http.StatusOK, submissions)
}

// ProofURL handles GET /api/verifications/{id}/proof for both roles
func (h *ChildHandler) ProofURL(w http.ResponseWriter, r *http.Request) {
	profile := ProfileFromContext(r.Context())

	url, err := h.settlementService.ProofURL(r.Context(), profile.ID, r.PathValue("id"), h.proofURLTTL)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"url": url})
}

type claimInviteRequest struct {
	Code string `json:"code"`
}

// ClaimInvite handles POST /api/family/claim
func (h *ChildHandler) ClaimInvite(w http.ResponseWriter, r *http.Request) {
	profile := ProfileFromContext(r.Context())

	var req claimInviteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body", "", nil)
		return
	}

	link, err := h.familyService.ClaimInvite(profile.ID, req.Code)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, link)
}

type purchaseRequest struct {
	ItemName string `json:"item_name"`
	Cost     int    `json:"cost"`
}

// Purchase handles POST /api/market/purchase
func (h *ChildHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	profile := ProfileFromContext(r.Context())

	var req purchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body", "", nil)
		return
	}

	result, err := h.marketService.Purchase(profile.ID, req.ItemName, req.Cost)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

// Balance handles GET /api/balance
func (h *ChildHandler) Balance(w http.ResponseWriter, r *http.Request) {
	profile := ProfileFromContext(r.Context())

	balance, streakBonus, err := h.marketService.Balance(profile.ID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to load balance", "failed to load balance", err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]int{
		"balance":      balance,
		"streak_bonus": streakBonus,
	})
}

// History handles GET /api/transactions with an optional ?limit=
func (h *ChildHandler) History(w http.ResponseWriter, r *http.Request) {
	profile := ProfileFromContext(r.Context())

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	transactions, err := h.marketService.History(profile.ID, limit)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to load transactions", "failed to list transactions", err)
		return
	}
	if transactions == nil {
		transactions = []models.Transaction{}
	}
	respondWithJSON(w, http.StatusOK, transactions)
}
