package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"aether/internal/models"
	"aether/internal/service"
)

// ParentHandler handles the parent-facing API: quest management, the
// review queue, invites, family settings and bonus grants.
type ParentHandler struct {
	settlementService *service.SettlementService
	questService      *service.QuestService
	familyService     *service.FamilyService
	marketService     *service.MarketService
}

// NewParentHandler creates a new parent handler
func NewParentHandler(
	settlementService *service.SettlementService,
	questService *service.QuestService,
	familyService *service.FamilyService,
	marketService *service.MarketService,
) *ParentHandler {
	return &ParentHandler{
		settlementService: settlementService,
		questService:      questService,
		familyService:     familyService,
		marketService:     marketService,
	}
}

type createQuestRequest struct {
	ChildID            int64  `json:"child_id"`
	Name               string `json:"name"`
	Description        string `json:"description"`
	Tokens             int    `json:"tokens"`
	QuestType          string `json:"quest_type"`
	VerificationMethod string `json:"verification_method"`
}

// CreateQuest handles POST /api/quests
func (h *ParentHandler) CreateQuest(w http.ResponseWriter, r *http.Request) {
	profile := ProfileFromContext(r.Context())

	var req createQuestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body", "", nil)
		return
	}

	quest, err := h.questService.CreateQuest(profile.ID, req.ChildID, req.Name, req.Description, req.Tokens, req.QuestType, req.VerificationMethod)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, quest)
}

// ListQuests handles GET /api/parent/quests
func (h *ParentHandler) ListQuests(w http.ResponseWriter, r *http.Request) {
	profile := ProfileFromContext(r.Context())

	quests, err := h.questService.ListForParent(profile.ID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to load quests", "failed to list quests", err)
		return
	}
	if quests == nil {
		quests = []models.Quest{}
	}
	respondWithJSON(w, http.StatusOK, quests)
}

// CancelQuest handles DELETE /api/quests/{id}
func (h *ParentHandler) CancelQuest(w http.ResponseWriter, r *http.Request) {
	profile := ProfileFromContext(r.Context())

	questID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid quest ID", "", nil)
		return
	}

	if err := h.questService.CancelQuest(profile.ID, questID); err != nil {
		respondWithError(w, http.StatusConflict, "Quest is not active or not yours", "", nil)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

// ListPending handles GET /api/verifications/pending
func (h *ParentHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	profile := ProfileFromContext(r.Context())

	pending, err := h.settlementService.ListPendingForParent(profile.ID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to load review queue", "failed to list pending verifications", err)
		return
	}
	if pending == nil {
		pending = []models.PendingVerification{}
	}
	respondWithJSON(w, http.StatusOK, pending)
}

type reviewRequest struct {
	Approve bool `json:"approve"`
}

// Review handles POST /api/verifications/{id}/review
func (h *ParentHandler) Review(w http.ResponseWriter, r *http.Request) {
	profile := ProfileFromContext(r.Context())

	var req reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body", "", nil)
		return
	}

	settlement, err := h.settlementService.Review(r.Context(), profile.ID, r.PathValue("id"), req.Approve)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if settlement == nil {
		respondWithJSON(w, http.StatusOK, map[string]string{"status": "rejected"})
		return
	}
	respondWithJSON(w, http.StatusOK, settlement)
}

// CreateInvite handles POST /api/family/invites
func (h *ParentHandler) CreateInvite(w http.ResponseWriter, r *http.Request) {
	profile := ProfileFromContext(r.Context())

	invite, err := h.familyService.CreateInvite(profile.ID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, invite)
}

// ListInvites handles GET /api/family/invites
func (h *ParentHandler) ListInvites(w http.ResponseWriter, r *http.Request) {
	profile := ProfileFromContext(r.Context())

	invites, err := h.familyService.ListInvites(profile.ID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to load invites", "failed to list invites", err)
		return
	}
	if invites == nil {
		invites = []models.FamilyLink{}
	}
	respondWithJSON(w, http.StatusOK, invites)
}

// ListChildren handles GET /api/family/children
func (h *ParentHandler) ListChildren(w http.ResponseWriter, r *http.Request) {
	profile := ProfileFromContext(r.Context())

	children, err := h.familyService.ListChildren(profile.ID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to load children", "failed to list children", err)
		return
	}
	if children == nil {
		children = []service.FamilyChild{}
	}
	respondWithJSON(w, http.StatusOK, children)
}

type updateSettingsRequest struct {
	SpendingLimit             *int `json:"spending_limit"`
	EmailNotificationsEnabled bool `json:"email_notifications_enabled"`
}

// UpdateSettings handles PUT /api/family/children/{childID}/settings
func (h *ParentHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	profile := ProfileFromContext(r.Context())

	childID, err := strconv.ParseInt(r.PathValue("childID"), 10, 64)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid child ID", "", nil)
		return
	}

	var req updateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body", "", nil)
		return
	}

	if err := h.familyService.UpdateSettings(profile.ID, childID, req.SpendingLimit, req.EmailNotificationsEnabled); err != nil {
		respondServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

type grantBonusRequest struct {
	Amount int `json:"amount"`
}

// GrantBonus handles POST /api/family/children/{childID}/bonus
func (h *ParentHandler) GrantBonus(w http.ResponseWriter, r *http.Request) {
	profile := ProfileFromContext(r.Context())

	childID, err := strconv.ParseInt(r.PathValue("childID"), 10, 64)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid child ID", "", nil)
		return
	}

	var req grantBonusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body", "", nil)
		return
	}

	newBalance, err := h.marketService.GrantBonus(profile.ID, childID, req.Amount)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]int{"new_balance": newBalance})
}
