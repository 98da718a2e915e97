package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"zenithAPI/internal/reward"
	"zenithAPI/services"
)

// Redemptions call the payout processor, which can take a while.
const redeemTimeout = 45 * time.Second

type RewardHandler struct {
	rewardService *services.RewardService
	userService   *services.UserService
}

func NewRewardHandler(rewardService *services.RewardService, userService *services.UserService) *RewardHandler {
	return &RewardHandler{rewardService: rewardService, userService: userService}
}

type redeemResponse struct {
	Entry *reward.Entry `json:"entry"`
	Error string        `json:"error,omitempty"`
}

// CreateRewardEntry redeems points. A settled payout answers 201, an entry
// still waiting on the processor 202, and a failed payout 502 with the
// FAILED entry in the body.
func (h *RewardHandler) CreateRewardEntry(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), redeemTimeout)
	defer cancel()

	u := currentUser(ctx, w, r, h.userService)
	if u == nil {
		return
	}

	var req reward.RedeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	entry, err := h.rewardService.Redeem(ctx, u.ID, &req)
	switch {
	case err == nil && entry.Status == reward.StatusPending:
		respondWithJSON(w, http.StatusAccepted, redeemResponse{Entry: entry})
	case err == nil:
		respondWithJSON(w, http.StatusCreated, redeemResponse{Entry: entry})
	case errors.Is(err, services.ErrPayoutProcessor) && entry != nil && entry.Status == reward.StatusPending:
		respondWithJSON(w, http.StatusAccepted, redeemResponse{Entry: entry, Error: err.Error()})
	case errors.Is(err, services.ErrPayoutProcessor) && entry != nil:
		respondWithJSON(w, http.StatusBadGateway, redeemResponse{Entry: entry, Error: err.Error()})
	default:
		respondWithServiceError(w, r, err)
	}
}

func (h *RewardHandler) GetRewardHistory(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	u := currentUser(ctx, w, r, h.userService)
	if u == nil {
		return
	}

	entries, err := h.rewardService.History(ctx, u.ID)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, entries)
}

func (h *RewardHandler) GetRewardEntry(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	u := currentUser(ctx, w, r, h.userService)
	if u == nil {
		return
	}

	entry, err := h.rewardService.Get(ctx, u.ID, mux.Vars(r)["id"])
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, entry)
}
