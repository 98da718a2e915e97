package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"zenithAPI/internal/chat"
	"zenithAPI/services"
)

// Answering takes two model calls.
const chatTimeout = 30 * time.Second

type ChatHandler struct {
	chatService *services.ChatService
	userService *services.UserService
}

func NewChatHandler(chatService *services.ChatService, userService *services.UserService) *ChatHandler {
	return &ChatHandler{chatService: chatService, userService: userService}
}

func (h *ChatHandler) Query(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), chatTimeout)
	defer cancel()

	u := currentUser(ctx, w, r, h.userService)
	if u == nil {
		return
	}

	var req chat.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	msg, err := h.chatService.Ask(ctx, u, req.Query)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, msg)
}

func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	u := currentUser(ctx, w, r, h.userService)
	if u == nil {
		return
	}

	list, err := h.chatService.History(ctx, u.ID)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, list)
}
