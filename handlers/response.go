package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"zenithAPI/internal/ledger"
	"zenithAPI/internal/media"
	"zenithAPI/internal/user"
	"zenithAPI/middleware"
	"zenithAPI/services"
)

const requestTimeout = 5 * time.Second

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		log.WithError(err).Error("Failed to encode response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

// statusForError maps domain errors to HTTP statuses.
func statusForError(err error) int {
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrAlreadySettled),
		errors.Is(err, ledger.ErrInsufficientPoints),
		errors.Is(err, services.ErrValidation),
		errors.Is(err, services.ErrInvalidVerdict),
		errors.Is(err, services.ErrInvalidRedemption):
		return http.StatusBadRequest
	case errors.Is(err, media.ErrUnsupportedType):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, services.ErrChallengeMissing):
		return http.StatusUnprocessableEntity
	case errors.Is(err, services.ErrPayoutProcessor),
		errors.Is(err, services.ErrExternalService):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// respondWithServiceError writes err with its mapped status. Internal errors
// are logged and hidden from the client.
func respondWithServiceError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusForError(err)
	if code == http.StatusInternalServerError {
		log.WithError(err).WithFields(log.Fields{"method": r.Method, "path": r.URL.Path}).Error("Request failed")
		respondWithError(w, code, "Internal server error")
		return
	}
	respondWithError(w, code, err.Error())
}

type userLookup interface {
	GetUserByClerkID(ctx context.Context, clerkID string) (*user.User, error)
}

// currentUser loads the ledger user behind the authenticated Clerk id. It
// writes the error response itself and returns nil when there is none.
func currentUser(ctx context.Context, w http.ResponseWriter, r *http.Request, users userLookup) *user.User {
	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return nil
	}
	u, err := users.GetUserByClerkID(ctx, clerkID)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "User not found")
			return nil
		}
		respondWithServiceError(w, r, err)
		return nil
	}
	if u.Deleted() {
		respondWithError(w, http.StatusForbidden, "User account has been deleted")
		return nil
	}
	return u
}
