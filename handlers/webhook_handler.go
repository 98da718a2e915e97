package handlers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"zenithAPI/internal/ledger"
	"zenithAPI/internal/payout"
	"zenithAPI/internal/user"
	"zenithAPI/services"
)

const (
	maxWebhookBytes   = 1 << 20
	webhookTimeout    = 15 * time.Second
	svixTimestampSkew = 5 * time.Minute
)

type WebhookHandler struct {
	userService        *services.UserService
	rewardService      *services.RewardService
	clerkWebhookSecret string
	payoutSecret       string
	now                func() time.Time
}

func NewWebhookHandler(userService *services.UserService, rewardService *services.RewardService, clerkWebhookSecret, payoutSecret string) *WebhookHandler {
	return &WebhookHandler{
		userService:        userService,
		rewardService:      rewardService,
		clerkWebhookSecret: clerkWebhookSecret,
		payoutSecret:       payoutSecret,
		now:                time.Now,
	}
}

func (h *WebhookHandler) HandleClerkWebhook(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), webhookTimeout)
	defer cancel()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Error reading body")
		return
	}

	if err := h.verifySvixSignature(r.Header, body); err != nil {
		log.WithError(err).Warn("Invalid Clerk webhook signature")
		respondWithError(w, http.StatusUnauthorized, "Invalid signature")
		return
	}

	var event user.ClerkWebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		respondWithError(w, http.StatusBadRequest, "Error parsing webhook")
		return
	}

	logger := log.WithField("event", event.Type)
	logger.Info("Received Clerk webhook")

	switch event.Type {
	case "user.created":
		if err := h.handleUserCreated(ctx, event.Data); err != nil {
			logger.WithError(err).Error("Error handling user.created")
			respondWithError(w, http.StatusInternalServerError, "Error processing webhook")
			return
		}

	case "user.deleted":
		if err := h.handleUserDeleted(ctx, event.Data); err != nil {
			logger.WithError(err).Error("Error handling user.deleted")
			respondWithError(w, http.StatusInternalServerError, "Error processing webhook")
			return
		}

	default:
		logger.Debug("Unhandled webhook event type")
	}

	respondWithJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *WebhookHandler) handleUserCreated(ctx context.Context, data json.RawMessage) error {
	var userData user.ClerkUserData
	if err := json.Unmarshal(data, &userData); err != nil {
		return fmt.Errorf("failed to unmarshal user data: %w", err)
	}

	username := userData.Username
	if username == "" {
		username = userData.FirstName + userData.LastName
	}

	imageURL := userData.ImageURL
	if imageURL == "" {
		imageURL = userData.ProfileImageURL
	}

	_, err := h.userService.CreateUser(ctx, &user.CreateUserRequest{
		ClerkID:  userData.ID,
		Email:    userData.PrimaryEmail(),
		Username: username,
		Name:     strings.TrimSpace(userData.FirstName + " " + userData.LastName),
		ImageURL: imageURL,
	})
	return err
}

func (h *WebhookHandler) handleUserDeleted(ctx context.Context, data json.RawMessage) error {
	var userData struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &userData); err != nil {
		return fmt.Errorf("failed to unmarshal user data: %w", err)
	}

	err := h.userService.DeactivateUserByClerkID(ctx, userData.ID)
	if errors.Is(err, ledger.ErrNotFound) {
		return nil
	}
	return err
}

// verifySvixSignature checks the svix headers Clerk sends: an HMAC-SHA256
// over "id.timestamp.body" keyed with the base64 part of the whsec_ secret,
// base64 encoded and listed as "v1,<sig>" among space separated candidates.
func (h *WebhookHandler) verifySvixSignature(header http.Header, body []byte) error {
	if h.clerkWebhookSecret == "" {
		return errors.New("CLERK_WEBHOOK_SECRET not set")
	}

	svixID := header.Get("svix-id")
	svixTimestamp := header.Get("svix-timestamp")
	svixSignature := header.Get("svix-signature")
	if svixID == "" || svixTimestamp == "" || svixSignature == "" {
		return errors.New("missing webhook signature headers")
	}

	ts, err := strconv.ParseInt(svixTimestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("bad svix-timestamp: %w", err)
	}
	if skew := h.now().Sub(time.Unix(ts, 0)); skew > svixTimestampSkew || skew < -svixTimestampSkew {
		return errors.New("webhook timestamp outside tolerance")
	}

	key, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(h.clerkWebhookSecret, "whsec_"))
	if err != nil {
		return fmt.Errorf("bad webhook secret: %w", err)
	}

	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(svixID + "." + svixTimestamp + "."))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	for _, candidate := range strings.Fields(svixSignature) {
		version, sig, ok := strings.Cut(candidate, ",")
		if ok && version == "v1" && hmac.Equal([]byte(sig), []byte(expected)) {
			return nil
		}
	}
	return errors.New("no matching signature")
}

// HandlePayoutWebhook applies payout status notifications from the processor.
// Events for unknown payouts are acknowledged so the processor stops retrying.
func (h *WebhookHandler) HandlePayoutWebhook(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), webhookTimeout)
	defer cancel()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Error reading body")
		return
	}

	if err := payout.VerifySignature(body, r.Header.Get(payout.SignatureHeader), h.payoutSecret); err != nil {
		log.WithError(err).Warn("Invalid payout webhook signature")
		respondWithError(w, http.StatusUnauthorized, "Invalid signature")
		return
	}

	event, err := payout.ParseWebhookEvent(body)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	logger := log.WithFields(log.Fields{"event": event.Name, "payout_id": event.PayoutID})
	entry, err := h.rewardService.HandleWebhook(ctx, event)
	switch {
	case err == nil:
	case errors.Is(err, ledger.ErrNotFound):
		logger.Warn("Payout webhook for unknown reward entry")
	default:
		logger.WithError(err).Error("Error applying payout webhook")
		respondWithError(w, http.StatusInternalServerError, "Error processing webhook")
		return
	}

	resp := map[string]interface{}{"success": true}
	if entry != nil {
		resp["status"] = entry.Status
	}
	respondWithJSON(w, http.StatusOK, resp)
}
