package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"zenithAPI/internal/ledger"
	"zenithAPI/internal/payout"
	"zenithAPI/internal/reward"
)

const (
	defaultRewardType = "UPI"
	sagaTimeout       = 30 * time.Second
)

type RewardConfig struct {
	UnitPoints int64
	UnitAmount int64
	ContactID  string
}

// RewardService runs the redemption saga: reserve points and record a
// PENDING entry, pay out through the processor with the entry's idempotency
// key, then finalize. Finalization is re-entrant so webhooks and the
// reconcile sweep can repeat it safely.
type RewardService struct {
	store     ledger.RewardStore
	processor payout.Processor
	cfg       RewardConfig
}

func NewRewardService(store ledger.RewardStore, processor payout.Processor, cfg RewardConfig) *RewardService {
	return &RewardService{store: store, processor: processor, cfg: cfg}
}

func (s *RewardService) validate(req *reward.RedeemRequest) error {
	if req.PointsRewarded != s.cfg.UnitPoints || req.Amount != s.cfg.UnitAmount {
		return fmt.Errorf("%w: redeem exactly %d points for %d", ErrInvalidRedemption, s.cfg.UnitPoints, s.cfg.UnitAmount)
	}
	vpa := strings.TrimSpace(req.VPAAddress)
	at := strings.Index(vpa, "@")
	if at <= 0 || at == len(vpa)-1 || strings.ContainsAny(vpa, " \t") {
		return fmt.Errorf("%w: %q is not a valid VPA address", ErrInvalidRedemption, req.VPAAddress)
	}
	return nil
}

// Redeem returns the entry in whatever state the saga reached. Errors wrapping
// ErrPayoutProcessor come with the entry: FAILED when the reservation was
// released, PENDING when the outcome is unknown and the points stay reserved.
func (s *RewardService) Redeem(ctx context.Context, userID string, req *reward.RedeemRequest) (*reward.Entry, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	rewardType := strings.ToUpper(strings.TrimSpace(req.RewardType))
	if rewardType == "" {
		rewardType = defaultRewardType
	}

	entry, err := s.store.ReserveAndCreateEntry(ctx, &reward.Entry{
		UserID:         userID,
		PointsRewarded: req.PointsRewarded,
		Amount:         req.Amount,
		VPAAddress:     strings.TrimSpace(req.VPAAddress),
		RewardType:     rewardType,
		IdempotencyKey: uuid.NewString(),
	})
	if err != nil {
		return nil, err
	}
	redemptionsTotal.WithLabelValues(string(reward.StatusPending)).Inc()

	logger := log.WithFields(log.Fields{"reward_entry_id": entry.ID, "user_id": userID})
	logger.Info("Points reserved for redemption")

	// Points are committed from here on; the caller going away must not
	// strand the saga between steps.
	sagaCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sagaTimeout)
	defer cancel()

	return s.pay(sagaCtx, logger, entry)
}

// pay calls the processor and finalizes when the outcome is known. It is
// safe to call again for a PENDING entry: the fund account is pinned on the
// entry before the first payout request, and every retry reuses it with the
// same idempotency key.
func (s *RewardService) pay(ctx context.Context, logger *log.Entry, entry *reward.Entry) (*reward.Entry, error) {
	if entry.FundAccountID == nil {
		fundAccountID, err := s.pinDestination(ctx, entry)
		if err != nil {
			if entry.PayoutID != nil {
				logger.WithError(err).Warn("Could not pin payout destination, keeping reservation")
				return entry, fmt.Errorf("%w: outcome unknown: %v", ErrPayoutProcessor, err)
			}
			// Payouts are only requested once a fund account is pinned, so
			// none exists for this entry and the reservation can go back.
			logger.WithError(err).Warn("Could not resolve payout destination")
			failed, ferr := s.Finalize(ctx, entry.ID, payout.OutcomeFailed, "destination: "+err.Error())
			if ferr != nil {
				return entry, ferr
			}
			return failed, fmt.Errorf("%w: %v", ErrPayoutProcessor, err)
		}
		entry.FundAccountID = &fundAccountID
	}

	p, err := s.processor.CreatePayout(ctx, payout.PayoutRequest{
		FundAccountID:  *entry.FundAccountID,
		Amount:         entry.Amount,
		IdempotencyKey: entry.IdempotencyKey,
		ReferenceID:    entry.ID,
	})
	if err != nil {
		if payout.IsDefinitive(err) {
			logger.WithError(err).Warn("Payout rejected")
			failed, ferr := s.Finalize(ctx, entry.ID, payout.OutcomeFailed, err.Error())
			if ferr != nil {
				return entry, ferr
			}
			return failed, fmt.Errorf("%w: %v", ErrPayoutProcessor, err)
		}
		logger.WithError(err).Warn("Payout outcome unknown, keeping reservation")
		return entry, fmt.Errorf("%w: outcome unknown: %v", ErrPayoutProcessor, err)
	}

	if err := s.store.SetRewardPayoutID(ctx, entry.ID, p.ID); err != nil {
		// The webhook can still find the entry through its reference id.
		logger.WithError(err).Warn("Failed to record payout id")
	} else {
		entry.PayoutID = &p.ID
	}

	logger.WithFields(log.Fields{"payout_id": p.ID, "status": p.Status}).Info("Payout submitted")
	return s.Finalize(ctx, entry.ID, p.Outcome(), p.FailureReason)
}

// pinDestination resolves the fund account for the entry's VPA and records it
// on the entry. A concurrent pin wins; its account is returned.
func (s *RewardService) pinDestination(ctx context.Context, entry *reward.Entry) (string, error) {
	dest, err := s.resolveDestination(ctx, entry.VPAAddress)
	if err != nil {
		return "", err
	}
	return s.store.PinRewardFundAccount(ctx, entry.ID, dest.FundAccountID)
}

func (s *RewardService) resolveDestination(ctx context.Context, vpa string) (*reward.Destination, error) {
	dest, err := s.store.GetDestination(ctx, vpa, s.cfg.ContactID)
	if err == nil {
		return dest, nil
	}
	if !errors.Is(err, ledger.ErrNotFound) {
		return nil, err
	}

	fundAccountID, err := s.processor.CreateFundAccount(ctx, s.cfg.ContactID, vpa)
	if err != nil {
		return nil, err
	}
	return s.store.SaveDestination(ctx, &reward.Destination{
		FundAccountID: fundAccountID,
		ContactID:     s.cfg.ContactID,
		VPAAddress:    vpa,
	})
}

// Finalize applies a payout outcome to an entry. A pending outcome, or an
// entry that is already terminal, leaves the entry unchanged.
func (s *RewardService) Finalize(ctx context.Context, entryID string, outcome payout.Outcome, reason string) (*reward.Entry, error) {
	var status reward.Status
	switch outcome {
	case payout.OutcomeCompleted:
		status = reward.StatusCompleted
		reason = ""
	case payout.OutcomeFailed:
		status = reward.StatusFailed
		if reason == "" {
			reason = "payout failed"
		}
	default:
		return s.store.GetRewardEntry(ctx, entryID)
	}

	entry, changed, err := s.store.FinalizeRewardEntry(ctx, entryID, status, reason)
	if err != nil {
		return nil, err
	}
	if changed {
		redemptionsTotal.WithLabelValues(string(status)).Inc()
		log.WithFields(log.Fields{
			"reward_entry_id": entry.ID,
			"user_id":         entry.UserID,
			"status":          status,
		}).Info("Reward entry finalized")
	}
	return entry, nil
}

// HandleWebhook applies an asynchronous payout notification.
func (s *RewardService) HandleWebhook(ctx context.Context, ev *payout.Event) (*reward.Entry, error) {
	if ev.PayoutID == "" {
		return nil, nil
	}

	entry, err := s.store.GetRewardEntryByPayoutID(ctx, ev.PayoutID)
	if errors.Is(err, ledger.ErrNotFound) && ev.ReferenceID != "" {
		entry, err = s.store.GetRewardEntry(ctx, ev.ReferenceID)
		if err == nil && entry.PayoutID == nil {
			if err := s.store.SetRewardPayoutID(ctx, entry.ID, ev.PayoutID); err != nil {
				return nil, err
			}
		}
	}
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"reward_entry_id": entry.ID,
		"payout_id":       ev.PayoutID,
		"event":           ev.Name,
	}).Info("Payout webhook received")
	return s.Finalize(ctx, entry.ID, ev.Outcome(), ev.FailureReason)
}

// Reconcile re-issues the payout call for a PENDING entry.
func (s *RewardService) Reconcile(ctx context.Context, entry *reward.Entry) (*reward.Entry, error) {
	if entry.Status.Terminal() {
		return entry, nil
	}
	logger := log.WithFields(log.Fields{"reward_entry_id": entry.ID, "user_id": entry.UserID})
	return s.pay(ctx, logger, entry)
}

func (s *RewardService) History(ctx context.Context, userID string) ([]*reward.Entry, error) {
	entries, err := s.store.ListRewardEntries(ctx, userID)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []*reward.Entry{}
	}
	return entries, nil
}

func (s *RewardService) Get(ctx context.Context, userID, entryID string) (*reward.Entry, error) {
	entry, err := s.store.GetRewardEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if entry.UserID != userID {
		return nil, fmt.Errorf("reward entry %s: %w", entryID, ledger.ErrNotFound)
	}
	return entry, nil
}
