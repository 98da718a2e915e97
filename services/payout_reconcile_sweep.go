package services

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"zenithAPI/internal/ledger"
	"zenithAPI/internal/reward"
)

const (
	payoutReconcileBatch       = 50
	payoutReconcileUnitTimeout = 30 * time.Second
)

// PayoutReconcileSweep retries the payout call for entries that have been
// PENDING longer than minAge. The processor deduplicates on the entry's
// idempotency key, so a retry either reports the original payout or creates
// the one that never landed.
type PayoutReconcileSweep struct {
	store   ledger.RewardStore
	rewards *RewardService
	minAge  time.Duration
	now     func() time.Time
}

func NewPayoutReconcileSweep(store ledger.RewardStore, rewards *RewardService, minAge time.Duration) *PayoutReconcileSweep {
	return &PayoutReconcileSweep{store: store, rewards: rewards, minAge: minAge, now: time.Now}
}

func (s *PayoutReconcileSweep) Name() string { return "payout_reconcile" }

func (s *PayoutReconcileSweep) Run(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { observeSweep(s.Name(), start, err) }()

	entries, err := s.store.ListPendingRewardEntries(ctx, s.now().UTC().Add(-s.minAge), payoutReconcileBatch)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		sweepUnits.WithLabelValues(s.Name(), s.reconcileOne(ctx, entry)).Inc()
	}
	return nil
}

func (s *PayoutReconcileSweep) reconcileOne(ctx context.Context, entry *reward.Entry) string {
	unitCtx, cancel := unitContext(ctx, payoutReconcileUnitTimeout)
	defer cancel()

	logger := log.WithFields(log.Fields{"sweep": s.Name(), "reward_entry_id": entry.ID})
	updated, err := s.rewards.Reconcile(unitCtx, entry)
	switch {
	case err == nil && updated.Status.Terminal():
		logger.WithField("status", updated.Status).Info("Pending payout reconciled")
		return string(updated.Status)
	case err == nil:
		return "pending"
	case errors.Is(err, ErrPayoutProcessor) && updated != nil && updated.Status == reward.StatusFailed:
		logger.WithError(err).Info("Pending payout failed on retry")
		return string(reward.StatusFailed)
	case errors.Is(err, ErrPayoutProcessor):
		logger.WithError(err).Warn("Payout outcome still unknown")
		return "pending"
	default:
		logger.WithError(err).Error("Failed to reconcile payout")
		return "error"
	}
}
