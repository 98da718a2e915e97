package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"zenithAPI/internal/ledger"
	"zenithAPI/internal/media"
	"zenithAPI/internal/moderation"
	"zenithAPI/internal/submission"
)

const moderationUnitTimeout = 2 * time.Minute

// ModerationSweep settles the oldest pending image submissions using the
// content validator. Anything short of a decisive verdict leaves the
// submission PENDING for a later pass or manual review.
type ModerationSweep struct {
	store       ledger.SubmissionStore
	challenges  ledger.ChallengeStore
	media       media.Store
	validator   moderation.Validator
	submissions *SubmissionService
	retryAfter  time.Duration
	batch       int
	now         func() time.Time
}

type ModerationSweepConfig struct {
	RetryAfter time.Duration
	Batch      int
}

func NewModerationSweep(
	store ledger.SubmissionStore,
	challenges ledger.ChallengeStore,
	mediaStore media.Store,
	validator moderation.Validator,
	submissions *SubmissionService,
	cfg ModerationSweepConfig,
) *ModerationSweep {
	if cfg.Batch <= 0 {
		cfg.Batch = 1
	}
	return &ModerationSweep{
		store:       store,
		challenges:  challenges,
		media:       mediaStore,
		validator:   validator,
		submissions: submissions,
		retryAfter:  cfg.RetryAfter,
		batch:       cfg.Batch,
		now:         time.Now,
	}
}

func (s *ModerationSweep) Name() string { return "moderation" }

func (s *ModerationSweep) Run(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { observeSweep(s.Name(), start, err) }()

	for i := 0; i < s.batch; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		found, err := s.moderateNext(ctx)
		if err != nil {
			return err
		}
		if !found {
			return nil
		}
	}
	return nil
}

// moderateNext handles one candidate. It reports whether a candidate existed;
// the returned error is only set for store failures that should abort the run.
func (s *ModerationSweep) moderateNext(ctx context.Context) (bool, error) {
	unitCtx, cancel := unitContext(ctx, moderationUnitTimeout)
	defer cancel()

	now := s.now().UTC()
	sub, err := s.store.NextModerationCandidate(unitCtx, now.Add(-s.retryAfter))
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if err := s.store.MarkModerationAttempt(unitCtx, sub.ID, now); err != nil {
		return false, err
	}

	logger := log.WithFields(log.Fields{
		"sweep":         s.Name(),
		"submission_id": sub.ID,
		"user_id":       sub.UserID,
	})

	outcome := s.judge(unitCtx, logger, sub)
	sweepUnits.WithLabelValues(s.Name(), outcome).Inc()
	return true, nil
}

func (s *ModerationSweep) judge(ctx context.Context, logger *log.Entry, sub *submission.Submission) string {
	challengeContext := moderation.CustomSubmissionContext
	if sub.IsChallengeExists {
		ch, err := s.challenges.GetChallenge(ctx, sub.ChallengeID)
		if err != nil {
			if errors.Is(err, ledger.ErrNotFound) {
				err = fmt.Errorf("challenge %s: %w", sub.ChallengeID, ErrChallengeMissing)
			}
			logger.WithError(err).Error("Cannot build moderation context")
			return "error"
		}
		challengeContext = ch.Context()
	}

	images, err := s.loadImages(ctx, sub.Proofs.Images)
	if err != nil {
		logger.WithError(err).Error("Failed to load proof images")
		return "error"
	}

	raw, err := s.validator.Validate(ctx, moderation.Request{
		SubmissionText:   sub.Proofs.Text,
		ChallengeContext: challengeContext,
		Images:           images,
	})
	if err != nil {
		logger.WithError(fmt.Errorf("%w: %v", ErrExternalService, err)).Warn("Content validator call failed")
		return "validator_error"
	}

	verdict := moderation.ParseVerdict(raw)
	status, ok := verdict.Status()
	if !ok {
		logger.WithField("problem", verdict.Problem).Warn("Unparseable verdict, leaving submission pending")
		return "unparseable"
	}

	_, err = s.submissions.Settle(ctx, sub.ID, status, verdict.Reason, submission.SourceAuto)
	switch {
	case err == nil:
		logger.WithField("verdict", verdict.Kind).Info("Submission auto-moderated")
		return verdict.Kind.String()
	case errors.Is(err, ledger.ErrAlreadySettled):
		logger.Info("Submission was settled by someone else first")
		return "lost_race"
	default:
		logger.WithError(err).Error("Failed to settle moderated submission")
		return "error"
	}
}

func (s *ModerationSweep) loadImages(ctx context.Context, refs []string) ([]moderation.Image, error) {
	images := make([]moderation.Image, 0, len(refs))
	for _, ref := range refs {
		data, err := s.media.Load(ctx, ref)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", ref, err)
		}
		images = append(images, moderation.Image{
			Name:     ref,
			MIMEType: moderation.MIMEType(ref),
			Data:     data,
		})
	}
	return images, nil
}
