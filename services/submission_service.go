package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"zenithAPI/internal/challenge"
	"zenithAPI/internal/ledger"
	"zenithAPI/internal/submission"
)

const recentSubmissionsLimit = 10

// SubmissionService owns every submission status transition. Settle is the
// only way out of PENDING for both manual review and auto-moderation.
type SubmissionService struct {
	store        ledger.SubmissionStore
	challenges   ledger.ChallengeStore
	customPoints int64
	now          func() time.Time
}

func NewSubmissionService(store ledger.SubmissionStore, challenges ledger.ChallengeStore, customPoints int64) *SubmissionService {
	return &SubmissionService{
		store:        store,
		challenges:   challenges,
		customPoints: customPoints,
		now:          time.Now,
	}
}

func (s *SubmissionService) Create(ctx context.Context, userID string, req *submission.CreateSubmissionRequest, proofs submission.Proofs) (*submission.Submission, error) {
	sub, err := s.prepare(ctx, userID, req, proofs)
	if err != nil {
		return nil, err
	}

	created, err := s.store.CreateSubmission(ctx, sub)
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"submission_id": created.ID,
		"user_id":       userID,
		"challenge_id":  created.ChallengeID,
	}).Info("Submission created")
	return created, nil
}

// Validate runs every check Create runs without persisting anything. Upload
// handlers call it with placeholder proof references before storing files.
func (s *SubmissionService) Validate(ctx context.Context, req *submission.CreateSubmissionRequest, proofs submission.Proofs) error {
	_, err := s.prepare(ctx, "", req, proofs)
	return err
}

func (s *SubmissionService) prepare(ctx context.Context, userID string, req *submission.CreateSubmissionRequest, proofs submission.Proofs) (*submission.Submission, error) {
	proofs.Text = strings.TrimSpace(proofs.Text)
	if len(proofs.Images) > submission.MaxImages {
		return nil, fmt.Errorf("%w: at most %d images", ErrValidation, submission.MaxImages)
	}
	if len(proofs.Videos) > submission.MaxVideos {
		return nil, fmt.Errorf("%w: at most %d videos", ErrValidation, submission.MaxVideos)
	}

	sub := &submission.Submission{
		UserID:            userID,
		IsChallengeExists: req.IsChallengeExists,
		Proofs:            proofs,
		SubmittedAt:       s.now().UTC(),
	}

	if req.IsChallengeExists {
		if req.ChallengeID == "" {
			return nil, fmt.Errorf("%w: challengeId is required", ErrValidation)
		}
		ch, err := s.challenges.GetChallenge(ctx, req.ChallengeID)
		if err != nil {
			if errors.Is(err, ledger.ErrNotFound) {
				return nil, fmt.Errorf("%w: challenge %s not found", ErrValidation, req.ChallengeID)
			}
			return nil, err
		}
		if err := checkProofs(ch.SubmissionType, proofs); err != nil {
			return nil, err
		}
		sub.ChallengeID = ch.ID
		sub.ChallengeName = ch.Title
	} else {
		if proofs.Text == "" && len(proofs.Images) == 0 {
			return nil, fmt.Errorf("%w: custom submissions need text or an image", ErrValidation)
		}
		sub.ChallengeName = strings.TrimSpace(req.ChallengeName)
	}
	return sub, nil
}

func checkProofs(kind challenge.SubmissionType, p submission.Proofs) error {
	hasText, hasImage, hasVideo := p.Text != "", len(p.Images) > 0, len(p.Videos) > 0
	var ok bool
	switch kind {
	case challenge.SubmissionText:
		ok = hasText
	case challenge.SubmissionImage:
		ok = hasImage
	case challenge.SubmissionVideo:
		ok = hasVideo
	default:
		ok = hasText || hasImage || hasVideo
	}
	if !ok {
		return fmt.Errorf("%w: challenge expects %s proof", ErrValidation, strings.ToLower(string(kind)))
	}
	return nil
}

// Settle moves a PENDING submission to COMPLETED or REJECTED and applies the
// ledger effect exactly once. A caller that loses the race gets the stored
// submission back together with ledger.ErrAlreadySettled.
func (s *SubmissionService) Settle(ctx context.Context, submissionID string, status submission.Status, remarks string, source submission.Source) (*submission.Submission, error) {
	if status != submission.StatusCompleted && status != submission.StatusRejected {
		return nil, fmt.Errorf("%w: got %q", ErrInvalidVerdict, status)
	}

	current, err := s.store.GetSubmission(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if current.Status.Terminal() {
		settlementConflicts.WithLabelValues(string(source)).Inc()
		return current, fmt.Errorf("submission %s is %s: %w", current.ID, current.Status, ledger.ErrAlreadySettled)
	}

	points, err := s.resolvePoints(ctx, current)
	if err != nil {
		return nil, err
	}

	st := submission.Settlement{
		SubmissionID: submissionID,
		Status:       status,
		Remarks:      strings.TrimSpace(remarks),
		Source:       source,
	}
	if status == submission.StatusCompleted {
		st.Points = points
	}

	settled, err := s.store.SettleSubmission(ctx, st)
	if err != nil {
		if errors.Is(err, ledger.ErrAlreadySettled) {
			settlementConflicts.WithLabelValues(string(source)).Inc()
		}
		return settled, err
	}

	settlementsTotal.WithLabelValues(string(status), string(source)).Inc()
	log.WithFields(log.Fields{
		"submission_id": settled.ID,
		"user_id":       settled.UserID,
		"status":        status,
		"source":        source,
		"points":        st.Points,
	}).Info("Submission settled")
	return settled, nil
}

// resolvePoints returns what a COMPLETED settlement credits. A submission that
// references a challenge which no longer exists cannot be settled at all.
func (s *SubmissionService) resolvePoints(ctx context.Context, sub *submission.Submission) (int64, error) {
	if !sub.IsChallengeExists {
		return s.customPoints, nil
	}
	ch, err := s.challenges.GetChallenge(ctx, sub.ChallengeID)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return 0, fmt.Errorf("submission %s references challenge %s: %w", sub.ID, sub.ChallengeID, ErrChallengeMissing)
		}
		return 0, err
	}
	return ch.Points, nil
}

// Get returns a submission with its challenge title filled in. Only the owner
// or an admin may read it; callers pass ownerID="" for admin reads.
func (s *SubmissionService) Get(ctx context.Context, ownerID, submissionID string) (*submission.Submission, error) {
	sub, err := s.store.GetSubmission(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if ownerID != "" && sub.UserID != ownerID {
		return nil, fmt.Errorf("submission %s: %w", submissionID, ledger.ErrNotFound)
	}
	if sub.IsChallengeExists {
		ch, err := s.challenges.GetChallenge(ctx, sub.ChallengeID)
		if err != nil {
			if errors.Is(err, ledger.ErrNotFound) {
				return nil, fmt.Errorf("submission %s references challenge %s: %w", sub.ID, sub.ChallengeID, ErrChallengeMissing)
			}
			return nil, err
		}
		sub.ChallengeName = ch.Title
	}
	return sub, nil
}

func (s *SubmissionService) ListRecent(ctx context.Context, userID string) ([]*submission.Submission, error) {
	subs, err := s.store.ListRecentSubmissions(ctx, userID, recentSubmissionsLimit)
	if err != nil {
		return nil, err
	}
	if subs == nil {
		subs = []*submission.Submission{}
	}
	return subs, nil
}

func (s *SubmissionService) GetForChallenge(ctx context.Context, userID, challengeID string) (*submission.Submission, error) {
	if challengeID == "" {
		return nil, fmt.Errorf("%w: challengeId is required", ErrValidation)
	}
	return s.store.GetUserSubmissionForChallenge(ctx, userID, challengeID)
}
