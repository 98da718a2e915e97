package services

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"zenithAPI/internal/challenge"
	"zenithAPI/internal/ledger"
)

type ChallengeService struct {
	store      ledger.ChallengeStore
	categories ledger.CategoryStore
}

func NewChallengeService(store ledger.ChallengeStore, categories ledger.CategoryStore) *ChallengeService {
	return &ChallengeService{store: store, categories: categories}
}

func (s *ChallengeService) Create(ctx context.Context, req *challenge.CreateChallengeRequest) (*challenge.Challenge, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrValidation)
	}
	if req.Points <= 0 {
		return nil, fmt.Errorf("%w: points must be positive", ErrValidation)
	}
	if req.CategoryID <= 0 {
		return nil, fmt.Errorf("%w: category is required", ErrValidation)
	}

	level := challenge.Level(strings.ToUpper(string(req.Level)))
	switch level {
	case "":
		level = challenge.LevelBeginner
	case challenge.LevelBeginner, challenge.LevelIntermediate, challenge.LevelAdvanced:
	default:
		return nil, fmt.Errorf("%w: unknown level %q", ErrValidation, req.Level)
	}

	kind := challenge.SubmissionType(strings.ToUpper(string(req.SubmissionType)))
	switch kind {
	case "":
		kind = challenge.SubmissionAny
	case challenge.SubmissionText, challenge.SubmissionImage, challenge.SubmissionVideo, challenge.SubmissionAny:
	default:
		return nil, fmt.Errorf("%w: unknown submission type %q", ErrValidation, req.SubmissionType)
	}

	if err := requireCategories(ctx, s.categories, req.CategoryID); err != nil {
		return nil, err
	}

	created, err := s.store.CreateChallenge(ctx, &challenge.Challenge{
		Title:           title,
		Description:     strings.TrimSpace(req.Description),
		LongDescription: strings.TrimSpace(req.LongDescription),
		CategoryID:      req.CategoryID,
		TimeMinutes:     req.TimeMinutes,
		Points:          req.Points,
		Level:           level,
		SubmissionType:  kind,
	})
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"challenge_id": created.ID, "points": created.Points}).Info("Challenge created")
	return created, nil
}

func (s *ChallengeService) Get(ctx context.Context, id string) (*challenge.Challenge, error) {
	return s.store.GetChallenge(ctx, id)
}

func (s *ChallengeService) List(ctx context.Context, categoryID int) ([]*challenge.Challenge, error) {
	list, err := s.store.ListChallenges(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []*challenge.Challenge{}
	}
	return list, nil
}
