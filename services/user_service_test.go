package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zenithAPI/internal/category"
	"zenithAPI/internal/challenge"
	"zenithAPI/internal/ledger"
	"zenithAPI/internal/payout"
	"zenithAPI/internal/reward"
	"zenithAPI/internal/submission"
	"zenithAPI/internal/user"
)

func TestUserService(t *testing.T) {
	ctx := context.Background()
	store := ledger.NewMemory()
	seedCategories(t, store, 7)
	svc := NewUserService(store, store)

	req := &user.CreateUserRequest{ClerkID: "user_abc", Email: "a@example.com", Username: "abc", Name: "A B"}
	created, err := svc.CreateUser(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "user_abc", created.ClerkID)

	// Webhook replays return the same user.
	again, err := svc.CreateUser(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, created.ID, again.ID)

	_, err = svc.CreateUser(ctx, &user.CreateUserRequest{})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.UpdateInterests(ctx, "user_abc", []int{1, 2, 2, 3})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = svc.UpdateInterests(ctx, "user_abc", []int{1, 2, 3, -4})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.UpdateInterests(ctx, "user_abc", []int{1, 2, 3, 8})
	assert.ErrorIs(t, err, ErrValidation, "category 8 does not exist")

	updated, err := svc.UpdateInterests(ctx, "user_abc", []int{7, 3, 5, 1, 3})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3, 5, 7}, updated.Interests)

	stored, err := svc.GetUserByClerkID(ctx, "user_abc")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3, 5, 7}, stored.Interests)
}

func TestDeactivatedUserKeepsLedger(t *testing.T) {
	ctx := context.Background()
	store := ledger.NewMemory()
	users := NewUserService(store, store)
	submissions := NewSubmissionService(store, store, 100)
	rewards := newRewardService(store, &fakeProcessor{})

	u := newUser(t, store, 5000)
	c := newChallenge(t, store, 40, challenge.SubmissionText)
	sub, err := submissions.Create(ctx, u.ID, &submission.CreateSubmissionRequest{
		ChallengeID:       c.ID,
		IsChallengeExists: true,
	}, submission.Proofs{Text: "done"})
	require.NoError(t, err)
	entry, err := rewards.Redeem(ctx, u.ID, redeemRequest())
	require.NoError(t, err)
	require.Equal(t, reward.StatusPending, entry.Status)

	require.NoError(t, users.DeactivateUserByClerkID(ctx, u.ClerkID))
	// Replays are no-ops.
	require.NoError(t, users.DeactivateUserByClerkID(ctx, u.ClerkID))
	assert.ErrorIs(t, users.DeactivateUserByClerkID(ctx, "clerk_unknown"), ledger.ErrNotFound)

	got, err := users.GetUserByClerkID(ctx, u.ClerkID)
	require.NoError(t, err)
	assert.True(t, got.Deleted())
	assert.Equal(t, 1, got.ChallengesSubmitted)

	settled, err := submissions.Settle(ctx, sub.ID, submission.StatusCompleted, "", submission.SourceManual)
	require.NoError(t, err)
	assert.Equal(t, submission.StatusCompleted, settled.Status)

	finalized, err := rewards.Finalize(ctx, entry.ID, payout.OutcomeFailed, "reversed")
	require.NoError(t, err)
	assert.Equal(t, reward.StatusFailed, finalized.Status)

	after := mustUser(t, store, u.ID)
	assert.Equal(t, int64(5040), after.TotalPointsEarned)
	assert.Equal(t, int64(0), after.PointsUsed)
	assert.Equal(t, 0, after.ChallengesInReview)
	assert.True(t, after.LedgerConsistent())
}

func TestChallengeService(t *testing.T) {
	ctx := context.Background()
	store := ledger.NewMemory()
	seedCategories(t, store, 3)
	svc := NewChallengeService(store, store)

	created, err := svc.Create(ctx, &challenge.CreateChallengeRequest{
		Title:          "  Walk 10k steps ",
		CategoryID:     2,
		Points:         30,
		Level:          "intermediate",
		SubmissionType: "image",
	})
	require.NoError(t, err)
	assert.Equal(t, "Walk 10k steps", created.Title)
	assert.Equal(t, challenge.LevelIntermediate, created.Level)
	assert.Equal(t, challenge.SubmissionImage, created.SubmissionType)

	defaults, err := svc.Create(ctx, &challenge.CreateChallengeRequest{Title: "Journal", CategoryID: 3, Points: 10})
	require.NoError(t, err)
	assert.Equal(t, challenge.LevelBeginner, defaults.Level)
	assert.Equal(t, challenge.SubmissionAny, defaults.SubmissionType)

	for _, bad := range []*challenge.CreateChallengeRequest{
		{CategoryID: 1, Points: 10},
		{Title: "x", CategoryID: 1},
		{Title: "x", Points: 10},
		{Title: "x", CategoryID: 1, Points: 10, Level: "expert"},
		{Title: "x", CategoryID: 1, Points: 10, SubmissionType: "audio"},
		{Title: "x", CategoryID: 4, Points: 10},
	} {
		_, err := svc.Create(ctx, bad)
		assert.ErrorIs(t, err, ErrValidation)
	}

	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	all, err := svc.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	filtered, err := svc.List(ctx, 3)
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, defaults.ID, filtered[0].ID)

	none, err := svc.List(ctx, 99)
	require.NoError(t, err)
	assert.NotNil(t, none)
}

func TestCategoryService(t *testing.T) {
	ctx := context.Background()
	store := ledger.NewMemory()
	svc := NewCategoryService(store)

	empty, err := svc.List(ctx)
	require.NoError(t, err)
	assert.NotNil(t, empty)

	fitness, err := svc.Create(ctx, &category.CreateCategoryRequest{Name: " Fitness ", Description: "Move your body every day"})
	require.NoError(t, err)
	assert.Equal(t, "Fitness", fitness.Name)
	reading, err := svc.Create(ctx, &category.CreateCategoryRequest{Name: "Reading", Description: "Books, essays and papers"})
	require.NoError(t, err)

	for _, bad := range []*category.CreateCategoryRequest{
		{Name: "Art", Description: "Draw something new"},
		{Name: "Music", Description: "Too short"},
	} {
		_, err := svc.Create(ctx, bad)
		assert.ErrorIs(t, err, ErrValidation)
	}
	_, err = svc.Create(ctx, &category.CreateCategoryRequest{Name: "Fitness", Description: "Another fitness group"})
	assert.ErrorIs(t, err, ledger.ErrDuplicate)

	all, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	some, err := svc.ByIDs(ctx, []int{reading.ID, 99, reading.ID})
	require.NoError(t, err)
	require.Len(t, some, 1)
	assert.Equal(t, "Reading", some[0].Name)

	_, err = svc.ByIDs(ctx, nil)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = svc.ByIDs(ctx, []int{fitness.ID, 0})
	assert.ErrorIs(t, err, ErrValidation)
}
