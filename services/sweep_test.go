package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zenithAPI/internal/challenge"
	"zenithAPI/internal/ledger"
	"zenithAPI/internal/moderation"
	"zenithAPI/internal/submission"
	"zenithAPI/internal/user"
)

func TestStreakCutoff(t *testing.T) {
	kolkata, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)

	// 2024-03-10 01:00 in Kolkata is still 2024-03-09 in UTC.
	now := time.Date(2024, 3, 9, 19, 30, 0, 0, time.UTC)
	cutoff := StreakCutoff(now, kolkata)
	assert.Equal(t, time.Date(2024, 3, 9, 0, 0, 0, 0, kolkata), cutoff)

	assert.Equal(t, time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC), StreakCutoff(now, time.UTC))
}

func TestStreakSweep(t *testing.T) {
	ctx := context.Background()
	store := ledger.NewMemory()
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	cutoff := StreakCutoff(now, time.UTC)

	at := func(d time.Duration) *time.Time { ts := cutoff.Add(d); return &ts }
	mk := func(clerkID string, streak int, last *time.Time) string {
		u, err := store.CreateUser(ctx, &user.User{
			ClerkID:         clerkID,
			CurrentStreak:   streak,
			LongestStreak:   streak + 2,
			LastSubmittedAt: last,
		})
		require.NoError(t, err)
		return u.ID
	}

	stale := mk("stale", 4, at(-time.Minute))
	veryStale := mk("very_stale", 9, at(-72*time.Hour))
	yesterday := mk("yesterday", 3, at(time.Hour))
	exactlyCutoff := mk("boundary", 2, at(0))
	neverSubmitted := mk("never", 0, nil)

	sweep := NewStreakSweep(store, time.UTC)
	sweep.now = fixedClock(now)
	require.NoError(t, sweep.Run(ctx))

	assert.Equal(t, 0, mustUser(t, store, stale).CurrentStreak)
	assert.Equal(t, 0, mustUser(t, store, veryStale).CurrentStreak)
	assert.Equal(t, 11, mustUser(t, store, veryStale).LongestStreak)
	assert.Equal(t, 3, mustUser(t, store, yesterday).CurrentStreak)
	assert.Equal(t, 2, mustUser(t, store, exactlyCutoff).CurrentStreak)
	assert.Equal(t, 0, mustUser(t, store, neverSubmitted).CurrentStreak)

	// Running again changes nothing.
	require.NoError(t, sweep.Run(ctx))
	assert.Equal(t, 3, mustUser(t, store, yesterday).CurrentStreak)
}

func TestStreakSweepStopsWhenCancelled(t *testing.T) {
	store := ledger.NewMemory()
	ts := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	u, err := store.CreateUser(context.Background(), &user.User{ClerkID: "c", CurrentStreak: 5, LongestStreak: 5, LastSubmittedAt: &ts})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = NewStreakSweep(store, time.UTC).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 5, mustUser(t, store, u.ID).CurrentStreak)
}

type moderationFixture struct {
	store       *ledger.Memory
	media       *fakeMedia
	validator   *fakeValidator
	submissions *SubmissionService
	sweep       *ModerationSweep
	user        *user.User
	challenge   *challenge.Challenge
}

func newModerationFixture(t *testing.T) *moderationFixture {
	t.Helper()
	store := ledger.NewMemory()
	f := &moderationFixture{
		store:     store,
		media:     newFakeMedia(),
		validator: &fakeValidator{},
		user:      newUser(t, store, 0),
		challenge: newChallenge(t, store, 40, challenge.SubmissionImage),
	}
	f.submissions = NewSubmissionService(store, store, 100)
	f.sweep = NewModerationSweep(store, store, f.media, f.validator, f.submissions,
		ModerationSweepConfig{RetryAfter: 6 * time.Hour, Batch: 5})
	return f
}

func (f *moderationFixture) submit(t *testing.T, custom bool) *submission.Submission {
	t.Helper()
	key := "submissions/" + f.user.ID + "/images/" + t.Name() + ".jpg"
	f.media.objects[key] = []byte("jpeg bytes")

	req := &submission.CreateSubmissionRequest{ChallengeID: f.challenge.ID, IsChallengeExists: true}
	if custom {
		req = &submission.CreateSubmissionRequest{ChallengeName: "Read a book"}
	}
	sub, err := f.submissions.Create(context.Background(), f.user.ID, req,
		submission.Proofs{Text: "did it", Images: []string{key}})
	require.NoError(t, err)
	return sub
}

func (f *moderationFixture) status(t *testing.T, id string) submission.Status {
	t.Helper()
	sub, err := f.store.GetSubmission(context.Background(), id)
	require.NoError(t, err)
	return sub.Status
}

func TestModerationSweepAccept(t *testing.T) {
	f := newModerationFixture(t)
	sub := f.submit(t, false)
	f.validator.response = `{"isValid": true, "reason": "Looks right", "suggestedStatus": "COMPLETED"}`

	require.NoError(t, f.sweep.Run(context.Background()))

	settled, err := f.store.GetSubmission(context.Background(), sub.ID)
	require.NoError(t, err)
	assert.Equal(t, submission.StatusCompleted, settled.Status)
	require.NotNil(t, settled.SettledBy)
	assert.Equal(t, submission.SourceAuto, *settled.SettledBy)
	require.NotNil(t, settled.Remarks)
	assert.Equal(t, "Looks right", *settled.Remarks)

	assert.Equal(t, f.challenge.LongDescription, f.validator.last.ChallengeContext)
	require.Len(t, f.validator.last.Images, 1)
	assert.Equal(t, "image/jpeg", f.validator.last.Images[0].MIMEType)
	assert.Equal(t, int64(40), mustUser(t, f.store, f.user.ID).TotalPointsEarned)
}

func TestModerationSweepRejectCustom(t *testing.T) {
	f := newModerationFixture(t)
	sub := f.submit(t, true)
	f.validator.response = "```json\n{\"isValid\": false, \"reason\": \"No book visible\", \"suggestedStatus\": \"REJECTED\"}\n```"

	require.NoError(t, f.sweep.Run(context.Background()))

	assert.Equal(t, submission.StatusRejected, f.status(t, sub.ID))
	assert.Equal(t, moderation.CustomSubmissionContext, f.validator.last.ChallengeContext)
	u := mustUser(t, f.store, f.user.ID)
	assert.Equal(t, int64(0), u.TotalPointsEarned)
	assert.Equal(t, 1, u.ChallengesRejected)
}

func TestModerationSweepLeavesPending(t *testing.T) {
	tests := []struct {
		name     string
		response string
		err      error
	}{
		{name: "unparseable", response: "I think this is fine"},
		{name: "contradictory", response: `{"isValid": true, "reason": "ok", "suggestedStatus": "REJECTED"}`},
		{name: "validator failure", err: errors.New("quota exceeded")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newModerationFixture(t)
			sub := f.submit(t, false)
			f.validator.response, f.validator.err = tt.response, tt.err

			require.NoError(t, f.sweep.Run(context.Background()))
			assert.Equal(t, submission.StatusPending, f.status(t, sub.ID))
			assert.Equal(t, 1, f.validator.calls)
			assert.Equal(t, 1, mustUser(t, f.store, f.user.ID).ChallengesInReview)

			// The attempt is recorded so the next run inside the retry window skips it.
			require.NoError(t, f.sweep.Run(context.Background()))
			assert.Equal(t, 1, f.validator.calls)

			f.sweep.now = fixedClock(time.Now().Add(7 * time.Hour))
			require.NoError(t, f.sweep.Run(context.Background()))
			assert.Equal(t, 2, f.validator.calls)
		})
	}
}

func TestModerationSweepLostRace(t *testing.T) {
	f := newModerationFixture(t)
	sub := f.submit(t, false)
	f.validator.response = `{"isValid": true, "reason": "ok", "suggestedStatus": "COMPLETED"}`
	f.validator.before = func() {
		_, err := f.submissions.Settle(context.Background(), sub.ID, submission.StatusRejected, "manual", submission.SourceManual)
		require.NoError(t, err)
	}

	require.NoError(t, f.sweep.Run(context.Background()))

	settled, err := f.store.GetSubmission(context.Background(), sub.ID)
	require.NoError(t, err)
	assert.Equal(t, submission.StatusRejected, settled.Status)
	assert.Equal(t, submission.SourceManual, *settled.SettledBy)

	u := mustUser(t, f.store, f.user.ID)
	assert.Equal(t, int64(0), u.TotalPointsEarned)
	assert.Equal(t, 0, u.ChallengesInReview)
	assert.True(t, u.LedgerConsistent())
}

func TestModerationSweepSkipsTextOnly(t *testing.T) {
	f := newModerationFixture(t)
	textOnly := newChallenge(t, f.store, 10, challenge.SubmissionText)
	_, err := f.submissions.Create(context.Background(), f.user.ID,
		&submission.CreateSubmissionRequest{ChallengeID: textOnly.ID, IsChallengeExists: true},
		submission.Proofs{Text: "no images here"})
	require.NoError(t, err)

	require.NoError(t, f.sweep.Run(context.Background()))
	assert.Zero(t, f.validator.calls)
}

func TestModerationSweepMissingMedia(t *testing.T) {
	f := newModerationFixture(t)
	sub := f.submit(t, false)
	f.media.objects = map[string][]byte{}
	f.validator.response = `{"isValid": true, "reason": "ok", "suggestedStatus": "COMPLETED"}`

	require.NoError(t, f.sweep.Run(context.Background()))
	assert.Zero(t, f.validator.calls)
	assert.Equal(t, submission.StatusPending, f.status(t, sub.ID))
}

func TestModerationSweepBatch(t *testing.T) {
	f := newModerationFixture(t)
	f.validator.response = `{"isValid": true, "reason": "ok", "suggestedStatus": "COMPLETED"}`
	t0 := time.Now().Add(-time.Hour)
	f.submissions.now = fixedClock(t0)
	first := f.submit(t, false)
	f.submissions.now = fixedClock(t0.Add(time.Minute))
	second := f.submit(t, true)

	f.sweep.batch = 1
	require.NoError(t, f.sweep.Run(context.Background()))
	assert.Equal(t, submission.StatusCompleted, f.status(t, first.ID))
	assert.Equal(t, submission.StatusPending, f.status(t, second.ID))

	require.NoError(t, f.sweep.Run(context.Background()))
	assert.Equal(t, submission.StatusCompleted, f.status(t, second.ID))
}

func TestModerationSweepCancelled(t *testing.T) {
	f := newModerationFixture(t)
	sub := f.submit(t, false)
	f.validator.response = `{"isValid": true, "reason": "ok", "suggestedStatus": "COMPLETED"}`

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, f.sweep.Run(ctx), context.Canceled)
	assert.Zero(t, f.validator.calls)
	assert.Equal(t, submission.StatusPending, f.status(t, sub.ID))
}
