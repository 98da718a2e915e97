// Package ledger is the storage boundary for users, categories, challenges,
// submissions, reward entries and chat history.
//
// Every counter mutation is expressed as a relative or conditional update
// executed by the store itself. Callers never read a counter, compute a new
// value and write it back.
package ledger

import (
	"context"
	"errors"
	"time"

	"zenithAPI/internal/category"
	"zenithAPI/internal/challenge"
	"zenithAPI/internal/chat"
	"zenithAPI/internal/reward"
	"zenithAPI/internal/submission"
	"zenithAPI/internal/user"
)

var (
	ErrNotFound           = errors.New("record not found")
	ErrAlreadySettled     = errors.New("already settled")
	ErrInsufficientPoints = errors.New("insufficient points")
	ErrDuplicate          = errors.New("record already exists")
)

type UserStore interface {
	CreateUser(ctx context.Context, u *user.User) (*user.User, error)
	GetUser(ctx context.Context, id string) (*user.User, error)
	GetUserByClerkID(ctx context.Context, clerkID string) (*user.User, error)
	// MarkUserDeleted stamps deleted_at once; the user row is never removed.
	// It reports whether this call did the stamping.
	MarkUserDeleted(ctx context.Context, clerkID string) (bool, error)
	SetInterests(ctx context.Context, userID string, interests []int) error

	// ListStaleStreaks returns ids of users with a live streak whose last
	// submission is older than cutoff, ordered by id and starting after afterID.
	ListStaleStreaks(ctx context.Context, cutoff time.Time, afterID string, limit int) ([]string, error)
	// ResetStreakIfStale zeroes currentStreak only if the user still has a
	// live streak and still has not submitted since cutoff.
	ResetStreakIfStale(ctx context.Context, userID string, cutoff time.Time) (bool, error)
}

type ChallengeStore interface {
	CreateChallenge(ctx context.Context, c *challenge.Challenge) (*challenge.Challenge, error)
	GetChallenge(ctx context.Context, id string) (*challenge.Challenge, error)
	ListChallenges(ctx context.Context, categoryID int) ([]*challenge.Challenge, error)
}

type CategoryStore interface {
	// CreateCategory returns ErrDuplicate when the name is taken.
	CreateCategory(ctx context.Context, c *category.Category) (*category.Category, error)
	ListCategories(ctx context.Context) ([]*category.Category, error)
	// GetCategoriesByIDs returns the categories that exist, ordered by id.
	// Unknown ids are skipped.
	GetCategoriesByIDs(ctx context.Context, ids []int) ([]*category.Category, error)
}

type ChatStore interface {
	CreateChatMessage(ctx context.Context, msg *chat.Message) (*chat.Message, error)
	// ListChatMessages returns a user's history oldest first.
	ListChatMessages(ctx context.Context, userID string) ([]*chat.Message, error)
}

type SubmissionStore interface {
	// CreateSubmission persists a PENDING submission and applies the
	// submit effect to its user in the same atomic unit.
	CreateSubmission(ctx context.Context, s *submission.Submission) (*submission.Submission, error)
	GetSubmission(ctx context.Context, id string) (*submission.Submission, error)
	ListRecentSubmissions(ctx context.Context, userID string, limit int) ([]*submission.Submission, error)
	GetUserSubmissionForChallenge(ctx context.Context, userID, challengeID string) (*submission.Submission, error)

	// NextModerationCandidate returns the oldest pending submission with an
	// image proof that was never moderated or last attempted before
	// attemptedBefore. ErrNotFound when there is none.
	NextModerationCandidate(ctx context.Context, attemptedBefore time.Time) (*submission.Submission, error)
	MarkModerationAttempt(ctx context.Context, id string, at time.Time) error

	// SettleSubmission moves a PENDING submission to a terminal status and
	// applies the settlement effect exactly once. ErrAlreadySettled when the
	// stored status is no longer PENDING.
	SettleSubmission(ctx context.Context, st submission.Settlement) (*submission.Submission, error)
}

type RewardStore interface {
	// ReserveAndCreateEntry debits the entry's points from the user only if
	// enough are available, then inserts the PENDING entry.
	ReserveAndCreateEntry(ctx context.Context, e *reward.Entry) (*reward.Entry, error)
	GetRewardEntry(ctx context.Context, id string) (*reward.Entry, error)
	GetRewardEntryByKey(ctx context.Context, idempotencyKey string) (*reward.Entry, error)
	GetRewardEntryByPayoutID(ctx context.Context, payoutID string) (*reward.Entry, error)
	ListRewardEntries(ctx context.Context, userID string) ([]*reward.Entry, error)
	ListPendingRewardEntries(ctx context.Context, createdBefore time.Time, limit int) ([]*reward.Entry, error)
	SetRewardPayoutID(ctx context.Context, id, payoutID string) error
	// PinRewardFundAccount records the payout destination on a PENDING entry
	// unless one is already recorded, and returns the recorded one.
	PinRewardFundAccount(ctx context.Context, id, fundAccountID string) (string, error)

	// FinalizeRewardEntry moves a PENDING entry to COMPLETED or FAILED,
	// releasing the reservation on FAILED. A terminal entry is returned
	// unchanged with changed=false.
	FinalizeRewardEntry(ctx context.Context, id string, status reward.Status, reason string) (e *reward.Entry, changed bool, err error)

	GetDestination(ctx context.Context, vpaAddress, contactID string) (*reward.Destination, error)
	SaveDestination(ctx context.Context, d *reward.Destination) (*reward.Destination, error)
}

type Store interface {
	UserStore
	ChallengeStore
	CategoryStore
	SubmissionStore
	RewardStore
	ChatStore
	Ping(ctx context.Context) error
}
