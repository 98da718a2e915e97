package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"zenithAPI/internal/category"
	"zenithAPI/internal/challenge"
	"zenithAPI/internal/ledger"
	"zenithAPI/internal/media"
	"zenithAPI/internal/moderation"
	"zenithAPI/internal/payout"
	"zenithAPI/internal/user"
)

func newUser(t *testing.T, store *ledger.Memory, points int64) *user.User {
	t.Helper()
	u, err := store.CreateUser(context.Background(), &user.User{
		ClerkID:           "clerk_" + t.Name(),
		Email:             "someone@example.com",
		Username:          "someone",
		TotalPointsEarned: points,
	})
	require.NoError(t, err)
	return u
}

func newChallenge(t *testing.T, store *ledger.Memory, points int64, kind challenge.SubmissionType) *challenge.Challenge {
	t.Helper()
	c, err := store.CreateChallenge(context.Background(), &challenge.Challenge{
		Title:           "Cold shower",
		Description:     "Take a cold shower",
		LongDescription: "Take a five minute cold shower before breakfast",
		CategoryID:      1,
		Points:          points,
		Level:           challenge.LevelBeginner,
		SubmissionType:  kind,
	})
	require.NoError(t, err)
	return c
}

// seedCategories creates n categories; the memory store numbers them 1..n.
func seedCategories(t *testing.T, store *ledger.Memory, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		_, err := store.CreateCategory(context.Background(), &category.Category{
			Name:        fmt.Sprintf("Category %d", i),
			Description: fmt.Sprintf("Challenges of kind %d", i),
		})
		require.NoError(t, err)
	}
}

func mustUser(t *testing.T, store *ledger.Memory, id string) *user.User {
	t.Helper()
	u, err := store.GetUser(context.Background(), id)
	require.NoError(t, err)
	return u
}

type fakeValidator struct {
	mu       sync.Mutex
	response string
	err      error
	calls    int
	last     moderation.Request
	// before runs inside Validate, used to interleave a competing settlement.
	before func()
}

func (f *fakeValidator) Validate(_ context.Context, req moderation.Request) (string, error) {
	f.mu.Lock()
	f.calls++
	f.last = req
	before := f.before
	f.mu.Unlock()
	if before != nil {
		before()
	}
	return f.response, f.err
}

type fakeMedia struct {
	objects map[string][]byte
}

func newFakeMedia() *fakeMedia { return &fakeMedia{objects: map[string][]byte{}} }

func (f *fakeMedia) Save(_ context.Context, key, _ string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	f.objects[key] = data
	return key, nil
}

func (f *fakeMedia) Load(_ context.Context, ref string) ([]byte, error) {
	data, ok := f.objects[ref]
	if !ok {
		return nil, fmt.Errorf("%s: %w", ref, media.ErrNotFound)
	}
	return bytes.Clone(data), nil
}

func (f *fakeMedia) Delete(_ context.Context, ref string) error {
	delete(f.objects, ref)
	return nil
}

type fakeProcessor struct {
	mu           sync.Mutex
	fundAccounts int
	fundErr      error
	payouts      []payout.PayoutRequest
	payoutFn     func(payout.PayoutRequest) (*payout.Payout, error)
}

func (f *fakeProcessor) CreateFundAccount(_ context.Context, _, vpa string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fundErr != nil {
		return "", f.fundErr
	}
	f.fundAccounts++
	return "fa_" + vpa, nil
}

func (f *fakeProcessor) CreatePayout(_ context.Context, req payout.PayoutRequest) (*payout.Payout, error) {
	f.mu.Lock()
	f.payouts = append(f.payouts, req)
	fn := f.payoutFn
	f.mu.Unlock()
	if fn != nil {
		return fn(req)
	}
	return &payout.Payout{ID: "pout_" + req.ReferenceID, Status: "processing", ReferenceID: req.ReferenceID}, nil
}

func (f *fakeProcessor) payoutCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.payouts)
}

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }
