package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zenithAPI/internal/challenge"
	"zenithAPI/internal/chat"
	"zenithAPI/internal/ledger"
	"zenithAPI/internal/submission"
)

// scriptedGenerator labels every question with label and answers with
// answer. Prompts are recorded in call order.
type scriptedGenerator struct {
	mu      sync.Mutex
	label   string
	answer  string
	err     error
	prompts []string
}

func (g *scriptedGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, prompt)
	if g.err != nil {
		return "", g.err
	}
	if strings.Contains(prompt, "Answer with the label only.") {
		return g.label, nil
	}
	return g.answer, nil
}

func newChatService(store *ledger.Memory, gen chat.Generator) *ChatService {
	return NewChatService(store, store, store, store, gen)
}

func TestChatAskUserInfoUsesLedger(t *testing.T) {
	ctx := context.Background()
	store := ledger.NewMemory()
	seedCategories(t, store, 1)
	u := newUser(t, store, 0)
	c := newChallenge(t, store, 40, challenge.SubmissionText)
	_, err := NewSubmissionService(store, store, 100).Create(ctx, u.ID, &submission.CreateSubmissionRequest{
		ChallengeID:       c.ID,
		IsChallengeExists: true,
	}, submission.Proofs{Text: "cold and awake"})
	require.NoError(t, err)
	u = mustUser(t, store, u.ID)

	gen := &scriptedGenerator{label: "USER_INFO", answer: "**Great** start, one challenge in review."}
	svc := newChatService(store, gen)

	msg, err := svc.Ask(ctx, u, "  how am I doing?  ")
	require.NoError(t, err)
	assert.Equal(t, chat.QueryUserInfo, msg.QueryType)
	assert.Equal(t, "Great start, one challenge in review.", msg.Response)
	assert.Equal(t, "how am I doing?", msg.Query)

	require.Len(t, gen.prompts, 2)
	assert.Contains(t, gen.prompts[1], "1 submitted")
	assert.Contains(t, gen.prompts[1], "Cold shower: cold and awake")
	assert.Contains(t, gen.prompts[1], "Category 1 1")

	history, err := svc.History(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, msg.ID, history[0].ID)
}

func TestChatAskIrrelevantSkipsAnswer(t *testing.T) {
	ctx := context.Background()
	store := ledger.NewMemory()
	u := newUser(t, store, 0)
	gen := &scriptedGenerator{label: "something odd", answer: "should not be used"}
	svc := newChatService(store, gen)

	msg, err := svc.Ask(ctx, u, "what is the weather in Pune?")
	require.NoError(t, err)
	assert.Equal(t, chat.QueryIrrelevant, msg.QueryType)
	assert.Equal(t, chat.IrrelevantReply, msg.Response)
	assert.Len(t, gen.prompts, 1)
}

func TestChatAskGeneralKeepsUserDataOut(t *testing.T) {
	ctx := context.Background()
	store := ledger.NewMemory()
	u := newUser(t, store, 777)
	gen := &scriptedGenerator{label: "GENERAL", answer: "Start small."}
	svc := newChatService(store, gen)

	_, err := svc.Ask(ctx, u, "how do I stay consistent?")
	require.NoError(t, err)
	require.Len(t, gen.prompts, 2)
	assert.NotContains(t, gen.prompts[1], "777")
}

func TestChatAskValidationAndFailures(t *testing.T) {
	ctx := context.Background()
	store := ledger.NewMemory()
	u := newUser(t, store, 0)

	svc := newChatService(store, &scriptedGenerator{label: "GENERAL"})
	_, err := svc.Ask(ctx, u, "   ")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = svc.Ask(ctx, u, strings.Repeat("a", chat.MaxQueryLength+1))
	assert.ErrorIs(t, err, ErrValidation)

	failing := newChatService(store, &scriptedGenerator{err: errors.New("quota exceeded")})
	_, err = failing.Ask(ctx, u, "tips?")
	assert.ErrorIs(t, err, ErrExternalService)

	history, err := svc.History(ctx, u.ID)
	require.NoError(t, err)
	assert.NotNil(t, history)
	assert.Empty(t, history, "failed questions are not stored")
}
