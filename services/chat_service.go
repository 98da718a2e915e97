package services

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	log "github.com/sirupsen/logrus"

	"zenithAPI/internal/challenge"
	"zenithAPI/internal/chat"
	"zenithAPI/internal/ledger"
	"zenithAPI/internal/user"
)

// ChatService answers user questions with a language model. Each question is
// classified first; only personal questions pull the user's ledger data into
// the prompt.
type ChatService struct {
	store       ledger.ChatStore
	submissions ledger.SubmissionStore
	challenges  ledger.ChallengeStore
	categories  ledger.CategoryStore
	model       chat.Generator
}

func NewChatService(store ledger.ChatStore, submissions ledger.SubmissionStore, challenges ledger.ChallengeStore,
	categories ledger.CategoryStore, model chat.Generator) *ChatService {
	return &ChatService{
		store:       store,
		submissions: submissions,
		challenges:  challenges,
		categories:  categories,
		model:       model,
	}
}

// Ask classifies and answers query for u, then stores the exchange.
// Irrelevant questions get a fixed reply without a second model call.
func (s *ChatService) Ask(ctx context.Context, u *user.User, query string) (*chat.Message, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is required", ErrValidation)
	}
	if utf8.RuneCountInString(query) > chat.MaxQueryLength {
		return nil, fmt.Errorf("%w: query must be at most %d characters", ErrValidation, chat.MaxQueryLength)
	}

	raw, err := s.model.Generate(ctx, chat.ClassifierPrompt(query))
	if err != nil {
		return nil, fmt.Errorf("%w: classify query: %v", ErrExternalService, err)
	}
	kind := chat.ParseQueryType(raw)
	chatQueriesTotal.WithLabelValues(string(kind)).Inc()

	response := chat.IrrelevantReply
	if kind != chat.QueryIrrelevant {
		var userContext string
		if kind == chat.QueryUserInfo {
			uc, err := s.userContext(ctx, u)
			if err != nil {
				return nil, err
			}
			userContext = uc.String()
		}
		answer, err := s.model.Generate(ctx, chat.AnswerPrompt(kind, query, userContext))
		if err != nil {
			return nil, fmt.Errorf("%w: answer query: %v", ErrExternalService, err)
		}
		response = chat.CleanResponse(answer)
	}

	msg, err := s.store.CreateChatMessage(ctx, &chat.Message{
		UserID:    u.ID,
		Query:     query,
		Response:  response,
		QueryType: kind,
	})
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"user_id": u.ID, "type": kind}).Debug("Chat query answered")
	return msg, nil
}

// History returns the user's exchanges oldest first.
func (s *ChatService) History(ctx context.Context, userID string) ([]*chat.Message, error) {
	list, err := s.store.ListChatMessages(ctx, userID)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []*chat.Message{}
	}
	return list, nil
}

func (s *ChatService) userContext(ctx context.Context, u *user.User) (chat.UserContext, error) {
	subs, err := s.submissions.ListRecentSubmissions(ctx, u.ID, chat.RecentSubmissionLimit)
	if err != nil {
		return chat.UserContext{}, err
	}
	categories, err := s.categories.ListCategories(ctx)
	if err != nil {
		return chat.UserContext{}, err
	}

	challenges := make(map[string]*challenge.Challenge)
	for _, sub := range subs {
		if !sub.IsChallengeExists || sub.ChallengeID == "" {
			continue
		}
		if _, ok := challenges[sub.ChallengeID]; ok {
			continue
		}
		c, err := s.challenges.GetChallenge(ctx, sub.ChallengeID)
		if err != nil {
			log.WithError(err).WithField("challenge_id", sub.ChallengeID).Warn("Skipping challenge in chat context")
			continue
		}
		challenges[c.ID] = c
	}

	return chat.UserContext{User: u, Submissions: subs, Challenges: challenges, Categories: categories}, nil
}
