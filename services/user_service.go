package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"

	"zenithAPI/internal/ledger"
	"zenithAPI/internal/user"
)

type UserService struct {
	store      ledger.UserStore
	categories ledger.CategoryStore
}

func NewUserService(store ledger.UserStore, categories ledger.CategoryStore) *UserService {
	return &UserService{store: store, categories: categories}
}

// CreateUser is called from the identity webhook. A replayed webhook returns
// the existing user.
func (s *UserService) CreateUser(ctx context.Context, req *user.CreateUserRequest) (*user.User, error) {
	if strings.TrimSpace(req.ClerkID) == "" {
		return nil, fmt.Errorf("%w: clerkId is required", ErrValidation)
	}

	created, err := s.store.CreateUser(ctx, &user.User{
		ClerkID:  req.ClerkID,
		Email:    strings.TrimSpace(req.Email),
		Username: strings.TrimSpace(req.Username),
		Name:     strings.TrimSpace(req.Name),
		ImageURL: req.ImageURL,
	})
	if err != nil {
		if errors.Is(err, ledger.ErrDuplicate) {
			return s.store.GetUserByClerkID(ctx, req.ClerkID)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	log.WithFields(log.Fields{"user_id": created.ID, "clerk_id": created.ClerkID}).Info("User created")
	return created, nil
}

func (s *UserService) GetUserByClerkID(ctx context.Context, clerkID string) (*user.User, error) {
	return s.store.GetUserByClerkID(ctx, clerkID)
}

// DeactivateUserByClerkID handles an identity-provider deletion. The ledger
// row is kept; the account can no longer use the API.
func (s *UserService) DeactivateUserByClerkID(ctx context.Context, clerkID string) error {
	marked, err := s.store.MarkUserDeleted(ctx, clerkID)
	if err != nil {
		return err
	}
	if marked {
		log.WithField("clerk_id", clerkID).Info("User deactivated")
	}
	return nil
}

// UpdateInterests stores the distinct category ids, sorted. Every id must
// name an existing category.
func (s *UserService) UpdateInterests(ctx context.Context, clerkID string, interests []int) (*user.User, error) {
	seen := make(map[int]struct{}, len(interests))
	ids := make([]int, 0, len(interests))
	for _, id := range interests {
		if id <= 0 {
			return nil, fmt.Errorf("%w: invalid category id %d", ErrValidation, id)
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	if len(ids) < user.MinInterests {
		return nil, fmt.Errorf("%w: pick at least %d interests", ErrValidation, user.MinInterests)
	}
	sort.Ints(ids)
	if err := requireCategories(ctx, s.categories, ids...); err != nil {
		return nil, err
	}

	u, err := s.store.GetUserByClerkID(ctx, clerkID)
	if err != nil {
		return nil, err
	}
	if err := s.store.SetInterests(ctx, u.ID, ids); err != nil {
		return nil, err
	}
	u.Interests = ids
	return u, nil
}
