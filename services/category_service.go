package services

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"zenithAPI/internal/category"
	"zenithAPI/internal/ledger"
)

type CategoryService struct {
	store ledger.CategoryStore
}

func NewCategoryService(store ledger.CategoryStore) *CategoryService {
	return &CategoryService{store: store}
}

func (s *CategoryService) Create(ctx context.Context, req *category.CreateCategoryRequest) (*category.Category, error) {
	name := strings.TrimSpace(req.Name)
	description := strings.TrimSpace(req.Description)
	if len(name) < category.MinNameLength {
		return nil, fmt.Errorf("%w: name must be at least %d characters", ErrValidation, category.MinNameLength)
	}
	if len(description) < category.MinDescriptionLength {
		return nil, fmt.Errorf("%w: description must be at least %d characters", ErrValidation, category.MinDescriptionLength)
	}

	created, err := s.store.CreateCategory(ctx, &category.Category{Name: name, Description: description})
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"category_id": created.ID, "name": created.Name}).Info("Category created")
	return created, nil
}

func (s *CategoryService) List(ctx context.Context) ([]*category.Category, error) {
	list, err := s.store.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []*category.Category{}
	}
	return list, nil
}

// ByIDs returns the known categories among ids. At least one id is required.
func (s *CategoryService) ByIDs(ctx context.Context, ids []int) ([]*category.Category, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: at least one categoryId is required", ErrValidation)
	}
	for _, id := range ids {
		if id <= 0 {
			return nil, fmt.Errorf("%w: invalid category id %d", ErrValidation, id)
		}
	}
	list, err := s.store.GetCategoriesByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []*category.Category{}
	}
	return list, nil
}

// requireCategories fails with ErrValidation naming the first unknown id.
func requireCategories(ctx context.Context, store ledger.CategoryStore, ids ...int) error {
	found, err := store.GetCategoriesByIDs(ctx, ids)
	if err != nil {
		return err
	}
	known := make(map[int]bool, len(found))
	for _, c := range found {
		known[c.ID] = true
	}
	for _, id := range ids {
		if !known[id] {
			return fmt.Errorf("%w: unknown category %d", ErrValidation, id)
		}
	}
	return nil
}
