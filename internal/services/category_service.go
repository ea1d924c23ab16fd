package services

import (
	"context"

	"finledger/internal/core"
)

// CategoryService exposes owner-scoped category CRUD.
type CategoryService struct {
	users UserStore
	store CategoryStore
}

func NewCategoryService(users UserStore, store CategoryStore) *CategoryService {
	return &CategoryService{users: users, store: store}
}

func (s *CategoryService) Create(ctx context.Context, name, typ string) (*core.Category, error) {
	owner, err := resolveOwner(ctx, s.users)
	if err != nil {
		return nil, err
	}

	parsed, err := core.ParseTransactionType(typ)
	if err != nil {
		return nil, err
	}

	c := core.Category{Name: name, Type: parsed, UserID: owner.ID}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return s.store.CreateCategory(ctx, c)
}

func (s *CategoryService) Get(ctx context.Context, id int64) (*core.Category, error) {
	owner, err := resolveOwner(ctx, s.users)
	if err != nil {
		return nil, err
	}
	return s.store.GetCategory(ctx, owner.ID, id)
}

func (s *CategoryService) List(ctx context.Context) ([]core.Category, error) {
	owner, err := resolveOwner(ctx, s.users)
	if err != nil {
		return nil, err
	}
	return s.store.ListCategories(ctx, owner.ID)
}

func (s *CategoryService) Update(ctx context.Context, id int64, name, typ string) (*core.Category, error) {
	owner, err := resolveOwner(ctx, s.users)
	if err != nil {
		return nil, err
	}

	parsed, err := core.ParseTransactionType(typ)
	if err != nil {
		return nil, err
	}

	c := core.Category{ID: id, Name: name, Type: parsed, UserID: owner.ID}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return s.store.UpdateCategory(ctx, c)
}

func (s *CategoryService) Delete(ctx context.Context, id int64) error {
	owner, err := resolveOwner(ctx, s.users)
	if err != nil {
		return err
	}
	return s.store.DeleteCategory(ctx, owner.ID, id)
}
