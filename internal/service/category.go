package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/marketplace/internal/authz"
	"github.com/utafrali/marketplace/internal/domain"
	"github.com/utafrali/marketplace/internal/repository"
	apperrors "github.com/utafrali/marketplace/pkg/errors"
	"github.com/utafrali/marketplace/pkg/slug"
)

// CategoryService manages the category list. Writes are admin-only.
type CategoryService struct {
	categories repository.CategoryRepository
	products   repository.ProductRepository
	logger     *slog.Logger
}

// NewCategoryService creates a new category service.
func NewCategoryService(categories repository.CategoryRepository, products repository.ProductRepository, logger *slog.Logger) *CategoryService {
	return &CategoryService{categories: categories, products: products, logger: logger}
}

// CategoryInput holds the editable category fields.
type CategoryInput struct {
	Name        string
	Description string
}

// ListCategories returns every category.
func (s *CategoryService) ListCategories(ctx context.Context) ([]domain.Category, error) {
	categories, err := s.categories.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}

// CreateCategory adds a category with a name unique ignoring case.
func (s *CategoryService) CreateCategory(ctx context.Context, id *domain.Identity, in CategoryInput) (*domain.Category, error) {
	if err := authz.Authorize(id, authz.Admin()...); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperrors.Validation("category name is required")
	}
	if err := s.ensureNameFree(ctx, name, ""); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	category := &domain.Category{
		ID:          uuid.New().String(),
		Name:        name,
		Slug:        slug.Generate(name),
		Description: in.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.categories.Create(ctx, category); err != nil {
		if errors.Is(err, apperrors.ErrAlreadyExists) {
			return nil, apperrors.DuplicateCategory(name)
		}
		return nil, fmt.Errorf("create category: %w", err)
	}

	s.logger.InfoContext(ctx, "category created", slog.String("category_id", category.ID))
	return category, nil
}

// UpdateCategory renames or re-describes a category.
func (s *CategoryService) UpdateCategory(ctx context.Context, id *domain.Identity, categoryID string, in CategoryInput) (*domain.Category, error) {
	if err := authz.Authorize(id, authz.Admin()...); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperrors.Validation("category name is required")
	}

	category, err := s.categories.GetByID(ctx, categoryID)
	if err != nil {
		return nil, fmt.Errorf("get category by id: %w", err)
	}
	if err := s.ensureNameFree(ctx, name, category.ID); err != nil {
		return nil, err
	}

	category.Name = name
	category.Slug = slug.Generate(name)
	category.Description = in.Description
	category.UpdatedAt = time.Now().UTC()

	if err := s.categories.Update(ctx, category); err != nil {
		if errors.Is(err, apperrors.ErrAlreadyExists) {
			return nil, apperrors.DuplicateCategory(name)
		}
		return nil, fmt.Errorf("update category: %w", err)
	}

	s.logger.InfoContext(ctx, "category updated", slog.String("category_id", category.ID))
	return category, nil
}

// DeleteCategory removes a category no product references. The store
// enforces the reference where it can; the count check covers the rest.
func (s *CategoryService) DeleteCategory(ctx context.Context, id *domain.Identity, categoryID string) error {
	if err := authz.Authorize(id, authz.Admin()...); err != nil {
		return err
	}
	if _, err := s.categories.GetByID(ctx, categoryID); err != nil {
		return fmt.Errorf("get category by id: %w", err)
	}

	inUse, err := s.products.CountByCategory(ctx, categoryID)
	if err != nil {
		return fmt.Errorf("count category products: %w", err)
	}
	if inUse > 0 {
		return apperrors.CategoryInUse(categoryID)
	}

	if err := s.categories.Delete(ctx, categoryID); err != nil {
		return fmt.Errorf("delete category: %w", err)
	}

	s.logger.InfoContext(ctx, "category deleted", slog.String("category_id", categoryID))
	return nil
}

func (s *CategoryService) ensureNameFree(ctx context.Context, name, selfID string) error {
	existing, err := s.categories.GetByName(ctx, name)
	switch {
	case err == nil && existing.ID != selfID:
		return apperrors.DuplicateCategory(name)
	case err != nil && !errors.Is(err, apperrors.ErrNotFound):
		return fmt.Errorf("get category by name: %w", err)
	}
	return nil
}
