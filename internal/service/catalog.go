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
	"github.com/utafrali/marketplace/internal/event"
	"github.com/utafrali/marketplace/internal/repository"
	"github.com/utafrali/marketplace/internal/search"
	apperrors "github.com/utafrali/marketplace/pkg/errors"
	"github.com/utafrali/marketplace/pkg/pagination"
)

// CatalogService implements product listing and seller product management.
type CatalogService struct {
	products   repository.ProductRepository
	categories repository.CategoryRepository
	reviews    repository.ReviewRepository
	index      search.Index
	events     *event.Emitter
	logger     *slog.Logger
}

// NewCatalogService creates a new catalog service. A nil index disables
// search mirroring.
func NewCatalogService(
	products repository.ProductRepository,
	categories repository.CategoryRepository,
	reviews repository.ReviewRepository,
	index search.Index,
	events *event.Emitter,
	logger *slog.Logger,
) *CatalogService {
	if index == nil {
		index = search.NoopIndex{}
	}
	return &CatalogService{
		products:   products,
		categories: categories,
		reviews:    reviews,
		index:      index,
		events:     events,
		logger:     logger,
	}
}

// ListProductsInput holds catalog listing criteria.
type ListProductsInput struct {
	CategoryID string
	SellerID   string
	Search     string
	// IncludeInactive is honoured for admins only.
	IncludeInactive bool
	Page            pagination.Params
}

// CreateProductInput holds the parameters for creating a product.
type CreateProductInput struct {
	Name        string
	Description string
	Price       int64
	CategoryID  string
	Weight      float64
	Dimensions  domain.Dimensions
	Images      []string
	IsActive    *bool
	Stock       int
}

// ListProducts returns one page of the catalog. Inactive products are
// visible only in a seller's own listing and in the admin view.
func (s *CatalogService) ListProducts(ctx context.Context, id *domain.Identity, in ListProductsInput) ([]domain.Product, int, error) {
	filter := domain.ProductFilter{
		CategoryID: in.CategoryID,
		SellerID:   in.SellerID,
		Search:     strings.TrimSpace(in.Search),
	}
	ownListing := id != nil && in.SellerID != "" && in.SellerID == id.ID
	filter.IncludeInactive = ownListing || (id.IsAdmin() && in.IncludeInactive)

	products, total, err := s.products.List(ctx, filter, in.Page)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	if err := s.attachReviewStats(ctx, products); err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

// GetProduct returns a product with fresh review statistics.
func (s *CatalogService) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	product, err := s.products.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get product by id: %w", err)
	}

	one := []domain.Product{*product}
	if err := s.attachReviewStats(ctx, one); err != nil {
		return nil, err
	}
	return &one[0], nil
}

// SearchProducts runs a full-text search over active products. Without a
// search index it falls back to the store's substring search.
func (s *CatalogService) SearchProducts(ctx context.Context, query, categoryID string, page pagination.Params) ([]domain.Product, int, error) {
	res, err := s.index.Search(ctx, search.Query{Text: query, CategoryID: categoryID, Page: page.Page, PerPage: page.PerPage})
	if errors.Is(err, search.ErrDisabled) {
		return s.ListProducts(ctx, nil, ListProductsInput{Search: query, CategoryID: categoryID, Page: page})
	}
	if err != nil {
		return nil, 0, apperrors.Upstream("search index", err)
	}

	found, err := s.products.GetByIDs(ctx, res.IDs)
	if err != nil {
		return nil, 0, fmt.Errorf("load search hits: %w", err)
	}
	byID := make(map[string]domain.Product, len(found))
	for _, p := range found {
		byID[p.ID] = p
	}

	// Keep relevance order and drop hits the index still holds after a
	// deactivation it has not seen yet.
	products := make([]domain.Product, 0, len(res.IDs))
	for _, id := range res.IDs {
		if p, ok := byID[id]; ok && p.IsActive {
			products = append(products, p)
		}
	}
	if err := s.attachReviewStats(ctx, products); err != nil {
		return nil, 0, err
	}
	return products, res.Total, nil
}

// CreateProduct lists a product for the calling approved seller.
func (s *CatalogService) CreateProduct(ctx context.Context, id *domain.Identity, in CreateProductInput) (*domain.Product, error) {
	if err := authz.Authorize(id, authz.ApprovedSeller()...); err != nil {
		return nil, err
	}

	if strings.TrimSpace(in.Name) == "" {
		return nil, apperrors.Validation("product name is required")
	}
	if err := validateProductNumbers(in.Price, in.Weight, in.Dimensions, in.Stock); err != nil {
		return nil, err
	}
	if err := s.requireCategory(ctx, in.CategoryID); err != nil {
		return nil, err
	}

	isActive := true
	if in.IsActive != nil {
		isActive = *in.IsActive
	}

	now := time.Now().UTC()
	product := &domain.Product{
		ID:          uuid.New().String(),
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Price:       in.Price,
		CategoryID:  in.CategoryID,
		Weight:      in.Weight,
		Dimensions:  in.Dimensions,
		Images:      append([]string{}, in.Images...),
		SellerID:    id.ID,
		IsActive:    isActive,
		Stock:       in.Stock,
		ReviewStats: domain.NewReviewStats([5]int{}),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.products.Create(ctx, product); err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}

	s.mirror(ctx, product)
	s.events.ProductCreated(ctx, product)
	s.logger.InfoContext(ctx, "product created",
		slog.String("product_id", product.ID),
		slog.String("seller_id", product.SellerID),
	)
	return product, nil
}

// UpdateProduct applies the allow-listed fields of in. Absence and foreign
// ownership are reported identically.
func (s *CatalogService) UpdateProduct(ctx context.Context, id *domain.Identity, productID string, in domain.ProductUpdate) (*domain.Product, error) {
	if err := authz.Authorize(id, authz.RequireAuthenticated()); err != nil {
		return nil, err
	}

	product, err := s.products.GetByID(ctx, productID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFoundOrForbidden("product", productID)
		}
		return nil, fmt.Errorf("get product by id: %w", err)
	}
	if authz.Authorize(id, authz.RequireOwnerOrAdmin(product.SellerID)) != nil {
		return nil, apperrors.NotFoundOrForbidden("product", productID)
	}

	in.Apply(product)
	if strings.TrimSpace(product.Name) == "" {
		return nil, apperrors.Validation("product name is required")
	}
	if err := validateProductNumbers(product.Price, product.Weight, product.Dimensions, product.Stock); err != nil {
		return nil, err
	}
	if in.CategoryID != nil {
		if err := s.requireCategory(ctx, *in.CategoryID); err != nil {
			return nil, err
		}
	}
	product.UpdatedAt = time.Now().UTC()

	if err := s.products.Update(ctx, product); err != nil {
		return nil, fmt.Errorf("update product: %w", err)
	}

	s.mirror(ctx, product)
	s.events.ProductUpdated(ctx, product)
	s.logger.InfoContext(ctx, "product updated", slog.String("product_id", product.ID))

	one := []domain.Product{*product}
	if err := s.attachReviewStats(ctx, one); err != nil {
		return nil, err
	}
	return &one[0], nil
}

// DeleteProduct removes a product owned by the caller, or any product for
// an admin.
func (s *CatalogService) DeleteProduct(ctx context.Context, id *domain.Identity, productID string) error {
	if err := authz.Authorize(id, authz.RequireAuthenticated()); err != nil {
		return err
	}

	product, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return fmt.Errorf("get product by id: %w", err)
	}
	if err := authz.Authorize(id, authz.RequireOwnerOrAdmin(product.SellerID)); err != nil {
		return err
	}

	if err := s.products.Delete(ctx, productID); err != nil {
		return fmt.Errorf("delete product: %w", err)
	}

	s.unmirror(ctx, productID)
	s.events.ProductDeleted(ctx, product)
	s.logger.InfoContext(ctx, "product deleted",
		slog.String("product_id", productID),
		slog.String("deleted_by", id.ID),
	)
	return nil
}

// attachReviewStats sets freshly derived review statistics on every product.
// It is the only place product read models get their stats.
func (s *CatalogService) attachReviewStats(ctx context.Context, products []domain.Product) error {
	if len(products) == 0 {
		return nil
	}
	ids := make([]string, len(products))
	for i := range products {
		ids[i] = products[i].ID
	}

	counts, err := s.reviews.RatingCounts(ctx, ids)
	if err != nil {
		return fmt.Errorf("load review stats: %w", err)
	}
	for i := range products {
		products[i].ReviewStats = domain.NewReviewStats(counts[products[i].ID])
	}
	return nil
}

func (s *CatalogService) requireCategory(ctx context.Context, categoryID string) error {
	if categoryID == "" {
		return apperrors.Validation("category_id is required")
	}
	if _, err := s.categories.GetByID(ctx, categoryID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.Validation(fmt.Sprintf("category %s does not exist", categoryID))
		}
		return fmt.Errorf("get category by id: %w", err)
	}
	return nil
}

func validateProductNumbers(price int64, weight float64, dims domain.Dimensions, stock int) error {
	switch {
	case price < 0:
		return apperrors.Validation("price must not be negative")
	case weight < 0:
		return apperrors.Validation("weight must not be negative")
	case !dims.NonNegative():
		return apperrors.Validation("dimensions must not be negative")
	case stock < 0:
		return apperrors.Validation("stock must not be negative")
	}
	return nil
}

// mirror and unmirror keep the search index in step with the store. Index
// failures never fail the write.
func (s *CatalogService) mirror(ctx context.Context, p *domain.Product) {
	if err := s.index.Index(ctx, p); err != nil {
		s.logger.WarnContext(ctx, "failed to index product",
			slog.String("product_id", p.ID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *CatalogService) unmirror(ctx context.Context, productID string) {
	if err := s.index.Delete(ctx, productID); err != nil {
		s.logger.WarnContext(ctx, "failed to remove product from index",
			slog.String("product_id", productID),
			slog.String("error", err.Error()),
		)
	}
}
