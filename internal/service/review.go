package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/marketplace/internal/authz"
	"github.com/utafrali/marketplace/internal/domain"
	"github.com/utafrali/marketplace/internal/event"
	"github.com/utafrali/marketplace/internal/repository"
	apperrors "github.com/utafrali/marketplace/pkg/errors"
	"github.com/utafrali/marketplace/pkg/pagination"
)

// ReviewService enforces purchase-gated, one-per-product reviews.
type ReviewService struct {
	reviews  repository.ReviewRepository
	products repository.ProductRepository
	orders   repository.OrderRepository
	users    repository.UserRepository
	events   *event.Emitter
	logger   *slog.Logger
}

// NewReviewService creates a new review service.
func NewReviewService(
	reviews repository.ReviewRepository,
	products repository.ProductRepository,
	orders repository.OrderRepository,
	users repository.UserRepository,
	events *event.Emitter,
	logger *slog.Logger,
) *ReviewService {
	return &ReviewService{
		reviews:  reviews,
		products: products,
		orders:   orders,
		users:    users,
		events:   events,
		logger:   logger,
	}
}

// CreateReviewInput holds the parameters for reviewing a product.
type CreateReviewInput struct {
	ProductID string
	Rating    int
	Comment   string
}

// UpdateReviewInput lists the author-editable review fields.
type UpdateReviewInput struct {
	Rating  *int
	Comment *string
}

// CreateReview records the caller's review of a product they bought. The
// checks run in a fixed order: rating, product, purchase, duplicate.
func (s *ReviewService) CreateReview(ctx context.Context, id *domain.Identity, in CreateReviewInput) (*domain.Review, error) {
	if err := authz.Authorize(id, authz.RequireAuthenticated()); err != nil {
		return nil, err
	}
	if !domain.ValidRating(in.Rating) {
		return nil, apperrors.Validation("invalid rating: must be an integer between 1 and 5")
	}

	if _, err := s.products.GetByID(ctx, in.ProductID); err != nil {
		return nil, fmt.Errorf("get product by id: %w", err)
	}

	bought, err := s.orders.HasPurchase(ctx, id.ID, in.ProductID, domain.PurchaseStatuses())
	if err != nil {
		return nil, fmt.Errorf("check purchase: %w", err)
	}
	if !bought {
		return nil, apperrors.PurchaseRequired()
	}

	exists, err := s.reviews.Exists(ctx, in.ProductID, id.ID)
	if err != nil {
		return nil, fmt.Errorf("check existing review: %w", err)
	}
	if exists {
		return nil, apperrors.DuplicateReview()
	}

	author, err := s.users.GetByID(ctx, id.ID)
	if err != nil {
		return nil, fmt.Errorf("get review author: %w", err)
	}

	now := time.Now().UTC()
	review := &domain.Review{
		ID:        uuid.New().String(),
		ProductID: in.ProductID,
		UserID:    id.ID,
		UserName:  author.Name,
		Rating:    in.Rating,
		Comment:   in.Comment,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.reviews.Create(ctx, review); err != nil {
		if errors.Is(err, apperrors.ErrAlreadyExists) {
			return nil, apperrors.DuplicateReview()
		}
		return nil, fmt.Errorf("create review: %w", err)
	}

	reviewsCreated.Inc()
	s.events.ReviewCreated(ctx, review)
	s.logger.InfoContext(ctx, "review created",
		slog.String("review_id", review.ID),
		slog.String("product_id", review.ProductID),
		slog.Int("rating", review.Rating),
	)
	return review, nil
}

// UpdateReview edits the caller's own review. Admins have no override.
func (s *ReviewService) UpdateReview(ctx context.Context, id *domain.Identity, reviewID string, in UpdateReviewInput) (*domain.Review, error) {
	review, err := s.authoredReview(ctx, id, reviewID)
	if err != nil {
		return nil, err
	}

	if in.Rating != nil {
		if !domain.ValidRating(*in.Rating) {
			return nil, apperrors.Validation("invalid rating: must be an integer between 1 and 5")
		}
		review.Rating = *in.Rating
	}
	if in.Comment != nil {
		review.Comment = *in.Comment
	}
	review.UpdatedAt = time.Now().UTC()

	if err := s.reviews.Update(ctx, review); err != nil {
		return nil, fmt.Errorf("update review: %w", err)
	}
	return review, nil
}

// DeleteReview removes the caller's own review. Admins have no override.
func (s *ReviewService) DeleteReview(ctx context.Context, id *domain.Identity, reviewID string) error {
	if _, err := s.authoredReview(ctx, id, reviewID); err != nil {
		return err
	}
	if err := s.reviews.Delete(ctx, reviewID); err != nil {
		return fmt.Errorf("delete review: %w", err)
	}
	s.logger.InfoContext(ctx, "review deleted", slog.String("review_id", reviewID))
	return nil
}

func (s *ReviewService) authoredReview(ctx context.Context, id *domain.Identity, reviewID string) (*domain.Review, error) {
	if err := authz.Authorize(id, authz.RequireAuthenticated()); err != nil {
		return nil, err
	}
	review, err := s.reviews.GetByID(ctx, reviewID)
	if err != nil {
		return nil, fmt.Errorf("get review by id: %w", err)
	}
	if review.UserID != id.ID {
		return nil, apperrors.Forbidden("only the author may change a review")
	}
	return review, nil
}

// ListProductReviews returns a product's reviews, newest first unless
// sorted by rating. Reviews outlive their product, so the product is only
// looked up when there are none to report it as absent.
func (s *ReviewService) ListProductReviews(ctx context.Context, productID string, sort domain.ReviewSort, page pagination.Params) ([]domain.Review, int, error) {
	reviews, total, err := s.reviews.ListByProduct(ctx, productID, sort, page)
	if err != nil {
		return nil, 0, fmt.Errorf("list product reviews: %w", err)
	}
	if total == 0 {
		if _, err := s.products.GetByID(ctx, productID); err != nil {
			return nil, 0, fmt.Errorf("get product by id: %w", err)
		}
	}
	return reviews, total, nil
}

// ListUserReviews returns the caller's reviews.
func (s *ReviewService) ListUserReviews(ctx context.Context, id *domain.Identity) ([]domain.Review, error) {
	if err := authz.Authorize(id, authz.RequireAuthenticated()); err != nil {
		return nil, err
	}
	reviews, err := s.reviews.ListByUser(ctx, id.ID)
	if err != nil {
		return nil, fmt.Errorf("list user reviews: %w", err)
	}
	return reviews, nil
}

// ListAllReviews returns every review. Admin only.
func (s *ReviewService) ListAllReviews(ctx context.Context, id *domain.Identity, page pagination.Params) ([]domain.Review, int, error) {
	if err := authz.Authorize(id, authz.Admin()...); err != nil {
		return nil, 0, err
	}
	reviews, total, err := s.reviews.List(ctx, page)
	if err != nil {
		return nil, 0, fmt.Errorf("list reviews: %w", err)
	}
	return reviews, total, nil
}
