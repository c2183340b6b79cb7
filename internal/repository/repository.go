// Package repository defines the persistence interfaces of the marketplace.
// Implementations return apperrors.ErrNotFound for missing rows and
// apperrors.AlreadyExists for unique violations; services translate both
// into the domain error taxonomy.
package repository

import (
	"context"

	"github.com/utafrali/marketplace/internal/domain"
	"github.com/utafrali/marketplace/pkg/pagination"
)

// UserRepository defines the interface for user persistence operations.
type UserRepository interface {
	// Create inserts a new user. A taken email yields AlreadyExists.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by their unique identifier.
	GetByID(ctx context.Context, id string) (*domain.User, error)

	// GetByEmail retrieves a user by exact email match.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// Update persists name, approval and ban flags.
	Update(ctx context.Context, user *domain.User) error

	// Delete removes a user.
	Delete(ctx context.Context, id string) error

	// List returns users matching filter, newest first, with the total count.
	List(ctx context.Context, filter domain.UserFilter, page pagination.Params) ([]domain.User, int, error)

	// Names maps each known id to the user's name. Unknown ids are absent.
	Names(ctx context.Context, ids []string) (map[string]string, error)

	// Counts returns the per-role and moderation counts of all users.
	Counts(ctx context.Context) (domain.UserCounts, error)
}

// CategoryRepository defines the interface for category persistence operations.
type CategoryRepository interface {
	// Create inserts a category. A name clash ignoring case yields AlreadyExists.
	Create(ctx context.Context, c *domain.Category) error

	// GetByID retrieves a category by its unique identifier.
	GetByID(ctx context.Context, id string) (*domain.Category, error)

	// GetByName retrieves a category by case-insensitive name.
	GetByName(ctx context.Context, name string) (*domain.Category, error)

	// Update persists name, slug and description.
	Update(ctx context.Context, c *domain.Category) error

	// Delete removes a category. A category still referenced by products
	// yields CategoryInUse where the store can enforce it.
	Delete(ctx context.Context, id string) error

	// List returns all categories ordered by name.
	List(ctx context.Context) ([]domain.Category, error)
}

// ProductRepository defines the interface for product persistence operations.
type ProductRepository interface {
	// Create inserts a new product.
	Create(ctx context.Context, p *domain.Product) error

	// GetByID retrieves a product regardless of its active flag.
	GetByID(ctx context.Context, id string) (*domain.Product, error)

	// GetByIDs retrieves the existing products among ids.
	GetByIDs(ctx context.Context, ids []string) ([]domain.Product, error)

	// Update persists every mutable product field.
	Update(ctx context.Context, p *domain.Product) error

	// Delete removes a product.
	Delete(ctx context.Context, id string) error

	// List returns products matching filter, newest first, with the total count.
	List(ctx context.Context, filter domain.ProductFilter, page pagination.Params) ([]domain.Product, int, error)

	// IDsBySeller returns the ids of every product owned by sellerID.
	IDsBySeller(ctx context.Context, sellerID string) ([]string, error)

	// DeleteBySeller removes every product owned by sellerID.
	DeleteBySeller(ctx context.Context, sellerID string) (int64, error)

	// CountByCategory returns the number of products referencing categoryID.
	CountByCategory(ctx context.Context, categoryID string) (int, error)

	// Counts returns the total and active product counts.
	Counts(ctx context.Context) (total, active int, err error)
}

// OrderRepository defines the interface for order persistence operations.
type OrderRepository interface {
	// Create inserts an order together with its items atomically.
	Create(ctx context.Context, o *domain.Order) error

	// GetByID retrieves an order with its items.
	GetByID(ctx context.Context, id string) (*domain.Order, error)

	// GetByPaymentIntent retrieves the order carrying paymentIntentID.
	GetByPaymentIntent(ctx context.Context, paymentIntentID string) (*domain.Order, error)

	// List returns orders matching filter, newest first, with the total count.
	List(ctx context.Context, filter domain.OrderFilter, page pagination.Params) ([]domain.Order, int, error)

	// UpdateStatus moves the order from status from to status to, setting
	// the tracking number when non-nil. It returns ErrNotFound when the
	// order is absent or no longer in status from.
	UpdateStatus(ctx context.Context, id string, from, to domain.OrderStatus, trackingNumber *string) error

	// AttachPaymentIntent records paymentIntentID on a pending order. It
	// returns ErrNotFound when the order is absent or no longer pending.
	AttachPaymentIntent(ctx context.Context, id, paymentIntentID string) error

	// HasPurchase reports whether userID has an order containing productID
	// in one of statuses.
	HasPurchase(ctx context.Context, userID, productID string, statuses []domain.OrderStatus) (bool, error)

	// Totals returns the order count and the sum of all order totals.
	Totals(ctx context.Context) (count int, revenue int64, err error)
}

// ReviewRepository defines the interface for review persistence operations.
type ReviewRepository interface {
	// Create inserts a review. A second review for the same (product, user)
	// pair yields AlreadyExists.
	Create(ctx context.Context, r *domain.Review) error

	// GetByID retrieves a review by its unique identifier.
	GetByID(ctx context.Context, id string) (*domain.Review, error)

	// Exists reports whether userID already reviewed productID.
	Exists(ctx context.Context, productID, userID string) (bool, error)

	// Update persists rating and comment.
	Update(ctx context.Context, r *domain.Review) error

	// Delete removes a review.
	Delete(ctx context.Context, id string) error

	// ListByProduct returns a product's reviews in the requested order.
	ListByProduct(ctx context.Context, productID string, sort domain.ReviewSort, page pagination.Params) ([]domain.Review, int, error)

	// ListByUser returns every review written by userID, newest first.
	ListByUser(ctx context.Context, userID string) ([]domain.Review, error)

	// List returns all reviews, newest first, with the total count.
	List(ctx context.Context, page pagination.Params) ([]domain.Review, int, error)

	// RatingCounts returns per-star review counts for each product id.
	// Products without reviews are absent from the map.
	RatingCounts(ctx context.Context, productIDs []string) (map[string][5]int, error)
}
