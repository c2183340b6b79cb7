//go:build integration

package postgres

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/utafrali/marketplace/internal/domain"
	"github.com/utafrali/marketplace/internal/repository/postgres/migrations"
	"github.com/utafrali/marketplace/pkg/database"
	apperrors "github.com/utafrali/marketplace/pkg/errors"
	"github.com/utafrali/marketplace/pkg/pagination"
)

// setupDB starts a Postgres container, applies the migrations and returns a
// pool that is closed with the test.
func setupDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("marketplace"),
		tcpostgres.WithUsername("marketplace"),
		tcpostgres.WithPassword("marketplace"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	pool, err := database.NewPostgresPool(ctx, database.PostgresConfig{URL: dsn}, logger)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	applied, err := database.RunMigrations(ctx, pool, migrations.FS, logger)
	require.NoError(t, err)
	require.Len(t, applied, 5)

	again, err := database.RunMigrations(ctx, pool, migrations.FS, logger)
	require.NoError(t, err)
	assert.Empty(t, again)

	return pool
}

func newUser(role string) *domain.User {
	now := time.Now().UTC()
	return &domain.User{
		ID:           uuid.NewString(),
		Email:        uuid.NewString() + "@example.com",
		PasswordHash: "hash",
		Name:         "User " + role,
		Role:         role,
		IsApproved:   domain.ApprovedOnRegistration(role),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestIntegration_MarketplaceFlow(t *testing.T) {
	pool := setupDB(t)
	ctx := context.Background()
	db := database.WithTracing(pool, "postgresql")

	users := NewUserRepository(db)
	categories := NewCategoryRepository(db)
	products := NewProductRepository(db)
	orders := NewOrderRepository(db)
	reviews := NewReviewRepository(db)

	seller := newUser(domain.RoleSeller)
	seller.IsApproved = true
	buyer := newUser(domain.RoleCustomer)
	require.NoError(t, users.Create(ctx, seller))
	require.NoError(t, users.Create(ctx, buyer))

	dup := newUser(domain.RoleCustomer)
	dup.Email = buyer.Email
	assert.ErrorIs(t, users.Create(ctx, dup), apperrors.ErrAlreadyExists)

	now := time.Now().UTC()
	books := &domain.Category{ID: uuid.NewString(), Name: "Books", Slug: "books", CreatedAt: now, UpdatedAt: now}
	require.NoError(t, categories.Create(ctx, books))
	clash := &domain.Category{ID: uuid.NewString(), Name: "BOOKS", Slug: "books", CreatedAt: now, UpdatedAt: now}
	assert.ErrorIs(t, categories.Create(ctx, clash), apperrors.ErrAlreadyExists)

	product := &domain.Product{
		ID: uuid.NewString(), Name: "Go in Practice", Price: 3500, CategoryID: books.ID,
		Images: []string{"cover.png"}, SellerID: seller.ID, IsActive: true, Stock: 3,
		CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, products.Create(ctx, product))

	// A referenced category cannot be deleted.
	assert.ErrorIs(t, categories.Delete(ctx, books.ID), apperrors.ErrCategoryInUse)

	intent := "pi_integration"
	order := &domain.Order{
		ID:     uuid.NewString(),
		UserID: buyer.ID,
		Items: []domain.OrderItem{
			{ProductID: product.ID, Name: product.Name, Image: "cover.png", Quantity: 2, Price: 3500},
		},
		Total:           7000,
		Status:          domain.OrderStatusPending,
		PaymentIntentID: &intent,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	require.NoError(t, orders.Create(ctx, order))

	bought, err := orders.HasPurchase(ctx, buyer.ID, product.ID, domain.PurchaseStatuses())
	require.NoError(t, err)
	assert.False(t, bought, "pending orders do not count as purchases")

	byIntent, err := orders.GetByPaymentIntent(ctx, intent)
	require.NoError(t, err)
	assert.Equal(t, order.ID, byIntent.ID)
	require.Len(t, byIntent.Items, 1)
	assert.Equal(t, "Go in Practice", byIntent.Items[0].Name)

	// The status update is conditional on the current status.
	require.NoError(t, orders.UpdateStatus(ctx, order.ID, domain.OrderStatusPending, domain.OrderStatusPaid, nil))
	assert.ErrorIs(t, orders.UpdateStatus(ctx, order.ID, domain.OrderStatusPending, domain.OrderStatusPaid, nil), apperrors.ErrNotFound)

	bought, err = orders.HasPurchase(ctx, buyer.ID, product.ID, domain.PurchaseStatuses())
	require.NoError(t, err)
	assert.True(t, bought)

	review := &domain.Review{
		ID: uuid.NewString(), ProductID: product.ID, UserID: buyer.ID, UserName: buyer.Name,
		Rating: 4, Comment: "solid", CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, reviews.Create(ctx, review))
	second := *review
	second.ID = uuid.NewString()
	assert.ErrorIs(t, reviews.Create(ctx, &second), apperrors.ErrAlreadyExists)

	counts, err := reviews.RatingCounts(ctx, []string{product.ID})
	require.NoError(t, err)
	stats := domain.NewReviewStats(counts[product.ID])
	assert.Equal(t, 1, stats.TotalReviews)
	assert.InDelta(t, 4.0, stats.AverageRating, 0.001)

	count, revenue, err := orders.Totals(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, int64(7000), revenue)

	// Seller orders are found through the items.
	sellerOrders, total, err := orders.List(ctx, domain.OrderFilter{ProductIDs: []string{product.ID}}, pagination.DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, order.ID, sellerOrders[0].ID)

	// Deleting the seller removes the products but keeps orders and
	// reviews, which then free the category.
	removed, err := products.DeleteBySeller(ctx, seller.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
	require.NoError(t, users.Delete(ctx, seller.ID))
	require.NoError(t, categories.Delete(ctx, books.ID))

	kept, err := orders.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPaid, kept.Status)
	assert.Equal(t, "Go in Practice", kept.Items[0].Name)
}
