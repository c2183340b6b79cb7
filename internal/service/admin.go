package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/utafrali/marketplace/internal/authz"
	"github.com/utafrali/marketplace/internal/domain"
	"github.com/utafrali/marketplace/internal/event"
	"github.com/utafrali/marketplace/internal/repository"
	"github.com/utafrali/marketplace/internal/search"
	apperrors "github.com/utafrali/marketplace/pkg/errors"
	"github.com/utafrali/marketplace/pkg/pagination"
)

// AdminService implements platform moderation and statistics.
type AdminService struct {
	users    repository.UserRepository
	products repository.ProductRepository
	orders   repository.OrderRepository
	index    search.Index
	events   *event.Emitter
	logger   *slog.Logger
}

// NewAdminService creates a new admin service.
func NewAdminService(
	users repository.UserRepository,
	products repository.ProductRepository,
	orders repository.OrderRepository,
	index search.Index,
	events *event.Emitter,
	logger *slog.Logger,
) *AdminService {
	if index == nil {
		index = search.NoopIndex{}
	}
	return &AdminService{
		users:    users,
		products: products,
		orders:   orders,
		index:    index,
		events:   events,
		logger:   logger,
	}
}

// GetStats aggregates platform counts. Revenue sums the totals of orders in
// every status, cancelled and pending included.
func (s *AdminService) GetStats(ctx context.Context, id *domain.Identity) (*domain.PlatformStats, error) {
	if err := authz.Authorize(id, authz.Admin()...); err != nil {
		return nil, err
	}

	users, err := s.users.Counts(ctx)
	if err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}
	products, active, err := s.products.Counts(ctx)
	if err != nil {
		return nil, fmt.Errorf("count products: %w", err)
	}
	orders, revenue, err := s.orders.Totals(ctx)
	if err != nil {
		return nil, fmt.Errorf("sum orders: %w", err)
	}

	return &domain.PlatformStats{
		Customers:      users.Customers,
		Sellers:        users.Sellers,
		PendingSellers: users.PendingSellers,
		BannedUsers:    users.Banned,
		Products:       products,
		ActiveProducts: active,
		Orders:         orders,
		TotalRevenue:   revenue,
	}, nil
}

// ListUsers returns one page of users, optionally of one role.
func (s *AdminService) ListUsers(ctx context.Context, id *domain.Identity, filter domain.UserFilter, page pagination.Params) ([]domain.User, int, error) {
	if err := authz.Authorize(id, authz.Admin()...); err != nil {
		return nil, 0, err
	}
	if filter.Role != "" && !domain.IsValidRole(filter.Role) {
		return nil, 0, apperrors.Validation(fmt.Sprintf("invalid role %q", filter.Role))
	}
	users, total, err := s.users.List(ctx, filter, page)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	return users, total, nil
}

// ApproveUser approves an account. Approving an approved account changes
// nothing and sends no notification.
func (s *AdminService) ApproveUser(ctx context.Context, id *domain.Identity, userID string) (*domain.User, error) {
	if err := authz.Authorize(id, authz.Admin()...); err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	if user.IsApproved {
		return user, nil
	}

	user.IsApproved = true
	user.UpdatedAt = time.Now().UTC()
	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("approve user: %w", err)
	}

	s.events.UserApproved(ctx, user)
	s.logger.InfoContext(ctx, "user approved",
		slog.String("user_id", user.ID),
		slog.String("approved_by", id.ID),
	)
	return user, nil
}

// BanUser sets or clears the ban flag. Admins cannot be banned.
func (s *AdminService) BanUser(ctx context.Context, id *domain.Identity, userID string, banned bool) (*domain.User, error) {
	if err := authz.Authorize(id, authz.Admin()...); err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	if user.Role == domain.RoleAdmin {
		return nil, apperrors.CannotBanAdmin()
	}
	if user.IsBanned == banned {
		return user, nil
	}

	user.IsBanned = banned
	user.UpdatedAt = time.Now().UTC()
	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("ban user: %w", err)
	}

	s.events.UserBanned(ctx, user)
	s.logger.InfoContext(ctx, "user ban changed",
		slog.String("user_id", user.ID),
		slog.Bool("banned", banned),
		slog.String("changed_by", id.ID),
	)
	return user, nil
}

// DeleteUser removes an account. A seller's products are removed first;
// their orders and reviews stay behind with snapshot data.
func (s *AdminService) DeleteUser(ctx context.Context, id *domain.Identity, userID string) error {
	if err := authz.Authorize(id, authz.Admin()...); err != nil {
		return err
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("get user by id: %w", err)
	}
	if user.Role == domain.RoleAdmin {
		return apperrors.CannotDeleteAdmin()
	}

	if user.Role == domain.RoleSeller {
		productIDs, err := s.products.IDsBySeller(ctx, user.ID)
		if err != nil {
			return fmt.Errorf("list seller products: %w", err)
		}
		removed, err := s.products.DeleteBySeller(ctx, user.ID)
		if err != nil {
			return fmt.Errorf("delete seller products: %w", err)
		}
		for _, pid := range productIDs {
			if err := s.index.Delete(ctx, pid); err != nil {
				s.logger.WarnContext(ctx, "failed to remove product from index",
					slog.String("product_id", pid),
					slog.String("error", err.Error()),
				)
			}
		}
		s.logger.InfoContext(ctx, "seller products deleted",
			slog.String("seller_id", user.ID),
			slog.Int64("count", removed),
		)
	}

	if err := s.users.Delete(ctx, user.ID); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}

	s.events.UserDeleted(ctx, user)
	s.logger.InfoContext(ctx, "user deleted",
		slog.String("user_id", user.ID),
		slog.String("deleted_by", id.ID),
	)
	return nil
}
