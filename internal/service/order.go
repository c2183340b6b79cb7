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
	apperrors "github.com/utafrali/marketplace/pkg/errors"
	"github.com/utafrali/marketplace/pkg/pagination"
)

// OrderService implements order placement, listing and status changes.
type OrderService struct {
	orders   repository.OrderRepository
	products repository.ProductRepository
	users    repository.UserRepository
	events   *event.Emitter
	logger   *slog.Logger

	// verifyTotal rejects orders whose total differs from the item sum.
	verifyTotal bool
}

// NewOrderService creates a new order service.
func NewOrderService(
	orders repository.OrderRepository,
	products repository.ProductRepository,
	users repository.UserRepository,
	events *event.Emitter,
	logger *slog.Logger,
	verifyTotal bool,
) *OrderService {
	return &OrderService{
		orders:      orders,
		products:    products,
		users:       users,
		events:      events,
		logger:      logger,
		verifyTotal: verifyTotal,
	}
}

// OrderItemInput is one requested line. Price is the caller's snapshot.
type OrderItemInput struct {
	ProductID string
	Quantity  int
	Price     int64
}

// CreateOrderInput holds the parameters for placing an order.
type CreateOrderInput struct {
	Items           []OrderItemInput
	ShippingAddress domain.ShippingAddress
	Total           int64
	PaymentIntentID *string
}

// UpdateStatusInput holds a requested status change.
type UpdateStatusInput struct {
	Status         domain.OrderStatus
	TrackingNumber *string
}

// CreateOrder places an order for the caller. Prices and quantities are kept
// as given; names and images are copied from the current products.
func (s *OrderService) CreateOrder(ctx context.Context, id *domain.Identity, in CreateOrderInput) (*domain.Order, error) {
	if err := authz.Authorize(id, authz.RequireAuthenticated()); err != nil {
		return nil, err
	}
	if len(in.Items) == 0 {
		return nil, apperrors.Validation("order must contain at least one item")
	}
	if in.Total < 0 {
		return nil, apperrors.Validation("total must not be negative")
	}

	ids := make([]string, 0, len(in.Items))
	for i, it := range in.Items {
		if it.ProductID == "" {
			return nil, apperrors.Validation(fmt.Sprintf("item %d: product_id is required", i))
		}
		if it.Quantity < 1 {
			return nil, apperrors.Validation(fmt.Sprintf("item %d: quantity must be at least 1", i))
		}
		if it.Price < 0 {
			return nil, apperrors.Validation(fmt.Sprintf("item %d: price must not be negative", i))
		}
		ids = append(ids, it.ProductID)
	}

	products, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load order products: %w", err)
	}
	byID := make(map[string]*domain.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}

	order := &domain.Order{
		ID:              uuid.New().String(),
		UserID:          id.ID,
		Items:           make([]domain.OrderItem, 0, len(in.Items)),
		ShippingAddress: in.ShippingAddress,
		Total:           in.Total,
		Status:          domain.OrderStatusPending,
	}
	for _, it := range in.Items {
		p, ok := byID[it.ProductID]
		if !ok {
			return nil, apperrors.Validation(fmt.Sprintf("product %s does not exist", it.ProductID))
		}
		order.Items = append(order.Items, domain.OrderItem{
			ProductID: it.ProductID,
			Name:      p.Name,
			Image:     p.PrimaryImage(),
			Quantity:  it.Quantity,
			Price:     it.Price,
		})
	}

	if s.verifyTotal && order.ItemsTotal() != in.Total {
		return nil, apperrors.Validation(fmt.Sprintf(
			"total %d does not match the item sum %d", in.Total, order.ItemsTotal()))
	}

	if in.PaymentIntentID != nil && strings.TrimSpace(*in.PaymentIntentID) != "" {
		intent := strings.TrimSpace(*in.PaymentIntentID)
		order.PaymentIntentID = &intent
		order.Status = domain.OrderStatusPaid
	}

	now := time.Now().UTC()
	order.CreatedAt = now
	order.UpdatedAt = now

	if err := s.orders.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	ordersCreated.WithLabelValues(string(order.Status)).Inc()
	s.events.OrderCreated(ctx, order)
	s.logger.InfoContext(ctx, "order created",
		slog.String("order_id", order.ID),
		slog.String("status", string(order.Status)),
		slog.Int64("total", order.Total),
	)
	return order, nil
}

// ListOrders returns every order to admins and the caller's own orders to
// everyone else.
func (s *OrderService) ListOrders(ctx context.Context, id *domain.Identity, page pagination.Params) ([]domain.Order, int, error) {
	if err := authz.Authorize(id, authz.RequireAuthenticated()); err != nil {
		return nil, 0, err
	}

	var filter domain.OrderFilter
	if !id.IsAdmin() {
		filter.UserID = id.ID
	}

	orders, total, err := s.orders.List(ctx, filter, page)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	if id.IsAdmin() {
		if err := s.attachCustomerNames(ctx, orders); err != nil {
			return nil, 0, err
		}
	}
	return orders, total, nil
}

// GetOrder returns an order visible to the caller. Orders of other users
// are reported as not found.
func (s *OrderService) GetOrder(ctx context.Context, id *domain.Identity, orderID string) (*domain.Order, error) {
	if err := authz.Authorize(id, authz.RequireAuthenticated()); err != nil {
		return nil, err
	}

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order by id: %w", err)
	}
	if !id.IsAdmin() && order.UserID != id.ID {
		return nil, apperrors.NotFound("order", orderID)
	}

	one := []domain.Order{*order}
	if err := s.attachCustomerNames(ctx, one); err != nil {
		return nil, err
	}
	return &one[0], nil
}

// ListSellerOrders returns the orders containing at least one product of
// sellerID. Sellers may read only their own; admins may name any seller.
func (s *OrderService) ListSellerOrders(ctx context.Context, id *domain.Identity, sellerID string, page pagination.Params) ([]domain.Order, int, error) {
	if err := authz.Authorize(id, authz.RequireAuthenticated(), authz.RequireRole(domain.RoleSeller, domain.RoleAdmin)); err != nil {
		return nil, 0, err
	}
	if sellerID == "" {
		sellerID = id.ID
	}
	if err := authz.Authorize(id, authz.RequireOwnerOrAdmin(sellerID)); err != nil {
		return nil, 0, err
	}

	productIDs, err := s.products.IDsBySeller(ctx, sellerID)
	if err != nil {
		return nil, 0, fmt.Errorf("list seller product ids: %w", err)
	}
	if len(productIDs) == 0 {
		return []domain.Order{}, 0, nil
	}

	orders, total, err := s.orders.List(ctx, domain.OrderFilter{ProductIDs: productIDs}, page)
	if err != nil {
		return nil, 0, fmt.Errorf("list seller orders: %w", err)
	}
	if err := s.attachCustomerNames(ctx, orders); err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// UpdateStatus moves an order along the lifecycle. Admins may update any
// order, other callers only their own.
func (s *OrderService) UpdateStatus(ctx context.Context, id *domain.Identity, orderID string, in UpdateStatusInput) (*domain.Order, error) {
	if err := authz.Authorize(id, authz.RequireAuthenticated()); err != nil {
		return nil, err
	}
	if !in.Status.IsValid() {
		return nil, apperrors.Validation(fmt.Sprintf("invalid order status %q", in.Status))
	}

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFoundOrForbidden("order", orderID)
		}
		return nil, fmt.Errorf("get order by id: %w", err)
	}
	if !id.IsAdmin() && order.UserID != id.ID {
		return nil, apperrors.NotFoundOrForbidden("order", orderID)
	}

	var tracking *string
	if in.Status == domain.OrderStatusShipped && in.TrackingNumber != nil && strings.TrimSpace(*in.TrackingNumber) != "" {
		t := strings.TrimSpace(*in.TrackingNumber)
		tracking = &t
	}
	if err := s.transition(ctx, order, in.Status, tracking); err != nil {
		return nil, err
	}

	one := []domain.Order{*order}
	if err := s.attachCustomerNames(ctx, one); err != nil {
		return nil, err
	}
	return &one[0], nil
}

// ConfirmPayment marks the pending order carrying paymentIntentID as paid.
// Orders already past pending are left unchanged.
func (s *OrderService) ConfirmPayment(ctx context.Context, paymentIntentID string) (*domain.Order, error) {
	order, err := s.orders.GetByPaymentIntent(ctx, paymentIntentID)
	if err != nil {
		return nil, fmt.Errorf("get order by payment intent: %w", err)
	}
	if order.Status != domain.OrderStatusPending {
		s.logger.InfoContext(ctx, "payment already applied",
			slog.String("order_id", order.ID),
			slog.String("status", string(order.Status)),
		)
		return order, nil
	}

	if err := s.transition(ctx, order, domain.OrderStatusPaid, nil); err != nil {
		if errors.Is(err, apperrors.ErrInvalidTransition) {
			// A concurrent update got there first.
			return order, nil
		}
		return nil, err
	}
	return order, nil
}

// PayableOrder returns the caller's order when it is still awaiting payment.
// Orders of other users are reported as absent.
func (s *OrderService) PayableOrder(ctx context.Context, id *domain.Identity, orderID string) (*domain.Order, error) {
	if err := authz.Authorize(id, authz.RequireAuthenticated()); err != nil {
		return nil, err
	}

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order by id: %w", err)
	}
	if order.UserID != id.ID {
		return nil, apperrors.NotFound("order", orderID)
	}
	if order.Status != domain.OrderStatusPending {
		return nil, apperrors.InvalidTransition(string(order.Status), string(domain.OrderStatusPaid))
	}
	return order, nil
}

// AttachPaymentIntent records paymentIntentID on the caller's pending order.
// The order moves to paid once the processor confirms the intent through
// ConfirmPayment.
func (s *OrderService) AttachPaymentIntent(ctx context.Context, id *domain.Identity, orderID, paymentIntentID string) (*domain.Order, error) {
	paymentIntentID = strings.TrimSpace(paymentIntentID)
	if paymentIntentID == "" {
		return nil, apperrors.Validation("payment intent id is required")
	}

	order, err := s.PayableOrder(ctx, id, orderID)
	if err != nil {
		return nil, err
	}

	if err := s.orders.AttachPaymentIntent(ctx, order.ID, paymentIntentID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.InvalidTransition(string(order.Status), string(domain.OrderStatusPaid))
		}
		return nil, fmt.Errorf("attach payment intent: %w", err)
	}
	order.PaymentIntentID = &paymentIntentID

	s.logger.InfoContext(ctx, "payment intent attached",
		slog.String("order_id", order.ID),
		slog.String("payment_intent_id", paymentIntentID),
	)
	return order, nil
}

// transition applies the guarded status change to order in place. The
// store update is conditional on the status read, so concurrent updates
// cannot both pass the guard.
func (s *OrderService) transition(ctx context.Context, order *domain.Order, to domain.OrderStatus, tracking *string) error {
	from := order.Status
	if !from.CanTransitionTo(to) {
		return apperrors.InvalidTransition(string(from), string(to))
	}

	if err := s.orders.UpdateStatus(ctx, order.ID, from, to, tracking); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.InvalidTransition(string(from), string(to))
		}
		return fmt.Errorf("update order status: %w", err)
	}

	order.Status = to
	if tracking != nil {
		order.TrackingNumber = tracking
	}
	order.UpdatedAt = time.Now().UTC()

	orderTransitions.WithLabelValues(string(to)).Inc()
	s.events.OrderStatusChanged(ctx, order, from)
	s.logger.InfoContext(ctx, "order status changed",
		slog.String("order_id", order.ID),
		slog.String("from", string(from)),
		slog.String("to", string(to)),
	)
	return nil
}

// attachCustomerNames fills CustomerName on every order. It is the only
// place order read models get the buyer's name. Deleted buyers keep an
// empty name.
func (s *OrderService) attachCustomerNames(ctx context.Context, orders []domain.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]string, 0, len(orders))
	seen := make(map[string]struct{}, len(orders))
	for _, o := range orders {
		if _, ok := seen[o.UserID]; !ok {
			seen[o.UserID] = struct{}{}
			ids = append(ids, o.UserID)
		}
	}

	names, err := s.users.Names(ctx, ids)
	if err != nil {
		return fmt.Errorf("load customer names: %w", err)
	}
	for i := range orders {
		orders[i].CustomerName = names[orders[i].UserID]
	}
	return nil
}
