// Package event publishes marketplace domain events. Publishing is
// fire-and-forget from the caller's point of view: failures are logged and
// never fail the operation that emitted the event.
package event

import (
	"context"
	"log/slog"

	"github.com/utafrali/marketplace/internal/domain"
	pkgkafka "github.com/utafrali/marketplace/pkg/kafka"
	"github.com/utafrali/marketplace/pkg/logger"
)

// Kafka topic constants for marketplace domain events.
const (
	TopicUserRegistered     = "marketplace.user.registered"
	TopicUserApproved       = "marketplace.user.approved"
	TopicUserBanned         = "marketplace.user.banned"
	TopicUserDeleted        = "marketplace.user.deleted"
	TopicProductCreated     = "marketplace.product.created"
	TopicProductUpdated     = "marketplace.product.updated"
	TopicProductDeleted     = "marketplace.product.deleted"
	TopicOrderCreated       = "marketplace.order.created"
	TopicOrderStatusChanged = "marketplace.order.status_changed"
	TopicReviewCreated      = "marketplace.review.created"
)

// Aggregate type constants.
const (
	AggregateUser    = "user"
	AggregateProduct = "product"
	AggregateOrder   = "order"
	AggregateReview  = "review"
)

// Source identifies events emitted by this service.
const Source = "marketplace-api"

// Publisher delivers an envelope to a topic. *pkgkafka.Producer satisfies it.
type Publisher interface {
	Publish(ctx context.Context, topic string, evt *pkgkafka.Event) error
}

// UserData is the payload of user events.
type UserData struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	Role       string `json:"role"`
	IsApproved bool   `json:"is_approved"`
	IsBanned   bool   `json:"is_banned"`
}

// ProductData is the payload of product events.
type ProductData struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	SellerID   string `json:"seller_id"`
	CategoryID string `json:"category_id"`
	Price      int64  `json:"price"`
	IsActive   bool   `json:"is_active"`
}

// OrderData is the payload of order.created.
type OrderData struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	Total  int64  `json:"total"`
	Status string `json:"status"`
	Items  int    `json:"items"`
}

// OrderStatusChangedData is the payload of order.status_changed.
type OrderStatusChangedData struct {
	OrderID        string `json:"order_id"`
	UserID         string `json:"user_id"`
	From           string `json:"from"`
	To             string `json:"to"`
	TrackingNumber string `json:"tracking_number,omitempty"`
}

// ReviewData is the payload of review.created.
type ReviewData struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id"`
	UserID    string `json:"user_id"`
	Rating    int    `json:"rating"`
}

// Emitter builds typed events and publishes them.
type Emitter struct {
	pub    Publisher
	logger *slog.Logger
}

// NewEmitter creates an emitter. A nil publisher drops every event.
func NewEmitter(pub Publisher, logger *slog.Logger) *Emitter {
	return &Emitter{pub: pub, logger: logger}
}

func userData(u *domain.User) UserData {
	return UserData{ID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role, IsApproved: u.IsApproved, IsBanned: u.IsBanned}
}

func productData(p *domain.Product) ProductData {
	return ProductData{ID: p.ID, Name: p.Name, SellerID: p.SellerID, CategoryID: p.CategoryID, Price: p.Price, IsActive: p.IsActive}
}

// UserRegistered publishes user.registered.
func (e *Emitter) UserRegistered(ctx context.Context, u *domain.User) {
	e.emit(ctx, TopicUserRegistered, AggregateUser, u.ID, userData(u))
}

// UserApproved publishes user.approved.
func (e *Emitter) UserApproved(ctx context.Context, u *domain.User) {
	e.emit(ctx, TopicUserApproved, AggregateUser, u.ID, userData(u))
}

// UserBanned publishes user.banned for both ban and unban.
func (e *Emitter) UserBanned(ctx context.Context, u *domain.User) {
	e.emit(ctx, TopicUserBanned, AggregateUser, u.ID, userData(u))
}

// UserDeleted publishes user.deleted.
func (e *Emitter) UserDeleted(ctx context.Context, u *domain.User) {
	e.emit(ctx, TopicUserDeleted, AggregateUser, u.ID, userData(u))
}

// ProductCreated publishes product.created.
func (e *Emitter) ProductCreated(ctx context.Context, p *domain.Product) {
	e.emit(ctx, TopicProductCreated, AggregateProduct, p.ID, productData(p))
}

// ProductUpdated publishes product.updated.
func (e *Emitter) ProductUpdated(ctx context.Context, p *domain.Product) {
	e.emit(ctx, TopicProductUpdated, AggregateProduct, p.ID, productData(p))
}

// ProductDeleted publishes product.deleted.
func (e *Emitter) ProductDeleted(ctx context.Context, p *domain.Product) {
	e.emit(ctx, TopicProductDeleted, AggregateProduct, p.ID, productData(p))
}

// OrderCreated publishes order.created.
func (e *Emitter) OrderCreated(ctx context.Context, o *domain.Order) {
	e.emit(ctx, TopicOrderCreated, AggregateOrder, o.ID, OrderData{
		ID: o.ID, UserID: o.UserID, Total: o.Total, Status: string(o.Status), Items: len(o.Items),
	})
}

// OrderStatusChanged publishes order.status_changed.
func (e *Emitter) OrderStatusChanged(ctx context.Context, o *domain.Order, from domain.OrderStatus) {
	data := OrderStatusChangedData{OrderID: o.ID, UserID: o.UserID, From: string(from), To: string(o.Status)}
	if o.TrackingNumber != nil {
		data.TrackingNumber = *o.TrackingNumber
	}
	e.emit(ctx, TopicOrderStatusChanged, AggregateOrder, o.ID, data)
}

// ReviewCreated publishes review.created.
func (e *Emitter) ReviewCreated(ctx context.Context, r *domain.Review) {
	e.emit(ctx, TopicReviewCreated, AggregateReview, r.ID, ReviewData{
		ID: r.ID, ProductID: r.ProductID, UserID: r.UserID, Rating: r.Rating,
	})
}

func (e *Emitter) emit(ctx context.Context, topic, aggregateType, aggregateID string, data any) {
	if e == nil || e.pub == nil {
		return
	}

	evt, err := pkgkafka.NewEvent(topic, aggregateType, aggregateID, Source, data)
	if err != nil {
		e.logger.ErrorContext(ctx, "failed to build event",
			slog.String("topic", topic),
			slog.String("error", err.Error()),
		)
		return
	}
	evt.CorrelationID = logger.CorrelationIDFromContext(ctx)
	evt.ActorID, _ = logger.ActorFromContext(ctx)

	if err := e.pub.Publish(ctx, topic, evt); err != nil {
		e.logger.ErrorContext(ctx, "failed to publish event",
			slog.String("topic", topic),
			slog.String("aggregate_id", aggregateID),
			slog.String("error", err.Error()),
		)
	}
}
