package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/utafrali/marketplace/internal/domain"
	apperrors "github.com/utafrali/marketplace/pkg/errors"
	"github.com/utafrali/marketplace/pkg/pagination"
)

// OrderRepository implements repository.OrderRepository using MongoDB.
type OrderRepository struct {
	coll *mongo.Collection
}

// NewOrderRepository creates a new MongoDB-backed order repository.
func NewOrderRepository(db *mongo.Database) *OrderRepository {
	return &OrderRepository{coll: db.Collection(OrdersCollection)}
}

// Create inserts the order with its items as one document.
func (r *OrderRepository) Create(ctx context.Context, o *domain.Order) error {
	if _, err := r.coll.InsertOne(ctx, toOrderDoc(o)); err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

// GetByID retrieves an order by its ID.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	return r.findOne(ctx, bson.M{"_id": id}, nil)
}

// GetByPaymentIntent retrieves the newest order carrying the intent id.
func (r *OrderRepository) GetByPaymentIntent(ctx context.Context, paymentIntentID string) (*domain.Order, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})
	return r.findOne(ctx, bson.M{"payment_intent_id": paymentIntentID}, opts)
}

// List returns orders matching filter, newest first.
func (r *OrderRepository) List(ctx context.Context, filter domain.OrderFilter, page pagination.Params) ([]domain.Order, int, error) {
	q := bson.M{}
	if filter.UserID != "" {
		q["user_id"] = filter.UserID
	}
	if filter.ProductIDs != nil {
		q["items.product_id"] = bson.M{"$in": filter.ProductIDs}
	}
	return findPage(ctx, r.coll, q, pageOptions(page, newestFirst), orderDoc.toDomain)
}

// UpdateStatus applies the transition only while the order is still in
// status from.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, from, to domain.OrderStatus, trackingNumber *string) error {
	set := bson.M{
		"status":     string(to),
		"updated_at": time.Now().UTC(),
	}
	if trackingNumber != nil {
		set["tracking_number"] = *trackingNumber
	}

	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id, "status": string(from)}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if res.MatchedCount == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// AttachPaymentIntent sets the payment intent while the order is pending.
func (r *OrderRepository) AttachPaymentIntent(ctx context.Context, id, paymentIntentID string) error {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id, "status": string(domain.OrderStatusPending)},
		bson.M{"$set": bson.M{"payment_intent_id": paymentIntentID, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("attach payment intent: %w", err)
	}
	if res.MatchedCount == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// HasPurchase reports whether a qualifying order exists.
func (r *OrderRepository) HasPurchase(ctx context.Context, userID, productID string, statuses []domain.OrderStatus) (bool, error) {
	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}

	n, err := r.coll.CountDocuments(ctx, bson.M{
		"user_id":          userID,
		"items.product_id": productID,
		"status":           bson.M{"$in": names},
	}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("check purchase: %w", err)
	}
	return n > 0, nil
}

// Totals sums order totals across every status.
func (r *OrderRepository) Totals(ctx context.Context) (count int, revenue int64, err error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{
			"_id":     nil,
			"count":   bson.M{"$sum": 1},
			"revenue": bson.M{"$sum": "$total"},
		}}},
	}

	cur, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, 0, fmt.Errorf("sum orders: %w", err)
	}
	defer cur.Close(ctx)

	var rows []struct {
		Count   int   `bson:"count"`
		Revenue int64 `bson:"revenue"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return 0, 0, fmt.Errorf("decode order totals: %w", err)
	}
	if len(rows) == 0 {
		return 0, 0, nil
	}
	return rows[0].Count, rows[0].Revenue, nil
}

func (r *OrderRepository) findOne(ctx context.Context, filter bson.M, opts *options.FindOneOptions) (*domain.Order, error) {
	var d orderDoc
	if err := r.coll.FindOne(ctx, filter, opts).Decode(&d); err != nil {
		if isNoDocuments(err) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("find order: %w", err)
	}
	o := d.toDomain()
	return &o, nil
}
