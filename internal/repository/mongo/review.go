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

// ReviewRepository implements repository.ReviewRepository using MongoDB.
type ReviewRepository struct {
	coll *mongo.Collection
}

// NewReviewRepository creates a new MongoDB-backed review repository.
func NewReviewRepository(db *mongo.Database) *ReviewRepository {
	return &ReviewRepository{coll: db.Collection(ReviewsCollection)}
}

// Create inserts a review. The unique (product_id, user_id) index rejects
// a second review for the pair.
func (r *ReviewRepository) Create(ctx context.Context, rv *domain.Review) error {
	if _, err := r.coll.InsertOne(ctx, reviewDoc(*rv)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperrors.AlreadyExists("review", "product_id", rv.ProductID)
		}
		return fmt.Errorf("insert review: %w", err)
	}
	return nil
}

// GetByID retrieves a review by its ID.
func (r *ReviewRepository) GetByID(ctx context.Context, id string) (*domain.Review, error) {
	var d reviewDoc
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&d); err != nil {
		if isNoDocuments(err) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("find review: %w", err)
	}
	rv := d.toDomain()
	return &rv, nil
}

// Exists reports whether userID already reviewed productID.
func (r *ReviewRepository) Exists(ctx context.Context, productID, userID string) (bool, error) {
	n, err := r.coll.CountDocuments(ctx, bson.M{"product_id": productID, "user_id": userID}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("check review exists: %w", err)
	}
	return n > 0, nil
}

// Update sets rating and comment.
func (r *ReviewRepository) Update(ctx context.Context, rv *domain.Review) error {
	rv.UpdatedAt = time.Now().UTC()

	res, err := r.coll.UpdateByID(ctx, rv.ID, bson.M{"$set": bson.M{
		"rating":     rv.Rating,
		"comment":    rv.Comment,
		"updated_at": rv.UpdatedAt,
	}})
	if err != nil {
		return fmt.Errorf("update review: %w", err)
	}
	if res.MatchedCount == 0 {
		return apperrors.NotFound("review", rv.ID)
	}
	return nil
}

// Delete removes a review document.
func (r *ReviewRepository) Delete(ctx context.Context, id string) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete review: %w", err)
	}
	if res.DeletedCount == 0 {
		return apperrors.NotFound("review", id)
	}
	return nil
}

// ListByProduct returns a product's reviews in the requested order.
func (r *ReviewRepository) ListByProduct(ctx context.Context, productID string, sort domain.ReviewSort, page pagination.Params) ([]domain.Review, int, error) {
	order := newestFirst
	if sort == domain.ReviewSortRating {
		order = bson.D{{Key: "rating", Value: -1}, {Key: "created_at", Value: -1}, {Key: "_id", Value: 1}}
	}
	return findPage(ctx, r.coll, bson.M{"product_id": productID}, pageOptions(page, order), reviewDoc.toDomain)
}

// ListByUser returns every review written by userID, newest first.
func (r *ReviewRepository) ListByUser(ctx context.Context, userID string) ([]domain.Review, error) {
	opts := options.Find().SetSort(newestFirst)
	return findAll(ctx, r.coll, bson.M{"user_id": userID}, opts, reviewDoc.toDomain)
}

// List returns all reviews, newest first.
func (r *ReviewRepository) List(ctx context.Context, page pagination.Params) ([]domain.Review, int, error) {
	return findPage(ctx, r.coll, bson.M{}, pageOptions(page, newestFirst), reviewDoc.toDomain)
}

// RatingCounts groups reviews by product and rating.
func (r *ReviewRepository) RatingCounts(ctx context.Context, productIDs []string) (map[string][5]int, error) {
	counts := make(map[string][5]int, len(productIDs))
	if len(productIDs) == 0 {
		return counts, nil
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"product_id": bson.M{"$in": productIDs}}}},
		{{Key: "$group", Value: bson.M{
			"_id": bson.M{"product_id": "$product_id", "rating": "$rating"},
			"n":   bson.M{"$sum": 1},
		}}},
	}

	cur, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("count ratings: %w", err)
	}
	defer cur.Close(ctx)

	var rows []struct {
		Key struct {
			ProductID string `bson:"product_id"`
			Rating    int    `bson:"rating"`
		} `bson:"_id"`
		N int `bson:"n"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("decode rating counts: %w", err)
	}

	for _, row := range rows {
		if !domain.ValidRating(row.Key.Rating) {
			continue
		}
		c := counts[row.Key.ProductID]
		c[row.Key.Rating-1] = row.N
		counts[row.Key.ProductID] = c
	}
	return counts, nil
}
