package mongo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/utafrali/marketplace/internal/domain"
	apperrors "github.com/utafrali/marketplace/pkg/errors"
)

// CategoryRepository implements repository.CategoryRepository using MongoDB.
type CategoryRepository struct {
	coll *mongo.Collection
}

// NewCategoryRepository creates a new MongoDB-backed category repository.
func NewCategoryRepository(db *mongo.Database) *CategoryRepository {
	return &CategoryRepository{coll: db.Collection(CategoriesCollection)}
}

// Create inserts a category. name_lower carries the case-insensitive
// unique index.
func (r *CategoryRepository) Create(ctx context.Context, c *domain.Category) error {
	doc := categoryDoc{
		ID:          c.ID,
		Name:        c.Name,
		NameLower:   strings.ToLower(c.Name),
		Slug:        c.Slug,
		Description: c.Description,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperrors.AlreadyExists("category", "name", c.Name)
		}
		return fmt.Errorf("insert category: %w", err)
	}
	return nil
}

// GetByID retrieves a category by its ID.
func (r *CategoryRepository) GetByID(ctx context.Context, id string) (*domain.Category, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

// GetByName retrieves a category by name, ignoring case.
func (r *CategoryRepository) GetByName(ctx context.Context, name string) (*domain.Category, error) {
	return r.findOne(ctx, bson.M{"name_lower": strings.ToLower(name)})
}

// Update sets name, slug and description.
func (r *CategoryRepository) Update(ctx context.Context, c *domain.Category) error {
	c.UpdatedAt = time.Now().UTC()

	res, err := r.coll.UpdateByID(ctx, c.ID, bson.M{"$set": bson.M{
		"name":        c.Name,
		"name_lower":  strings.ToLower(c.Name),
		"slug":        c.Slug,
		"description": c.Description,
		"updated_at":  c.UpdatedAt,
	}})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperrors.AlreadyExists("category", "name", c.Name)
		}
		return fmt.Errorf("update category: %w", err)
	}
	if res.MatchedCount == 0 {
		return apperrors.NotFound("category", c.ID)
	}
	return nil
}

// Delete removes a category document. References are not checked here.
func (r *CategoryRepository) Delete(ctx context.Context, id string) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	if res.DeletedCount == 0 {
		return apperrors.NotFound("category", id)
	}
	return nil
}

// List returns all categories ordered by name.
func (r *CategoryRepository) List(ctx context.Context) ([]domain.Category, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
	return findAll(ctx, r.coll, bson.M{}, opts, categoryDoc.toDomain)
}

func (r *CategoryRepository) findOne(ctx context.Context, filter bson.M) (*domain.Category, error) {
	var d categoryDoc
	if err := r.coll.FindOne(ctx, filter).Decode(&d); err != nil {
		if isNoDocuments(err) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("find category: %w", err)
	}
	c := d.toDomain()
	return &c, nil
}
