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

// ProductRepository implements repository.ProductRepository using MongoDB.
type ProductRepository struct {
	coll *mongo.Collection
}

// NewProductRepository creates a new MongoDB-backed product repository.
func NewProductRepository(db *mongo.Database) *ProductRepository {
	return &ProductRepository{coll: db.Collection(ProductsCollection)}
}

// Create inserts a new product document.
func (r *ProductRepository) Create(ctx context.Context, p *domain.Product) error {
	if _, err := r.coll.InsertOne(ctx, toProductDoc(p)); err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

// GetByID retrieves a product by its ID.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	var d productDoc
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&d); err != nil {
		if isNoDocuments(err) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("find product: %w", err)
	}
	p := d.toDomain()
	return &p, nil
}

// GetByIDs retrieves the products whose id is in ids.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []string) ([]domain.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return findAll(ctx, r.coll, bson.M{"_id": bson.M{"$in": ids}}, nil, productDoc.toDomain)
}

// Update replaces every mutable field. seller_id and created_at are kept.
func (r *ProductRepository) Update(ctx context.Context, p *domain.Product) error {
	p.UpdatedAt = time.Now().UTC()
	doc := toProductDoc(p)

	res, err := r.coll.UpdateByID(ctx, p.ID, bson.M{"$set": bson.M{
		"name":        doc.Name,
		"description": doc.Description,
		"price":       doc.Price,
		"category_id": doc.CategoryID,
		"weight":      doc.Weight,
		"dimensions":  doc.Dimensions,
		"images":      doc.Images,
		"is_active":   doc.IsActive,
		"stock":       doc.Stock,
		"updated_at":  doc.UpdatedAt,
	}})
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	if res.MatchedCount == 0 {
		return apperrors.NotFound("product", p.ID)
	}
	return nil
}

// Delete removes a product document.
func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if res.DeletedCount == 0 {
		return apperrors.NotFound("product", id)
	}
	return nil
}

// List returns products matching filter. Search is a case-insensitive
// regex over name or description.
func (r *ProductRepository) List(ctx context.Context, filter domain.ProductFilter, page pagination.Params) ([]domain.Product, int, error) {
	return findPage(ctx, r.coll, productQuery(filter), pageOptions(page, newestFirst), productDoc.toDomain)
}

func productQuery(filter domain.ProductFilter) bson.M {
	q := bson.M{}
	if !filter.IncludeInactive {
		q["is_active"] = true
	}
	if filter.CategoryID != "" {
		q["category_id"] = filter.CategoryID
	}
	if filter.SellerID != "" {
		q["seller_id"] = filter.SellerID
	}
	if filter.Search != "" {
		re := containsRegex(filter.Search)
		q["$or"] = bson.A{bson.M{"name": re}, bson.M{"description": re}}
	}
	return q
}

// IDsBySeller returns the ids of every product owned by sellerID.
func (r *ProductRepository) IDsBySeller(ctx context.Context, sellerID string) ([]string, error) {
	opts := options.Find().SetProjection(bson.M{"_id": 1})
	return findAll(ctx, r.coll, bson.M{"seller_id": sellerID}, opts, func(d productDoc) string { return d.ID })
}

// DeleteBySeller removes every product owned by sellerID.
func (r *ProductRepository) DeleteBySeller(ctx context.Context, sellerID string) (int64, error) {
	res, err := r.coll.DeleteMany(ctx, bson.M{"seller_id": sellerID})
	if err != nil {
		return 0, fmt.Errorf("delete seller products: %w", err)
	}
	return res.DeletedCount, nil
}

// CountByCategory returns the number of products referencing categoryID.
func (r *ProductRepository) CountByCategory(ctx context.Context, categoryID string) (int, error) {
	n, err := r.coll.CountDocuments(ctx, bson.M{"category_id": categoryID})
	if err != nil {
		return 0, fmt.Errorf("count category products: %w", err)
	}
	return int(n), nil
}

// Counts returns the total and active product counts.
func (r *ProductRepository) Counts(ctx context.Context) (total, active int, err error) {
	t, err := r.coll.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, 0, fmt.Errorf("count products: %w", err)
	}
	a, err := r.coll.CountDocuments(ctx, bson.M{"is_active": true})
	if err != nil {
		return 0, 0, fmt.Errorf("count active products: %w", err)
	}
	return int(t), int(a), nil
}
