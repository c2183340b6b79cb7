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

// UserRepository implements repository.UserRepository using MongoDB.
type UserRepository struct {
	coll *mongo.Collection
}

// NewUserRepository creates a new MongoDB-backed user repository.
func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{coll: db.Collection(UsersCollection)}
}

// Create inserts a new user document.
func (r *UserRepository) Create(ctx context.Context, u *domain.User) error {
	if _, err := r.coll.InsertOne(ctx, toUserDoc(u)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperrors.AlreadyExists("user", "email", u.Email)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by their ID.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

// GetByEmail retrieves a user by exact email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

// Update sets name, approval and ban flags.
func (r *UserRepository) Update(ctx context.Context, u *domain.User) error {
	u.UpdatedAt = time.Now().UTC()

	res, err := r.coll.UpdateByID(ctx, u.ID, bson.M{"$set": bson.M{
		"name":        u.Name,
		"is_approved": u.IsApproved,
		"is_banned":   u.IsBanned,
		"updated_at":  u.UpdatedAt,
	}})
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if res.MatchedCount == 0 {
		return apperrors.NotFound("user", u.ID)
	}
	return nil
}

// Delete removes a user document.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if res.DeletedCount == 0 {
		return apperrors.NotFound("user", id)
	}
	return nil
}

// List returns users, optionally restricted to one role.
func (r *UserRepository) List(ctx context.Context, filter domain.UserFilter, page pagination.Params) ([]domain.User, int, error) {
	q := bson.M{}
	if filter.Role != "" {
		q["role"] = filter.Role
	}
	return findPage(ctx, r.coll, q, pageOptions(page, newestFirst), userDoc.toDomain)
}

// Names maps user ids to names.
func (r *UserRepository) Names(ctx context.Context, ids []string) (map[string]string, error) {
	names := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}

	opts := options.Find().SetProjection(bson.M{"name": 1})
	users, err := findAll(ctx, r.coll, bson.M{"_id": bson.M{"$in": ids}}, opts, userDoc.toDomain)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		names[u.ID] = u.Name
	}
	return names, nil
}

// Counts aggregates user counts in a single $group stage.
func (r *UserRepository) Counts(ctx context.Context) (domain.UserCounts, error) {
	when := func(cond any) bson.M {
		return bson.M{"$sum": bson.M{"$cond": bson.A{cond, 1, 0}}}
	}
	isSeller := bson.M{"$eq": bson.A{"$role", domain.RoleSeller}}

	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{
			"_id":             nil,
			"customers":       when(bson.M{"$eq": bson.A{"$role", domain.RoleCustomer}}),
			"sellers":         when(isSeller),
			"pending_sellers": when(bson.M{"$and": bson.A{isSeller, bson.M{"$eq": bson.A{"$is_approved", false}}}}),
			"banned":          when(bson.M{"$eq": bson.A{"$is_banned", true}}),
		}}},
	}

	cur, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return domain.UserCounts{}, fmt.Errorf("count users: %w", err)
	}
	defer cur.Close(ctx)

	var rows []struct {
		Customers      int `bson:"customers"`
		Sellers        int `bson:"sellers"`
		PendingSellers int `bson:"pending_sellers"`
		Banned         int `bson:"banned"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return domain.UserCounts{}, fmt.Errorf("decode user counts: %w", err)
	}
	if len(rows) == 0 {
		return domain.UserCounts{}, nil
	}
	return domain.UserCounts{
		Customers:      rows[0].Customers,
		Sellers:        rows[0].Sellers,
		PendingSellers: rows[0].PendingSellers,
		Banned:         rows[0].Banned,
	}, nil
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M) (*domain.User, error) {
	var d userDoc
	if err := r.coll.FindOne(ctx, filter).Decode(&d); err != nil {
		if isNoDocuments(err) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	u := d.toDomain()
	return &u, nil
}
