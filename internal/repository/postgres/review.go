package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/marketplace/internal/domain"
	"github.com/utafrali/marketplace/pkg/database"
	apperrors "github.com/utafrali/marketplace/pkg/errors"
	"github.com/utafrali/marketplace/pkg/pagination"
)

const reviewColumns = `id, product_id, user_id, user_name, rating, comment, created_at, updated_at`

// ReviewRepository implements repository.ReviewRepository using PostgreSQL.
type ReviewRepository struct {
	pool database.DBTX
}

// NewReviewRepository creates a new PostgreSQL-backed review repository.
func NewReviewRepository(pool database.DBTX) *ReviewRepository {
	return &ReviewRepository{pool: pool}
}

// Create inserts a review. The (product_id, user_id) unique constraint
// rejects a second review for the pair.
func (r *ReviewRepository) Create(ctx context.Context, rv *domain.Review) error {
	query := `
		INSERT INTO reviews (` + reviewColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.pool.Exec(ctx, query,
		rv.ID,
		rv.ProductID,
		rv.UserID,
		rv.UserName,
		rv.Rating,
		rv.Comment,
		rv.CreatedAt,
		rv.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("review", "product_id", rv.ProductID)
		}
		return fmt.Errorf("insert review: %w", err)
	}

	return nil
}

// GetByID retrieves a review by its ID.
func (r *ReviewRepository) GetByID(ctx context.Context, id string) (*domain.Review, error) {
	rv, err := scanReview(r.pool.QueryRow(ctx, `SELECT `+reviewColumns+` FROM reviews WHERE id = $1`, id))
	if err != nil {
		if isNoRows(err) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan review: %w", err)
	}
	return rv, nil
}

// Exists reports whether userID already reviewed productID.
func (r *ReviewRepository) Exists(ctx context.Context, productID, userID string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM reviews WHERE product_id = $1 AND user_id = $2)`
	if err := r.pool.QueryRow(ctx, query, productID, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check review exists: %w", err)
	}
	return exists, nil
}

// Update persists rating and comment.
func (r *ReviewRepository) Update(ctx context.Context, rv *domain.Review) error {
	rv.UpdatedAt = time.Now().UTC()

	ct, err := r.pool.Exec(ctx,
		`UPDATE reviews SET rating = $1, comment = $2, updated_at = $3 WHERE id = $4`,
		rv.Rating, rv.Comment, rv.UpdatedAt, rv.ID,
	)
	if err != nil {
		return fmt.Errorf("update review: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("review", rv.ID)
	}

	return nil
}

// Delete removes a review by its ID.
func (r *ReviewRepository) Delete(ctx context.Context, id string) error {
	ct, err := r.pool.Exec(ctx, `DELETE FROM reviews WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete review: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("review", id)
	}

	return nil
}

// ListByProduct returns a product's reviews. Rating order breaks ties by
// creation time so pages stay stable.
func (r *ReviewRepository) ListByProduct(ctx context.Context, productID string, sort domain.ReviewSort, page pagination.Params) ([]domain.Review, int, error) {
	orderBy := "created_at DESC, id"
	if sort == domain.ReviewSortRating {
		orderBy = "rating DESC, created_at DESC, id"
	}

	query := fmt.Sprintf(`
		SELECT %s, count(*) OVER() AS total_count
		FROM reviews
		WHERE product_id = $1
		ORDER BY %s
		LIMIT $2 OFFSET $3`, reviewColumns, orderBy)

	return r.listPage(ctx, query, productID, page.PerPage, page.Offset())
}

// ListByUser returns every review written by userID, newest first.
func (r *ReviewRepository) ListByUser(ctx context.Context, userID string) ([]domain.Review, error) {
	query := `SELECT ` + reviewColumns + `, 0 AS total_count FROM reviews WHERE user_id = $1 ORDER BY created_at DESC, id`
	reviews, _, err := r.listPage(ctx, query, userID)
	return reviews, err
}

// List returns all reviews, newest first.
func (r *ReviewRepository) List(ctx context.Context, page pagination.Params) ([]domain.Review, int, error) {
	query := `
		SELECT ` + reviewColumns + `, count(*) OVER() AS total_count
		FROM reviews
		ORDER BY created_at DESC, id
		LIMIT $1 OFFSET $2`

	return r.listPage(ctx, query, page.PerPage, page.Offset())
}

// RatingCounts groups reviews by product and rating in one query.
func (r *ReviewRepository) RatingCounts(ctx context.Context, productIDs []string) (map[string][5]int, error) {
	counts := make(map[string][5]int, len(productIDs))
	if len(productIDs) == 0 {
		return counts, nil
	}

	query := `
		SELECT product_id, rating, COUNT(*)
		FROM reviews
		WHERE product_id::text = ANY($1)
		GROUP BY product_id, rating`

	rows, err := r.pool.Query(ctx, query, productIDs)
	if err != nil {
		return nil, fmt.Errorf("count ratings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			productID string
			rating    int
			n         int
		)
		if err := rows.Scan(&productID, &rating, &n); err != nil {
			return nil, fmt.Errorf("scan rating count: %w", err)
		}
		if !domain.ValidRating(rating) {
			continue
		}
		c := counts[productID]
		c[rating-1] = n
		counts[productID] = c
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rating counts: %w", err)
	}

	return counts, nil
}

func (r *ReviewRepository) listPage(ctx context.Context, query string, args ...any) ([]domain.Review, int, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	var (
		reviews    []domain.Review
		totalCount int
	)
	for rows.Next() {
		rv, err := scanReview(rows, &totalCount)
		if err != nil {
			return nil, 0, fmt.Errorf("scan review row: %w", err)
		}
		reviews = append(reviews, *rv)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate review rows: %w", err)
	}

	return reviews, totalCount, nil
}

func scanReview(row pgx.Row, extra ...any) (*domain.Review, error) {
	var rv domain.Review
	dest := []any{
		&rv.ID,
		&rv.ProductID,
		&rv.UserID,
		&rv.UserName,
		&rv.Rating,
		&rv.Comment,
		&rv.CreatedAt,
		&rv.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	return &rv, nil
}
