package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/marketplace/internal/domain"
	"github.com/utafrali/marketplace/pkg/database"
	apperrors "github.com/utafrali/marketplace/pkg/errors"
	"github.com/utafrali/marketplace/pkg/pagination"
)

const productColumns = `id, name, description, price, category_id, weight, length, width, height, images, seller_id, is_active, stock, created_at, updated_at`

// ProductRepository implements repository.ProductRepository using PostgreSQL.
type ProductRepository struct {
	pool database.DBTX
}

// NewProductRepository creates a new PostgreSQL-backed product repository.
func NewProductRepository(pool database.DBTX) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// Create inserts a new product into the database.
func (r *ProductRepository) Create(ctx context.Context, p *domain.Product) error {
	query := `
		INSERT INTO products (` + productColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	_, err := r.pool.Exec(ctx, query, productArgs(p)...)
	if err != nil {
		if isForeignKeyViolation(err) {
			return apperrors.Validation("category or seller does not exist")
		}
		return fmt.Errorf("insert product: %w", err)
	}

	return nil
}

// GetByID retrieves a product by its ID.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	p, err := scanProduct(r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if err != nil {
		if isNoRows(err) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan product: %w", err)
	}
	return p, nil
}

// GetByIDs retrieves the products whose id is in ids.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []string) ([]domain.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := r.pool.Query(ctx, `SELECT `+productColumns+` FROM products WHERE id::text = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("get products: %w", err)
	}
	defer rows.Close()

	return collectProducts(rows, nil)
}

// Update modifies every mutable column of an existing product. seller_id
// is never written after insert.
func (r *ProductRepository) Update(ctx context.Context, p *domain.Product) error {
	p.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE products
		SET name = $1, description = $2, price = $3, category_id = $4, weight = $5,
		    length = $6, width = $7, height = $8, images = $9, is_active = $10,
		    stock = $11, updated_at = $12
		WHERE id = $13`

	ct, err := r.pool.Exec(ctx, query,
		p.Name,
		p.Description,
		p.Price,
		p.CategoryID,
		p.Weight,
		p.Dimensions.Length,
		p.Dimensions.Width,
		p.Dimensions.Height,
		nonNilImages(p.Images),
		p.IsActive,
		p.Stock,
		p.UpdatedAt,
		p.ID,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return apperrors.Validation("category does not exist")
		}
		return fmt.Errorf("update product: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("product", p.ID)
	}

	return nil
}

// Delete removes a product from the database by its ID.
func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	ct, err := r.pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("product", id)
	}

	return nil
}

// List returns products matching the given filter with the total count.
func (r *ProductRepository) List(ctx context.Context, filter domain.ProductFilter, page pagination.Params) ([]domain.Product, int, error) {
	var (
		conditions []string
		args       []any
		argIndex   = 1
	)

	if !filter.IncludeInactive {
		conditions = append(conditions, "is_active = TRUE")
	}

	if filter.CategoryID != "" {
		conditions = append(conditions, fmt.Sprintf("category_id = $%d", argIndex))
		args = append(args, filter.CategoryID)
		argIndex++
	}

	if filter.SellerID != "" {
		conditions = append(conditions, fmt.Sprintf("seller_id = $%d", argIndex))
		args = append(args, filter.SellerID)
		argIndex++
	}

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(name ILIKE $%d OR description ILIKE $%d)", argIndex, argIndex))
		args = append(args, containsPattern(filter.Search))
		argIndex++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	// count(*) OVER() returns the total alongside the page in one query.
	query := fmt.Sprintf(`
		SELECT %s, count(*) OVER() AS total_count
		FROM products
		%s
		ORDER BY created_at DESC, id
		LIMIT $%d OFFSET $%d`,
		productColumns, whereClause, argIndex, argIndex+1,
	)
	args = append(args, page.PerPage, page.Offset())

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var totalCount int
	products, err := collectProducts(rows, &totalCount)
	if err != nil {
		return nil, 0, err
	}

	return products, totalCount, nil
}

// IDsBySeller returns the ids of every product owned by sellerID.
func (r *ProductRepository) IDsBySeller(ctx context.Context, sellerID string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM products WHERE seller_id = $1`, sellerID)
	if err != nil {
		return nil, fmt.Errorf("list seller product ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan product id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product ids: %w", err)
	}

	return ids, nil
}

// DeleteBySeller removes every product owned by sellerID.
func (r *ProductRepository) DeleteBySeller(ctx context.Context, sellerID string) (int64, error) {
	ct, err := r.pool.Exec(ctx, `DELETE FROM products WHERE seller_id = $1`, sellerID)
	if err != nil {
		return 0, fmt.Errorf("delete seller products: %w", err)
	}
	return ct.RowsAffected(), nil
}

// CountByCategory returns the number of products referencing categoryID.
func (r *ProductRepository) CountByCategory(ctx context.Context, categoryID string) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM products WHERE category_id = $1`, categoryID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count category products: %w", err)
	}
	return n, nil
}

// Counts returns the total and active product counts.
func (r *ProductRepository) Counts(ctx context.Context) (total, active int, err error) {
	query := `SELECT COUNT(*), COUNT(*) FILTER (WHERE is_active) FROM products`
	if err := r.pool.QueryRow(ctx, query).Scan(&total, &active); err != nil {
		return 0, 0, fmt.Errorf("count products: %w", err)
	}
	return total, active, nil
}

func productArgs(p *domain.Product) []any {
	return []any{
		p.ID,
		p.Name,
		p.Description,
		p.Price,
		p.CategoryID,
		p.Weight,
		p.Dimensions.Length,
		p.Dimensions.Width,
		p.Dimensions.Height,
		nonNilImages(p.Images),
		p.SellerID,
		p.IsActive,
		p.Stock,
		p.CreatedAt,
		p.UpdatedAt,
	}
}

func nonNilImages(images []string) []string {
	if images == nil {
		return []string{}
	}
	return images
}

func scanProduct(row pgx.Row, extra ...any) (*domain.Product, error) {
	var p domain.Product
	dest := []any{
		&p.ID,
		&p.Name,
		&p.Description,
		&p.Price,
		&p.CategoryID,
		&p.Weight,
		&p.Dimensions.Length,
		&p.Dimensions.Width,
		&p.Dimensions.Height,
		&p.Images,
		&p.SellerID,
		&p.IsActive,
		&p.Stock,
		&p.CreatedAt,
		&p.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	if p.Images == nil {
		p.Images = []string{}
	}
	return &p, nil
}

// collectProducts scans every row. When totalCount is non-nil the rows
// carry a trailing total_count column.
func collectProducts(rows pgx.Rows, totalCount *int) ([]domain.Product, error) {
	var products []domain.Product
	for rows.Next() {
		var extra []any
		if totalCount != nil {
			extra = append(extra, totalCount)
		}
		p, err := scanProduct(rows, extra...)
		if err != nil {
			return nil, fmt.Errorf("scan product row: %w", err)
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product rows: %w", err)
	}
	return products, nil
}
