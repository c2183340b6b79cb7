package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/marketplace/internal/domain"
	"github.com/utafrali/marketplace/pkg/database"
	apperrors "github.com/utafrali/marketplace/pkg/errors"
	"github.com/utafrali/marketplace/pkg/pagination"
)

// orderSelect loads orders with their items aggregated into one JSONB
// column, avoiding a second query per order.
const orderSelect = `
		SELECT
			o.id, o.user_id, o.shipping_address, o.total, o.status,
			o.payment_intent_id, o.tracking_number, o.created_at, o.updated_at,
			COALESCE(
				(SELECT JSONB_AGG(
					JSONB_BUILD_OBJECT(
						'product_id', oi.product_id,
						'name', oi.name,
						'image', oi.image,
						'quantity', oi.quantity,
						'price', oi.price
					) ORDER BY oi.position)
				 FROM order_items oi WHERE oi.order_id = o.id),
				'[]'::jsonb
			) AS items`

// OrderRepository implements repository.OrderRepository using PostgreSQL.
type OrderRepository struct {
	pool database.DBTX
}

// NewOrderRepository creates a new PostgreSQL-backed order repository.
func NewOrderRepository(pool database.DBTX) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create inserts a new order and its items atomically within a transaction.
func (r *OrderRepository) Create(ctx context.Context, o *domain.Order) error {
	shippingJSON, err := json.Marshal(o.ShippingAddress)
	if err != nil {
		return fmt.Errorf("marshal shipping address: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	orderQuery := `
		INSERT INTO orders (id, user_id, shipping_address, total, status, payment_intent_id, tracking_number, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err = tx.Exec(ctx, orderQuery,
		o.ID,
		o.UserID,
		shippingJSON,
		o.Total,
		string(o.Status),
		o.PaymentIntentID,
		o.TrackingNumber,
		o.CreatedAt,
		o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	itemQuery := `
		INSERT INTO order_items (order_id, position, product_id, name, image, quantity, price)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	for i, item := range o.Items {
		_, err = tx.Exec(ctx, itemQuery,
			o.ID,
			i,
			item.ProductID,
			item.Name,
			item.Image,
			item.Quantity,
			item.Price,
		)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// GetByID retrieves an order by its ID, eagerly loading its items.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	return r.getOne(ctx, orderSelect+` FROM orders o WHERE o.id = $1`, id)
}

// GetByPaymentIntent retrieves the most recent order carrying the intent id.
func (r *OrderRepository) GetByPaymentIntent(ctx context.Context, paymentIntentID string) (*domain.Order, error) {
	return r.getOne(ctx, orderSelect+` FROM orders o WHERE o.payment_intent_id = $1 ORDER BY o.created_at DESC LIMIT 1`, paymentIntentID)
}

func (r *OrderRepository) getOne(ctx context.Context, query string, args ...any) (*domain.Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if isNoRows(err) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan order: %w", err)
	}
	return o, nil
}

// List returns orders matching the given filter with the total count.
// ProductIDs selects orders with at least one item among those products.
func (r *OrderRepository) List(ctx context.Context, filter domain.OrderFilter, page pagination.Params) ([]domain.Order, int, error) {
	var (
		conditions []string
		args       []any
		argIndex   = 1
	)

	if filter.UserID != "" {
		conditions = append(conditions, fmt.Sprintf("o.user_id = $%d", argIndex))
		args = append(args, filter.UserID)
		argIndex++
	}

	if filter.ProductIDs != nil {
		conditions = append(conditions, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM order_items f WHERE f.order_id = o.id AND f.product_id = ANY($%d))", argIndex))
		args = append(args, filter.ProductIDs)
		argIndex++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(`%s, count(*) OVER() AS total_count
		FROM orders o
		%s
		ORDER BY o.created_at DESC, o.id
		LIMIT $%d OFFSET $%d`,
		orderSelect, whereClause, argIndex, argIndex+1,
	)
	args = append(args, page.PerPage, page.Offset())

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var (
		orders     []domain.Order
		totalCount int
	)
	for rows.Next() {
		o, err := scanOrder(rows, &totalCount)
		if err != nil {
			return nil, 0, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate order rows: %w", err)
	}

	return orders, totalCount, nil
}

// UpdateStatus performs a compare-and-set on the status column so two
// concurrent transitions cannot both apply.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, from, to domain.OrderStatus, trackingNumber *string) error {
	query := `
		UPDATE orders
		SET status = $1, tracking_number = COALESCE($2, tracking_number), updated_at = $3
		WHERE id = $4 AND status = $5`

	ct, err := r.pool.Exec(ctx, query, string(to), trackingNumber, time.Now().UTC(), id, string(from))
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// AttachPaymentIntent sets the payment intent of a pending order.
func (r *OrderRepository) AttachPaymentIntent(ctx context.Context, id, paymentIntentID string) error {
	query := `
		UPDATE orders
		SET payment_intent_id = $1, updated_at = $2
		WHERE id = $3 AND status = $4`

	ct, err := r.pool.Exec(ctx, query, paymentIntentID, time.Now().UTC(), id, string(domain.OrderStatusPending))
	if err != nil {
		return fmt.Errorf("attach payment intent: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// HasPurchase reports whether the user has an order in one of statuses
// that contains productID.
func (r *OrderRepository) HasPurchase(ctx context.Context, userID, productID string, statuses []domain.OrderStatus) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM orders o
			JOIN order_items oi ON oi.order_id = o.id
			WHERE o.user_id = $1 AND oi.product_id = $2 AND o.status = ANY($3)
		)`

	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, query, userID, productID, names).Scan(&exists); err != nil {
		return false, fmt.Errorf("check purchase: %w", err)
	}
	return exists, nil
}

// Totals returns the number of orders and the sum of their totals over
// every status.
func (r *OrderRepository) Totals(ctx context.Context) (count int, revenue int64, err error) {
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*), COALESCE(SUM(total), 0) FROM orders`).Scan(&count, &revenue); err != nil {
		return 0, 0, fmt.Errorf("sum orders: %w", err)
	}
	return count, revenue, nil
}

func scanOrder(row pgx.Row, extra ...any) (*domain.Order, error) {
	var (
		o            domain.Order
		status       string
		shippingJSON []byte
		itemsJSON    []byte
	)

	dest := []any{
		&o.ID,
		&o.UserID,
		&shippingJSON,
		&o.Total,
		&status,
		&o.PaymentIntentID,
		&o.TrackingNumber,
		&o.CreatedAt,
		&o.UpdatedAt,
		&itemsJSON,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	o.Status = domain.OrderStatus(status)

	if len(shippingJSON) > 0 {
		if err := json.Unmarshal(shippingJSON, &o.ShippingAddress); err != nil {
			return nil, fmt.Errorf("unmarshal shipping address: %w", err)
		}
	}
	if len(itemsJSON) > 0 {
		if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
			return nil, fmt.Errorf("unmarshal order items: %w", err)
		}
	}
	if o.Items == nil {
		o.Items = []domain.OrderItem{}
	}

	return &o, nil
}
