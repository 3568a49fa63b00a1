package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/example/storefront/internal/cart"
	"github.com/example/storefront/internal/checkout"
)

// OrderRepository implements checkout.OrderRepository on PostgreSQL. Line
// items are stored as a JSONB snapshot, the way the cart saw them at checkout.
type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) Save(ctx context.Context, o *checkout.Order) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("encode order items: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO orders (id, number, user_id, customer_name, email, items,
			subtotal, discount, tax, total, discount_code, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		o.ID, o.Number, nullable(o.UserID), o.CustomerName, o.Email, items,
		o.Totals.Subtotal, o.Totals.Discount, o.Totals.Tax, o.Totals.Total,
		nullable(o.DiscountCode), o.Status, o.CreatedAt,
	)
	return err
}

const orderColumns = `id, number, COALESCE(user_id, ''), customer_name, email, items,
	subtotal, discount, tax, total, COALESCE(discount_code, ''), status, created_at`

func scanOrder(row interface{ Scan(...any) error }) (*checkout.Order, error) {
	var o checkout.Order
	var items []byte
	err := row.Scan(
		&o.ID, &o.Number, &o.UserID, &o.CustomerName, &o.Email, &items,
		&o.Totals.Subtotal, &o.Totals.Discount, &o.Totals.Tax, &o.Totals.Total,
		&o.DiscountCode, &o.Status, &o.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, fmt.Errorf("decode order items: %w", err)
	}
	if o.Items == nil {
		o.Items = []cart.Item{}
	}
	o.Totals.DiscountedSubtotal = o.Totals.Subtotal - o.Totals.Discount
	if o.Totals.DiscountedSubtotal < 0 {
		o.Totals.DiscountedSubtotal = 0
	}
	return &o, nil
}

func (r *OrderRepository) FindByID(ctx context.Context, id string) (*checkout.Order, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return o, err
}

func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]checkout.Order, error) {
	return r.list(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`, userID)
}

func (r *OrderRepository) List(ctx context.Context) ([]checkout.Order, error) {
	return r.list(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC`)
}

func (r *OrderRepository) list(ctx context.Context, query string, args ...any) ([]checkout.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []checkout.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	return orders, rows.Err()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
