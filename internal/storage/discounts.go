package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/example/storefront/internal/discount"
	"github.com/lib/pq"
)

// DiscountRepository implements discount.Catalog on PostgreSQL.
type DiscountRepository struct {
	db *sql.DB
}

func NewDiscountRepository(db *sql.DB) *DiscountRepository {
	return &DiscountRepository{db: db}
}

const discountColumns = `id, code, kind, value, min_purchase, max_discount,
	starts_at, ends_at, active, usage_limit, usage_count, categories, products,
	created_at, updated_at`

func scanDiscount(row interface{ Scan(...any) error }) (*discount.Discount, error) {
	var d discount.Discount
	var kind string
	err := row.Scan(
		&d.ID, &d.Code, &kind, &d.Value, &d.MinPurchase, &d.MaxDiscount,
		&d.StartsAt, &d.EndsAt, &d.Active, &d.UsageLimit, &d.UsageCount,
		pq.Array(&d.Categories), pq.Array(&d.Products),
		&d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	d.Kind = discount.Kind(kind)
	return &d, nil
}

func (r *DiscountRepository) FindByCode(ctx context.Context, code string) (*discount.Discount, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+discountColumns+` FROM discounts WHERE code = $1`, code)
	d, err := scanDiscount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, discount.ErrNotFound
	}
	return d, err
}

func (r *DiscountRepository) FindByID(ctx context.Context, id string) (*discount.Discount, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+discountColumns+` FROM discounts WHERE id = $1`, id)
	d, err := scanDiscount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, discount.ErrNotFound
	}
	return d, err
}

func (r *DiscountRepository) List(ctx context.Context) ([]discount.Discount, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+discountColumns+` FROM discounts ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var discounts []discount.Discount
	for rows.Next() {
		d, err := scanDiscount(rows)
		if err != nil {
			return nil, err
		}
		discounts = append(discounts, *d)
	}
	return discounts, rows.Err()
}

func (r *DiscountRepository) Create(ctx context.Context, d *discount.Discount) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO discounts (id, code, kind, value, min_purchase, max_discount,
			starts_at, ends_at, active, usage_limit, usage_count, categories, products,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		d.ID, d.Code, string(d.Kind), d.Value, d.MinPurchase, d.MaxDiscount,
		d.StartsAt, d.EndsAt, d.Active, d.UsageLimit, d.UsageCount,
		pq.Array(d.Categories), pq.Array(d.Products),
		d.CreatedAt, d.UpdatedAt,
	)
	return err
}

func (r *DiscountRepository) Update(ctx context.Context, d *discount.Discount) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE discounts SET code = $2, kind = $3, value = $4, min_purchase = $5,
			max_discount = $6, starts_at = $7, ends_at = $8, active = $9,
			usage_limit = $10, categories = $11, products = $12, updated_at = $13
		WHERE id = $1`,
		d.ID, d.Code, string(d.Kind), d.Value, d.MinPurchase, d.MaxDiscount,
		d.StartsAt, d.EndsAt, d.Active, d.UsageLimit,
		pq.Array(d.Categories), pq.Array(d.Products), d.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return discount.ErrNotFound
	}
	return nil
}

func (r *DiscountRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM discounts WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return discount.ErrNotFound
	}
	return nil
}

func (r *DiscountRepository) IncrementUsage(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE discounts SET usage_count = usage_count + 1, updated_at = NOW() WHERE id = $1`, id)
	return err
}
