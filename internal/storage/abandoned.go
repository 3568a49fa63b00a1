package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/example/storefront/internal/abandoned"
)

// AbandonedCartRepository implements abandoned.Store on PostgreSQL. A missing
// abandoned_carts relation is translated to abandoned.ErrTableMissing so the
// tracker can treat the feature as unprovisioned.
type AbandonedCartRepository struct {
	db *sql.DB
}

func NewAbandonedCartRepository(db *sql.DB) *AbandonedCartRepository {
	return &AbandonedCartRepository{db: db}
}

func (r *AbandonedCartRepository) Upsert(ctx context.Context, rec *abandoned.Record) error {
	items, err := json.Marshal(rec.Items)
	if err != nil {
		return fmt.Errorf("encode cart items: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO abandoned_carts (id, session_id, user_id, email, items,
			total_value, item_count, converted, checkout_started, user_agent, referrer, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			email = EXCLUDED.email,
			items = EXCLUDED.items,
			total_value = EXCLUDED.total_value,
			item_count = EXCLUDED.item_count,
			checkout_started = EXCLUDED.checkout_started,
			user_agent = EXCLUDED.user_agent,
			referrer = EXCLUDED.referrer,
			updated_at = EXCLUDED.updated_at`,
		rec.ID, rec.SessionID, nullable(rec.UserID), nullable(rec.Email), items,
		rec.TotalValue, rec.ItemCount, rec.Converted, rec.CheckoutStarted,
		nullable(rec.UserAgent), nullable(rec.Referrer), rec.UpdatedAt,
	)
	return classifyAbandonedErr(err)
}

func (r *AbandonedCartRepository) MarkConverted(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE abandoned_carts SET converted = TRUE, updated_at = NOW() WHERE id = $1`, id)
	return classifyAbandonedErr(err)
}

func classifyAbandonedErr(err error) error {
	if err == nil {
		return nil
	}
	if IsRelationMissing(err) {
		return fmt.Errorf("%w: %v", abandoned.ErrTableMissing, err)
	}
	return err
}
