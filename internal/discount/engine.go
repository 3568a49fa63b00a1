package discount

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned by Catalog implementations when no discount matches.
var ErrNotFound = errors.New("discount not found")

// Catalog is the backing store for the discount catalog.
type Catalog interface {
	FindByCode(ctx context.Context, code string) (*Discount, error)
	FindByID(ctx context.Context, id string) (*Discount, error)
	List(ctx context.Context) ([]Discount, error)
	Create(ctx context.Context, d *Discount) error
	Update(ctx context.Context, d *Discount) error
	Delete(ctx context.Context, id string) error
	IncrementUsage(ctx context.Context, id string) error
}

// Engine validates and computes discounts against the catalog. It is
// constructed with its dependencies so callers (and tests) can run isolated
// instances.
type Engine struct {
	catalog Catalog
	now     func() time.Time
}

func NewEngine(catalog Catalog) *Engine {
	return &Engine{catalog: catalog, now: time.Now}
}

// Apply resolves a user-entered code to a usable discount. An unknown code and
// a known-but-invalid one (inactive, outside its date window, usage exhausted)
// are deliberately the same user-facing error.
func (e *Engine) Apply(ctx context.Context, code string) (*Discount, error) {
	normalized := NormalizeCode(code)
	if normalized == "" {
		return nil, ErrInvalidCode
	}

	d, err := e.catalog.FindByCode(ctx, normalized)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCode
		}
		return nil, fmt.Errorf("look up discount code: %w", err)
	}
	if !d.IsValid(e.now()) {
		return nil, ErrInvalidCode
	}
	return d, nil
}

// Active returns the catalog filtered by the validity predicate at call time,
// so expiry is reflected live.
func (e *Engine) Active(ctx context.Context) ([]Discount, error) {
	all, err := e.catalog.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list discounts: %w", err)
	}
	now := e.now()
	active := make([]Discount, 0, len(all))
	for _, d := range all {
		if d.IsValid(now) {
			active = append(active, d)
		}
	}
	return active, nil
}

// List returns the full catalog for administrative views.
func (e *Engine) List(ctx context.Context) ([]Discount, error) {
	return e.catalog.List(ctx)
}

// Create adds a discount to the catalog.
func (e *Engine) Create(ctx context.Context, d *Discount) error {
	if err := d.validate(); err != nil {
		return err
	}
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	d.Code = NormalizeCode(d.Code)
	d.CreatedAt = e.now()
	d.UpdatedAt = d.CreatedAt
	return e.catalog.Create(ctx, d)
}

// Update replaces an existing catalog entry.
func (e *Engine) Update(ctx context.Context, d *Discount) error {
	if err := d.validate(); err != nil {
		return err
	}
	d.Code = NormalizeCode(d.Code)
	d.UpdatedAt = e.now()
	return e.catalog.Update(ctx, d)
}

// Delete removes a catalog entry.
func (e *Engine) Delete(ctx context.Context, id string) error {
	return e.catalog.Delete(ctx, id)
}

// RecordUsage bumps the usage counter after a completed checkout. Best-effort:
// a failure here must not undo the order.
func (e *Engine) RecordUsage(ctx context.Context, id string) {
	if err := e.catalog.IncrementUsage(ctx, id); err != nil {
		log.Printf("[Discount] Failed to record usage for %s: %v", id, err)
	}
}
