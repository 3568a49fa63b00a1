package cart

import (
	"context"
	"encoding/json"
	"fmt"
)

// KV is the key-value persistence collaborator backing carts. Carts survive
// restarts through it; there is no conflict resolution because each session
// key has a single writer (last write wins).
type KV interface {
	Save(ctx context.Context, key string, value []byte) error
	Load(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, key string) error
}

// Store maintains per-session carts. Every mutation rewrites the full item
// list to the KV under a fixed per-session key before returning.
type Store struct {
	kv KV
}

func NewStore(kv KV) *Store {
	return &Store{kv: kv}
}

func cartKey(sessionID string) string {
	return "cart:" + sessionID
}

// Get hydrates the session's cart from the KV, or returns an empty cart when
// none has been persisted yet.
func (s *Store) Get(ctx context.Context, sessionID string) (*Cart, error) {
	data, ok, err := s.kv.Load(ctx, cartKey(sessionID))
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	if !ok {
		return &Cart{SessionID: sessionID, Items: []Item{}}, nil
	}

	var c Cart
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode cart: %w", err)
	}
	c.SessionID = sessionID
	if c.Items == nil {
		c.Items = []Item{}
	}
	return &c, nil
}

func (s *Store) save(ctx context.Context, c *Cart) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}
	if err := s.kv.Save(ctx, cartKey(c.SessionID), data); err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	return nil
}

// AddItem adds a product to the cart. If the product is already present its
// quantity is incremented by one instead of duplicating the line; otherwise
// the item is appended with quantity one. The returned bool reports whether
// an existing line was incremented.
func (s *Store) AddItem(ctx context.Context, sessionID string, item Item) (*Cart, bool, error) {
	if item.ProductID == "" {
		return nil, false, ErrInvalidProduct
	}

	c, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, false, err
	}

	incremented := false
	if i := c.indexOf(item.ProductID); i >= 0 {
		c.Items[i].Quantity++
		incremented = true
	} else {
		item.Quantity = 1
		c.Items = append(c.Items, item)
	}

	if err := s.save(ctx, c); err != nil {
		return nil, false, err
	}
	return c, incremented, nil
}

// RemoveItem drops a line item. Removing an absent product is a no-op.
func (s *Store) RemoveItem(ctx context.Context, sessionID, productID string) (*Cart, error) {
	c, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	i := c.indexOf(productID)
	if i < 0 {
		return c, nil
	}
	c.Items = append(c.Items[:i], c.Items[i+1:]...)

	if err := s.save(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// UpdateQuantity sets a line item's quantity. A quantity of zero or less
// removes the item entirely; there is no upper bound.
func (s *Store) UpdateQuantity(ctx context.Context, sessionID, productID string, quantity int) (*Cart, error) {
	if quantity <= 0 {
		return s.RemoveItem(ctx, sessionID, productID)
	}

	c, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if i := c.indexOf(productID); i >= 0 {
		c.Items[i].Quantity = quantity
		if err := s.save(ctx, c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// SetDiscountCode records the session's applied discount code.
func (s *Store) SetDiscountCode(ctx context.Context, sessionID, code string) (*Cart, error) {
	c, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	c.DiscountCode = code
	if err := s.save(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// ClearDiscountCode drops the applied discount unconditionally.
func (s *Store) ClearDiscountCode(ctx context.Context, sessionID string) (*Cart, error) {
	return s.SetDiscountCode(ctx, sessionID, "")
}

// Clear empties the cart and removes the persisted key.
func (s *Store) Clear(ctx context.Context, sessionID string) error {
	if err := s.kv.Delete(ctx, cartKey(sessionID)); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}
