package cart

import "errors"

var (
	ErrInvalidProduct = errors.New("product_id is required")
)

// Item is a cart line item. UnitPrice is in minor currency units.
type Item struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	UnitPrice int    `json:"unit_price"`
	Image     string `json:"image,omitempty"`
	Category  string `json:"category,omitempty"`
	Quantity  int    `json:"quantity"`
}

// Cart holds the line items for one session along with the discount code the
// session has applied, if any. There is at most one item per product id.
type Cart struct {
	SessionID    string `json:"session_id"`
	Items        []Item `json:"items"`
	DiscountCode string `json:"discount_code,omitempty"`
}

// Subtotal is the sum of unit price times quantity across all items.
func (c *Cart) Subtotal() int {
	total := 0
	for _, it := range c.Items {
		total += it.UnitPrice * it.Quantity
	}
	return total
}

// TotalItems is the sum of quantities across all items.
func (c *Cart) TotalItems() int {
	n := 0
	for _, it := range c.Items {
		n += it.Quantity
	}
	return n
}

// IsEmpty reports whether the cart has no line items.
func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

func (c *Cart) indexOf(productID string) int {
	for i, it := range c.Items {
		if it.ProductID == productID {
			return i
		}
	}
	return -1
}
