package event

import (
	"encoding/json"
	"time"

	"github.com/example/storefront/internal/cart"
	"github.com/google/uuid"
)

// Event types published on the storefront topic.
const (
	TypeOrderPlaced     = "order.placed"
	TypeDiscountApplied = "discount.applied"
)

// Envelope wraps a typed payload on the wire.
type Envelope struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

// NewEnvelope marshals a payload into a wire envelope.
func NewEnvelope(eventType string, data any) (Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		ID:         uuid.New().String(),
		Type:       eventType,
		OccurredAt: time.Now(),
		Data:       raw,
	}, nil
}

// OrderPlaced is emitted when a checkout completes.
type OrderPlaced struct {
	OrderID      string      `json:"order_id"`
	OrderNumber  string      `json:"order_number"`
	UserID       string      `json:"user_id,omitempty"`
	Email        string      `json:"email"`
	CustomerName string      `json:"customer_name"`
	Items        []cart.Item `json:"items"`
	Total        int         `json:"total"`
}

// DiscountApplied is emitted when a session successfully applies a code.
type DiscountApplied struct {
	SessionID string `json:"session_id"`
	Code      string `json:"code"`
	Kind      string `json:"kind"`
	Subtotal  int    `json:"subtotal"`
	Amount    int    `json:"amount"`
}
