package checkout

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/example/storefront/internal/abandoned"
	"github.com/example/storefront/internal/cart"
	"github.com/example/storefront/internal/discount"
	"github.com/example/storefront/internal/event"
	"github.com/google/uuid"
)

// Processor charges the customer. The real gateway integration is a separate
// concern; the simulated implementation below always succeeds after a fixed
// delay.
type Processor interface {
	Process(ctx context.Context, amount int, billing BillingDetails) error
}

// SimulatedProcessor stands in for a payment gateway.
type SimulatedProcessor struct {
	Delay time.Duration
}

func (p *SimulatedProcessor) Process(ctx context.Context, amount int, billing BillingDetails) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(p.Delay):
		return nil
	}
}

// OrderRepository persists completed orders.
type OrderRepository interface {
	Save(ctx context.Context, o *Order) error
	FindByID(ctx context.Context, id string) (*Order, error)
	ListByUser(ctx context.Context, userID string) ([]Order, error)
	List(ctx context.Context) ([]Order, error)
}

// Publisher emits storefront events; satisfied by event.Producer.
type Publisher interface {
	Publish(ctx context.Context, key string, envelope event.Envelope) error
}

// Service composes cart and discount state into orders.
type Service struct {
	carts     *cart.Store
	discounts *discount.Engine
	orders    OrderRepository
	payments  Processor
	tracker   *abandoned.Tracker
	publisher Publisher
}

func NewService(
	carts *cart.Store,
	discounts *discount.Engine,
	orders OrderRepository,
	payments Processor,
	tracker *abandoned.Tracker,
	publisher Publisher,
) *Service {
	return &Service{
		carts:     carts,
		discounts: discounts,
		orders:    orders,
		payments:  payments,
		tracker:   tracker,
		publisher: publisher,
	}
}

// Quote returns the session's cart with its derived totals. A discount code
// that has become invalid since it was applied contributes zero rather than
// failing the read.
func (s *Service) Quote(ctx context.Context, sessionID string) (*cart.Cart, Totals, error) {
	c, err := s.carts.Get(ctx, sessionID)
	if err != nil {
		return nil, Totals{}, err
	}
	return c, s.totalsFor(ctx, c), nil
}

func (s *Service) totalsFor(ctx context.Context, c *cart.Cart) Totals {
	subtotal := c.Subtotal()
	amount := 0
	if c.DiscountCode != "" {
		if d, err := s.discounts.Apply(ctx, c.DiscountCode); err == nil {
			amount = d.AmountFor(subtotal, "", "")
		}
	}
	return ComputeTotals(subtotal, amount)
}

// Submit runs the checkout flow: validate the billing form, take payment,
// persist the order, then clear the cart. Any failure before the order is
// stored leaves the cart untouched so the customer can retry.
func (s *Service) Submit(ctx context.Context, sessionID, userID string, billing BillingDetails, meta abandoned.Snapshot) (*Order, error) {
	c, err := s.carts.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if c.IsEmpty() {
		return nil, ErrEmptyCart
	}

	if err := billing.Validate(); err != nil {
		return nil, err
	}

	// Guests get a checkout-initiated snapshot for marketing follow-up.
	// Best-effort, never gates the submit.
	if userID == "" && s.tracker != nil {
		meta.SessionID = sessionID
		meta.Email = billing.Email
		meta.Items = c.Items
		meta.CheckoutStarted = true
		s.tracker.Track(meta)
	}

	var applied *discount.Discount
	subtotal := c.Subtotal()
	amount := 0
	if c.DiscountCode != "" {
		if d, err := s.discounts.Apply(ctx, c.DiscountCode); err == nil {
			applied = d
			amount = d.AmountFor(subtotal, "", "")
		}
	}
	totals := ComputeTotals(subtotal, amount)

	if err := s.payments.Process(ctx, totals.Total, billing); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPaymentFailed, err)
	}

	order := &Order{
		ID:           uuid.New().String(),
		Number:       newOrderNumber(),
		UserID:       userID,
		CustomerName: strings.TrimSpace(billing.FirstName + " " + billing.LastName),
		Email:        billing.Email,
		Items:        c.Items,
		Totals:       totals,
		DiscountCode: c.DiscountCode,
		Status:       "completed",
		CreatedAt:    time.Now(),
	}
	if err := s.orders.Save(ctx, order); err != nil {
		return nil, fmt.Errorf("save order: %w", err)
	}

	if applied != nil {
		s.discounts.RecordUsage(ctx, applied.ID)
	}
	if s.tracker != nil {
		s.tracker.MarkConverted(sessionID)
	}
	if err := s.carts.Clear(ctx, sessionID); err != nil {
		log.Printf("[Checkout] Failed to clear cart for session %s: %v", sessionID, err)
	}
	s.publishOrderPlaced(ctx, order)

	return order, nil
}

// GetOrder fetches a single order.
func (s *Service) GetOrder(ctx context.Context, id string) (*Order, error) {
	return s.orders.FindByID(ctx, id)
}

// ListOrders returns the orders belonging to a user.
func (s *Service) ListOrders(ctx context.Context, userID string) ([]Order, error) {
	return s.orders.ListByUser(ctx, userID)
}

// ListAllOrders returns every order, for administrative views.
func (s *Service) ListAllOrders(ctx context.Context) ([]Order, error) {
	return s.orders.List(ctx)
}

func (s *Service) publishOrderPlaced(ctx context.Context, o *Order) {
	if s.publisher == nil {
		return
	}
	env, err := event.NewEnvelope(event.TypeOrderPlaced, event.OrderPlaced{
		OrderID:      o.ID,
		OrderNumber:  o.Number,
		UserID:       o.UserID,
		Email:        o.Email,
		CustomerName: o.CustomerName,
		Items:        o.Items,
		Total:        o.Totals.Total,
	})
	if err != nil {
		log.Printf("[Checkout] Failed to build order event: %v", err)
		return
	}
	if err := s.publisher.Publish(ctx, o.ID, env); err != nil {
		log.Printf("[Checkout] Failed to publish order event: %v", err)
	}
}

var orderNumberSuffix = func() string {
	return strings.ToUpper(uuid.New().String()[:8])
}

func newOrderNumber() string {
	return "ORD-" + orderNumberSuffix()
}
