package notification

import (
	"context"
	"encoding/json"
	"log"

	"github.com/example/storefront/internal/email"
	"github.com/example/storefront/internal/event"
)

// Handler turns storefront events into customer email.
type Handler struct {
	emailService *email.Service
}

func NewHandler(emailSvc *email.Service) *Handler {
	return &Handler{emailService: emailSvc}
}

// HandleEvent processes one event from the stream.
func (h *Handler) HandleEvent(ctx context.Context, key, value []byte) error {
	var env event.Envelope
	if err := json.Unmarshal(value, &env); err != nil {
		log.Printf("[Notifier] Failed to unmarshal event: %v", err)
		return err
	}

	if env.Type == event.TypeOrderPlaced {
		return h.handleOrderPlaced(env)
	}

	return nil
}

func (h *Handler) handleOrderPlaced(env event.Envelope) error {
	var e event.OrderPlaced
	if err := json.Unmarshal(env.Data, &e); err != nil {
		log.Printf("[Notifier] Failed to unmarshal order event: %v", err)
		return err
	}

	log.Printf("[Notifier] Processing order %s for %s", e.OrderNumber, e.Email)

	if e.Email == "" {
		log.Printf("[Notifier] No email on order %s, skipping", e.OrderNumber)
		return nil
	}

	emailItems := make([]email.OrderItem, len(e.Items))
	for i, item := range e.Items {
		emailItems[i] = email.OrderItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			Price:     item.UnitPrice,
		}
	}

	if err := h.emailService.SendOrderConfirmation(e.Email, e.OrderNumber, e.CustomerName, e.Total, emailItems); err != nil {
		log.Printf("[Notifier] Failed to send email to %s: %v", e.Email, err)
		return err
	}

	log.Printf("[Notifier] Order confirmation sent to %s for %s", e.Email, e.OrderNumber)
	return nil
}
