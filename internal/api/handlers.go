package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/example/storefront/internal/abandoned"
	"github.com/example/storefront/internal/api/middleware"
	"github.com/example/storefront/internal/cart"
	"github.com/example/storefront/internal/checkout"
	"github.com/example/storefront/internal/discount"
	"github.com/example/storefront/internal/event"
	"github.com/example/storefront/internal/storage"
)

// Handlers serves the cart, discount and checkout endpoints.
type Handlers struct {
	carts     *cart.Store
	discounts *discount.Engine
	checkout  *checkout.Service
	tracker   *abandoned.Tracker
	publisher checkout.Publisher
}

func NewHandlers(
	carts *cart.Store,
	discounts *discount.Engine,
	checkoutSvc *checkout.Service,
	tracker *abandoned.Tracker,
	publisher checkout.Publisher,
) *Handlers {
	return &Handlers{
		carts:     carts,
		discounts: discounts,
		checkout:  checkoutSvc,
		tracker:   tracker,
		publisher: publisher,
	}
}

// cartResponse is the cart payload with derived totals and the toast message
// shown to the shopper.
type cartResponse struct {
	Cart    *cart.Cart      `json:"cart"`
	Totals  checkout.Totals `json:"totals"`
	Message string          `json:"message,omitempty"`
}

// Cart Handlers

func (h *Handlers) GetCart(w http.ResponseWriter, r *http.Request) {
	c, totals, err := h.checkout.Quote(r.Context(), sessionID(r))
	if err != nil {
		respondJSONError(w, "Failed to load cart", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, cartResponse{Cart: c, Totals: totals})
}

func (h *Handlers) AddToCart(w http.ResponseWriter, r *http.Request) {
	var item cart.Item
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	sid := sessionID(r)
	c, incremented, err := h.carts.AddItem(r.Context(), sid, item)
	if err != nil {
		if errors.Is(err, cart.ErrInvalidProduct) {
			respondJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		respondJSONError(w, "Failed to update cart", http.StatusInternalServerError)
		return
	}
	h.trackCart(r, c)

	message := item.Name + " added to cart"
	if incremented {
		message = "Increased " + item.Name + " quantity"
	}
	respondJSON(w, http.StatusOK, h.withTotals(r.Context(), c, message))
}

func (h *Handlers) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	productID := extractPathParam(r.URL.Path, "/cart/items/")

	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	sid := sessionID(r)
	c, err := h.carts.UpdateQuantity(r.Context(), sid, productID, req.Quantity)
	if err != nil {
		respondJSONError(w, "Failed to update cart", http.StatusInternalServerError)
		return
	}
	h.trackCart(r, c)

	respondJSON(w, http.StatusOK, h.withTotals(r.Context(), c, "Cart updated"))
}

func (h *Handlers) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	productID := extractPathParam(r.URL.Path, "/cart/items/")

	sid := sessionID(r)
	c, err := h.carts.RemoveItem(r.Context(), sid, productID)
	if err != nil {
		respondJSONError(w, "Failed to update cart", http.StatusInternalServerError)
		return
	}
	h.trackCart(r, c)

	respondJSON(w, http.StatusOK, h.withTotals(r.Context(), c, "Item removed from cart"))
}

func (h *Handlers) ClearCart(w http.ResponseWriter, r *http.Request) {
	sid := sessionID(r)
	if err := h.carts.Clear(r.Context(), sid); err != nil {
		respondJSONError(w, "Failed to clear cart", http.StatusInternalServerError)
		return
	}
	if h.tracker != nil {
		h.tracker.MarkConverted(sid)
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "Cart cleared"})
}

// Discount Handlers

func (h *Handlers) ApplyDiscount(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	d, err := h.discounts.Apply(r.Context(), req.Code)
	if err != nil {
		if errors.Is(err, discount.ErrInvalidCode) {
			respondJSONError(w, "Invalid or expired discount code", http.StatusBadRequest)
			return
		}
		respondJSONError(w, "Failed to apply discount", http.StatusInternalServerError)
		return
	}

	sid := sessionID(r)
	c, err := h.carts.SetDiscountCode(r.Context(), sid, d.Code)
	if err != nil {
		respondJSONError(w, "Failed to apply discount", http.StatusInternalServerError)
		return
	}

	h.publishDiscountApplied(r.Context(), sid, d, c.Subtotal())

	respondJSON(w, http.StatusOK, h.withTotals(r.Context(), c, "Discount code "+d.Code+" applied"))
}

func (h *Handlers) RemoveDiscount(w http.ResponseWriter, r *http.Request) {
	c, err := h.carts.ClearDiscountCode(r.Context(), sessionID(r))
	if err != nil {
		respondJSONError(w, "Failed to remove discount", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, h.withTotals(r.Context(), c, "Discount removed"))
}

func (h *Handlers) ListActiveDiscounts(w http.ResponseWriter, r *http.Request) {
	active, err := h.discounts.Active(r.Context())
	if err != nil {
		respondJSONError(w, "Failed to list discounts", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, active)
}

// Discount catalog management (admin)

func (h *Handlers) ListDiscounts(w http.ResponseWriter, r *http.Request) {
	all, err := h.discounts.List(r.Context())
	if err != nil {
		respondJSONError(w, "Failed to list discounts", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, all)
}

func (h *Handlers) CreateDiscount(w http.ResponseWriter, r *http.Request) {
	var d discount.Discount
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.discounts.Create(r.Context(), &d); err != nil {
		respondDiscountError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, d)
}

func (h *Handlers) UpdateDiscount(w http.ResponseWriter, r *http.Request) {
	var d discount.Discount
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	d.ID = extractPathParam(r.URL.Path, "/discounts/")

	if err := h.discounts.Update(r.Context(), &d); err != nil {
		respondDiscountError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, d)
}

func (h *Handlers) DeleteDiscount(w http.ResponseWriter, r *http.Request) {
	id := extractPathParam(r.URL.Path, "/discounts/")
	if err := h.discounts.Delete(r.Context(), id); err != nil {
		respondDiscountError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Discount deleted"})
}

func respondDiscountError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, discount.ErrNotFound):
		respondJSONError(w, "Discount not found", http.StatusNotFound)
	case errors.Is(err, discount.ErrMissingCode),
		errors.Is(err, discount.ErrInvalidKind),
		errors.Is(err, discount.ErrInvalidValue):
		respondJSONError(w, err.Error(), http.StatusBadRequest)
	case storage.IsUniqueViolation(err):
		respondJSONError(w, "Discount code already exists", http.StatusConflict)
	default:
		respondJSONError(w, "Failed to save discount", http.StatusInternalServerError)
	}
}

// Checkout Handlers

func (h *Handlers) Checkout(w http.ResponseWriter, r *http.Request) {
	var billing checkout.BillingDetails
	if err := json.NewDecoder(r.Body).Decode(&billing); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	meta := abandoned.Snapshot{
		UserAgent: r.UserAgent(),
		Referrer:  r.Referer(),
	}
	order, err := h.checkout.Submit(r.Context(), sessionID(r), middleware.GetUserID(r.Context()), billing, meta)
	if err != nil {
		var vErr *checkout.ValidationError
		switch {
		case errors.Is(err, checkout.ErrEmptyCart):
			respondJSONError(w, "Your cart is empty", http.StatusBadRequest)
		case errors.As(err, &vErr):
			respondJSONError(w, vErr.Error(), http.StatusBadRequest)
		case errors.Is(err, checkout.ErrPaymentFailed):
			respondJSONError(w, "Payment failed. Please try again.", http.StatusPaymentRequired)
		default:
			respondJSONError(w, "Checkout failed", http.StatusInternalServerError)
		}
		return
	}

	respondJSON(w, http.StatusCreated, order)
}

// Order Handlers

func (h *Handlers) GetOrders(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	orders, err := h.checkout.ListOrders(r.Context(), userID)
	if err != nil {
		respondJSONError(w, "Failed to list orders", http.StatusInternalServerError)
		return
	}
	if orders == nil {
		orders = []checkout.Order{}
	}
	respondJSON(w, http.StatusOK, orders)
}

func (h *Handlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	id := extractPathParam(r.URL.Path, "/orders/")

	order, err := h.checkout.GetOrder(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondJSONError(w, "Order not found", http.StatusNotFound)
			return
		}
		respondJSONError(w, "Failed to load order", http.StatusInternalServerError)
		return
	}

	// Owners see their own orders, admins see all.
	if order.UserID != middleware.GetUserID(r.Context()) && !isAdmin(r) {
		respondJSONError(w, "forbidden", http.StatusForbidden)
		return
	}

	respondJSON(w, http.StatusOK, order)
}

// GetAllOrders returns every order, for the admin dashboard.
func (h *Handlers) GetAllOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.checkout.ListAllOrders(r.Context())
	if err != nil {
		respondJSONError(w, "Failed to list orders", http.StatusInternalServerError)
		return
	}
	if orders == nil {
		orders = []checkout.Order{}
	}
	respondJSON(w, http.StatusOK, orders)
}

// Helpers

func (h *Handlers) withTotals(ctx context.Context, c *cart.Cart, message string) cartResponse {
	_, totals, err := h.checkout.Quote(ctx, c.SessionID)
	if err != nil {
		log.Printf("[API] Failed to compute totals for session %s: %v", c.SessionID, err)
	}
	return cartResponse{Cart: c, Totals: totals, Message: message}
}

func (h *Handlers) trackCart(r *http.Request, c *cart.Cart) {
	if h.tracker == nil {
		return
	}
	snap := abandoned.Snapshot{
		SessionID: c.SessionID,
		Items:     c.Items,
		UserAgent: r.UserAgent(),
		Referrer:  r.Referer(),
	}
	if claims, ok := middleware.GetUserFromContext(r.Context()); ok {
		snap.UserID = claims.UserID
		snap.Email = claims.Email
	}
	h.tracker.Track(snap)
}

func (h *Handlers) publishDiscountApplied(ctx context.Context, sid string, d *discount.Discount, subtotal int) {
	if h.publisher == nil {
		return
	}
	env, err := event.NewEnvelope(event.TypeDiscountApplied, event.DiscountApplied{
		SessionID: sid,
		Code:      d.Code,
		Kind:      string(d.Kind),
		Subtotal:  subtotal,
		Amount:    d.AmountFor(subtotal, "", ""),
	})
	if err != nil {
		log.Printf("[API] Failed to build discount event: %v", err)
		return
	}
	if err := h.publisher.Publish(ctx, sid, env); err != nil {
		log.Printf("[API] Failed to publish discount event: %v", err)
	}
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondJSONError(w http.ResponseWriter, message string, status int) {
	respondJSON(w, status, map[string]string{"error": message})
}

func extractPathParam(path, prefix string) string {
	return strings.TrimPrefix(path, prefix)
}

// sessionID identifies the cart owner: the authenticated user when present,
// otherwise the client-supplied session header so guests keep their carts.
func sessionID(r *http.Request) string {
	if userID := middleware.GetUserID(r.Context()); userID != "" {
		return userID
	}
	if sid := r.Header.Get("X-Session-ID"); sid != "" {
		return sid
	}
	return "default-session"
}

func isAdmin(r *http.Request) bool {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		return false
	}
	return claims.Role == "admin"
}
