package api

import (
	"log"
	"net/http"

	"github.com/example/storefront/internal/api/middleware"
	"github.com/example/storefront/internal/auth"
)

// RouterConfig bundles the dependencies the router wires together.
type RouterConfig struct {
	Handlers     *Handlers
	AuthHandlers *AuthHandlers
	JWTService   *auth.JWTService
}

func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	optional := middleware.OptionalAuth(cfg.JWTService)
	authed := middleware.Auth(cfg.JWTService)
	admin := func(h http.Handler) http.Handler {
		return authed(middleware.RequireRole("admin")(h))
	}

	// Auth
	mux.HandleFunc("/auth/register", methodHandler(map[string]http.HandlerFunc{
		http.MethodPost: cfg.AuthHandlers.Register,
	}))
	mux.HandleFunc("/auth/login", methodHandler(map[string]http.HandlerFunc{
		http.MethodPost: cfg.AuthHandlers.Login,
	}))
	mux.HandleFunc("/auth/logout", methodHandler(map[string]http.HandlerFunc{
		http.MethodPost: cfg.AuthHandlers.Logout,
	}))
	mux.Handle("/auth/me", authed(methodHandler(map[string]http.HandlerFunc{
		http.MethodGet: cfg.AuthHandlers.Me,
	})))

	// Cart (guests allowed)
	mux.Handle("/cart", optional(methodHandler(map[string]http.HandlerFunc{
		http.MethodGet:    cfg.Handlers.GetCart,
		http.MethodDelete: cfg.Handlers.ClearCart,
	})))
	mux.Handle("/cart/items", optional(methodHandler(map[string]http.HandlerFunc{
		http.MethodPost: cfg.Handlers.AddToCart,
	})))
	mux.Handle("/cart/items/", optional(methodHandler(map[string]http.HandlerFunc{
		http.MethodPut:    cfg.Handlers.UpdateCartItem,
		http.MethodDelete: cfg.Handlers.RemoveFromCart,
	})))
	mux.Handle("/cart/discount", optional(methodHandler(map[string]http.HandlerFunc{
		http.MethodPost:   cfg.Handlers.ApplyDiscount,
		http.MethodDelete: cfg.Handlers.RemoveDiscount,
	})))

	// Discounts
	mux.HandleFunc("/discounts/active", methodHandler(map[string]http.HandlerFunc{
		http.MethodGet: cfg.Handlers.ListActiveDiscounts,
	}))
	mux.Handle("/discounts", admin(methodHandler(map[string]http.HandlerFunc{
		http.MethodGet:  cfg.Handlers.ListDiscounts,
		http.MethodPost: cfg.Handlers.CreateDiscount,
	})))
	mux.Handle("/discounts/", admin(methodHandler(map[string]http.HandlerFunc{
		http.MethodPut:    cfg.Handlers.UpdateDiscount,
		http.MethodDelete: cfg.Handlers.DeleteDiscount,
	})))

	// Checkout
	mux.Handle("/checkout", optional(methodHandler(map[string]http.HandlerFunc{
		http.MethodPost: cfg.Handlers.Checkout,
	})))

	// Orders
	mux.Handle("/orders", authed(methodHandler(map[string]http.HandlerFunc{
		http.MethodGet: cfg.Handlers.GetOrders,
	})))
	mux.Handle("/orders/", optional(methodHandler(map[string]http.HandlerFunc{
		http.MethodGet: cfg.Handlers.GetOrder,
	})))
	mux.Handle("/admin/orders", admin(methodHandler(map[string]http.HandlerFunc{
		http.MethodGet: cfg.Handlers.GetAllOrders,
	})))

	return withLogging(mux)
}

// methodHandler dispatches by HTTP method, rejecting everything else.
func methodHandler(handlers map[string]http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h, ok := handlers[r.Method]; ok {
			h(w, r)
			return
		}
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Printf("[API] %s %s", r.Method, r.URL.Path)
		next.ServeHTTP(w, r)
	})
}
