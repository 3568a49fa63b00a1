package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/example/storefront/internal/api/middleware"
	"github.com/example/storefront/internal/auth"
	"github.com/example/storefront/internal/storage"
	"github.com/google/uuid"
)

// AuthHandlers serves registration, login and logout.
type AuthHandlers struct {
	users      *storage.UserRepository
	jwtService *auth.JWTService
}

func NewAuthHandlers(users *storage.UserRepository, jwtService *auth.JWTService) *AuthHandlers {
	return &AuthHandlers{
		users:      users,
		jwtService: jwtService,
	}
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	User    UserResponse `json:"user"`
	Message string       `json:"message,omitempty"`
}

type UserResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func userResponse(u *storage.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}

// Register creates an account and signs the caller in.
func (h *AuthHandlers) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Email == "" || req.Name == "" {
		respondJSONError(w, "Email and name are required", http.StatusBadRequest)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooShort) {
			respondJSONError(w, "Password must be at least 8 characters", http.StatusBadRequest)
			return
		}
		respondJSONError(w, "Registration failed", http.StatusInternalServerError)
		return
	}

	user := &storage.User{
		ID:           uuid.New().String(),
		Email:        req.Email,
		PasswordHash: hash,
		Name:         req.Name,
		Role:         "customer",
		IsActive:     true,
		CreatedAt:    time.Now(),
	}
	if err := h.users.Create(r.Context(), user); err != nil {
		if storage.IsUniqueViolation(err) {
			respondJSONError(w, "Email already registered", http.StatusConflict)
			return
		}
		respondJSONError(w, "Registration failed", http.StatusInternalServerError)
		return
	}

	h.setAuthCookie(w, user)
	respondJSON(w, http.StatusCreated, AuthResponse{
		User:    userResponse(user),
		Message: "Registration successful",
	})
}

// Login authenticates an existing account.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	user, err := h.users.FindByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondJSONError(w, "Invalid email or password", http.StatusUnauthorized)
			return
		}
		respondJSONError(w, "Login failed", http.StatusInternalServerError)
		return
	}

	if !user.IsActive {
		respondJSONError(w, "Account is deactivated", http.StatusForbidden)
		return
	}
	if !auth.CheckPassword(req.Password, user.PasswordHash) {
		respondJSONError(w, "Invalid email or password", http.StatusUnauthorized)
		return
	}

	h.setAuthCookie(w, user)
	respondJSON(w, http.StatusOK, AuthResponse{
		User:    userResponse(user),
		Message: "Login successful",
	})
}

// Logout clears the auth cookie.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     "access_token",
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	respondJSON(w, http.StatusOK, map[string]string{"message": "Logout successful"})
}

// Me returns the authenticated account.
func (h *AuthHandlers) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		respondJSONError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	user, err := h.users.FindByID(r.Context(), claims.UserID)
	if err != nil {
		respondJSONError(w, "Account not found", http.StatusNotFound)
		return
	}
	respondJSON(w, http.StatusOK, userResponse(user))
}

func (h *AuthHandlers) setAuthCookie(w http.ResponseWriter, user *storage.User) {
	token, expiresAt, err := h.jwtService.GenerateToken(user.ID, user.Email, user.Role)
	if err != nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     "access_token",
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
