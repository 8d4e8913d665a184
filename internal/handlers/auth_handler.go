package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/stockwatch/backend/internal/apperrors"
	"github.com/stockwatch/backend/internal/models"
	"github.com/stockwatch/backend/internal/services"
)

// AuthHandler handles registration and token issuance
type AuthHandler struct {
	authService services.AuthService
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService services.AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
	}
}

func (h *AuthHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/auth/register", h.Register).Methods("POST")
	router.HandleFunc("/auth/login", h.Login).Methods("POST")
	router.HandleFunc("/auth/token/refresh", h.Refresh).Methods("POST")
}

// Register creates a new user account
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := h.authService.Register(req)
	if err != nil {
		var verr *apperrors.ValidationError
		if errors.As(err, &verr) {
			respondJSON(w, http.StatusBadRequest, map[string]interface{}{
				"errors": verr.Fields,
			})
			return
		}
		respondError(w, http.StatusInternalServerError, "Could not create user")
		return
	}

	// The hashed password is never serialized
	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "User registered successfully",
		"user":    user,
	})
}

// Login handles user login and returns an access/refresh token pair
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var loginReq models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&loginReq); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := h.authService.Authenticate(loginReq.Username, loginReq.Password)
	if err != nil {
		if errors.Is(err, apperrors.ErrInvalidCredentials) {
			respondError(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		respondError(w, http.StatusInternalServerError, "Login failed")
		return
	}

	tokens, err := h.authService.GenerateTokenPair(user)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Could not generate token")
		return
	}

	respondJSON(w, http.StatusOK, tokens)
}

// Refresh exchanges a valid refresh token for a new access token
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req models.RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		respondError(w, http.StatusUnauthorized, "Refresh token is required")
		return
	}

	tokens, err := h.authService.Refresh(req.RefreshToken)
	if err != nil {
		if errors.Is(err, apperrors.ErrTokenInvalid) {
			respondError(w, http.StatusUnauthorized, "Invalid or expired refresh token")
			return
		}
		respondError(w, http.StatusInternalServerError, "Could not refresh token")
		return
	}

	respondJSON(w, http.StatusOK, tokens)
}
