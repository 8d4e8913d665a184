package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/stockwatch/backend/internal/apperrors"
	"github.com/stockwatch/backend/internal/services"
	"github.com/stockwatch/backend/internal/utils"
)

// WatchlistHandler manages the authenticated user's watchlist
type WatchlistHandler struct {
	watchlistService *services.WatchlistService
}

func NewWatchlistHandler(watchlistService *services.WatchlistService) *WatchlistHandler {
	return &WatchlistHandler{
		watchlistService: watchlistService,
	}
}

func (h *WatchlistHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/companies/watchlist", h.List).Methods("GET")
	router.HandleFunc("/companies/watchlist", h.Add).Methods("POST")
	router.HandleFunc("/companies/watchlist", h.Remove).Methods("DELETE")
}

type watchlistRequest struct {
	CompanyID uint `json:"company_id"`
}

// List returns the user's watchlist, most recently added first
func (h *WatchlistHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	entries, err := h.watchlistService.List(userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Could not load watchlist")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":     len(entries),
		"watchlist": entries,
	})
}

// Add puts a company on the user's watchlist. Adding a company that is
// already present reports success rather than an error.
func (h *WatchlistHandler) Add(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req watchlistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.CompanyID == 0 {
		respondError(w, http.StatusBadRequest, "company_id is required")
		return
	}

	entry, created, err := h.watchlistService.Add(userID, req.CompanyID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Company not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "Could not update watchlist")
		return
	}

	if !created {
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"message": "Company is already in your watchlist",
		})
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Company added to watchlist successfully",
		"company": entry.Company,
	})
}

// Remove deletes a company from the user's watchlist
func (h *WatchlistHandler) Remove(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req watchlistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.CompanyID == 0 {
		respondError(w, http.StatusBadRequest, "company_id is required")
		return
	}

	if err := h.watchlistService.Remove(userID, req.CompanyID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Company not found in your watchlist")
			return
		}
		respondError(w, http.StatusInternalServerError, "Could not update watchlist")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Company removed from watchlist successfully",
	})
}
