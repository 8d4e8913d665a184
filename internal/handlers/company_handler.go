package handlers

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/stockwatch/backend/internal/apperrors"
	"github.com/stockwatch/backend/internal/services"
)

// CompanyHandler serves the public company catalog
type CompanyHandler struct {
	companyService *services.CompanyService
}

func NewCompanyHandler(companyService *services.CompanyService) *CompanyHandler {
	return &CompanyHandler{
		companyService: companyService,
	}
}

func (h *CompanyHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/companies/search", h.Search).Methods("GET")
}

// Search filters companies by name or symbol, case-insensitively
func (h *CompanyHandler) Search(w http.ResponseWriter, r *http.Request) {
	companies, err := h.companyService.Search(r.URL.Query().Get("q"))
	if err != nil {
		if errors.Is(err, apperrors.ErrEmptyQuery) {
			respondError(w, http.StatusBadRequest, "Query parameter 'q' is required")
			return
		}
		respondError(w, http.StatusInternalServerError, "Search failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":   len(companies),
		"results": companies,
	})
}
