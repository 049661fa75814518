package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"carflex/internal/subscription"
	"carflex/internal/subscription/service"
	"carflex/pkg/middleware"
)

type Handler struct {
	Service *service.Service
}

func NewHandler(s *service.Service) *Handler {
	return &Handler{Service: s}
}

// GetMine returns the authenticated user's current subscription with its
// pack, or JSON null when none exists.
func (h *Handler) GetMine(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())

	sub, err := h.Service.GetCurrent(r.Context(), userID)
	if err != nil {
		http.Error(w, "error fetching subscription", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sub)
}

func (h *Handler) AdminList(w http.ResponseWriter, r *http.Request) {
	subs, err := h.Service.GetAll(r.Context())
	if err != nil {
		http.Error(w, "error fetching subscriptions", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(subs)
}

type adminUpdateRequest struct {
	Status      *string `json:"status"`
	Vehicle     *string `json:"vehicle"`
	MileageUsed *int    `json:"mileageUsed"`
}

func (h *Handler) AdminUpdate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req adminUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if req.Status != nil {
		switch *req.Status {
		case subscription.StatusActive, subscription.StatusInactive, subscription.StatusCancelled:
		default:
			http.Error(w, "invalid status", http.StatusBadRequest)
			return
		}
	}

	sub, err := h.Service.Update(r.Context(), id, subscription.Update{
		Status:      req.Status,
		Vehicle:     req.Vehicle,
		MileageUsed: req.MileageUsed,
	})
	if err != nil {
		if errors.Is(err, service.ErrSubscriptionNotFound) {
			http.Error(w, "subscription not found", http.StatusNotFound)
			return
		}
		http.Error(w, "error updating subscription", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sub)
}
