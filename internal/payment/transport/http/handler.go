package http

import (
	"context"
	"encoding/json"
	"net/http"

	"carflex/internal/payment"
	"carflex/pkg/middleware"
)

type paymentStore interface {
	GetByUserID(ctx context.Context, userID string) ([]*payment.Payment, error)
	GetAllWithUser(ctx context.Context) ([]*payment.WithUser, error)
}

type Handler struct {
	Payments paymentStore
}

func NewHandler(payments paymentStore) *Handler {
	return &Handler{Payments: payments}
}

// ListMine returns the authenticated user's payment history, newest first.
func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())

	payments, err := h.Payments.GetByUserID(r.Context(), userID)
	if err != nil {
		http.Error(w, "error fetching payments", http.StatusInternalServerError)
		return
	}
	if payments == nil {
		payments = []*payment.Payment{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(payments)
}

func (h *Handler) AdminList(w http.ResponseWriter, r *http.Request) {
	payments, err := h.Payments.GetAllWithUser(r.Context())
	if err != nil {
		http.Error(w, "error fetching payments", http.StatusInternalServerError)
		return
	}
	if payments == nil {
		payments = []*payment.WithUser{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(payments)
}
