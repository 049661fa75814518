package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"carflex/internal/billing"
	packservice "carflex/internal/pack/service"
	"carflex/internal/user"
	"carflex/pkg/middleware"
)

// maxWebhookBody bounds the raw payload read; Stripe events are small.
const maxWebhookBody = int64(65536)

type userGetter interface {
	GetByID(ctx context.Context, id string) (*user.User, error)
}

type Handler struct {
	Checkout   *billing.Checkout
	Reconciler *billing.Reconciler
	Users      userGetter
	Log        zerolog.Logger
}

func NewHandler(checkout *billing.Checkout, reconciler *billing.Reconciler, users userGetter, log zerolog.Logger) *Handler {
	return &Handler{Checkout: checkout, Reconciler: reconciler, Users: users, Log: log}
}

type checkoutRequest struct {
	PackID        string `json:"packId"`
	BillingPeriod string `json:"billingPeriod"`
}

func (h *Handler) CreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "no token provided", http.StatusUnauthorized)
		return
	}

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if req.PackID == "" || req.BillingPeriod == "" {
		http.Error(w, "pack ID and billing period are required", http.StatusBadRequest)
		return
	}

	u, err := h.Users.GetByID(r.Context(), userID)
	if err != nil {
		http.Error(w, "failed to load user", http.StatusInternalServerError)
		return
	}

	url, err := h.Checkout.CreateSession(r.Context(), u, req.PackID, req.BillingPeriod)
	if err != nil {
		switch {
		case errors.Is(err, billing.ErrInvalidBillingPeriod):
			http.Error(w, "invalid billing period", http.StatusBadRequest)
		case errors.Is(err, packservice.ErrPackNotFound):
			http.Error(w, "pack not found", http.StatusNotFound)
		default:
			h.Log.Error().Err(err).Str("user_id", userID).Msg("checkout session failed")
			http.Error(w, "error creating checkout session", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"url": url})
}

// Webhook receives Stripe event deliveries. The body is kept as raw bytes
// for signature verification; parsing happens inside the reconciler only
// after the signature checks out.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	sig := r.Header.Get("Stripe-Signature")
	if sig == "" {
		http.Error(w, "no signature", http.StatusBadRequest)
		return
	}

	if err := h.Reconciler.HandleEvent(r.Context(), body, sig); err != nil {
		if errors.Is(err, billing.ErrSignatureInvalid) {
			http.Error(w, "signature verification failed", http.StatusBadRequest)
			return
		}
		// Transient ledger failure: answer 5xx so Stripe redelivers into the
		// idempotent handler.
		h.Log.Error().Err(err).Msg("webhook processing failed")
		http.Error(w, "webhook processing failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"received": true})
}
