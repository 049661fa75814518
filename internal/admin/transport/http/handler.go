package http

import (
	"context"
	"encoding/json"
	"net/http"

	"carflex/internal/admin/repository"
)

type statsStore interface {
	GetStats(ctx context.Context) (*repository.Stats, error)
}

type Handler struct {
	Stats statsStore
}

func NewHandler(stats statsStore) *Handler {
	return &Handler{Stats: stats}
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Stats.GetStats(r.Context())
	if err != nil {
		http.Error(w, "error fetching stats", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}
