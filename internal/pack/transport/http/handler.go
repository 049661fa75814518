package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"carflex/internal/pack"
	"carflex/internal/pack/service"
)

type Handler struct {
	Service *service.Service

	validate *validator.Validate
}

func NewHandler(s *service.Service) *Handler {
	return &Handler{Service: s, validate: validator.New()}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	packs, err := h.Service.GetAll(r.Context())
	if err != nil {
		http.Error(w, "error fetching packs", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(packs)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	p, err := h.Service.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrPackNotFound) {
			http.Error(w, "pack not found", http.StatusNotFound)
			return
		}
		http.Error(w, "error fetching pack", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(p)
}

type packRequest struct {
	Name         string   `json:"name" validate:"required,min=1,max=100"`
	Subtitle     string   `json:"subtitle" validate:"required,max=200"`
	PriceMonthly string   `json:"priceMonthly" validate:"required"`
	PriceYearly  string   `json:"priceYearly" validate:"required"`
	MileageLimit *int     `json:"mileageLimit" validate:"omitempty,gt=0"`
	Features     []string `json:"features" validate:"required,min=1"`
	IsPopular    bool     `json:"isPopular"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req packRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		http.Error(w, "invalid input", http.StatusBadRequest)
		return
	}

	p := &pack.Pack{
		Name:         req.Name,
		Subtitle:     req.Subtitle,
		PriceMonthly: req.PriceMonthly,
		PriceYearly:  req.PriceYearly,
		MileageLimit: req.MileageLimit,
		Features:     req.Features,
		IsPopular:    req.IsPopular,
	}
	if err := h.Service.Create(r.Context(), p); err != nil {
		http.Error(w, "error creating pack", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(p)
}

type packUpdateRequest struct {
	Name         *string  `json:"name"`
	Subtitle     *string  `json:"subtitle"`
	PriceMonthly *string  `json:"priceMonthly"`
	PriceYearly  *string  `json:"priceYearly"`
	MileageLimit *int     `json:"mileageLimit"`
	Features     []string `json:"features"`
	IsPopular    *bool    `json:"isPopular"`
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req packUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	p, err := h.Service.Update(r.Context(), id, pack.Update{
		Name:         req.Name,
		Subtitle:     req.Subtitle,
		PriceMonthly: req.PriceMonthly,
		PriceYearly:  req.PriceYearly,
		MileageLimit: req.MileageLimit,
		Features:     req.Features,
		IsPopular:    req.IsPopular,
	})
	if err != nil {
		if errors.Is(err, service.ErrPackNotFound) {
			http.Error(w, "pack not found", http.StatusNotFound)
			return
		}
		http.Error(w, "error updating pack", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(p)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.Service.Delete(r.Context(), id); err != nil {
		if errors.Is(err, service.ErrPackNotFound) {
			http.Error(w, "pack not found", http.StatusNotFound)
			return
		}
		http.Error(w, "error deleting pack", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "pack deleted successfully"})
}
