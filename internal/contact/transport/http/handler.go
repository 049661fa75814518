package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"carflex/pkg/mailer"
)

type Handler struct {
	Mailer mailer.Mailer
	Log    zerolog.Logger

	validate *validator.Validate
}

func NewHandler(m mailer.Mailer, log zerolog.Logger) *Handler {
	return &Handler{Mailer: m, Log: log, validate: validator.New()}
}

type contactRequest struct {
	Name         string `json:"name" validate:"required,max=200"`
	Email        string `json:"email" validate:"required,email"`
	Phone        string `json:"phone" validate:"omitempty,max=40"`
	PackInterest string `json:"packInterest" validate:"omitempty,max=100"`
	Message      string `json:"message" validate:"required,max=5000"`
}

func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	var req contactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		http.Error(w, "invalid input", http.StatusBadRequest)
		return
	}

	err := h.Mailer.SendContactNotification(r.Context(), req.Email, req.Name, req.Phone, req.PackInterest, req.Message)
	if err != nil {
		h.Log.Error().Err(err).Msg("contact notification failed")
		http.Error(w, "error sending message", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Message received. We'll get back to you soon!"})
}
