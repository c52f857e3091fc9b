package identity

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/bissquit/healthboard/internal/pkg/ctxlog"
	"github.com/bissquit/healthboard/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

var loginErrors = []httputil.ErrorMapping{
	{Error: ErrInvalidCredentials, Status: http.StatusUnauthorized, Message: ErrInvalidCredentials.Error()},
}

// Handler serves the operator login endpoint.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new identity handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(),
	}
}

// RegisterRoutes mounts POST /auth/login.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/auth/login", h.Login)
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Login exchanges operator credentials for an access token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	ctx := ctxlog.With(r.Context(), "email", req.Email)
	token, err := h.service.Login(ctx, LoginInput(req))
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			ctxlog.FromContext(ctx).Info("login rejected")
		}
		httputil.HandleError(ctx, w, err, loginErrors)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	httputil.Success(w, http.StatusOK, token)
}
