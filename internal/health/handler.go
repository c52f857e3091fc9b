package health

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/bissquit/healthboard/internal/domain"
	"github.com/bissquit/healthboard/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// Pagination constants.
const (
	DefaultEventsLimit = 20
	MaxEventsLimit     = 100
)

// Handler handles HTTP requests for services and events.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new health handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(),
	}
}

// RegisterRoutes registers public read-only routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/services", h.ListServices)
	r.Get("/services/{slug}", h.GetService)
	r.Get("/events", h.ListEvents)
	r.Get("/events/{id}", h.GetEvent)
	r.Get("/events/{id}/updates", h.ListEventUpdates)
}

// RegisterOperatorRoutes registers routes that require operator role.
func (h *Handler) RegisterOperatorRoutes(r chi.Router) {
	r.Post("/services", h.CreateService)
	r.Post("/events", h.CreateEvent)
	r.Delete("/events/{id}", h.DeleteEvent)
	r.Post("/events/{id}/updates", h.AddUpdate)
	r.Post("/events/{id}/services", h.AddServices)
	r.Delete("/events/{id}/services/{slug}", h.RemoveService)
}

// CreateServiceRequest represents the request body for creating a service.
type CreateServiceRequest struct {
	Name        string `json:"name" validate:"required,min=1,max=255"`
	Slug        string `json:"slug" validate:"required,min=1,max=255"`
	Description string `json:"description"`
	Status      string `json:"status" validate:"omitempty,oneof=green yellow orange red"`
	Order       int    `json:"order" validate:"gte=0"`
}

// CreateEventRequest represents the request body for opening an event.
type CreateEventRequest struct {
	Services    []string `json:"services" validate:"required,min=1,dive,required"`
	Description string   `json:"description"`
	Status      string   `json:"status" validate:"omitempty,oneof=green yellow orange red"`
	Message     string   `json:"message"`
}

// AddUpdateRequest represents the request body for appending an event update.
type AddUpdateRequest struct {
	Status    string     `json:"status" validate:"required,oneof=green yellow orange red"`
	Message   string     `json:"message"`
	CreatedOn *time.Time `json:"created_on"`
}

// ServicesRequest represents a list of service slugs.
type ServicesRequest struct {
	Services []string `json:"services" validate:"required,min=1,dive,required"`
}

// ServiceResponse is a service with its human-readable status message.
type ServiceResponse struct {
	domain.Service
	Message string `json:"message"`
}

// EventResponse is an event with a summary naming its services.
type EventResponse struct {
	*domain.Event
	Summary string `json:"summary"`
}

func newServiceResponse(s domain.Service) ServiceResponse {
	return ServiceResponse{Service: s, Message: ServiceMessage(s.Status)}
}

// CreateService handles POST /services request.
func (h *Handler) CreateService(w http.ResponseWriter, r *http.Request) {
	var req CreateServiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	status := domain.StatusGreen
	if req.Status != "" {
		status, _ = domain.ParseStatusLevel(req.Status)
	}

	service, err := h.service.CreateService(r.Context(), CreateServiceInput{
		Name:        req.Name,
		Slug:        req.Slug,
		Description: req.Description,
		Status:      status,
		Order:       req.Order,
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.Success(w, http.StatusCreated, newServiceResponse(*service))
}

// ListServices handles GET /services request.
func (h *Handler) ListServices(w http.ResponseWriter, r *http.Request) {
	services, err := h.service.ListServices(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	resp := make([]ServiceResponse, 0, len(services))
	for _, s := range services {
		resp = append(resp, newServiceResponse(s))
	}

	httputil.Success(w, http.StatusOK, resp)
}

// GetService handles GET /services/{slug} request.
func (h *Handler) GetService(w http.ResponseWriter, r *http.Request) {
	service, err := h.service.GetServiceBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.Success(w, http.StatusOK, newServiceResponse(*service))
}

// CreateEvent handles POST /events request.
func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req CreateEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	input := CreateEventInput{
		ServiceSlugs: req.Services,
		Description:  req.Description,
		Message:      req.Message,
	}
	if req.Status != "" {
		status, _ := domain.ParseStatusLevel(req.Status)
		input.Status = &status
	}

	event, err := h.service.CreateEvent(r.Context(), input)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.respondEvent(w, r, http.StatusCreated, event)
}

// GetEvent handles GET /events/{id} request.
func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	event, err := h.service.GetEvent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.respondEvent(w, r, http.StatusOK, event)
}

// ListEvents handles GET /events request.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	filter := EventFilter{Limit: DefaultEventsLimit}
	query := r.URL.Query()

	if query.Get("open") == "true" {
		filter.OpenOnly = true
	}

	if l := query.Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 {
			httputil.Error(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if parsed > MaxEventsLimit {
			parsed = MaxEventsLimit
		}
		filter.Limit = parsed
	}

	if o := query.Get("offset"); o != "" {
		parsed, err := strconv.Atoi(o)
		if err != nil || parsed < 0 {
			httputil.Error(w, http.StatusBadRequest, "offset must be a non-negative integer")
			return
		}
		filter.Offset = parsed
	}

	if slug := query.Get("service"); slug != "" {
		service, err := h.service.GetServiceBySlug(r.Context(), slug)
		if err != nil {
			h.handleServiceError(w, r, err)
			return
		}
		filter.ServiceID = &service.ID
	}

	events, err := h.service.ListEvents(r.Context(), filter)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	resp := make([]EventResponse, 0, len(events))
	for _, e := range events {
		item, err := h.eventResponse(r, e)
		if err != nil {
			h.handleServiceError(w, r, err)
			return
		}
		resp = append(resp, item)
	}

	httputil.Success(w, http.StatusOK, resp)
}

// ListEventUpdates handles GET /events/{id}/updates request.
func (h *Handler) ListEventUpdates(w http.ResponseWriter, r *http.Request) {
	updates, err := h.service.ListEventUpdates(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	if updates == nil {
		updates = make([]*domain.EventUpdate, 0)
	}
	httputil.Success(w, http.StatusOK, updates)
}

// AddUpdate handles POST /events/{id}/updates request.
func (h *Handler) AddUpdate(w http.ResponseWriter, r *http.Request) {
	var req AddUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	status, _ := domain.ParseStatusLevel(req.Status)
	update, err := h.service.AddUpdate(r.Context(), AddUpdateInput{
		EventID:   chi.URLParam(r, "id"),
		Status:    status,
		Message:   req.Message,
		CreatedAt: req.CreatedOn,
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.Success(w, http.StatusCreated, update)
}

// AddServices handles POST /events/{id}/services request.
func (h *Handler) AddServices(w http.ResponseWriter, r *http.Request) {
	var req ServicesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	event, err := h.service.AddServices(r.Context(), chi.URLParam(r, "id"), req.Services)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.respondEvent(w, r, http.StatusOK, event)
}

// RemoveService handles DELETE /events/{id}/services/{slug} request.
func (h *Handler) RemoveService(w http.ResponseWriter, r *http.Request) {
	event, err := h.service.RemoveServices(r.Context(), chi.URLParam(r, "id"), []string{chi.URLParam(r, "slug")})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.respondEvent(w, r, http.StatusOK, event)
}

// DeleteEvent handles DELETE /events/{id} request.
func (h *Handler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteEvent(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.NoContent(w)
}

func (h *Handler) respondEvent(w http.ResponseWriter, r *http.Request, status int, event *domain.Event) {
	resp, err := h.eventResponse(r, event)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	httputil.Success(w, status, resp)
}

func (h *Handler) eventResponse(r *http.Request, event *domain.Event) (EventResponse, error) {
	if event.ServiceIDs == nil {
		event.ServiceIDs = make([]string, 0)
	}

	names, err := h.service.ServiceNames(r.Context(), event.ServiceIDs)
	if err != nil {
		return EventResponse{}, err
	}
	return EventResponse{Event: event, Summary: EventMessage(event.Status, names)}, nil
}

var errorMappings = []httputil.ErrorMapping{
	{Error: ErrServiceNotFound, Status: http.StatusNotFound},
	{Error: ErrEventNotFound, Status: http.StatusNotFound},
	{Error: ErrSlugExists, Status: http.StatusConflict},
	{Error: ErrRollupConflict, Status: http.StatusConflict, Message: "concurrent status update, retry the request"},
	{Error: ErrInvalidStatus, Status: http.StatusBadRequest},
	{Error: ErrNoServices, Status: http.StatusBadRequest},
}

func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	httputil.HandleError(r.Context(), w, err, errorMappings)
}
