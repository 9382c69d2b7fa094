package orgs

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/taskhive/taskhive/internal/authz"
	"github.com/taskhive/taskhive/internal/platform/httpx"
)

// Handler manages organization endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	guard   authz.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, guard authz.Middleware) *Handler {
	return &Handler{logger: logger, service: service, guard: guard}
}

// MountRoutes registers organization routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.getOrganization)
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireAdminFeatures)
		r.Post("/gdpr/export", h.requestExport)
		r.Post("/gdpr/erasure", h.requestErasure)
	})
}

func (h *Handler) getOrganization(w http.ResponseWriter, r *http.Request) {
	actor := authz.IdentityFromContext(r.Context())
	org, err := h.service.GetOrganization(r.Context(), actor)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"id":   org.ID,
		"name": org.Name,
		"slug": org.Slug,
	})
}

func (h *Handler) requestExport(w http.ResponseWriter, r *http.Request) {
	actor := authz.IdentityFromContext(r.Context())
	requestID, err := h.service.RequestDataExport(r.Context(), actor)
	if err != nil {
		h.logger.Error("request gdpr export", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusAccepted, map[string]any{"request_id": requestID})
}

func (h *Handler) requestErasure(w http.ResponseWriter, r *http.Request) {
	actor := authz.IdentityFromContext(r.Context())
	requestID, err := h.service.RequestErasure(r.Context(), actor)
	if err != nil {
		h.logger.Error("request gdpr erasure", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusAccepted, map[string]any{"request_id": requestID})
}
