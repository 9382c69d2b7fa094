package departments

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/taskhive/taskhive/internal/authz"
	"github.com/taskhive/taskhive/internal/platform/httpx"
)

// Handler manages department endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	guard     authz.Middleware
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, guard authz.Middleware) *Handler {
	return &Handler{logger: logger, service: service, guard: guard, validator: validator.New()}
}

// MountRoutes registers department routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/hierarchy", h.getHierarchy)
	r.Get("/{id}/effective-permissions", h.getEffectivePermissions)
	r.Post("/", h.createDepartment)
	r.Put("/{id}", h.updateDepartment)
	r.Delete("/{id}", h.deleteDepartment)
}

type departmentRequest struct {
	Name               string `json:"name" validate:"required,max=200"`
	ParentDepartmentID *int64 `json:"parent_department_id"`
	ManagerUserID      *int64 `json:"manager_user_id"`
	IsActive           *bool  `json:"is_active"`
}

type departmentResponse struct {
	ID                 int64  `json:"id"`
	ParentDepartmentID *int64 `json:"parent_department_id,omitempty"`
	Name               string `json:"name"`
	ManagerUserID      *int64 `json:"manager_user_id,omitempty"`
	IsActive           bool   `json:"is_active"`
}

type treeResponse struct {
	departmentResponse
	MemberCount *uint32        `json:"member_count,omitempty"`
	Children    []treeResponse `json:"children"`
}

func (h *Handler) getHierarchy(w http.ResponseWriter, r *http.Request) {
	actor := authz.IdentityFromContext(r.Context())
	withCounts := r.URL.Query().Get("with_member_counts") == "true"
	forest, err := h.service.Hierarchy(r.Context(), actor, withCounts)
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]treeResponse, len(forest))
	for i, n := range forest {
		out[i] = toTreeResponse(n)
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"departments": out})
}

func (h *Handler) getEffectivePermissions(w http.ResponseWriter, r *http.Request) {
	actor := authz.IdentityFromContext(r.Context())
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid department id")
		return
	}
	eff, err := h.service.EffectivePermissionsFor(r.Context(), actor, id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	chain := make([]map[string]any, len(eff.Chain))
	for i, ref := range eff.Chain {
		chain[i] = map[string]any{"entity_type": ref.EntityType, "entity_id": ref.EntityID}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"settings":    eff.Settings,
		"inheritance": eff.Inheritance,
		"compliance":  eff.Compliance,
		"chain":       chain,
	})
}

func (h *Handler) createDepartment(w http.ResponseWriter, r *http.Request) {
	actor := authz.IdentityFromContext(r.Context())
	var req departmentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	dept, err := h.service.CreateDepartment(r.Context(), actor, CreateInput{
		ParentDepartmentID: req.ParentDepartmentID,
		Name:               req.Name,
		ManagerUserID:      req.ManagerUserID,
	})
	if err != nil {
		h.logger.Error("create department", slog.Any("error", err))
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toResponse(dept))
}

func (h *Handler) updateDepartment(w http.ResponseWriter, r *http.Request) {
	actor := authz.IdentityFromContext(r.Context())
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid department id")
		return
	}
	var req departmentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}
	dept, err := h.service.UpdateDepartment(r.Context(), actor, id, UpdateInput{
		ParentDepartmentID: req.ParentDepartmentID,
		Name:               req.Name,
		ManagerUserID:      req.ManagerUserID,
		IsActive:           isActive,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(dept))
}

func (h *Handler) deleteDepartment(w http.ResponseWriter, r *http.Request) {
	actor := authz.IdentityFromContext(r.Context())
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid department id")
		return
	}
	if err := h.service.DeleteDepartment(r.Context(), actor, id); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// respondError maps department errors before deferring to the shared
// mapping.
func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "department not found")
	case errors.Is(err, ErrHasChildren), errors.Is(err, ErrDuplicateName):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrHierarchyCycle):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Corrupt Hierarchy", err.Error())
	default:
		httpx.RespondError(w, err)
	}
}

func toResponse(d Department) departmentResponse {
	return departmentResponse{
		ID:                 d.ID,
		ParentDepartmentID: d.ParentDepartmentID,
		Name:               d.Name,
		ManagerUserID:      d.ManagerUserID,
		IsActive:           d.IsActive,
	}
}

func toTreeResponse(n *DepartmentTree) treeResponse {
	out := treeResponse{
		departmentResponse: toResponse(n.Department),
		MemberCount:        n.MemberCount,
		Children:           make([]treeResponse, len(n.Children)),
	}
	for i, c := range n.Children {
		out.Children[i] = toTreeResponse(c)
	}
	return out
}
