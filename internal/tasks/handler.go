package tasks

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	"github.com/taskhive/taskhive/internal/authz"
	"github.com/taskhive/taskhive/internal/platform/httpx"
)

// Handler manages task endpoints.
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

// MountRoutes registers task routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require(authz.ResourceTasks, authz.ActionRead))
		r.Get("/", h.listTasks)
		r.Get("/{id}", h.getTask)
		r.Get("/export", h.exportTasks)
	})
	r.Group(func(r chi.Router) {
		// Mutations get a per-user rate ceiling on top of the global limit.
		r.Use(httprate.Limit(60, time.Minute, httprate.WithKeyFuncs(identityKey)))
		r.With(h.guard.Require(authz.ResourceTasks, authz.ActionCreate)).Post("/", h.createTask)
		r.With(h.guard.Require(authz.ResourceTasks, authz.ActionWrite)).Put("/{id}", h.updateTask)
		r.With(h.guard.Require(authz.ResourceTasks, authz.ActionWrite)).Post("/batch/status", h.batchUpdateStatus)
		r.With(h.guard.Require(authz.ResourceTasks, authz.ActionDelete)).Delete("/{id}", h.deleteTask)
	})
}

func identityKey(r *http.Request) (string, error) {
	if id := authz.IdentityFromContext(r.Context()); id != nil {
		return strconv.FormatInt(id.UserID, 10), nil
	}
	return httprate.KeyByIP(r)
}

type createTaskRequest struct {
	Title        string `json:"title" validate:"required,max=200"`
	Description  string `json:"description" validate:"max=4000"`
	AssigneeID   *int64 `json:"assignee_id"`
	DepartmentID *int64 `json:"department_id"`
}

type updateTaskRequest struct {
	Title        string `json:"title" validate:"max=200"`
	Description  string `json:"description" validate:"max=4000"`
	Status       string `json:"status" validate:"omitempty,oneof=open in_progress done archived"`
	AssigneeID   *int64 `json:"assignee_id"`
	DepartmentID *int64 `json:"department_id"`
}

type batchStatusRequest struct {
	IDs    []int64 `json:"ids" validate:"required,min=1,max=100"`
	Status string  `json:"status" validate:"required,oneof=open in_progress done archived"`
}

type taskResponse struct {
	ID           int64      `json:"id"`
	OwnerID      *int64     `json:"owner_id,omitempty"`
	AssigneeID   *int64     `json:"assignee_id,omitempty"`
	DepartmentID *int64     `json:"department_id,omitempty"`
	Title        string     `json:"title"`
	Description  string     `json:"description,omitempty"`
	Status       string     `json:"status"`
	DueAt        *time.Time `json:"due_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (h *Handler) listTasks(w http.ResponseWriter, r *http.Request) {
	actor := authz.IdentityFromContext(r.Context())
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	var status *Status
	if raw := r.URL.Query().Get("status"); raw != "" {
		s := Status(raw)
		status = &s
	}
	list, err := h.service.ListTasks(r.Context(), actor, status, page, perPage)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"tasks": toResponses(list)})
}

func (h *Handler) getTask(w http.ResponseWriter, r *http.Request) {
	actor := authz.IdentityFromContext(r.Context())
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid task id")
		return
	}
	t, err := h.service.GetTask(r.Context(), actor, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(t))
}

func (h *Handler) createTask(w http.ResponseWriter, r *http.Request) {
	actor := authz.IdentityFromContext(r.Context())
	var req createTaskRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	t, err := h.service.CreateTask(r.Context(), actor, CreateInput{
		Title:        req.Title,
		Description:  req.Description,
		AssigneeID:   req.AssigneeID,
		DepartmentID: req.DepartmentID,
	})
	if err != nil {
		h.logger.Error("create task", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toResponse(t))
}

func (h *Handler) updateTask(w http.ResponseWriter, r *http.Request) {
	actor := authz.IdentityFromContext(r.Context())
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid task id")
		return
	}
	var req updateTaskRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	t, err := h.service.UpdateTask(r.Context(), actor, id, UpdateInput{
		Title:        req.Title,
		Description:  req.Description,
		Status:       Status(req.Status),
		AssigneeID:   req.AssigneeID,
		DepartmentID: req.DepartmentID,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(t))
}

func (h *Handler) batchUpdateStatus(w http.ResponseWriter, r *http.Request) {
	actor := authz.IdentityFromContext(r.Context())
	var req batchStatusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	updated, err := h.service.BatchUpdateStatus(r.Context(), actor, req.IDs, Status(req.Status))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"tasks": toResponses(updated)})
}

func (h *Handler) deleteTask(w http.ResponseWriter, r *http.Request) {
	actor := authz.IdentityFromContext(r.Context())
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid task id")
		return
	}
	if err := h.service.DeleteTask(r.Context(), actor, id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) exportTasks(w http.ResponseWriter, r *http.Request) {
	actor := authz.IdentityFromContext(r.Context())
	list, err := h.service.ExportTasks(r.Context(), actor)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="tasks.json"`)
	httpx.JSON(w, http.StatusOK, map[string]any{"tasks": toResponses(list)})
}

func toResponse(t Task) taskResponse {
	return taskResponse{
		ID:           t.ID,
		OwnerID:      t.OwnerID,
		AssigneeID:   t.AssigneeID,
		DepartmentID: t.DepartmentID,
		Title:        t.Title,
		Description:  t.Description,
		Status:       string(t.Status),
		DueAt:        t.DueAt,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
	}
}

func toResponses(list []Task) []taskResponse {
	out := make([]taskResponse, len(list))
	for i, t := range list {
		out[i] = toResponse(t)
	}
	return out
}
