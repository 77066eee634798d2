package adjustment

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/lumbung-erp/lumbung-erp/internal/platform/httpx"
	"github.com/lumbung-erp/lumbung-erp/internal/rbac"
	"github.com/lumbung-erp/lumbung-erp/internal/shared"
)

// Handler wires HTTP endpoints for the adjustment lifecycle.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	rbac     rbac.Middleware
}

// NewHandler constructs adjustment handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		rbac:     rbac,
	}
}

// MountRoutes registers adjustment routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny("adjustment.view", "adjustment.edit"))
		r.Get("/adjustments", h.handleList)
		r.Get("/adjustments/reasons", h.handleReasons)
		r.Get("/adjustments/{id}", h.handleGet)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll("adjustment.edit"))
		r.Post("/adjustments", h.handleCreate)
		r.Put("/adjustments/{id}", h.handleUpdate)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll("adjustment.approve"))
		r.Post("/adjustments/{id}/approve", h.handleApprove)
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	if page <= 0 {
		page = 1
	}
	if perPage <= 0 {
		perPage = 20
	}
	warehouseID, _ := strconv.ParseInt(r.URL.Query().Get("warehouse_id"), 10, 64)
	filter := ListFilter{
		Status:      Status(r.URL.Query().Get("status")),
		WarehouseID: warehouseID,
		Search:      r.URL.Query().Get("search"),
		Limit:       perPage,
		Offset:      (page - 1) * perPage,
	}
	items, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("list adjustments", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "list failed", "internal error")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"items": items,
		"meta":  shared.NewPagination(page, perPage, total),
	})
}

func (h *Handler) handleReasons(w http.ResponseWriter, r *http.Request) {
	out := make([]reasonResponse, 0, len(Reasons()))
	for _, reason := range Reasons() {
		out = append(out, reasonResponse{Value: string(reason), Label: reason.Label()})
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid id", "adjustment id must be a uuid")
		return
	}
	adj, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, err, "get adjustment")
		return
	}
	httpx.JSON(w, http.StatusOK, adj)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req draftRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid payload", "request body must be valid JSON")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.ValidationProblem(w, err)
		return
	}
	draft, err := req.toDraft()
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid payload", "adjustment_date must be YYYY-MM-DD")
		return
	}
	adj, err := h.service.Create(r.Context(), draft, h.actorID(r))
	if err != nil {
		h.writeError(w, err, "create adjustment")
		return
	}
	httpx.JSON(w, http.StatusCreated, adj)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid id", "adjustment id must be a uuid")
		return
	}
	var req draftRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid payload", "request body must be valid JSON")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.ValidationProblem(w, err)
		return
	}
	draft, err := req.toDraft()
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid payload", "adjustment_date must be YYYY-MM-DD")
		return
	}
	adj, err := h.service.Update(r.Context(), id, draft, h.actorID(r))
	if err != nil {
		h.writeError(w, err, "update adjustment")
		return
	}
	httpx.JSON(w, http.StatusOK, adj)
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid id", "adjustment id must be a uuid")
		return
	}
	// Approval notes are optional; an empty body is fine.
	var req approveRequest
	_ = httpx.DecodeJSON(r, &req)
	adj, err := h.service.Approve(r.Context(), id, h.actorID(r), req.Notes)
	if err != nil {
		h.writeError(w, err, "approve adjustment")
		return
	}
	httpx.JSON(w, http.StatusOK, adj)
}

func (h *Handler) actorID(r *http.Request) int64 {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return 0
	}
	id, err := strconv.ParseInt(sess.User(), 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// writeError maps domain errors onto problem responses. Conflict and
// validation details carry the error text so backend rejections reach the
// operator verbatim.
func (h *Handler) writeError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "adjustment not found", "")
	case errors.Is(err, ErrAlreadyApproved), errors.Is(err, ErrInvalidState), errors.Is(err, ErrImmutableHeader):
		httpx.Problem(w, http.StatusConflict, "conflict", shared.UserSafeMessage(err))
	case errors.Is(err, ErrDuplicateProduct),
		errors.Is(err, ErrInvalidQuantity),
		errors.Is(err, ErrProductNotInWarehouse),
		errors.Is(err, ErrNoLineItems),
		errors.Is(err, ErrFutureDate),
		errors.Is(err, ErrIncompleteHeader),
		errors.Is(err, ErrLineNotFound):
		httpx.Problem(w, http.StatusUnprocessableEntity, "validation failed", shared.UserSafeMessage(err))
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, op+" failed", "internal error")
	}
}
