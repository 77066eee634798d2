package purchasing

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/lumbung-erp/lumbung-erp/internal/masterdata"
	"github.com/lumbung-erp/lumbung-erp/internal/platform/httpx"
	"github.com/lumbung-erp/lumbung-erp/internal/rbac"
	"github.com/lumbung-erp/lumbung-erp/internal/shared"
)

// Handler wires HTTP endpoints for purchase orders.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	rbac     rbac.Middleware
}

// NewHandler constructs purchasing handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		rbac:     rbac,
	}
}

// MountRoutes registers purchasing routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny("purchasing.view", "purchasing.edit"))
		r.Get("/purchase-orders", h.handleList)
		r.Get("/purchase-orders/{id}", h.handleGet)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll("purchasing.edit"))
		r.Post("/purchase-orders", h.handleCreate)
		r.Put("/purchase-orders/{id}", h.handleUpdate)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll("purchasing.approve"))
		r.Post("/purchase-orders/{id}/approve", h.handleApprove)
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
	supplierID, _ := strconv.ParseInt(r.URL.Query().Get("supplier_id"), 10, 64)
	filter := ListFilter{
		Status:     Status(r.URL.Query().Get("status")),
		SupplierID: supplierID,
		Search:     r.URL.Query().Get("search"),
		Limit:      perPage,
		Offset:     (page - 1) * perPage,
	}
	items, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("list purchase orders", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "list failed", "internal error")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"items": items,
		"meta":  shared.NewPagination(page, perPage, total),
	})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid id", "purchase order id must be a uuid")
		return
	}
	po, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, err, "get purchase order")
		return
	}
	httpx.JSON(w, http.StatusOK, poResponse{PurchaseOrder: po, Margins: h.service.Margins(r.Context(), po)})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req poDraftRequest
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
		httpx.Problem(w, http.StatusBadRequest, "invalid payload", "order_date must be YYYY-MM-DD")
		return
	}
	po, err := h.service.Create(r.Context(), draft, h.actorID(r))
	if err != nil {
		h.writeError(w, err, "create purchase order")
		return
	}
	httpx.JSON(w, http.StatusCreated, poResponse{PurchaseOrder: po, Margins: h.service.Margins(r.Context(), po)})
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid id", "purchase order id must be a uuid")
		return
	}
	var req poDraftRequest
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
		httpx.Problem(w, http.StatusBadRequest, "invalid payload", "order_date must be YYYY-MM-DD")
		return
	}
	po, err := h.service.Update(r.Context(), id, draft, h.actorID(r))
	if err != nil {
		h.writeError(w, err, "update purchase order")
		return
	}
	httpx.JSON(w, http.StatusOK, poResponse{PurchaseOrder: po, Margins: h.service.Margins(r.Context(), po)})
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid id", "purchase order id must be a uuid")
		return
	}
	var req poApproveRequest
	_ = httpx.DecodeJSON(r, &req)

	po, err := h.service.Approve(r.Context(), id, h.actorID(r), req.Notes)
	if err != nil {
		h.writeError(w, err, "approve purchase order")
		return
	}
	httpx.JSON(w, http.StatusOK, po)
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

func (h *Handler) writeError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, masterdata.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "purchase order not found", shared.UserSafeMessage(err))
	case errors.Is(err, ErrAlreadyApproved), errors.Is(err, ErrInvalidState):
		httpx.Problem(w, http.StatusConflict, "conflict", shared.UserSafeMessage(err))
	case errors.Is(err, ErrNoLines), errors.Is(err, ErrInvalidLine), errors.Is(err, ErrSupplierInactive):
		httpx.Problem(w, http.StatusUnprocessableEntity, "validation failed", shared.UserSafeMessage(err))
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, op+" failed", "internal error")
	}
}
