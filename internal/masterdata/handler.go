package masterdata

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/lumbung-erp/lumbung-erp/internal/platform/httpx"
	"github.com/lumbung-erp/lumbung-erp/internal/rbac"
)

// Handler wires HTTP endpoints for master data lookups.
type Handler struct {
	logger  *slog.Logger
	service *Service
	codes   *CodeChecker
	rbac    rbac.Middleware
}

// NewHandler constructs masterdata handler.
func NewHandler(logger *slog.Logger, service *Service, codes *CodeChecker, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, codes: codes, rbac: rbac}
}

// MountRoutes registers masterdata routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny("masterdata.view"))
		r.Get("/products/{id}", h.handleProduct)
		r.Get("/products/code-check", h.handleCodeCheck)
		r.Get("/warehouses/{id}/stock", h.handleWarehouseStock)
	})
}

func (h *Handler) handleProduct(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid id", "product id must be numeric")
		return
	}
	detail, err := h.service.LookupProduct(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInactiveProduct) {
			httpx.Problem(w, http.StatusNotFound, "product not found", "")
			return
		}
		h.logger.Error("lookup product", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "lookup failed", "internal error")
		return
	}
	httpx.JSON(w, http.StatusOK, detail)
}

// handleWarehouseStock returns selectable products with quantity on hand.
// Lookup failures are non-fatal for the caller: it renders an empty state.
func (h *Handler) handleWarehouseStock(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid id", "warehouse id must be numeric")
		return
	}
	records, err := h.service.WarehouseStock(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "warehouse not found", "")
			return
		}
		h.logger.Warn("warehouse stock lookup", slog.Any("error", err), slog.Int64("warehouse_id", id))
		httpx.JSON(w, http.StatusOK, []StockRecord{})
		return
	}
	httpx.JSON(w, http.StatusOK, records)
}

func (h *Handler) handleCodeCheck(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		httpx.Problem(w, http.StatusBadRequest, "missing code", "query parameter code is required")
		return
	}
	status, err := h.codes.Check(r.Context(), code)
	if err != nil {
		if errors.Is(err, ErrStaleLookup) {
			// 204 tells the client this response is already outdated.
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h.logger.Warn("code check", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "lookup failed", "internal error")
		return
	}
	httpx.JSON(w, http.StatusOK, status)
}
