package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/lumbung-erp/lumbung-erp/internal/adjustment"
	"github.com/lumbung-erp/lumbung-erp/internal/auth"
	"github.com/lumbung-erp/lumbung-erp/internal/masterdata"
	"github.com/lumbung-erp/lumbung-erp/internal/purchasing"
	"github.com/lumbung-erp/lumbung-erp/internal/shared"
	"github.com/lumbung-erp/lumbung-erp/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	SessionManager    *shared.SessionManager
	AuthHandler       *auth.Handler
	MasterDataHandler *masterdata.Handler
	AdjustmentHandler *adjustment.Handler
	PurchasingHandler *purchasing.Handler
	JobHandler        *jobs.Handler
}

// NewRouter constructs the chi.Router with Lumbung defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		if params.AuthHandler != nil {
			params.AuthHandler.MountRoutes(r)
		}
		if params.MasterDataHandler != nil {
			params.MasterDataHandler.MountRoutes(r)
		}
		if params.AdjustmentHandler != nil {
			params.AdjustmentHandler.MountRoutes(r)
		}
		if params.PurchasingHandler != nil {
			params.PurchasingHandler.MountRoutes(r)
		}
	})

	if params.JobHandler != nil {
		r.Route("/jobs", func(r chi.Router) {
			params.JobHandler.MountRoutes(r)
		})
	}

	return r
}
