package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/lumbung-erp/lumbung-erp/internal/platform/httpx"
	"github.com/lumbung-erp/lumbung-erp/internal/shared"
)

// Handler exposes login/logout/session endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	sessions *shared.SessionManager
	validate *validator.Validate
}

// NewHandler constructs auth handler.
func NewHandler(logger *slog.Logger, service *Service, sessions *shared.SessionManager) *Handler {
	return &Handler{logger: logger, service: service, sessions: sessions, validate: validator.New()}
}

// MountRoutes registers auth routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
	r.Get("/session", h.handleSession)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type sessionResponse struct {
	State string `json:"state"`
	User  *struct {
		ID    int64  `json:"id"`
		Email string `json:"email"`
		Name  string `json:"name"`
	} `json:"user,omitempty"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid body", "request body must be JSON")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.ValidationProblem(w, err)
		return
	}

	user, err := h.service.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, shared.ErrInvalidCredentials) {
			httpx.Problem(w, http.StatusUnauthorized, "login failed", shared.UserSafeMessage(err))
			return
		}
		h.logger.Error("authenticate", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "login failed", "internal error")
		return
	}

	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		sess.SetUser(strconv.FormatInt(user.ID, 10))
		if err := h.service.RegisterSession(r.Context(), sess.ID, user.ID, time.Now().Add(h.sessions.TTL()), r.RemoteAddr, r.UserAgent()); err != nil {
			h.logger.Warn("register session", slog.Any("error", err))
		}
	}

	httpx.JSON(w, http.StatusOK, map[string]any{"id": user.ID, "email": user.Email, "name": user.Name})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		if err := h.service.RemoveSession(r.Context(), sess.ID); err != nil {
			h.logger.Warn("remove session", slog.Any("error", err))
		}
		h.sessions.Destroy(sess)
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSession reports the bootstrap outcome for the current cookie. The
// client uses this on startup instead of decoding tokens locally.
func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	result := h.service.Restore(r.Context(), sess)

	resp := sessionResponse{State: string(result.State)}
	switch result.State {
	case StateAuthenticated:
		resp.User = &struct {
			ID    int64  `json:"id"`
			Email string `json:"email"`
			Name  string `json:"name"`
		}{ID: result.User.ID, Email: result.User.Email, Name: result.User.Name}
		httpx.JSON(w, http.StatusOK, resp)
	case StateFailed:
		h.logger.Info("session restore failed", slog.Any("error", result.Err))
		httpx.JSON(w, http.StatusUnauthorized, resp)
	default:
		httpx.JSON(w, http.StatusUnauthorized, resp)
	}
}
