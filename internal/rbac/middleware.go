package rbac

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/lumbung-erp/lumbung-erp/internal/shared"
)

// Middleware exposes permission gates for chi route groups. The acting user
// is read from the session placed on the request context by the app stack.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
}

// RequireAny passes when the user holds at least one of the permissions.
func (m Middleware) RequireAny(perms ...string) func(http.Handler) http.Handler {
	return m.guard(perms, func(granted map[string]struct{}, required []string) bool {
		for _, p := range required {
			if _, ok := granted[p]; ok {
				return true
			}
		}
		return false
	})
}

// RequireAll passes only when the user holds every listed permission.
func (m Middleware) RequireAll(perms ...string) func(http.Handler) http.Handler {
	return m.guard(perms, func(granted map[string]struct{}, required []string) bool {
		for _, p := range required {
			if _, ok := granted[p]; !ok {
				return false
			}
		}
		return true
	})
}

func (m Middleware) guard(perms []string, allow func(map[string]struct{}, []string) bool) func(http.Handler) http.Handler {
	required := normalize(perms)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(required) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			userID, ok := m.actingUser(r)
			if !ok {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			perms, err := m.Service.EffectivePermissions(r.Context(), userID)
			if err != nil {
				if m.Logger != nil {
					m.Logger.Error("rbac resolve permissions", slog.Int64("user_id", userID), slog.Any("error", err))
				}
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			granted := make(map[string]struct{}, len(perms))
			for _, p := range perms {
				granted[strings.ToLower(p)] = struct{}{}
			}
			if !allow(granted, required) {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (m Middleware) actingUser(r *http.Request) (int64, bool) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return 0, false
	}
	raw := strings.TrimSpace(sess.User())
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		if m.Logger != nil {
			m.Logger.Error("rbac parse user id", slog.String("value", raw))
		}
		return 0, false
	}
	return id, true
}

func normalize(perms []string) []string {
	seen := make(map[string]struct{}, len(perms))
	out := make([]string, 0, len(perms))
	for _, p := range perms {
		p = strings.TrimSpace(strings.ToLower(p))
		if p == "" {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
