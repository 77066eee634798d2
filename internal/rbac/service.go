package rbac

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Service resolves effective permissions for users. Results are cached
// briefly because the permission set is consulted on every guarded request.
type Service struct {
	pool *pgxpool.Pool

	mu    sync.Mutex
	cache map[int64]cachedPerms
	ttl   time.Duration
}

type cachedPerms struct {
	perms   []string
	expires time.Time
}

// NewService constructs a Service backed by the provided pool.
func NewService(pool *pgxpool.Pool) *Service {
	return &Service{pool: pool, cache: make(map[int64]cachedPerms), ttl: 30 * time.Second}
}

// EffectivePermissions returns the union of permissions granted through the
// user's roles.
func (s *Service) EffectivePermissions(ctx context.Context, userID int64) ([]string, error) {
	s.mu.Lock()
	if entry, ok := s.cache[userID]; ok && time.Now().Before(entry.expires) {
		perms := entry.perms
		s.mu.Unlock()
		return perms, nil
	}
	s.mu.Unlock()

	rows, err := s.pool.Query(ctx, `SELECT DISTINCT p.code
FROM permissions p
JOIN role_permissions rp ON rp.permission_id = p.id
JOIN user_roles ur ON ur.role_id = rp.role_id
WHERE ur.user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var perms []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		perms = append(perms, strings.ToLower(code))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cache[userID] = cachedPerms{perms: perms, expires: time.Now().Add(s.ttl)}
	s.mu.Unlock()
	return perms, nil
}

// Invalidate drops the cached permissions of a user after role changes.
func (s *Service) Invalidate(userID int64) {
	s.mu.Lock()
	delete(s.cache, userID)
	s.mu.Unlock()
}
