package shared

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// SessionManager issues cookie-identified sessions whose state lives in
// Redis. The cookie carries only the opaque session id.
type SessionManager struct {
	client     *redis.Client
	cookieName string
	ttl        time.Duration
	secure     bool
	secret     []byte
}

// Session is the per-request view of one session. Mutations mark it dirty;
// Commit writes dirty sessions back and refreshes the cookie expiry.
type Session struct {
	ID        string
	userID    string
	values    map[string]string
	isNew     bool
	dirty     bool
	destroyed bool
}

type sessionState struct {
	UserID string            `json:"user_id"`
	Values map[string]string `json:"values"`
}

// NewSessionManager constructs a SessionManager.
func NewSessionManager(client *redis.Client, cookieName string, secret string, ttl time.Duration, secure bool) *SessionManager {
	return &SessionManager{
		client:     client,
		cookieName: cookieName,
		ttl:        ttl,
		secure:     secure,
		secret:     []byte(secret),
	}
}

// Load resolves the request's session. A missing cookie or an expired Redis
// entry yields a fresh anonymous session rather than an error.
func (sm *SessionManager) Load(ctx context.Context, r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(sm.cookieName)
	if err != nil {
		if errors.Is(err, http.ErrNoCookie) {
			return sm.blank(), nil
		}
		return nil, err
	}

	raw, err := sm.client.Get(ctx, sessionRedisKey(cookie.Value)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			sess := sm.blank()
			sess.ID = cookie.Value
			return sess, nil
		}
		return nil, err
	}

	var state sessionState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, err
	}
	return &Session{
		ID:     cookie.Value,
		userID: state.UserID,
		values: state.Values,
	}, nil
}

// Commit flushes session state to Redis and sets the cookie. Destroyed
// sessions are purged and their cookie expired instead.
func (sm *SessionManager) Commit(ctx context.Context, w http.ResponseWriter, r *http.Request, sess *Session) error {
	if sess == nil {
		return nil
	}

	if sess.destroyed {
		if err := sm.client.Del(ctx, sessionRedisKey(sess.ID)).Err(); err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		http.SetCookie(w, sm.cookie("", -1))
		return nil
	}

	if sess.ID == "" {
		sess.ID = sm.newID()
	}

	if sess.dirty || sess.isNew {
		raw, err := json.Marshal(sessionState{UserID: sess.userID, Values: sess.values})
		if err != nil {
			return err
		}
		if err := sm.client.Set(ctx, sessionRedisKey(sess.ID), raw, sm.ttl).Err(); err != nil {
			return err
		}
		sess.dirty = false
	}

	http.SetCookie(w, sm.cookie(sess.ID, 0))
	return nil
}

// Destroy marks the session for deletion at commit time.
func (sm *SessionManager) Destroy(sess *Session) {
	if sess != nil {
		sess.destroyed = true
	}
}

// TTL exposes the configured session lifetime.
func (sm *SessionManager) TTL() time.Duration {
	return sm.ttl
}

// CookieName returns the cookie identifier used for sessions.
func (sm *SessionManager) CookieName() string {
	return sm.cookieName
}

func (sm *SessionManager) cookie(value string, maxAge int) *http.Cookie {
	c := &http.Cookie{
		Name:     sm.cookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   sm.secure,
		SameSite: http.SameSiteStrictMode,
	}
	if maxAge < 0 {
		c.MaxAge = maxAge
	} else {
		c.Expires = time.Now().Add(sm.ttl)
	}
	return c
}

func (sm *SessionManager) blank() *Session {
	return &Session{
		ID:     sm.newID(),
		values: make(map[string]string),
		isNew:  true,
		dirty:  true,
	}
}

func (sm *SessionManager) newID() string {
	if id, err := uuid.NewRandom(); err == nil {
		return id.String()
	}
	// uuid only fails when the platform entropy source does; mix the secret
	// into whatever bytes we did get so ids stay unguessable.
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return base64.RawURLEncoding.EncodeToString([]byte(time.Now().Format(time.RFC3339Nano)))
	}
	for i := range b {
		if len(sm.secret) > 0 {
			b[i] ^= sm.secret[i%len(sm.secret)]
		}
	}
	return base64.RawURLEncoding.EncodeToString(b)
}

func sessionRedisKey(id string) string {
	return "session:" + id
}

// SetUser associates the session with a user id.
func (s *Session) SetUser(id string) {
	s.userID = id
	s.dirty = true
}

// User returns the current user id, empty for anonymous sessions.
func (s *Session) User() string {
	return s.userID
}

// Set stores an arbitrary key-value pair, e.g. the active warehouse.
func (s *Session) Set(key, value string) {
	if s.values == nil {
		s.values = make(map[string]string)
	}
	s.values[key] = value
	s.dirty = true
}

// Get retrieves a stored value.
func (s *Session) Get(key string) string {
	return s.values[key]
}

// Delete removes a stored value.
func (s *Session) Delete(key string) {
	if _, ok := s.values[key]; ok {
		delete(s.values, key)
		s.dirty = true
	}
}

// IsNew reports whether the session was created during this request.
func (s *Session) IsNew() bool {
	return s.isNew
}
