package shared

import "context"

type sessionKey struct{}

// ContextWithSession attaches the authenticated session to the request
// context so handlers and rbac middleware can read the acting user.
func ContextWithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, sess)
}

// SessionFromContext returns the session, or nil for anonymous requests.
func SessionFromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionKey{}).(*Session)
	return sess
}
