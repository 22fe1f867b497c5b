package auth

import "context"

type sessionContextKey struct{}

// ContextWithSession attaches the request's session to ctx.
func ContextWithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// SessionFromContext returns the attached session, or an empty one.
func SessionFromContext(ctx context.Context) *Session {
	if ctx != nil {
		if sess, ok := ctx.Value(sessionContextKey{}).(*Session); ok && sess != nil {
			return sess
		}
	}
	return &Session{}
}
