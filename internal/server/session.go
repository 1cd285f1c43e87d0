package server

import "context"

type contextKey string

const sessionKey contextKey = "session"

// Session identifies the connection an event arrived on.
type Session struct {
	HandleID string
}

func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

func SessionFromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionKey).(Session)
	return s, ok
}
