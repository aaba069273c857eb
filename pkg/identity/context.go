package identity

import (
	"context"
	"log/slog"
)

type contextKey struct{ name string }

var identityContextKey = &contextKey{name: "identity"}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityContextKey).(Identity)
	return id, ok
}

// LoggerExtractor adds the caller's user id to log records.
func LoggerExtractor() func(ctx context.Context) (slog.Attr, bool) {
	return func(ctx context.Context) (slog.Attr, bool) {
		if id, ok := FromContext(ctx); ok {
			return slog.String("user_id", id.UserID.String()), true
		}
		return slog.Attr{}, false
	}
}
