package store

import "context"

type contextKey string

// UserIDKey is the context key for the authenticated user identity.
const UserIDKey contextKey = "storycast_user_id"

// WithUserID returns a new context with the given user identity.
func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, UserIDKey, id)
}

// UserIDFromContext extracts the user identity from context. Returns "" if not set.
func UserIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(UserIDKey).(string); ok {
		return v
	}
	return ""
}
