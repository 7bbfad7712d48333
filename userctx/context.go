package userctx

import "context"

// Context key type
type contextKey string

const userIDKey contextKey = "user_id"
const displayNameKey contextKey = "user_display_name"

// SetUserID adds the LINE user ID to request context
func SetUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}

// GetUserID retrieves the LINE user ID from request context
func GetUserID(ctx context.Context) string {
	if id, ok := ctx.Value(userIDKey).(string); ok {
		return id
	}
	return ""
}

// SetDisplayName adds the user's display name to request context
func SetDisplayName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, displayNameKey, name)
}

// GetDisplayName retrieves the user's display name from request context
func GetDisplayName(ctx context.Context) string {
	if name, ok := ctx.Value(displayNameKey).(string); ok {
		return name
	}
	return "anonymous"
}
