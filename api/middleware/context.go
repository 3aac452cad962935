package middleware

import "context"

type contextKey string

const (
	ctxViewerID contextKey = "viewer_id"
	ctxRole     contextKey = "actor_role"
)

func ViewerIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxViewerID).(string); ok {
		return v
	}
	return ""
}

func RoleFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxRole).(string); ok {
		return v
	}
	return ""
}

// WithViewerID injects the viewer identifier into the context.
func WithViewerID(ctx context.Context, viewerID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxViewerID, viewerID)
}

// WithRole injects the caller role into the context for downstream guards.
func WithRole(ctx context.Context, role string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxRole, role)
}
