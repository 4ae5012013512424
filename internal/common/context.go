package common

import (
	"context"
)

// Context keys for storing values in context
type contextKey string

const (
	ContextKeyRequestID   contextKey = "request_id"
	ContextKeyWorkspaceID contextKey = "workspace_id"
	ContextKeyUserID      contextKey = "user_id"
)

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// RequestIDFromContext extracts the request ID from context
func RequestIDFromContext(ctx context.Context) string {
	if requestID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return requestID
	}
	return ""
}

// WithWorkspaceID adds a workspace ID to the context
func WithWorkspaceID(ctx context.Context, workspaceID string) context.Context {
	return context.WithValue(ctx, ContextKeyWorkspaceID, workspaceID)
}

// WorkspaceIDFromContext extracts the workspace ID from context
func WorkspaceIDFromContext(ctx context.Context) string {
	if workspaceID, ok := ctx.Value(ContextKeyWorkspaceID).(string); ok {
		return workspaceID
	}
	return ""
}
