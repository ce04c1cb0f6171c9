package audit

import (
	"context"
	"log/slog"
	"time"
)

type Logger struct {
	logger *slog.Logger
}

func NewLogger(logger *slog.Logger) *Logger {
	return &Logger{logger: logger}
}

type requestIDKey struct{}

// WithRequestID stamps the context with the request ID that every audit
// entry for the request will carry.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the stamped request ID, empty if absent.
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

func (al *Logger) LogAction(ctx context.Context, userID int64, action, resource, resourceID, status, details string) {
	requestID := RequestIDFromContext(ctx)

	al.logger.Info("audit",
		slog.String("action", action),
		slog.String("resource", resource),
		slog.String("resource_id", resourceID),
		slog.Int64("user_id", userID),
		slog.String("status", status),
		slog.String("details", details),
		slog.String("request_id", requestID),
		slog.Time("timestamp", time.Now()),
	)
}

func (al *Logger) LogRequest(ctx context.Context, userID int64, method, path string) {
	al.LogAction(ctx, userID, method, "http", path, "initiated", "")
}

func (al *Logger) LogLogin(ctx context.Context, userID int64, username, status string) {
	al.LogAction(ctx, userID, "login", "user", username, status, "")
}

func (al *Logger) LogPasswordChange(ctx context.Context, userID int64, status, details string) {
	al.LogAction(ctx, userID, "password_change", "user", "", status, details)
}
