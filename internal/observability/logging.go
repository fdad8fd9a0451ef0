// Package observability provides logging, metrics, and tracing.
package observability

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger so background code has a logger before the HTTP stack configures one.
type Logger struct {
	*slog.Logger
}

// GlobalLogger is used by repositories, the realtime layer and async workers.
var GlobalLogger = &Logger{Logger: slog.New(slog.NewJSONHandler(os.Stdout, nil))}

// SetLogger replaces GlobalLogger; nil is ignored.
func SetLogger(l *slog.Logger) {
	if l != nil {
		GlobalLogger = &Logger{Logger: l}
	}
}

type correlationKey struct{}

// WithCorrelationID tags ctx with the id of the request that started the work.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// ExtractCorrelationID returns the id set by WithCorrelationID, or "".
func ExtractCorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}

func emit(ctx context.Context, level slog.Level, msg string, base []slog.Attr, extra []slog.Attr) {
	attrs := append(base, extra...)
	if id := ExtractCorrelationID(ctx); id != "" {
		attrs = append(attrs, slog.String("correlation_id", id))
	}
	GlobalLogger.LogAttrs(ctx, level, msg, attrs...)
}

// RepoLogger logs writes and failures for one table.
type RepoLogger struct {
	table string
}

// NewRepoLogger returns a RepoLogger for table.
func NewRepoLogger(table string) *RepoLogger {
	return &RepoLogger{table: table}
}

// Created logs a successful insert at debug level.
func (l *RepoLogger) Created(ctx context.Context, attrs ...slog.Attr) {
	emit(ctx, slog.LevelDebug, "repository create", []slog.Attr{slog.String("table", l.table)}, attrs)
}

// Failed logs a failed operation.
func (l *RepoLogger) Failed(ctx context.Context, operation string, err error) {
	emit(ctx, slog.LevelError, "repository error", []slog.Attr{
		slog.String("table", l.table),
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	}, nil)
}

// WSLogger logs connection lifecycle for one hub.
type WSLogger struct {
	hub string
}

// NewWSLogger returns a WSLogger for hub.
func NewWSLogger(hub string) *WSLogger {
	return &WSLogger{hub: hub}
}

func (l *WSLogger) base(userID uint) []slog.Attr {
	return []slog.Attr{slog.String("hub", l.hub), slog.Uint64("user_id", uint64(userID))}
}

// Connected logs a new connection.
func (l *WSLogger) Connected(ctx context.Context, userID uint) {
	emit(ctx, slog.LevelInfo, "websocket connected", l.base(userID), nil)
}

// Disconnected logs a connection leaving.
func (l *WSLogger) Disconnected(ctx context.Context, userID uint, reason string) {
	emit(ctx, slog.LevelInfo, "websocket disconnected", l.base(userID), []slog.Attr{slog.String("reason", reason)})
}

// Failed logs an error while handling eventType for userID (0 for broadcasts).
func (l *WSLogger) Failed(ctx context.Context, userID uint, eventType string, err error) {
	emit(ctx, slog.LevelError, "websocket error", l.base(userID), []slog.Attr{
		slog.String("event_type", eventType),
		slog.String("error", err.Error()),
	})
}

// AsyncFailed logs background work that ran and failed.
func AsyncFailed(ctx context.Context, operation string, err error, attrs ...slog.Attr) {
	emit(ctx, slog.LevelError, "async operation failed", []slog.Attr{
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	}, attrs)
}

// AsyncDropped logs background work discarded before it ran.
func AsyncDropped(ctx context.Context, operation, reason string, attrs ...slog.Attr) {
	emit(ctx, slog.LevelWarn, "async operation dropped", []slog.Attr{
		slog.String("operation", operation),
		slog.String("reason", reason),
	}, attrs)
}
