package audit

import (
	"context"
	"log/slog"
	"time"

	"soulbound/pkg/requestcontext"
)

// Logger provides structured audit logging with optional event emission.
// Use this in services to standardize audit logging patterns.
type Logger struct {
	textLogger *slog.Logger
	emitter    Emitter
}

// NewLogger creates an audit logger.
// textLogger is used for structured logging; emitter is optional for event persistence.
func NewLogger(textLogger *slog.Logger, emitter Emitter) *Logger {
	return &Logger{
		textLogger: textLogger,
		emitter:    emitter,
	}
}

// Log logs an audit event to text and optionally emits it to the audit sink.
// The event's Timestamp and RequestID are filled from context when unset.
//
// Usage:
//
//	auditLog.Log(ctx, audit.Event{
//	    Category: audit.CategoryOperations,
//	    Action:   string(audit.EventTokenMinted),
//	    IssuerID: issuerID,
//	    Owner:    owner,
//	})
func (l *Logger) Log(ctx context.Context, event Event) {
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}

	l.logToText(ctx, event)

	if l.emitter == nil {
		return
	}
	if err := l.emitter.Emit(ctx, event); err != nil && l.textLogger != nil {
		l.textLogger.WarnContext(ctx, "failed to emit audit event",
			"action", event.Action,
			"error", err,
		)
	}
}

func (l *Logger) logToText(ctx context.Context, event Event) {
	if l.textLogger == nil {
		return
	}
	args := []any{
		"log_type", "audit",
		"category", string(event.Category),
		"actor", event.Actor,
	}
	if event.RequestID != "" {
		args = append(args, "request_id", event.RequestID)
	}
	if !event.Owner.IsNil() {
		args = append(args, "owner", event.Owner.String())
	}
	if !event.IssuerID.IsNil() {
		args = append(args, "issuer_id", event.IssuerID.String())
	}
	if !event.ClassID.IsNil() {
		args = append(args, "class_id", event.ClassID.String())
	}
	if !event.TokenID.IsNil() {
		args = append(args, "token_id", event.TokenID.String())
	}
	if event.Reason != "" {
		args = append(args, "reason", event.Reason)
	}
	l.textLogger.InfoContext(ctx, event.Action, args...)
}

// NowOrDefault returns t if non-zero, otherwise the current time. Exported for
// store implementations that need a defensive timestamp.
func NowOrDefault(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}
